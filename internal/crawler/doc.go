// Package crawler holds the types, collaborator interfaces and error taxonomy
// shared by the fetchers, extractors, retry worker, pipeline and jobs of the
// review crawler.
package crawler
