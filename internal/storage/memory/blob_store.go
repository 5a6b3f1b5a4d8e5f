// Package memory keeps archived outputs in memory for development and tests.
package memory

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
)

// Archive stores objects in a map and returns memory:// URIs.
type Archive struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// New creates an empty Archive.
func New() *Archive {
	return &Archive{objects: make(map[string][]byte)}
}

// PutObject stores the content of r under path.
func (a *Archive) PutObject(_ context.Context, path string, _ string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read object %s: %w", path, err)
	}
	a.mu.Lock()
	a.objects[path] = data
	a.mu.Unlock()
	return "memory://" + path, nil
}

// Object returns a stored object.
func (a *Archive) Object(path string) ([]byte, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	data, ok := a.objects[path]
	return append([]byte(nil), data...), ok
}

// Paths lists stored object paths in order.
func (a *Archive) Paths() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	paths := make([]string, 0, len(a.objects))
	for p := range a.objects {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
