// Package extract parses the __NEXT_DATA__ payload embedded in directory pages
// into records.
package extract

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/review-crawler/internal/crawler"
)

const nextDataSelector = "script#__NEXT_DATA__"

// notAvailable fills category and location when the payload has none.
const notAvailable = "n/a"

// nextData locates the embedded JSON payload and decodes its pageProps into out.
func nextData(body []byte, out any) error {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return crawler.NewParseError("read html", err)
	}
	script := doc.Find(nextDataSelector).First()
	if script.Length() == 0 {
		return crawler.NewParseError("__NEXT_DATA__ script not found", nil)
	}
	raw := strings.TrimSpace(script.Text())
	if raw == "" {
		return crawler.NewParseError("__NEXT_DATA__ script is empty", nil)
	}

	var envelope struct {
		Props *struct {
			PageProps json.RawMessage `json:"pageProps"`
		} `json:"props"`
	}
	if err := json.Unmarshal([]byte(raw), &envelope); err != nil {
		return crawler.NewParseError("decode __NEXT_DATA__", err)
	}
	if envelope.Props == nil || len(envelope.Props.PageProps) == 0 {
		return crawler.NewParseError("missing props.pageProps", nil)
	}
	if err := json.Unmarshal(envelope.Props.PageProps, out); err != nil {
		return crawler.NewParseError("decode pageProps", err)
	}
	return nil
}
