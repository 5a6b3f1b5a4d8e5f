package csvfile

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/JakeFAU/review-crawler/internal/crawler"
)

const (
	nameColumn      = "name"
	reviewURLColumn = "trustpilot_url"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadBusinesses reads a search-phase CSV back into review-phase work input.
// The header must contain the name and trustpilot_url columns.
func ReadBusinesses(path string) ([]crawler.Business, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	businesses, err := readBusinesses(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return businesses, nil
}

func readBusinesses(src io.Reader) ([]crawler.Business, error) {
	br := bufio.NewReader(src)
	if first, _ := br.Peek(len(utf8BOM)); string(first) == string(utf8BOM) {
		if _, err := br.Discard(len(utf8BOM)); err != nil {
			return nil, fmt.Errorf("skip bom: %w", err)
		}
	}

	r := csv.NewReader(br)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	nameIdx, urlIdx := -1, -1
	for i, h := range header {
		switch strings.TrimSpace(h) {
		case nameColumn:
			nameIdx = i
		case reviewURLColumn:
			urlIdx = i
		}
	}
	if nameIdx < 0 || urlIdx < 0 {
		return nil, fmt.Errorf("header must contain %q and %q columns", nameColumn, reviewURLColumn)
	}

	var out []crawler.Business
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		if len(row) <= nameIdx || len(row) <= urlIdx {
			continue
		}
		out = append(out, crawler.Business{
			Name:      strings.TrimSpace(row[nameIdx]),
			ReviewURL: strings.TrimSpace(row[urlIdx]),
		})
	}
	return out, nil
}
