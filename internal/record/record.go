// Package record defines the rows produced by extraction and their column schema.
package record

import (
	"strconv"
	"strings"
)

// Kind identifies the page type a record was extracted from.
type Kind string

// Supported record kinds.
const (
	KindSearch Kind = "search"
	KindReview Kind = "review"
)

// Record is a normalized, immutable row ready for persistence.
type Record interface {
	// Kind reports which extraction produced the record.
	Kind() Kind
	// Key is the dedup key: the normalized subject name.
	Key() string
	// Columns returns the column names in declaration order.
	Columns() []string
	// Values returns the row in the same order as Columns.
	Values() []string
}

// normalize trims s and substitutes the "No <column>" sentinel when nothing is left.
func normalize(column, s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "No " + column
	}
	return s
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
