// Package csvfile implements the append-only CSV output target and the reader
// that feeds search-phase files into the review phase.
package csvfile

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/JakeFAU/review-crawler/internal/record"
)

// Table appends record batches to one CSV file.
type Table struct {
	path string
	mu   sync.Mutex
}

// New returns a Table writing to path, creating parent directories as needed.
// The file itself is created lazily by the first non-empty Append.
func New(path string) (*Table, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("csv path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create csv dir for %s: %w", path, err)
	}
	return &Table{path: path}, nil
}

// Path returns the file backing the table.
func (t *Table) Path() string {
	return t.path
}

// Append writes one row per record. The header row is written only when the
// file is new or empty.
func (t *Table) Append(ctx context.Context, batch []record.Record) error {
	if len(batch) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context canceled: %w", err)
	}
	kind := batch[0].Kind()
	for _, r := range batch[1:] {
		if r.Kind() != kind {
			return fmt.Errorf("mixed record kinds in batch: %s and %s", kind, r.Kind())
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	f, err := os.OpenFile(t.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("open csv %s: %w", t.path, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("stat csv %s: %w", t.path, err)
	}

	data, err := encodeBatch(batch, info.Size() == 0)
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("encode csv rows for %s: %w", t.path, err)
	}
	if err := writeOrRollback(f, info.Size(), data); err != nil {
		_ = f.Close()
		return fmt.Errorf("write csv %s: %w", t.path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close csv %s: %w", t.path, err)
	}
	return nil
}

// encodeBatch renders the batch, preceded by the header when requested.
func encodeBatch(batch []record.Record, header bool) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if header {
		if err := w.Write(batch[0].Columns()); err != nil {
			return nil, err
		}
	}
	for _, r := range batch {
		if err := w.Write(r.Values()); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type truncateWriter interface {
	io.Writer
	Truncate(size int64) error
}

// writeOrRollback writes data in one call and, if that fails, cuts the file
// back to size so a retried batch is never partially duplicated.
func writeOrRollback(f truncateWriter, size int64, data []byte) error {
	if _, err := f.Write(data); err != nil {
		if terr := f.Truncate(size); terr != nil {
			return errors.Join(err, fmt.Errorf("roll back to %d bytes: %w", size, terr))
		}
		return err
	}
	return nil
}
