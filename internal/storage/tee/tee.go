// Package tee fans a batch out to several tables in order.
package tee

import (
	"context"
	"errors"
	"fmt"

	"github.com/JakeFAU/review-crawler/internal/crawler"
	"github.com/JakeFAU/review-crawler/internal/record"
)

// Table writes every batch to the primary target, then to each mirror. A
// primary failure stops the batch and is returned as is. Mirror failures do not
// stop the remaining mirrors and are reported wrapped in crawler.ErrMirrorWrite,
// since the primary already holds the rows.
type Table struct {
	targets []crawler.Table
}

// New builds a Table over targets, skipping nil entries.
func New(targets ...crawler.Table) *Table {
	t := &Table{}
	for _, target := range targets {
		if target != nil {
			t.targets = append(t.targets, target)
		}
	}
	return t
}

// Append implements crawler.Table.
func (t *Table) Append(ctx context.Context, batch []record.Record) error {
	if len(t.targets) == 0 {
		return nil
	}
	if err := t.targets[0].Append(ctx, batch); err != nil {
		return fmt.Errorf("tee primary: %w", err)
	}
	var errs []error
	for i, mirror := range t.targets[1:] {
		if err := mirror.Append(ctx, batch); err != nil {
			errs = append(errs, fmt.Errorf("tee mirror %d: %w", i+1, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", crawler.ErrMirrorWrite, errors.Join(errs...))
	}
	return nil
}
