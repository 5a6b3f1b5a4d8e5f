package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/JakeFAU/review-crawler/internal/record"
)

// Table appends the records of one output. Rows already present for the
// same (output, kind, dedup_key) are left untouched.
type Table struct {
	store  *Store
	output string
}

// Output names the output this table mirrors.
func (t *Table) Output() string {
	return t.output
}

// Append inserts batch in a single transaction.
func (t *Table) Append(ctx context.Context, batch []record.Record) (err error) {
	if len(batch) == 0 {
		return nil
	}
	tx, err := t.store.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin insert: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
			}
		}
	}()

	query := fmt.Sprintf(`
INSERT INTO %s (output, kind, dedup_key, payload)
VALUES ($1, $2, $3, $4)
ON CONFLICT (output, kind, dedup_key) DO NOTHING`, t.store.table)

	for _, r := range batch {
		payload, err := Payload(r)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, query, t.output, string(r.Kind()), r.Key(), payload); err != nil {
			return fmt.Errorf("insert %q: %w", r.Key(), err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit insert: %w", err)
	}
	return nil
}

// Payload encodes r as a JSON object keyed by column name.
func Payload(r record.Record) ([]byte, error) {
	cols, vals := r.Columns(), r.Values()
	if len(cols) != len(vals) {
		return nil, fmt.Errorf("record %q: %d columns but %d values", r.Key(), len(cols), len(vals))
	}
	row := make(map[string]string, len(cols))
	for i, c := range cols {
		row[c] = vals[i]
	}
	b, err := json.Marshal(row)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return b, nil
}
