package db

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5"

	"ltd2-harvester/internal/flatten"
)

//go:embed schema.sql
var schemaSQL string

// EnsureSchema creates the output tables if they do not exist.
func (db *DB) EnsureSchema(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// CopyDataset bulk-loads every non-empty table of a batch via COPY.
// Batches are append-only; resubmitting an overlapping range duplicates
// rows, same as the CSV sink.
func (db *DB) CopyDataset(ctx context.Context, d *flatten.Dataset) error {
	for _, t := range d.Tables() {
		if t.Len() == 0 {
			continue
		}
		_, err := db.pool.CopyFrom(ctx,
			pgx.Identifier{t.Name},
			t.Columns,
			pgx.CopyFromRows(t.Rows()))
		if err != nil {
			return fmt.Errorf("failed to copy into %s: %w", t.Name, err)
		}
	}
	return nil
}

// Store adapts DB to the sink interface used by the harvester.
type Store struct {
	db  *DB
	ctx context.Context
}

// NewStore wraps a DB as a batch sink. The context bounds every copy.
func NewStore(ctx context.Context, db *DB) *Store {
	return &Store{db: db, ctx: ctx}
}

func (s *Store) Append(d *flatten.Dataset) error {
	return s.db.CopyDataset(s.ctx, d)
}

func (s *Store) Close() error {
	return s.db.Close()
}
