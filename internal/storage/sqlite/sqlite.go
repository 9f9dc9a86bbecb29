// Package sqlite stores classification sets in a SQLite database using the
// pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/FranksOps/rentwatch/internal/storage"
	_ "modernc.org/sqlite"
)

// ensure sqliteBackend implements storage.Backend
var _ storage.Backend = (*sqliteBackend)(nil)

type sqliteBackend struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS classified_properties (
	address TEXT NOT NULL,
	outcome TEXT NOT NULL,
	first_seen DATETIME NOT NULL,
	PRIMARY KEY (address, outcome)
);
`

// New opens (creating if needed) the database at dsn.
func New(dsn string) (storage.Backend, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &sqliteBackend{db: db}, nil
}

func (b *sqliteBackend) Load(ctx context.Context, set storage.Set) ([]string, error) {
	rows, err := b.db.QueryContext(ctx,
		`SELECT address FROM classified_properties WHERE outcome = ? ORDER BY address`, string(set))
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", set, err)
	}
	defer rows.Close()

	addresses := []string{}
	for rows.Next() {
		var a string
		if err := rows.Scan(&a); err != nil {
			return nil, fmt.Errorf("scan %s: %w", set, err)
		}
		addresses = append(addresses, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query %s: %w", set, err)
	}
	return addresses, nil
}

// Save makes the stored set equal to addresses. Rows that stay keep their
// first_seen timestamp.
func (b *sqliteBackend) Save(ctx context.Context, set storage.Set, addresses []string) (err error) {
	want := storage.Normalize(addresses)

	existing, err := b.Load(ctx, set)
	if err != nil {
		return err
	}
	have := make(map[string]struct{}, len(existing))
	for _, a := range existing {
		have[a] = struct{}{}
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	insert, err := tx.PrepareContext(ctx,
		`INSERT INTO classified_properties (address, outcome, first_seen) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer insert.Close()

	now := time.Now().UTC()
	for _, a := range want {
		if _, ok := have[a]; ok {
			delete(have, a)
			continue
		}
		if _, err = insert.ExecContext(ctx, a, string(set), now); err != nil {
			return fmt.Errorf("insert %s: %w", a, err)
		}
	}

	for a := range have {
		if _, err = tx.ExecContext(ctx,
			`DELETE FROM classified_properties WHERE address = ? AND outcome = ?`, a, string(set)); err != nil {
			return fmt.Errorf("delete %s: %w", a, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (b *sqliteBackend) Close() error {
	return b.db.Close()
}
