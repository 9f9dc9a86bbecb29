// Package postgres stores classification sets in PostgreSQL through a pgx
// connection pool.
package postgres

import (
	"context"
	"fmt"

	"github.com/FranksOps/rentwatch/internal/storage"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ensure postgresBackend implements storage.Backend
var _ storage.Backend = (*postgresBackend)(nil)

type postgresBackend struct {
	pool *pgxpool.Pool
}

const schema = `
CREATE TABLE IF NOT EXISTS classified_properties (
	address TEXT NOT NULL,
	outcome TEXT NOT NULL,
	first_seen TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (address, outcome)
);
`

// New connects to dsn and ensures the schema exists.
func New(ctx context.Context, dsn string) (storage.Backend, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &postgresBackend{pool: pool}, nil
}

func (b *postgresBackend) Load(ctx context.Context, set storage.Set) ([]string, error) {
	rows, err := b.pool.Query(ctx,
		`SELECT address FROM classified_properties WHERE outcome = $1 ORDER BY address`, string(set))
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", set, err)
	}

	addresses, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect %s: %w", set, err)
	}
	if addresses == nil {
		addresses = []string{}
	}
	return addresses, nil
}

// Save makes the stored set equal to addresses in one transaction.
func (b *postgresBackend) Save(ctx context.Context, set storage.Set, addresses []string) error {
	want := storage.Normalize(addresses)

	err := pgx.BeginFunc(ctx, b.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`DELETE FROM classified_properties WHERE outcome = $1 AND NOT (address = ANY($2::text[]))`,
			string(set), want); err != nil {
			return fmt.Errorf("delete stale %s: %w", set, err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO classified_properties (address, outcome)
			 SELECT a, $1::text FROM unnest($2::text[]) AS a
			 ON CONFLICT (address, outcome) DO NOTHING`,
			string(set), want); err != nil {
			return fmt.Errorf("insert %s: %w", set, err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save %s: %w", set, err)
	}
	return nil
}

func (b *postgresBackend) Close() error {
	b.pool.Close()
	return nil
}
