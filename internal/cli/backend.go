package cli

import (
	"context"
	"fmt"

	"github.com/FranksOps/rentwatch/internal/config"
	"github.com/FranksOps/rentwatch/internal/storage"
	"github.com/FranksOps/rentwatch/internal/storage/csvbackend"
	"github.com/FranksOps/rentwatch/internal/storage/jsonbackend"
	"github.com/FranksOps/rentwatch/internal/storage/postgres"
	"github.com/FranksOps/rentwatch/internal/storage/sqlite"
)

func openBackend(ctx context.Context, cfg config.Storage, possibleFile, rejectedFile string) (storage.Backend, error) {
	var (
		b   storage.Backend
		err error
	)
	switch cfg.Backend {
	case "", config.BackendJSON:
		b, err = jsonbackend.New(possibleFile, rejectedFile)
	case config.BackendCSV:
		b, err = csvbackend.New(possibleFile, rejectedFile)
	case config.BackendSQLite:
		b, err = sqlite.New(cfg.DSN)
	case config.BackendPostgres:
		b, err = postgres.New(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s state: %w", cfg.Backend, err)
	}
	return b, nil
}
