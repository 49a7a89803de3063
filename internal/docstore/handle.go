package docstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

type Config struct {
	Driver  string
	DataDir string
	DSN     string
	Logger  zerolog.Logger
	Rules   Rules
}

// Open builds a Store on the configured backend.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	var (
		backend Backend
		err     error
	)
	switch cfg.Driver {
	case "", "sqlite":
		backend, err = OpenSQLite(cfg.DataDir)
	case "postgres":
		backend, err = OpenPostgres(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("docstore: unknown driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	cfg.Logger.Info().Str("driver", cfg.Driver).Msg("docstore opened")
	return New(backend, WithLogger(cfg.Logger), WithRules(cfg.Rules)), nil
}

var (
	sharedOnce  sync.Once
	sharedStore *Store
	sharedErr   error
)

// Shared returns the process-wide Store, opening it on first call.
// Later calls return the same Store (or the same error) and ignore cfg.
func Shared(ctx context.Context, cfg Config) (*Store, error) {
	sharedOnce.Do(func() {
		sharedStore, sharedErr = Open(ctx, cfg)
	})
	return sharedStore, sharedErr
}
