package repository

import (
	"context"
	"fmt"
)

// Config selects and configures a backend.
type Config struct {
	Backend     string
	DatabaseURL string
	SQLitePath  string
}

// Open creates the configured store. The caller owns Close.
func Open(ctx context.Context, cfg Config, opts ...Option) (Store, error) {
	switch cfg.Backend {
	case BackendMemory, "":
		return NewMemStore(opts...), nil
	case BackendPostgres:
		s, err := NewPostgresStore(ctx, cfg.DatabaseURL, opts...)
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendSQLite:
		s, err := NewSQLiteStore(ctx, cfg.SQLitePath, opts...)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}
