package blob

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a key does not exist in the store.
var ErrNotFound = errors.New("blob not found")

// Store is the object storage contract the compliance core consumes.
// Put overwrites idempotently; List returns keys under a prefix in no
// particular order.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]string, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
}

// Config selects and configures a backend.
type Config struct {
	Backend   string // "s3" or "sqlite"
	Bucket    string
	Region    string
	Endpoint  string // optional custom endpoint (MinIO, LocalStack)
	Workspace string // sqlite backend directory
}

// Open constructs a Store from config.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Backend {
	case "s3":
		return NewS3Store(ctx, cfg)
	case "", "sqlite":
		return OpenSQLiteStore(cfg.Workspace)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
