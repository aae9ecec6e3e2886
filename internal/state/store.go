package state

import (
	"context"
	"errors"

	"github.com/imamik/svmzner/internal/secret"
)

// ErrNotFound is returned when a deployment has no record.
var ErrNotFound = errors.New("deployment record not found")

// Store persists deployment records and sealed secret blobs.
type Store interface {
	Load(ctx context.Context, deployment string) (*Record, error)
	Save(ctx context.Context, r *Record) error
	Delete(ctx context.Context, deployment string) error
	Close() error

	secret.BlobStore
}
