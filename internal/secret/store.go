package secret

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when no secret exists under an ID.
	ErrNotFound = errors.New("secret not found")
	// ErrExists is returned when Put targets an ID that is already sealed.
	ErrExists = errors.New("secret already exists")
)

// Store persists secrets by ID. Implementations must never overwrite an
// existing ID.
type Store interface {
	Put(ctx context.Context, id string, v Value) error
	Get(ctx context.Context, id string) (Value, error)
	Has(ctx context.Context, id string) (bool, error)
	Delete(ctx context.Context, id string) error
}

// BlobStore is the opaque byte storage a SealedStore writes ciphertext to.
// The deployment state backends implement it.
type BlobStore interface {
	PutBlob(ctx context.Context, key string, data []byte) error
	// GetBlob returns found=false when the key does not exist.
	GetBlob(ctx context.Context, key string) (data []byte, found bool, err error)
	DeleteBlob(ctx context.Context, key string) error
}
