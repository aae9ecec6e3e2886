package secret

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"filippo.io/age"
)

const blobPrefix = "secrets/"

// SealedStore encrypts every secret to an age X25519 recipient before handing
// it to a BlobStore. Only holders of the identity can recover the plaintext.
type SealedStore struct {
	blobs    BlobStore
	identity *age.X25519Identity

	// mu serializes the existence check with the write in Put.
	mu sync.Mutex
}

// NewSealedStore creates a store sealing to identity's recipient.
func NewSealedStore(blobs BlobStore, identity *age.X25519Identity) *SealedStore {
	return &SealedStore{blobs: blobs, identity: identity}
}

// Put seals v under id. It fails with ErrExists if id is already present.
func (s *SealedStore) Put(ctx context.Context, id string, v Value) error {
	if id == "" {
		return fmt.Errorf("secret id cannot be empty")
	}
	if v.IsZero() {
		return fmt.Errorf("secret %s: refusing to store an empty value", id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, found, err := s.blobs.GetBlob(ctx, blobPrefix+id)
	if err != nil {
		return fmt.Errorf("failed to check secret %s: %w", id, err)
	}
	if found {
		return fmt.Errorf("secret %s: %w", id, ErrExists)
	}

	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, s.identity.Recipient())
	if err != nil {
		return fmt.Errorf("failed to create age encryptor: %w", err)
	}
	plain := v.Reveal()
	_, err = w.Write(plain)
	zero(plain)
	if err != nil {
		return fmt.Errorf("failed to seal secret %s: %w", id, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finalize sealed secret %s: %w", id, err)
	}

	if err := s.blobs.PutBlob(ctx, blobPrefix+id, buf.Bytes()); err != nil {
		return fmt.Errorf("failed to store sealed secret %s: %w", id, err)
	}
	return nil
}

// Get unseals the secret stored under id.
func (s *SealedStore) Get(ctx context.Context, id string) (Value, error) {
	data, found, err := s.blobs.GetBlob(ctx, blobPrefix+id)
	if err != nil {
		return Value{}, fmt.Errorf("failed to read secret %s: %w", id, err)
	}
	if !found {
		return Value{}, fmt.Errorf("secret %s: %w", id, ErrNotFound)
	}

	r, err := age.Decrypt(bytes.NewReader(data), s.identity)
	if err != nil {
		return Value{}, fmt.Errorf("failed to unseal secret %s: %w", id, err)
	}
	plain, err := io.ReadAll(r)
	if err != nil {
		return Value{}, fmt.Errorf("failed to read unsealed secret %s: %w", id, err)
	}
	v := New(plain)
	zero(plain)
	return v, nil
}

// Has reports whether a secret exists under id.
func (s *SealedStore) Has(ctx context.Context, id string) (bool, error) {
	_, found, err := s.blobs.GetBlob(ctx, blobPrefix+id)
	if err != nil {
		return false, fmt.Errorf("failed to check secret %s: %w", id, err)
	}
	return found, nil
}

// Delete removes the secret. Deleting a missing secret is not an error.
func (s *SealedStore) Delete(ctx context.Context, id string) error {
	if err := s.blobs.DeleteBlob(ctx, blobPrefix+id); err != nil {
		return fmt.Errorf("failed to delete secret %s: %w", id, err)
	}
	return nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
