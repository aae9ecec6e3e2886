package state

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore is an in-process Store. Records are stored encoded so that
// tests exercise the same serialization as the durable backends.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string][]byte
	blobs   map[string][]byte
	saves   int
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: map[string][]byte{}, blobs: map[string][]byte{}}
}

func (m *MemoryStore) Load(_ context.Context, deployment string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.records[deployment]
	if !ok {
		return nil, fmt.Errorf("%s: %w", deployment, ErrNotFound)
	}
	return Decode(data)
}

func (m *MemoryStore) Save(_ context.Context, r *Record) error {
	data, err := Encode(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[r.Deployment] = data
	m.saves++
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, deployment string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, deployment)
	return nil
}

func (m *MemoryStore) PutBlob(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = append([]byte(nil), data...)
	return nil
}

func (m *MemoryStore) GetBlob(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.blobs[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), data...), true, nil
}

func (m *MemoryStore) DeleteBlob(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, key)
	return nil
}

// BlobKeys lists the stored blob keys.
func (m *MemoryStore) BlobKeys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.blobs))
	for k := range m.blobs {
		out = append(out, k)
	}
	return out
}

// RawRecord returns the encoded record bytes.
func (m *MemoryStore) RawRecord(deployment string) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.records[deployment]...)
}

// Saves counts successful Save calls.
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func (m *MemoryStore) Close() error { return nil }
