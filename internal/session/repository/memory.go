package repository

import (
	"context"
	"sync"
)

// MemoryRepository keeps the blob in process memory. Nothing survives a restart.
type MemoryRepository struct {
	mu   sync.RWMutex
	blob []byte
}

// NewMemoryRepository returns an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

// Load returns a copy of the stored blob, or nil.
func (r *MemoryRepository) Load(ctx context.Context) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.blob == nil {
		return nil, nil
	}
	return append([]byte(nil), r.blob...), nil
}

// Save stores a copy of blob.
func (r *MemoryRepository) Save(ctx context.Context, blob []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blob = append([]byte(nil), blob...)
	return nil
}

// Clear drops the stored blob.
func (r *MemoryRepository) Clear(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blob = nil
	return nil
}
