package repository

import "context"

// Repository persists the opaque session blob. There is a single slot per device.
type Repository interface {
	// Load returns the stored blob, or (nil, nil) when nothing is stored.
	Load(ctx context.Context) ([]byte, error)
	// Save replaces the stored blob.
	Save(ctx context.Context, blob []byte) error
	// Clear removes the stored blob. Clearing an empty slot is not an error.
	Clear(ctx context.Context) error
}
