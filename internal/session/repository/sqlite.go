package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

const defaultSlot = "current"

// SQLiteRepository stores the session blob in the session_records table created by the db migrations.
type SQLiteRepository struct {
	db   *sql.DB
	slot string
}

// NewSQLiteRepository returns a repository backed by db. The schema must already be migrated.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, slot: defaultSlot}
}

// Load returns the stored blob, or nil if no row exists.
// It returns an error only for database failures, not for missing rows.
func (r *SQLiteRepository) Load(ctx context.Context) ([]byte, error) {
	var blob []byte
	err := r.db.QueryRowContext(ctx, `SELECT blob FROM session_records WHERE slot = ?`, r.slot).Scan(&blob)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return blob, nil
}

// Save upserts the blob for the device slot.
func (r *SQLiteRepository) Save(ctx context.Context, blob []byte) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO session_records (slot, blob, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(slot) DO UPDATE SET blob = excluded.blob, updated_at = excluded.updated_at`,
		r.slot, blob, time.Now().UTC().Unix())
	return err
}

// Clear deletes the device slot.
func (r *SQLiteRepository) Clear(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM session_records WHERE slot = ?`, r.slot)
	return err
}
