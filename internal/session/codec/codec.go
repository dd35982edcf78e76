// Package codec serializes the persisted {token, user} pair, optionally sealing it with a key
// derived from a device secret.
package codec

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"gig-marketplace/client/internal/session/domain"
)

// ErrCorruptRecord is returned by Decode for any blob that cannot be turned back into a valid Record.
var ErrCorruptRecord = errors.New("codec: corrupt session record")

var hkdfInfo = []byte("gig-marketplace session record v1")

// Codec encodes and decodes session records. The zero value stores plain JSON.
type Codec struct {
	aead interface {
		NonceSize() int
		Overhead() int
		Seal(dst, nonce, plaintext, additionalData []byte) []byte
		Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
	}
}

// New returns a Codec. When secret is empty records are stored as plain JSON; otherwise they are
// sealed with XChaCha20-Poly1305 under a key derived from secret with HKDF-SHA256.
func New(secret string) (*Codec, error) {
	if secret == "" {
		return &Codec{}, nil
	}
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, hkdfInfo), key); err != nil {
		return nil, fmt.Errorf("codec: derive key: %w", err)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("codec: init cipher: %w", err)
	}
	return &Codec{aead: aead}, nil
}

// Sealed reports whether records are encrypted.
func (c *Codec) Sealed() bool {
	return c != nil && c.aead != nil
}

// Encode serializes rec. The record must satisfy domain.Record.Valid.
func (c *Codec) Encode(rec domain.Record) ([]byte, error) {
	if !rec.Valid() {
		return nil, errors.New("codec: token and user must be set together")
	}
	plain, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("codec: marshal: %w", err)
	}
	if !c.Sealed() {
		return plain, nil
	}
	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(plain)+c.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("codec: nonce: %w", err)
	}
	return c.aead.Seal(nonce, nonce, plain, nil), nil
}

// Decode parses a blob produced by Encode. Every failure is reported as ErrCorruptRecord.
func (c *Codec) Decode(blob []byte) (domain.Record, error) {
	plain := blob
	if c.Sealed() {
		ns := c.aead.NonceSize()
		if len(blob) < ns+c.aead.Overhead() {
			return domain.Record{}, ErrCorruptRecord
		}
		var err error
		plain, err = c.aead.Open(nil, blob[:ns], blob[ns:], nil)
		if err != nil {
			return domain.Record{}, ErrCorruptRecord
		}
	}
	var rec domain.Record
	if err := json.Unmarshal(plain, &rec); err != nil {
		return domain.Record{}, ErrCorruptRecord
	}
	if !rec.Valid() {
		return domain.Record{}, ErrCorruptRecord
	}
	return rec, nil
}
