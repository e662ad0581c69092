// Package storage is the durable local state of the storefront client:
// the persisted cart, the auth token and UI preferences, stored as
// schema-versioned key-value pairs. Only the owning component writes a key.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// SchemaVersion tags every persisted JSON blob. Bump it when a stored format
// changes; readers discard blobs written under a different version instead
// of misparsing them.
const SchemaVersion = 1

// Reserved keys. KeyCart is written only by the cart store, KeyAuthToken
// only by the customer client, the preference keys only by the preferences
// helper.
const (
	KeyCart          = "cart"
	KeyAuthToken     = "auth_token"
	KeyLanguage      = "language"
	KeyCookieConsent = "cookie_consent"
)

var (
	ErrNotFound    = errors.New("key not found")
	ErrStaleSchema = errors.New("persisted value has a stale schema version")
)

// Store is a durable key-value store.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

type envelope struct {
	Version int             `json:"schema_version"`
	Data    json.RawMessage `json:"data"`
}

// PutJSON stores v wrapped in a versioned envelope.
func PutJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	blob, err := json.Marshal(envelope{Version: SchemaVersion, Data: data})
	if err != nil {
		return fmt.Errorf("marshal envelope for %s: %w", key, err)
	}
	return s.Put(ctx, key, blob)
}

// GetJSON loads key into out. A value written under a different schema
// version yields ErrStaleSchema; callers treat that the same as absent.
func GetJSON(ctx context.Context, s Store, key string, out any) error {
	blob, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	var env envelope
	if err := json.Unmarshal(blob, &env); err != nil {
		return fmt.Errorf("unmarshal envelope for %s: %w", key, err)
	}
	if env.Version != SchemaVersion {
		return fmt.Errorf("%s: got version %d, want %d: %w", key, env.Version, SchemaVersion, ErrStaleSchema)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("unmarshal %s: %w", key, err)
	}
	return nil
}

// Absent reports whether err means "nothing usable is stored": either the
// key is missing or its schema version is stale.
func Absent(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrStaleSchema)
}
