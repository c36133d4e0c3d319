package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrAPIKeyNotFound indicates no active API key matched.
var ErrAPIKeyNotFound = errors.New("api key not found")

// APIKey is a row of the api_keys table. The key itself is never stored,
// only its HMAC.
type APIKey struct {
	ID         string       `db:"api_key_id"`
	Name       string       `db:"name"`
	CreatedAt  time.Time    `db:"created_at"`
	LastUsedAt sql.NullTime `db:"last_used_at"`
	RevokedAt  sql.NullTime `db:"revoked_at"`
}

// APIKeyStore persists API key hashes.
type APIKeyStore struct {
	q *Queries
}

// NewAPIKeyStore creates an API key store over q.
func NewAPIKeyStore(q *Queries) *APIKeyStore {
	return &APIKeyStore{q: q}
}

// Insert records the hash of a newly minted key and returns its row.
func (s *APIKeyStore) Insert(ctx context.Context, name string, keyHash []byte) (*APIKey, error) {
	key := &APIKey{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := s.q.ExecContext(ctx, "insert-api-key", key.ID, key.Name, keyHash, key.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to insert api key: %w", err)
	}
	return key, nil
}

// List returns every key, revoked ones included, oldest first.
func (s *APIKeyStore) List(ctx context.Context) ([]APIKey, error) {
	var keys []APIKey
	if err := s.q.SelectContext(ctx, "list-api-keys", &keys); err != nil {
		return nil, fmt.Errorf("failed to list api keys: %w", err)
	}
	return keys, nil
}

// Revoke marks a key revoked. Returns ErrAPIKeyNotFound if the key does
// not exist or is already revoked.
func (s *APIKeyStore) Revoke(ctx context.Context, id string) error {
	res, err := s.q.ExecContext(ctx, "revoke-api-key", time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to revoke api key: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to revoke api key: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrAPIKeyNotFound, id)
	}
	return nil
}
