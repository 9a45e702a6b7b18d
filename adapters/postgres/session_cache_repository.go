package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"datanomics/domain/core"
	"datanomics/internal/errors"
	"datanomics/ports"

	"github.com/jmoiron/sqlx"
)

// SessionCacheRepository is the Postgres-backed durable session cache store.
// Entries are scoped by namespace so several workstations can share a database.
type SessionCacheRepository struct {
	db        *sqlx.DB
	namespace string
	now       func() time.Time
}

var _ ports.SessionCacheStore = (*SessionCacheRepository)(nil)

// NewSessionCacheRepository creates a repository for one namespace
func NewSessionCacheRepository(db *sqlx.DB, namespace string) *SessionCacheRepository {
	if namespace == "" {
		namespace = "default"
	}
	return &SessionCacheRepository{db: db, namespace: namespace, now: time.Now}
}

// Put upserts the payload under key
func (r *SessionCacheRepository) Put(ctx context.Context, key string, data []byte) error {
	query := `
		INSERT INTO session_cache (namespace, cache_key, payload, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (namespace, cache_key) DO UPDATE SET
			payload = EXCLUDED.payload,
			updated_at = EXCLUDED.updated_at`

	if _, err := r.db.ExecContext(ctx, query, r.namespace, key, data, r.now().UTC()); err != nil {
		return errors.ResourceError(fmt.Sprintf("failed to save cache entry %s", key), err)
	}
	return nil
}

// Get returns the payload stored under key
func (r *SessionCacheRepository) Get(ctx context.Context, key string) ([]byte, error) {
	query := `
		SELECT payload
		FROM session_cache
		WHERE namespace = $1 AND cache_key = $2`

	var payload []byte
	if err := r.db.GetContext(ctx, &payload, query, r.namespace, key); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, core.NewNotFoundError("cache entry", key)
		}
		return nil, errors.ResourceError(fmt.Sprintf("failed to load cache entry %s", key), err)
	}
	return payload, nil
}

// Delete removes key; a missing key is not an error
func (r *SessionCacheRepository) Delete(ctx context.Context, key string) error {
	query := `DELETE FROM session_cache WHERE namespace = $1 AND cache_key = $2`
	if _, err := r.db.ExecContext(ctx, query, r.namespace, key); err != nil {
		return errors.ResourceError(fmt.Sprintf("failed to delete cache entry %s", key), err)
	}
	return nil
}

// CacheEntry is one row of the cache listing
type CacheEntry struct {
	Key       string    `db:"cache_key"`
	Size      int       `db:"size"`
	UpdatedAt time.Time `db:"updated_at"`
}

// List returns the entries of the namespace, newest first
func (r *SessionCacheRepository) List(ctx context.Context) ([]CacheEntry, error) {
	query := `
		SELECT cache_key, octet_length(payload) AS size, updated_at
		FROM session_cache
		WHERE namespace = $1
		ORDER BY updated_at DESC`

	var entries []CacheEntry
	if err := r.db.SelectContext(ctx, &entries, query, r.namespace); err != nil {
		return nil, errors.ResourceError("failed to list cache entries", err)
	}
	return entries, nil
}
