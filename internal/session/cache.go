package session

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"datanomics/domain/core"
	"datanomics/domain/session"
	"datanomics/internal"
	"datanomics/internal/errors"
	"datanomics/ports"
)

// CacheKey is the fixed storage key of the serialized session
const CacheKey = "analysisData"

// Cache is the best-effort durable copy of the session store. Writes are
// driven by store notifications; reads are left to whoever wants to rehydrate.
type Cache struct {
	store     ports.SessionCacheStore
	sessionID core.SessionID
	timeout   time.Duration
	now       func() time.Time
	logger    *internal.Logger
}

// NewCache creates a cache writing to store on behalf of sessionID
func NewCache(store ports.SessionCacheStore, sessionID core.SessionID, logger *internal.Logger) *Cache {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Cache{
		store:     store,
		sessionID: sessionID,
		timeout:   5 * time.Second,
		now:       time.Now,
		logger:    logger.With("SessionCache"),
	}
}

// Attach subscribes the cache to the store. Every change with a non-empty
// filename is written; failures are logged and swallowed.
func (c *Cache) Attach(s *Store) func() {
	return s.Subscribe(func(next session.AnalysisSession, _ bool) {
		if next.IsEmpty() {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()
		if err := c.Save(ctx, next); err != nil {
			c.logger.Warn("cache write skipped: %v", err)
		}
	})
}

// Save serializes the session under CacheKey, overwriting any prior value
func (c *Cache) Save(ctx context.Context, sess session.AnalysisSession) error {
	if sess.IsEmpty() {
		return nil
	}
	snap := session.Snapshot{
		SchemaVersion: session.SchemaVersion,
		SessionID:     c.sessionID,
		SavedAt:       c.now().UTC(),
		Session:       sess,
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return errors.ResourceError("failed to serialize session", err)
	}
	if err := c.store.Put(ctx, CacheKey, data); err != nil {
		return errors.ResourceError("failed to persist session", err)
	}
	c.logger.Trace("cached session %s (%d bytes)", c.sessionID, len(data))
	return nil
}

// Load reads the cached session. ok is false when nothing usable is cached,
// including entries written under a different schema version.
func (c *Cache) Load(ctx context.Context) (session.AnalysisSession, bool, error) {
	data, err := c.store.Get(ctx, CacheKey)
	if err != nil {
		if core.IsNotFoundError(err) {
			return session.Empty(), false, nil
		}
		return session.Empty(), false, errors.ResourceError("failed to read cached session", err)
	}

	var snap session.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		c.logger.Warn("ignoring unreadable cached session: %v", err)
		return session.Empty(), false, nil
	}
	if snap.SchemaVersion != session.SchemaVersion {
		c.logger.Info("ignoring cached session: %v (have %d, want %d)", core.ErrSchemaMismatch, snap.SchemaVersion, session.SchemaVersion)
		return session.Empty(), false, nil
	}
	if snap.Session.IsEmpty() {
		return session.Empty(), false, nil
	}
	return session.ReplaceAll(snap.Session).Apply(session.Empty()), true, nil
}

// Rehydrate loads the cached session into the store, if one exists
func (c *Cache) Rehydrate(ctx context.Context, s *Store) (bool, error) {
	sess, ok, err := c.Load(ctx)
	if err != nil || !ok {
		return false, err
	}
	s.Load(sess)
	c.logger.Info("rehydrated session %q (%d rows)", sess.Filename, len(sess.FullDataset))
	return true, nil
}

// Clear removes the cached session
func (c *Cache) Clear(ctx context.Context) error {
	if err := c.store.Delete(ctx, CacheKey); err != nil && !stderrors.Is(err, core.ErrNotFound) {
		return errors.ResourceError(fmt.Sprintf("failed to clear %s", CacheKey), err)
	}
	return nil
}
