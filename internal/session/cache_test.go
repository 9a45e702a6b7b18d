package session

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"datanomics/domain/core"
	"datanomics/domain/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingStore struct {
	puts int
}

func (f *failingStore) Put(ctx context.Context, key string, data []byte) error {
	f.puts++
	return errors.New("quota exceeded")
}

func (f *failingStore) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, core.NewNotFoundError("blob", key)
}

func (f *failingStore) Delete(ctx context.Context, key string) error { return nil }

func newFileCache(t *testing.T) (*Cache, *LocalBlobStore) {
	t.Helper()
	blobs, err := NewLocalBlobStore(t.TempDir())
	require.NoError(t, err)
	return NewCache(blobs, core.NewSessionID(), nil), blobs
}

func TestCache_WritesOnEveryNonEmptyChange(t *testing.T) {
	cache, blobs := newFileCache(t)
	store := NewStore(nil)
	cache.Attach(store)

	store.Replace(session.Patch{}.WithColumns([]string{"x"}))
	_, err := blobs.Get(context.Background(), CacheKey)
	assert.True(t, core.IsNotFoundError(err), "empty filename must not be cached")

	store.Replace(session.Patch{}.WithFilename("gdp.csv").WithFullDataset(rows(1, 2)))
	loaded, ok, err := cache.Load(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "gdp.csv", loaded.Filename)
	assert.Len(t, loaded.FullDataset, 2)

	store.Replace(session.Patch{}.WithFullDataset(rows(5)))
	loaded, _, _ = cache.Load(context.Background())
	assert.Len(t, loaded.FullDataset, 1)
}

func TestCache_WriteFailureIsSwallowed(t *testing.T) {
	failing := &failingStore{}
	cache := NewCache(failing, core.NewSessionID(), nil)
	store := NewStore(nil)
	cache.Attach(store)

	assert.NotPanics(t, func() {
		store.Replace(session.Patch{}.WithFilename("big.csv"))
	})
	assert.Equal(t, 1, failing.puts)
	assert.Equal(t, "big.csv", store.Get().Filename)
}

func TestCache_SchemaMismatchIsTreatedAsAbsent(t *testing.T) {
	cache, blobs := newFileCache(t)
	ctx := context.Background()

	legacy, err := json.Marshal(map[string]interface{}{
		"filename":    "old.csv",
		"fullDataset": []map[string]int{{"x": 1}},
	})
	require.NoError(t, err)
	require.NoError(t, blobs.Put(ctx, CacheKey, legacy))

	_, ok, err := cache.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCache_RehydrateAndClear(t *testing.T) {
	cache, _ := newFileCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Save(ctx, session.AnalysisSession{Filename: "keep.csv", FullDataset: rows(4)}))

	store := NewStore(nil)
	ok, err := cache.Rehydrate(ctx, store)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "keep.csv", store.Get().Filename)

	require.NoError(t, cache.Clear(ctx))
	_, ok, err = cache.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, cache.Clear(ctx))
}

func TestLocalBlobStore_RejectsEmptyKey(t *testing.T) {
	blobs, err := NewLocalBlobStore(t.TempDir())
	require.NoError(t, err)
	assert.Error(t, blobs.Put(context.Background(), " ", []byte("x")))
}

func TestLocalBlobStore_Metadata(t *testing.T) {
	ctx := context.Background()
	blobs, err := NewLocalBlobStore(t.TempDir())
	require.NoError(t, err)

	_, err = blobs.Metadata(ctx, CacheKey)
	assert.True(t, core.IsNotFoundError(err))

	require.NoError(t, blobs.Put(ctx, CacheKey, []byte(`{"a":1}`)))
	meta, err := blobs.Metadata(ctx, CacheKey)
	require.NoError(t, err)
	assert.Equal(t, CacheKey, meta.Key)
	assert.EqualValues(t, 7, meta.Size)
	assert.False(t, meta.LastModified.IsZero())
}
