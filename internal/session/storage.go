package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"datanomics/domain/core"
	"datanomics/internal/errors"
)

// BlobMetadata represents metadata for stored blobs
type BlobMetadata struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}

// LocalBlobStore implements ports.SessionCacheStore on the local filesystem.
// It is the desktop stand-in for browser local storage.
type LocalBlobStore struct {
	basePath string
}

// NewLocalBlobStore creates a new local blob store
func NewLocalBlobStore(basePath string) (*LocalBlobStore, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, errors.ResourceError(fmt.Sprintf("failed to create cache directory %s", basePath), err)
	}
	return &LocalBlobStore{basePath: basePath}, nil
}

// Put writes data under key, replacing any previous value. The write goes
// through a temp file and rename so readers never see a torn value.
func (lbs *LocalBlobStore) Put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	filePath, err := lbs.keyToPath(key)
	if err != nil {
		return err
	}

	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.ResourceError(fmt.Sprintf("failed to create directory %s", dir), err)
	}

	tmp, err := os.CreateTemp(dir, ".blob-*")
	if err != nil {
		return errors.ResourceError("failed to create temp file", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.ResourceError(fmt.Sprintf("failed to write blob %s", key), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.ResourceError(fmt.Sprintf("failed to close blob %s", key), err)
	}
	if err := os.Rename(tmpName, filePath); err != nil {
		os.Remove(tmpName)
		return errors.ResourceError(fmt.Sprintf("failed to commit blob %s", key), err)
	}
	return nil
}

// Get reads the value stored under key
func (lbs *LocalBlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	filePath, err := lbs.keyToPath(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, core.NewNotFoundError("blob", key)
		}
		return nil, errors.ResourceError(fmt.Sprintf("failed to read blob %s", key), err)
	}
	return data, nil
}

// Delete removes a blob; deleting a missing key is not an error
func (lbs *LocalBlobStore) Delete(ctx context.Context, key string) error {
	filePath, err := lbs.keyToPath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
		return errors.ResourceError(fmt.Sprintf("failed to delete blob %s", key), err)
	}
	return nil
}

// Metadata returns size and modification time of a stored blob
func (lbs *LocalBlobStore) Metadata(ctx context.Context, key string) (*BlobMetadata, error) {
	filePath, err := lbs.keyToPath(key)
	if err != nil {
		return nil, err
	}
	stat, err := os.Stat(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, core.NewNotFoundError("blob", key)
		}
		return nil, errors.ResourceError("failed to stat blob", err)
	}
	return &BlobMetadata{Key: key, Size: stat.Size(), LastModified: stat.ModTime()}, nil
}

// keyToPath converts a slash-separated key to a path under basePath
func (lbs *LocalBlobStore) keyToPath(key string) (string, error) {
	clean := filepath.Clean("/" + strings.TrimSpace(key))
	if clean == "/" {
		return "", errors.InvalidInput("blob key cannot be empty")
	}
	return filepath.Join(lbs.basePath, filepath.FromSlash(clean)+".json"), nil
}
