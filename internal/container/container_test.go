package container

import (
	"context"
	"testing"
	"time"

	"datanomics/internal/config"
	"datanomics/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		Backend: config.BackendConfig{URL: "http://localhost:5000", Timeout: time.Second},
		Cache:   config.CacheConfig{Backend: config.CacheFile, Dir: t.TempDir()},
		Charts:  config.ChartConfig{Dir: t.TempDir(), Width: 320, Height: 200},
		Data:    config.DataConfig{PreviewRows: 5},
	}
}

func TestNew_RejectsNilConfig(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}

func TestNew_WiresFileCache(t *testing.T) {
	c, err := New(testConfig(t))
	require.NoError(t, err)
	require.NoError(t, c.InitCache(context.Background()))
	defer c.Shutdown(context.Background())

	assert.IsType(t, &session.LocalBlobStore{}, c.CacheStore)
	assert.Equal(t, "http://localhost:5000", c.Gateway.BaseURL())

	s := c.NewSession()
	require.NotNil(t, s.Cache)
	assert.False(t, s.ID == "")
}

func TestNew_InvalidBackendURL(t *testing.T) {
	cfg := testConfig(t)
	cfg.Backend.URL = "not a url"
	_, err := New(cfg)
	assert.Error(t, err)
}
