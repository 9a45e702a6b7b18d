package app

import (
	"context"
	"strings"
	"testing"
	"time"

	"datanomics/adapters/backend"
	"datanomics/adapters/chart"
	"datanomics/domain/analysis"
	"datanomics/domain/core"
	"datanomics/domain/stage"
	sessionstore "datanomics/internal/session"
	"datanomics/internal/stages"
	"datanomics/internal/testkit"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fixture struct {
	fake    *testkit.FakeBackend
	backend *backend.Client
	blobs   *sessionstore.LocalBlobStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fake := testkit.NewFakeBackend()
	srv := fake.StartServer()
	t.Cleanup(srv.Close)

	gw, err := backend.NewGateway(backend.Config{BaseURL: srv.URL, Timeout: 5 * time.Second}, nil)
	require.NoError(t, err)
	blobs, err := sessionstore.NewLocalBlobStore(t.TempDir())
	require.NoError(t, err)
	return &fixture{fake: fake, backend: backend.NewClient(gw), blobs: blobs}
}

func (f *fixture) controller(t *testing.T) *Controller {
	t.Helper()
	c := NewController(f.backend, Options{
		SessionID:  core.NewSessionID(),
		CacheStore: f.blobs,
		Engine:     chart.NewEngine(chart.Config{Dir: t.TempDir(), Width: 320, Height: 200}, nil),
	})
	t.Cleanup(c.Close)
	return c
}

func (f *fixture) panel(t *testing.T) []byte {
	t.Helper()
	cfg := testkit.DefaultMacroConfig()
	cfg.MissingRate = 0
	data, err := testkit.NewMacroDataGenerator(cfg).CSV()
	require.NoError(t, err)
	return data
}

func TestController_StartsOnUploadWithEmptySession(t *testing.T) {
	c := newFixture(t).controller(t)

	tr := c.Start(context.Background())
	assert.Equal(t, stage.StageUpload, tr.To)
	assert.True(t, c.Session().IsEmpty())

	tr = c.Go(context.Background(), stage.StageVisualize)
	assert.True(t, tr.Redirected)
	assert.Equal(t, stage.StageUpload, c.Current())

	tr = c.GoPath(context.Background(), "/no-such-page")
	assert.Equal(t, stage.StageNotFound, tr.To)
}

func TestController_UploadMovesToPrepareAndSurvivesRestart(t *testing.T) {
	f := newFixture(t)
	c := f.controller(t)
	c.Start(context.Background())

	out, err := c.UploadFile(context.Background(), "macro.csv", strings.NewReader(string(f.panel(t))))
	require.NoError(t, err)
	assert.Len(t, out.Session.FullDataset, 62)
	assert.Equal(t, stage.StagePrepare, c.Current())

	restarted := f.controller(t)
	restarted.Start(context.Background())
	sess := restarted.Session()
	assert.Equal(t, "macro.csv", sess.Filename)
	assert.Equal(t, testkit.MacroColumns, sess.Columns)
	assert.Len(t, sess.FullDataset, 62)

	tr := restarted.Go(context.Background(), stage.StageVisualize)
	assert.False(t, tr.Redirected)
	restarted.Visualize.Wait()
	assert.Equal(t, []string{"year", "gdp_growth", "inflation", "unemployment"}, restarted.Visualize.Variables())
	assert.Len(t, restarted.Visualize.Surfaces(), 3)
}

func TestController_CleaningIsCached(t *testing.T) {
	f := newFixture(t)
	c := f.controller(t)
	c.Start(context.Background())
	_, err := c.UploadFile(context.Background(), "macro.csv", strings.NewReader(string(f.panel(t))))
	require.NoError(t, err)

	rows, err := c.Prepare.Clean(context.Background(), analysis.OpRemoveDuplicates)
	require.NoError(t, err)
	assert.Len(t, rows, 60)

	cached, ok, err := c.Cache.Load(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, cached.FullDataset, 60)
}

func TestController_NewUploadClearsModelResult(t *testing.T) {
	f := newFixture(t)
	c := f.controller(t)
	c.Start(context.Background())
	_, err := c.UploadFile(context.Background(), "macro.csv", strings.NewReader(string(f.panel(t))))
	require.NoError(t, err)

	c.Go(context.Background(), stage.StageModel)
	require.NoError(t, c.Model.Assign("gdp_growth", stages.RoleEndogenous))
	_, err = c.Model.Run(context.Background())
	require.NoError(t, err)
	require.False(t, c.Slot.Get().IsEmpty())

	c.Go(context.Background(), stage.StageUpload)
	_, err = c.UploadFile(context.Background(), "again.csv", strings.NewReader(string(f.panel(t))))
	require.NoError(t, err)
	assert.True(t, c.Slot.Get().IsEmpty())

	_, err = c.Report.Generate(context.Background())
	assert.Error(t, err)
}

func TestController_ResetClearsEverything(t *testing.T) {
	f := newFixture(t)
	c := f.controller(t)
	c.Start(context.Background())
	_, err := c.UploadFile(context.Background(), "macro.csv", strings.NewReader(string(f.panel(t))))
	require.NoError(t, err)
	c.Slot.Set("OLS Regression Results")

	require.NoError(t, c.Reset(context.Background()))

	assert.True(t, c.Session().IsEmpty())
	assert.True(t, c.Slot.Get().IsEmpty())
	assert.Equal(t, stage.StageUpload, c.Current())
	_, ok, err := c.Cache.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	restarted := f.controller(t)
	restarted.Start(context.Background())
	assert.True(t, restarted.Session().IsEmpty())
}
