package ui

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"datanomics/adapters/backend"
	"datanomics/adapters/chart"
	"datanomics/app"
	"datanomics/domain/core"
	"datanomics/domain/stage"
	"datanomics/internal/errors"
	"datanomics/internal/testkit"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixtureCSV = "year,gdp,country\n2019,1.5,EG\n2020,-2.1,EG\n2021,3.3,EG\n"

func newTestApp(t *testing.T) (*App, *app.Controller) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	srv := testkit.NewFakeBackend().StartServer()
	t.Cleanup(srv.Close)

	gw, err := backend.NewGateway(backend.Config{BaseURL: srv.URL, Timeout: 5 * time.Second}, nil)
	require.NoError(t, err)
	c := app.NewController(backend.NewClient(gw), app.Options{
		Engine: chart.NewEngine(chart.Config{Dir: t.TempDir(), Width: 320, Height: 200}, nil),
	})
	c.Start(context.Background())
	t.Cleanup(c.Close)

	a, err := NewApp(Config{Addr: "127.0.0.1:0"}, c, nil)
	require.NoError(t, err)
	return a, c
}

func get(t *testing.T, a *App, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestApp_EmptySession(t *testing.T) {
	a, _ := newTestApp(t)

	rec := get(t, a, "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "No dataset loaded.")

	rec = get(t, a, "/export/cleaned_data.csv")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "No data to export")

	rec = get(t, a, "/report/en")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = get(t, a, "/charts/0.png")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestApp_LoadedSession(t *testing.T) {
	a, c := newTestApp(t)
	_, err := c.UploadFile(context.Background(), "gdp.csv", strings.NewReader(fixtureCSV))
	require.NoError(t, err)
	c.Go(context.Background(), stage.StageVisualize)
	c.Visualize.Wait()

	rec := get(t, a, "/api/session")
	require.Equal(t, http.StatusOK, rec.Code)
	var sess sessionView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))
	assert.Equal(t, "gdp.csv", sess.Filename)
	assert.Equal(t, 3, sess.RowCount)
	assert.Equal(t, stage.StageVisualize, sess.Stage)
	assert.Equal(t, c.ID.String(), sess.SessionID)

	rec = get(t, a, "/api/dashboard")
	var dash dashboardView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dash))
	assert.Equal(t, []string{"year", "gdp"}, dash.Variables)
	assert.Equal(t, "year", dash.Selected)
	require.Len(t, dash.Charts, 3)

	rec = get(t, a, dash.Charts[0].URL)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "\x89PNG"))

	rec = get(t, a, "/export/cleaned_data.csv")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "year,gdp,country\n2019,1.5,EG\n2020,-2.1,EG\n2021,3.3,EG", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "cleaned_data.csv")

	rec = get(t, a, "/export/cleaned_data.xlsx")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = get(t, a, "/")
	assert.Contains(t, rec.Body.String(), "gdp.csv")
	assert.Contains(t, rec.Body.String(), "/charts/2.png")
}

func TestApp_Report(t *testing.T) {
	a, c := newTestApp(t)
	c.Go(context.Background(), stage.StageReport)
	c.Slot.Set("OLS Regression Results")
	_, err := c.Report.Generate(context.Background())
	require.NoError(t, err)

	rec := get(t, a, "/report/en")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<h1")

	rec = get(t, a, "/report/ar/download")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "AI_Econometrics_Report_AR.txt")

	rec = get(t, a, "/report/fr")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = get(t, a, "/api/support")
	assert.JSONEq(t, `{"count":1000}`, strings.TrimSpace(rec.Body.String()))
}

func TestWriteError_Status(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", errors.ValidationError("No data to export"), http.StatusNotFound},
		{"in flight", core.NewInFlightError("run-model"), http.StatusConflict},
		{"stale", fmt.Errorf("model: %w", core.ErrStaleResponse), http.StatusConflict},
		{"gateway", &errors.GatewayError{Status: 500, Message: "worker crashed"}, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, tt.err)
			assert.Equal(t, tt.want, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.err.Error())
		})
	}
}
