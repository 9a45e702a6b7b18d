package stages

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"datanomics/adapters/backend"
	"datanomics/adapters/chart"
	"datanomics/domain/analysis"
	"datanomics/domain/core"
	"datanomics/domain/session"
	"datanomics/internal/errors"
	"datanomics/internal/testkit"
	"datanomics/internal/viz"
	"datanomics/ports"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newVisualize(t *testing.T, h *harness) *Visualize {
	t.Helper()
	engine := chart.NewEngine(chart.Config{Dir: t.TempDir(), Width: 320, Height: 200}, nil)
	return NewVisualize(h.deps, viz.NewManager(engine, nil), nil)
}

func TestVisualize_ActivationRendersFirstNumericColumn(t *testing.T) {
	h := newHarness(t)
	h.load(t)
	v := newVisualize(t, h)
	prep := NewPrepare(h.deps, PrepareOptions{})
	h.nav.Register(prep.Name(), prep)

	h.activate(t, v)
	v.Wait()

	require.NoError(t, v.Err())
	assert.Equal(t, []string{"year", "gdp", "inflation"}, v.Variables())
	assert.Equal(t, "year", v.Selected())
	assert.EqualValues(t, 4, v.Stats()["count"])
	surfaces := v.Surfaces()
	require.Len(t, surfaces, 3)

	require.NoError(t, v.Select(context.Background(), "gdp"))
	assert.Equal(t, "gdp", v.Selected())
	for _, s := range surfaces {
		assert.True(t, s.(*chart.Surface).Destroyed(), "previous surfaces are destroyed on re-render")
	}
	assert.Len(t, v.Surfaces(), 3)

	err := v.Select(context.Background(), "country")
	assert.True(t, errors.IsValidation(err))
	assert.Equal(t, "gdp", v.Selected())

	h.nav.Go(context.Background(), prep.Name())
	assert.Empty(t, v.Surfaces())
}

func TestVisualize_LateSummaryIsDropped(t *testing.T) {
	h := newHarness(t)
	h.load(t)
	v := newVisualize(t, h)
	prep := NewPrepare(h.deps, PrepareOptions{})
	h.nav.Register(prep.Name(), prep)
	release := h.fake.Hold(backend.PathSummary)

	h.activate(t, v)
	require.Eventually(t, func() bool { return h.fake.Calls(backend.PathSummary) == 1 }, 2*time.Second, 5*time.Millisecond)
	h.nav.Go(context.Background(), prep.Name())
	release()
	v.Wait()

	assert.Empty(t, v.Variables())
	assert.Empty(t, v.Surfaces())
	assert.NoError(t, v.Err())
}

func TestVisualize_FollowsStoreChanges(t *testing.T) {
	h := newHarness(t)
	h.load(t)
	v := newVisualize(t, h)
	h.activate(t, v)
	v.Wait()
	require.Len(t, v.Surfaces(), 3)

	_, err := NewPrepare(h.deps, PrepareOptions{}).Clean(context.Background(), analysis.OpRemoveMissing)
	require.NoError(t, err)
	v.Wait()
	assert.Equal(t, 2, h.fake.Calls(backend.PathSummary))
	assert.EqualValues(t, 2, v.Stats()["count"])

	h.store.Reset()
	v.Wait()
	assert.Empty(t, v.Variables())
	assert.Empty(t, v.Surfaces(), "an empty dataset is a blank dashboard")
}

// heldSummaries answers Summary with the row count of the dataset; the first
// call blocks until first is closed
type heldSummaries struct {
	ports.AnalysisBackend
	first chan struct{}

	mu    sync.Mutex
	calls int
}

func (b *heldSummaries) Summary(ctx context.Context, dataset []session.Record) (map[string]analysis.ColumnStats, error) {
	b.mu.Lock()
	b.calls++
	n := b.calls
	b.mu.Unlock()
	if n == 1 {
		<-b.first
	}
	return map[string]analysis.ColumnStats{"gdp": {"count": len(dataset)}}, nil
}

func (b *heldSummaries) Calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

func TestVisualize_OlderSummaryNeverOverwritesNewer(t *testing.T) {
	h := newHarness(t)
	h.load(t)
	held := &heldSummaries{AnalysisBackend: h.deps.Backend, first: make(chan struct{})}
	h.deps.Backend = held
	v := newVisualize(t, h)

	h.activate(t, v)
	require.Eventually(t, func() bool { return held.Calls() == 1 }, 2*time.Second, 5*time.Millisecond)

	_, err := NewPrepare(h.deps, PrepareOptions{}).Clean(context.Background(), analysis.OpRemoveMissing)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return v.Stats()["count"] == 2 }, 2*time.Second, 5*time.Millisecond)

	close(held.first)
	v.Wait()

	assert.Equal(t, 2, held.Calls())
	assert.Equal(t, 2, v.Stats()["count"], "the summary of the four-row dataset arrived last but is stale")
	assert.Equal(t, []string{"gdp"}, v.Variables())
	assert.NoError(t, v.Err())
}

func TestVisualize_SummaryFailureIsShown(t *testing.T) {
	h := newHarness(t)
	h.load(t)
	h.fake.Fail(backend.PathSummary, http.StatusBadRequest, gin.H{"error": "no numeric columns"})
	v := newVisualize(t, h)

	h.activate(t, v)
	v.Wait()

	gwErr, ok := errors.AsGatewayError(v.Err())
	require.True(t, ok)
	assert.Equal(t, "no numeric columns", gwErr.Message)
	assert.Empty(t, v.Surfaces())
}

func TestDiagnose_RunAndFormat(t *testing.T) {
	h := newHarness(t)
	h.load(t)
	d := NewDiagnose(h.deps)
	h.activate(t, d)

	res, err := d.Run(context.Background(), analysis.TestStationarity, map[string]interface{}{"maxlag": 2})
	require.NoError(t, err)
	assert.Equal(t, res, d.Result())
	assert.Equal(t, analysis.TestStationarity, d.Selected())
	text := Format(res)
	assert.Contains(t, text, "gdp")
	assert.Contains(t, text, "Stationary")

	_, err = d.Run(context.Background(), "granger", nil)
	assert.True(t, errors.IsValidation(err))
	assert.Equal(t, 1, h.fake.Calls(backend.PathRunTest))
}

func TestFormat_Shapes(t *testing.T) {
	tests := []struct {
		name string
		test analysis.DiagnosticTest
		raw  string
		want []string
	}{
		{"stationarity", analysis.TestStationarity, `[{"variable":"gdp","p_value":0.01234,"is_stationary":true}]`, []string{"gdp", "p=0.0123", "Stationary"}},
		{"vif", analysis.TestVIF, `[{"variable":"cpi","vif_factor":7.5}]`, []string{"cpi", "VIF=7.50", "high"}},
		{"lag order", analysis.TestLagOrder, `{"html_table":"<table></table>"}`, []string{"<table></table>"}},
		{"johansen", analysis.TestJohansen, `{"interpretation":"one relation","details":"trace stat"}`, []string{"one relation", "trace stat"}},
		{"autocorrelation", analysis.TestAutocorrelation, `[{"variable":"gdp","acf":[0.5,0.25],"pacf":[0.5,0.1]}]`, []string{"ACF:  0.50, 0.25", "PACF: 0.50, 0.10"}},
		{"unexpected shape", analysis.TestJohansen, `{"statistic":3}`, []string{`"statistic": 3`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Format(&analysis.DiagnosticResult{TestID: tt.test, Raw: json.RawMessage(tt.raw)})
			for _, w := range tt.want {
				assert.Contains(t, out, w)
			}
		})
	}
	assert.Empty(t, Format(nil))
}

func TestModel_RolesAndRun(t *testing.T) {
	h := newHarness(t)
	h.load(t)
	m := NewModel(h.deps, h.slot)
	h.activate(t, m)

	assert.Equal(t, []string{"year", "gdp", "inflation"}, m.Available())

	_, err := m.Run(context.Background())
	gwErr, ok := errors.AsGatewayError(err)
	require.True(t, ok)
	assert.Equal(t, "Please select at least one endogenous variable", gwErr.Message)
	assert.True(t, h.slot.Get().IsEmpty())

	require.NoError(t, m.Assign("gdp", RoleEndogenous))
	require.NoError(t, m.Assign("inflation", RoleEndogenous))
	require.NoError(t, m.Assign("inflation", RoleExogenous))
	assert.Equal(t, []string{"gdp"}, m.Endogenous())
	assert.Equal(t, []string{"inflation"}, m.Exogenous())
	assert.Equal(t, []string{"year"}, m.Available())
	assert.True(t, errors.IsValidation(m.Assign("country", RoleExogenous)))
	assert.True(t, errors.IsValidation(m.SelectModel("probit")))

	result, err := m.Run(context.Background())
	require.NoError(t, err)
	assert.Contains(t, string(result), "OLS Regression Results")
	assert.Equal(t, result, h.slot.Get())

	require.NoError(t, m.SelectModel(analysis.ModelVAR))
	h.fake.Fail(backend.PathRunModel, http.StatusInternalServerError, gin.H{"error": "did not converge"})
	_, err = m.Run(context.Background())
	require.Error(t, err)
	assert.True(t, h.slot.Get().IsEmpty(), "a failed run leaves no stale result")
}

func TestModel_ResultForReplacedDatasetIsDropped(t *testing.T) {
	tests := []struct {
		name    string
		replace func(t *testing.T, h *harness)
	}{
		{"new upload", func(t *testing.T, h *harness) {
			_, err := NewUpload(h.deps, h.slot.Clear).Upload(context.Background(), "next.csv", strings.NewReader(panelCSV))
			require.NoError(t, err)
		}},
		{"session reset", func(t *testing.T, h *harness) { h.store.Reset() }},
		{"slot cleared", func(t *testing.T, h *harness) { h.slot.Clear() }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.load(t)
			m := NewModel(h.deps, h.slot)
			h.activate(t, m)
			require.NoError(t, m.Assign("gdp", RoleEndogenous))
			require.NoError(t, m.Assign("inflation", RoleExogenous))
			release := h.fake.Hold(backend.PathRunModel)

			done := make(chan error, 1)
			go func() {
				_, err := m.Run(context.Background())
				done <- err
			}()
			require.Eventually(t, func() bool { return h.fake.Calls(backend.PathRunModel) == 1 }, 2*time.Second, 5*time.Millisecond)
			tt.replace(t, h)
			release()

			assert.True(t, core.IsStale(<-done))
			assert.True(t, h.slot.Get().IsEmpty())
		})
	}
}

func TestModel_AssignRejectsUnknownRole(t *testing.T) {
	tests := []struct {
		name     string
		variable string
		role     Role
		endo     []string
		exo      []string
	}{
		{"assigned variable", "gdp", "instrument", []string{"gdp"}, []string{"inflation"}},
		{"other assigned variable", "inflation", "", []string{"gdp"}, []string{"inflation"}},
		{"available variable", "year", "weights", []string{"gdp"}, []string{"inflation"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.load(t)
			m := NewModel(h.deps, h.slot)
			h.activate(t, m)
			require.NoError(t, m.Assign("gdp", RoleEndogenous))
			require.NoError(t, m.Assign("inflation", RoleExogenous))

			err := m.Assign(tt.variable, tt.role)
			assert.True(t, errors.IsValidation(err))
			assert.Equal(t, tt.endo, m.Endogenous())
			assert.Equal(t, tt.exo, m.Exogenous())
			assert.Equal(t, []string{"year"}, m.Available())
		})
	}
}

func TestNumericColumns_UsesFirstRow(t *testing.T) {
	sess := session.Empty()
	sess.Columns = []string{"a", "b", "c"}
	sess.FullDataset = []session.Record{
		session.NewRecord("a", json.Number("1"), "b", "x", "c", nil),
		session.NewRecord("a", json.Number("2"), "b", json.Number("3"), "c", json.Number("4")),
	}
	assert.Equal(t, []string{"a"}, NumericColumns(sess))
	assert.Equal(t, []string{}, NumericColumns(session.Empty()))
}

func TestReport_GenerateRenderAndDownload(t *testing.T) {
	h := newHarness(t)
	r := NewReport(h.deps, h.slot)
	h.activate(t, r)

	_, err := r.Generate(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
	assert.True(t, strings.HasPrefix(err.Error(), "No model results found"))
	assert.Equal(t, 0, h.fake.Calls(backend.PathReport))

	h.slot.Set("OLS Regression Results\nR-squared: 0.42")
	report, err := r.Generate(context.Background())
	require.NoError(t, err)
	assert.Contains(t, report.EnglishReport, "R-squared: 0.42")
	assert.True(t, r.Generated())

	en, err := r.HTML(English)
	require.NoError(t, err)
	assert.Contains(t, en, "<h1")
	assert.Contains(t, en, "R-squared: 0.42")
	ar, err := r.HTML(Arabic)
	require.NoError(t, err)
	assert.Contains(t, ar, `dir="rtl"`)

	dir := t.TempDir()
	path, err := r.Download(Arabic, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "AI_Econometrics_Report_AR.txt"), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, r.Text(Arabic), string(data))
}

func TestReport_DownloadBeforeGenerate(t *testing.T) {
	h := newHarness(t)
	r := NewReport(h.deps, h.slot)

	_, err := r.Download(English, t.TempDir())
	assert.True(t, errors.IsValidation(err))
	_, err = r.HTML(English)
	assert.True(t, errors.IsValidation(err))
}

func TestContact_SubmitResetsForm(t *testing.T) {
	h := newHarness(t)
	c := NewContact(h.deps)
	h.activate(t, c)

	err := c.Submit(context.Background(), analysis.Feedback{Email: "a@b.org", Rating: 6})
	assert.True(t, errors.IsValidation(err))
	assert.Equal(t, 0, h.fake.Calls(backend.PathFeedback))

	err = c.Submit(context.Background(), analysis.Feedback{Email: "nobody", Message: "hi", Rating: 3})
	require.Error(t, err)
	assert.Equal(t, "nobody", c.Form().Email, "a rejected form keeps its contents")
	assert.False(t, c.Submitted())

	fb := analysis.Feedback{Email: " a@b.org ", Subject: "Thanks", Message: "Useful tool", Rating: 5}
	require.NoError(t, c.Submit(context.Background(), fb))
	assert.True(t, c.Submitted())
	assert.Equal(t, analysis.Feedback{}, c.Form())
	require.Len(t, h.fake.Feedback(), 1)
	assert.Equal(t, "a@b.org", h.fake.Feedback()[0].Email)
}

func TestSupport_ReportCount(t *testing.T) {
	h := newHarness(t)
	s := NewSupport(h.deps)
	h.activate(t, s)
	s.Wait()
	assert.Equal(t, testkit.InitialReportCount, s.ReportCount())

	h.slot.Set("summary")
	_, err := NewReport(h.deps, h.slot).Generate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testkit.InitialReportCount+1, s.Refresh(context.Background()))

	h.fake.Fail(backend.PathReportCount, http.StatusInternalServerError, gin.H{"error": "down"})
	assert.Equal(t, FallbackReportCount, s.Refresh(context.Background()))
	assert.NoError(t, s.Err())
}

func TestSupport_SlowCounterNeverBlocksNavigation(t *testing.T) {
	h := newHarness(t)
	s := NewSupport(h.deps)
	up := NewUpload(h.deps, nil)
	h.nav.Register(up.Name(), up)
	h.nav.Register(s.Name(), s)
	h.slot.Set("summary")
	_, err := NewReport(h.deps, h.slot).Generate(context.Background())
	require.NoError(t, err)
	release := h.fake.Hold(backend.PathReportCount)
	defer release()

	navigated := make(chan struct{})
	go func() {
		defer close(navigated)
		h.nav.Go(context.Background(), s.Name())
		h.nav.Go(context.Background(), up.Name())
	}()
	select {
	case <-navigated:
	case <-time.After(2 * time.Second):
		t.Fatal("navigation waited for the report counter")
	}
	assert.True(t, h.nav.IsCurrent(up.current()))

	release()
	s.Wait()
	assert.Equal(t, 1, h.fake.Calls(backend.PathReportCount))
	assert.Equal(t, FallbackReportCount, s.ReportCount(), "a count for a page the user left is dropped")
	assert.Equal(t, testkit.InitialReportCount+1, s.Refresh(context.Background()))
}
