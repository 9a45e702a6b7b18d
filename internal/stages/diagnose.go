package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"datanomics/domain/analysis"
	"datanomics/domain/session"
	"datanomics/domain/stage"
	"datanomics/internal"
	"datanomics/internal/errors"
	"datanomics/internal/flight"
	"datanomics/internal/navigator"
)

// ActionRunTest is the single-flight key of diagnostic tests
const ActionRunTest flight.Action = "run-test"

// DiagnosticOption is one entry of the diagnostic catalog
type DiagnosticOption struct {
	ID          analysis.DiagnosticTest
	Title       string
	Description string
}

// DiagnosticCatalog lists the pre-estimation tests in display order
var DiagnosticCatalog = []DiagnosticOption{
	{analysis.TestStationarity, "Stationarity Test (ADF)", "Checks if each series has a unit root. Essential for all time-series models."},
	{analysis.TestVIF, "Multicollinearity Test (VIF)", "Measures correlation between independent variables. Crucial for OLS and ARDL."},
	{analysis.TestLagOrder, "Optimal Lag Selection", "Helps determine the appropriate number of lags for VAR and VECM models."},
	{analysis.TestJohansen, "Johansen Cointegration Test", "Checks for long-run equilibrium relationships. Decides if VECM is applicable."},
	{analysis.TestAutocorrelation, "Autocorrelation (ACF/PACF)", "Identifies the p and q orders for an ARIMA model by analyzing autocorrelations."},
}

// Diagnose runs pre-estimation tests. Results are kept for the current
// activation only.
type Diagnose struct {
	view
	logger *internal.Logger

	selected analysis.DiagnosticTest
	result   *analysis.DiagnosticResult
}

func NewDiagnose(deps Deps) *Diagnose {
	return &Diagnose{view: newView(stage.StageDiagnose, deps), logger: deps.logger("Diagnose")}
}

func (d *Diagnose) Activate(_ context.Context, a navigator.Activation, _ session.AnalysisSession) {
	d.begin(a)
	d.mu.Lock()
	d.selected, d.result = "", nil
	d.mu.Unlock()
}

func (d *Diagnose) Deactivate(navigator.Activation) {}

// Run executes testID over the current dataset. params is sent as-is.
func (d *Diagnose) Run(ctx context.Context, testID analysis.DiagnosticTest, params map[string]interface{}) (*analysis.DiagnosticResult, error) {
	if !knownTest(testID) {
		err := errors.ValidationError("Unknown test: " + string(testID))
		d.setErr(err)
		return nil, err
	}

	var result *analysis.DiagnosticResult
	err := d.run(ctx, ActionRunTest, func(ctx context.Context) error {
		a := d.current()
		d.mu.Lock()
		d.selected, d.result = testID, nil
		d.mu.Unlock()

		res, err := d.deps.Backend.RunTest(ctx, analysis.DiagnosticRequest{
			Dataset: d.deps.Store.Get().FullDataset,
			TestID:  testID,
			Params:  params,
		})
		if err != nil {
			return err
		}
		if d.live(a) {
			d.mu.Lock()
			d.result = res
			d.mu.Unlock()
		}
		result = res
		return nil
	})
	return result, err
}

// Selected returns the last requested test
func (d *Diagnose) Selected() analysis.DiagnosticTest {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.selected
}

// Result returns the result shown on screen, if any
func (d *Diagnose) Result() *analysis.DiagnosticResult {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.result
}

func knownTest(id analysis.DiagnosticTest) bool {
	for _, t := range DiagnosticCatalog {
		if t.ID == id {
			return true
		}
	}
	return false
}

type variableResult struct {
	Variable     string    `json:"variable"`
	PValue       *float64  `json:"p_value"`
	IsStationary bool      `json:"is_stationary"`
	VIFFactor    *float64  `json:"vif_factor"`
	ACF          []float64 `json:"acf"`
	PACF         []float64 `json:"pacf"`
}

// Format renders a diagnostic result as plain text. Shapes it does not
// recognize are printed as indented JSON.
func Format(res *analysis.DiagnosticResult) string {
	if res == nil || len(res.Raw) == 0 {
		return ""
	}
	var b strings.Builder
	switch res.TestID {
	case analysis.TestStationarity, analysis.TestVIF, analysis.TestAutocorrelation:
		var rows []variableResult
		if err := json.Unmarshal(res.Raw, &rows); err != nil {
			return indentJSON(res.Raw)
		}
		for _, r := range rows {
			switch res.TestID {
			case analysis.TestStationarity:
				verdict := "Non-Stationary"
				if r.IsStationary {
					verdict = "Stationary"
				}
				fmt.Fprintf(&b, "%-20s p=%s  %s\n", r.Variable, fixed(r.PValue, 4), verdict)
			case analysis.TestVIF:
				flag := ""
				if r.VIFFactor != nil && *r.VIFFactor > 5 {
					flag = "  high"
				}
				fmt.Fprintf(&b, "%-20s VIF=%s%s\n", r.Variable, fixed(r.VIFFactor, 2), flag)
			default:
				fmt.Fprintf(&b, "%s\n  ACF:  %s\n  PACF: %s\n", r.Variable, joinFixed(r.ACF), joinFixed(r.PACF))
			}
		}
	case analysis.TestLagOrder:
		var out struct {
			HTMLTable string `json:"html_table"`
		}
		if err := json.Unmarshal(res.Raw, &out); err != nil || out.HTMLTable == "" {
			return indentJSON(res.Raw)
		}
		b.WriteString(out.HTMLTable)
		b.WriteByte('\n')
	case analysis.TestJohansen:
		var out struct {
			Interpretation string `json:"interpretation"`
			Details        string `json:"details"`
		}
		if err := json.Unmarshal(res.Raw, &out); err != nil || out.Interpretation == "" {
			return indentJSON(res.Raw)
		}
		fmt.Fprintf(&b, "%s\n%s\n", out.Interpretation, out.Details)
	default:
		return indentJSON(res.Raw)
	}
	return b.String()
}

func fixed(v *float64, prec int) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.*f", prec, *v)
}

func joinFixed(values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%.2f", v)
	}
	return strings.Join(parts, ", ")
}

func indentJSON(raw json.RawMessage) string {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return string(raw)
	}
	return string(out) + "\n"
}
