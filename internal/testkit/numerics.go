package testkit

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"datanomics/domain/analysis"
	"datanomics/domain/session"

	"github.com/montanaflynn/stats"
)

// numericColumns lists, in first-row order, the columns whose non-null
// values are all numbers
func numericColumns(rows []session.Record) []string {
	if len(rows) == 0 {
		return nil
	}
	var cols []string
	for _, col := range rows[0].Keys() {
		numeric, seen := true, false
		for _, row := range rows {
			v, _ := row.Get(col)
			if v == nil {
				continue
			}
			seen = true
			if _, ok := session.Numeric(v); !ok {
				numeric = false
				break
			}
		}
		if numeric && seen {
			cols = append(cols, col)
		}
	}
	return cols
}

func columnValues(rows []session.Record, col string) stats.Float64Data {
	out := make(stats.Float64Data, 0, len(rows))
	for _, row := range rows {
		v, _ := row.Get(col)
		if f, ok := session.Numeric(v); ok {
			out = append(out, f)
		}
	}
	return out
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// describe mirrors a pandas describe() row
func describe(data stats.Float64Data) analysis.ColumnStats {
	out := analysis.ColumnStats{"count": len(data)}
	if len(data) == 0 {
		return out
	}
	mean, _ := data.Mean()
	min, _ := data.Min()
	max, _ := data.Max()
	q1 := percentile(data, 25)
	median, _ := data.Median()
	q3 := percentile(data, 75)
	out["mean"] = round(mean, 4)
	out["min"] = min
	out["25%"] = q1
	out["50%"] = median
	out["75%"] = q3
	out["max"] = max
	if len(data) > 1 {
		std, _ := data.StandardDeviationSample()
		out["std"] = round(std, 4)
	}
	return out
}

// percentile falls back to nearest rank, then the median, for columns too
// short for interpolation. It never returns NaN.
func percentile(data stats.Float64Data, p float64) float64 {
	if v, err := data.Percentile(p); err == nil && !math.IsNaN(v) {
		return v
	}
	if v, err := data.PercentileNearestRank(p); err == nil && !math.IsNaN(v) {
		return v
	}
	if v, err := data.Median(); err == nil && !math.IsNaN(v) {
		return v
	}
	return 0
}

func finite(v, fallback float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return v
}

func mapNumeric(rows []session.Record, fn func(col string, v float64) float64) []session.Record {
	cols := numericColumns(rows)
	out := make([]session.Record, len(rows))
	for i, row := range rows {
		for _, col := range cols {
			v, _ := row.Get(col)
			if f, ok := session.Numeric(v); ok {
				row = row.With(col, fn(col, f))
			}
		}
		out[i] = row
	}
	return out
}

func imputeMissing(rows []session.Record) []session.Record {
	means := make(map[string]float64)
	for _, col := range numericColumns(rows) {
		if m, err := columnValues(rows, col).Mean(); err == nil {
			means[col] = round(m, 4)
		}
	}
	out := make([]session.Record, len(rows))
	for i, row := range rows {
		for col, m := range means {
			if v, ok := row.Get(col); ok && v == nil {
				row = row.With(col, m)
			}
		}
		out[i] = row
	}
	return out
}

func clipOutliers(rows []session.Record) []session.Record {
	type fence struct{ lo, hi float64 }
	fences := make(map[string]fence)
	for _, col := range numericColumns(rows) {
		q, err := stats.Quartile(columnValues(rows, col))
		if err != nil {
			continue
		}
		iqr := q.Q3 - q.Q1
		fences[col] = fence{lo: q.Q1 - 1.5*iqr, hi: q.Q3 + 1.5*iqr}
	}
	return mapNumeric(rows, func(col string, v float64) float64 {
		f, ok := fences[col]
		if !ok {
			return v
		}
		return math.Min(math.Max(v, f.lo), f.hi)
	})
}

func normalize(rows []session.Record) []session.Record {
	type span struct{ min, max float64 }
	spans := make(map[string]span)
	for _, col := range numericColumns(rows) {
		data := columnValues(rows, col)
		min, err1 := data.Min()
		max, err2 := data.Max()
		if err1 == nil && err2 == nil {
			spans[col] = span{min: min, max: max}
		}
	}
	return mapNumeric(rows, func(col string, v float64) float64 {
		s, ok := spans[col]
		if !ok || s.max == s.min {
			return 0
		}
		return round((v-s.min)/(s.max-s.min), 6)
	})
}

// unifyFormats trims text and turns numeric-looking text into numbers
func unifyFormats(rows []session.Record) []session.Record {
	out := make([]session.Record, len(rows))
	for i, row := range rows {
		for _, col := range row.Keys() {
			v, _ := row.Get(col)
			s, ok := v.(string)
			if !ok {
				continue
			}
			s = strings.TrimSpace(s)
			if f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
				row = row.With(col, f)
				continue
			}
			row = row.With(col, s)
		}
		out[i] = row
	}
	return out
}

// diagnostic answers with the result shape of each test. The numbers are
// derived from simple sample statistics, not from the real tests.
func diagnostic(test analysis.DiagnosticTest, rows []session.Record, cols []string) (interface{}, error) {
	switch test {
	case analysis.TestStationarity:
		out := make([]map[string]interface{}, 0, len(cols))
		for _, col := range cols {
			ac, _ := stats.AutoCorrelation(columnValues(rows, col), 1)
			p := round(math.Min(1, math.Abs(finite(ac, 1))), 4)
			out = append(out, map[string]interface{}{"variable": col, "p_value": p, "is_stationary": p < 0.05})
		}
		return out, nil
	case analysis.TestVIF:
		out := make([]map[string]interface{}, 0, len(cols))
		for _, col := range cols {
			r2 := 0.0
			for _, other := range cols {
				if other == col {
					continue
				}
				if r, err := stats.Correlation(columnValues(rows, col), columnValues(rows, other)); err == nil && !math.IsNaN(r) && r*r > r2 {
					r2 = r * r
				}
			}
			vif := 1 / math.Max(1-r2, 1e-6)
			out = append(out, map[string]interface{}{"variable": col, "vif_factor": round(vif, 4)})
		}
		return out, nil
	case analysis.TestLagOrder:
		var b strings.Builder
		b.WriteString("<table><tr><th>lag</th><th>AIC</th></tr>")
		for lag := 1; lag <= 4; lag++ {
			fmt.Fprintf(&b, "<tr><td>%d</td><td>%.3f</td></tr>", lag, -float64(len(rows))/float64(lag+1))
		}
		b.WriteString("</table>")
		return map[string]interface{}{"html_table": b.String()}, nil
	case analysis.TestJohansen:
		if len(cols) < 2 {
			return nil, fmt.Errorf("Johansen test needs at least two numeric variables")
		}
		return map[string]interface{}{
			"interpretation": fmt.Sprintf("Evidence of at most %d cointegrating relationship(s)", len(cols)-1),
			"details":        fmt.Sprintf("variables: %s\nobservations: %d", strings.Join(cols, ", "), len(rows)),
		}, nil
	case analysis.TestAutocorrelation:
		out := make([]map[string]interface{}, 0, len(cols))
		for _, col := range cols {
			data := columnValues(rows, col)
			acf := make([]float64, 0, 5)
			for lag := 1; lag <= 5 && lag < len(data); lag++ {
				ac, _ := stats.AutoCorrelation(data, lag)
				acf = append(acf, round(finite(ac, 0), 4))
			}
			pacf := make([]float64, len(acf))
			for i, v := range acf {
				pacf[i] = round(v/float64(i+1), 4)
			}
			out = append(out, map[string]interface{}{"variable": col, "acf": acf, "pacf": pacf})
		}
		return out, nil
	}
	return nil, fmt.Errorf("Unknown test")
}

func modelSummary(req analysis.ModelRequest) (string, error) {
	var title string
	switch req.ModelID {
	case analysis.ModelOLS:
		title = "OLS Regression Results"
	case analysis.ModelVAR:
		title = "Summary of Regression Results (VAR)"
	case analysis.ModelARIMA:
		title = "SARIMAX Results"
	default:
		return "", fmt.Errorf("Unknown model")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", title)
	fmt.Fprintf(&b, "Dep. Variable: %s\n", strings.Join(req.Endogenous, ", "))
	if len(req.Exogenous) > 0 {
		fmt.Fprintf(&b, "Regressors: %s\n", strings.Join(req.Exogenous, ", "))
	}
	fmt.Fprintf(&b, "No. Observations: %d\n", len(req.Dataset))
	for _, col := range append(append([]string(nil), req.Endogenous...), req.Exogenous...) {
		if mean, err := columnValues(req.Dataset, col).Mean(); err == nil {
			fmt.Fprintf(&b, "mean(%s) = %.4f\n", col, mean)
		}
	}
	return b.String(), nil
}
