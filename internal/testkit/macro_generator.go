package testkit

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"math"
	"math/rand"
	"strconv"

	"datanomics/domain/session"
)

// MacroGeneratorConfig configures the synthetic macroeconomic panel
type MacroGeneratorConfig struct {
	Countries     []string `json:"countries"`
	StartYear     int      `json:"start_year"`
	Years         int      `json:"years"`
	MissingRate   float64  `json:"missing_rate"`   // share of cells left blank
	DuplicateRows int      `json:"duplicate_rows"` // exact copies appended at the end
	Seed          int64    `json:"seed"`
}

// DefaultMacroConfig returns a small, deterministic panel
func DefaultMacroConfig() MacroGeneratorConfig {
	return MacroGeneratorConfig{
		Countries:     []string{"EG", "MA", "JO"},
		StartYear:     2000,
		Years:         20,
		MissingRate:   0.03,
		DuplicateRows: 2,
		Seed:          42,
	}
}

// MacroColumns is the column order of generated panels
var MacroColumns = []string{"year", "country", "gdp_growth", "inflation", "unemployment"}

// MacroDataGenerator produces country-year rows with autocorrelated series
type MacroDataGenerator struct {
	config MacroGeneratorConfig
	rng    *rand.Rand
}

// NewMacroDataGenerator creates a generator
func NewMacroDataGenerator(config MacroGeneratorConfig) *MacroDataGenerator {
	return &MacroDataGenerator{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
}

// Rows generates the panel as string cells, header first. Missing cells are "".
// Repeated calls return the same panel.
func (g *MacroDataGenerator) Rows() [][]string {
	g.rng = rand.New(rand.NewSource(g.config.Seed))
	out := [][]string{append([]string(nil), MacroColumns...)}
	for _, country := range g.config.Countries {
		growth, inflation, unemployment := 3+g.rng.Float64()*2, 5+g.rng.Float64()*5, 8+g.rng.Float64()*6
		for y := 0; y < g.config.Years; y++ {
			// AR(1) around a country-specific mean
			growth = 0.6*growth + 0.4*4 + g.rng.NormFloat64()
			inflation = 0.7*inflation + 0.3*7 + g.rng.NormFloat64()*1.5
			unemployment = math.Max(0, 0.8*unemployment+0.2*10+g.rng.NormFloat64()*0.8)

			out = append(out, []string{
				strconv.Itoa(g.config.StartYear + y),
				country,
				g.cell(growth),
				g.cell(inflation),
				g.cell(unemployment),
			})
		}
	}
	for i := 0; i < g.config.DuplicateRows && len(out) > 1; i++ {
		src := out[1+g.rng.Intn(len(out)-1)]
		out = append(out, append([]string(nil), src...))
	}
	return out
}

func (g *MacroDataGenerator) cell(v float64) string {
	if g.rng.Float64() < g.config.MissingRate {
		return ""
	}
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}

// CSV renders the panel as a CSV file body
func (g *MacroDataGenerator) CSV() ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(g.Rows()); err != nil {
		return nil, fmt.Errorf("write fixture csv: %w", err)
	}
	return buf.Bytes(), nil
}

// Records converts the panel into typed rows the way the fake backend parses uploads
func (g *MacroDataGenerator) Records() []session.Record {
	rows := g.Rows()
	return parseRows(rows[0], rows[1:])
}
