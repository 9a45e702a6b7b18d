// Package chart renders visualization surfaces to PNG files with go-chart.
// Each surface owns one file under the chart directory; destroying the
// surface removes it.
package chart

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"datanomics/internal"
	"datanomics/internal/errors"
	"datanomics/ports"

	"github.com/montanaflynn/stats"
	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// Config holds the output directory and image size
type Config struct {
	Dir    string
	Width  int
	Height int
}

// histogramBins is the number of buckets in the distribution surface
const histogramBins = 10

var (
	lineColor    = drawing.ColorFromHex("4f46e5")
	barColor     = drawing.ColorFromHex("10b981")
	scatterColor = drawing.ColorFromHex("f59e0b")
	unsafeName   = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

	// defaultFont parses go-chart's bundled font once per process. Every
	// chart is handed the result so go-chart never lazily loads it itself.
	defaultFont = sync.OnceValues(gochart.GetDefaultFont)
)

// Engine implements ports.RenderEngine
type Engine struct {
	cfg    Config
	logger *internal.Logger

	mu     sync.Mutex
	loaded bool
	seq    uint64
}

// NewEngine creates an engine; Load must succeed before surfaces are built
func NewEngine(cfg Config, logger *internal.Logger) *Engine {
	if cfg.Width <= 0 {
		cfg.Width = 1024
	}
	if cfg.Height <= 0 {
		cfg.Height = 512
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Engine{cfg: cfg, logger: logger.With("ChartEngine")}
}

// Load parses the default font and prepares the output directory
func (e *Engine) Load(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := defaultFont(); err != nil {
		return errors.ResourceError("failed to load chart font", err)
	}
	if err := os.MkdirAll(e.cfg.Dir, 0o755); err != nil {
		return errors.ResourceError(fmt.Sprintf("failed to create chart directory %s", e.cfg.Dir), err)
	}
	e.mu.Lock()
	e.loaded = true
	e.mu.Unlock()
	e.logger.Debug("chart engine ready, writing to %s", e.cfg.Dir)
	return nil
}

// NewSurface renders one chart of the series and writes it to disk
func (e *Engine) NewSurface(ctx context.Context, spec ports.SurfaceSpec, series ports.Series) (ports.Surface, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	if !e.loaded {
		e.mu.Unlock()
		return nil, errors.InternalError("chart engine used before Load")
	}
	e.seq++
	seq := e.seq
	e.mu.Unlock()

	data, err := e.render(spec, series)
	if err != nil {
		return nil, fmt.Errorf("render %s chart: %w", spec.Kind, err)
	}

	name := fmt.Sprintf("%s-%s-%d.png", unsafeName.ReplaceAllString(series.Variable, "_"), spec.Kind, seq)
	path := filepath.Join(e.cfg.Dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, errors.ResourceError(fmt.Sprintf("failed to write %s", path), err)
	}
	return &Surface{spec: spec, path: path, png: data}, nil
}

func (e *Engine) render(spec ports.SurfaceSpec, series ports.Series) ([]byte, error) {
	if len(series.Points) == 0 {
		return blank(e.cfg.Width, e.cfg.Height)
	}
	xs := make([]float64, len(series.Points))
	ys := make([]float64, len(series.Points))
	for i, p := range series.Points {
		xs[i], ys[i] = p.X, p.Y
	}

	font, err := defaultFont()
	if err != nil {
		return nil, errors.ResourceError("failed to load chart font", err)
	}

	title := fmt.Sprintf("%s: %s", spec.Title, series.Variable)
	var buf bytes.Buffer
	switch spec.Kind {
	case ports.SurfaceBar:
		bc := histogram(title, ys)
		bc.Width, bc.Height = e.cfg.Width, e.cfg.Height
		bc.Font = font
		if err := bc.Render(gochart.PNG, &buf); err != nil {
			return nil, err
		}
	case ports.SurfaceLine, ports.SurfaceScatter:
		style := gochart.Style{StrokeColor: lineColor, StrokeWidth: 2}
		if spec.Kind == ports.SurfaceScatter {
			style = gochart.Style{StrokeColor: drawing.ColorTransparent, DotColor: scatterColor, DotWidth: 4}
		}
		// go-chart needs at least two X values
		if len(xs) == 1 {
			xs = append(xs, xs[0]+1)
			ys = append(ys, ys[0])
		}
		ch := gochart.Chart{
			Title:      title,
			Width:      e.cfg.Width,
			Height:     e.cfg.Height,
			Font:       font,
			Background: gochart.Style{Padding: gochart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
			XAxis:      gochart.XAxis{Name: "index", Range: paddedRange(xs, 0)},
			YAxis:      gochart.YAxis{Name: series.Variable, Range: paddedRange(ys, 0.05)},
			Series: []gochart.Series{
				gochart.ContinuousSeries{Name: series.Variable, XValues: xs, YValues: ys, Style: style},
			},
		}
		if err := ch.Render(gochart.PNG, &buf); err != nil {
			return nil, err
		}
	default:
		return nil, errors.InvalidInput(fmt.Sprintf("unknown surface kind %q", spec.Kind))
	}
	return buf.Bytes(), nil
}

// paddedRange returns explicit axis bounds so flat series do not collapse
// into a zero-width range
func paddedRange(values []float64, pad float64) *gochart.ContinuousRange {
	min, _ := stats.Min(values)
	max, _ := stats.Max(values)
	if min == max {
		min, max = min-1, max+1
	}
	span := max - min
	return &gochart.ContinuousRange{Min: min - span*pad, Max: max + span*pad}
}

// histogram buckets ys into equal-width bins
func histogram(title string, ys []float64) gochart.BarChart {
	min, _ := stats.Min(ys)
	max, _ := stats.Max(ys)
	bins := histogramBins
	if min == max {
		bins = 1
	}
	width := (max - min) / float64(bins)
	counts := make([]float64, bins)
	for _, y := range ys {
		i := 0
		if width > 0 {
			i = int(math.Floor((y - min) / width))
		}
		if i >= bins {
			i = bins - 1
		}
		counts[i]++
	}

	bars := make([]gochart.Value, bins)
	for i, c := range counts {
		lo := min + float64(i)*width
		bars[i] = gochart.Value{
			Value: c,
			Label: fmt.Sprintf("%.3g", lo),
			Style: gochart.Style{FillColor: barColor, StrokeColor: barColor.WithAlpha(200)},
		}
	}
	maxCount, _ := stats.Max(counts)
	return gochart.BarChart{
		Title:      title,
		Background: gochart.Style{Padding: gochart.Box{Top: 40}},
		BarWidth:   60,
		BarSpacing: 20,
		YAxis:      gochart.YAxis{Range: &gochart.ContinuousRange{Min: 0, Max: maxCount + 1}},
		Bars:       bars,
	}
}

// blank is the placeholder for a variable with no numeric values
func blank(w, h int) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Surface is one rendered chart file
type Surface struct {
	spec ports.SurfaceSpec
	path string
	png  []byte

	mu        sync.Mutex
	destroyed bool
}

// Spec returns what the surface shows
func (s *Surface) Spec() ports.SurfaceSpec { return s.spec }

// Path returns the PNG file location
func (s *Surface) Path() string { return s.path }

// PNG returns the rendered image bytes
func (s *Surface) PNG() []byte { return s.png }

// Destroyed reports whether Destroy has run
func (s *Surface) Destroyed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.destroyed
}

// Destroy removes the file; repeated calls are no-ops
func (s *Surface) Destroy() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return nil
	}
	s.destroyed = true
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return errors.ResourceError(fmt.Sprintf("failed to remove %s", s.path), err)
	}
	return nil
}
