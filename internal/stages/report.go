package stages

import (
	"context"
	"strings"

	"datanomics/domain/analysis"
	"datanomics/domain/session"
	"datanomics/domain/stage"
	"datanomics/internal"
	"datanomics/internal/errors"
	"datanomics/internal/flight"
	"datanomics/internal/navigator"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// ActionGenerateReport is the single-flight key of report generation
const ActionGenerateReport flight.Action = "generate-report"

// Language selects one half of the bilingual report
type Language string

const (
	English Language = "en"
	Arabic  Language = "ar"
)

// ReportFilename is the download name of the report in lang
func ReportFilename(lang Language) string {
	if lang == Arabic {
		return "AI_Econometrics_Report_AR.txt"
	}
	return "AI_Econometrics_Report_EN.txt"
}

// Report turns the last model summary into a bilingual report
type Report struct {
	view
	slot   *ModelSlot
	logger *internal.Logger

	report *analysis.Report
}

func NewReport(deps Deps, slot *ModelSlot) *Report {
	return &Report{view: newView(stage.StageReport, deps), slot: slot, logger: deps.logger("Report")}
}

func (r *Report) Activate(_ context.Context, a navigator.Activation, _ session.AnalysisSession) {
	r.begin(a)
	r.mu.Lock()
	r.report = nil
	r.mu.Unlock()
}

func (r *Report) Deactivate(navigator.Activation) {}

// Generate asks the backend for a report of the current model result
func (r *Report) Generate(ctx context.Context) (*analysis.Report, error) {
	result := r.slot.Get()
	if result.IsEmpty() {
		err := errors.ValidationError("No model results found. Please run an analysis on the previous page first.")
		r.setErr(err)
		return nil, err
	}

	var report *analysis.Report
	err := r.run(ctx, ActionGenerateReport, func(ctx context.Context) error {
		a := r.current()
		r.mu.Lock()
		r.report = nil
		r.mu.Unlock()

		out, err := r.deps.Backend.GenerateReport(ctx, result)
		if err != nil {
			return err
		}
		if r.live(a) {
			r.mu.Lock()
			r.report = out
			r.mu.Unlock()
		}
		report = out
		return nil
	})
	return report, err
}

// Generated reports whether both halves of a report are available
func (r *Report) Generated() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.report != nil && r.report.EnglishReport != "" && r.report.ArabicReport != ""
}

// Text returns the report in lang; empty before generation
func (r *Report) Text(lang Language) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.report == nil {
		return ""
	}
	if lang == Arabic {
		return r.report.ArabicReport
	}
	return r.report.EnglishReport
}

// HTML renders the report in lang from markdown
func (r *Report) HTML(lang Language) (string, error) {
	text := r.Text(lang)
	if text == "" {
		return "", errors.ValidationError("Report content is not available.")
	}
	return RenderMarkdown(text, lang), nil
}

// RenderMarkdown converts report text to an HTML fragment. Arabic text is
// wrapped in a right-to-left container.
func RenderMarkdown(text string, lang Language) string {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags | html.HrefTargetBlank})
	body := string(markdown.ToHTML([]byte(text), p, renderer))
	if lang == Arabic {
		return `<div dir="rtl" lang="ar">` + "\n" + strings.TrimSpace(body) + "\n</div>\n"
	}
	return body
}

// Download writes the report in lang into dir and returns the file path
func (r *Report) Download(lang Language, dir string) (string, error) {
	text := r.Text(lang)
	if text == "" {
		err := errors.ValidationError("Report content is not available.")
		r.setErr(err)
		return "", err
	}
	return writeExport(dir, ReportFilename(lang), []byte(text))
}
