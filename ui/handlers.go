package ui

import (
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"strconv"

	"datanomics/adapters/excel"
	"datanomics/domain/analysis"
	"datanomics/domain/session"
	"datanomics/domain/stage"
	"datanomics/internal/errors"
	"datanomics/internal/stages"
	"datanomics/internal/transform"

	"github.com/go-chi/chi/v5"
)

type stageLink struct {
	Name   stage.StageName
	Title  string
	Active bool
}

type chartLink struct {
	Kind  string `json:"kind"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

type indexPage struct {
	Title     string
	Stages    []stageLink
	Filename  string
	RowCount  int
	Columns   []string
	Preview   [][]string
	Error     string
	Variable  string
	Charts    []chartLink
	HasReport bool
}

type sessionView struct {
	SessionID      string                        `json:"sessionId"`
	Stage          stage.StageName               `json:"stage"`
	Filename       string                        `json:"filename"`
	Columns        []string                      `json:"columns"`
	SuggestedTypes map[string]session.ColumnType `json:"suggestedTypes"`
	RowCount       int                           `json:"rowCount"`
	PreviewData    []session.Record              `json:"previewData"`
	HasModelResult bool                          `json:"hasModelResult"`
}

type dashboardView struct {
	Variables []string                        `json:"variables"`
	Selected  string                          `json:"selected"`
	Stats     analysis.ColumnStats            `json:"stats,omitempty"`
	Summary   map[string]analysis.ColumnStats `json:"summary"`
	Charts    []chartLink                     `json:"charts"`
}

func (a *App) handleIndex(w http.ResponseWriter, r *http.Request) {
	c := a.session
	current := c.Current()
	sess := c.Session()

	page := indexPage{
		Title:     current.Spec().Title,
		Filename:  sess.Filename,
		RowCount:  len(sess.FullDataset),
		Columns:   sess.Columns,
		Variable:  c.Visualize.Selected(),
		Charts:    a.chartLinks(),
		HasReport: c.Report.Generated(),
	}
	for _, spec := range stage.Table {
		page.Stages = append(page.Stages, stageLink{Name: spec.Name, Title: spec.Title, Active: spec.Name == current})
	}
	for _, row := range c.Prepare.Preview().Rows {
		cells := make([]string, len(sess.Columns))
		for i, col := range sess.Columns {
			v, _ := row.Get(col)
			cells[i] = transform.FieldString(v)
		}
		page.Preview = append(page.Preview, cells)
	}
	if err := a.stageErr(current); err != nil {
		page.Error = err.Error()
	}
	a.renderTemplate(w, "index.html", page)
}

// stageErr returns the error the active screen is showing
func (a *App) stageErr(current stage.StageName) error {
	c := a.session
	views := map[stage.StageName]interface{ Err() error }{
		stage.StageUpload:    c.Upload,
		stage.StagePrepare:   c.Prepare,
		stage.StageVisualize: c.Visualize,
		stage.StageDiagnose:  c.Diagnose,
		stage.StageModel:     c.Model,
		stage.StageReport:    c.Report,
		stage.StageContact:   c.Contact,
		stage.StageSupport:   c.Support,
	}
	if v, ok := views[current]; ok {
		return v.Err()
	}
	return nil
}

func (a *App) chartLinks() []chartLink {
	surfaces := a.session.Visualize.Surfaces()
	links := make([]chartLink, 0, len(surfaces))
	for i, s := range surfaces {
		links = append(links, chartLink{
			Kind:  string(s.Spec().Kind),
			Title: s.Spec().Title,
			URL:   fmt.Sprintf("/charts/%d.png", i),
		})
	}
	return links
}

func (a *App) handleSession(w http.ResponseWriter, r *http.Request) {
	c := a.session
	sess := c.Session()
	writeJSON(w, http.StatusOK, sessionView{
		SessionID:      c.ID.String(),
		Stage:          c.Current(),
		Filename:       sess.Filename,
		Columns:        sess.Columns,
		SuggestedTypes: sess.ColumnTypeHints,
		RowCount:       len(sess.FullDataset),
		PreviewData:    sess.PreviewRows,
		HasModelResult: !c.Slot.Get().IsEmpty(),
	})
}

func (a *App) handleDashboard(w http.ResponseWriter, r *http.Request) {
	v := a.session.Visualize
	writeJSON(w, http.StatusOK, dashboardView{
		Variables: v.Variables(),
		Selected:  v.Selected(),
		Stats:     v.Stats(),
		Summary:   v.Summary(),
		Charts:    a.chartLinks(),
	})
}

func (a *App) handleSupport(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, analysis.ReportCount{Count: a.session.Support.ReportCount()})
}

func (a *App) handleChart(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	surfaces := a.session.Visualize.Surfaces()
	if err != nil || index < 0 || index >= len(surfaces) {
		http.NotFound(w, r)
		return
	}
	img, ok := surfaces[index].(interface{ PNG() []byte })
	if !ok {
		http.Error(w, "surface has no image", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(img.PNG())
}

func (a *App) handleExport(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")
	rows := a.session.Session().FullDataset
	if len(rows) == 0 {
		writeError(w, errors.ValidationError("No data to export"))
		return
	}

	switch name {
	case transform.CSVFilename:
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", attachment(name))
		w.Write([]byte(transform.ToCSV(rows)))
	case excel.XLSXFilename:
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", attachment(name))
		if err := excel.Write(w, rows); err != nil {
			a.logger.Error("xlsx export: %v", err)
		}
	default:
		http.NotFound(w, r)
	}
}

func parseLanguage(raw string) (stages.Language, bool) {
	switch stages.Language(raw) {
	case stages.English:
		return stages.English, true
	case stages.Arabic:
		return stages.Arabic, true
	}
	return "", false
}

func (a *App) handleReport(w http.ResponseWriter, r *http.Request) {
	lang, ok := parseLanguage(chi.URLParam(r, "lang"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	body, err := a.session.Report.HTML(lang)
	if err != nil {
		writeError(w, err)
		return
	}
	a.renderTemplate(w, "report.html", map[string]interface{}{
		"Lang": string(lang),
		"Body": template.HTML(body),
	})
}

func (a *App) handleReportDownload(w http.ResponseWriter, r *http.Request) {
	lang, ok := parseLanguage(chi.URLParam(r, "lang"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	text := a.session.Report.Text(lang)
	if text == "" {
		writeError(w, errors.ValidationError("Report content is not available."))
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", attachment(stages.ReportFilename(lang)))
	w.Write([]byte(text))
}

func attachment(name string) string {
	return fmt.Sprintf("attachment; filename=%q", name)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeError answers validation errors with 404, refused or superseded
// actions with 409 and anything else with 500
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch errors.GetCode(err) {
	case errors.CodeValidationError:
		status = http.StatusNotFound
	case errors.CodeInFlight, errors.CodeStaleResponse:
		status = http.StatusConflict
	}
	writeJSON(w, status, analysis.ErrorBody{Error: err.Error()})
}
