package testkit

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"datanomics/domain/analysis"
	"datanomics/domain/session"
	"datanomics/internal/transform"

	"github.com/gin-gonic/gin"
)

// InitialReportCount is what report-count returns before any report is generated
const InitialReportCount = 1000

type failure struct {
	status int
	body   interface{}
}

// FakeBackend is an in-process stand-in for the computation backend. It
// answers every endpoint with plausible shapes, can be told to fail a path,
// and can hold requests open to exercise late responses.
type FakeBackend struct {
	router *gin.Engine

	mu       sync.Mutex
	calls    map[string]int
	failures map[string]failure
	gates    map[string]chan struct{}
	feedback []analysis.Feedback
	reports  int
}

// NewFakeBackend creates the fake with all routes registered
func NewFakeBackend() *FakeBackend {
	b := &FakeBackend{
		router:   gin.New(),
		calls:    make(map[string]int),
		failures: make(map[string]failure),
		gates:    make(map[string]chan struct{}),
		reports:  InitialReportCount,
	}
	b.router.Use(gin.Recovery(), b.intercept)

	api := b.router.Group("/api")
	api.POST("/data/upload", b.handleUpload)
	api.POST("/prepare/clean", b.handleClean)
	api.POST("/dashboard/summary", b.handleSummary)
	api.POST("/tests/run-test", b.handleRunTest)
	api.POST("/model/run-model", b.handleRunModel)
	api.POST("/report/generate-report", b.handleGenerateReport)
	api.GET("/report/report-count", b.handleReportCount)
	api.POST("/contact/submit", b.handleContact)
	return b
}

// Handler exposes the router
func (b *FakeBackend) Handler() http.Handler {
	return b.router
}

// StartServer serves the fake on a loopback port; the caller closes it
func (b *FakeBackend) StartServer() *httptest.Server {
	return httptest.NewServer(b.router)
}

// Fail makes every request to path answer status with body until Clear
func (b *FakeBackend) Fail(path string, status int, body interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[path] = failure{status: status, body: body}
}

// Clear removes a configured failure
func (b *FakeBackend) Clear(path string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.failures, path)
}

// Hold blocks requests to path until the returned func is called
func (b *FakeBackend) Hold(path string) (release func()) {
	gate := make(chan struct{})
	b.mu.Lock()
	b.gates[path] = gate
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			if b.gates[path] == gate {
				delete(b.gates, path)
			}
			b.mu.Unlock()
			close(gate)
		})
	}
}

// Calls returns how many requests reached path
func (b *FakeBackend) Calls(path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[path]
}

// Feedback returns the accepted contact submissions
func (b *FakeBackend) Feedback() []analysis.Feedback {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]analysis.Feedback(nil), b.feedback...)
}

func (b *FakeBackend) intercept(c *gin.Context) {
	path := c.Request.URL.Path

	b.mu.Lock()
	b.calls[path]++
	fail, failing := b.failures[path]
	gate := b.gates[path]
	b.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-c.Request.Context().Done():
			c.Abort()
			return
		}
	}
	if failing {
		c.AbortWithStatusJSON(fail.status, fail.body)
		return
	}
	c.Next()
}

func badRequest(c *gin.Context, msg string, details ...string) {
	body := gin.H{"error": msg}
	if len(details) > 0 {
		body["details"] = details
	}
	c.JSON(http.StatusBadRequest, body)
}

func (b *FakeBackend) handleUpload(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "No file part in the request")
		return
	}
	if ext := strings.ToLower(filepath.Ext(fh.Filename)); ext != ".csv" {
		badRequest(c, "Unsupported file type", fmt.Sprintf("%s files are not accepted, upload a .csv file", ext))
		return
	}
	f, err := fh.Open()
	if err != nil {
		badRequest(c, "Could not open uploaded file", err.Error())
		return
	}
	defer f.Close()

	header, body, err := readCSV(f)
	if err != nil {
		badRequest(c, "Could not parse file", err.Error())
		return
	}

	records := parseRows(header, body)
	preview := records
	if len(preview) > session.PreviewSize {
		preview = preview[:session.PreviewSize]
	}
	c.JSON(http.StatusOK, analysis.UploadResult{
		Filename:       fh.Filename,
		Columns:        header,
		PreviewData:    preview,
		SuggestedTypes: inferTypes(header, body),
		FullDataset:    records,
		QualityReport:  qualityReport(header, records),
	})
}

func readCSV(r io.Reader) ([]string, [][]string, error) {
	rows, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, nil, fmt.Errorf("file is empty")
	}
	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.TrimSpace(h)
	}
	return header, rows[1:], nil
}

// parseRows types each cell: blank is null, finite numbers are numbers,
// everything else stays text
func parseRows(header []string, rows [][]string) []session.Record {
	out := make([]session.Record, 0, len(rows))
	for _, row := range rows {
		pairs := make([]interface{}, 0, 2*len(header))
		for i, col := range header {
			var cell string
			if i < len(row) {
				cell = strings.TrimSpace(row[i])
			}
			pairs = append(pairs, col, parseCell(cell))
		}
		out = append(out, session.NewRecord(pairs...))
	}
	return out
}

func parseCell(cell string) interface{} {
	if cell == "" {
		return nil
	}
	if f, err := strconv.ParseFloat(cell, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
		return f
	}
	return cell
}

func inferTypes(header []string, rows [][]string) map[string]session.ColumnType {
	types := make(map[string]session.ColumnType, len(header))
	for i, col := range header {
		numeric, date, seen := true, true, false
		for _, row := range rows {
			if i >= len(row) || strings.TrimSpace(row[i]) == "" {
				continue
			}
			seen = true
			cell := strings.TrimSpace(row[i])
			if _, ok := parseCell(cell).(float64); !ok {
				numeric = false
			}
			if _, err := time.Parse("2006-01-02", cell); err != nil {
				date = false
			}
		}
		switch {
		case seen && numeric:
			types[col] = session.ColumnNumeric
		case seen && date:
			types[col] = session.ColumnDate
		default:
			types[col] = session.ColumnText
		}
	}
	return types
}

func qualityReport(header []string, rows []session.Record) *session.QualityReport {
	report := &session.QualityReport{IsOK: true, Issues: []session.QualityIssue{}}
	for _, col := range header {
		missing := 0
		for _, row := range rows {
			if v, _ := row.Get(col); v == nil {
				missing++
			}
		}
		if missing > 0 {
			report.Issues = append(report.Issues, session.QualityIssue(fmt.Sprintf("column %s has %d missing values", col, missing)))
		}
	}
	if dups := len(rows) - len(transform.RemoveDuplicates(rows)); dups > 0 {
		report.Issues = append(report.Issues, session.QualityIssue(fmt.Sprintf("dataset has %d duplicate rows", dups)))
	}
	report.IsOK = len(report.Issues) == 0
	return report
}

func (b *FakeBackend) handleClean(c *gin.Context) {
	var req analysis.CleanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err.Error())
		return
	}
	if len(req.Dataset) == 0 {
		badRequest(c, "No data provided")
		return
	}

	var cleaned []session.Record
	switch req.Operation {
	case analysis.OpRemoveMissing:
		cleaned = transform.RemoveMissing(req.Dataset)
	case analysis.OpRemoveDuplicates:
		cleaned = transform.RemoveDuplicates(req.Dataset)
	case analysis.OpImputeMissing:
		cleaned = imputeMissing(req.Dataset)
	case analysis.OpHandleOutliers:
		cleaned = clipOutliers(req.Dataset)
	case analysis.OpUnifyFormats:
		cleaned = unifyFormats(req.Dataset)
	case analysis.OpNormalizeData:
		cleaned = normalize(req.Dataset)
	default:
		badRequest(c, "Unknown operation", string(req.Operation))
		return
	}
	if cleaned == nil {
		cleaned = []session.Record{}
	}
	c.JSON(http.StatusOK, analysis.CleanResponse{CleanedDataset: cleaned})
}

func (b *FakeBackend) handleSummary(c *gin.Context) {
	var req analysis.DatasetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err.Error())
		return
	}
	summary := make(map[string]analysis.ColumnStats)
	for _, col := range numericColumns(req.Dataset) {
		summary[col] = describe(columnValues(req.Dataset, col))
	}
	c.JSON(http.StatusOK, analysis.SummaryResponse{Summary: summary})
}

func (b *FakeBackend) handleRunTest(c *gin.Context) {
	var req analysis.DiagnosticRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err.Error())
		return
	}
	cols := numericColumns(req.Dataset)
	if len(cols) == 0 {
		badRequest(c, "No numeric columns to test")
		return
	}
	result, err := diagnostic(req.TestID, req.Dataset, cols)
	if err != nil {
		badRequest(c, err.Error(), string(req.TestID))
		return
	}
	c.JSON(http.StatusOK, result)
}

func (b *FakeBackend) handleRunModel(c *gin.Context) {
	var req analysis.ModelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err.Error())
		return
	}
	if len(req.Endogenous) == 0 {
		badRequest(c, "Please select at least one endogenous variable")
		return
	}
	summary, err := modelSummary(req)
	if err != nil {
		badRequest(c, err.Error(), string(req.ModelID))
		return
	}
	c.JSON(http.StatusOK, analysis.ModelResponse{ModelSummary: summary})
}

func (b *FakeBackend) handleGenerateReport(c *gin.Context) {
	var req analysis.ReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err.Error())
		return
	}
	if strings.TrimSpace(req.ModelSummary) == "" {
		badRequest(c, "Model summary is required")
		return
	}
	b.mu.Lock()
	b.reports++
	b.mu.Unlock()

	c.JSON(http.StatusOK, analysis.Report{
		EnglishReport: "# Econometric Analysis Report\n\n## Model Output\n\n```\n" + req.ModelSummary + "\n```\n\n## Interpretation\n\nThe estimated model is reported above. Coefficients should be read together with the diagnostic tests.\n",
		ArabicReport:  "# تقرير التحليل القياسي\n\n## مخرجات النموذج\n\n```\n" + req.ModelSummary + "\n```\n",
	})
}

func (b *FakeBackend) handleReportCount(c *gin.Context) {
	b.mu.Lock()
	n := b.reports
	b.mu.Unlock()
	c.JSON(http.StatusOK, analysis.ReportCount{Count: n})
}

func (b *FakeBackend) handleContact(c *gin.Context) {
	var fb analysis.Feedback
	if err := c.ShouldBindJSON(&fb); err != nil {
		badRequest(c, "Invalid request body", err.Error())
		return
	}
	if !strings.Contains(fb.Email, "@") {
		badRequest(c, "A valid email is required")
		return
	}
	if fb.Rating < 0 || fb.Rating > 5 {
		badRequest(c, "Rating must be between 0 and 5")
		return
	}
	b.mu.Lock()
	b.feedback = append(b.feedback, fb)
	b.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{})
}
