// Package backend talks to the external computation backend: Gateway is the
// uniform HTTP/JSON boundary and Client the typed endpoint catalog on top.
package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"datanomics/domain/analysis"
	"datanomics/domain/session"
	"datanomics/internal/errors"
	"datanomics/ports"
)

// Endpoint paths, relative to the gateway base URL
const (
	PathUpload      = "/api/data/upload"
	PathClean       = "/api/prepare/clean"
	PathSummary     = "/api/dashboard/summary"
	PathRunTest     = "/api/tests/run-test"
	PathRunModel    = "/api/model/run-model"
	PathReport      = "/api/report/generate-report"
	PathReportCount = "/api/report/report-count"
	PathFeedback    = "/api/contact/submit"
)

// Client implements ports.AnalysisBackend over a BackendGateway
type Client struct {
	gw ports.BackendGateway
}

// NewClient creates a typed client
func NewClient(gw ports.BackendGateway) *Client {
	return &Client{gw: gw}
}

var _ ports.AnalysisBackend = (*Client)(nil)

func (c *Client) UploadDataset(ctx context.Context, filename string, content io.Reader) (*analysis.UploadResult, error) {
	var out analysis.UploadResult
	if err := c.gw.Upload(ctx, PathUpload, filename, content, &out); err != nil {
		return nil, err
	}
	if out.Filename == "" {
		out.Filename = filename
	}
	return &out, nil
}

func (c *Client) Clean(ctx context.Context, dataset []session.Record, op analysis.CleaningOperation) ([]session.Record, error) {
	var out struct {
		CleanedDataset *[]session.Record `json:"cleanedDataset"`
	}
	req := analysis.CleanRequest{Dataset: nonNil(dataset), Operation: op}
	if err := c.gw.Call(ctx, PathClean, req, &out); err != nil {
		return nil, err
	}
	if out.CleanedDataset == nil {
		return nil, errors.InvalidResponse(http.StatusOK, "missing cleanedDataset", nil)
	}
	return nonNil(*out.CleanedDataset), nil
}

func (c *Client) Summary(ctx context.Context, dataset []session.Record) (map[string]analysis.ColumnStats, error) {
	var out analysis.SummaryResponse
	if err := c.gw.Call(ctx, PathSummary, analysis.DatasetRequest{Dataset: nonNil(dataset)}, &out); err != nil {
		return nil, err
	}
	if out.Summary == nil {
		return nil, errors.InvalidResponse(http.StatusOK, "missing summary", nil)
	}
	return out.Summary, nil
}

// RunTest returns the whole response body as the test-specific result
func (c *Client) RunTest(ctx context.Context, req analysis.DiagnosticRequest) (*analysis.DiagnosticResult, error) {
	req.Dataset = nonNil(req.Dataset)
	var raw json.RawMessage
	if err := c.gw.Call(ctx, PathRunTest, req, &raw); err != nil {
		return nil, err
	}
	return &analysis.DiagnosticResult{TestID: req.TestID, Raw: raw}, nil
}

func (c *Client) RunModel(ctx context.Context, req analysis.ModelRequest) (session.ModelResult, error) {
	req.Dataset = nonNil(req.Dataset)
	if req.Endogenous == nil {
		req.Endogenous = []string{}
	}
	if req.Exogenous == nil {
		req.Exogenous = []string{}
	}
	var out analysis.ModelResponse
	if err := c.gw.Call(ctx, PathRunModel, req, &out); err != nil {
		return "", err
	}
	return session.ModelResult(out.ModelSummary), nil
}

func (c *Client) GenerateReport(ctx context.Context, result session.ModelResult) (*analysis.Report, error) {
	var out analysis.Report
	if err := c.gw.Call(ctx, PathReport, analysis.ReportRequest{ModelSummary: string(result)}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SubmitFeedback(ctx context.Context, feedback analysis.Feedback) error {
	return c.gw.Call(ctx, PathFeedback, feedback, nil)
}

func (c *Client) ReportCount(ctx context.Context) (int, error) {
	var out analysis.ReportCount
	if err := c.gw.Get(ctx, PathReportCount, &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

func nonNil(rows []session.Record) []session.Record {
	if rows == nil {
		return []session.Record{}
	}
	return rows
}
