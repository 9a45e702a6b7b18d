package ports

import (
	"context"
	"io"

	"datanomics/domain/analysis"
	"datanomics/domain/session"
)

// BackendGateway is the single request/response boundary to the computation backend.
// Failures are *errors.GatewayError values.
type BackendGateway interface {
	Call(ctx context.Context, path string, payload interface{}, out interface{}) error
	Get(ctx context.Context, path string, out interface{}) error
	Upload(ctx context.Context, path string, filename string, content io.Reader, out interface{}) error
}

// AnalysisBackend is the typed view of the backend each stage talks to
type AnalysisBackend interface {
	UploadDataset(ctx context.Context, filename string, content io.Reader) (*analysis.UploadResult, error)
	Clean(ctx context.Context, dataset []session.Record, op analysis.CleaningOperation) ([]session.Record, error)
	Summary(ctx context.Context, dataset []session.Record) (map[string]analysis.ColumnStats, error)
	RunTest(ctx context.Context, req analysis.DiagnosticRequest) (*analysis.DiagnosticResult, error)
	RunModel(ctx context.Context, req analysis.ModelRequest) (session.ModelResult, error)
	GenerateReport(ctx context.Context, result session.ModelResult) (*analysis.Report, error)
	SubmitFeedback(ctx context.Context, feedback analysis.Feedback) error
	ReportCount(ctx context.Context) (int, error)
}
