package analysis

import (
	"encoding/json"

	"datanomics/domain/session"
)

// UploadResult is the backend's parse of an uploaded file
type UploadResult struct {
	Filename       string                        `json:"filename"`
	Columns        []string                      `json:"columns"`
	PreviewData    []session.Record              `json:"previewData"`
	SuggestedTypes map[string]session.ColumnType `json:"suggestedTypes"`
	FullDataset    []session.Record              `json:"fullDataset"`
	QualityReport  *session.QualityReport        `json:"qualityReport,omitempty"`
}

// Session converts the upload result into a whole AnalysisSession
func (u UploadResult) Session() session.AnalysisSession {
	preview := u.PreviewData
	if len(preview) == 0 && len(u.FullDataset) > 0 {
		n := session.PreviewSize
		if len(u.FullDataset) < n {
			n = len(u.FullDataset)
		}
		preview = u.FullDataset[:n]
	}
	return session.ReplaceAll(session.AnalysisSession{
		Filename:        u.Filename,
		Columns:         u.Columns,
		PreviewRows:     preview,
		ColumnTypeHints: u.SuggestedTypes,
		FullDataset:     u.FullDataset,
	}).Apply(session.Empty())
}

// CleaningOperation identifies a data-preparation operation
type CleaningOperation string

const (
	OpRemoveMissing    CleaningOperation = "remove-missing"
	OpImputeMissing    CleaningOperation = "impute-missing"
	OpHandleOutliers   CleaningOperation = "handle-outliers"
	OpUnifyFormats     CleaningOperation = "unify-formats"
	OpRemoveDuplicates CleaningOperation = "remove-duplicates"
	OpNormalizeData    CleaningOperation = "normalize-data"
)

// CleanRequest is the body of a cleaning call
type CleanRequest struct {
	Dataset   []session.Record  `json:"dataset"`
	Operation CleaningOperation `json:"operation"`
}

// CleanResponse carries the cleaned dataset
type CleanResponse struct {
	CleanedDataset []session.Record `json:"cleanedDataset"`
}

// DatasetRequest is the body of calls that only need the dataset
type DatasetRequest struct {
	Dataset []session.Record `json:"dataset"`
}

// ColumnStats is one column's summary statistics, keyed by stat name
type ColumnStats map[string]interface{}

// SummaryResponse maps numeric column -> stats
type SummaryResponse struct {
	Summary map[string]ColumnStats `json:"summary"`
}

// DiagnosticTest identifies a pre-estimation diagnostic
type DiagnosticTest string

const (
	TestStationarity    DiagnosticTest = "stationarity"
	TestVIF             DiagnosticTest = "vif"
	TestLagOrder        DiagnosticTest = "lag_order"
	TestJohansen        DiagnosticTest = "johansen"
	TestAutocorrelation DiagnosticTest = "autocorrelation"
)

// DiagnosticRequest is the body of a diagnostic test call
type DiagnosticRequest struct {
	Dataset []session.Record       `json:"dataset"`
	TestID  DiagnosticTest         `json:"testId"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

// DiagnosticResult is the test-specific result, kept as raw JSON
type DiagnosticResult struct {
	TestID DiagnosticTest  `json:"testId"`
	Raw    json.RawMessage `json:"result"`
}

// ModelKind identifies an econometric model
type ModelKind string

const (
	ModelOLS   ModelKind = "ols"
	ModelVAR   ModelKind = "var"
	ModelARIMA ModelKind = "arima"
)

// ModelRequest is the body of a model run
type ModelRequest struct {
	Dataset    []session.Record `json:"dataset"`
	ModelID    ModelKind        `json:"modelId"`
	Endogenous []string         `json:"endogenous"`
	Exogenous  []string         `json:"exogenous"`
}

// ModelResponse carries the opaque model summary
type ModelResponse struct {
	ModelSummary string `json:"model_summary"`
}

// ReportRequest is the body of a report generation call
type ReportRequest struct {
	ModelSummary string `json:"modelSummary"`
}

// Report is the bilingual generated report
type Report struct {
	EnglishReport string `json:"englishReport"`
	ArabicReport  string `json:"arabicReport"`
}

// Feedback is a contact-form submission
type Feedback struct {
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Message string `json:"message"`
	Rating  int    `json:"rating"`
}

// ErrorBody is the backend's failure shape
type ErrorBody struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

// ReportCount is the backend's running total of generated reports
type ReportCount struct {
	Count int `json:"count"`
}
