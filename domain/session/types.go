package session

import (
	"time"

	"datanomics/domain/core"
)

// ColumnType is the backend's inferred type hint for a column
type ColumnType string

const (
	ColumnNumeric ColumnType = "numeric"
	ColumnText    ColumnType = "text"
	ColumnDate    ColumnType = "date"
)

// PreviewSize is the number of leading rows kept as the upload preview
const PreviewSize = 5

// AnalysisSession is the shared state threaded through every stage.
// The zero value is not used; Empty() returns the canonical empty session.
type AnalysisSession struct {
	Filename        string                `json:"filename"`
	Columns         []string              `json:"columns"`
	PreviewRows     []Record              `json:"previewData"`
	ColumnTypeHints map[string]ColumnType `json:"suggestedTypes"`
	FullDataset     []Record              `json:"fullDataset"`
}

// Empty returns a session with no file and empty, non-nil collections
func Empty() AnalysisSession {
	return AnalysisSession{
		Columns:         []string{},
		PreviewRows:     []Record{},
		ColumnTypeHints: map[string]ColumnType{},
		FullDataset:     []Record{},
	}
}

// IsEmpty reports whether no file has been loaded
func (s AnalysisSession) IsEmpty() bool {
	return s.Filename == ""
}

// HasDataset reports whether at least one row is loaded
func (s AnalysisSession) HasDataset() bool {
	return len(s.FullDataset) > 0
}

// Clone copies the top-level collections so callers cannot mutate the
// store's copy. Records themselves are immutable and shared.
func (s AnalysisSession) Clone() AnalysisSession {
	out := AnalysisSession{
		Filename:        s.Filename,
		Columns:         append([]string{}, s.Columns...),
		PreviewRows:     append([]Record{}, s.PreviewRows...),
		ColumnTypeHints: make(map[string]ColumnType, len(s.ColumnTypeHints)),
		FullDataset:     append([]Record{}, s.FullDataset...),
	}
	for k, v := range s.ColumnTypeHints {
		out.ColumnTypeHints[k] = v
	}
	return out
}

// normalize replaces nil collections with empty ones
func (s AnalysisSession) normalize() AnalysisSession {
	if s.Columns == nil {
		s.Columns = []string{}
	}
	if s.PreviewRows == nil {
		s.PreviewRows = []Record{}
	}
	if s.ColumnTypeHints == nil {
		s.ColumnTypeHints = map[string]ColumnType{}
	}
	if s.FullDataset == nil {
		s.FullDataset = []Record{}
	}
	return s
}

// Patch is a partial replacement built with the With* methods. Fields that
// were never set are left untouched by Apply.
type Patch struct {
	filename *string
	columns  *[]string
	preview  *[]Record
	hints    *map[string]ColumnType
	dataset  *[]Record
}

// WithFilename sets the filename field
func (p Patch) WithFilename(name string) Patch {
	p.filename = &name
	return p
}

// WithColumns sets the column list
func (p Patch) WithColumns(columns []string) Patch {
	p.columns = &columns
	return p
}

// WithPreviewRows sets the preview rows
func (p Patch) WithPreviewRows(rows []Record) Patch {
	p.preview = &rows
	return p
}

// WithColumnTypeHints sets the type hints
func (p Patch) WithColumnTypeHints(hints map[string]ColumnType) Patch {
	p.hints = &hints
	return p
}

// WithFullDataset sets the full dataset
func (p Patch) WithFullDataset(rows []Record) Patch {
	p.dataset = &rows
	return p
}

// TouchesDataset reports whether the patch changes the dataset field
func (p Patch) TouchesDataset() bool {
	return p.dataset != nil
}

// IsZero reports whether the patch sets nothing
func (p Patch) IsZero() bool {
	return p.filename == nil && p.columns == nil && p.preview == nil && p.hints == nil && p.dataset == nil
}

// ReplaceAll builds a patch that sets every field from s
func ReplaceAll(s AnalysisSession) Patch {
	return Patch{}.
		WithFilename(s.Filename).
		WithColumns(s.Columns).
		WithPreviewRows(s.PreviewRows).
		WithColumnTypeHints(s.ColumnTypeHints).
		WithFullDataset(s.FullDataset)
}

// Apply merges the patch into s field by field and returns the result
func (p Patch) Apply(s AnalysisSession) AnalysisSession {
	if p.filename != nil {
		s.Filename = *p.filename
	}
	if p.columns != nil {
		s.Columns = append([]string{}, (*p.columns)...)
	}
	if p.preview != nil {
		s.PreviewRows = append([]Record{}, (*p.preview)...)
	}
	if p.hints != nil {
		hints := make(map[string]ColumnType, len(*p.hints))
		for k, v := range *p.hints {
			hints[k] = v
		}
		s.ColumnTypeHints = hints
	}
	if p.dataset != nil {
		s.FullDataset = append([]Record{}, (*p.dataset)...)
	}
	return s.normalize()
}

// QualityIssue is a human-readable data-quality concern reported on upload
type QualityIssue string

// QualityReport is the optional upload quality summary
type QualityReport struct {
	IsOK   bool           `json:"is_ok"`
	Issues []QualityIssue `json:"issues"`
}

// ModelResult is the opaque model summary handed from the Model stage to the
// Report stage. It is never written to the durable cache.
type ModelResult string

// IsEmpty reports whether no model has been run
func (m ModelResult) IsEmpty() bool {
	return m == ""
}

// SchemaVersion tags cached snapshots so a format change invalidates old entries
const SchemaVersion = 1

// Snapshot is the envelope persisted by the durable session cache
type Snapshot struct {
	SchemaVersion int             `json:"schemaVersion"`
	SessionID     core.SessionID  `json:"sessionId"`
	SavedAt       time.Time       `json:"savedAt"`
	Session       AnalysisSession `json:"analysisData"`
}
