package stages

import (
	"bytes"
	"context"
	"os"
	"path/filepath"

	"datanomics/adapters/excel"
	"datanomics/domain/analysis"
	"datanomics/domain/session"
	"datanomics/domain/stage"
	"datanomics/internal"
	"datanomics/internal/errors"
	"datanomics/internal/flight"
	"datanomics/internal/navigator"
	"datanomics/internal/transform"
)

// ActionClean is shared by every cleaning operation since each one rewrites the dataset
const ActionClean flight.Action = "clean"

// CleaningOption is one entry of the preparation catalog
type CleaningOption struct {
	ID          analysis.CleaningOperation
	Title       string
	Description string
}

// CleaningCatalog lists the operations in display order
var CleaningCatalog = []CleaningOption{
	{analysis.OpRemoveMissing, "Remove Missing Values", "Automatically remove rows with missing values."},
	{analysis.OpImputeMissing, "Impute Missing Values", "Replace empty cells in numeric columns with the column's average."},
	{analysis.OpHandleOutliers, "Handle Outliers", "Detect and remove or cap extreme values."},
	{analysis.OpUnifyFormats, "Unify Formats", "Ensure consistent formatting for dates and text."},
	{analysis.OpRemoveDuplicates, "Remove Duplicates", "Identify and remove duplicate rows for data integrity."},
	{analysis.OpNormalizeData, "Normalize Data", "Rescale numerical data to a standard range for better model performance."},
}

// localTransforms are the operations the client can compute on its own
var localTransforms = map[analysis.CleaningOperation]func([]session.Record) []session.Record{
	analysis.OpRemoveMissing:    transform.RemoveMissing,
	analysis.OpRemoveDuplicates: transform.RemoveDuplicates,
}

// PrepareOptions configures the Prepare stage
type PrepareOptions struct {
	PreviewRows int
	// Offline computes the client-capable operations locally without asking the backend
	Offline bool
}

// Preview is the table the Prepare screen shows
type Preview struct {
	Columns  []string
	Rows     []session.Record
	RowCount int
}

// Prepare applies cleaning operations to the session dataset and exports it
type Prepare struct {
	view
	opts   PrepareOptions
	logger *internal.Logger
}

// NewPrepare creates the preparation controller
func NewPrepare(deps Deps, opts PrepareOptions) *Prepare {
	if opts.PreviewRows <= 0 {
		opts.PreviewRows = session.PreviewSize
	}
	return &Prepare{view: newView(stage.StagePrepare, deps), opts: opts, logger: deps.logger("Prepare")}
}

func (p *Prepare) Activate(_ context.Context, a navigator.Activation, _ session.AnalysisSession) {
	p.begin(a)
}

func (p *Prepare) Deactivate(navigator.Activation) {}

// Preview returns the leading rows of the current dataset
func (p *Prepare) Preview() Preview {
	rows := p.deps.Store.Get().FullDataset
	out := Preview{RowCount: len(rows), Columns: []string{}}
	if len(rows) == 0 {
		out.Rows = []session.Record{}
		return out
	}
	out.Columns = rows[0].Keys()
	n := p.opts.PreviewRows
	if n > len(rows) {
		n = len(rows)
	}
	out.Rows = rows[:n]
	return out
}

// Clean runs op over the current dataset and commits the result. Transport
// failures fall back to the local engine for the operations it supports.
func (p *Prepare) Clean(ctx context.Context, op analysis.CleaningOperation) ([]session.Record, error) {
	if !knownOperation(op) {
		err := errors.ValidationError("Unknown cleaning operation: " + string(op))
		p.setErr(err)
		return nil, err
	}

	var cleaned []session.Record
	err := p.run(ctx, ActionClean, func(ctx context.Context) error {
		ticket := p.deps.Store.Ticket()
		rows := p.deps.Store.Get().FullDataset

		out, err := p.apply(ctx, op, rows)
		if err != nil {
			return err
		}
		next, err := p.deps.Store.Commit(ticket, session.Patch{}.WithFullDataset(out))
		if err != nil {
			p.logger.Info("dropped %s result: %v", op, err)
			return err
		}
		p.logger.Info("%s: %d -> %d rows", op, len(rows), len(next.FullDataset))
		cleaned = next.FullDataset
		return nil
	})
	return cleaned, err
}

func (p *Prepare) apply(ctx context.Context, op analysis.CleaningOperation, rows []session.Record) ([]session.Record, error) {
	local, canLocal := localTransforms[op]
	if canLocal && p.opts.Offline {
		return local(rows), nil
	}
	out, err := p.deps.Backend.Clean(ctx, rows, op)
	if err == nil {
		return out, nil
	}
	if gw, ok := errors.AsGatewayError(err); ok && gw.Network() && canLocal {
		p.logger.Warn("backend unreachable, computing %s locally", op)
		return local(rows), nil
	}
	return nil, err
}

func knownOperation(op analysis.CleaningOperation) bool {
	for _, o := range CleaningCatalog {
		if o.ID == op {
			return true
		}
	}
	return false
}

// CSV returns the current dataset as CSV text
func (p *Prepare) CSV() (string, error) {
	rows := p.deps.Store.Get().FullDataset
	if len(rows) == 0 {
		return "", errors.ValidationError("No data to export")
	}
	return transform.ToCSV(rows), nil
}

// ExportCSV writes cleaned_data.csv into dir and returns its path
func (p *Prepare) ExportCSV(dir string) (string, error) {
	csv, err := p.CSV()
	if err != nil {
		p.setErr(err)
		return "", err
	}
	return writeExport(dir, transform.CSVFilename, []byte(csv))
}

// ExportXLSX writes cleaned_data.xlsx into dir and returns its path
func (p *Prepare) ExportXLSX(dir string) (string, error) {
	rows := p.deps.Store.Get().FullDataset
	if len(rows) == 0 {
		err := errors.ValidationError("No data to export")
		p.setErr(err)
		return "", err
	}
	var buf bytes.Buffer
	if err := excel.Write(&buf, rows); err != nil {
		return "", errors.ResourceError("failed to build workbook", err)
	}
	return writeExport(dir, excel.XLSXFilename, buf.Bytes())
}

func writeExport(dir, name string, data []byte) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.ResourceError("failed to create export directory", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", errors.ResourceError("failed to write "+name, err)
	}
	return path, nil
}
