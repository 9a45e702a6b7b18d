package stages

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"strings"

	"datanomics/adapters/excel"
	"datanomics/domain/core"
	"datanomics/domain/session"
	"datanomics/domain/stage"
	"datanomics/internal"
	"datanomics/internal/errors"
	"datanomics/internal/flight"
	"datanomics/internal/navigator"
)

// ActionUpload is the single-flight key of file uploads
const ActionUpload flight.Action = "upload"

// UploadOutcome is what the screen shows after a successful upload
type UploadOutcome struct {
	Session  session.AnalysisSession
	Warnings []session.QualityIssue
}

// Upload parses a dataset through the backend and replaces the session with it
type Upload struct {
	view
	logger   *internal.Logger
	onLoaded func()

	warnings []session.QualityIssue
	done     bool
}

// NewUpload creates the upload controller. onLoaded runs after every
// successful upload, before Upload returns.
func NewUpload(deps Deps, onLoaded func()) *Upload {
	return &Upload{view: newView(stage.StageUpload, deps), logger: deps.logger("Upload"), onLoaded: onLoaded}
}

func (u *Upload) Activate(_ context.Context, a navigator.Activation, _ session.AnalysisSession) {
	u.begin(a)
}

func (u *Upload) Deactivate(navigator.Activation) {
	u.mu.Lock()
	u.done = false
	u.mu.Unlock()
}

// Warnings returns the quality issues of the last upload
func (u *Upload) Warnings() []session.QualityIssue {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return append([]session.QualityIssue(nil), u.warnings...)
}

// CanProceed reports whether an upload succeeded during this activation
func (u *Upload) CanProceed() bool {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.done
}

// Upload sends the file to the backend. Workbooks are converted to CSV first.
// On success the session is replaced wholesale.
func (u *Upload) Upload(ctx context.Context, filename string, content io.Reader) (*UploadOutcome, error) {
	if strings.TrimSpace(filename) == "" || content == nil {
		err := errors.ValidationError("Please select a file first")
		u.setErr(err)
		return nil, err
	}

	var outcome *UploadOutcome
	err := u.run(ctx, ActionUpload, func(ctx context.Context) error {
		u.mu.Lock()
		u.warnings, u.done = nil, false
		u.mu.Unlock()

		name, body, err := normalizeUpload(filename, content)
		if err != nil {
			return err
		}

		ticket := u.deps.Store.Ticket()
		result, err := u.deps.Backend.UploadDataset(ctx, name, body)
		if err != nil {
			u.logger.Warn("upload of %s failed: %v", filename, err)
			return err
		}
		sess, err := u.deps.Store.LoadIf(ticket, result.Session())
		if err != nil {
			return err
		}

		var warnings []session.QualityIssue
		if result.QualityReport != nil && !result.QualityReport.IsOK {
			warnings = result.QualityReport.Issues
		}
		u.mu.Lock()
		u.warnings, u.done = warnings, true
		u.mu.Unlock()

		if u.onLoaded != nil {
			u.onLoaded()
		}
		u.logger.Info("loaded %s: %d columns, %d rows, %d warnings", sess.Filename, len(sess.Columns), len(sess.FullDataset), len(warnings))
		outcome = &UploadOutcome{Session: sess, Warnings: warnings}
		return nil
	})
	if err != nil && core.IsStale(err) {
		u.logger.Info("discarded upload of %s: session was replaced meanwhile", filename)
	}
	return outcome, err
}

// normalizeUpload converts .xlsx workbooks to CSV, keeping the base name
func normalizeUpload(filename string, content io.Reader) (string, io.Reader, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext != ".xlsx" {
		return filename, content, nil
	}
	data, err := excel.ToCSV(content)
	if err != nil {
		return "", nil, errors.ValidationError("Could not read workbook: " + err.Error())
	}
	return strings.TrimSuffix(filename, filepath.Ext(filename)) + ".csv", bytes.NewReader(data), nil
}
