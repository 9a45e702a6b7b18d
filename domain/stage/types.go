package stage

import (
	"fmt"
	"strings"

	"datanomics/domain/core"
	"datanomics/domain/session"
)

// StageName represents one screen of the analysis workflow
type StageName string

// Predefined stage names, in workflow order
const (
	StageUpload    StageName = "upload"
	StagePrepare   StageName = "prepare"
	StageVisualize StageName = "visualize"
	StageDiagnose  StageName = "diagnose"
	StageModel     StageName = "model"
	StageReport    StageName = "report"
	StageContact   StageName = "contact"
	StageSupport   StageName = "support"

	// StageNotFound is the catch-all for unknown deep links
	StageNotFound StageName = "not_found"
)

// Prerequisite is a predicate over the session a stage needs before it may activate
type Prerequisite struct {
	Description string
	Check       func(session.AnalysisSession) bool
}

// StageSpec declares a stage: its title, deep-link path and prerequisite
type StageSpec struct {
	Name     StageName
	Title    string
	Path     string
	Requires *Prerequisite
}

var (
	requiresDataset = &Prerequisite{
		Description: "a non-empty dataset",
		Check:       func(s session.AnalysisSession) bool { return s.HasDataset() },
	}
	requiresColumns = &Prerequisite{
		Description: "uploaded columns and a non-empty dataset",
		Check:       func(s session.AnalysisSession) bool { return len(s.Columns) > 0 && s.HasDataset() },
	}
)

// Table is the fixed stage order with each stage's declarative prerequisite
var Table = []StageSpec{
	{Name: StageUpload, Title: "Upload", Path: "/"},
	{Name: StagePrepare, Title: "Data Preparation", Path: "/data-preparation"},
	{Name: StageVisualize, Title: "Dashboard", Path: "/dashboard", Requires: requiresDataset},
	{Name: StageDiagnose, Title: "Stability Tests", Path: "/stability-tests", Requires: requiresDataset},
	{Name: StageModel, Title: "Models & Analysis", Path: "/models-analysis", Requires: requiresColumns},
	{Name: StageReport, Title: "AI Reports", Path: "/ai-reports"},
	{Name: StageContact, Title: "Contact Us", Path: "/contact-us"},
	{Name: StageSupport, Title: "Support Us", Path: "/support-us"},
}

var notFoundSpec = StageSpec{Name: StageNotFound, Title: "Not Found", Path: "*"}

// Spec returns the declaration of a stage; unknown names resolve to NotFound
func (s StageName) Spec() StageSpec {
	for _, spec := range Table {
		if spec.Name == s {
			return spec
		}
	}
	return notFoundSpec
}

// Index returns the position of the stage in the workflow, or -1 for NotFound
func (s StageName) Index() int {
	for i, spec := range Table {
		if spec.Name == s {
			return i
		}
	}
	return -1
}

// Next returns the following stage; false at the end of the workflow or for NotFound
func (s StageName) Next() (StageName, bool) {
	i := s.Index()
	if i < 0 || i+1 >= len(Table) {
		return s, false
	}
	return Table[i+1].Name, true
}

// Prev returns the preceding stage; false at the start of the workflow or for NotFound
func (s StageName) Prev() (StageName, bool) {
	i := s.Index()
	if i <= 0 {
		return s, false
	}
	return Table[i-1].Name, true
}

// Satisfied evaluates the stage prerequisite against a session.
// The returned reason is empty when satisfied.
func (s StageName) Satisfied(sess session.AnalysisSession) (bool, string) {
	req := s.Spec().Requires
	if req == nil || req.Check(sess) {
		return true, ""
	}
	return false, "requires " + req.Description
}

// Parse resolves a stage by name or deep-link path
func Parse(ref string) (StageName, error) {
	ref = strings.TrimSpace(strings.ToLower(ref))
	for _, spec := range Table {
		if string(spec.Name) == ref || spec.Path == ref {
			return spec.Name, nil
		}
	}
	return StageNotFound, fmt.Errorf("%w: %q", core.ErrStageNotFound, ref)
}

// FromPath resolves a deep-link path, falling back to NotFound
func FromPath(path string) StageName {
	name, err := Parse(path)
	if err != nil {
		return StageNotFound
	}
	return name
}

// Names lists every workflow stage in order
func Names() []StageName {
	names := make([]StageName, len(Table))
	for i, spec := range Table {
		names[i] = spec.Name
	}
	return names
}
