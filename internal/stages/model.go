package stages

import (
	"context"

	"datanomics/domain/analysis"
	"datanomics/domain/core"
	"datanomics/domain/session"
	"datanomics/domain/stage"
	"datanomics/internal"
	"datanomics/internal/errors"
	"datanomics/internal/flight"
	"datanomics/internal/navigator"
)

// ActionRunModel is the single-flight key of model runs
const ActionRunModel flight.Action = "run-model"

// ModelOption is one entry of the model catalog
type ModelOption struct {
	ID          analysis.ModelKind
	Title       string
	Description string
}

// ModelCatalog lists the models in display order
var ModelCatalog = []ModelOption{
	{analysis.ModelOLS, "Simple Linear Regression (OLS)", "Predicts a dependent variable based on one or more independent variables."},
	{analysis.ModelVAR, "Vector Autoregression (VAR)", "Models interdependencies among multiple time series."},
	{analysis.ModelARIMA, "ARIMA Model", "Analyzes and forecasts a single time series variable."},
}

// Role is the group a variable is assigned to
type Role string

const (
	RoleAvailable  Role = "available"
	RoleEndogenous Role = "endogenous"
	RoleExogenous  Role = "exogenous"
)

// Model fits an econometric model and hands its summary to the Report stage
type Model struct {
	view
	slot   *ModelSlot
	logger *internal.Logger

	model      analysis.ModelKind
	variables  []string
	endogenous []string
	exogenous  []string
}

func NewModel(deps Deps, slot *ModelSlot) *Model {
	return &Model{
		view:   newView(stage.StageModel, deps),
		slot:   slot,
		logger: deps.logger("Model"),
		model:  analysis.ModelOLS,
	}
}

// Activate lists the numeric columns. Role assignments from the last visit
// are kept when the columns still exist.
func (m *Model) Activate(_ context.Context, a navigator.Activation, sess session.AnalysisSession) {
	m.begin(a)
	vars := NumericColumns(sess)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.variables = vars
	m.endogenous = intersect(m.endogenous, vars)
	m.exogenous = intersect(m.exogenous, vars)
}

func (m *Model) Deactivate(navigator.Activation) {}

// NumericColumns returns the columns whose value in the first row is a number
func NumericColumns(sess session.AnalysisSession) []string {
	out := []string{}
	if !sess.HasDataset() {
		return out
	}
	first := sess.FullDataset[0]
	for _, col := range sess.Columns {
		v, _ := first.Get(col)
		if _, ok := session.Numeric(v); ok {
			out = append(out, col)
		}
	}
	return out
}

// SelectModel picks the model to fit
func (m *Model) SelectModel(id analysis.ModelKind) error {
	for _, opt := range ModelCatalog {
		if opt.ID == id {
			m.mu.Lock()
			m.model = id
			m.mu.Unlock()
			return nil
		}
	}
	err := errors.ValidationError("Unknown model: " + string(id))
	m.setErr(err)
	return err
}

// Assign moves variable into role, removing it from any other group. An
// unknown role or variable leaves every group unchanged.
func (m *Model) Assign(variable string, role Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !contains(m.variables, variable) {
		err := errors.ValidationError("Unknown variable: " + variable)
		m.err = err
		return err
	}
	switch role {
	case RoleAvailable, RoleEndogenous, RoleExogenous:
	default:
		err := errors.ValidationError("Unknown role: " + string(role))
		m.err = err
		return err
	}
	m.endogenous = without(m.endogenous, variable)
	m.exogenous = without(m.exogenous, variable)
	switch role {
	case RoleEndogenous:
		m.endogenous = append(m.endogenous, variable)
	case RoleExogenous:
		m.exogenous = append(m.exogenous, variable)
	}
	return nil
}

// AssignAvailable moves every unassigned variable into role
func (m *Model) AssignAvailable(role Role) error {
	for _, v := range m.Available() {
		if err := m.Assign(v, role); err != nil {
			return err
		}
	}
	return nil
}

// Available returns the variables in no group, in column order
func (m *Model) Available() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []string{}
	for _, v := range m.variables {
		if !contains(m.endogenous, v) && !contains(m.exogenous, v) {
			out = append(out, v)
		}
	}
	return out
}

// Endogenous returns the dependent variables in assignment order
func (m *Model) Endogenous() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string{}, m.endogenous...)
}

// Exogenous returns the independent variables in assignment order
func (m *Model) Exogenous() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string{}, m.exogenous...)
}

// SelectedModel returns the model that Run will fit
func (m *Model) SelectedModel() analysis.ModelKind {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.model
}

// Result returns the last model summary
func (m *Model) Result() session.ModelResult {
	return m.slot.Get()
}

// Run fits the selected model. The previous result is cleared first so the
// Report stage never sees a summary of an older model. A result that arrives
// after the dataset was replaced or the slot was cleared is dropped with
// core.ErrStaleResponse.
func (m *Model) Run(ctx context.Context) (session.ModelResult, error) {
	var result session.ModelResult
	err := m.run(ctx, ActionRunModel, func(ctx context.Context) error {
		gen := m.deps.Store.Generation()
		reservation := m.slot.Reserve()
		req := analysis.ModelRequest{
			Dataset:    m.deps.Store.Get().FullDataset,
			ModelID:    m.SelectedModel(),
			Endogenous: m.Endogenous(),
			Exogenous:  m.Exogenous(),
		}
		res, err := m.deps.Backend.RunModel(ctx, req)
		if err != nil {
			return err
		}
		if m.deps.Store.Generation() != gen || !m.slot.SetIf(reservation, res) {
			m.logger.Warn("dropping %s result: session changed while fitting", req.ModelID)
			return core.ErrStaleResponse
		}
		m.logger.Info("%s fitted: endogenous=%v exogenous=%v", req.ModelID, req.Endogenous, req.Exogenous)
		result = res
		return nil
	})
	return result, err
}

func intersect(list, allowed []string) []string {
	out := []string{}
	for _, v := range list {
		if contains(allowed, v) {
			out = append(out, v)
		}
	}
	return out
}

func without(list []string, s string) []string {
	out := list[:0:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
