package stages

import (
	"context"
	"strings"

	"datanomics/domain/analysis"
	"datanomics/domain/session"
	"datanomics/domain/stage"
	"datanomics/internal"
	"datanomics/internal/errors"
	"datanomics/internal/flight"
	"datanomics/internal/navigator"
)

// ActionSubmitFeedback is the single-flight key of the contact form
const ActionSubmitFeedback flight.Action = "submit-feedback"

// MaxRating is the highest star rating; zero means unrated
const MaxRating = 5

// Contact holds the feedback form
type Contact struct {
	view
	logger *internal.Logger

	form      analysis.Feedback
	submitted bool
}

func NewContact(deps Deps) *Contact {
	return &Contact{view: newView(stage.StageContact, deps), logger: deps.logger("Contact")}
}

func (c *Contact) Activate(_ context.Context, a navigator.Activation, _ session.AnalysisSession) {
	c.begin(a)
	c.mu.Lock()
	c.submitted = false
	c.mu.Unlock()
}

func (c *Contact) Deactivate(navigator.Activation) {}

// Form returns the current form contents
func (c *Contact) Form() analysis.Feedback {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.form
}

// Submitted reports whether the last submission succeeded
func (c *Contact) Submitted() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.submitted
}

// Submit sends the feedback. On success the form is cleared.
func (c *Contact) Submit(ctx context.Context, fb analysis.Feedback) error {
	fb.Email = strings.TrimSpace(fb.Email)
	c.mu.Lock()
	c.form = fb
	c.submitted = false
	c.mu.Unlock()

	if fb.Rating < 0 || fb.Rating > MaxRating {
		err := errors.ValidationError("Rating must be between 0 and 5")
		c.setErr(err)
		return err
	}

	return c.run(ctx, ActionSubmitFeedback, func(ctx context.Context) error {
		a := c.current()
		if err := c.deps.Backend.SubmitFeedback(ctx, fb); err != nil {
			return err
		}
		c.logger.Info("feedback submitted (rating %d)", fb.Rating)
		if c.live(a) {
			c.mu.Lock()
			c.form = analysis.Feedback{}
			c.submitted = true
			c.mu.Unlock()
		}
		return nil
	})
}
