package blocker

import (
	"context"

	"github.com/washfold/washfold/internal/entity"
	"github.com/washfold/washfold/internal/workflow"
)

// Blocker is a structured reason a transition cannot proceed despite being
// otherwise legal and permitted. Callers receive the full list so they can
// present every remediation step at once.
type Blocker struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Facts is the order-related evidence the evaluator inspects. The engine
// assembles it once per transition so every source sees the same view.
type Facts struct {
	Order      *entity.Order
	Items      []entity.OrderItem
	OpenIssues []entity.Issue
	Target     workflow.Status
}

// Source contributes zero or more blockers from one independent concern.
type Source interface {
	Name() string
	Evaluate(ctx context.Context, facts Facts) ([]Blocker, error)
}
