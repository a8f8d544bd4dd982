package blocker

import (
	"context"
	"fmt"

	"github.com/washfold/washfold/internal/workflow"
)

// Blocker codes reported by the built-in sources.
const (
	CodeOpenIssue       = "open_issue"
	CodeSplitPending    = "split_pending"
	CodeMissingDelivery = "missing_delivery_address"
)

// openIssueSource blocks while any issue attached to the order's items is
// unresolved.
type openIssueSource struct{}

func (openIssueSource) Name() string { return "open_issues" }

func (openIssueSource) Evaluate(_ context.Context, facts Facts) ([]Blocker, error) {
	var blockers []Blocker
	for _, issue := range facts.OpenIssues {
		blockers = append(blockers, Blocker{
			Code:    CodeOpenIssue,
			Message: fmt.Sprintf("unresolved %s issue on item %d: %s", issue.Priority, issue.OrderItemID, issue.Code),
			Details: map[string]any{
				"issue_id":      issue.ID,
				"order_item_id": issue.OrderItemID,
				"issue_code":    issue.Code,
				"priority":      issue.Priority,
			},
		})
	}
	return blockers, nil
}

// splitPendingSource blocks while the order is flagged as mid-split.
type splitPendingSource struct{}

func (splitPendingSource) Name() string { return "split_pending" }

func (splitPendingSource) Evaluate(_ context.Context, facts Facts) ([]Blocker, error) {
	if facts.Order == nil || !facts.Order.SplitPending {
		return nil, nil
	}
	return []Blocker{{
		Code:    CodeSplitPending,
		Message: "a split is in progress on this order",
		Details: map[string]any{"order_id": facts.Order.ID},
	}}, nil
}

// requiredFieldSource blocks delivery-bound transitions when the order lacks
// a delivery address.
type requiredFieldSource struct{}

func (requiredFieldSource) Name() string { return "required_fields" }

func (requiredFieldSource) Evaluate(_ context.Context, facts Facts) ([]Blocker, error) {
	if facts.Target != workflow.StatusOutForDelivery && facts.Target != workflow.StatusDelivered {
		return nil, nil
	}
	if facts.Order == nil || facts.Order.DeliveryAddress != "" {
		return nil, nil
	}
	return []Blocker{{
		Code:    CodeMissingDelivery,
		Message: "order has no delivery address",
		Details: map[string]any{"field": "delivery_address"},
	}}, nil
}
