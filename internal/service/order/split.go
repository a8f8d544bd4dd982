package order

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/washfold/washfold/internal/entity"
	"github.com/washfold/washfold/internal/permission"
	orderrepo "github.com/washfold/washfold/internal/repository/order"
	"github.com/washfold/washfold/pkg/errorbank"
)

// PermSplit is the action code gating order splits.
const PermSplit = "orders:split"

// Split derives child orders from a parent, redistributing its items. Every
// parent item must land in exactly one group; the whole operation is
// all-or-nothing, so partially created children are never observable.
func (s *Service) Split(ctx context.Context, actor permission.Actor, orderID int64, groups [][]int64) ([]entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Split", trace.WithAttributes(
		attribute.Int64("order.id", orderID),
		attribute.Int("split.groups", len(groups)),
	))
	defer span.End()

	if !s.gate.Can(ctx, actor, PermSplit) {
		return nil, errorbank.PermissionDenied("actor may not split orders",
			errorbank.WithDetail("required", []string{PermSplit}))
	}

	if len(groups) < 2 {
		return nil, errorbank.Validation("a split needs at least two item groups",
			errorbank.WithDetail("field", "groups"))
	}

	parent, err := s.orders.GetByID(ctx, actor.TenantID, orderID)
	if err != nil {
		if errors.Is(err, orderrepo.ErrNotFound) {
			return nil, errorbank.NotFound("order not found")
		}
		span.RecordError(err)
		return nil, errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}

	items, err := s.orders.Items(ctx, parent.ID)
	if err != nil {
		span.RecordError(err)
		return nil, errorbank.Internal("failed to load order items", errorbank.WithCause(err))
	}

	if err := validateItemGroups(items, groups); err != nil {
		return nil, err
	}

	// Items with open issues must be cleared before they can move.
	openIssues, err := s.issues.OpenForOrder(ctx, parent.ID)
	if err != nil {
		span.RecordError(err)
		return nil, errorbank.Internal("failed to load open issues", errorbank.WithCause(err))
	}
	if len(openIssues) > 0 {
		details := make([]map[string]any, 0, len(openIssues))
		for _, issue := range openIssues {
			details = append(details, map[string]any{
				"issue_id":      issue.ID,
				"order_item_id": issue.OrderItemID,
				"issue_code":    issue.Code,
			})
		}
		return nil, errorbank.Blocked("unresolved issues reference items being moved",
			errorbank.WithDetail("issues", details))
	}

	tenant, err := s.tenants.GetByID(ctx, actor.TenantID)
	if err != nil {
		span.RecordError(err)
		return nil, errorbank.Internal("failed to load tenant", errorbank.WithCause(err))
	}
	if tenant.MaxSplitChildren > 0 && len(groups) > tenant.MaxSplitChildren {
		return nil, errorbank.LimitExceeded(
			fmt.Sprintf("plan allows at most %d child orders per split", tenant.MaxSplitChildren),
			errorbank.WithDetail("limit", tenant.MaxSplitChildren),
			errorbank.WithDetail("requested", len(groups)),
		)
	}

	itemGroups := make([]orderrepo.ItemGroup, 0, len(groups))
	for _, ids := range groups {
		itemGroups = append(itemGroups, orderrepo.ItemGroup{ItemIDs: ids})
	}

	children, err := s.orders.CreateChildren(ctx, parent, itemGroups)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "split failed")
		return nil, errorbank.Internal("failed to create child orders", errorbank.WithCause(err))
	}

	s.publishSplit(ctx, parent, children)

	s.logger.Info("order split",
		zap.Int64("parent_id", parent.ID),
		zap.Int64("tenant_id", actor.TenantID),
		zap.Int("children", len(children)),
		zap.String("actor_id", actor.ID),
	)

	return children, nil
}

// validateItemGroups enforces exhaustive assignment: every parent item in
// exactly one group, no duplicates, no unknown ids, no empty group.
func validateItemGroups(items []entity.OrderItem, groups [][]int64) error {
	known := make(map[int64]bool, len(items))
	for _, item := range items {
		known[item.ID] = false
	}

	for i, group := range groups {
		if len(group) == 0 {
			return errorbank.Validation(fmt.Sprintf("item group %d is empty", i+1),
				errorbank.WithDetail("group", i+1))
		}
		for _, id := range group {
			seen, ok := known[id]
			if !ok {
				return errorbank.Validation(fmt.Sprintf("item %d does not belong to this order", id),
					errorbank.WithDetail("order_item_id", id))
			}
			if seen {
				return errorbank.Validation(fmt.Sprintf("item %d is assigned to more than one group", id),
					errorbank.WithDetail("order_item_id", id))
			}
			known[id] = true
		}
	}

	var orphaned []int64
	for id, seen := range known {
		if !seen {
			orphaned = append(orphaned, id)
		}
	}
	if len(orphaned) > 0 {
		return errorbank.Validation("every item must be assigned to a group",
			errorbank.WithDetail("unassigned_item_ids", orphaned))
	}
	return nil
}
