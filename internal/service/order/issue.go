package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/washfold/washfold/internal/entity"
	"github.com/washfold/washfold/internal/permission"
	issuerepo "github.com/washfold/washfold/internal/repository/issue"
	orderrepo "github.com/washfold/washfold/internal/repository/order"
	"github.com/washfold/washfold/pkg/errorbank"
)

// Action codes gating the issue subsystem.
const (
	PermIssueCreate  = "issues:create"
	PermIssueResolve = "issues:resolve"
)

// CreateIssueInput carries the inputs for raising an issue against an order
// item.
type CreateIssueInput struct {
	OrderItemID int64
	Code        string
	Description string
	Priority    string
}

// CreateIssue records an exception against one of the order's items. A
// high-priority issue forcing the order back to processing is a caller-level
// composition: create the issue, then request the transition.
func (s *Service) CreateIssue(ctx context.Context, actor permission.Actor, orderID int64, input CreateIssueInput) (*entity.Issue, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.CreateIssue", trace.WithAttributes(
		attribute.Int64("order.id", orderID),
		attribute.String("issue.code", input.Code),
	))
	defer span.End()

	if !s.gate.Can(ctx, actor, PermIssueCreate) {
		return nil, errorbank.PermissionDenied("actor may not create issues",
			errorbank.WithDetail("required", []string{PermIssueCreate}))
	}
	if input.Code == "" {
		return nil, errorbank.Validation("issue code is required", errorbank.WithDetail("field", "issue_code"))
	}
	priority := input.Priority
	if priority == "" {
		priority = entity.IssuePriorityNormal
	}
	switch priority {
	case entity.IssuePriorityLow, entity.IssuePriorityNormal, entity.IssuePriorityHigh:
	default:
		return nil, errorbank.Validation(fmt.Sprintf("unknown issue priority %q", priority),
			errorbank.WithDetail("field", "priority"))
	}

	order, err := s.orders.GetByID(ctx, actor.TenantID, orderID)
	if err != nil {
		if errors.Is(err, orderrepo.ErrNotFound) {
			return nil, errorbank.NotFound("order not found")
		}
		span.RecordError(err)
		return nil, errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}

	items, err := s.orders.Items(ctx, order.ID)
	if err != nil {
		span.RecordError(err)
		return nil, errorbank.Internal("failed to load order items", errorbank.WithCause(err))
	}
	if !containsItem(items, input.OrderItemID) {
		return nil, errorbank.NotFound("order item not found",
			errorbank.WithDetail("order_item_id", input.OrderItemID))
	}

	issue := &entity.Issue{
		TenantID:    actor.TenantID,
		OrderID:     order.ID,
		OrderItemID: input.OrderItemID,
		Code:        input.Code,
		Description: input.Description,
		Priority:    priority,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.issues.Create(ctx, issue); err != nil {
		span.RecordError(err)
		return nil, errorbank.Internal("failed to create issue", errorbank.WithCause(err))
	}

	s.logger.Info("issue created",
		zap.Int64("issue_id", issue.ID),
		zap.Int64("order_id", order.ID),
		zap.Int64("order_item_id", input.OrderItemID),
		zap.String("code", input.Code),
		zap.String("priority", priority),
		zap.String("actor_id", actor.ID),
	)

	return issue, nil
}

// ResolveIssue closes an open issue with resolution notes. Resolution is
// one-way; resolving an already-resolved issue is a conflict, and reopening
// means raising a new issue.
func (s *Service) ResolveIssue(ctx context.Context, actor permission.Actor, orderID, issueID int64, notes string) (*entity.Issue, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.ResolveIssue", trace.WithAttributes(
		attribute.Int64("issue.id", issueID),
	))
	defer span.End()

	if !s.gate.Can(ctx, actor, PermIssueResolve) {
		return nil, errorbank.PermissionDenied("actor may not resolve issues",
			errorbank.WithDetail("required", []string{PermIssueResolve}))
	}

	issue, err := s.issues.GetByID(ctx, actor.TenantID, issueID)
	if err != nil {
		if errors.Is(err, issuerepo.ErrNotFound) {
			return nil, errorbank.NotFound("issue not found")
		}
		span.RecordError(err)
		return nil, errorbank.Internal("failed to load issue", errorbank.WithCause(err))
	}
	if issue.OrderID != orderID {
		return nil, errorbank.NotFound("issue not found",
			errorbank.WithDetail("order_id", orderID))
	}

	resolved, err := s.issues.Resolve(ctx, actor.TenantID, issueID, notes, actor.ID)
	if err != nil {
		span.RecordError(err)
		return nil, errorbank.Internal("failed to resolve issue", errorbank.WithCause(err))
	}
	if !resolved {
		return nil, errorbank.Conflict("issue is already resolved",
			errorbank.WithDetail("issue_id", issueID))
	}

	issue, err = s.issues.GetByID(ctx, actor.TenantID, issueID)
	if err != nil {
		span.RecordError(err)
		return nil, errorbank.Internal("failed to reload issue", errorbank.WithCause(err))
	}

	s.logger.Info("issue resolved",
		zap.Int64("issue_id", issueID),
		zap.Int64("order_id", orderID),
		zap.String("actor_id", actor.ID),
	)

	return issue, nil
}

func containsItem(items []entity.OrderItem, id int64) bool {
	for _, item := range items {
		if item.ID == id {
			return true
		}
	}
	return false
}
