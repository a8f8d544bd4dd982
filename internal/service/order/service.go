package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/washfold/washfold/internal/blocker"
	"github.com/washfold/washfold/internal/cache"
	"github.com/washfold/washfold/internal/config"
	"github.com/washfold/washfold/internal/entity"
	"github.com/washfold/washfold/internal/messaging"
	"github.com/washfold/washfold/internal/permission"
	orderrepo "github.com/washfold/washfold/internal/repository/order"
	workflowrepo "github.com/washfold/washfold/internal/repository/workflow"
	"github.com/washfold/washfold/internal/workflow"
	"github.com/washfold/washfold/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/washfold/washfold/service/order")

// OrderStore is the record store the engine mutates orders through. Status
// changes go through the conditional update exclusively.
type OrderStore interface {
	Create(ctx context.Context, order *entity.Order) error
	GetByID(ctx context.Context, tenantID, id int64) (*entity.Order, error)
	GetByNumber(ctx context.Context, tenantID int64, number string) (*entity.Order, error)
	Items(ctx context.Context, orderID int64) ([]entity.OrderItem, error)
	CompareAndSetStatus(ctx context.Context, tenantID, orderID int64, expectedFrom, newTo workflow.Status) (bool, error)
	CreateChildren(ctx context.Context, parent *entity.Order, groups []orderrepo.ItemGroup) ([]entity.Order, error)
}

// IssueStore persists order-item issues.
type IssueStore interface {
	Create(ctx context.Context, issue *entity.Issue) error
	GetByID(ctx context.Context, tenantID, id int64) (*entity.Issue, error)
	OpenForOrder(ctx context.Context, orderID int64) ([]entity.Issue, error)
	Resolve(ctx context.Context, tenantID, id int64, notes, resolvedBy string) (bool, error)
}

// AuditStore appends and reads the immutable transition trail.
type AuditStore interface {
	Append(ctx context.Context, record *entity.TransitionRecord) error
	ListForOrder(ctx context.Context, tenantID, orderID int64) ([]entity.TransitionRecord, error)
}

// ConfigSource yields versioned workflow snapshots.
type ConfigSource interface {
	Snapshot(ctx context.Context, tenantID int64, serviceCategory string) (*workflow.Snapshot, error)
}

// TenantStore provides tenant records and plan limits.
type TenantStore interface {
	GetByID(ctx context.Context, id int64) (*entity.Tenant, error)
	GetBySlug(ctx context.Context, slug string) (*entity.Tenant, error)
}

// Gate resolves actor permissions; denied on oracle failure.
type Gate interface {
	Can(ctx context.Context, actor permission.Actor, code string) bool
	CanAll(ctx context.Context, actor permission.Actor, codes []string) bool
	Missing(ctx context.Context, actor permission.Actor, codes []string) []string
}

// TransitionOptions carries the optional inputs of one transition request.
type TransitionOptions struct {
	// From is the status the caller believes the order is in. When set it
	// must match the persisted status; when empty the persisted status is
	// used. Either way the final update is compare-and-swapped.
	From workflow.Status

	Notes    string
	Metadata map[string]string

	// Screen names the originating screen; required in screen-contract mode.
	Screen string

	// Mode selects legacy or screen-contract validation.
	Mode workflow.Mode
}

// TransitionResult is returned on a successful transition: the new order
// state plus the transitions now reachable, for UI prefetching.
type TransitionResult struct {
	Order              *entity.Order
	AllowedTransitions []workflow.Status
}

// Service is the order workflow engine: transition orchestration, splits,
// issues, and the audit timeline.
type Service struct {
	orders    OrderStore
	issues    IssueStore
	audit     AuditStore
	configs   ConfigSource
	tenants   TenantStore
	gate      Gate
	blockers  *blocker.Evaluator
	cache     cache.Store
	cacheTTL  time.Duration
	logger    *zap.Logger
	publisher messaging.Client
	messaging messagingConfig
}

// messagingConfig contains messaging specific knobs we care about.
type messagingConfig struct {
	enabled bool
	topic   string
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Orders    OrderStore
	Issues    IssueStore
	Audit     AuditStore
	Configs   ConfigSource
	Tenants   TenantStore
	Gate      Gate
	Blockers  *blocker.Evaluator
	Cache     cache.Store
	Config    config.Config
	Logger    *zap.Logger
	Publisher messaging.Client
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return &Service{
		orders:    p.Orders,
		issues:    p.Issues,
		audit:     p.Audit,
		configs:   p.Configs,
		tenants:   p.Tenants,
		gate:      p.Gate,
		blockers:  p.Blockers,
		cache:     p.Cache,
		cacheTTL:  p.Config.Cache.DefaultTTL,
		logger:    p.Logger,
		publisher: p.Publisher,
		messaging: messagingConfig{
			enabled: p.Config.Messaging.Enabled,
			topic:   p.Config.Messaging.Kafka.Topic,
		},
	}
}

// Transition runs the full decision pipeline for one requested status move:
// permission gate, rule validation (legacy or screen-contract), per-edge
// requirements, blocker evaluation, compare-and-swap mutation, audit append.
// Exactly one audit record is written per success; every failure is logged.
func (s *Service) Transition(ctx context.Context, actor permission.Actor, orderID int64, toStatus workflow.Status, opts TransitionOptions) (*TransitionResult, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Transition", trace.WithAttributes(
		attribute.Int64("order.id", orderID),
		attribute.String("transition.to", toStatus.String()),
		attribute.String("transition.mode", string(opts.Mode)),
	))
	defer span.End()

	to := workflow.Normalize(toStatus.String())
	if to.IsZero() {
		return nil, s.failTransition(ctx, span, actor, orderID, "", to,
			errorbank.Validation("target status is required", errorbank.WithDetail("field", "to_status")))
	}

	order, err := s.orders.GetByID(ctx, actor.TenantID, orderID)
	if err != nil {
		if errors.Is(err, orderrepo.ErrNotFound) {
			return nil, s.failTransition(ctx, span, actor, orderID, "", to, errorbank.NotFound("order not found"))
		}
		span.RecordError(err)
		return nil, errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}

	from := workflow.Normalize(opts.From.String())
	if from.IsZero() {
		from = order.Status
	} else if from != order.Status {
		// The caller's view of the order is already stale; no point racing
		// the conditional update.
		return nil, s.failTransition(ctx, span, actor, orderID, from, to,
			errorbank.Conflict("order status has changed",
				errorbank.WithDetail("expected", from.String()),
				errorbank.WithDetail("current", order.Status.String()),
			))
	}

	snap, err := s.configs.Snapshot(ctx, actor.TenantID, order.ServiceCategory)
	if err != nil {
		if errors.Is(err, workflowrepo.ErrNotConfigured) {
			return nil, s.failTransition(ctx, span, actor, orderID, from, to,
				errorbank.Configuration("workflow is not configured for tenant",
					errorbank.WithDetail("tenant_id", actor.TenantID)))
		}
		span.RecordError(err)
		return nil, errorbank.Internal("failed to load workflow configuration", errorbank.WithCause(err))
	}

	if !snap.HasStatus(to) {
		return nil, s.failTransition(ctx, span, actor, orderID, from, to,
			errorbank.InvalidTransition(fmt.Sprintf("status %s is not configured for this tenant", to),
				errorbank.WithDetail("to", to.String())))
	}

	resolver, err := workflow.ResolverFor(opts.Mode)
	if err != nil {
		return nil, s.failTransition(ctx, span, actor, orderID, from, to, err)
	}

	req := workflow.Request{From: from, To: to, Screen: opts.Screen}

	required, err := resolver.RequiredPermissions(snap, req)
	if err != nil {
		return nil, s.failTransition(ctx, span, actor, orderID, from, to, err)
	}
	if !s.gate.CanAll(ctx, actor, required) {
		return nil, s.failTransition(ctx, span, actor, orderID, from, to,
			errorbank.PermissionDenied("actor may not perform this transition",
				errorbank.WithDetail("required", required),
				errorbank.WithDetail("missing", s.gate.Missing(ctx, actor, required)),
			))
	}

	// The dual-mode migration invariant: when both rule engines configure
	// this source status, they must agree. Divergence is a tenant
	// misconfiguration and is surfaced as an operational alert, never
	// silently resolved in either direction.
	decision, resolveErr := resolver.Resolve(snap, req)
	if eqErr := snap.CheckEquivalence(from, to); eqErr != nil {
		s.logger.Error("workflow configuration divergence between legacy map and template",
			zap.Int64("tenant_id", actor.TenantID),
			zap.String("from", from.String()),
			zap.String("to", to.String()),
			zap.Int("config_version", snap.Version),
		)
		return nil, s.failTransition(ctx, span, actor, orderID, from, to, eqErr)
	}
	if resolveErr != nil {
		return nil, s.failTransition(ctx, span, actor, orderID, from, to, resolveErr)
	}

	if decision.Edge.RequiresNotes && opts.Notes == "" {
		return nil, s.failTransition(ctx, span, actor, orderID, from, to,
			errorbank.Validation("notes are required for this transition",
				errorbank.WithDetail("field", "notes")))
	}

	facts, err := s.gatherFacts(ctx, order, to)
	if err != nil {
		span.RecordError(err)
		return nil, errorbank.Internal("failed to gather order facts", errorbank.WithCause(err))
	}
	blockers, err := s.blockers.Evaluate(ctx, facts)
	if err != nil {
		// An evaluator error is reported, never treated as "no blockers".
		span.RecordError(err)
		return nil, s.failTransition(ctx, span, actor, orderID, from, to,
			errorbank.Internal("blocker evaluation failed", errorbank.WithCause(err)))
	}
	if len(blockers) > 0 {
		return nil, s.failTransition(ctx, span, actor, orderID, from, to,
			errorbank.Blocked(fmt.Sprintf("%d blocker(s) prevent this transition", len(blockers)),
				errorbank.WithDetail("blockers", blockers)))
	}

	swapped, err := s.orders.CompareAndSetStatus(ctx, actor.TenantID, order.ID, from, to)
	if err != nil {
		span.RecordError(err)
		return nil, errorbank.Internal("failed to update order status", errorbank.WithCause(err))
	}
	if !swapped {
		return nil, s.failTransition(ctx, span, actor, orderID, from, to,
			errorbank.Conflict("order status has changed; refresh and retry",
				errorbank.WithDetail("expected", from.String())))
	}

	now := time.Now().UTC()
	order.Status = to
	order.UpdatedAt = now

	record := &entity.TransitionRecord{
		ID:         uuid.NewString(),
		TenantID:   actor.TenantID,
		OrderID:    order.ID,
		FromStatus: from,
		ToStatus:   to,
		ActorID:    actor.ID,
		ActorName:  actor.DisplayName,
		Notes:      opts.Notes,
		Metadata:   withScreen(opts.Metadata, opts.Screen),
		CreatedAt:  now,
	}
	if err := s.audit.Append(ctx, record); err != nil {
		// The status swap already committed; surface the gap loudly rather
		// than pretending the trail is complete.
		s.logger.Error("transition applied but audit append failed",
			zap.Int64("order_id", order.ID),
			zap.String("from", from.String()),
			zap.String("to", to.String()),
			zap.Error(err),
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, "audit append failed")
		return nil, errorbank.Internal("transition applied but audit record failed", errorbank.WithCause(err))
	}

	if err := s.storeInCache(ctx, order); err != nil {
		s.logger.Warn("orders cache write failed", zap.Int64("id", order.ID), zap.Error(err))
	}

	s.publishTransitioned(ctx, order, record)

	s.logger.Info("order transitioned",
		zap.Int64("order_id", order.ID),
		zap.Int64("tenant_id", actor.TenantID),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
		zap.String("actor_id", actor.ID),
		zap.String("mode", string(opts.Mode)),
	)

	return &TransitionResult{
		Order:              order,
		AllowedTransitions: workflow.RuleSetFor(snap, opts.Mode).AllowedFrom(to),
	}, nil
}

// AllowedTransitions returns the order's current status and the statuses
// reachable from it under the given validation mode.
func (s *Service) AllowedTransitions(ctx context.Context, tenantID, orderID int64, mode workflow.Mode) (workflow.Status, []workflow.Status, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.AllowedTransitions", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	order, err := s.orders.GetByID(ctx, tenantID, orderID)
	if err != nil {
		if errors.Is(err, orderrepo.ErrNotFound) {
			return "", nil, errorbank.NotFound("order not found")
		}
		span.RecordError(err)
		return "", nil, errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}

	snap, err := s.configs.Snapshot(ctx, tenantID, order.ServiceCategory)
	if err != nil {
		if errors.Is(err, workflowrepo.ErrNotConfigured) {
			return "", nil, errorbank.Configuration("workflow is not configured for tenant")
		}
		span.RecordError(err)
		return "", nil, errorbank.Internal("failed to load workflow configuration", errorbank.WithCause(err))
	}

	return order.Status, workflow.RuleSetFor(snap, mode).AllowedFrom(order.Status), nil
}

// Timeline returns the order's transition records in append order.
func (s *Service) Timeline(ctx context.Context, tenantID, orderID int64) ([]entity.TransitionRecord, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Timeline", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	if _, err := s.orders.GetByID(ctx, tenantID, orderID); err != nil {
		if errors.Is(err, orderrepo.ErrNotFound) {
			return nil, errorbank.NotFound("order not found")
		}
		span.RecordError(err)
		return nil, errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}

	records, err := s.audit.ListForOrder(ctx, tenantID, orderID)
	if err != nil {
		span.RecordError(err)
		return nil, errorbank.Internal("failed to load timeline", errorbank.WithCause(err))
	}
	return records, nil
}

// QueueFilter derives the work-queue filter for a named screen from the same
// contract the engine validates against.
func (s *Service) QueueFilter(ctx context.Context, tenantID int64, screenName string) (workflow.QueueFilter, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.QueueFilter", trace.WithAttributes(attribute.String("screen", screenName)))
	defer span.End()

	snap, err := s.configs.Snapshot(ctx, tenantID, "")
	if err != nil {
		if errors.Is(err, workflowrepo.ErrNotConfigured) {
			return workflow.QueueFilter{}, errorbank.Configuration("workflow is not configured for tenant")
		}
		span.RecordError(err)
		return workflow.QueueFilter{}, errorbank.Internal("failed to load workflow configuration", errorbank.WithCause(err))
	}
	contract, err := snap.Contract(screenName)
	if err != nil {
		return workflow.QueueFilter{}, err
	}
	return contract.QueueFilter(), nil
}

// Get retrieves an order by id, consulting cache when available.
func (s *Service) Get(ctx context.Context, tenantID, id int64) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Get", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	if order, err := s.getFromCache(ctx, id); err == nil {
		if order.TenantID == tenantID {
			return order, nil
		}
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("orders cache read failed", zap.Int64("id", id), zap.Error(err))
	}

	order, err := s.orders.GetByID(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, orderrepo.ErrNotFound) {
			return nil, errorbank.NotFound("order not found")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}

	if err := s.storeInCache(ctx, order); err != nil {
		s.logger.Warn("orders cache write failed", zap.Int64("id", id), zap.Error(err))
	}

	return order, nil
}

func (s *Service) gatherFacts(ctx context.Context, order *entity.Order, target workflow.Status) (blocker.Facts, error) {
	items, err := s.orders.Items(ctx, order.ID)
	if err != nil {
		return blocker.Facts{}, fmt.Errorf("load items: %w", err)
	}
	openIssues, err := s.issues.OpenForOrder(ctx, order.ID)
	if err != nil {
		return blocker.Facts{}, fmt.Errorf("load open issues: %w", err)
	}
	return blocker.Facts{
		Order:      order,
		Items:      items,
		OpenIssues: openIssues,
		Target:     target,
	}, nil
}

// failTransition logs a refused transition attempt and passes the error
// through. No failed attempt goes unlogged, even those not persisted to the
// audit trail.
func (s *Service) failTransition(_ context.Context, span trace.Span, actor permission.Actor, orderID int64, from, to workflow.Status, err error) error {
	appErr := errorbank.From(err)
	span.SetStatus(codes.Error, string(appErr.Kind()))
	s.logger.Warn("transition refused",
		zap.Int64("order_id", orderID),
		zap.Int64("tenant_id", actor.TenantID),
		zap.String("actor_id", actor.ID),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
		zap.String("kind", string(appErr.Kind())),
		zap.String("reason", appErr.Message()),
	)
	return err
}

func withScreen(metadata map[string]string, screen string) map[string]string {
	if screen == "" {
		return metadata
	}
	out := make(map[string]string, len(metadata)+1)
	for k, v := range metadata {
		out[k] = v
	}
	out["screen"] = screen
	return out
}

func (s *Service) cacheKey(id int64) string {
	return fmt.Sprintf("orders:%d", id)
}

func (s *Service) getFromCache(ctx context.Context, id int64) (*entity.Order, error) {
	if s.cache == nil {
		return nil, cache.ErrCacheMiss
	}
	bytes, err := s.cache.Get(ctx, s.cacheKey(id))
	if err != nil {
		return nil, err
	}
	var order entity.Order
	if err := json.Unmarshal(bytes, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *Service) storeInCache(ctx context.Context, order *entity.Order) error {
	if s.cache == nil || order == nil {
		return nil
	}
	bytes, err := json.Marshal(order)
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, s.cacheKey(order.ID), bytes, s.cacheTTL)
}
