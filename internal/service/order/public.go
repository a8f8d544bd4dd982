package order

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/washfold/washfold/internal/permission"
	orderrepo "github.com/washfold/washfold/internal/repository/order"
	tenantrepo "github.com/washfold/washfold/internal/repository/tenant"
	"github.com/washfold/washfold/internal/workflow"
	"github.com/washfold/washfold/pkg/errorbank"
)

// publicConfirmSources is the fixed set of statuses the unauthenticated
// confirmation link may act from. The target is always delivered; the
// delivered -> delivered self-edge in the workflow definition makes repeated
// confirmations idempotent.
var publicConfirmSources = map[workflow.Status]struct{}{
	workflow.StatusReady:          {},
	workflow.StatusOutForDelivery: {},
	workflow.StatusDelivered:      {},
}

// ConfirmDelivery is the public confirmation entry point, authenticated only
// by possession of a tenant slug + order number pair. It runs the exact same
// transition pipeline as every other caller, under a synthetic public-link
// actor that carries no elevated permissions.
func (s *Service) ConfirmDelivery(ctx context.Context, tenantSlug, orderNumber string) (*TransitionResult, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.ConfirmDelivery", trace.WithAttributes(
		attribute.String("tenant.slug", tenantSlug),
		attribute.String("order.number", orderNumber),
	))
	defer span.End()

	tenant, err := s.tenants.GetBySlug(ctx, tenantSlug)
	if err != nil {
		if errors.Is(err, tenantrepo.ErrNotFound) {
			return nil, errorbank.NotFound("order not found")
		}
		span.RecordError(err)
		return nil, errorbank.Internal("failed to load tenant", errorbank.WithCause(err))
	}

	order, err := s.orders.GetByNumber(ctx, tenant.ID, orderNumber)
	if err != nil {
		if errors.Is(err, orderrepo.ErrNotFound) {
			return nil, errorbank.NotFound("order not found")
		}
		span.RecordError(err)
		return nil, errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}

	if _, ok := publicConfirmSources[order.Status]; !ok {
		return nil, errorbank.InvalidTransition("order cannot be confirmed from its current stage",
			errorbank.WithDetail("current", order.Status.String()))
	}

	actor := permission.PublicLinkActor(tenant.ID, workflow.PermTransition)
	return s.Transition(ctx, actor, order.ID, workflow.StatusDelivered, TransitionOptions{
		From:     order.Status,
		Mode:     workflow.ModeLegacy,
		Metadata: map[string]string{"source": "public-link"},
	})
}
