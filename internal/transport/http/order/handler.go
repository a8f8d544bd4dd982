package order

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/washfold/washfold/internal/dto"
	"github.com/washfold/washfold/internal/entity"
	"github.com/washfold/washfold/internal/permission"
	"github.com/washfold/washfold/internal/presentation/http/response"
	service "github.com/washfold/washfold/internal/service/order"
	"github.com/washfold/washfold/internal/workflow"
	"github.com/washfold/washfold/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/washfold/washfold/transport/http/order")

// Headers the gateway forwards after authenticating the caller. The engine
// only ever sees an actor identity plus tenant scope; authentication
// mechanics live upstream.
const (
	headerTenantID  = "X-Tenant-Id"
	headerActorID   = "X-Actor-Id"
	headerActorName = "X-Actor-Name"
)

// Handler exposes order workflow endpoints over HTTP.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs an order Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with the provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/orders")
	g.GET("/:id", h.getByID)
	g.GET("/:id/transitions", h.allowedTransitions)
	g.GET("/:id/timeline", h.timeline)
	g.POST("/:id/transition", h.transition)
	g.POST("/:id/split", h.split)
	g.POST("/:id/issues", h.createIssue)
	g.PATCH("/:id/issues/:issueID", h.resolveIssue)

	e.GET("/screens/:name/queue-filter", h.queueFilter)

	// Unauthenticated confirmation link: tenant slug + order number is the
	// whole credential.
	e.POST("/public/orders/:tenant/:number/delivered", h.confirmDelivery)
}

func (h *Handler) getByID(c echo.Context) error {
	b := response.New(c)

	actor, err := actorFrom(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	id, err := pathID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.getByID", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order, err := h.svc.Get(ctx, actor.TenantID, id)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(toOrderDTO(order)).Build()
}

func (h *Handler) allowedTransitions(c echo.Context) error {
	b := response.New(c)

	actor, err := actorFrom(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	id, err := pathID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}
	mode := workflow.Mode(c.QueryParam("mode"))

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.allowedTransitions", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	current, allowed, err := h.svc.AllowedTransitions(ctx, actor.TenantID, id, mode)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(dto.AllowedTransitionsResponse{
		CurrentStatus:      current.String(),
		AllowedTransitions: statusStrings(allowed),
	}).Build()
}

func (h *Handler) timeline(c echo.Context) error {
	b := response.New(c)

	actor, err := actorFrom(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	id, err := pathID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.timeline", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	records, err := h.svc.Timeline(ctx, actor.TenantID, id)
	if err != nil {
		return b.WithError(err).Build()
	}

	entries := make([]dto.TimelineEntryResponse, 0, len(records))
	for _, record := range records {
		entries = append(entries, toTimelineDTO(record))
	}
	return b.WithData(entries).Build()
}

func (h *Handler) transition(c echo.Context) error {
	b := response.New(c)

	actor, err := actorFrom(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	id, err := pathID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}

	var payload struct {
		ToStatus   string            `json:"to_status"`
		FromStatus string            `json:"from_status,omitempty"`
		Notes      string            `json:"notes,omitempty"`
		Metadata   map[string]string `json:"metadata,omitempty"`
		Screen     string            `json:"screen,omitempty"`
		Mode       string            `json:"mode,omitempty"`
	}
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.transition", trace.WithAttributes(
		attribute.Int64("order.id", id),
		attribute.String("transition.to", payload.ToStatus),
	))
	defer span.End()

	result, err := h.svc.Transition(ctx, actor, id, workflow.Normalize(payload.ToStatus), service.TransitionOptions{
		From:     workflow.Normalize(payload.FromStatus),
		Notes:    payload.Notes,
		Metadata: payload.Metadata,
		Screen:   payload.Screen,
		Mode:     workflow.Mode(payload.Mode),
	})
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(toTransitionDTO(result)).Build()
}

func (h *Handler) split(c echo.Context) error {
	b := response.New(c)

	actor, err := actorFrom(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	id, err := pathID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}

	var payload struct {
		Groups [][]int64 `json:"groups"`
	}
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.split", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	children, err := h.svc.Split(ctx, actor, id, payload.Groups)
	if err != nil {
		return b.WithError(err).Build()
	}

	resp := dto.SplitResponse{
		ChildOrderIDs: make([]int64, 0, len(children)),
		Children:      make([]dto.OrderResponse, 0, len(children)),
	}
	for i := range children {
		resp.ChildOrderIDs = append(resp.ChildOrderIDs, children[i].ID)
		resp.Children = append(resp.Children, toOrderDTO(&children[i]))
	}
	return b.WithStatus(http.StatusCreated).WithData(resp).Build()
}

func (h *Handler) createIssue(c echo.Context) error {
	b := response.New(c)

	actor, err := actorFrom(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	id, err := pathID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}

	var payload struct {
		OrderItemID int64  `json:"order_item_id"`
		IssueCode   string `json:"issue_code"`
		IssueText   string `json:"issue_text,omitempty"`
		Priority    string `json:"priority,omitempty"`
	}
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.createIssue", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	issue, err := h.svc.CreateIssue(ctx, actor, id, service.CreateIssueInput{
		OrderItemID: payload.OrderItemID,
		Code:        payload.IssueCode,
		Description: payload.IssueText,
		Priority:    payload.Priority,
	})
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithStatus(http.StatusCreated).WithData(toIssueDTO(issue)).Build()
}

func (h *Handler) resolveIssue(c echo.Context) error {
	b := response.New(c)

	actor, err := actorFrom(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	id, err := pathID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}
	issueID, err := pathID(c, "issueID")
	if err != nil {
		return b.WithError(err).Build()
	}

	var payload struct {
		Notes string `json:"notes"`
	}
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.resolveIssue", trace.WithAttributes(attribute.Int64("issue.id", issueID)))
	defer span.End()

	issue, err := h.svc.ResolveIssue(ctx, actor, id, issueID, payload.Notes)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(toIssueDTO(issue)).Build()
}

func (h *Handler) queueFilter(c echo.Context) error {
	b := response.New(c)

	actor, err := actorFrom(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	name := c.Param("name")

	ctx, span := httpTracer.Start(c.Request().Context(), "screens.queueFilter", trace.WithAttributes(attribute.String("screen", name)))
	defer span.End()

	filter, err := h.svc.QueueFilter(ctx, actor.TenantID, name)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(dto.QueueFilterResponse{
		Statuses:     statusStrings(filter.Statuses),
		ExtraFilters: filter.ExtraFilters,
	}).Build()
}

func (h *Handler) confirmDelivery(c echo.Context) error {
	b := response.New(c)

	tenantSlug := c.Param("tenant")
	number := c.Param("number")

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.confirmDelivery", trace.WithAttributes(
		attribute.String("tenant.slug", tenantSlug),
		attribute.String("order.number", number),
	))
	defer span.End()

	result, err := h.svc.ConfirmDelivery(ctx, tenantSlug, number)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(toTransitionDTO(result)).Build()
}

func actorFrom(c echo.Context) (permission.Actor, error) {
	tenantRaw := c.Request().Header.Get(headerTenantID)
	actorID := c.Request().Header.Get(headerActorID)
	if tenantRaw == "" || actorID == "" {
		return permission.Actor{}, errorbank.BadRequest("missing actor or tenant headers",
			errorbank.WithDetail("required_headers", []string{headerTenantID, headerActorID}))
	}
	tenantID, err := strconv.ParseInt(tenantRaw, 10, 64)
	if err != nil {
		return permission.Actor{}, errorbank.BadRequest("invalid tenant id", errorbank.WithCause(err))
	}
	return permission.Actor{
		ID:          actorID,
		DisplayName: c.Request().Header.Get(headerActorName),
		TenantID:    tenantID,
	}, nil
}

func pathID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		return 0, errorbank.BadRequest("invalid "+name, errorbank.WithCause(err))
	}
	return id, nil
}

func statusStrings(statuses []workflow.Status) []string {
	out := make([]string, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, s.String())
	}
	return out
}

func toOrderDTO(order *entity.Order) dto.OrderResponse {
	return dto.OrderResponse{
		ID:              order.ID,
		TenantID:        order.TenantID,
		Number:          order.Number,
		Status:          order.Status.String(),
		ServiceCategory: order.ServiceCategory,
		Priority:        order.Priority,
		DeliveryAddress: order.DeliveryAddress,
		ParentID:        order.ParentID,
		CreatedAt:       order.CreatedAt,
		UpdatedAt:       order.UpdatedAt,
	}
}

func toTransitionDTO(result *service.TransitionResult) dto.TransitionResponse {
	return dto.TransitionResponse{
		Order:              toOrderDTO(result.Order),
		AllowedTransitions: statusStrings(result.AllowedTransitions),
	}
}

func toIssueDTO(issue *entity.Issue) dto.IssueResponse {
	return dto.IssueResponse{
		ID:              issue.ID,
		OrderID:         issue.OrderID,
		OrderItemID:     issue.OrderItemID,
		Code:            issue.Code,
		Description:     issue.Description,
		Priority:        issue.Priority,
		Resolved:        issue.Resolved,
		ResolutionNotes: issue.ResolutionNotes,
		ResolvedBy:      issue.ResolvedBy,
		ResolvedAt:      issue.ResolvedAt,
		CreatedAt:       issue.CreatedAt,
	}
}

func toTimelineDTO(record entity.TransitionRecord) dto.TimelineEntryResponse {
	return dto.TimelineEntryResponse{
		ID:         record.ID,
		FromStatus: record.FromStatus.String(),
		ToStatus:   record.ToStatus.String(),
		ActorID:    record.ActorID,
		ActorName:  record.ActorName,
		Notes:      record.Notes,
		Metadata:   record.Metadata,
		CreatedAt:  record.CreatedAt,
	}
}
