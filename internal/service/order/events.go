package order

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/washfold/washfold/internal/entity"
	"github.com/washfold/washfold/internal/workflow"
)

// OrderTransitionedEvent is emitted after every successful transition.
type OrderTransitionedEvent struct {
	Type       string            `json:"type"`
	OrderID    int64             `json:"order_id"`
	TenantID   int64             `json:"tenant_id"`
	Number     string            `json:"number"`
	FromStatus workflow.Status   `json:"from_status"`
	ToStatus   workflow.Status   `json:"to_status"`
	ActorID    string            `json:"actor_id"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// OrderSplitEvent is emitted after a successful split.
type OrderSplitEvent struct {
	Type       string    `json:"type"`
	ParentID   int64     `json:"parent_id"`
	TenantID   int64     `json:"tenant_id"`
	ChildIDs   []int64   `json:"child_ids"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Event type discriminators carried in the payload.
const (
	EventTypeTransitioned = "order.transitioned"
	EventTypeSplit        = "order.split"
)

func (s *Service) publishTransitioned(ctx context.Context, order *entity.Order, record *entity.TransitionRecord) {
	if !s.messaging.enabled || s.publisher == nil {
		return
	}
	event := OrderTransitionedEvent{
		Type:       EventTypeTransitioned,
		OrderID:    order.ID,
		TenantID:   order.TenantID,
		Number:     order.Number,
		FromStatus: record.FromStatus,
		ToStatus:   record.ToStatus,
		ActorID:    record.ActorID,
		Metadata:   record.Metadata,
		OccurredAt: record.CreatedAt,
	}
	s.publish(ctx, order.ID, event)
}

func (s *Service) publishSplit(ctx context.Context, parent *entity.Order, children []entity.Order) {
	if !s.messaging.enabled || s.publisher == nil {
		return
	}
	ids := make([]int64, 0, len(children))
	for _, child := range children {
		ids = append(ids, child.ID)
	}
	event := OrderSplitEvent{
		Type:       EventTypeSplit,
		ParentID:   parent.ID,
		TenantID:   parent.TenantID,
		ChildIDs:   ids,
		OccurredAt: time.Now().UTC(),
	}
	s.publish(ctx, parent.ID, event)
}

func (s *Service) publish(ctx context.Context, orderID int64, event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("marshal order event", zap.Error(err))
		return
	}
	if err := s.publisher.Publish(ctx, []byte(fmt.Sprintf("order-%d", orderID)), payload); err != nil {
		s.logger.Error("publish order event", zap.Error(err))
	}
}
