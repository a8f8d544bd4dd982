package entity

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/washfold/washfold/internal/workflow"
)

// TransitionRecord is one immutable audit entry: who moved which order from
// where to where, when, and with what context. Records are append-only and
// form the per-order timeline.
type TransitionRecord struct {
	bun.BaseModel `bun:"table:transition_records"`

	ID         string          `bun:",pk"`
	TenantID   int64           `bun:"tenant_id,notnull"`
	OrderID    int64           `bun:"order_id,notnull"`
	FromStatus workflow.Status `bun:"from_status,notnull"`
	ToStatus   workflow.Status `bun:"to_status,notnull"`
	ActorID    string          `bun:"actor_id,notnull"`
	ActorName  string          `bun:"actor_name"`
	Notes      string          `bun:"notes,nullzero"`

	// Metadata carries arbitrary client context (originating screen,
	// request id, user agent).
	Metadata map[string]string `bun:"metadata,type:jsonb,nullzero"`

	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
}
