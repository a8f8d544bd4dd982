package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// Issue priorities.
const (
	IssuePriorityLow    = "low"
	IssuePriorityNormal = "normal"
	IssuePriorityHigh   = "high"
)

// Issue records an exception against a specific order item, typically raised
// during quality or processing stages. Resolution is one-way: reopening is a
// new issue.
type Issue struct {
	bun.BaseModel `bun:"table:issues"`

	ID          int64  `bun:",pk,autoincrement"`
	TenantID    int64  `bun:"tenant_id,notnull"`
	OrderID     int64  `bun:"order_id,notnull"`
	OrderItemID int64  `bun:"order_item_id,notnull"`
	Code        string `bun:"code,notnull"`
	Description string `bun:"description"`
	Priority    string `bun:"priority,notnull,default:'normal'"`

	Resolved        bool       `bun:"resolved"`
	ResolutionNotes string     `bun:"resolution_notes,nullzero"`
	ResolvedBy      string     `bun:"resolved_by,nullzero"`
	ResolvedAt      *time.Time `bun:"resolved_at,nullzero"`

	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
}
