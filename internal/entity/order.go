package entity

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/washfold/washfold/internal/workflow"
)

// Order represents one customer job moving through the tenant's workflow.
// Status is mutated exclusively through the transition engine's
// compare-and-swap; orders are never deleted, only terminally statused.
type Order struct {
	bun.BaseModel `bun:"table:orders"`

	ID              int64           `bun:",pk,autoincrement"`
	TenantID        int64           `bun:"tenant_id,notnull"`
	Number          string          `bun:"number,notnull"`
	Status          workflow.Status `bun:"status,notnull"`
	ServiceCategory string          `bun:"service_category,nullzero"`
	Priority        string          `bun:"priority,nullzero"`
	DeliveryAddress string          `bun:"delivery_address,nullzero"`
	SplitPending    bool            `bun:"split_pending"`

	// ParentID links a child order created by a split back to its parent.
	// The relationship is immutable after creation.
	ParentID int64 `bun:"parent_id,nullzero"`

	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `bun:"updated_at,nullzero"`
}

// OrderItem is one physical article belonging to an order.
type OrderItem struct {
	bun.BaseModel `bun:"table:order_items"`

	ID          int64     `bun:",pk,autoincrement"`
	TenantID    int64     `bun:"tenant_id,notnull"`
	OrderID     int64     `bun:"order_id,notnull"`
	Description string    `bun:"description"`
	Quantity    int       `bun:"quantity,notnull,default:1"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
}
