package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// Tenant is one operation running on the platform. Plan limits gate
// fan-out-heavy operations such as order splits.
type Tenant struct {
	bun.BaseModel `bun:"table:tenants"`

	ID               int64  `bun:",pk,autoincrement"`
	Slug             string `bun:"slug,notnull"`
	Name             string `bun:"name,notnull"`
	Plan             string `bun:"plan,notnull,default:'standard'"`
	MaxSplitChildren int    `bun:"max_split_children,notnull,default:5"`

	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
}

// ActorGrant is one permission grant row consumed by the permission oracle.
// A row with ResourceType/ResourceID set is a resource-scoped grant; unscoped
// rows leave both empty.
type ActorGrant struct {
	bun.BaseModel `bun:"table:actor_grants"`

	ID           int64  `bun:",pk,autoincrement"`
	TenantID     int64  `bun:"tenant_id,notnull"`
	ActorID      string `bun:"actor_id,notnull"`
	Code         string `bun:"code,notnull"`
	ResourceType string `bun:"resource_type,nullzero"`
	ResourceID   string `bun:"resource_id,nullzero"`

	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
}
