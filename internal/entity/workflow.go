package entity

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/washfold/washfold/internal/workflow"
)

// WorkflowDefinition is one tenant's workflow configuration row, optionally
// scoped to a service category (empty category is the tenant default). Both
// rule engines live side by side during the screen-contract migration.
// Rows are versioned; republishing bumps Version, which also invalidates
// cached snapshots.
type WorkflowDefinition struct {
	bun.BaseModel `bun:"table:workflow_definitions"`

	ID              int64  `bun:",pk,autoincrement"`
	TenantID        int64  `bun:"tenant_id,notnull"`
	ServiceCategory string `bun:"service_category,nullzero"`
	Version         int    `bun:"version,notnull,default:1"`

	LegacyEdges   workflow.RuleSet `bun:"legacy_edges,type:jsonb"`
	TemplateEdges workflow.RuleSet `bun:"template_edges,type:jsonb"`

	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `bun:"updated_at,nullzero"`
}

// ScreenContractRow is a published screen contract for a tenant. Immutable
// once published for a given version.
type ScreenContractRow struct {
	bun.BaseModel `bun:"table:screen_contracts"`

	ID       int64  `bun:",pk,autoincrement"`
	TenantID int64  `bun:"tenant_id,notnull"`
	Name     string `bun:"name,notnull"`
	Version  int    `bun:"version,notnull,default:1"`

	Statuses            []workflow.Status `bun:"statuses,type:jsonb"`
	AdditionalFilters   map[string]string `bun:"additional_filters,type:jsonb,nullzero"`
	RequiredPermissions []string          `bun:"required_permissions,type:jsonb"`

	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
}

// Contract converts the stored row into the domain contract shape.
func (r *ScreenContractRow) Contract() workflow.ScreenContract {
	return workflow.ScreenContract{
		Name:                r.Name,
		Statuses:            r.Statuses,
		AdditionalFilters:   r.AdditionalFilters,
		RequiredPermissions: r.RequiredPermissions,
	}
}
