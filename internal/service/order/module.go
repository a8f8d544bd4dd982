package order

import (
	"go.uber.org/fx"

	"github.com/washfold/washfold/internal/permission"
	auditrepo "github.com/washfold/washfold/internal/repository/audit"
	issuerepo "github.com/washfold/washfold/internal/repository/issue"
	orderrepo "github.com/washfold/washfold/internal/repository/order"
	tenantrepo "github.com/washfold/washfold/internal/repository/tenant"
	workflowrepo "github.com/washfold/washfold/internal/repository/workflow"
)

// Module provides the order service to Fx, binding the concrete repositories
// to the store capabilities the engine depends on.
var Module = fx.Options(
	fx.Provide(
		func(r *orderrepo.Repository) OrderStore { return r },
		func(r *issuerepo.Repository) IssueStore { return r },
		func(r *auditrepo.Repository) AuditStore { return r },
		func(r *workflowrepo.Repository) ConfigSource { return r },
		func(r *tenantrepo.Repository) TenantStore { return r },
		func(g *permission.Gate) Gate { return g },
		NewService,
	),
)
