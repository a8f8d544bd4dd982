package permission

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// Oracle is the external permission lookup service, consumed as a black box.
type Oracle interface {
	// ListPermissions returns the actor's unscoped permission codes.
	ListPermissions(ctx context.Context, tenantID int64, actorID string) ([]string, error)

	// CheckResourcePermission reports whether the actor holds the code for
	// one specific resource.
	CheckResourcePermission(ctx context.Context, tenantID int64, actorID, code, resourceType, resourceID string) (bool, error)
}

// Gate resolves whether an actor may perform a named action. Every failure
// mode of the oracle denies: an actor is never granted an action because the
// lookup service misbehaved.
type Gate struct {
	oracle Oracle
	logger *zap.Logger
}

// NewGate builds a Gate over the supplied oracle.
func NewGate(oracle Oracle, logger *zap.Logger) *Gate {
	return &Gate{oracle: oracle, logger: logger}
}

// Can reports whether the actor holds the permission code, honouring
// wildcard grants.
func (g *Gate) Can(ctx context.Context, actor Actor, code string) bool {
	perms, ok := g.permissions(ctx, actor)
	if !ok {
		return false
	}
	return Match(perms, code)
}

// CanAny reports whether the actor holds at least one of the codes.
func (g *Gate) CanAny(ctx context.Context, actor Actor, codes []string) bool {
	perms, ok := g.permissions(ctx, actor)
	if !ok {
		return false
	}
	for _, code := range codes {
		if Match(perms, code) {
			return true
		}
	}
	return false
}

// CanAll reports whether the actor holds every one of the codes. An empty
// code list is vacuously satisfied.
func (g *Gate) CanAll(ctx context.Context, actor Actor, codes []string) bool {
	perms, ok := g.permissions(ctx, actor)
	if !ok {
		return false
	}
	for _, code := range codes {
		if !Match(perms, code) {
			return false
		}
	}
	return true
}

// Missing returns the subset of codes the actor does not hold, for
// remediation detail in permission errors.
func (g *Gate) Missing(ctx context.Context, actor Actor, codes []string) []string {
	perms, ok := g.permissions(ctx, actor)
	if !ok {
		return append([]string(nil), codes...)
	}
	var missing []string
	for _, code := range codes {
		if !Match(perms, code) {
			missing = append(missing, code)
		}
	}
	return missing
}

// CanResource checks a resource-scoped permission. The oracle is consulted
// only when the actor lacks the unscoped permission, to minimise external
// calls.
func (g *Gate) CanResource(ctx context.Context, actor Actor, code, resourceType, resourceID string) bool {
	if g.Can(ctx, actor, code) {
		return true
	}
	ok, err := g.oracle.CheckResourcePermission(ctx, actor.TenantID, actor.ID, code, resourceType, resourceID)
	if err != nil {
		g.logger.Warn("resource permission check failed; denying",
			zap.String("actor_id", actor.ID),
			zap.String("code", code),
			zap.String("resource_type", resourceType),
			zap.String("resource_id", resourceID),
			zap.Error(err),
		)
		return false
	}
	return ok
}

func (g *Gate) permissions(ctx context.Context, actor Actor) ([]string, bool) {
	if actor.Permissions != nil {
		return actor.Permissions, true
	}
	perms, err := g.oracle.ListPermissions(ctx, actor.TenantID, actor.ID)
	if err != nil {
		g.logger.Warn("permission lookup failed; denying",
			zap.String("actor_id", actor.ID),
			zap.Int64("tenant_id", actor.TenantID),
			zap.Error(err),
		)
		return nil, false
	}
	return perms, true
}

// Match reports whether a permission set satisfies a resource:action code.
// A grant of "resource:*" or the global "*:*" satisfies any action on that
// resource. Matching is an explicit string comparison, never pattern
// dispatch, so the gate stays deterministic.
func Match(granted []string, code string) bool {
	resource, _, found := strings.Cut(code, ":")
	for _, grant := range granted {
		if grant == code || grant == "*:*" {
			return true
		}
		if found && grant == resource+":*" {
			return true
		}
	}
	return false
}
