package permission

import (
	"context"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/washfold/washfold/internal/database"
	"github.com/washfold/washfold/internal/entity"
	"github.com/washfold/washfold/internal/permission"
)

var repoTracer = otel.Tracer("github.com/washfold/washfold/repository/permission")

// Repository implements the permission oracle over the actor_grants table.
// The gate treats it as a black box and denies on any error.
type Repository struct {
	reader *bun.DB
}

// NewRepository wires an oracle backed by the read connection.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{reader: conns.Reader}
}

var _ permission.Oracle = (*Repository)(nil)

// ListPermissions returns the actor's unscoped permission codes within the
// tenant.
func (r *Repository) ListPermissions(ctx context.Context, tenantID int64, actorID string) ([]string, error) {
	ctx, span := repoTracer.Start(ctx, "PermissionRepository.ListPermissions", trace.WithAttributes(
		attribute.Int64("tenant.id", tenantID),
		attribute.String("actor.id", actorID),
	))
	defer span.End()

	var codesOut []string
	err := r.reader.NewSelect().Model((*entity.ActorGrant)(nil)).
		Column("code").
		Where("tenant_id = ?", tenantID).
		Where("actor_id = ?", actorID).
		Where("resource_type IS NULL OR resource_type = ''").
		Scan(ctx, &codesOut)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return codesOut, nil
}

// CheckResourcePermission reports whether a resource-scoped grant exists for
// the actor.
func (r *Repository) CheckResourcePermission(ctx context.Context, tenantID int64, actorID, code, resourceType, resourceID string) (bool, error) {
	ctx, span := repoTracer.Start(ctx, "PermissionRepository.CheckResourcePermission", trace.WithAttributes(
		attribute.String("actor.id", actorID),
		attribute.String("permission.code", code),
	))
	defer span.End()

	exists, err := r.reader.NewSelect().Model((*entity.ActorGrant)(nil)).
		Where("tenant_id = ?", tenantID).
		Where("actor_id = ?", actorID).
		Where("code = ?", code).
		Where("resource_type = ?", resourceType).
		Where("resource_id = ?", resourceID).
		Exists(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return false, err
	}
	return exists, nil
}
