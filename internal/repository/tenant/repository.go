package tenant

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/washfold/washfold/internal/database"
	"github.com/washfold/washfold/internal/entity"
)

var repoTracer = otel.Tracer("github.com/washfold/washfold/repository/tenant")

// ErrNotFound is returned when a tenant is missing.
var ErrNotFound = errors.New("tenant not found")

// Repository provides read access to tenant records and their plan limits.
type Repository struct {
	reader *bun.DB
}

// NewRepository wires a repository backed by the read connection.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{reader: conns.Reader}
}

// GetByID fetches a tenant by primary key.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.Tenant, error) {
	ctx, span := repoTracer.Start(ctx, "TenantRepository.GetByID", trace.WithAttributes(attribute.Int64("tenant.id", id)))
	defer span.End()

	t := new(entity.Tenant)
	err := r.reader.NewSelect().Model(t).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return t, nil
}

// GetBySlug fetches a tenant by its public slug. Used by the public
// confirmation path, which identifies tenants by slug rather than id.
func (r *Repository) GetBySlug(ctx context.Context, slug string) (*entity.Tenant, error) {
	ctx, span := repoTracer.Start(ctx, "TenantRepository.GetBySlug", trace.WithAttributes(attribute.String("tenant.slug", slug)))
	defer span.End()

	t := new(entity.Tenant)
	err := r.reader.NewSelect().Model(t).Where("slug = ?", slug).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return t, nil
}
