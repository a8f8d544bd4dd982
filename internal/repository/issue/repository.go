package issue

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/washfold/washfold/internal/database"
	"github.com/washfold/washfold/internal/entity"
)

var repoTracer = otel.Tracer("github.com/washfold/washfold/repository/issue")

// ErrNotFound is returned when an issue is missing or outside tenant scope.
var ErrNotFound = errors.New("issue not found")

// Repository encapsulates read/write access for order-item issues.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{
		writer: conns.Writer,
		reader: conns.Reader,
	}
}

// Create persists a new issue.
func (r *Repository) Create(ctx context.Context, issue *entity.Issue) error {
	if issue == nil {
		return errors.New("nil issue")
	}
	ctx, span := repoTracer.Start(ctx, "IssueRepository.Create", trace.WithAttributes(
		attribute.Int64("order.id", issue.OrderID),
		attribute.String("issue.code", issue.Code),
	))
	defer span.End()

	_, err := r.writer.NewInsert().Model(issue).Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
	}
	return err
}

// GetByID fetches a tenant-scoped issue by primary key.
func (r *Repository) GetByID(ctx context.Context, tenantID, id int64) (*entity.Issue, error) {
	ctx, span := repoTracer.Start(ctx, "IssueRepository.GetByID", trace.WithAttributes(attribute.Int64("issue.id", id)))
	defer span.End()

	issue := new(entity.Issue)
	err := r.reader.NewSelect().Model(issue).
		Where("id = ?", id).
		Where("tenant_id = ?", tenantID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return issue, nil
}

// OpenForOrder lists unresolved issues attached to the order's items.
func (r *Repository) OpenForOrder(ctx context.Context, orderID int64) ([]entity.Issue, error) {
	ctx, span := repoTracer.Start(ctx, "IssueRepository.OpenForOrder", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	var issues []entity.Issue
	err := r.reader.NewSelect().Model(&issues).
		Where("order_id = ?", orderID).
		Where("resolved = ?", false).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return issues, nil
}

// Resolve marks an open issue as resolved. Resolution is one-way: the update
// is conditioned on resolved = false and reports false if the issue was
// already resolved.
func (r *Repository) Resolve(ctx context.Context, tenantID, id int64, notes, resolvedBy string) (bool, error) {
	ctx, span := repoTracer.Start(ctx, "IssueRepository.Resolve", trace.WithAttributes(attribute.Int64("issue.id", id)))
	defer span.End()

	res, err := r.writer.NewUpdate().Model((*entity.Issue)(nil)).
		Set("resolved = ?", true).
		Set("resolution_notes = ?", notes).
		Set("resolved_by = ?", resolvedBy).
		Set("resolved_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Where("tenant_id = ?", tenantID).
		Where("resolved = ?", false).
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		span.RecordError(err)
		return false, err
	}
	return affected == 1, nil
}
