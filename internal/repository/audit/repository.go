package audit

import (
	"context"
	"errors"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/washfold/washfold/internal/database"
	"github.com/washfold/washfold/internal/entity"
)

var repoTracer = otel.Tracer("github.com/washfold/washfold/repository/audit")

// Repository is the audit trail writer: it appends immutable transition
// records and reads back the per-order timeline. There is no update or
// delete path.
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

// Append persists one transition record.
func (r *Repository) Append(ctx context.Context, record *entity.TransitionRecord) error {
	if record == nil {
		return errors.New("nil transition record")
	}
	ctx, span := repoTracer.Start(ctx, "AuditRepository.Append", trace.WithAttributes(
		attribute.Int64("order.id", record.OrderID),
		attribute.String("transition.from", record.FromStatus.String()),
		attribute.String("transition.to", record.ToStatus.String()),
	))
	defer span.End()

	_, err := r.writer.NewInsert().Model(record).Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
	}
	return err
}

// ListForOrder returns the order's transition records in append order,
// oldest first.
func (r *Repository) ListForOrder(ctx context.Context, tenantID, orderID int64) ([]entity.TransitionRecord, error) {
	ctx, span := repoTracer.Start(ctx, "AuditRepository.ListForOrder", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	var records []entity.TransitionRecord
	err := r.reader.NewSelect().Model(&records).
		Where("order_id = ?", orderID).
		Where("tenant_id = ?", tenantID).
		Order("created_at ASC").
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return records, nil
}
