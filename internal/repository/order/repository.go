package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/washfold/washfold/internal/database"
	"github.com/washfold/washfold/internal/entity"
	"github.com/washfold/washfold/internal/workflow"
)

var repoTracer = otel.Tracer("github.com/washfold/washfold/repository/order")

// ErrNotFound is returned when an order is missing or outside tenant scope.
var ErrNotFound = errors.New("order not found")

// ItemGroup assigns a set of item ids to one child order during a split.
type ItemGroup struct {
	ItemIDs []int64
}

// Repository encapsulates read/write access for orders and their items.
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

// Create persists a new order using the write connection.
func (r *Repository) Create(ctx context.Context, order *entity.Order) error {
	if order == nil {
		return errors.New("nil order")
	}
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Create", trace.WithAttributes(attribute.String("order.number", order.Number)))
	defer span.End()

	_, err := r.writer.NewInsert().Model(order).Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
	}
	return err
}

// GetByID fetches a tenant-scoped order by primary key, using the read
// replica when available.
func (r *Repository) GetByID(ctx context.Context, tenantID, id int64) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.GetByID", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order := new(entity.Order)
	err := r.reader.NewSelect().Model(order).
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
	return order, nil
}

// GetByNumber fetches a tenant-scoped order by its public number. This is
// the lookup used by the unauthenticated confirmation path.
func (r *Repository) GetByNumber(ctx context.Context, tenantID int64, number string) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.GetByNumber", trace.WithAttributes(attribute.String("order.number", number)))
	defer span.End()

	order := new(entity.Order)
	err := r.reader.NewSelect().Model(order).
		Where("number = ?", number).
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
	return order, nil
}

// Items lists the items belonging to an order.
func (r *Repository) Items(ctx context.Context, orderID int64) ([]entity.OrderItem, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Items", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	var items []entity.OrderItem
	err := r.reader.NewSelect().Model(&items).
		Where("order_id = ?", orderID).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return items, nil
}

// CompareAndSetStatus applies the status mutation only when the stored
// status still matches expectedFrom. It reports false when the row has moved
// on (lost race); the conditional UPDATE is the engine's sole
// concurrency-control mechanism.
func (r *Repository) CompareAndSetStatus(ctx context.Context, tenantID, orderID int64, expectedFrom, newTo workflow.Status) (bool, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.CompareAndSetStatus", trace.WithAttributes(
		attribute.Int64("order.id", orderID),
		attribute.String("order.from", expectedFrom.String()),
		attribute.String("order.to", newTo.String()),
	))
	defer span.End()

	res, err := r.writer.NewUpdate().Model((*entity.Order)(nil)).
		Set("status = ?", newTo).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", orderID).
		Where("tenant_id = ?", tenantID).
		Where("status = ?", expectedFrom).
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

// CreateChildren creates the child orders of a split and reassigns the
// parent's items to them inside one transaction. Either every child becomes
// visible or none does.
func (r *Repository) CreateChildren(ctx context.Context, parent *entity.Order, groups []ItemGroup) ([]entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.CreateChildren", trace.WithAttributes(
		attribute.Int64("order.id", parent.ID),
		attribute.Int("split.children", len(groups)),
	))
	defer span.End()

	now := time.Now().UTC()
	children := make([]entity.Order, 0, len(groups))

	err := r.writer.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		for i, group := range groups {
			child := entity.Order{
				TenantID:        parent.TenantID,
				Number:          fmt.Sprintf("%s-%d", parent.Number, i+1),
				Status:          parent.Status,
				ServiceCategory: parent.ServiceCategory,
				Priority:        parent.Priority,
				DeliveryAddress: parent.DeliveryAddress,
				ParentID:        parent.ID,
				CreatedAt:       now,
				UpdatedAt:       now,
			}
			if _, err := tx.NewInsert().Model(&child).Exec(ctx); err != nil {
				return fmt.Errorf("insert child %d: %w", i+1, err)
			}

			res, err := tx.NewUpdate().Model((*entity.OrderItem)(nil)).
				Set("order_id = ?", child.ID).
				Where("order_id = ?", parent.ID).
				Where("id IN (?)", bun.In(group.ItemIDs)).
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("reassign items to child %d: %w", i+1, err)
			}
			moved, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if moved != int64(len(group.ItemIDs)) {
				return fmt.Errorf("child %d: expected to move %d items, moved %d", i+1, len(group.ItemIDs), moved)
			}

			children = append(children, child)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "split transaction failed")
		return nil, err
	}
	return children, nil
}
