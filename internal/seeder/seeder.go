package seeder

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/washfold/washfold/internal/database"
	"github.com/washfold/washfold/internal/entity"
	"github.com/washfold/washfold/internal/workflow"
)

// Module provides the seeder to Fx-driven CLI commands.
var Module = fx.Provide(New)

// Seeder populates a local/dev database with a working tenant: workflow
// configuration for both rule engines, screen contracts, actor grants, and a
// handful of orders to push through the pipeline.
type Seeder struct {
	db     *bun.DB
	logger *zap.Logger
}

// New constructs a Seeder backed by the primary database connection.
func New(conns *database.Connections, logger *zap.Logger) *Seeder {
	return &Seeder{db: conns.Writer, logger: logger}
}

// All runs every seeding stage in dependency order.
func (s *Seeder) All(ctx context.Context) error {
	tenantID, err := s.Tenant(ctx)
	if err != nil {
		return fmt.Errorf("seed tenant: %w", err)
	}
	if err := s.Workflow(ctx, tenantID); err != nil {
		return fmt.Errorf("seed workflow: %w", err)
	}
	if err := s.Screens(ctx, tenantID); err != nil {
		return fmt.Errorf("seed screens: %w", err)
	}
	if err := s.Grants(ctx, tenantID); err != nil {
		return fmt.Errorf("seed grants: %w", err)
	}
	if err := s.Orders(ctx, tenantID); err != nil {
		return fmt.Errorf("seed orders: %w", err)
	}
	return nil
}

// Tenant ensures the demo tenant exists and returns its id.
func (s *Seeder) Tenant(ctx context.Context) (int64, error) {
	tenant := &entity.Tenant{
		Slug:             "sunrise-cleaners",
		Name:             "Sunrise Cleaners",
		Plan:             "standard",
		MaxSplitChildren: 5,
	}
	_, err := s.db.NewInsert().Model(tenant).
		On("CONFLICT (slug) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return 0, err
	}

	existing := new(entity.Tenant)
	err = s.db.NewSelect().Model(existing).
		Where("slug = ?", tenant.Slug).
		Scan(ctx)
	if err != nil {
		return 0, err
	}

	if s.logger != nil {
		s.logger.Info("seeded tenant", zap.Int64("tenant_id", existing.ID), zap.String("slug", existing.Slug))
	}
	return existing.ID, nil
}

// defaultEdges is the standard laundry pipeline. The delivered self-edge keeps
// repeated public delivery confirmations idempotent.
func defaultEdges() workflow.RuleSet {
	return workflow.RuleSet{
		workflow.StatusIntake: {
			{To: workflow.StatusPreparation},
			{To: workflow.StatusCancelled, RequiresNotes: true},
		},
		workflow.StatusPreparation: {
			{To: workflow.StatusProcessing},
			{To: workflow.StatusCancelled, RequiresNotes: true},
		},
		workflow.StatusProcessing: {
			{To: workflow.StatusQA},
			{To: workflow.StatusCancelled, RequiresNotes: true},
		},
		workflow.StatusQA: {
			{To: workflow.StatusPacking},
			{To: workflow.StatusProcessing, RequiresNotes: true},
		},
		workflow.StatusPacking: {
			{To: workflow.StatusReady},
		},
		workflow.StatusReady: {
			{To: workflow.StatusOutForDelivery},
		},
		workflow.StatusOutForDelivery: {
			{To: workflow.StatusDelivered},
			{To: workflow.StatusReady, RequiresNotes: true},
		},
		workflow.StatusDelivered: {
			{To: workflow.StatusDelivered},
		},
		workflow.StatusCancelled: {},
	}
}

// Workflow publishes the tenant default workflow definition with identical
// legacy and template rule sets, so both engines agree out of the box.
func (s *Seeder) Workflow(ctx context.Context, tenantID int64) error {
	def := &entity.WorkflowDefinition{
		TenantID:      tenantID,
		Version:       1,
		LegacyEdges:   defaultEdges(),
		TemplateEdges: defaultEdges(),
		UpdatedAt:     time.Now().UTC(),
	}

	existing := new(entity.WorkflowDefinition)
	err := s.db.NewSelect().Model(existing).
		Where("tenant_id = ?", tenantID).
		Where("service_category IS NULL OR service_category = ''").
		Scan(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	_, err = s.db.NewInsert().Model(def).Exec(ctx)
	if err != nil {
		return err
	}
	if s.logger != nil {
		s.logger.Info("seeded workflow definition", zap.Int64("tenant_id", tenantID))
	}
	return nil
}

// Screens publishes one screen contract per operational station.
func (s *Seeder) Screens(ctx context.Context, tenantID int64) error {
	screens := []entity.ScreenContractRow{
		{
			Name:                "intake",
			Statuses:            []workflow.Status{workflow.StatusIntake},
			RequiredPermissions: []string{"orders:transition"},
		},
		{
			Name:                "preparation",
			Statuses:            []workflow.Status{workflow.StatusPreparation},
			RequiredPermissions: []string{"orders:transition"},
		},
		{
			Name:                "processing",
			Statuses:            []workflow.Status{workflow.StatusProcessing},
			RequiredPermissions: []string{"orders:transition"},
			AdditionalFilters:   map[string]string{"priority": "rush"},
		},
		{
			Name:                "qa",
			Statuses:            []workflow.Status{workflow.StatusQA},
			RequiredPermissions: []string{"orders:transition", "issues:create"},
		},
		{
			Name:                "packing",
			Statuses:            []workflow.Status{workflow.StatusPacking},
			RequiredPermissions: []string{"orders:transition"},
		},
		{
			Name:                "dispatch",
			Statuses:            []workflow.Status{workflow.StatusReady, workflow.StatusOutForDelivery},
			RequiredPermissions: []string{"orders:transition"},
		},
		{
			Name:                "delivery",
			Statuses:            []workflow.Status{workflow.StatusOutForDelivery, workflow.StatusDelivered},
			RequiredPermissions: []string{"orders:transition"},
		},
	}

	for i := range screens {
		row := screens[i]
		row.TenantID = tenantID
		row.Version = 1
		_, err := s.db.NewInsert().Model(&row).
			On("CONFLICT (tenant_id, name, version) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return err
		}
	}

	if s.logger != nil {
		s.logger.Info("seeded screen contracts", zap.Int("count", len(screens)))
	}
	return nil
}

// Grants installs demo actors: a supervisor with a full wildcard, an operator
// with the plain transition grant, and a driver scoped to delivery work.
func (s *Seeder) Grants(ctx context.Context, tenantID int64) error {
	grants := []entity.ActorGrant{
		{ActorID: "supervisor-1", Code: "*:*"},
		{ActorID: "operator-1", Code: "orders:transition"},
		{ActorID: "operator-1", Code: "issues:create"},
		{ActorID: "operator-1", Code: "issues:resolve"},
		{ActorID: "operator-1", Code: "orders:split"},
		{ActorID: "driver-1", Code: "orders:transition", ResourceType: "screen", ResourceID: "delivery"},
	}

	for i := range grants {
		grant := grants[i]
		grant.TenantID = tenantID
		_, err := s.db.NewInsert().Model(&grant).
			On("CONFLICT (tenant_id, actor_id, code, resource_type, resource_id) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return err
		}
	}

	if s.logger != nil {
		s.logger.Info("seeded actor grants", zap.Int("count", len(grants)))
	}
	return nil
}

// Orders seeds example orders with items if they are missing.
func (s *Seeder) Orders(ctx context.Context, tenantID int64) error {
	now := time.Now().UTC()
	samples := []struct {
		order entity.Order
		items []entity.OrderItem
	}{
		{
			order: entity.Order{
				Number:          "WF-1000",
				Status:          workflow.StatusIntake,
				ServiceCategory: "",
				Priority:        "standard",
				DeliveryAddress: "14 Alder Row",
			},
			items: []entity.OrderItem{
				{Description: "dress shirt", Quantity: 3},
				{Description: "wool coat", Quantity: 1},
			},
		},
		{
			order: entity.Order{
				Number:   "WF-1001",
				Status:   workflow.StatusProcessing,
				Priority: "rush",
			},
			items: []entity.OrderItem{
				{Description: "duvet cover", Quantity: 2},
			},
		},
		{
			order: entity.Order{
				Number:          "WF-1002",
				Status:          workflow.StatusOutForDelivery,
				Priority:        "standard",
				DeliveryAddress: "9 Harbor Lane",
			},
			items: []entity.OrderItem{
				{Description: "table linens", Quantity: 6},
			},
		},
	}

	for _, sample := range samples {
		order := sample.order
		order.TenantID = tenantID
		order.CreatedAt = now
		order.UpdatedAt = now

		res, err := s.db.NewInsert().Model(&order).
			On("CONFLICT (tenant_id, number) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return err
		}
		inserted, err := res.RowsAffected()
		if err != nil || inserted == 0 {
			continue
		}

		for i := range sample.items {
			item := sample.items[i]
			item.TenantID = tenantID
			item.OrderID = order.ID
			item.CreatedAt = now
			if _, err := s.db.NewInsert().Model(&item).Exec(ctx); err != nil {
				return err
			}
		}
	}

	if s.logger != nil {
		s.logger.Info("seeded orders", zap.Int("count", len(samples)))
	}
	return nil
}
