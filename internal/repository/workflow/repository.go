package workflow

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/washfold/washfold/internal/cache"
	"github.com/washfold/washfold/internal/config"
	"github.com/washfold/washfold/internal/database"
	"github.com/washfold/washfold/internal/entity"
	wf "github.com/washfold/washfold/internal/workflow"
)

var repoTracer = otel.Tracer("github.com/washfold/washfold/repository/workflow")

// ErrNotConfigured is returned when a tenant has no workflow definition at
// all, neither category-scoped nor default.
var ErrNotConfigured = errors.New("workflow not configured for tenant")

// Repository assembles versioned, read-only workflow snapshots from the
// tenant's workflow definition and published screen contracts. Snapshots are
// cached by version; republishing configuration bumps the row version, which
// makes the cached copy stale on the next read-through.
type Repository struct {
	reader   *bun.DB
	cache    cache.Store
	cacheTTL time.Duration
	logger   *zap.Logger
}

// Params defines dependencies for constructing Repository.
type Params struct {
	fx.In

	Connections *database.Connections
	Cache       cache.Store
	Config      config.Config
	Logger      *zap.Logger
}

// NewRepository wires a snapshot repository.
func NewRepository(p Params) *Repository {
	return &Repository{
		reader:   p.Connections.Reader,
		cache:    p.Cache,
		cacheTTL: p.Config.Workflow.SnapshotTTL,
		logger:   p.Logger,
	}
}

// Snapshot loads the tenant's workflow configuration for a service category,
// falling back to the tenant default (empty category) when no scoped
// definition exists.
func (r *Repository) Snapshot(ctx context.Context, tenantID int64, serviceCategory string) (*wf.Snapshot, error) {
	ctx, span := repoTracer.Start(ctx, "WorkflowRepository.Snapshot", trace.WithAttributes(
		attribute.Int64("tenant.id", tenantID),
		attribute.String("workflow.category", serviceCategory),
	))
	defer span.End()

	if snap, err := r.getCached(ctx, tenantID, serviceCategory); err == nil {
		return snap, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		r.logger.Warn("workflow snapshot cache read failed", zap.Int64("tenant_id", tenantID), zap.Error(err))
	}

	def, err := r.loadDefinition(ctx, tenantID, serviceCategory)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "definition load failed")
		return nil, err
	}

	var rows []entity.ScreenContractRow
	err = r.reader.NewSelect().Model(&rows).
		Where("tenant_id = ?", tenantID).
		Order("name ASC").
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "contracts load failed")
		return nil, err
	}

	screens := make(map[string]wf.ScreenContract, len(rows))
	for i := range rows {
		screens[rows[i].Name] = rows[i].Contract()
	}

	snap := &wf.Snapshot{
		TenantID:        tenantID,
		ServiceCategory: serviceCategory,
		Version:         def.Version,
		Legacy:          def.LegacyEdges,
		Template:        def.TemplateEdges,
		Screens:         screens,
	}

	if err := r.storeCached(ctx, snap); err != nil {
		r.logger.Warn("workflow snapshot cache write failed", zap.Int64("tenant_id", tenantID), zap.Error(err))
	}

	return snap, nil
}

func (r *Repository) loadDefinition(ctx context.Context, tenantID int64, serviceCategory string) (*entity.WorkflowDefinition, error) {
	def := new(entity.WorkflowDefinition)

	if serviceCategory != "" {
		err := r.reader.NewSelect().Model(def).
			Where("tenant_id = ?", tenantID).
			Where("service_category = ?", serviceCategory).
			Scan(ctx)
		if err == nil {
			return def, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		def = new(entity.WorkflowDefinition)
	}

	err := r.reader.NewSelect().Model(def).
		Where("tenant_id = ?", tenantID).
		Where("service_category IS NULL OR service_category = ''").
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotConfigured
	}
	if err != nil {
		return nil, err
	}
	return def, nil
}

func (r *Repository) cacheKey(tenantID int64, serviceCategory string) string {
	return fmt.Sprintf("workflow:snapshot:%d:%s", tenantID, serviceCategory)
}

func (r *Repository) getCached(ctx context.Context, tenantID int64, serviceCategory string) (*wf.Snapshot, error) {
	if r.cache == nil {
		return nil, cache.ErrCacheMiss
	}
	bytes, err := r.cache.Get(ctx, r.cacheKey(tenantID, serviceCategory))
	if err != nil {
		return nil, err
	}
	var snap wf.Snapshot
	if err := json.Unmarshal(bytes, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (r *Repository) storeCached(ctx context.Context, snap *wf.Snapshot) error {
	if r.cache == nil || snap == nil {
		return nil
	}
	bytes, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return r.cache.Set(ctx, r.cacheKey(snap.TenantID, snap.ServiceCategory), bytes, r.cacheTTL)
}
