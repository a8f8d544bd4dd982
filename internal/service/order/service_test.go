package order

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/washfold/washfold/internal/blocker"
	"github.com/washfold/washfold/internal/cache"
	"github.com/washfold/washfold/internal/config"
	"github.com/washfold/washfold/internal/entity"
	"github.com/washfold/washfold/internal/permission"
	issuerepo "github.com/washfold/washfold/internal/repository/issue"
	orderrepo "github.com/washfold/washfold/internal/repository/order"
	tenantrepo "github.com/washfold/washfold/internal/repository/tenant"
	workflowrepo "github.com/washfold/washfold/internal/repository/workflow"
	"github.com/washfold/washfold/internal/workflow"
	"github.com/washfold/washfold/pkg/errorbank"
)

const testTenantID int64 = 1

type fakeOrders struct {
	orders   map[int64]*entity.Order
	items    map[int64][]entity.OrderItem
	casFail  bool
	casErr   error
	children []entity.Order
	childErr error
	nextID   int64
}

func newFakeOrders(orders ...*entity.Order) *fakeOrders {
	f := &fakeOrders{
		orders: make(map[int64]*entity.Order),
		items:  make(map[int64][]entity.OrderItem),
		nextID: 100,
	}
	for _, o := range orders {
		f.orders[o.ID] = o
	}
	return f
}

func (f *fakeOrders) Create(_ context.Context, order *entity.Order) error {
	f.nextID++
	order.ID = f.nextID
	f.orders[order.ID] = order
	return nil
}

func (f *fakeOrders) GetByID(_ context.Context, tenantID, id int64) (*entity.Order, error) {
	order, ok := f.orders[id]
	if !ok || order.TenantID != tenantID {
		return nil, orderrepo.ErrNotFound
	}
	copied := *order
	return &copied, nil
}

func (f *fakeOrders) GetByNumber(_ context.Context, tenantID int64, number string) (*entity.Order, error) {
	for _, order := range f.orders {
		if order.TenantID == tenantID && order.Number == number {
			copied := *order
			return &copied, nil
		}
	}
	return nil, orderrepo.ErrNotFound
}

func (f *fakeOrders) Items(_ context.Context, orderID int64) ([]entity.OrderItem, error) {
	return f.items[orderID], nil
}

func (f *fakeOrders) CompareAndSetStatus(_ context.Context, tenantID, orderID int64, expectedFrom, newTo workflow.Status) (bool, error) {
	if f.casErr != nil {
		return false, f.casErr
	}
	if f.casFail {
		return false, nil
	}
	order, ok := f.orders[orderID]
	if !ok || order.TenantID != tenantID || order.Status != expectedFrom {
		return false, nil
	}
	order.Status = newTo
	return true, nil
}

func (f *fakeOrders) CreateChildren(_ context.Context, parent *entity.Order, groups []orderrepo.ItemGroup) ([]entity.Order, error) {
	if f.childErr != nil {
		return nil, f.childErr
	}
	children := make([]entity.Order, 0, len(groups))
	for i := range groups {
		f.nextID++
		children = append(children, entity.Order{
			ID:       f.nextID,
			TenantID: parent.TenantID,
			Number:   fmt.Sprintf("%s-%d", parent.Number, i+1),
			Status:   parent.Status,
			ParentID: parent.ID,
		})
	}
	f.children = children
	return children, nil
}

type fakeIssues struct {
	issues  map[int64]*entity.Issue
	nextID  int64
	openErr error
}

func newFakeIssues(issues ...*entity.Issue) *fakeIssues {
	f := &fakeIssues{issues: make(map[int64]*entity.Issue), nextID: 500}
	for _, issue := range issues {
		f.issues[issue.ID] = issue
	}
	return f
}

func (f *fakeIssues) Create(_ context.Context, issue *entity.Issue) error {
	f.nextID++
	issue.ID = f.nextID
	f.issues[issue.ID] = issue
	return nil
}

func (f *fakeIssues) GetByID(_ context.Context, tenantID, id int64) (*entity.Issue, error) {
	issue, ok := f.issues[id]
	if !ok || issue.TenantID != tenantID {
		return nil, issuerepo.ErrNotFound
	}
	copied := *issue
	return &copied, nil
}

func (f *fakeIssues) OpenForOrder(_ context.Context, orderID int64) ([]entity.Issue, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	var open []entity.Issue
	for _, issue := range f.issues {
		if issue.OrderID == orderID && !issue.Resolved {
			open = append(open, *issue)
		}
	}
	return open, nil
}

func (f *fakeIssues) Resolve(_ context.Context, tenantID, id int64, notes, resolvedBy string) (bool, error) {
	issue, ok := f.issues[id]
	if !ok || issue.TenantID != tenantID || issue.Resolved {
		return false, nil
	}
	now := time.Now().UTC()
	issue.Resolved = true
	issue.ResolutionNotes = notes
	issue.ResolvedBy = resolvedBy
	issue.ResolvedAt = &now
	return true, nil
}

type fakeAudit struct {
	records   []entity.TransitionRecord
	appendErr error
}

func (f *fakeAudit) Append(_ context.Context, record *entity.TransitionRecord) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.records = append(f.records, *record)
	return nil
}

func (f *fakeAudit) ListForOrder(_ context.Context, tenantID, orderID int64) ([]entity.TransitionRecord, error) {
	var out []entity.TransitionRecord
	for _, record := range f.records {
		if record.TenantID == tenantID && record.OrderID == orderID {
			out = append(out, record)
		}
	}
	return out, nil
}

type fakeConfigs struct {
	snap *workflow.Snapshot
	err  error
}

func (f *fakeConfigs) Snapshot(context.Context, int64, string) (*workflow.Snapshot, error) {
	return f.snap, f.err
}

type fakeTenants struct {
	tenant *entity.Tenant
}

func (f *fakeTenants) GetByID(_ context.Context, id int64) (*entity.Tenant, error) {
	if f.tenant == nil || f.tenant.ID != id {
		return nil, tenantrepo.ErrNotFound
	}
	return f.tenant, nil
}

func (f *fakeTenants) GetBySlug(_ context.Context, slug string) (*entity.Tenant, error) {
	if f.tenant == nil || f.tenant.Slug != slug {
		return nil, tenantrepo.ErrNotFound
	}
	return f.tenant, nil
}

type nopCache struct{}

func (nopCache) Get(context.Context, string) ([]byte, error) { return nil, cache.ErrCacheMiss }

func (nopCache) Set(context.Context, string, []byte, time.Duration) error { return nil }

func (nopCache) Delete(context.Context, string) error { return nil }

type deniedOracle struct{}

func (deniedOracle) ListPermissions(context.Context, int64, string) ([]string, error) {
	return nil, nil
}

func (deniedOracle) CheckResourcePermission(context.Context, int64, string, string, string, string) (bool, error) {
	return false, nil
}

type fixture struct {
	svc     *Service
	orders  *fakeOrders
	issues  *fakeIssues
	audit   *fakeAudit
	configs *fakeConfigs
	tenants *fakeTenants
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		orders:  newFakeOrders(),
		issues:  newFakeIssues(),
		audit:   &fakeAudit{},
		configs: &fakeConfigs{snap: testSnapshot()},
		tenants: &fakeTenants{tenant: &entity.Tenant{ID: testTenantID, Slug: "sunrise-cleaners", MaxSplitChildren: 5}},
	}
	f.svc = NewService(Params{
		Orders:   f.orders,
		Issues:   f.issues,
		Audit:    f.audit,
		Configs:  f.configs,
		Tenants:  f.tenants,
		Gate:     permission.NewGate(deniedOracle{}, zap.NewNop()),
		Blockers: blocker.NewEvaluator(zap.NewNop()),
		Cache:    nopCache{},
		Config:   config.Config{},
		Logger:   zap.NewNop(),
	})
	return f
}

func testSnapshot() *workflow.Snapshot {
	edges := workflow.RuleSet{
		workflow.StatusProcessing: {
			{To: workflow.StatusQA},
			{To: workflow.StatusCancelled, RequiresNotes: true},
		},
		workflow.StatusQA: {
			{To: workflow.StatusPacking},
			{To: workflow.StatusProcessing, RequiresNotes: true},
		},
		workflow.StatusPacking:        {{To: workflow.StatusReady}},
		workflow.StatusReady:          {{To: workflow.StatusOutForDelivery}},
		workflow.StatusOutForDelivery: {{To: workflow.StatusDelivered}},
		workflow.StatusDelivered:      {{To: workflow.StatusDelivered}},
		workflow.StatusCancelled:      {},
	}
	clone := func() workflow.RuleSet {
		out := make(workflow.RuleSet, len(edges))
		for from, e := range edges {
			out[from] = append([]workflow.Edge(nil), e...)
		}
		return out
	}
	return &workflow.Snapshot{
		TenantID: testTenantID,
		Version:  1,
		Legacy:   clone(),
		Template: clone(),
		Screens: map[string]workflow.ScreenContract{
			"qa": {
				Name:                "qa",
				Statuses:            []workflow.Status{workflow.StatusQA},
				RequiredPermissions: []string{"orders:transition", "issues:create"},
			},
			"processing": {
				Name:                "processing",
				Statuses:            []workflow.Status{workflow.StatusProcessing},
				AdditionalFilters:   map[string]string{"priority": "rush"},
				RequiredPermissions: []string{"orders:transition"},
			},
		},
	}
}

func operator() permission.Actor {
	return permission.Actor{
		ID:          "operator-1",
		DisplayName: "Pat",
		TenantID:    testTenantID,
		Permissions: []string{"orders:transition", "orders:split", "issues:create", "issues:resolve"},
	}
}

func processingOrder() *entity.Order {
	return &entity.Order{
		ID:              10,
		TenantID:        testTenantID,
		Number:          "WF-1000",
		Status:          workflow.StatusProcessing,
		DeliveryAddress: "14 Alder Row",
	}
}

func TestTransitionSuccess(t *testing.T) {
	f := newFixture(t)
	f.orders.orders[10] = processingOrder()

	result, err := f.svc.Transition(context.Background(), operator(), 10, workflow.StatusQA, TransitionOptions{})
	require.NoError(t, err)

	assert.Equal(t, workflow.StatusQA, result.Order.Status)
	assert.Equal(t, []workflow.Status{workflow.StatusPacking, workflow.StatusProcessing}, result.AllowedTransitions)
	assert.Equal(t, workflow.StatusQA, f.orders.orders[10].Status)

	require.Len(t, f.audit.records, 1, "exactly one audit record per successful transition")
	record := f.audit.records[0]
	assert.Equal(t, workflow.StatusProcessing, record.FromStatus)
	assert.Equal(t, workflow.StatusQA, record.ToStatus)
	assert.Equal(t, "operator-1", record.ActorID)
	assert.NotEmpty(t, record.ID)
}

func TestTransitionPermissionDenied(t *testing.T) {
	f := newFixture(t)
	f.orders.orders[10] = processingOrder()

	viewer := permission.Actor{ID: "viewer-1", TenantID: testTenantID, Permissions: []string{"orders:read"}}
	_, err := f.svc.Transition(context.Background(), viewer, 10, workflow.StatusQA, TransitionOptions{})

	require.Error(t, err)
	assert.True(t, errorbank.IsKind(err, errorbank.KindPermissionDenied))
	assert.Empty(t, f.audit.records)
	assert.Equal(t, workflow.StatusProcessing, f.orders.orders[10].Status, "denied attempt must not mutate the order")
}

func TestTransitionWildcardGrant(t *testing.T) {
	f := newFixture(t)
	f.orders.orders[10] = processingOrder()

	supervisor := permission.Actor{ID: "supervisor-1", TenantID: testTenantID, Permissions: []string{"*:*"}}
	_, err := f.svc.Transition(context.Background(), supervisor, 10, workflow.StatusQA, TransitionOptions{})
	require.NoError(t, err)
}

func TestTransitionIllegalEdge(t *testing.T) {
	f := newFixture(t)
	f.orders.orders[10] = processingOrder()

	_, err := f.svc.Transition(context.Background(), operator(), 10, workflow.StatusDelivered, TransitionOptions{})

	require.Error(t, err)
	assert.True(t, errorbank.IsKind(err, errorbank.KindInvalidTransition))
	assert.Empty(t, f.audit.records)
}

func TestTransitionUnconfiguredTarget(t *testing.T) {
	f := newFixture(t)
	f.orders.orders[10] = processingOrder()

	_, err := f.svc.Transition(context.Background(), operator(), 10, "folding", TransitionOptions{})

	require.Error(t, err)
	assert.True(t, errorbank.IsKind(err, errorbank.KindInvalidTransition))
}

func TestTransitionNotesRequirement(t *testing.T) {
	f := newFixture(t)
	f.orders.orders[10] = processingOrder()

	t.Run("missing notes rejected", func(t *testing.T) {
		_, err := f.svc.Transition(context.Background(), operator(), 10, workflow.StatusCancelled, TransitionOptions{})
		require.Error(t, err)
		assert.True(t, errorbank.IsKind(err, errorbank.KindValidation))
	})

	t.Run("notes satisfy the edge", func(t *testing.T) {
		result, err := f.svc.Transition(context.Background(), operator(), 10, workflow.StatusCancelled, TransitionOptions{
			Notes: "customer withdrew the order",
		})
		require.NoError(t, err)
		assert.Equal(t, workflow.StatusCancelled, result.Order.Status)
		require.Len(t, f.audit.records, 1)
		assert.Equal(t, "customer withdrew the order", f.audit.records[0].Notes)
	})
}

func TestTransitionBlockedListsEveryBlocker(t *testing.T) {
	f := newFixture(t)
	order := processingOrder()
	order.Status = workflow.StatusReady
	order.DeliveryAddress = ""
	f.orders.orders[10] = order
	f.configs.snap.Legacy[workflow.StatusReady] = []workflow.Edge{{To: workflow.StatusOutForDelivery}}
	f.configs.snap.Template[workflow.StatusReady] = []workflow.Edge{{To: workflow.StatusOutForDelivery}}
	require.NoError(t, f.issues.Create(context.Background(), &entity.Issue{
		TenantID: testTenantID, OrderID: 10, OrderItemID: 21, Code: "stain", Priority: entity.IssuePriorityHigh,
	}))

	_, err := f.svc.Transition(context.Background(), operator(), 10, workflow.StatusOutForDelivery, TransitionOptions{})

	require.Error(t, err)
	require.True(t, errorbank.IsKind(err, errorbank.KindBlocked))

	blockers, ok := errorbank.From(err).Details()["blockers"].([]blocker.Blocker)
	require.True(t, ok)
	codes := make([]string, 0, len(blockers))
	for _, b := range blockers {
		codes = append(codes, b.Code)
	}
	assert.ElementsMatch(t, []string{blocker.CodeOpenIssue, blocker.CodeMissingDelivery}, codes,
		"caller sees the complete blocker list, not just the first")
	assert.Empty(t, f.audit.records)
}

func TestTransitionStaleFromStatus(t *testing.T) {
	f := newFixture(t)
	f.orders.orders[10] = processingOrder()

	_, err := f.svc.Transition(context.Background(), operator(), 10, workflow.StatusPacking, TransitionOptions{
		From: workflow.StatusQA,
	})

	require.Error(t, err)
	assert.True(t, errorbank.IsKind(err, errorbank.KindConflict))
	assert.Empty(t, f.audit.records)
}

func TestTransitionLostCompareAndSwap(t *testing.T) {
	f := newFixture(t)
	f.orders.orders[10] = processingOrder()
	f.orders.casFail = true

	_, err := f.svc.Transition(context.Background(), operator(), 10, workflow.StatusQA, TransitionOptions{})

	require.Error(t, err)
	assert.True(t, errorbank.IsKind(err, errorbank.KindConflict))
	assert.Empty(t, f.audit.records, "a lost race writes no audit record")
}

func TestTransitionDualModeDivergence(t *testing.T) {
	f := newFixture(t)
	f.orders.orders[10] = processingOrder()
	// The template dropped processing -> cancelled; the legacy map still has it.
	f.configs.snap.Template[workflow.StatusProcessing] = []workflow.Edge{{To: workflow.StatusQA}}

	_, err := f.svc.Transition(context.Background(), operator(), 10, workflow.StatusCancelled, TransitionOptions{
		Notes: "damaged beyond repair",
	})

	require.Error(t, err)
	assert.True(t, errorbank.IsKind(err, errorbank.KindConfiguration))
	assert.Equal(t, workflow.StatusProcessing, f.orders.orders[10].Status)
}

func TestTransitionScreenContractMode(t *testing.T) {
	f := newFixture(t)

	t.Run("screen permission set gates the move", func(t *testing.T) {
		f.orders.orders[10] = processingOrder()
		f.orders.orders[10].Status = workflow.StatusQA

		bare := permission.Actor{ID: "op-2", TenantID: testTenantID, Permissions: []string{"orders:transition"}}
		_, err := f.svc.Transition(context.Background(), bare, 10, workflow.StatusPacking, TransitionOptions{
			Mode:   workflow.ModeScreenContract,
			Screen: "qa",
		})
		require.Error(t, err)
		assert.True(t, errorbank.IsKind(err, errorbank.KindPermissionDenied))
	})

	t.Run("valid move from the qa screen", func(t *testing.T) {
		f.orders.orders[10] = processingOrder()
		f.orders.orders[10].Status = workflow.StatusQA

		result, err := f.svc.Transition(context.Background(), operator(), 10, workflow.StatusPacking, TransitionOptions{
			Mode:   workflow.ModeScreenContract,
			Screen: "qa",
		})
		require.NoError(t, err)
		assert.Equal(t, workflow.StatusPacking, result.Order.Status)

		last := f.audit.records[len(f.audit.records)-1]
		assert.Equal(t, "qa", last.Metadata["screen"])
	})

	t.Run("screen must cover the source status", func(t *testing.T) {
		f.orders.orders[10] = processingOrder()

		_, err := f.svc.Transition(context.Background(), operator(), 10, workflow.StatusQA, TransitionOptions{
			Mode:   workflow.ModeScreenContract,
			Screen: "qa",
		})
		require.Error(t, err)
		assert.True(t, errorbank.IsKind(err, errorbank.KindInvalidTransition))
	})
}

func TestTransitionWorkflowNotConfigured(t *testing.T) {
	f := newFixture(t)
	f.orders.orders[10] = processingOrder()
	f.configs.snap = nil
	f.configs.err = workflowrepo.ErrNotConfigured

	_, err := f.svc.Transition(context.Background(), operator(), 10, workflow.StatusQA, TransitionOptions{})

	require.Error(t, err)
	assert.True(t, errorbank.IsKind(err, errorbank.KindConfiguration))
}

func TestTransitionAuditAppendFailure(t *testing.T) {
	f := newFixture(t)
	f.orders.orders[10] = processingOrder()
	f.audit.appendErr = errors.New("disk full")

	_, err := f.svc.Transition(context.Background(), operator(), 10, workflow.StatusQA, TransitionOptions{})

	require.Error(t, err)
	assert.True(t, errorbank.IsKind(err, errorbank.KindInternal))
}

func TestTransitionOrderNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Transition(context.Background(), operator(), 99, workflow.StatusQA, TransitionOptions{})

	require.Error(t, err)
	assert.True(t, errorbank.IsKind(err, errorbank.KindNotFound))
}

func TestAllowedTransitions(t *testing.T) {
	f := newFixture(t)
	f.orders.orders[10] = processingOrder()

	current, allowed, err := f.svc.AllowedTransitions(context.Background(), testTenantID, 10, workflow.ModeLegacy)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusProcessing, current)
	assert.Equal(t, []workflow.Status{workflow.StatusQA, workflow.StatusCancelled}, allowed)
}

func TestTimeline(t *testing.T) {
	f := newFixture(t)
	f.orders.orders[10] = processingOrder()

	_, err := f.svc.Transition(context.Background(), operator(), 10, workflow.StatusQA, TransitionOptions{})
	require.NoError(t, err)
	_, err = f.svc.Transition(context.Background(), operator(), 10, workflow.StatusPacking, TransitionOptions{})
	require.NoError(t, err)

	records, err := f.svc.Timeline(context.Background(), testTenantID, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, workflow.StatusQA, records[0].ToStatus)
	assert.Equal(t, workflow.StatusPacking, records[1].ToStatus)
}

func TestQueueFilter(t *testing.T) {
	f := newFixture(t)

	t.Run("derived from the contract", func(t *testing.T) {
		filter, err := f.svc.QueueFilter(context.Background(), testTenantID, "processing")
		require.NoError(t, err)
		assert.Equal(t, []workflow.Status{workflow.StatusProcessing}, filter.Statuses)
		assert.Equal(t, map[string]string{"priority": "rush"}, filter.ExtraFilters)
	})

	t.Run("unknown screen", func(t *testing.T) {
		_, err := f.svc.QueueFilter(context.Background(), testTenantID, "ghost")
		require.Error(t, err)
		assert.True(t, errorbank.IsKind(err, errorbank.KindConfiguration))
	})
}
