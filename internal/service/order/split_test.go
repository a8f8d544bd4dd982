package order

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/washfold/washfold/internal/entity"
	"github.com/washfold/washfold/internal/permission"
	"github.com/washfold/washfold/pkg/errorbank"
)

func splitFixture(t *testing.T) *fixture {
	t.Helper()
	f := newFixture(t)
	f.orders.orders[10] = processingOrder()
	f.orders.items[10] = []entity.OrderItem{
		{ID: 21, TenantID: testTenantID, OrderID: 10, Description: "shirt"},
		{ID: 22, TenantID: testTenantID, OrderID: 10, Description: "coat"},
		{ID: 23, TenantID: testTenantID, OrderID: 10, Description: "duvet"},
	}
	return f
}

func TestSplitSuccess(t *testing.T) {
	f := splitFixture(t)

	children, err := f.svc.Split(context.Background(), operator(), 10, [][]int64{{21, 22}, {23}})
	require.NoError(t, err)

	require.Len(t, children, 2)
	for _, child := range children {
		assert.Equal(t, int64(10), child.ParentID)
		assert.Equal(t, testTenantID, child.TenantID)
	}
}

func TestSplitPermissionDenied(t *testing.T) {
	f := splitFixture(t)
	viewer := permission.Actor{ID: "viewer-1", TenantID: testTenantID, Permissions: []string{"orders:transition"}}

	_, err := f.svc.Split(context.Background(), viewer, 10, [][]int64{{21}, {22, 23}})

	require.Error(t, err)
	assert.True(t, errorbank.IsKind(err, errorbank.KindPermissionDenied))
}

func TestSplitNeedsTwoGroups(t *testing.T) {
	f := splitFixture(t)

	_, err := f.svc.Split(context.Background(), operator(), 10, [][]int64{{21, 22, 23}})

	require.Error(t, err)
	assert.True(t, errorbank.IsKind(err, errorbank.KindValidation))
}

func TestSplitExhaustiveAssignment(t *testing.T) {
	f := splitFixture(t)

	tests := []struct {
		name   string
		groups [][]int64
	}{
		{"unassigned item", [][]int64{{21}, {22}}},
		{"duplicate item", [][]int64{{21, 22}, {22, 23}}},
		{"unknown item", [][]int64{{21, 22}, {23, 99}}},
		{"empty group", [][]int64{{21, 22, 23}, {}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Split(context.Background(), operator(), 10, tt.groups)
			require.Error(t, err)
			assert.True(t, errorbank.IsKind(err, errorbank.KindValidation))
			assert.Empty(t, f.orders.children, "no children may be created on a rejected split")
		})
	}
}

func TestSplitBlockedByOpenIssues(t *testing.T) {
	f := splitFixture(t)
	require.NoError(t, f.issues.Create(context.Background(), &entity.Issue{
		TenantID: testTenantID, OrderID: 10, OrderItemID: 22, Code: "stain", Priority: entity.IssuePriorityNormal,
	}))

	_, err := f.svc.Split(context.Background(), operator(), 10, [][]int64{{21}, {22, 23}})

	require.Error(t, err)
	assert.True(t, errorbank.IsKind(err, errorbank.KindBlocked))
}

func TestSplitPlanLimit(t *testing.T) {
	f := splitFixture(t)
	f.tenants.tenant.MaxSplitChildren = 2

	_, err := f.svc.Split(context.Background(), operator(), 10, [][]int64{{21}, {22}, {23}})

	require.Error(t, err)
	assert.True(t, errorbank.IsKind(err, errorbank.KindLimitExceeded))
}

func TestSplitOrderNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Split(context.Background(), operator(), 404, [][]int64{{1}, {2}})

	require.Error(t, err)
	assert.True(t, errorbank.IsKind(err, errorbank.KindNotFound))
}
