package permission

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type stubOracle struct {
	perms       []string
	listErr     error
	resourceOK  bool
	resourceErr error
}

func (s stubOracle) ListPermissions(context.Context, int64, string) ([]string, error) {
	return s.perms, s.listErr
}

func (s stubOracle) CheckResourcePermission(context.Context, int64, string, string, string, string) (bool, error) {
	return s.resourceOK, s.resourceErr
}

func TestMatch(t *testing.T) {
	tests := []struct {
		name    string
		granted []string
		code    string
		want    bool
	}{
		{"exact", []string{"orders:transition"}, "orders:transition", true},
		{"resource wildcard", []string{"orders:*"}, "orders:split", true},
		{"global wildcard", []string{"*:*"}, "issues:resolve", true},
		{"no match", []string{"orders:transition"}, "orders:split", false},
		{"wildcard does not cross resources", []string{"orders:*"}, "issues:create", false},
		{"action-only code needs exact grant", []string{"orders:*"}, "admin", false},
		{"empty grants", nil, "orders:transition", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Match(tt.granted, tt.code))
		})
	}
}

func TestGateCan(t *testing.T) {
	ctx := context.Background()

	t.Run("pre-resolved permissions bypass the oracle", func(t *testing.T) {
		gate := NewGate(stubOracle{listErr: errors.New("unreachable")}, zap.NewNop())
		actor := Actor{ID: "op-1", TenantID: 1, Permissions: []string{"orders:transition"}}
		assert.True(t, gate.Can(ctx, actor, "orders:transition"))
	})

	t.Run("oracle grants", func(t *testing.T) {
		gate := NewGate(stubOracle{perms: []string{"orders:*"}}, zap.NewNop())
		actor := Actor{ID: "op-1", TenantID: 1}
		assert.True(t, gate.Can(ctx, actor, "orders:split"))
	})

	t.Run("oracle failure denies", func(t *testing.T) {
		gate := NewGate(stubOracle{listErr: errors.New("timeout")}, zap.NewNop())
		actor := Actor{ID: "op-1", TenantID: 1}
		assert.False(t, gate.Can(ctx, actor, "orders:transition"))
	})
}

func TestGateCanAll(t *testing.T) {
	ctx := context.Background()
	gate := NewGate(stubOracle{}, zap.NewNop())
	actor := Actor{ID: "op-1", TenantID: 1, Permissions: []string{"orders:transition", "issues:create"}}

	assert.True(t, gate.CanAll(ctx, actor, []string{"orders:transition", "issues:create"}))
	assert.False(t, gate.CanAll(ctx, actor, []string{"orders:transition", "issues:resolve"}))
	assert.True(t, gate.CanAll(ctx, actor, nil), "empty code list is vacuously satisfied")
}

func TestGateMissing(t *testing.T) {
	ctx := context.Background()

	t.Run("reports unheld codes", func(t *testing.T) {
		gate := NewGate(stubOracle{}, zap.NewNop())
		actor := Actor{ID: "op-1", TenantID: 1, Permissions: []string{"orders:transition"}}
		missing := gate.Missing(ctx, actor, []string{"orders:transition", "orders:split"})
		assert.Equal(t, []string{"orders:split"}, missing)
	})

	t.Run("oracle failure reports everything missing", func(t *testing.T) {
		gate := NewGate(stubOracle{listErr: errors.New("down")}, zap.NewNop())
		actor := Actor{ID: "op-1", TenantID: 1}
		missing := gate.Missing(ctx, actor, []string{"a:b", "c:d"})
		assert.Equal(t, []string{"a:b", "c:d"}, missing)
	})
}

func TestGateCanResource(t *testing.T) {
	ctx := context.Background()

	t.Run("unscoped grant wins without resource lookup", func(t *testing.T) {
		gate := NewGate(stubOracle{resourceErr: errors.New("unreachable")}, zap.NewNop())
		actor := Actor{ID: "drv-1", TenantID: 1, Permissions: []string{"orders:transition"}}
		assert.True(t, gate.CanResource(ctx, actor, "orders:transition", "screen", "delivery"))
	})

	t.Run("falls back to scoped grant", func(t *testing.T) {
		gate := NewGate(stubOracle{resourceOK: true}, zap.NewNop())
		actor := Actor{ID: "drv-1", TenantID: 1, Permissions: []string{}}
		assert.True(t, gate.CanResource(ctx, actor, "orders:transition", "screen", "delivery"))
	})

	t.Run("scoped lookup failure denies", func(t *testing.T) {
		gate := NewGate(stubOracle{resourceErr: errors.New("down")}, zap.NewNop())
		actor := Actor{ID: "drv-1", TenantID: 1, Permissions: []string{}}
		assert.False(t, gate.CanResource(ctx, actor, "orders:transition", "screen", "delivery"))
	})
}

func TestPublicLinkActor(t *testing.T) {
	actor := PublicLinkActor(42, "orders:transition")

	assert.Equal(t, int64(42), actor.TenantID)
	assert.Equal(t, []string{"orders:transition"}, actor.Permissions)
	assert.NotEmpty(t, actor.ID)
}
