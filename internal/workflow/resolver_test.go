package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/washfold/washfold/pkg/errorbank"
)

func testSnapshot() *Snapshot {
	return &Snapshot{
		TenantID: 7,
		Version:  3,
		Legacy: RuleSet{
			StatusProcessing: {
				{To: StatusQA},
				{To: StatusCancelled, RequiresNotes: true},
			},
			StatusQA: {
				{To: StatusPacking},
			},
		},
		Template: RuleSet{
			StatusProcessing: {
				{To: StatusQA},
				{To: StatusCancelled, RequiresNotes: true},
			},
			StatusQA: {
				{To: StatusPacking},
			},
		},
		Screens: map[string]ScreenContract{
			"processing": {
				Name:                "processing",
				Statuses:            []Status{StatusProcessing},
				RequiredPermissions: []string{"orders:transition", "station:processing"},
			},
		},
	}
}

func TestResolverFor(t *testing.T) {
	t.Run("empty mode defaults to legacy", func(t *testing.T) {
		resolver, err := ResolverFor("")
		require.NoError(t, err)
		required, err := resolver.RequiredPermissions(testSnapshot(), Request{})
		require.NoError(t, err)
		assert.Equal(t, []string{PermTransition}, required)
	})

	t.Run("unknown mode is rejected", func(t *testing.T) {
		_, err := ResolverFor("hybrid")
		require.Error(t, err)
		assert.True(t, errorbank.IsKind(err, errorbank.KindBadRequest))
	})
}

func TestLegacyResolver(t *testing.T) {
	resolver, err := ResolverFor(ModeLegacy)
	require.NoError(t, err)
	snap := testSnapshot()

	t.Run("legal edge", func(t *testing.T) {
		decision, err := resolver.Resolve(snap, Request{From: StatusProcessing, To: StatusQA})
		require.NoError(t, err)
		assert.False(t, decision.Edge.RequiresNotes)
	})

	t.Run("edge carries notes requirement", func(t *testing.T) {
		decision, err := resolver.Resolve(snap, Request{From: StatusProcessing, To: StatusCancelled})
		require.NoError(t, err)
		assert.True(t, decision.Edge.RequiresNotes)
	})

	t.Run("illegal edge", func(t *testing.T) {
		_, err := resolver.Resolve(snap, Request{From: StatusProcessing, To: StatusDelivered})
		require.Error(t, err)
		assert.True(t, errorbank.IsKind(err, errorbank.KindInvalidTransition))
	})

	t.Run("missing legacy map is a configuration error", func(t *testing.T) {
		empty := &Snapshot{TenantID: 7, Template: snap.Template}
		_, err := resolver.Resolve(empty, Request{From: StatusProcessing, To: StatusQA})
		require.Error(t, err)
		assert.True(t, errorbank.IsKind(err, errorbank.KindConfiguration))
	})
}

func TestScreenResolver(t *testing.T) {
	resolver, err := ResolverFor(ModeScreenContract)
	require.NoError(t, err)
	snap := testSnapshot()

	t.Run("permissions come from the contract", func(t *testing.T) {
		required, err := resolver.RequiredPermissions(snap, Request{From: StatusProcessing, To: StatusQA, Screen: "processing"})
		require.NoError(t, err)
		assert.Equal(t, []string{"orders:transition", "station:processing"}, required)
	})

	t.Run("screen is required", func(t *testing.T) {
		_, err := resolver.RequiredPermissions(snap, Request{From: StatusProcessing, To: StatusQA})
		require.Error(t, err)
		assert.True(t, errorbank.IsKind(err, errorbank.KindValidation))
	})

	t.Run("unpublished screen", func(t *testing.T) {
		_, err := resolver.Resolve(snap, Request{From: StatusProcessing, To: StatusQA, Screen: "ghost"})
		require.Error(t, err)
		assert.True(t, errorbank.IsKind(err, errorbank.KindConfiguration))
	})

	t.Run("screen must operate on the source status", func(t *testing.T) {
		_, err := resolver.Resolve(snap, Request{From: StatusQA, To: StatusPacking, Screen: "processing"})
		require.Error(t, err)
		assert.True(t, errorbank.IsKind(err, errorbank.KindInvalidTransition))
	})

	t.Run("legal edge via template", func(t *testing.T) {
		decision, err := resolver.Resolve(snap, Request{From: StatusProcessing, To: StatusCancelled, Screen: "processing"})
		require.NoError(t, err)
		assert.True(t, decision.Edge.RequiresNotes)
	})

	t.Run("edge absent from template", func(t *testing.T) {
		_, err := resolver.Resolve(snap, Request{From: StatusProcessing, To: StatusPacking, Screen: "processing"})
		require.Error(t, err)
		assert.True(t, errorbank.IsKind(err, errorbank.KindInvalidTransition))
	})
}

func TestRuleSetFor(t *testing.T) {
	snap := testSnapshot()
	snap.Legacy[StatusPacking] = []Edge{{To: StatusReady}}

	assert.True(t, RuleSetFor(snap, ModeLegacy).Defines(StatusPacking))
	assert.False(t, RuleSetFor(snap, ModeScreenContract).Defines(StatusPacking))
	assert.True(t, RuleSetFor(snap, "").Defines(StatusPacking))
}

func TestSnapshotCheckEquivalence(t *testing.T) {
	t.Run("agreement passes", func(t *testing.T) {
		snap := testSnapshot()
		assert.NoError(t, snap.CheckEquivalence(StatusProcessing, StatusQA))
		assert.NoError(t, snap.CheckEquivalence(StatusProcessing, StatusDelivered))
	})

	t.Run("one engine silent passes", func(t *testing.T) {
		snap := testSnapshot()
		delete(snap.Template, StatusProcessing)
		assert.NoError(t, snap.CheckEquivalence(StatusProcessing, StatusQA))
	})

	t.Run("divergence is a configuration error", func(t *testing.T) {
		snap := testSnapshot()
		snap.Template[StatusProcessing] = []Edge{{To: StatusQA}}
		err := snap.CheckEquivalence(StatusProcessing, StatusCancelled)
		require.Error(t, err)
		assert.True(t, errorbank.IsKind(err, errorbank.KindConfiguration))
	})
}

func TestSnapshotHasStatus(t *testing.T) {
	snap := testSnapshot()
	snap.Template[StatusReady] = nil

	assert.True(t, snap.HasStatus(StatusQA))
	assert.True(t, snap.HasStatus(StatusReady), "status known only to the template still counts")
	assert.False(t, snap.HasStatus(StatusDelivered))
}
