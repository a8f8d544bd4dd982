package workflow

import (
	"fmt"

	"github.com/washfold/washfold/pkg/errorbank"
)

// Snapshot is a versioned, read-only view of one tenant's workflow
// configuration, optionally scoped to a service category. Snapshots are
// fetched per request and cacheable by version; they are never mutated in
// place, so tests can inject fixed configurations without shared state.
type Snapshot struct {
	TenantID        int64
	ServiceCategory string
	Version         int

	// Legacy is the per-tenant fromStatus -> [toStatus...] map consulted in
	// legacy validation mode.
	Legacy RuleSet

	// Template is the active workflow template consulted in screen-contract
	// validation mode.
	Template RuleSet

	// Screens maps screen names to their published contracts.
	Screens map[string]ScreenContract
}

// Contract returns the published contract for a named screen.
func (s *Snapshot) Contract(name string) (ScreenContract, error) {
	contract, ok := s.Screens[name]
	if !ok {
		return ScreenContract{}, errorbank.Configuration(
			fmt.Sprintf("screen %q is not published for this tenant", name),
			errorbank.WithDetail("screen", name),
		)
	}
	return contract, nil
}

// HasStatus reports whether the given status belongs to the tenant's
// configured status set under either rule engine.
func (s *Snapshot) HasStatus(status Status) bool {
	if _, ok := s.Legacy.Statuses()[status]; ok {
		return true
	}
	_, ok := s.Template.Statuses()[status]
	return ok
}

// CheckEquivalence verifies the dual-mode migration invariant for one edge:
// when both the legacy map and the workflow template define rules for the
// source status, they must agree on whether the edge is legal. Divergence is
// a tenant configuration bug and is surfaced, never silently resolved.
func (s *Snapshot) CheckEquivalence(from, to Status) error {
	if !s.Legacy.Defines(from) || !s.Template.Defines(from) {
		return nil
	}
	_, legacyOK := s.Legacy.Lookup(from, to)
	_, templateOK := s.Template.Lookup(from, to)
	if legacyOK == templateOK {
		return nil
	}
	return errorbank.Configuration(
		"legacy map and workflow template disagree on transition legality",
		errorbank.WithDetail("from", from.String()),
		errorbank.WithDetail("to", to.String()),
		errorbank.WithDetail("legacy_allows", legacyOK),
		errorbank.WithDetail("template_allows", templateOK),
	)
}
