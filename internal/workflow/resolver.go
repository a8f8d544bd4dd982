package workflow

import (
	"fmt"

	"github.com/washfold/washfold/pkg/errorbank"
)

// Mode selects which of the two coexisting rule engines validates a
// transition. The engine core never branches on configuration era beyond
// this single selection point.
type Mode string

const (
	// ModeLegacy validates against the per-tenant status-transition map and
	// gates on the fixed action code below.
	ModeLegacy Mode = "legacy"

	// ModeScreenContract validates that the move originates from the named
	// screen's status set and that the target is reachable per the active
	// workflow template; gates on the screen's published permission codes.
	ModeScreenContract Mode = "screen-contract"
)

// PermTransition is the action code gating legacy-mode transitions.
const PermTransition = "orders:transition"

// Request describes one proposed edge to a rule resolver.
type Request struct {
	From   Status
	To     Status
	Screen string
}

// Decision is a resolver's verdict on a legal edge: the matched edge carries
// its per-edge requirements.
type Decision struct {
	Edge Edge
}

// Resolver decides, under one rule engine, which permissions gate a proposed
// transition and whether the edge is legal. Both the legacy map and the
// screen-contract model implement this single capability, so the engine
// never branches on configuration era itself.
type Resolver interface {
	// RequiredPermissions resolves the permission codes the actor must hold
	// for this transition. It is checked before edge legality so that an
	// unauthorised caller learns nothing about the workflow shape.
	RequiredPermissions(snap *Snapshot, req Request) ([]string, error)

	// Resolve validates the edge and returns its per-edge requirements.
	Resolve(snap *Snapshot, req Request) (Decision, error)
}

// ResolverFor selects the resolver for a validation mode. An empty mode
// defaults to legacy for compatibility with pre-migration callers.
func ResolverFor(mode Mode) (Resolver, error) {
	switch mode {
	case ModeLegacy, "":
		return legacyResolver{}, nil
	case ModeScreenContract:
		return screenResolver{}, nil
	default:
		return nil, errorbank.BadRequest(
			fmt.Sprintf("unknown validation mode %q", mode),
			errorbank.WithDetail("mode", string(mode)),
		)
	}
}

type legacyResolver struct{}

func (legacyResolver) RequiredPermissions(*Snapshot, Request) ([]string, error) {
	return []string{PermTransition}, nil
}

func (legacyResolver) Resolve(snap *Snapshot, req Request) (Decision, error) {
	if len(snap.Legacy) == 0 {
		return Decision{}, errorbank.Configuration("no legacy workflow definition for tenant",
			errorbank.WithDetail("tenant_id", snap.TenantID))
	}
	edge, ok := snap.Legacy.Lookup(req.From, req.To)
	if !ok {
		return Decision{}, errorbank.InvalidTransition(
			fmt.Sprintf("transition %s -> %s is not allowed", req.From, req.To),
			errorbank.WithDetail("from", req.From.String()),
			errorbank.WithDetail("to", req.To.String()),
			errorbank.WithDetail("allowed", snap.Legacy.AllowedFrom(req.From)),
		)
	}
	return Decision{Edge: edge}, nil
}

type screenResolver struct{}

func (screenResolver) RequiredPermissions(snap *Snapshot, req Request) ([]string, error) {
	if req.Screen == "" {
		return nil, errorbank.Validation("screen is required in screen-contract mode",
			errorbank.WithDetail("field", "screen"))
	}
	contract, err := snap.Contract(req.Screen)
	if err != nil {
		return nil, err
	}
	return contract.RequiredPermissions, nil
}

func (screenResolver) Resolve(snap *Snapshot, req Request) (Decision, error) {
	contract, err := snap.Contract(req.Screen)
	if err != nil {
		return Decision{}, err
	}
	if !contract.OperatesOn(req.From) {
		return Decision{}, errorbank.InvalidTransition(
			fmt.Sprintf("screen %q does not operate on status %s", req.Screen, req.From),
			errorbank.WithDetail("screen", req.Screen),
			errorbank.WithDetail("from", req.From.String()),
			errorbank.WithDetail("screen_statuses", contract.Statuses),
		)
	}
	if len(snap.Template) == 0 {
		return Decision{}, errorbank.Configuration("no workflow template for tenant",
			errorbank.WithDetail("tenant_id", snap.TenantID))
	}
	edge, ok := snap.Template.Lookup(req.From, req.To)
	if !ok {
		return Decision{}, errorbank.InvalidTransition(
			fmt.Sprintf("transition %s -> %s is not in the workflow template", req.From, req.To),
			errorbank.WithDetail("from", req.From.String()),
			errorbank.WithDetail("to", req.To.String()),
			errorbank.WithDetail("allowed", snap.Template.AllowedFrom(req.From)),
		)
	}
	return Decision{Edge: edge}, nil
}

// RuleSetFor returns the rule set a mode consults, for allowed-transition
// queries that must agree with validation.
func RuleSetFor(snap *Snapshot, mode Mode) RuleSet {
	if mode == ModeScreenContract {
		return snap.Template
	}
	return snap.Legacy
}
