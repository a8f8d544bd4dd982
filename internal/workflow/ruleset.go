package workflow

// Edge describes one legal transition out of a status, with per-edge
// requirements.
type Edge struct {
	To            Status `json:"to"`
	RequiresNotes bool   `json:"requires_notes,omitempty"`
}

// RuleSet maps each status to the set of statuses reachable from it. Two rule
// sets coexist per tenant during the screen-contract migration: the legacy
// status-transition map and the newer workflow template (see Snapshot).
type RuleSet map[Status][]Edge

// Lookup returns the edge from one status to another, if configured.
func (rs RuleSet) Lookup(from, to Status) (Edge, bool) {
	for _, edge := range rs[from] {
		if edge.To == to {
			return edge, true
		}
	}
	return Edge{}, false
}

// Defines reports whether the rule set carries any configuration for the
// given source status. An empty edge list still counts as configured: it
// means the status is terminal under this rule set.
func (rs RuleSet) Defines(from Status) bool {
	_, ok := rs[from]
	return ok
}

// AllowedFrom lists the statuses reachable from the given status, in
// configuration order. Used for UI prefetching after a successful transition.
func (rs RuleSet) AllowedFrom(from Status) []Status {
	edges := rs[from]
	if len(edges) == 0 {
		return nil
	}
	out := make([]Status, 0, len(edges))
	for _, edge := range edges {
		out = append(out, edge.To)
	}
	return out
}

// Statuses returns the set of statuses the rule set knows about, either as a
// source or as a target. The order invariant "current status is a member of
// the tenant's configured set" is checked against this.
func (rs RuleSet) Statuses() map[Status]struct{} {
	set := make(map[Status]struct{}, len(rs))
	for from, edges := range rs {
		set[from] = struct{}{}
		for _, edge := range edges {
			set[edge.To] = struct{}{}
		}
	}
	return set
}
