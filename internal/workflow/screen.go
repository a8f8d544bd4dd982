package workflow

// ScreenContract binds a named operational screen (work queue) to the
// statuses it operates on, additional queue filter predicates, and the
// permission codes an actor needs to act from it. Contracts are immutable
// once published for a given snapshot version; work-queue building and
// transition validation both read the same contract object so that "what a
// screen shows" and "what a screen may act on" never diverge.
type ScreenContract struct {
	Name                string            `json:"name"`
	Statuses            []Status          `json:"statuses"`
	AdditionalFilters   map[string]string `json:"additional_filters,omitempty"`
	RequiredPermissions []string          `json:"required_permissions"`
}

// OperatesOn reports whether the screen's status set contains the given
// status.
func (c ScreenContract) OperatesOn(status Status) bool {
	for _, s := range c.Statuses {
		if s == status {
			return true
		}
	}
	return false
}

// QueueFilter is the shape callers use to build a screen's work queue. It is
// derived from the contract itself, never from a parallel configuration.
type QueueFilter struct {
	Statuses     []Status          `json:"statuses"`
	ExtraFilters map[string]string `json:"extra_filters,omitempty"`
}

// QueueFilter derives the work-queue filter for this screen.
func (c ScreenContract) QueueFilter() QueueFilter {
	return QueueFilter{
		Statuses:     c.Statuses,
		ExtraFilters: c.AdditionalFilters,
	}
}
