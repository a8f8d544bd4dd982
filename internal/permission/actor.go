package permission

// Actor is the authenticated identity supplied to every engine call.
// Authentication mechanics are out of scope; callers hand the engine an
// actor with an identity and, optionally, a pre-resolved permission set.
// When Permissions is nil the gate consults the oracle.
type Actor struct {
	ID          string
	DisplayName string
	TenantID    int64
	Permissions []string
}

// PublicLinkActor is the synthetic actor used by the unauthenticated
// confirmation path. It carries exactly the one grant that path needs and
// never consults the oracle, so possession of a tenant+order-number pair can
// never escalate beyond the fixed public transition.
func PublicLinkActor(tenantID int64, grant string) Actor {
	return Actor{
		ID:          "public-link",
		DisplayName: "Customer confirmation link",
		TenantID:    tenantID,
		Permissions: []string{grant},
	}
}
