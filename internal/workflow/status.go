package workflow

import "strings"

// Status identifies one operational stage of an order. Values are stored and
// compared in lower-case; Normalize must be applied to any caller-supplied
// status before it enters the engine.
type Status string

// Canonical stages of the default laundry workflow. Tenants may configure a
// subset or extension of these; the engine only ever trusts the tenant's
// configured set.
const (
	StatusIntake         Status = "intake"
	StatusPreparation    Status = "preparation"
	StatusProcessing     Status = "processing"
	StatusQA             Status = "qa"
	StatusPacking        Status = "packing"
	StatusReady          Status = "ready"
	StatusOutForDelivery Status = "out_for_delivery"
	StatusDelivered      Status = "delivered"
	StatusCancelled      Status = "cancelled"
)

// Normalize lower-cases and trims a caller-supplied status value so that
// comparisons tolerate caller inconsistency.
func Normalize(raw string) Status {
	return Status(strings.ToLower(strings.TrimSpace(raw)))
}

func (s Status) String() string {
	return string(s)
}

// IsZero reports whether the status carries no value.
func (s Status) IsZero() bool {
	return s == ""
}

// Terminal reports whether the status ends an order's lifecycle. Terminal
// orders are never deleted, only kept in their final stage.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}
