package dto

import "time"

// OrderResponse represents an order as exposed via transport layers.
type OrderResponse struct {
	ID              int64     `json:"id"`
	TenantID        int64     `json:"tenant_id"`
	Number          string    `json:"number"`
	Status          string    `json:"status"`
	ServiceCategory string    `json:"service_category,omitempty"`
	Priority        string    `json:"priority,omitempty"`
	DeliveryAddress string    `json:"delivery_address,omitempty"`
	ParentID        int64     `json:"parent_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// AllowedTransitionsResponse lists the statuses reachable from an order's
// current status.
type AllowedTransitionsResponse struct {
	CurrentStatus      string   `json:"current_status"`
	AllowedTransitions []string `json:"allowed_transitions"`
}

// TransitionResponse is returned on a successful transition.
type TransitionResponse struct {
	Order              OrderResponse `json:"order"`
	AllowedTransitions []string      `json:"allowed_transitions"`
}

// SplitResponse lists the child orders created by a split.
type SplitResponse struct {
	ChildOrderIDs []int64         `json:"child_order_ids"`
	Children      []OrderResponse `json:"children"`
}

// IssueResponse represents an issue as exposed via transport layers.
type IssueResponse struct {
	ID              int64      `json:"id"`
	OrderID         int64      `json:"order_id"`
	OrderItemID     int64      `json:"order_item_id"`
	Code            string     `json:"code"`
	Description     string     `json:"description,omitempty"`
	Priority        string     `json:"priority"`
	Resolved        bool       `json:"resolved"`
	ResolutionNotes string     `json:"resolution_notes,omitempty"`
	ResolvedBy      string     `json:"resolved_by,omitempty"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// TimelineEntryResponse is one audit record in an order's timeline.
type TimelineEntryResponse struct {
	ID         string            `json:"id"`
	FromStatus string            `json:"from_status"`
	ToStatus   string            `json:"to_status"`
	ActorID    string            `json:"actor_id"`
	ActorName  string            `json:"actor_name,omitempty"`
	Notes      string            `json:"notes,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// QueueFilterResponse is the work-queue filter derived from a screen
// contract.
type QueueFilterResponse struct {
	Statuses     []string          `json:"statuses"`
	ExtraFilters map[string]string `json:"extra_filters,omitempty"`
}
