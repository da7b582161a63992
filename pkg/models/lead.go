package models

import "time"

// AssignmentState is the ownership lifecycle state of a lead.
type AssignmentState string

const (
	StateUnassigned AssignmentState = "unassigned"
	StatePooled     AssignmentState = "pooled"
	StateAssigned   AssignmentState = "assigned"
	StateEscalated  AssignmentState = "escalated"
	StateClosed     AssignmentState = "closed"
)

// Terminal reports whether the engine has stopped tracking this state for
// load and SLA purposes. Audit history persists regardless.
func (s AssignmentState) Terminal() bool {
	return s == StateClosed
}

// Lead is the engine's view of a sales lead: source attributes used by the
// rule matcher plus the ownership and concurrency fields this engine owns.
type Lead struct {
	ID                int             `json:"id"`
	TenantID          int             `json:"tenant_id"`
	Campaign          string          `json:"campaign"`
	Budget            float64         `json:"budget"`
	Location          string          `json:"location"`
	PropertyType      string          `json:"property_type"`
	PoolID            *int            `json:"pool_id,omitempty"`
	AssignedAgentID   *int            `json:"assigned_agent_id,omitempty"`
	State             AssignmentState `json:"state"`
	AssignedAt        *time.Time      `json:"assigned_at,omitempty"`
	LastContactedAt   *time.Time      `json:"last_contacted_at,omitempty"`
	ReassignmentCount int             `json:"reassignment_count"`
	Version           int64           `json:"version"`
	CreatedAt         time.Time       `json:"created_at"`
}

// Agent is a routable member of a tenant's sales team. The active-lead count
// is derived state owned by the load tracker, not stored here.
type Agent struct {
	ID       int    `json:"id"`
	TenantID int    `json:"tenant_id"`
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	TeamID   *int   `json:"team_id,omitempty"`
	Enabled  bool   `json:"enabled"`
	// Capacity is the maximum number of active leads; nil means unlimited.
	Capacity *int `json:"capacity,omitempty"`
}

// LeadPool is a holding queue of leads with no current agent owner.
type LeadPool struct {
	ID       int    `json:"id"`
	TenantID int    `json:"tenant_id"`
	Name     string `json:"name"`
}

// CreateLeadRequest is the ingestion payload handed to the engine by the
// lead-ingestion collaborator.
type CreateLeadRequest struct {
	TenantID     int     `json:"tenant_id" validate:"required"`
	Campaign     string  `json:"campaign"`
	Budget       float64 `json:"budget" validate:"min=0"`
	Location     string  `json:"location"`
	PropertyType string  `json:"property_type"`
}

// ClaimLeadRequest assigns a pooled lead to an agent from the manual UI.
type ClaimLeadRequest struct {
	AgentID int `json:"agent_id" validate:"required"`
}

// ReassignLeadRequest triggers an explicit re-route of an owned lead.
type ReassignLeadRequest struct {
	Reason string `json:"reason,omitempty"`
}
