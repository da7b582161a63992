package models

import "time"

// AssignmentMethod selects how a tenant's incoming leads are routed.
type AssignmentMethod string

const (
	MethodManual     AssignmentMethod = "manual"
	MethodRoundRobin AssignmentMethod = "round_robin"
	MethodRules      AssignmentMethod = "rules"
)

// FallbackPolicy is what rule-based routing does when no rule matches.
type FallbackPolicy string

const (
	FallbackRoundRobin FallbackPolicy = "round_robin"
	FallbackPool       FallbackPolicy = "pool"
)

// AgentConfig is one agent's entry in a tenant's rotation.
type AgentConfig struct {
	AgentID int  `json:"agent_id" validate:"required"`
	Enabled bool `json:"enabled"`
	// LeadsPerRound is the agent's weight in the rotation; values below 1 are
	// treated as 1.
	LeadsPerRound int `json:"leads_per_round" validate:"min=0"`
}

// AssignmentConfig is a tenant's routing policy.
type AssignmentConfig struct {
	TenantID             int              `json:"tenant_id" validate:"required"`
	Method               AssignmentMethod `json:"method" validate:"required,oneof=manual round_robin rules"`
	Agents               []AgentConfig    `json:"agents" validate:"dive"`
	SLAMinutes           int              `json:"sla_minutes" validate:"min=0"`
	MaxAutoReassignments int              `json:"max_auto_reassignments" validate:"min=0"`
	RuleFallback         FallbackPolicy   `json:"rule_fallback" validate:"omitempty,oneof=round_robin pool"`
	DefaultPoolID        int              `json:"default_pool_id"`
	EscalationPoolID     int              `json:"escalation_pool_id"`
	SweepIntervalSeconds int              `json:"sweep_interval_seconds" validate:"min=0"`
	UpdatedAt            time.Time        `json:"updated_at"`
}

// SLA returns the first-contact deadline as a duration. Zero disables the
// watchdog for this tenant.
func (c *AssignmentConfig) SLA() time.Duration {
	return time.Duration(c.SLAMinutes) * time.Minute
}

// AgentEntry returns the rotation entry for an agent, or nil when the agent is
// not part of this tenant's rotation.
func (c *AssignmentConfig) AgentEntry(agentID int) *AgentConfig {
	for i := range c.Agents {
		if c.Agents[i].AgentID == agentID {
			return &c.Agents[i]
		}
	}
	return nil
}

// RoundRobinState is a tenant's persisted rotation position: the remaining
// credit of each agent in the current round plus the last agent picked.
type RoundRobinState struct {
	TenantID    int         `json:"tenant_id"`
	Cursor      int         `json:"cursor"`
	Credits     map[int]int `json:"credits"`
	LastResetAt time.Time   `json:"last_reset_at"`
}

// OwnerKind discriminates what a lead's owner id refers to.
type OwnerKind string

const (
	OwnerAgent OwnerKind = "agent"
	OwnerPool  OwnerKind = "pool"
	OwnerNone  OwnerKind = "none"
)

// DecisionSource records which mechanism produced an ownership change.
type DecisionSource string

const (
	SourceManual     DecisionSource = "manual"
	SourceRoundRobin DecisionSource = "round_robin"
	SourceRules      DecisionSource = "rules"
	SourceWatchdog   DecisionSource = "watchdog"
)

// Audit reasons. Stable strings: dashboards and log queries filter on them.
const (
	ReasonConfigMissing     = "config_missing"
	ReasonNoAgentsAvailable = "no_agents_available"
	ReasonRoundRobin        = "round_robin"
	ReasonRuleMatch         = "rule_match"
	ReasonRulesFallback     = "rules_fallback"
	ReasonManualPool        = "manual_pool"
	ReasonManualClaim       = "manual_claim"
	ReasonManualReassign    = "manual_reassign"
	ReasonSLABreach         = "sla_breach"
	ReasonReassignmentCap   = "reassignment_cap"
	ReasonLeadClosed        = "lead_closed"
)

// AssignmentResult describes where a routing decision placed a lead.
type AssignmentResult struct {
	LeadID    int            `json:"lead_id"`
	OwnerKind OwnerKind      `json:"owner_kind"`
	OwnerID   int            `json:"owner_id,omitempty"`
	Source    DecisionSource `json:"source"`
	Reason    string         `json:"reason"`
}

// AssignmentLogEntry is one immutable row of the assignment audit trail.
type AssignmentLogEntry struct {
	ID            int64          `json:"id"`
	TenantID      int            `json:"tenant_id"`
	LeadID        int            `json:"lead_id"`
	PrevOwnerKind OwnerKind      `json:"prev_owner_kind"`
	PrevOwnerID   int            `json:"prev_owner_id,omitempty"`
	NewOwnerKind  OwnerKind      `json:"new_owner_kind"`
	NewOwnerID    int            `json:"new_owner_id,omitempty"`
	Source        DecisionSource `json:"source"`
	Reason        string         `json:"reason"`
	CreatedAt     time.Time      `json:"created_at"`
}

// AssignmentLogFilter narrows an audit query.
type AssignmentLogFilter struct {
	LeadID int
	Source DecisionSource
	From   *time.Time
	To     *time.Time
	Page   int
	Limit  int
}

// AssignmentLogPage is one page of audit results.
type AssignmentLogPage struct {
	Data       []AssignmentLogEntry `json:"data"`
	Pagination PaginationInfo       `json:"pagination"`
}
