package models

// RuleField names a lead attribute a routing rule can compare against.
type RuleField string

const (
	FieldCampaign     RuleField = "campaign"
	FieldBudget       RuleField = "budget"
	FieldLocation     RuleField = "location"
	FieldPropertyType RuleField = "property_type"
)

// RuleOp is a comparison operator inside a rule predicate.
type RuleOp string

const (
	OpEq       RuleOp = "eq"
	OpNeq      RuleOp = "neq"
	OpGt       RuleOp = "gt"
	OpGte      RuleOp = "gte"
	OpLt       RuleOp = "lt"
	OpLte      RuleOp = "lte"
	OpContains RuleOp = "contains"
)

// RuleCondition is one attribute comparison. A rule's predicate is the
// conjunction of all its conditions.
type RuleCondition struct {
	Field RuleField `json:"field"`
	Op    RuleOp    `json:"op"`
	Value string    `json:"value"`
}

// ActionKind is what a matched rule does with the lead.
type ActionKind string

const (
	ActionAssignAgent ActionKind = "assign_agent"
	ActionAssignTeam  ActionKind = "assign_team"
	ActionAssignPool  ActionKind = "assign_pool"
)

// RuleAction is the routing target of a matched rule.
type RuleAction struct {
	Kind     ActionKind `json:"kind"`
	TargetID int        `json:"target_id"`
}

// AssignmentRule is one entry of a tenant's ordered rule set. Priority values
// are unique per tenant; lower values are evaluated first.
type AssignmentRule struct {
	ID         int             `json:"id"`
	TenantID   int             `json:"tenant_id"`
	Priority   int             `json:"priority"`
	Conditions []RuleCondition `json:"conditions"`
	Action     RuleAction      `json:"action"`
}

// ReplaceRulesRequest swaps a tenant's whole rule set in one admin action.
type ReplaceRulesRequest struct {
	Rules []AssignmentRule `json:"rules" validate:"dive"`
}
