package rules

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/jordanlanch/leadrouter/pkg/logger"
	"github.com/jordanlanch/leadrouter/pkg/models"
)

// Matcher evaluates a tenant's ordered routing rules against lead attributes.
type Matcher struct {
	logger logger.Logger
}

// NewMatcher creates a new rule matcher.
func NewMatcher(log logger.Logger) *Matcher {
	return &Matcher{logger: log}
}

// Match evaluates rules in ascending priority order and returns the first
// matching rule's action, or nil when nothing matches. A rule that cannot be
// evaluated (unknown field, bad operator, malformed value) is skipped with a
// warning; a single bad rule never blocks assignment.
func (m *Matcher) Match(lead *models.Lead, rules []*models.AssignmentRule) *models.RuleAction {
	ordered := make([]*models.AssignmentRule, len(rules))
	copy(ordered, rules)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Priority < ordered[j].Priority })

	for _, rule := range ordered {
		matched, err := m.evaluate(lead, rule)
		if err != nil {
			m.logger.Warn("skipping malformed assignment rule",
				"rule_id", rule.ID,
				"tenant_id", rule.TenantID,
				"priority", rule.Priority,
				"error", err)
			continue
		}
		if matched {
			action := rule.Action
			return &action
		}
	}
	return nil
}

// evaluate checks a rule's predicate: the conjunction of all its conditions.
// A rule with zero conditions matches nothing rather than everything, so an
// accidentally empty rule cannot swallow every lead.
func (m *Matcher) evaluate(lead *models.Lead, rule *models.AssignmentRule) (bool, error) {
	if len(rule.Conditions) == 0 {
		return false, nil
	}

	for _, cond := range rule.Conditions {
		ok, err := evaluateCondition(lead, cond)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func evaluateCondition(lead *models.Lead, cond models.RuleCondition) (bool, error) {
	switch cond.Field {
	case models.FieldBudget:
		want, err := strconv.ParseFloat(cond.Value, 64)
		if err != nil {
			return false, fmt.Errorf("budget condition value %q is not numeric", cond.Value)
		}
		return compareNumeric(lead.Budget, cond.Op, want)

	case models.FieldCampaign:
		return compareString(lead.Campaign, cond.Op, cond.Value)

	case models.FieldLocation:
		return compareString(lead.Location, cond.Op, cond.Value)

	case models.FieldPropertyType:
		return compareString(lead.PropertyType, cond.Op, cond.Value)

	default:
		return false, fmt.Errorf("unknown rule field %q", cond.Field)
	}
}

func compareNumeric(got float64, op models.RuleOp, want float64) (bool, error) {
	switch op {
	case models.OpEq:
		return got == want, nil
	case models.OpNeq:
		return got != want, nil
	case models.OpGt:
		return got > want, nil
	case models.OpGte:
		return got >= want, nil
	case models.OpLt:
		return got < want, nil
	case models.OpLte:
		return got <= want, nil
	default:
		return false, fmt.Errorf("operator %q not valid for numeric fields", op)
	}
}

func compareString(got string, op models.RuleOp, want string) (bool, error) {
	switch op {
	case models.OpEq:
		return strings.EqualFold(got, want), nil
	case models.OpNeq:
		return !strings.EqualFold(got, want), nil
	case models.OpContains:
		return strings.Contains(strings.ToLower(got), strings.ToLower(want)), nil
	default:
		return false, fmt.Errorf("operator %q not valid for string fields", op)
	}
}
