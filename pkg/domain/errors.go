package domain

import "fmt"

// DomainError represents an engine error with a stable code and message
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Error codes
const (
	ErrCodeConfigNotFound         = "CONFIG_NOT_FOUND"
	ErrCodeNoEligibleAgent        = "NO_ELIGIBLE_AGENT"
	ErrCodeRuleEvaluation         = "RULE_EVALUATION"
	ErrCodeConcurrentModification = "CONCURRENT_MODIFICATION"
	ErrCodeNotificationDelivery   = "NOTIFICATION_DELIVERY"
	ErrCodeNotFound               = "NOT_FOUND"
	ErrCodeValidation             = "VALIDATION_ERROR"
	ErrCodeConflict               = "CONFLICT"
	ErrCodeInternal               = "INTERNAL_ERROR"
)

// Error constructors

// NewConfigNotFoundError reports a tenant with no assignment config. The
// router recovers from this locally, it is never surfaced to callers.
func NewConfigNotFoundError(tenantID int) error {
	return &DomainError{
		Code:    ErrCodeConfigNotFound,
		Message: fmt.Sprintf("no assignment config for tenant %d", tenantID),
	}
}

// NewNoEligibleAgentError reports that a rotation or rule resolved to an
// agent set with zero enabled, capacity-available members.
func NewNoEligibleAgentError(tenantID int) error {
	return &DomainError{
		Code:    ErrCodeNoEligibleAgent,
		Message: fmt.Sprintf("no eligible agents for tenant %d", tenantID),
	}
}

// NewRuleEvaluationError reports a malformed rule predicate.
func NewRuleEvaluationError(ruleID int, err error) error {
	return &DomainError{
		Code:    ErrCodeRuleEvaluation,
		Message: fmt.Sprintf("rule %d cannot be evaluated", ruleID),
		Err:     err,
	}
}

// NewConcurrentModificationError reports a lost optimistic-concurrency race
// on a lead's version field. Callers retry against reloaded state.
func NewConcurrentModificationError(leadID int) error {
	return &DomainError{
		Code:    ErrCodeConcurrentModification,
		Message: fmt.Sprintf("lead %d was modified concurrently", leadID),
	}
}

// NewNotificationDeliveryError reports a failed notification delivery. Never
// fatal to an assignment decision.
func NewNotificationDeliveryError(channel string, err error) error {
	return &DomainError{
		Code:    ErrCodeNotificationDelivery,
		Message: fmt.Sprintf("delivery via %s failed", channel),
		Err:     err,
	}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(resource string) error {
	return &DomainError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
	}
}

// NewValidationError creates a new validation error
func NewValidationError(msg string) error {
	return &DomainError{
		Code:    ErrCodeValidation,
		Message: msg,
	}
}

// NewConflictError creates a new conflict error
func NewConflictError(msg string) error {
	return &DomainError{
		Code:    ErrCodeConflict,
		Message: msg,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(err error) error {
	return &DomainError{
		Code:    ErrCodeInternal,
		Message: "an internal error occurred",
		Err:     err,
	}
}

// Helper functions to check error types

func hasCode(err error, code string) bool {
	if de, ok := err.(*DomainError); ok {
		return de.Code == code
	}
	return false
}

// IsConfigNotFound checks if the error is a missing-config error
func IsConfigNotFound(err error) bool { return hasCode(err, ErrCodeConfigNotFound) }

// IsNoEligibleAgent checks if the error is a no-eligible-agent error
func IsNoEligibleAgent(err error) bool { return hasCode(err, ErrCodeNoEligibleAgent) }

// IsRuleEvaluation checks if the error is a rule evaluation error
func IsRuleEvaluation(err error) bool { return hasCode(err, ErrCodeRuleEvaluation) }

// IsConcurrentModification checks if the error is a lost CAS race
func IsConcurrentModification(err error) bool { return hasCode(err, ErrCodeConcurrentModification) }

// IsNotFound checks if the error is a not found error
func IsNotFound(err error) bool { return hasCode(err, ErrCodeNotFound) }

// IsValidation checks if the error is a validation error
func IsValidation(err error) bool { return hasCode(err, ErrCodeValidation) }

// IsConflict checks if the error is a conflict error
func IsConflict(err error) bool { return hasCode(err, ErrCodeConflict) }

// GetErrorCode extracts the error code from a domain error
func GetErrorCode(err error) string {
	if de, ok := err.(*DomainError); ok {
		return de.Code
	}
	return ErrCodeInternal
}
