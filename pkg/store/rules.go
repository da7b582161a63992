package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jordanlanch/leadrouter/pkg/domain"
	"github.com/jordanlanch/leadrouter/pkg/models"
)

// ListRules returns a tenant's rules in evaluation order (ascending priority).
func (s *Store) ListRules(ctx context.Context, tenantID int) ([]*models.AssignmentRule, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT id, tenant_id, priority, conditions, action_kind, action_target
		   FROM assignment_rules WHERE tenant_id = ? ORDER BY priority`), tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer rows.Close()

	var rules []*models.AssignmentRule
	for rows.Next() {
		var r models.AssignmentRule
		var condJSON string
		if err := rows.Scan(&r.ID, &r.TenantID, &r.Priority, &condJSON,
			&r.Action.Kind, &r.Action.TargetID); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(condJSON), &r.Conditions); err != nil {
			return nil, fmt.Errorf("failed to decode rule %d conditions: %w", r.ID, err)
		}
		rules = append(rules, &r)
	}
	return rules, rows.Err()
}

// ReplaceRules swaps a tenant's whole rule set atomically. Priorities must be
// unique; the duplicate check runs before the write so a bad admin payload
// never leaves a half-replaced rule set.
func (s *Store) ReplaceRules(ctx context.Context, tenantID int, rules []models.AssignmentRule) error {
	seen := make(map[int]bool, len(rules))
	for _, r := range rules {
		if seen[r.Priority] {
			return domain.NewConflictError(fmt.Sprintf("duplicate rule priority %d", r.Priority))
		}
		seen[r.Priority] = true
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, s.rebind(
			`DELETE FROM assignment_rules WHERE tenant_id = ?`), tenantID); err != nil {
			return fmt.Errorf("failed to clear rules: %w", err)
		}

		for _, r := range rules {
			condJSON, err := json.Marshal(r.Conditions)
			if err != nil {
				return fmt.Errorf("failed to encode rule conditions: %w", err)
			}
			if _, err := tx.ExecContext(ctx, s.rebind(
				`INSERT INTO assignment_rules (tenant_id, priority, conditions, action_kind, action_target)
				 VALUES (?, ?, ?, ?, ?)`),
				tenantID, r.Priority, string(condJSON), r.Action.Kind, r.Action.TargetID); err != nil {
				return fmt.Errorf("failed to insert rule: %w", err)
			}
		}
		return nil
	})
}
