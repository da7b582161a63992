package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jordanlanch/leadrouter/pkg/domain"
	"github.com/jordanlanch/leadrouter/pkg/models"
)

// GetConfig loads a tenant's assignment config.
func (s *Store) GetConfig(ctx context.Context, tenantID int) (*models.AssignmentConfig, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT tenant_id, method, agents, sla_minutes, max_auto_reassignments,
		        rule_fallback, default_pool_id, escalation_pool_id,
		        sweep_interval_seconds, updated_at
		   FROM assignment_config WHERE tenant_id = ?`), tenantID)

	var cfg models.AssignmentConfig
	var agentsJSON string
	err := row.Scan(&cfg.TenantID, &cfg.Method, &agentsJSON, &cfg.SLAMinutes,
		&cfg.MaxAutoReassignments, &cfg.RuleFallback, &cfg.DefaultPoolID,
		&cfg.EscalationPoolID, &cfg.SweepIntervalSeconds, &cfg.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, domain.NewConfigNotFoundError(tenantID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch assignment config: %w", err)
	}

	if err := json.Unmarshal([]byte(agentsJSON), &cfg.Agents); err != nil {
		return nil, fmt.Errorf("failed to decode agent list: %w", err)
	}
	return &cfg, nil
}

// SaveConfig upserts a tenant's assignment config.
func (s *Store) SaveConfig(ctx context.Context, cfg *models.AssignmentConfig) error {
	agentsJSON, err := json.Marshal(cfg.Agents)
	if err != nil {
		return fmt.Errorf("failed to encode agent list: %w", err)
	}

	cfg.UpdatedAt = time.Now().UTC()
	_, err = s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO assignment_config
		        (tenant_id, method, agents, sla_minutes, max_auto_reassignments,
		         rule_fallback, default_pool_id, escalation_pool_id,
		         sweep_interval_seconds, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (tenant_id) DO UPDATE SET
		        method = excluded.method,
		        agents = excluded.agents,
		        sla_minutes = excluded.sla_minutes,
		        max_auto_reassignments = excluded.max_auto_reassignments,
		        rule_fallback = excluded.rule_fallback,
		        default_pool_id = excluded.default_pool_id,
		        escalation_pool_id = excluded.escalation_pool_id,
		        sweep_interval_seconds = excluded.sweep_interval_seconds,
		        updated_at = excluded.updated_at`),
		cfg.TenantID, cfg.Method, string(agentsJSON), cfg.SLAMinutes,
		cfg.MaxAutoReassignments, cfg.RuleFallback, cfg.DefaultPoolID,
		cfg.EscalationPoolID, cfg.SweepIntervalSeconds, cfg.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save assignment config: %w", err)
	}
	return nil
}

// ListTenantIDs returns every tenant that has an assignment config. The
// watchdog sweeps exactly this set.
func (s *Store) ListTenantIDs(ctx context.Context) ([]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT tenant_id FROM assignment_config ORDER BY tenant_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
