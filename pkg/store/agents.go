package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jordanlanch/leadrouter/pkg/domain"
	"github.com/jordanlanch/leadrouter/pkg/models"
)

const agentColumns = `id, tenant_id, name, email, team_id, enabled, capacity`

func scanAgent(row interface{ Scan(...any) error }) (*models.Agent, error) {
	var a models.Agent
	var teamID, capacity sql.NullInt64
	if err := row.Scan(&a.ID, &a.TenantID, &a.Name, &a.Email, &teamID, &a.Enabled, &capacity); err != nil {
		return nil, err
	}
	a.TeamID = intPtr(teamID)
	a.Capacity = intPtr(capacity)
	return &a, nil
}

// CreateAgent inserts an agent and returns its id.
func (s *Store) CreateAgent(ctx context.Context, a *models.Agent) (int, error) {
	id, err := s.insertID(ctx,
		`INSERT INTO agents (tenant_id, name, email, team_id, enabled, capacity)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		a.TenantID, a.Name, a.Email, nullableInt(a.TeamID), a.Enabled, nullableInt(a.Capacity))
	if err != nil {
		return 0, fmt.Errorf("failed to create agent: %w", err)
	}
	a.ID = int(id)
	return a.ID, nil
}

// GetAgent retrieves an agent by id.
func (s *Store) GetAgent(ctx context.Context, agentID int) (*models.Agent, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT `+agentColumns+` FROM agents WHERE id = ?`), agentID)
	a, err := scanAgent(row)
	if err == sql.ErrNoRows {
		return nil, domain.NewNotFoundError("agent")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch agent: %w", err)
	}
	return a, nil
}

// ListEnabledAgents returns a tenant's enabled agents ordered by id.
func (s *Store) ListEnabledAgents(ctx context.Context, tenantID int) ([]*models.Agent, error) {
	return s.listAgents(ctx,
		`SELECT `+agentColumns+` FROM agents WHERE tenant_id = ? AND enabled = ? ORDER BY id`,
		tenantID, true)
}

// ListTeamAgents returns a team's enabled agents ordered by id.
func (s *Store) ListTeamAgents(ctx context.Context, tenantID, teamID int) ([]*models.Agent, error) {
	return s.listAgents(ctx,
		`SELECT `+agentColumns+` FROM agents WHERE tenant_id = ? AND team_id = ? AND enabled = ? ORDER BY id`,
		tenantID, teamID, true)
}

func (s *Store) listAgents(ctx context.Context, query string, args ...any) ([]*models.Agent, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	defer rows.Close()

	var agents []*models.Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		agents = append(agents, a)
	}
	return agents, rows.Err()
}

// SetAgentEnabled flips an agent's rotation eligibility.
func (s *Store) SetAgentEnabled(ctx context.Context, agentID int, enabled bool) error {
	res, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE agents SET enabled = ? WHERE id = ?`), enabled, agentID)
	if err != nil {
		return fmt.Errorf("failed to update agent: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NewNotFoundError("agent")
	}
	return nil
}
