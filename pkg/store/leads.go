package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jordanlanch/leadrouter/pkg/domain"
	"github.com/jordanlanch/leadrouter/pkg/models"
)

const leadColumns = `id, tenant_id, campaign, budget, location, property_type,
	pool_id, assigned_agent_id, state, assigned_at, last_contacted_at,
	reassignment_count, version, created_at`

func scanLead(row interface{ Scan(...any) error }) (*models.Lead, error) {
	var l models.Lead
	var poolID, agentID sql.NullInt64
	var assignedAt, contactedAt sql.NullTime
	err := row.Scan(&l.ID, &l.TenantID, &l.Campaign, &l.Budget, &l.Location,
		&l.PropertyType, &poolID, &agentID, &l.State, &assignedAt, &contactedAt,
		&l.ReassignmentCount, &l.Version, &l.CreatedAt)
	if err != nil {
		return nil, err
	}
	l.PoolID = intPtr(poolID)
	l.AssignedAgentID = intPtr(agentID)
	l.AssignedAt = timePtr(assignedAt)
	l.LastContactedAt = timePtr(contactedAt)
	return &l, nil
}

// CreateLead inserts a new, unassigned lead and returns its id.
func (s *Store) CreateLead(ctx context.Context, l *models.Lead) (int, error) {
	if l.State == "" {
		l.State = models.StateUnassigned
	}
	if l.Version == 0 {
		l.Version = 1
	}
	l.CreatedAt = time.Now().UTC()

	id, err := s.insertID(ctx,
		`INSERT INTO leads (tenant_id, campaign, budget, location, property_type,
		        pool_id, assigned_agent_id, state, assigned_at, last_contacted_at,
		        reassignment_count, version, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.TenantID, l.Campaign, l.Budget, l.Location, l.PropertyType,
		nullableInt(l.PoolID), nullableInt(l.AssignedAgentID), l.State,
		nullableTime(l.AssignedAt), nullableTime(l.LastContactedAt),
		l.ReassignmentCount, l.Version, l.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to create lead: %w", err)
	}
	l.ID = int(id)
	return l.ID, nil
}

// GetLead retrieves a lead by id.
func (s *Store) GetLead(ctx context.Context, leadID int) (*models.Lead, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT `+leadColumns+` FROM leads WHERE id = ?`), leadID)
	l, err := scanLead(row)
	if err == sql.ErrNoRows {
		return nil, domain.NewNotFoundError("lead")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch lead: %w", err)
	}
	return l, nil
}

// UpdateLeadOwnership writes the ownership fields of a lead guarded by a
// compare-and-swap on its version. A zero row count means the lead was
// modified (or deleted) concurrently; callers reload and retry, or abort if
// the record is gone.
func (s *Store) UpdateLeadOwnership(ctx context.Context, l *models.Lead) error {
	res, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE leads
		    SET pool_id = ?, assigned_agent_id = ?, state = ?, assigned_at = ?,
		        reassignment_count = ?, version = version + 1
		  WHERE id = ? AND version = ?`),
		nullableInt(l.PoolID), nullableInt(l.AssignedAgentID), l.State,
		nullableTime(l.AssignedAt), l.ReassignmentCount, l.ID, l.Version)
	if err != nil {
		return fmt.Errorf("failed to update lead ownership: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		// Distinguish a lost race from a deleted record.
		var exists int
		err := s.db.QueryRowContext(ctx, s.rebind(
			`SELECT COUNT(1) FROM leads WHERE id = ?`), l.ID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check lead existence: %w", err)
		}
		if exists == 0 {
			return domain.NewNotFoundError("lead")
		}
		return domain.NewConcurrentModificationError(l.ID)
	}

	l.Version++
	return nil
}

// RecordContact stamps a contact activity on a lead. Fed by the activity
// timeline collaborator; the watchdog reads it for SLA checks.
func (s *Store) RecordContact(ctx context.Context, leadID int, at time.Time) error {
	res, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE leads SET last_contacted_at = ? WHERE id = ?`), at.UTC(), leadID)
	if err != nil {
		return fmt.Errorf("failed to record contact: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NewNotFoundError("lead")
	}
	return nil
}

// ListAssignedBefore returns a tenant's leads that have been in the assigned
// state since before the cutoff. Watchdog sweep candidates.
func (s *Store) ListAssignedBefore(ctx context.Context, tenantID int, cutoff time.Time) ([]*models.Lead, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT `+leadColumns+` FROM leads
		  WHERE tenant_id = ? AND state = ? AND assigned_at <= ?
		  ORDER BY assigned_at`),
		tenantID, models.StateAssigned, cutoff.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to list stale leads: %w", err)
	}
	defer rows.Close()

	var leads []*models.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, l)
	}
	return leads, rows.Err()
}

// CountAssignedByAgent returns, per agent, the number of leads currently in
// the assigned state. Used to rebuild load-tracker counters.
func (s *Store) CountAssignedByAgent(ctx context.Context, tenantID int) (map[int]int, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT assigned_agent_id, COUNT(1) FROM leads
		  WHERE tenant_id = ? AND state = ? AND assigned_agent_id IS NOT NULL
		  GROUP BY assigned_agent_id`),
		tenantID, models.StateAssigned)
	if err != nil {
		return nil, fmt.Errorf("failed to count assigned leads: %w", err)
	}
	defer rows.Close()

	counts := make(map[int]int)
	for rows.Next() {
		var agentID, n int
		if err := rows.Scan(&agentID, &n); err != nil {
			return nil, err
		}
		counts[agentID] = n
	}
	return counts, rows.Err()
}

// DeleteLead removes a lead record. Exposed for the merge/delete collaborator;
// in-flight assignment decisions detect the removal on their final CAS write.
func (s *Store) DeleteLead(ctx context.Context, leadID int) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, s.rebind(
			`DELETE FROM pool_entries WHERE lead_id = ?`), leadID); err != nil {
			return fmt.Errorf("failed to remove pool entry: %w", err)
		}
		res, err := tx.ExecContext(ctx, s.rebind(
			`DELETE FROM leads WHERE id = ?`), leadID)
		if err != nil {
			return fmt.Errorf("failed to delete lead: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return domain.NewNotFoundError("lead")
		}
		return nil
	})
}
