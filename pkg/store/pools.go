package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jordanlanch/leadrouter/pkg/domain"
	"github.com/jordanlanch/leadrouter/pkg/models"
)

// EnsurePool creates a named pool for a tenant if it does not exist and
// returns its id either way.
func (s *Store) EnsurePool(ctx context.Context, tenantID int, name string) (int, error) {
	var id int
	err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT id FROM lead_pools WHERE tenant_id = ? AND name = ?`), tenantID, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("failed to look up pool: %w", err)
	}

	newID, err := s.insertID(ctx,
		`INSERT INTO lead_pools (tenant_id, name) VALUES (?, ?)`, tenantID, name)
	if err != nil {
		return 0, fmt.Errorf("failed to create pool: %w", err)
	}
	return int(newID), nil
}

// GetPool retrieves a pool by id.
func (s *Store) GetPool(ctx context.Context, poolID int) (*models.LeadPool, error) {
	var p models.LeadPool
	err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT id, tenant_id, name FROM lead_pools WHERE id = ?`), poolID).
		Scan(&p.ID, &p.TenantID, &p.Name)
	if err == sql.ErrNoRows {
		return nil, domain.NewNotFoundError("pool")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pool: %w", err)
	}
	return &p, nil
}

// ListPools returns a tenant's pools ordered by name.
func (s *Store) ListPools(ctx context.Context, tenantID int) ([]*models.LeadPool, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT id, tenant_id, name FROM lead_pools WHERE tenant_id = ? ORDER BY name`), tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pools: %w", err)
	}
	defer rows.Close()

	var pools []*models.LeadPool
	for rows.Next() {
		var p models.LeadPool
		if err := rows.Scan(&p.ID, &p.TenantID, &p.Name); err != nil {
			return nil, err
		}
		pools = append(pools, &p)
	}
	return pools, rows.Err()
}

// AppendPoolEntry adds a lead to the tail of a pool's FIFO. The unique
// constraint on lead_id keeps a lead in at most one pool.
func (s *Store) AppendPoolEntry(ctx context.Context, poolID, leadID int) error {
	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO pool_entries (pool_id, lead_id, enqueued_at) VALUES (?, ?, ?)`),
		poolID, leadID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to enqueue lead: %w", err)
	}
	return nil
}

// RemovePoolEntry drops a lead's pool membership, if any.
func (s *Store) RemovePoolEntry(ctx context.Context, leadID int) error {
	_, err := s.db.ExecContext(ctx, s.rebind(
		`DELETE FROM pool_entries WHERE lead_id = ?`), leadID)
	if err != nil {
		return fmt.Errorf("failed to remove pool entry: %w", err)
	}
	return nil
}

// OldestPoolEntry returns the lead at the head of a pool's FIFO, or 0 if the
// pool is empty.
func (s *Store) OldestPoolEntry(ctx context.Context, poolID int) (int, error) {
	var leadID int
	err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT lead_id FROM pool_entries WHERE pool_id = ? ORDER BY id LIMIT 1`), poolID).
		Scan(&leadID)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read pool head: %w", err)
	}
	return leadID, nil
}

// ListPoolLeads returns the leads queued in a pool in FIFO order.
func (s *Store) ListPoolLeads(ctx context.Context, poolID, limit int) ([]*models.Lead, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT `+leadColumns+` FROM leads
		  WHERE id IN (SELECT lead_id FROM pool_entries WHERE pool_id = ?)
		  ORDER BY (SELECT pe.id FROM pool_entries pe WHERE pe.lead_id = leads.id)
		  LIMIT ?`), poolID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pool leads: %w", err)
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

// PoolDepth returns the number of leads queued in a pool.
func (s *Store) PoolDepth(ctx context.Context, poolID int) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT COUNT(1) FROM pool_entries WHERE pool_id = ?`), poolID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count pool entries: %w", err)
	}
	return n, nil
}
