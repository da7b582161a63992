package pools

import (
	"context"
	"fmt"
	"time"

	"github.com/jordanlanch/leadrouter/pkg/models"
	"github.com/jordanlanch/leadrouter/pkg/store"
)

// Default pool names created for every tenant.
const (
	DefaultPoolName    = "unassigned"
	EscalationPoolName = "escalations"
)

// Service manages lead pools: FIFO holding queues for leads with no current
// agent owner. Ownership transitions out of a pool go through the router,
// which holds the tenant lock and writes the audit trail.
type Service struct {
	store *store.Store
}

// NewService creates a new pool service.
func NewService(st *store.Store) *Service {
	return &Service{store: st}
}

// EnsureTenantPools creates the built-in pools for a tenant and returns
// (defaultPoolID, escalationPoolID).
func (s *Service) EnsureTenantPools(ctx context.Context, tenantID int) (int, int, error) {
	defaultID, err := s.store.EnsurePool(ctx, tenantID, DefaultPoolName)
	if err != nil {
		return 0, 0, err
	}
	escalationID, err := s.store.EnsurePool(ctx, tenantID, EscalationPoolName)
	if err != nil {
		return 0, 0, err
	}
	return defaultID, escalationID, nil
}

// Enqueue moves a lead into a pool, updating both the lead's ownership fields
// and the pool FIFO. The lead's version guard is the caller's CAS write.
func (s *Service) Enqueue(ctx context.Context, lead *models.Lead, poolID int) error {
	if _, err := s.store.GetPool(ctx, poolID); err != nil {
		return err
	}

	// A lead is a member of exactly one pool while unassigned.
	if err := s.store.RemovePoolEntry(ctx, lead.ID); err != nil {
		return err
	}

	lead.PoolID = &poolID
	lead.AssignedAgentID = nil
	if lead.State != models.StateEscalated {
		lead.State = models.StatePooled
	}
	lead.AssignedAt = nil

	if err := s.store.UpdateLeadOwnership(ctx, lead); err != nil {
		return err
	}

	if err := s.store.AppendPoolEntry(ctx, poolID, lead.ID); err != nil {
		return fmt.Errorf("failed to enqueue lead %d: %w", lead.ID, err)
	}
	return nil
}

// Dequeue pops the oldest lead from a pool, or nil when the pool is empty.
// The lead is returned still pooled; the caller completes the ownership
// transition.
func (s *Service) Dequeue(ctx context.Context, poolID int) (*models.Lead, error) {
	leadID, err := s.store.OldestPoolEntry(ctx, poolID)
	if err != nil {
		return nil, err
	}
	if leadID == 0 {
		return nil, nil
	}
	return s.store.GetLead(ctx, leadID)
}

// Release removes a lead's pool membership after it has been claimed or
// re-routed.
func (s *Service) Release(ctx context.Context, leadID int) error {
	return s.store.RemovePoolEntry(ctx, leadID)
}

// List returns the queued leads of a pool in FIFO order.
func (s *Service) List(ctx context.Context, poolID, limit int) ([]*models.Lead, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.store.ListPoolLeads(ctx, poolID, limit)
}

// Depth returns the number of leads waiting in a pool.
func (s *Service) Depth(ctx context.Context, poolID int) (int, error) {
	return s.store.PoolDepth(ctx, poolID)
}
