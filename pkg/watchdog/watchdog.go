package watchdog

import (
	"context"
	"time"

	"github.com/jordanlanch/leadrouter/pkg/assignment"
	"github.com/jordanlanch/leadrouter/pkg/configstore"
	"github.com/jordanlanch/leadrouter/pkg/domain"
	"github.com/jordanlanch/leadrouter/pkg/logger"
	"github.com/jordanlanch/leadrouter/pkg/metrics"
	"github.com/jordanlanch/leadrouter/pkg/store"
)

// Service is the SLA watchdog: it periodically sweeps each tenant's assigned
// leads and re-routes the ones that breached their first-contact SLA without
// any recorded activity. Leads that exhaust their automatic reassignments are
// escalated by the router.
type Service struct {
	store    *store.Store
	configs  *configstore.Service
	router   *assignment.Router
	timeline domain.ActivityTimeline
	metrics  *metrics.Metrics
	logger   logger.Logger
}

// NewService creates the watchdog service.
func NewService(st *store.Store, configs *configstore.Service, router *assignment.Router,
	timeline domain.ActivityTimeline, m *metrics.Metrics, log logger.Logger) *Service {
	return &Service{
		store:    st,
		configs:  configs,
		router:   router,
		timeline: timeline,
		metrics:  m,
		logger:   log,
	}
}

// SweepAll sweeps every tenant that has an assignment config.
func (s *Service) SweepAll(ctx context.Context) error {
	start := time.Now()
	defer func() {
		s.metrics.RecordSweep(time.Since(start))
	}()

	tenantIDs, err := s.store.ListTenantIDs(ctx)
	if err != nil {
		return err
	}

	for _, tenantID := range tenantIDs {
		if err := s.SweepTenant(ctx, tenantID); err != nil {
			// One tenant's failure never blocks the rest of the sweep.
			s.logger.Error("tenant sweep failed", "tenant_id", tenantID, "error", err)
		}
	}
	return nil
}

// SweepTenant re-routes a single tenant's SLA-breached leads. A tenant with
// no config or a zero SLA is skipped.
func (s *Service) SweepTenant(ctx context.Context, tenantID int) error {
	cfg, err := s.configs.Get(ctx, tenantID)
	if domain.IsConfigNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if cfg.SLAMinutes <= 0 {
		return nil
	}

	cutoff := time.Now().UTC().Add(-cfg.SLA())
	candidates, err := s.store.ListAssignedBefore(ctx, tenantID, cutoff)
	if err != nil {
		return err
	}

	swept := 0
	for _, lead := range candidates {
		if lead.AssignedAt == nil {
			continue
		}

		contacted, err := s.timeline.HasContactActivitySince(ctx, lead.ID, *lead.AssignedAt)
		if err != nil {
			s.logger.Error("failed to check contact activity", "lead_id", lead.ID, "error", err)
			continue
		}
		if contacted {
			continue
		}

		s.metrics.RecordSLABreach()
		if _, err := s.router.ReassignStale(ctx, lead.ID); err != nil {
			// A conflict means a concurrent manual action won the race; the
			// lead is in good hands either way.
			if domain.IsConflict(err) {
				continue
			}
			s.logger.Error("failed to reassign stale lead", "lead_id", lead.ID, "error", err)
			continue
		}
		swept++
	}

	if swept > 0 {
		s.logger.Info("watchdog sweep reassigned stale leads",
			"tenant_id", tenantID,
			"reassigned", swept,
			"candidates", len(candidates))
	}
	return nil
}
