package assignment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jordanlanch/leadrouter/pkg/audit"
	"github.com/jordanlanch/leadrouter/pkg/configstore"
	"github.com/jordanlanch/leadrouter/pkg/domain"
	"github.com/jordanlanch/leadrouter/pkg/loadtracker"
	"github.com/jordanlanch/leadrouter/pkg/logger"
	"github.com/jordanlanch/leadrouter/pkg/metrics"
	"github.com/jordanlanch/leadrouter/pkg/models"
	"github.com/jordanlanch/leadrouter/pkg/pools"
	"github.com/jordanlanch/leadrouter/pkg/rules"
	"github.com/jordanlanch/leadrouter/pkg/scheduler"
	"github.com/jordanlanch/leadrouter/pkg/store"
)

const maxCASRetries = 3

// Router makes all ownership decisions for leads. Every path through it ends
// with a lead owned by an agent or sitting in a pool, exactly one audit entry
// per decision, and an asynchronous notification.
//
// A per-tenant mutex serializes rotation-credit and ownership mutations, so
// concurrent arrivals for one tenant are decided one at a time. Writes to the
// lead row itself are additionally guarded by a compare-and-swap on its
// version, which catches external mutations (deletes, imports) that do not go
// through this router.
type Router struct {
	store    *store.Store
	configs  *configstore.Service
	tracker  *loadtracker.Tracker
	matcher  *rules.Matcher
	pools    *pools.Service
	audit    *audit.Service
	notifier domain.Notifier
	metrics  *metrics.Metrics
	logger   logger.Logger

	mu      sync.Mutex
	tenants map[int]*sync.Mutex
}

// NewRouter creates the assignment router.
func NewRouter(st *store.Store, configs *configstore.Service, tracker *loadtracker.Tracker,
	matcher *rules.Matcher, poolSvc *pools.Service, auditSvc *audit.Service,
	notifier domain.Notifier, m *metrics.Metrics, log logger.Logger) *Router {
	return &Router{
		store:    st,
		configs:  configs,
		tracker:  tracker,
		matcher:  matcher,
		pools:    poolSvc,
		audit:    auditSvc,
		notifier: notifier,
		metrics:  m,
		logger:   log,
		tenants:  make(map[int]*sync.Mutex),
	}
}

// lockTenant acquires the tenant's decision lock and returns its unlock func.
func (r *Router) lockTenant(tenantID int) func() {
	r.mu.Lock()
	m, ok := r.tenants[tenantID]
	if !ok {
		m = &sync.Mutex{}
		r.tenants[tenantID] = m
	}
	r.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// decision carries the attribution of one routing pass: where the outcome is
// recorded as coming from, and the reason string written to the audit trail.
// Empty fields are filled in per routing path.
type decision struct {
	source  models.DecisionSource
	reason  string
	exclude map[int]bool
}

// Assign routes a newly created or re-submitted lead according to the
// tenant's configured policy.
func (r *Router) Assign(ctx context.Context, lead *models.Lead) (*models.AssignmentResult, error) {
	unlock := r.lockTenant(lead.TenantID)
	defer unlock()

	return r.route(ctx, lead, decision{})
}

// Reassign re-routes an owned lead through the tenant's policy, excluding the
// current agent from the decision.
func (r *Router) Reassign(ctx context.Context, leadID int, reason string) (*models.AssignmentResult, error) {
	lead, err := r.store.GetLead(ctx, leadID)
	if err != nil {
		return nil, err
	}

	unlock := r.lockTenant(lead.TenantID)
	defer unlock()

	// Reload under the lock; a concurrent decision may have moved the lead.
	lead, err = r.store.GetLead(ctx, leadID)
	if err != nil {
		return nil, err
	}
	if lead.State.Terminal() {
		return nil, domain.NewConflictError(fmt.Sprintf("lead %d is closed", leadID))
	}

	if reason == "" {
		reason = models.ReasonManualReassign
	}
	exclude := map[int]bool{}
	if lead.AssignedAgentID != nil {
		exclude[*lead.AssignedAgentID] = true
	}

	res, err := r.route(ctx, lead, decision{
		source:  models.SourceManual,
		reason:  reason,
		exclude: exclude,
	})
	if err != nil {
		return nil, err
	}
	r.metrics.RecordReassignment(res.Reason)
	return res, nil
}

// Claim assigns a pooled lead to the requesting agent. This is the only path
// by which a pooled lead becomes assigned under the manual policy, and it
// performs the same load-tracker update and audit write as every automatic
// path.
func (r *Router) Claim(ctx context.Context, leadID, agentID int) (*models.AssignmentResult, error) {
	lead, err := r.store.GetLead(ctx, leadID)
	if err != nil {
		return nil, err
	}

	unlock := r.lockTenant(lead.TenantID)
	defer unlock()

	lead, err = r.store.GetLead(ctx, leadID)
	if err != nil {
		return nil, err
	}
	if lead.State != models.StatePooled && lead.State != models.StateEscalated {
		return nil, domain.NewConflictError(fmt.Sprintf("lead %d is not in a pool", leadID))
	}

	agent, err := r.store.GetAgent(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if agent.TenantID != lead.TenantID {
		return nil, domain.NewValidationError("agent belongs to a different tenant")
	}
	if !agent.Enabled {
		return nil, domain.NewConflictError(fmt.Sprintf("agent %d is disabled", agentID))
	}
	if !r.tracker.HasCapacity(agentID, agent.Capacity) {
		return nil, domain.NewConflictError(fmt.Sprintf("agent %d is at capacity", agentID))
	}

	return r.assignToAgent(ctx, lead, agentID, models.SourceManual, models.ReasonManualClaim, false)
}

// Close marks a lead as reaching its terminal CRM state. The engine stops
// tracking it for load and SLA purposes; the audit trail persists.
func (r *Router) Close(ctx context.Context, leadID int) (*models.AssignmentResult, error) {
	lead, err := r.store.GetLead(ctx, leadID)
	if err != nil {
		return nil, err
	}

	unlock := r.lockTenant(lead.TenantID)
	defer unlock()

	lead, err = r.store.GetLead(ctx, leadID)
	if err != nil {
		return nil, err
	}
	if lead.State.Terminal() {
		return nil, domain.NewConflictError(fmt.Sprintf("lead %d is already closed", leadID))
	}

	prevKind, prevID := ownerOf(lead)
	prevAgent := lead.AssignedAgentID

	err = r.withCASRetry(ctx, lead, func(l *models.Lead) error {
		l.State = models.StateClosed
		l.PoolID = nil
		l.AssignedAgentID = nil
		l.AssignedAt = nil
		return r.store.UpdateLeadOwnership(ctx, l)
	})
	if err != nil {
		return nil, err
	}

	if err := r.pools.Release(ctx, lead.ID); err != nil {
		return nil, err
	}
	if prevAgent != nil {
		r.tracker.Decrement(*prevAgent)
	}

	if err := r.record(ctx, lead, prevKind, prevID, models.OwnerNone, 0,
		models.SourceManual, models.ReasonLeadClosed); err != nil {
		return nil, err
	}

	return &models.AssignmentResult{
		LeadID:    lead.ID,
		OwnerKind: models.OwnerNone,
		Source:    models.SourceManual,
		Reason:    models.ReasonLeadClosed,
	}, nil
}

// ReassignStale handles one watchdog candidate: either re-routes it excluding
// the current agent, or escalates it once automatic reassignments are
// exhausted. Callers hold no locks; the tenant lock is taken here.
func (r *Router) ReassignStale(ctx context.Context, leadID int) (*models.AssignmentResult, error) {
	lead, err := r.store.GetLead(ctx, leadID)
	if err != nil {
		return nil, err
	}

	unlock := r.lockTenant(lead.TenantID)
	defer unlock()

	lead, err = r.store.GetLead(ctx, leadID)
	if err != nil {
		return nil, err
	}
	if lead.State != models.StateAssigned {
		// A concurrent manual action already moved the lead.
		return nil, domain.NewConflictError(fmt.Sprintf("lead %d is no longer assigned", leadID))
	}

	cfg, err := r.configs.Get(ctx, lead.TenantID)
	if err != nil {
		return nil, err
	}

	if lead.ReassignmentCount >= cfg.MaxAutoReassignments {
		return r.escalate(ctx, lead, cfg)
	}

	exclude := map[int]bool{}
	if lead.AssignedAgentID != nil {
		exclude[*lead.AssignedAgentID] = true
	}
	lead.ReassignmentCount++

	res, err := r.route(ctx, lead, decision{
		source:  models.SourceWatchdog,
		reason:  models.ReasonSLABreach,
		exclude: exclude,
	})
	if err != nil {
		return nil, err
	}
	r.metrics.RecordReassignment(models.ReasonSLABreach)
	return res, nil
}

// escalate parks an over-reassigned lead in the escalation pool and notifies
// the manager channel. Terminal for automatic handling.
func (r *Router) escalate(ctx context.Context, lead *models.Lead, cfg *models.AssignmentConfig) (*models.AssignmentResult, error) {
	poolID := cfg.EscalationPoolID
	if poolID == 0 {
		_, escalationID, err := r.pools.EnsureTenantPools(ctx, lead.TenantID)
		if err != nil {
			return nil, err
		}
		poolID = escalationID
	}

	lead.State = models.StateEscalated
	res, err := r.placeInPool(ctx, lead, poolID, models.SourceWatchdog, models.ReasonReassignmentCap, true)
	if err != nil {
		return nil, err
	}
	r.metrics.RecordEscalation()
	r.logger.Warn("lead escalated after exhausting automatic reassignments",
		"tenant_id", lead.TenantID,
		"lead_id", lead.ID,
		"reassignments", lead.ReassignmentCount)
	return res, nil
}

// route dispatches one lead through the tenant's configured policy. The
// tenant lock is held by the caller.
func (r *Router) route(ctx context.Context, lead *models.Lead, d decision) (*models.AssignmentResult, error) {
	cfg, err := r.configs.Get(ctx, lead.TenantID)
	if domain.IsConfigNotFound(err) {
		// A tenant without a config still gets its leads parked somewhere.
		defaultID, _, perr := r.pools.EnsureTenantPools(ctx, lead.TenantID)
		if perr != nil {
			return nil, perr
		}
		return r.placeInPool(ctx, lead, defaultID, models.SourceManual, models.ReasonConfigMissing, false)
	}
	if err != nil {
		return nil, err
	}

	switch cfg.Method {
	case models.MethodRoundRobin:
		return r.routeRoundRobin(ctx, lead, cfg, d)
	case models.MethodRules:
		return r.routeRules(ctx, lead, cfg, d)
	default:
		source := d.source
		if source == "" {
			source = models.SourceManual
		}
		reason := d.reason
		if reason == "" {
			reason = models.ReasonManualPool
		}
		poolID, err := r.defaultPool(ctx, cfg, lead.TenantID)
		if err != nil {
			return nil, err
		}
		return r.placeInPool(ctx, lead, poolID, source, reason, false)
	}
}

// routeRoundRobin advances the tenant's rotation and assigns the pick. The
// rotation state is persisted only after the lead write succeeds, so a lost
// CAS race never burns a credit.
func (r *Router) routeRoundRobin(ctx context.Context, lead *models.Lead, cfg *models.AssignmentConfig, d decision) (*models.AssignmentResult, error) {
	source := d.source
	if source == "" {
		source = models.SourceRoundRobin
	}
	reason := d.reason
	if reason == "" {
		reason = models.ReasonRoundRobin
	}

	state, err := r.store.GetRoundRobinState(ctx, lead.TenantID)
	if err != nil {
		return nil, err
	}

	capacity, err := r.capacityFunc(ctx, lead.TenantID)
	if err != nil {
		return nil, err
	}

	pick, err := scheduler.Next(state, cfg.Agents, capacity, d.exclude)
	if domain.IsNoEligibleAgent(err) {
		return r.routeToFallbackPool(ctx, lead, cfg, source)
	}
	if err != nil {
		return nil, err
	}

	res, err := r.assignToAgent(ctx, lead, pick.AgentID, source, reason, false)
	if err != nil {
		return nil, err
	}

	if err := r.store.SaveRoundRobinState(ctx, state); err != nil {
		return nil, fmt.Errorf("failed to persist rotation state: %w", err)
	}
	return res, nil
}

// routeRules evaluates the tenant's ordered rules and applies the first
// matching action; with no match the configured fallback policy applies.
func (r *Router) routeRules(ctx context.Context, lead *models.Lead, cfg *models.AssignmentConfig, d decision) (*models.AssignmentResult, error) {
	source := d.source
	if source == "" {
		source = models.SourceRules
	}

	ruleSet, err := r.store.ListRules(ctx, lead.TenantID)
	if err != nil {
		return nil, err
	}

	action := r.matcher.Match(lead, ruleSet)
	if action == nil {
		return r.ruleFallback(ctx, lead, cfg, d, source)
	}

	reason := d.reason
	if reason == "" {
		reason = models.ReasonRuleMatch
	}

	switch action.Kind {
	case models.ActionAssignAgent:
		agent, err := r.store.GetAgent(ctx, action.TargetID)
		if err != nil || !agent.Enabled || d.exclude[agent.ID] ||
			!r.tracker.HasCapacity(agent.ID, agent.Capacity) {
			return r.routeToFallbackPool(ctx, lead, cfg, source)
		}
		return r.assignToAgent(ctx, lead, agent.ID, source, reason, false)

	case models.ActionAssignTeam:
		agentID, ok, err := r.pickTeamAgent(ctx, lead.TenantID, action.TargetID, d.exclude)
		if err != nil {
			return nil, err
		}
		if !ok {
			return r.routeToFallbackPool(ctx, lead, cfg, source)
		}
		return r.assignToAgent(ctx, lead, agentID, source, reason, false)

	case models.ActionAssignPool:
		if _, err := r.store.GetPool(ctx, action.TargetID); err != nil {
			r.logger.Warn("rule targets a missing pool, using default pool",
				"tenant_id", lead.TenantID,
				"pool_id", action.TargetID)
			return r.ruleFallback(ctx, lead, cfg, d, source)
		}
		return r.placeInPool(ctx, lead, action.TargetID, source, reason, false)

	default:
		return nil, domain.NewRuleEvaluationError(0, fmt.Errorf("unknown action kind %q", action.Kind))
	}
}

// ruleFallback applies the tenant's no-match policy: either join the rotation
// or park in the default pool.
func (r *Router) ruleFallback(ctx context.Context, lead *models.Lead, cfg *models.AssignmentConfig, d decision, source models.DecisionSource) (*models.AssignmentResult, error) {
	if cfg.RuleFallback == models.FallbackRoundRobin {
		fd := d
		fd.source = source
		if fd.reason == "" {
			fd.reason = models.ReasonRulesFallback
		}
		return r.routeRoundRobin(ctx, lead, cfg, fd)
	}

	poolID, err := r.defaultPool(ctx, cfg, lead.TenantID)
	if err != nil {
		return nil, err
	}
	return r.placeInPool(ctx, lead, poolID, source, models.ReasonRulesFallback, false)
}

// routeToFallbackPool parks a lead when no enabled, capacity-available agent
// exists. Nothing is ever left in limbo.
func (r *Router) routeToFallbackPool(ctx context.Context, lead *models.Lead, cfg *models.AssignmentConfig, source models.DecisionSource) (*models.AssignmentResult, error) {
	poolID, err := r.defaultPool(ctx, cfg, lead.TenantID)
	if err != nil {
		return nil, err
	}
	return r.placeInPool(ctx, lead, poolID, source, models.ReasonNoAgentsAvailable, false)
}

func (r *Router) defaultPool(ctx context.Context, cfg *models.AssignmentConfig, tenantID int) (int, error) {
	if cfg != nil && cfg.DefaultPoolID != 0 {
		return cfg.DefaultPoolID, nil
	}
	defaultID, _, err := r.pools.EnsureTenantPools(ctx, tenantID)
	return defaultID, err
}

// capacityFunc builds the scheduler's capacity check from the agent directory
// and the load tracker. An agent with no enabled directory record is never
// picked, regardless of the tenant's rotation entries.
func (r *Router) capacityFunc(ctx context.Context, tenantID int) (scheduler.CapacityFunc, error) {
	agents, err := r.store.ListEnabledAgents(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	byID := make(map[int]*models.Agent, len(agents))
	for _, a := range agents {
		byID[a.ID] = a
	}
	return func(agentID int) bool {
		a, ok := byID[agentID]
		if !ok {
			return false
		}
		return r.tracker.HasCapacity(agentID, a.Capacity)
	}, nil
}

// pickTeamAgent selects the least-loaded enabled member of a team with free
// capacity.
func (r *Router) pickTeamAgent(ctx context.Context, tenantID, teamID int, exclude map[int]bool) (int, bool, error) {
	members, err := r.store.ListTeamAgents(ctx, tenantID, teamID)
	if err != nil {
		return 0, false, err
	}

	best := 0
	bestLoad := 0
	for _, a := range members {
		if !a.Enabled || exclude[a.ID] || !r.tracker.HasCapacity(a.ID, a.Capacity) {
			continue
		}
		load := r.tracker.ActiveCount(a.ID)
		if best == 0 || load < bestLoad {
			best = a.ID
			bestLoad = load
		}
	}
	if best == 0 {
		return 0, false, nil
	}
	return best, true, nil
}

// assignToAgent writes agent ownership onto the lead, updates load counters,
// records the audit entry and fans out the notification.
func (r *Router) assignToAgent(ctx context.Context, lead *models.Lead, agentID int, source models.DecisionSource, reason string, escalated bool) (*models.AssignmentResult, error) {
	prevKind, prevID := ownerOf(lead)
	prevAgent := lead.AssignedAgentID

	err := r.withCASRetry(ctx, lead, func(l *models.Lead) error {
		now := time.Now().UTC()
		l.AssignedAgentID = &agentID
		l.PoolID = nil
		l.State = models.StateAssigned
		l.AssignedAt = &now
		return r.store.UpdateLeadOwnership(ctx, l)
	})
	if err != nil {
		return nil, err
	}

	if err := r.pools.Release(ctx, lead.ID); err != nil {
		return nil, err
	}

	r.tracker.Increment(agentID)
	if prevAgent != nil && *prevAgent != agentID {
		r.tracker.Decrement(*prevAgent)
	}

	if err := r.record(ctx, lead, prevKind, prevID, models.OwnerAgent, agentID, source, reason); err != nil {
		return nil, err
	}
	r.metrics.RecordAssignment(string(source), reason)

	r.notifier.Dispatch(domain.OwnerChangedEvent{
		TenantID:  lead.TenantID,
		LeadID:    lead.ID,
		OwnerKind: models.OwnerAgent,
		OwnerID:   agentID,
		Source:    source,
		Reason:    reason,
		Escalated: escalated,
	})

	return &models.AssignmentResult{
		LeadID:    lead.ID,
		OwnerKind: models.OwnerAgent,
		OwnerID:   agentID,
		Source:    source,
		Reason:    reason,
	}, nil
}

// placeInPool writes pool ownership onto the lead, updates counters, records
// the audit entry and fans out the notification.
func (r *Router) placeInPool(ctx context.Context, lead *models.Lead, poolID int, source models.DecisionSource, reason string, escalated bool) (*models.AssignmentResult, error) {
	prevKind, prevID := ownerOf(lead)
	prevAgent := lead.AssignedAgentID

	err := r.withCASRetry(ctx, lead, func(l *models.Lead) error {
		return r.pools.Enqueue(ctx, l, poolID)
	})
	if err != nil {
		return nil, err
	}

	if prevAgent != nil {
		r.tracker.Decrement(*prevAgent)
	}

	if err := r.record(ctx, lead, prevKind, prevID, models.OwnerPool, poolID, source, reason); err != nil {
		return nil, err
	}
	r.metrics.RecordAssignment(string(source), reason)
	r.metrics.RecordPooledLead(reason)

	r.notifier.Dispatch(domain.OwnerChangedEvent{
		TenantID:  lead.TenantID,
		LeadID:    lead.ID,
		OwnerKind: models.OwnerPool,
		OwnerID:   poolID,
		Source:    source,
		Reason:    reason,
		Escalated: escalated,
	})

	return &models.AssignmentResult{
		LeadID:    lead.ID,
		OwnerKind: models.OwnerPool,
		OwnerID:   poolID,
		Source:    source,
		Reason:    reason,
	}, nil
}

// withCASRetry applies a version-guarded write, reloading and reapplying on a
// lost race. A lead deleted mid-flight surfaces as NotFound and aborts the
// decision before any audit entry is written.
func (r *Router) withCASRetry(ctx context.Context, lead *models.Lead, apply func(l *models.Lead) error) error {
	for attempt := 0; ; attempt++ {
		err := apply(lead)
		if err == nil {
			return nil
		}
		if !domain.IsConcurrentModification(err) || attempt >= maxCASRetries {
			return err
		}

		r.metrics.RecordConflict()
		fresh, gerr := r.store.GetLead(ctx, lead.ID)
		if gerr != nil {
			return gerr
		}
		if fresh.State.Terminal() {
			return domain.NewConflictError(fmt.Sprintf("lead %d is closed", lead.ID))
		}
		count := lead.ReassignmentCount
		*lead = *fresh
		if count > fresh.ReassignmentCount {
			lead.ReassignmentCount = count
		}
	}
}

// record writes the single audit entry of a decision.
func (r *Router) record(ctx context.Context, lead *models.Lead, prevKind models.OwnerKind, prevID int,
	newKind models.OwnerKind, newID int, source models.DecisionSource, reason string) error {
	entry := &models.AssignmentLogEntry{
		TenantID:      lead.TenantID,
		LeadID:        lead.ID,
		PrevOwnerKind: prevKind,
		PrevOwnerID:   prevID,
		NewOwnerKind:  newKind,
		NewOwnerID:    newID,
		Source:        source,
		Reason:        reason,
	}
	if err := r.audit.Record(ctx, entry); err != nil {
		return fmt.Errorf("failed to record assignment decision: %w", err)
	}
	return nil
}

func ownerOf(lead *models.Lead) (models.OwnerKind, int) {
	if lead.AssignedAgentID != nil {
		return models.OwnerAgent, *lead.AssignedAgentID
	}
	if lead.PoolID != nil {
		return models.OwnerPool, *lead.PoolID
	}
	return models.OwnerNone, 0
}
