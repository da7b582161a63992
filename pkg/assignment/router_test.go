package assignment

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jordanlanch/leadrouter/pkg/audit"
	"github.com/jordanlanch/leadrouter/pkg/configstore"
	"github.com/jordanlanch/leadrouter/pkg/domain"
	"github.com/jordanlanch/leadrouter/pkg/loadtracker"
	"github.com/jordanlanch/leadrouter/pkg/logger"
	"github.com/jordanlanch/leadrouter/pkg/models"
	"github.com/jordanlanch/leadrouter/pkg/pools"
	"github.com/jordanlanch/leadrouter/pkg/rules"
	"github.com/jordanlanch/leadrouter/pkg/store"
)

// fakeNotifier captures dispatched events synchronously.
type fakeNotifier struct {
	mu     sync.Mutex
	events []domain.OwnerChangedEvent
}

func (f *fakeNotifier) Dispatch(e domain.OwnerChangedEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
}

func (f *fakeNotifier) Events() []domain.OwnerChangedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.OwnerChangedEvent, len(f.events))
	copy(out, f.events)
	return out
}

type testEnv struct {
	store    *store.Store
	tracker  *loadtracker.Tracker
	pools    *pools.Service
	audit    *audit.Service
	notifier *fakeNotifier
	router   *Router
}

func setupTestRouter(t *testing.T) *testEnv {
	t.Helper()
	st, err := store.Open(store.DialectSQLite, "file:"+t.Name()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	log := logger.New("error")
	env := &testEnv{
		store:    st,
		tracker:  loadtracker.New(),
		pools:    pools.NewService(st),
		audit:    audit.NewService(st),
		notifier: &fakeNotifier{},
	}
	env.router = NewRouter(st, configstore.NewService(st, nil, log), env.tracker,
		rules.NewMatcher(log), env.pools, env.audit, env.notifier, nil, log)
	return env
}

func (e *testEnv) createAgent(t *testing.T, tenantID int, capacity *int) int {
	t.Helper()
	id, err := e.store.CreateAgent(context.Background(), &models.Agent{
		TenantID: tenantID,
		Name:     "Agent",
		Email:    "agent@example.com",
		Enabled:  true,
		Capacity: capacity,
	})
	require.NoError(t, err)
	return id
}

func (e *testEnv) createLead(t *testing.T, tenantID int) *models.Lead {
	t.Helper()
	lead := &models.Lead{
		TenantID:     tenantID,
		Campaign:     "luxury-waterfront",
		Budget:       500_000,
		Location:     "Miami",
		PropertyType: "condo",
	}
	_, err := e.store.CreateLead(context.Background(), lead)
	require.NoError(t, err)
	return lead
}

func (e *testEnv) saveRoundRobinConfig(t *testing.T, tenantID int, agentIDs []int, weights map[int]int) *models.AssignmentConfig {
	t.Helper()
	defaultPool, escalationPool, err := e.pools.EnsureTenantPools(context.Background(), tenantID)
	require.NoError(t, err)

	rotation := make([]models.AgentConfig, 0, len(agentIDs))
	for _, id := range agentIDs {
		w := weights[id]
		if w == 0 {
			w = 1
		}
		rotation = append(rotation, models.AgentConfig{AgentID: id, Enabled: true, LeadsPerRound: w})
	}
	cfg := &models.AssignmentConfig{
		TenantID:             tenantID,
		Method:               models.MethodRoundRobin,
		Agents:               rotation,
		SLAMinutes:           30,
		MaxAutoReassignments: 2,
		RuleFallback:         models.FallbackRoundRobin,
		DefaultPoolID:        defaultPool,
		EscalationPoolID:     escalationPool,
	}
	require.NoError(t, e.store.SaveConfig(context.Background(), cfg))
	return cfg
}

func (e *testEnv) auditEntries(t *testing.T, tenantID int) []models.AssignmentLogEntry {
	t.Helper()
	page, err := e.audit.Query(context.Background(), tenantID, models.AssignmentLogFilter{Limit: 100})
	require.NoError(t, err)
	return page.Data
}

func TestAssign(t *testing.T) {
	ctx := context.Background()

	t.Run("Success - Missing config parks lead in default pool", func(t *testing.T) {
		env := setupTestRouter(t)
		lead := env.createLead(t, 1)

		res, err := env.router.Assign(ctx, lead)
		require.NoError(t, err)
		assert.Equal(t, models.OwnerPool, res.OwnerKind)
		assert.Equal(t, models.SourceManual, res.Source)
		assert.Equal(t, models.ReasonConfigMissing, res.Reason)

		got, err := env.store.GetLead(ctx, lead.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatePooled, got.State)
		require.NotNil(t, got.PoolID)

		entries := env.auditEntries(t, 1)
		require.Len(t, entries, 1)
		assert.Equal(t, models.ReasonConfigMissing, entries[0].Reason)
	})

	t.Run("Success - Round robin alternates agents", func(t *testing.T) {
		env := setupTestRouter(t)
		a := env.createAgent(t, 1, nil)
		b := env.createAgent(t, 1, nil)
		env.saveRoundRobinConfig(t, 1, []int{a, b}, nil)

		var picks []int
		for i := 0; i < 4; i++ {
			res, err := env.router.Assign(ctx, env.createLead(t, 1))
			require.NoError(t, err)
			assert.Equal(t, models.OwnerAgent, res.OwnerKind)
			assert.Equal(t, models.SourceRoundRobin, res.Source)
			picks = append(picks, res.OwnerID)
		}
		assert.Equal(t, []int{a, b, a, b}, picks)
		assert.Equal(t, 2, env.tracker.ActiveCount(a))
		assert.Equal(t, 2, env.tracker.ActiveCount(b))

		// Rotation position survives a restart: state is persisted per draw.
		state, err := env.store.GetRoundRobinState(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, b, state.Cursor)

		assert.Len(t, env.auditEntries(t, 1), 4)
		assert.Len(t, env.notifier.Events(), 4)
	})

	t.Run("Success - Weighted rotation honors leads per round", func(t *testing.T) {
		env := setupTestRouter(t)
		a := env.createAgent(t, 1, nil)
		b := env.createAgent(t, 1, nil)
		env.saveRoundRobinConfig(t, 1, []int{a, b}, map[int]int{b: 2})

		counts := map[int]int{}
		for i := 0; i < 6; i++ {
			res, err := env.router.Assign(ctx, env.createLead(t, 1))
			require.NoError(t, err)
			counts[res.OwnerID]++
		}
		assert.Equal(t, 2, counts[a])
		assert.Equal(t, 4, counts[b])
	})

	t.Run("Success - Full rotation overflows to pool", func(t *testing.T) {
		env := setupTestRouter(t)
		one := 1
		a := env.createAgent(t, 1, &one)
		cfg := env.saveRoundRobinConfig(t, 1, []int{a}, nil)

		res, err := env.router.Assign(ctx, env.createLead(t, 1))
		require.NoError(t, err)
		assert.Equal(t, models.OwnerAgent, res.OwnerKind)

		res, err = env.router.Assign(ctx, env.createLead(t, 1))
		require.NoError(t, err)
		assert.Equal(t, models.OwnerPool, res.OwnerKind)
		assert.Equal(t, cfg.DefaultPoolID, res.OwnerID)
		assert.Equal(t, models.SourceRoundRobin, res.Source)
		assert.Equal(t, models.ReasonNoAgentsAvailable, res.Reason)
	})

	t.Run("Success - Manual method pools every lead", func(t *testing.T) {
		env := setupTestRouter(t)
		defaultPool, _, err := env.pools.EnsureTenantPools(ctx, 1)
		require.NoError(t, err)
		require.NoError(t, env.store.SaveConfig(ctx, &models.AssignmentConfig{
			TenantID:      1,
			Method:        models.MethodManual,
			DefaultPoolID: defaultPool,
		}))

		res, err := env.router.Assign(ctx, env.createLead(t, 1))
		require.NoError(t, err)
		assert.Equal(t, models.OwnerPool, res.OwnerKind)
		assert.Equal(t, defaultPool, res.OwnerID)
		assert.Equal(t, models.ReasonManualPool, res.Reason)
	})
}

func TestAssignWithRules(t *testing.T) {
	ctx := context.Background()

	saveRulesConfig := func(t *testing.T, env *testEnv, fallback models.FallbackPolicy, ruleSet []models.AssignmentRule, rotation []int) *models.AssignmentConfig {
		t.Helper()
		defaultPool, escalationPool, err := env.pools.EnsureTenantPools(ctx, 1)
		require.NoError(t, err)

		agents := make([]models.AgentConfig, 0, len(rotation))
		for _, id := range rotation {
			agents = append(agents, models.AgentConfig{AgentID: id, Enabled: true, LeadsPerRound: 1})
		}
		cfg := &models.AssignmentConfig{
			TenantID:         1,
			Method:           models.MethodRules,
			Agents:           agents,
			RuleFallback:     fallback,
			DefaultPoolID:    defaultPool,
			EscalationPoolID: escalationPool,
		}
		require.NoError(t, env.store.SaveConfig(ctx, cfg))
		require.NoError(t, env.store.ReplaceRules(ctx, 1, ruleSet))
		return cfg
	}

	t.Run("Success - Matching rule assigns target agent", func(t *testing.T) {
		env := setupTestRouter(t)
		a := env.createAgent(t, 1, nil)
		saveRulesConfig(t, env, models.FallbackPool, []models.AssignmentRule{
			{
				TenantID: 1, Priority: 10,
				Conditions: []models.RuleCondition{
					{Field: models.FieldBudget, Op: models.OpGte, Value: "400000"},
				},
				Action: models.RuleAction{Kind: models.ActionAssignAgent, TargetID: a},
			},
		}, nil)

		res, err := env.router.Assign(ctx, env.createLead(t, 1))
		require.NoError(t, err)
		assert.Equal(t, models.OwnerAgent, res.OwnerKind)
		assert.Equal(t, a, res.OwnerID)
		assert.Equal(t, models.SourceRules, res.Source)
		assert.Equal(t, models.ReasonRuleMatch, res.Reason)
	})

	t.Run("Success - Matching rule targets a pool", func(t *testing.T) {
		env := setupTestRouter(t)
		vip, err := env.store.EnsurePool(ctx, 1, "vip")
		require.NoError(t, err)
		saveRulesConfig(t, env, models.FallbackPool, []models.AssignmentRule{
			{
				TenantID: 1, Priority: 10,
				Conditions: []models.RuleCondition{
					{Field: models.FieldPropertyType, Op: models.OpEq, Value: "condo"},
				},
				Action: models.RuleAction{Kind: models.ActionAssignPool, TargetID: vip},
			},
		}, nil)

		res, err := env.router.Assign(ctx, env.createLead(t, 1))
		require.NoError(t, err)
		assert.Equal(t, models.OwnerPool, res.OwnerKind)
		assert.Equal(t, vip, res.OwnerID)
	})

	t.Run("Success - No match falls back to rotation", func(t *testing.T) {
		env := setupTestRouter(t)
		a := env.createAgent(t, 1, nil)
		saveRulesConfig(t, env, models.FallbackRoundRobin, []models.AssignmentRule{
			{
				TenantID: 1, Priority: 10,
				Conditions: []models.RuleCondition{
					{Field: models.FieldBudget, Op: models.OpGt, Value: "9000000"},
				},
				Action: models.RuleAction{Kind: models.ActionAssignAgent, TargetID: 999},
			},
		}, []int{a})

		res, err := env.router.Assign(ctx, env.createLead(t, 1))
		require.NoError(t, err)
		assert.Equal(t, models.OwnerAgent, res.OwnerKind)
		assert.Equal(t, a, res.OwnerID)
		assert.Equal(t, models.SourceRules, res.Source)
		assert.Equal(t, models.ReasonRulesFallback, res.Reason)
	})

	t.Run("Success - No match falls back to pool", func(t *testing.T) {
		env := setupTestRouter(t)
		cfg := saveRulesConfig(t, env, models.FallbackPool, nil, nil)

		res, err := env.router.Assign(ctx, env.createLead(t, 1))
		require.NoError(t, err)
		assert.Equal(t, models.OwnerPool, res.OwnerKind)
		assert.Equal(t, cfg.DefaultPoolID, res.OwnerID)
		assert.Equal(t, models.ReasonRulesFallback, res.Reason)
	})

	t.Run("Success - Target agent at capacity overflows to pool", func(t *testing.T) {
		env := setupTestRouter(t)
		one := 1
		a := env.createAgent(t, 1, &one)
		cfg := saveRulesConfig(t, env, models.FallbackPool, []models.AssignmentRule{
			{
				TenantID: 1, Priority: 10,
				Conditions: []models.RuleCondition{
					{Field: models.FieldPropertyType, Op: models.OpEq, Value: "condo"},
				},
				Action: models.RuleAction{Kind: models.ActionAssignAgent, TargetID: a},
			},
		}, nil)

		_, err := env.router.Assign(ctx, env.createLead(t, 1))
		require.NoError(t, err)

		res, err := env.router.Assign(ctx, env.createLead(t, 1))
		require.NoError(t, err)
		assert.Equal(t, models.OwnerPool, res.OwnerKind)
		assert.Equal(t, cfg.DefaultPoolID, res.OwnerID)
		assert.Equal(t, models.ReasonNoAgentsAvailable, res.Reason)
	})
}

func TestClaim(t *testing.T) {
	ctx := context.Background()

	t.Run("Success - Claim pooled lead", func(t *testing.T) {
		env := setupTestRouter(t)
		a := env.createAgent(t, 1, nil)
		lead := env.createLead(t, 1)

		_, err := env.router.Assign(ctx, lead) // no config: lead lands in pool
		require.NoError(t, err)

		res, err := env.router.Claim(ctx, lead.ID, a)
		require.NoError(t, err)
		assert.Equal(t, models.OwnerAgent, res.OwnerKind)
		assert.Equal(t, a, res.OwnerID)
		assert.Equal(t, models.SourceManual, res.Source)
		assert.Equal(t, models.ReasonManualClaim, res.Reason)

		got, err := env.store.GetLead(ctx, lead.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StateAssigned, got.State)
		assert.Nil(t, got.PoolID)
		assert.Equal(t, 1, env.tracker.ActiveCount(a))
	})

	t.Run("Error - Lead not pooled", func(t *testing.T) {
		env := setupTestRouter(t)
		a := env.createAgent(t, 1, nil)
		lead := env.createLead(t, 1)

		_, err := env.router.Claim(ctx, lead.ID, a)
		require.Error(t, err)
		assert.True(t, domain.IsConflict(err))
	})

	t.Run("Error - Agent at capacity", func(t *testing.T) {
		env := setupTestRouter(t)
		zero := 0
		a := env.createAgent(t, 1, &zero)
		lead := env.createLead(t, 1)
		_, err := env.router.Assign(ctx, lead)
		require.NoError(t, err)

		_, err = env.router.Claim(ctx, lead.ID, a)
		require.Error(t, err)
		assert.True(t, domain.IsConflict(err))
	})

	t.Run("Error - Agent from another tenant", func(t *testing.T) {
		env := setupTestRouter(t)
		other := env.createAgent(t, 2, nil)
		lead := env.createLead(t, 1)
		_, err := env.router.Assign(ctx, lead)
		require.NoError(t, err)

		_, err = env.router.Claim(ctx, lead.ID, other)
		require.Error(t, err)
		assert.True(t, domain.IsValidation(err))
	})
}

func TestReassign(t *testing.T) {
	ctx := context.Background()

	t.Run("Success - Current agent excluded from re-route", func(t *testing.T) {
		env := setupTestRouter(t)
		a := env.createAgent(t, 1, nil)
		b := env.createAgent(t, 1, nil)
		env.saveRoundRobinConfig(t, 1, []int{a, b}, nil)

		lead := env.createLead(t, 1)
		res, err := env.router.Assign(ctx, lead)
		require.NoError(t, err)
		require.Equal(t, a, res.OwnerID)

		res, err = env.router.Reassign(ctx, lead.ID, "")
		require.NoError(t, err)
		assert.Equal(t, b, res.OwnerID)
		assert.Equal(t, models.SourceManual, res.Source)
		assert.Equal(t, models.ReasonManualReassign, res.Reason)

		assert.Equal(t, 0, env.tracker.ActiveCount(a))
		assert.Equal(t, 1, env.tracker.ActiveCount(b))
	})

	t.Run("Success - Single agent rotation parks the lead", func(t *testing.T) {
		env := setupTestRouter(t)
		a := env.createAgent(t, 1, nil)
		env.saveRoundRobinConfig(t, 1, []int{a}, nil)

		lead := env.createLead(t, 1)
		_, err := env.router.Assign(ctx, lead)
		require.NoError(t, err)

		res, err := env.router.Reassign(ctx, lead.ID, "")
		require.NoError(t, err)
		assert.Equal(t, models.OwnerPool, res.OwnerKind)
		assert.Equal(t, models.ReasonNoAgentsAvailable, res.Reason)
	})

	t.Run("Error - Closed lead", func(t *testing.T) {
		env := setupTestRouter(t)
		lead := env.createLead(t, 1)
		_, err := env.router.Assign(ctx, lead)
		require.NoError(t, err)
		_, err = env.router.Close(ctx, lead.ID)
		require.NoError(t, err)

		_, err = env.router.Reassign(ctx, lead.ID, "")
		require.Error(t, err)
		assert.True(t, domain.IsConflict(err))
	})

	t.Run("Error - Unknown lead", func(t *testing.T) {
		env := setupTestRouter(t)
		_, err := env.router.Reassign(ctx, 99999, "")
		require.Error(t, err)
		assert.True(t, domain.IsNotFound(err))
	})
}

func TestClose(t *testing.T) {
	ctx := context.Background()

	t.Run("Success - Close assigned lead releases load", func(t *testing.T) {
		env := setupTestRouter(t)
		a := env.createAgent(t, 1, nil)
		env.saveRoundRobinConfig(t, 1, []int{a}, nil)

		lead := env.createLead(t, 1)
		_, err := env.router.Assign(ctx, lead)
		require.NoError(t, err)
		require.Equal(t, 1, env.tracker.ActiveCount(a))

		res, err := env.router.Close(ctx, lead.ID)
		require.NoError(t, err)
		assert.Equal(t, models.OwnerNone, res.OwnerKind)
		assert.Equal(t, models.ReasonLeadClosed, res.Reason)
		assert.Equal(t, 0, env.tracker.ActiveCount(a))

		got, err := env.store.GetLead(ctx, lead.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StateClosed, got.State)
		assert.Nil(t, got.AssignedAgentID)
	})

	t.Run("Success - Close pooled lead removes pool entry", func(t *testing.T) {
		env := setupTestRouter(t)
		lead := env.createLead(t, 1)
		res, err := env.router.Assign(ctx, lead)
		require.NoError(t, err)
		poolID := res.OwnerID

		_, err = env.router.Close(ctx, lead.ID)
		require.NoError(t, err)

		depth, err := env.pools.Depth(ctx, poolID)
		require.NoError(t, err)
		assert.Zero(t, depth)
	})

	t.Run("Error - Already closed", func(t *testing.T) {
		env := setupTestRouter(t)
		lead := env.createLead(t, 1)
		_, err := env.router.Assign(ctx, lead)
		require.NoError(t, err)
		_, err = env.router.Close(ctx, lead.ID)
		require.NoError(t, err)

		_, err = env.router.Close(ctx, lead.ID)
		require.Error(t, err)
		assert.True(t, domain.IsConflict(err))
	})
}

func TestAuditTrail(t *testing.T) {
	ctx := context.Background()

	t.Run("Success - Exactly one entry per decision", func(t *testing.T) {
		env := setupTestRouter(t)
		a := env.createAgent(t, 1, nil)
		b := env.createAgent(t, 1, nil)
		env.saveRoundRobinConfig(t, 1, []int{a, b}, nil)

		lead := env.createLead(t, 1)
		_, err := env.router.Assign(ctx, lead)
		require.NoError(t, err)
		_, err = env.router.Reassign(ctx, lead.ID, "")
		require.NoError(t, err)
		_, err = env.router.Close(ctx, lead.ID)
		require.NoError(t, err)

		entries := env.auditEntries(t, 1)
		require.Len(t, entries, 3)

		// Newest first: closed, reassigned, assigned.
		assert.Equal(t, models.ReasonLeadClosed, entries[0].Reason)
		assert.Equal(t, models.OwnerNone, entries[0].NewOwnerKind)
		assert.Equal(t, models.ReasonManualReassign, entries[1].Reason)
		assert.Equal(t, models.OwnerAgent, entries[1].PrevOwnerKind)
		assert.Equal(t, a, entries[1].PrevOwnerID)
		assert.Equal(t, b, entries[1].NewOwnerID)
		assert.Equal(t, models.ReasonRoundRobin, entries[2].Reason)
		assert.Equal(t, models.OwnerNone, entries[2].PrevOwnerKind)
	})
}
