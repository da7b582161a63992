package scheduler

import (
	"sort"
	"time"

	"github.com/jordanlanch/leadrouter/pkg/domain"
	"github.com/jordanlanch/leadrouter/pkg/models"
)

// CapacityFunc reports whether an agent can take another lead right now.
type CapacityFunc func(agentID int) bool

// Pick is the outcome of one rotation step.
type Pick struct {
	AgentID int
	// Refilled is true when this step exhausted-and-refilled the credit pool.
	Refilled bool
}

// Next advances a tenant's weighted rotation by one assignment and mutates
// state in place. The caller persists the state; all calls for one tenant are
// serialized under the tenant lock.
//
// Credit scheme: every enabled agent holds a credit counter. The agent with
// the highest remaining credit wins, ties broken by ascending agent id. When
// every enabled agent's credit is zero the pool refills to the configured
// leads-per-round weights. Over any window of sum(leadsPerRound) assignments
// each agent therefore receives exactly its configured share.
//
// An agent skipped for capacity keeps its credit, so it is not starved once
// capacity frees up. Adding or removing an agent mid-rotation only affects
// future refills: remaining credits of the other agents are untouched.
func Next(state *models.RoundRobinState, agents []models.AgentConfig, hasCapacity CapacityFunc, exclude map[int]bool) (Pick, error) {
	if state.Credits == nil {
		state.Credits = map[int]int{}
	}

	eligible := make([]models.AgentConfig, 0, len(agents))
	for _, a := range agents {
		if a.Enabled && !exclude[a.AgentID] {
			eligible = append(eligible, a)
		}
	}
	if len(eligible) == 0 {
		return Pick{}, domain.NewNoEligibleAgentError(state.TenantID)
	}
	sort.Slice(eligible, func(i, j int) bool { return eligible[i].AgentID < eligible[j].AgentID })

	// Drop credits of agents no longer in the rotation so the cursor and the
	// credit pool never reference a removed agent.
	inRotation := make(map[int]bool, len(eligible))
	for _, a := range eligible {
		inRotation[a.AgentID] = true
	}
	for id := range state.Credits {
		if !inRotation[id] {
			delete(state.Credits, id)
		}
	}
	if !inRotation[state.Cursor] {
		state.Cursor = 0
	}

	refilled := false
	if exhausted(state, eligible) {
		refill(state, eligible)
		refilled = true
	}

	best := 0
	bestCredit := 0
	for _, a := range eligible {
		c := state.Credits[a.AgentID]
		if c <= 0 || !hasCapacity(a.AgentID) {
			continue
		}
		if best == 0 || c > bestCredit {
			best = a.AgentID
			bestCredit = c
		}
	}

	if best == 0 {
		// Credits remain but every credited agent is at capacity. Nothing is
		// consumed; the lead goes to the pool instead.
		return Pick{}, domain.NewNoEligibleAgentError(state.TenantID)
	}

	state.Credits[best]--
	state.Cursor = best
	return Pick{AgentID: best, Refilled: refilled}, nil
}

func exhausted(state *models.RoundRobinState, eligible []models.AgentConfig) bool {
	for _, a := range eligible {
		if state.Credits[a.AgentID] > 0 {
			return false
		}
	}
	return true
}

func refill(state *models.RoundRobinState, eligible []models.AgentConfig) {
	for _, a := range eligible {
		weight := a.LeadsPerRound
		if weight < 1 {
			weight = 1
		}
		state.Credits[a.AgentID] = weight
	}
	state.LastResetAt = time.Now().UTC()
}
