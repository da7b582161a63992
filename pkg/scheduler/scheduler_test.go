package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jordanlanch/leadrouter/pkg/domain"
	"github.com/jordanlanch/leadrouter/pkg/models"
)

func unlimited(int) bool { return false }

func allHaveCapacity(int) bool { return true }

func agents(weights map[int]int) []models.AgentConfig {
	out := make([]models.AgentConfig, 0, len(weights))
	for id, w := range weights {
		out = append(out, models.AgentConfig{AgentID: id, Enabled: true, LeadsPerRound: w})
	}
	return out
}

func drawSequence(t *testing.T, state *models.RoundRobinState, cfg []models.AgentConfig, n int) []int {
	t.Helper()
	seq := make([]int, 0, n)
	for i := 0; i < n; i++ {
		pick, err := Next(state, cfg, allHaveCapacity, nil)
		require.NoError(t, err)
		seq = append(seq, pick.AgentID)
	}
	return seq
}

func TestNext(t *testing.T) {
	t.Run("uniform weights rotate in ascending order", func(t *testing.T) {
		state := &models.RoundRobinState{TenantID: 1}
		cfg := agents(map[int]int{1: 1, 2: 1, 3: 1})

		seq := drawSequence(t, state, cfg, 6)
		assert.Equal(t, []int{1, 2, 3, 1, 2, 3}, seq)
	})

	t.Run("weighted agent receives its share per round", func(t *testing.T) {
		state := &models.RoundRobinState{TenantID: 1}
		cfg := agents(map[int]int{1: 1, 2: 2, 3: 1})

		seq := drawSequence(t, state, cfg, 8)
		// Agent 2 starts with 2 credits so it leads each round, then the
		// remaining single-credit agents follow in id order.
		assert.Equal(t, []int{2, 1, 2, 3, 2, 1, 2, 3}, seq)

		counts := map[int]int{}
		for _, id := range seq {
			counts[id]++
		}
		assert.Equal(t, 2, counts[1])
		assert.Equal(t, 4, counts[2])
		assert.Equal(t, 2, counts[3])
	})

	t.Run("agent at capacity is skipped without losing credit", func(t *testing.T) {
		state := &models.RoundRobinState{TenantID: 1}
		cfg := agents(map[int]int{1: 1, 2: 1})

		atCapacity := map[int]bool{1: true}
		hasCapacity := func(id int) bool { return !atCapacity[id] }

		pick, err := Next(state, cfg, hasCapacity, nil)
		require.NoError(t, err)
		assert.Equal(t, 2, pick.AgentID)
		assert.Equal(t, 1, state.Credits[1], "skipped agent keeps its credit")

		// Capacity frees up: agent 1 is served before any refill.
		atCapacity[1] = false
		pick, err = Next(state, cfg, hasCapacity, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, pick.AgentID)
	})

	t.Run("all credited agents at capacity yields no pick", func(t *testing.T) {
		state := &models.RoundRobinState{TenantID: 1}
		cfg := agents(map[int]int{1: 1, 2: 1})

		_, err := Next(state, cfg, unlimited, nil)
		require.Error(t, err)
		assert.True(t, domain.IsNoEligibleAgent(err))
	})

	t.Run("no enabled agents yields no pick", func(t *testing.T) {
		state := &models.RoundRobinState{TenantID: 1}
		cfg := []models.AgentConfig{{AgentID: 1, Enabled: false, LeadsPerRound: 1}}

		_, err := Next(state, cfg, allHaveCapacity, nil)
		require.Error(t, err)
		assert.True(t, domain.IsNoEligibleAgent(err))
	})

	t.Run("excluded agent is not picked", func(t *testing.T) {
		state := &models.RoundRobinState{TenantID: 1}
		cfg := agents(map[int]int{1: 1, 2: 1})

		pick, err := Next(state, cfg, allHaveCapacity, map[int]bool{1: true})
		require.NoError(t, err)
		assert.Equal(t, 2, pick.AgentID)
	})

	t.Run("removed agent credits are pruned and rotation continues", func(t *testing.T) {
		state := &models.RoundRobinState{TenantID: 1}
		cfg := agents(map[int]int{1: 1, 2: 1, 3: 1})

		seq := drawSequence(t, state, cfg, 2)
		assert.Equal(t, []int{1, 2}, seq)

		// Agent 3 drops out of the rotation mid-round.
		smaller := agents(map[int]int{1: 1, 2: 1})
		pick, err := Next(state, smaller, allHaveCapacity, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, pick.AgentID, "refill happens once remaining credits belong to removed agents only")
		assert.NotContains(t, state.Credits, 3)

		pick, err = Next(state, smaller, allHaveCapacity, nil)
		require.NoError(t, err)
		assert.Equal(t, 2, pick.AgentID)
	})

	t.Run("zero weight is treated as one", func(t *testing.T) {
		state := &models.RoundRobinState{TenantID: 1}
		cfg := []models.AgentConfig{
			{AgentID: 1, Enabled: true, LeadsPerRound: 0},
			{AgentID: 2, Enabled: true, LeadsPerRound: 1},
		}

		seq := drawSequence(t, state, cfg, 4)
		assert.Equal(t, []int{1, 2, 1, 2}, seq)
	})

	t.Run("refill is reported and timestamped", func(t *testing.T) {
		state := &models.RoundRobinState{TenantID: 1}
		cfg := agents(map[int]int{1: 1})

		pick, err := Next(state, cfg, allHaveCapacity, nil)
		require.NoError(t, err)
		assert.True(t, pick.Refilled)
		assert.False(t, state.LastResetAt.IsZero())

		// Second draw exhausts and refills again.
		pick, err = Next(state, cfg, allHaveCapacity, nil)
		require.NoError(t, err)
		assert.True(t, pick.Refilled)
	})
}
