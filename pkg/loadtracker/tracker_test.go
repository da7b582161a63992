package loadtracker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jordanlanch/leadrouter/pkg/models"
	"github.com/jordanlanch/leadrouter/pkg/store"
)

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(store.DialectSQLite, "file:"+t.Name()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestTracker(t *testing.T) {
	t.Run("Success - Increment and decrement", func(t *testing.T) {
		tr := New()

		tr.Increment(1)
		tr.Increment(1)
		tr.Increment(2)
		assert.Equal(t, 2, tr.ActiveCount(1))
		assert.Equal(t, 1, tr.ActiveCount(2))

		tr.Decrement(1)
		assert.Equal(t, 1, tr.ActiveCount(1))
	})

	t.Run("Success - Decrement never goes negative", func(t *testing.T) {
		tr := New()

		tr.Decrement(1)
		tr.Decrement(1)
		assert.Equal(t, 0, tr.ActiveCount(1))
	})

	t.Run("Success - Nil capacity means unlimited", func(t *testing.T) {
		tr := New()

		for i := 0; i < 1000; i++ {
			tr.Increment(1)
		}
		assert.True(t, tr.HasCapacity(1, nil))

		two := 2
		assert.False(t, tr.HasCapacity(1, &two))
	})

	t.Run("Success - Capacity boundary", func(t *testing.T) {
		tr := New()
		two := 2

		assert.True(t, tr.HasCapacity(1, &two))
		tr.Increment(1)
		assert.True(t, tr.HasCapacity(1, &two))
		tr.Increment(1)
		assert.False(t, tr.HasCapacity(1, &two))
		tr.Decrement(1)
		assert.True(t, tr.HasCapacity(1, &two))
	})
}

func TestRebuild(t *testing.T) {
	t.Run("Success - Counters rebuilt from assigned leads", func(t *testing.T) {
		st := setupTestStore(t)
		ctx := context.Background()

		agentA, err := st.CreateAgent(ctx, &models.Agent{TenantID: 1, Name: "Ana", Email: "ana@example.com", Enabled: true})
		require.NoError(t, err)
		agentB, err := st.CreateAgent(ctx, &models.Agent{TenantID: 1, Name: "Bruno", Email: "bruno@example.com", Enabled: true})
		require.NoError(t, err)

		now := time.Now().UTC()
		for i := 0; i < 3; i++ {
			_, err := st.CreateLead(ctx, &models.Lead{
				TenantID:        1,
				Campaign:        "spring-open-house",
				State:           models.StateAssigned,
				AssignedAgentID: &agentA,
				AssignedAt:      &now,
			})
			require.NoError(t, err)
		}
		_, err = st.CreateLead(ctx, &models.Lead{
			TenantID:        1,
			Campaign:        "spring-open-house",
			State:           models.StateAssigned,
			AssignedAgentID: &agentB,
			AssignedAt:      &now,
		})
		require.NoError(t, err)

		// Closed leads do not count toward load.
		_, err = st.CreateLead(ctx, &models.Lead{
			TenantID:        1,
			Campaign:        "spring-open-house",
			State:           models.StateClosed,
			AssignedAgentID: &agentA,
		})
		require.NoError(t, err)

		tr := New()
		require.NoError(t, tr.Rebuild(ctx, st, 1))

		assert.Equal(t, 3, tr.ActiveCount(agentA))
		assert.Equal(t, 1, tr.ActiveCount(agentB))
	})
}
