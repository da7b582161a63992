package notify

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jordanlanch/leadrouter/pkg/domain"
	"github.com/jordanlanch/leadrouter/pkg/logger"
	"github.com/jordanlanch/leadrouter/pkg/models"
)

// recordingChannel counts deliveries and can fail a configured number of times
// before succeeding.
type recordingChannel struct {
	mu        sync.Mutex
	name      string
	failFirst int
	attempts  int
	delivered []domain.OwnerChangedEvent
}

func (c *recordingChannel) Name() string { return c.name }

func (c *recordingChannel) Send(_ context.Context, event domain.OwnerChangedEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempts++
	if c.attempts <= c.failFirst {
		return errors.New("transient failure")
	}
	c.delivered = append(c.delivered, event)
	return nil
}

func (c *recordingChannel) Delivered() []domain.OwnerChangedEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.OwnerChangedEvent, len(c.delivered))
	copy(out, c.delivered)
	return out
}

func (c *recordingChannel) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// newTestDispatcher mirrors NewDispatcher with a sub-millisecond retry delay
// so failure paths do not slow the suite down.
func newTestDispatcher(channels ...Channel) *Dispatcher {
	d := &Dispatcher{
		channels:    channels,
		queue:       make(chan domain.OwnerChangedEvent, 256),
		logger:      logger.New("error"),
		maxAttempts: 3,
		baseDelay:   time.Millisecond,
		shutdown:    make(chan struct{}),
	}
	d.wg.Add(1)
	go d.run()
	return d
}

func testEvent(leadID int) domain.OwnerChangedEvent {
	return domain.OwnerChangedEvent{
		TenantID:  1,
		LeadID:    leadID,
		OwnerKind: models.OwnerAgent,
		OwnerID:   7,
		Source:    models.SourceRoundRobin,
		Reason:    models.ReasonRoundRobin,
	}
}

func TestDispatcher(t *testing.T) {
	t.Run("Success - Event reaches every channel", func(t *testing.T) {
		first := &recordingChannel{name: "first"}
		second := &recordingChannel{name: "second"}
		d := newTestDispatcher(first, second)

		d.Dispatch(testEvent(100))
		d.Close()

		require.Len(t, first.Delivered(), 1)
		require.Len(t, second.Delivered(), 1)
		assert.Equal(t, 100, first.Delivered()[0].LeadID)
	})

	t.Run("Success - Transient failure is retried", func(t *testing.T) {
		ch := &recordingChannel{name: "flaky", failFirst: 2}
		d := newTestDispatcher(ch)

		d.Dispatch(testEvent(100))
		d.Close()

		assert.Equal(t, 3, ch.Attempts())
		require.Len(t, ch.Delivered(), 1)
	})

	t.Run("Success - Delivery gives up after max attempts", func(t *testing.T) {
		ch := &recordingChannel{name: "down", failFirst: 10}
		d := newTestDispatcher(ch)

		d.Dispatch(testEvent(100))
		d.Close()

		assert.Equal(t, 3, ch.Attempts())
		assert.Empty(t, ch.Delivered())
	})

	t.Run("Success - One failing channel never blocks the others", func(t *testing.T) {
		down := &recordingChannel{name: "down", failFirst: 10}
		up := &recordingChannel{name: "up"}
		d := newTestDispatcher(down, up)

		d.Dispatch(testEvent(100))
		d.Close()

		require.Len(t, up.Delivered(), 1)
	})

	t.Run("Success - Close drains the queue", func(t *testing.T) {
		ch := &recordingChannel{name: "sink"}
		d := newTestDispatcher(ch)

		for i := 0; i < 20; i++ {
			d.Dispatch(testEvent(i))
		}
		d.Close()

		assert.Len(t, ch.Delivered(), 20)
	})

	t.Run("Success - Full queue drops instead of blocking", func(t *testing.T) {
		// No worker: the queue fills up and Dispatch must still return.
		d := &Dispatcher{
			channels: nil,
			queue:    make(chan domain.OwnerChangedEvent, 1),
			logger:   logger.New("error"),
			shutdown: make(chan struct{}),
		}

		done := make(chan struct{})
		go func() {
			d.Dispatch(testEvent(1))
			d.Dispatch(testEvent(2))
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("Dispatch blocked on a full queue")
		}
	})
}

func TestSlackChannel(t *testing.T) {
	t.Run("Success - Posts formatted payload", func(t *testing.T) {
		var body string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			buf := make([]byte, r.ContentLength)
			r.Body.Read(buf)
			body = string(buf)
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		ch := NewSlackChannel(srv.URL)
		require.NoError(t, ch.Send(context.Background(), testEvent(100)))
		assert.Contains(t, body, "Lead Routed")
		assert.Contains(t, body, "#100")
		assert.Contains(t, body, "agent 7")
	})

	t.Run("Success - Escalations use the alert format", func(t *testing.T) {
		var body string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			buf := make([]byte, r.ContentLength)
			r.Body.Read(buf)
			body = string(buf)
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		event := domain.OwnerChangedEvent{
			TenantID:  1,
			LeadID:    100,
			OwnerKind: models.OwnerPool,
			OwnerID:   3,
			Source:    models.SourceWatchdog,
			Reason:    models.ReasonReassignmentCap,
			Escalated: true,
		}

		ch := NewSlackChannel(srv.URL)
		require.NoError(t, ch.Send(context.Background(), event))
		assert.Contains(t, body, "Lead Escalated")
		assert.Contains(t, body, "escalation pool 3")
	})

	t.Run("Error - Webhook rejects the message", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}))
		defer srv.Close()

		ch := NewSlackChannel(srv.URL)
		err := ch.Send(context.Background(), testEvent(100))
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrSlackSendFailed))
	})

	t.Run("Error - Missing webhook URL", func(t *testing.T) {
		ch := NewSlackChannel("")
		err := ch.Send(context.Background(), testEvent(100))
		require.Error(t, err)
		assert.True(t, strings.Contains(err.Error(), "not configured"))
	})
}

type staticAgents struct {
	agent *models.Agent
}

func (s staticAgents) GetAgent(context.Context, int) (*models.Agent, error) {
	if s.agent == nil {
		return nil, errors.New("agent not found")
	}
	return s.agent, nil
}

func TestEmailChannel(t *testing.T) {
	log := logger.New("error")

	t.Run("Success - Console mode delivers without SendGrid", func(t *testing.T) {
		agents := staticAgents{agent: &models.Agent{ID: 7, Name: "Ana", Email: "ana@example.com"}}
		ch := NewEmailChannel("noreply@example.com", "LeadRouter", "", "", agents, log)

		assert.NoError(t, ch.Send(context.Background(), testEvent(100)))
	})

	t.Run("Success - Pool placements are skipped", func(t *testing.T) {
		ch := NewEmailChannel("noreply@example.com", "LeadRouter", "", "", staticAgents{}, log)

		event := testEvent(100)
		event.OwnerKind = models.OwnerPool
		assert.NoError(t, ch.Send(context.Background(), event))
	})

	t.Run("Success - Escalation without manager email is skipped", func(t *testing.T) {
		ch := NewEmailChannel("noreply@example.com", "LeadRouter", "", "", staticAgents{}, log)

		event := testEvent(100)
		event.Escalated = true
		assert.NoError(t, ch.Send(context.Background(), event))
	})

	t.Run("Error - Unresolvable agent", func(t *testing.T) {
		ch := NewEmailChannel("noreply@example.com", "LeadRouter", "", "", staticAgents{}, log)

		err := ch.Send(context.Background(), testEvent(100))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to resolve agent")
	})
}
