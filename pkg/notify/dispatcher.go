package notify

import (
	"context"
	"sync"
	"time"

	"github.com/jordanlanch/leadrouter/pkg/domain"
	"github.com/jordanlanch/leadrouter/pkg/logger"
)

// Channel delivers an owner-changed event to one notification medium.
type Channel interface {
	Name() string
	Send(ctx context.Context, event domain.OwnerChangedEvent) error
}

// Dispatcher fans owner-changed events out to the configured channels.
// Delivery is fire-and-forget: a full queue drops the event with a warning,
// failed deliveries are retried with exponential backoff, and nothing here
// ever blocks or fails an assignment decision.
type Dispatcher struct {
	channels    []Channel
	queue       chan domain.OwnerChangedEvent
	logger      logger.Logger
	maxAttempts int
	baseDelay   time.Duration

	wg       sync.WaitGroup
	shutdown chan struct{}
	once     sync.Once
}

// NewDispatcher creates a dispatcher and starts its delivery worker.
func NewDispatcher(log logger.Logger, channels ...Channel) *Dispatcher {
	d := &Dispatcher{
		channels:    channels,
		queue:       make(chan domain.OwnerChangedEvent, 256),
		logger:      log,
		maxAttempts: 3,
		baseDelay:   time.Second,
		shutdown:    make(chan struct{}),
	}

	d.wg.Add(1)
	go d.run()
	return d
}

// Dispatch enqueues an event for delivery. Never blocks.
func (d *Dispatcher) Dispatch(event domain.OwnerChangedEvent) {
	select {
	case d.queue <- event:
	default:
		d.logger.Warn("notification queue full, dropping event",
			"tenant_id", event.TenantID,
			"lead_id", event.LeadID)
	}
}

// Close drains queued events and stops the worker.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		close(d.shutdown)
		d.wg.Wait()
	})
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case event := <-d.queue:
			d.deliver(event)
		case <-d.shutdown:
			// Drain whatever is already queued, then exit.
			for {
				select {
				case event := <-d.queue:
					d.deliver(event)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(event domain.OwnerChangedEvent) {
	for _, ch := range d.channels {
		if err := d.deliverWithRetry(ch, event); err != nil {
			d.logger.Error("notification delivery failed",
				"channel", ch.Name(),
				"tenant_id", event.TenantID,
				"lead_id", event.LeadID,
				"error", err)
		}
	}
}

func (d *Dispatcher) deliverWithRetry(ch Channel, event domain.OwnerChangedEvent) error {
	var lastErr error
	delay := d.baseDelay

	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := ch.Send(ctx, event)
		cancel()
		if err == nil {
			return nil
		}

		lastErr = err
		if attempt < d.maxAttempts {
			d.logger.Warn("notification attempt failed, retrying",
				"channel", ch.Name(),
				"attempt", attempt,
				"error", err)
			time.Sleep(delay)
			delay *= 2
		}
	}
	return domain.NewNotificationDeliveryError(ch.Name(), lastErr)
}
