package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jordanlanch/leadrouter/pkg/domain"
	"github.com/jordanlanch/leadrouter/pkg/models"
)

// ErrSlackSendFailed is returned when the Slack webhook rejects a message.
var ErrSlackSendFailed = errors.New("failed to send Slack notification")

// slackMessage is the webhook payload.
type slackMessage struct {
	Text string `json:"text"`
}

// SlackChannel posts owner-changed notifications to a Slack incoming webhook.
type SlackChannel struct {
	webhookURL string
	httpClient *http.Client
}

// NewSlackChannel creates a Slack webhook channel.
func NewSlackChannel(webhookURL string) *SlackChannel {
	return &SlackChannel{
		webhookURL: webhookURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *SlackChannel) Name() string { return "slack" }

// Send posts the event summary to the webhook.
func (c *SlackChannel) Send(ctx context.Context, event domain.OwnerChangedEvent) error {
	if c.webhookURL == "" {
		return fmt.Errorf("slack webhook URL not configured")
	}

	payload, err := json.Marshal(slackMessage{Text: formatSlackText(event)})
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.webhookURL, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ErrSlackSendFailed
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ErrSlackSendFailed
	}

	return nil
}

func formatSlackText(event domain.OwnerChangedEvent) string {
	if event.Escalated {
		return fmt.Sprintf("🚨 *Lead Escalated*\n"+
			"• Lead: #%d\n"+
			"• Tenant: %d\n"+
			"• Reason: %s\n"+
			"• Now in escalation pool %d",
			event.LeadID, event.TenantID, event.Reason, event.OwnerID)
	}

	owner := "released"
	switch event.OwnerKind {
	case models.OwnerAgent:
		owner = fmt.Sprintf("agent %d", event.OwnerID)
	case models.OwnerPool:
		owner = fmt.Sprintf("pool %d", event.OwnerID)
	}

	return fmt.Sprintf("🎯 *Lead Routed*\n"+
		"• Lead: #%d\n"+
		"• Tenant: %d\n"+
		"• Owner: %s\n"+
		"• Via: %s (%s)",
		event.LeadID, event.TenantID, owner, event.Source, event.Reason)
}
