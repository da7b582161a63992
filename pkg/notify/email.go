package notify

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/jordanlanch/leadrouter/pkg/domain"
	"github.com/jordanlanch/leadrouter/pkg/logger"
	"github.com/jordanlanch/leadrouter/pkg/models"
)

// AgentResolver looks up the recipient for an owner-changed event.
type AgentResolver interface {
	GetAgent(ctx context.Context, agentID int) (*models.Agent, error)
}

// EmailChannel emails the newly assigned agent about their lead. Escalation
// events go to the tenant's manager address instead.
//
// If sendGridAPIKey is empty the channel runs in console-only mode and logs
// instead of sending, matching local development setups.
type EmailChannel struct {
	fromEmail    string
	fromName     string
	managerEmail string
	sendGridKey  string
	useSendGrid  bool
	agents       AgentResolver
	logger       logger.Logger
}

// NewEmailChannel creates an email notification channel.
func NewEmailChannel(fromEmail, fromName, managerEmail, sendGridAPIKey string, agents AgentResolver, log logger.Logger) *EmailChannel {
	useSendGrid := sendGridAPIKey != ""
	if useSendGrid {
		log.Info("✅ Email notifications initialized with SendGrid")
	} else {
		log.Warn("⚠️  Email notifications in console-only mode (set SENDGRID_API_KEY for production)")
	}

	return &EmailChannel{
		fromEmail:    fromEmail,
		fromName:     fromName,
		managerEmail: managerEmail,
		sendGridKey:  sendGridAPIKey,
		useSendGrid:  useSendGrid,
		agents:       agents,
		logger:       log,
	}
}

func (c *EmailChannel) Name() string { return "email" }

// Send delivers the event. Events with no email recipient (pool placements
// that are not escalations) are skipped silently.
func (c *EmailChannel) Send(ctx context.Context, event domain.OwnerChangedEvent) error {
	if event.Escalated {
		return c.sendEscalation(event)
	}

	if event.OwnerKind != models.OwnerAgent {
		return nil
	}

	agent, err := c.agents.GetAgent(ctx, event.OwnerID)
	if err != nil {
		return fmt.Errorf("failed to resolve agent %d: %w", event.OwnerID, err)
	}

	subject := fmt.Sprintf("New lead assigned: #%d", event.LeadID)
	htmlBody := fmt.Sprintf(`
		<html>
		<body>
			<h2>New Lead Assigned</h2>
			<p>Hi %s,</p>
			<p>Lead <strong>#%d</strong> has been assigned to you (%s).</p>
			<p>Please reach out to the contact as soon as possible.</p>
		</body>
		</html>
	`, agent.Name, event.LeadID, event.Reason)

	plainText := fmt.Sprintf(`
Hi %s,

Lead #%d has been assigned to you (%s).

Please reach out to the contact as soon as possible.
	`, agent.Name, event.LeadID, event.Reason)

	return c.send(agent.Email, agent.Name, subject, htmlBody, plainText)
}

func (c *EmailChannel) sendEscalation(event domain.OwnerChangedEvent) error {
	if c.managerEmail == "" {
		c.logger.Warn("no manager email configured, skipping escalation notice",
			"tenant_id", event.TenantID,
			"lead_id", event.LeadID)
		return nil
	}

	subject := fmt.Sprintf("Lead escalated: #%d", event.LeadID)
	htmlBody := fmt.Sprintf(`
		<html>
		<body>
			<h2>Lead Escalated</h2>
			<p>Lead <strong>#%d</strong> (tenant %d) exhausted its automatic reassignments and needs manual attention.</p>
			<p>Reason: %s</p>
		</body>
		</html>
	`, event.LeadID, event.TenantID, event.Reason)

	plainText := fmt.Sprintf(`
Lead #%d (tenant %d) exhausted its automatic reassignments and needs manual attention.

Reason: %s
	`, event.LeadID, event.TenantID, event.Reason)

	return c.send(c.managerEmail, "Sales Manager", subject, htmlBody, plainText)
}

func (c *EmailChannel) send(toEmail, toName, subject, htmlBody, plainText string) error {
	if !c.useSendGrid {
		c.logger.Info("📧 [EMAIL] not sent (development mode)",
			"to", toEmail,
			"subject", subject)
		return nil
	}

	from := mail.NewEmail(c.fromName, c.fromEmail)
	to := mail.NewEmail(toName, toEmail)
	message := mail.NewSingleEmail(from, subject, to, plainText, htmlBody)

	client := sendgrid.NewSendClient(c.sendGridKey)
	response, err := client.Send(message)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("sendgrid returned error status: %d", response.StatusCode)
	}

	c.logger.Info("✅ Email sent", "to", toEmail, "status", response.StatusCode)
	return nil
}
