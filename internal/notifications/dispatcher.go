package notifications

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/clapserv/backend/internal/database"
	"github.com/clapserv/backend/internal/logger"
	"github.com/clapserv/backend/internal/matching"
	"github.com/clapserv/backend/internal/metrics"
	"github.com/clapserv/backend/internal/models"
	"github.com/clapserv/backend/internal/push"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Dispatcher fans a domain event out to matched recipients: a batched
// push send and one in-app notification row per recipient. The two
// effects are independent and non-transactional; a failed push never
// blocks row persistence and a failed insert never cancels siblings.
type Dispatcher struct {
	matcher *matching.Matcher
	sender  push.Sender
}

// NewDispatcher creates a notification dispatcher.
func NewDispatcher(matcher *matching.Matcher, sender push.Sender) *Dispatcher {
	return &Dispatcher{matcher: matcher, sender: sender}
}

// DispatchRequestCreated notifies every provider matched to a newly
// created service request.
func (d *Dispatcher) DispatchRequestCreated(ctx context.Context, request *models.ServiceRequest) error {
	var category models.ServiceCategory
	if err := database.DB.WithContext(ctx).First(&category, "id = ?", request.CategoryID).Error; err != nil {
		return fmt.Errorf("failed to load category: %w", err)
	}

	providers, err := d.matcher.Match(ctx, &category, matching.RequestLocation(request))
	if err != nil {
		return fmt.Errorf("failed to match providers: %w", err)
	}
	if len(providers) == 0 {
		logger.Log.Info("no providers matched for request",
			zap.String("service_request_id", request.ID),
			zap.String("category", category.Slug),
		)
		return nil
	}

	recipientIDs := make([]string, 0, len(providers))
	for _, p := range providers {
		recipientIDs = append(recipientIDs, p.UserID)
	}

	d.Notify(ctx, recipientIDs, models.Notification{
		Type:  models.NotificationRequestMatch,
		Title: "New request: " + request.Title,
		Body:  fmt.Sprintf("A new %s request was posted near you", category.Name),
		Data: map[string]string{
			"request_id":  request.ID,
			"category_id": category.ID,
		},
	})

	return nil
}

// NotifyProposalReceived tells a buyer that a provider bid on their request.
func (d *Dispatcher) NotifyProposalReceived(ctx context.Context, request *models.ServiceRequest, proposal *models.Proposal) {
	d.Notify(ctx, []string{request.BuyerID}, models.Notification{
		Type:  models.NotificationProposalReceived,
		Title: "New proposal on " + request.Title,
		Body:  "A provider sent you a proposal",
		Data: map[string]string{
			"request_id":  request.ID,
			"proposal_id": proposal.ID,
		},
	})
}

// NotifyProposalDecision tells a provider their proposal was accepted or rejected.
func (d *Dispatcher) NotifyProposalDecision(ctx context.Context, proposal *models.Proposal, accepted bool, projectID string) {
	notif := models.Notification{
		Type:  models.NotificationProposalRejected,
		Title: "Proposal update",
		Body:  "Your proposal was not selected",
		Data:  map[string]string{"proposal_id": proposal.ID},
	}
	if accepted {
		notif.Type = models.NotificationProposalAccepted
		notif.Body = "Your proposal was accepted"
		notif.Data["project_id"] = projectID
	}
	d.Notify(ctx, []string{proposal.ProviderID}, notif)
}

// NotifyNewMessage tells the other participant about a chat message.
func (d *Dispatcher) NotifyNewMessage(ctx context.Context, recipientID string, message *models.Message) {
	d.Notify(ctx, []string{recipientID}, models.Notification{
		Type:  models.NotificationNewMessage,
		Title: "New message",
		Body:  truncate(message.Body, 120),
		Data: map[string]string{
			"conversation_id": message.ConversationID,
			"message_id":      message.ID,
		},
	})
}

// NotifyProjectUpdate tells a participant about a project status change.
func (d *Dispatcher) NotifyProjectUpdate(ctx context.Context, recipientID string, project *models.Project) {
	d.Notify(ctx, []string{recipientID}, models.Notification{
		Type:  models.NotificationProjectUpdate,
		Title: "Project update",
		Body:  "Project status changed to " + string(project.Status),
		Data: map[string]string{
			"project_id": project.ID,
			"status":     string(project.Status),
		},
	})
}

// Notify sends the push fan-out and persists one notification row per
// recipient. All failures are logged and swallowed: delivery here is
// best-effort.
func (d *Dispatcher) Notify(ctx context.Context, recipientIDs []string, template models.Notification) {
	d.sendPushes(ctx, recipientIDs, template)
	d.persistRows(ctx, recipientIDs, template)
}

// sendPushes loads the recipients' valid tokens and hands batched
// messages to the gateway. Invalid-shaped tokens are skipped up front.
func (d *Dispatcher) sendPushes(ctx context.Context, recipientIDs []string, template models.Notification) {
	if d.sender == nil {
		return
	}

	var tokens []models.PushToken
	err := database.DB.WithContext(ctx).
		Where("user_id IN ?", recipientIDs).
		Find(&tokens).Error
	if err != nil {
		logger.ErrorWithErr("failed to load push tokens", err)
		return
	}

	messages := make([]push.Message, 0, len(tokens))
	for _, t := range tokens {
		if !push.IsValidToken(t.Token) {
			logger.Log.Debug("skipping malformed push token",
				zap.String("user_id", t.UserID),
			)
			continue
		}
		messages = append(messages, push.Message{
			To:    t.Token,
			Title: template.Title,
			Body:  template.Body,
			Data:  template.Data,
			Sound: "default",
		})
	}
	if len(messages) == 0 {
		return
	}

	tickets := d.sender.Send(ctx, messages)
	failed := 0
	for _, ticket := range tickets {
		if ticket.Status != "ok" {
			failed++
		}
	}
	if failed > 0 {
		logger.Log.Warn("some push messages failed",
			zap.Int("failed", failed),
			zap.Int("total", len(messages)),
			zap.String("type", string(template.Type)),
		)
	}
}

// persistRows inserts one notification row per recipient concurrently.
// Inserts are independent: a failure is logged and does not cancel or
// roll back the others.
func (d *Dispatcher) persistRows(ctx context.Context, recipientIDs []string, template models.Notification) {
	mtr := metrics.Get()
	g := new(errgroup.Group)
	g.SetLimit(8)

	for _, recipientID := range recipientIDs {
		row := models.Notification{
			RecipientID: recipientID,
			Type:        template.Type,
			Title:       template.Title,
			Body:        template.Body,
			Data:        template.Data,
		}
		g.Go(func() error {
			if err := database.DB.WithContext(ctx).Create(&row).Error; err != nil {
				mtr.NotificationRowsTotal.WithLabelValues("error").Inc()
				logger.Log.Error("failed to persist notification row",
					zap.String("recipient_id", row.RecipientID),
					zap.String("type", string(row.Type)),
					zap.Error(err),
				)
				return nil
			}
			mtr.NotificationRowsTotal.WithLabelValues("ok").Inc()
			return nil
		})
	}

	g.Wait()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max - 3
	// Back up to a rune boundary so multi-byte characters are never split
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
