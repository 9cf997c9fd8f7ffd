package services

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/gpus/backend/internal/domain/events"
	"github.com/gpus/backend/internal/domain/models"
	"github.com/gpus/backend/internal/domain/ports"
	"github.com/gpus/backend/pkg/auth"
	"github.com/gpus/backend/pkg/constants"
	"github.com/gpus/backend/pkg/utils"
)

var nowFunc = func() time.Time { return time.Now().UTC() }

// SystemIdentity is the caller used by cron jobs and background tasks
func SystemIdentity(orgID string) auth.Identity {
	return auth.Identity{Subject: constants.DefaultSystemActor, OrgID: orgID, OrgRole: auth.OrgAdminRole}
}

// actorUserID maps the caller to its users.id, falling back to the token subject
func actorUserID(ctx context.Context, users ports.UserRepository, identity auth.Identity) string {
	if users == nil || identity.Subject == "" || identity.Subject == constants.DefaultSystemActor {
		return identity.Subject
	}
	user, err := users.GetByClerkID(ctx, identity.Subject)
	if err != nil || user == nil {
		return identity.Subject
	}
	return user.ID
}

func newActivity(orgID, activityType, description string) *models.Activity {
	return &models.Activity{
		ID:             utils.GenerateID(),
		OrganizationID: orgID,
		Type:           activityType,
		Description:    description,
		CreatedAt:      nowFunc(),
	}
}

func newNotification(orgID, recipientID, notificationType, title, message string, link *string) *models.Notification {
	return &models.Notification{
		ID:             utils.GenerateID(),
		OrganizationID: orgID,
		RecipientID:    recipientID,
		Type:           notificationType,
		Title:          title,
		Message:        message,
		Link:           link,
		CreatedAt:      nowFunc(),
	}
}

// publish enqueues an outbox event. A nil outbox drops the event.
func publish(ctx context.Context, outbox ports.EventOutbox, eventType events.EventType, payload events.Payload) error {
	if outbox == nil {
		return nil
	}
	return outbox.Enqueue(ctx, eventType, payload)
}

// enqueueTask hands work to the queue and only logs failures
func enqueueTask(ctx context.Context, queue ports.TaskQueue, taskType string, payload interface{}) {
	if queue == nil {
		return
	}
	if err := queue.Enqueue(ctx, taskType, payload); err != nil {
		log.Printf("⚠️ Failed to enqueue %s: %v", taskType, err)
	}
}

// splitName splits a full name into first and last name
func splitName(name string) (string, string) {
	parts := strings.Fields(name)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}

func trimmedPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

// withinTx runs fn in a transaction, or directly when no transactor is wired
func withinTx(ctx context.Context, tx ports.Transactor, fn func(ctx context.Context) error) error {
	if tx == nil {
		return fn(ctx)
	}
	return tx.WithinTx(ctx, fn)
}
