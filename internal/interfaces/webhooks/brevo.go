package webhooks

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gpus/backend/internal/application/services"
	"github.com/gpus/backend/internal/domain/models"
	"github.com/gpus/backend/pkg/constants"
	"github.com/gpus/backend/pkg/encryption"
)

// BrevoPayload is a transactional or campaign event from Brevo
type BrevoPayload struct {
	Event     string `json:"event"`
	Email     string `json:"email"`
	ID        int64  `json:"id"`
	MessageID string `json:"message-id"`
	Subject   string `json:"subject"`
	Tag       string `json:"tag"`
	TS        int64  `json:"ts"`
	TSEpoch   int64  `json:"ts_epoch"`
	Link      string `json:"link"`
	Reason    string `json:"reason"`
	CampID    int64  `json:"camp_id"`
}

// NormalizeBrevoEvent maps a Brevo event name to a stored event type
func NormalizeBrevoEvent(event string) string {
	switch strings.ToLower(event) {
	case "delivered":
		return models.EmailEventDelivered
	case "opened", "unique_opened":
		return models.EmailEventOpened
	case "click":
		return models.EmailEventClicked
	case "soft_bounce", "hard_bounce":
		return models.EmailEventBounced
	case "spam", "complaint":
		return models.EmailEventSpam
	case "unsubscribed":
		return models.EmailEventUnsubscribed
	}
	return models.EmailEventBounced
}

// occurredAt prefers the millisecond epoch, then the second epoch
func (p BrevoPayload) occurredAt() time.Time {
	switch {
	case p.TSEpoch > 0:
		return time.UnixMilli(p.TSEpoch).UTC()
	case p.TS > 0:
		return time.Unix(p.TS, 0).UTC()
	}
	return time.Now().UTC()
}

// Brevo records e-mail engagement events
func (h *Handler) Brevo(c *gin.Context) {
	secret := c.GetHeader(constants.HeaderBrevoSecret)
	if secret == "" {
		secret = c.Query("secret")
	}
	if !SecretMatches(h.secrets.Brevo, secret) {
		unauthorized(c)
		return
	}

	var payload BrevoPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		badRequest(c, "Invalid payload")
		return
	}
	if payload.Event == "" || payload.Email == "" {
		badRequest(c, "event and email are required")
		return
	}

	input := services.EmailEventInput{
		OrganizationID: h.defaultOrgID,
		Email:          payload.Email,
		EventType:      NormalizeBrevoEvent(payload.Event),
		RawEvent:       strings.ToLower(payload.Event),
		OccurredAt:     payload.occurredAt(),
		Metadata: map[string]interface{}{
			"messageId": payload.MessageID,
			"subject":   payload.Subject,
			"tag":       payload.Tag,
		},
	}
	if payload.CampID > 0 {
		input.CampaignID = formatInt(payload.CampID)
	}
	if payload.Link != "" {
		input.Link = &payload.Link
	}
	if payload.Reason != "" {
		input.Reason = &payload.Reason
	}

	if _, err := h.emailEvents.RecordEvent(c.Request.Context(), input); err != nil {
		log.Printf("❌ Brevo webhook failed for %s: %v", encryption.MaskEmail(payload.Email), err)
		fail(c, err)
		return
	}
	c.String(http.StatusOK, "OK")
}
