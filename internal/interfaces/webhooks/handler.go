// Package webhooks receives inbound provider callbacks: Asaas payments,
// Brevo e-mail events, messaging delivery receipts, form captures and
// identity-provider user sync.
package webhooks

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gpus/backend/internal/application/services"
	"github.com/gpus/backend/internal/domain/models"
	"github.com/gpus/backend/internal/interfaces/middleware"
	"github.com/gpus/backend/pkg/constants"
)

// PaymentReceiver stores Asaas notifications for processing
type PaymentReceiver interface {
	ReceiveWebhook(ctx context.Context, body []byte) (string, string, error)
}

// EmailEventRecorder stores normalized e-mail events
type EmailEventRecorder interface {
	RecordEvent(ctx context.Context, input services.EmailEventInput) (*models.EmailEvent, error)
}

// MessageStatusUpdater applies delivery receipts
type MessageStatusUpdater interface {
	UpdateMessageStatus(ctx context.Context, messageID string, status models.MessageStatus) (*models.Message, error)
}

// LeadCapture creates marketing leads from external forms
type LeadCapture interface {
	Create(ctx context.Context, input models.MarketingLeadInput, clientIP, userAgent string) (*models.MarketingLead, bool, error)
}

// TeamSync mirrors identity-provider users into the team table
type TeamSync interface {
	UpsertFromIdentityProvider(ctx context.Context, in services.IdentityUser) (*models.User, error)
	DeactivateFromIdentityProvider(ctx context.Context, clerkID string) error
}

// Secrets are the shared secrets of every provider. An empty secret rejects
// every request of that provider.
type Secrets struct {
	Brevo      string
	Messaging  string
	Typebot    string
	WordPress  string
	Clerk      string
	AsaasToken string
}

// Handler serves every provider webhook
type Handler struct {
	secrets      Secrets
	defaultOrgID string
	payments     PaymentReceiver
	emailEvents  EmailEventRecorder
	messages     MessageStatusUpdater
	leads        LeadCapture
	team         TeamSync
}

// Deps groups the services behind the webhooks
type Deps struct {
	Payments              PaymentReceiver
	EmailEvents           EmailEventRecorder
	Messages              MessageStatusUpdater
	Capture               LeadCapture
	Team                  TeamSync
	DefaultOrganizationID string
}

// NewHandler creates a webhook Handler
func NewHandler(secrets Secrets, deps Deps) *Handler {
	return &Handler{
		secrets:      secrets,
		defaultOrgID: deps.DefaultOrganizationID,
		payments:     deps.Payments,
		emailEvents:  deps.EmailEvents,
		messages:     deps.Messages,
		leads:        deps.Capture,
		team:         deps.Team,
	}
}

// Register mounts the webhook routes on r
func (h *Handler) Register(r gin.IRouter) {
	r.POST("/webhooks/asaas", h.Asaas)
	r.POST("/webhooks/brevo", h.Brevo)
	r.POST("/brevo/webhook", h.Brevo)
	r.POST("/webhooks/messaging", h.Messaging)
	r.POST("/messaging/webhook", h.Messaging)
	r.POST("/webhooks/typebot", h.Typebot)
	r.POST("/webhooks/wordpress", h.WordPress)
	r.POST("/webhooks/clerk", h.Clerk)
}

// SecretMatches compares a provided secret in constant time. An unset
// expected secret never matches.
func SecretMatches(expected, provided string) bool {
	if expected == "" || provided == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(provided)) == 1
}

func unauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		constants.ResponseError: "Unauthorized",
		constants.ResponseCode:  "UNAUTHORIZED",
	})
}

func badRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		constants.ResponseError: message,
		constants.ResponseCode:  "VALIDATION_ERROR",
	})
}

func fail(c *gin.Context, err error) {
	middleware.Abort(c, err)
}
