package webhooks

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gpus/backend/internal/application/services"
	"github.com/gpus/backend/pkg/constants"
	"github.com/gpus/backend/pkg/utils"
)

// ClerkEvent is an identity-provider user event
type ClerkEvent struct {
	Type string        `json:"type"`
	Data ClerkUserData `json:"data"`
}

// ClerkUserData is the user object of a Clerk event
type ClerkUserData struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	ImageURL  string `json:"image_url"`
	EmailAddresses []struct {
		EmailAddress string `json:"email_address"`
	} `json:"email_addresses"`
	OrganizationMemberships []struct {
		Role string `json:"role"`
		Organization struct {
			ID string `json:"id"`
		} `json:"organization"`
	} `json:"organization_memberships"`
}

// IdentityUser flattens the event data for the team sync
func (d ClerkUserData) IdentityUser() services.IdentityUser {
	user := services.IdentityUser{
		ClerkID: d.ID,
		Name:    strings.TrimSpace(d.FirstName + " " + d.LastName),
		Avatar:  utils.NonEmptyPtr(d.ImageURL),
	}
	if len(d.EmailAddresses) > 0 {
		user.Email = d.EmailAddresses[0].EmailAddress
	}
	if len(d.OrganizationMemberships) > 0 {
		user.OrganizationID = d.OrganizationMemberships[0].Organization.ID
		user.Role = d.OrganizationMemberships[0].Role
	}
	return user
}

// Clerk mirrors user lifecycle events into the team table
func (h *Handler) Clerk(c *gin.Context) {
	if !SecretMatches(h.secrets.Clerk, c.GetHeader(constants.HeaderWebhookSecret)) {
		unauthorized(c)
		return
	}

	var event ClerkEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		badRequest(c, "Invalid payload")
		return
	}

	ctx := c.Request.Context()
	switch event.Type {
	case "user.created", "user.updated":
		if _, err := h.team.UpsertFromIdentityProvider(ctx, event.Data.IdentityUser()); err != nil {
			log.Printf("❌ Clerk %s failed for %s: %v", event.Type, event.Data.ID, err)
			fail(c, err)
			return
		}
	case "user.deleted":
		if err := h.team.DeactivateFromIdentityProvider(ctx, event.Data.ID); err != nil {
			fail(c, err)
			return
		}
	default:
		c.JSON(http.StatusOK, gin.H{"status": "ignored", "type": event.Type})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "processed", "type": event.Type})
}
