package webhooks

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gpus/backend/internal/domain/models"
	"github.com/gpus/backend/pkg/constants"
	"github.com/gpus/backend/pkg/utils"
	"github.com/gpus/backend/pkg/validator"
)

// TypebotPayload is a finished Typebot conversation
type TypebotPayload struct {
	Name            string      `json:"name"`
	Email           string      `json:"email"`
	Phone           string      `json:"phone"`
	Interest        string      `json:"interest"`
	Message         string      `json:"message"`
	LGPDConsent     interface{} `json:"lgpdConsent"`
	WhatsappConsent interface{} `json:"whatsappConsent"`
	TypebotID       string      `json:"typebotId"`
	ResultID        string      `json:"resultId"`
	Timestamp       int64       `json:"timestamp"`
}

// WordPressPayload is a contact form submission, JSON or form encoded
type WordPressPayload struct {
	Name            string `json:"name" form:"name"`
	Email           string `json:"email" form:"email"`
	Phone           string `json:"phone" form:"phone"`
	Interest        string `json:"interest" form:"interest"`
	Message         string `json:"message" form:"message"`
	LGPDConsent     string `json:"lgpd_consent" form:"lgpd_consent"`
	WhatsappConsent string `json:"whatsapp_consent" form:"whatsapp_consent"`
	UTMSource       string `json:"utm_source" form:"utm_source"`
	UTMMedium       string `json:"utm_medium" form:"utm_medium"`
	UTMCampaign     string `json:"utm_campaign" form:"utm_campaign"`
	UTMTerm         string `json:"utm_term" form:"utm_term"`
	UTMContent      string `json:"utm_content" form:"utm_content"`
	Honeypot        string `json:"website" form:"website"`
}

// TypebotInput converts a Typebot payload into a capture
func TypebotInput(p TypebotPayload) models.MarketingLeadInput {
	in := models.MarketingLeadInput{
		Name:            strings.TrimSpace(p.Name),
		Email:           strings.TrimSpace(p.Email),
		Phone:           validator.FormatTypebotPhone(p.Phone),
		Interest:        validator.MapTypebotInterest(p.Interest),
		Message:         utils.NonEmptyPtr(p.Message),
		LGPDConsent:     utils.ToBool(p.LGPDConsent),
		WhatsappConsent: utils.ToBool(p.WhatsappConsent),
		Origin:          models.OriginTypebot,
		TypebotID:       utils.NonEmptyPtr(p.TypebotID),
		ResultID:        utils.NonEmptyPtr(p.ResultID),
	}
	if p.Timestamp > 0 {
		in.ExternalTimestamp = utils.TimePtr(time.UnixMilli(p.Timestamp).UTC())
	}
	return in
}

// WordPressInput converts a form submission into a capture
func WordPressInput(p WordPressPayload) models.MarketingLeadInput {
	interest := strings.TrimSpace(p.Interest)
	if !validator.ValidInterest(interest) {
		interest = validator.MapTypebotInterest(interest)
	}
	return models.MarketingLeadInput{
		Name:            strings.TrimSpace(p.Name),
		Email:           strings.TrimSpace(p.Email),
		Phone:           validator.FormatTypebotPhone(p.Phone),
		Interest:        interest,
		Message:         utils.NonEmptyPtr(p.Message),
		LGPDConsent:     utils.ToBool(p.LGPDConsent),
		WhatsappConsent: utils.ToBool(p.WhatsappConsent),
		Origin:          models.OriginWordPress,
		UTMSource:       utils.NonEmptyPtr(p.UTMSource),
		UTMMedium:       utils.NonEmptyPtr(p.UTMMedium),
		UTMCampaign:     utils.NonEmptyPtr(p.UTMCampaign),
		UTMTerm:         utils.NonEmptyPtr(p.UTMTerm),
		UTMContent:      utils.NonEmptyPtr(p.UTMContent),
		Honeypot:        p.Honeypot,
	}
}

// Typebot captures a marketing lead from a chatbot flow
func (h *Handler) Typebot(c *gin.Context) {
	if !SecretMatches(h.secrets.Typebot, c.GetHeader(constants.HeaderTypebotSecret)) {
		unauthorized(c)
		return
	}
	var payload TypebotPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		badRequest(c, "Invalid payload")
		return
	}
	h.captureLead(c, TypebotInput(payload))
}

// WordPress captures a marketing lead from a site form
func (h *Handler) WordPress(c *gin.Context) {
	if !SecretMatches(h.secrets.WordPress, c.GetHeader(constants.HeaderWordPressSecret)) {
		unauthorized(c)
		return
	}
	var payload WordPressPayload
	if err := c.ShouldBind(&payload); err != nil {
		badRequest(c, "Invalid payload")
		return
	}
	h.captureLead(c, WordPressInput(payload))
}

func (h *Handler) captureLead(c *gin.Context, in models.MarketingLeadInput) {
	lead, created, err := h.leads.Create(c.Request.Context(), in, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		fail(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{
		"success":   true,
		"id":        lead.ID,
		"duplicate": !created,
	})
}

func formatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}
