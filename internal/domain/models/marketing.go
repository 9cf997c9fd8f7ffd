package models

import "time"

// Marketing lead statuses
const (
	MarketingLeadNew          = "new"
	MarketingLeadContacted    = "contacted"
	MarketingLeadConverted    = "converted"
	MarketingLeadUnsubscribed = "unsubscribed"
)

// ValidMarketingLeadStatus reports whether s is a known status
func ValidMarketingLeadStatus(s string) bool {
	switch s {
	case MarketingLeadNew, MarketingLeadContacted, MarketingLeadConverted, MarketingLeadUnsubscribed:
		return true
	}
	return false
}

// Marketing lead origins
const (
	OriginLandingPage = "landing_page"
	OriginTypebot     = "typebot"
	OriginWordPress   = "wordpress"
)

// MarketingLead is a top-of-funnel capture from public forms
type MarketingLead struct {
	ID                string     `json:"id"`
	OrganizationID    string     `json:"organizationId"`
	Name              string     `json:"name"`
	Email             string     `json:"email"`
	Phone             string     `json:"phone"`
	Interest          string     `json:"interest"`
	Message           *string    `json:"message,omitempty"`
	LGPDConsent       bool       `json:"lgpdConsent"`
	WhatsappConsent   bool       `json:"whatsappConsent"`
	Status            string     `json:"status"`
	Origin            string     `json:"origin"`
	Company           *string    `json:"company,omitempty"`
	JobRole           *string    `json:"jobRole,omitempty"`
	UTMSource         *string    `json:"utmSource,omitempty"`
	UTMMedium         *string    `json:"utmMedium,omitempty"`
	UTMCampaign       *string    `json:"utmCampaign,omitempty"`
	UTMTerm           *string    `json:"utmTerm,omitempty"`
	UTMContent        *string    `json:"utmContent,omitempty"`
	TypebotID         *string    `json:"typebotId,omitempty"`
	ResultID          *string    `json:"resultId,omitempty"`
	ExternalTimestamp *time.Time `json:"externalTimestamp,omitempty"`
	ConvertedLeadID   *string    `json:"convertedLeadId,omitempty"`
	IPAddress         *string    `json:"-"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

// MarketingLeadInput is the public capture payload
type MarketingLeadInput struct {
	Name              string     `json:"name"`
	Email             string     `json:"email"`
	Phone             string     `json:"phone"`
	Interest          string     `json:"interest"`
	Message           *string    `json:"message,omitempty"`
	LGPDConsent       bool       `json:"lgpdConsent"`
	WhatsappConsent   bool       `json:"whatsappConsent"`
	Origin            string     `json:"origin,omitempty"`
	Company           *string    `json:"company,omitempty"`
	JobRole           *string    `json:"jobRole,omitempty"`
	UTMSource         *string    `json:"utmSource,omitempty"`
	UTMMedium         *string    `json:"utmMedium,omitempty"`
	UTMCampaign       *string    `json:"utmCampaign,omitempty"`
	UTMTerm           *string    `json:"utmTerm,omitempty"`
	UTMContent        *string    `json:"utmContent,omitempty"`
	TypebotID         *string    `json:"typebotId,omitempty"`
	ResultID          *string    `json:"resultId,omitempty"`
	ExternalTimestamp *time.Time `json:"externalTimestamp,omitempty"`
	Honeypot          string     `json:"honeypot,omitempty"`
}

// MarketingLeadFilter narrows listings
type MarketingLeadFilter struct {
	OrganizationID string
	Status         string
	Interest       string
	Limit          int
}

// Email contact sources
const (
	ContactSourceLead          = "lead"
	ContactSourceStudent       = "student"
	ContactSourceMarketingLead = "marketing_lead"
)

// Subscription statuses
const (
	SubscriptionSubscribed   = "subscribed"
	SubscriptionUnsubscribed = "unsubscribed"
)

// EmailContact is a marketing contact synchronized from CRM entities
type EmailContact struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organizationId"`
	Email          string    `json:"email"`
	FirstName      *string   `json:"firstName,omitempty"`
	LastName       *string   `json:"lastName,omitempty"`
	Source         string    `json:"source"`
	SourceID       *string   `json:"sourceId,omitempty"`
	Status         string    `json:"subscriptionStatus"`
	BrevoID        *string   `json:"brevoId,omitempty"`
	SyncStatus     string    `json:"syncStatus"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// EmailList groups contacts
type EmailList struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organizationId"`
	Name           string    `json:"name"`
	Description    *string   `json:"description,omitempty"`
	ContactCount   int       `json:"contactCount"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Campaign statuses
const (
	CampaignDraft     = "draft"
	CampaignScheduled = "scheduled"
	CampaignSending   = "sending"
	CampaignSent      = "sent"
	CampaignFailed    = "failed"
)

// CampaignStats counts delivery events
type CampaignStats struct {
	Delivered    int `json:"delivered"`
	Opened       int `json:"opened"`
	Clicked      int `json:"clicked"`
	Bounced      int `json:"bounced"`
	Spam         int `json:"spam"`
	Unsubscribed int `json:"unsubscribed"`
}

// EmailCampaign is a newsletter or announcement
type EmailCampaign struct {
	ID              string        `json:"id"`
	OrganizationID  string        `json:"organizationId"`
	Name            string        `json:"name"`
	Subject         string        `json:"subject"`
	HTMLContent     *string       `json:"htmlContent,omitempty"`
	TemplateID      *string       `json:"templateId,omitempty"`
	ListIDs         []string      `json:"listIds"`
	Status          string        `json:"status"`
	ScheduledAt     *time.Time    `json:"scheduledAt,omitempty"`
	SentAt          *time.Time    `json:"sentAt,omitempty"`
	BrevoCampaignID *string       `json:"brevoCampaignId,omitempty"`
	Stats           CampaignStats `json:"stats"`
	CreatedBy       string        `json:"createdBy"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
}

// EmailTemplate is reusable campaign content
type EmailTemplate struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organizationId"`
	Name           string    `json:"name"`
	Subject        string    `json:"subject"`
	HTMLContent    string    `json:"htmlContent"`
	Category       *string   `json:"category,omitempty"`
	CreatedBy      string    `json:"createdBy"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Email event types after normalization
const (
	EmailEventDelivered    = "delivered"
	EmailEventOpened       = "opened"
	EmailEventClicked      = "clicked"
	EmailEventBounced      = "bounced"
	EmailEventSpam         = "spam"
	EmailEventUnsubscribed = "unsubscribed"
)

// EmailEvent is a delivery event reported by the e-mail provider
type EmailEvent struct {
	ID             string                 `json:"id"`
	OrganizationID string                 `json:"organizationId"`
	ContactID      *string                `json:"contactId,omitempty"`
	CampaignID     *string                `json:"campaignId,omitempty"`
	Email          string                 `json:"email"`
	EventType      string                 `json:"eventType"`
	RawEvent       string                 `json:"rawEvent"`
	Link           *string                `json:"link,omitempty"`
	Reason         *string                `json:"reason,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	OccurredAt     time.Time              `json:"occurredAt"`
	CreatedAt      time.Time              `json:"createdAt"`
}
