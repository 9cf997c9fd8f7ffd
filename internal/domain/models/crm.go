package models

import "time"

// Activity is a timeline entry attached to a lead or student
type Activity struct {
	ID             string                 `json:"id"`
	OrganizationID string                 `json:"organizationId"`
	Type           string                 `json:"type"`
	Description    string                 `json:"description"`
	LeadID         *string                `json:"leadId,omitempty"`
	StudentID      *string                `json:"studentId,omitempty"`
	EnrollmentID   *string                `json:"enrollmentId,omitempty"`
	UserID         *string                `json:"userId,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt      time.Time              `json:"createdAt"`
}

// Task is a follow-up item
type Task struct {
	ID               string     `json:"id"`
	OrganizationID   string     `json:"organizationId"`
	Description      string     `json:"description"`
	LeadID           *string    `json:"leadId,omitempty"`
	StudentID        *string    `json:"studentId,omitempty"`
	AssignedTo       *string    `json:"assignedTo,omitempty"`
	MentionedUserIDs []string   `json:"mentionedUserIds"`
	DueDate          *time.Time `json:"dueDate,omitempty"`
	Completed        bool       `json:"completed"`
	CompletedAt      *time.Time `json:"completedAt,omitempty"`
	RemindedAt       *time.Time `json:"remindedAt,omitempty"`
	CreatedBy        string     `json:"createdBy"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// TaskFilter narrows task listings
type TaskFilter struct {
	OrganizationID string
	LeadID         string
	AssignedTo     string
	Completed      *bool
	DueBefore      *time.Time
	Limit          int
}

// TaskInput carries create/update fields
type TaskInput struct {
	Description      string     `json:"description"`
	LeadID           *string    `json:"leadId,omitempty"`
	StudentID        *string    `json:"studentId,omitempty"`
	AssignedTo       *string    `json:"assignedTo,omitempty"`
	MentionedUserIDs []string   `json:"mentionedUserIds,omitempty"`
	DueDate          *time.Time `json:"dueDate,omitempty"`
}

// Notification is an in-app message for a team member
type Notification struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organizationId"`
	RecipientID    string    `json:"recipientId"`
	Type           string    `json:"type"`
	Title          string    `json:"title"`
	Message        string    `json:"message"`
	Link           *string   `json:"link,omitempty"`
	Read           bool      `json:"read"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Setting is an organization key/value
type Setting struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organizationId"`
	Key            string    `json:"key"`
	Value          string    `json:"value"`
	Encrypted      bool      `json:"-"`
	UpdatedBy      string    `json:"updatedBy"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// IntegrationConfig is the admin view of a third-party integration
type IntegrationConfig struct {
	Name          string  `json:"name"`
	BaseURL       *string `json:"baseUrl"`
	APIKey        *string `json:"apiKey"`
	WebhookSecret *string `json:"webhookSecret"`
}

// CustomField defines an extra attribute of leads or students
type CustomField struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organizationId"`
	Name           string    `json:"name"`
	FieldType      string    `json:"fieldType"`
	EntityType     string    `json:"entityType"`
	Options        []string  `json:"options,omitempty"`
	Required       bool      `json:"required"`
	Active         bool      `json:"active"`
	DisplayOrder   int       `json:"displayOrder"`
	CreatedAt      time.Time `json:"createdAt"`
}

// CustomFieldInput carries create/update fields
type CustomFieldInput struct {
	Name       string   `json:"name"`
	FieldType  string   `json:"fieldType"`
	EntityType string   `json:"entityType"`
	Options    []string `json:"options,omitempty"`
	Required   *bool    `json:"required,omitempty"`
}

// CustomFieldValue is the value of a custom field for one entity
type CustomFieldValue struct {
	ID             string      `json:"id"`
	OrganizationID string      `json:"organizationId"`
	FieldID        string      `json:"fieldId"`
	EntityType     string      `json:"entityType"`
	EntityID       string      `json:"entityId"`
	Value          interface{} `json:"value"`
	UpdatedAt      time.Time   `json:"updatedAt"`
}

// Custom field entities
const (
	EntityLead    = "lead"
	EntityStudent = "student"
)
