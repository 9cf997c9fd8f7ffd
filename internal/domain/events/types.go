package events

// EventType defines the type of event in the system
type EventType string

const (
	// Pipeline Events
	LeadCreated          EventType = "lead.created"
	LeadStageChanged     EventType = "lead.stage_changed"
	MarketingLeadCreated EventType = "marketing_lead.created"

	// Student Events
	StudentCreated EventType = "student.created"
	StudentUpdated EventType = "student.updated"

	// Messaging Events
	MessageCreated       EventType = "message.created"
	MessageStatusChanged EventType = "message.status"
	ConversationUpdated  EventType = "conversation.updated"

	// Payment Events
	PaymentUpdated EventType = "payment.updated"

	// System Events
	SystemStartup EventType = "system.startup"
)

// String returns the string representation of the event type
func (e EventType) String() string {
	return string(e)
}

// Payload is the envelope persisted in the outbox and handed to subscribers
type Payload struct {
	OrganizationID string                 `json:"organization_id"`
	EntityType     string                 `json:"entity_type"`
	EntityID       string                 `json:"entity_id"`
	Email          string                 `json:"email,omitempty"`
	Name           string                 `json:"name,omitempty"`
	ActorID        string                 `json:"actor_id,omitempty"`
	Data           map[string]interface{} `json:"data,omitempty"`
}
