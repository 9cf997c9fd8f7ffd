package models

import "time"

// Conversation channels
const (
	ChannelWhatsApp  = "whatsapp"
	ChannelInstagram = "instagram"
	ChannelPortal    = "portal"
	ChannelEmail     = "email"
)

// Departments
const (
	DepartmentVendas  = "vendas"
	DepartmentCS      = "cs"
	DepartmentSuporte = "suporte"
)

// ConversationStatus of a support thread
type ConversationStatus string

const (
	ConversationAguardandoAtendente ConversationStatus = "aguardando_atendente"
	ConversationEmAtendimento       ConversationStatus = "em_atendimento"
	ConversationAguardandoCliente   ConversationStatus = "aguardando_cliente"
	ConversationResolvido           ConversationStatus = "resolvido"
	ConversationBotAtivo            ConversationStatus = "bot_ativo"
)

// Valid reports whether s is a known conversation status
func (s ConversationStatus) Valid() bool {
	switch s {
	case ConversationAguardandoAtendente, ConversationEmAtendimento, ConversationAguardandoCliente,
		ConversationResolvido, ConversationBotAtivo:
		return true
	}
	return false
}

// Conversation is a messaging thread with a lead or student
type Conversation struct {
	ID                string             `json:"id"`
	OrganizationID    string             `json:"organizationId"`
	LeadID            *string            `json:"leadId,omitempty"`
	StudentID         *string            `json:"studentId,omitempty"`
	Channel           string             `json:"channel"`
	Department        string             `json:"department"`
	Status            ConversationStatus `json:"status"`
	AssignedTo        *string            `json:"assignedTo,omitempty"`
	ExternalID        *string            `json:"externalId,omitempty"`
	LastMessage       *string            `json:"lastMessage,omitempty"`
	LastMessageAt     *time.Time         `json:"lastMessageAt,omitempty"`
	UnreadCount       int                `json:"unreadCount"`
	SatisfactionScore *int               `json:"satisfactionScore,omitempty"`
	ContactName       string             `json:"contactName,omitempty"`
	CreatedAt         time.Time          `json:"createdAt"`
	UpdatedAt         time.Time          `json:"updatedAt"`
}

// ConversationFilter narrows conversation listings
type ConversationFilter struct {
	OrganizationID string
	Department     string
	Status         ConversationStatus
	Search         string
	Limit          int
}

// ConversationInput carries create/update fields
type ConversationInput struct {
	LeadID            *string `json:"leadId,omitempty"`
	StudentID         *string `json:"studentId,omitempty"`
	Channel           string  `json:"channel"`
	Department        string  `json:"department"`
	Status            *string `json:"status,omitempty"`
	AssignedTo        *string `json:"assignedTo,omitempty"`
	SatisfactionScore *int    `json:"satisfactionScore,omitempty" binding:"omitempty,gte=1,lte=5"`
}

// Message senders
const (
	SenderClient = "client"
	SenderAgent  = "agent"
	SenderBot    = "bot"
	SenderSystem = "system"
)

// Message content types
const (
	ContentText     = "text"
	ContentImage    = "image"
	ContentAudio    = "audio"
	ContentDocument = "document"
	ContentTemplate = "template"
)

// MessageStatus is the delivery state of a message
type MessageStatus string

const (
	MessageEnviando MessageStatus = "enviando"
	MessageEnviado  MessageStatus = "enviado"
	MessageEntregue MessageStatus = "entregue"
	MessageLido     MessageStatus = "lido"
	MessageFalhou   MessageStatus = "falhou"
)

// Message belongs to a conversation
type Message struct {
	ID             string        `json:"id"`
	OrganizationID string        `json:"organizationId"`
	ConversationID string        `json:"conversationId"`
	Sender         string        `json:"sender"`
	SenderID       *string       `json:"senderId,omitempty"`
	Content        string        `json:"content"`
	ContentType    string        `json:"contentType"`
	MediaURL       *string       `json:"mediaUrl,omitempty"`
	Status         MessageStatus `json:"status"`
	ExternalID     *string       `json:"externalId,omitempty"`
	CreatedAt      time.Time     `json:"createdAt"`
}

// SendMessageInput is an agent message
type SendMessageInput struct {
	ConversationID string  `json:"conversationId" binding:"required"`
	Content        string  `json:"content" binding:"required"`
	ContentType    string  `json:"contentType"`
	MediaURL       *string `json:"mediaUrl,omitempty"`
}
