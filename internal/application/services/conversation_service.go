package services

import (
	"context"
	"sort"
	"strings"

	"github.com/gpus/backend/internal/domain/events"
	"github.com/gpus/backend/internal/domain/models"
	"github.com/gpus/backend/internal/domain/ports"
	"github.com/gpus/backend/pkg/auth"
	"github.com/gpus/backend/pkg/constants"
	apperrors "github.com/gpus/backend/pkg/errors"
	"github.com/gpus/backend/pkg/utils"
)

// ConversationListLimit is the number of threads returned by List
const ConversationListLimit = 50

var validChannels = map[string]bool{
	models.ChannelWhatsApp:  true,
	models.ChannelInstagram: true,
	models.ChannelPortal:    true,
	models.ChannelEmail:     true,
}

var validDepartments = map[string]bool{
	models.DepartmentVendas:  true,
	models.DepartmentCS:      true,
	models.DepartmentSuporte: true,
}

var validContentTypes = map[string]bool{
	models.ContentText:     true,
	models.ContentImage:    true,
	models.ContentAudio:    true,
	models.ContentDocument: true,
	models.ContentTemplate: true,
}

// ConversationService manages messaging threads and their messages
type ConversationService struct {
	conversations ports.ConversationRepository
	messages      ports.MessageRepository
	leads         ports.LeadRepository
	students      ports.StudentRepository
	users         ports.UserRepository
	tx            ports.Transactor
	outbox        ports.EventOutbox
}

// NewConversationService creates a new ConversationService
func NewConversationService(repos Repositories, infra Infrastructure) *ConversationService {
	return &ConversationService{
		conversations: repos.Conversations,
		messages:      repos.Messages,
		leads:         repos.Leads,
		students:      repos.Students,
		users:         repos.Users,
		tx:            infra.Tx,
		outbox:        infra.Outbox,
	}
}

// List returns the newest conversations, most recent message first
func (s *ConversationService) List(ctx context.Context, identity auth.Identity, filter models.ConversationFilter) ([]models.Conversation, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, apperrors.NewValidationError("status", "Status inválido")
	}
	if filter.Department != "" && !validDepartments[filter.Department] {
		return nil, apperrors.NewValidationError("department", "Departamento inválido")
	}
	filter.OrganizationID = identity.OrganizationID()
	filter.Limit = ConversationListLimit
	conversations, err := s.conversations.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return SortConversations(conversations), nil
}

// SortConversations fills missing contact names and orders by last message, newest first
func SortConversations(conversations []models.Conversation) []models.Conversation {
	for i := range conversations {
		if strings.TrimSpace(conversations[i].ContactName) == "" {
			conversations[i].ContactName = constants.DefaultUnknownContact
		}
	}
	sort.SliceStable(conversations, func(i, j int) bool {
		a, b := conversations[i].LastMessageAt, conversations[j].LastMessageAt
		if a == nil || b == nil {
			return a != nil && b == nil
		}
		return a.After(*b)
	})
	return conversations
}

// Get loads one conversation
func (s *ConversationService) Get(ctx context.Context, identity auth.Identity, id string) (*models.Conversation, error) {
	conversation, err := s.get(ctx, identity.OrganizationID(), id)
	if err != nil {
		return nil, err
	}
	if conversation.ContactName == "" {
		conversation.ContactName = constants.DefaultUnknownContact
	}
	return conversation, nil
}

// ByStudent lists the conversations of a student
func (s *ConversationService) ByStudent(ctx context.Context, identity auth.Identity, studentID string) ([]models.Conversation, error) {
	conversations, err := s.conversations.ListByStudent(ctx, identity.OrganizationID(), studentID)
	if err != nil {
		return nil, err
	}
	return SortConversations(conversations), nil
}

// ByLead lists the conversations of a lead
func (s *ConversationService) ByLead(ctx context.Context, identity auth.Identity, leadID string) ([]models.Conversation, error) {
	conversations, err := s.conversations.ListByLead(ctx, identity.OrganizationID(), leadID)
	if err != nil {
		return nil, err
	}
	return SortConversations(conversations), nil
}

// Create opens a conversation with a lead or a student
func (s *ConversationService) Create(ctx context.Context, identity auth.Identity, input models.ConversationInput) (*models.Conversation, error) {
	orgID := identity.OrganizationID()
	if !validChannels[input.Channel] {
		return nil, apperrors.NewValidationError("channel", "Canal inválido")
	}
	if !validDepartments[input.Department] {
		return nil, apperrors.NewValidationError("department", "Departamento inválido")
	}
	leadID := utils.NonEmptyPtr(strings.TrimSpace(utils.Deref(input.LeadID)))
	studentID := utils.NonEmptyPtr(strings.TrimSpace(utils.Deref(input.StudentID)))
	if leadID == nil && studentID == nil {
		return nil, apperrors.NewValidationError("leadId", "Informe um lead ou um aluno")
	}
	if err := s.checkContact(ctx, orgID, leadID, studentID); err != nil {
		return nil, err
	}

	now := nowFunc()
	conversation := &models.Conversation{
		ID:             utils.GenerateID(),
		OrganizationID: orgID,
		LeadID:         leadID,
		StudentID:      studentID,
		Channel:        input.Channel,
		Department:     input.Department,
		Status:         models.ConversationAguardandoAtendente,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := applyConversationInput(conversation, input); err != nil {
		return nil, err
	}

	err := withinTx(ctx, s.tx, func(ctx context.Context) error {
		if err := s.conversations.Create(ctx, conversation); err != nil {
			return err
		}
		return s.publishConversation(ctx, conversation, identity.Subject)
	})
	if err != nil {
		return nil, err
	}
	return conversation, nil
}

// Update patches status, assignee, department and satisfaction
func (s *ConversationService) Update(ctx context.Context, identity auth.Identity, id string, input models.ConversationInput) (*models.Conversation, error) {
	conversation, err := s.get(ctx, identity.OrganizationID(), id)
	if err != nil {
		return nil, err
	}
	if input.Channel != "" {
		if !validChannels[input.Channel] {
			return nil, apperrors.NewValidationError("channel", "Canal inválido")
		}
		conversation.Channel = input.Channel
	}
	if input.Department != "" {
		if !validDepartments[input.Department] {
			return nil, apperrors.NewValidationError("department", "Departamento inválido")
		}
		conversation.Department = input.Department
	}
	if err := applyConversationInput(conversation, input); err != nil {
		return nil, err
	}
	conversation.UpdatedAt = nowFunc()

	err = withinTx(ctx, s.tx, func(ctx context.Context) error {
		if err := s.conversations.Update(ctx, conversation); err != nil {
			return err
		}
		return s.publishConversation(ctx, conversation, identity.Subject)
	})
	if err != nil {
		return nil, err
	}
	return conversation, nil
}

func applyConversationInput(c *models.Conversation, input models.ConversationInput) error {
	if input.Status != nil {
		status := models.ConversationStatus(*input.Status)
		if !status.Valid() {
			return apperrors.NewValidationError("status", "Status inválido")
		}
		c.Status = status
	}
	if input.AssignedTo != nil {
		c.AssignedTo = utils.NonEmptyPtr(strings.TrimSpace(*input.AssignedTo))
	}
	if input.SatisfactionScore != nil {
		if *input.SatisfactionScore < 1 || *input.SatisfactionScore > 5 {
			return apperrors.NewValidationError("satisfactionScore", "Avaliação deve estar entre 1 e 5")
		}
		c.SatisfactionScore = input.SatisfactionScore
	}
	return nil
}

// ListMessages returns the messages of a conversation in chronological order
func (s *ConversationService) ListMessages(ctx context.Context, identity auth.Identity, conversationID string) ([]models.Message, error) {
	if _, err := s.get(ctx, identity.OrganizationID(), conversationID); err != nil {
		return nil, err
	}
	messages, err := s.messages.ListByConversation(ctx, identity.OrganizationID(), conversationID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})
	return messages, nil
}

// Send stores an agent message and bumps the conversation preview
func (s *ConversationService) Send(ctx context.Context, identity auth.Identity, input models.SendMessageInput) (*models.Message, error) {
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return nil, apperrors.NewValidationError("content", "Mensagem vazia")
	}
	contentType := input.ContentType
	if contentType == "" {
		contentType = models.ContentText
	}
	if !validContentTypes[contentType] {
		return nil, apperrors.NewValidationError("contentType", "Tipo de conteúdo inválido")
	}
	conversation, err := s.get(ctx, identity.OrganizationID(), input.ConversationID)
	if err != nil {
		return nil, err
	}

	now := nowFunc()
	message := &models.Message{
		ID:             utils.GenerateID(),
		OrganizationID: conversation.OrganizationID,
		ConversationID: conversation.ID,
		Sender:         models.SenderAgent,
		SenderID:       utils.NonEmptyPtr(actorUserID(ctx, s.users, identity)),
		Content:        content,
		ContentType:    contentType,
		MediaURL:       input.MediaURL,
		Status:         models.MessageEnviando,
		CreatedAt:      now,
	}
	conversation.LastMessage = &content
	conversation.LastMessageAt = &now
	conversation.UpdatedAt = now
	if conversation.Status == models.ConversationAguardandoAtendente {
		conversation.Status = models.ConversationEmAtendimento
	}

	err = withinTx(ctx, s.tx, func(ctx context.Context) error {
		if err := s.messages.Create(ctx, message); err != nil {
			return err
		}
		if err := s.conversations.Update(ctx, conversation); err != nil {
			return err
		}
		if err := publish(ctx, s.outbox, events.MessageCreated, events.Payload{
			OrganizationID: message.OrganizationID,
			EntityType:     "message",
			EntityID:       message.ID,
			ActorID:        identity.Subject,
			Data:           messageData(message),
		}); err != nil {
			return err
		}
		return s.publishConversation(ctx, conversation, identity.Subject)
	})
	if err != nil {
		return nil, err
	}
	return message, nil
}

// UpdateMessageStatus sets the delivery status of a message located by
// provider id first and internal id second
func (s *ConversationService) UpdateMessageStatus(ctx context.Context, messageID string, status models.MessageStatus) (*models.Message, error) {
	message, err := s.messages.FindByExternalID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if message == nil {
		message, err = s.messages.GetByID(ctx, messageID)
		if err != nil {
			return nil, err
		}
	}
	if message == nil {
		return nil, apperrors.NewNotFoundError("Mensagem", messageID)
	}
	if message.Status == status {
		return message, nil
	}
	message.Status = status

	err = withinTx(ctx, s.tx, func(ctx context.Context) error {
		if err := s.messages.UpdateStatus(ctx, message.ID, status); err != nil {
			return err
		}
		return publish(ctx, s.outbox, events.MessageStatusChanged, events.Payload{
			OrganizationID: message.OrganizationID,
			EntityType:     "message",
			EntityID:       message.ID,
			Data: map[string]interface{}{
				"conversationId": message.ConversationID,
				"status":         string(status),
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return message, nil
}

func (s *ConversationService) publishConversation(ctx context.Context, c *models.Conversation, actorID string) error {
	data := map[string]interface{}{
		"status":     string(c.Status),
		"department": c.Department,
	}
	if c.LastMessage != nil {
		data["lastMessage"] = *c.LastMessage
	}
	if c.LastMessageAt != nil {
		data["lastMessageAt"] = c.LastMessageAt
	}
	return publish(ctx, s.outbox, events.ConversationUpdated, events.Payload{
		OrganizationID: c.OrganizationID,
		EntityType:     "conversation",
		EntityID:       c.ID,
		ActorID:        actorID,
		Data:           data,
	})
}

func messageData(m *models.Message) map[string]interface{} {
	return map[string]interface{}{
		"conversationId": m.ConversationID,
		"sender":         m.Sender,
		"content":        m.Content,
		"contentType":    m.ContentType,
		"status":         string(m.Status),
		"createdAt":      m.CreatedAt,
	}
}

func (s *ConversationService) checkContact(ctx context.Context, orgID string, leadID, studentID *string) error {
	if leadID != nil {
		lead, err := s.leads.GetByID(ctx, orgID, *leadID)
		if err != nil {
			return err
		}
		if lead == nil {
			return apperrors.NewNotFoundError("Lead", *leadID)
		}
	}
	if studentID != nil {
		student, err := s.students.GetByID(ctx, orgID, *studentID)
		if err != nil {
			return err
		}
		if student == nil {
			return apperrors.NewNotFoundError("Aluno", *studentID)
		}
	}
	return nil
}

func (s *ConversationService) get(ctx context.Context, orgID, id string) (*models.Conversation, error) {
	conversation, err := s.conversations.GetByID(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if conversation == nil {
		return nil, apperrors.NewNotFoundError("Conversa", id)
	}
	return conversation, nil
}
