package ports

import (
	"context"
	"time"

	"github.com/gpus/backend/internal/domain/models"
)

// Repository lookups return (nil, nil) when the row does not exist or belongs
// to another organization. Callers translate that into a NotFound error.

// LeadRepository persists leads
type LeadRepository interface {
	Create(ctx context.Context, lead *models.Lead) error
	GetByID(ctx context.Context, orgID, id string) (*models.Lead, error)
	FindByPhone(ctx context.Context, orgID, phone string) (*models.Lead, error)
	List(ctx context.Context, filter models.LeadFilter) ([]models.Lead, error)
	Recent(ctx context.Context, orgID string, limit int) ([]models.Lead, error)
	Search(ctx context.Context, orgID, query string, limit int) ([]models.Lead, error)
	Update(ctx context.Context, lead *models.Lead) error
	Delete(ctx context.Context, orgID, id string) error
	ListForDeduplication(ctx context.Context, orgID string) ([]models.Lead, error)
	ListIdle(ctx context.Context, stages []models.LeadStage, updatedBefore time.Time, limit int) ([]models.Lead, error)
	ListReferrals(ctx context.Context, orgID, referrerID string) ([]models.Lead, error)
	ReferralStats(ctx context.Context, orgID string) (*models.ReferralStats, error)
	AddCashback(ctx context.Context, id string, amount float64) error
	MarkCashbackPaid(ctx context.Context, id string, paidAt time.Time) (bool, error)
}

// TagRepository persists tags and lead links
type TagRepository interface {
	List(ctx context.Context, orgID string) ([]models.Tag, error)
	Search(ctx context.Context, orgID, query string) ([]models.Tag, error)
	GetByID(ctx context.Context, orgID, id string) (*models.Tag, error)
	FindByName(ctx context.Context, orgID, name string) (*models.Tag, error)
	Create(ctx context.Context, tag *models.Tag) error
	Delete(ctx context.Context, orgID, id string) error
	AddToLead(ctx context.Context, orgID, leadID, tagID string) error
	RemoveFromLead(ctx context.Context, orgID, leadID, tagID string) error
	ListByLead(ctx context.Context, orgID, leadID string) ([]models.Tag, error)
}

// StudentRepository persists students
type StudentRepository interface {
	Create(ctx context.Context, student *models.Student) error
	GetByID(ctx context.Context, orgID, id string) (*models.Student, error)
	FindByCPFHash(ctx context.Context, orgID, hash string) (*models.Student, error)
	FindForCustomer(ctx context.Context, cpfHash, email string) (*models.Student, error)
	FindByAsaasCustomer(ctx context.Context, customerID string) (*models.Student, error)
	FindByLeadID(ctx context.Context, orgID, leadID string) (*models.Student, error)
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, error)
	ListActive(ctx context.Context, orgID string) ([]models.Student, error)
	ListRetentionExpired(ctx context.Context, now time.Time, limit int) ([]models.Student, error)
	Update(ctx context.Context, student *models.Student) error
	UpdateChurnRisk(ctx context.Context, id string, risk models.ChurnRisk) error
	SetProducts(ctx context.Context, id string, products []string) error
	SetAsaasCustomer(ctx context.Context, id, customerID string) error
}

// EnrollmentRepository persists enrollments
type EnrollmentRepository interface {
	Create(ctx context.Context, enrollment *models.Enrollment) error
	GetByID(ctx context.Context, orgID, id string) (*models.Enrollment, error)
	ListByStudent(ctx context.Context, orgID, studentID string) ([]models.Enrollment, error)
	Update(ctx context.Context, enrollment *models.Enrollment) error
	LatePaymentStudentIDs(ctx context.Context, orgID string) (map[string]bool, error)
	CancelByStudent(ctx context.Context, studentID string) (int64, error)
}

// ConversationRepository persists conversations
type ConversationRepository interface {
	List(ctx context.Context, filter models.ConversationFilter) ([]models.Conversation, error)
	GetByID(ctx context.Context, orgID, id string) (*models.Conversation, error)
	ListByStudent(ctx context.Context, orgID, studentID string) ([]models.Conversation, error)
	ListByLead(ctx context.Context, orgID, leadID string) ([]models.Conversation, error)
	Create(ctx context.Context, conversation *models.Conversation) error
	Update(ctx context.Context, conversation *models.Conversation) error
	DeleteByStudent(ctx context.Context, studentID string) (int64, error)
}

// MessageRepository persists messages
type MessageRepository interface {
	ListByConversation(ctx context.Context, orgID, conversationID string) ([]models.Message, error)
	Create(ctx context.Context, message *models.Message) error
	GetByID(ctx context.Context, id string) (*models.Message, error)
	FindByExternalID(ctx context.Context, externalID string) (*models.Message, error)
	UpdateStatus(ctx context.Context, id string, status models.MessageStatus) error
}

// TaskRepository persists follow-up tasks
type TaskRepository interface {
	List(ctx context.Context, filter models.TaskFilter) ([]models.Task, error)
	GetByID(ctx context.Context, orgID, id string) (*models.Task, error)
	Create(ctx context.Context, task *models.Task) error
	Update(ctx context.Context, task *models.Task) error
	Delete(ctx context.Context, orgID, id string) error
	ListDueUnreminded(ctx context.Context, from, to time.Time) ([]models.Task, error)
	MarkReminded(ctx context.Context, id string, at time.Time) error
}

// CustomFieldRepository persists custom field definitions and values
type CustomFieldRepository interface {
	List(ctx context.Context, orgID, entityType string, includeInactive bool) ([]models.CustomField, error)
	GetByID(ctx context.Context, orgID, id string) (*models.CustomField, error)
	Create(ctx context.Context, field *models.CustomField) error
	Update(ctx context.Context, field *models.CustomField) error
	CountActive(ctx context.Context, orgID, entityType string) (int, error)
	UpsertValue(ctx context.Context, value *models.CustomFieldValue) error
	ListValues(ctx context.Context, orgID, entityType, entityID string) ([]models.CustomFieldValue, error)
}

// ActivityRepository persists the activity timeline
type ActivityRepository interface {
	Create(ctx context.Context, activity *models.Activity) error
	ListByLead(ctx context.Context, orgID, leadID string, limit int) ([]models.Activity, error)
	ListByStudent(ctx context.Context, orgID, studentID string, limit int) ([]models.Activity, error)
}

// NotificationRepository persists in-app notifications
type NotificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	ListByRecipient(ctx context.Context, orgID, recipientID string, unreadOnly bool, limit int) ([]models.Notification, error)
	MarkRead(ctx context.Context, orgID, recipientID, id string) (bool, error)
	MarkAllRead(ctx context.Context, orgID, recipientID string) (int64, error)
}

// SettingRepository persists organization settings
type SettingRepository interface {
	List(ctx context.Context, orgID string) ([]models.Setting, error)
	Get(ctx context.Context, orgID, key string) (*models.Setting, error)
	Upsert(ctx context.Context, setting *models.Setting) error
}

// ObjectionRepository persists sales objections
type ObjectionRepository interface {
	ListByLead(ctx context.Context, orgID, leadID string) ([]models.Objection, error)
	ListByOrganization(ctx context.Context, orgID string) ([]models.Objection, error)
	GetByID(ctx context.Context, orgID, id string) (*models.Objection, error)
	Create(ctx context.Context, objection *models.Objection) error
	Update(ctx context.Context, objection *models.Objection) error
	Delete(ctx context.Context, orgID, id string) error
}

// MarketingLeadRepository persists public captures
type MarketingLeadRepository interface {
	Create(ctx context.Context, lead *models.MarketingLead) error
	GetByID(ctx context.Context, orgID, id string) (*models.MarketingLead, error)
	FindByEmail(ctx context.Context, orgID, email string) (*models.MarketingLead, error)
	List(ctx context.Context, filter models.MarketingLeadFilter) ([]models.MarketingLead, error)
	UpdateStatus(ctx context.Context, orgID, id, status string) error
	SetConverted(ctx context.Context, id, leadID string) error
}

// EmailRepository persists e-mail marketing contacts, lists, campaigns, templates and events
type EmailRepository interface {
	UpsertContact(ctx context.Context, contact *models.EmailContact) (bool, error)
	GetContact(ctx context.Context, orgID, id string) (*models.EmailContact, error)
	GetContactByEmail(ctx context.Context, orgID, email string) (*models.EmailContact, error)
	ListContacts(ctx context.Context, orgID, status string, offset, limit int) ([]models.EmailContact, error)
	UpdateContactSubscription(ctx context.Context, orgID, id, status string) error
	UnsubscribeByEmail(ctx context.Context, orgID, email string) error

	ListLists(ctx context.Context, orgID string) ([]models.EmailList, error)
	GetList(ctx context.Context, orgID, id string) (*models.EmailList, error)
	CreateList(ctx context.Context, list *models.EmailList) error
	UpdateList(ctx context.Context, list *models.EmailList) error
	DeleteList(ctx context.Context, orgID, id string) error
	AddContactToList(ctx context.Context, listID, contactID string) error
	RemoveContactFromList(ctx context.Context, listID, contactID string) error

	ListCampaigns(ctx context.Context, orgID, status string) ([]models.EmailCampaign, error)
	GetCampaign(ctx context.Context, orgID, id string) (*models.EmailCampaign, error)
	CreateCampaign(ctx context.Context, campaign *models.EmailCampaign) error
	UpdateCampaign(ctx context.Context, campaign *models.EmailCampaign) error
	DeleteCampaign(ctx context.Context, orgID, id string) error
	IncrementCampaignStat(ctx context.Context, campaignID, eventType string) error

	ListTemplates(ctx context.Context, orgID string) ([]models.EmailTemplate, error)
	GetTemplate(ctx context.Context, orgID, id string) (*models.EmailTemplate, error)
	CreateTemplate(ctx context.Context, template *models.EmailTemplate) error
	UpdateTemplate(ctx context.Context, template *models.EmailTemplate) error
	DeleteTemplate(ctx context.Context, orgID, id string) error

	CreateEvent(ctx context.Context, event *models.EmailEvent) error
	ListEventsByCampaign(ctx context.Context, orgID, campaignID string, limit int) ([]models.EmailEvent, error)
	ListEventsByContact(ctx context.Context, orgID, contactID string, limit int) ([]models.EmailEvent, error)
}

// PaymentRepository persists Asaas mirrors and received webhooks
type PaymentRepository interface {
	UpsertPayment(ctx context.Context, payment *models.Payment) error
	GetPaymentByAsaasID(ctx context.Context, asaasID string) (*models.Payment, error)
	ListPaymentsByStudent(ctx context.Context, orgID, studentID string) ([]models.Payment, error)
	FinancialSummary(ctx context.Context, orgID string) (*models.FinancialSummary, error)
	UpsertSubscription(ctx context.Context, subscription *models.Subscription) error

	CreateWebhook(ctx context.Context, webhook *models.AsaasWebhook) error
	FindWebhookByKey(ctx context.Context, key string) (*models.AsaasWebhook, error)
	GetWebhook(ctx context.Context, id string) (*models.AsaasWebhook, error)
	UpdateWebhook(ctx context.Context, webhook *models.AsaasWebhook) error
	ListRetryableWebhooks(ctx context.Context, now time.Time, maxAttempts, limit int) ([]models.AsaasWebhook, error)
	PurgeExpiredWebhooks(ctx context.Context, now time.Time) (int64, error)
}

// UserRepository persists team members
type UserRepository interface {
	GetByClerkID(ctx context.Context, clerkID string) (*models.User, error)
	GetByID(ctx context.Context, orgID, id string) (*models.User, error)
	FindByEmail(ctx context.Context, orgID, email string) (*models.User, error)
	List(ctx context.Context, orgID string) ([]models.User, error)
	ListActiveByRole(ctx context.Context, orgID, role string) ([]models.User, error)
	Search(ctx context.Context, orgID, query string, limit int) ([]models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
}

// LGPDRepository persists data-subject requests, audit trail, consents, retention and breaches
type LGPDRepository interface {
	CreateRequest(ctx context.Context, req *models.LGPDRequest) error
	GetRequest(ctx context.Context, orgID, id string) (*models.LGPDRequest, error)
	UpdateRequest(ctx context.Context, req *models.LGPDRequest) error
	ListRequests(ctx context.Context, filter models.LGPDRequestFilter) ([]models.LGPDRequest, error)
	ListRequestsSince(ctx context.Context, orgID string, since time.Time) ([]models.LGPDRequest, error)

	CreateAudit(ctx context.Context, entry *models.AuditEntry) error
	ListAudit(ctx context.Context, filter models.AuditFilter) ([]models.AuditEntry, error)
	ListAuditSince(ctx context.Context, orgID string, since time.Time) ([]models.AuditEntry, error)

	CreateConsent(ctx context.Context, consent *models.Consent) error
	GetConsent(ctx context.Context, orgID, id string) (*models.Consent, error)
	UpdateConsent(ctx context.Context, consent *models.Consent) error
	ListConsentsByStudent(ctx context.Context, orgID, studentID string) ([]models.Consent, error)
	ListConsentsSince(ctx context.Context, orgID string, since time.Time) ([]models.Consent, error)
	WithdrawConsentsByStudent(ctx context.Context, studentID, reason string, at time.Time) (int64, error)

	ListRetentionPolicies(ctx context.Context, orgID string) ([]models.RetentionPolicy, error)
	GetRetentionPolicy(ctx context.Context, orgID, id string) (*models.RetentionPolicy, error)
	FindRetentionPolicy(ctx context.Context, orgID, category string) (*models.RetentionPolicy, error)
	UpsertRetentionPolicy(ctx context.Context, policy *models.RetentionPolicy) error
	DeleteRetentionPolicy(ctx context.Context, orgID, id string) error

	CreateBreach(ctx context.Context, breach *models.DataBreach) error
	GetBreach(ctx context.Context, orgID, id string) (*models.DataBreach, error)
	UpdateBreach(ctx context.Context, breach *models.DataBreach) error
	ListBreaches(ctx context.Context, orgID string) ([]models.DataBreach, error)
}

// DashboardRepository aggregates counts across tables
type DashboardRepository interface {
	CollectStats(ctx context.Context, orgID string, monthStart time.Time) (*models.DashboardStats, error)
	SaveDailyMetrics(ctx context.Context, metrics *models.DailyMetrics) error
	ListOrganizationIDs(ctx context.Context) ([]string, error)
}
