package services

import (
	"context"
	"database/sql"
	"log"
	"time"

	"github.com/gpus/backend/internal/domain/events"
	"github.com/gpus/backend/internal/domain/ports"
	"github.com/gpus/backend/internal/infrastructure/persistence"
)

// Background job parameters
const (
	OutboxRetention    = 7 * 24 * time.Hour
	IdleLeadDays       = 7
	IdleLeadBatchLimit = 200
)

// realtimeEvents are pushed to the sockets of the event's organization
var realtimeEvents = []events.EventType{
	events.MessageCreated,
	events.MessageStatusChanged,
	events.ConversationUpdated,
}

// contactEvents create or refresh an e-mail marketing contact
var contactEvents = []events.EventType{
	events.LeadCreated,
	events.StudentCreated,
	events.MarketingLeadCreated,
}

// ServiceManager orchestrates all services with dependency injection
type ServiceManager struct {
	Repos    Repositories
	Infra    Infrastructure
	EventBus *EventBus
	Outbox   *OutboxService

	Permissions    *PermissionService
	Activities     *ActivityService
	Notifications  *NotificationService
	Settings       *SettingsService
	CustomFields   *CustomFieldService
	Leads          *LeadService
	Tags           *TagService
	Objections     *ObjectionService
	Referrals      *ReferralService
	LGPD           *LGPDService
	Students       *StudentService
	Enrollments    *EnrollmentService
	Conversations  *ConversationService
	Tasks          *TaskService
	Email          *EmailMarketingService
	MarketingLeads *MarketingLeadService
	Payments       *PaymentService
	Users          *UserService
	Dashboard      *DashboardService
}

// NewRepositories builds the MySQL repositories over one pool
func NewRepositories(db *sql.DB) Repositories {
	return Repositories{
		Leads:          persistence.NewLeadRepository(db),
		Tags:           persistence.NewTagRepository(db),
		Students:       persistence.NewStudentRepository(db),
		Enrollments:    persistence.NewEnrollmentRepository(db),
		Conversations:  persistence.NewConversationRepository(db),
		Messages:       persistence.NewMessageRepository(db),
		Tasks:          persistence.NewTaskRepository(db),
		CustomFields:   persistence.NewCustomFieldRepository(db),
		Activities:     persistence.NewActivityRepository(db),
		Notifications:  persistence.NewNotificationRepository(db),
		Settings:       persistence.NewSettingRepository(db),
		Objections:     persistence.NewObjectionRepository(db),
		MarketingLeads: persistence.NewMarketingLeadRepository(db),
		Email:          persistence.NewEmailRepository(db),
		Payments:       persistence.NewPaymentRepository(db),
		Users:          persistence.NewUserRepository(db),
		LGPD:           persistence.NewLGPDRepository(db),
		Dashboard:      persistence.NewDashboardRepository(db),
	}
}

// NewServiceManager wires every service over db. The transaction manager and
// the outbox are created here when infra does not carry them.
func NewServiceManager(db *sql.DB, infra Infrastructure) *ServiceManager {
	sm := &ServiceManager{Repos: NewRepositories(db), EventBus: NewEventBus()}

	if infra.Tx == nil {
		infra.Tx = persistence.NewTransactionManager(db)
	}
	if infra.Outbox == nil {
		sm.Outbox = NewOutboxService(persistence.NewOutboxRepository(db), sm.EventBus, infra.Tx)
		infra.Outbox = sm.Outbox
	}
	sm.Infra = infra
	sm.wire()
	return sm
}

// NewServiceManagerWith wires services over prebuilt repositories (tests, tools)
func NewServiceManagerWith(repos Repositories, infra Infrastructure) *ServiceManager {
	sm := &ServiceManager{Repos: repos, Infra: infra, EventBus: NewEventBus()}
	sm.wire()
	return sm
}

func (sm *ServiceManager) wire() {
	repos, infra := sm.Repos, sm.Infra

	sm.Permissions = NewPermissionService(repos.Users, infra.Cache)
	sm.Activities = NewActivityService(repos)
	sm.Notifications = NewNotificationService(repos)
	sm.Settings = NewSettingsService(repos, sm.Permissions, infra.Cipher)
	sm.CustomFields = NewCustomFieldService(repos.CustomFields, sm.Permissions)
	sm.Leads = NewLeadService(repos, sm.CustomFields, infra)
	sm.Tags = NewTagService(repos)
	sm.Objections = NewObjectionService(repos)
	sm.Referrals = NewReferralService(repos, infra)
	sm.LGPD = NewLGPDService(repos, sm.Permissions, infra)
	sm.Students = NewStudentService(repos, sm.Permissions, sm.LGPD, infra)
	sm.Enrollments = NewEnrollmentService(repos, infra)
	sm.Conversations = NewConversationService(repos, infra)
	sm.Tasks = NewTaskService(repos, sm.Notifications, infra)
	sm.Email = NewEmailMarketingService(repos)
	sm.MarketingLeads = NewMarketingLeadService(repos, sm.Leads, sm.LGPD, infra)
	sm.Payments = NewPaymentService(repos, sm.Notifications, infra)
	sm.Users = NewUserService(repos, sm.Permissions, sm.LGPD, infra)
	sm.Dashboard = NewDashboardService(repos, infra)
}

// SubscribeRealtime forwards messaging events to the sockets of their organization
func (sm *ServiceManager) SubscribeRealtime(b ports.Broadcaster, encode func(eventType string, data interface{}) []byte) {
	for _, eventType := range realtimeEvents {
		eventType := eventType
		sm.EventBus.Subscribe(eventType, func(_ context.Context, p events.Payload) error {
			frame := map[string]interface{}{"id": p.EntityID}
			for k, v := range p.Data {
				frame[k] = v
			}
			if payload := encode(eventType.String(), frame); payload != nil {
				b.BroadcastOrganization(p.OrganizationID, payload)
			}
			return nil
		})
	}
}

// SubscribeContactSync enqueues an e-mail contact sync for new leads, students and captures
func (sm *ServiceManager) SubscribeContactSync() {
	for _, eventType := range contactEvents {
		sm.EventBus.Subscribe(eventType, func(ctx context.Context, p events.Payload) error {
			if p.Email == "" {
				return nil
			}
			task := EmailSyncTask{
				OrganizationID: p.OrganizationID,
				Source:         contactSource(p.EntityType),
				SourceID:       p.EntityID,
				Email:          p.Email,
				Name:           p.Name,
			}
			if sm.Infra.Queue == nil {
				_, _, err := sm.Email.UpsertContact(ctx, task)
				return err
			}
			return sm.Infra.Queue.Enqueue(ctx, ports.TaskEmailSyncContact, task)
		})
	}
}

func contactSource(entityType string) string {
	switch entityType {
	case "student":
		return "student"
	case "marketing_lead":
		return "marketing_lead"
	}
	return "lead"
}

// RegisterJobs binds the scheduled_jobs rows to their implementations
func (sm *ServiceManager) RegisterJobs(s *SchedulerService) {
	s.Register(JobTaskReminders, func(ctx context.Context) error {
		_, err := sm.Tasks.SendDueReminders(ctx)
		return err
	})
	s.Register(JobIdleLeadReactivation, func(ctx context.Context) error {
		_, err := sm.Leads.ReactivateIdle(ctx, IdleLeadDays, IdleLeadBatchLimit)
		return err
	})
	s.Register(JobChurnRefresh, func(ctx context.Context) error {
		_, err := sm.Students.RefreshChurnRisk(ctx)
		return err
	})
	s.Register(JobLGPDRetention, func(ctx context.Context) error {
		_, err := sm.LGPD.ApplyRetention(ctx)
		return err
	})
	s.Register(JobAsaasWebhookRetry, func(ctx context.Context) error {
		_, err := sm.Payments.RetryFailed(ctx)
		return err
	})
	s.Register(JobAsaasWebhookPurge, func(ctx context.Context) error {
		_, err := sm.Payments.PurgeExpired(ctx)
		return err
	})
	s.Register(JobOutboxCleanup, func(ctx context.Context) error {
		if sm.Outbox == nil {
			return nil
		}
		n, err := sm.Outbox.CleanupProcessed(ctx, OutboxRetention)
		if err == nil && n > 0 {
			log.Printf("🧹 Removed %d processed outbox event(s)", n)
		}
		return err
	})
	s.Register(JobDailyMetrics, func(ctx context.Context) error {
		_, err := sm.Dashboard.SnapshotDailyMetrics(ctx)
		return err
	})
}

// StartOutboxWorker starts the background outbox event processing worker
func (sm *ServiceManager) StartOutboxWorker(interval time.Duration) {
	if sm.Outbox != nil {
		sm.Outbox.StartWorker(interval)
	}
}

// StopOutboxWorker stops the outbox worker gracefully
func (sm *ServiceManager) StopOutboxWorker() {
	if sm.Outbox != nil {
		sm.Outbox.StopWorker()
	}
}
