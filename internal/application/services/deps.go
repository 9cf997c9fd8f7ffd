package services

import (
	"context"

	"github.com/gpus/backend/internal/domain/ports"
	"github.com/gpus/backend/pkg/asaas"
	"github.com/gpus/backend/pkg/encryption"
)

// Repositories groups the persistence ports the services depend on
type Repositories struct {
	Leads          ports.LeadRepository
	Tags           ports.TagRepository
	Students       ports.StudentRepository
	Enrollments    ports.EnrollmentRepository
	Conversations  ports.ConversationRepository
	Messages       ports.MessageRepository
	Tasks          ports.TaskRepository
	CustomFields   ports.CustomFieldRepository
	Activities     ports.ActivityRepository
	Notifications  ports.NotificationRepository
	Settings       ports.SettingRepository
	Objections     ports.ObjectionRepository
	MarketingLeads ports.MarketingLeadRepository
	Email          ports.EmailRepository
	Payments       ports.PaymentRepository
	Users          ports.UserRepository
	LGPD           ports.LGPDRepository
	Dashboard      ports.DashboardRepository
}

// AsaasGateway is the subset of the Asaas client the services call
type AsaasGateway interface {
	CreateCustomer(ctx context.Context, payload asaas.CustomerPayload) (*asaas.Customer, error)
}

var _ AsaasGateway = (*asaas.Client)(nil)

// Infrastructure groups the adapters shared by the services. Every adapter
// except Cipher may be nil.
type Infrastructure struct {
	Tx                    ports.Transactor
	Outbox                ports.EventOutbox
	Queue                 ports.TaskQueue
	Limiter               ports.RateLimiter
	Cache                 ports.Cache
	Cipher                *encryption.Cipher
	Asaas                 AsaasGateway
	DefaultOrganizationID string
}
