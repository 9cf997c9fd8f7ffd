package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"github.com/gpus/backend/internal/domain/events"
	"github.com/gpus/backend/internal/domain/models"
	"github.com/gpus/backend/internal/domain/ports"
	"github.com/gpus/backend/pkg/asaas"
	"github.com/gpus/backend/pkg/auth"
	"github.com/gpus/backend/pkg/constants"
	apperrors "github.com/gpus/backend/pkg/errors"
	"github.com/gpus/backend/pkg/encryption"
	"github.com/gpus/backend/pkg/utils"
)

// Webhook retry policy
const (
	WebhookRetention      = 90 * 24 * time.Hour
	WebhookMaxAttempts    = 5
	WebhookRetryBase      = 60 * time.Second
	WebhookRetryMaxDelay  = 30 * time.Minute
	WebhookRetryMaxJitter = 5 * time.Second
	WebhookRetryBatchSize = 50
)

// Receive outcomes
const (
	WebhookAccepted  = "received"
	WebhookDuplicate = "duplicate"
)

const ignoredEventMessage = "Ignored event type"

// AsaasWebhookTask is the payload of the asaas:webhook task
type AsaasWebhookTask struct {
	WebhookID string `json:"webhookId"`
}

// WebhookRetryDelay is 60s·2^(attempt-1) plus jitter, capped at 30 minutes
func WebhookRetryDelay(attempt int, jitter time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 16 {
		attempt = 16
	}
	delay := WebhookRetryBase*time.Duration(1<<uint(attempt-1)) + jitter
	if delay > WebhookRetryMaxDelay {
		return WebhookRetryMaxDelay
	}
	return delay
}

// WebhookIdempotencyKey derives the dedup key of an Asaas webhook
func WebhookIdempotencyKey(payload asaas.WebhookPayload) string {
	id := payload.ID
	switch {
	case id != "":
	case payload.Payment != nil && payload.Payment.ID != "":
		id = payload.Payment.ID
	case payload.Subscription != nil && payload.Subscription.ID != "":
		id = payload.Subscription.ID
	default:
		id = utils.GenerateID()
	}
	return payload.Event + ":" + id
}

// PaymentService mirrors Asaas charges and processes its webhooks
type PaymentService struct {
	payments      ports.PaymentRepository
	students      ports.StudentRepository
	enrollments   ports.EnrollmentRepository
	activities    ports.ActivityRepository
	notifications *NotificationService
	tx            ports.Transactor
	outbox        ports.EventOutbox
	queue         ports.TaskQueue
	cipher        *encryption.Cipher
	defaultOrgID  string
	jitter        func() time.Duration
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(repos Repositories, notifications *NotificationService, infra Infrastructure) *PaymentService {
	return &PaymentService{
		payments:      repos.Payments,
		students:      repos.Students,
		enrollments:   repos.Enrollments,
		activities:    repos.Activities,
		notifications: notifications,
		tx:            infra.Tx,
		outbox:        infra.Outbox,
		queue:         infra.Queue,
		cipher:        infra.Cipher,
		defaultOrgID:  infra.DefaultOrganizationID,
		jitter: func() time.Duration {
			return time.Duration(rand.Int63n(int64(WebhookRetryMaxJitter)))
		},
	}
}

// ReceiveWebhook stores an authenticated webhook body and schedules its processing.
// A webhook already received returns WebhookDuplicate.
func (s *PaymentService) ReceiveWebhook(ctx context.Context, body []byte) (string, string, error) {
	var payload asaas.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", "", apperrors.Invalid("Payload inválido")
	}
	if strings.TrimSpace(payload.Event) == "" {
		return "", "", apperrors.NewValidationError("event", "Evento ausente")
	}
	if s.cipher == nil {
		return "", "", apperrors.NewInternalError("Falha ao proteger webhook", apperrors.ErrEncryptionKeyUnset)
	}

	key := WebhookIdempotencyKey(payload)
	existing, err := s.payments.FindWebhookByKey(ctx, key)
	if err != nil {
		return "", "", err
	}
	if existing != nil {
		return WebhookDuplicate, existing.ID, nil
	}

	encrypted, err := s.cipher.Encrypt(string(body))
	if err != nil {
		return "", "", err
	}
	now := nowFunc()
	webhook := &models.AsaasWebhook{
		ID:             utils.GenerateID(),
		IdempotencyKey: key,
		Event:          payload.Event,
		Payload:        encrypted,
		Status:         models.WebhookPending,
		RetentionUntil: now.Add(WebhookRetention),
		CreatedAt:      now,
	}
	if err := s.payments.CreateWebhook(ctx, webhook); err != nil {
		if !errors.Is(err, apperrors.ErrDuplicate) {
			return "", "", err
		}
		// lost the insert race to a concurrent delivery
		existing, err := s.payments.FindWebhookByKey(ctx, key)
		if err != nil {
			return "", "", err
		}
		if existing == nil {
			return WebhookDuplicate, "", nil
		}
		return WebhookDuplicate, existing.ID, nil
	}

	if s.queue == nil {
		if err := s.Process(ctx, webhook.ID); err != nil {
			log.Printf("⚠️ Asaas webhook %s failed: %v", webhook.ID, err)
		}
		return WebhookAccepted, webhook.ID, nil
	}
	if err := s.queue.Enqueue(ctx, ports.TaskAsaasWebhook, AsaasWebhookTask{WebhookID: webhook.ID}); err != nil {
		log.Printf("⚠️ Failed to enqueue Asaas webhook %s, processing inline: %v", webhook.ID, err)
		if err := s.Process(ctx, webhook.ID); err != nil {
			log.Printf("⚠️ Asaas webhook %s failed: %v", webhook.ID, err)
		}
	}
	return WebhookAccepted, webhook.ID, nil
}

// Process applies a stored webhook. Failures are recorded on the row with the next retry time.
func (s *PaymentService) Process(ctx context.Context, webhookID string) error {
	webhook, err := s.payments.GetWebhook(ctx, webhookID)
	if err != nil {
		return err
	}
	if webhook == nil {
		return apperrors.NewNotFoundError("Webhook", webhookID)
	}
	if webhook.Status == models.WebhookDone {
		return nil
	}

	webhook.Status = models.WebhookProcessing
	webhook.Attempts++
	if err := s.payments.UpdateWebhook(ctx, webhook); err != nil {
		return err
	}

	note, procErr := s.apply(ctx, webhook)
	now := nowFunc()
	if procErr != nil {
		msg := procErr.Error()
		webhook.Status = models.WebhookFailed
		webhook.Error = &msg
		if webhook.Attempts < WebhookMaxAttempts {
			next := now.Add(WebhookRetryDelay(webhook.Attempts, s.jitter()))
			webhook.NextRetryAt = &next
		} else {
			webhook.NextRetryAt = nil
		}
	} else {
		webhook.Status = models.WebhookDone
		webhook.Error = utils.NonEmptyPtr(note)
		webhook.NextRetryAt = nil
		webhook.ProcessedAt = &now
	}
	if err := s.payments.UpdateWebhook(ctx, webhook); err != nil {
		return err
	}
	return procErr
}

func (s *PaymentService) apply(ctx context.Context, webhook *models.AsaasWebhook) (string, error) {
	raw, err := s.cipher.Decrypt(webhook.Payload)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt payload: %w", err)
	}
	var payload asaas.WebhookPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return "", fmt.Errorf("failed to decode payload: %w", err)
	}

	switch {
	case strings.HasPrefix(payload.Event, "PAYMENT_"):
		if payload.Payment == nil {
			return "", errors.New("payment missing from payload")
		}
		return "", withinTx(ctx, s.tx, func(ctx context.Context) error {
			return s.applyPayment(ctx, payload.Event, payload.Payment)
		})
	case strings.HasPrefix(payload.Event, "SUBSCRIPTION_"):
		if payload.Subscription == nil {
			return "", errors.New("subscription missing from payload")
		}
		return "", s.applySubscription(ctx, payload.Subscription)
	case strings.HasPrefix(payload.Event, "CUSTOMER_"):
		if payload.Customer == nil {
			return "", errors.New("customer missing from payload")
		}
		return "", s.linkCustomer(ctx, payload.Customer)
	}
	return ignoredEventMessage, nil
}

func (s *PaymentService) applyPayment(ctx context.Context, event string, p *asaas.Payment) error {
	student, err := s.students.FindByAsaasCustomer(ctx, p.Customer)
	if err != nil {
		return err
	}
	previous, err := s.payments.GetPaymentByAsaasID(ctx, p.ID)
	if err != nil {
		return err
	}

	orgID := s.defaultOrgID
	if student != nil {
		orgID = student.OrganizationID
	}
	if orgID == "" {
		return fmt.Errorf("no organization for customer %s", p.Customer)
	}

	now := nowFunc()
	payment := &models.Payment{
		ID:                  utils.GenerateID(),
		OrganizationID:      orgID,
		AsaasPaymentID:      p.ID,
		AsaasCustomerID:     p.Customer,
		AsaasSubscriptionID: utils.NonEmptyPtr(p.Subscription),
		Value:               p.Value,
		Status:              p.Status,
		BillingType:         p.BillingType,
		DueDate:             parseAsaasDate(p.DueDate),
		ConfirmedDate:       parseAsaasDate(p.ConfirmedDate),
		PaymentDate:         parseAsaasDate(p.PaymentDate),
		InvoiceURL:          utils.NonEmptyPtr(p.InvoiceURL),
		Description:         utils.NonEmptyPtr(p.Description),
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if p.NetValue > 0 {
		net := p.NetValue
		payment.NetValue = &net
	}
	if p.InstallmentNumber > 0 {
		n := p.InstallmentNumber
		payment.InstallmentNumber = &n
	}
	if payment.Status == "" {
		payment.Status = strings.TrimPrefix(event, "PAYMENT_")
	}

	var enrollment *models.Enrollment
	if student != nil {
		payment.StudentID = &student.ID
		enrollment, err = s.paymentEnrollment(ctx, student, p.ExternalReference)
		if err != nil {
			return err
		}
		if enrollment != nil {
			payment.EnrollmentID = &enrollment.ID
		}
	}
	if err := s.payments.UpsertPayment(ctx, payment); err != nil {
		return err
	}

	alreadyReceived := previous != nil && isReceivedStatus(previous.Status)
	switch event {
	case "PAYMENT_CONFIRMED":
		s.notify(ctx, student, constants.NotificationPaymentConfirmed, p.Value)
	case "PAYMENT_RECEIVED", "PAYMENT_RECEIVED_IN_CASH":
		s.notify(ctx, student, constants.NotificationPaymentReceived, p.Value)
		if enrollment != nil && !alreadyReceived {
			enrollment.PaidInstallments++
			if enrollment.Installments > 0 && enrollment.PaidInstallments >= enrollment.Installments {
				enrollment.PaymentStatus = models.PaymentQuitado
			} else if enrollment.PaymentStatus == models.PaymentAtrasado {
				enrollment.PaymentStatus = models.PaymentEmDia
			}
			enrollment.UpdatedAt = now
			if err := s.enrollments.Update(ctx, enrollment); err != nil {
				return err
			}
		}
		if student != nil && !alreadyReceived {
			activity := newActivity(orgID, constants.ActivityPaymentReceived, fmt.Sprintf("Pagamento recebido: R$ %.2f", p.Value))
			activity.StudentID = &student.ID
			if enrollment != nil {
				activity.EnrollmentID = &enrollment.ID
			}
			if err := s.activities.Create(ctx, activity); err != nil {
				return err
			}
		}
	case "PAYMENT_OVERDUE":
		s.notify(ctx, student, constants.NotificationPaymentOverdue, p.Value)
		if enrollment != nil && enrollment.PaymentStatus != models.PaymentAtrasado {
			enrollment.PaymentStatus = models.PaymentAtrasado
			enrollment.UpdatedAt = now
			if err := s.enrollments.Update(ctx, enrollment); err != nil {
				return err
			}
		}
	}

	return publish(ctx, s.outbox, events.PaymentUpdated, events.Payload{
		OrganizationID: orgID,
		EntityType:     "payment",
		EntityID:       p.ID,
		ActorID:        constants.DefaultSystemActor,
		Data: map[string]interface{}{
			"event":     event,
			"status":    payment.Status,
			"value":     p.Value,
			"studentId": utils.Deref(payment.StudentID),
		},
	})
}

// paymentEnrollment picks the enrollment a charge belongs to: the external
// reference when it names one, else the first enrollment still being paid
func (s *PaymentService) paymentEnrollment(ctx context.Context, student *models.Student, reference string) (*models.Enrollment, error) {
	enrollments, err := s.enrollments.ListByStudent(ctx, student.OrganizationID, student.ID)
	if err != nil {
		return nil, err
	}
	for i := range enrollments {
		if reference != "" && enrollments[i].ID == reference {
			return &enrollments[i], nil
		}
	}
	for i := range enrollments {
		e := enrollments[i]
		if e.Status != models.EnrollmentCancelado && e.PaymentStatus != models.PaymentQuitado && e.PaymentStatus != models.PaymentCancelado {
			return &enrollments[i], nil
		}
	}
	return nil, nil
}

func (s *PaymentService) notify(ctx context.Context, student *models.Student, notificationType string, value float64) {
	if s.notifications == nil || student == nil {
		return
	}
	if err := s.notifications.NotifyPayment(ctx, student, notificationType, value); err != nil {
		log.Printf("⚠️ Failed to notify %s for student %s: %v", notificationType, student.ID, err)
	}
}

func (s *PaymentService) applySubscription(ctx context.Context, sub *asaas.Subscription) error {
	student, err := s.students.FindByAsaasCustomer(ctx, sub.Customer)
	if err != nil {
		return err
	}
	orgID := s.defaultOrgID
	subscription := &models.Subscription{
		ID:                  utils.GenerateID(),
		AsaasSubscriptionID: sub.ID,
		AsaasCustomerID:     sub.Customer,
		Value:               sub.Value,
		Cycle:               sub.Cycle,
		Status:              sub.Status,
		NextDueDate:         parseAsaasDate(sub.NextDueDate),
		UpdatedAt:           nowFunc(),
	}
	if student != nil {
		orgID = student.OrganizationID
		subscription.StudentID = &student.ID
	}
	if orgID == "" {
		return fmt.Errorf("no organization for customer %s", sub.Customer)
	}
	subscription.OrganizationID = orgID
	return s.payments.UpsertSubscription(ctx, subscription)
}

func (s *PaymentService) linkCustomer(ctx context.Context, customer *asaas.Customer) error {
	cpfHash := ""
	if d := utils.OnlyDigits(customer.CpfCnpj); len(d) == 11 {
		cpfHash = encryption.HashCPF(d)
	}
	if cpfHash == "" && customer.Email == "" {
		return nil
	}
	student, err := s.students.FindForCustomer(ctx, cpfHash, strings.ToLower(customer.Email))
	if err != nil {
		return err
	}
	if student == nil || utils.Deref(student.AsaasCustomerID) == customer.ID {
		return nil
	}
	log.Printf("💳 Linking student %s to Asaas customer %s", student.ID, customer.ID)
	return s.students.SetAsaasCustomer(ctx, student.ID, customer.ID)
}

// RetryFailed reprocesses failed webhooks whose retry time has come
func (s *PaymentService) RetryFailed(ctx context.Context) (int, error) {
	webhooks, err := s.payments.ListRetryableWebhooks(ctx, nowFunc(), WebhookMaxAttempts, WebhookRetryBatchSize)
	if err != nil {
		return 0, err
	}
	recovered := 0
	for _, w := range webhooks {
		if err := s.Process(ctx, w.ID); err != nil {
			log.Printf("⚠️ Retry %d of Asaas webhook %s failed: %v", w.Attempts+1, w.ID, err)
			continue
		}
		recovered++
	}
	if len(webhooks) > 0 {
		log.Printf("🔁 Retried %d Asaas webhook(s), %d recovered", len(webhooks), recovered)
	}
	return recovered, nil
}

// PurgeExpired deletes webhooks past their retention
func (s *PaymentService) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.payments.PurgeExpiredWebhooks(ctx, nowFunc())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		log.Printf("🧹 Purged %d expired Asaas webhook(s)", n)
	}
	return n, nil
}

// ListByStudent returns the charges of a student
func (s *PaymentService) ListByStudent(ctx context.Context, identity auth.Identity, studentID string) ([]models.Payment, error) {
	student, err := s.students.GetByID(ctx, identity.OrganizationID(), studentID)
	if err != nil {
		return nil, err
	}
	if student == nil {
		return nil, apperrors.NewNotFoundError("Aluno", studentID)
	}
	return s.payments.ListPaymentsByStudent(ctx, identity.OrganizationID(), studentID)
}

// Summary sums paid, pending and overdue charges of the organization
func (s *PaymentService) Summary(ctx context.Context, identity auth.Identity) (*models.FinancialSummary, error) {
	summary, err := s.payments.FinancialSummary(ctx, identity.OrganizationID())
	if err != nil {
		return nil, err
	}
	summary.TotalPaid = round2(summary.TotalPaid)
	summary.TotalPending = round2(summary.TotalPending)
	summary.TotalOverdue = round2(summary.TotalOverdue)
	return summary, nil
}

func isReceivedStatus(status string) bool {
	return status == "RECEIVED" || status == "RECEIVED_IN_CASH"
}

// parseAsaasDate reads the API's YYYY-MM-DD dates
func parseAsaasDate(value string) *time.Time {
	if value == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil
	}
	return &t
}
