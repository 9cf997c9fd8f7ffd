package models

import "time"

// Payment is a local mirror of an Asaas charge
type Payment struct {
	ID                  string     `json:"id"`
	OrganizationID      string     `json:"organizationId"`
	AsaasPaymentID      string     `json:"asaasPaymentId"`
	AsaasCustomerID     string     `json:"asaasCustomerId"`
	AsaasSubscriptionID *string    `json:"asaasSubscriptionId,omitempty"`
	StudentID           *string    `json:"studentId,omitempty"`
	EnrollmentID        *string    `json:"enrollmentId,omitempty"`
	Value               float64    `json:"value"`
	NetValue            *float64   `json:"netValue,omitempty"`
	Status              string     `json:"status"`
	BillingType         string     `json:"billingType"`
	DueDate             *time.Time `json:"dueDate,omitempty"`
	ConfirmedDate       *time.Time `json:"confirmedDate,omitempty"`
	PaymentDate         *time.Time `json:"paymentDate,omitempty"`
	InvoiceURL          *string    `json:"invoiceUrl,omitempty"`
	Description         *string    `json:"description,omitempty"`
	InstallmentNumber   *int       `json:"installmentNumber,omitempty"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

// Subscription is a local mirror of an Asaas subscription
type Subscription struct {
	ID                  string     `json:"id"`
	OrganizationID      string     `json:"organizationId"`
	AsaasSubscriptionID string     `json:"asaasSubscriptionId"`
	AsaasCustomerID     string     `json:"asaasCustomerId"`
	StudentID           *string    `json:"studentId,omitempty"`
	Value               float64    `json:"value"`
	Cycle               string     `json:"cycle"`
	Status              string     `json:"status"`
	NextDueDate         *time.Time `json:"nextDueDate,omitempty"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

// Webhook processing states
const (
	WebhookPending    = "pending"
	WebhookProcessing = "processing"
	WebhookDone       = "done"
	WebhookFailed     = "failed"
)

// AsaasWebhook is a received webhook kept for idempotency and retries
type AsaasWebhook struct {
	ID             string     `json:"id"`
	IdempotencyKey string     `json:"idempotencyKey"`
	Event          string     `json:"event"`
	Payload        string     `json:"-"`
	Status         string     `json:"status"`
	Attempts       int        `json:"attempts"`
	Error          *string    `json:"error,omitempty"`
	NextRetryAt    *time.Time `json:"nextRetryAt,omitempty"`
	ProcessedAt    *time.Time `json:"processedAt,omitempty"`
	RetentionUntil time.Time  `json:"retentionUntil"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// FinancialSummary aggregates payments of an organization
type FinancialSummary struct {
	TotalPaid    float64 `json:"totalPaid"`
	TotalPending float64 `json:"totalPending"`
	TotalOverdue float64 `json:"totalOverdue"`
	PaidCount    int     `json:"paidCount"`
	PendingCount int     `json:"pendingCount"`
	OverdueCount int     `json:"overdueCount"`
}
