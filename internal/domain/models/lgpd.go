package models

import "time"

// LGPDRequestType is a data-subject right under the LGPD
type LGPDRequestType string

const (
	RequestAccess      LGPDRequestType = "access"
	RequestCorrection  LGPDRequestType = "correction"
	RequestDeletion    LGPDRequestType = "deletion"
	RequestPortability LGPDRequestType = "portability"
	RequestInformation LGPDRequestType = "information"
	RequestObjection   LGPDRequestType = "objection"
	RequestRestriction LGPDRequestType = "restriction"
)

// Valid reports whether t is a known request type
func (t LGPDRequestType) Valid() bool {
	switch t {
	case RequestAccess, RequestCorrection, RequestDeletion, RequestPortability,
		RequestInformation, RequestObjection, RequestRestriction:
		return true
	}
	return false
}

// LGPDRequestStatus is the lifecycle state of a request
type LGPDRequestStatus string

const (
	RequestPending    LGPDRequestStatus = "pending"
	RequestProcessing LGPDRequestStatus = "processing"
	RequestCompleted  LGPDRequestStatus = "completed"
	RequestRejected   LGPDRequestStatus = "rejected"
	RequestCancelled  LGPDRequestStatus = "cancelled"
)

// Terminal reports whether no further transition is allowed
func (s LGPDRequestStatus) Terminal() bool {
	return s == RequestCompleted || s == RequestRejected || s == RequestCancelled
}

// AuditAction classifies an audit entry
type AuditAction string

const (
	AuditDataAccess       AuditAction = "data_access"
	AuditDataCreation     AuditAction = "data_creation"
	AuditDataModification AuditAction = "data_modification"
	AuditDataDeletion     AuditAction = "data_deletion"
	AuditConsentGranted   AuditAction = "consent_granted"
	AuditConsentWithdrawn AuditAction = "consent_withdrawn"
	AuditDataExport       AuditAction = "data_export"
	AuditDataPortability  AuditAction = "data_portability"
	AuditSecurityEvent    AuditAction = "security_event"
	AuditDataBreach       AuditAction = "data_breach"
)

// Data categories used for retention and redaction
const (
	CategoryIdentificacao = "identificacao"
	CategoryContato       = "contato"
	CategoryProfissional  = "profissional"
	CategoryAcademico     = "academico"
	CategoryFinanceiro    = "financeiro"
	CategoryConsentimento = "consentimento"
	CategoryAuditoria     = "auditoria"
	CategoryOutros        = "outros"
)

// Consent types
const (
	ConsentAcademicProcessing = "academic_processing"
	ConsentMarketing          = "marketing"
	ConsentDataSharing        = "data_sharing"
	ConsentWhatsapp           = "whatsapp"
)

// LGPDRequest is a data-subject request
type LGPDRequest struct {
	ID                string                 `json:"id"`
	OrganizationID    string                 `json:"organizationId"`
	StudentID         string                 `json:"studentId"`
	RequestType       LGPDRequestType        `json:"requestType"`
	Status            LGPDRequestStatus      `json:"status"`
	Description       string                 `json:"description"`
	IdentityProofHash string                 `json:"-"`
	Details           map[string]interface{} `json:"details,omitempty"`
	Response          *string                `json:"response,omitempty"`
	ResponseData      map[string]interface{} `json:"responseData,omitempty"`
	RejectionReason   *string                `json:"rejectionReason,omitempty"`
	ProcessingNotes   *string                `json:"processingNotes,omitempty"`
	ProcessedBy       *string                `json:"processedBy,omitempty"`
	IPAddress         *string                `json:"ipAddress,omitempty"`
	UserAgent         *string                `json:"userAgent,omitempty"`
	CreatedAt         time.Time              `json:"createdAt"`
	UpdatedAt         time.Time              `json:"updatedAt"`
	CompletedAt       *time.Time             `json:"completedAt,omitempty"`
}

// LGPDRequestInput is accepted when a request is opened
type LGPDRequestInput struct {
	StudentID     string                 `json:"studentId" binding:"required"`
	RequestType   LGPDRequestType        `json:"requestType" binding:"required"`
	Description   string                 `json:"description"`
	IdentityProof string                 `json:"identityProof"`
	Details       map[string]interface{} `json:"details,omitempty"`
	IPAddress     string                 `json:"-"`
	UserAgent     string                 `json:"-"`
}

// LGPDRequestFilter narrows listings
type LGPDRequestFilter struct {
	OrganizationID string
	StudentID      string
	Status         LGPDRequestStatus
	RequestType    LGPDRequestType
	Limit          int
}

// AuditEntry is an immutable LGPD audit log row
type AuditEntry struct {
	ID             string                 `json:"id"`
	OrganizationID string                 `json:"organizationId"`
	StudentID      *string                `json:"studentId,omitempty"`
	ActorID        string                 `json:"actorId"`
	ActorRole      string                 `json:"actorRole"`
	ActionType     AuditAction            `json:"actionType"`
	DataCategory   string                 `json:"dataCategory"`
	Description    string                 `json:"description"`
	LegalBasis     string                 `json:"legalBasis"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	IPAddress      *string                `json:"ipAddress,omitempty"`
	UserAgent      *string                `json:"userAgent,omitempty"`
	RetentionDays  int                    `json:"retentionDays"`
	CreatedAt      time.Time              `json:"createdAt"`
}

// AuditFilter narrows audit listings
type AuditFilter struct {
	OrganizationID string
	StudentID      string
	ActorID        string
	ActionType     AuditAction
	DataCategory   string
	Since          *time.Time
	Limit          int
}

// Consent is a recorded data processing consent
type Consent struct {
	ID               string     `json:"id"`
	OrganizationID   string     `json:"organizationId"`
	StudentID        string     `json:"studentId"`
	ConsentType      string     `json:"consentType"`
	Version          string     `json:"version"`
	Granted          bool       `json:"granted"`
	GrantedAt        *time.Time `json:"grantedAt,omitempty"`
	ExpiresAt        *time.Time `json:"expiresAt,omitempty"`
	DataCategories   []string   `json:"dataCategories"`
	Withdrawn        bool       `json:"withdrawn"`
	WithdrawnAt      *time.Time `json:"withdrawnAt,omitempty"`
	WithdrawalReason *string    `json:"withdrawalReason,omitempty"`
	IPAddress        *string    `json:"ipAddress,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
}

// Valid reports whether the consent currently authorizes processing
func (c Consent) Valid(now time.Time) bool {
	if !c.Granted || c.Withdrawn {
		return false
	}
	return c.ExpiresAt == nil || c.ExpiresAt.After(now)
}

// ConsentInput grants a consent
type ConsentInput struct {
	StudentID      string     `json:"studentId" binding:"required"`
	ConsentType    string     `json:"consentType" binding:"required"`
	Version        string     `json:"version"`
	ExpiresAt      *time.Time `json:"expiresAt,omitempty"`
	DataCategories []string   `json:"dataCategories,omitempty"`
	IPAddress      string     `json:"-"`
}

// RetentionPolicy defines how long a data category is kept
type RetentionPolicy struct {
	ID                         string    `json:"id"`
	OrganizationID             string    `json:"organizationId"`
	DataCategory               string    `json:"dataCategory"`
	RetentionDays              int       `json:"retentionDays"`
	LegalBasis                 string    `json:"legalBasis"`
	Description                *string   `json:"description,omitempty"`
	AutomaticDeletion          bool      `json:"automaticDeletion"`
	NotificationBeforeDeletion int       `json:"notificationBeforeDeletion"`
	Active                     bool      `json:"active"`
	CreatedAt                  time.Time `json:"createdAt"`
	UpdatedAt                  time.Time `json:"updatedAt"`
}

// Breach severities
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// DataBreach is a registered security incident
type DataBreach struct {
	ID                   string     `json:"id"`
	OrganizationID       string     `json:"organizationId"`
	IncidentID           string     `json:"incidentId"`
	BreachType           string     `json:"breachType"`
	Description          string     `json:"description"`
	AffectedStudents     []string   `json:"affectedStudents"`
	DataCategories       []string   `json:"dataCategories"`
	Severity             string     `json:"severity"`
	DetectedAt           time.Time  `json:"detectedAt"`
	StartedAt            *time.Time `json:"startedAt,omitempty"`
	ContainedAt          *time.Time `json:"containedAt,omitempty"`
	ReportedToANPD       bool       `json:"reportedToANPD"`
	ANPDReportedAt       *time.Time `json:"anpdReportedAt,omitempty"`
	NotifiedAffected     bool       `json:"notifiedAffected"`
	NotifiedAt           *time.Time `json:"notifiedAt,omitempty"`
	NotificationDeadline time.Time  `json:"notificationDeadline"`
	Actions              []string   `json:"actions"`
	RegisteredBy         string     `json:"registeredBy"`
	CreatedAt            time.Time  `json:"createdAt"`
	UpdatedAt            time.Time  `json:"updatedAt"`
}

// DataBreachInput registers or updates a breach
type DataBreachInput struct {
	BreachType       string     `json:"breachType"`
	Description      string     `json:"description"`
	AffectedStudents []string   `json:"affectedStudents"`
	DataCategories   []string   `json:"dataCategories"`
	Severity         string     `json:"severity"`
	DetectedAt       *time.Time `json:"detectedAt,omitempty"`
	StartedAt        *time.Time `json:"startedAt,omitempty"`
	ContainedAt      *time.Time `json:"containedAt,omitempty"`
	ReportedToANPD   *bool      `json:"reportedToANPD,omitempty"`
	NotifiedAffected *bool      `json:"notifiedAffected,omitempty"`
	Actions          []string   `json:"actions,omitempty"`
}

// ComplianceReport summarizes LGPD activity for a period
type ComplianceReport struct {
	PeriodDays             int            `json:"periodDays"`
	GeneratedAt            time.Time      `json:"generatedAt"`
	TotalRequests          int            `json:"totalRequests"`
	RequestsByType         map[string]int `json:"requestsByType"`
	RequestsByStatus       map[string]int `json:"requestsByStatus"`
	AuditByAction          map[string]int `json:"auditByAction"`
	AuditByCategory        map[string]int `json:"auditByCategory"`
	ProcessingRate         float64        `json:"processingRate"`
	AverageProcessingHours float64        `json:"averageProcessingHours"`
	ConsentsGranted        int            `json:"consentsGranted"`
	ConsentsWithdrawn      int            `json:"consentsWithdrawn"`
	OpenBreaches           int            `json:"openBreaches"`
}
