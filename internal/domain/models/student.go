package models

import "time"

// StudentStatus of an enrolled professional
type StudentStatus string

const (
	StudentAtivo   StudentStatus = "ativo"
	StudentInativo StudentStatus = "inativo"
	StudentPausado StudentStatus = "pausado"
	StudentFormado StudentStatus = "formado"
)

// Valid reports whether s is a known student status
func (s StudentStatus) Valid() bool {
	switch s {
	case StudentAtivo, StudentInativo, StudentPausado, StudentFormado:
		return true
	}
	return false
}

// ChurnRisk level
type ChurnRisk string

const (
	ChurnBaixo ChurnRisk = "baixo"
	ChurnMedio ChurnRisk = "medio"
	ChurnAlto  ChurnRisk = "alto"
)

// Student is a paying customer of one or more products
type Student struct {
	ID                 string        `json:"id"`
	OrganizationID     string        `json:"organizationId"`
	LeadID             *string       `json:"leadId,omitempty"`
	Name               string        `json:"name"`
	Email              string        `json:"email"`
	Phone              string        `json:"phone"`
	CPF                *string       `json:"cpf,omitempty"`
	CPFHash            *string       `json:"-"`
	EncryptedEmail     *string       `json:"-"`
	EncryptedPhone     *string       `json:"-"`
	Profession         string        `json:"profession"`
	ProfessionalID     *string       `json:"professionalId,omitempty"`
	HasClinic          bool          `json:"hasClinic"`
	ClinicName         *string       `json:"clinicName,omitempty"`
	ClinicCity         *string       `json:"clinicCity,omitempty"`
	Status             StudentStatus `json:"status"`
	AssignedCS         *string       `json:"assignedCS,omitempty"`
	Products           []string      `json:"products"`
	ChurnRisk          ChurnRisk     `json:"churnRisk"`
	LastEngagementAt   *time.Time    `json:"lastEngagementAt,omitempty"`
	LGPDConsent        bool          `json:"lgpdConsent"`
	ConsentGrantedAt   *time.Time    `json:"consentGrantedAt,omitempty"`
	ConsentVersion     *string       `json:"consentVersion,omitempty"`
	DataRetentionUntil *time.Time    `json:"dataRetentionUntil,omitempty"`
	AsaasCustomerID    *string       `json:"asaasCustomerId,omitempty"`
	CreatedAt          time.Time     `json:"createdAt"`
	UpdatedAt          time.Time     `json:"updatedAt"`
}

// StudentFilter narrows student listings
type StudentFilter struct {
	OrganizationID string
	Status         StudentStatus
	ChurnRisk      ChurnRisk
	Product        string
	Search         string
	AssignedCS     string
	Limit          int
}

// StudentInput carries the fields accepted on create/update
type StudentInput struct {
	Name           string  `json:"name" binding:"omitempty,min=2,max=100"`
	Email          string  `json:"email" binding:"omitempty,email"`
	Phone          string  `json:"phone" binding:"omitempty,br_phone"`
	CPF            *string `json:"cpf,omitempty" binding:"omitempty,cpf"`
	Profession     string  `json:"profession"`
	ProfessionalID *string `json:"professionalId,omitempty"`
	HasClinic      *bool   `json:"hasClinic,omitempty"`
	ClinicName     *string `json:"clinicName,omitempty"`
	ClinicCity     *string `json:"clinicCity,omitempty"`
	Status         *string `json:"status,omitempty"`
	AssignedCS     *string `json:"assignedCS,omitempty"`
	LeadID         *string `json:"leadId,omitempty"`
	LGPDConsent    *bool   `json:"lgpdConsent,omitempty"`
	ConsentVersion *string `json:"consentVersion,omitempty"`
}

// ChurnAlert flags a student at risk
type ChurnAlert struct {
	StudentID        string     `json:"studentId"`
	Name             string     `json:"name"`
	Reason           string     `json:"reason"`
	Risk             ChurnRisk  `json:"risk"`
	LastEngagementAt *time.Time `json:"lastEngagementAt,omitempty"`
}

// EnrollmentStatus of a product enrollment
type EnrollmentStatus string

const (
	EnrollmentAtivo            EnrollmentStatus = "ativo"
	EnrollmentConcluido        EnrollmentStatus = "concluido"
	EnrollmentCancelado        EnrollmentStatus = "cancelado"
	EnrollmentPausado          EnrollmentStatus = "pausado"
	EnrollmentAguardandoInicio EnrollmentStatus = "aguardando_inicio"
)

// Valid reports whether s is a known enrollment status
func (s EnrollmentStatus) Valid() bool {
	switch s {
	case EnrollmentAtivo, EnrollmentConcluido, EnrollmentCancelado, EnrollmentPausado, EnrollmentAguardandoInicio:
		return true
	}
	return false
}

// PaymentStatus of an enrollment
type PaymentStatus string

const (
	PaymentEmDia     PaymentStatus = "em_dia"
	PaymentAtrasado  PaymentStatus = "atrasado"
	PaymentQuitado   PaymentStatus = "quitado"
	PaymentCancelado PaymentStatus = "cancelado"
)

// Valid reports whether s is a known payment status
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentEmDia, PaymentAtrasado, PaymentQuitado, PaymentCancelado:
		return true
	}
	return false
}

// Enrollment links a student to a product cohort
type Enrollment struct {
	ID                 string           `json:"id"`
	OrganizationID     string           `json:"organizationId"`
	StudentID          string           `json:"studentId"`
	Product            string           `json:"product"`
	Cohort             *string          `json:"cohort,omitempty"`
	Status             EnrollmentStatus `json:"status"`
	StartDate          *time.Time       `json:"startDate,omitempty"`
	ExpectedEndDate    *time.Time       `json:"expectedEndDate,omitempty"`
	ActualEndDate      *time.Time       `json:"actualEndDate,omitempty"`
	TotalValue         float64          `json:"totalValue"`
	Installments       int              `json:"installments"`
	InstallmentValue   float64          `json:"installmentValue"`
	PaidInstallments   int              `json:"paidInstallments"`
	PaymentStatus      PaymentStatus    `json:"paymentStatus"`
	Progress           int              `json:"progress"`
	ModulesCompleted   int              `json:"modulesCompleted"`
	PracticesCompleted int              `json:"practicesCompleted"`
	CreatedAt          time.Time        `json:"createdAt"`
	UpdatedAt          time.Time        `json:"updatedAt"`
}

// EnrollmentInput carries the fields accepted on create/update
type EnrollmentInput struct {
	StudentID          string     `json:"studentId"`
	Product            string     `json:"product"`
	Cohort             *string    `json:"cohort,omitempty"`
	Status             *string    `json:"status,omitempty"`
	StartDate          *time.Time `json:"startDate,omitempty"`
	ExpectedEndDate    *time.Time `json:"expectedEndDate,omitempty"`
	ActualEndDate      *time.Time `json:"actualEndDate,omitempty"`
	TotalValue         *float64   `json:"totalValue,omitempty" binding:"omitempty,gte=0"`
	Installments       *int       `json:"installments,omitempty" binding:"omitempty,gte=1"`
	InstallmentValue   *float64   `json:"installmentValue,omitempty" binding:"omitempty,gte=0"`
	PaymentStatus      *string    `json:"paymentStatus,omitempty"`
	Progress           *int       `json:"progress,omitempty" binding:"omitempty,gte=0,lte=100"`
	ModulesCompleted   *int       `json:"modulesCompleted,omitempty"`
	PracticesCompleted *int       `json:"practicesCompleted,omitempty"`
}
