package models

import "time"

// LeadStage is the position of a lead in the sales pipeline
type LeadStage string

const (
	StageNovo            LeadStage = "novo"
	StagePrimeiroContato LeadStage = "primeiro_contato"
	StageQualificado     LeadStage = "qualificado"
	StageProposta        LeadStage = "proposta"
	StageNegociacao      LeadStage = "negociacao"
	StageFechadoGanho    LeadStage = "fechado_ganho"
	StageFechadoPerdido  LeadStage = "fechado_perdido"
)

// LeadStages in pipeline order
var LeadStages = []LeadStage{
	StageNovo, StagePrimeiroContato, StageQualificado, StageProposta,
	StageNegociacao, StageFechadoGanho, StageFechadoPerdido,
}

// Valid reports whether s is a known stage
func (s LeadStage) Valid() bool {
	for _, v := range LeadStages {
		if v == s {
			return true
		}
	}
	return false
}

// Temperature of a lead
type Temperature string

const (
	TemperatureFrio   Temperature = "frio"
	TemperatureMorno  Temperature = "morno"
	TemperatureQuente Temperature = "quente"
)

// Valid reports whether t is a known temperature
func (t Temperature) Valid() bool {
	return t == TemperatureFrio || t == TemperatureMorno || t == TemperatureQuente
}

// Lead sources
const (
	SourceWhatsApp    = "whatsapp"
	SourceInstagram   = "instagram"
	SourceLandingPage = "landing_page"
	SourceIndicacao   = "indicacao"
	SourceEvento      = "evento"
	SourceOrganico    = "organico"
	SourceTrafegoPago = "trafego_pago"
	SourceOutro       = "outro"
)

// ValidLeadSource reports whether s is a known source
func ValidLeadSource(s string) bool {
	switch s {
	case SourceWhatsApp, SourceInstagram, SourceLandingPage, SourceIndicacao,
		SourceEvento, SourceOrganico, SourceTrafegoPago, SourceOutro:
		return true
	}
	return false
}

// Products sold by the school
const (
	ProductTrintae3    = "trintae3"
	ProductOTB         = "otb"
	ProductBlackNeon   = "black_neon"
	ProductComunidade  = "comunidade"
	ProductAuriculo    = "auriculo"
	ProductNaMesaCerta = "na_mesa_certa"
	ProductIndefinido  = "indefinido"
)

// ValidProduct reports whether p is a known product
func ValidProduct(p string) bool {
	switch p {
	case ProductTrintae3, ProductOTB, ProductBlackNeon, ProductComunidade,
		ProductAuriculo, ProductNaMesaCerta, ProductIndefinido:
		return true
	}
	return false
}

// Lost reasons
const (
	LostPreco          = "preco"
	LostTempo          = "tempo"
	LostConcorrente    = "concorrente"
	LostSemResposta    = "sem_resposta"
	LostNaoQualificado = "nao_qualificado"
	LostOutro          = "outro"
)

// Lead is a sales prospect
type Lead struct {
	ID                string      `json:"id"`
	OrganizationID    string      `json:"organizationId"`
	Name              string      `json:"name"`
	Phone             string      `json:"phone"`
	Email             *string     `json:"email,omitempty"`
	Source            string      `json:"source"`
	Stage             LeadStage   `json:"stage"`
	Temperature       Temperature `json:"temperature"`
	InterestedProduct string      `json:"interestedProduct"`
	Profession        *string     `json:"profession,omitempty"`
	HasClinic         bool        `json:"hasClinic"`
	ClinicName        *string     `json:"clinicName,omitempty"`
	ClinicCity        *string     `json:"clinicCity,omitempty"`
	MainPain          *string     `json:"mainPain,omitempty"`
	MainDesire        *string     `json:"mainDesire,omitempty"`
	LostReason        *string     `json:"lostReason,omitempty"`
	Score             int         `json:"score"`
	AssignedTo        *string     `json:"assignedTo,omitempty"`
	ReferredByID      *string     `json:"referredById,omitempty"`
	CashbackEarned    float64     `json:"cashbackEarned"`
	CashbackPaidAt    *time.Time  `json:"cashbackPaidAt,omitempty"`
	UTMSource         *string     `json:"utmSource,omitempty"`
	UTMCampaign       *string     `json:"utmCampaign,omitempty"`
	UTMMedium         *string     `json:"utmMedium,omitempty"`
	LastContactAt     *time.Time  `json:"lastContactAt,omitempty"`
	CreatedAt         time.Time   `json:"createdAt"`
	UpdatedAt         time.Time   `json:"updatedAt"`
}

// LeadFilter narrows lead listings
type LeadFilter struct {
	OrganizationID string
	Stages         []LeadStage
	Temperatures   []Temperature
	Products       []string
	Source         string
	Search         string
	Tags           []string
	AssignedTo     string
	Cursor         string
	Limit          int
}

// LeadPage is a cursor page of leads
type LeadPage struct {
	Page           []Lead `json:"page"`
	ContinueCursor string `json:"continueCursor"`
	IsDone         bool   `json:"isDone"`
}

// LeadInput carries the fields accepted on create/update
type LeadInput struct {
	Name              string                 `json:"name" binding:"omitempty,min=2,max=100"`
	Phone             string                 `json:"phone" binding:"omitempty,br_phone"`
	Email             *string                `json:"email,omitempty" binding:"omitempty,email"`
	Source            string                 `json:"source"`
	Stage             *LeadStage             `json:"stage,omitempty"`
	Temperature       *Temperature           `json:"temperature,omitempty"`
	InterestedProduct string                 `json:"interestedProduct"`
	Profession        *string                `json:"profession,omitempty"`
	HasClinic         *bool                  `json:"hasClinic,omitempty"`
	ClinicName        *string                `json:"clinicName,omitempty"`
	ClinicCity        *string                `json:"clinicCity,omitempty"`
	MainPain          *string                `json:"mainPain,omitempty"`
	MainDesire        *string                `json:"mainDesire,omitempty"`
	LostReason        *string                `json:"lostReason,omitempty"`
	Score             *int                   `json:"score,omitempty"`
	AssignedTo        *string                `json:"assignedTo,omitempty"`
	ReferredByID      *string                `json:"referredById,omitempty"`
	UTMSource         *string                `json:"utmSource,omitempty"`
	UTMCampaign       *string                `json:"utmCampaign,omitempty"`
	UTMMedium         *string                `json:"utmMedium,omitempty"`
	CustomFields      map[string]interface{} `json:"customFields,omitempty"`
	Honeypot          string                 `json:"website,omitempty"`
}

// ImportRowResult reports the outcome of one imported row
type ImportRowResult struct {
	Row    int    `json:"row"`
	Status string `json:"status"` // created, duplicate, error
	LeadID string `json:"leadId,omitempty"`
	Error  string `json:"error,omitempty"`
}

// DeduplicationReport summarizes a phone-based deduplication pass
type DeduplicationReport struct {
	DryRun          bool                 `json:"dryRun"`
	DuplicateGroups int                  `json:"duplicateGroups"`
	Removed         int                  `json:"removed"`
	Groups          []DuplicateLeadGroup `json:"groups"`
}

// DuplicateLeadGroup lists leads sharing a phone
type DuplicateLeadGroup struct {
	Phone      string   `json:"phone"`
	KeptID     string   `json:"keptId"`
	RemovedIDs []string `json:"removedIds"`
}

// Tag labels leads
type Tag struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organizationId"`
	Name           string    `json:"name"`
	Color          string    `json:"color"`
	CreatedBy      string    `json:"createdBy"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Objection is a sales objection raised by a lead
type Objection struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organizationId"`
	LeadID         string     `json:"leadId"`
	Category       string     `json:"category"`
	Description    string     `json:"description"`
	Resolved       bool       `json:"resolved"`
	Resolution     *string    `json:"resolution,omitempty"`
	RecordedBy     string     `json:"recordedBy"`
	RecordedAt     time.Time  `json:"recordedAt"`
	ResolvedAt     *time.Time `json:"resolvedAt,omitempty"`
}

// ObjectionStats aggregates objections
type ObjectionStats struct {
	Total      int            `json:"total"`
	Resolved   int            `json:"resolved"`
	Unresolved int            `json:"unresolved"`
	ByCategory map[string]int `json:"byCategory"`
}

// ReferralStats summarizes the referral program
type ReferralStats struct {
	TotalReferrals int     `json:"totalReferrals"`
	Converted      int     `json:"converted"`
	TotalCashback  float64 `json:"totalCashback"`
}

// CashbackConfig is stored in the cashback_config setting
type CashbackConfig struct {
	Enabled    bool    `json:"enabled"`
	Percentage float64 `json:"percentage"`
	MinAmount  float64 `json:"minAmount"`
	MaxAmount  float64 `json:"maxAmount"`
}
