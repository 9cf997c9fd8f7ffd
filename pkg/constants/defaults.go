package constants

// Setting keys stored per organization
const (
	SettingKeyCashback    = "cashback_config"
	SettingKeyLeadScoring = "lead_scoring_rules"
)

// Actors recorded when no user performs the operation
const (
	DefaultSystemActor     = "system"
	DefaultPublicFormActor = "system_public_form"
	DefaultUnknownContact  = "Desconhecido"
)
