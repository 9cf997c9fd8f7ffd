package constants

// Table names. Every organization scoped table carries an organization_id column.
const (
	TableUser              = "users"
	TableLead              = "leads"
	TableLeadTag           = "lead_tags"
	TableTag               = "tags"
	TableMarketingLead     = "marketing_leads"
	TableStudent           = "students"
	TableEnrollment        = "enrollments"
	TableConversation      = "conversations"
	TableMessage           = "messages"
	TableTask              = "tasks"
	TableActivity          = "activities"
	TableNotification      = "notifications"
	TableSetting           = "settings"
	TableObjection         = "objections"
	TableCustomField       = "custom_fields"
	TableCustomFieldValue  = "custom_field_values"
	TableEmailContact      = "email_contacts"
	TableEmailList         = "email_lists"
	TableEmailListContact  = "email_list_contacts"
	TableEmailCampaign     = "email_campaigns"
	TableEmailTemplate     = "email_templates"
	TableEmailEvent        = "email_events"
	TableAsaasPayment      = "asaas_payments"
	TableAsaasSubscription = "asaas_subscriptions"
	TableAsaasWebhook      = "asaas_webhooks"
	TableLGPDRequest       = "lgpd_requests"
	TableLGPDAudit         = "lgpd_audit"
	TableLGPDConsent       = "lgpd_consents"
	TableLGPDRetention     = "lgpd_retention_policies"
	TableLGPDDataBreach    = "lgpd_data_breaches"
	TableDailyMetric       = "daily_metrics"
	TableOutboxEvent       = "outbox_events"
	TableScheduledJob      = "scheduled_jobs"
)
