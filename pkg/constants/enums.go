package constants

// Activity types written to the activity timeline
const (
	ActivityLeadCreated       = "lead_criado"
	ActivityStageChanged      = "stage_changed"
	ActivityLeadReactivated   = "lead_reactivated"
	ActivitySaleClosed        = "venda_fechada"
	ActivityIntegrationConfig = "integracao_configurada"
	ActivityUserCreated       = "user_created"
	ActivityNoteAdded         = "nota_adicionada"
	ActivityStudentCreated    = "aluno_criado"
	ActivityEnrollmentCreated = "matricula_criada"
	ActivityPaymentReceived   = "pagamento_recebido"
	ActivityTaskCompleted     = "tarefa_concluida"
	ActivityRoleChanged       = "role_alterada"
	ActivityLeadsDeduplicated = "leads_deduplicados"
)

// Notification types
const (
	NotificationLeadReactivated  = "lead_reactivated"
	NotificationTaskReminder     = "task_reminder"
	NotificationPaymentConfirmed = "payment_confirmed"
	NotificationPaymentReceived  = "payment_received"
	NotificationPaymentOverdue   = "payment_overdue"
	NotificationMention          = "mention"
)
