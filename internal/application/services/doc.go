// Package services provides the business logic layer of the GPUS CRM.
//
// This package contains the service implementations that handle:
//   - Permission resolution from token claims with a stored-role fallback (PermissionService)
//   - The lead pipeline, referrals and tags (LeadService, ReferralService, TagService)
//   - Students, enrollments and churn tracking (StudentService, EnrollmentService)
//   - Conversations and messages with realtime push (ConversationService)
//   - Tasks, custom fields, activities, notifications, settings and objections
//   - E-mail marketing and public lead capture (EmailMarketingService, MarketingLeadService)
//   - Asaas payments and webhook processing (PaymentService)
//   - Team administration (UserService)
//   - LGPD data-subject requests, audit trail, consents, retention and breaches (LGPDService)
//   - Dashboard counters and daily snapshots (DashboardService)
//   - Event publishing and subscription (EventBus, OutboxService)
//   - Cron jobs and background tasks (SchedulerService, RegisterTaskHandlers)
//
// Services receive their storage through the ports interfaces and are wired
// together by ServiceManager.
package services
