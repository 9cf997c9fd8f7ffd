package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gpus/backend/internal/bootstrap"
	"github.com/gpus/backend/internal/interfaces/middleware"
	"github.com/gpus/backend/internal/interfaces/rest"
	"github.com/gpus/backend/internal/interfaces/webhooks"
	"github.com/gpus/backend/pkg/auth"
)

const (
	publicFormLimit  = 30
	publicFormWindow = time.Minute
)

func registerRoutes(router *gin.Engine, app *bootstrap.App) {
	cfg := app.Config
	svcMgr := app.Services

	router.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := app.DB.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": "down"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "ok",
			"server":   "golang",
			"realtime": app.Hub.Count(),
		})
	})

	leadHandler := rest.NewLeadHandler(svcMgr.Leads)
	userHandler := rest.NewUserHandler(svcMgr)
	tagHandler := rest.NewTagHandler(svcMgr)
	studentHandler := rest.NewStudentHandler(svcMgr)
	conversationHandler := rest.NewConversationHandler(svcMgr)
	taskHandler := rest.NewTaskHandler(svcMgr)
	customFieldHandler := rest.NewCustomFieldHandler(svcMgr)
	notificationHandler := rest.NewNotificationHandler(svcMgr)
	crmHandler := rest.NewCRMHandler(svcMgr)
	emailHandler := rest.NewEmailHandler(svcMgr)
	marketingLeadHandler := rest.NewMarketingLeadHandler(svcMgr)
	lgpdHandler := rest.NewLGPDHandler(svcMgr)
	realtimeHandler := rest.NewRealtimeHandler(app.Hub, cfg.CORSAllowedOrigins)
	webhookHandler := webhooks.NewHandler(webhooks.Secrets{
		Brevo:      cfg.BrevoWebhookSecret,
		Messaging:  cfg.MessagingWebhookSecret,
		Typebot:    cfg.TypebotWebhookSecret,
		WordPress:  cfg.WordPressWebhookSecret,
		Clerk:      cfg.ClerkWebhookSecret,
		AsaasToken: cfg.AsaasWebhookToken,
	}, webhooks.Deps{
		Payments:              svcMgr.Payments,
		EmailEvents:           svcMgr.Email,
		Messages:              svcMgr.Conversations,
		Capture:               svcMgr.MarketingLeads,
		Team:                  svcMgr.Users,
		DefaultOrganizationID: cfg.DefaultOrganizationID,
	})

	requireAuth := middleware.RequireAuth(app.Tokens)
	perm := func(p auth.Permission) gin.HandlerFunc {
		return middleware.RequirePermission(svcMgr.Permissions, p)
	}
	requireAdmin := middleware.RequireOrgRole(svcMgr.Permissions, auth.RoleAdmin, auth.RoleOwner)

	// Webhooks authenticate with provider secrets
	hooks := router.Group("", middleware.RateLimit(app.Store, "webhooks", middleware.WebhookRateLimit, middleware.WebhookRateWindow))
	webhookHandler.Register(hooks)

	public := router.Group("/public", middleware.RateLimit(app.Store, "public", publicFormLimit, publicFormWindow))
	{
		public.POST("/leads", leadHandler.CreatePublic)
		public.POST("/marketing-leads", marketingLeadHandler.CreatePublic)
	}

	api := router.Group("/api", requireAuth)
	{
		api.GET("/auth/me", userHandler.GetMe)
		api.GET("/realtime", realtimeHandler.Connect)
		api.GET("/dashboard", crmHandler.Dashboard)
		api.POST("/activities", crmHandler.LogActivity)

		users := api.Group("/users")
		{
			users.GET("", perm(auth.PermTeamRead), userHandler.GetUsers)
			users.GET("/cs", userHandler.GetCSUsers)
			users.GET("/vendors", userHandler.GetVendors)
			users.GET("/search", perm(auth.PermTeamRead), userHandler.Search)
			users.PATCH("/me", userHandler.UpdateProfile)
			users.POST("/invite", userHandler.Invite)
			users.PATCH("/:id/role", userHandler.UpdateRole)
			users.DELETE("/:id", userHandler.Remove)
		}

		leads := api.Group("/leads")
		{
			leads.GET("", perm(auth.PermLeadsRead), leadHandler.List)
			leads.GET("/recent", perm(auth.PermLeadsRead), leadHandler.Recent)
			leads.GET("/search", perm(auth.PermLeadsRead), leadHandler.Search)
			leads.POST("", perm(auth.PermLeadsWrite), leadHandler.Create)
			leads.POST("/deduplicate", requireAdmin, leadHandler.Deduplicate)
			leads.POST("/import", perm(auth.PermLeadsWrite), leadHandler.Import)
			leads.GET("/:id", perm(auth.PermLeadsRead), leadHandler.Get)
			leads.PATCH("/:id", perm(auth.PermLeadsWrite), leadHandler.Update)
			leads.PATCH("/:id/stage", perm(auth.PermLeadsWrite), leadHandler.UpdateStage)
			leads.DELETE("/:id", perm(auth.PermLeadsWrite), leadHandler.Delete)
			leads.GET("/:id/tags", perm(auth.PermLeadsRead), tagHandler.LeadTags)
			leads.POST("/:id/tags/:tagId", perm(auth.PermLeadsWrite), tagHandler.AddToLead)
			leads.DELETE("/:id/tags/:tagId", perm(auth.PermLeadsWrite), tagHandler.RemoveFromLead)
			leads.GET("/:id/activities", perm(auth.PermLeadsRead), crmHandler.LeadActivities)
			leads.GET("/:id/referrals", perm(auth.PermLeadsRead), crmHandler.LeadReferrals)
		}

		tags := api.Group("/tags")
		{
			tags.GET("", tagHandler.List)
			tags.POST("", perm(auth.PermLeadsWrite), tagHandler.Create)
			tags.DELETE("/:id", perm(auth.PermLeadsWrite), tagHandler.Delete)
		}

		objections := api.Group("/objections")
		{
			objections.GET("", perm(auth.PermLeadsRead), crmHandler.LeadObjections)
			objections.GET("/stats", perm(auth.PermReportsRead), crmHandler.ObjectionStats)
			objections.POST("", perm(auth.PermLeadsWrite), crmHandler.AddObjection)
			objections.PATCH("/:id", perm(auth.PermLeadsWrite), crmHandler.UpdateObjection)
			objections.DELETE("/:id", perm(auth.PermLeadsWrite), crmHandler.DeleteObjection)
		}

		referrals := api.Group("/referrals")
		{
			referrals.GET("/cashback-config", crmHandler.CashbackConfig)
			referrals.PUT("/cashback-config", requireAdmin, crmHandler.SetCashbackConfig)
			referrals.GET("/stats", perm(auth.PermReportsRead), crmHandler.ReferralStats)
		}

		marketing := api.Group("/marketing-leads")
		{
			marketing.GET("", perm(auth.PermMarketingLeadsRead), marketingLeadHandler.List)
			marketing.GET("/:id", perm(auth.PermMarketingLeadsRead), marketingLeadHandler.Get)
			marketing.PATCH("/:id/status", perm(auth.PermMarketingLeadsWrite), marketingLeadHandler.UpdateStatus)
			marketing.POST("/:id/convert", perm(auth.PermMarketingLeadsWrite), marketingLeadHandler.Convert)
		}

		students := api.Group("/students")
		{
			students.GET("", perm(auth.PermStudentsRead), studentHandler.List)
			students.GET("/churn-alerts", perm(auth.PermStudentsRead), studentHandler.ChurnAlerts)
			students.POST("", perm(auth.PermStudentsWrite), studentHandler.Create)
			students.GET("/:id", perm(auth.PermStudentsRead), studentHandler.Get)
			students.PATCH("/:id", perm(auth.PermStudentsWrite), studentHandler.Update)
			students.POST("/:id/asaas-customer", perm(auth.PermStudentsWrite), studentHandler.SyncAsaasCustomer)
			students.GET("/:id/enrollments", perm(auth.PermStudentsRead), studentHandler.Enrollments)
			students.POST("/:id/enrollments", perm(auth.PermStudentsWrite), studentHandler.CreateEnrollment)
			students.GET("/:id/activities", perm(auth.PermStudentsRead), crmHandler.StudentActivities)
			students.GET("/:id/consents", perm(auth.PermStudentsRead), lgpdHandler.ListConsents)
			students.GET("/:id/processing-basis", perm(auth.PermStudentsRead), lgpdHandler.ProcessingBasis)
		}

		api.PATCH("/enrollments/:id", perm(auth.PermStudentsWrite), studentHandler.UpdateEnrollment)

		payments := api.Group("/payments", perm(auth.PermStudentsRead))
		{
			payments.GET("/students/:id", studentHandler.Payments)
			payments.GET("/students/:id/summary", studentHandler.PaymentSummary)
		}

		conversations := api.Group("/conversations")
		{
			conversations.GET("", perm(auth.PermConversationsRead), conversationHandler.List)
			conversations.POST("", perm(auth.PermConversationsWrite), conversationHandler.Create)
			conversations.GET("/:id", perm(auth.PermConversationsRead), conversationHandler.Get)
			conversations.PATCH("/:id", perm(auth.PermConversationsWrite), conversationHandler.Update)
			conversations.GET("/:id/messages", perm(auth.PermConversationsRead), conversationHandler.Messages)
		}

		messages := api.Group("/messages", perm(auth.PermConversationsWrite))
		{
			messages.POST("", conversationHandler.Send)
			messages.PATCH("/:id/status", conversationHandler.UpdateMessageStatus)
		}

		tasks := api.Group("/tasks")
		{
			tasks.GET("", taskHandler.List)
			tasks.GET("/mine", taskHandler.Mine)
			tasks.POST("", taskHandler.Create)
			tasks.PATCH("/:id", taskHandler.Update)
			tasks.POST("/:id/complete", taskHandler.Complete)
			tasks.DELETE("/:id", taskHandler.Delete)
		}

		customFields := api.Group("/custom-fields")
		{
			customFields.GET("", customFieldHandler.List)
			customFields.POST("", customFieldHandler.Create)
			customFields.PATCH("/:id", customFieldHandler.Update)
			customFields.DELETE("/:id", customFieldHandler.Delete)
			customFields.PUT("/values", customFieldHandler.SetValue)
			customFields.GET("/values/:entityType/:entityId", customFieldHandler.Values)
		}

		notifications := api.Group("/notifications")
		{
			notifications.GET("", notificationHandler.GetNotifications)
			notifications.POST("/read-all", notificationHandler.MarkAllAsRead)
			notifications.POST("/:id/read", notificationHandler.MarkAsRead)
		}

		settings := api.Group("/settings")
		{
			settings.GET("", requireAdmin, crmHandler.ListSettings)
			settings.GET("/integrations/:name", requireAdmin, crmHandler.IntegrationConfig)
			settings.GET("/:key", crmHandler.GetSetting)
			settings.PUT("/:key", crmHandler.SetSetting)
		}

		email := api.Group("/email", perm(auth.PermManageContent))
		{
			email.GET("/contacts", emailHandler.ListContacts)
			email.GET("/contacts/:id", emailHandler.GetContact)
			email.PATCH("/contacts/:id/subscription", emailHandler.UpdateSubscription)
			email.GET("/contacts/:id/events", emailHandler.ContactEvents)

			email.GET("/lists", emailHandler.ListLists)
			email.POST("/lists", emailHandler.CreateList)
			email.GET("/lists/:id", emailHandler.GetList)
			email.PATCH("/lists/:id", emailHandler.UpdateList)
			email.DELETE("/lists/:id", emailHandler.DeleteList)
			email.POST("/lists/:id/contacts/:contactId", emailHandler.AddContact)
			email.DELETE("/lists/:id/contacts/:contactId", emailHandler.RemoveContact)

			email.GET("/campaigns", emailHandler.ListCampaigns)
			email.POST("/campaigns", emailHandler.CreateCampaign)
			email.GET("/campaigns/:id", emailHandler.GetCampaign)
			email.PATCH("/campaigns/:id", emailHandler.UpdateCampaign)
			email.POST("/campaigns/:id/schedule", emailHandler.ScheduleCampaign)
			email.DELETE("/campaigns/:id", emailHandler.DeleteCampaign)
			email.GET("/campaigns/:id/events", emailHandler.CampaignEvents)

			email.GET("/templates", emailHandler.ListTemplates)
			email.POST("/templates", emailHandler.CreateTemplate)
			email.GET("/templates/:id", emailHandler.GetTemplate)
			email.PATCH("/templates/:id", emailHandler.UpdateTemplate)
			email.DELETE("/templates/:id", emailHandler.DeleteTemplate)
		}

		lgpd := api.Group("/lgpd")
		{
			lgpd.POST("/requests", lgpdHandler.CreateRequest)
			lgpd.GET("/requests", requireAdmin, lgpdHandler.ListRequests)
			lgpd.GET("/requests/:id", requireAdmin, lgpdHandler.GetRequest)
			lgpd.POST("/requests/:id/process", lgpdHandler.ProcessRequest)
			lgpd.POST("/requests/:id/reject", lgpdHandler.RejectRequest)
			lgpd.POST("/requests/:id/cancel", lgpdHandler.CancelRequest)

			lgpd.GET("/audit", requireAdmin, lgpdHandler.ListAudit)
			lgpd.POST("/audit", lgpdHandler.LogAudit)

			lgpd.POST("/consents", perm(auth.PermStudentsWrite), lgpdHandler.GrantConsent)
			lgpd.POST("/consents/:id/withdraw", perm(auth.PermStudentsWrite), lgpdHandler.WithdrawConsent)

			lgpd.GET("/retention-policies", requireAdmin, lgpdHandler.ListRetentionPolicies)
			lgpd.PUT("/retention-policies", lgpdHandler.UpsertRetentionPolicy)
			lgpd.DELETE("/retention-policies/:id", lgpdHandler.DeleteRetentionPolicy)

			lgpd.GET("/breaches", requireAdmin, lgpdHandler.ListBreaches)
			lgpd.POST("/breaches", requireAdmin, lgpdHandler.RegisterBreach)
			lgpd.PATCH("/breaches/:id", requireAdmin, lgpdHandler.UpdateBreach)

			lgpd.GET("/report", requireAdmin, lgpdHandler.ComplianceReport)
		}
	}
}
