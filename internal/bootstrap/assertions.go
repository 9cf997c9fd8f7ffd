package bootstrap

import (
	"database/sql"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/gpus/backend/internal/application/services"
	"github.com/gpus/backend/internal/config"
	"github.com/gpus/backend/pkg/constants"
)

// AssertionViolation represents a single startup check failure
type AssertionViolation struct {
	Category    string // e.g., "CriticalTables", "ScheduledJobs"
	Severity    string // "error" or "warning"
	Object      string
	Description string
}

// AssertionResult contains all violations found during assertion checks
type AssertionResult struct {
	Violations []AssertionViolation
	Passed     bool
}

func (r *AssertionResult) add(category, severity, object, description string) {
	r.Violations = append(r.Violations, AssertionViolation{
		Category:    category,
		Severity:    severity,
		Object:      object,
		Description: description,
	})
}

func (r *AssertionResult) errorCount() int {
	n := 0
	for _, v := range r.Violations {
		if v.Severity == "error" {
			n++
		}
	}
	return n
}

// CriticalTables must exist after migrations
var CriticalTables = []string{
	constants.TableUser, constants.TableLead, constants.TableStudent, constants.TableEnrollment,
	constants.TableConversation, constants.TableMessage, constants.TableTask, constants.TableMarketingLead,
	constants.TableOutboxEvent, constants.TableScheduledJob, constants.TableEmailContact,
	constants.TableAsaasWebhook, constants.TableLGPDRequest, constants.TableLGPDAudit, constants.TableLGPDConsent,
}

// ScheduledJobs are the rows the scheduler expects to find
var ScheduledJobs = []string{
	services.JobTaskReminders,
	services.JobIdleLeadReactivation,
	services.JobChurnRefresh,
	services.JobLGPDRetention,
	services.JobAsaasWebhookRetry,
	services.JobAsaasWebhookPurge,
	services.JobOutboxCleanup,
	services.JobDailyMetrics,
}

// RunAssertions checks the schema and configuration after startup.
// Violations are logged; strictMode turns errors into a failure.
func RunAssertions(db *sql.DB, cfg *config.Config, strictMode bool) (*AssertionResult, error) {
	log.Println("🔍 Running startup assertions...")

	result := &AssertionResult{Violations: []AssertionViolation{}, Passed: true}

	assertCriticalTablesExist(db, result)
	assertScheduledJobsSeeded(db, result)
	assertConfiguration(cfg, result)

	if len(result.Violations) == 0 {
		log.Println("✅ All assertions passed")
		return result, nil
	}

	log.Printf("⚠️  Found %d assertion violation(s):", len(result.Violations))
	for i, v := range result.Violations {
		log.Printf("   %d. [%s] %s: %s", i+1, v.Severity, v.Category, v.Description)
	}

	errs := result.errorCount()
	result.Passed = errs == 0
	if strictMode && errs > 0 {
		return result, fmt.Errorf("assertion failures in strict mode: %d violation(s)", errs)
	}
	return result, nil
}

func assertCriticalTablesExist(db *sql.DB, result *AssertionResult) {
	query := fmt.Sprintf(
		"SELECT table_name FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name IN (%s)",
		strings.TrimSuffix(strings.Repeat("?, ", len(CriticalTables)), ", "),
	)
	args := make([]interface{}, len(CriticalTables))
	for i, t := range CriticalTables {
		args[i] = t
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		result.add("CriticalTables", "error", "", fmt.Sprintf("failed to list tables: %v", err))
		return
	}
	defer func() { _ = rows.Close() }()

	found := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			continue
		}
		found[strings.ToLower(name)] = true
	}

	for _, t := range CriticalTables {
		if !found[t] {
			result.add("CriticalTables", "error", t, fmt.Sprintf("table %s is missing", t))
		}
	}
}

func assertScheduledJobsSeeded(db *sql.DB, result *AssertionResult) {
	rows, err := db.Query("SELECT name FROM scheduled_jobs")
	if err != nil {
		result.add("ScheduledJobs", "error", "scheduled_jobs", fmt.Sprintf("failed to read jobs: %v", err))
		return
	}
	defer func() { _ = rows.Close() }()

	seeded := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err == nil {
			seeded[name] = true
		}
	}
	for _, job := range ScheduledJobs {
		if !seeded[job] {
			result.add("ScheduledJobs", "warning", job, fmt.Sprintf("job %s has no schedule row and will never run", job))
		}
	}
}

func assertConfiguration(cfg *config.Config, result *AssertionResult) {
	if cfg == nil {
		return
	}
	if cfg.DefaultOrganizationID == "" {
		result.add("Configuration", "warning", "DEFAULT_ORGANIZATION_ID", "public capture and Brevo events are disabled")
	}
	secrets := map[string]string{
		"BREVO_WEBHOOK_SECRET":     cfg.BrevoWebhookSecret,
		"MESSAGING_WEBHOOK_SECRET": cfg.MessagingWebhookSecret,
		"TYPEBOT_WEBHOOK_SECRET":   cfg.TypebotWebhookSecret,
		"WORDPRESS_WEBHOOK_SECRET": cfg.WordPressWebhookSecret,
		"CLERK_WEBHOOK_SECRET":     cfg.ClerkWebhookSecret,
		"ASAAS_WEBHOOK_TOKEN":      cfg.AsaasWebhookToken,
	}
	for _, name := range sortedKeys(secrets) {
		if secrets[name] == "" {
			result.add("Configuration", "warning", name, "unset; every request to this webhook is rejected")
		}
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
