// Package config loads runtime settings from the environment and an optional .env file.
package config

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the resolved service configuration
type Config struct {
	Environment string
	Port        string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	RedisURL         string
	AsynqConcurrency int
	AsynqQueues      string

	JWTSecret    string
	JWTPublicKey string
	JWTIssuer    string

	EncryptionKey string

	BrevoWebhookSecret     string
	MessagingWebhookSecret string
	TypebotWebhookSecret   string
	WordPressWebhookSecret string
	ClerkWebhookSecret     string

	AsaasAPIKey       string
	AsaasBaseURL      string
	AsaasWebhookToken string

	DefaultOrganizationID string

	RollbarToken string
	Version      string

	OutboxInterval    time.Duration
	SchedulerInterval time.Duration

	CORSAllowedOrigins []string
}

// Load reads .env (missing file is fine) and then the process environment
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("⚠️  Warning: failed to load .env: %v", err)
	}
	return FromViper(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetTypeByDefaultValue(true)
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("PORT", "3001")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "3306")
	v.SetDefault("DB_USER", "root")
	v.SetDefault("DB_PASSWORD", "")
	v.SetDefault("DB_NAME", "gpus")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("ASYNQ_CONCURRENCY", 10)
	v.SetDefault("ASYNQ_QUEUES", "critical=6,default=3,low=1")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_PUBLIC_KEY", "")
	v.SetDefault("JWT_ISSUER", "")
	v.SetDefault("ENCRYPTION_KEY", "")
	v.SetDefault("BREVO_WEBHOOK_SECRET", "")
	v.SetDefault("MESSAGING_WEBHOOK_SECRET", "")
	v.SetDefault("TYPEBOT_WEBHOOK_SECRET", "")
	v.SetDefault("WORDPRESS_WEBHOOK_SECRET", "")
	v.SetDefault("CLERK_WEBHOOK_SECRET", "")
	v.SetDefault("ASAAS_API_KEY", "")
	v.SetDefault("ASAAS_BASE_URL", "https://api.asaas.com/v3")
	v.SetDefault("ASAAS_WEBHOOK_TOKEN", "")
	v.SetDefault("DEFAULT_ORGANIZATION_ID", "default")
	v.SetDefault("ROLLBAR_TOKEN", "")
	v.SetDefault("APP_VERSION", "dev")
	v.SetDefault("OUTBOX_INTERVAL", 500*time.Millisecond)
	v.SetDefault("SCHEDULER_INTERVAL", 60*time.Second)
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.AutomaticEnv()
	return v
}

// FromViper builds a Config from an already populated viper instance
func FromViper(v *viper.Viper) *Config {
	return &Config{
		Environment:            v.GetString("ENVIRONMENT"),
		Port:                   v.GetString("PORT"),
		DBHost:                 v.GetString("DB_HOST"),
		DBPort:                 v.GetString("DB_PORT"),
		DBUser:                 v.GetString("DB_USER"),
		DBPassword:             v.GetString("DB_PASSWORD"),
		DBName:                 v.GetString("DB_NAME"),
		RedisURL:               v.GetString("REDIS_URL"),
		AsynqConcurrency:       v.GetInt("ASYNQ_CONCURRENCY"),
		AsynqQueues:            v.GetString("ASYNQ_QUEUES"),
		JWTSecret:              v.GetString("JWT_SECRET"),
		JWTPublicKey:           strings.ReplaceAll(v.GetString("JWT_PUBLIC_KEY"), `\n`, "\n"),
		JWTIssuer:              v.GetString("JWT_ISSUER"),
		EncryptionKey:          v.GetString("ENCRYPTION_KEY"),
		BrevoWebhookSecret:     v.GetString("BREVO_WEBHOOK_SECRET"),
		MessagingWebhookSecret: v.GetString("MESSAGING_WEBHOOK_SECRET"),
		TypebotWebhookSecret:   v.GetString("TYPEBOT_WEBHOOK_SECRET"),
		WordPressWebhookSecret: v.GetString("WORDPRESS_WEBHOOK_SECRET"),
		ClerkWebhookSecret:     v.GetString("CLERK_WEBHOOK_SECRET"),
		AsaasAPIKey:            v.GetString("ASAAS_API_KEY"),
		AsaasBaseURL:           v.GetString("ASAAS_BASE_URL"),
		AsaasWebhookToken:      v.GetString("ASAAS_WEBHOOK_TOKEN"),
		DefaultOrganizationID:  v.GetString("DEFAULT_ORGANIZATION_ID"),
		RollbarToken:           v.GetString("ROLLBAR_TOKEN"),
		Version:                v.GetString("APP_VERSION"),
		OutboxInterval:         v.GetDuration("OUTBOX_INTERVAL"),
		SchedulerInterval:      v.GetDuration("SCHEDULER_INTERVAL"),
		CORSAllowedOrigins:     splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
	}
}

// IsProduction reports whether the service runs in production
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
