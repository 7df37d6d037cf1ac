package config

import (
	"time"

	redisclient "github.com/harborline/payguard/internal/infra/redis"
	"github.com/harborline/payguard/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server   ServerConfig       `yaml:"server"`
	Logging  LoggingConfig      `yaml:"logging"`
	Database postgres.Config    `yaml:"database"`
	Redis    redisclient.Config `yaml:"redis"`
	Provider ProviderConfig     `yaml:"provider"`
	Email    EmailConfig        `yaml:"email"`
	Operator OperatorConfig     `yaml:"operator"`
	Recovery RecoveryConfig     `yaml:"recovery"`
	Alerts   AlertsConfig       `yaml:"alerts"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// ProviderConfig holds settings for the payment provider API.
type ProviderConfig struct {
	Endpoint string        `yaml:"endpoint"`
	APIKey   string        `yaml:"api_key"`
	Timeout  time.Duration `yaml:"timeout"`
}

// EmailConfig holds settings for the transactional email provider.
type EmailConfig struct {
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"api_key"`
	From     string `yaml:"from"`
}

// OperatorConfig holds settings for operator alerting.
type OperatorConfig struct {
	WebhookURL string `yaml:"webhook_url"`
	Channel    string `yaml:"channel"`
}

// RecoveryConfig holds retry executor and orchestrator settings.
type RecoveryConfig struct {
	PollInterval             time.Duration `yaml:"poll_interval"`
	LockTTL                  time.Duration `yaml:"lock_ttl"`
	ProcessingErrorThreshold int           `yaml:"processing_error_threshold"`
	ProcessingErrorWindow    time.Duration `yaml:"processing_error_window"`
	NotificationRetention    time.Duration `yaml:"notification_retention"` // 0 = infinite
}

// AlertsConfig holds backlog alerting settings.
type AlertsConfig struct {
	Interval              time.Duration `yaml:"interval"`
	PendingThreshold      int           `yaml:"pending_threshold"`
	ApprovalThreshold     int           `yaml:"approval_threshold"`
	UnclassifiedThreshold int           `yaml:"unclassified_threshold"`
	UnclassifiedWindow    time.Duration `yaml:"unclassified_window"`
	Cooldown              time.Duration `yaml:"cooldown"`
}
