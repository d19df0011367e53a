package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// TelegramConfig holds Telegram bot transport settings.
type TelegramConfig struct {
	Token   string `yaml:"token" envconfig:"TELEGRAM_TOKEN"`
	RunMode string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
	// SendRetries is how often a failed outbound call is retried on a
	// transient error; 0 -> DefaultSendRetries, negative disables retries.
	SendRetries int `yaml:"send_retries" envconfig:"TELEGRAM_SEND_RETRIES"`
}

// Retries resolves SendRetries to the retry count handed to the sender.
func (t TelegramConfig) Retries() int {
	switch {
	case t.SendRetries == 0:
		return DefaultSendRetries
	case t.SendRetries < 0:
		return 0
	}
	return t.SendRetries
}

// WebhookConfig specifies webhook settings.
type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
}

// LookupConfig describes the external identification lookup API.
type LookupConfig struct {
	URL           string `yaml:"url" envconfig:"API_URL"`
	Auth          string `yaml:"auth" envconfig:"API_AUTH"`
	TransactionID string `yaml:"transaction_id" envconfig:"API_TRANSACTION_ID"`
	DocumentType  string `yaml:"document_type" envconfig:"API_DOCUMENT_TYPE"`
	// TimeoutSeconds bounds a single lookup call; 0 -> DefaultLookupTimeoutSeconds.
	TimeoutSeconds int `yaml:"timeout_seconds" envconfig:"API_TIMEOUT_SECONDS"`
}

// AccessConfig holds the optional allow-list.
type AccessConfig struct {
	// AllowedUserIDs is the raw comma-separated list. Empty means unrestricted.
	AllowedUserIDs string `yaml:"allowed_user_ids" envconfig:"ALLOWED_USER_IDS"`

	// AllowedIDs is filled by Normalize. It is nil when no list was configured.
	AllowedIDs []int64 `yaml:"-" ignored:"true"`
}

// Restricted reports whether an allow-list was configured.
func (a AccessConfig) Restricted() bool {
	return a.AllowedIDs != nil
}

// ConversationConfig tunes the lookup dialogue.
type ConversationConfig struct {
	IdleTimeoutSeconds int `yaml:"idle_timeout_seconds" envconfig:"CONVERSATION_IDLE_TIMEOUT_SECONDS"`
}

// NotifyConfig controls the startup readiness message.
type NotifyConfig struct {
	StatusChatID  int64  `yaml:"status_chat_id" envconfig:"STATUS_CHAT_ID"`
	Timezone      string `yaml:"timezone" envconfig:"NOTIFY_TIMEZONE"`
	TimezoneLabel string `yaml:"timezone_label" envconfig:"NOTIFY_TIMEZONE_LABEL"`
	WindowHours   int    `yaml:"window_hours" envconfig:"NOTIFY_WINDOW_HOURS"`
}

// MetricsConfig enables the ops HTTP server when Listen is set.
type MetricsConfig struct {
	Listen string `yaml:"listen" envconfig:"METRICS_LISTEN"`
}

// DatabaseConfig holds the optional Postgres settings backing the allow-list store.
type DatabaseConfig struct {
	Host           string `yaml:"host" envconfig:"DB_HOST"`
	Port           string `yaml:"port" envconfig:"DB_PORT"`
	User           string `yaml:"user" envconfig:"DB_USER"`
	Password       string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name           string `yaml:"name" envconfig:"DB_NAME"`
	SSLMode        string `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	MaxConnections int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS"`
	MigrationsDir  string `yaml:"migrations_dir" envconfig:"DB_MIGRATIONS_DIR"`
}

// Enabled reports whether a database host was configured.
func (d DatabaseConfig) Enabled() bool {
	return strings.TrimSpace(d.Host) != ""
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format      string `yaml:"format" envconfig:"LOG_FORMAT"`
	KeysOrder   string `yaml:"keys_order"`
	DebugSample string `yaml:"debug_sample" envconfig:"LOG_DEBUG_SAMPLE"`
	Dir         string `yaml:"dir" envconfig:"LOG_DIR"`
	BotFile     string `yaml:"bot_file" envconfig:"LOG_BOT_FILE"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile" envconfig:"LOG_PROFILE"`
}

const (
	// RunModeWebhook selects webhook mode for Telegram updates.
	RunModeWebhook = "webhook"
	// RunModeLongpoll selects long-polling mode for Telegram updates.
	RunModeLongpoll = "longpoll"
)

const (
	DefaultTransactionID        = "1759530011497"
	DefaultDocumentType         = "1"
	DefaultLookupTimeoutSeconds = 15
	DefaultIdleTimeoutSeconds   = 60
	DefaultTimezone             = "America/Bogota"
	DefaultTimezoneLabel        = "Bogotá (COL)"
	DefaultWindowHours          = 3
	DefaultMigrationsDir        = "migrations"
	DefaultSendRetries          = 2
)

// Config aggregates the whole bot configuration.
type Config struct {
	Telegram     TelegramConfig     `yaml:"telegram"`
	Webhook      WebhookConfig      `yaml:"webhook"`
	Lookup       LookupConfig       `yaml:"lookup"`
	Access       AccessConfig       `yaml:"access"`
	Conversation ConversationConfig `yaml:"conversation"`
	Notify       NotifyConfig       `yaml:"notify"`
	Metrics      MetricsConfig      `yaml:"metrics"`
	Database     DatabaseConfig     `yaml:"database"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// Load reads an optional YAML file and overlays environment variables.
// An empty path skips the file; a missing file at a non-empty path is an error.
func Load(path string) (*Config, error) {
	var cfg Config

	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates required fields, parses the allow-list, and applies defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return errors.New("nil config")
	}

	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		return errors.New("telegram token is required (TELEGRAM_TOKEN)")
	}

	rm := strings.ToLower(strings.TrimSpace(cfg.Telegram.RunMode))
	if rm == "" || rm == "polling" {
		rm = RunModeLongpoll
	}
	switch rm {
	case RunModeWebhook:
		if strings.TrimSpace(cfg.Webhook.URL) == "" {
			return errors.New("webhook.url is required when telegram.run_mode is 'webhook'")
		}
		if strings.TrimSpace(cfg.Webhook.Listen) == "" {
			return errors.New("webhook.listen is required when telegram.run_mode is 'webhook'")
		}
		if cfg.Webhook.Port <= 0 {
			return errors.New("webhook.port must be > 0 when telegram.run_mode is 'webhook'")
		}
	case RunModeLongpoll:
		if cfg.Telegram.LongPollTimeoutSeconds < 0 {
			return errors.New("telegram.longpoll_timeout_seconds must be >= 0")
		}
	default:
		return fmt.Errorf("invalid telegram.run_mode %q; allowed: webhook, longpoll", cfg.Telegram.RunMode)
	}
	cfg.Telegram.RunMode = rm

	if err := normalizeLookup(&cfg.Lookup); err != nil {
		return err
	}

	ids, err := ParseIDList(cfg.Access.AllowedUserIDs)
	if err != nil {
		return fmt.Errorf("access.allowed_user_ids: %w", err)
	}
	cfg.Access.AllowedIDs = ids

	switch {
	case cfg.Conversation.IdleTimeoutSeconds == 0:
		cfg.Conversation.IdleTimeoutSeconds = DefaultIdleTimeoutSeconds
	case cfg.Conversation.IdleTimeoutSeconds < 0:
		return errors.New("conversation.idle_timeout_seconds must be > 0")
	}

	if strings.TrimSpace(cfg.Notify.Timezone) == "" {
		cfg.Notify.Timezone = DefaultTimezone
	}
	if strings.TrimSpace(cfg.Notify.TimezoneLabel) == "" {
		cfg.Notify.TimezoneLabel = DefaultTimezoneLabel
	}
	switch {
	case cfg.Notify.WindowHours == 0:
		cfg.Notify.WindowHours = DefaultWindowHours
	case cfg.Notify.WindowHours < 0:
		return errors.New("notify.window_hours must be > 0")
	}

	if cfg.Database.Enabled() {
		if strings.TrimSpace(cfg.Database.MigrationsDir) == "" {
			cfg.Database.MigrationsDir = DefaultMigrationsDir
		}
		if strings.TrimSpace(cfg.Database.SSLMode) == "" {
			cfg.Database.SSLMode = "disable"
		}
		if cfg.Database.MaxConnections <= 0 {
			cfg.Database.MaxConnections = 2
		}
	}
	return nil
}

func normalizeLookup(l *LookupConfig) error {
	raw := strings.TrimSpace(l.URL)
	if raw == "" {
		return errors.New("lookup url is required (API_URL)")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid lookup url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("lookup url must be an absolute http(s) url, got %q", raw)
	}
	l.URL = raw

	if strings.TrimSpace(l.TransactionID) == "" {
		l.TransactionID = DefaultTransactionID
	}
	if strings.TrimSpace(l.DocumentType) == "" {
		l.DocumentType = DefaultDocumentType
	}
	switch {
	case l.TimeoutSeconds == 0:
		l.TimeoutSeconds = DefaultLookupTimeoutSeconds
	case l.TimeoutSeconds < 0:
		return errors.New("lookup.timeout_seconds must be > 0")
	}
	return nil
}
