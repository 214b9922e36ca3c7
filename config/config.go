package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"slackhooks/core"
	"slackhooks/core/log"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

type SlackConfig struct {
	SigningSecret      string
	BotToken           string
	ClientID           string
	ClientSecret       string
	RedirectURI        string
	Scopes             []string
	UserScopes         []string
	InstallSuccessURL  string
	AlertWebhookURL    string
	SignatureTolerance time.Duration
	APITimeout         time.Duration
}

// IsOAuthConfigured returns true if the app can run the installation flow
func (c SlackConfig) IsOAuthConfigured() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

type StoreConfig struct {
	InstallationBackend string
	StateBackend        string
	DatabaseURL         string
	DatabaseSchema      string
	RedisURL            string
}

// NeedsPostgres returns true if any store is backed by Postgres
func (c StoreConfig) NeedsPostgres() bool {
	return c.InstallationBackend == BackendPostgres || c.StateBackend == BackendPostgres
}

type AppConfig struct {
	Port                      string // Optional with default "8080"
	CORSAllowedOrigins        string // Optional with default "*"
	Environment               string
	LogLevel                  string
	OAuthStateCleanupSchedule string

	SlackConfig SlackConfig
	StoreConfig StoreConfig
}

func LoadConfig() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Warn("⚠️ Could not load .env file, continuing with system env vars")
	}
	return loadFromEnv()
}

func loadFromEnv() (*AppConfig, error) {
	signingSecret, err := getEnvRequired("SLACK_SIGNING_SECRET")
	if err != nil {
		return nil, &core.ConfigurationError{Message: err.Error()}
	}

	tolerance, err := getDurationWithDefault("SLACK_SIGNATURE_TOLERANCE", 5*time.Minute)
	if err != nil {
		return nil, err
	}
	apiTimeout, err := getDurationWithDefault("SLACK_API_TIMEOUT", 3*time.Second)
	if err != nil {
		return nil, err
	}

	config := &AppConfig{
		Port:                      getEnvWithDefault("PORT", "8080"),
		CORSAllowedOrigins:        getEnvWithDefault("CORS_ALLOWED_ORIGINS", "*"),
		Environment:               getEnvWithDefault("ENVIRONMENT", "dev"),
		LogLevel:                  getEnvWithDefault("LOG_LEVEL", "info"),
		OAuthStateCleanupSchedule: getEnvWithDefault("OAUTH_STATE_CLEANUP_SCHEDULE", "@every 5m"),

		SlackConfig: SlackConfig{
			SigningSecret:      signingSecret,
			BotToken:           os.Getenv("SLACK_BOT_TOKEN"),
			ClientID:           os.Getenv("SLACK_CLIENT_ID"),
			ClientSecret:       os.Getenv("SLACK_CLIENT_SECRET"),
			RedirectURI:        os.Getenv("SLACK_REDIRECT_URI"),
			Scopes:             splitList(os.Getenv("SLACK_SCOPES")),
			UserScopes:         splitList(os.Getenv("SLACK_USER_SCOPES")),
			InstallSuccessURL:  os.Getenv("SLACK_INSTALL_SUCCESS_URL"),
			AlertWebhookURL:    os.Getenv("SLACK_ALERT_WEBHOOK_URL"),
			SignatureTolerance: tolerance,
			APITimeout:         apiTimeout,
		},

		StoreConfig: StoreConfig{
			InstallationBackend: strings.ToLower(getEnvWithDefault("STORE_BACKEND", BackendMemory)),
			StateBackend:        strings.ToLower(getEnvWithDefault("STATE_STORE_BACKEND", BackendMemory)),
			DatabaseURL:         os.Getenv("DB_URL"),
			DatabaseSchema:      getEnvWithDefault("DB_SCHEMA", "public"),
			RedisURL:            os.Getenv("REDIS_URL"),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	if config.SlackConfig.IsOAuthConfigured() {
		log.Info("✅ Slack OAuth installation flow configured")
	} else {
		log.Info("⚠️ Slack OAuth not configured - running in single-workspace mode with SLACK_BOT_TOKEN")
	}

	return config, nil
}

// Validate checks the combinations a running app depends on
func (c *AppConfig) Validate() error {
	slack := c.SlackConfig
	if slack.SigningSecret == "" {
		return &core.ConfigurationError{Message: "SLACK_SIGNING_SECRET is required"}
	}
	if slack.BotToken == "" && slack.ClientID == "" {
		return &core.ConfigurationError{Message: "either SLACK_BOT_TOKEN or SLACK_CLIENT_ID must be set"}
	}
	if slack.ClientID != "" && slack.ClientSecret == "" {
		return &core.ConfigurationError{Message: "SLACK_CLIENT_SECRET is required when SLACK_CLIENT_ID is set"}
	}
	if slack.SignatureTolerance <= 0 {
		return &core.ConfigurationError{Message: "SLACK_SIGNATURE_TOLERANCE must be positive"}
	}

	return c.StoreConfig.Validate()
}

// Validate checks that the selected backends are known and reachable by configuration
func (store StoreConfig) Validate() error {
	switch store.InstallationBackend {
	case BackendMemory, BackendPostgres:
	default:
		return &core.ConfigurationError{Message: fmt.Sprintf("unsupported STORE_BACKEND %q", store.InstallationBackend)}
	}
	switch store.StateBackend {
	case BackendMemory, BackendPostgres, BackendRedis:
	default:
		return &core.ConfigurationError{Message: fmt.Sprintf("unsupported STATE_STORE_BACKEND %q", store.StateBackend)}
	}
	if store.NeedsPostgres() && store.DatabaseURL == "" {
		return &core.ConfigurationError{Message: "DB_URL is required for the postgres backend"}
	}
	if store.StateBackend == BackendRedis && store.RedisURL == "" {
		return &core.ConfigurationError{Message: "REDIS_URL is required for the redis state backend"}
	}
	return nil
}

func getEnvRequired(key string) (string, error) {
	value := os.Getenv(key)
	if value == "" {
		return "", fmt.Errorf("%s is not set", key)
	}
	return value, nil
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationWithDefault(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, &core.ConfigurationError{Message: fmt.Sprintf("%s is not a valid duration: %v", key, err)}
	}
	return d, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
