package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix                 = "REEL"
	defaultHTTPAddress        = "0.0.0.0:8080"
	defaultDatabaseDriver     = DatabaseDriverSQLite
	defaultDatabasePath       = "reel.db"
	defaultLogLevel           = "info"
	defaultCookieName         = "app_session"
	defaultSessionIssuer      = "tauth"
	defaultUploadTTLMinutes   = 15
	defaultWorkflowStream     = "reel:workflows"
	defaultMutationsPerMinute = 120
	defaultCORSAllowedOrigins = "*"
	DatabaseDriverSQLite      = "sqlite"
	DatabaseDriverPostgres    = "postgres"
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress        string
	DatabaseDriver     string
	DatabasePath       string
	DatabaseDSN        string
	LogLevel           string
	TAuthSigningKey    string
	TAuthCookieName    string
	TAuthIssuer        string
	StorageBucket      string
	StorageSigner      string
	UploadTTL          time.Duration
	RedisAddress       string
	WorkflowStream     string
	MutationsPerMinute int
	CORSAllowedOrigins []string
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.driver", defaultDatabaseDriver)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("tauth.cookie_name", defaultCookieName)
	configViper.SetDefault("tauth.issuer", defaultSessionIssuer)
	configViper.SetDefault("storage.upload_ttl_minutes", defaultUploadTTLMinutes)
	configViper.SetDefault("workflows.stream", defaultWorkflowStream)
	configViper.SetDefault("ratelimit.mutations_per_minute", defaultMutationsPerMinute)
	configViper.SetDefault("cors.allowed_origins", defaultCORSAllowedOrigins)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:        configViper.GetString("http.address"),
		DatabaseDriver:     strings.ToLower(strings.TrimSpace(configViper.GetString("database.driver"))),
		DatabasePath:       configViper.GetString("database.path"),
		DatabaseDSN:        configViper.GetString("database.dsn"),
		LogLevel:           configViper.GetString("log.level"),
		TAuthSigningKey:    configViper.GetString("tauth.signing_secret"),
		TAuthCookieName:    configViper.GetString("tauth.cookie_name"),
		TAuthIssuer:        configViper.GetString("tauth.issuer"),
		StorageBucket:      strings.TrimSpace(configViper.GetString("storage.bucket")),
		StorageSigner:      strings.TrimSpace(configViper.GetString("storage.signer_account")),
		UploadTTL:          time.Duration(configViper.GetInt("storage.upload_ttl_minutes")) * time.Minute,
		RedisAddress:       strings.TrimSpace(configViper.GetString("workflows.redis_address")),
		WorkflowStream:     strings.TrimSpace(configViper.GetString("workflows.stream")),
		MutationsPerMinute: configViper.GetInt("ratelimit.mutations_per_minute"),
		CORSAllowedOrigins: splitList(configViper.GetString("cors.allowed_origins")),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.TAuthSigningKey) == "" {
		return fmt.Errorf("tauth.signing_secret is required")
	}
	if strings.TrimSpace(c.TAuthCookieName) == "" {
		return fmt.Errorf("tauth.cookie_name is required")
	}
	if strings.TrimSpace(c.TAuthIssuer) == "" {
		return fmt.Errorf("tauth.issuer is required")
	}
	switch c.DatabaseDriver {
	case DatabaseDriverSQLite:
		if strings.TrimSpace(c.DatabasePath) == "" {
			return fmt.Errorf("database.path is required")
		}
	case DatabaseDriverPostgres:
		if strings.TrimSpace(c.DatabaseDSN) == "" {
			return fmt.Errorf("database.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("database.driver %q is not supported", c.DatabaseDriver)
	}
	if c.StorageBucket != "" && c.UploadTTL <= 0 {
		return fmt.Errorf("storage.upload_ttl_minutes must be positive")
	}
	if c.RedisAddress != "" && c.WorkflowStream == "" {
		return fmt.Errorf("workflows.stream is required when workflows.redis_address is set")
	}
	if c.MutationsPerMinute < 0 {
		return fmt.Errorf("ratelimit.mutations_per_minute must not be negative")
	}
	return nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}
