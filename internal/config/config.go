// Package config handles server configuration, environment loading and the
// YAML project definitions.
package config

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/yu-iskw/lightdash/internal/domain"
	"github.com/yu-iskw/lightdash/internal/service/artifact"
)

const devJWTSecret = "dev-secret-change-in-production"

// AuthConfig holds authentication and identity provider configuration.
type AuthConfig struct {
	IssuerURL string   // OIDC issuer URL
	JWKSURL   string   // JWKS URL when the issuer has no discovery document
	JWTSecret string   // HS256 shared secret for local/dev tokens
	Audience  string   // required JWT audience claim
	Admins    []string // principal names granted admin on every project
}

// OIDCEnabled returns true when an external identity provider is configured.
func (a *AuthConfig) OIDCEnabled() bool {
	return a.IssuerURL != "" || a.JWKSURL != ""
}

// StorageConfig holds optional credentials for reading dbt artifacts from object storage.
type StorageConfig struct {
	S3Region           string
	S3Endpoint         string
	S3KeyID            string
	S3Secret           string
	S3PathStyle        bool
	GCSCredentialsFile string
	AzureAccountName   string
	AzureAccountKey    string
	MaxArtifactBytes   int64
}

// StorageFromEnv reads object storage credentials. MAX_ARTIFACT_BYTES is
// parsed by LoadFromEnv.
func StorageFromEnv() StorageConfig {
	return StorageConfig{
		S3Region:           os.Getenv("S3_REGION"),
		S3Endpoint:         os.Getenv("S3_ENDPOINT"),
		S3KeyID:            os.Getenv("S3_KEY_ID"),
		S3Secret:           os.Getenv("S3_SECRET"),
		S3PathStyle:        parseBoolEnvDefault("S3_PATH_STYLE", false),
		GCSCredentialsFile: os.Getenv("GCS_CREDENTIALS_FILE"),
		AzureAccountName:   os.Getenv("AZURE_STORAGE_ACCOUNT"),
		AzureAccountKey:    os.Getenv("AZURE_STORAGE_KEY"),
	}
}

// ArtifactOptions converts the storage settings for the artifact reader.
func (s StorageConfig) ArtifactOptions() artifact.Options {
	return artifact.Options{
		S3Region:           s.S3Region,
		S3Endpoint:         s.S3Endpoint,
		S3KeyID:            s.S3KeyID,
		S3Secret:           s.S3Secret,
		S3PathStyle:        s.S3PathStyle,
		GCSCredentialsFile: s.GCSCredentialsFile,
		AzureAccountName:   s.AzureAccountName,
		AzureAccountKey:    s.AzureAccountKey,
		MaxBytes:           s.MaxArtifactBytes,
	}
}

// Config holds the server configuration.
type Config struct {
	MetaDBPath   string // path to the SQLite metastore
	ListenAddr   string // HTTP listen address (default ":8080")
	LogLevel     string // debug, info, warn, error (default "info")
	Env          string // "development" (default) or "production"
	WarehouseDSN string // DuckDB database path, empty for in-memory
	ProjectsFile string // YAML project definitions synced at startup

	QueryMaxLimit int  // server maximum row limit of a metric query
	StrictSchema  bool // fail compilation on models or columns missing from the warehouse

	RateLimitRPS   float64
	RateLimitBurst int

	CORSAllowedOrigins []string

	Auth    AuthConfig
	Storage StorageConfig

	// Warnings collects non-fatal warnings generated during config loading.
	// These are logged by the caller after the logger is initialised.
	Warnings []string
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// IsProduction returns true when the server is running in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// LoadFromEnv loads configuration from environment variables and validates it.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		MetaDBPath:   os.Getenv("META_DB_PATH"),
		ListenAddr:   os.Getenv("LISTEN_ADDR"),
		LogLevel:     os.Getenv("LOG_LEVEL"),
		Env:          os.Getenv("ENV"),
		WarehouseDSN: os.Getenv("WAREHOUSE_DSN"),
		ProjectsFile: os.Getenv("PROJECTS_FILE"),
		StrictSchema: parseBoolEnvDefault("STRICT_SCHEMA", true),
		Auth: AuthConfig{
			IssuerURL: os.Getenv("AUTH_ISSUER_URL"),
			JWKSURL:   os.Getenv("AUTH_JWKS_URL"),
			JWTSecret: os.Getenv("JWT_SECRET"),
			Audience:  os.Getenv("AUTH_AUDIENCE"),
			Admins:    splitList(os.Getenv("AUTH_ADMINS")),
		},
		Storage: StorageFromEnv(),
		CORSAllowedOrigins: splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
	}

	var err error
	if cfg.QueryMaxLimit, err = intEnv("QUERY_MAX_LIMIT"); err != nil {
		return nil, err
	}
	if cfg.RateLimitBurst, err = intEnv("RATE_LIMIT_BURST"); err != nil {
		return nil, err
	}
	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		if cfg.RateLimitRPS, err = strconv.ParseFloat(v, 64); err != nil {
			return nil, domain.ErrValidation("RATE_LIMIT_RPS: invalid number %q", v)
		}
	}
	if v := os.Getenv("MAX_ARTIFACT_BYTES"); v != "" {
		if cfg.Storage.MaxArtifactBytes, err = strconv.ParseInt(v, 10, 64); err != nil {
			return nil, domain.ErrValidation("MAX_ARTIFACT_BYTES: invalid integer %q", v)
		}
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.MetaDBPath == "" {
		c.MetaDBPath = "lightdash_meta.sqlite"
	}
	if c.ListenAddr == "" {
		c.ListenAddr = ":8080"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.QueryMaxLimit == 0 {
		c.QueryMaxLimit = domain.DefaultQueryMaxLimit
	}
	if c.RateLimitRPS == 0 {
		c.RateLimitRPS = 100
	}
	if c.RateLimitBurst == 0 {
		c.RateLimitBurst = 200
	}
	if len(c.CORSAllowedOrigins) == 0 {
		c.CORSAllowedOrigins = []string{"*"}
	}
	if c.Auth.JWTSecret == "" && !c.Auth.OIDCEnabled() {
		c.Auth.JWTSecret = devJWTSecret
		c.Warnings = append(c.Warnings, "JWT_SECRET not set, using insecure development secret")
	}
}

// Validate checks that the configuration is internally consistent. Production
// mode rejects insecure defaults.
func (c *Config) Validate() error {
	if c.QueryMaxLimit < 0 {
		return domain.ErrValidation("QUERY_MAX_LIMIT must be positive, got %d", c.QueryMaxLimit)
	}
	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		return domain.ErrValidation("rate limits must be positive")
	}
	if c.Auth.IssuerURL != "" && c.Auth.Audience == "" {
		return domain.ErrValidation("AUTH_AUDIENCE is required when AUTH_ISSUER_URL is set")
	}
	if c.Storage.AzureAccountKey != "" && c.Storage.AzureAccountName == "" {
		return domain.ErrValidation("AZURE_STORAGE_ACCOUNT is required when AZURE_STORAGE_KEY is set")
	}
	if (c.Storage.S3KeyID == "") != (c.Storage.S3Secret == "") {
		return domain.ErrValidation("S3_KEY_ID and S3_SECRET must be set together")
	}
	if c.IsProduction() {
		if c.Auth.JWTSecret == devJWTSecret {
			return domain.ErrValidation("JWT_SECRET or OIDC must be configured in production (ENV=production)")
		}
		if len(c.CORSAllowedOrigins) == 1 && c.CORSAllowedOrigins[0] == "*" {
			return domain.ErrValidation("CORS wildcard (*) is not allowed in production (ENV=production)")
		}
	}
	return nil
}

func intEnv(key string) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, domain.ErrValidation("%s: invalid integer %q", key, v)
	}
	return n, nil
}

func parseBoolEnvDefault(key string, defaultVal bool) bool {
	switch strings.TrimSpace(strings.ToLower(os.Getenv(key))) {
	case "0", "false", "no", "off":
		return false
	case "1", "true", "yes", "on":
		return true
	}
	return defaultVal
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// LoadDotEnv reads a .env file and sets any variables not already in the environment.
// Lines must be in KEY=VALUE format. Comments (#) and blank lines are skipped.
func LoadDotEnv(path string) error {
	f, err := os.Open(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = stripQuotes(strings.TrimSpace(value))
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("setenv %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}

// stripQuotes removes surrounding double or single quotes from a value.
func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
