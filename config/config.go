// Package config loads the typed configuration for the publish pipeline: a
// best-effort .env file via joho/godotenv, struct-tag driven environment
// unmarshaling via Netflix/go-env, and secret-indirected field resolution
// via the secret package. A configuration fault is fatal and is returned to
// the caller rather than swallowed or defaulted away.
package config

import (
	"context"
	"fmt"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/joho/godotenv"

	"github.com/jonwraymond/resilientfanout/secret"
)

// Exporter names recognized by observe.Config's exporter selection.
const (
	ExporterOTLP       = "otlp"
	ExporterPrometheus = "prometheus"
	ExporterStdout     = "stdout"
	ExporterNone       = "none"
)

// Auth modes recognized by the admin HTTP surface.
const (
	AuthModeJWT      = "jwt"
	AuthModeAPIKey   = "api_key"
	AuthModeOAuth2   = "oauth2"
	AuthModeAllowAll = "allow_all"
)

var validExporters = map[string]bool{
	ExporterOTLP:       true,
	ExporterPrometheus: true,
	ExporterStdout:     true,
	ExporterNone:       true,
}

var validAuthModes = map[string]bool{
	AuthModeJWT:      true,
	AuthModeAPIKey:   true,
	AuthModeOAuth2:   true,
	AuthModeAllowAll: true,
}

// Config is the process-wide configuration, loaded once at cold start.
type Config struct {
	// Domain fields.
	TopicARN    string `env:"TOPIC_ARN"`
	ServiceName string `env:"SERVICE_NAME,default=DataProcessingService"`
	Environment string `env:"ENVIRONMENT,default=Production"`

	// Ambient observability fields.
	LogLevel        string `env:"LOG_LEVEL,default=info"`
	TelemetryExporter string `env:"TELEMETRY_EXPORTER,default=stdout"`
	OTLPEndpoint    string `env:"OTLP_ENDPOINT,default="`
	PrometheusAddr  string `env:"PROMETHEUS_ADDR,default=:9464"`

	// HealthCacheTTL controls ResilientPublisher.IsHealthy's memoization window.
	HealthCacheTTL time.Duration `env:"HEALTH_CACHE_TTL,default=5s"`

	// DataSourcePath points at the file-backed data source fileDataSource
	// reads from. Empty means an empty pipeline run (no records).
	DataSourcePath string `env:"DATA_SOURCE_PATH,default="`

	// Admin HTTP surface.
	AdminListenAddr string `env:"ADMIN_LISTEN_ADDR,default=:8081"`
	AuthMode        string `env:"AUTH_MODE,default=jwt"`

	// Secret-indirected fields; raw values are secretref:<provider>:<ref>
	// and are resolved by Load before Config is returned.
	JWTSigningKeyRef string `env:"JWT_SIGNING_KEY_REF,default=secretref:env:JWT_SIGNING_KEY"`
	AdminAPIKeyRef   string `env:"ADMIN_API_KEY_REF,default=secretref:env:ADMIN_API_KEY"`

	JWTIssuer   string `env:"JWT_ISSUER,default=resilientfanout"`
	JWTAudience string `env:"JWT_AUDIENCE,default=subscribers"`

	// JWTJWKSURL, when set, makes the JWT authenticator fetch verification
	// keys from a JWKS endpoint instead of the static JWTSigningKey.
	JWTJWKSURL string `env:"JWT_JWKS_URL,default="`

	// OAuth2 token introspection, used when AUTH_MODE=oauth2.
	OAuth2IntrospectionEndpoint string `env:"OAUTH2_INTROSPECTION_ENDPOINT,default="`
	OAuth2ClientID              string `env:"OAUTH2_CLIENT_ID,default="`
	OAuth2ClientSecretRef       string `env:"OAUTH2_CLIENT_SECRET_REF,default="`

	// Outbound credential source for the publisher's own outgoing calls.
	PublisherCredentialRef string `env:"PUBLISHER_CREDENTIAL_REF,default="`

	// JWTSigningKey, AdminAPIKey, OAuth2ClientSecret and PublisherCredential
	// hold the resolved secret values after Load; never populated from the
	// environment directly, never logged.
	JWTSigningKey       string
	AdminAPIKey         string
	OAuth2ClientSecret  string
	PublisherCredential string
}

// Load reads a .env file (if present, best-effort), unmarshals environment
// variables into a Config, resolves secret-indirected fields, and validates
// the result.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if _, err := env.UnmarshalFromEnviron(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal environment: %w", err)
	}

	resolver := secret.NewResolver(true, secret.NewEnvProvider())

	ctx := context.Background()
	signingKey, err := resolver.ResolveValue(ctx, cfg.JWTSigningKeyRef)
	if err != nil {
		return nil, fmt.Errorf("config: resolve JWT signing key: %w", err)
	}
	cfg.JWTSigningKey = signingKey

	apiKey, err := resolver.ResolveValue(ctx, cfg.AdminAPIKeyRef)
	if err != nil {
		return nil, fmt.Errorf("config: resolve admin API key: %w", err)
	}
	cfg.AdminAPIKey = apiKey

	if cfg.PublisherCredentialRef != "" {
		publisherCred, err := resolver.ResolveValue(ctx, cfg.PublisherCredentialRef)
		if err != nil {
			return nil, fmt.Errorf("config: resolve publisher credential: %w", err)
		}
		cfg.PublisherCredential = publisherCred
	}

	if cfg.OAuth2ClientSecretRef != "" {
		clientSecret, err := resolver.ResolveValue(ctx, cfg.OAuth2ClientSecretRef)
		if err != nil {
			return nil, fmt.Errorf("config: resolve oauth2 client secret: %w", err)
		}
		cfg.OAuth2ClientSecret = clientSecret
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate enforces the required fields and closed-set values described in
// the configuration contract.
func (c *Config) Validate() error {
	if c.TopicARN == "" {
		return fmt.Errorf("config: TOPIC_ARN is required")
	}
	if !validExporters[c.TelemetryExporter] {
		return fmt.Errorf("config: invalid TELEMETRY_EXPORTER %q", c.TelemetryExporter)
	}
	if !validAuthModes[c.AuthMode] {
		return fmt.Errorf("config: invalid AUTH_MODE %q", c.AuthMode)
	}
	if c.HealthCacheTTL <= 0 {
		return fmt.Errorf("config: HEALTH_CACHE_TTL must be positive")
	}
	if c.AuthMode == AuthModeJWT && c.JWTSigningKey == "" {
		return fmt.Errorf("config: JWT_SIGNING_KEY_REF must resolve to a non-empty value when AUTH_MODE=jwt")
	}
	if c.AuthMode == AuthModeAPIKey && c.AdminAPIKey == "" {
		return fmt.Errorf("config: ADMIN_API_KEY_REF must resolve to a non-empty value when AUTH_MODE=api_key")
	}
	if c.AuthMode == AuthModeOAuth2 && c.OAuth2IntrospectionEndpoint == "" {
		return fmt.Errorf("config: OAUTH2_INTROSPECTION_ENDPOINT is required when AUTH_MODE=oauth2")
	}
	return nil
}
