package main

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"github.com/jonwraymond/resilientfanout/auth"
	"github.com/jonwraymond/resilientfanout/cache"
	"github.com/jonwraymond/resilientfanout/config"
	"github.com/jonwraymond/resilientfanout/fanout"
	"github.com/jonwraymond/resilientfanout/observe"
	"github.com/jonwraymond/resilientfanout/pipeline"
	"github.com/jonwraymond/resilientfanout/publisher"
)

// application holds every component assembled once at cold start. Handle
// and the admin HTTP surface both operate against this single instance.
type application struct {
	cfg       *config.Config
	observer  observe.Observer
	publisher *publisher.ResilientPublisher
	driver    *pipeline.Driver
	health    *pipeline.HealthChecker

	authenticator auth.Authenticator
	authorizer    auth.Authorizer
}

// buildObserverConfig translates config.Config's single TELEMETRY_EXPORTER
// knob into the per-subsystem exporters observe.Config expects. Tracing has
// no "prometheus" exporter and metrics has no "jaeger" exporter, so a choice
// unsupported by one subsystem falls back to "otlp" there.
func buildObserverConfig(cfg *config.Config) observe.Config {
	tracingExporter := cfg.TelemetryExporter
	if tracingExporter == config.ExporterPrometheus {
		tracingExporter = config.ExporterOTLP
	}
	metricsExporter := cfg.TelemetryExporter

	return observe.Config{
		ServiceName: cfg.ServiceName,
		Version:     "1.0.0",
		Tracing: observe.TracingConfig{
			Enabled:   true,
			Exporter:  tracingExporter,
			SamplePct: 1.0,
		},
		Metrics: observe.MetricsConfig{
			Enabled:  true,
			Exporter: metricsExporter,
		},
		Logging: observe.LoggingConfig{
			Enabled: true,
			Level:   cfg.LogLevel,
		},
	}
}

// buildAuthenticator selects the inbound authenticator(s) guarding the admin
// HTTP surface, per config.Config.AuthMode.
func buildAuthenticator(cfg *config.Config) auth.Authenticator {
	var keyProvider auth.KeyProvider
	if cfg.JWTJWKSURL != "" {
		keyProvider = auth.NewJWKSKeyProvider(auth.JWKSConfig{URL: cfg.JWTJWKSURL})
	} else {
		keyProvider = auth.NewStaticKeyProvider([]byte(cfg.JWTSigningKey))
	}
	jwtAuth := auth.NewJWTAuthenticator(auth.JWTConfig{
		Issuer:         cfg.JWTIssuer,
		Audience:       cfg.JWTAudience,
		PrincipalClaim: "sub",
		RolesClaim:     "roles",
	}, keyProvider)

	oauth2Auth := auth.NewOAuth2IntrospectionAuthenticator(auth.OAuth2Config{
		IntrospectionEndpoint: cfg.OAuth2IntrospectionEndpoint,
		ClientID:              cfg.OAuth2ClientID,
		ClientSecret:          cfg.OAuth2ClientSecret,
		RolesClaim:            "roles",
	})

	store := auth.NewMemoryAPIKeyStore()
	if cfg.AdminAPIKey != "" {
		_ = store.Add(&auth.APIKeyInfo{
			ID:        "admin",
			KeyHash:   auth.HashAPIKey(cfg.AdminAPIKey),
			Principal: "admin",
			Roles:     []string{"operator"},
		})
	}
	apiKeyAuth := auth.NewAPIKeyAuthenticator(auth.APIKeyConfig{}, store)

	switch cfg.AuthMode {
	case config.AuthModeJWT:
		return jwtAuth
	case config.AuthModeAPIKey:
		return apiKeyAuth
	case config.AuthModeOAuth2:
		return oauth2Auth
	case config.AuthModeAllowAll:
		return auth.NewAuthenticatorFunc("allow_all",
			func(context.Context, *auth.AuthRequest) bool { return true },
			func(context.Context, *auth.AuthRequest) (*auth.AuthResult, error) {
				return auth.AuthSuccess(auth.AnonymousIdentity()), nil
			})
	default:
		return auth.NewCompositeAuthenticator(jwtAuth, apiKeyAuth)
	}
}

// buildAuthorizer gates /admin/circuit's reset action behind the operator
// role; /admin/trigger only needs a recognized identity, checked directly by
// the handler rather than through this authorizer.
func buildAuthorizer() auth.Authorizer {
	return auth.NewSimpleRBACAuthorizer(auth.RBACConfig{
		Roles: map[string]auth.RoleConfig{
			"operator": {Permissions: []string{"*"}},
		},
	})
}

// newApplication performs the one-time cold-start wiring described by the
// invocation shim: config, telemetry, outbound credentials, transport,
// resilience, fan-out, pipeline driver, health aggregation and the inbound
// admin auth surface, all by direct construction.
func newApplication(ctx context.Context) (*application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	observer, err := observe.NewObserver(ctx, buildObserverConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("init observer: %w", err)
	}

	instruments, err := observe.NewInstruments(observer.Meter())
	if err != nil {
		return nil, fmt.Errorf("init instruments: %w", err)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	transport := publisher.NewSNSTransport(sns.NewFromConfig(awsCfg))

	var credentials publisher.CredentialSource = publisher.StaticCredentialSource{}
	if cfg.PublisherCredential != "" {
		credentials = publisher.StaticCredentialSource{Credential: publisher.Credential{Token: cfg.PublisherCredential}}
	}

	healthPolicy := cache.Policy{DefaultTTL: cfg.HealthCacheTTL, MaxTTL: cfg.HealthCacheTTL}
	resilientPublisher := publisher.NewResilientPublisher(transport, observer, instruments, publisher.Config{
		TopicARN:     cfg.TopicARN,
		Credentials:  credentials,
		HealthCache:  cache.NewMemoryCache(healthPolicy),
		HealthPolicy: healthPolicy,
	})

	engine := fanout.NewFanOutEngine(resilientPublisher, instruments, observer.Logger())

	dataSource := newFileDataSource(cfg.DataSourcePath)

	driver := pipeline.NewDriver(dataSource, jsonTransformer{}, engine, observer, instruments, pipeline.Config{})

	healthChecker := pipeline.NewHealthChecker(resilientPublisher, dataSource, pipeline.DefaultHealthBulkheadConfig())

	return &application{
		cfg:           cfg,
		observer:      observer,
		publisher:     resilientPublisher,
		driver:        driver,
		health:        healthChecker,
		authenticator: buildAuthenticator(cfg),
		authorizer:    buildAuthorizer(),
	}, nil
}

// Handle is the invocation entry point. It ignores the event payload and
// runs the pipeline driver once, returning its error as the invocation's
// failure signal.
func (a *application) Handle(ctx context.Context, _ any) error {
	return a.driver.Run(ctx)
}
