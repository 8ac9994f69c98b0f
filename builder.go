package goGate

import (
	"errors"
	"fmt"

	internalaudit "github.com/MrEthical07/goGate/internal/audit"
	"github.com/MrEthical07/goGate/internal/rate"
	"github.com/MrEthical07/goGate/password"
	"github.com/MrEthical07/goGate/permission"
	"github.com/MrEthical07/goGate/session"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Builder defines a public type used by goGate APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	store      CredentialStore
	authorizer Authorizer
	auditSinks []AuditSink
	logger     *zerolog.Logger

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the session, forgery-token and rate-limit backend.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithCredentialStore sets where identities are looked up.
func (b *Builder) WithCredentialStore(store CredentialStore) *Builder {
	b.store = store
	return b
}

// WithAuthorizer overrides the policy backend selected by
// Config.Policy.Backend.
func (b *Builder) WithAuthorizer(a Authorizer) *Builder {
	b.authorizer = a
	return b
}

// WithAuditSink adds a sink. Sinks only receive events when
// Config.Audit.Enabled is set.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	if sink != nil {
		b.auditSinks = append(b.auditSinks, sink)
	}
	return b
}

// WithLogger sets the engine logger. The default discards everything.
func (b *Builder) WithLogger(logger zerolog.Logger) *Builder {
	b.logger = &logger
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms describes the withlatencyhistograms operation and its observable behavior.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration, compiles the policy, and wires the
// engine. A Builder can be built once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.store == nil {
		return nil, errors.New("credential store required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// -------- POLICY --------
	authorizer := b.authorizer
	if authorizer == nil {
		var err error
		authorizer, err = buildAuthorizer(cfg.Policy)
		if err != nil {
			return nil, err
		}
	}

	// -------- PASSWORD --------
	verifier, err := password.NewVerifier(cfg.Password.Argon2)
	if err != nil {
		return nil, err
	}

	logger := zerolog.Nop()
	if b.logger != nil {
		logger = *b.logger
	}

	engine := &Engine{
		config:      cloneConfig(cfg),
		logger:      logger.With().Str("component", "gogate").Logger(),
		policy:      authorizer,
		credentials: b.store,
		verifier:    verifier,
		sessions: session.NewStore(
			b.redis,
			cfg.Session.RedisPrefix,
			cfg.Session.SlidingExpiration,
			cfg.Session.AbsoluteSessionLifetime,
		),
		rateLimiter: rate.New(b.redis, rate.Config{
			EnableIPThrottle:      cfg.Security.EnableIPThrottle,
			MaxLoginAttempts:      cfg.Security.MaxLoginAttempts,
			LoginCooldownDuration: cfg.Security.LoginCooldownDuration,
		}),
		audit: internalaudit.NewDispatcher(internalaudit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, b.auditSinks...),
		metrics: NewMetrics(cfg.Metrics),
	}

	b.built = true

	return engine, nil
}

func buildAuthorizer(cfg PolicyConfig) (Authorizer, error) {
	switch cfg.Backend {
	case PolicyBackendTable, "":
		p, err := permission.NewTablePolicy(cfg.Rules, cfg.MaxBits)
		if err != nil {
			return nil, fmt.Errorf("table policy: %w", err)
		}
		return p, nil
	case PolicyBackendCasbin:
		p, err := permission.NewCasbinPolicy(cfg.Rules)
		if err != nil {
			return nil, fmt.Errorf("casbin policy: %w", err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown policy backend %q", cfg.Backend)
	}
}
