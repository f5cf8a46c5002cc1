package authcore

import (
	"database/sql"
	"errors"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/ledgerkeep/authcore/apierror"
	"github.com/ledgerkeep/authcore/internal/rate"
	"github.com/ledgerkeep/authcore/internal/stores"
	"github.com/ledgerkeep/authcore/secret"
	"github.com/ledgerkeep/authcore/token"
)

// Builder defines a public type used by authcore APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config
	redis  *redis.Client
	db     *sql.DB

	secretStore secret.Store
	principals  PrincipalProvider
	errorSink   apierror.Sink

	logger    zerolog.Logger
	loggerSet bool

	built bool
}

// New describes the new operation and its observable behavior.
//
// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig describes the withconfig operation and its observable behavior.
//
// WithConfig does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis describes the withredis operation and its observable behavior.
//
// WithRedis does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

// WithDB supplies the relational database used for the signing-secret
// settings row and the error log table. A custom secret store set via
// [Builder.WithSecretStore] takes precedence for signing secrets.
func (b *Builder) WithDB(db *sql.DB) *Builder {
	b.db = db
	return b
}

// WithSecretStore overrides the default SQL-backed settings store for the
// signing secret.
func (b *Builder) WithSecretStore(store secret.Store) *Builder {
	b.secretStore = store
	return b
}

// WithPrincipalProvider describes the withprincipalprovider operation and its observable behavior.
//
// WithPrincipalProvider does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithPrincipalProvider(p PrincipalProvider) *Builder {
	b.principals = p
	return b
}

// WithErrorSink overrides the destination for full error records. When
// unset, records go to the error_log table if a database was supplied,
// else to stderr as JSON lines.
func (b *Builder) WithErrorSink(sink apierror.Sink) *Builder {
	b.errorSink = sink
	return b
}

// WithLogger describes the withlogger operation and its observable behavior.
//
// WithLogger does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithLogger(logger zerolog.Logger) *Builder {
	b.logger = logger
	b.loggerSet = true
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
//
// WithMetricsEnabled does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms describes the withlatencyhistograms operation and its observable behavior.
//
// WithLatencyHistograms does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build may return an error when input validation, dependency calls, or security checks fail.
// Build does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.principals == nil {
		return nil, errors.New("principal provider required")
	}

	logger := b.logger
	if !b.loggerSet {
		logger = zerolog.New(os.Stderr).With().Timestamp().Str("component", "authcore").Logger()
	}

	secretStore := b.secretStore
	if secretStore == nil {
		if b.db == nil {
			return nil, errors.New("secret store or database required")
		}
		secretStore = secret.NewSQLStore(b.db)
	}

	secrets, err := secret.NewProvider(secretStore, logger)
	if err != nil {
		return nil, err
	}

	tokens, err := token.NewManager(token.Config{
		DefaultTTL:   cfg.Token.DefaultTTL,
		Issuer:       cfg.Token.Issuer,
		Leeway:       cfg.Token.Leeway,
		MaxFutureIAT: cfg.Token.MaxFutureIAT,
	}, secrets)
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:     cfg,
		tokens:     tokens,
		secrets:    secrets,
		limiter:    rate.New(b.redis, cfg.RateLimit.RedisPrefix),
		csrfStore:  stores.NewCSRFStore(b.redis, cfg.CSRF.RedisPrefix),
		principals: b.principals,
		metrics:    NewMetrics(cfg.Metrics),
		logger:     logger,
	}

	sink := b.errorSink
	if b.db != nil {
		engine.recordStore = apierror.NewSQLRecordStore(b.db)
		if sink == nil {
			sink = engine.recordStore
		}
	}
	if sink == nil {
		sink = apierror.NewJSONWriterSink(os.Stderr)
	}
	engine.errors = apierror.NewHandler(logger, sink, cfg.ErrorLog.BufferSize, cfg.ErrorLog.DropIfFull)

	b.built = true

	return engine, nil
}
