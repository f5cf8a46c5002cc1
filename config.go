package authcore

import (
	"errors"
	"time"
)

// Config defines a public type used by authcore APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Token     TokenConfig
	RateLimit RateLimitConfig
	CSRF      CSRFConfig
	ErrorLog  ErrorLogConfig
	Metrics   MetricsConfig
	Sweep     SweepConfig
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig defines a public type used by authcore APIs.
//
// TokenConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type TokenConfig struct {
	DefaultTTL time.Duration
	Issuer     string
	// Leeway widens expiry checks for cross-host clock skew. Zero (the
	// preset value) means a token dies at exactly issued_at+ttl.
	Leeway       time.Duration
	MaxFutureIAT time.Duration
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// WindowConfig is the budget for one sliding window: at most MaxAttempts
// within any span of Window.
type WindowConfig struct {
	MaxAttempts int
	Window      time.Duration
}

// BreakerConfig controls the global circuit breaker that throttles all
// authentication traffic when aggregate attempt volume spikes.
type BreakerConfig struct {
	Enabled   bool
	Threshold int
	Window    time.Duration
	Cooldown  time.Duration
}

// RateLimitConfig defines a public type used by authcore APIs.
//
// RateLimitConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RateLimitConfig struct {
	RedisPrefix   string
	AuthBurst     WindowConfig
	AuthSustained WindowConfig
	API           WindowConfig
	PasswordReset WindowConfig
	Registration  WindowConfig
	Suspicious    WindowConfig
	Breaker       BreakerConfig
}

/*
====================================
CSRF CONFIG
====================================
*/

// CSRFConfig defines a public type used by authcore APIs.
//
// CSRFConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CSRFConfig struct {
	TokenTTL    time.Duration
	RedisPrefix string
}

/*
====================================
ERROR LOG CONFIG
====================================
*/

// ErrorLogConfig defines a public type used by authcore APIs.
//
// ErrorLogConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type ErrorLogConfig struct {
	BufferSize int
	DropIfFull bool
	Retention  time.Duration
}

// MetricsConfig defines a public type used by authcore APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// SweepConfig controls the background maintenance loop started by
// [Engine.StartSweeper].
type SweepConfig struct {
	Interval            time.Duration
	RateWindowRetention time.Duration
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the baseline configuration for a production web
// backend. Callers adjust individual fields before passing the result to
// [Builder.WithConfig].
func DefaultConfig() Config {
	return Config{
		Token: TokenConfig{
			DefaultTTL:   21 * 24 * time.Hour,
			Issuer:       "authcore",
			Leeway:       0,
			MaxFutureIAT: 2 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			RedisPrefix: "ac",
			AuthBurst: WindowConfig{
				MaxAttempts: 5,
				Window:      15 * time.Minute,
			},
			AuthSustained: WindowConfig{
				MaxAttempts: 30,
				Window:      24 * time.Hour,
			},
			API: WindowConfig{
				MaxAttempts: 120,
				Window:      time.Minute,
			},
			PasswordReset: WindowConfig{
				MaxAttempts: 3,
				Window:      time.Hour,
			},
			Registration: WindowConfig{
				MaxAttempts: 5,
				Window:      24 * time.Hour,
			},
			Suspicious: WindowConfig{
				MaxAttempts: 10,
				Window:      time.Hour,
			},
			Breaker: BreakerConfig{
				Enabled:   true,
				Threshold: 1000,
				Window:    time.Minute,
				Cooldown:  5 * time.Minute,
			},
		},
		CSRF: CSRFConfig{
			TokenTTL:    2 * time.Hour,
			RedisPrefix: "acsrf",
		},
		ErrorLog: ErrorLogConfig{
			BufferSize: 1024,
			DropIfFull: true,
			Retention:  30 * 24 * time.Hour,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
		Sweep: SweepConfig{
			Interval:            10 * time.Minute,
			RateWindowRetention: 24 * time.Hour,
		},
	}
}

// HighSecurityConfig returns [DefaultConfig] tightened for deployments
// that prefer lockouts over convenience: short token lifetime, smaller
// attempt budgets, and a hair-trigger breaker.
func HighSecurityConfig() Config {
	cfg := DefaultConfig()
	cfg.Token.DefaultTTL = 24 * time.Hour
	cfg.RateLimit.AuthBurst = WindowConfig{MaxAttempts: 3, Window: 30 * time.Minute}
	cfg.RateLimit.AuthSustained = WindowConfig{MaxAttempts: 10, Window: 24 * time.Hour}
	cfg.RateLimit.PasswordReset = WindowConfig{MaxAttempts: 2, Window: 2 * time.Hour}
	cfg.RateLimit.Registration = WindowConfig{MaxAttempts: 3, Window: 24 * time.Hour}
	cfg.RateLimit.Suspicious = WindowConfig{MaxAttempts: 5, Window: 2 * time.Hour}
	cfg.RateLimit.Breaker.Threshold = 300
	cfg.RateLimit.Breaker.Cooldown = 15 * time.Minute
	cfg.CSRF.TokenTTL = 30 * time.Minute
	return cfg
}

/*
====================================
VALIDATION
====================================
*/

func validWindow(w WindowConfig) bool {
	return w.MaxAttempts > 0 && w.Window > 0
}

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Config) Validate() error {
	// Token
	if c.Token.DefaultTTL <= 0 {
		return errors.New("Token DefaultTTL must be > 0")
	}
	if c.Token.Issuer == "" {
		return errors.New("Token Issuer is required")
	}
	if c.Token.Leeway < 0 {
		return errors.New("Token Leeway must be >= 0")
	}
	if c.Token.MaxFutureIAT < 0 {
		return errors.New("Token MaxFutureIAT must be >= 0")
	}

	// Rate limiting
	if c.RateLimit.RedisPrefix == "" {
		return errors.New("RateLimit RedisPrefix is required")
	}
	if !validWindow(c.RateLimit.AuthBurst) {
		return errors.New("RateLimit AuthBurst window is invalid")
	}
	if !validWindow(c.RateLimit.AuthSustained) {
		return errors.New("RateLimit AuthSustained window is invalid")
	}
	if c.RateLimit.AuthSustained.Window < c.RateLimit.AuthBurst.Window {
		return errors.New("RateLimit AuthSustained window must be >= AuthBurst window")
	}
	if !validWindow(c.RateLimit.API) {
		return errors.New("RateLimit API window is invalid")
	}
	if !validWindow(c.RateLimit.PasswordReset) {
		return errors.New("RateLimit PasswordReset window is invalid")
	}
	if !validWindow(c.RateLimit.Registration) {
		return errors.New("RateLimit Registration window is invalid")
	}
	if !validWindow(c.RateLimit.Suspicious) {
		return errors.New("RateLimit Suspicious window is invalid")
	}
	if c.RateLimit.Breaker.Enabled {
		if c.RateLimit.Breaker.Threshold <= 0 {
			return errors.New("RateLimit Breaker Threshold must be > 0 when breaker is enabled")
		}
		if c.RateLimit.Breaker.Window <= 0 {
			return errors.New("RateLimit Breaker Window must be > 0 when breaker is enabled")
		}
		if c.RateLimit.Breaker.Cooldown <= 0 {
			return errors.New("RateLimit Breaker Cooldown must be > 0 when breaker is enabled")
		}
	}

	// CSRF
	if c.CSRF.TokenTTL <= 0 {
		return errors.New("CSRF TokenTTL must be > 0")
	}
	if c.CSRF.RedisPrefix == "" {
		return errors.New("CSRF RedisPrefix is required")
	}

	// Error log
	if c.ErrorLog.BufferSize <= 0 {
		return errors.New("ErrorLog BufferSize must be > 0")
	}
	if c.ErrorLog.Retention <= 0 {
		return errors.New("ErrorLog Retention must be > 0")
	}

	// Sweep
	if c.Sweep.Interval <= 0 {
		return errors.New("Sweep Interval must be > 0")
	}
	if c.Sweep.RateWindowRetention < c.RateLimit.AuthSustained.Window {
		return errors.New("Sweep RateWindowRetention must cover the longest rate window")
	}

	return nil
}
