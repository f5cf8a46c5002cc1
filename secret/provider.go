package secret

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	// SettingsKey is the settings-row key the signing secret lives under.
	SettingsKey = "signing_secret"

	secretSize = 32

	// fallbackSeed is the single authoritative input for degraded-mode
	// derivation. Changing it invalidates every token signed during an
	// outage.
	fallbackSeed = "ledgerkeep/authcore/fallback-signing-secret/v1"
)

var (
	// ErrNotFound reports an absent settings row.
	ErrNotFound = errors.New("settings row not found")
	// ErrStoreUnavailable reports an unreachable settings store.
	ErrStoreUnavailable = errors.New("settings store unavailable")
)

// Store persists the signing-secret settings row.
type Store interface {
	// Get returns the committed secret, or ErrNotFound.
	Get(ctx context.Context) ([]byte, time.Time, error)
	// PutIfAbsent writes value only when no row exists yet. It must be
	// atomic with respect to concurrent writers.
	PutIfAbsent(ctx context.Context, value []byte) error
	// Replace upserts value unconditionally. Used by rotation only.
	Replace(ctx context.Context, value []byte) error
}

// Provider is the process-local read-through cache over [Store]. Safe for
// concurrent use; the cache is invalidated only by [Provider.Rotate].
type Provider struct {
	store  Store
	logger zerolog.Logger

	mu       sync.Mutex
	cached   []byte
	degraded bool
}

// NewProvider returns a [Provider] over the given store.
func NewProvider(store Store, logger zerolog.Logger) (*Provider, error) {
	if store == nil {
		return nil, errors.New("nil settings store")
	}
	return &Provider{store: store, logger: logger}, nil
}

// Current returns the authoritative signing secret. On the first call it
// loads (or creates) the settings row and caches the committed value for
// the remainder of process lifetime. If the store is unreachable it
// returns the deterministic fallback and marks the provider degraded.
func (p *Provider) Current(ctx context.Context) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cached != nil {
		return p.cached, nil
	}

	value, err := p.load(ctx)
	if err != nil {
		p.degraded = true
		p.logger.Warn().
			Err(err).
			Msg("settings store unreachable, serving deterministic fallback signing secret")
		return fallbackSecret(), nil
	}

	p.cached = value
	p.degraded = false
	return p.cached, nil
}

// Degraded reports whether the last resolution fell back to the
// deterministic degraded-mode secret. Operators should alert on this.
func (p *Provider) Degraded() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.degraded
}

// Rotate replaces the settings row with newSecret (generated when nil)
// and invalidates the cache. Explicit administrative operation; reads
// never trigger it.
func (p *Provider) Rotate(ctx context.Context, newSecret []byte) ([]byte, error) {
	if len(newSecret) == 0 {
		generated, err := randomSecret()
		if err != nil {
			return nil, err
		}
		newSecret = generated
	}

	if err := p.store.Replace(ctx, newSecret); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	p.mu.Lock()
	p.cached = append([]byte(nil), newSecret...)
	p.degraded = false
	p.mu.Unlock()

	p.logger.Info().Msg("signing secret rotated")
	return newSecret, nil
}

// load resolves the committed row, creating it when absent. The re-read
// after PutIfAbsent is deliberate: under a first-caller race the committed
// value may belong to another process, and caching a locally generated
// loser would split the deployment across two secrets.
func (p *Provider) load(ctx context.Context) ([]byte, error) {
	value, _, err := p.store.Get(ctx)
	if err == nil {
		return value, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	generated, err := randomSecret()
	if err != nil {
		return nil, err
	}
	if err := p.store.PutIfAbsent(ctx, generated); err != nil {
		return nil, err
	}

	value, _, err = p.store.Get(ctx)
	if err != nil {
		return nil, err
	}
	return value, nil
}

func randomSecret() ([]byte, error) {
	buf := make([]byte, secretSize)
	if _, err := rand.Read(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func fallbackSecret() []byte {
	sum := sha256.Sum256([]byte(fallbackSeed))
	return sum[:]
}
