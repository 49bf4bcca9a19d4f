package scanner

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/kestrelworks/oppintel/internal/contracts"
	"github.com/kestrelworks/oppintel/pkg/logger"
	"github.com/kestrelworks/oppintel/pkg/redis"
)

// Scanner fetches raw candidate opportunities from one external source.
// Implementations own their rate limiting and result caching. Expected
// upstream failures (HTTP errors, empty feeds) are returned as error
// values for the orchestrator to report; they must not panic.
type Scanner interface {
	Name() string
	Scan(ctx context.Context) ([]contracts.Opportunity, error)
}

// Options carries the shared knobs a scanner needs. SharedLimiter is
// the cross-process budget for deployments running several pipeline
// instances against one upstream; it allows everything when Redis is
// disabled.
type Options struct {
	Cache         *redis.Cache
	SharedLimiter *redis.RateLimiter
	CacheTTL      time.Duration
	RatePerMinute int
	Timeout       time.Duration
}

// base bundles the caching and rate limiting every concrete scanner
// shares. Scanners embed it and call cachedScan around their fetch.
type base struct {
	name          string
	cache         *redis.Cache
	cacheTTL      time.Duration
	limiter       *rate.Limiter
	shared        *redis.RateLimiter
	ratePerMinute int
	logger        *logger.Logger
}

func newBase(name string, opts Options, log *logger.Logger) base {
	perMinute := opts.RatePerMinute
	if perMinute <= 0 {
		perMinute = 60
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	return base{
		name:     name,
		cache:    opts.Cache,
		cacheTTL: ttl,
		// Burst sized to the window so a quiet scanner can catch up,
		// then issuance suspends until the budget refills.
		limiter:       rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), perMinute),
		shared:        opts.SharedLimiter,
		ratePerMinute: perMinute,
		logger:        log.WithField("scanner", name),
	}
}

// Name returns the scanner identifier
func (b *base) Name() string {
	return b.name
}

// Limiter exposes the scanner's request budget for its HTTP client
func (b *base) Limiter() *rate.Limiter {
	return b.limiter
}

// cachedScan returns the cached result set when present, otherwise
// invokes fetch and caches its output for the configured window.
func (b *base) cachedScan(ctx context.Context, fetch func(context.Context) ([]contracts.Opportunity, error)) ([]contracts.Opportunity, error) {
	key := redis.ScanResultKey(b.name)

	if b.cache != nil {
		var cached []contracts.Opportunity
		found, err := b.cache.Get(ctx, key, &cached)
		if err == nil && found {
			b.logger.WithField("count", len(cached)).Debug("Scan served from cache")
			return cached, nil
		}
	}

	// Shared budget across pipeline instances, checked before the
	// upstream call; the embedded limiter paces this process.
	if b.shared != nil {
		cfg := redis.RateLimitConfig{Key: b.name, Limit: b.ratePerMinute, Window: time.Minute}
		if err := b.shared.Wait(ctx, cfg); err != nil {
			return nil, fmt.Errorf("shared rate limit wait: %w", err)
		}
	}

	opportunities, err := fetch(ctx)
	if err != nil {
		return nil, err
	}

	if b.cache != nil && len(opportunities) > 0 {
		if err := b.cache.Set(ctx, key, opportunities, b.cacheTTL); err != nil {
			b.logger.WithError(err).Warn("Failed to cache scan result")
		}
	}

	return opportunities, nil
}
