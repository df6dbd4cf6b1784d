package geocode

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/example/party-rides/internal/models"
	"github.com/example/party-rides/internal/observability"
)

// ErrUnavailable is the only error Resolve returns. Callers treat it as
// "leave this address out", never as a failure of their own operation.
var ErrUnavailable = errors.New("geocode: address unavailable")

// ErrNotFound is returned by providers when the address has no match.
var ErrNotFound = errors.New("geocode: no result")

// Provider turns an address into coordinates using an external service.
type Provider interface {
	Lookup(ctx context.Context, address string) (models.Coordinates, error)
}

// Cache stores resolved coordinates by normalized-address hash. Entries never
// expire and Put must be an idempotent upsert, so concurrent resolvers can
// write the same key without coordination.
type Cache interface {
	Get(ctx context.Context, key string) (models.Coordinates, bool, error)
	Put(ctx context.Context, key string, c models.Coordinates) error
}

type Resolver struct {
	provider Provider
	cache    Cache
	timeout  time.Duration
	logger   *slog.Logger
	group    singleflight.Group
}

// NewResolver wires a provider behind a cache. provider may be nil, in which
// case only cached addresses resolve.
func NewResolver(provider Provider, cache Cache, timeout time.Duration, logger *slog.Logger) *Resolver {
	if cache == nil {
		cache = NewMemoryCache()
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{provider: provider, cache: cache, timeout: timeout, logger: logger}
}

// Normalize folds case, trims and collapses whitespace so that trivially
// different spellings of one address share a cache entry.
func Normalize(address string) string {
	return strings.Join(strings.Fields(strings.ToLower(address)), " ")
}

// Key is the cache key for an address: hex SHA-256 of its normalized form.
func Key(address string) string {
	sum := sha256.Sum256([]byte(Normalize(address)))
	return hex.EncodeToString(sum[:])
}

func (r *Resolver) Resolve(ctx context.Context, address string) (models.Coordinates, error) {
	normalized := Normalize(address)
	if normalized == "" {
		observability.GeocodeLookupsTotal.WithLabelValues("empty").Inc()
		return models.Coordinates{}, fmt.Errorf("%w: empty address", ErrUnavailable)
	}
	key := Key(normalized)

	if c, ok, err := r.cache.Get(ctx, key); err != nil {
		r.logger.Warn("geocode cache read failed", "key", key, "error", err)
	} else if ok {
		observability.GeocodeLookupsTotal.WithLabelValues("hit").Inc()
		return c, nil
	}

	// the shared lookup outlives whichever caller started it; each caller
	// waits on its own ctx
	shared := context.WithoutCancel(ctx)
	ch := r.group.DoChan(key, func() (any, error) {
		return r.lookup(shared, key, normalized)
	})
	select {
	case <-ctx.Done():
		observability.GeocodeLookupsTotal.WithLabelValues("cancelled").Inc()
		return models.Coordinates{}, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return models.Coordinates{}, res.Err
		}
		return res.Val.(models.Coordinates), nil
	}
}

func (r *Resolver) lookup(ctx context.Context, key, normalized string) (models.Coordinates, error) {
	if r.provider == nil {
		observability.GeocodeLookupsTotal.WithLabelValues("unavailable").Inc()
		return models.Coordinates{}, fmt.Errorf("%w: no provider configured", ErrUnavailable)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	c, err := r.provider.Lookup(ctx, normalized)
	observability.GeocodeLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			observability.GeocodeLookupsTotal.WithLabelValues("unavailable").Inc()
		} else {
			observability.GeocodeLookupsTotal.WithLabelValues("error").Inc()
			r.logger.Warn("geocode provider failed", "key", key, "error", err)
		}
		return models.Coordinates{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	observability.GeocodeLookupsTotal.WithLabelValues("miss").Inc()

	putCtx, putCancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer putCancel()
	if err := r.cache.Put(putCtx, key, c); err != nil {
		r.logger.Warn("geocode cache write failed", "key", key, "error", err)
	}
	return c, nil
}
