// Package rpcpool presents a single logical "make a blockchain RPC call"
// operation backed by redundant endpoint URLs, with health-aware selection,
// response caching and retry.
package rpcpool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/example/walletcore/internal/apperr"
	"github.com/example/walletcore/internal/cache"
	"github.com/example/walletcore/internal/retry"
)

// Endpoint pairs an RPC client with its health counter. The counter is
// mutated on every call outcome and only ever used for selection; it is
// never persisted.
type Endpoint struct {
	URL    string
	Client *rpc.Client

	failures int
}

// EndpointHealth is a read-only snapshot for diagnostics.
type EndpointHealth struct {
	URL      string `json:"url"`
	Failures int    `json:"failures"`
}

// Options configures a Pool. Zero values fall back to conservative defaults.
type Options struct {
	Commitment     rpc.CommitmentType
	Timeout        time.Duration
	Policy         retry.Policy
	FailureCeiling int
	CacheTTL       time.Duration
	Log            *zap.Logger
}

// Pool rotates requests across endpoints, preferring the one with the fewest
// consecutive failures. Endpoints are never removed: once every counter sits
// above the ceiling the pool resets them all instead of starving.
type Pool struct {
	mu        sync.Mutex
	endpoints []*Endpoint
	next      int

	cache *cache.Store[any]
	opts  Options
}

func New(urls []string, opts Options) *Pool {
	if opts.Commitment == "" {
		opts.Commitment = rpc.CommitmentFinalized
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.Policy.MaxAttemptsPerEndpoint <= 0 {
		opts.Policy.MaxAttemptsPerEndpoint = 3
	}
	if opts.Policy.Base <= 0 {
		opts.Policy.Base = 500 * time.Millisecond
	}
	if opts.Policy.Max <= 0 {
		opts.Policy.Max = 8 * time.Second
	}
	if opts.FailureCeiling <= 0 {
		opts.FailureCeiling = 5
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 10 * time.Second
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	eps := make([]*Endpoint, 0, len(urls))
	for _, u := range urls {
		eps = append(eps, &Endpoint{URL: u, Client: rpc.New(u)})
	}
	return &Pool{endpoints: eps, cache: cache.New[any](), opts: opts}
}

// Health reports per-endpoint failure counters.
func (p *Pool) Health() []EndpointHealth {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]EndpointHealth, 0, len(p.endpoints))
	for _, ep := range p.endpoints {
		out = append(out, EndpointHealth{URL: ep.URL, Failures: ep.failures})
	}
	return out
}

// pick selects the endpoint with the lowest failure count, ties broken by
// rotation order. If every counter exceeds the ceiling all counters reset
// first, so a transient full outage cannot permanently starve the pool.
func (p *Pool) pick() *Endpoint {
	p.mu.Lock()
	defer p.mu.Unlock()

	saturated := true
	for _, ep := range p.endpoints {
		if ep.failures <= p.opts.FailureCeiling {
			saturated = false
			break
		}
	}
	if saturated {
		for _, ep := range p.endpoints {
			ep.failures = 0
		}
		p.opts.Log.Warn("all endpoints above failure ceiling, resetting health counters",
			zap.Int("ceiling", p.opts.FailureCeiling))
	}

	n := len(p.endpoints)
	best := (p.next) % n
	for i := 1; i < n; i++ {
		idx := (p.next + i) % n
		if p.endpoints[idx].failures < p.endpoints[best].failures {
			best = idx
		}
	}
	p.next = (best + 1) % n
	return p.endpoints[best]
}

func (p *Pool) markSuccess(ep *Endpoint) {
	p.mu.Lock()
	if ep.failures > 0 {
		ep.failures--
	}
	p.mu.Unlock()
}

func (p *Pool) markFailure(ep *Endpoint) {
	p.mu.Lock()
	ep.failures++
	p.mu.Unlock()
}

// Do runs op against the healthiest endpoint with caching and retry.
//
// A fresh cache hit under cacheKey short-circuits without network I/O
// (pass "" to bypass caching). The retry budget is
// MaxAttemptsPerEndpoint x len(endpoints) with exponential backoff between
// attempts, except rate-limit failures which rotate immediately. When the
// budget is spent, a cached copy, even an expired one, is returned as a
// degraded success with stale=true; with no copy at all the last error
// propagates wrapped in apperr.ErrUpstreamUnavailable.
func Do[T any](ctx context.Context, p *Pool, cacheKey string, op func(ctx context.Context, ep *Endpoint) (T, error)) (T, bool, error) {
	var zero T
	if cacheKey != "" {
		if v, ok := p.cache.Get(cacheKey); ok {
			return v.(T), false, nil
		}
	}

	budget := p.opts.Policy.MaxAttemptsPerEndpoint * len(p.endpoints)
	var lastErr error
	for attempt := 0; attempt < budget; attempt++ {
		ep := p.pick()
		callCtx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
		res, err := op(callCtx, ep)
		cancel()
		if err == nil {
			p.markSuccess(ep)
			if cacheKey != "" {
				p.cache.Put(cacheKey, res, p.opts.CacheTTL)
			}
			return res, false, nil
		}
		p.markFailure(ep)
		lastErr = err
		p.opts.Log.Debug("rpc attempt failed",
			zap.String("endpoint", ep.URL),
			zap.Int("attempt", attempt+1),
			zap.Int("budget", budget),
			zap.Bool("rate_limited", retry.IsRateLimited(err)),
			zap.Error(err))
		if attempt < budget-1 {
			if werr := p.opts.Policy.Wait(ctx, attempt, err); werr != nil {
				lastErr = werr
				break
			}
		}
	}

	if cacheKey != "" {
		if v, ok := p.cache.GetStale(cacheKey); ok {
			p.opts.Log.Warn("all endpoints exhausted, serving stale cache entry",
				zap.String("cache_key", cacheKey),
				zap.Error(lastErr))
			return v.(T), true, nil
		}
	}
	return zero, false, fmt.Errorf("%w: %d attempts failed, last: %v", apperr.ErrUpstreamUnavailable, budget, lastErr)
}
