package rpcpool

import (
	"context"
	"errors"
	"testing"
	"time"

	jrpc "github.com/gagliardetto/solana-go/rpc/jsonrpc"

	"github.com/example/walletcore/internal/apperr"
	"github.com/example/walletcore/internal/retry"
)

func newTestPool(urls []string, maxAttempts int, cacheTTL time.Duration) *Pool {
	return New(urls, Options{
		Timeout:        time.Second,
		Policy:         retry.Policy{MaxAttemptsPerEndpoint: maxAttempts, Base: time.Millisecond, Max: 4 * time.Millisecond},
		FailureCeiling: 5,
		CacheTTL:       cacheTTL,
	})
}

func TestDo_CacheHitSkipsNetwork(t *testing.T) {
	p := newTestPool([]string{"http://e1"}, 3, time.Minute)
	ctx := context.Background()
	calls := 0
	op := func(_ context.Context, _ *Endpoint) (int, error) {
		calls++
		return 7, nil
	}
	v, stale, err := Do(ctx, p, "k", op)
	if err != nil || stale || v != 7 {
		t.Fatalf("first: v=%d stale=%v err=%v", v, stale, err)
	}
	v, stale, err = Do(ctx, p, "k", op)
	if err != nil || stale || v != 7 {
		t.Fatalf("second: v=%d stale=%v err=%v", v, stale, err)
	}
	if calls != 1 {
		t.Fatalf("op calls=%d, want 1 (fresh cache must short-circuit)", calls)
	}
}

func TestDo_StaleFallbackAfterExpiry(t *testing.T) {
	p := newTestPool([]string{"http://e1"}, 2, 30*time.Millisecond)
	ctx := context.Background()

	// populate the cache with v1
	_, _, err := Do(ctx, p, "k", func(_ context.Context, _ *Endpoint) (string, error) {
		return "v1", nil
	})
	if err != nil {
		t.Fatalf("seed err=%v", err)
	}
	time.Sleep(50 * time.Millisecond)

	// live refresh now fails; the expired entry is served as a degraded
	// success, distinguishable from a fresh one by the stale flag
	v, stale, err := Do(ctx, p, "k", func(_ context.Context, _ *Endpoint) (string, error) {
		return "", errors.New("connection refused")
	})
	if err != nil {
		t.Fatalf("stale fallback should not error: %v", err)
	}
	if v != "v1" || !stale {
		t.Fatalf("v=%q stale=%v, want v1/true", v, stale)
	}
}

func TestDo_ColdCacheOutagePropagatesUpstreamUnavailable(t *testing.T) {
	p := newTestPool([]string{"http://e1", "http://e2"}, 2, time.Minute)
	_, _, err := Do(context.Background(), p, "missing", func(_ context.Context, _ *Endpoint) (int, error) {
		return 0, errors.New("boom")
	})
	if !errors.Is(err, apperr.ErrUpstreamUnavailable) {
		t.Fatalf("err=%v, want ErrUpstreamUnavailable", err)
	}
}

func TestDo_RotationConvergesAwayFromFailingEndpoint(t *testing.T) {
	p := newTestPool([]string{"http://bad", "http://good1", "http://good2"}, 3, 0)
	ctx := context.Background()

	badCalls := 0
	op := func(_ context.Context, ep *Endpoint) (int, error) {
		if ep.URL == "http://bad" {
			badCalls++
			return 0, errors.New("down")
		}
		return 1, nil
	}
	for i := 0; i < 20; i++ {
		if _, _, err := Do(ctx, p, "", op); err != nil {
			t.Fatalf("call %d err=%v", i, err)
		}
	}
	// health-based selection must route the vast majority of calls away from
	// the endpoint that fails every request
	if badCalls > 6 {
		t.Fatalf("bad endpoint received %d calls across 20 requests", badCalls)
	}
}

func TestDo_HealthResetWhenAllSaturated(t *testing.T) {
	p := newTestPool([]string{"http://e1", "http://e2"}, 4, 0)
	p.opts.FailureCeiling = 2
	ctx := context.Background()

	// exhaust one full budget so every endpoint sits above the ceiling
	_, _, err := Do(ctx, p, "", func(_ context.Context, _ *Endpoint) (int, error) {
		return 0, errors.New("outage")
	})
	if err == nil {
		t.Fatalf("expected outage error")
	}
	for _, h := range p.Health() {
		if h.Failures <= p.opts.FailureCeiling {
			t.Fatalf("setup: endpoint %s failures=%d not above ceiling", h.URL, h.Failures)
		}
	}

	// the next request must still find an endpoint instead of looping forever
	v, stale, err := Do(ctx, p, "", func(_ context.Context, _ *Endpoint) (int, error) {
		return 99, nil
	})
	if err != nil || stale || v != 99 {
		t.Fatalf("post-reset: v=%d stale=%v err=%v", v, stale, err)
	}
}

func TestDo_RateLimitRotatesWithoutBackoff(t *testing.T) {
	// E1 always answers 429, E2 is healthy; with a deliberately huge base
	// delay the call only stays fast if 429 skips the backoff entirely.
	p := New([]string{"http://e1", "http://e2"}, Options{
		Timeout:        time.Second,
		Policy:         retry.Policy{MaxAttemptsPerEndpoint: 3, Base: 10 * time.Second, Max: time.Minute},
		FailureCeiling: 5,
		CacheTTL:       time.Minute,
	})
	start := time.Now()
	v, stale, err := Do(context.Background(), p, "", func(_ context.Context, ep *Endpoint) (string, error) {
		if ep.URL == "http://e1" {
			return "", &jrpc.RPCError{Code: 429, Message: "too many requests"}
		}
		return "ok", nil
	})
	if err != nil || stale || v != "ok" {
		t.Fatalf("v=%q stale=%v err=%v", v, stale, err)
	}
	if time.Since(start) > time.Second {
		t.Fatalf("429 rotation took %v, backoff was not skipped", time.Since(start))
	}
}

func TestPool_HealthSnapshot(t *testing.T) {
	p := newTestPool([]string{"http://a", "http://b"}, 1, 0)
	h := p.Health()
	if len(h) != 2 || h[0].URL != "http://a" || h[0].Failures != 0 {
		t.Fatalf("health=%v", h)
	}
}
