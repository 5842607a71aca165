// Package price resolves token symbols to USD spot prices with caching and
// stale-on-error fallback. Absence is the only error signal: lookups never
// return an error.
package price

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/example/walletcore/internal/cache"
	"github.com/example/walletcore/internal/retry"
)

// stableSymbols short-circuit to 1.0 with zero network access.
var stableSymbols = map[string]bool{
	"USDC":  true,
	"USDT":  true,
	"DAI":   true,
	"PYUSD": true,
}

// coinIDs maps symbols to CoinGecko ids where the lowercased symbol is not
// already the id.
var coinIDs = map[string]string{
	"SOL":  "solana",
	"WSOL": "wrapped-solana",
	"BTC":  "bitcoin",
	"ETH":  "ethereum",
	"WIF":  "dogwifcoin",
	"JUP":  "jupiter-exchange-solana",
	"RAY":  "raydium",
	"ORCA": "orca",
}

type Service struct {
	baseURL string
	ttl     time.Duration
	client  *http.Client
	limiter *rate.Limiter
	cache   *cache.Store[decimal.Decimal]
	log     *zap.Logger
}

func NewService(baseURL string, ttl time.Duration, rps int, log *zap.Logger) *Service {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	if rps <= 0 {
		rps = 4
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		baseURL: strings.TrimRight(baseURL, "/"),
		ttl:     ttl,
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
		cache:   cache.New[decimal.Decimal](),
		log:     log,
	}
}

// GetPrice resolves symbol to its USD price. Stable assets short-circuit to
// 1.0, cached prices are reused for the configured TTL, and an upstream
// failure falls back to the last cached price before giving up with
// ok=false.
func (s *Service) GetPrice(ctx context.Context, symbol string) (decimal.Decimal, bool) {
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	if sym == "" {
		return decimal.Zero, false
	}
	if stableSymbols[sym] {
		return decimal.NewFromInt(1), true
	}
	if v, ok := s.cache.Get(sym); ok {
		return v, true
	}

	v, err := s.fetch(ctx, sym)
	if err != nil {
		if last, ok := s.cache.GetStale(sym); ok {
			s.log.Warn("price fetch failed, using last known price",
				zap.String("symbol", sym),
				zap.Error(err))
			return last, true
		}
		s.log.Warn("price unavailable", zap.String("symbol", sym), zap.Error(err))
		return decimal.Zero, false
	}
	s.cache.Put(sym, v, s.ttl)
	return v, true
}

// Invalidate drops a cached symbol, or everything when symbol is empty.
// Symbols are normalized the same way GetPrice normalizes them.
func (s *Service) Invalidate(symbol string) {
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	if sym == "" {
		s.cache.InvalidateAll()
		return
	}
	s.cache.Invalidate(sym)
}

func (s *Service) fetch(ctx context.Context, sym string) (decimal.Decimal, error) {
	id := coinIDs[sym]
	if id == "" {
		id = strings.ToLower(sym)
	}

	var out decimal.Decimal
	op := func() error {
		if err := s.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		u := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=usd", s.baseURL, url.QueryEscape(id))
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := s.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			err := fmt.Errorf("price api status %d", resp.StatusCode)
			// 429 and 5xx are worth retrying, other client errors are not
			if resp.StatusCode >= 500 || retry.IsRateLimited(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		var body map[string]map[string]float64
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return err
		}
		usd, ok := body[id]["usd"]
		if !ok {
			return backoff.Permanent(fmt.Errorf("no usd quote for %s", id))
		}
		out = decimal.NewFromFloat(usd)
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 250 * time.Millisecond
	bo.MaxElapsedTime = 10 * time.Second
	if err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, 3), ctx)); err != nil {
		return decimal.Zero, err
	}
	return out, nil
}
