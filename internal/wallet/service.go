// Package wallet aggregates balances, token holdings and transaction history
// for a wallet address across the connection pool, the optional indexer fast
// path and the price service.
package wallet

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/example/walletcore/internal/apperr"
	"github.com/example/walletcore/internal/cache"
	"github.com/example/walletcore/internal/indexer"
	"github.com/example/walletcore/internal/rpcpool"
	"github.com/example/walletcore/internal/tokenmeta"
	"github.com/example/walletcore/internal/types"
)

// PriceSource resolves a symbol to a USD price; absence is the error signal.
type PriceSource interface {
	GetPrice(ctx context.Context, symbol string) (decimal.Decimal, bool)
}

// MetaResolver fills registry gaps at runtime (Metaplex, when enabled).
type MetaResolver interface {
	Resolve(ctx context.Context, mint string, decimals int) (tokenmeta.Info, error)
}

// Options tunes the aggregator's own cache tier, which sits above the
// connection pool's cache.
type Options struct {
	// HoldingsTTL is deliberately short: holdings are re-read right after
	// state-changing operations and must reflect near-real-time state.
	HoldingsTTL time.Duration
	HistoryTTL  time.Duration
	Log         *zap.Logger
}

type holdingsEntry struct {
	items []types.TokenHolding
	stale bool
}

type historyEntry struct {
	records []types.TransactionRecord
	stale   bool
}

// Service is the primary data-access surface the chat layer calls.
type Service struct {
	chain    rpcpool.ChainReader
	fast     indexer.Source // nil when no indexer is configured
	prices   PriceSource
	registry *tokenmeta.Registry
	resolver MetaResolver // nil unless Metaplex resolution is enabled

	holdings *cache.Store[holdingsEntry]
	history  *cache.Store[historyEntry]
	opts     Options
}

func NewService(chain rpcpool.ChainReader, fast indexer.Source, prices PriceSource, registry *tokenmeta.Registry, resolver MetaResolver, opts Options) *Service {
	if opts.HoldingsTTL <= 0 {
		opts.HoldingsTTL = 5 * time.Second
	}
	if opts.HistoryTTL <= 0 {
		opts.HistoryTTL = 10 * time.Second
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	return &Service{
		chain:    chain,
		fast:     fast,
		prices:   prices,
		registry: registry,
		resolver: resolver,
		holdings: cache.New[holdingsEntry](),
		history:  cache.New[historyEntry](),
		opts:     opts,
	}
}

// ParseAddress validates a base58 wallet address before any network I/O.
func ParseAddress(addr string) (solana.PublicKey, error) {
	pk, err := solana.PublicKeyFromBase58(addr)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: %q", apperr.ErrInvalidAddress, addr)
	}
	return pk, nil
}

// GetNativeBalance returns the wallet's SOL balance. Total upstream failure
// degrades to 0; only a malformed address is an error.
func (s *Service) GetNativeBalance(ctx context.Context, addr string) (float64, error) {
	pk, err := ParseAddress(addr)
	if err != nil {
		return 0, err
	}
	lamports, _ := s.chain.GetBalance(ctx, pk)
	return types.LamportsToSol(lamports), nil
}

// GetHoldings returns the wallet's complete position list, native asset
// first. The stale flag marks results assembled from expired cache data.
func (s *Service) GetHoldings(ctx context.Context, addr string) ([]types.TokenHolding, bool, error) {
	pk, err := ParseAddress(addr)
	if err != nil {
		return nil, false, err
	}
	cacheKey := "holdings:" + addr
	if e, ok := s.holdings.Get(cacheKey); ok {
		return e.items, e.stale, nil
	}

	lamports, stale := s.chain.GetBalance(ctx, pk)
	native := s.nativeHolding(ctx, lamports)
	items := []types.TokenHolding{native}

	accounts, accStale, err := s.tokenAccounts(ctx, pk, addr)
	if err != nil {
		// cold cache during a total outage is the one read error we surface
		return nil, false, err
	}
	stale = stale || accStale

	for _, acct := range accounts {
		if acct.Amount == 0 {
			continue
		}
		// the wrapped mint duplicates the native balance row
		if acct.Mint == tokenmeta.WrappedSOLMint {
			continue
		}
		items = append(items, s.buildHolding(ctx, acct))
	}

	s.holdings.Put(cacheKey, holdingsEntry{items: items, stale: stale}, s.opts.HoldingsTTL)
	return items, stale, nil
}

// InvalidateHoldings drops the cached holdings for one address so the next
// read observes live chain state. Balance verification captures call this
// before reading: a cached entry may predate the transaction under test.
func (s *Service) InvalidateHoldings(addr string) {
	s.holdings.Invalidate("holdings:" + addr)
}

// tokenAccounts tries the indexer fast path first and falls through to the
// raw account scan on any error.
func (s *Service) tokenAccounts(ctx context.Context, pk solana.PublicKey, addr string) ([]rpcpool.TokenAccount, bool, error) {
	if s.fast != nil {
		accounts, err := s.fast.TokenAccounts(ctx, addr)
		if err == nil {
			return accounts, false, nil
		}
		s.opts.Log.Warn("indexer fast path failed, falling back to account scan",
			zap.String("address", addr),
			zap.Error(err))
	}
	return s.chain.TokenAccounts(ctx, pk)
}

func (s *Service) nativeHolding(ctx context.Context, lamports uint64) types.TokenHolding {
	info, _ := s.registry.Lookup(tokenmeta.NativeMint)
	amount := types.LamportsToSol(lamports)
	h := types.TokenHolding{
		Symbol:   info.Symbol,
		Name:     info.Name,
		Amount:   amount,
		Mint:     tokenmeta.NativeMint,
		Decimals: info.Decimals,
		LogoURL:  info.LogoURL,
	}
	if p, ok := s.prices.GetPrice(ctx, info.Symbol); ok {
		usd := p.Mul(decimal.NewFromFloat(amount))
		h.USDValue = &usd
	}
	return h
}

func (s *Service) buildHolding(ctx context.Context, acct rpcpool.TokenAccount) types.TokenHolding {
	info, known := s.registry.Lookup(acct.Mint)
	if !known && s.resolver != nil {
		if resolved, err := s.resolver.Resolve(ctx, acct.Mint, acct.Decimals); err == nil {
			info, known = resolved, true
		}
	}
	if !known {
		info = tokenmeta.Info{Symbol: tokenmeta.UnknownSymbol, Name: tokenmeta.UnknownSymbol, Decimals: acct.Decimals}
	}
	h := types.TokenHolding{
		Symbol:   info.Symbol,
		Name:     info.Name,
		Amount:   acct.Amount,
		Mint:     acct.Mint,
		Decimals: info.Decimals,
		LogoURL:  info.LogoURL,
	}
	if info.Symbol != tokenmeta.UnknownSymbol {
		if p, ok := s.prices.GetPrice(ctx, info.Symbol); ok {
			usd := p.Mul(decimal.NewFromFloat(acct.Amount))
			h.USDValue = &usd
		}
	}
	return h
}

// GetCompleteWalletData assembles holdings and recent history concurrently.
// A history failure degrades to an empty list; holdings failures follow the
// GetHoldings error contract.
func (s *Service) GetCompleteWalletData(ctx context.Context, addr string, txLimit int) (*types.WalletData, error) {
	if _, err := ParseAddress(addr); err != nil {
		return nil, err
	}

	var (
		holdings      []types.TokenHolding
		holdingsStale bool
		records       []types.TransactionRecord
		historyStale  bool
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		holdings, holdingsStale, err = s.GetHoldings(gctx, addr)
		return err
	})
	g.Go(func() error {
		var err error
		records, historyStale, err = s.GetTransactionHistory(gctx, addr, txLimit)
		if err != nil {
			s.opts.Log.Warn("transaction history unavailable, omitting from wallet data",
				zap.String("address", addr),
				zap.Error(err))
			records = nil
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	data := &types.WalletData{
		Address:      addr,
		Holdings:     holdings,
		TotalUSD:     types.SumUSD(holdings),
		Transactions: records,
		Stale:        holdingsStale || historyStale,
		FetchedAt:    types.NowRFC3339(),
	}
	if len(holdings) > 0 {
		data.SolBalance = holdings[0].Amount
	}
	return data, nil
}
