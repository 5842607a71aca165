// Package verify confirms that a submitted swap or transfer actually landed
// by comparing balance snapshots taken before and after submission.
package verify

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/example/walletcore/internal/apperr"
	"github.com/example/walletcore/internal/tokenmeta"
	"github.com/example/walletcore/internal/types"
)

// Direction is the expected sign of a balance change.
type Direction int

const (
	Decrease Direction = iota
	Increase
)

func (d Direction) String() string {
	if d == Increase {
		return "increase"
	}
	return "decrease"
}

// HoldingsSource is the slice of the wallet aggregator the verifier needs.
type HoldingsSource interface {
	GetHoldings(ctx context.Context, addr string) ([]types.TokenHolding, bool, error)
	// InvalidateHoldings drops any cached holdings for addr so the next
	// read observes live chain state.
	InvalidateHoldings(addr string)
}

// Verifier captures balance snapshots and checks directional changes across
// a submitted transaction. It never resubmits anything: a failed check only
// means the caller must re-check before retrying.
type Verifier struct {
	source HoldingsSource
	// settleDelay gives the cluster time to finalize before the post
	// snapshot.
	settleDelay time.Duration
	log         *zap.Logger
}

func New(source HoldingsSource, settleDelay time.Duration, log *zap.Logger) *Verifier {
	if settleDelay <= 0 {
		settleDelay = 2 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Verifier{source: source, settleDelay: settleDelay, log: log}
}

// Snapshot maps symbol to balance at capture time. Unknown mints are keyed
// by mint address so two distinct unrecognized tokens never collapse into
// one entry.
type Snapshot map[string]decimal.Decimal

// CaptureBalances flattens the wallet's holdings into a snapshot. Stale data
// is rejected: an expired cache entry cannot prove anything about whether a
// transaction landed.
func (v *Verifier) CaptureBalances(ctx context.Context, addr string) (Snapshot, error) {
	// a cached entry may predate the transaction being verified; the
	// holdings TTL exists for display reads, not for captures
	v.source.InvalidateHoldings(addr)
	holdings, stale, err := v.source.GetHoldings(ctx, addr)
	if err != nil {
		return nil, err
	}
	if stale {
		return nil, fmt.Errorf("%w: balances for %s served from expired cache", apperr.ErrStaleData, addr)
	}
	snap := make(Snapshot, len(holdings))
	for _, h := range holdings {
		key := h.Symbol
		if key == tokenmeta.UnknownSymbol {
			key = h.Mint
		}
		snap[key] = snap[key].Add(decimal.NewFromFloat(h.Amount))
	}
	return snap, nil
}

// DirectionalChange reports whether symbol moved in the expected direction
// between two snapshots. A symbol absent from a snapshot counts as zero, so
// a token appearing for the first time is an increase and one emptied to the
// point of account closure is a decrease.
func DirectionalChange(before, after Snapshot, symbol string, dir Direction) bool {
	delta := after[symbol].Sub(before[symbol])
	if dir == Increase {
		return delta.IsPositive()
	}
	return delta.IsNegative()
}

// Expectation is one directional assertion against a symbol.
type Expectation struct {
	Symbol    string
	Direction Direction
}

// SwapExpectations is the standard post-swap check: source down, destination
// up.
func SwapExpectations(sourceSymbol, destSymbol string) []Expectation {
	return []Expectation{
		{Symbol: sourceSymbol, Direction: Decrease},
		{Symbol: destSymbol, Direction: Increase},
	}
}

// TransferExpectations covers an outgoing transfer from the captured wallet.
func TransferExpectations(sourceSymbol string) []Expectation {
	return []Expectation{{Symbol: sourceSymbol, Direction: Decrease}}
}

// Check compares two snapshots against a set of expectations and returns
// ErrVerificationFailed naming the first one that did not hold.
func Check(before, after Snapshot, expects []Expectation) error {
	for _, e := range expects {
		if !DirectionalChange(before, after, e.Symbol, e.Direction) {
			return fmt.Errorf("%w: expected %s to %s (before=%s after=%s)",
				apperr.ErrVerificationFailed, e.Symbol, e.Direction,
				before[e.Symbol], after[e.Symbol])
		}
	}
	return nil
}

// Confirm waits out the settle delay, recaptures and checks expectations
// against a pre-submission snapshot. Meant to be called right after the
// caller has submitted the transaction.
func (v *Verifier) Confirm(ctx context.Context, addr string, before Snapshot, expects []Expectation) error {
	select {
	case <-time.After(v.settleDelay):
	case <-ctx.Done():
		return ctx.Err()
	}
	after, err := v.CaptureBalances(ctx, addr)
	if err != nil {
		return err
	}
	if err := Check(before, after, expects); err != nil {
		v.log.Warn("post-submission verification failed",
			zap.String("address", addr),
			zap.Error(err))
		return err
	}
	return nil
}
