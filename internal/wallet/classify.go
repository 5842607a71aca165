package wallet

import (
	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"

	"github.com/example/walletcore/internal/rpcpool"
	"github.com/example/walletcore/internal/tokenmeta"
	"github.com/example/walletcore/internal/types"
)

// Known DEX router/AMM program ids. Any instruction touching one of these
// marks the whole transaction as a swap.
var swapPrograms = map[string]string{
	"JUP6LkbZbjS1jKKwapdHNy74zcZ3tLUZoi5QNyVTaV4": "jupiter",
	"675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8": "raydium",
	"whirLbMiicVdio4qvUfM5KAg6Ct8VwpYzGff3uctyCc":  "orca",
	"6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P":  "pumpfun",
}

var transferPrograms = map[string]bool{
	solana.TokenProgramID.String():  true,
	solana.SystemProgramID.String(): true,
}

// classifyPrograms maps a transaction's instruction program ids to a type.
// Swap recognition wins over transfer since swaps route through the token
// program internally.
func classifyPrograms(programIDs []string) string {
	txType := types.TxUnknown
	for _, id := range programIDs {
		if _, ok := swapPrograms[id]; ok {
			return types.TxSwap
		}
		if transferPrograms[id] {
			txType = types.TxTransfer
		}
	}
	return txType
}

// assetDiff is the owner's net balance change for one mint.
type assetDiff struct {
	mint  string
	delta decimal.Decimal
}

// ownerTokenDiffs computes post-minus-pre token deltas for balances owned by
// owner, keeping only non-zero changes.
func ownerTokenDiffs(tx *rpcpool.ParsedTransaction, owner string) []assetDiff {
	pre := make(map[string]decimal.Decimal)
	for _, tb := range tx.PreTokenBalances {
		if tb.Owner == owner {
			pre[tb.Mint] = pre[tb.Mint].Add(decimal.NewFromFloat(tb.Amount))
		}
	}
	post := make(map[string]decimal.Decimal)
	order := make([]string, 0, 4)
	for _, tb := range tx.PostTokenBalances {
		if tb.Owner == owner {
			if _, seen := post[tb.Mint]; !seen {
				order = append(order, tb.Mint)
			}
			post[tb.Mint] = post[tb.Mint].Add(decimal.NewFromFloat(tb.Amount))
		}
	}
	for mint := range pre {
		if _, seen := post[mint]; !seen {
			order = append(order, mint)
		}
	}

	diffs := make([]assetDiff, 0, len(order))
	for _, mint := range order {
		delta := post[mint].Sub(pre[mint])
		if !delta.IsZero() {
			diffs = append(diffs, assetDiff{mint: mint, delta: delta})
		}
	}
	return diffs
}

// ownerNativeDiff returns the owner's lamport delta, or zero when the owner
// is not among the account keys.
func ownerNativeDiff(tx *rpcpool.ParsedTransaction, owner string) decimal.Decimal {
	for i, key := range tx.AccountKeys {
		if key != owner {
			continue
		}
		if i < len(tx.PreBalances) && i < len(tx.PostBalances) {
			return decimal.New(int64(tx.PostBalances[i]), 0).Sub(decimal.New(int64(tx.PreBalances[i]), 0))
		}
		break
	}
	return decimal.Zero
}

func lamportsToSolDec(lamports decimal.Decimal) decimal.Decimal {
	return lamports.Shift(-9)
}

// buildRecord turns a flattened transaction into the display record the chat
// layer renders. Classification is heuristic: when balance deltas cannot be
// attributed, a fixed SOL/USDC pairing with a zero amount is reported rather
// than dropping the row.
func buildRecord(registry *tokenmeta.Registry, owner string, info rpcpool.SignatureInfo, tx *rpcpool.ParsedTransaction) types.TransactionRecord {
	rec := types.TransactionRecord{
		Signature: tx.Signature,
		Type:      classifyPrograms(tx.ProgramIDs),
		Status:    types.TxConfirmed,
	}
	if tx.Failed || info.Failed {
		rec.Status = types.TxFailed
	}
	if !tx.BlockTime.IsZero() {
		rec.Timestamp = tx.BlockTime.UnixMilli()
	} else if !info.BlockTime.IsZero() {
		rec.Timestamp = info.BlockTime.UnixMilli()
	}
	rec.Fee = decimal.New(int64(tx.FeeLamports), -9).String()

	tokenDiffs := ownerTokenDiffs(tx, owner)
	nativeDiff := ownerNativeDiff(tx, owner)

	switch rec.Type {
	case types.TxSwap:
		fillSwap(registry, &rec, tokenDiffs, nativeDiff, tx.FeeLamports)
	case types.TxTransfer:
		fillTransfer(registry, &rec, tx, owner, tokenDiffs, nativeDiff, tx.FeeLamports)
	default:
		rec.SourceAsset = tokenmeta.NativeSymbol
		rec.Amount = nativeAmountAbs(nativeDiff, tx.FeeLamports).String()
	}
	return rec
}

// fillSwap picks the outgoing and incoming legs from the owner's balance
// deltas. The native delta (net of the fee) stands in for one leg when only
// one token moved.
func fillSwap(registry *tokenmeta.Registry, rec *types.TransactionRecord, diffs []assetDiff, nativeDiff decimal.Decimal, feeLamports uint64) {
	var src, dst *assetDiff
	for i := range diffs {
		d := &diffs[i]
		if d.delta.IsNegative() && src == nil {
			src = d
		} else if d.delta.IsPositive() && dst == nil {
			dst = d
		}
	}

	nativeNet := nativeDiff.Add(decimal.New(int64(feeLamports), 0))
	switch {
	case src != nil && dst != nil:
		rec.SourceAsset = registry.SymbolForMint(src.mint)
		rec.DestAsset = registry.SymbolForMint(dst.mint)
		rec.Amount = src.delta.Abs().String()
	case src != nil:
		rec.SourceAsset = registry.SymbolForMint(src.mint)
		rec.DestAsset = tokenmeta.NativeSymbol
		rec.Amount = src.delta.Abs().String()
	case dst != nil:
		rec.SourceAsset = tokenmeta.NativeSymbol
		rec.DestAsset = registry.SymbolForMint(dst.mint)
		rec.Amount = lamportsToSolDec(nativeNet.Abs()).String()
	default:
		// nothing attributable to the owner; report the conventional pair
		rec.SourceAsset = tokenmeta.NativeSymbol
		rec.DestAsset = "USDC"
		rec.Amount = "0"
	}
}

func fillTransfer(registry *tokenmeta.Registry, rec *types.TransactionRecord, tx *rpcpool.ParsedTransaction, owner string, diffs []assetDiff, nativeDiff decimal.Decimal, feeLamports uint64) {
	if len(diffs) > 0 {
		d := diffs[0]
		rec.SourceAsset = registry.SymbolForMint(d.mint)
		rec.Amount = d.delta.Abs().String()
		rec.Counterparty = tokenCounterparty(tx, owner, d.mint, d.delta)
		return
	}

	rec.SourceAsset = tokenmeta.NativeSymbol
	rec.Amount = nativeAmountAbs(nativeDiff, feeLamports).String()
	rec.Counterparty = nativeCounterparty(tx, owner)
}

// nativeAmountAbs converts a lamport delta to an absolute SOL amount. The
// sender's delta includes the fee, which is not part of the transferred
// amount.
func nativeAmountAbs(nativeDiff decimal.Decimal, feeLamports uint64) decimal.Decimal {
	if nativeDiff.IsNegative() {
		sent := nativeDiff.Abs().Sub(decimal.New(int64(feeLamports), 0))
		if sent.IsNegative() {
			sent = decimal.Zero
		}
		return lamportsToSolDec(sent)
	}
	return lamportsToSolDec(nativeDiff)
}

// tokenCounterparty finds the other owner whose balance of the same mint
// moved in the opposite direction.
func tokenCounterparty(tx *rpcpool.ParsedTransaction, owner, mint string, ownerDelta decimal.Decimal) string {
	for _, diff := range otherOwnerDiffs(tx, owner, mint) {
		if diff.delta.Sign() != ownerDelta.Sign() && !diff.delta.IsZero() {
			return diff.mint // mint field reused to carry the owner address
		}
	}
	return ""
}

// otherOwnerDiffs returns per-owner deltas for one mint, excluding owner.
// The assetDiff mint field carries the counterparty address here.
func otherOwnerDiffs(tx *rpcpool.ParsedTransaction, owner, mint string) []assetDiff {
	pre := make(map[string]decimal.Decimal)
	for _, tb := range tx.PreTokenBalances {
		if tb.Mint == mint && tb.Owner != owner && tb.Owner != "" {
			pre[tb.Owner] = pre[tb.Owner].Add(decimal.NewFromFloat(tb.Amount))
		}
	}
	post := make(map[string]decimal.Decimal)
	order := make([]string, 0, 2)
	for _, tb := range tx.PostTokenBalances {
		if tb.Mint == mint && tb.Owner != owner && tb.Owner != "" {
			if _, seen := post[tb.Owner]; !seen {
				order = append(order, tb.Owner)
			}
			post[tb.Owner] = post[tb.Owner].Add(decimal.NewFromFloat(tb.Amount))
		}
	}
	for o := range pre {
		if _, seen := post[o]; !seen {
			order = append(order, o)
		}
	}
	out := make([]assetDiff, 0, len(order))
	for _, o := range order {
		out = append(out, assetDiff{mint: o, delta: post[o].Sub(pre[o])})
	}
	return out
}

// nativeCounterparty picks the non-owner, non-program account with the
// largest opposite-signed lamport change.
func nativeCounterparty(tx *rpcpool.ParsedTransaction, owner string) string {
	ownerDelta := ownerNativeDiff(tx, owner)
	best := ""
	bestAbs := decimal.Zero
	for i, key := range tx.AccountKeys {
		if key == owner || transferPrograms[key] {
			continue
		}
		if i >= len(tx.PreBalances) || i >= len(tx.PostBalances) {
			break
		}
		delta := decimal.New(int64(tx.PostBalances[i]), 0).Sub(decimal.New(int64(tx.PreBalances[i]), 0))
		if delta.IsZero() || delta.Sign() == ownerDelta.Sign() {
			continue
		}
		if abs := delta.Abs(); abs.GreaterThan(bestAbs) {
			best, bestAbs = key, abs
		}
	}
	return best
}
