package rpcpool

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
)

// TokenAccount is one mint's aggregated balance for an owner, with the UI
// amount already adjusted for decimals.
type TokenAccount struct {
	Mint         string
	Amount       float64
	Decimals     int
	TokenAddress string
}

// SignatureInfo is a single entry from the address signature listing.
type SignatureInfo struct {
	Signature string
	BlockTime time.Time
	Failed    bool
}

// TokenBalanceChange is a pre/post token balance row from transaction meta.
type TokenBalanceChange struct {
	AccountIndex int
	Mint         string
	Owner        string
	Amount       float64
}

// ParsedTransaction is the flattened view of an on-chain transaction that the
// history classifier works from.
type ParsedTransaction struct {
	Signature   string
	Slot        uint64
	BlockTime   time.Time
	FeeLamports uint64
	Failed      bool

	// Account keys in index order, including loaded lookup-table addresses.
	AccountKeys []string
	// Program id of each top-level instruction, in order.
	ProgramIDs []string

	PreBalances       []uint64
	PostBalances      []uint64
	PreTokenBalances  []TokenBalanceChange
	PostTokenBalances []TokenBalanceChange
}

// ChainReader is the read surface the wallet aggregator consumes. The second
// return value flags results served from an expired cache entry after live
// attempts failed.
type ChainReader interface {
	GetBalance(ctx context.Context, owner solana.PublicKey) (lamports uint64, stale bool)
	TokenAccounts(ctx context.Context, owner solana.PublicKey) ([]TokenAccount, bool, error)
	Signatures(ctx context.Context, owner solana.PublicKey, limit int) ([]SignatureInfo, bool, error)
	Transaction(ctx context.Context, sig solana.Signature) (*ParsedTransaction, bool, error)
}

// GetBalance returns the owner's native balance in lamports. Balance display
// must never hard-fail the caller, so a total miss (all endpoints down, cold
// cache) degrades to 0 with a log line instead of an error.
func (p *Pool) GetBalance(ctx context.Context, owner solana.PublicKey) (uint64, bool) {
	key := "balance:" + owner.String()
	lamports, stale, err := Do(ctx, p, key, func(ctx context.Context, ep *Endpoint) (uint64, error) {
		res, err := ep.Client.GetBalance(ctx, owner, p.opts.Commitment)
		if err != nil {
			return 0, err
		}
		return uint64(res.Value), nil
	})
	if err != nil {
		p.opts.Log.Warn("native balance unavailable, reporting zero",
			zap.String("owner", owner.String()),
			zap.Error(err))
		return 0, false
	}
	return lamports, stale
}

// TokenAccounts enumerates all token-program accounts owned by owner,
// aggregated per mint.
func (p *Pool) TokenAccounts(ctx context.Context, owner solana.PublicKey) ([]TokenAccount, bool, error) {
	key := "tokenaccounts:" + owner.String()
	return Do(ctx, p, key, func(ctx context.Context, ep *Endpoint) ([]TokenAccount, error) {
		tokenProgramID := solana.TokenProgramID
		conf := &rpc.GetTokenAccountsConfig{ProgramId: &tokenProgramID}
		opts := &rpc.GetTokenAccountsOpts{Encoding: solana.EncodingJSONParsed}
		accts, err := ep.Client.GetTokenAccountsByOwner(ctx, owner, conf, opts)
		if err != nil {
			return nil, fmt.Errorf("get token accounts by owner: %w", err)
		}
		return aggregateTokenAccounts(accts), nil
	})
}

// aggregateTokenAccounts walks the jsonParsed account payloads and sums
// balances per mint. Accounts with unparseable payloads are skipped rather
// than failing the enumeration.
func aggregateTokenAccounts(accts *rpc.GetTokenAccountsResult) []TokenAccount {
	byMint := make(map[string]TokenAccount)
	order := make([]string, 0, len(accts.Value))

	for _, raw := range accts.Value {
		acctAddr := raw.Pubkey.String()
		rawJSON := raw.Account.Data.GetRawJSON()
		if rawJSON == nil {
			continue
		}
		var parent map[string]interface{}
		if err := json.Unmarshal(rawJSON, &parent); err != nil {
			continue
		}
		parsed, ok := parent["parsed"].(map[string]interface{})
		if !ok {
			continue
		}
		info, ok := parsed["info"].(map[string]interface{})
		if !ok {
			continue
		}
		mint, ok := info["mint"].(string)
		if !ok || mint == "" {
			continue
		}
		amountMap, ok := info["tokenAmount"].(map[string]interface{})
		if !ok {
			continue
		}
		uiAmount, uiOK := amountMap["uiAmount"].(float64)
		decimals, decOK := amountMap["decimals"].(float64)
		if !uiOK || !decOK {
			continue
		}

		if cur, exists := byMint[mint]; exists {
			cur.Amount += uiAmount
			byMint[mint] = cur
		} else {
			byMint[mint] = TokenAccount{
				Mint:         mint,
				Amount:       uiAmount,
				Decimals:     int(decimals),
				TokenAddress: acctAddr,
			}
			order = append(order, mint)
		}
	}

	out := make([]TokenAccount, 0, len(order))
	for _, mint := range order {
		out = append(out, byMint[mint])
	}
	return out
}

// Signatures lists up to limit recent transaction signatures for owner,
// newest first.
func (p *Pool) Signatures(ctx context.Context, owner solana.PublicKey, limit int) ([]SignatureInfo, bool, error) {
	key := fmt.Sprintf("signatures:%s:%d", owner.String(), limit)
	return Do(ctx, p, key, func(ctx context.Context, ep *Endpoint) ([]SignatureInfo, error) {
		sigs, err := ep.Client.GetSignaturesForAddressWithOpts(ctx, owner, &rpc.GetSignaturesForAddressOpts{
			Limit:      &limit,
			Commitment: p.opts.Commitment,
		})
		if err != nil {
			return nil, fmt.Errorf("get signatures for address: %w", err)
		}
		out := make([]SignatureInfo, 0, len(sigs))
		for _, s := range sigs {
			info := SignatureInfo{
				Signature: s.Signature.String(),
				Failed:    s.Err != nil,
			}
			if s.BlockTime != nil {
				info.BlockTime = s.BlockTime.Time()
			}
			out = append(out, info)
		}
		return out, nil
	})
}

// Transaction fetches and flattens a single transaction.
func (p *Pool) Transaction(ctx context.Context, sig solana.Signature) (*ParsedTransaction, bool, error) {
	key := "tx:" + sig.String()
	return Do(ctx, p, key, func(ctx context.Context, ep *Endpoint) (*ParsedTransaction, error) {
		maxVersion := uint64(0)
		res, err := ep.Client.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
			Encoding:                       solana.EncodingBase64,
			Commitment:                     p.opts.Commitment,
			MaxSupportedTransactionVersion: &maxVersion,
		})
		if err != nil {
			return nil, fmt.Errorf("get transaction %s: %w", sig, err)
		}
		return flattenTransaction(sig, res)
	})
}

func flattenTransaction(sig solana.Signature, res *rpc.GetTransactionResult) (*ParsedTransaction, error) {
	if res == nil || res.Meta == nil || res.Transaction == nil {
		return nil, fmt.Errorf("transaction %s: empty result", sig)
	}
	tx, err := res.Transaction.GetTransaction()
	if err != nil {
		return nil, fmt.Errorf("decode transaction %s: %w", sig, err)
	}

	keys := make(solana.PublicKeySlice, 0, len(tx.Message.AccountKeys))
	keys = append(keys, tx.Message.AccountKeys...)
	keys = append(keys, res.Meta.LoadedAddresses.Writable...)
	keys = append(keys, res.Meta.LoadedAddresses.ReadOnly...)

	out := &ParsedTransaction{
		Signature:    sig.String(),
		Slot:         res.Slot,
		FeeLamports:  res.Meta.Fee,
		Failed:       res.Meta.Err != nil,
		PreBalances:  res.Meta.PreBalances,
		PostBalances: res.Meta.PostBalances,
	}
	if res.BlockTime != nil {
		out.BlockTime = res.BlockTime.Time()
	}
	for _, k := range keys {
		out.AccountKeys = append(out.AccountKeys, k.String())
	}
	for _, inst := range tx.Message.Instructions {
		if int(inst.ProgramIDIndex) < len(keys) {
			out.ProgramIDs = append(out.ProgramIDs, keys[inst.ProgramIDIndex].String())
		}
	}
	out.PreTokenBalances = convertTokenBalances(res.Meta.PreTokenBalances)
	out.PostTokenBalances = convertTokenBalances(res.Meta.PostTokenBalances)
	return out, nil
}

func convertTokenBalances(in []rpc.TokenBalance) []TokenBalanceChange {
	out := make([]TokenBalanceChange, 0, len(in))
	for _, tb := range in {
		c := TokenBalanceChange{
			AccountIndex: int(tb.AccountIndex),
			Mint:         tb.Mint.String(),
		}
		if tb.Owner != nil {
			c.Owner = tb.Owner.String()
		}
		if tb.UiTokenAmount != nil && tb.UiTokenAmount.UiAmount != nil {
			c.Amount = *tb.UiTokenAmount.UiAmount
		}
		out = append(out, c)
	}
	return out
}
