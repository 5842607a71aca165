package wallet

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/example/walletcore/internal/types"
)

const defaultHistoryLimit = 10

// GetTransactionHistory returns up to limit classified records, newest
// first. Individual transactions that cannot be fetched are skipped so one
// bad lookup never empties the whole list.
func (s *Service) GetTransactionHistory(ctx context.Context, addr string, limit int) ([]types.TransactionRecord, bool, error) {
	pk, err := ParseAddress(addr)
	if err != nil {
		return nil, false, err
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	cacheKey := fmt.Sprintf("history:%s:%d", addr, limit)
	if e, ok := s.history.Get(cacheKey); ok {
		return e.records, e.stale, nil
	}

	sigs, stale, err := s.chain.Signatures(ctx, pk, limit)
	if err != nil {
		return nil, false, err
	}

	records := make([]types.TransactionRecord, 0, len(sigs))
	for _, info := range sigs {
		sig, err := solana.SignatureFromBase58(info.Signature)
		if err != nil {
			s.opts.Log.Warn("skipping malformed signature", zap.String("signature", info.Signature))
			continue
		}
		tx, txStale, err := s.chain.Transaction(ctx, sig)
		if err != nil {
			s.opts.Log.Warn("skipping transaction, fetch failed",
				zap.String("signature", info.Signature),
				zap.Error(err))
			continue
		}
		stale = stale || txStale
		records = append(records, buildRecord(s.registry, addr, info, tx))
	}

	s.history.Put(cacheKey, historyEntry{records: records, stale: stale}, s.opts.HistoryTTL)
	return records, stale, nil
}
