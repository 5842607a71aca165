package types

import (
	"time"

	"github.com/shopspring/decimal"
)

const lamportsPerSOL = 1_000_000_000

// Transaction classifications.
const (
	TxSwap     = "swap"
	TxTransfer = "transfer"
	TxUnknown  = "unknown"
)

// Transaction outcomes.
const (
	TxConfirmed = "confirmed"
	TxFailed    = "failed"
)

// TokenHolding is one asset position in a wallet snapshot. USDValue is nil
// when no price could be resolved; such holdings still count as 0 toward the
// snapshot total.
type TokenHolding struct {
	Symbol   string           `json:"symbol"`
	Name     string           `json:"name"`
	Amount   float64          `json:"amount"`
	USDValue *decimal.Decimal `json:"usd_value,omitempty"`
	Mint     string           `json:"mint"`
	Decimals int              `json:"decimals"`
	LogoURL  string           `json:"logo_url,omitempty"`
}

// TransactionRecord is a classified entry of a wallet's recent history,
// derived purely from upstream data and immutable once built.
type TransactionRecord struct {
	Signature    string `json:"signature"`
	Timestamp    int64  `json:"timestamp_ms"`
	Type         string `json:"type"`
	SourceAsset  string `json:"source_asset"`
	DestAsset    string `json:"dest_asset,omitempty"`
	Amount       string `json:"amount"`
	Fee          string `json:"fee"`
	Status       string `json:"status"`
	Counterparty string `json:"counterparty,omitempty"`
}

// WalletData is the aggregator's combined answer for one wallet. Stale marks
// responses assembled, at least in part, from expired cache entries after
// live fetches failed; displays should annotate it and verification must
// reject it.
type WalletData struct {
	Address      string              `json:"address"`
	SolBalance   float64             `json:"sol_balance"`
	Holdings     []TokenHolding      `json:"holdings"`
	TotalUSD     decimal.Decimal     `json:"total_usd"`
	Transactions []TransactionRecord `json:"recent_transactions"`
	Stale        bool                `json:"stale,omitempty"`
	FetchedAt    string              `json:"fetched_at"`
}

// LamportsToSol converts lamports to SOL as a float.
func LamportsToSol(l uint64) float64 { return float64(l) / lamportsPerSOL }

// SumUSD totals the known USD values across holdings, treating unknown
// values as zero.
func SumUSD(holdings []TokenHolding) decimal.Decimal {
	total := decimal.Zero
	for i := range holdings {
		if holdings[i].USDValue != nil {
			total = total.Add(*holdings[i].USDValue)
		}
	}
	return total
}

func NowRFC3339() string { return time.Now().UTC().Format(time.RFC3339) }
