package types

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestLamportsToSol(t *testing.T) {
	if got := LamportsToSol(1_500_000_000); got != 1.5 {
		t.Fatalf("got=%v", got)
	}
	if got := LamportsToSol(0); got != 0 {
		t.Fatalf("got=%v", got)
	}
}

func TestSumUSD_TreatsUnknownAsZero(t *testing.T) {
	holdings := []TokenHolding{
		{Symbol: "SOL", USDValue: dec("150.25")},
		{Symbol: "Unknown", USDValue: nil},
		{Symbol: "USDC", USDValue: dec("42")},
	}
	if got := SumUSD(holdings); !got.Equal(decimal.RequireFromString("192.25")) {
		t.Fatalf("total=%s", got)
	}
}

func TestSumUSD_Empty(t *testing.T) {
	if got := SumUSD(nil); !got.IsZero() {
		t.Fatalf("total=%s", got)
	}
}
