// Package tokenmeta maps mint addresses to display metadata. The registry is
// a static table (built-in defaults plus an optional JSON file from config);
// unrecognized mints resolve to an "Unknown" placeholder instead of being
// dropped, so holdings enumeration stays complete.
package tokenmeta

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

const (
	// NativeMint is the sentinel id for the chain's base currency. It is the
	// system program address, which can never collide with an SPL mint.
	NativeMint = "11111111111111111111111111111111"
	// WrappedSOLMint is SOL's SPL wrapper; holdings enumeration skips it to
	// avoid double-counting the native balance.
	WrappedSOLMint = "So11111111111111111111111111111111111111112"

	NativeSymbol = "SOL"

	// UnknownSymbol is the placeholder for mints absent from the registry.
	UnknownSymbol = "Unknown"
)

// Info describes one token mint.
type Info struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Decimals int    `json:"decimals"`
	LogoURL  string `json:"logo_url,omitempty"`
}

// Registry is a read-only mint -> Info table with a mutable overlay for
// entries resolved at runtime (see Resolver).
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Info
}

// builtin covers the mints the assistant talks about most; a deployment
// extends the table via TOKEN_METADATA_FILE.
var builtin = map[string]Info{
	NativeMint:     {Symbol: NativeSymbol, Name: "Solana", Decimals: 9},
	WrappedSOLMint: {Symbol: "WSOL", Name: "Wrapped SOL", Decimals: 9},
	"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v": {Symbol: "USDC", Name: "USD Coin", Decimals: 6},
	"Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB": {Symbol: "USDT", Name: "Tether USD", Decimals: 6},
	"DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263": {Symbol: "BONK", Name: "Bonk", Decimals: 5},
	"JUPyiwrYJFskUPiHa7hkeR8VUtAeFoSYbKedZNsDvCN":  {Symbol: "JUP", Name: "Jupiter", Decimals: 6},
	"4k3Dyjzvzp8eMZWUXbBCjEvwSkkk59S5iCNLY3QrkX6R": {Symbol: "RAY", Name: "Raydium", Decimals: 6},
	"EKpQGSJtjMFqKZ9KQanSqYXRcF8fBopzLHYxdM65zcjm": {Symbol: "WIF", Name: "dogwifhat", Decimals: 6},
	"orcaEKTdK7LKz57vaAYr9QeNsVEPfiu6QeMU1kektZE":  {Symbol: "ORCA", Name: "Orca", Decimals: 6},
}

// NewRegistry builds a registry from the built-in table plus an optional JSON
// file of mint -> Info overrides.
func NewRegistry(metadataFile string) (*Registry, error) {
	entries := make(map[string]Info, len(builtin))
	for k, v := range builtin {
		entries[k] = v
	}
	if metadataFile != "" {
		data, err := os.ReadFile(metadataFile)
		if err != nil {
			return nil, fmt.Errorf("read token metadata file: %w", err)
		}
		var extra map[string]Info
		if err := json.Unmarshal(data, &extra); err != nil {
			return nil, fmt.Errorf("parse token metadata file: %w", err)
		}
		for k, v := range extra {
			entries[k] = v
		}
	}
	return &Registry{entries: entries}, nil
}

// Lookup returns the metadata for a mint when the registry knows it.
func (r *Registry) Lookup(mint string) (Info, bool) {
	r.mu.RLock()
	info, ok := r.entries[mint]
	r.mu.RUnlock()
	return info, ok
}

// LookupOrUnknown resolves a mint, falling back to the Unknown placeholder
// with the caller-observed decimals.
func (r *Registry) LookupOrUnknown(mint string, decimals int) Info {
	if info, ok := r.Lookup(mint); ok {
		return info
	}
	return Info{Symbol: UnknownSymbol, Name: UnknownSymbol, Decimals: decimals}
}

// SymbolForMint is a convenience for transaction classification.
func (r *Registry) SymbolForMint(mint string) string {
	if info, ok := r.Lookup(mint); ok {
		return info.Symbol
	}
	return UnknownSymbol
}

// Add records a runtime-resolved entry (e.g. from the Metaplex resolver).
func (r *Registry) Add(mint string, info Info) {
	r.mu.Lock()
	r.entries[mint] = info
	r.mu.Unlock()
}
