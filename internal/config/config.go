package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds environment-driven configuration.
//
// The effective worst-case latency of a pooled RPC call is
// MaxAttemptsPerEndpoint x len(RPCURLs) x RPCTimeout; keep the three in
// balance when tuning.
type Config struct {
	Port     string
	LogLevel string
	Stage    string

	// Upstream RPC endpoints, tried in health order.
	RPCURLs       []string
	SolCommitment string
	RPCTimeout    time.Duration

	// Optional fast-path indexer for token holdings (DAS-style API).
	IndexerURL string

	// Market data API for USD prices.
	PriceAPIURL  string
	PriceTTL     time.Duration
	PriceRPS     int
	MetadataFile string
	// Resolve unknown mints via on-chain Metaplex metadata when true.
	MetaplexEnabled bool

	MongoURI   string
	MongoDB    string
	AdminToken string

	RateLimitRPM int
	KeyCacheTTL  time.Duration

	// Pool-level response cache; HoldingsTTL is deliberately shorter because
	// holdings are re-read right after swaps/transfers for verification.
	CacheTTL    time.Duration
	HoldingsTTL time.Duration

	MaxAttemptsPerEndpoint int
	BackoffBase            time.Duration
	BackoffMax             time.Duration
	FailureCeiling         int

	// Delay between submitting a transaction and re-reading balances.
	// Indexer lag is environment-dependent, so this is a knob, not a constant.
	SettleDelay time.Duration

	TxHistoryLimit int
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getint(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getdur(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getbool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getlist(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

// Load loads configuration from environment variables with sane defaults.
func Load() Config {
	return Config{
		Port:     getenv("PORT", "8080"),
		LogLevel: getenv("LOG_LEVEL", "info"),
		Stage:    getenv("STAGE", "dev"),

		RPCURLs:       getlist("RPC_URLS", []string{"https://api.mainnet-beta.solana.com"}),
		SolCommitment: getenv("SOL_COMMITMENT", "finalized"),
		RPCTimeout:    getdur("RPC_TIMEOUT", 5*time.Second),

		IndexerURL: getenv("INDEXER_URL", ""),

		PriceAPIURL:     getenv("PRICE_API_URL", "https://api.coingecko.com/api/v3"),
		PriceTTL:        getdur("PRICE_TTL", 60*time.Second),
		PriceRPS:        getint("PRICE_RPS", 4),
		MetadataFile:    getenv("TOKEN_METADATA_FILE", ""),
		MetaplexEnabled: getbool("METAPLEX_ENABLED", false),

		MongoURI:   getenv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:    getenv("MONGO_DB", "walletcore"),
		AdminToken: getenv("ADMIN_TOKEN", ""),

		RateLimitRPM: getint("RATE_LIMIT_RPM", 60),
		KeyCacheTTL:  getdur("KEY_CACHE_TTL", 60*time.Second),

		CacheTTL:    getdur("CACHE_TTL", 10*time.Second),
		HoldingsTTL: getdur("HOLDINGS_TTL", 5*time.Second),

		MaxAttemptsPerEndpoint: getint("MAX_ATTEMPTS_PER_ENDPOINT", 3),
		BackoffBase:            getdur("BACKOFF_BASE", 500*time.Millisecond),
		BackoffMax:             getdur("BACKOFF_MAX", 8*time.Second),
		FailureCeiling:         getint("FAILURE_CEILING", 5),

		SettleDelay: getdur("SETTLE_DELAY", 2*time.Second),

		TxHistoryLimit: getint("TX_HISTORY_LIMIT", 10),
	}
}
