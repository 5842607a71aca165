// Package indexer is the optional fast path for token holdings: a DAS-style
// JSON-RPC extension that pre-aggregates token accounts faster than a raw
// node scan. Any failure here makes the aggregator fall through to the slow
// path, so errors are returned as-is and never retried aggressively.
package indexer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/example/walletcore/internal/rpcpool"
)

// Source enumerates token accounts for an owner.
type Source interface {
	TokenAccounts(ctx context.Context, owner string) ([]rpcpool.TokenAccount, error)
}

type Client struct {
	url    string
	client *http.Client
	log    *zap.Logger
}

func NewClient(url string, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log,
	}
}

type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      string      `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
}

type tokenAccountsParams struct {
	Owner string `json:"owner"`
	Limit int    `json:"limit"`
}

type tokenAccountsResponse struct {
	Result *struct {
		TokenAccounts []struct {
			Address  string  `json:"address"`
			Mint     string  `json:"mint"`
			Amount   float64 `json:"ui_amount"`
			Decimals int     `json:"decimals"`
		} `json:"token_accounts"`
	} `json:"result"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// TokenAccounts queries the indexer for all token accounts of owner,
// aggregated per mint.
func (c *Client) TokenAccounts(ctx context.Context, owner string) ([]rpcpool.TokenAccount, error) {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      "walletcore",
		Method:  "getTokenAccounts",
		Params:  tokenAccountsParams{Owner: owner, Limit: 1000},
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("indexer request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("indexer status %d", resp.StatusCode)
	}

	var parsed tokenAccountsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("indexer decode: %w", err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("indexer error %d: %s", parsed.Error.Code, parsed.Error.Message)
	}
	if parsed.Result == nil {
		return nil, fmt.Errorf("indexer returned no result")
	}

	byMint := make(map[string]rpcpool.TokenAccount)
	order := make([]string, 0, len(parsed.Result.TokenAccounts))
	for _, ta := range parsed.Result.TokenAccounts {
		if ta.Mint == "" {
			continue
		}
		if cur, ok := byMint[ta.Mint]; ok {
			cur.Amount += ta.Amount
			byMint[ta.Mint] = cur
			continue
		}
		byMint[ta.Mint] = rpcpool.TokenAccount{
			Mint:         ta.Mint,
			Amount:       ta.Amount,
			Decimals:     ta.Decimals,
			TokenAddress: ta.Address,
		}
		order = append(order, ta.Mint)
	}
	out := make([]rpcpool.TokenAccount, 0, len(order))
	for _, mint := range order {
		out = append(out, byMint[mint])
	}
	c.log.Debug("indexer token accounts", zap.String("owner", owner), zap.Int("mints", len(out)))
	return out, nil
}
