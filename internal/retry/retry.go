package retry

import (
	"context"
	"errors"
	"strings"
	"time"

	jrpc "github.com/gagliardetto/solana-go/rpc/jsonrpc"
)

// Policy is the retry schedule shared by every upstream-calling component,
// so the RPC pool and the price client cannot drift apart.
type Policy struct {
	MaxAttemptsPerEndpoint int
	Base                   time.Duration
	Max                    time.Duration
}

// Backoff returns the delay before retry number attempt (0-based):
// Base doubled per attempt, capped at Max.
func (p Policy) Backoff(attempt int) time.Duration {
	d := p.Base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= p.Max {
			return p.Max
		}
	}
	if d > p.Max {
		return p.Max
	}
	return d
}

// Wait sleeps for the attempt's backoff delay or until ctx is done.
// Rate-limited failures skip the wait entirely: the right move on a 429 is
// a different endpoint, not a pause.
func (p Policy) Wait(ctx context.Context, attempt int, cause error) error {
	if IsRateLimited(cause) {
		return nil
	}
	select {
	case <-time.After(p.Backoff(attempt)):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsRateLimited reports whether err looks like an HTTP or JSON-RPC 429.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	var rpcErr *jrpc.RPCError
	if errors.As(err, &rpcErr) && rpcErr != nil && rpcErr.Code == 429 {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(strings.ToLower(msg), "too many requests")
}
