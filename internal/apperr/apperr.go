// Package apperr defines the error taxonomy shared across the wallet core.
package apperr

import "errors"

var (
	// ErrInvalidAddress means the caller supplied a malformed wallet address.
	// Raised before any network I/O.
	ErrInvalidAddress = errors.New("invalid wallet address")

	// ErrUpstreamUnavailable means every configured endpoint exhausted its
	// retry budget and no cached copy, not even a stale one, exists.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrStaleData marks operations that refuse to run on stale-flagged data,
	// such as balance capture for post-transaction verification.
	ErrStaleData = errors.New("only stale data available")

	// ErrVerificationFailed means the post-transaction balance check did not
	// show the expected directional change. Distinct from a submission error:
	// the transaction may have landed with indexing still lagging, so callers
	// should re-check rather than resubmit.
	ErrVerificationFailed = errors.New("balance verification failed")
)
