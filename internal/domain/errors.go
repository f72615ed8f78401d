package domain

import (
	"fmt"

	"github.com/pkg/errors"
)

// Provider-side failures. Adapters wrap these with context; callers branch
// with errors.Is.
var (
	// ErrInvalidSymbol marks a user-correctable bad symbol or an upstream
	// "unknown symbol" sentinel response.
	ErrInvalidSymbol = errors.New("invalid symbol")
	// ErrRateLimited marks an exhausted provider quota, either our own
	// window or an upstream 429.
	ErrRateLimited = errors.New("rate limited, try again shortly")
	// ErrProviderUnavailable marks a network or HTTP-level provider failure.
	ErrProviderUnavailable = errors.New("provider unavailable")
)

// Ledger precondition violations. The ledger rejects these locally and leaves
// its state untouched.
var (
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInsufficientShares = errors.New("insufficient shares")
	ErrNoPosition         = errors.New("no position")
	ErrResetLimitExceeded = errors.New("reset limit exceeded")
)

// ConfigError reports a missing credential or broken configuration. It is
// fatal: surfaced immediately, never retried.
type ConfigError struct {
	Var string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("missing required configuration: %s", e.Var)
}
