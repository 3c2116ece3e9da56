// Package datasource provides odds providers: typed clients that fetch
// per-runner decimal prices for a race card and normalize them into
// observations. Each provider decodes its own known payload schema once at
// this boundary; nothing downstream probes response shapes.
package datasource

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Quota reports provider API usage as observed on a single response. It is
// returned by value with every fetch and threaded through by the caller;
// providers keep no shared mutable usage counters.
type Quota struct {
	Used      int
	Remaining int
	Known     bool
}

// RunnerPrice is one reported price for one runner. Source is the
// bookmaker or venue the price came from; aggregate feeds report several
// sources per runner, single-venue providers report their own name.
type RunnerPrice struct {
	Runner string          `json:"runner"`
	Source string          `json:"source"`
	Odds   decimal.Decimal `json:"odds"`
}

// RaceOdds is the normalized odds payload for one race from one provider.
type RaceOdds struct {
	SourceRaceID string        `json:"source_race_id"`
	Track        string        `json:"track"`
	StartTime    time.Time     `json:"start_time"`
	Prices       []RunnerPrice `json:"prices"`
}

// FetchResult bundles the observations of one fetch with the quota state
// the provider reported alongside them.
type FetchResult struct {
	Races []RaceOdds
	Quota Quota
}

// OddsProvider defines the interface for fetching current odds from an
// upstream provider.
type OddsProvider interface {
	// FetchOdds retrieves current per-runner odds for races starting
	// within the window.
	FetchOdds(ctx context.Context, from, to time.Time) (*FetchResult, error)

	// Name returns the provider name used as the observation source.
	Name() string

	// IsEnabled returns whether this provider is currently enabled.
	IsEnabled() bool
}

// RaceKey links a provider's race identifier to the internal race ID.
type RaceKey struct {
	RaceID   uuid.UUID
	SourceID string
}

// ProviderError represents errors from provider operations
type ProviderError struct {
	Provider string
	Code     string
	Message  string
	Err      error
}

func (e ProviderError) Error() string {
	if e.Err != nil {
		return e.Provider + ": " + e.Code + ": " + e.Message + " (" + e.Err.Error() + ")"
	}
	return e.Provider + ": " + e.Code + ": " + e.Message
}

func (e ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError creates a new provider error
func NewProviderError(provider, code, message string, err error) ProviderError {
	return ProviderError{Provider: provider, Code: code, Message: message, Err: err}
}

// Common error codes
const (
	ErrCodeRateLimitExceeded    = "rate_limit_exceeded"
	ErrCodeAuthenticationFailed = "authentication_failed"
	ErrCodeNotFound             = "not_found"
	ErrCodeNetworkError         = "network_error"
	ErrCodeServerError          = "server_error"
	ErrCodeDecodeError          = "decode_error"
	ErrCodeDisabled             = "provider_disabled"
)
