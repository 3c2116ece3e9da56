package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// ExchangeClient implements OddsProvider for the execution venue: the
// exchange where a lay bet would actually be placed. Its prices are the
// ones compression and sizing prefer over the consensus mean.
type ExchangeClient struct {
	httpClient *RateLimitedHTTPClient
	baseURL    string
	apiKey     string
	enabled    bool
	logger     *log.Logger
}

// exchangeMarket is the exchange's market book payload schema.
type exchangeMarket struct {
	MarketID  string           `json:"marketId"`
	Venue     string           `json:"venue"`
	StartTime time.Time        `json:"marketStartTime"`
	Runners   []exchangeRunner `json:"runners"`
}

type exchangeRunner struct {
	Name         string           `json:"runnerName"`
	BestLayPrice *decimal.Decimal `json:"bestLayPrice"`
}

// NewExchangeClient creates a new execution-venue client
func NewExchangeClient(httpClient *RateLimitedHTTPClient, baseURL, apiKey string, enabled bool, logger *log.Logger) *ExchangeClient {
	return &ExchangeClient{
		httpClient: httpClient,
		baseURL:    baseURL,
		apiKey:     apiKey,
		enabled:    enabled,
		logger:     logger,
	}
}

// Name returns the provider name used as the observation source.
func (c *ExchangeClient) Name() string { return "exchange" }

// IsEnabled returns whether this provider is currently enabled.
func (c *ExchangeClient) IsEnabled() bool { return c.enabled }

// FetchOdds retrieves best available lay prices for upcoming markets.
func (c *ExchangeClient) FetchOdds(ctx context.Context, from, to time.Time) (*FetchResult, error) {
	if !c.enabled {
		return nil, NewProviderError(c.Name(), ErrCodeDisabled, "provider is disabled", nil)
	}

	url := fmt.Sprintf("%s/markets?from=%s&to=%s",
		c.baseURL, from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, NewProviderError(c.Name(), ErrCodeNetworkError, "failed to create request", err)
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(ctx, req)
	if err != nil {
		return nil, NewProviderError(c.Name(), ErrCodeNetworkError, "failed to fetch markets", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, NewProviderError(c.Name(), ErrCodeAuthenticationFailed, "invalid API key", nil)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, NewProviderError(c.Name(), ErrCodeRateLimitExceeded, "rate limit exceeded", nil)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, NewProviderError(c.Name(), ErrCodeServerError,
			fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, string(body)), nil)
	}

	var markets []exchangeMarket
	if err := json.NewDecoder(resp.Body).Decode(&markets); err != nil {
		return nil, NewProviderError(c.Name(), ErrCodeDecodeError, "failed to decode market payload", err)
	}

	result := &FetchResult{}
	for _, mkt := range markets {
		race := RaceOdds{
			SourceRaceID: mkt.MarketID,
			Track:        mkt.Venue,
			StartTime:    mkt.StartTime,
		}
		for _, runner := range mkt.Runners {
			if runner.BestLayPrice == nil {
				continue
			}
			race.Prices = append(race.Prices, RunnerPrice{
				Runner: runner.Name,
				Source: c.Name(),
				Odds:   *runner.BestLayPrice,
			})
		}
		result.Races = append(result.Races, race)
	}

	c.logger.Printf("exchange: fetched %d markets", len(result.Races))

	return result, nil
}
