package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// OddsFeedClient implements OddsProvider for an aggregate odds feed that
// reports one price per bookmaker per runner, with account quota echoed in
// response headers.
type OddsFeedClient struct {
	httpClient *RateLimitedHTTPClient
	baseURL    string
	apiKey     string
	enabled    bool
	logger     *log.Logger
}

// oddsFeedEvent is the feed's race payload schema.
type oddsFeedEvent struct {
	ID         string              `json:"id"`
	Track      string              `json:"sport_title"`
	StartTime  time.Time           `json:"commence_time"`
	Bookmakers []oddsFeedBookmaker `json:"bookmakers"`
}

type oddsFeedBookmaker struct {
	Key     string           `json:"key"`
	Markets []oddsFeedMarket `json:"markets"`
}

type oddsFeedMarket struct {
	Key      string            `json:"key"`
	Outcomes []oddsFeedOutcome `json:"outcomes"`
}

type oddsFeedOutcome struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// NewOddsFeedClient creates a new aggregate odds feed client
func NewOddsFeedClient(httpClient *RateLimitedHTTPClient, baseURL, apiKey string, enabled bool, logger *log.Logger) *OddsFeedClient {
	return &OddsFeedClient{
		httpClient: httpClient,
		baseURL:    baseURL,
		apiKey:     apiKey,
		enabled:    enabled,
		logger:     logger,
	}
}

// Name returns the provider name used as the observation source.
func (c *OddsFeedClient) Name() string { return "oddsfeed" }

// IsEnabled returns whether this provider is currently enabled.
func (c *OddsFeedClient) IsEnabled() bool { return c.enabled }

// FetchOdds retrieves current per-runner odds for races starting within the window.
func (c *OddsFeedClient) FetchOdds(ctx context.Context, from, to time.Time) (*FetchResult, error) {
	if !c.enabled {
		return nil, NewProviderError(c.Name(), ErrCodeDisabled, "provider is disabled", nil)
	}

	url := fmt.Sprintf("%s/odds?apiKey=%s&markets=h2h&oddsFormat=decimal&commenceTimeFrom=%s&commenceTimeTo=%s",
		c.baseURL, c.apiKey, from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, NewProviderError(c.Name(), ErrCodeNetworkError, "failed to create request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(ctx, req)
	if err != nil {
		return nil, NewProviderError(c.Name(), ErrCodeNetworkError, "failed to fetch odds", err)
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

	var events []oddsFeedEvent
	if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
		return nil, NewProviderError(c.Name(), ErrCodeDecodeError, "failed to decode odds payload", err)
	}

	result := &FetchResult{Quota: quotaFromHeaders(resp.Header)}
	for _, ev := range events {
		result.Races = append(result.Races, normalizeOddsFeedEvent(ev))
	}

	c.logger.Printf("oddsfeed: fetched %d races (quota used=%d remaining=%d)",
		len(result.Races), result.Quota.Used, result.Quota.Remaining)

	return result, nil
}

// normalizeOddsFeedEvent flattens the bookmaker/market/outcome nesting into
// per-source runner prices.
func normalizeOddsFeedEvent(ev oddsFeedEvent) RaceOdds {
	race := RaceOdds{
		SourceRaceID: ev.ID,
		Track:        ev.Track,
		StartTime:    ev.StartTime,
	}
	for _, bk := range ev.Bookmakers {
		for _, mkt := range bk.Markets {
			if mkt.Key != "h2h" {
				continue
			}
			for _, out := range mkt.Outcomes {
				race.Prices = append(race.Prices, RunnerPrice{
					Runner: out.Name,
					Source: bk.Key,
					Odds:   out.Price,
				})
			}
		}
	}
	return race
}

// quotaFromHeaders reads the usage counters the feed echoes on every
// response. Returned by value so callers thread it explicitly instead of
// this client caching it.
func quotaFromHeaders(h http.Header) Quota {
	used, errUsed := strconv.Atoi(h.Get("X-Requests-Used"))
	remaining, errRem := strconv.Atoi(h.Get("X-Requests-Remaining"))
	if errUsed != nil || errRem != nil {
		return Quota{}
	}
	return Quota{Used: used, Remaining: remaining, Known: true}
}
