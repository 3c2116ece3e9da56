package datasource

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/value-lay/internal/config"
)

func testHTTPClient() *RateLimitedHTTPClient {
	cfg := DefaultHTTPClientConfig()
	cfg.MaxRetries = 0
	cfg.RateLimit = 1000
	return NewRateLimitedHTTPClient(cfg, log.New(io.Discard, "", 0))
}

const oddsFeedPayload = `[
  {
    "id": "race-101",
    "sport_title": "Ascot",
    "commence_time": "2025-04-01T14:30:00Z",
    "bookmakers": [
      {
        "key": "bookie_a",
        "markets": [
          {
            "key": "h2h",
            "outcomes": [
              {"name": "Lucky Star", "price": "4.5"},
              {"name": "Night Train", "price": "9.0"}
            ]
          }
        ]
      },
      {
        "key": "bookie_b",
        "markets": [
          {
            "key": "outrights",
            "outcomes": [{"name": "Lucky Star", "price": "2.0"}]
          },
          {
            "key": "h2h",
            "outcomes": [{"name": "Lucky Star", "price": "5.0"}]
          }
        ]
      }
    ]
  }
]`

func TestOddsFeedFetchOdds(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "h2h", r.URL.Query().Get("markets"))
		assert.Equal(t, "test-key", r.URL.Query().Get("apiKey"))
		w.Header().Set("X-Requests-Used", "42")
		w.Header().Set("X-Requests-Remaining", "458")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(oddsFeedPayload))
	}))
	defer server.Close()

	client := NewOddsFeedClient(testHTTPClient(), server.URL, "test-key", true, log.New(io.Discard, "", 0))

	result, err := client.FetchOdds(context.Background(), time.Now(), time.Now().Add(time.Hour))
	require.NoError(t, err)

	assert.True(t, result.Quota.Known)
	assert.Equal(t, 42, result.Quota.Used)
	assert.Equal(t, 458, result.Quota.Remaining)

	require.Len(t, result.Races, 1)
	race := result.Races[0]
	assert.Equal(t, "race-101", race.SourceRaceID)
	// Non-h2h markets are ignored; each bookmaker contributes its own
	// source-tagged price.
	require.Len(t, race.Prices, 3)
	assert.Equal(t, "bookie_a", race.Prices[0].Source)
	assert.Equal(t, "Lucky Star", race.Prices[0].Runner)
	assert.Equal(t, "4.5", race.Prices[0].Odds.String())
	assert.Equal(t, "bookie_b", race.Prices[2].Source)
	assert.Equal(t, "5", race.Prices[2].Odds.String())
}

func TestOddsFeedQuotaAbsentFromHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := NewOddsFeedClient(testHTTPClient(), server.URL, "test-key", true, log.New(io.Discard, "", 0))

	result, err := client.FetchOdds(context.Background(), time.Now(), time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, result.Quota.Known)
}

func TestOddsFeedAuthFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewOddsFeedClient(testHTTPClient(), server.URL, "bad-key", true, log.New(io.Discard, "", 0))

	_, err := client.FetchOdds(context.Background(), time.Now(), time.Now().Add(time.Hour))
	require.Error(t, err)
	var perr ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, ErrCodeAuthenticationFailed, perr.Code)
}

func TestOddsFeedDisabled(t *testing.T) {
	client := NewOddsFeedClient(testHTTPClient(), "http://unused", "key", false, log.New(io.Discard, "", 0))

	_, err := client.FetchOdds(context.Background(), time.Now(), time.Now().Add(time.Hour))
	require.Error(t, err)
	var perr ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, ErrCodeDisabled, perr.Code)
}

const exchangePayload = `[
  {
    "marketId": "1.2345",
    "venue": "Ascot",
    "marketStartTime": "2025-04-01T14:30:00Z",
    "runners": [
      {"runnerName": "Lucky Star", "bestLayPrice": "4.2"},
      {"runnerName": "Night Train", "bestLayPrice": null}
    ]
  }
]`

func TestExchangeFetchOdds(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer exch-key", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(exchangePayload))
	}))
	defer server.Close()

	client := NewExchangeClient(testHTTPClient(), server.URL, "exch-key", true, log.New(io.Discard, "", 0))

	result, err := client.FetchOdds(context.Background(), time.Now(), time.Now().Add(time.Hour))
	require.NoError(t, err)

	require.Len(t, result.Races, 1)
	race := result.Races[0]
	assert.Equal(t, "1.2345", race.SourceRaceID)
	// Runners without a lay price are skipped, not reported as zero.
	require.Len(t, race.Prices, 1)
	assert.Equal(t, "exchange", race.Prices[0].Source)
	assert.Equal(t, "4.2", race.Prices[0].Odds.String())
}

func TestFactoryCreatesEnabledProviders(t *testing.T) {
	factory := NewFactory(log.New(io.Discard, "", 0))

	providers, err := factory.NewProviders([]config.ProviderConfig{
		{Name: "oddsfeed", Enabled: true, BaseURL: "http://feed", APIKey: "a"},
		{Name: "exchange", Enabled: false, BaseURL: "http://exch", APIKey: "b"},
	}, testHTTPClient())
	require.NoError(t, err)

	require.Len(t, providers, 1)
	assert.Equal(t, "oddsfeed", providers[0].Name())
}

func TestFactoryRejectsUnknownProvider(t *testing.T) {
	factory := NewFactory(log.New(io.Discard, "", 0))

	_, err := factory.NewProviders([]config.ProviderConfig{
		{Name: "betmart", Enabled: true},
	}, testHTTPClient())
	assert.Error(t, err)
}

func TestFactoryRequiresAPIKey(t *testing.T) {
	factory := NewFactory(log.New(io.Discard, "", 0))

	_, err := factory.NewProvider(config.ProviderConfig{Name: "oddsfeed", Enabled: true}, testHTTPClient())
	assert.Error(t, err)
}
