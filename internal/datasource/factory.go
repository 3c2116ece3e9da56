package datasource

import (
	"fmt"
	"log"

	"github.com/yourusername/value-lay/internal/config"
)

// Factory creates OddsProvider implementations based on configuration
type Factory struct {
	logger *log.Logger
}

// NewFactory creates a new provider factory
func NewFactory(logger *log.Logger) *Factory {
	return &Factory{logger: logger}
}

// NewProvider creates a single provider from its configuration
func (f *Factory) NewProvider(cfg config.ProviderConfig, httpClient *RateLimitedHTTPClient) (OddsProvider, error) {
	if httpClient == nil {
		return nil, fmt.Errorf("HTTP client is required")
	}

	switch cfg.Name {
	case "oddsfeed":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("oddsfeed API key is required")
		}
		return NewOddsFeedClient(httpClient, cfg.BaseURL, cfg.APIKey, cfg.Enabled, f.logger), nil

	case "exchange":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("exchange API key is required")
		}
		return NewExchangeClient(httpClient, cfg.BaseURL, cfg.APIKey, cfg.Enabled, f.logger), nil

	default:
		return nil, fmt.Errorf("unknown odds provider: %s", cfg.Name)
	}
}

// NewProviders creates all enabled providers from configuration
func (f *Factory) NewProviders(cfgs []config.ProviderConfig, httpClient *RateLimitedHTTPClient) ([]OddsProvider, error) {
	var providers []OddsProvider

	for _, cfg := range cfgs {
		if !cfg.Enabled {
			if f.logger != nil {
				f.logger.Printf("Skipping disabled provider: %s", cfg.Name)
			}
			continue
		}

		provider, err := f.NewProvider(cfg, httpClient)
		if err != nil {
			return nil, fmt.Errorf("failed to create provider %s: %w", cfg.Name, err)
		}

		providers = append(providers, provider)
		if f.logger != nil {
			f.logger.Printf("Created odds provider: %s", cfg.Name)
		}
	}

	if len(providers) == 0 {
		return nil, fmt.Errorf("no enabled odds providers configured")
	}

	return providers, nil
}
