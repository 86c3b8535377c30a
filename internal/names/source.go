package names

import (
	"context"
	"fmt"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"

	"marketwatch/internal/domain"
	"marketwatch/internal/util"
)

// SearchFunc is the remote symbol search.
type SearchFunc func(ctx context.Context, query string) ([]domain.Suggestion, error)

// RemoteSource resolves names through the service's symbol search.
type RemoteSource struct {
	Search SearchFunc
}

func (s RemoteSource) Lookup(ctx context.Context, symbol string) (string, error) {
	results, err := s.Search(ctx, symbol)
	if err != nil {
		return "", err
	}
	best, ok := PickCandidate(symbol, results)
	if !ok {
		return "", nil
	}
	return best.Name, nil
}

// AlpacaSource resolves names from the Alpaca asset directory.
type AlpacaSource struct {
	client  *alpaca.Client
	limiter *util.RateLimiter
}

// NewAlpacaSource builds an AlpacaSource limited to perMinute lookups.
func NewAlpacaSource(apiKey, apiSecret, baseURL string, perMinute int) *AlpacaSource {
	return &AlpacaSource{
		client: alpaca.NewClient(alpaca.ClientOpts{
			APIKey:    apiKey,
			APISecret: apiSecret,
			BaseURL:   baseURL,
		}),
		limiter: util.NewRateLimiter(perMinute),
	}
}

func (s *AlpacaSource) Lookup(ctx context.Context, symbol string) (string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return "", err
	}
	asset, err := s.client.GetAsset(symbol)
	if err != nil {
		return "", fmt.Errorf("GetAsset %s: %w", symbol, err)
	}
	return asset.Name, nil
}
