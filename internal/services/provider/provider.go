// Package provider implements the external market-data adapters. Each
// adapter normalizes one upstream API into the domain quote/search shapes and
// owns its own TTL cache and fixed-window rate limiter, so a cache hit never
// costs quota and one misbehaving upstream cannot starve the other.
package provider

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"papertrader/internal/domain"
)

// Source is a single external market-data provider.
type Source interface {
	Name() string
	GetQuote(ctx context.Context, symbol string) (domain.Quote, error)
	Search(ctx context.Context, query string) ([]domain.SearchResult, error)
}

const (
	quoteKeyPrefix  = "quote:"
	searchKeyPrefix = "search:"
)

// normalizeSymbol trims and uppercases the symbol. Empty after trimming is
// an invalid symbol.
func normalizeSymbol(symbol string) (string, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return "", errors.Wrap(domain.ErrInvalidSymbol, "empty symbol")
	}
	return symbol, nil
}

// doGet dispatches a GET and maps transport and HTTP status failures onto the
// domain error taxonomy: network errors and non-success statuses are
// ErrProviderUnavailable, an upstream 429 is ErrRateLimited.
func doGet(ctx context.Context, client *http.Client, name, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrapf(domain.ErrProviderUnavailable, "%s: build request: %v", name, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(domain.ErrProviderUnavailable, "%s: %v", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, errors.Wrapf(domain.ErrRateLimited, "%s: upstream quota exhausted", name)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Wrapf(domain.ErrProviderUnavailable, "%s: status %d", name, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(domain.ErrProviderUnavailable, "%s: read body: %v", name, err)
	}
	return body, nil
}
