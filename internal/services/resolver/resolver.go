// Package resolver orchestrates the provider adapters: quotes fall back from
// the primary to the secondary source, searches merge both.
package resolver

import (
	"context"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"papertrader/internal/domain"
	"papertrader/internal/services/provider"
)

const (
	// secondary search is consulted only when the primary yields fewer hits
	searchSecondaryThreshold = 5
	maxSearchResults         = 10
)

// Resolver shields callers from individual provider failures.
type Resolver struct {
	primary   provider.Source
	secondary provider.Source
	logger    *zap.Logger
}

// New creates a Resolver over a primary and a fallback source.
func New(primary, secondary provider.Source, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{primary: primary, secondary: secondary, logger: logger}
}

// GetStockQuote attempts the primary source and falls back to the secondary
// on any failure. First success wins; when both fail the returned error
// carries both underlying failures.
func (r *Resolver) GetStockQuote(ctx context.Context, symbol string) (domain.Quote, error) {
	quote, primaryErr := r.primary.GetQuote(ctx, symbol)
	if primaryErr == nil {
		return quote, nil
	}
	r.logger.Warn("primary quote source failed, falling back",
		zap.String("provider", r.primary.Name()),
		zap.String("symbol", symbol),
		zap.Error(primaryErr))

	quote, secondaryErr := r.secondary.GetQuote(ctx, symbol)
	if secondaryErr == nil {
		return quote, nil
	}

	return domain.Quote{}, errors.Wrapf(multierr.Combine(primaryErr, secondaryErr),
		"all providers failed for %s", symbol)
}

// ValidateSymbol reports whether any provider can quote the symbol.
func (r *Resolver) ValidateSymbol(ctx context.Context, symbol string) bool {
	_, err := r.GetStockQuote(ctx, symbol)
	return err == nil
}

// SearchAllStocks queries the primary source and, when it yields too few
// results, the secondary as well. Results are deduplicated by symbol with the
// primary's entry winning on conflict, ranked and truncated.
func (r *Resolver) SearchAllStocks(ctx context.Context, query string) ([]domain.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	primaryResults, primaryErr := r.primary.Search(ctx, query)
	if primaryErr != nil {
		r.logger.Warn("primary search source failed",
			zap.String("provider", r.primary.Name()),
			zap.Error(primaryErr))
	}

	var (
		secondaryResults []domain.SearchResult
		secondaryErr     error
	)
	if len(primaryResults) < searchSecondaryThreshold {
		secondaryResults, secondaryErr = r.secondary.Search(ctx, query)
		if secondaryErr != nil {
			r.logger.Warn("secondary search source failed",
				zap.String("provider", r.secondary.Name()),
				zap.Error(secondaryErr))
		}
	}

	if primaryErr != nil && secondaryErr != nil {
		return nil, errors.Wrapf(multierr.Combine(primaryErr, secondaryErr),
			"all providers failed for search %q", query)
	}

	merged := mergeResults(primaryResults, secondaryResults)
	rankResults(merged, strings.ToUpper(query))
	if len(merged) > maxSearchResults {
		merged = merged[:maxSearchResults]
	}
	return merged, nil
}

// mergeResults deduplicates by symbol; the first-seen (primary) entry wins.
func mergeResults(primary, secondary []domain.SearchResult) []domain.SearchResult {
	merged := make([]domain.SearchResult, 0, len(primary)+len(secondary))
	seen := make(map[string]struct{}, len(primary)+len(secondary))
	for _, r := range primary {
		if _, dup := seen[r.Symbol]; dup {
			continue
		}
		seen[r.Symbol] = struct{}{}
		merged = append(merged, r)
	}
	for _, r := range secondary {
		if _, dup := seen[r.Symbol]; dup {
			continue
		}
		seen[r.Symbol] = struct{}{}
		merged = append(merged, r)
	}
	return merged
}

// rankResults orders by exact symbol match, then symbol prefix match, then
// preferred security type (equity and ETF before the rest). The sort is
// stable so provider order breaks ties.
func rankResults(results []domain.SearchResult, query string) {
	sort.SliceStable(results, func(i, j int) bool {
		mi, mj := matchRank(results[i].Symbol, query), matchRank(results[j].Symbol, query)
		if mi != mj {
			return mi < mj
		}
		return typeRank(results[i].SecurityType) < typeRank(results[j].SecurityType)
	})
}

func matchRank(symbol, query string) int {
	switch {
	case symbol == query:
		return 0
	case strings.HasPrefix(symbol, query):
		return 1
	default:
		return 2
	}
}

func typeRank(t domain.SecurityType) int {
	switch t {
	case domain.SecurityTypeEquity:
		return 0
	case domain.SecurityTypeETF:
		return 1
	default:
		return 2
	}
}
