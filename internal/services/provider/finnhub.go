package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"papertrader/config"
	"papertrader/internal/domain"
	"papertrader/pkg/cache"
	"papertrader/pkg/ratelimit"
	"papertrader/pkg/retrier"
)

// SourceFinnhub identifies quotes answered by Finnhub.
const SourceFinnhub = "finnhub"

// FinnhubAPIKeyEnv is the environment variable holding the Finnhub token.
const FinnhubAPIKeyEnv = "FINNHUB_API_KEY"

// Finnhub adapts the Finnhub REST API. It is the primary source: lower
// latency and broader coverage than the fallback.
type Finnhub struct {
	baseURL     string
	apiKey      string
	httpClient  *http.Client
	quoteCache  *cache.Cache[domain.Quote]
	searchCache *cache.Cache[[]domain.SearchResult]
	limiter     *ratelimit.Window
	quoteTTL    time.Duration
	searchTTL   time.Duration
	retry       *retrier.Retrier
	group       singleflight.Group
	logger      *zap.Logger
}

// NewFinnhub creates the adapter. The API key comes from FINNHUB_API_KEY;
// its absence is a fatal ConfigError raised before any network attempt.
func NewFinnhub(cfg config.ProviderConfig, logger *zap.Logger) (*Finnhub, error) {
	apiKey := os.Getenv(FinnhubAPIKeyEnv)
	if apiKey == "" {
		return nil, &domain.ConfigError{Var: FinnhubAPIKeyEnv}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Finnhub{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      apiKey,
		httpClient:  &http.Client{Timeout: cfg.HTTPTimeout},
		quoteCache:  cache.New[domain.Quote](),
		searchCache: cache.New[[]domain.SearchResult](),
		limiter:     ratelimit.NewWindow(cfg.MaxCalls, cfg.WindowDuration),
		quoteTTL:    cfg.QuoteTTL,
		searchTTL:   cfg.SearchTTL,
		retry:       retrier.New(retrier.WithInitialInterval(300 * time.Millisecond)),
		logger:      logger,
	}, nil
}

func (f *Finnhub) Name() string { return SourceFinnhub }

// Remaining reports quota left in the current window, for diagnostics.
func (f *Finnhub) Remaining() int { return f.limiter.Remaining() }

// SweepCaches drops expired entries; memory bound only.
func (f *Finnhub) SweepCaches() {
	f.quoteCache.Sweep()
	f.searchCache.Sweep()
}

// finnhubQuote is the raw /quote payload.
type finnhubQuote struct {
	Current       decimal.Decimal `json:"c"`
	Change        decimal.Decimal `json:"d"`
	ChangePercent decimal.Decimal `json:"dp"`
	High          decimal.Decimal `json:"h"`
	Low           decimal.Decimal `json:"l"`
	Open          decimal.Decimal `json:"o"`
	PreviousClose decimal.Decimal `json:"pc"`
	Timestamp     int64           `json:"t"`
}

// unknown symbols come back as an all-zero payload, not an error status
func (q finnhubQuote) isSentinel() bool {
	return q.Current.IsZero() && q.PreviousClose.IsZero() && q.High.IsZero() &&
		q.Low.IsZero() && q.Open.IsZero() && q.Timestamp == 0
}

// GetQuote returns the current quote for symbol, serving from cache when the
// entry is still fresh. Concurrent misses for the same symbol are coalesced
// into a single upstream call.
func (f *Finnhub) GetQuote(ctx context.Context, symbol string) (domain.Quote, error) {
	symbol, err := normalizeSymbol(symbol)
	if err != nil {
		return domain.Quote{}, err
	}

	key := quoteKeyPrefix + symbol
	if quote, ok := f.quoteCache.Get(key); ok {
		return quote, nil
	}

	v, err, _ := f.group.Do(key, func() (interface{}, error) {
		// a coalesced waiter may find the entry freshly stored
		if quote, ok := f.quoteCache.Get(key); ok {
			return quote, nil
		}
		return f.fetchQuote(ctx, symbol, key)
	})
	if err != nil {
		return domain.Quote{}, err
	}
	return v.(domain.Quote), nil
}

func (f *Finnhub) fetchQuote(ctx context.Context, symbol, key string) (domain.Quote, error) {
	if !f.limiter.TryAcquire() {
		return domain.Quote{}, errors.Wrapf(domain.ErrRateLimited, "%s: local quota window exhausted", SourceFinnhub)
	}

	endpoint := fmt.Sprintf("%s/quote?symbol=%s&token=%s", f.baseURL, url.QueryEscape(symbol), f.apiKey)
	body, err := retrier.DoWithData(f.retry, ctx, func(ctx context.Context) ([]byte, error) {
		return doGet(ctx, f.httpClient, SourceFinnhub, endpoint)
	})
	if err != nil {
		return domain.Quote{}, err
	}
	f.limiter.RecordCall()

	var raw finnhubQuote
	if err := json.Unmarshal(body, &raw); err != nil {
		return domain.Quote{}, errors.Wrapf(domain.ErrProviderUnavailable, "%s: decode quote: %v", SourceFinnhub, err)
	}
	if raw.isSentinel() {
		return domain.Quote{}, errors.Wrapf(domain.ErrInvalidSymbol, "%s: unknown symbol %s", SourceFinnhub, symbol)
	}

	quote := domain.Quote{
		Symbol:        symbol,
		CurrentPrice:  raw.Current,
		Change:        raw.Change,
		ChangePercent: raw.ChangePercent,
		High:          raw.High,
		Low:           raw.Low,
		Open:          raw.Open,
		PreviousClose: raw.PreviousClose,
		TimestampMs:   raw.Timestamp * 1000,
		SourceID:      SourceFinnhub,
	}
	f.quoteCache.Set(key, quote, f.quoteTTL)
	f.logger.Debug("finnhub quote fetched",
		zap.String("symbol", symbol),
		zap.String("price", quote.CurrentPrice.String()),
		zap.Int("quota_remaining", f.limiter.Remaining()))
	return quote, nil
}

type finnhubSearchResponse struct {
	Count  int `json:"count"`
	Result []struct {
		Description   string `json:"description"`
		DisplaySymbol string `json:"displaySymbol"`
		Symbol        string `json:"symbol"`
		Type          string `json:"type"`
	} `json:"result"`
}

// Search performs a free-text symbol search. A blank query short-circuits to
// an empty result with no I/O.
func (f *Finnhub) Search(ctx context.Context, query string) ([]domain.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	key := searchKeyPrefix + strings.ToLower(query)
	if results, ok := f.searchCache.Get(key); ok {
		return results, nil
	}

	v, err, _ := f.group.Do(key, func() (interface{}, error) {
		if results, ok := f.searchCache.Get(key); ok {
			return results, nil
		}
		return f.fetchSearch(ctx, query, key)
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.SearchResult), nil
}

func (f *Finnhub) fetchSearch(ctx context.Context, query, key string) ([]domain.SearchResult, error) {
	if !f.limiter.TryAcquire() {
		return nil, errors.Wrapf(domain.ErrRateLimited, "%s: local quota window exhausted", SourceFinnhub)
	}

	endpoint := fmt.Sprintf("%s/search?q=%s&token=%s", f.baseURL, url.QueryEscape(query), f.apiKey)
	body, err := retrier.DoWithData(f.retry, ctx, func(ctx context.Context) ([]byte, error) {
		return doGet(ctx, f.httpClient, SourceFinnhub, endpoint)
	})
	if err != nil {
		return nil, err
	}
	f.limiter.RecordCall()

	var raw finnhubSearchResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, errors.Wrapf(domain.ErrProviderUnavailable, "%s: decode search: %v", SourceFinnhub, err)
	}

	results := make([]domain.SearchResult, 0, len(raw.Result))
	for _, r := range raw.Result {
		symbol := r.Symbol
		if r.DisplaySymbol != "" {
			symbol = r.DisplaySymbol
		}
		results = append(results, domain.SearchResult{
			Symbol:       strings.ToUpper(symbol),
			Name:         r.Description,
			SecurityType: finnhubSecurityType(r.Type),
			SourceID:     SourceFinnhub,
		})
	}

	f.searchCache.Set(key, results, f.searchTTL)
	return results, nil
}

func finnhubSecurityType(t string) domain.SecurityType {
	switch strings.ToUpper(t) {
	case "COMMON STOCK", "ADR", "GDR":
		return domain.SecurityTypeEquity
	case "ETP", "ETF":
		return domain.SecurityTypeETF
	default:
		return domain.SecurityTypeOther
	}
}
