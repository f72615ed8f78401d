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

// SourceAlphaVantage identifies quotes answered by Alpha Vantage.
const SourceAlphaVantage = "alphavantage"

// AlphaVantageAPIKeyEnv is the environment variable holding the key.
const AlphaVantageAPIKeyEnv = "ALPHAVANTAGE_API_KEY"

// AlphaVantage adapts the Alpha Vantage REST API, the fallback source. Its
// free tier is far tighter than Finnhub's, which is why the resolver only
// consults it when the primary fails.
type AlphaVantage struct {
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
	now         func() time.Time
}

// NewAlphaVantage creates the adapter. The API key comes from
// ALPHAVANTAGE_API_KEY; its absence is a fatal ConfigError raised before any
// network attempt.
func NewAlphaVantage(cfg config.ProviderConfig, logger *zap.Logger) (*AlphaVantage, error) {
	apiKey := os.Getenv(AlphaVantageAPIKeyEnv)
	if apiKey == "" {
		return nil, &domain.ConfigError{Var: AlphaVantageAPIKeyEnv}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &AlphaVantage{
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
		now:         time.Now,
	}, nil
}

func (a *AlphaVantage) Name() string { return SourceAlphaVantage }

// Remaining reports quota left in the current window, for diagnostics.
func (a *AlphaVantage) Remaining() int { return a.limiter.Remaining() }

// SweepCaches drops expired entries; memory bound only.
func (a *AlphaVantage) SweepCaches() {
	a.quoteCache.Sweep()
	a.searchCache.Sweep()
}

// avQuoteResponse is the raw GLOBAL_QUOTE payload: every field is a string.
// A throttled request answers 200 with a "Note" body instead of data.
type avQuoteResponse struct {
	GlobalQuote avGlobalQuote `json:"Global Quote"`
	Note        string        `json:"Note"`
	Information string        `json:"Information"`
}

type avGlobalQuote struct {
	Symbol           string `json:"01. symbol"`
	Open             string `json:"02. open"`
	High             string `json:"03. high"`
	Low              string `json:"04. low"`
	Price            string `json:"05. price"`
	LatestTradingDay string `json:"07. latest trading day"`
	PreviousClose    string `json:"08. previous close"`
	Change           string `json:"09. change"`
	ChangePercent    string `json:"10. change percent"`
}

// GetQuote returns the current quote for symbol, serving from cache when the
// entry is still fresh. Concurrent misses for the same symbol are coalesced.
func (a *AlphaVantage) GetQuote(ctx context.Context, symbol string) (domain.Quote, error) {
	symbol, err := normalizeSymbol(symbol)
	if err != nil {
		return domain.Quote{}, err
	}

	key := quoteKeyPrefix + symbol
	if quote, ok := a.quoteCache.Get(key); ok {
		return quote, nil
	}

	v, err, _ := a.group.Do(key, func() (interface{}, error) {
		if quote, ok := a.quoteCache.Get(key); ok {
			return quote, nil
		}
		return a.fetchQuote(ctx, symbol, key)
	})
	if err != nil {
		return domain.Quote{}, err
	}
	return v.(domain.Quote), nil
}

func (a *AlphaVantage) fetchQuote(ctx context.Context, symbol, key string) (domain.Quote, error) {
	if !a.limiter.TryAcquire() {
		return domain.Quote{}, errors.Wrapf(domain.ErrRateLimited, "%s: local quota window exhausted", SourceAlphaVantage)
	}

	endpoint := fmt.Sprintf("%s/query?function=GLOBAL_QUOTE&symbol=%s&apikey=%s",
		a.baseURL, url.QueryEscape(symbol), a.apiKey)
	body, err := retrier.DoWithData(a.retry, ctx, func(ctx context.Context) ([]byte, error) {
		return doGet(ctx, a.httpClient, SourceAlphaVantage, endpoint)
	})
	if err != nil {
		return domain.Quote{}, err
	}
	a.limiter.RecordCall()

	var raw avQuoteResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return domain.Quote{}, errors.Wrapf(domain.ErrProviderUnavailable, "%s: decode quote: %v", SourceAlphaVantage, err)
	}
	if raw.Note != "" || raw.Information != "" {
		return domain.Quote{}, errors.Wrapf(domain.ErrRateLimited, "%s: upstream quota exhausted", SourceAlphaVantage)
	}
	// unknown symbols come back as an empty Global Quote object
	if raw.GlobalQuote.Symbol == "" || raw.GlobalQuote.Price == "" {
		return domain.Quote{}, errors.Wrapf(domain.ErrInvalidSymbol, "%s: unknown symbol %s", SourceAlphaVantage, symbol)
	}

	quote, err := a.normalizeQuote(symbol, raw.GlobalQuote)
	if err != nil {
		return domain.Quote{}, err
	}

	a.quoteCache.Set(key, quote, a.quoteTTL)
	a.logger.Debug("alphavantage quote fetched",
		zap.String("symbol", symbol),
		zap.String("price", quote.CurrentPrice.String()),
		zap.Int("quota_remaining", a.limiter.Remaining()))
	return quote, nil
}

func (a *AlphaVantage) normalizeQuote(symbol string, raw avGlobalQuote) (domain.Quote, error) {
	parse := func(field, v string) (decimal.Decimal, error) {
		if v == "" {
			return decimal.Zero, nil
		}
		d, err := decimal.NewFromString(v)
		if err != nil {
			return decimal.Zero, errors.Wrapf(domain.ErrProviderUnavailable, "%s: malformed %s %q", SourceAlphaVantage, field, v)
		}
		return d, nil
	}

	price, err := parse("price", raw.Price)
	if err != nil {
		return domain.Quote{}, err
	}
	open, err := parse("open", raw.Open)
	if err != nil {
		return domain.Quote{}, err
	}
	high, err := parse("high", raw.High)
	if err != nil {
		return domain.Quote{}, err
	}
	low, err := parse("low", raw.Low)
	if err != nil {
		return domain.Quote{}, err
	}
	prevClose, err := parse("previous close", raw.PreviousClose)
	if err != nil {
		return domain.Quote{}, err
	}
	change, err := parse("change", raw.Change)
	if err != nil {
		return domain.Quote{}, err
	}
	changePercent, err := parse("change percent", strings.TrimSuffix(raw.ChangePercent, "%"))
	if err != nil {
		return domain.Quote{}, err
	}

	timestampMs := a.now().UnixMilli()
	if raw.LatestTradingDay != "" {
		if day, err := time.Parse("2006-01-02", raw.LatestTradingDay); err == nil {
			timestampMs = day.UnixMilli()
		}
	}

	return domain.Quote{
		Symbol:        symbol,
		CurrentPrice:  price,
		Change:        change,
		ChangePercent: changePercent,
		High:          high,
		Low:           low,
		Open:          open,
		PreviousClose: prevClose,
		TimestampMs:   timestampMs,
		SourceID:      SourceAlphaVantage,
	}, nil
}

type avSearchResponse struct {
	BestMatches []struct {
		Symbol string `json:"1. symbol"`
		Name   string `json:"2. name"`
		Type   string `json:"3. type"`
		Region string `json:"4. region"`
	} `json:"bestMatches"`
	Note        string `json:"Note"`
	Information string `json:"Information"`
}

// Search performs a free-text symbol search. A blank query short-circuits to
// an empty result with no I/O.
func (a *AlphaVantage) Search(ctx context.Context, query string) ([]domain.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	key := searchKeyPrefix + strings.ToLower(query)
	if results, ok := a.searchCache.Get(key); ok {
		return results, nil
	}

	v, err, _ := a.group.Do(key, func() (interface{}, error) {
		if results, ok := a.searchCache.Get(key); ok {
			return results, nil
		}
		return a.fetchSearch(ctx, query, key)
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.SearchResult), nil
}

func (a *AlphaVantage) fetchSearch(ctx context.Context, query, key string) ([]domain.SearchResult, error) {
	if !a.limiter.TryAcquire() {
		return nil, errors.Wrapf(domain.ErrRateLimited, "%s: local quota window exhausted", SourceAlphaVantage)
	}

	endpoint := fmt.Sprintf("%s/query?function=SYMBOL_SEARCH&keywords=%s&apikey=%s",
		a.baseURL, url.QueryEscape(query), a.apiKey)
	body, err := retrier.DoWithData(a.retry, ctx, func(ctx context.Context) ([]byte, error) {
		return doGet(ctx, a.httpClient, SourceAlphaVantage, endpoint)
	})
	if err != nil {
		return nil, err
	}
	a.limiter.RecordCall()

	var raw avSearchResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, errors.Wrapf(domain.ErrProviderUnavailable, "%s: decode search: %v", SourceAlphaVantage, err)
	}
	if raw.Note != "" || raw.Information != "" {
		return nil, errors.Wrapf(domain.ErrRateLimited, "%s: upstream quota exhausted", SourceAlphaVantage)
	}

	results := make([]domain.SearchResult, 0, len(raw.BestMatches))
	for _, m := range raw.BestMatches {
		results = append(results, domain.SearchResult{
			Symbol:       strings.ToUpper(m.Symbol),
			Name:         m.Name,
			SecurityType: avSecurityType(m.Type),
			Exchange:     m.Region,
			SourceID:     SourceAlphaVantage,
		})
	}

	a.searchCache.Set(key, results, a.searchTTL)
	return results, nil
}

func avSecurityType(t string) domain.SecurityType {
	switch strings.ToUpper(t) {
	case "EQUITY":
		return domain.SecurityTypeEquity
	case "ETF":
		return domain.SecurityTypeETF
	default:
		return domain.SecurityTypeOther
	}
}
