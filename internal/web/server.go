// Package web exposes the JSON API consumed by the UI layer. The UI never
// fetches prices itself: the trade handler resolves a quote and passes the
// price into the ledger.
package web

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"papertrader/internal/domain"
)

// QuoteResolver is the market-data surface the API needs.
type QuoteResolver interface {
	GetStockQuote(ctx context.Context, symbol string) (domain.Quote, error)
	SearchAllStocks(ctx context.Context, query string) ([]domain.SearchResult, error)
	ValidateSymbol(ctx context.Context, symbol string) bool
}

// Account is the ledger surface the API needs.
type Account interface {
	Buy(symbol string, shares, price decimal.Decimal) error
	Sell(symbol string, shares, price decimal.Decimal) error
	Cash() decimal.Decimal
	InitialCash() decimal.Decimal
	Positions() map[string]domain.Position
	Trades() []domain.Trade
	PortfolioValue(prices map[string]decimal.Decimal) decimal.Decimal
	TotalGainLoss(prices map[string]decimal.Decimal) domain.GainLoss
	Reset() bool
	CanReset() bool
	RemainingResets() int
	ResetsUsed() int
	RequestAdditionalReset(reason string) error
}

// Server serves the JSON API.
type Server struct {
	addr     string
	resolver QuoteResolver
	account  Account
	logger   *zap.Logger
}

// NewServer creates the API server.
func NewServer(addr string, resolver QuoteResolver, account Account, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{addr: addr, resolver: resolver, account: account, logger: logger}
}

// Handler builds the route mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/quote", s.handleQuote)
	mux.HandleFunc("GET /api/search", s.handleSearch)
	mux.HandleFunc("GET /api/validate", s.handleValidate)
	mux.HandleFunc("GET /api/portfolio", s.handlePortfolio)
	mux.HandleFunc("GET /api/portfolio/value", s.handlePortfolioValue)
	mux.HandleFunc("POST /api/trade", s.handleTrade)
	mux.HandleFunc("GET /api/resets", s.handleResets)
	mux.HandleFunc("POST /api/reset", s.handleReset)
	mux.HandleFunc("POST /api/reset/request", s.handleResetRequest)
	return mux
}

// Start runs the HTTP server (blocking) and shuts it down when ctx is
// cancelled.
func (s *Server) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", zap.String("addr", s.addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	quote, err := s.resolver.GetStockQuote(r.Context(), symbol)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, quote)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	results, err := s.resolver.SearchAllStocks(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if results == nil {
		results = []domain.SearchResult{}
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"results": results})
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	s.writeJSON(w, http.StatusOK, map[string]bool{
		"valid": s.resolver.ValidateSymbol(r.Context(), symbol),
	})
}

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"cash":        s.account.Cash(),
		"initialCash": s.account.InitialCash(),
		"positions":   s.account.Positions(),
		"trades":      s.account.Trades(),
	})
}

// handlePortfolioValue resolves a current price for every held symbol and
// projects the account value. Symbols whose quotes fail contribute zero,
// matching the missing-price contract.
func (s *Server) handlePortfolioValue(w http.ResponseWriter, r *http.Request) {
	prices := make(map[string]decimal.Decimal)
	for symbol := range s.account.Positions() {
		quote, err := s.resolver.GetStockQuote(r.Context(), symbol)
		if err != nil {
			s.logger.Warn("no price for held symbol", zap.String("symbol", symbol), zap.Error(err))
			continue
		}
		prices[symbol] = quote.CurrentPrice
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"value":    s.account.PortfolioValue(prices),
		"gainLoss": s.account.TotalGainLoss(prices),
	})
}

type tradeRequest struct {
	Symbol string `json:"symbol"`
	Kind   string `json:"kind"`
	Shares string `json:"shares"`
}

func (s *Server) handleTrade(w http.ResponseWriter, r *http.Request) {
	var req tradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}

	shares, err := decimal.NewFromString(req.Shares)
	if err != nil || shares.LessThanOrEqual(decimal.Zero) {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "shares must be a positive number"})
		return
	}

	quote, err := s.resolver.GetStockQuote(r.Context(), req.Symbol)
	if err != nil {
		s.writeError(w, err)
		return
	}

	switch domain.TradeKind(req.Kind) {
	case domain.TradeKindBuy:
		err = s.account.Buy(quote.Symbol, shares, quote.CurrentPrice)
	case domain.TradeKindSell:
		err = s.account.Sell(quote.Symbol, shares, quote.CurrentPrice)
	default:
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "kind must be buy or sell"})
		return
	}
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"symbol": quote.Symbol,
		"kind":   req.Kind,
		"shares": shares,
		"price":  quote.CurrentPrice,
		"cash":   s.account.Cash(),
	})
}

func (s *Server) handleResets(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"used":      s.account.ResetsUsed(),
		"remaining": s.account.RemainingResets(),
		"canReset":  s.account.CanReset(),
	})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if !s.account.Reset() {
		s.writeError(w, domain.ErrResetLimitExceeded)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"cash":      s.account.Cash(),
		"remaining": s.account.RemainingResets(),
	})
}

type resetRequestBody struct {
	Reason string `json:"reason"`
}

func (s *Server) handleResetRequest(w http.ResponseWriter, r *http.Request) {
	var req resetRequestBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}
	if err := s.account.RequestAdditionalReset(req.Reason); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "recorded"})
}

// writeError maps the domain error taxonomy onto HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidSymbol):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrRateLimited):
		status = http.StatusTooManyRequests
	case errors.Is(err, domain.ErrProviderUnavailable):
		status = http.StatusBadGateway
	case errors.Is(err, domain.ErrInsufficientFunds),
		errors.Is(err, domain.ErrInsufficientShares),
		errors.Is(err, domain.ErrNoPosition):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrResetLimitExceeded):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("failed to encode response", zap.Error(err))
	}
}
