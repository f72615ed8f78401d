// Package ledger implements the paper-trading account: cash, holdings, trade
// history and the bounded reset counter. The ledger never performs I/O for
// prices; callers resolve a quote first and pass the price in.
package ledger

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"papertrader/config"
	"papertrader/internal/domain"
	"papertrader/internal/storage/ledgerstate"
	"papertrader/internal/storage/trades"
)

// SnapshotStore persists the working ledger state across restarts.
type SnapshotStore interface {
	Load() (*ledgerstate.State, error)
	Save(ledgerstate.State) error
}

// TradeJournal receives every executed trade and reset request for the
// immutable audit trail.
type TradeJournal interface {
	AppendTrade(domain.Trade) error
	AppendResetRequest(trades.ResetRequest) error
}

// Ledger is one simulated trading account. All operations are serialized by
// a single mutex: each precondition check and its mutation are observed as
// one atomic step, so concurrent calls can never overspend cash or oversell
// shares. Every mutating operation either fully applies or fully rejects.
type Ledger struct {
	mu          sync.Mutex
	cash        decimal.Decimal
	initialCash decimal.Decimal
	positions   map[string]*domain.Position
	trades      []domain.Trade
	resetsUsed  int
	maxResets   int
	lastResetAt time.Time

	store   SnapshotStore
	journal TradeJournal
	logger  *zap.Logger
	now     func() time.Time
}

// New creates a ledger, rehydrating it from the snapshot store when a blob
// exists, else starting fresh with the configured cash.
func New(cfg config.LedgerConfig, store SnapshotStore, journal TradeJournal, logger *zap.Logger) (*Ledger, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.StartingCash.LessThanOrEqual(decimal.Zero) {
		return nil, errors.New("starting cash must be positive")
	}

	l := &Ledger{
		cash:        cfg.StartingCash,
		initialCash: cfg.StartingCash,
		positions:   make(map[string]*domain.Position),
		maxResets:   cfg.MaxResets,
		store:       store,
		journal:     journal,
		logger:      logger,
		now:         time.Now,
	}

	if err := l.restore(); err != nil {
		return nil, errors.Wrap(err, "restore ledger state")
	}

	logger.Info("ledger ready",
		zap.String("cash", l.cash.String()),
		zap.Int("positions", len(l.positions)),
		zap.Int("resets_used", l.resetsUsed),
		zap.Int("max_resets", l.maxResets))
	return l, nil
}

// Buy purchases shares at the given price. The whole cost is checked against
// cash before any field is written.
func (l *Ledger) Buy(symbol string, shares, price decimal.Decimal) error {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return errors.Wrap(domain.ErrInvalidSymbol, "empty symbol")
	}
	if shares.LessThanOrEqual(decimal.Zero) {
		return errors.Errorf("buy shares must be positive, got %s", shares.String())
	}
	if price.LessThanOrEqual(decimal.Zero) {
		return errors.Errorf("buy price must be positive, got %s", price.String())
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	cost := shares.Mul(price)
	if cost.GreaterThan(l.cash) {
		return errors.Wrapf(domain.ErrInsufficientFunds, "have %s need %s", l.cash.String(), cost.String())
	}

	l.cash = l.cash.Sub(cost)
	if pos, ok := l.positions[symbol]; ok {
		pos.AddShares(shares, price)
	} else {
		pos, err := domain.NewPosition(symbol, shares, price)
		if err != nil {
			// validated above; restore cash to keep the rejection clean
			l.cash = l.cash.Add(cost)
			return err
		}
		l.positions[symbol] = pos
	}

	trade := l.appendTrade(symbol, domain.TradeKindBuy, shares, price, cost)
	l.persist()

	l.logger.Info("buy executed",
		zap.String("id", trade.ID),
		zap.String("symbol", symbol),
		zap.String("shares", shares.String()),
		zap.String("price", price.String()),
		zap.String("cash", l.cash.String()))
	return nil
}

// Sell disposes shares at the given price. The average cost of the remaining
// shares does not move; only a subsequent buy recomputes it.
func (l *Ledger) Sell(symbol string, shares, price decimal.Decimal) error {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return errors.Wrap(domain.ErrInvalidSymbol, "empty symbol")
	}
	if shares.LessThanOrEqual(decimal.Zero) {
		return errors.Errorf("sell shares must be positive, got %s", shares.String())
	}
	if price.LessThanOrEqual(decimal.Zero) {
		return errors.Errorf("sell price must be positive, got %s", price.String())
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	pos, ok := l.positions[symbol]
	if !ok {
		return errors.Wrapf(domain.ErrNoPosition, "no %s position to sell", symbol)
	}
	if shares.GreaterThan(pos.Shares) {
		return errors.Wrapf(domain.ErrInsufficientShares, "have %s want to sell %s", pos.Shares.String(), shares.String())
	}

	proceeds := shares.Mul(price)
	l.cash = l.cash.Add(proceeds)
	pos.RemoveShares(shares)
	if pos.Shares.LessThanOrEqual(decimal.Zero) {
		delete(l.positions, symbol)
	}

	trade := l.appendTrade(symbol, domain.TradeKindSell, shares, price, proceeds)
	l.persist()

	l.logger.Info("sell executed",
		zap.String("id", trade.ID),
		zap.String("symbol", symbol),
		zap.String("shares", shares.String()),
		zap.String("price", price.String()),
		zap.String("cash", l.cash.String()))
	return nil
}

// appendTrade records the trade in the working list and the audit journal.
// Caller must hold the lock.
func (l *Ledger) appendTrade(symbol string, kind domain.TradeKind, shares, price, total decimal.Decimal) domain.Trade {
	trade := domain.Trade{
		ID:            uuid.NewString(),
		Symbol:        symbol,
		Kind:          kind,
		Shares:        shares,
		PricePerShare: price,
		TotalValue:    total,
		TimestampMs:   l.now().UnixMilli(),
	}
	l.trades = append(l.trades, trade)

	if l.journal != nil {
		if err := l.journal.AppendTrade(trade); err != nil {
			l.logger.Warn("failed to journal trade", zap.String("id", trade.ID), zap.Error(err))
		}
	}
	return trade
}

// Cash returns the current cash balance.
func (l *Ledger) Cash() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cash
}

// InitialCash returns the account's starting cash.
func (l *Ledger) InitialCash() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.initialCash
}

// Positions returns a copy of the open positions keyed by symbol.
func (l *Ledger) Positions() map[string]domain.Position {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make(map[string]domain.Position, len(l.positions))
	for sym, pos := range l.positions {
		out[sym] = *pos
	}
	return out
}

// Trades returns the working trade list, newest first.
func (l *Ledger) Trades() []domain.Trade {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]domain.Trade, len(l.trades))
	for i, t := range l.trades {
		out[len(l.trades)-1-i] = t
	}
	return out
}

// PortfolioValue projects the account value at the supplied prices: cash plus
// the market value of every position. A symbol without a price contributes
// zero; supplying complete prices is the caller's responsibility.
func (l *Ledger) PortfolioValue(prices map[string]decimal.Decimal) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()

	value := l.cash
	for sym, pos := range l.positions {
		if price, ok := prices[sym]; ok {
			value = value.Add(pos.MarketValue(price))
		}
	}
	return value
}

// TotalGainLoss reports performance against the initial cash at the supplied
// prices. Percent is defined as zero for a zero initial cash.
func (l *Ledger) TotalGainLoss(prices map[string]decimal.Decimal) domain.GainLoss {
	amount := l.PortfolioValue(prices).Sub(l.InitialCash())

	percent := decimal.Zero
	if initial := l.InitialCash(); !initial.IsZero() {
		percent = amount.Div(initial).Mul(decimal.NewFromInt(100))
	}
	return domain.GainLoss{Amount: amount, Percent: percent}
}

// CanReset reports whether another portfolio reset is allowed.
func (l *Ledger) CanReset() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.resetsUsed < l.maxResets
}

// RemainingResets reports how many resets are left.
func (l *Ledger) RemainingResets() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if left := l.maxResets - l.resetsUsed; left > 0 {
		return left
	}
	return 0
}

// ResetsUsed reports how many resets have been consumed.
func (l *Ledger) ResetsUsed() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.resetsUsed
}

// Reset restores the account to its initial state. When the reset limit is
// exhausted it returns false and changes nothing.
func (l *Ledger) Reset() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.resetsUsed >= l.maxResets {
		return false
	}

	l.cash = l.initialCash
	l.positions = make(map[string]*domain.Position)
	l.trades = nil
	l.resetsUsed++
	l.lastResetAt = l.now()
	l.persist()

	l.logger.Info("portfolio reset",
		zap.Int("resets_used", l.resetsUsed),
		zap.Int("max_resets", l.maxResets))
	return true
}

// RequestAdditionalReset records a request for a manual reset-limit increase.
// It never mutates balances or the limit; granting it is an administrative
// concern outside the ledger's authority.
func (l *Ledger) RequestAdditionalReset(reason string) error {
	l.mu.Lock()
	resetsUsed := l.resetsUsed
	l.mu.Unlock()

	l.logger.Info("additional reset requested",
		zap.String("reason", reason),
		zap.Int("resets_used", resetsUsed))

	if l.journal == nil {
		return nil
	}
	return l.journal.AppendResetRequest(trades.ResetRequest{
		Reason:        reason,
		ResetsUsed:    resetsUsed,
		RequestedAtMs: l.now().UnixMilli(),
	})
}

// persist snapshots the working state. Caller must hold the lock.
func (l *Ledger) persist() {
	if l.store == nil {
		return
	}

	state := ledgerstate.State{
		Cash:        l.cash.String(),
		Positions:   make(map[string]ledgerstate.StoredPosition, len(l.positions)),
		Trades:      make([]ledgerstate.StoredTrade, 0, len(l.trades)),
		ResetsUsed:  l.resetsUsed,
		InitialCash: l.initialCash.String(),
		LastResetAt: l.lastResetAt,
	}
	for sym, pos := range l.positions {
		state.Positions[sym] = ledgerstate.NewStoredPosition(pos)
	}
	for _, t := range l.trades {
		state.Trades = append(state.Trades, ledgerstate.NewStoredTrade(t))
	}

	if err := l.store.Save(state); err != nil {
		l.logger.Warn("failed to persist ledger state", zap.Error(err))
	}
}

func (l *Ledger) restore() error {
	if l.store == nil {
		return nil
	}
	state, err := l.store.Load()
	if err != nil || state == nil {
		return err
	}

	cash, err := decimal.NewFromString(state.Cash)
	if err != nil {
		return errors.Wrap(err, "decode cash")
	}
	initialCash, err := decimal.NewFromString(state.InitialCash)
	if err != nil {
		return errors.Wrap(err, "decode initial cash")
	}

	positions := make(map[string]*domain.Position, len(state.Positions))
	for sym, sp := range state.Positions {
		pos, err := sp.ToPosition(sym)
		if err != nil {
			return err
		}
		positions[sym] = pos
	}

	tradeList := make([]domain.Trade, 0, len(state.Trades))
	for _, st := range state.Trades {
		trade, err := st.ToTrade()
		if err != nil {
			return err
		}
		tradeList = append(tradeList, trade)
	}

	l.cash = cash
	l.initialCash = initialCash
	l.positions = positions
	l.trades = tradeList
	l.resetsUsed = state.ResetsUsed
	l.lastResetAt = state.LastResetAt
	return nil
}
