package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"papertrader/config"
	"papertrader/internal/domain"
	"papertrader/internal/storage/ledgerstate"
	"papertrader/internal/storage/trades"
)

func testLedgerConfig() config.LedgerConfig {
	return config.LedgerConfig{
		StartingCash: decimal.NewFromInt(10000),
		MaxResets:    3,
	}
}

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := New(testLedgerConfig(), nil, nil, nil)
	require.NoError(t, err)
	return l
}

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestLedger_BuyCreatesPosition(t *testing.T) {
	l := newTestLedger(t)

	require.NoError(t, l.Buy("aapl", d(10), d(100)))

	assert.True(t, l.Cash().Equal(d(9000)))
	pos, ok := l.Positions()["AAPL"]
	require.True(t, ok)
	assert.True(t, pos.Shares.Equal(d(10)))
	assert.True(t, pos.AverageCost.Equal(d(100)))

	tradeList := l.Trades()
	require.Len(t, tradeList, 1)
	assert.Equal(t, domain.TradeKindBuy, tradeList[0].Kind)
	assert.True(t, tradeList[0].TotalValue.Equal(d(1000)))
	assert.NotEmpty(t, tradeList[0].ID)
}

func TestLedger_WeightedAverageCost(t *testing.T) {
	l := newTestLedger(t)

	require.NoError(t, l.Buy("AAPL", d(10), d(100)))
	require.NoError(t, l.Buy("AAPL", d(10), d(200)))

	pos := l.Positions()["AAPL"]
	assert.True(t, pos.Shares.Equal(d(20)))
	assert.True(t, pos.AverageCost.Equal(d(150)), "average cost should be 150, got %s", pos.AverageCost)

	// selling must not move the cost basis
	require.NoError(t, l.Sell("AAPL", d(5), d(300)))
	pos = l.Positions()["AAPL"]
	assert.True(t, pos.Shares.Equal(d(15)))
	assert.True(t, pos.AverageCost.Equal(d(150)))
}

func TestLedger_CashConservation(t *testing.T) {
	l := newTestLedger(t)

	// cash == initial - sum(buys) + sum(sells), exactly
	require.NoError(t, l.Buy("AAPL", decimal.RequireFromString("3.5"), decimal.RequireFromString("123.45")))
	require.NoError(t, l.Buy("MSFT", d(2), decimal.RequireFromString("410.07")))
	require.NoError(t, l.Sell("AAPL", decimal.RequireFromString("1.5"), decimal.RequireFromString("130.01")))

	expected := d(10000).
		Sub(decimal.RequireFromString("3.5").Mul(decimal.RequireFromString("123.45"))).
		Sub(d(2).Mul(decimal.RequireFromString("410.07"))).
		Add(decimal.RequireFromString("1.5").Mul(decimal.RequireFromString("130.01")))

	assert.True(t, l.Cash().Equal(expected), "cash %s != expected %s", l.Cash(), expected)
}

func TestLedger_OverspendRejectedWithoutMutation(t *testing.T) {
	l := newTestLedger(t)
	require.NoError(t, l.Buy("AAPL", d(10), d(100)))

	before := snapshot(l)
	err := l.Buy("MSFT", d(100), d(100))
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)
	assert.Equal(t, before, snapshot(l), "ledger must be unchanged after a rejected buy")
}

func TestLedger_OversellRejectedWithoutMutation(t *testing.T) {
	l := newTestLedger(t)
	require.NoError(t, l.Buy("AAPL", d(10), d(100)))

	before := snapshot(l)
	err := l.Sell("AAPL", d(11), d(100))
	require.ErrorIs(t, err, domain.ErrInsufficientShares)
	assert.Equal(t, before, snapshot(l), "ledger must be unchanged after a rejected sell")
}

func TestLedger_SellWithoutPosition(t *testing.T) {
	l := newTestLedger(t)

	err := l.Sell("AAPL", d(1), d(100))
	assert.ErrorIs(t, err, domain.ErrNoPosition)
}

func TestLedger_FullSellRemovesPosition(t *testing.T) {
	l := newTestLedger(t)
	require.NoError(t, l.Buy("AAPL", d(10), d(100)))

	require.NoError(t, l.Sell("AAPL", d(10), d(110)))

	_, ok := l.Positions()["AAPL"]
	assert.False(t, ok, "a zero-share position must be removed, not kept as a zero row")
	assert.True(t, l.Cash().Equal(d(10100)))
}

func TestLedger_InvalidArguments(t *testing.T) {
	l := newTestLedger(t)

	assert.ErrorIs(t, l.Buy("  ", d(1), d(1)), domain.ErrInvalidSymbol)
	assert.Error(t, l.Buy("AAPL", d(0), d(1)))
	assert.Error(t, l.Buy("AAPL", d(1), d(0)))
	assert.Error(t, l.Sell("AAPL", d(-1), d(1)))
}

func TestLedger_PortfolioValue(t *testing.T) {
	l := newTestLedger(t)
	require.NoError(t, l.Buy("AAPL", d(10), d(100)))
	require.NoError(t, l.Buy("MSFT", d(5), d(200)))

	prices := map[string]decimal.Decimal{
		"AAPL": d(110),
		// MSFT price missing: contributes zero
	}
	value := l.PortfolioValue(prices)

	// 10000 - 1000 - 1000 cash, plus 10*110
	assert.True(t, value.Equal(d(9100)), "got %s", value)
}

func TestLedger_TotalGainLoss(t *testing.T) {
	l := newTestLedger(t)
	require.NoError(t, l.Buy("AAPL", d(10), d(100)))

	gl := l.TotalGainLoss(map[string]decimal.Decimal{"AAPL": d(150)})

	// value = 9000 + 1500 = 10500 -> +500 = +5%
	assert.True(t, gl.Amount.Equal(d(500)), "amount %s", gl.Amount)
	assert.True(t, gl.Percent.Equal(d(5)), "percent %s", gl.Percent)
}

func TestLedger_ResetLimit(t *testing.T) {
	l := newTestLedger(t)

	for i := 0; i < 3; i++ {
		require.NoError(t, l.Buy("AAPL", d(1), d(100)))
		assert.True(t, l.Reset(), "reset %d should succeed", i+1)
		assert.True(t, l.Cash().Equal(d(10000)))
		assert.Empty(t, l.Positions())
		assert.Empty(t, l.Trades())
	}

	require.NoError(t, l.Buy("AAPL", d(1), d(100)))
	before := snapshot(l)

	assert.False(t, l.Reset(), "a fourth reset must be refused")
	assert.Equal(t, before, snapshot(l), "a refused reset must not change state")
	assert.False(t, l.CanReset())
	assert.Equal(t, 0, l.RemainingResets())
	assert.Equal(t, 3, l.ResetsUsed())
}

func TestLedger_RequestAdditionalResetDoesNotMutate(t *testing.T) {
	l := newTestLedger(t)
	for i := 0; i < 3; i++ {
		require.True(t, l.Reset())
	}

	require.NoError(t, l.RequestAdditionalReset("still learning"))
	assert.Equal(t, 3, l.ResetsUsed())
	assert.False(t, l.CanReset())
}

func TestLedger_PersistAndRehydrate(t *testing.T) {
	dir := t.TempDir()
	store, err := ledgerstate.NewStore(dir)
	require.NoError(t, err)

	l, err := New(testLedgerConfig(), store, nil, nil)
	require.NoError(t, err)
	require.NoError(t, l.Buy("AAPL", d(10), d(100)))
	require.NoError(t, l.Buy("AAPL", d(10), d(200)))
	require.True(t, l.Reset())
	require.NoError(t, l.Buy("MSFT", d(2), d(400)))

	// a second ledger over the same blob sees the same state
	restored, err := New(testLedgerConfig(), store, nil, nil)
	require.NoError(t, err)

	assert.True(t, restored.Cash().Equal(l.Cash()))
	assert.Equal(t, 1, restored.ResetsUsed())
	pos, ok := restored.Positions()["MSFT"]
	require.True(t, ok)
	assert.True(t, pos.Shares.Equal(d(2)))
	require.Len(t, restored.Trades(), 1)
}

func TestLedger_JournalReceivesTrades(t *testing.T) {
	journal, err := trades.NewJournal(t.TempDir())
	require.NoError(t, err)
	defer journal.Close()

	l, err := New(testLedgerConfig(), nil, journal, nil)
	require.NoError(t, err)

	require.NoError(t, l.Buy("AAPL", d(10), d(100)))
	require.True(t, l.Reset())
	require.NoError(t, l.Buy("AAPL", d(1), d(100)))

	// the audit trail survives the reset
	records, err := journal.TradesAfter(0)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

// snapshot captures the externally observable ledger state for
// byte-for-byte unchanged assertions.
type ledgerSnapshot struct {
	cash       string
	positions  map[string]string
	tradeCount int
	resetsUsed int
}

func snapshot(l *Ledger) ledgerSnapshot {
	positions := make(map[string]string)
	for sym, pos := range l.Positions() {
		positions[sym] = pos.Shares.String() + "@" + pos.AverageCost.String()
	}
	return ledgerSnapshot{
		cash:       l.Cash().String(),
		positions:  positions,
		tradeCount: len(l.Trades()),
		resetsUsed: l.ResetsUsed(),
	}
}
