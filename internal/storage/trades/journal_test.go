package trades

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"papertrader/internal/domain"
)

func testTrade(id, symbol string, kind domain.TradeKind) domain.Trade {
	return domain.Trade{
		ID:            id,
		Symbol:        symbol,
		Kind:          kind,
		Shares:        decimal.NewFromInt(10),
		PricePerShare: decimal.NewFromInt(150),
		TotalValue:    decimal.NewFromInt(1500),
		TimestampMs:   1717243800000,
	}
}

func TestJournal_AppendAndRead(t *testing.T) {
	j, err := NewJournal(t.TempDir())
	require.NoError(t, err)
	defer j.Close()

	require.NoError(t, j.AppendTrade(testTrade("t1", "AAPL", domain.TradeKindBuy)))
	require.NoError(t, j.AppendTrade(testTrade("t2", "MSFT", domain.TradeKindSell)))

	records, err := j.TradesAfter(0)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "t1", records[0].Trade.ID)
	assert.Equal(t, domain.TradeKindBuy, records[0].Trade.Kind)
	assert.Equal(t, "t2", records[1].Trade.ID)
	assert.True(t, records[1].Trade.Shares.Equal(decimal.NewFromInt(10)))
}

func TestJournal_TradesAfterSkipsResetRequests(t *testing.T) {
	j, err := NewJournal(t.TempDir())
	require.NoError(t, err)
	defer j.Close()

	require.NoError(t, j.AppendTrade(testTrade("t1", "AAPL", domain.TradeKindBuy)))
	require.NoError(t, j.AppendResetRequest(ResetRequest{Reason: "learning", ResetsUsed: 3, RequestedAtMs: 1717243800000}))
	require.NoError(t, j.AppendTrade(testTrade("t2", "AAPL", domain.TradeKindSell)))

	records, err := j.TradesAfter(0)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "t1", records[0].Trade.ID)
	assert.Equal(t, "t2", records[1].Trade.ID)
}

func TestJournal_TradesAfterIndex(t *testing.T) {
	j, err := NewJournal(t.TempDir())
	require.NoError(t, err)
	defer j.Close()

	require.NoError(t, j.AppendTrade(testTrade("t1", "AAPL", domain.TradeKindBuy)))
	first := j.CurrentIndex()
	require.NoError(t, j.AppendTrade(testTrade("t2", "AAPL", domain.TradeKindBuy)))

	records, err := j.TradesAfter(first)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "t2", records[0].Trade.ID)
}

func TestJournal_RejectsMissingSymbol(t *testing.T) {
	j, err := NewJournal(t.TempDir())
	require.NoError(t, err)
	defer j.Close()

	err = j.AppendTrade(domain.Trade{ID: "t1"})
	assert.Error(t, err)
}
