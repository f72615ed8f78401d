package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPosition_Validation(t *testing.T) {
	_, err := NewPosition("AAPL", decimal.Zero, decimal.NewFromInt(100))
	assert.Error(t, err)

	_, err = NewPosition("AAPL", decimal.NewFromInt(1), decimal.Zero)
	assert.Error(t, err)

	pos, err := NewPosition("AAPL", decimal.NewFromInt(10), decimal.NewFromInt(100))
	require.NoError(t, err)
	assert.True(t, pos.TotalCost().Equal(decimal.NewFromInt(1000)))
}

func TestPosition_AddSharesWeightedAverage(t *testing.T) {
	pos, err := NewPosition("AAPL", decimal.NewFromInt(10), decimal.NewFromInt(100))
	require.NoError(t, err)

	pos.AddShares(decimal.NewFromInt(10), decimal.NewFromInt(200))

	assert.True(t, pos.Shares.Equal(decimal.NewFromInt(20)))
	assert.True(t, pos.AverageCost.Equal(decimal.NewFromInt(150)))
	assert.True(t, pos.TotalCost().Equal(decimal.NewFromInt(3000)))
}

func TestPosition_RemoveSharesKeepsAverageCost(t *testing.T) {
	pos, err := NewPosition("AAPL", decimal.NewFromInt(20), decimal.NewFromInt(150))
	require.NoError(t, err)

	pos.RemoveShares(decimal.NewFromInt(5))

	assert.True(t, pos.Shares.Equal(decimal.NewFromInt(15)))
	assert.True(t, pos.AverageCost.Equal(decimal.NewFromInt(150)))
}

func TestPosition_MarketValue(t *testing.T) {
	pos, err := NewPosition("AAPL", decimal.NewFromInt(10), decimal.NewFromInt(100))
	require.NoError(t, err)

	assert.True(t, pos.MarketValue(decimal.NewFromInt(120)).Equal(decimal.NewFromInt(1200)))

	var nilPos *Position
	assert.True(t, nilPos.MarketValue(decimal.NewFromInt(120)).Equal(decimal.Zero))
}
