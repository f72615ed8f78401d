package domain

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Position is an open holding in the ledger. A position with zero shares is
// removed from the ledger, never kept as a zero row.
type Position struct {
	Symbol      string          `json:"symbol"`
	Shares      decimal.Decimal `json:"shares"`
	AverageCost decimal.Decimal `json:"averageCost"`
}

// NewPosition opens a position at the given price.
func NewPosition(symbol string, shares, price decimal.Decimal) (*Position, error) {
	if shares.LessThanOrEqual(decimal.Zero) {
		return nil, errors.New("position shares must be greater than zero")
	}
	if price.LessThanOrEqual(decimal.Zero) {
		return nil, errors.New("position price must be greater than zero")
	}

	return &Position{Symbol: symbol, Shares: shares, AverageCost: price}, nil
}

// TotalCost is the cost basis of the whole position.
func (p *Position) TotalCost() decimal.Decimal {
	if p == nil {
		return decimal.Zero
	}
	return p.Shares.Mul(p.AverageCost)
}

// AddShares folds a new purchase into the position, recomputing the average
// cost as a weighted average over the combined share count.
func (p *Position) AddShares(shares, price decimal.Decimal) {
	total := p.Shares.Add(shares)
	if total.LessThanOrEqual(decimal.Zero) {
		return
	}
	p.AverageCost = p.TotalCost().Add(shares.Mul(price)).Div(total)
	p.Shares = total
}

// RemoveShares reduces the position after a sell. The average cost of the
// remaining shares is unchanged: selling never moves the cost basis, only a
// subsequent buy recomputes it.
func (p *Position) RemoveShares(shares decimal.Decimal) {
	p.Shares = p.Shares.Sub(shares)
}

// MarketValue values the position at the given price.
func (p *Position) MarketValue(price decimal.Decimal) decimal.Decimal {
	if p == nil {
		return decimal.Zero
	}
	return p.Shares.Mul(price)
}
