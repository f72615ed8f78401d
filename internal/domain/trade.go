package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// TradeKind is the direction of an executed trade.
type TradeKind string

const (
	TradeKindBuy  TradeKind = "buy"
	TradeKindSell TradeKind = "sell"
)

// Trade is one executed paper trade. Trades are immutable once created and
// form the append-only audit trail of the ledger.
type Trade struct {
	ID            string          `json:"id"`
	Symbol        string          `json:"symbol"`
	Kind          TradeKind       `json:"kind"`
	Shares        decimal.Decimal `json:"shares"`
	PricePerShare decimal.Decimal `json:"pricePerShare"`
	TotalValue    decimal.Decimal `json:"totalValue"`
	TimestampMs   int64           `json:"timestampMs"`
}

// String returns a human-readable representation.
func (t *Trade) String() string {
	return fmt.Sprintf("%s %s %s @ %s", t.Kind, t.Shares.String(), t.Symbol, t.PricePerShare.String())
}

// GainLoss is the total unrealized performance of a ledger against its
// initial cash.
type GainLoss struct {
	Amount  decimal.Decimal `json:"amount"`
	Percent decimal.Decimal `json:"percent"`
}
