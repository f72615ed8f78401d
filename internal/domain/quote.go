// Package domain defines the core data structures shared by the market-data
// and ledger services.
package domain

import (
	"github.com/shopspring/decimal"
)

// Quote is the normalized quote shape every provider adapter produces,
// regardless of the upstream payload format.
type Quote struct {
	Symbol        string          `json:"symbol"`
	CurrentPrice  decimal.Decimal `json:"currentPrice"`
	Change        decimal.Decimal `json:"change"`
	ChangePercent decimal.Decimal `json:"changePercent"`
	High          decimal.Decimal `json:"high"`
	Low           decimal.Decimal `json:"low"`
	Open          decimal.Decimal `json:"open"`
	PreviousClose decimal.Decimal `json:"previousClose"`
	// TimestampMs is the provider's quote time in unix milliseconds.
	TimestampMs int64 `json:"timestampMs"`
	// SourceID identifies which provider answered, for traceability.
	SourceID string `json:"sourceId"`
}

// SecurityType classifies a search result for ranking purposes.
type SecurityType string

const (
	SecurityTypeEquity SecurityType = "equity"
	SecurityTypeETF    SecurityType = "etf"
	SecurityTypeOther  SecurityType = "other"
)

// SearchResult is one normalized symbol-search hit. Identity is the symbol
// alone: when two providers return the same symbol, the first-seen source wins.
type SearchResult struct {
	Symbol       string       `json:"symbol"`
	Name         string       `json:"name"`
	SecurityType SecurityType `json:"securityType"`
	Exchange     string       `json:"exchange,omitempty"`
	SourceID     string       `json:"sourceId"`
}
