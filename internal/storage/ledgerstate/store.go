// Package ledgerstate persists the ledger as a local JSON blob so restarts
// keep cash, holdings and the working trade list.
package ledgerstate

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"papertrader/internal/domain"
)

const stateFileName = "ledger.json"

// Store reads and writes the ledger snapshot blob.
type Store struct {
	path string
}

// NewStore creates a snapshot store under dir, creating dir when missing.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create ledger state dir")
	}
	return &Store{path: filepath.Join(dir, stateFileName)}, nil
}

// State is the persisted snapshot. Decimals are stored as strings to survive
// round-trips without precision loss.
type State struct {
	Cash        string                    `json:"cash"`
	Positions   map[string]StoredPosition `json:"positions"`
	Trades      []StoredTrade             `json:"trades"`
	ResetsUsed  int                       `json:"resetsUsed"`
	InitialCash string                    `json:"initialCash"`
	LastResetAt time.Time                 `json:"lastResetAt,omitempty"`
}

// StoredPosition is the serializable form of domain.Position.
type StoredPosition struct {
	Shares      string `json:"shares"`
	AverageCost string `json:"averageCost"`
}

// StoredTrade is the serializable form of domain.Trade.
type StoredTrade struct {
	ID            string `json:"id"`
	Symbol        string `json:"symbol"`
	Kind          string `json:"kind"`
	Shares        string `json:"shares"`
	PricePerShare string `json:"pricePerShare"`
	TotalValue    string `json:"totalValue"`
	TimestampMs   int64  `json:"timestampMs"`
}

// Load reads the snapshot from disk. A missing or empty blob yields nil.
func (s *Store) Load() (*State, error) {
	if s == nil || s.path == "" {
		return nil, nil
	}

	payload, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "read ledger state")
	}
	if len(payload) == 0 {
		return nil, nil
	}

	var state State
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, errors.Wrap(err, "decode ledger state")
	}
	return &state, nil
}

// Save writes the snapshot atomically via temp file + rename.
func (s *Store) Save(state State) error {
	if s == nil || s.path == "" {
		return nil
	}

	payload, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode ledger state")
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return errors.Wrap(err, "write ledger state temp file")
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return errors.Wrap(err, "persist ledger state")
	}
	return nil
}

// NewStoredPosition converts a domain position to its stored form.
func NewStoredPosition(p *domain.Position) StoredPosition {
	return StoredPosition{
		Shares:      p.Shares.String(),
		AverageCost: p.AverageCost.String(),
	}
}

// ToPosition reconstructs a domain position.
func (sp StoredPosition) ToPosition(symbol string) (*domain.Position, error) {
	shares, err := decimal.NewFromString(sp.Shares)
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s shares", symbol)
	}
	averageCost, err := decimal.NewFromString(sp.AverageCost)
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s average cost", symbol)
	}
	return &domain.Position{Symbol: symbol, Shares: shares, AverageCost: averageCost}, nil
}

// NewStoredTrade converts a domain trade to its stored form.
func NewStoredTrade(t domain.Trade) StoredTrade {
	return StoredTrade{
		ID:            t.ID,
		Symbol:        t.Symbol,
		Kind:          string(t.Kind),
		Shares:        t.Shares.String(),
		PricePerShare: t.PricePerShare.String(),
		TotalValue:    t.TotalValue.String(),
		TimestampMs:   t.TimestampMs,
	}
}

// ToTrade reconstructs a domain trade.
func (st StoredTrade) ToTrade() (domain.Trade, error) {
	shares, err := decimal.NewFromString(st.Shares)
	if err != nil {
		return domain.Trade{}, errors.Wrapf(err, "decode trade %s shares", st.ID)
	}
	price, err := decimal.NewFromString(st.PricePerShare)
	if err != nil {
		return domain.Trade{}, errors.Wrapf(err, "decode trade %s price", st.ID)
	}
	total, err := decimal.NewFromString(st.TotalValue)
	if err != nil {
		return domain.Trade{}, errors.Wrapf(err, "decode trade %s total", st.ID)
	}
	return domain.Trade{
		ID:            st.ID,
		Symbol:        st.Symbol,
		Kind:          domain.TradeKind(st.Kind),
		Shares:        shares,
		PricePerShare: price,
		TotalValue:    total,
		TimestampMs:   st.TimestampMs,
	}, nil
}
