// Package trades keeps the immutable audit trail of executed trades in an
// append-only WAL. Unlike the ledger snapshot, the journal is never truncated:
// a portfolio reset clears the working trade list but not this history.
package trades

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"

	"papertrader/internal/domain"
)

const (
	segmentLimit = 1000
	maxSegments  = 100

	tradeKeyPrefix   = "trade_"
	resetRequestKey  = "reset_request"
	walDefaultDir    = "./state/journal"
	walSegmentPrefix = "trades_"
)

// ResetRequest records a request for a manual reset-limit increase. It is an
// administrative signal only; the ledger never raises its own limit.
type ResetRequest struct {
	Reason        string `json:"reason"`
	ResetsUsed    int    `json:"resetsUsed"`
	RequestedAtMs int64  `json:"requestedAtMs"`
}

// TradeRecord pairs a journaled trade with its WAL index.
type TradeRecord struct {
	Index uint64
	Trade domain.Trade
}

// Journal is the gowal-backed append-only trade log.
type Journal struct {
	wal *gowal.Wal
	mu  sync.RWMutex
}

// NewJournal opens (or creates) the journal under dir.
func NewJournal(dir string) (*Journal, error) {
	if dir == "" {
		dir = walDefaultDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           walSegmentPrefix,
		SegmentThreshold: segmentLimit,
		MaxSegments:      maxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init trade journal")
	}
	return &Journal{wal: wal}, nil
}

// AppendTrade writes one executed trade to the journal.
func (j *Journal) AppendTrade(trade domain.Trade) error {
	if j == nil || j.wal == nil {
		return errors.New("trade journal is not initialized")
	}
	if trade.Symbol == "" {
		return errors.New("trade symbol is required")
	}

	payload, err := json.Marshal(trade)
	if err != nil {
		return errors.Wrap(err, "marshal trade")
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	nextIndex := j.wal.CurrentIndex() + 1
	return j.wal.Write(nextIndex, tradeKeyPrefix+trade.Symbol, payload)
}

// AppendResetRequest records a reset-limit increase request.
func (j *Journal) AppendResetRequest(req ResetRequest) error {
	if j == nil || j.wal == nil {
		return errors.New("trade journal is not initialized")
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return errors.Wrap(err, "marshal reset request")
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	nextIndex := j.wal.CurrentIndex() + 1
	return j.wal.Write(nextIndex, resetRequestKey, payload)
}

// TradesAfter returns every journaled trade written after the given index.
func (j *Journal) TradesAfter(index uint64) ([]TradeRecord, error) {
	if j == nil || j.wal == nil {
		return nil, errors.New("trade journal is not initialized")
	}

	j.mu.RLock()
	defer j.mu.RUnlock()

	current := j.wal.CurrentIndex()
	if current <= index {
		return nil, nil
	}

	records := make([]TradeRecord, 0, current-index)
	for idx := index + 1; idx <= current; idx++ {
		key, payload, err := j.wal.Get(idx)
		if err != nil || !strings.HasPrefix(key, tradeKeyPrefix) {
			continue
		}
		var trade domain.Trade
		if err := json.Unmarshal(payload, &trade); err != nil {
			return nil, errors.Wrap(err, "decode journaled trade")
		}
		records = append(records, TradeRecord{Index: idx, Trade: trade})
	}
	return records, nil
}

// CurrentIndex returns the latest WAL index stored.
func (j *Journal) CurrentIndex() uint64 {
	if j == nil || j.wal == nil {
		return 0
	}

	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.wal.CurrentIndex()
}

// Close closes the underlying WAL.
func (j *Journal) Close() error {
	if j == nil || j.wal == nil {
		return errors.New("trade journal is not initialized")
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	return j.wal.Close()
}
