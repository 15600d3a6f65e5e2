package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"kiosk-service/internal/models"
	"kiosk-service/internal/util"

	"go.uber.org/zap"
)

// Persistence is the durable backing for one device's ledger. The production
// implementation is Redis; tests use an in-memory fake.
type Persistence interface {
	LoadLedger(ctx context.Context, siteKey, deviceID string) ([]byte, error)
	SaveLedger(ctx context.Context, siteKey, deviceID string, data []byte) error
}

// Ledger is a device's durable record of orders it placed that have not yet
// been notified. It is a best-effort shadow of the order records, not the
// source of truth. Every mutation persists synchronously before returning, so
// a crash loses at most the in-flight operation.
type Ledger struct {
	mu       sync.Mutex
	siteKey  string
	deviceID string
	entries  []models.LedgerEntry
	persist  Persistence
	logger   *zap.Logger
}

// New creates a ledger for one device at one site and loads persisted state
func New(ctx context.Context, persist Persistence, siteKey, deviceID string) (*Ledger, error) {
	l := &Ledger{
		siteKey:  siteKey,
		deviceID: deviceID,
		persist:  persist,
		logger:   util.GetLogger(),
	}
	if err := l.Reload(ctx); err != nil {
		return nil, err
	}
	return l, nil
}

// Append adds an entry and persists. An entry with a duplicate order number
// replaces the existing one.
func (l *Ledger) Append(ctx context.Context, entry models.LedgerEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	replaced := false
	for i := range l.entries {
		if l.entries[i].OrderNo == entry.OrderNo {
			l.entries[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		l.entries = append(l.entries, entry)
	}
	return l.flush(ctx)
}

// All returns the entries in insertion order
func (l *Ledger) All() []models.LedgerEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]models.LedgerEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// MarkNotified removes the entry for an order number and persists. Notified
// is terminal; entries are pruned, not archived. Returns false when no entry
// was present, so a second completion push for the same order is a no-op.
func (l *Ledger) MarkNotified(ctx context.Context, orderNo int64) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx := -1
	for i := range l.entries {
		if l.entries[i].OrderNo == orderNo {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false, nil
	}
	l.entries = append(l.entries[:idx], l.entries[idx+1:]...)
	if err := l.flush(ctx); err != nil {
		return true, err
	}
	return true, nil
}

// UpdateWaits stores recomputed wait estimates and persists
func (l *Ledger) UpdateWaits(ctx context.Context, waits map[int64]int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	changed := false
	for i := range l.entries {
		if w, ok := waits[l.entries[i].OrderNo]; ok && l.entries[i].WaitMinutes != w {
			l.entries[i].WaitMinutes = w
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return l.flush(ctx)
}

// Reload replaces in-memory state with the persisted state. Called on
// submission and whenever the device reports becoming visible again, to pick
// up writes from another tab. Persisted storage is the last-write-wins merge
// point; no cross-tab locking is attempted.
func (l *Ledger) Reload(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := l.persist.LoadLedger(ctx, l.siteKey, l.deviceID)
	if err != nil {
		return fmt.Errorf("failed to reload ledger: %w", err)
	}
	if len(data) == 0 {
		l.entries = nil
		return nil
	}

	var entries []models.LedgerEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		l.logger.Warn("Discarding corrupt ledger state",
			zap.String("site_key", l.siteKey),
			zap.String("device_id", l.deviceID),
			zap.Error(err))
		l.entries = nil
		return nil
	}
	l.entries = entries
	return nil
}

func (l *Ledger) flush(ctx context.Context) error {
	data, err := json.Marshal(l.entries)
	if err != nil {
		return fmt.Errorf("failed to encode ledger: %w", err)
	}
	if err := l.persist.SaveLedger(ctx, l.siteKey, l.deviceID, data); err != nil {
		return fmt.Errorf("failed to persist ledger: %w", err)
	}
	return nil
}
