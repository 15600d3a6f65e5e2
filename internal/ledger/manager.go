package ledger

import (
	"context"
	"sync"
)

// Manager hands out one ledger per device+site pair, loading persisted state
// on first use.
type Manager struct {
	mu      sync.Mutex
	persist Persistence
	ledgers map[string]*Ledger
	sites   map[string][]*Ledger
}

// NewManager creates a ledger manager
func NewManager(persist Persistence) *Manager {
	return &Manager{
		persist: persist,
		ledgers: make(map[string]*Ledger),
		sites:   make(map[string][]*Ledger),
	}
}

// Get returns the ledger for a device at a site, creating it on first use
func (m *Manager) Get(ctx context.Context, siteKey, deviceID string) (*Ledger, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := siteKey + "/" + deviceID
	if l, ok := m.ledgers[key]; ok {
		return l, nil
	}

	l, err := New(ctx, m.persist, siteKey, deviceID)
	if err != nil {
		return nil, err
	}
	m.ledgers[key] = l
	m.sites[siteKey] = append(m.sites[siteKey], l)
	return l, nil
}

// ForSite returns every loaded ledger for a site
func (m *Manager) ForSite(siteKey string) []*Ledger {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*Ledger, len(m.sites[siteKey]))
	copy(out, m.sites[siteKey])
	return out
}
