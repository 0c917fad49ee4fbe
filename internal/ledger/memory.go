package ledger

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps ledgers in a map. Used by tests and dry runs.
type MemoryStore struct {
	mu      sync.Mutex
	ledgers map[Key]Ledger
	writes  int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{ledgers: map[Key]Ledger{}}
}

func (m *MemoryStore) GetLedger(_ context.Context, key Key) (Ledger, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.ledgers[key]
	return l.Clone(), ok, nil
}

func (m *MemoryStore) PutLedger(_ context.Context, key Key, l Ledger) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ledgers[key] = l.Clone()
	m.writes++
	return nil
}

func (m *MemoryStore) CastingLedgers(_ context.Context) ([]Key, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Key
	for k, l := range m.ledgers {
		if l.Casting {
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out, nil
}

// Writes counts PutLedger calls.
func (m *MemoryStore) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}
