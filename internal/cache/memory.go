package cache

import (
	"context"
	"sync"
	"time"
)

type memoryFlow struct {
	items     map[string][]byte
	expiresAt time.Time
}

// MemoryStorage is the single-process counterpart of RedisStorage, used when
// no Redis address is configured and in tests.
type MemoryStorage struct {
	mu         sync.Mutex
	flows      map[string]*memoryFlow
	receipts   map[string][]byte
	locks      map[string]time.Time
	sessionTTL time.Duration
	now        func() time.Time
}

func NewMemoryStorage(sessionTTL time.Duration) *MemoryStorage {
	return &MemoryStorage{
		flows:      make(map[string]*memoryFlow),
		receipts:   make(map[string][]byte),
		locks:      make(map[string]time.Time),
		sessionTTL: sessionTTL,
		now:        time.Now,
	}
}

func (m *MemoryStorage) Load(_ context.Context, flowID string) (map[string][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	flow := m.live(flowID)
	items := make(map[string][]byte)
	if flow == nil {
		return items, nil
	}
	for k, v := range flow.items {
		items[k] = append([]byte(nil), v...)
	}
	return items, nil
}

func (m *MemoryStorage) Save(_ context.Context, flowID string, items map[string][]byte) error {
	if len(items) == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	flow := m.live(flowID)
	if flow == nil {
		flow = &memoryFlow{items: make(map[string][]byte)}
		m.flows[flowID] = flow
	}
	for k, v := range items {
		flow.items[k] = append([]byte(nil), v...)
	}
	if m.sessionTTL > 0 {
		flow.expiresAt = m.now().Add(m.sessionTTL)
	}
	return nil
}

func (m *MemoryStorage) Remove(_ context.Context, flowID string, fields ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(fields) == 0 {
		delete(m.flows, flowID)
		return nil
	}
	if flow := m.flows[flowID]; flow != nil {
		for _, f := range fields {
			delete(flow.items, f)
		}
	}
	return nil
}

// SaveReceipt keeps receipts apart from flows; a flow id never reaches them.
func (m *MemoryStorage) SaveReceipt(_ context.Context, orderID string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.receipts[orderID] = append([]byte(nil), data...)
	return nil
}

func (m *MemoryStorage) LoadReceipt(_ context.Context, orderID string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.receipts[orderID]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), data...), nil
}

func (m *MemoryStorage) AcquireLock(_ context.Context, name string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if until, held := m.locks[name]; held && (until.IsZero() || now.Before(until)) {
		return false, nil
	}
	var until time.Time
	if ttl > 0 {
		until = now.Add(ttl)
	}
	m.locks[name] = until
	return true, nil
}

func (m *MemoryStorage) ReleaseLock(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, name)
	return nil
}

// live returns the flow unless it has expired; callers hold mu.
func (m *MemoryStorage) live(flowID string) *memoryFlow {
	flow := m.flows[flowID]
	if flow == nil {
		return nil
	}
	if !flow.expiresAt.IsZero() && !m.now().Before(flow.expiresAt) {
		delete(m.flows, flowID)
		return nil
	}
	return flow
}
