package audit

import (
	"context"
	"sync"
)

// MemoryRepo хранит записи в памяти с ограничением по количеству.
type MemoryRepo struct {
	mu       sync.RWMutex
	records  []Record
	capacity int
}

// NewMemoryRepo создаёт журнал на capacity записей (0 — без ограничения).
func NewMemoryRepo(capacity int) *MemoryRepo {
	return &MemoryRepo{capacity: capacity}
}

// Save добавляет запись; при переполнении вытесняется самая старая.
func (m *MemoryRepo) Save(_ context.Context, r Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, r)
	if m.capacity > 0 && len(m.records) > m.capacity {
		m.records = m.records[len(m.records)-m.capacity:]
	}
	return nil
}

// List возвращает подходящие записи от новых к старым.
func (m *MemoryRepo) List(_ context.Context, q Query) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	limit := q.limit()
	out := make([]Record, 0, min(limit, len(m.records)))
	for i := len(m.records) - 1; i >= 0 && len(out) < limit; i-- {
		if q.match(m.records[i]) {
			out = append(out, m.records[i])
		}
	}
	return out, nil
}

// Len возвращает число хранимых записей.
func (m *MemoryRepo) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// Close ничего не делает.
func (m *MemoryRepo) Close() error { return nil }
