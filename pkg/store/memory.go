package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore keeps todos in process memory. Ids start at 1 and are never reused.
type MemoryStore struct {
	mu      sync.Mutex
	records map[int64]Record
	nextID  int64
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[int64]Record), nextID: 1, now: time.Now}
}

// Seed inserts a record with a fixed id, moving the id counter past it.
func (m *MemoryStore) Seed(id int64, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ts := m.now().UTC()
	m.records[id] = Record{ID: id, Text: text, CreatedAt: ts, UpdatedAt: ts}
	if id >= m.nextID {
		m.nextID = id + 1
	}
}

func (m *MemoryStore) SelectAll(ctx context.Context) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedLocked(func(Record) bool { return true }), nil
}

func (m *MemoryStore) Insert(ctx context.Context, text string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	ts := m.now().UTC()
	m.records[id] = Record{ID: id, Text: text, CreatedAt: ts, UpdatedAt: ts}
	return id, nil
}

func (m *MemoryStore) SelectWhere(ctx context.Context, pattern string) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	needle := strings.ToLower(pattern)
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedLocked(func(r Record) bool {
		return strings.Contains(strings.ToLower(r.Text), needle)
	}), nil
}

func (m *MemoryStore) DeleteWhere(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, id)
	return nil
}

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) sortedLocked(keep func(Record) bool) []Record {
	out := make([]Record, 0, len(m.records))
	for _, r := range m.records {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

var _ Store = (*MemoryStore)(nil)
