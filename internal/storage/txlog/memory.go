package txlog

import (
	"context"
	"sort"
	"sync"
)

// Memory is a Log held in process memory.
type Memory struct {
	mu      sync.RWMutex
	byID    map[string]int
	records []Record
	closed  bool
}

func NewMemory() *Memory {
	return &Memory{byID: make(map[string]int)}
}

func (m *Memory) Append(ctx context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if _, ok := m.byID[rec.ID]; ok {
		return ErrDuplicate
	}
	rec.Payload = append([]byte(nil), rec.Payload...)
	m.byID[rec.ID] = len(m.records)
	m.records = append(m.records, rec)
	return nil
}

func (m *Memory) Get(ctx context.Context, id string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return Record{}, ErrClosed
	}
	idx, ok := m.byID[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return m.records[idx], nil
}

func (m *Memory) List(ctx context.Context, opts ListOptions) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}

	var out []Record
	for _, rec := range m.records {
		if opts.Payer != "" && rec.Payer != opts.Payer {
			continue
		}
		if rec.BlockHeight < opts.FromHeight {
			continue
		}
		out = append(out, rec)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].BlockHeight < out[j].BlockHeight })
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
