package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"vocalroom/internal/calendar"
	"vocalroom/internal/model"
)

// Memory is the fallback backend used when no database is configured. Records
// live only for the lifetime of the process. Ids come from a nanosecond
// timestamp, bumped on collision so they stay strictly increasing.
type Memory struct {
	mu      sync.Mutex
	records map[int64]model.Reservation
	lastID  int64
}

// NewMemory creates an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{records: make(map[int64]model.Reservation)}
}

func (m *Memory) nextID() int64 {
	id := time.Now().UnixNano()
	if id <= m.lastID {
		id = m.lastID + 1
	}
	m.lastID = id
	return id
}

func (m *Memory) List(_ context.Context, from, to calendar.Date) ([]model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	lo, hi := from.ISO(), to.ISO()
	out := make([]model.Reservation, 0)
	for _, r := range m.records {
		if r.Date >= lo && r.Date <= hi {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].Hour < out[j].Hour
	})
	return out, nil
}

func (m *Memory) Create(_ context.Context, date string, hour int, user string) (model.Reservation, error) {
	r := model.Reservation{Date: date, Hour: hour, User: user}
	if err := r.Validate(); err != nil {
		return model.Reservation{}, ErrInvalidInput
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Mirror the relational backends' unique (date, hour) constraint.
	for _, existing := range m.records {
		if existing.Date == date && existing.Hour == hour {
			return model.Reservation{}, ErrPersistence
		}
	}

	r.ID = m.nextID()
	m.records[r.ID] = r
	return r, nil
}

func (m *Memory) UpdateUser(_ context.Context, id int64, newUser string) error {
	if newUser == "" {
		return ErrInvalidInput
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.records[id]
	if !ok {
		return ErrNotFound
	}
	r.User = newUser
	m.records[id] = r
	return nil
}

func (m *Memory) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[id]; !ok {
		return ErrNotFound
	}
	delete(m.records, id)
	return nil
}

func (m *Memory) Close() error { return nil }
