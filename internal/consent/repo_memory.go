package consent

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store used by tests. It mirrors the
// relational store's semantics (first-match load, expiry refresh on every
// write, one-way user binding, load-time staleness reset) without a
// database. Not intended for production use.
type MemoryStore struct {
	mu      sync.Mutex
	records []Record
	users   map[string]int64
	nextID  int64

	// Clock is injectable for deterministic tests.
	Clock func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: map[string]int64{}, nextID: 1, Clock: time.Now}
}

// AddUser seeds the email directory.
func (m *MemoryStore) AddUser(email string, id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[email] = id
}

func (m *MemoryStore) Load(ctx context.Context, sel Selector) (Record, bool, error) {
	if sel.isEmpty() {
		return Record{}, false, ErrInvalidSelector
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.records {
		r := m.records[i]
		if (sel.ID != 0 && r.ID == sel.ID) ||
			(sel.UUID != "" && r.UUID == sel.UUID) ||
			(sel.UserID != 0 && r.UserID != nil && *r.UserID == sel.UserID) {
			return applyStaleness(r.clone(), m.Clock()), true, nil
		}
	}
	return Record{}, false, nil
}

func (m *MemoryStore) Insert(ctx context.Context, rec Record) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.Clock().UTC()
	rec = rec.clone()
	if rec.UUID == "" {
		rec.UUID = uuid.NewString()
	}
	rec.ID = m.nextID
	m.nextID++
	rec.DateCreated = now
	rec.DateUpdated = now
	rec.DateExpires = now.AddDate(1, 0, 0)
	m.records = append(m.records, rec)
	return rec.clone(), nil
}

func (m *MemoryStore) Update(ctx context.Context, uid string, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.records {
		if m.records[i].UUID != uid {
			continue
		}
		now := m.Clock().UTC()
		next := rec.clone()
		next.ID = m.records[i].ID
		next.UUID = uid
		next.DateCreated = m.records[i].DateCreated
		next.DateUpdated = now
		next.DateExpires = now.AddDate(1, 0, 0)
		m.records[i] = next
		return nil
	}
	return nil
}

func (m *MemoryStore) LookupUserIDByEmail(ctx context.Context, email string) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.users[email]
	return id, ok, nil
}

func (m *MemoryStore) BindUserID(ctx context.Context, uid string, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.records {
		if m.records[i].UUID == uid && m.records[i].UserID == nil {
			id := userID
			m.records[i].UserID = &id
			return nil
		}
	}
	return nil
}

func (m *MemoryStore) ExtendExpiry(ctx context.Context, uid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.records {
		if m.records[i].UUID == uid {
			m.records[i].DateExpires = m.Clock().UTC().AddDate(1, 0, 0)
			return nil
		}
	}
	return nil
}

// Records returns a snapshot of all stored records, in insertion order.
func (m *MemoryStore) Records() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Record, 0, len(m.records))
	for i := range m.records {
		out = append(out, m.records[i].clone())
	}
	return out
}
