package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/BTreeMap/LeadPipe/internal/models"
)

// MemoryStore keeps sessions in process memory. Sessions are stored as snapshots so a caller
// mutating its copy does not race with other readers.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]byte
	meta     map[string]meta
	byPhone  map[string]string
}

type meta struct {
	channel      models.Channel
	address      string
	phone        string
	lastActivity time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string][]byte),
		meta:     make(map[string]meta),
		byPhone:  make(map[string]string),
	}
}

// Get returns a copy of the session with id.
func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.RLock()
	data, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return Decode(data)
}

// Put stores a snapshot of s.
func (m *MemoryStore) Put(_ context.Context, s *Session) error {
	data, err := Encode(s)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.meta[s.ID]; ok && old.phone != "" && old.phone != s.Phone && m.byPhone[old.phone] == s.ID {
		delete(m.byPhone, old.phone)
	}
	m.sessions[s.ID] = data
	m.meta[s.ID] = meta{channel: s.Channel, address: s.Address, phone: s.Phone, lastActivity: s.LastActivity}
	if s.Phone != "" {
		m.byPhone[s.Phone] = s.ID
	}
	return nil
}

// Delete removes a session.
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteLocked(id)
	return nil
}

func (m *MemoryStore) deleteLocked(id string) {
	if md, ok := m.meta[id]; ok && md.phone != "" && m.byPhone[md.phone] == id {
		delete(m.byPhone, md.phone)
	}
	delete(m.sessions, id)
	delete(m.meta, id)
}

// GetByPhone looks a session up through the phone index.
func (m *MemoryStore) GetByPhone(ctx context.Context, phone string) (*Session, error) {
	m.mu.RLock()
	id, ok := m.byPhone[phone]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return m.Get(ctx, id)
}

// SweepExpired removes idle sessions.
func (m *MemoryStore) SweepExpired(_ context.Context, now time.Time, timeout time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, md := range m.meta {
		if now.Sub(md.lastActivity) > timeout {
			m.deleteLocked(id)
			n++
		}
	}
	return n, nil
}

// DeleteByAddress removes every session of ch opened against address.
func (m *MemoryStore) DeleteByAddress(_ context.Context, ch models.Channel, address string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, md := range m.meta {
		if md.channel == ch && md.address == address {
			m.deleteLocked(id)
			n++
		}
	}
	return n, nil
}

// Count returns the number of sessions.
func (m *MemoryStore) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions), nil
}

// Encode serializes a session snapshot.
func Encode(s *Session) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session %s: %w", s.ID, err)
	}
	return data, nil
}

// Decode restores a session snapshot.
func Decode(data []byte) (*Session, error) {
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &s, nil
}
