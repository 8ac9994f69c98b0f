package credentials

import (
	"context"
	"errors"
	"sync"
)

// MemoryStore keeps records in a map. Useful for tests and the demo server.
type MemoryStore struct {
	mu      sync.RWMutex
	nextID  int64
	records map[string]Record
	roles   map[string][]string
	details map[string]map[string]string

	// Fail, when set, is returned wrapped in ErrUnavailable by every read.
	Fail error
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]Record),
		roles:   make(map[string][]string),
		details: make(map[string]map[string]string),
	}
}

// Add inserts rec, assigning an ID when rec.ID is zero. Identities are
// unique; adding a duplicate fails.
func (m *MemoryStore) Add(rec Record) (Record, error) {
	if rec.Identity == "" {
		return Record{}, errors.New("identity is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.records[rec.Identity]; exists {
		return Record{}, errors.New("identity already exists")
	}
	if rec.ID == 0 {
		m.nextID++
		rec.ID = m.nextID
	} else if rec.ID > m.nextID {
		m.nextID = rec.ID
	}
	m.records[rec.Identity] = rec
	return rec, nil
}

// SetRoles overrides the roles resolved for identity.
func (m *MemoryStore) SetRoles(identity string, roles ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roles[identity] = append([]string(nil), roles...)
}

// SetDetails sets the auxiliary attributes for identity.
func (m *MemoryStore) SetDetails(identity string, details map[string]string) {
	cp := make(map[string]string, len(details))
	for k, v := range details {
		cp[k] = v
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.details[identity] = cp
}

func (m *MemoryStore) FindByIdentity(_ context.Context, identity string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.Fail != nil {
		return Record{}, errors.Join(ErrUnavailable, m.Fail)
	}
	rec, ok := m.records[identity]
	if !ok || identity == "" {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (m *MemoryStore) ResolveRoles(_ context.Context, identity string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.Fail != nil {
		return nil, errors.Join(ErrUnavailable, m.Fail)
	}
	roles, ok := m.roles[identity]
	if !ok {
		return nil, nil
	}
	return append([]string(nil), roles...), nil
}

func (m *MemoryStore) ResolveDetails(_ context.Context, identity string) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.Fail != nil {
		return nil, errors.Join(ErrUnavailable, m.Fail)
	}
	d, ok := m.details[identity]
	if !ok {
		return nil, nil
	}
	out := make(map[string]string, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out, nil
}

// UpdateSecretHash implements [HashUpdater].
func (m *MemoryStore) UpdateSecretHash(_ context.Context, id int64, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Fail != nil {
		return errors.Join(ErrUnavailable, m.Fail)
	}
	for k, rec := range m.records {
		if rec.ID == id {
			rec.SecretHash = hash
			m.records[k] = rec
			return nil
		}
	}
	return ErrNotFound
}
