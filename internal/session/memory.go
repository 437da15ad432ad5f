package session

import (
	"encoding/json"
	"sort"
	"sync"

	"github.com/falanarh/lms-sub001/internal/model"
)

// MemoryStore is an in-memory Store used in tests. It round-trips sessions
// through JSON so reload behavior matches the sqlite store.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func NewMemory() *MemoryStore {
	return &MemoryStore{entries: map[string][]byte{}}
}

func (m *MemoryStore) Save(sess *model.AttemptSession) error {
	payload, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[Key(sess.ContentID)] = payload
	return nil
}

func (m *MemoryStore) Load(contentID string) (*model.AttemptSession, error) {
	m.mu.Lock()
	payload, ok := m.entries[Key(contentID)]
	m.mu.Unlock()
	if !ok {
		return nil, nil
	}
	var sess model.AttemptSession
	if err := json.Unmarshal(payload, &sess); err != nil {
		_ = m.Clear(contentID)
		return nil, nil
	}
	sess.Normalize()
	return &sess, nil
}

func (m *MemoryStore) Clear(contentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, Key(contentID))
	return nil
}

func (m *MemoryStore) List() ([]*model.AttemptSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sessions []*model.AttemptSession
	for _, k := range keys {
		var sess model.AttemptSession
		if err := json.Unmarshal(m.entries[k], &sess); err != nil {
			continue
		}
		sess.Normalize()
		sessions = append(sessions, &sess)
	}
	return sessions, nil
}
