package attempt

import "sync"

// syncer serializes answer saves per question id. Saves for the same
// question run strictly in the order they were issued, so a slow earlier
// request can never overwrite a faster later one. Saves for different
// questions proceed independently; they target independent answer rows.
type syncer struct {
	mu    sync.Mutex
	slots map[string]*sync.Mutex
}

func newSyncer() *syncer {
	return &syncer{slots: map[string]*sync.Mutex{}}
}

// do runs fn while holding the per-question lock for questionID.
func (s *syncer) do(questionID string, fn func() error) error {
	s.mu.Lock()
	slot, ok := s.slots[questionID]
	if !ok {
		slot = &sync.Mutex{}
		s.slots[questionID] = slot
	}
	s.mu.Unlock()

	slot.Lock()
	defer slot.Unlock()
	return fn()
}

// reset drops all per-question locks; used when a new attempt begins so
// slots from the previous attempt cannot linger.
func (s *syncer) reset() {
	s.mu.Lock()
	s.slots = map[string]*sync.Mutex{}
	s.mu.Unlock()
}
