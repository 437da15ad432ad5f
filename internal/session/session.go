// Package session persists in-progress attempt state so a restart of the
// agent resumes a quiz exactly where the learner left off.
package session

import "github.com/falanarh/lms-sub001/internal/model"

// Store is the durable per-content session store. One entry exists per
// content id at most; saving overwrites any prior entry for that content.
//
// Load must never perform network I/O: it is checked before any upstream
// call so resume is instant. A load that finds nothing, or finds a payload
// it cannot decode, reports absence rather than an error.
type Store interface {
	// Save persists the session under its content id.
	Save(s *model.AttemptSession) error
	// Load returns the stored session for contentID, or nil when absent.
	Load(contentID string) (*model.AttemptSession, error)
	// Clear removes the entry for contentID. Clearing an absent key is not
	// an error.
	Clear(contentID string) error
	// List returns every stored session, newest first.
	List() ([]*model.AttemptSession, error)
}

// Key derives the storage key for a content id.
func Key(contentID string) string {
	return "quiz_session_" + contentID
}
