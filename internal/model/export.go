package model

import "time"

// SessionExport is the top-level JSON structure for exporting locally
// persisted attempt sessions.
type SessionExport struct {
	ExportedAt time.Time         `json:"exported_at"`
	Sessions   []SessionSnapshot `json:"sessions"`
}

// SessionSnapshot holds one persisted session plus derived progress numbers.
type SessionSnapshot struct {
	ContentID      string         `json:"content_id"`
	AttemptID      string         `json:"attempt_id"`
	StartedAt      time.Time      `json:"started_at"`
	CapturedAt     time.Time      `json:"captured_at"`
	TotalQuestions int            `json:"total_questions"`
	AnsweredCount  int            `json:"answered_count"`
	CurrentIndex   int            `json:"current_index"`
	Session        AttemptSession `json:"session"`
}
