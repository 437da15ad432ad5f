package model

import (
	"fmt"
	"maps"
	"slices"
	"time"
)

// QuestionType identifies how a question is answered and how its review
// correctness is derived.
type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionTrueFalse      QuestionType = "true_false"
	QuestionShortAnswer    QuestionType = "short_answer"
	QuestionEssay          QuestionType = "essay"
)

// ParseQuestionType converts a wire value into a QuestionType.
func ParseQuestionType(s string) (QuestionType, error) {
	switch QuestionType(s) {
	case QuestionMultipleChoice, QuestionTrueFalse, QuestionShortAnswer, QuestionEssay:
		return QuestionType(s), nil
	}
	return "", fmt.Errorf("unknown question type %q", s)
}

// AttemptState is the lifecycle state of a quiz attempt as seen by the agent.
type AttemptState string

const (
	StateNotStarted AttemptState = "not_started"
	StateInProgress AttemptState = "in_progress"
	StateSubmitted  AttemptState = "submitted"
	StateReviewing  AttemptState = "reviewing"
)

// QuizDefinition holds a quiz's static parameters. It is owned by the
// platform and read-only to the agent.
type QuizDefinition struct {
	ContentID            string     `json:"content_id"`
	Title                string     `json:"title"`
	DurationLimitMinutes *int       `json:"duration_limit_minutes,omitempty"` // nil = untimed
	TotalQuestions       int        `json:"total_questions"`
	PassingScore         float64    `json:"passing_score"`
	AttemptLimit         int        `json:"attempt_limit"`
	ShuffleQuestions     bool       `json:"shuffle_questions"`
	ScheduleStart        *time.Time `json:"schedule_start,omitempty"`
	ScheduleEnd          *time.Time `json:"schedule_end,omitempty"`
}

// InWindow reports whether t falls inside the quiz's schedule window.
// A missing bound is open-ended.
func (q QuizDefinition) InWindow(t time.Time) bool {
	if q.ScheduleStart != nil && t.Before(*q.ScheduleStart) {
		return false
	}
	if q.ScheduleEnd != nil && t.After(*q.ScheduleEnd) {
		return false
	}
	return true
}

// AttemptSession is the agent-owned state of one in-progress attempt. It is
// persisted to the session store on every mutation so a restart resumes
// exactly where the learner left off.
type AttemptSession struct {
	AttemptID     string   `json:"attempt_id"`
	ContentID     string   `json:"content_id"`
	QuestionOrder []string `json:"question_order"`

	// Answers maps question id to the last successfully saved answer code.
	Answers map[string]string `json:"answers"`
	// Answered marks questions with a non-empty saved answer.
	Answered map[string]bool `json:"answered"`
	// Flags marks questions the learner tagged as unsure ("ragu-ragu").
	Flags map[string]bool `json:"flags"`
	// Recorded marks questions that have an answer row upstream, whether
	// from an answer or a flag-only save. It decides create vs update.
	Recorded map[string]bool `json:"recorded"`

	CurrentIndex         int       `json:"current_index"`
	StartedAt            time.Time `json:"started_at"`
	DurationLimitMinutes *int      `json:"duration_limit_minutes,omitempty"`
	CapturedAt           time.Time `json:"captured_at"`
}

// NewAttemptSession builds a fresh session at the start of an attempt.
func NewAttemptSession(attemptID, contentID string, order []string, limit *int, start time.Time) *AttemptSession {
	return &AttemptSession{
		AttemptID:            attemptID,
		ContentID:            contentID,
		QuestionOrder:        order,
		Answers:              map[string]string{},
		Answered:             map[string]bool{},
		Flags:                map[string]bool{},
		Recorded:             map[string]bool{},
		StartedAt:            start,
		DurationLimitMinutes: limit,
	}
}

// Clone returns a deep copy that shares no maps or slices with the
// receiver, so the copy can be read without holding the owner's lock.
func (s *AttemptSession) Clone() *AttemptSession {
	cp := *s
	cp.QuestionOrder = slices.Clone(s.QuestionOrder)
	cp.Answers = maps.Clone(s.Answers)
	cp.Answered = maps.Clone(s.Answered)
	cp.Flags = maps.Clone(s.Flags)
	cp.Recorded = maps.Clone(s.Recorded)
	return &cp
}

// Normalize re-establishes the session invariants after deserialization:
// nil maps become empty, map keys outside the question order are dropped and
// the current index is clamped into range.
func (s *AttemptSession) Normalize() {
	if s.Answers == nil {
		s.Answers = map[string]string{}
	}
	if s.Answered == nil {
		s.Answered = map[string]bool{}
	}
	if s.Flags == nil {
		s.Flags = map[string]bool{}
	}
	if s.Recorded == nil {
		s.Recorded = map[string]bool{}
	}

	inOrder := make(map[string]bool, len(s.QuestionOrder))
	for _, q := range s.QuestionOrder {
		inOrder[q] = true
	}
	for q := range s.Answers {
		if !inOrder[q] {
			delete(s.Answers, q)
		}
	}
	for q := range s.Answered {
		if !inOrder[q] {
			delete(s.Answered, q)
		}
	}
	for q := range s.Flags {
		if !inOrder[q] {
			delete(s.Flags, q)
		}
	}
	for q := range s.Recorded {
		if !inOrder[q] {
			delete(s.Recorded, q)
		}
	}

	if len(s.QuestionOrder) == 0 {
		s.CurrentIndex = 0
		return
	}
	if s.CurrentIndex < 0 {
		s.CurrentIndex = 0
	}
	if s.CurrentIndex >= len(s.QuestionOrder) {
		s.CurrentIndex = len(s.QuestionOrder) - 1
	}
}

// FirstUnanswered returns the index of the first question without a saved
// answer, or 0 when every question is answered or the order is empty.
func (s *AttemptSession) FirstUnanswered() int {
	for i, q := range s.QuestionOrder {
		if !s.Answered[q] {
			return i
		}
	}
	return 0
}

// HasQuestion reports whether id is part of this attempt's question order.
func (s *AttemptSession) HasQuestion(id string) bool {
	for _, q := range s.QuestionOrder {
		if q == id {
			return true
		}
	}
	return false
}

// AnsweredCount returns how many questions carry a saved answer.
func (s *AttemptSession) AnsweredCount() int {
	n := 0
	for _, q := range s.QuestionOrder {
		if s.Answered[q] {
			n++
		}
	}
	return n
}

// AttemptSummary is one row of the platform's attempt history.
type AttemptSummary struct {
	ID         string     `json:"id"`
	AttemptNo  int        `json:"attempt_no"`
	QuizStart  time.Time  `json:"quiz_start"`
	QuizEnd    *time.Time `json:"quiz_end,omitempty"`
	TotalScore *float64   `json:"total_score,omitempty"`
	IsPassed   *bool      `json:"is_passed,omitempty"`
}

// Pending reports whether the attempt was started but never finished.
// A null end time or a null score is the platform's convention for pending.
func (a AttemptSummary) Pending() bool {
	return a.QuizEnd == nil || a.TotalScore == nil
}

// AttemptDetail is the platform's full record of an attempt, used to rebuild
// a session from server truth on resume.
type AttemptDetail struct {
	ID            string         `json:"id"`
	Status        string         `json:"status"`
	QuizStart     time.Time      `json:"quiz_start"`
	QuestionOrder []string       `json:"question_order"`
	Answers       []string       `json:"answers"`
	Flags         []bool         `json:"flags"`
	QuestionTypes []QuestionType `json:"question_types"`
}

// AttemptRecord is a submitted attempt's full question/answer/key data for
// post-submission review.
type AttemptRecord struct {
	ID             string         `json:"id"`
	AttemptNo      int            `json:"attempt_no"`
	Status         string         `json:"status"`
	QuestionOrder  []string       `json:"question_order"`
	QuestionTypes  []QuestionType `json:"question_types"`
	Answers        []string       `json:"answers"`
	CorrectAnswers []string       `json:"correct_answers"`
	Flags          []bool         `json:"flags"`
	TotalScore     *float64       `json:"total_score,omitempty"`
	IsPassed       *bool          `json:"is_passed,omitempty"`
}

// SubmitResult is the platform's response to submitting an attempt.
type SubmitResult struct {
	IsPassed   bool    `json:"is_passed"`
	TotalScore float64 `json:"total_score"`
}
