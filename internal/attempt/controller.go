// Package attempt implements the quiz attempt lifecycle: starting, resuming,
// answering, navigating, and submitting a timed attempt, with the state
// persisted locally so the learner survives agent restarts and network blips.
package attempt

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/falanarh/lms-sub001/internal/lms"
	"github.com/falanarh/lms-sub001/internal/model"
	"github.com/falanarh/lms-sub001/internal/session"
)

// API is the slice of the platform client the controller depends on.
type API interface {
	QuizDetail(ctx context.Context, contentID string) (model.QuizDefinition, error)
	AttemptHistory(ctx context.Context, contentID string) ([]model.AttemptSummary, error)
	StartAttempt(ctx context.Context, contentID string) (lms.StartResult, error)
	AttemptDetail(ctx context.Context, attemptID string) (model.AttemptDetail, error)
	SaveAnswer(ctx context.Context, req lms.SaveAnswerRequest) error
	SubmitAttempt(ctx context.Context, attemptID string) (model.SubmitResult, error)
	ReviewAttempt(ctx context.Context, contentID, attemptID string) (model.AttemptRecord, error)
}

// Controller is the lifecycle state machine for one quiz content. All
// methods are safe for concurrent use; facade handlers call them from
// arbitrary goroutines.
type Controller struct {
	contentID string
	api       API
	store     session.Store
	clock     Clock

	mu           sync.Mutex
	state        model.AttemptState
	quiz         *model.QuizDefinition
	attemptsUsed int
	pending      *model.AttemptSummary
	sess         *model.AttemptSession
	review       *model.AttemptRecord
	timer        *Timer
	saves        *syncer
	lastResult   *model.SubmitResult
}

// New creates a controller for contentID. Passing a nil clock selects the
// system clock.
func New(contentID string, api API, store session.Store, clock Clock) *Controller {
	if clock == nil {
		clock = SystemClock
	}
	return &Controller{
		contentID: contentID,
		api:       api,
		store:     store,
		clock:     clock,
		state:     model.StateNotStarted,
		saves:     newSyncer(),
	}
}

// Initialize restores local state. The session store is consulted before any
// network call: when a local session exists the attempt resumes instantly
// and no upstream request is made. Otherwise the quiz definition and attempt
// history are fetched, and a server-side pending attempt (started elsewhere
// or lost with the local store) is surfaced for explicit resume rather than
// auto-resumed.
func (c *Controller) Initialize(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sess != nil || c.state != model.StateNotStarted {
		return nil
	}

	sess, err := c.store.Load(c.contentID)
	if err != nil {
		slog.Warn("session load failed, falling back to platform state",
			"content_id", c.contentID, "error", err)
	}
	if sess != nil && sess.AttemptID != "" {
		c.sess = sess
		c.state = model.StateInProgress
		c.startTimerLocked()
		slog.Info("resumed attempt from local session",
			"content_id", c.contentID, "attempt_id", sess.AttemptID,
			"answered", sess.AnsweredCount(), "index", sess.CurrentIndex)
		return nil
	}

	return c.refreshLocked(ctx)
}

// refreshLocked fetches the quiz definition and attempt history.
func (c *Controller) refreshLocked(ctx context.Context) error {
	quiz, err := c.api.QuizDetail(ctx, c.contentID)
	if err != nil {
		return fmt.Errorf("fetch quiz detail: %w", err)
	}
	history, err := c.api.AttemptHistory(ctx, c.contentID)
	if err != nil {
		return fmt.Errorf("fetch attempt history: %w", err)
	}

	c.quiz = &quiz
	c.attemptsUsed = len(history)
	c.pending = nil
	for i := range history {
		if history[i].Pending() {
			c.pending = &history[i]
			break
		}
	}
	return nil
}

// ensureQuizLocked fetches quiz detail and history if they are not cached
// yet. Needed when the controller came up from a local session without a
// round-trip.
func (c *Controller) ensureQuizLocked(ctx context.Context) error {
	if c.quiz != nil {
		return nil
	}
	return c.refreshLocked(ctx)
}

// Start begins a fresh attempt. Allowed only from not_started, only with
// attempts remaining, and only inside the schedule window. When a pending
// attempt exists the learner must confirm discarding it; the prior attempt
// stays recorded upstream either way. Failures leave the state unchanged.
func (c *Controller) Start(ctx context.Context, discardPending bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != model.StateNotStarted {
		return fmt.Errorf("start: %w", ErrInvalidState)
	}
	if err := c.ensureQuizLocked(ctx); err != nil {
		return err
	}
	if c.quiz.AttemptLimit > 0 && c.attemptsUsed >= c.quiz.AttemptLimit {
		return ErrAttemptsExhausted
	}
	if !c.quiz.InWindow(c.clock.Now()) {
		return ErrOutsideWindow
	}
	if c.pending != nil && !discardPending {
		return ErrPendingAttempt
	}
	if c.pending != nil {
		if err := c.store.Clear(c.contentID); err != nil {
			slog.Warn("clear stale session failed", "content_id", c.contentID, "error", err)
		}
		c.pending = nil
	}

	res, err := c.api.StartAttempt(ctx, c.contentID)
	if err != nil {
		return fmt.Errorf("start attempt: %w", err)
	}

	c.sess = model.NewAttemptSession(res.AttemptID, c.contentID, res.QuestionOrder,
		c.quiz.DurationLimitMinutes, c.clock.Now())
	c.persistLocked()
	c.attemptsUsed++
	c.state = model.StateInProgress
	c.lastResult = nil
	c.saves.reset()
	c.startTimerLocked()

	slog.Info("attempt started", "content_id", c.contentID,
		"attempt_id", res.AttemptID, "questions", len(res.QuestionOrder))
	return nil
}

// ResumePending rebuilds the session from server truth for an attempt the
// platform reports as unfinished. It requires an explicit learner
// confirmation upstream of this call; nothing resumes automatically.
func (c *Controller) ResumePending(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != model.StateNotStarted {
		return fmt.Errorf("resume: %w", ErrInvalidState)
	}
	if err := c.ensureQuizLocked(ctx); err != nil {
		return err
	}
	if c.pending == nil {
		return ErrNoPendingAttempt
	}

	detail, err := c.api.AttemptDetail(ctx, c.pending.ID)
	if err != nil {
		return fmt.Errorf("fetch attempt detail: %w", err)
	}
	if detail.Status != "" && detail.Status != "pending" && detail.Status != "in_progress" {
		// History said pending but the record is closed; trust the record.
		c.pending = nil
		return ErrAttemptClosed
	}

	// The server's quiz_start is authoritative for the timer; a locally
	// captured start time is only ever used before the first round-trip.
	sess := model.NewAttemptSession(detail.ID, c.contentID, detail.QuestionOrder,
		c.quiz.DurationLimitMinutes, detail.QuizStart)
	for i, q := range detail.QuestionOrder {
		if i < len(detail.Answers) && detail.Answers[i] != "" {
			sess.Answers[q] = detail.Answers[i]
			sess.Answered[q] = true
			sess.Recorded[q] = true
		}
		if i < len(detail.Flags) && detail.Flags[i] {
			sess.Flags[q] = true
			sess.Recorded[q] = true
		}
	}
	sess.CurrentIndex = sess.FirstUnanswered()

	c.sess = sess
	c.persistLocked()
	c.state = model.StateInProgress
	c.saves.reset()
	c.startTimerLocked()

	slog.Info("attempt resumed from platform", "content_id", c.contentID,
		"attempt_id", detail.ID, "answered", sess.AnsweredCount(), "index", sess.CurrentIndex)
	return nil
}

// SaveAnswer records an answer for a question, keeping the current flag.
func (c *Controller) SaveAnswer(ctx context.Context, questionID, answer string) error {
	return c.record(ctx, questionID, &answer, nil)
}

// SetFlag sets or clears the unsure marker for a question. The current
// answer is sent along so neither value overwrites the other with a stale
// copy.
func (c *Controller) SetFlag(ctx context.Context, questionID string, flag bool) error {
	return c.record(ctx, questionID, nil, &flag)
}

// record pushes an answer/flag pair upstream and applies it locally on
// success. Saves for the same question are serialized; the create-vs-update
// decision is made inside the per-question critical section so two rapid
// saves cannot both issue creates.
func (c *Controller) record(ctx context.Context, questionID string, answer *string, flag *bool) error {
	return c.saves.do(questionID, func() error {
		c.mu.Lock()
		if c.state != model.StateInProgress || c.sess == nil {
			c.mu.Unlock()
			return fmt.Errorf("save answer: %w", ErrInvalidState)
		}
		if !c.sess.HasQuestion(questionID) {
			c.mu.Unlock()
			return ErrUnknownQuestion
		}
		attemptID := c.sess.AttemptID
		req := lms.SaveAnswerRequest{
			AttemptID:  attemptID,
			QuestionID: questionID,
			Answer:     c.sess.Answers[questionID],
			Flag:       c.sess.Flags[questionID],
			Update:     c.sess.Recorded[questionID],
		}
		if answer != nil {
			req.Answer = *answer
		}
		if flag != nil {
			req.Flag = *flag
		}
		c.mu.Unlock()

		if err := c.api.SaveAnswer(ctx, req); err != nil {
			if lms.IsAttemptClosed(err) {
				c.closeAttempt()
				return ErrAttemptClosed
			}
			slog.Warn("answer save failed", "content_id", c.contentID,
				"question_id", questionID, "error", err)
			return fmt.Errorf("save answer: %w", err)
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		// A new attempt may have started while the save was in flight; a
		// stale result must not touch the new session.
		if c.sess == nil || c.sess.AttemptID != attemptID {
			slog.Warn("discarding save result for stale attempt",
				"content_id", c.contentID, "attempt_id", attemptID)
			return nil
		}
		c.sess.Answers[questionID] = req.Answer
		if req.Answer != "" {
			c.sess.Answered[questionID] = true
		}
		c.sess.Flags[questionID] = req.Flag
		c.sess.Recorded[questionID] = true
		c.persistLocked()
		return nil
	})
}

// Goto moves the question pointer. Out-of-range targets are no-ops; the
// resulting index is returned either way.
func (c *Controller) Goto(index int) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != model.StateInProgress || c.sess == nil {
		return 0, fmt.Errorf("navigate: %w", ErrInvalidState)
	}
	if index >= 0 && index < len(c.sess.QuestionOrder) && index != c.sess.CurrentIndex {
		c.sess.CurrentIndex = index
		c.persistLocked()
	}
	return c.sess.CurrentIndex, nil
}

// Next advances to the following question; at the last question it stays put.
func (c *Controller) Next() (int, error) {
	c.mu.Lock()
	i := 0
	if c.sess != nil {
		i = c.sess.CurrentIndex
	}
	c.mu.Unlock()
	return c.Goto(i + 1)
}

// Prev moves to the previous question; at the first question it stays put.
func (c *Controller) Prev() (int, error) {
	c.mu.Lock()
	i := 0
	if c.sess != nil {
		i = c.sess.CurrentIndex
	}
	c.mu.Unlock()
	return c.Goto(i - 1)
}

// Submit closes the attempt upstream, clears the local session and returns
// to not_started with the graded result recorded. A failed submit leaves
// everything unchanged so the learner can retry.
func (c *Controller) Submit(ctx context.Context) (model.SubmitResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.submitLocked(ctx)
}

func (c *Controller) submitLocked(ctx context.Context) (model.SubmitResult, error) {
	if c.state != model.StateInProgress || c.sess == nil {
		return model.SubmitResult{}, fmt.Errorf("submit: %w", ErrInvalidState)
	}

	res, err := c.api.SubmitAttempt(ctx, c.sess.AttemptID)
	if err != nil {
		if lms.IsAttemptClosed(err) {
			c.closeAttemptLocked()
			return model.SubmitResult{}, ErrAttemptClosed
		}
		return model.SubmitResult{}, fmt.Errorf("submit attempt: %w", err)
	}

	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if err := c.store.Clear(c.contentID); err != nil {
		slog.Warn("clear session after submit failed", "content_id", c.contentID, "error", err)
	}
	slog.Info("attempt submitted", "content_id", c.contentID,
		"attempt_id", c.sess.AttemptID, "score", res.TotalScore, "passed", res.IsPassed)

	c.sess = nil
	c.pending = nil
	c.lastResult = &res
	c.state = model.StateNotStarted
	return res, nil
}

// expire is the timer callback: a timeout is treated as a submit request
// that bypasses the confirmation step.
func (c *Controller) expire() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	slog.Info("attempt time expired, forcing submit", "content_id", c.contentID)
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.submitLocked(ctx); err != nil {
		// State stays in progress; the learner can submit manually.
		slog.Error("forced submit failed", "content_id", c.contentID, "error", err)
	}
}

// EnterReview loads a past attempt for read-only review.
func (c *Controller) EnterReview(ctx context.Context, attemptID string) (model.AttemptRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != model.StateNotStarted {
		return model.AttemptRecord{}, fmt.Errorf("review: %w", ErrInvalidState)
	}
	rec, err := c.api.ReviewAttempt(ctx, c.contentID, attemptID)
	if err != nil {
		return model.AttemptRecord{}, fmt.Errorf("fetch review: %w", err)
	}
	c.review = &rec
	c.state = model.StateReviewing
	return rec, nil
}

// ExitReview returns from review mode to the quiz summary.
func (c *Controller) ExitReview() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != model.StateReviewing {
		return fmt.Errorf("exit review: %w", ErrInvalidState)
	}
	c.review = nil
	c.state = model.StateNotStarted
	return nil
}

// History fetches the attempt list from the platform and refreshes the
// pending-attempt bookkeeping.
func (c *Controller) History(ctx context.Context) ([]model.AttemptSummary, error) {
	history, err := c.api.AttemptHistory(ctx, c.contentID)
	if err != nil {
		return nil, fmt.Errorf("fetch attempt history: %w", err)
	}
	c.mu.Lock()
	c.attemptsUsed = len(history)
	if c.state == model.StateNotStarted {
		c.pending = nil
		for i := range history {
			if history[i].Pending() {
				c.pending = &history[i]
				break
			}
		}
	}
	c.mu.Unlock()
	return history, nil
}

// Snapshot is the controller's externally visible state.
type Snapshot struct {
	ContentID        string                `json:"content_id"`
	State            model.AttemptState    `json:"state"`
	Quiz             *model.QuizDefinition `json:"quiz,omitempty"`
	AttemptsUsed     int                   `json:"attempts_used"`
	Pending          *model.AttemptSummary `json:"pending_attempt,omitempty"`
	Session          *model.AttemptSession `json:"session,omitempty"`
	RemainingSeconds *int                  `json:"remaining_seconds,omitempty"`
	LastResult       *model.SubmitResult   `json:"last_result,omitempty"`
}

// Snapshot returns a copy of the current state for the facade.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		ContentID:    c.contentID,
		State:        c.state,
		Quiz:         c.quiz,
		AttemptsUsed: c.attemptsUsed,
		Pending:      c.pending,
		LastResult:   c.lastResult,
	}
	if c.sess != nil {
		// Deep copy: the snapshot is encoded after the lock is released,
		// while saves keep mutating the live session maps.
		snap.Session = c.sess.Clone()
	}
	if c.timer != nil {
		if secs, ok := c.timer.RemainingSeconds(); ok {
			snap.RemainingSeconds = &secs
		}
	}
	return snap
}

// Stop tears down the timer; called when the agent shuts down.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// closeAttempt clears local state after the platform reported the attempt
// as already finished.
func (c *Controller) closeAttempt() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeAttemptLocked()
}

func (c *Controller) closeAttemptLocked() {
	slog.Warn("platform reports attempt closed, dropping local session",
		"content_id", c.contentID)
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if err := c.store.Clear(c.contentID); err != nil {
		slog.Warn("clear closed session failed", "content_id", c.contentID, "error", err)
	}
	c.sess = nil
	c.pending = nil
	c.state = model.StateNotStarted
}

// persistLocked writes the session to the store. Persistence is best
// effort; a failed write costs resume capability, never the attempt.
func (c *Controller) persistLocked() {
	if c.sess == nil {
		return
	}
	if err := c.store.Save(c.sess); err != nil {
		slog.Warn("session save failed", "content_id", c.contentID, "error", err)
	}
}

func (c *Controller) startTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = NewTimer(c.clock, c.sess.StartedAt, c.sess.DurationLimitMinutes, c.expire)
	c.timer.Start()
}
