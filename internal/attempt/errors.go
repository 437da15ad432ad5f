package attempt

import "errors"

// Guard failures of the lifecycle state machine. Handlers map these to
// user-facing messages; none of them changes controller state.
var (
	// ErrInvalidState rejects an operation not allowed in the current state.
	ErrInvalidState = errors.New("operation not allowed in current state")
	// ErrAttemptsExhausted rejects a start when no attempts remain. This is
	// a UI guard; the platform enforces the limit independently.
	ErrAttemptsExhausted = errors.New("attempt limit reached")
	// ErrOutsideWindow rejects a start outside the quiz's schedule window.
	ErrOutsideWindow = errors.New("quiz is not open at this time")
	// ErrPendingAttempt rejects a start while an unfinished attempt exists
	// and the learner has not confirmed discarding it.
	ErrPendingAttempt = errors.New("an unfinished attempt exists")
	// ErrNoPendingAttempt rejects a resume when nothing is pending.
	ErrNoPendingAttempt = errors.New("no unfinished attempt to resume")
	// ErrUnknownQuestion rejects a save for a question outside the attempt's
	// question order.
	ErrUnknownQuestion = errors.New("question is not part of this attempt")
	// ErrAttemptClosed means the platform reported the attempt as already
	// submitted or graded; the local session has been cleared.
	ErrAttemptClosed = errors.New("attempt was already closed")
)
