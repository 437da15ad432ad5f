// Package handler exposes the attempt session manager to the learner's UI
// as a localhost JSON API.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/falanarh/lms-sub001/internal/attempt"
	appI18n "github.com/falanarh/lms-sub001/internal/i18n"
	"github.com/falanarh/lms-sub001/internal/lms"
	"github.com/falanarh/lms-sub001/internal/review"
	"github.com/falanarh/lms-sub001/internal/session"
)

// Config holds runtime facade parameters set via CLI flags.
type Config struct {
	Lang string
	// AccessPasswordHash is a bcrypt hash guarding the facade; empty
	// disables the guard (local development).
	AccessPasswordHash string
}

// Handler holds shared dependencies for the facade endpoints and caches one
// lifecycle controller per quiz content.
type Handler struct {
	api    attempt.API
	store  session.Store
	config Config
	clock  attempt.Clock

	mu          sync.Mutex
	controllers map[string]*attempt.Controller
}

// New creates a Handler. A nil clock selects the system clock.
func New(api attempt.API, store session.Store, cfg Config, clock attempt.Clock) *Handler {
	return &Handler{
		api:         api,
		store:       store,
		config:      cfg,
		clock:       clock,
		controllers: map[string]*attempt.Controller{},
	}
}

// Routes registers all facade routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", h.handleHealth)
	r.Route("/api/quiz/{contentID}", func(r chi.Router) {
		r.Use(h.requireAccess)
		r.Get("/", h.handleStatus)
		r.Post("/start", h.handleStart)
		r.Post("/resume", h.handleResume)
		r.Post("/answer", h.handleAnswer)
		r.Post("/flag", h.handleFlag)
		r.Post("/navigate", h.handleNavigate)
		r.Post("/submit", h.handleSubmit)
		r.Get("/history", h.handleHistory)
		r.Get("/review/{attemptID}", h.handleReview)
		r.Post("/review/exit", h.handleReviewExit)
	})
}

// controller returns the cached controller for a content id, creating and
// initializing it on first use.
func (h *Handler) controller(r *http.Request) (*attempt.Controller, error) {
	contentID := chi.URLParam(r, "contentID")
	h.mu.Lock()
	c, ok := h.controllers[contentID]
	if !ok {
		c = attempt.New(contentID, h.api, h.store, h.clock)
		h.controllers[contentID] = c
	}
	h.mu.Unlock()

	if err := c.Initialize(r.Context()); err != nil {
		return nil, err
	}
	return c, nil
}

// Shutdown stops every controller's timer.
func (h *Handler) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.controllers {
		c.Stop()
	}
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	c, err := h.controller(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	snap := c.Snapshot()
	resp := struct {
		attempt.Snapshot
		AttemptsMessage string `json:"attempts_message,omitempty"`
	}{Snapshot: snap}
	if snap.Quiz != nil && snap.Quiz.AttemptLimit > 0 {
		remaining := snap.Quiz.AttemptLimit - snap.AttemptsUsed
		if remaining < 0 {
			remaining = 0
		}
		resp.AttemptsMessage = appI18n.Tp(r.Context(), "AttemptsRemaining", remaining)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DiscardPending bool `json:"discard_pending"`
	}
	if err := decodeBody(r, &req); err != nil {
		h.badRequest(w, r)
		return
	}

	c, err := h.controller(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := c.Start(r.Context(), req.DiscardPending); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c.Snapshot())
}

func (h *Handler) handleResume(w http.ResponseWriter, r *http.Request) {
	c, err := h.controller(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := c.ResumePending(r.Context()); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c.Snapshot())
}

func (h *Handler) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		QuestionID string `json:"question_id"`
		Answer     string `json:"answer"`
	}
	if err := decodeBody(r, &req); err != nil || req.QuestionID == "" {
		h.badRequest(w, r)
		return
	}

	c, err := h.controller(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := c.SaveAnswer(r.Context(), req.QuestionID, req.Answer); err != nil {
		// A failed save is a warning, not a wall: the learner keeps
		// working and may re-save the same answer later.
		if lms.IsTransient(err) {
			writeJSON(w, http.StatusOK, map[string]any{
				"saved":     false,
				"retryable": true,
				"warning":   appI18n.T(r.Context(), "AnswerSaveFailed"),
			})
			return
		}
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"saved":   true,
		"message": appI18n.T(r.Context(), "AnswerSaved"),
	})
}

func (h *Handler) handleFlag(w http.ResponseWriter, r *http.Request) {
	var req struct {
		QuestionID string `json:"question_id"`
		Flag       bool   `json:"flag"`
	}
	if err := decodeBody(r, &req); err != nil || req.QuestionID == "" {
		h.badRequest(w, r)
		return
	}

	c, err := h.controller(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := c.SetFlag(r.Context(), req.QuestionID, req.Flag); err != nil {
		if lms.IsTransient(err) {
			writeJSON(w, http.StatusOK, map[string]any{
				"saved":     false,
				"retryable": true,
				"warning":   appI18n.T(r.Context(), "AnswerSaveFailed"),
			})
			return
		}
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"saved": true})
}

func (h *Handler) handleNavigate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Index     *int   `json:"index,omitempty"`
		Direction string `json:"direction,omitempty"` // next | prev
	}
	if err := decodeBody(r, &req); err != nil {
		h.badRequest(w, r)
		return
	}

	c, err := h.controller(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var index int
	switch {
	case req.Index != nil:
		index, err = c.Goto(*req.Index)
	case req.Direction == "next":
		index, err = c.Next()
	case req.Direction == "prev":
		index, err = c.Prev()
	default:
		h.badRequest(w, r)
		return
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"current_index": index})
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	c, err := h.controller(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := c.Submit(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	c, err := h.controller(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	attempts, err := c.History(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"attempts": attempts})
}

func (h *Handler) handleReview(w http.ResponseWriter, r *http.Request) {
	c, err := h.controller(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	// A page refresh re-requests the same review; drop back to the summary
	// state first so the transition guard holds.
	_ = c.ExitReview()

	rec, err := c.EnterReview(r.Context(), chi.URLParam(r, "attemptID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, review.Build(rec))
}

func (h *Handler) handleReviewExit(w http.ResponseWriter, r *http.Request) {
	c, err := h.controller(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := c.ExitReview(); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c.Snapshot())
}

// writeError converts controller and platform failures into localized JSON
// error responses. Raw error strings never reach the UI.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	type body struct {
		Error     string `json:"error"`
		Retryable bool   `json:"retryable"`
	}

	switch {
	case errors.Is(err, attempt.ErrAttemptsExhausted):
		writeJSON(w, http.StatusConflict, body{appI18n.T(ctx, "AttemptsExhausted"), false})
	case errors.Is(err, attempt.ErrOutsideWindow):
		writeJSON(w, http.StatusConflict, body{appI18n.T(ctx, "OutsideWindow"), false})
	case errors.Is(err, attempt.ErrPendingAttempt):
		writeJSON(w, http.StatusConflict, body{appI18n.T(ctx, "PendingAttempt"), false})
	case errors.Is(err, attempt.ErrNoPendingAttempt):
		writeJSON(w, http.StatusConflict, body{appI18n.T(ctx, "NoPendingAttempt"), false})
	case errors.Is(err, attempt.ErrAttemptClosed):
		writeJSON(w, http.StatusConflict, body{appI18n.T(ctx, "AttemptClosed"), false})
	case errors.Is(err, attempt.ErrUnknownQuestion):
		writeJSON(w, http.StatusBadRequest, body{appI18n.T(ctx, "UnknownQuestion"), false})
	case errors.Is(err, attempt.ErrInvalidState):
		writeJSON(w, http.StatusConflict, body{appI18n.T(ctx, "InvalidState"), false})
	case lms.IsTransient(err):
		slog.Warn("platform call failed", "error", err)
		writeJSON(w, http.StatusBadGateway, body{appI18n.T(ctx, "PlatformUnavailable"), true})
	case errors.As(err, new(*lms.APIError)):
		// The platform rejected the request outright; retrying the same
		// call cannot succeed.
		slog.Warn("platform rejected request", "error", err)
		writeJSON(w, http.StatusBadGateway, body{appI18n.T(ctx, "PlatformRejected"), false})
	default:
		slog.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, body{appI18n.T(ctx, "PlatformUnavailable"), true})
	}
}

func (h *Handler) badRequest(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusBadRequest, map[string]any{
		"error":     appI18n.T(r.Context(), "BadRequest"),
		"retryable": false,
	})
}

func decodeBody(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	return json.NewDecoder(r.Body).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}
