// Package review reconstructs a submitted attempt for read-only self-review.
// It derives a display correctness per question; the platform's grading is
// the scored truth, in particular for essay answers.
package review

import (
	"strings"

	"github.com/falanarh/lms-sub001/internal/model"
)

// QuestionReview is one question of a past attempt prepared for display.
type QuestionReview struct {
	Index      int                `json:"index"`
	QuestionID string             `json:"question_id"`
	Type       model.QuestionType `json:"type"`
	Answer     string             `json:"answer"`
	Correct    string             `json:"correct"`
	IsCorrect  bool               `json:"is_correct"`
	Flagged    bool               `json:"flagged"`
	// Heuristic marks correctness values that are a display approximation
	// rather than the graded result.
	Heuristic bool `json:"heuristic"`
}

// Attempt is a fully prepared review of one attempt.
type Attempt struct {
	AttemptID  string           `json:"attempt_id"`
	AttemptNo  int              `json:"attempt_no"`
	TotalScore *float64         `json:"total_score,omitempty"`
	IsPassed   *bool            `json:"is_passed,omitempty"`
	Questions  []QuestionReview `json:"questions"`
}

// Build prepares an attempt record for display. Per-question arrays are
// aligned to the question order; missing slots render as unanswered.
func Build(rec model.AttemptRecord) Attempt {
	out := Attempt{
		AttemptID:  rec.ID,
		AttemptNo:  rec.AttemptNo,
		TotalScore: rec.TotalScore,
		IsPassed:   rec.IsPassed,
	}
	for i, q := range rec.QuestionOrder {
		qr := QuestionReview{
			Index:      i,
			QuestionID: q,
			Type:       model.QuestionShortAnswer,
		}
		if i < len(rec.QuestionTypes) {
			qr.Type = rec.QuestionTypes[i]
		}
		if i < len(rec.Answers) {
			qr.Answer = rec.Answers[i]
		}
		if i < len(rec.CorrectAnswers) {
			qr.Correct = rec.CorrectAnswers[i]
		}
		if i < len(rec.Flags) {
			qr.Flagged = rec.Flags[i]
		}
		qr.IsCorrect, qr.Heuristic = correct(qr.Type, qr.Answer, qr.Correct)
		out.Questions = append(out.Questions, qr)
	}
	return out
}

// correct derives display correctness per question type. Choice questions
// compare answer codes exactly; free-text questions compare case-insensitively
// after trimming, which for essays is only a hint.
func correct(t model.QuestionType, answer, key string) (isCorrect, heuristic bool) {
	switch t {
	case model.QuestionMultipleChoice, model.QuestionTrueFalse:
		return answer != "" && answer == key, false
	case model.QuestionShortAnswer:
		return textEqual(answer, key), false
	case model.QuestionEssay:
		return textEqual(answer, key), true
	default:
		return false, true
	}
}

func textEqual(a, b string) bool {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)
	return a != "" && strings.EqualFold(a, b)
}
