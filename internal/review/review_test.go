package review

import (
	"testing"

	"github.com/falanarh/lms-sub001/internal/model"
)

func TestCorrectnessByQuestionType(t *testing.T) {
	tests := []struct {
		name      string
		qt        model.QuestionType
		answer    string
		key       string
		correct   bool
		heuristic bool
	}{
		{"choice exact match", model.QuestionMultipleChoice, "B", "B", true, false},
		{"choice mismatch", model.QuestionMultipleChoice, "A", "B", false, false},
		{"choice case sensitive", model.QuestionMultipleChoice, "b", "B", false, false},
		{"choice unanswered", model.QuestionMultipleChoice, "", "", false, false},
		{"true/false match", model.QuestionTrueFalse, "true", "true", true, false},
		{"short answer trims and folds", model.QuestionShortAnswer, "  Jakarta ", "jakarta", true, false},
		{"short answer mismatch", model.QuestionShortAnswer, "Bandung", "Jakarta", false, false},
		{"short answer empty never matches", model.QuestionShortAnswer, "", "", false, false},
		{"essay match is a hint", model.QuestionEssay, "photosynthesis", "Photosynthesis", true, true},
		{"essay mismatch is a hint", model.QuestionEssay, "something else", "Photosynthesis", false, true},
		{"unknown type is a hint", model.QuestionType("matching"), "x", "x", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, heur := correct(tt.qt, tt.answer, tt.key)
			if got != tt.correct || heur != tt.heuristic {
				t.Errorf("correct(%q, %q, %q) = (%v, %v), want (%v, %v)",
					tt.qt, tt.answer, tt.key, got, heur, tt.correct, tt.heuristic)
			}
		})
	}
}

func TestBuildAlignsToQuestionOrder(t *testing.T) {
	score := 66.7
	passed := false
	rec := model.AttemptRecord{
		ID:             "att-3",
		AttemptNo:      2,
		QuestionOrder:  []string{"q1", "q2", "q3"},
		QuestionTypes:  []model.QuestionType{model.QuestionMultipleChoice, model.QuestionShortAnswer, model.QuestionEssay},
		Answers:        []string{"C", "", "my essay"},
		CorrectAnswers: []string{"C", "jakarta", "reference essay"},
		Flags:          []bool{false, true, false},
		TotalScore:     &score,
		IsPassed:       &passed,
	}

	out := Build(rec)

	if out.AttemptID != "att-3" || out.AttemptNo != 2 {
		t.Errorf("header not carried over: %+v", out)
	}
	if out.TotalScore == nil || *out.TotalScore != score {
		t.Errorf("score not carried over: %v", out.TotalScore)
	}
	if len(out.Questions) != 3 {
		t.Fatalf("len(Questions) = %d, want 3", len(out.Questions))
	}

	q1 := out.Questions[0]
	if q1.QuestionID != "q1" || q1.Index != 0 || !q1.IsCorrect || q1.Heuristic {
		t.Errorf("q1 = %+v", q1)
	}
	q2 := out.Questions[1]
	if q2.Answer != "" || q2.IsCorrect || !q2.Flagged {
		t.Errorf("q2 = %+v", q2)
	}
	q3 := out.Questions[2]
	if q3.Type != model.QuestionEssay || q3.IsCorrect || !q3.Heuristic {
		t.Errorf("q3 = %+v", q3)
	}
}

func TestBuildToleratesShortArrays(t *testing.T) {
	// Server truncated the per-question arrays; remaining slots render as
	// unanswered short-answer questions.
	rec := model.AttemptRecord{
		ID:            "att-4",
		QuestionOrder: []string{"q1", "q2", "q3"},
		QuestionTypes: []model.QuestionType{model.QuestionMultipleChoice},
		Answers:       []string{"A"},
	}

	out := Build(rec)
	if len(out.Questions) != 3 {
		t.Fatalf("len(Questions) = %d, want 3", len(out.Questions))
	}
	q2 := out.Questions[1]
	if q2.Type != model.QuestionShortAnswer || q2.Answer != "" || q2.IsCorrect || q2.Flagged {
		t.Errorf("missing slot not rendered as unanswered: %+v", q2)
	}
}
