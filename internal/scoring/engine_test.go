package scoring

import (
	"reflect"
	"testing"
)

func boolPtr(v bool) *bool { return &v }

func TestScoreChoiceQuestions(t *testing.T) {
	q := Question{ID: "q1", Type: TypeMCQ, Answer: "B", Points: 10}

	tests := []struct {
		name    string
		answer  string
		correct bool
		score   float64
	}{
		{name: "exact match", answer: "B", correct: true, score: 10},
		{name: "case insensitive", answer: "b", correct: true, score: 10},
		{name: "surrounding whitespace", answer: "  B ", correct: true, score: 10},
		{name: "wrong option", answer: "A", correct: false, score: 0},
		{name: "empty answer", answer: "", correct: false, score: 0},
		{name: "whitespace only", answer: "   ", correct: false, score: 0},
	}

	e := NewEngine()
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out := e.Score([]Question{q}, map[string]string{"q1": tc.answer}, nil)
			r := out.Results["q1"]
			if r.IsCorrect != tc.correct || r.Score != tc.score {
				t.Fatalf("got correct=%v score=%v, want correct=%v score=%v",
					r.IsCorrect, r.Score, tc.correct, tc.score)
			}
			if !out.Graded || out.Status != StatusGraded {
				t.Fatalf("choice-only exam must be graded, got status=%s graded=%v", out.Status, out.Graded)
			}
		})
	}
}

func TestScoreEmptyKeyNeverMatches(t *testing.T) {
	// A blank submission earns nothing even against a key that is itself
	// blank after trimming.
	q := Question{ID: "q1", Type: TypeSBA, Answer: "   ", Points: 5}
	out := NewEngine().Score([]Question{q}, map[string]string{"q1": "  "}, nil)
	if r := out.Results["q1"]; r.IsCorrect || r.Score != 0 {
		t.Fatalf("empty-vs-empty must not award credit, got %+v", r)
	}
}

func TestScoreMissingAnswerTreatedAsEmpty(t *testing.T) {
	q := Question{ID: "q1", Type: TypeMCQ, Answer: "A", Points: 3}
	out := NewEngine().Score([]Question{q}, map[string]string{}, nil)
	if r := out.Results["q1"]; r.IsCorrect || r.Score != 0 {
		t.Fatalf("missing answer must score zero, got %+v", r)
	}
	if out.MaxScore != 3 {
		t.Fatalf("max score independent of answers, got %v", out.MaxScore)
	}
}

func TestScoreTheoryWithoutManualGrade(t *testing.T) {
	qs := []Question{
		{ID: "q1", Type: TypeMCQ, Answer: "B", Points: 10},
		{ID: "q2", Type: TypeTheory, Answer: "model answer", Points: 5},
	}
	out := NewEngine().Score(qs, map[string]string{"q1": "B", "q2": "some essay"}, nil)

	if out.TotalScore != 10 {
		t.Fatalf("expected score 10 with theory pending, got %v", out.TotalScore)
	}
	if out.Status != StatusPendingReview || out.Graded {
		t.Fatalf("expected pending review, got status=%s graded=%v", out.Status, out.Graded)
	}
	r := out.Results["q2"]
	if !r.Pending || r.Score != 0 {
		t.Fatalf("ungraded theory must be pending with zero score, got %+v", r)
	}
}

func TestScoreTheoryManualSeed(t *testing.T) {
	q := Question{ID: "q1", Type: TypeTheory, Answer: "rubric", Points: 10}

	tests := []struct {
		name    string
		seed    ManualResult
		correct bool
	}{
		{name: "explicit correct", seed: ManualResult{Score: 2, IsCorrect: boolPtr(true)}, correct: true},
		{name: "half points heuristic", seed: ManualResult{Score: 5}, correct: true},
		{name: "below half", seed: ManualResult{Score: 4}, correct: false},
		{name: "explicit false but above half", seed: ManualResult{Score: 8, IsCorrect: boolPtr(false)}, correct: true},
	}

	e := NewEngine()
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out := e.Score([]Question{q}, nil, map[string]ManualResult{"q1": tc.seed})
			r := out.Results["q1"]
			if r.Score != tc.seed.Score {
				t.Fatalf("manual score must pass through verbatim, got %v want %v", r.Score, tc.seed.Score)
			}
			if r.IsCorrect != tc.correct {
				t.Fatalf("got correct=%v, want %v", r.IsCorrect, tc.correct)
			}
			if !r.Manual || r.Pending {
				t.Fatalf("seeded theory must be manual and not pending, got %+v", r)
			}
			if !out.Graded || out.Status != StatusGraded {
				t.Fatalf("fully seeded exam must be graded, got %s", out.Status)
			}
		})
	}
}

func TestScoreZeroQuestions(t *testing.T) {
	out := NewEngine().Score(nil, map[string]string{"ghost": "A"}, nil)
	if out.MaxScore != 0 || out.TotalScore != 0 {
		t.Fatalf("expected zero totals, got total=%v max=%v", out.TotalScore, out.MaxScore)
	}
	if !out.Graded || out.Status != StatusGraded {
		t.Fatalf("zero-question exam must be graded, got %s", out.Status)
	}
}

func TestScoreUnknownTypeNeedsReview(t *testing.T) {
	q := Question{ID: "q1", Type: "ORAL", Points: 5}
	out := NewEngine().Score([]Question{q}, nil, nil)
	if !out.Results["q1"].Pending || out.Graded {
		t.Fatalf("unknown type must fall back to manual review, got %+v", out)
	}
}

func TestScoreDeterministic(t *testing.T) {
	qs := []Question{
		{ID: "q1", Type: TypeMCQ, Answer: "B", Points: 10},
		{ID: "q2", Type: TypeSBA, Answer: "c", Points: 4},
		{ID: "q3", Type: TypeTheory, Points: 6},
	}
	answers := map[string]string{"q1": " b", "q2": "C", "q3": "essay"}
	manual := map[string]ManualResult{"q3": {Score: 3}}

	e := NewEngine()
	first := e.Score(qs, answers, manual)
	second := e.Score(qs, answers, manual)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("scoring must be deterministic:\nfirst:  %+v\nsecond: %+v", first, second)
	}
	if first.TotalScore != 17 || first.MaxScore != 20 {
		t.Fatalf("got total=%v max=%v, want 17/20", first.TotalScore, first.MaxScore)
	}
}
