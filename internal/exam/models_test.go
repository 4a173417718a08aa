package exam

import (
	"strings"
	"testing"
)

func validExam() Exam {
	return Exam{
		Title: "Anatomy midterm",
		Questions: []Question{
			{ID: "q1", Type: "mcq", Text: "pick one", Options: []string{"A", "B"}, CorrectAnswer: "B", Points: 10},
			{ID: "q2", Type: "THEORY", Text: "explain", Points: 5},
		},
		PassMark:      7.5,
		ResultRelease: ReleaseDelayed,
	}
}

func TestValidateNormalizes(t *testing.T) {
	e := validExam()
	if err := e.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if e.Questions[0].Type != "MCQ" {
		t.Fatalf("type not normalized: %q", e.Questions[0].Type)
	}
	if e.TotalPoints != 15 {
		t.Fatalf("total points = %v, want 15", e.TotalPoints)
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Exam)
		wantErr string
	}{
		{"missing title", func(e *Exam) { e.Title = "  " }, "title required"},
		{"unknown policy", func(e *Exam) { e.ResultRelease = "WHENEVER" }, "result_release"},
		{"scheduled without date", func(e *Exam) { e.ResultRelease = ReleaseScheduled }, "scheduled_release_at"},
		{"missing question id", func(e *Exam) { e.Questions[0].ID = "" }, "id required"},
		{"duplicate question id", func(e *Exam) { e.Questions[1].ID = "q1" }, "duplicate"},
		{"zero points", func(e *Exam) { e.Questions[0].Points = 0 }, "points must be positive"},
		{"mcq without answer", func(e *Exam) { e.Questions[0].CorrectAnswer = "" }, "correct answer required"},
		{"unknown type", func(e *Exam) { e.Questions[0].Type = "ESSAY" }, "unknown type"},
		{"pass mark above total", func(e *Exam) { e.PassMark = 99 }, "pass mark"},
		{"negative pass mark", func(e *Exam) { e.PassMark = -1 }, "pass mark"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := validExam()
			tc.mutate(&e)
			err := e.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("got %v, want error containing %q", err, tc.wantErr)
			}
		})
	}
}

func TestStripAnswers(t *testing.T) {
	e := validExam()
	stripped := StripAnswers(e.Questions)
	for _, q := range stripped {
		if q.CorrectAnswer != "" {
			t.Fatalf("correct answer leaked for %s", q.ID)
		}
	}
	// The originals are untouched.
	if e.Questions[0].CorrectAnswer != "B" {
		t.Fatalf("StripAnswers mutated its input")
	}
}

func TestScoringQuestions(t *testing.T) {
	e := validExam()
	qs := ScoringQuestions(e.Questions)
	if len(qs) != 2 {
		t.Fatalf("got %d questions, want 2", len(qs))
	}
	if qs[0].ID != "q1" || qs[0].Answer != "B" || qs[0].Points != 10 {
		t.Fatalf("conversion wrong: %+v", qs[0])
	}
}
