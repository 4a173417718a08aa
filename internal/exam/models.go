package exam

import (
	"fmt"
	"strings"

	"github.com/examstack/examstack/internal/scoring"
)

// ReleasePolicy controls when candidates may see their results and the
// correct answers after finalizing a submission.
type ReleasePolicy string

const (
	ReleaseInstant   ReleasePolicy = "INSTANT"   // visible immediately on finalize
	ReleaseDelayed   ReleasePolicy = "DELAYED"   // visible after an explicit admin release
	ReleaseScheduled ReleasePolicy = "SCHEDULED" // visible once the scheduled date has passed
)

type Question struct {
	ID            string   `json:"id"`
	Type          string   `json:"type"` // MCQ | SBA | THEORY
	Text          string   `json:"text"`
	Options       []string `json:"options,omitempty"`
	CorrectAnswer string   `json:"correct_answer,omitempty"` // option for MCQ/SBA, rubric for THEORY
	Points        float64  `json:"points"`
}

type Exam struct {
	ID                 string        `json:"id"`
	Title              string        `json:"title"`
	Questions          []Question    `json:"questions"`
	TotalPoints        float64       `json:"total_points"`
	PassMark           float64       `json:"pass_mark"`
	ResultRelease      ReleasePolicy `json:"result_release"`
	ScheduledReleaseAt int64         `json:"scheduled_release_at,omitempty"` // unix seconds
	Published          bool          `json:"published"`
	CreatedAt          int64         `json:"created_at,omitempty"`
}

// Summary is the list-view shape: no question payloads.
type Summary struct {
	ID            string        `json:"id"`
	Title         string        `json:"title"`
	TotalPoints   float64       `json:"total_points"`
	PassMark      float64       `json:"pass_mark"`
	ResultRelease ReleasePolicy `json:"result_release"`
	Published     bool          `json:"published"`
	QuestionCount int           `json:"question_count"`
	CreatedAt     int64         `json:"created_at,omitempty"`
}

// Validate checks the exam definition before it is persisted. It also
// normalizes question types to upper case and recomputes TotalPoints.
func (e *Exam) Validate() error {
	if strings.TrimSpace(e.Title) == "" {
		return fmt.Errorf("exam title required")
	}
	switch e.ResultRelease {
	case ReleaseInstant, ReleaseDelayed:
	case ReleaseScheduled:
		if e.ScheduledReleaseAt <= 0 {
			return fmt.Errorf("scheduled release policy requires scheduled_release_at")
		}
	default:
		return fmt.Errorf("unknown result_release policy %q", e.ResultRelease)
	}

	seen := make(map[string]struct{}, len(e.Questions))
	total := 0.0
	for i := range e.Questions {
		q := &e.Questions[i]
		q.Type = strings.ToUpper(strings.TrimSpace(q.Type))
		if strings.TrimSpace(q.ID) == "" {
			return fmt.Errorf("question %d: id required", i)
		}
		if _, dup := seen[q.ID]; dup {
			return fmt.Errorf("question %q: duplicate id", q.ID)
		}
		seen[q.ID] = struct{}{}
		if q.Points <= 0 {
			return fmt.Errorf("question %q: points must be positive", q.ID)
		}
		switch q.Type {
		case scoring.TypeMCQ, scoring.TypeSBA:
			if strings.TrimSpace(q.CorrectAnswer) == "" {
				return fmt.Errorf("question %q: correct answer required", q.ID)
			}
		case scoring.TypeTheory:
		default:
			return fmt.Errorf("question %q: unknown type %q", q.ID, q.Type)
		}
		total += q.Points
	}
	e.TotalPoints = total
	if e.PassMark < 0 || e.PassMark > total {
		return fmt.Errorf("pass mark %v outside 0..%v", e.PassMark, total)
	}
	return nil
}

// StripAnswers blanks every correct-answer field, for candidate-facing views.
func StripAnswers(questions []Question) []Question {
	out := make([]Question, len(questions))
	copy(out, questions)
	for i := range out {
		out[i].CorrectAnswer = ""
	}
	return out
}

// ScoringQuestions converts exam questions to the grading engine's view.
func ScoringQuestions(questions []Question) []scoring.Question {
	out := make([]scoring.Question, 0, len(questions))
	for _, q := range questions {
		out = append(out, scoring.Question{ID: q.ID, Type: q.Type, Answer: q.CorrectAnswer, Points: q.Points})
	}
	return out
}
