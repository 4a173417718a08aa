// Package scoring computes per-question and aggregate results for a
// finalized set of answers. It is pure: no I/O, no clock, no randomness.
// Identical inputs always produce identical output, which is what makes
// regrading safe to run any number of times.
package scoring

import "strings"

// Question type identifiers as stored on the exam definition.
const (
	TypeMCQ    = "MCQ"
	TypeSBA    = "SBA"
	TypeTheory = "THEORY"
)

// Grading status of a whole submission after a scoring pass.
const (
	StatusGraded        = "GRADED"
	StatusPendingReview = "PENDING_MANUAL_REVIEW"
)

// Question is the minimal view of an exam question needed for grading.
type Question struct {
	ID     string
	Type   string
	Answer string // correct option for MCQ/SBA, rubric/model answer for THEORY
	Points float64
}

// ManualResult is a grade previously entered by a human for one question.
type ManualResult struct {
	Score     float64
	IsCorrect *bool // nil when the grader did not state correctness
	Feedback  string
}

// QuestionResult is the outcome of grading a single question.
type QuestionResult struct {
	Score     float64 `json:"score"`
	IsCorrect bool    `json:"is_correct"`
	Feedback  string  `json:"feedback,omitempty"`
	Manual    bool    `json:"manual,omitempty"`  // score came from a human grader
	Pending   bool    `json:"pending,omitempty"` // awaiting manual grading
}

// Outcome aggregates a full scoring pass.
type Outcome struct {
	Results    map[string]QuestionResult
	TotalScore float64
	MaxScore   float64
	Status     string
	Graded     bool
}

// Strategy grades a single question. seed is the prior manual grade for the
// question, or nil.
type Strategy interface {
	Grade(q Question, answer string, seed *ManualResult) QuestionResult
}

// Engine routes each question to the Strategy for its type.
type Engine struct {
	strategies map[string]Strategy
}

func NewEngine() *Engine {
	return &Engine{
		strategies: map[string]Strategy{
			TypeMCQ:    choiceStrategy{},
			TypeSBA:    choiceStrategy{},
			TypeTheory: theoryStrategy{},
		},
	}
}

// Score grades every question in exam order. answers may be missing keys
// (treated as an empty answer); manual carries previously entered grades and
// may be nil on a first pass. MaxScore is the sum of all point values,
// independent of how many questions were answered. An exam with zero
// questions comes back graded with zero totals.
func (e *Engine) Score(questions []Question, answers map[string]string, manual map[string]ManualResult) Outcome {
	out := Outcome{Results: make(map[string]QuestionResult, len(questions))}
	pending := false
	for _, q := range questions {
		out.MaxScore += q.Points

		var seed *ManualResult
		if m, ok := manual[q.ID]; ok {
			seed = &m
		}

		var r QuestionResult
		if s, ok := e.strategies[strings.ToUpper(strings.TrimSpace(q.Type))]; ok {
			r = s.Grade(q, answers[q.ID], seed)
		} else {
			r = QuestionResult{Pending: true, Feedback: "no grading strategy for question type"}
		}

		out.Results[q.ID] = r
		out.TotalScore += r.Score
		if r.Pending {
			pending = true
		}
	}

	if pending {
		out.Status = StatusPendingReview
	} else {
		out.Status = StatusGraded
	}
	out.Graded = !pending
	return out
}

// --- Strategies ---

// choiceStrategy grades MCQ and SBA: full points iff the normalized answer
// equals the normalized key and both are non-empty. Never partial credit.
type choiceStrategy struct{}

func (choiceStrategy) Grade(q Question, answer string, _ *ManualResult) QuestionResult {
	got := normalize(answer)
	want := normalize(q.Answer)
	// An empty answer never matches, even against a key that is itself
	// empty after trimming: blank submissions earn nothing.
	if got == "" || want == "" || got != want {
		return QuestionResult{}
	}
	return QuestionResult{Score: q.Points, IsCorrect: true}
}

// theoryStrategy reuses a prior manual grade verbatim. Without one the
// question scores zero and the submission needs human review.
type theoryStrategy struct{}

func (theoryStrategy) Grade(q Question, _ string, seed *ManualResult) QuestionResult {
	if seed == nil {
		return QuestionResult{Pending: true}
	}
	// Passthrough heuristic: explicit correctness wins, otherwise at least
	// half the points counts as correct.
	correct := (seed.IsCorrect != nil && *seed.IsCorrect) || seed.Score >= q.Points/2
	return QuestionResult{
		Score:     seed.Score,
		IsCorrect: correct,
		Feedback:  seed.Feedback,
		Manual:    true,
	}
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
