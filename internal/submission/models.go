package submission

import (
	"github.com/examstack/examstack/internal/exam"
	"github.com/examstack/examstack/internal/scoring"
)

// Status is the grading state of a submission. ResultsReleased is an
// orthogonal visibility flag, not a state.
type Status string

const (
	StatusUngraded      Status = "UNGRADED"              // attempt in progress
	StatusPendingReview Status = "PENDING_MANUAL_REVIEW" // finalized, needs a human grade
	StatusGraded        Status = "GRADED"                // every question resolved
	StatusReviewed      Status = "REVIEWED"              // admin acknowledgement on top of GRADED
)

type Submission struct {
	ID              string                            `json:"id"`
	ExamID          string                            `json:"exam_id"`
	UserID          string                            `json:"user_id"`
	Status          Status                            `json:"status"`
	Score           float64                           `json:"score"`
	MaxScore        float64                           `json:"max_score"`
	Graded          bool                              `json:"graded"`
	ResultsReleased bool                              `json:"results_released"`
	Answers         map[string]string                 `json:"answers,omitempty"`
	AnswersDraft    map[string]string                 `json:"answers_draft,omitempty"`
	QuestionResults map[string]scoring.QuestionResult `json:"question_results,omitempty"`
	// Snapshot freezes the exam questions at finalize time so later regrades
	// are not affected by edits to the live exam.
	Snapshot    []exam.Question `json:"-"`
	StartedAt   int64           `json:"started_at"`
	SubmittedAt int64           `json:"submitted_at,omitempty"`
	TimeSpentMs int64           `json:"time_spent_ms,omitempty"`
}

// ManualGradeInput is one human-entered grade for a THEORY question.
type ManualGradeInput struct {
	Score     float64 `json:"score"`
	IsCorrect *bool   `json:"is_correct,omitempty"`
	Feedback  string  `json:"feedback,omitempty"`
}

// View is the read shape returned to callers: the submission plus the
// questions it was graded against. Correct answers and question results are
// present only when the caller is allowed to see them.
type View struct {
	Submission Submission      `json:"submission"`
	Questions  []exam.Question `json:"questions,omitempty"`
}

// RegradeReport summarizes a batch regrade.
type RegradeReport struct {
	Total   int `json:"total"`
	Changed int `json:"changed"`
	Failed  int `json:"failed"`
}

// manualSeed extracts the human-entered grades from a result map, for
// replaying through the scoring engine. Pending placeholders are not seeds.
func manualSeed(results map[string]scoring.QuestionResult) map[string]scoring.ManualResult {
	seed := make(map[string]scoring.ManualResult)
	for id, r := range results {
		if !r.Manual {
			continue
		}
		correct := r.IsCorrect
		seed[id] = scoring.ManualResult{Score: r.Score, IsCorrect: &correct, Feedback: r.Feedback}
	}
	return seed
}
