package exam

import (
	"context"
	"errors"
)

// ErrNotFound is returned when an exam does not exist.
var ErrNotFound = errors.New("exam not found")

type ListOpts struct {
	Q             string // title substring filter
	PublishedOnly bool
	Limit         int
	Offset        int
}

// Store is the persistence surface for exam definitions. GetExam is
// candidate-safe (correct answers stripped); grading paths must use
// GetExamAdmin.
type Store interface {
	PutExam(ctx context.Context, e Exam) (Exam, error)
	GetExam(ctx context.Context, id string) (Exam, error)
	GetExamAdmin(ctx context.Context, id string) (Exam, error)
	ListExams(ctx context.Context, opts ListOpts) ([]Summary, error)
	SetPublished(ctx context.Context, id string, published bool) error
	// ListScheduledDue returns exams with a SCHEDULED release policy whose
	// scheduled date is at or before now (unix seconds).
	ListScheduledDue(ctx context.Context, now int64) ([]Exam, error)
}
