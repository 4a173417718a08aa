package submission

import "context"

type ListOpts struct {
	ExamID string
	UserID string
	Status string
	Limit  int
	Offset int
}

// Store is the persistence surface for submissions. Writes are whole-record
// and atomic per submission: Update replaces every mutable column in a
// single statement so a failed scoring pass never leaves partial state.
type Store interface {
	// Create inserts a new submission. The storage layer enforces at most
	// one UNGRADED submission per (exam, user); a violation surfaces as
	// ErrConflict so callers can fall back to the existing attempt.
	Create(ctx context.Context, s Submission) error
	Get(ctx context.Context, id string) (Submission, error)
	Update(ctx context.Context, s Submission) error
	Delete(ctx context.Context, id string) error

	// FindActive returns the UNGRADED submission for (exam, user), if any.
	FindActive(ctx context.Context, examID, userID string) (Submission, bool, error)

	List(ctx context.Context, opts ListOpts) ([]Submission, int, error)

	// SetReleasedByExam flips results_released for every finalized
	// submission of an exam, without touching scores. Returns rows changed.
	SetReleasedByExam(ctx context.Context, examID string, released bool) (int64, error)
	// SetReleasedAll is the global variant.
	SetReleasedAll(ctx context.Context, released bool) (int64, error)
}
