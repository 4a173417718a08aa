// Package submission owns the submission record's lifecycle: start attempt,
// draft autosave, finalize, manual grading, regrading and result release.
// Scoring itself is delegated to the pure engine in internal/scoring; this
// package wraps it with persistence and authorization policy.
package submission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/examstack/examstack/internal/auth"
	"github.com/examstack/examstack/internal/exam"
	"github.com/examstack/examstack/internal/scoring"
)

// ExamProvider supplies exam definitions. Grading always needs the full
// definition including correct answers.
type ExamProvider interface {
	GetExamAdmin(ctx context.Context, id string) (exam.Exam, error)
	ListScheduledDue(ctx context.Context, now int64) ([]exam.Exam, error)
}

type Service struct {
	store  Store
	exams  ExamProvider
	engine *scoring.Engine
	now    func() time.Time
	log    *slog.Logger
	chunk  int // page size for batch operations
}

type Option func(*Service)

// WithClock overrides time.Now, for tests and deterministic sweeps.
func WithClock(fn func() time.Time) Option { return func(s *Service) { s.now = fn } }

// WithChunkSize sets the page size used by batch operations.
func WithChunkSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.chunk = n
		}
	}
}

func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.log = l } }

func NewService(store Store, exams ExamProvider, opts ...Option) *Service {
	s := &Service{
		store:  store,
		exams:  exams,
		engine: scoring.NewEngine(),
		now:    time.Now,
		log:    slog.Default(),
		chunk:  100,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// StartAttempt returns the candidate's active attempt for the exam, creating
// one if none exists. At most one UNGRADED submission per (exam, candidate)
// is allowed; the storage layer backs this with a unique index so concurrent
// duplicate starts collapse onto one record.
func (s *Service) StartAttempt(ctx context.Context, actor auth.Context, examID string) (Submission, error) {
	ex, err := s.exams.GetExamAdmin(ctx, examID)
	if err != nil {
		return Submission{}, mapExamErr(err)
	}
	// Fail closed: candidates cannot learn of unpublished exams.
	if !ex.Published && !actor.IsAdmin() {
		return Submission{}, fmt.Errorf("exam %s unavailable: %w", examID, ErrNotFound)
	}

	if existing, ok, err := s.store.FindActive(ctx, examID, actor.UserID); err != nil {
		return Submission{}, err
	} else if ok {
		return existing, nil
	}

	sub := Submission{
		ID:        uuid.NewString(),
		ExamID:    examID,
		UserID:    actor.UserID,
		Status:    StatusUngraded,
		Answers:   map[string]string{},
		StartedAt: s.now().Unix(),
	}
	if err := s.store.Create(ctx, sub); err != nil {
		if errors.Is(err, ErrConflict) {
			// Lost the create race; the winner's attempt is ours to resume.
			if existing, ok, ferr := s.store.FindActive(ctx, examID, actor.UserID); ferr == nil && ok {
				return existing, nil
			}
		}
		return Submission{}, err
	}
	return sub, nil
}

// SaveDraft overwrites the autosave buffer. Drafts are rejected once the
// submission is finalized (strict conflict policy); Answers and scores are
// never touched here.
func (s *Service) SaveDraft(ctx context.Context, actor auth.Context, id string, draft map[string]string) (Submission, error) {
	sub, err := s.ownedSubmission(ctx, actor, id)
	if err != nil {
		return Submission{}, err
	}
	if sub.Status != StatusUngraded {
		return Submission{}, fmt.Errorf("submission %s already finalized: %w", id, ErrConflict)
	}
	if draft == nil {
		return Submission{}, fmt.Errorf("draft answers required: %w", ErrInvalidInput)
	}
	sub.AnswersDraft = draft
	if err := s.store.Update(ctx, sub); err != nil {
		return Submission{}, err
	}
	return sub, nil
}

// Finalize runs the scoring engine over the submitted answers and moves the
// submission out of UNGRADED for good. The exam questions are snapshotted
// into the record so later regrades see the definition as it was graded.
// A nil answer map falls back to the autosaved draft.
func (s *Service) Finalize(ctx context.Context, actor auth.Context, id string, answers map[string]string, timeSpentMs int64) (Submission, error) {
	sub, err := s.ownedSubmission(ctx, actor, id)
	if err != nil {
		return Submission{}, err
	}
	if sub.Status != StatusUngraded {
		return Submission{}, fmt.Errorf("submission %s already finalized: %w", id, ErrConflict)
	}
	if timeSpentMs < 0 {
		return Submission{}, fmt.Errorf("time_spent_ms must not be negative: %w", ErrInvalidInput)
	}
	if answers == nil {
		answers = sub.AnswersDraft
	}
	if answers == nil {
		answers = map[string]string{}
	}

	ex, err := s.exams.GetExamAdmin(ctx, sub.ExamID)
	if err != nil {
		return Submission{}, mapExamErr(err)
	}
	if err := validateAnswerKeys(ex.Questions, answers); err != nil {
		return Submission{}, err
	}

	now := s.now()
	out := s.engine.Score(exam.ScoringQuestions(ex.Questions), answers, nil)

	sub.Answers = answers
	sub.AnswersDraft = nil
	sub.QuestionResults = out.Results
	sub.Score = out.TotalScore
	sub.MaxScore = out.MaxScore
	sub.Status = Status(out.Status)
	sub.Graded = out.Graded
	sub.ResultsReleased = ResolveRelease(ex.ResultRelease, ex.ScheduledReleaseAt, now)
	sub.Snapshot = ex.Questions
	sub.SubmittedAt = now.Unix()
	sub.TimeSpentMs = timeSpentMs

	if err := s.store.Update(ctx, sub); err != nil {
		return Submission{}, err
	}
	return sub, nil
}

// ManualGrade merges one human-entered grade and reconciles the whole
// submission through the engine. Aggregates are never patched incrementally;
// recomputing from scratch keeps them honest even after historical bugs.
func (s *Service) ManualGrade(ctx context.Context, actor auth.Context, id, questionID string, in ManualGradeInput) (Submission, error) {
	if !actor.IsAdmin() {
		return Submission{}, fmt.Errorf("manual grading is admin-only: %w", ErrForbidden)
	}
	sub, err := s.store.Get(ctx, id)
	if err != nil {
		return Submission{}, err
	}
	if sub.Status == StatusUngraded {
		return Submission{}, fmt.Errorf("submission %s not finalized: %w", id, ErrConflict)
	}
	questions, err := s.questionsFor(ctx, &sub)
	if err != nil {
		return Submission{}, err
	}

	q, ok := findQuestion(questions, questionID)
	if !ok {
		return Submission{}, fmt.Errorf("question %s not in exam: %w", questionID, ErrInvalidInput)
	}
	if q.Type != scoring.TypeTheory {
		return Submission{}, fmt.Errorf("question %s is auto-graded: %w", questionID, ErrInvalidInput)
	}
	if in.Score < 0 || in.Score > q.Points {
		return Submission{}, fmt.Errorf("score %v outside 0..%v: %w", in.Score, q.Points, ErrInvalidInput)
	}

	seed := manualSeed(sub.QuestionResults)
	seed[questionID] = scoring.ManualResult(in)

	s.applyOutcome(&sub, s.engine.Score(exam.ScoringQuestions(questions), sub.Answers, seed))
	if err := s.store.Update(ctx, sub); err != nil {
		return Submission{}, err
	}
	return sub, nil
}

// Regrade replays the engine over the stored answers, seeding it with the
// existing manual grades. It is idempotent: with no data changes the second
// call writes nothing. The boolean reports whether anything changed.
func (s *Service) Regrade(ctx context.Context, actor auth.Context, id string) (Submission, bool, error) {
	if !actor.IsAdmin() {
		return Submission{}, false, fmt.Errorf("regrade is admin-only: %w", ErrForbidden)
	}
	sub, err := s.store.Get(ctx, id)
	if err != nil {
		return Submission{}, false, err
	}
	return s.regradeOne(ctx, sub)
}

func (s *Service) regradeOne(ctx context.Context, sub Submission) (Submission, bool, error) {
	if sub.Status == StatusUngraded {
		return Submission{}, false, fmt.Errorf("submission %s not finalized: %w", sub.ID, ErrConflict)
	}
	questions, err := s.questionsFor(ctx, &sub)
	if err != nil {
		return Submission{}, false, err
	}

	next := sub
	s.applyOutcome(&next, s.engine.Score(exam.ScoringQuestions(questions), sub.Answers, manualSeed(sub.QuestionResults)))

	if next.Score == sub.Score && next.Status == sub.Status && next.Graded == sub.Graded &&
		resultsEqual(next.QuestionResults, sub.QuestionResults) {
		return sub, false, nil
	}
	if err := s.store.Update(ctx, next); err != nil {
		return Submission{}, false, err
	}
	return next, true, nil
}

// RegradeAll regrades every finalized submission in pages. One submission's
// failure never aborts the batch; failures are logged and counted.
func (s *Service) RegradeAll(ctx context.Context, actor auth.Context) (RegradeReport, error) {
	if !actor.IsAdmin() {
		return RegradeReport{}, fmt.Errorf("regrade is admin-only: %w", ErrForbidden)
	}
	var report RegradeReport
	for offset := 0; ; offset += s.chunk {
		page, _, err := s.store.List(ctx, ListOpts{Limit: s.chunk, Offset: offset})
		if err != nil {
			return report, err
		}
		if len(page) == 0 {
			return report, nil
		}
		for _, sub := range page {
			if sub.Status == StatusUngraded {
				continue
			}
			report.Total++
			_, changed, err := s.regradeOne(ctx, sub)
			if err != nil {
				report.Failed++
				s.log.Error("regrade failed", "submission_id", sub.ID, "error", err)
				continue
			}
			if changed {
				report.Changed++
			}
		}
		if len(page) < s.chunk {
			return report, nil
		}
	}
}

// MarkReviewed layers the terminal admin acknowledgement on top of GRADED.
func (s *Service) MarkReviewed(ctx context.Context, actor auth.Context, id string) (Submission, error) {
	if !actor.IsAdmin() {
		return Submission{}, fmt.Errorf("review is admin-only: %w", ErrForbidden)
	}
	sub, err := s.store.Get(ctx, id)
	if err != nil {
		return Submission{}, err
	}
	if sub.Status == StatusReviewed {
		return sub, nil
	}
	if sub.Status != StatusGraded {
		return Submission{}, fmt.Errorf("submission %s is %s, not GRADED: %w", id, sub.Status, ErrConflict)
	}
	sub.Status = StatusReviewed
	if err := s.store.Update(ctx, sub); err != nil {
		return Submission{}, err
	}
	return sub, nil
}

// SetReleased toggles result visibility for one submission. Scores are
// untouched.
func (s *Service) SetReleased(ctx context.Context, actor auth.Context, id string, released bool) (Submission, error) {
	if !actor.IsAdmin() {
		return Submission{}, fmt.Errorf("release is admin-only: %w", ErrForbidden)
	}
	sub, err := s.store.Get(ctx, id)
	if err != nil {
		return Submission{}, err
	}
	if sub.ResultsReleased == released {
		return sub, nil
	}
	sub.ResultsReleased = released
	if err := s.store.Update(ctx, sub); err != nil {
		return Submission{}, err
	}
	return sub, nil
}

// ReleaseExam flips visibility for every finalized submission of an exam.
func (s *Service) ReleaseExam(ctx context.Context, actor auth.Context, examID string, released bool) (int64, error) {
	if !actor.IsAdmin() {
		return 0, fmt.Errorf("release is admin-only: %w", ErrForbidden)
	}
	if _, err := s.exams.GetExamAdmin(ctx, examID); err != nil {
		return 0, mapExamErr(err)
	}
	return s.store.SetReleasedByExam(ctx, examID, released)
}

// ReleaseAll flips visibility for every finalized submission.
func (s *Service) ReleaseAll(ctx context.Context, actor auth.Context, released bool) (int64, error) {
	if !actor.IsAdmin() {
		return 0, fmt.Errorf("release is admin-only: %w", ErrForbidden)
	}
	return s.store.SetReleasedAll(ctx, released)
}

// ReleaseScheduled is the sweep: it finds every exam whose scheduled release
// date has passed and releases all of its unreleased submissions, one exam
// at a time so a failing exam cannot block the rest.
func (s *Service) ReleaseScheduled(ctx context.Context, actor auth.Context) (int64, error) {
	if !actor.IsAdmin() {
		return 0, fmt.Errorf("release is admin-only: %w", ErrForbidden)
	}
	due, err := s.exams.ListScheduledDue(ctx, s.now().Unix())
	if err != nil {
		return 0, err
	}
	var released int64
	for _, ex := range due {
		n, err := s.store.SetReleasedByExam(ctx, ex.ID, true)
		if err != nil {
			s.log.Error("scheduled release failed", "exam_id", ex.ID, "error", err)
			continue
		}
		released += n
	}
	return released, nil
}

// Read returns the submission for its owner or an admin. Until results are
// released, the candidate view omits question results and every
// correct-answer field; that redaction is the only barrier between a
// candidate and the answer key, so it happens here and nowhere later.
func (s *Service) Read(ctx context.Context, actor auth.Context, id string) (View, error) {
	sub, err := s.ownedSubmission(ctx, actor, id)
	if err != nil {
		return View{}, err
	}
	questions, err := s.questionsFor(ctx, &sub)
	if err != nil {
		return View{}, err
	}
	if !actor.IsAdmin() && !sub.ResultsReleased {
		sub.QuestionResults = nil
		questions = exam.StripAnswers(questions)
	}
	return View{Submission: sub, Questions: questions}, nil
}

// List returns submissions for admin dashboards. Non-admin callers are
// forced onto their own history, with unreleased results redacted.
func (s *Service) List(ctx context.Context, actor auth.Context, opts ListOpts) ([]Submission, int, error) {
	if !actor.IsAdmin() {
		opts.UserID = actor.UserID
	}
	items, total, err := s.store.List(ctx, opts)
	if err != nil {
		return nil, 0, err
	}
	if !actor.IsAdmin() {
		for i := range items {
			if !items[i].ResultsReleased {
				items[i].QuestionResults = nil
			}
		}
	}
	return items, total, nil
}

// Delete removes a submission permanently.
func (s *Service) Delete(ctx context.Context, actor auth.Context, id string) error {
	if !actor.IsAdmin() {
		return fmt.Errorf("delete is admin-only: %w", ErrForbidden)
	}
	return s.store.Delete(ctx, id)
}

// --- helpers ---

func (s *Service) ownedSubmission(ctx context.Context, actor auth.Context, id string) (Submission, error) {
	sub, err := s.store.Get(ctx, id)
	if err != nil {
		return Submission{}, err
	}
	if !actor.IsAdmin() && actor.UserID != sub.UserID {
		return Submission{}, fmt.Errorf("submission %s belongs to another candidate: %w", id, ErrForbidden)
	}
	return sub, nil
}

// questionsFor prefers the snapshot frozen at finalize time; submissions
// that predate snapshotting (or are still in progress) fall back to the
// live exam definition.
func (s *Service) questionsFor(ctx context.Context, sub *Submission) ([]exam.Question, error) {
	if len(sub.Snapshot) > 0 {
		return sub.Snapshot, nil
	}
	ex, err := s.exams.GetExamAdmin(ctx, sub.ExamID)
	if err != nil {
		return nil, mapExamErr(err)
	}
	return ex.Questions, nil
}

func (s *Service) applyOutcome(sub *Submission, out scoring.Outcome) {
	sub.QuestionResults = out.Results
	sub.Score = out.TotalScore
	sub.MaxScore = out.MaxScore
	sub.Graded = out.Graded
	// A REVIEWED acknowledgement survives a no-change regrade but drops if
	// the submission falls back to needing review.
	if !(sub.Status == StatusReviewed && out.Status == scoring.StatusGraded) {
		sub.Status = Status(out.Status)
	}
}

func validateAnswerKeys(questions []exam.Question, answers map[string]string) error {
	known := make(map[string]struct{}, len(questions))
	for _, q := range questions {
		known[q.ID] = struct{}{}
	}
	for id := range answers {
		if _, ok := known[id]; !ok {
			return fmt.Errorf("answer for unknown question %q: %w", id, ErrInvalidInput)
		}
	}
	return nil
}

func findQuestion(questions []exam.Question, id string) (exam.Question, bool) {
	for _, q := range questions {
		if q.ID == id {
			return q, true
		}
	}
	return exam.Question{}, false
}

func resultsEqual(a, b map[string]scoring.QuestionResult) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok || av != bv {
			return false
		}
	}
	return true
}

func mapExamErr(err error) error {
	if errors.Is(err, exam.ErrNotFound) {
		return fmt.Errorf("%v: %w", err, ErrNotFound)
	}
	return err
}
