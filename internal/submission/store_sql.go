package submission

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

const submissionColumns = `id,exam_id,user_id,status,score,max_score,graded,results_released,
	answers_json,draft_json,results_json,snapshot_json,started_at,submitted_at,time_spent_ms`

func (s *SQLStore) Create(ctx context.Context, sub Submission) error {
	enc, err := encodeBlobs(sub)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO submissions (`+submissionColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		sub.ID, sub.ExamID, sub.UserID, string(sub.Status), sub.Score, sub.MaxScore,
		boolToInt(sub.Graded), boolToInt(sub.ResultsReleased),
		enc.answers, enc.draft, enc.results, enc.snapshot,
		sub.StartedAt, nullableInt(sub.SubmittedAt), sub.TimeSpentMs)
	if isUniqueViolation(err) {
		return fmt.Errorf("active attempt already exists for exam %s: %w", sub.ExamID, ErrConflict)
	}
	return err
}

func (s *SQLStore) Get(ctx context.Context, id string) (Submission, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE id=$1`, id)
	sub, err := scanSubmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Submission{}, fmt.Errorf("submission %s: %w", id, ErrNotFound)
	}
	return sub, err
}

// Update rewrites every mutable column in one statement: per-submission
// writes are all-or-nothing.
func (s *SQLStore) Update(ctx context.Context, sub Submission) error {
	enc, err := encodeBlobs(sub)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE submissions SET
		status=$1, score=$2, max_score=$3, graded=$4, results_released=$5,
		answers_json=$6, draft_json=$7, results_json=$8, snapshot_json=$9,
		submitted_at=$10, time_spent_ms=$11
		WHERE id=$12`,
		string(sub.Status), sub.Score, sub.MaxScore, boolToInt(sub.Graded), boolToInt(sub.ResultsReleased),
		enc.answers, enc.draft, enc.results, enc.snapshot,
		nullableInt(sub.SubmittedAt), sub.TimeSpentMs, sub.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("submission %s: %w", sub.ID, ErrNotFound)
	}
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM submissions WHERE id=$1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("submission %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *SQLStore) FindActive(ctx context.Context, examID, userID string) (Submission, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+submissionColumns+` FROM submissions
		WHERE exam_id=$1 AND user_id=$2 AND status=$3`, examID, userID, string(StatusUngraded))
	sub, err := scanSubmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Submission{}, false, nil
	}
	if err != nil {
		return Submission{}, false, err
	}
	return sub, true, nil
}

func (s *SQLStore) List(ctx context.Context, opts ListOpts) ([]Submission, int, error) {
	if opts.Limit <= 0 || opts.Limit > 500 {
		opts.Limit = 100
	}
	var (
		where []string
		args  []any
	)
	if opts.ExamID != "" {
		args = append(args, opts.ExamID)
		where = append(where, fmt.Sprintf("exam_id=$%d", len(args)))
	}
	if opts.UserID != "" {
		args = append(args, opts.UserID)
		where = append(where, fmt.Sprintf("user_id=$%d", len(args)))
	}
	if opts.Status != "" {
		args = append(args, opts.Status)
		where = append(where, fmt.Sprintf("status=$%d", len(args)))
	}
	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM submissions`+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, opts.Limit, opts.Offset)
	q := `SELECT ` + submissionColumns + ` FROM submissions` + cond +
		fmt.Sprintf(" ORDER BY started_at DESC, id LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []Submission{}
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, sub)
	}
	return out, total, rows.Err()
}

func (s *SQLStore) SetReleasedByExam(ctx context.Context, examID string, released bool) (int64, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE submissions SET results_released=$1
		WHERE exam_id=$2 AND status<>$3 AND results_released<>$1`,
		boolToInt(released), examID, string(StatusUngraded))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *SQLStore) SetReleasedAll(ctx context.Context, released bool) (int64, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE submissions SET results_released=$1
		WHERE status<>$2 AND results_released<>$1`,
		boolToInt(released), string(StatusUngraded))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// --- row plumbing ---

type blobs struct {
	answers, draft, results, snapshot string
}

func encodeBlobs(sub Submission) (blobs, error) {
	var b blobs
	if err := encodeJSON(&b.answers, sub.Answers); err != nil {
		return b, err
	}
	if err := encodeJSON(&b.draft, sub.AnswersDraft); err != nil {
		return b, err
	}
	if err := encodeJSON(&b.results, sub.QuestionResults); err != nil {
		return b, err
	}
	if err := encodeJSON(&b.snapshot, sub.Snapshot); err != nil {
		return b, err
	}
	return b, nil
}

func encodeJSON(dst *string, v any) error {
	buf, err := json.Marshal(v)
	if err != nil {
		return err
	}
	*dst = string(buf)
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row rowScanner) (Submission, error) {
	var (
		sub                               Submission
		status                            string
		graded, released                  int64
		answers, draft, results, snapshot string
		submittedAt                       sql.NullInt64
	)
	err := row.Scan(&sub.ID, &sub.ExamID, &sub.UserID, &status, &sub.Score, &sub.MaxScore,
		&graded, &released, &answers, &draft, &results, &snapshot,
		&sub.StartedAt, &submittedAt, &sub.TimeSpentMs)
	if err != nil {
		return Submission{}, err
	}
	sub.Status = Status(status)
	sub.Graded = graded != 0
	sub.ResultsReleased = released != 0
	sub.SubmittedAt = submittedAt.Int64
	if err := decodeJSON(answers, &sub.Answers); err != nil {
		return Submission{}, fmt.Errorf("submission %s: decode answers: %w", sub.ID, err)
	}
	if err := decodeJSON(draft, &sub.AnswersDraft); err != nil {
		return Submission{}, fmt.Errorf("submission %s: decode draft: %w", sub.ID, err)
	}
	if err := decodeJSON(results, &sub.QuestionResults); err != nil {
		return Submission{}, fmt.Errorf("submission %s: decode results: %w", sub.ID, err)
	}
	if err := decodeJSON(snapshot, &sub.Snapshot); err != nil {
		return Submission{}, fmt.Errorf("submission %s: decode snapshot: %w", sub.ID, err)
	}
	return sub, nil
}

func decodeJSON(src string, v any) error {
	if src == "" || src == "null" {
		return nil
	}
	return json.Unmarshal([]byte(src), v)
}

func nullableInt(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: v != 0}
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed") || // sqlite
		strings.Contains(msg, "duplicate key value") // postgres
}
