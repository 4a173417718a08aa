package exam

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) PutExam(ctx context.Context, e Exam) (Exam, error) {
	if err := e.Validate(); err != nil {
		return Exam{}, err
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt == 0 {
		e.CreatedAt = time.Now().Unix()
	}
	qj, err := json.Marshal(e.Questions)
	if err != nil {
		return Exam{}, err
	}
	var sched sql.NullInt64
	if e.ScheduledReleaseAt > 0 {
		sched = sql.NullInt64{Int64: e.ScheduledReleaseAt, Valid: true}
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO exams
		(id,title,pass_mark,result_release,scheduled_release_at,published,questions_json,created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (id) DO UPDATE SET
		  title=EXCLUDED.title, pass_mark=EXCLUDED.pass_mark,
		  result_release=EXCLUDED.result_release, scheduled_release_at=EXCLUDED.scheduled_release_at,
		  published=EXCLUDED.published, questions_json=EXCLUDED.questions_json`,
		e.ID, e.Title, e.PassMark, string(e.ResultRelease), sched, boolToInt(e.Published), string(qj), e.CreatedAt)
	if err != nil {
		return Exam{}, err
	}
	return e, nil
}

// GetExam serves candidates: correct answers are stripped.
func (s *SQLStore) GetExam(ctx context.Context, id string) (Exam, error) {
	e, err := s.GetExamAdmin(ctx, id)
	if err != nil {
		return Exam{}, err
	}
	e.Questions = StripAnswers(e.Questions)
	return e, nil
}

func (s *SQLStore) GetExamAdmin(ctx context.Context, id string) (Exam, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,title,pass_mark,result_release,scheduled_release_at,published,questions_json,created_at
		FROM exams WHERE id=$1`, id)
	var (
		e         Exam
		release   string
		sched     sql.NullInt64
		published int64
		qjson     string
	)
	if err := row.Scan(&e.ID, &e.Title, &e.PassMark, &release, &sched, &published, &qjson, &e.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Exam{}, fmt.Errorf("exam %s: %w", id, ErrNotFound)
		}
		return Exam{}, err
	}
	e.ResultRelease = ReleasePolicy(release)
	e.ScheduledReleaseAt = sched.Int64
	e.Published = published != 0
	if err := json.Unmarshal([]byte(qjson), &e.Questions); err != nil {
		return Exam{}, fmt.Errorf("exam %s: decode questions: %w", id, err)
	}
	for _, q := range e.Questions {
		e.TotalPoints += q.Points
	}
	return e, nil
}

func (s *SQLStore) ListExams(ctx context.Context, opts ListOpts) ([]Summary, error) {
	if opts.Limit <= 0 || opts.Limit > 200 {
		opts.Limit = 50
	}
	var (
		where []string
		args  []any
	)
	if opts.Q != "" {
		args = append(args, "%"+strings.ToLower(opts.Q)+"%")
		where = append(where, fmt.Sprintf("LOWER(title) LIKE $%d", len(args)))
	}
	if opts.PublishedOnly {
		where = append(where, "published <> 0")
	}
	q := `SELECT id,title,pass_mark,result_release,published,questions_json,created_at FROM exams`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, opts.Limit, opts.Offset)
	q += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Summary{}
	for rows.Next() {
		var (
			sm        Summary
			release   string
			published int64
			qjson     string
		)
		if err := rows.Scan(&sm.ID, &sm.Title, &sm.PassMark, &release, &published, &qjson, &sm.CreatedAt); err != nil {
			return nil, err
		}
		sm.ResultRelease = ReleasePolicy(release)
		sm.Published = published != 0
		var qs []Question
		if err := json.Unmarshal([]byte(qjson), &qs); err == nil {
			sm.QuestionCount = len(qs)
			for _, q := range qs {
				sm.TotalPoints += q.Points
			}
		}
		out = append(out, sm)
	}
	return out, rows.Err()
}

func (s *SQLStore) SetPublished(ctx context.Context, id string, published bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE exams SET published=$1 WHERE id=$2`, boolToInt(published), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("exam %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *SQLStore) ListScheduledDue(ctx context.Context, now int64) ([]Exam, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM exams
		WHERE result_release=$1 AND scheduled_release_at IS NOT NULL AND scheduled_release_at <= $2`,
		string(ReleaseScheduled), now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]Exam, 0, len(ids))
	for _, id := range ids {
		e, err := s.GetExamAdmin(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
