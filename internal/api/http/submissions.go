package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/examstack/examstack/internal/auth"
	"github.com/examstack/examstack/internal/submission"
)

// Request bodies are validated here so malformed answer maps never reach the
// lifecycle service, let alone the scoring engine.
var validate = validator.New()

func decodeValid(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return err
	}
	return validate.Struct(dst)
}

type startSubmissionReq struct {
	ExamID string `json:"exam_id" validate:"required"`
}

// POST /submissions
func StartSubmissionHandler(svc *submission.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req startSubmissionReq
		if err := decodeValid(r, &req); err != nil {
			badRequest(w, "exam_id required")
			return
		}
		sub, err := svc.StartAttempt(r.Context(), auth.ActorFromContext(r.Context()), req.ExamID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sub)
	}
}

type draftReq struct {
	Answers map[string]string `json:"answers" validate:"required,dive,keys,required,endkeys"`
}

// POST /submissions/{submissionID}/draft
func SaveDraftHandler(svc *submission.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req draftReq
		if err := decodeValid(r, &req); err != nil {
			badRequest(w, "answers map required, keys must be non-empty")
			return
		}
		sub, err := svc.SaveDraft(r.Context(), auth.ActorFromContext(r.Context()),
			chi.URLParam(r, "submissionID"), req.Answers)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sub)
	}
}

type finalizeReq struct {
	Answers     map[string]string `json:"answers" validate:"omitempty,dive,keys,required,endkeys"`
	TimeSpentMs int64             `json:"time_spent_ms" validate:"gte=0"`
}

// POST /submissions/{submissionID}/finalize
func FinalizeHandler(svc *submission.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req finalizeReq
		if err := decodeValid(r, &req); err != nil {
			badRequest(w, "bad finalize payload")
			return
		}
		sub, err := svc.Finalize(r.Context(), auth.ActorFromContext(r.Context()),
			chi.URLParam(r, "submissionID"), req.Answers, req.TimeSpentMs)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sub)
	}
}

// GET /submissions/{submissionID}
func GetSubmissionHandler(svc *submission.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := svc.Read(r.Context(), auth.ActorFromContext(r.Context()),
			chi.URLParam(r, "submissionID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

// GET /submissions?mode=history|exam_id=...&user_id=...&status=...&limit=&offset=
// Non-admin callers always get their own history regardless of filters.
func ListSubmissionsHandler(svc *submission.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		actor := auth.ActorFromContext(r.Context())
		opts := submission.ListOpts{
			ExamID: strings.TrimSpace(q.Get("exam_id")),
			UserID: strings.TrimSpace(q.Get("user_id")),
			Status: strings.TrimSpace(q.Get("status")),
			Limit:  parseIntDefault(q.Get("limit"), 50),
			Offset: parseIntDefault(q.Get("offset"), 0),
		}
		// mode=history pins the listing to the caller's own submissions;
		// for admins this is the only way to see just their attempts.
		if q.Get("mode") == "history" {
			opts.UserID = actor.UserID
		}
		items, total, err := svc.List(r.Context(), actor, opts)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "total": total})
	}
}

type manualGradeReq struct {
	QuestionID string  `json:"question_id" validate:"required"`
	Score      float64 `json:"score" validate:"gte=0"`
	IsCorrect  *bool   `json:"is_correct"`
	Feedback   string  `json:"feedback"`
}

// POST /submissions/{submissionID}/grade
func ManualGradeHandler(svc *submission.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req manualGradeReq
		if err := decodeValid(r, &req); err != nil {
			badRequest(w, "question_id and non-negative score required")
			return
		}
		sub, err := svc.ManualGrade(r.Context(), auth.ActorFromContext(r.Context()),
			chi.URLParam(r, "submissionID"), req.QuestionID,
			submission.ManualGradeInput{Score: req.Score, IsCorrect: req.IsCorrect, Feedback: req.Feedback})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sub)
	}
}

// POST /submissions/{submissionID}/regrade
func RegradeHandler(svc *submission.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub, changed, err := svc.Regrade(r.Context(), auth.ActorFromContext(r.Context()),
			chi.URLParam(r, "submissionID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"submission": sub, "changed": changed})
	}
}

// POST /submissions/regrade-all
func RegradeAllHandler(svc *submission.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := svc.RegradeAll(r.Context(), auth.ActorFromContext(r.Context()))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}

// POST /submissions/{submissionID}/review
func MarkReviewedHandler(svc *submission.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub, err := svc.MarkReviewed(r.Context(), auth.ActorFromContext(r.Context()),
			chi.URLParam(r, "submissionID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sub)
	}
}

type releaseReq struct {
	Released *bool  `json:"released"` // nil means release (true)
	ExamID   string `json:"exam_id"`  // release-all only
}

func (r releaseReq) value() bool { return r.Released == nil || *r.Released }

// POST /submissions/{submissionID}/release
func ReleaseHandler(svc *submission.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req releaseReq
		// Empty body means release.
		_ = json.NewDecoder(r.Body).Decode(&req)
		sub, err := svc.SetReleased(r.Context(), auth.ActorFromContext(r.Context()),
			chi.URLParam(r, "submissionID"), req.value())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sub)
	}
}

// POST /submissions/release-all  {exam_id?: scope to one exam}
func ReleaseAllHandler(svc *submission.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req releaseReq
		_ = json.NewDecoder(r.Body).Decode(&req)
		actor := auth.ActorFromContext(r.Context())
		var (
			n   int64
			err error
		)
		if req.ExamID != "" {
			n, err = svc.ReleaseExam(r.Context(), actor, req.ExamID, req.value())
		} else {
			n, err = svc.ReleaseAll(r.Context(), actor, req.value())
		}
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int64{"released": n})
	}
}

// POST /submissions/release-scheduled
func ReleaseScheduledHandler(svc *submission.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := svc.ReleaseScheduled(r.Context(), auth.ActorFromContext(r.Context()))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int64{"released": n})
	}
}

// DELETE /submissions/{submissionID}
func DeleteSubmissionHandler(svc *submission.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Delete(r.Context(), auth.ActorFromContext(r.Context()),
			chi.URLParam(r, "submissionID")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
