package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/examstack/examstack/internal/auth"
	"github.com/examstack/examstack/internal/exam"
	"github.com/examstack/examstack/internal/rbac"
)

// POST /exams (admin upsert)
func UpsertExamHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var e exam.Exam
		if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
			badRequest(w, "bad json")
			return
		}
		saved, err := store.PutExam(r.Context(), e)
		if err != nil {
			badRequest(w, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, saved)
	}
}

// GET /exams/{examID} — answers stripped unless the caller is an admin.
func GetExamHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "examID")
		actor := auth.ActorFromContext(r.Context())

		var (
			e   exam.Exam
			err error
		)
		if actor.IsAdmin() {
			e, err = store.GetExamAdmin(r.Context(), id)
		} else {
			e, err = store.GetExam(r.Context(), id)
			if err == nil && !e.Published {
				// Fail closed: candidates cannot probe unpublished exams.
				writeError(w, exam.ErrNotFound)
				return
			}
		}
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, e)
	}
}

// GET /exams — candidates see published exams only.
func ListExamsHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		opts := exam.ListOpts{
			Q:      strings.TrimSpace(q.Get("q")),
			Limit:  parseIntDefault(q.Get("limit"), 50),
			Offset: parseIntDefault(q.Get("offset"), 0),
		}
		if !rbac.IsAdmin(rbac.RoleFromContext(r.Context())) {
			opts.PublishedOnly = true
		}
		items, err := store.ListExams(r.Context(), opts)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, items)
	}
}

type publishReq struct {
	Published *bool `json:"published"` // nil means publish
}

// POST /exams/{examID}/publish
func PublishExamHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req publishReq
		_ = json.NewDecoder(r.Body).Decode(&req)
		published := req.Published == nil || *req.Published
		if err := store.SetPublished(r.Context(), chi.URLParam(r, "examID"), published); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"published": published})
	}
}
