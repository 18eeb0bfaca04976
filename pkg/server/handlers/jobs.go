package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/hireloop/interviewd/pkg/server/apierror"
	"github.com/hireloop/interviewd/pkg/server/auth"
	"github.com/hireloop/interviewd/pkg/store"
)

// JobsHandler serves job postings.
type JobsHandler struct {
	jobs JobStore
}

// NewJobsHandler creates the job endpoints.
func NewJobsHandler(jobs JobStore) *JobsHandler {
	return &JobsHandler{jobs: jobs}
}

type jobRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Location    string `json:"location"`
}

// Create handles POST /jobs. Recruiter only.
func (h *JobsHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFrom(r.Context())
	if !ok {
		writeError(w, r, &apierror.Error{Type: apierror.ErrAuthentication, Message: "authentication required"})
		return
	}
	if claims.Role != store.RoleRecruiter {
		writeError(w, r, &apierror.Error{Type: apierror.ErrPermission, Message: "only recruiters can post jobs"})
		return
	}

	var req jobRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeError(w, r, &apierror.Error{Type: apierror.ErrInvalidRequest, Message: "title required", Param: "title"})
		return
	}

	job, err := h.jobs.CreateJob(r.Context(), &store.Job{
		RecruiterID: claims.UserID,
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, job)
}

// List handles GET /jobs.
func (h *JobsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, r, &apierror.Error{Type: apierror.ErrInvalidRequest, Message: "invalid limit", Param: "limit"})
			return
		}
		limit = n
	}

	jobs, err := h.jobs.ListJobs(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if jobs == nil {
		jobs = []store.Job{}
	}
	writeJSON(w, http.StatusOK, jobs)
}

// Get handles GET /jobs/{id}.
func (h *JobsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, r, &apierror.Error{Type: apierror.ErrInvalidRequest, Message: "invalid job id", Param: "id"})
		return
	}

	job, err := h.jobs.GetJob(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// Delete handles DELETE /jobs/{id}. Only the posting recruiter may
// delete.
func (h *JobsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFrom(r.Context())
	if !ok {
		writeError(w, r, &apierror.Error{Type: apierror.ErrAuthentication, Message: "authentication required"})
		return
	}

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, r, &apierror.Error{Type: apierror.ErrInvalidRequest, Message: "invalid job id", Param: "id"})
		return
	}

	if err := h.jobs.DeleteJob(r.Context(), id, claims.UserID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
