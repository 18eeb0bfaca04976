package handlers

import (
	"net/http"
	"strconv"

	"github.com/hireloop/interviewd/pkg/server/apierror"
	"github.com/hireloop/interviewd/pkg/server/auth"
	"github.com/hireloop/interviewd/pkg/store"
)

// ApplicationsHandler serves job applications.
type ApplicationsHandler struct {
	applications ApplicationStore
	jobs         JobStore
}

// NewApplicationsHandler creates the application endpoints.
func NewApplicationsHandler(applications ApplicationStore, jobs JobStore) *ApplicationsHandler {
	return &ApplicationsHandler{applications: applications, jobs: jobs}
}

// Apply handles POST /jobs/{id}/apply.
func (h *ApplicationsHandler) Apply(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFrom(r.Context())
	if !ok {
		writeError(w, r, &apierror.Error{Type: apierror.ErrAuthentication, Message: "authentication required"})
		return
	}
	if claims.Role != store.RoleJobSeeker {
		writeError(w, r, &apierror.Error{Type: apierror.ErrPermission, Message: "only job seekers can apply"})
		return
	}

	jobID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, r, &apierror.Error{Type: apierror.ErrInvalidRequest, Message: "invalid job id", Param: "id"})
		return
	}

	// Applying to a missing job is a 404, not a dangling foreign key.
	if _, err := h.jobs.GetJob(r.Context(), jobID); err != nil {
		writeError(w, r, err)
		return
	}

	app, err := h.applications.CreateApplication(r.Context(), &store.Application{
		JobID:  jobID,
		UserID: claims.UserID,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, app)
}

// ListMine handles GET /applications.
func (h *ApplicationsHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFrom(r.Context())
	if !ok {
		writeError(w, r, &apierror.Error{Type: apierror.ErrAuthentication, Message: "authentication required"})
		return
	}

	apps, err := h.applications.ListApplicationsByUser(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if apps == nil {
		apps = []store.Application{}
	}
	writeJSON(w, http.StatusOK, apps)
}

// ListForJob handles GET /jobs/{id}/applications. Only the posting
// recruiter may list.
func (h *ApplicationsHandler) ListForJob(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFrom(r.Context())
	if !ok {
		writeError(w, r, &apierror.Error{Type: apierror.ErrAuthentication, Message: "authentication required"})
		return
	}

	jobID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, r, &apierror.Error{Type: apierror.ErrInvalidRequest, Message: "invalid job id", Param: "id"})
		return
	}

	job, err := h.jobs.GetJob(r.Context(), jobID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if job.RecruiterID != claims.UserID {
		writeError(w, r, &apierror.Error{Type: apierror.ErrPermission, Message: "not your job posting"})
		return
	}

	apps, err := h.applications.ListApplicationsByJob(r.Context(), jobID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if apps == nil {
		apps = []store.Application{}
	}
	writeJSON(w, http.StatusOK, apps)
}

type statusRequest struct {
	Status string `json:"status"`
}

// UpdateStatus handles PUT /applications/{id}/status. Recruiter only.
func (h *ApplicationsHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFrom(r.Context())
	if !ok {
		writeError(w, r, &apierror.Error{Type: apierror.ErrAuthentication, Message: "authentication required"})
		return
	}
	if claims.Role != store.RoleRecruiter {
		writeError(w, r, &apierror.Error{Type: apierror.ErrPermission, Message: "only recruiters can update application status"})
		return
	}

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, r, &apierror.Error{Type: apierror.ErrInvalidRequest, Message: "invalid application id", Param: "id"})
		return
	}

	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	switch req.Status {
	case store.ApplicationPending, store.ApplicationReviewed, store.ApplicationAccepted, store.ApplicationRejected:
	default:
		writeError(w, r, &apierror.Error{Type: apierror.ErrInvalidRequest, Message: "invalid status", Param: "status"})
		return
	}

	if err := h.applications.UpdateApplicationStatus(r.Context(), id, req.Status); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
