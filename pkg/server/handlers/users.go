package handlers

import (
	"net/http"
	"strconv"

	"github.com/hireloop/interviewd/pkg/server/apierror"
	"github.com/hireloop/interviewd/pkg/server/auth"
	"github.com/hireloop/interviewd/pkg/store"
)

// UsersHandler serves user and profile reads/writes.
type UsersHandler struct {
	users UserStore
}

// NewUsersHandler creates the user endpoints.
func NewUsersHandler(users UserStore) *UsersHandler {
	return &UsersHandler{users: users}
}

// Get handles GET /users/{id}. The interview agent reads this endpoint
// to personalize a session, so it is served without platform auth.
func (h *UsersHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, r, &apierror.Error{Type: apierror.ErrInvalidRequest, Message: "invalid user id", Param: "id"})
		return
	}

	user, err := h.users.GetUser(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// Me handles GET /users/me.
func (h *UsersHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFrom(r.Context())
	if !ok {
		writeError(w, r, &apierror.Error{Type: apierror.ErrAuthentication, Message: "authentication required"})
		return
	}

	user, err := h.users.GetUser(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type profileRequest struct {
	Headline        string `json:"headline"`
	Summary         string `json:"summary"`
	Skills          string `json:"skills"`
	ExperienceYears int    `json:"experience_years"`
	Education       string `json:"education"`
}

// UpdateProfile handles PUT /users/me/profile.
func (h *UsersHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFrom(r.Context())
	if !ok {
		writeError(w, r, &apierror.Error{Type: apierror.ErrAuthentication, Message: "authentication required"})
		return
	}
	if claims.Role != store.RoleJobSeeker {
		writeError(w, r, &apierror.Error{Type: apierror.ErrPermission, Message: "only job seekers have candidate profiles"})
		return
	}

	var req profileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.ExperienceYears < 0 {
		writeError(w, r, &apierror.Error{Type: apierror.ErrInvalidRequest, Message: "experience_years must be >= 0", Param: "experience_years"})
		return
	}

	profile := &store.JobSeekerProfile{
		UserID:          claims.UserID,
		Headline:        req.Headline,
		Summary:         req.Summary,
		Skills:          req.Skills,
		ExperienceYears: req.ExperienceYears,
		Education:       req.Education,
	}
	if err := h.users.UpsertProfile(r.Context(), profile); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}
