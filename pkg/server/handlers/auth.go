package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/hireloop/interviewd/pkg/server/apierror"
	"github.com/hireloop/interviewd/pkg/server/auth"
	"github.com/hireloop/interviewd/pkg/store"
)

// AuthHandler implements registration and login.
type AuthHandler struct {
	users  UserStore
	tokens *auth.Tokens
}

// NewAuthHandler creates the auth endpoints.
func NewAuthHandler(users UserStore, tokens *auth.Tokens) *AuthHandler {
	return &AuthHandler{users: users, tokens: tokens}
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		writeError(w, r, &apierror.Error{Type: apierror.ErrInvalidRequest, Message: "valid email required", Param: "email"})
		return
	}
	if len(req.Password) < 8 {
		writeError(w, r, &apierror.Error{Type: apierror.ErrInvalidRequest, Message: "password must be at least 8 characters", Param: "password"})
		return
	}
	switch req.Role {
	case "":
		req.Role = store.RoleJobSeeker
	case store.RoleJobSeeker, store.RoleRecruiter:
	default:
		writeError(w, r, &apierror.Error{Type: apierror.ErrInvalidRequest, Message: "role must be job_seeker or recruiter", Param: "role"})
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	user, err := h.users.CreateUser(r.Context(), &store.User{
		Email:        req.Email,
		PasswordHash: hash,
		FullName:     req.FullName,
		Role:         req.Role,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	user, err := h.users.GetUserByEmail(r.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Same response as a bad password so the endpoint does not
			// reveal which emails are registered.
			writeError(w, r, &apierror.Error{Type: apierror.ErrAuthentication, Message: "invalid credentials"})
			return
		}
		writeError(w, r, err)
		return
	}

	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		writeError(w, r, &apierror.Error{Type: apierror.ErrAuthentication, Message: "invalid credentials"})
		return
	}

	token, err := h.tokens.Issue(user.ID, user.Role)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: token, TokenType: "bearer"})
}
