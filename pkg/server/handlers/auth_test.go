package handlers

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hireloop/interviewd/pkg/server/apierror"
	"github.com/hireloop/interviewd/pkg/server/auth"
	"github.com/hireloop/interviewd/pkg/store"
)

func TestRegisterAndLogin(t *testing.T) {
	users := newFakeUsers()
	tokens := auth.NewTokens("test-secret", time.Hour)
	h := NewAuthHandler(users, tokens)

	rec := httptest.NewRecorder()
	h.Register(rec, jsonRequest("POST", "/auth/register", map[string]any{
		"email":     "Ada@Example.com",
		"password":  "hunter2hunter2",
		"full_name": "Ada Lovelace",
	}))
	if rec.Code != 201 {
		t.Fatalf("register status = %d, body %s", rec.Code, rec.Body.String())
	}

	var created store.User
	decodeBody(t, rec, &created)
	if created.Email != "ada@example.com" {
		t.Fatalf("email not normalized: %q", created.Email)
	}
	if created.Role != store.RoleJobSeeker {
		t.Fatalf("default role = %q", created.Role)
	}

	rec = httptest.NewRecorder()
	h.Login(rec, jsonRequest("POST", "/auth/login", map[string]any{
		"email":    "ada@example.com",
		"password": "hunter2hunter2",
	}))
	if rec.Code != 200 {
		t.Fatalf("login status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp tokenResponse
	decodeBody(t, rec, &resp)
	if resp.TokenType != "bearer" {
		t.Fatalf("token_type = %q", resp.TokenType)
	}
	claims, err := tokens.Verify(resp.AccessToken)
	if err != nil {
		t.Fatalf("verify issued token: %v", err)
	}
	if claims.UserID != created.ID || claims.Role != store.RoleJobSeeker {
		t.Fatalf("claims = %+v", claims)
	}
}

func TestRegisterRejectsBadInput(t *testing.T) {
	h := NewAuthHandler(newFakeUsers(), auth.NewTokens("s", time.Hour))

	tests := []struct {
		name string
		body map[string]any
	}{
		{"missing email", map[string]any{"password": "longenough"}},
		{"not an email", map[string]any{"email": "nope", "password": "longenough"}},
		{"short password", map[string]any{"email": "a@b.c", "password": "short"}},
		{"unknown role", map[string]any{"email": "a@b.c", "password": "longenough", "role": "admin"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.Register(rec, jsonRequest("POST", "/auth/register", tt.body))
			if rec.Code != 400 {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestRegisterDuplicateEmailConflicts(t *testing.T) {
	h := NewAuthHandler(newFakeUsers(), auth.NewTokens("s", time.Hour))
	body := map[string]any{"email": "a@b.c", "password": "longenough"}

	rec := httptest.NewRecorder()
	h.Register(rec, jsonRequest("POST", "/auth/register", body))
	if rec.Code != 201 {
		t.Fatalf("first register status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.Register(rec, jsonRequest("POST", "/auth/register", body))
	if rec.Code != 409 {
		t.Fatalf("second register status = %d, want 409", rec.Code)
	}
}

func TestLoginBadCredentialsIndistinguishable(t *testing.T) {
	users := newFakeUsers()
	h := NewAuthHandler(users, auth.NewTokens("s", time.Hour))

	rec := httptest.NewRecorder()
	h.Register(rec, jsonRequest("POST", "/auth/register", map[string]any{
		"email": "a@b.c", "password": "longenough",
	}))

	var unknownUser, wrongPassword apierror.Envelope

	rec = httptest.NewRecorder()
	h.Login(rec, jsonRequest("POST", "/auth/login", map[string]any{
		"email": "nobody@b.c", "password": "longenough",
	}))
	if rec.Code != 401 {
		t.Fatalf("unknown user status = %d", rec.Code)
	}
	decodeBody(t, rec, &unknownUser)

	rec = httptest.NewRecorder()
	h.Login(rec, jsonRequest("POST", "/auth/login", map[string]any{
		"email": "a@b.c", "password": "wrongwrongwrong",
	}))
	if rec.Code != 401 {
		t.Fatalf("wrong password status = %d", rec.Code)
	}
	decodeBody(t, rec, &wrongPassword)

	if unknownUser.Error.Message != wrongPassword.Error.Message {
		t.Fatalf("messages differ: %q vs %q", unknownUser.Error.Message, wrongPassword.Error.Message)
	}
}
