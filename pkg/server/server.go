// Package server assembles the platform API: routes, middleware, and the
// HTTP server lifecycle.
package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hireloop/interviewd/pkg/llm"
	"github.com/hireloop/interviewd/pkg/server/auth"
	"github.com/hireloop/interviewd/pkg/server/config"
	"github.com/hireloop/interviewd/pkg/server/handlers"
	"github.com/hireloop/interviewd/pkg/server/mw"
	"github.com/hireloop/interviewd/pkg/store"
)

// Deps are the backing services the server routes to.
type Deps struct {
	Store      *store.Store
	Interviews handlers.InterviewStore
	Artifacts  handlers.Artifacts
	Rooms      handlers.RoomControl
	Feedback   llm.Client

	// CachePinger backs the readiness probe; usually the interview store.
	CachePinger handlers.Pinger
}

// Server is the platform API.
type Server struct {
	cfg    config.Config
	logger *slog.Logger
	mux    *http.ServeMux
	tokens *auth.Tokens
	deps   Deps

	httpServer *http.Server
}

// New assembles the server. deps.Store must be non-nil; the media,
// storage, and feedback dependencies may be nil, in which case the
// routes that need them return internal errors.
func New(cfg config.Config, deps Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:    cfg,
		logger: logger,
		mux:    http.NewServeMux(),
		tokens: auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL),
		deps:   deps,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	authH := handlers.NewAuthHandler(s.deps.Store, s.tokens)
	usersH := handlers.NewUsersHandler(s.deps.Store)
	jobsH := handlers.NewJobsHandler(s.deps.Store)
	appsH := handlers.NewApplicationsHandler(s.deps.Store, s.deps.Store)
	roomsH := handlers.NewRoomsHandler(s.deps.Store)
	callsH := handlers.NewCallsHandler(handlers.CallsConfig{
		MediaURL:       s.cfg.MediaURL,
		MediaAPIKey:    s.cfg.MediaAPIKey,
		MediaAPISecret: s.cfg.MediaAPISecret,
		S3Bucket:       s.cfg.S3Bucket,
		S3Region:       s.cfg.S3Region,
		S3Endpoint:     s.cfg.S3Endpoint,
		S3AccessKey:    s.cfg.S3AccessKey,
		S3SecretKey:    s.cfg.S3SecretKey,
		PresignTTL:     s.cfg.PresignTTL,
		FeedbackModel:  s.cfg.FeedbackModel,
	}, s.deps.Store, s.deps.Rooms, s.deps.Artifacts, s.deps.Interviews, s.deps.Feedback)

	// Public surface.
	s.mux.Handle("GET /healthz", handlers.HealthHandler{})
	s.mux.Handle("GET /readyz", handlers.ReadyHandler{DB: s.deps.Store, Cache: s.deps.CachePinger})
	s.mux.Handle("GET /metrics", promhttp.Handler())
	s.mux.HandleFunc("POST /auth/register", authH.Register)
	s.mux.HandleFunc("POST /auth/login", authH.Login)
	// The interview agent personalizes sessions from this read, so it
	// stays outside platform auth.
	s.mux.HandleFunc("GET /users/{id}", usersH.Get)
	s.mux.HandleFunc("GET /jobs", jobsH.List)
	s.mux.HandleFunc("GET /jobs/{id}", jobsH.Get)

	// Authenticated surface.
	authed := func(h http.HandlerFunc) http.Handler {
		return mw.Auth(s.tokens, h)
	}
	s.mux.Handle("GET /users/me", authed(usersH.Me))
	s.mux.Handle("PUT /users/me/profile", authed(usersH.UpdateProfile))
	s.mux.Handle("POST /jobs", authed(jobsH.Create))
	s.mux.Handle("DELETE /jobs/{id}", authed(jobsH.Delete))
	s.mux.Handle("POST /jobs/{id}/apply", authed(appsH.Apply))
	s.mux.Handle("GET /jobs/{id}/applications", authed(appsH.ListForJob))
	s.mux.Handle("GET /applications", authed(appsH.ListMine))
	s.mux.Handle("PUT /applications/{id}/status", authed(appsH.UpdateStatus))
	s.mux.Handle("POST /rooms", authed(roomsH.Create))
	s.mux.Handle("GET /rooms", authed(roomsH.List))
	s.mux.Handle("GET /rooms/{id}", authed(roomsH.Get))
	s.mux.Handle("POST /rooms/{id}/participants", authed(roomsH.AddParticipants))
	s.mux.Handle("DELETE /rooms/{id}/participants/{user_id}", authed(roomsH.RemoveParticipant))
	s.mux.Handle("POST /calls/room", authed(callsH.CreateRoom))
	s.mux.Handle("DELETE /calls/room", authed(callsH.DeleteRoom))
	s.mux.Handle("POST /calls/interview", authed(callsH.RequestInterview))
	s.mux.Handle("GET /calls/interview", authed(callsH.GetInterview))
	s.mux.Handle("DELETE /calls/interview", authed(callsH.CancelInterview))
	s.mux.Handle("GET /calls/recordings", authed(callsH.ListRecordings))
	s.mux.Handle("POST /calls/egress", authed(callsH.StartEgress))
	s.mux.Handle("POST /calls/analyze", authed(callsH.AnalyzeLog))
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = mw.Metrics(s.mux, h)
	h = mw.CORS(s.cfg.CORSAllowedOrigins, h)
	h = mw.Recover(s.logger, h)
	h = mw.AccessLog(s.logger, h)
	h = mw.RequestID(h)
	return h
}

// ListenAndServe runs the server until the listener fails.
func (s *Server) ListenAndServe() error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
		ReadTimeout:       s.cfg.ReadTimeout,
	}
	s.logger.Info("platform api listening", "addr", s.cfg.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
