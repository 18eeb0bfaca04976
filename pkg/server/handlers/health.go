package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// HealthHandler answers liveness probes.
type HealthHandler struct{}

func (h HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

// Pinger reports whether a backing service is reachable. Satisfied by
// *store.Store and the redis-backed interview store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadyHandler answers readiness probes by checking the backing stores.
type ReadyHandler struct {
	DB    Pinger
	Cache Pinger
}

func (h ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	type readyResp struct {
		OK     bool     `json:"ok"`
		Issues []string `json:"issues,omitempty"`
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	issues := make([]string, 0, 2)
	if h.DB != nil {
		if err := h.DB.Ping(ctx); err != nil {
			issues = append(issues, "database unreachable: "+err.Error())
		}
	}
	if h.Cache != nil {
		if err := h.Cache.Ping(ctx); err != nil {
			issues = append(issues, "cache unreachable: "+err.Error())
		}
	}

	ok := len(issues) == 0
	status := http.StatusOK
	if !ok {
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(readyResp{OK: ok, Issues: issues})
}
