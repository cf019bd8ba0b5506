package events

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/vtn/core/eventlog"
	"github.com/kilianp07/vtn/infra/metrics"
)

// RouterConfig lists what the router serves. Store, Queue and Gatherer are
// optional.
type RouterConfig struct {
	Service  Admin
	Store    eventlog.LogStore
	Queue    Drainer
	Gatherer prometheus.Gatherer
	// Token, when set, is accepted as "Bearer <token>" on every /api route.
	Token string
	// JWTSecret, when set, also accepts HS256 tokens signed with it.
	JWTSecret string
	JWTIssuer string
}

// NewRouter mounts the event routes, the audit log and /metrics.
func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()
	auth := func(h http.Handler) http.Handler {
		return RequireAuth(AuthConfig{Token: cfg.Token, JWTSecret: cfg.JWTSecret, JWTIssuer: cfg.JWTIssuer}, h)
	}
	mux.Handle("GET /api/events", auth(NewListHandler(cfg.Service)))
	mux.Handle("POST /api/events", auth(NewAddHandler(cfg.Service)))
	mux.Handle("DELETE /api/events/{id}", auth(NewCancelHandler(cfg.Service)))
	if cfg.Store != nil {
		mux.Handle("GET /api/events/logs", auth(NewLogHandler(cfg.Store)))
	}
	if cfg.Queue != nil {
		mux.Handle("GET /api/vens/{ven}/events", auth(NewQueueHandler(cfg.Queue)))
	}
	mux.Handle("GET /metrics", metrics.Handler(cfg.Gatherer))
	return mux
}
