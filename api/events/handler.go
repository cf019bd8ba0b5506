// Package events exposes the event service to operators over HTTP.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/samber/lo"

	"github.com/kilianp07/vtn/core/model"
	"github.com/kilianp07/vtn/core/queue"
	"github.com/kilianp07/vtn/core/registry"
	"github.com/kilianp07/vtn/core/service"
)

// Admin is the part of the event service driven by the API.
type Admin interface {
	Snapshot(ctx context.Context) (service.Snapshot, error)
	AddEvent(ctx context.Context, venID string, ev model.Event, cb service.DecisionCallback) (string, error)
	CancelEvent(ctx context.Context, eventID string) error
}

// AddRequest is the body of POST /api/events.
type AddRequest struct {
	VenID string      `json:"ven_id"`
	Event model.Event `json:"event"`
}

// AddResponse is returned by POST /api/events. Warning is set when the event
// was registered but could not be pushed to the VEN.
type AddResponse struct {
	EventID string `json:"event_id"`
	Warning string `json:"warning,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// NewListHandler serves GET /api/events. The optional ven_id and state
// (pending or running) query parameters filter the result.
func NewListHandler(svc Admin) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		snap, err := svc.Snapshot(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		views := append(snap.Pending, snap.Running...)
		ven := r.URL.Query().Get("ven_id")
		state := r.URL.Query().Get("state")
		views = lo.Filter(views, func(v service.EventView, _ int) bool {
			return (ven == "" || v.VenID == ven) && (state == "" || v.State == state)
		})
		if views == nil {
			views = []service.EventView{}
		}
		writeJSON(w, http.StatusOK, views)
	})
}

// NewAddHandler serves POST /api/events. The offered event gets no decision
// callback of its own; decisions reach the service's default callback.
func NewAddHandler(svc Admin) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req AddRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			http.Error(w, "invalid body: "+err.Error(), http.StatusBadRequest)
			return
		}
		id, err := svc.AddEvent(r.Context(), req.VenID, req.Event, nil)
		switch {
		case err == nil:
			writeJSON(w, http.StatusCreated, AddResponse{EventID: id})
		case id != "" && (errors.Is(err, queue.ErrQueueFull) || errors.Is(err, queue.ErrClosed)):
			writeJSON(w, http.StatusAccepted, AddResponse{EventID: id, Warning: err.Error()})
		case errors.Is(err, registry.ErrDuplicateEventID):
			http.Error(w, err.Error(), http.StatusConflict)
		case errors.Is(err, service.ErrStopped), errors.Is(err, context.Canceled):
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
		default:
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
	})
}

// NewCancelHandler serves DELETE /api/events/{id}.
func NewCancelHandler(svc Admin) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := svc.CancelEvent(r.Context(), r.PathValue("id"))
		switch {
		case err == nil:
			w.WriteHeader(http.StatusNoContent)
		case errors.Is(err, service.ErrEventNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, service.ErrEventFinished):
			http.Error(w, err.Error(), http.StatusConflict)
		case errors.Is(err, queue.ErrQueueFull), errors.Is(err, queue.ErrClosed):
			writeJSON(w, http.StatusAccepted, AddResponse{EventID: r.PathValue("id"), Warning: err.Error()})
		default:
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
		}
	})
}

// Drainer hands out the events queued for a VEN.
type Drainer interface {
	Drain(venID string) []model.Event
}

// NewQueueHandler serves GET /api/vens/{ven}/events: it removes and returns
// every event queued for the VEN. VENs without a broker poll it.
func NewQueueHandler(q Drainer) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		evs := q.Drain(r.PathValue("ven"))
		if evs == nil {
			evs = []model.Event{}
		}
		writeJSON(w, http.StatusOK, evs)
	})
}
