package events

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/kilianp07/vtn/core/eventlog"
)

// NewLogHandler returns an HTTP handler exposing the audit trail via
// GET /api/events/logs.
func NewLogHandler(store eventlog.LogStore) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := eventlog.LogQuery{}
		if s := r.URL.Query().Get("start"); s != "" {
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				q.Start = t
			}
		}
		if s := r.URL.Query().Get("end"); s != "" {
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				q.End = t
			}
		}
		q.VenID = r.URL.Query().Get("ven_id")
		q.EventID = r.URL.Query().Get("event_id")
		q.Kind = r.URL.Query().Get("kind")
		records, err := store.Query(r.Context(), q)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if records == nil {
			records = []eventlog.LogRecord{}
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(records); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}
