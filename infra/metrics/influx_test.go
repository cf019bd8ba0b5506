package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/vtn/core/metrics"
)

type lineServer struct {
	*httptest.Server
	mu     sync.Mutex
	bodies []string
}

func newLineServer(t *testing.T) *lineServer {
	ls := &lineServer{}
	ls.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		ls.mu.Lock()
		ls.bodies = append(ls.bodies, strings.TrimSpace(string(b)))
		ls.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(ls.Close)
	return ls
}

func (ls *lineServer) got() []string {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return append([]string(nil), ls.bodies...)
}

func line(p *write.Point) string {
	return strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond))
}

func TestInfluxSink_RecordTransition(t *testing.T) {
	srv := newLineServer(t)
	sink := NewInfluxSink(InfluxConfig{URL: srv.URL, Token: "token", Org: "org", Bucket: "bucket"})
	defer sink.Close()
	now := time.Now()
	rec := coremetrics.TransitionRecord{
		VenID: "ven1", EventID: "evt1", From: "far", To: "cancelled",
		ModificationNumber: 2, Time: now,
	}
	if err := sink.RecordTransition(rec); err != nil {
		t.Fatalf("record error: %v", err)
	}
	p := write.NewPointWithMeasurement("event_transition").
		AddTag("ven_id", "ven1").
		AddTag("event_id", "evt1").
		AddTag("status", "cancelled").
		AddField("from", "far").
		AddField("modification_number", int64(2)).
		SetTime(now)
	if got := srv.got(); len(got) != 1 || got[0] != line(p) {
		t.Errorf("unexpected body: %#v", got)
	}
}

func TestInfluxSink_RecordDecision(t *testing.T) {
	srv := newLineServer(t)
	sink := NewInfluxSink(InfluxConfig{URL: srv.URL + "/api/v2/write", Org: "org", Bucket: "bucket"})
	defer sink.Close()
	now := time.Now()
	rec := coremetrics.DecisionRecord{VenID: "ven1", EventID: "evt1", OptType: "optIn", Source: "pending", Time: now}
	if err := sink.RecordDecision(rec); err != nil {
		t.Fatalf("record: %v", err)
	}
	p := write.NewPointWithMeasurement("event_decision").
		AddTag("ven_id", "ven1").
		AddTag("event_id", "evt1").
		AddTag("opt_type", "optIn").
		AddTag("source", "pending").
		AddField("callback_ok", true).
		AddField("errors", "").
		SetTime(now)
	if got := srv.got(); len(got) != 1 || got[0] != line(p) {
		t.Errorf("bodies: %#v", got)
	}
}

func TestInfluxSink_RecordRequest(t *testing.T) {
	srv := newLineServer(t)
	sink := NewInfluxSink(InfluxConfig{URL: srv.URL, Org: "org", Bucket: "bucket"})
	defer sink.Close()
	now := time.Now()
	rec := coremetrics.RequestRecord{VenID: "ven1", Events: 2, Latency: 1500 * time.Microsecond, Time: now}
	if err := sink.RecordRequest(rec); err != nil {
		t.Fatalf("record: %v", err)
	}
	p := write.NewPointWithMeasurement("event_request").
		AddTag("ven_id", "ven1").
		AddTag("ok", "true").
		AddField("events", 2).
		AddField("latency_ms", 1.5).
		SetTime(now)
	if got := srv.got(); len(got) != 1 || got[0] != line(p) {
		t.Errorf("bodies: %#v", got)
	}
}

func TestInfluxSink_OfferAndDrop(t *testing.T) {
	srv := newLineServer(t)
	sink := NewInfluxSink(InfluxConfig{URL: srv.URL, Org: "org", Bucket: "bucket"})
	defer sink.Close()
	now := time.Now()
	if err := sink.RecordOffer(coremetrics.OfferRecord{VenID: "v", EventID: "e", Priority: 1, Time: now}); err != nil {
		t.Fatalf("offer: %v", err)
	}
	if err := sink.RecordQueueDrop(coremetrics.QueueDropRecord{VenID: "v", EventID: "e", Reason: "full", Time: now}); err != nil {
		t.Fatalf("drop: %v", err)
	}
	offer := write.NewPointWithMeasurement("event_offer").
		AddTag("ven_id", "v").
		AddTag("event_id", "e").
		AddField("priority", int64(1)).
		SetTime(now)
	drop := write.NewPointWithMeasurement("queue_drop").
		AddTag("ven_id", "v").
		AddTag("event_id", "e").
		AddField("reason", "full").
		SetTime(now)
	got := srv.got()
	if len(got) != 2 || got[0] != line(offer) || got[1] != line(drop) {
		t.Errorf("bodies: %#v", got)
	}
}

func TestNewInfluxSinkWithFallback(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			called = true
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	}))
	defer srv.Close()

	sink := NewInfluxSinkWithFallback(InfluxConfig{
		URL:    srv.URL + "/api/v2/write",
		Token:  "tok",
		Org:    "org",
		Bucket: "bucket",
	})
	if _, ok := sink.(*InfluxSink); ok {
		t.Fatalf("expected NopSink on failing health check")
	}
	if !called {
		t.Fatalf("health endpoint not called")
	}
}
