package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/vtn/core/metrics"
	"github.com/kilianp07/vtn/infra/logger"
)

// InfluxConfig locates the InfluxDB bucket receiving lifecycle points.
type InfluxConfig struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
}

// InfluxSink writes lifecycle records to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(cfg InfluxConfig) *InfluxSink {
	base := strings.TrimSuffix(cfg.URL, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(cfg InfluxConfig) coremetrics.MetricsSink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// Close releases the HTTP client.
func (s *InfluxSink) Close() { s.client.Close() }

func (s *InfluxSink) write(p *write.Point) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordTransition writes an event_transition point.
func (s *InfluxSink) RecordTransition(r coremetrics.TransitionRecord) error {
	p := write.NewPointWithMeasurement("event_transition").
		AddTag("ven_id", r.VenID).
		AddTag("event_id", r.EventID).
		AddTag("status", r.To).
		AddField("from", r.From).
		AddField("modification_number", int64(r.ModificationNumber)).
		SetTime(r.Time)
	return s.write(p)
}

// RecordDecision writes an event_decision point.
func (s *InfluxSink) RecordDecision(r coremetrics.DecisionRecord) error {
	p := write.NewPointWithMeasurement("event_decision").
		AddTag("ven_id", r.VenID).
		AddTag("event_id", r.EventID).
		AddTag("opt_type", r.OptType).
		AddTag("source", r.Source).
		AddField("callback_ok", r.Error == "").
		AddField("errors", r.Error).
		SetTime(r.Time)
	return s.write(p)
}

// RecordRequest writes an event_request point.
func (s *InfluxSink) RecordRequest(r coremetrics.RequestRecord) error {
	p := write.NewPointWithMeasurement("event_request").
		AddTag("ven_id", r.VenID).
		AddTag("ok", strconv.FormatBool(r.Error == "")).
		AddField("events", r.Events).
		AddField("latency_ms", round3(r.Latency.Seconds()*1000)).
		SetTime(r.Time)
	return s.write(p)
}

// RecordOffer writes an event_offer point.
func (s *InfluxSink) RecordOffer(r coremetrics.OfferRecord) error {
	p := write.NewPointWithMeasurement("event_offer").
		AddTag("ven_id", r.VenID).
		AddTag("event_id", r.EventID).
		AddField("priority", int64(r.Priority)).
		SetTime(r.Time)
	return s.write(p)
}

// RecordQueueDrop writes a queue_drop point.
func (s *InfluxSink) RecordQueueDrop(r coremetrics.QueueDropRecord) error {
	p := write.NewPointWithMeasurement("queue_drop").
		AddTag("ven_id", r.VenID).
		AddTag("event_id", r.EventID).
		AddField("reason", r.Reason).
		SetTime(r.Time)
	return s.write(p)
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
