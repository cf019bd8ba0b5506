// Package app assembles the VTN process from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	apievents "github.com/kilianp07/vtn/api/events"
	"github.com/kilianp07/vtn/app/plugins"
	"github.com/kilianp07/vtn/config"
	"github.com/kilianp07/vtn/core/eventlog"
	coremetrics "github.com/kilianp07/vtn/core/metrics"
	coremon "github.com/kilianp07/vtn/core/monitoring"
	"github.com/kilianp07/vtn/core/queue"
	"github.com/kilianp07/vtn/core/service"
	"github.com/kilianp07/vtn/infra/logger"
	"github.com/kilianp07/vtn/infra/metrics"
	"github.com/kilianp07/vtn/infra/monitoring"
	"github.com/kilianp07/vtn/infra/mqtt"
	"github.com/kilianp07/vtn/internal/eventbus"
)

// Service wires the event service to its transports, sinks and stores.
type Service struct {
	Events *service.EventService

	cfg       *config.Config
	bus       *eventbus.Bus
	sink      coremetrics.MetricsSink
	store     eventlog.LogStore
	mon       coremon.Monitor
	memQueue  *queue.MemoryQueue
	transport *mqtt.Transport
	outbox    *mqtt.Outbox
	log       logger.Logger
}

// New creates a Service from the configuration. With a broker configured,
// events are delivered over MQTT; otherwise they wait in memory until the VEN
// polls the admin API.
func New(cfg *config.Config) (*Service, error) {
	if err := logger.SetLevel(cfg.Log.Level); err != nil {
		return nil, err
	}
	s := &Service{cfg: cfg, log: logger.New("service"), bus: eventbus.New()}

	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, err
	}
	coremon.Init(mon)
	s.mon = mon

	if s.sink, err = coremetrics.NewMetricsSink(cfg.Metrics.Sinks); err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}
	if cfg.EventLog.Enabled {
		if s.store, err = eventlog.NewLogStore(cfg.EventLog.Store); err != nil {
			return nil, fmt.Errorf("event log: %w", err)
		}
	}

	var q queue.OutboundQueue
	if cfg.MQTTEnabled() {
		if s.transport, err = mqtt.NewTransport(cfg.MQTT); err != nil {
			s.closeStore()
			return nil, fmt.Errorf("mqtt client: %w", err)
		}
		s.outbox = mqtt.NewOutbox(s.transport, s.topics(), cfg.Service.VTNID, cfg.MQTT.OutboxSize, logger.New("mqtt_outbox"))
		q = s.outbox
	} else {
		s.memQueue = queue.NewMemoryQueue(cfg.Queue.Size)
		q = s.memQueue
	}

	deps := &plugins.Deps{Log: logger.New("hooks")}
	hooks, err := plugins.BuildHooks(cfg.Hooks, deps)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.Events, err = service.NewEventService(cfg.Service, q,
		service.WithHooks(hooks),
		service.WithBus(s.bus),
		service.WithLogger(logger.New("event_service")),
		service.WithMonitor(mon),
		service.WithRetention(cfg.Scheduler),
	)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("event service: %w", err)
	}
	deps.Pending = s.Events.PendingFor
	return s, nil
}

func (s *Service) topics() mqtt.Topics { return mqtt.Topics{Prefix: s.cfg.MQTT.TopicPrefix} }

// Handler returns the admin API handler.
func (s *Service) Handler() http.Handler {
	rc := apievents.RouterConfig{
		Service:   s.Events,
		Store:     s.store,
		Gatherer:  prometheus.DefaultGatherer,
		Token:     s.cfg.HTTP.Token,
		JWTSecret: s.cfg.HTTP.JWTSecret,
		JWTIssuer: s.cfg.HTTP.JWTIssuer,
	}
	if s.memQueue != nil {
		rc.Queue = s.memQueue
	}
	return apievents.NewRouter(rc)
}

// Run starts every component and blocks until ctx is cancelled or one of
// them fails.
func (s *Service) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	if s.outbox != nil {
		srv := mqtt.NewServer(s.transport, s.topics(), s.Events, logger.New("mqtt_server"))
		if err := srv.Start(ctx); err != nil {
			return fmt.Errorf("mqtt server: %w", err)
		}
		g.Go(func() error {
			s.outbox.Run(ctx)
			return nil
		})
	}

	collectorDone := metrics.StartEventCollector(ctx, s.bus, s.sink, logger.New("metrics_collector"))
	recorderDone := closedChan()
	if s.store != nil {
		recorderDone = eventlog.StartRecorder(ctx, s.bus, s.store, logger.New("eventlog"))
	}

	g.Go(func() error { return s.Events.Run(ctx) })
	if s.cfg.HTTP.Enabled() {
		g.Go(func() error { return s.serveHTTP(ctx) })
	}
	if addr := s.cfg.Metrics.PrometheusAddr; addr != "" {
		g.Go(func() error { return metrics.StartPromServer(ctx, addr) })
	}
	s.log.Infof("VTN %s running (polling mode %s)", s.cfg.Service.VTNID, s.cfg.Service.PollingMode)

	err := g.Wait()
	s.bus.Close()
	<-collectorDone
	<-recorderDone
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func closedChan() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

func (s *Service) serveHTTP(ctx context.Context) error {
	srv := &http.Server{Addr: s.cfg.HTTP.Addr, Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Errorf("http shutdown: %v", err)
		}
	}()
	s.log.Infof("serving admin API on %s", s.cfg.HTTP.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Service) closeStore() {
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.log.Errorf("close event log: %v", err)
		}
	}
}

// Close releases resources held by the service.
func (s *Service) Close() {
	if s.outbox != nil {
		s.outbox.Close()
	}
	if s.transport != nil {
		s.transport.Disconnect()
	}
	if s.memQueue != nil {
		s.memQueue.Close()
	}
	if c, ok := s.sink.(interface{ Close() }); ok {
		c.Close()
	}
	s.closeStore()
	s.mon.Flush(2 * time.Second)
}
