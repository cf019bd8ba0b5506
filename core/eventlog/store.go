// Package eventlog keeps an append-only audit trail of what the event service
// did: offers, requests, VEN decisions, status transitions and dropped pushes.
// The trail is for operators; it is never replayed to restore scheduled state.
package eventlog

import (
	"context"
	"fmt"
	"time"

	"github.com/kilianp07/vtn/core/factory"
)

// Record kinds.
const (
	KindOffer      = "offer"
	KindRequest    = "request"
	KindDecision   = "decision"
	KindTransition = "transition"
	KindQueueDrop  = "queue_drop"
)

// LogRecord captures one lifecycle step.
type LogRecord struct {
	Timestamp          time.Time `json:"timestamp"`
	Kind               string    `json:"kind"`
	VenID              string    `json:"ven_id"`
	EventID            string    `json:"event_id,omitempty"`
	OptType            string    `json:"opt_type,omitempty"`
	Source             string    `json:"source,omitempty"`
	From               string    `json:"from,omitempty"`
	To                 string    `json:"to,omitempty"`
	ModificationNumber uint      `json:"modification_number,omitempty"`
	Events             int       `json:"events,omitempty"`
	Error              string    `json:"error,omitempty"`
}

// LogQuery defines filters for retrieving records. Zero fields match
// everything.
type LogQuery struct {
	Start   time.Time
	End     time.Time
	VenID   string
	EventID string
	Kind    string
}

// Match reports whether r passes every filter of q.
func (q LogQuery) Match(r LogRecord) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.VenID != "" && r.VenID != q.VenID {
		return false
	}
	if q.EventID != "" && r.EventID != q.EventID {
		return false
	}
	if q.Kind != "" && r.Kind != q.Kind {
		return false
	}
	return true
}

// LogStore persists LogRecords and supports querying.
type LogStore interface {
	Append(ctx context.Context, rec LogRecord) error
	Query(ctx context.Context, q LogQuery) ([]LogRecord, error)
	Close() error
}

// Config selects and configures the store.
type Config struct {
	Enabled bool                 `json:"enabled"`
	Store   factory.ModuleConfig `json:"store"`
}

var storeRegistry = factory.NewRegistry[LogStore]()

// RegisterStore adds a store factory identified by name.
func RegisterStore(name string, f factory.Factory[LogStore]) error {
	return storeRegistry.Register(name, f)
}

// NewLogStore creates the store described by cfg.
func NewLogStore(cfg factory.ModuleConfig) (LogStore, error) {
	s, err := storeRegistry.Create(cfg)
	if err != nil {
		return nil, fmt.Errorf("event log: %w", err)
	}
	return s, nil
}

type pathConf struct {
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

func init() {
	_ = RegisterStore("jsonl", func(conf map[string]any) (LogStore, error) {
		var c pathConf
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		if c.Path == "" {
			return nil, fmt.Errorf("jsonl store: path required")
		}
		return NewJSONLStore(c.Path, c.MaxSizeMB, c.MaxBackups, c.MaxAgeDays)
	})
	_ = RegisterStore("sqlite", func(conf map[string]any) (LogStore, error) {
		var c pathConf
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		if c.Path == "" {
			return nil, fmt.Errorf("sqlite store: path required")
		}
		return NewSQLiteStore(c.Path)
	})
	_ = RegisterStore("postgres", func(conf map[string]any) (LogStore, error) {
		var c struct {
			URL string `json:"url"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		if c.URL == "" {
			return nil, fmt.Errorf("postgres store: url required")
		}
		return NewPostgresStore(c.URL)
	})
}
