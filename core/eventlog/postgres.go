package eventlog

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const pgSchema = `CREATE TABLE IF NOT EXISTS event_log (
	id BIGSERIAL PRIMARY KEY,
	ts TIMESTAMPTZ NOT NULL,
	kind TEXT NOT NULL,
	ven_id TEXT NOT NULL,
	event_id TEXT,
	record JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS event_log_ven ON event_log (ven_id, ts);
CREATE INDEX IF NOT EXISTS event_log_event ON event_log (event_id, ts);`

// PostgresStore persists records to PostgreSQL. Several VTN instances may
// share one database.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to dbURL, fails fast when the database is
// unreachable and ensures the schema exists.
func NewPostgresStore(dbURL string) (*PostgresStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("event log schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Append writes the record.
func (s *PostgresStore) Append(ctx context.Context, rec LogRecord) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO event_log (ts, kind, ven_id, event_id, record) VALUES ($1, $2, $3, $4, $5)`,
		rec.Timestamp, rec.Kind, rec.VenID, rec.EventID, b)
	return err
}

// Query returns records matching q in timestamp order.
func (s *PostgresStore) Query(ctx context.Context, q LogQuery) ([]LogRecord, error) {
	var args []any
	query := `SELECT record FROM event_log WHERE true`
	add := func(cond string, v any) {
		args = append(args, v)
		query += " AND " + cond + " $" + strconv.Itoa(len(args))
	}
	if !q.Start.IsZero() {
		add("ts >=", q.Start)
	}
	if !q.End.IsZero() {
		add("ts <=", q.End)
	}
	if q.VenID != "" {
		add("ven_id =", q.VenID)
	}
	if q.EventID != "" {
		add("event_id =", q.EventID)
	}
	if q.Kind != "" {
		add("kind =", q.Kind)
	}
	query += ` ORDER BY ts, id`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []LogRecord
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var r LogRecord
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("unmarshal record: %w", err)
		}
		res = append(res, r)
	}
	return res, rows.Err()
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// Close shuts down the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
