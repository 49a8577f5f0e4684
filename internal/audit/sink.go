// Package audit records login-page visits to the request_logs table.
// Logging is best effort: a failed insert is logged and forgotten, and it
// never delays or fails the request being audited.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// Entry is one audited request.
type Entry struct {
	ClientIP  string
	Timestamp time.Time
	Method    string
	UserAgent string
}

// Sink persists audit entries.
type Sink interface {
	InsertRequestLog(ctx context.Context, e Entry) error
}

// SQLSink writes entries to the request_logs table.
type SQLSink struct {
	db *sql.DB
}

// NewSQLSink creates a sink over the given connection pool.
func NewSQLSink(db *sql.DB) *SQLSink {
	return &SQLSink{db: db}
}

// InsertRequestLog inserts one row.
func (s *SQLSink) InsertRequestLog(ctx context.Context, e Entry) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO request_logs (client_ip, created_at, method, user_agent) VALUES (?, ?, ?, ?)",
		e.ClientIP, e.Timestamp, e.Method, e.UserAgent,
	)
	if err != nil {
		return fmt.Errorf("inserting request log: %w", err)
	}
	return nil
}

// NopSink is used when no database is configured.
type NopSink struct{}

// InsertRequestLog discards the entry.
func (NopSink) InsertRequestLog(context.Context, Entry) error { return nil }

// Record writes an entry to the sink in the background with its own
// bounded timeout, detached from the request context so a client
// disconnect doesn't abort the insert. Failures are swallowed.
func Record(sink Sink, timeout time.Duration, e Entry) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := sink.InsertRequestLog(ctx, e); err != nil {
			slog.Warn("request log insert failed",
				slog.String("client_ip", e.ClientIP),
				slog.Any("error", err),
			)
		}
	}()
}
