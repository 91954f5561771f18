// Package audit records business events and the append-only placement
// attempt trail.
//
// Writes are non-blocking in spirit: LogEvent failures are logged via slog
// and swallowed, so a failing audit store never blocks the pipeline.
// AppendAttempt is the exception: the attempt trail is a durable artifact
// of the reconciler, so its errors propagate.
package audit

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/hazyhaar/weave/idgen"
)

// Event represents a domain-level event to record.
type Event struct {
	EventType  string
	EntityType string
	EntityID   string
	OwnerID    string
	Action     string
	Details    string // optional JSON
	Success    bool
}

// Attempt is one concrete placement execution attempt. Rows are never
// updated after insert.
type Attempt struct {
	ID                    string `json:"id"`
	OpportunityID         string `json:"opportunity_id"`
	TargetDomain          string `json:"target_domain"`
	PlacementMethod       string `json:"placement_method"`
	Success               bool   `json:"success"`
	VerificationAttempted bool   `json:"verification_attempted"`
	VerificationSuccess   bool   `json:"verification_success"`
	AttemptedAt           int64  `json:"attempted_at"`
}

// Logger writes audit rows.
type Logger struct {
	db    *sql.DB
	newID idgen.Generator
	log   *slog.Logger
}

// LoggerOption configures a Logger.
type LoggerOption func(*Logger)

// WithIDGenerator sets a custom ID generator for event and attempt IDs.
func WithIDGenerator(gen idgen.Generator) LoggerOption {
	return func(l *Logger) { l.newID = gen }
}

// NewLogger creates a Logger backed by the given database; apply Schema
// via dbopen.WithSchema at startup.
func NewLogger(db *sql.DB, opts ...LoggerOption) *Logger {
	l := &Logger{
		db:    db,
		newID: idgen.Default,
		log:   slog.Default(),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// LogEvent records a business event. Errors are logged, never returned.
func (l *Logger) LogEvent(ctx context.Context, event Event) {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO audit_events (
			event_id, event_type, entity_type, entity_id, owner_id, action, details, success, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		"evt_"+l.newID(), event.EventType, event.EntityType, event.EntityID,
		event.OwnerID, event.Action, event.Details, event.Success, time.Now().UnixMilli())
	if err != nil {
		l.log.Error("audit: event log failed", "error", err, "event_type", event.EventType)
	}
}

// AppendAttempt inserts one placement attempt row. AttemptedAt defaults
// to now when zero.
func (l *Logger) AppendAttempt(ctx context.Context, a Attempt) error {
	if a.ID == "" {
		a.ID = "att_" + l.newID()
	}
	if a.AttemptedAt == 0 {
		a.AttemptedAt = time.Now().UnixMilli()
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO placement_attempts (
			id, opportunity_id, target_domain, placement_method,
			success, verification_attempted, verification_success, attempted_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.OpportunityID, a.TargetDomain, a.PlacementMethod,
		a.Success, a.VerificationAttempted, a.VerificationSuccess, a.AttemptedAt)
	return err
}

// ListAttempts returns the attempts for one opportunity, oldest first.
func (l *Logger) ListAttempts(ctx context.Context, opportunityID string) ([]*Attempt, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, opportunity_id, target_domain, placement_method,
		       success, verification_attempted, verification_success, attempted_at
		FROM placement_attempts WHERE opportunity_id = ? ORDER BY attempted_at ASC, id ASC`,
		opportunityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []*Attempt
	for rows.Next() {
		var a Attempt
		if err := rows.Scan(&a.ID, &a.OpportunityID, &a.TargetDomain, &a.PlacementMethod,
			&a.Success, &a.VerificationAttempted, &a.VerificationSuccess, &a.AttemptedAt); err != nil {
			return nil, err
		}
		attempts = append(attempts, &a)
	}
	return attempts, rows.Err()
}
