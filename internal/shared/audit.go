package shared

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// AuditLog represents a record stored in console_audit_logs.
type AuditLog struct {
	Actor    string
	Action   string
	Entity   string
	EntityID string
	Meta     map[string]any
	At       time.Time
}

// AuditRecorder persists audit entries.
type AuditRecorder interface {
	Record(ctx context.Context, log AuditLog) error
}

// Execer runs a statement; *pgxpool.Pool satisfies it.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const insertAuditLog = `INSERT INTO console_audit_logs (actor, action, entity, entity_id, meta, occurred_at)
VALUES ($1, $2, $3, $4, $5, COALESCE($6, NOW()))`

// AuditLogger writes records into console_audit_logs.
type AuditLogger struct {
	pool Execer
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(pool Execer) *AuditLogger {
	return &AuditLogger{pool: pool}
}

// Record persists the log entry.
func (l *AuditLogger) Record(ctx context.Context, log AuditLog) error {
	if l == nil || l.pool == nil {
		return errors.New("audit logger not initialised")
	}
	if err := log.validate(); err != nil {
		return err
	}
	if log.Meta == nil {
		log.Meta = map[string]any{}
	}
	metaJSON, err := json.Marshal(log.Meta)
	if err != nil {
		return fmt.Errorf("audit: encode meta: %w", err)
	}
	var at *time.Time
	if !log.At.IsZero() {
		at = &log.At
	}
	if _, err := l.pool.Exec(ctx, insertAuditLog, log.Actor, log.Action, log.Entity, log.EntityID, metaJSON, at); err != nil {
		return fmt.Errorf("audit: insert %s %s: %w", log.Entity, log.EntityID, err)
	}
	return nil
}

// NopAuditRecorder validates and discards entries. It is used without PG_DSN.
type NopAuditRecorder struct{}

// Record implements AuditRecorder.
func (NopAuditRecorder) Record(_ context.Context, log AuditLog) error {
	return log.validate()
}

func (log AuditLog) validate() error {
	if log.Action == "" || log.Entity == "" || log.EntityID == "" {
		return errors.New("audit log requires action/entity/entity_id")
	}
	return nil
}

// ActorFromContext returns the admin signed in on the request session.
func ActorFromContext(ctx context.Context) string {
	if sess := SessionFromContext(ctx); sess != nil {
		return sess.User()
	}
	return ""
}
