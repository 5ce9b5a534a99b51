// Package notify turns notifications into toasts stacked in the session.
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/machineskills/console/internal/media"
	"github.com/machineskills/console/internal/shared"
)

// DefaultDismiss is how long a toast stays visible.
const DefaultDismiss = 4200 * time.Millisecond

// SessionSink implements media.Notifier by queueing flash messages in the
// session found in the request context.
type SessionSink struct {
	dismiss time.Duration
	logger  *slog.Logger
}

// NewSessionSink constructs a sink whose toasts auto-dismiss after dismiss.
func NewSessionSink(dismiss time.Duration, logger *slog.Logger) *SessionSink {
	if dismiss <= 0 {
		dismiss = DefaultDismiss
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionSink{dismiss: dismiss, logger: logger}
}

// Notify queues a toast. Without a session the message is only logged.
func (s *SessionSink) Notify(ctx context.Context, message string, severity media.Severity) {
	sess := shared.SessionFromContext(ctx)
	if sess == nil {
		s.logger.Warn("notification without session", slog.String("severity", string(severity)), slog.String("message", message))
		return
	}
	sess.AddFlash(shared.FlashMessage{
		Kind:      string(severity),
		Message:   message,
		DismissMS: s.dismiss.Milliseconds(),
	})
}
