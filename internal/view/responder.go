package view

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/machineskills/console/internal/backend"
	"github.com/machineskills/console/internal/media"
	"github.com/machineskills/console/internal/notify"
	"github.com/machineskills/console/internal/shared"
)

// LoginPath is where expired sessions are sent.
const LoginPath = "/auth/login"

// Responder renders pages inside the session envelope and turns backend
// failures into toasts.
type Responder struct {
	Engine   *Engine
	CSRF     *shared.CSRFManager
	Sessions *shared.SessionManager
	Logger   *slog.Logger
	// Toasts queues flash toasts. Nil uses a session sink with the default
	// dismiss delay.
	Toasts media.Notifier
	// OnSessionEnd runs after a session was destroyed because the backend
	// rejected its token.
	OnSessionEnd func(ctx context.Context, sessionID string)
}

// Render writes template with status. Pending toasts are consumed.
func (p *Responder) Render(w http.ResponseWriter, r *http.Request, title, template string, data map[string]any, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := p.CSRF.EnsureToken(r.Context(), sess)
	viewData := TemplateData{Title: title, CSRFToken: csrfToken, CurrentPath: r.URL.Path, Data: data}
	if sess != nil {
		viewData.Flashes = sess.PopFlashes()
		viewData.Admin = sess.Get(shared.SessionAdminNameKey)
	}
	var buf bytes.Buffer
	if err := p.Engine.Execute(&buf, template, viewData); err != nil {
		p.Logger.Error("render template", slog.String("template", template), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// Flash queues an auto-dismissing toast in the current session. Empty
// messages are dropped.
func (p *Responder) Flash(r *http.Request, kind, message string) {
	if message == "" {
		return
	}
	toasts := p.Toasts
	if toasts == nil {
		toasts = notify.NewSessionSink(0, p.Logger)
	}
	toasts.Notify(r.Context(), message, media.Severity(kind))
}

// RedirectWithFlash queues a toast and redirects with 303.
func (p *Responder) RedirectWithFlash(w http.ResponseWriter, r *http.Request, location, kind, message string) {
	p.Flash(r, kind, message)
	http.Redirect(w, r, location, http.StatusSeeOther)
}

// BackendError reports err and redirects to location. A rejected token ends
// the session and redirects to the login page instead.
func (p *Responder) BackendError(w http.ResponseWriter, r *http.Request, err error, location, fallback string) {
	if p.EndIfUnauthorized(w, r, err) {
		return
	}
	p.Logger.Error("backend request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	p.RedirectWithFlash(w, r, location, "error", UserMessage(err, fallback))
}

// EndIfUnauthorized destroys the session when err is a backend 401 and
// redirects to the login page. It reports whether it handled the request.
func (p *Responder) EndIfUnauthorized(w http.ResponseWriter, r *http.Request, err error) bool {
	if !backend.IsUnauthorized(err) {
		return false
	}
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		id := sess.ID
		p.Sessions.Destroy(sess)
		if p.OnSessionEnd != nil {
			p.OnSessionEnd(r.Context(), id)
		}
	}
	p.Logger.Info("backend rejected session token", slog.String("path", r.URL.Path))
	http.Redirect(w, r, LoginPath, http.StatusSeeOther)
	return true
}

// UserMessage returns the backend validation message when there is one.
func UserMessage(err error, fallback string) string {
	var verr *backend.ValidationError
	if errors.As(err, &verr) && len(verr.Messages) > 0 {
		return strings.Join(verr.Messages, "; ")
	}
	if errors.Is(err, backend.ErrNotFound) {
		return "The record no longer exists"
	}
	return fallback
}
