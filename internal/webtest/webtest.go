// Package webtest runs handlers against a Redis backed session the way the
// middleware stack does.
package webtest

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/machineskills/console/internal/backend"
	"github.com/machineskills/console/internal/notify"
	"github.com/machineskills/console/internal/shared"
	"github.com/machineskills/console/internal/view"
)

// Harness carries one browser session across requests.
type Harness struct {
	t        *testing.T
	Redis    *miniredis.Miniredis
	Sessions *shared.SessionManager
	CSRF     *shared.CSRFManager
	Pages    *view.Responder
	Logger   *slog.Logger

	cookie string
}

// New starts miniredis and parses the embedded templates.
func New(t *testing.T) *Harness {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	sessions := shared.NewSessionManager(client, "console_session", "session-secret", time.Hour, false)
	csrf := shared.NewCSRFManager("csrf-secret")
	engine, err := view.NewEngine()
	if err != nil {
		t.Fatalf("templates: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &Harness{
		t:        t,
		Redis:    mr,
		Sessions: sessions,
		CSRF:     csrf,
		Logger:   logger,
		Pages: &view.Responder{
			Engine:   engine,
			CSRF:     csrf,
			Sessions: sessions,
			Logger:   logger,
			Toasts:   notify.NewSessionSink(notify.DefaultDismiss, logger),
		},
	}
}

// Login stores a signed in session and returns its ID.
func (h *Harness) Login(token, name string) string {
	h.t.Helper()
	var id string
	h.WithSession(func(sess *shared.Session) {
		sess.SetUser("admin-1")
		sess.Set(shared.SessionTokenKey, token)
		sess.Set(shared.SessionAdminNameKey, name)
		id = sess.ID
	})
	return id
}

// WithSession loads the current session, lets fn mutate it and persists it.
func (h *Harness) WithSession(fn func(sess *shared.Session)) {
	h.t.Helper()
	req := h.Attach(httptest.NewRequest(http.MethodGet, "/", nil))
	sess, err := h.Sessions.Load(context.Background(), req)
	if err != nil {
		h.t.Fatalf("load session: %v", err)
	}
	fn(sess)
	h.commit(req, sess)
}

// Flashes pops the toasts queued in the session.
func (h *Harness) Flashes() []shared.FlashMessage {
	var out []shared.FlashMessage
	h.WithSession(func(sess *shared.Session) { out = sess.PopFlashes() })
	return out
}

// SessionValue reads a session value.
func (h *Harness) SessionValue(key string) string {
	var v string
	h.WithSession(func(sess *shared.Session) { v = sess.Get(key) })
	return v
}

// Do serves req through handler with the session and backend token in context.
func (h *Harness) Do(handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	h.t.Helper()
	req = h.Attach(req)
	sess, err := h.Sessions.Load(req.Context(), req)
	if err != nil {
		h.t.Fatalf("load session: %v", err)
	}
	ctx := shared.ContextWithSession(req.Context(), sess)
	if token := sess.Get(shared.SessionTokenKey); token != "" {
		ctx = backend.WithToken(ctx, token)
	}
	req = req.WithContext(ctx)

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	h.commit(req, sess)
	return res
}

// Attach adds the harness session cookie to req.
func (h *Harness) Attach(req *http.Request) *http.Request {
	if h.cookie != "" {
		req.AddCookie(&http.Cookie{Name: h.Sessions.CookieName(), Value: h.cookie})
	}
	return req
}

func (h *Harness) commit(req *http.Request, sess *shared.Session) {
	h.t.Helper()
	rec := httptest.NewRecorder()
	if err := h.Sessions.Commit(context.Background(), rec, req, sess); err != nil {
		h.t.Fatalf("commit session: %v", err)
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name != h.Sessions.CookieName() {
			continue
		}
		if c.MaxAge < 0 {
			h.cookie = ""
		} else {
			h.cookie = c.Value
		}
	}
}

// PostForm builds a urlencoded POST request.
func PostForm(target string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

// Upload is one file part of a multipart request.
type Upload struct {
	Field string
	Name  string
	Body  []byte
}

// PostMultipart builds a multipart POST request.
func PostMultipart(t *testing.T, target string, values url.Values, uploads ...Upload) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for key, vals := range values {
		for _, v := range vals {
			if err := mw.WriteField(key, v); err != nil {
				t.Fatalf("write field: %v", err)
			}
		}
	}
	for _, u := range uploads {
		part, err := mw.CreateFormFile(u.Field, u.Name)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		if _, err := part.Write(u.Body); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// PNG is a minimal PNG image.
var PNG = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a,
	0x00, 0x00, 0x00, 0x0d, 0x49, 0x48, 0x44, 0x52,
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4,
	0x89, 0x00, 0x00, 0x00, 0x0d, 0x49, 0x44, 0x41,
	0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00,
	0x00, 0x00, 0x00, 0x49, 0x45, 0x4e, 0x44, 0xae,
	0x42, 0x60, 0x82,
}
