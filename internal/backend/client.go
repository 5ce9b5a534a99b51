package backend

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Config controls how the client reaches the Machine Skills API.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Logger  *slog.Logger
	// HTTPClient overrides the transport, mostly for tests.
	HTTPClient *http.Client
	// OnError observes every failed call with its ErrorKind.
	OnError func(kind string)
}

// Client is a typed REST client for the admin API.
type Client struct {
	rest    *resty.Client
	baseURL string
	logger  *slog.Logger
	onError func(kind string)
}

// New constructs a Client rooted at {BaseURL}/api.
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("backend: base url required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var rc *resty.Client
	if cfg.HTTPClient != nil {
		rc = resty.NewWithClient(cfg.HTTPClient)
	} else {
		rc = resty.New()
	}
	rc.SetBaseURL(base+"/api").
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "machineskills-console")
	if cfg.Timeout > 0 {
		rc.SetTimeout(cfg.Timeout)
	}
	return &Client{rest: rc, baseURL: base, logger: logger, onError: cfg.OnError}, nil
}

// AssetURL resolves a backend-relative asset path such as /uploads/x.jpg.
func (c *Client) AssetURL(path string) string {
	if path == "" || strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}

// Origin returns the scheme and host of a base URL, or "" when it has none.
func Origin(base string) string {
	u, err := url.Parse(strings.TrimSpace(base))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

type tokenKey struct{}

// WithToken returns a context carrying the bearer token used for outgoing calls.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFromContext extracts the bearer token, if any.
func TokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}

func (c *Client) request(ctx context.Context) *resty.Request {
	req := c.rest.R().SetContext(ctx)
	if token := TokenFromContext(ctx); token != "" {
		req.SetAuthToken(token)
	}
	return req
}

// send executes the request and maps transport and status failures.
func (c *Client) send(req *resty.Request, method, path string) (*resty.Response, error) {
	resp, err := req.Execute(method, path)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			err = ctxErr
		}
		return nil, c.observe(&NetworkError{Op: method + " " + path, Err: err})
	}
	if resp.IsError() {
		c.logger.Debug("backend call failed",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("status", resp.StatusCode()))
		return resp, c.observe(statusError(method, path, resp.StatusCode(), resp.Body()))
	}
	return resp, nil
}

func (c *Client) observe(err error) error {
	if c.onError != nil {
		c.onError(ErrorKind(err))
	}
	return err
}
