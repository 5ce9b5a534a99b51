package view

import (
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/machineskills/console/internal/shared"
	"github.com/machineskills/console/web"
)

// Engine renders HTML templates.
type Engine struct {
	templates *template.Template
	assetURL  func(string) string
}

// TemplateData contains values shared across templates.
type TemplateData struct {
	Title       string
	CSRFToken   string
	Flashes     []shared.FlashMessage
	CurrentPath string
	Admin       string
	Data        any
}

// Option customises an Engine.
type Option func(*Engine)

// WithAssetURL resolves backend-relative asset paths for the assetURL template func.
func WithAssetURL(fn func(string) string) Option {
	return func(e *Engine) { e.assetURL = fn }
}

// NewEngine parses templates at build-time.
func NewEngine(opts ...Option) (*Engine, error) {
	e := &Engine{assetURL: func(p string) string { return p }}
	for _, opt := range opts {
		opt(e)
	}
	title := cases.Title(language.English)
	funcMap := template.FuncMap{
		"formatDate": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("02 Jan 2006 15:04")
		},
		// label turns constants such as SUPER_ADMIN into "Super Admin".
		"label": func(v string) string {
			return title.String(strings.ReplaceAll(strings.ToLower(v), "_", " "))
		},
		"assetURL": func(p string) string { return e.assetURL(p) },
		"add":      func(a, b int) int { return a + b },
		"sub":      func(a, b int) int { return a - b },
	}
	tpl, err := template.New("root").Funcs(funcMap).ParseFS(web.Templates,
		"templates/layouts/*.html",
		"templates/partials/*.html",
		"templates/pages/*.html",
		"templates/pages/*/*.html",
	)
	if err != nil {
		return nil, err
	}
	e.templates = tpl
	return e, nil
}

// Execute writes a named template to w without touching headers.
func (e *Engine) Execute(w io.Writer, name string, data TemplateData) error {
	if e == nil {
		return fmt.Errorf("template engine not initialised")
	}
	return e.templates.ExecuteTemplate(w, name, data)
}
