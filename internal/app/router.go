package app

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/machineskills/console/internal/admins"
	"github.com/machineskills/console/internal/auth"
	"github.com/machineskills/console/internal/centers"
	"github.com/machineskills/console/internal/dashboard"
	"github.com/machineskills/console/internal/gallery"
	"github.com/machineskills/console/internal/observability"
	"github.com/machineskills/console/internal/platform/httpx"
	"github.com/machineskills/console/internal/products"
	"github.com/machineskills/console/internal/shared"
	"github.com/machineskills/console/internal/staging"
	"github.com/machineskills/console/jobs"
	"github.com/machineskills/console/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	SessionManager   *shared.SessionManager
	CSRFManager      *shared.CSRFManager
	AuthHandler      *auth.Handler
	DashboardHandler *dashboard.Handler
	GalleryHandler   *gallery.Handler
	CentersHandler   *centers.Handler
	ProductsHandler  *products.Handler
	AdminsHandler    *admins.Handler
	Previews         *staging.Store
	JobHandler       *jobs.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with console defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth)
		if params.DashboardHandler != nil {
			params.DashboardHandler.MountRoutes(r)
		}
		if params.GalleryHandler != nil {
			r.Route("/gallery", params.GalleryHandler.MountRoutes)
		}
		if params.CentersHandler != nil {
			r.Route("/centers", params.CentersHandler.MountRoutes)
		}
		if params.ProductsHandler != nil {
			r.Route("/products", params.ProductsHandler.MountRoutes)
		}
		if params.AdminsHandler != nil {
			r.Route("/admins", params.AdminsHandler.MountRoutes)
		}
		if params.Previews != nil {
			r.Route("/previews", params.Previews.MountRoutes)
		}
		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	return r
}

// staticCacheHandler wraps a file server with Cache-Control headers.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
