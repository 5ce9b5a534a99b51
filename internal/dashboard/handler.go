package dashboard

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/machineskills/console/internal/backend"
	"github.com/machineskills/console/internal/platform/httpx"
	"github.com/machineskills/console/internal/view"
)

// Handler serves the home page.
type Handler struct {
	logger  *slog.Logger
	service *Service
	pages   *view.Responder
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, pages *view.Responder) *Handler {
	return &Handler{logger: logger, service: service, pages: pages}
}

// MountRoutes registers dashboard routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.home)
	r.Get("/dashboard/stats", h.statsJSON)
}

func (h *Handler) home(w http.ResponseWriter, r *http.Request) {
	data := map[string]any{}
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		if h.pages.EndIfUnauthorized(w, r, err) {
			return
		}
		h.logger.Warn("load dashboard stats", slog.Any("error", err))
		data["Error"] = "Counts are unavailable right now"
	}
	data["Stats"] = stats
	h.pages.Render(w, r, "Dashboard", "pages/home.html", data, http.StatusOK)
}

func (h *Handler) statsJSON(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		if backend.IsUnauthorized(err) {
			httpx.RespondError(w, r, httpx.ErrUnauthorized)
			return
		}
		h.logger.Warn("load dashboard stats", slog.Any("error", err))
		httpx.RespondError(w, r, httpx.ErrUnavailable)
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}
