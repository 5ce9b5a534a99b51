package jobs

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"

	"github.com/machineskills/console/internal/platform/httpx"
)

// QueueInspector reads queue statistics.
type QueueInspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
}

// QueueHealth is the payload of /jobs/health.
type QueueHealth struct {
	Queue   string `json:"queue"`
	Pending int    `json:"pending"`
	Active  int    `json:"active"`
	Retry   int    `json:"retry"`
	Failed  int    `json:"failed"`
}

// Handler serves queue health for operators.
type Handler struct {
	inspector QueueInspector
	logger    *slog.Logger
}

// NewHandler constructs the jobs HTTP handler.
func NewHandler(inspector QueueInspector, logger *slog.Logger) *Handler {
	return &Handler{inspector: inspector, logger: logger}
}

// MountRoutes attaches job routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/health", h.health)
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	empty := QueueHealth{Queue: QueueDefault}
	if h.inspector == nil {
		httpx.JSON(w, http.StatusOK, empty)
		return
	}
	info, err := h.inspector.GetQueueInfo(QueueDefault)
	switch {
	case errors.Is(err, asynq.ErrQueueNotFound):
		// No task has been enqueued yet.
		httpx.JSON(w, http.StatusOK, empty)
	case err != nil:
		h.logger.Warn("jobs health", slog.Any("error", err))
		httpx.Problem(w, r, http.StatusServiceUnavailable, "Queue Unavailable", "queue statistics could not be read")
	default:
		httpx.JSON(w, http.StatusOK, QueueHealth{
			Queue:   info.Queue,
			Pending: info.Pending,
			Active:  info.Active,
			Retry:   info.Retry,
			Failed:  info.Failed,
		})
	}
}
