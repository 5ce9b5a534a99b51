// Package centers manages modular training centers and their images.
package centers

import (
	"context"
	"log/slog"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/machineskills/console/internal/attachments"
	"github.com/machineskills/console/internal/backend"
	"github.com/machineskills/console/internal/drafts"
	"github.com/machineskills/console/internal/shared"
	"github.com/machineskills/console/internal/view"
)

// Handler wires center endpoints.
type Handler struct {
	logger *slog.Logger
	api    API
	pages  *view.Responder
	audit  shared.AuditRecorder
	form   *attachments.Controller
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, api API, pages *view.Responder, store *drafts.Store, stager attachments.Stager, audit shared.AuditRecorder) *Handler {
	if audit == nil {
		audit = shared.NopAuditRecorder{}
	}
	return &Handler{
		logger: logger,
		api:    api,
		pages:  pages,
		audit:  audit,
		form: attachments.NewController(attachments.Config{
			Entity: centerEntity{api: api, validate: validator.New()},
			Drafts: store,
			Stager: stager,
			Pages:  pages,
			Audit:  audit,
			Logger: logger,
		}),
	}
}

// MountRoutes registers center routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listCenters)
	h.form.MountRoutes(r)
	r.Get("/{id}", h.showCenter)
	r.Get("/{id}/delete", h.confirmDelete)
	r.Post("/{id}/delete", h.deleteCenter)
	r.Post("/{id}/images/{imageID}/delete", h.deleteImage)
}

func (h *Handler) listCenters(w http.ResponseWriter, r *http.Request) {
	centers, err := h.api.ListCenters(r.Context())
	if err != nil {
		if h.pages.EndIfUnauthorized(w, r, err) {
			return
		}
		h.logger.Error("list centers", slog.Any("error", err))
		h.pages.Flash(r, "error", "Centers could not be loaded")
	}
	sort.SliceStable(centers, func(i, j int) bool { return order(centers[i]) < order(centers[j]) })
	h.pages.Render(w, r, "Modular centers", "pages/centers/list.html", map[string]any{"Centers": centers}, http.StatusOK)
}

func order(c backend.Center) int {
	if c.Order == nil {
		return 0
	}
	return *c.Order
}

func (h *Handler) showCenter(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var center backend.Center
	var images []backend.CenterImage
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		center, err = h.api.GetCenter(ctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		images, err = h.api.ListCenterImages(ctx, id)
		return err
	})
	if err := g.Wait(); err != nil {
		h.pages.BackendError(w, r, err, "/centers", "Center could not be loaded")
		return
	}
	sort.SliceStable(images, func(i, j int) bool { return images[i].Order < images[j].Order })
	h.pages.Render(w, r, center.Title, "pages/centers/view.html", map[string]any{
		"Center": center,
		"Images": images,
	}, http.StatusOK)
}

func (h *Handler) confirmDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	center, err := h.api.GetCenter(r.Context(), id)
	if err != nil {
		h.pages.BackendError(w, r, err, "/centers", "Center could not be loaded")
		return
	}
	h.pages.Render(w, r, "Delete center", "pages/confirm.html", map[string]any{
		"Message": "Delete the center \"" + center.Title + "\" and all of its images?",
		"Action":  "/centers/" + id + "/delete",
		"Cancel":  "/centers",
	}, http.StatusOK)
}

func (h *Handler) deleteCenter(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.api.DeleteCenter(r.Context(), id); err != nil {
		h.pages.BackendError(w, r, err, "/centers", "Center could not be deleted")
		return
	}
	h.record(r.Context(), "center", id, nil)
	h.pages.RedirectWithFlash(w, r, "/centers", "success", "Center deleted")
}

func (h *Handler) deleteImage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	imageID := chi.URLParam(r, "imageID")
	back := "/centers/" + id
	if err := h.api.DeleteCenterImage(r.Context(), id, imageID); err != nil {
		h.pages.BackendError(w, r, err, back, "Image could not be deleted")
		return
	}
	h.record(r.Context(), "center_image", imageID, map[string]any{"center_id": id})
	h.pages.RedirectWithFlash(w, r, back, "success", "Image deleted")
}

func (h *Handler) record(ctx context.Context, entity, id string, meta map[string]any) {
	err := h.audit.Record(ctx, shared.AuditLog{
		Actor:    shared.ActorFromContext(ctx),
		Action:   "delete",
		Entity:   entity,
		EntityID: id,
		Meta:     meta,
	})
	if err != nil {
		h.logger.Warn("record audit", slog.Any("error", err))
	}
}
