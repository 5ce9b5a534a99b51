// Package gallery manages albums and their images.
package gallery

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

// countConcurrency bounds the image count requests of the album list.
const countConcurrency = 4

// Handler wires album endpoints.
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
	entity := albumEntity{api: api, validate: validator.New()}
	return &Handler{
		logger: logger,
		api:    api,
		pages:  pages,
		audit:  audit,
		form: attachments.NewController(attachments.Config{
			Entity: entity,
			Drafts: store,
			Stager: stager,
			Pages:  pages,
			Audit:  audit,
			Logger: logger,
		}),
	}
}

// MountRoutes registers gallery routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listAlbums)
	h.form.MountRoutes(r)
	r.Get("/{id}", h.showAlbum)
	r.Get("/{id}/delete", h.confirmDelete)
	r.Post("/{id}/delete", h.deleteAlbum)
	r.Post("/{id}/images/{imageID}/delete", h.deleteImage)
	r.Post("/{id}/images/{imageID}/move", h.moveImage)
}

// AlbumRow is an album with its image count.
type AlbumRow struct {
	backend.GalleryGroup
	ImageCount int
}

func (h *Handler) listAlbums(w http.ResponseWriter, r *http.Request) {
	productType := r.URL.Query().Get("productType")
	if productType == "" {
		productType = string(backend.ProductModoola)
	}
	groups, err := h.api.ListGalleryGroups(r.Context(), productType)
	if err != nil {
		if h.pages.EndIfUnauthorized(w, r, err) {
			return
		}
		h.logger.Error("list albums", slog.Any("error", err))
		h.pages.Flash(r, "error", "Albums could not be loaded")
	}

	rows, err := h.withCounts(r.Context(), groups)
	if err != nil {
		h.logger.Warn("count album images", slog.Any("error", err))
	}
	h.pages.Render(w, r, "Gallery", "pages/gallery/list.html", map[string]any{
		"Albums":       rows,
		"ProductType":  productType,
		"ProductTypes": productTypeNames(),
	}, http.StatusOK)
}

// withCounts fetches the image count of every album concurrently. Counts of
// albums whose request failed stay zero.
func (h *Handler) withCounts(ctx context.Context, groups []backend.GalleryGroup) ([]AlbumRow, error) {
	rows := make([]AlbumRow, len(groups))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(countConcurrency)
	for i, group := range groups {
		rows[i].GalleryGroup = group
		g.Go(func() error {
			images, err := h.api.ListGalleryImages(ctx, group.ID.String())
			if err != nil {
				return err
			}
			rows[i].ImageCount = len(images)
			return nil
		})
	}
	return rows, g.Wait()
}

func (h *Handler) showAlbum(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	album, images, err := h.loadAlbum(r.Context(), id)
	if err != nil {
		h.pages.BackendError(w, r, err, "/gallery", "Album could not be loaded")
		return
	}
	h.pages.Render(w, r, album.Title, "pages/gallery/view.html", map[string]any{
		"Album":  album,
		"Images": images,
	}, http.StatusOK)
}

func (h *Handler) loadAlbum(ctx context.Context, id string) (backend.GalleryGroup, []backend.GalleryImage, error) {
	var album backend.GalleryGroup
	var images []backend.GalleryImage
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		album, err = h.findAlbum(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		images, err = h.api.ListGalleryImages(gctx, id)
		return err
	})
	if err := g.Wait(); err != nil {
		return backend.GalleryGroup{}, nil, err
	}
	sortImages(images)
	return album, images, nil
}

func (h *Handler) findAlbum(ctx context.Context, id string) (backend.GalleryGroup, error) {
	for _, pt := range backend.ProductTypes {
		groups, err := h.api.ListGalleryGroups(ctx, string(pt))
		if err != nil {
			return backend.GalleryGroup{}, err
		}
		for _, g := range groups {
			if g.ID.String() == id {
				return g, nil
			}
		}
	}
	return backend.GalleryGroup{}, backend.ErrNotFound
}

func (h *Handler) confirmDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	album, err := h.findAlbum(r.Context(), id)
	if err != nil {
		h.pages.BackendError(w, r, err, "/gallery", "Album could not be loaded")
		return
	}
	h.pages.Render(w, r, "Delete album", "pages/confirm.html", map[string]any{
		"Message": "Delete the album \"" + album.Title + "\" and all of its images?",
		"Action":  "/gallery/" + id + "/delete",
		"Cancel":  "/gallery",
	}, http.StatusOK)
}

func (h *Handler) deleteAlbum(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.api.DeleteGalleryGroup(r.Context(), id); err != nil {
		h.pages.BackendError(w, r, err, "/gallery", "Album could not be deleted")
		return
	}
	h.record(r.Context(), "delete", "album", id, nil)
	h.pages.RedirectWithFlash(w, r, "/gallery", "success", "Album deleted")
}

func (h *Handler) deleteImage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	imageID := chi.URLParam(r, "imageID")
	back := "/gallery/" + id
	if err := h.api.DeleteGalleryImage(r.Context(), imageID); err != nil {
		h.pages.BackendError(w, r, err, back, "Image could not be deleted")
		return
	}
	h.record(r.Context(), "delete", "gallery_image", imageID, map[string]any{"album_id": id})
	h.pages.RedirectWithFlash(w, r, back, "success", "Image deleted")
}

func (h *Handler) moveImage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	imageID := chi.URLParam(r, "imageID")
	back := "/gallery/" + id
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	images, err := h.api.ListGalleryImages(r.Context(), id)
	if err != nil {
		h.pages.BackendError(w, r, err, back, "Images could not be loaded")
		return
	}
	sortImages(images)
	items, moved := Reorder(images, imageID, r.PostFormValue("direction"))
	if !moved {
		http.Redirect(w, r, back, http.StatusSeeOther)
		return
	}
	if err := h.api.ReorderGalleryImages(r.Context(), items); err != nil {
		h.pages.BackendError(w, r, err, back, "Order could not be saved")
		return
	}
	http.Redirect(w, r, back, http.StatusSeeOther)
}

// Reorder swaps imageID with its neighbour in direction ("up" or "down") and
// returns the full, renumbered order. It reports false when nothing moves.
func Reorder(images []backend.GalleryImage, imageID, direction string) ([]backend.ReorderItem, bool) {
	from := -1
	for i, img := range images {
		if img.ID.String() == imageID {
			from = i
			break
		}
	}
	to := from
	switch direction {
	case "up":
		to = from - 1
	case "down":
		to = from + 1
	}
	if from < 0 || to < 0 || to >= len(images) || to == from {
		return nil, false
	}
	ordered := append([]backend.GalleryImage(nil), images...)
	ordered[from], ordered[to] = ordered[to], ordered[from]
	items := make([]backend.ReorderItem, len(ordered))
	for i, img := range ordered {
		items[i] = backend.ReorderItem{ID: img.ID.String(), Order: i}
	}
	return items, true
}

func sortImages(images []backend.GalleryImage) {
	sort.SliceStable(images, func(i, j int) bool { return images[i].Order < images[j].Order })
}

func (h *Handler) record(ctx context.Context, action, entity, id string, meta map[string]any) {
	err := h.audit.Record(ctx, shared.AuditLog{
		Actor:    shared.ActorFromContext(ctx),
		Action:   action,
		Entity:   entity,
		EntityID: id,
		Meta:     meta,
	})
	if err != nil {
		h.logger.Warn("record audit", slog.Any("error", err))
	}
}
