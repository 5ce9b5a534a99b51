// Package products manages the product catalogue.
package products

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/machineskills/console/internal/attachments"
	"github.com/machineskills/console/internal/drafts"
	"github.com/machineskills/console/internal/shared"
	"github.com/machineskills/console/internal/view"
)

// Handler wires product endpoints.
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
			Entity: productEntity{api: api, validate: validator.New()},
			Drafts: store,
			Stager: stager,
			Pages:  pages,
			Audit:  audit,
			Logger: logger,
		}),
	}
}

// MountRoutes registers product routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listProducts)
	h.form.MountRoutes(r)
	r.Get("/{id}", h.showProduct)
	r.Get("/{id}/delete", h.confirmDelete)
	r.Post("/{id}/delete", h.deleteProduct)
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.api.ListProducts(r.Context())
	if err != nil {
		if h.pages.EndIfUnauthorized(w, r, err) {
			return
		}
		h.logger.Error("list products", slog.Any("error", err))
		h.pages.Flash(r, "error", "Products could not be loaded")
	}
	h.pages.Render(w, r, "Products", "pages/products/list.html", map[string]any{"Products": products}, http.StatusOK)
}

func (h *Handler) showProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.api.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.pages.BackendError(w, r, err, "/products", "Product could not be loaded")
		return
	}
	h.pages.Render(w, r, product.Title, "pages/products/view.html", map[string]any{"Product": product}, http.StatusOK)
}

func (h *Handler) confirmDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	product, err := h.api.GetProduct(r.Context(), id)
	if err != nil {
		h.pages.BackendError(w, r, err, "/products", "Product could not be loaded")
		return
	}
	h.pages.Render(w, r, "Delete product", "pages/confirm.html", map[string]any{
		"Message": "Delete the product \"" + product.Title + "\"?",
		"Action":  "/products/" + id + "/delete",
		"Cancel":  "/products",
	}, http.StatusOK)
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.api.DeleteProduct(r.Context(), id); err != nil {
		h.pages.BackendError(w, r, err, "/products", "Product could not be deleted")
		return
	}
	err := h.audit.Record(r.Context(), shared.AuditLog{
		Actor:    shared.ActorFromContext(r.Context()),
		Action:   "delete",
		Entity:   "product",
		EntityID: id,
	})
	if err != nil {
		h.logger.Warn("record audit", slog.Any("error", err))
	}
	h.pages.RedirectWithFlash(w, r, "/products", "success", "Product deleted")
}
