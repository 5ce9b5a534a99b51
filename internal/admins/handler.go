// Package admins manages console administrator accounts.
package admins

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/machineskills/console/internal/backend"
	"github.com/machineskills/console/internal/shared"
	"github.com/machineskills/console/internal/view"
)

// API is the part of the backend client used for admin accounts.
type API interface {
	ListAdmins(ctx context.Context) ([]backend.Admin, error)
	CreateAdmin(ctx context.Context, in backend.AdminInput) (string, error)
	UpdateAdmin(ctx context.Context, id string, in backend.AdminInput) error
	DeleteAdmin(ctx context.Context, id string) error
}

// Handler manages admin user endpoints.
type Handler struct {
	logger    *slog.Logger
	api       API
	pages     *view.Responder
	audit     shared.AuditRecorder
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, api API, pages *view.Responder, audit shared.AuditRecorder) *Handler {
	if audit == nil {
		audit = shared.NopAuditRecorder{}
	}
	return &Handler{logger: logger, api: api, pages: pages, audit: audit, validator: validator.New()}
}

// MountRoutes registers admin routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listAdmins)
	r.Get("/new", h.showCreateForm)
	r.Post("/", h.createAdmin)
	r.Get("/{id}/edit", h.showEditForm)
	r.Post("/{id}", h.updateAdmin)
	r.Get("/{id}/delete", h.confirmDelete)
	r.Post("/{id}/delete", h.deleteAdmin)
}

type adminForm struct {
	Name     string `validate:"required,max=100"`
	Email    string `validate:"required,email"`
	Password string `validate:"omitempty,min=8"`
	Role     string `validate:"required,oneof=SUPER_ADMIN GALLERY_ADMIN CONTACTS_ADMIN"`
}

type formErrors map[string]string

func (h *Handler) listAdmins(w http.ResponseWriter, r *http.Request) {
	admins, err := h.api.ListAdmins(r.Context())
	if err != nil {
		if h.pages.EndIfUnauthorized(w, r, err) {
			return
		}
		h.logger.Error("list admins", slog.Any("error", err))
		h.pages.Flash(r, "error", "Admin users could not be loaded")
	}
	h.pages.Render(w, r, "Admin users", "pages/admins/list.html", map[string]any{"Admins": admins}, http.StatusOK)
}

func (h *Handler) showCreateForm(w http.ResponseWriter, r *http.Request) {
	h.renderForm(w, r, "", adminForm{Role: string(backend.RoleGalleryAdmin)}, formErrors{}, http.StatusOK)
}

func (h *Handler) showEditForm(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	admin, err := h.find(r.Context(), id)
	if err != nil {
		h.pages.BackendError(w, r, err, "/admins", "Admin user could not be loaded")
		return
	}
	form := adminForm{Name: admin.Name, Email: admin.Email, Role: string(admin.Role)}
	h.renderForm(w, r, id, form, formErrors{}, http.StatusOK)
}

func (h *Handler) createAdmin(w http.ResponseWriter, r *http.Request) {
	h.save(w, r, "")
}

func (h *Handler) updateAdmin(w http.ResponseWriter, r *http.Request) {
	h.save(w, r, chi.URLParam(r, "id"))
}

func (h *Handler) save(w http.ResponseWriter, r *http.Request, id string) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := adminForm{
		Name:     strings.TrimSpace(r.PostFormValue("name")),
		Email:    strings.TrimSpace(r.PostFormValue("email")),
		Password: r.PostFormValue("password"),
		Role:     r.PostFormValue("role"),
	}
	errs := h.validate(form, id == "")
	if len(errs) > 0 {
		h.renderForm(w, r, id, form, errs, http.StatusUnprocessableEntity)
		return
	}

	in := backend.AdminInput{Name: form.Name, Email: form.Email, Password: form.Password, Role: backend.Role(form.Role)}
	action := "update"
	var err error
	if id == "" {
		action = "create"
		id, err = h.api.CreateAdmin(r.Context(), in)
	} else {
		err = h.api.UpdateAdmin(r.Context(), id, in)
	}
	if err != nil {
		if h.pages.EndIfUnauthorized(w, r, err) {
			return
		}
		h.logger.Error("save admin", slog.String("action", action), slog.Any("error", err))
		form.Password = ""
		if action == "create" {
			id = ""
		}
		h.renderForm(w, r, id, form, formErrors{"general": view.UserMessage(err, "Admin user could not be saved")}, http.StatusUnprocessableEntity)
		return
	}
	h.record(r.Context(), action, id)
	h.pages.RedirectWithFlash(w, r, "/admins", "success", "Admin user saved")
}

func (h *Handler) validate(form adminForm, creating bool) formErrors {
	errs := formErrors{}
	if creating && form.Password == "" {
		errs["Password"] = "Password is required"
	}
	var verrs validator.ValidationErrors
	if errors.As(h.validator.Struct(form), &verrs) {
		for _, fe := range verrs {
			switch fe.Field() {
			case "Name":
				errs["Name"] = "Name is required"
			case "Email":
				errs["Email"] = "Enter a valid email address"
			case "Password":
				errs["Password"] = "Password must be at least 8 characters"
			case "Role":
				errs["Role"] = "Choose a role"
			}
		}
	}
	return errs
}

func (h *Handler) confirmDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	admin, err := h.find(r.Context(), id)
	if err != nil {
		h.pages.BackendError(w, r, err, "/admins", "Admin user could not be loaded")
		return
	}
	h.pages.Render(w, r, "Delete admin user", "pages/confirm.html", map[string]any{
		"Message": "Delete the admin user \"" + admin.Email + "\"?",
		"Action":  "/admins/" + id + "/delete",
		"Cancel":  "/admins",
	}, http.StatusOK)
}

func (h *Handler) deleteAdmin(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.api.DeleteAdmin(r.Context(), id); err != nil {
		h.pages.BackendError(w, r, err, "/admins", "Admin user could not be deleted")
		return
	}
	h.record(r.Context(), "delete", id)
	h.pages.RedirectWithFlash(w, r, "/admins", "success", "Admin user deleted")
}

// find looks the account up in the list; the backend has no single admin endpoint.
func (h *Handler) find(ctx context.Context, id string) (backend.Admin, error) {
	admins, err := h.api.ListAdmins(ctx)
	if err != nil {
		return backend.Admin{}, err
	}
	for _, a := range admins {
		if a.ID.String() == id {
			return a, nil
		}
	}
	return backend.Admin{}, backend.ErrNotFound
}

func (h *Handler) renderForm(w http.ResponseWriter, r *http.Request, id string, form adminForm, errs formErrors, status int) {
	title, action := "New admin user", "/admins"
	if id != "" {
		title, action = "Edit admin user", "/admins/"+id
	}
	form.Password = ""
	h.pages.Render(w, r, title, "pages/admins/form.html", map[string]any{
		"Form":    form,
		"Errors":  errs,
		"Editing": id != "",
		"Roles":   backend.Roles,
		"Action":  action,
	}, status)
}

func (h *Handler) record(ctx context.Context, action, id string) {
	err := h.audit.Record(ctx, shared.AuditLog{
		Actor:    shared.ActorFromContext(ctx),
		Action:   action,
		Entity:   "admin",
		EntityID: id,
	})
	if err != nil {
		h.logger.Warn("record audit", slog.Any("error", err))
	}
}
