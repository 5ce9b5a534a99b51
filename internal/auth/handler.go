package auth

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

// Authenticator exchanges credentials for a backend token.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (backend.LoginResult, error)
}

// DraftCloser tears down the open forms of a session.
type DraftCloser interface {
	CloseOwner(owner string) int
}

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	api            Authenticator
	pages          *view.Responder
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	drafts         DraftCloser
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, api Authenticator, pages *view.Responder, drafts DraftCloser) *Handler {
	return &Handler{
		logger:         logger,
		api:            api,
		pages:          pages,
		sessionManager: pages.Sessions,
		csrfManager:    pages.CSRF,
		drafts:         drafts,
		validator:      validator.New(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/login", h.showLogin)
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
}

type loginForm struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=1"`
}

type loginPageData struct {
	Form   loginForm
	Errors map[string]string
}

func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil && sess.Get(shared.SessionTokenKey) != "" {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	h.renderLogin(w, r, loginPageData{Errors: map[string]string{}}, http.StatusOK)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := loginForm{
		Email:    strings.TrimSpace(r.PostFormValue("email")),
		Password: r.PostFormValue("password"),
	}
	errs := make(map[string]string)
	var verrs validator.ValidationErrors
	if errors.As(h.validator.Struct(form), &verrs) {
		for _, fe := range verrs {
			switch fe.Field() {
			case "Email":
				errs["Email"] = "Enter a valid email address"
			case "Password":
				errs["Password"] = "Password is required"
			}
		}
	}
	if len(errs) > 0 {
		h.renderLogin(w, r, loginPageData{Form: form, Errors: errs}, http.StatusBadRequest)
		return
	}

	result, err := h.api.Login(r.Context(), form.Email, form.Password)
	if err != nil {
		h.logger.Info("login rejected", slog.String("email", form.Email), slog.Any("error", err))
		errs["general"] = loginMessage(err)
		status := http.StatusBadRequest
		var nerr *backend.NetworkError
		if errors.As(err, &nerr) {
			status = http.StatusBadGateway
		}
		h.renderLogin(w, r, loginPageData{Form: form, Errors: errs}, status)
		return
	}

	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("session missing during login")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.sessionManager.Renew(sess)
	if _, err := h.csrfManager.Rotate(sess); err != nil {
		h.logger.Warn("rotate csrf token", slog.Any("error", err))
	}
	userID := result.Admin.ID.String()
	if userID == "" {
		userID = result.Admin.Email
	}
	sess.SetUser(userID)
	sess.Set(shared.SessionTokenKey, result.Token)
	name := result.Admin.Name
	if name == "" {
		name = result.Admin.Email
	}
	sess.Set(shared.SessionAdminNameKey, name)
	sess.Set(shared.SessionAdminRoleKey, string(result.Admin.Role))
	h.logger.Info("admin signed in", slog.String("admin", userID))
	h.pages.RedirectWithFlash(w, r, "/", "success", "Welcome back, "+name)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		if h.drafts != nil {
			h.drafts.CloseOwner(sess.ID)
		}
		h.sessionManager.Destroy(sess)
	}
	http.Redirect(w, r, view.LoginPath, http.StatusSeeOther)
}

func (h *Handler) renderLogin(w http.ResponseWriter, r *http.Request, data loginPageData, status int) {
	h.pages.Render(w, r, "Sign in", "pages/login.html", map[string]any{
		"Form":   data.Form,
		"Errors": data.Errors,
	}, status)
}

func loginMessage(err error) string {
	var nerr *backend.NetworkError
	switch {
	case backend.IsUnauthorized(err):
		return "Invalid email or password"
	case errors.As(err, &nerr):
		return "The server could not be reached. Try again shortly."
	}
	return view.UserMessage(err, "Invalid email or password")
}
