package admins_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/machineskills/console/internal/admins"
	"github.com/machineskills/console/internal/backend"
	"github.com/machineskills/console/internal/webtest"
	_ "github.com/machineskills/console/testing"
)

type fakeAPI struct {
	admins  []backend.Admin
	created []backend.AdminInput
	updated map[string]backend.AdminInput
	deleted []string
	err     error
}

func (f *fakeAPI) ListAdmins(ctx context.Context) ([]backend.Admin, error) {
	return f.admins, nil
}

func (f *fakeAPI) CreateAdmin(ctx context.Context, in backend.AdminInput) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.created = append(f.created, in)
	return "a9", nil
}

func (f *fakeAPI) UpdateAdmin(ctx context.Context, id string, in backend.AdminInput) error {
	if f.err != nil {
		return f.err
	}
	f.updated[id] = in
	return nil
}

func (f *fakeAPI) DeleteAdmin(ctx context.Context, id string) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func setup(t *testing.T) (*webtest.Harness, chi.Router, *fakeAPI) {
	t.Helper()
	web := webtest.New(t)
	api := &fakeAPI{
		admins:  []backend.Admin{{ID: "a1", Name: "Root", Email: "root@machineskills.test", Role: backend.RoleSuperAdmin}},
		updated: map[string]backend.AdminInput{},
	}
	r := chi.NewRouter()
	r.Route("/admins", admins.NewHandler(web.Logger, api, web.Pages, nil).MountRoutes)
	web.Login("token", "Ada")
	return web, r, api
}

func TestListAdmins(t *testing.T) {
	web, r, _ := setup(t)
	res := web.Do(r, httptest.NewRequest(http.MethodGet, "/admins", nil))
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "root@machineskills.test")
	assert.Contains(t, res.Body.String(), "Super Admin")
}

func TestCreateAdminRequiresPassword(t *testing.T) {
	web, r, api := setup(t)
	res := web.Do(r, webtest.PostForm("/admins", url.Values{
		"name":  {"Kim"},
		"email": {"kim@machineskills.test"},
		"role":  {"GALLERY_ADMIN"},
	}))
	assert.Equal(t, http.StatusUnprocessableEntity, res.Code)
	assert.Contains(t, res.Body.String(), "Password is required")
	assert.Empty(t, api.created)

	res = web.Do(r, webtest.PostForm("/admins", url.Values{
		"name":     {"Kim"},
		"email":    {"kim@machineskills.test"},
		"password": {"s3cretpass"},
		"role":     {"GALLERY_ADMIN"},
	}))
	require.Equal(t, http.StatusSeeOther, res.Code)
	require.Len(t, api.created, 1)
	assert.Equal(t, backend.RoleGalleryAdmin, api.created[0].Role)
	assert.Equal(t, "Admin user saved", web.Flashes()[0].Message)
}

func TestCreateAdminRejectsUnknownRole(t *testing.T) {
	web, r, api := setup(t)
	res := web.Do(r, webtest.PostForm("/admins", url.Values{
		"name":     {"Kim"},
		"email":    {"not-an-email"},
		"password": {"s3cretpass"},
		"role":     {"OWNER"},
	}))
	assert.Equal(t, http.StatusUnprocessableEntity, res.Code)
	assert.Contains(t, res.Body.String(), "Choose a role")
	assert.Contains(t, res.Body.String(), "Enter a valid email address")
	assert.Empty(t, api.created)
}

func TestEditAdminKeepsPasswordWhenBlank(t *testing.T) {
	web, r, api := setup(t)
	res := web.Do(r, httptest.NewRequest(http.MethodGet, "/admins/a1/edit", nil))
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), `value="root@machineskills.test"`)
	assert.Contains(t, res.Body.String(), `value="SUPER_ADMIN" selected`)

	res = web.Do(r, webtest.PostForm("/admins/a1", url.Values{
		"name":  {"Root"},
		"email": {"root@machineskills.test"},
		"role":  {"CONTACTS_ADMIN"},
	}))
	require.Equal(t, http.StatusSeeOther, res.Code)
	assert.Empty(t, api.updated["a1"].Password)
	assert.Equal(t, backend.RoleContactsAdmin, api.updated["a1"].Role)
}

func TestBackendValidationShownOnForm(t *testing.T) {
	web, r, api := setup(t)
	api.err = &backend.ValidationError{Status: http.StatusBadRequest, Messages: []string{"email already in use"}}
	res := web.Do(r, webtest.PostForm("/admins", url.Values{
		"name":     {"Kim"},
		"email":    {"root@machineskills.test"},
		"password": {"s3cretpass"},
		"role":     {"GALLERY_ADMIN"},
	}))
	assert.Equal(t, http.StatusUnprocessableEntity, res.Code)
	assert.Contains(t, res.Body.String(), "email already in use")
	assert.NotContains(t, res.Body.String(), "s3cretpass")
}

func TestDeleteAdmin(t *testing.T) {
	web, r, api := setup(t)
	res := web.Do(r, httptest.NewRequest(http.MethodGet, "/admins/a1/delete", nil))
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "root@machineskills.test")

	res = web.Do(r, httptest.NewRequest(http.MethodGet, "/admins/zz/delete", nil))
	assert.Equal(t, http.StatusSeeOther, res.Code)

	res = web.Do(r, webtest.PostForm("/admins/a1/delete", url.Values{}))
	require.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, []string{"a1"}, api.deleted)
}

func TestUnauthorizedEndsSession(t *testing.T) {
	web, r, api := setup(t)
	api.err = backend.ErrUnauthorized
	res := web.Do(r, webtest.PostForm("/admins/a1/delete", url.Values{}))
	require.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/auth/login", res.Header().Get("Location"))
	assert.Empty(t, web.SessionValue("backend_token"))
}
