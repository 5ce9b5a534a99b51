package backend_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/machineskills/console/internal/backend"
)

func newClient(t *testing.T, handler http.HandlerFunc) *backend.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := backend.New(backend.Config{BaseURL: srv.URL})
	require.NoError(t, err)
	return client
}

func TestNewRequiresBaseURL(t *testing.T) {
	_, err := backend.New(backend.Config{})
	assert.Error(t, err)
}

func TestLoginParsesTokenVariants(t *testing.T) {
	bodies := map[string]string{
		"token":       `{"token":"t1","admin":{"id":1,"name":"Ana","email":"ana@ms.test","role":"SUPER_ADMIN"}}`,
		"accessToken": `{"accessToken":"t1","user":{"id":"1","name":"Ana","email":"ana@ms.test","role":"SUPER_ADMIN"}}`,
		"data":        `{"data":{"token":"t1","user":{"id":"1","name":"Ana","email":"ana@ms.test","role":"SUPER_ADMIN"}}}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/auth/login", r.URL.Path)
				var in map[string]string
				require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
				assert.Equal(t, "ana@ms.test", in["email"])
				assert.Equal(t, "secret", in["password"])
				_, _ = io.WriteString(w, body)
			})
			res, err := client.Login(context.Background(), "ana@ms.test", "secret")
			require.NoError(t, err)
			assert.Equal(t, "t1", res.Token)
			assert.Equal(t, backend.ID("1"), res.Admin.ID)
			assert.Equal(t, backend.RoleSuperAdmin, res.Admin.Role)
		})
	}
}

func TestLoginRejected(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"message":"Invalid credentials"}`)
	})
	_, err := client.Login(context.Background(), "x@ms.test", "bad")
	assert.True(t, backend.IsUnauthorized(err))
}

func TestBearerTokenFromContext(t *testing.T) {
	var seen []string
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `[]`)
	})

	_, err := client.ListProducts(backend.WithToken(context.Background(), "abc"))
	require.NoError(t, err)
	_, err = client.ListProducts(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"Bearer abc", ""}, seen)
}

func TestCreateIDVariants(t *testing.T) {
	cases := map[string]string{
		`{"id":"g1"}`:         "g1",
		`{"id":17}`:           "17",
		`{"_id":"mongo1"}`:    "mongo1",
		`{"data":{"id":"d"}}`: "d",
		`"raw"`:               "raw",
		`{}`:                  "",
	}
	for body, want := range cases {
		client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusCreated)
			_, _ = io.WriteString(w, body)
		})
		id, err := client.CreateGalleryGroup(context.Background(), backend.GalleryGroupInput{Title: "A"})
		require.NoError(t, err, body)
		assert.Equal(t, want, id, body)
	}
}

func TestCreateGalleryGroupSendsZeroOrder(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		var in map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "Setup", in["title"])
		assert.EqualValues(t, 0, in["order"])
		_, _ = io.WriteString(w, `{"id":"g"}`)
	})
	_, err := client.CreateGalleryGroup(context.Background(), backend.GalleryGroupInput{Title: "Setup"})
	require.NoError(t, err)
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{http.StatusBadRequest, `{"message":["title should not be empty","slug must be valid"]}`, func(t *testing.T, err error) {
			var verr *backend.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, []string{"title should not be empty", "slug must be valid"}, verr.Messages)
		}},
		{http.StatusUnprocessableEntity, `{"error":"bad"}`, func(t *testing.T, err error) {
			var verr *backend.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, []string{"bad"}, verr.Messages)
		}},
		{http.StatusUnauthorized, ``, func(t *testing.T, err error) {
			assert.ErrorIs(t, err, backend.ErrUnauthorized)
		}},
		{http.StatusNotFound, `{"message":"nope"}`, func(t *testing.T, err error) {
			assert.ErrorIs(t, err, backend.ErrNotFound)
		}},
		{http.StatusInternalServerError, `oops`, func(t *testing.T, err error) {
			var serr *backend.StatusError
			require.ErrorAs(t, err, &serr)
			assert.Equal(t, http.StatusInternalServerError, serr.Status)
			assert.False(t, errors.Is(err, backend.ErrNotFound))
		}},
	}
	for _, tc := range cases {
		client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = io.WriteString(w, tc.body)
		})
		err := client.DeleteProduct(context.Background(), "p1")
		require.Error(t, err)
		tc.check(t, err)
	}
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	client, err := backend.New(backend.Config{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = client.ListCenters(context.Background())
	var nerr *backend.NetworkError
	assert.ErrorAs(t, err, &nerr)
}

func TestUploadGalleryFilesMultipart(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/upload/gallery", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		files := r.MultipartForm.File["files"]
		require.Len(t, files, 2)
		assert.Equal(t, "a.png", files[0].Filename)
		_, _ = io.WriteString(w, `[{"url":"/uploads/a.png"},{"path":"/uploads/b.png"}]`)
	})
	out, err := client.UploadGalleryFiles(context.Background(),
		backend.Upload{Name: "a.png", ContentType: "image/png", Reader: strings.NewReader("a")},
		backend.Upload{Name: "b.png", ContentType: "image/png", Reader: strings.NewReader("b")},
	)
	require.NoError(t, err)
	assert.Equal(t, []backend.UploadedFile{{URL: "/uploads/a.png"}, {URL: "/uploads/b.png"}}, out)
}

func TestUploadGalleryFilesSingleResponse(t *testing.T) {
	for _, body := range []string{`"/uploads/x.png"`, `{"url":"/uploads/x.png"}`, `["/uploads/x.png"]`} {
		client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, body)
		})
		out, err := client.UploadGalleryFiles(context.Background(),
			backend.Upload{Name: "x.png", ContentType: "image/png", Reader: strings.NewReader("x")})
		require.NoError(t, err, body)
		assert.Equal(t, []backend.UploadedFile{{URL: "/uploads/x.png"}}, out, body)
	}
}

func TestProductMultipartFields(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/admin/products/p9", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "MODOOLA", r.FormValue("slug"))
		assert.Equal(t, "Rig", r.FormValue("title"))
		assert.Equal(t, []string{"/a.png", "/b.png"}, r.MultipartForm.Value["images[]"])
		_, _ = io.WriteString(w, `{}`)
	})
	err := client.UpdateProduct(context.Background(), "p9", backend.ProductInput{
		Slug:   "MODOOLA",
		Title:  "Rig",
		Images: []string{"/a.png", "/b.png"},
	})
	require.NoError(t, err)
}

func TestUploadCenterImage(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/admin/modular-centers/c1/images", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "MACHINE", r.FormValue("type"))
		assert.Equal(t, "true", r.FormValue("isActive"))
		assert.Equal(t, "0", r.FormValue("order"))
		require.Len(t, r.MultipartForm.File["file"], 1)
		_, _ = io.WriteString(w, `{"id":5,"imageUrl":"/uploads/c.png","type":"MACHINE","isActive":true}`)
	})
	img, err := client.UploadCenterImage(context.Background(), "c1",
		backend.Upload{Name: "c.png", ContentType: "image/png", Reader: strings.NewReader("c")},
		backend.CenterImageMeta{Type: "MACHINE", IsActive: true})
	require.NoError(t, err)
	assert.Equal(t, backend.ID("5"), img.ID)
}

func TestListWrappedInData(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "MODOOLA", r.URL.Query().Get("productType"))
		_, _ = io.WriteString(w, `{"data":[{"id":1,"title":"One"},{"id":2,"title":"Two"}]}`)
	})
	groups, err := client.ListGalleryGroups(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "Two", groups[1].Title)
}

func TestAssetURL(t *testing.T) {
	client, err := backend.New(backend.Config{BaseURL: "https://api.ms.test/"})
	require.NoError(t, err)
	assert.Equal(t, "https://api.ms.test/uploads/a.png", client.AssetURL("/uploads/a.png"))
	assert.Equal(t, "https://api.ms.test/uploads/a.png", client.AssetURL("uploads/a.png"))
	assert.Equal(t, "https://cdn.test/a.png", client.AssetURL("https://cdn.test/a.png"))
	assert.Equal(t, "", client.AssetURL(""))
}

func TestOrigin(t *testing.T) {
	assert.Equal(t, "https://api.ms.test", backend.Origin("https://api.ms.test/base/"))
	assert.Equal(t, "http://127.0.0.1:4000", backend.Origin("http://127.0.0.1:4000"))
	assert.Empty(t, backend.Origin("not a url"))
}

func TestOnErrorReceivesKind(t *testing.T) {
	var kinds []string
	statuses := []int{http.StatusUnauthorized, http.StatusNotFound, http.StatusBadRequest, http.StatusBadGateway}
	for _, status := range statuses {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))
		client, err := backend.New(backend.Config{BaseURL: srv.URL, OnError: func(kind string) { kinds = append(kinds, kind) }})
		require.NoError(t, err)
		require.Error(t, client.DeleteProduct(context.Background(), "p1"))
		srv.Close()

		_, err = client.ListCenters(context.Background())
		require.Error(t, err)
	}
	assert.Equal(t, []string{
		"unauthorized", "network",
		"not_found", "network",
		"validation", "network",
		"status", "network",
	}, kinds)
}
