package dashboard_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/machineskills/console/internal/backend"
	"github.com/machineskills/console/internal/dashboard"
	"github.com/machineskills/console/internal/webtest"
	_ "github.com/machineskills/console/testing"
)

type fakeAPI struct {
	calls   atomic.Int32
	gate    chan struct{}
	centers error
}

func (f *fakeAPI) wait() {
	if f.gate != nil {
		<-f.gate
	}
}

func (f *fakeAPI) ListProducts(ctx context.Context) ([]backend.Product, error) {
	f.calls.Add(1)
	f.wait()
	return make([]backend.Product, 3), nil
}

func (f *fakeAPI) ListGalleryGroups(ctx context.Context, productType string) ([]backend.GalleryGroup, error) {
	if productType == string(backend.ProductModoola) {
		return make([]backend.GalleryGroup, 2), nil
	}
	return make([]backend.GalleryGroup, 1), nil
}

func (f *fakeAPI) ListCenters(ctx context.Context) ([]backend.Center, error) {
	if f.centers != nil {
		return nil, f.centers
	}
	return make([]backend.Center, 5), nil
}

func TestStatsSumsAlbumsAcrossProductTypes(t *testing.T) {
	svc := dashboard.NewService(&fakeAPI{})
	stats, err := svc.Stats(backend.WithToken(context.Background(), "t"))
	require.NoError(t, err)
	assert.Equal(t, dashboard.Stats{Products: 3, Albums: 4, Centers: 5}, stats)
}

func TestStatsCollapsesConcurrentLoads(t *testing.T) {
	api := &fakeAPI{gate: make(chan struct{})}
	svc := dashboard.NewService(api)
	ctx := backend.WithToken(context.Background(), "same-token")

	var wg sync.WaitGroup
	results := make([]dashboard.Stats, 4)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], _ = svc.Stats(ctx)
		}()
	}
	require.Eventually(t, func() bool { return api.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	// let the other callers join the in-flight load
	time.Sleep(50 * time.Millisecond)
	close(api.gate)
	wg.Wait()

	assert.Equal(t, int32(1), api.calls.Load())
	for _, s := range results {
		assert.Equal(t, 3, s.Products)
	}
}

func TestHomeRendersCounters(t *testing.T) {
	web := webtest.New(t)
	web.Login("token", "Ada")
	r := chi.NewRouter()
	r.Group(dashboard.NewHandler(web.Logger, dashboard.NewService(&fakeAPI{}), web.Pages).MountRoutes)

	res := web.Do(r, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "<strong>5</strong>")
	assert.Contains(t, res.Body.String(), "Ada")
}

func TestHomeShowsWarningWhenCountsFail(t *testing.T) {
	web := webtest.New(t)
	web.Login("token", "Ada")
	r := chi.NewRouter()
	api := &fakeAPI{centers: &backend.NetworkError{Op: "GET /admin/centers", Err: errors.New("refused")}}
	r.Group(dashboard.NewHandler(web.Logger, dashboard.NewService(api), web.Pages).MountRoutes)

	res := web.Do(r, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "Counts are unavailable right now")
}

func TestStatsJSON(t *testing.T) {
	web := webtest.New(t)
	web.Login("token", "Ada")
	r := chi.NewRouter()
	api := &fakeAPI{}
	r.Group(dashboard.NewHandler(web.Logger, dashboard.NewService(api), web.Pages).MountRoutes)

	res := web.Do(r, httptest.NewRequest(http.MethodGet, "/dashboard/stats", nil))
	require.Equal(t, http.StatusOK, res.Code)
	var stats dashboard.Stats
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &stats))
	assert.Equal(t, 4, stats.Albums)

	api.centers = backend.ErrUnauthorized
	res = web.Do(r, httptest.NewRequest(http.MethodGet, "/dashboard/stats", nil))
	assert.Equal(t, http.StatusUnauthorized, res.Code)
	assert.Equal(t, "application/problem+json", res.Header().Get("Content-Type"))
}
