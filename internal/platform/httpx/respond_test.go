package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProblemCarriesRequestContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/dashboard/stats", nil)
	req = req.WithContext(context.WithValue(req.Context(), middleware.RequestIDKey, "req-1"))
	res := httptest.NewRecorder()

	Problem(res, req, http.StatusBadGateway, "Upstream Unavailable", "counts could not be loaded")

	assert.Equal(t, http.StatusBadGateway, res.Code)
	assert.Equal(t, "application/problem+json", res.Header().Get("Content-Type"))
	assert.Equal(t, "no-store", res.Header().Get("Cache-Control"))
	var p ProblemDetail
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &p))
	assert.Equal(t, ProblemDetail{
		Title:     "Upstream Unavailable",
		Status:    http.StatusBadGateway,
		Detail:    "counts could not be loaded",
		Instance:  "/dashboard/stats",
		RequestID: "req-1",
	}, p)
}

func TestRespondErrorMapsSentinels(t *testing.T) {
	cases := map[error]int{
		ErrUnauthorized: http.StatusUnauthorized,
		fmt.Errorf("list centers: %w", ErrUnavailable): http.StatusBadGateway,
		errors.New("boom"): http.StatusInternalServerError,
	}
	for err, status := range cases {
		res := httptest.NewRecorder()
		RespondError(res, httptest.NewRequest(http.MethodGet, "/", nil), err)
		assert.Equal(t, status, res.Code, err.Error())
		assert.NotContains(t, res.Body.String(), "boom")
	}
}

func TestJSON(t *testing.T) {
	res := httptest.NewRecorder()
	JSON(res, http.StatusCreated, map[string]int{"albums": 3})
	assert.Equal(t, http.StatusCreated, res.Code)
	assert.Equal(t, "application/json; charset=utf-8", res.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"albums":3}`, res.Body.String())
}
