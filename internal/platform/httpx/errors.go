package httpx

import (
	"errors"
	"net/http"
)

// Sentinels the JSON endpoints map to problem responses.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrUnavailable  = errors.New("upstream unavailable")
)

// StatusFor returns the HTTP status and title for err.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, ErrUnavailable):
		return http.StatusBadGateway, "Upstream Unavailable"
	}
	return http.StatusInternalServerError, "Internal Error"
}

// RespondError writes the problem for err. Only the title reaches the client.
func RespondError(w http.ResponseWriter, r *http.Request, err error) {
	status, title := StatusFor(err)
	Problem(w, r, status, title, "")
}
