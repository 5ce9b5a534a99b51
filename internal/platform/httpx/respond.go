// Package httpx writes the console's JSON responses and RFC7807 problems.
package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

// ProblemDetail represents RFC7807 problem details.
type ProblemDetail struct {
	Type      string `json:"type,omitempty"`
	Title     string `json:"title"`
	Status    int    `json:"status"`
	Detail    string `json:"detail,omitempty"`
	Instance  string `json:"instance,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	write(w, "application/json; charset=utf-8", status, data)
}

// Problem sends an RFC7807 problem for r. Detail must be safe to show users.
func Problem(w http.ResponseWriter, r *http.Request, status int, title, detail string) {
	p := ProblemDetail{Title: title, Status: status, Detail: detail}
	if r != nil {
		p.Instance = r.URL.Path
		p.RequestID = middleware.GetReqID(r.Context())
	}
	w.Header().Set("Cache-Control", "no-store")
	write(w, "application/problem+json", status, p)
}

func write(w http.ResponseWriter, contentType string, status int, data any) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
