package staging

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// MountRoutes serves previews at /{token}.
func (s *Store) MountRoutes(r chi.Router) {
	r.Get("/{token}", s.servePreview)
}

func (s *Store) servePreview(w http.ResponseWriter, r *http.Request) {
	f, contentType, err := s.Preview(chi.URLParam(r, "token"))
	if err != nil {
		if !errors.Is(err, ErrUnknownPreview) {
			s.logger.Error("open preview", slog.Any("error", err))
		}
		http.NotFound(w, r)
		return
	}
	defer f.Close()
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "private, no-store")
	http.ServeContent(w, r, "", time.Time{}, f)
}
