// Package server exposes the ops endpoints and the web board snapshot over
// HTTP. It is thin glue: the snapshot artifacts are produced by the render
// layer, this package only hands them out.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"

	"github.com/fluted/departureboard/internal/render/web"
)

// Config holds configuration for the HTTP server.
type Config struct {
	Version  string
	Logger   zerolog.Logger
	Snapshot *web.Snapshot
}

// NewRouter builds the chi router for the ops/board endpoints.
func NewRouter(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger(cfg.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(httprate.LimitByIP(60, time.Minute))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{ //nolint:errcheck // best effort
			"status":  "ok",
			"version": cfg.Version,
		})
	})

	r.Get("/board", func(w http.ResponseWriter, _ *http.Request) {
		page, ok := cfg.Snapshot.HTML()
		if !ok {
			http.Error(w, "no frame rendered yet", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(page) //nolint:errcheck // client write
	})

	r.Get("/board.png", func(w http.ResponseWriter, _ *http.Request) {
		img, ok := cfg.Snapshot.PNG()
		if !ok {
			http.Error(w, "no frame rendered yet", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(img) //nolint:errcheck // client write
	})

	return r
}

// statusWriter captures the response status for logging.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(sw, r)

			log.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", sw.status).
				Dur("duration", time.Since(start)).
				Msg("http request")
		})
	}
}
