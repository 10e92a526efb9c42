package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"persona_ad_studio/catalog"
	"persona_ad_studio/config"
	"persona_ad_studio/generator"
	"persona_ad_studio/persona"
)

const (
	defaultShutdownTimeout = 30 * time.Second
	maxBodyBytes           = 32 << 20
)

// Deps are the components the HTTP layer drives.
type Deps struct {
	Refiner  *generator.Refiner
	Pipeline *persona.Pipeline
	Variator *persona.Variator
	Catalog  *catalog.Catalog
	Config   config.Config
	Logger   *slog.Logger
}

type Server struct {
	refiner  *generator.Refiner
	pipeline *persona.Pipeline
	variator *persona.Variator
	catalog  *catalog.Catalog
	cfg      config.Config
	store    *sessionStore
	log      *slog.Logger
}

func New(d Deps) (*Server, error) {
	if d.Refiner == nil {
		return nil, errors.New("refiner required")
	}
	if d.Pipeline == nil || d.Variator == nil {
		return nil, errors.New("persona pipeline and variator required")
	}
	if d.Catalog == nil {
		return nil, errors.New("catalog required")
	}
	logger := d.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Server{
		refiner:  d.Refiner,
		pipeline: d.Pipeline,
		variator: d.Variator,
		catalog:  d.Catalog,
		cfg:      d.Config,
		store:    newStore(d.Config.SessionTTL()),
		log:      logger,
	}, nil
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.CleanPath)
	r.Use(s.logMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/generate-image", s.handleGenerateImage)
		r.Post("/optimize-for-personas", s.handleOptimizeForPersonas)
		r.Post("/variate", s.handleVariate)
		r.Get("/catalog", s.handleCatalog)

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", s.handleSessionCreate)
			r.Get("/{id}", s.handleSessionGet)
			r.Put("/{id}/personas/{personaID}", s.handlePersonaUpdate)
		})
	})

	// catalogue ads are referenced by the /ads/ URL the client sends back
	r.Handle("/ads/*", http.StripPrefix("/ads/", http.FileServer(http.Dir(s.cfg.AdsDir))))
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.log.Info("server starting", "addr", addr)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		s.log.Info("starting graceful shutdown")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Error("graceful shutdown failed, forcing close", "err", err)
			if closeErr := srv.Close(); closeErr != nil {
				return fmt.Errorf("could not stop server: shutdown error: %v, close error: %v", err, closeErr)
			}
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		s.log.Info("server stopped cleanly")
	}
	return nil
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info("http",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"dur_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
