package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Sternrassler/marvel-heroes-client/pkg/catalog"
	"github.com/Sternrassler/marvel-heroes-client/pkg/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

// heroSource is the part of the catalog client the HTTP API needs.
type heroSource interface {
	FetchHeroes(ctx context.Context, limit, offset int) (catalog.Page, error)
	SearchHeroes(ctx context.Context, prefix string, limit, offset int) (catalog.Page, error)
	FetchHero(ctx context.Context, id int) (*catalog.Hero, error)
}

func runServe(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	addr := fs.String("addr", a.cfg.HTTP.Addr, "listen address")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           newRouter(a.client, a.ready),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info().
			Str("addr", *addr).
			Bool("quota_tracking", a.redis != nil).
			Msg("Starting heroes server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	a.logger.Info().Msg("Shutting down heroes server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// newRouter creates the HTTP router. ready may be nil.
func newRouter(src heroSource, ready func(context.Context) error) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", healthHandler)
	r.Get("/ready", readyHandler(ready))
	r.Handle("/metrics", metrics.Handler())

	r.Route("/v1/heroes", func(r chi.Router) {
		r.Get("/", listHeroesHandler(src))
		r.Get("/{heroID}", getHeroHandler(src))
	})

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

func readyHandler(ready func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ready != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := ready(ctx); err != nil {
				http.Error(w, "quota store unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "OK")
	}
}

func listHeroesHandler(src heroSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		limit, err := intParam(q.Get("limit"), 20)
		if err != nil || limit < 1 || limit > 100 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		offset, err := intParam(q.Get("offset"), 0)
		if err != nil || offset < 0 {
			writeError(w, http.StatusBadRequest, "offset must be >= 0")
			return
		}

		var page catalog.Page
		if prefix := q.Get("nameStartsWith"); prefix != "" {
			page, err = src.SearchHeroes(r.Context(), prefix, limit, offset)
		} else {
			page, err = src.FetchHeroes(r.Context(), limit, offset)
		}
		if err != nil {
			writeCatalogError(w, r, err)
			return
		}

		if page.Items == nil {
			page.Items = []catalog.Hero{}
		}
		writeJSON(w, http.StatusOK, page)
	}
}

func getHeroHandler(src heroSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.Atoi(chi.URLParam(r, "heroID"))
		if err != nil || id <= 0 {
			writeError(w, http.StatusBadRequest, "hero id must be a positive integer")
			return
		}

		hero, err := src.FetchHero(r.Context(), id)
		if err != nil {
			writeCatalogError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, hero)
	}
}

func intParam(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}

// statusFor maps a catalog failure to the status returned to our callers.
func statusFor(err error) int {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}

	switch catalog.KindOf(err) {
	case catalog.ErrorKindRateLimited:
		return http.StatusTooManyRequests
	case catalog.ErrorKindInvalidRequest:
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

func writeCatalogError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	log.Warn().
		Err(err).
		Str("path", r.URL.Path).
		Str("request_id", middleware.GetReqID(r.Context())).
		Int("status_code", status).
		Msg("Catalog request failed")
	writeError(w, status, userMessage(err))
}

// userMessage prefers the catalog description over wrapper text.
func userMessage(err error) string {
	var ce *catalog.Error
	if errors.As(err, &ce) {
		return ce.Error()
	}
	return err.Error()
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to write response")
	}
}
