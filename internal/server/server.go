// Package server exposes the livereload endpoints over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazyhaar/livereload/internal/journal"
	"github.com/hazyhaar/livereload/internal/kit"
)

// Backend is the service the API drives.
type Backend interface {
	Trigger(ctx context.Context, path string) (*journal.Entry, error)
	History(ctx context.Context, limit int) ([]*journal.Entry, error)
}

// Config wires the handlers mounted by New. Nil handlers are not mounted.
type Config struct {
	// Root is served as static files with caching disabled. Empty disables
	// static serving.
	Root    string
	Backend Backend

	LiveReload http.Handler // websocket hub
	Metrics    http.Handler
	MCP        http.Handler

	Logger *slog.Logger
}

// New builds the router.
func New(cfg Config) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	h := &handlers{backend: cfg.Backend, logger: cfg.Logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestContext)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.LiveReload != nil {
		r.Handle("/livereload", cfg.LiveReload)
	}
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics)
	}
	if cfg.MCP != nil {
		r.Handle("/mcp", cfg.MCP)
	}
	if cfg.Backend != nil {
		r.Route("/api", func(r chi.Router) {
			r.Use(middleware.Logger)
			r.Use(maxBody(maxAPIBody))
			r.Post("/reload", h.reload)
			r.Get("/history", h.history)
		})
	}
	if cfg.Root != "" {
		r.Handle("/*", noCache(http.FileServer(http.Dir(cfg.Root))))
	}
	return r
}

// requestContext copies the chi request ID into the kit context so that
// endpoint logs carry it.
func requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := kit.WithTransport(r.Context(), "http")
		if id := middleware.GetReqID(ctx); id != "" {
			ctx = kit.WithRequestID(ctx, id)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

const maxAPIBody = 64 << 10

// maxBody caps request bodies at maxBytes.
func maxBody(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

// noCache makes browsers revalidate every asset so reloads always fetch
// fresh content.
func noCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		w.Header().Set("Pragma", "no-cache")
		w.Header().Set("Expires", "0")
		next.ServeHTTP(w, r)
	})
}

type handlers struct {
	backend Backend
	logger  *slog.Logger
}

type reloadRequest struct {
	Path string `json:"path"`
}

func (h *handlers) reload(w http.ResponseWriter, r *http.Request) {
	var req reloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	req.Path = strings.TrimSpace(req.Path)
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, errors.New("path is required"))
		return
	}
	entry, err := h.backend.Trigger(r.Context(), req.Path)
	if err != nil {
		h.logger.Warn("server: trigger", "path", req.Path, "error", err)
		if entry == nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *handlers) history(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	entries, err := h.backend.History(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if entries == nil {
		entries = []*journal.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func queryInt(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
