package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zzxtbeta/arixv-fetcher/internal/ingest"
	"github.com/zzxtbeta/arixv-fetcher/internal/model"
	"github.com/zzxtbeta/arixv-fetcher/internal/store"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		addr := serveAddr
		if addr == "" {
			addr = cfg.Server.Addr
		}

		srv := &http.Server{
			Addr:    addr,
			Handler: newRouter(e.Service, e.Store),
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
	rootCmd.AddCommand(serveCmd)
}

type apiHandler struct {
	svc   *ingest.Service
	store store.Store
}

func newRouter(svc *ingest.Service, st store.Store) http.Handler {
	h := &apiHandler{svc: svc, store: st}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", h.health)
	r.Post("/data/fetch", h.fetch)
	r.Post("/data/fetch-by-id", h.fetchByID)
	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", h.listSessions)
		r.Get("/{sessionID}", h.getSession)
		r.Post("/{sessionID}/resume", h.resumeSession)
		r.Delete("/{sessionID}", h.deleteSession)
	})
	return r
}

func (h *apiHandler) health(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "store unreachable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type fetchRequest struct {
	Days       int      `json:"days"`
	From       string   `json:"from"`
	To         string   `json:"to"`
	Categories []string `json:"categories"`
	MaxResults int      `json:"max_results"`
}

func (h *apiHandler) fetch(w http.ResponseWriter, r *http.Request) {
	var req fetchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Categories) == 0 {
		writeError(w, http.StatusBadRequest, "categories are required")
		return
	}

	var (
		sum *ingest.Summary
		err error
	)
	if req.From != "" || req.To != "" {
		start, end, perr := parseFetchRange(req.From, req.To)
		if perr != nil {
			writeError(w, http.StatusBadRequest, perr.Error())
			return
		}
		sum, err = h.svc.FetchRange(r.Context(), req.Categories, start, end, req.MaxResults)
	} else {
		days := req.Days
		if days <= 0 {
			days = 7
		}
		sum, err = h.svc.FetchWindow(r.Context(), req.Categories, days, req.MaxResults)
	}
	if err != nil {
		zap.L().Error("fetch failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "fetch failed")
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (h *apiHandler) fetchByID(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ArxivIDs []string `json:"arxiv_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.ArxivIDs) == 0 {
		writeError(w, http.StatusBadRequest, "arxiv_ids are required")
		return
	}

	sum, err := h.svc.FetchByIDs(r.Context(), req.ArxivIDs)
	if err != nil {
		zap.L().Error("fetch by id failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "fetch failed")
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (h *apiHandler) listSessions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	sessions, err := h.store.ListSessions(r.Context(), store.SessionFilter{
		Status: model.SessionStatus(q.Get("status")),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		zap.L().Error("list sessions failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list sessions failed")
		return
	}
	if sessions == nil {
		sessions = []model.Session{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (h *apiHandler) getSession(w http.ResponseWriter, r *http.Request) {
	details, err := h.store.GetSessionDetails(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		zap.L().Error("get session failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "get session failed")
		return
	}
	writeJSON(w, http.StatusOK, details)
}

func (h *apiHandler) resumeSession(w http.ResponseWriter, r *http.Request) {
	sum, err := h.svc.Resume(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		zap.L().Error("resume failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "resume failed")
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (h *apiHandler) deleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if err := h.store.DeleteSession(r.Context(), sessionID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		zap.L().Error("delete session failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "delete session failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": sessionID})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
