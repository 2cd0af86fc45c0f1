// Package api exposes the bookkeeping engine over HTTP. Handlers stay thin:
// they decode the request, call the engine or storage, and wrap the outcome
// in a {success, data} or {success: false, error} envelope.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/engine"
	"github.com/Veraticus/the-books-must-balance/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server holds the collaborators shared by every handler.
type Server struct {
	storage service.Storage
	engine  *engine.Engine
}

// NewServer creates a server around storage and an engine built on it.
func NewServer(storage service.Storage, eng *engine.Engine) *Server {
	return &Server{storage: storage, engine: eng}
}

// Routes builds the chi router with middleware and every endpoint mounted.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/health"))
	r.Use(middleware.AllowContentType("application/json"))

	r.Route("/api", func(r chi.Router) {
		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", s.listAccounts)
			r.Post("/", s.createAccount)
			r.Delete("/{id}", s.deleteAccount)
		})

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", s.listTransactions)
			r.Post("/", s.createTransaction)
			r.Get("/{id}", s.getTransaction)
			r.Get("/{id}/balance", s.transactionBalance)
			r.Get("/{id}/matches", s.transactionMatches)
			r.Post("/{id}/apply-rules", s.applyRules)
		})

		r.Get("/entries/{id}/matches", s.entryMatches)

		r.Route("/rules", func(r chi.Router) {
			r.Get("/", s.listRules)
			r.Post("/", s.createRule)
			r.Post("/apply-all", s.applyAll)
			r.Get("/{id}", s.getRule)
			r.Put("/{id}", s.updateRule)
			r.Delete("/{id}", s.deleteRule)
			r.Post("/{id}/apply", s.applyMergeRule)
		})

		r.Post("/merge", s.merge)
		r.Post("/move-entry", s.moveEntry)

		r.Route("/mass", func(r chi.Router) {
			r.Post("/preview", s.previewMass)
			r.Post("/apply", s.applyMass)
		})
	})

	return r
}

// Serve listens on addr until ctx is canceled, then drains in-flight requests
// for up to shutdownTimeout.
func (s *Server) Serve(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "addr", addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	slog.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	return nil
}

type envelope struct {
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Success bool   `json:"success"`
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Warn("Failed to write response", "error", err)
	}
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

// writeError maps the error taxonomy onto HTTP status codes. Internal
// failures are logged with the request id and reported without detail.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch common.KindOf(err) {
	case common.KindValidation:
		writeJSON(w, http.StatusBadRequest, envelope{Error: common.Message(err)})
	case common.KindNotFound:
		writeJSON(w, http.StatusNotFound, envelope{Error: common.Message(err)})
	default:
		common.LogError(r.Context(), err, "Request failed", common.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"request_id": middleware.GetReqID(r.Context()),
		})
		writeJSON(w, http.StatusInternalServerError, envelope{Error: "internal error"})
	}
}

// nonNil keeps empty lists encoded as [] rather than null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return common.Validationf("invalid request body: %v", err)
	}
	return nil
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, common.Validationf("%s must be a non-negative integer", name)
	}
	return n, nil
}

func ruleID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, common.Validationf("invalid rule id %q", chi.URLParam(r, "id"))
	}
	return id, nil
}
