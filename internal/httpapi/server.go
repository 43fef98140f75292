// Package httpapi exposes the triage controller and the reconciliation
// engine over a small JSON REST surface.
//
// Three outcome classes are guaranteed to callers: 200 with a JSON body
// on success, 404 for an unknown local id (or an exhausted bucket), and
// 500 when a remote provider action or the store fails.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/daviddao/unibox/internal/db"
	"github.com/daviddao/unibox/internal/provider"
	"github.com/daviddao/unibox/internal/recon"
	"github.com/daviddao/unibox/internal/triage"
	"github.com/daviddao/unibox/internal/types"
)

// Server wires HTTP routes to the controller and engine.
type Server struct {
	Controller *triage.Controller
	Engine     *recon.Engine
	Registry   *provider.Registry
	Log        *slog.Logger
}

// New creates a Server.
func New(ctrl *triage.Controller, engine *recon.Engine, reg *provider.Registry, log *slog.Logger) *Server {
	return &Server{Controller: ctrl, Engine: engine, Registry: reg, Log: log}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/items/next", s.handleNext)
	mux.HandleFunc("GET /api/items/{id}", s.handleGet)
	mux.HandleFunc("POST /api/items/{id}/read", s.action((*triage.Controller).MarkRead))
	mux.HandleFunc("POST /api/items/{id}/pending", s.action((*triage.Controller).MarkPending))
	mux.HandleFunc("POST /api/items/{id}/important", s.action((*triage.Controller).MarkImportant))
	mux.HandleFunc("POST /api/items/{id}/unimportant", s.action((*triage.Controller).MarkUnimportant))
	mux.HandleFunc("POST /api/items/{id}/delete", s.action((*triage.Controller).Delete))
	mux.HandleFunc("POST /api/sync", s.handleSyncAll)
	mux.HandleFunc("POST /api/sync/{account}", s.handleSyncAccount)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	return mux
}

// action wraps a controller method into a handler with the shared
// id-parsing and outcome-class mapping.
func (s *Server) action(call func(*triage.Controller, context.Context, int64) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
		if err != nil {
			writeError(w, http.StatusNotFound, "item not found")
			return
		}
		if err := call(s.Controller, r.Context(), id); err != nil {
			s.writeFailure(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	st := types.StatusUnread
	if name := r.URL.Query().Get("status"); name != "" {
		parsed, ok := types.ParseStatus(name)
		if !ok {
			writeError(w, http.StatusBadRequest, "unknown status "+name)
			return
		}
		st = parsed
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	item, err := s.Controller.GetNext(st, offset)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}
	item, err := s.Controller.Get(id)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleSyncAll(w http.ResponseWriter, r *http.Request) {
	summary := s.Engine.SyncAll(r.Context(), s.Registry)
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleSyncAccount(w http.ResponseWriter, r *http.Request) {
	account := r.PathValue("account")
	adapter, ok := s.Registry.Lookup(account)
	if !ok {
		// Syncing through the no-op fallback would wipe the account's
		// rows against an empty open set.
		writeError(w, http.StatusNotFound, "unknown account "+account)
		return
	}
	result, err := s.Engine.SyncAccount(r.Context(), adapter)
	if err != nil {
		result.Error = err.Error()
		writeJSON(w, http.StatusInternalServerError, result)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	counts, err := s.Controller.Store.CountByStatus()
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"unread":    counts[types.StatusUnread],
		"pending":   counts[types.StatusPending],
		"important": counts[types.StatusImportant],
		"accounts":  s.Controller.Store.Accounts(),
	})
}

// writeFailure maps an error to its outcome class.
func (s *Server) writeFailure(w http.ResponseWriter, err error) {
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}
	s.Log.Error("request failed", "err", err)
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
