package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/broadside-sim/broadside/internal/balance"
	"github.com/broadside-sim/broadside/internal/dispatcher"
	"github.com/broadside-sim/broadside/internal/engine"
	"github.com/broadside-sim/broadside/internal/parser"
	"github.com/broadside-sim/broadside/internal/session"
	"github.com/broadside-sim/broadside/internal/worker"
	"github.com/gorilla/mux"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 64 << 10

// Dispatcher routes named requests. *dispatcher.Dispatcher satisfies it.
type Dispatcher interface {
	Dispatch(r dispatcher.Request) (any, error)
}

// Server exposes battle requests over HTTP.
type Server struct {
	router *mux.Router
	d      Dispatcher
	log    *slog.Logger
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error string `json:"error"`
}

// NewServer builds the HTTP routes on top of d.
func NewServer(d Dispatcher, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Server{router: mux.NewRouter(), d: d, log: logger}

	s.router.HandleFunc("/healthcheck", s.handleHealthcheck).Methods(http.MethodGet)
	s.router.HandleFunc("/battles", s.handleStartBattle).Methods(http.MethodPost)

	b := s.router.PathPrefix("/battle").Subrouter()
	b.HandleFunc("/state", s.simple(worker.CmdState, http.StatusOK)).Methods(http.MethodGet)
	b.HandleFunc("/status", s.simple(worker.CmdStatus, http.StatusOK)).Methods(http.MethodGet)
	b.HandleFunc("/turn", s.handleTurn).Methods(http.MethodPost)
	b.HandleFunc("/reset", s.simple(worker.CmdReset, http.StatusOK)).Methods(http.MethodPost)
	b.HandleFunc("/end", s.simple(worker.CmdEndBattle, http.StatusOK)).Methods(http.MethodPost)
	b.HandleFunc("/logs", s.handleLogs).Methods(http.MethodGet)
	b.HandleFunc("/weapons/{id}", s.handleWeapon).Methods(http.MethodGet)

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealthcheck(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "ok")
}

// handleStartBattle accepts an optional JSON object of scenario overrides,
// e.g. {"distance": 14, "enemy": "Raider"}.
func (s *Server) handleStartBattle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	var args []string
	if len(strings.TrimSpace(string(body))) > 0 {
		overrides := map[string]any{}
		if err := json.Unmarshal(body, &overrides); err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid overrides: %w", err))
			return
		}
		for k, v := range overrides {
			args = append(args, fmt.Sprintf("%s=%v", k, v))
		}
		sort.Strings(args)
	}

	s.dispatch(w, dispatcher.Request{Name: worker.CmdStartBattle, Args: args}, http.StatusCreated)
}

// handleTurn accepts a JSON command body: {"type": "fire-laser", "weaponId": "laser-1"}.
func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.dispatch(w, dispatcher.Request{Name: worker.CmdTurn, Args: []string{string(body)}}, http.StatusOK)
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, dispatcher.Request{Name: worker.CmdLogs, Args: []string{r.URL.Query().Get("category")}}, http.StatusOK)
}

func (s *Server) handleWeapon(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, dispatcher.Request{Name: worker.CmdWeapon, Args: []string{mux.Vars(r)["id"]}}, http.StatusOK)
}

func (s *Server) simple(name string, status int) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		s.dispatch(w, dispatcher.Request{Name: name}, status)
	}
}

func (s *Server) dispatch(w http.ResponseWriter, req dispatcher.Request, status int) {
	result, err := s.d.Dispatch(req)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	s.writeJSON(w, status, result)
}

// statusFor maps request errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrNoBattle):
		return http.StatusNotFound
	case errors.Is(err, session.ErrGameOver), errors.Is(err, engine.ErrTurnInProgress):
		return http.StatusConflict
	case errors.Is(err, parser.ErrInvalidArgs), errors.Is(err, balance.ErrInvalidScenario),
		errors.Is(err, balance.ErrNoWeapons), errors.Is(err, balance.ErrDuplicateWeapon):
		return http.StatusBadRequest
	case errors.Is(err, dispatcher.ErrClosed):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("Failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.log.Error("Request failed", "status", status, "error", err)
	}
	s.writeJSON(w, status, errorBody{Error: err.Error()})
}
