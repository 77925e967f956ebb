// Package control exposes a localhost HTTP API for the running agent: the
// path a token tap takes from the reader script or the CLI to the lock
// machine.
package control

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/goodtune/taglock/internal/lock"
)

// ToggleRequest carries the token id read from the physical tag.
type ToggleRequest struct {
	TokenID string `json:"token_id"`
}

// StateResponse describes the current lock state.
type StateResponse struct {
	Locked bool `json:"locked"`
}

// Server serves the control API on a localhost address.
type Server struct {
	machine *lock.Machine
	server  *http.Server
	logger  zerolog.Logger
}

// NewServer creates the control server for the given lock machine.
func NewServer(addr string, machine *lock.Machine, logger zerolog.Logger) *Server {
	s := &Server{
		machine: machine,
		logger:  logger.With().Str("component", "control").Logger(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/toggle", s.handleToggle)
	mux.HandleFunc("GET /v1/state", s.handleState)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
	return s
}

// Start begins serving in the background.
func (s *Server) Start() error {
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Control server failed")
		}
	}()
	s.logger.Info().Str("addr", s.server.Addr).Msg("Control server started")
	return nil
}

// Stop shuts the server down.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	var req ToggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	locked, err := s.machine.Toggle(r.Context(), req.TokenID)
	switch {
	case errors.Is(err, lock.ErrNoToken):
		http.Error(w, err.Error(), http.StatusPreconditionFailed)
		return
	case errors.Is(err, lock.ErrTokenMismatch):
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, StateResponse{Locked: locked})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, StateResponse{Locked: s.machine.Locked()})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
