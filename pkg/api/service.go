package api

import (
	"encoding/json"
	"net/http"

	"github.com/NotCoffee418/kamstrup_meter/pkg/broadcast"
	"github.com/NotCoffee418/kamstrup_meter/pkg/config"
	"github.com/NotCoffee418/kamstrup_meter/pkg/coordinator"
	"github.com/NotCoffee418/kamstrup_meter/pkg/kmp"
	"github.com/NotCoffee418/kamstrup_meter/pkg/registers"
	"github.com/rs/zerolog/log"
)

type Server struct {
	coord *coordinator.Coordinator
	hub   *broadcast.Hub
	cfg   *config.KamstrupAPIConfig
}

type registeredRegister struct {
	ID     kmp.RegisterID `json:"id"`
	Key    string         `json:"key,omitempty"`
	Name   string         `json:"name,omitempty"`
	IsDate bool           `json:"is_date"`
	Known  bool           `json:"known"`
}

type diagnostics struct {
	Config    *config.KamstrupAPIConfig `json:"config"`
	Data      *coordinator.Snapshot     `json:"data"`
	Registers []kmp.RegisterID          `json:"registers"`
	Available bool                      `json:"available"`
	LastError string                    `json:"last_error,omitempty"`
}

func NewServer(coord *coordinator.Coordinator, hub *broadcast.Hub, cfg *config.KamstrupAPIConfig) *Server {
	return &Server{coord: coord, hub: hub, cfg: cfg}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /latest", s.handleLatest)
	mux.HandleFunc("GET /ws", s.hub.ServeWS)
	mux.HandleFunc("GET /registers", s.handleListRegisters)
	mux.HandleFunc("PUT /registers/{id}", s.handleRegister)
	mux.HandleFunc("DELETE /registers/{id}", s.handleUnregister)
	mux.HandleFunc("GET /diagnostics", s.handleDiagnostics)
	return mux
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	status := "running"
	if !s.coord.Available() {
		status = "unavailable"
	}
	writeJson(w, http.StatusOK, map[string]string{
		"message": "Kamstrup Meter API",
		"status":  status,
	})
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	snap := s.coord.Latest()
	if snap == nil {
		writeJson(w, http.StatusNotFound, map[string]string{
			"error": "No readings available yet",
		})
		return
	}
	writeJson(w, http.StatusOK, snap)
}

func (s *Server) handleListRegisters(w http.ResponseWriter, r *http.Request) {
	ids := s.coord.Registry().IDs()
	out := make([]registeredRegister, 0, len(ids))
	for _, id := range ids {
		entry := registeredRegister{ID: id}
		if known, ok := registers.Lookup(id); ok {
			entry.Key = known.Key
			entry.Name = known.Name
			entry.IsDate = known.IsDate
			entry.Known = true
		}
		out = append(out, entry)
	}
	writeJson(w, http.StatusOK, out)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	id, err := registers.ParseID(r.PathValue("id"))
	if err != nil {
		writeJson(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	s.coord.Register(id)
	writeJson(w, http.StatusOK, map[string]any{"registered": id})
}

func (s *Server) handleUnregister(w http.ResponseWriter, r *http.Request) {
	id, err := registers.ParseID(r.PathValue("id"))
	if err != nil {
		writeJson(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	s.coord.Unregister(id)
	writeJson(w, http.StatusOK, map[string]any{"unregistered": id})
}

func (s *Server) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	d := diagnostics{
		Config:    s.cfg,
		Data:      s.coord.Latest(),
		Registers: s.coord.Registry().IDs(),
		Available: s.coord.Available(),
	}
	if err := s.coord.LastError(); err != nil {
		d.LastError = err.Error()
	}
	writeJson(w, http.StatusOK, d)
}

func writeJson(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("Failed to write response")
	}
}
