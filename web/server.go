package web

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"renew_scraper/scheduler"
	"renew_scraper/services"
	"renew_scraper/storage"
)

// Server is the JSON API over the vehicle store and the crawl runner.
type Server struct {
	vehicles *services.VehicleService
	runner   *scheduler.Runner
	srv      *http.Server
}

func NewServer(addr string, store storage.VehicleStore, runner *scheduler.Runner) *Server {
	s := &Server{
		vehicles: services.NewVehicleService(store),
		runner:   runner,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/refresh", s.handleRefresh)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/vehicles", s.handleVehicles)
	mux.HandleFunc("/api/stats", s.handleStats)

	s.srv = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return s
}

func (s *Server) Start() error {
	log.Printf("API server listening on %s", s.srv.Addr)
	err := s.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Detached from the request context: the crawl outlives the
	// response.
	if err := s.runner.Trigger(context.Background()); err != nil {
		if errors.Is(err, scheduler.ErrBusy) {
			writeJSON(w, http.StatusConflict, map[string]string{
				"status":  "busy",
				"message": "a scrape is already running",
			})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.runner.Status())
}

func (s *Server) handleVehicles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	vehicles, err := s.vehicles.GetVehiclesWithHistory(r.Context())
	if err != nil {
		log.Printf("Warning: failed to list vehicles: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	stats, err := s.vehicles.GetStatistics(r.Context())
	if err != nil {
		log.Printf("Warning: failed to get statistics: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"vehicles": vehicles,
		"count":    len(vehicles),
		"stats":    stats,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stats, err := s.vehicles.GetStatistics(r.Context())
	if err != nil {
		log.Printf("Warning: failed to get statistics: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Warning: failed to encode response: %v", err)
	}
}
