// Package server exposes a small JSON API over the pipeline: inspect item
// counts and run records, and trigger a tick or an individual stage.
package server

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"storyfeed/internal/pipeline"
	"storyfeed/internal/store"
)

// Server is the HTTP control surface for a running pipeline.
type Server struct {
	store        *store.Store
	orchestrator *pipeline.Orchestrator
	mux          *http.ServeMux
}

// New creates a new Server.
func New(st *store.Store, orchestrator *pipeline.Orchestrator) *Server {
	s := &Server{store: st, orchestrator: orchestrator, mux: http.NewServeMux()}
	s.routes()
	return s
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/status", s.handleStatus)
	s.mux.HandleFunc("/api/run", s.handleRun)
	s.mux.HandleFunc("/api/stage/", s.handleStage)
}

type statusResponse struct {
	Items  map[string]int `json:"items"`
	Stages []stageRunInfo `json:"stages"`
}

type stageRunInfo struct {
	Name    string    `json:"name"`
	LastRun time.Time `json:"last_run"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	counts, err := s.store.CountByStatus()
	if err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	items := make(map[string]int, len(store.AllStatuses))
	for _, status := range store.AllStatuses {
		items[string(status)] = counts[status]
	}

	runs, err := s.store.AllWorkerRuns()
	if err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	stages := make([]stageRunInfo, 0, len(runs))
	for _, run := range runs {
		stages = append(stages, stageRunInfo{Name: run.TaskName, LastRun: run.LastRunTime})
	}

	writeJSON(w, http.StatusOK, statusResponse{Items: items, Stages: stages})
}

type stageResultView struct {
	Name      string `json:"name"`
	Ran       bool   `json:"ran"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	Retried   int    `json:"retried"`
	Skipped   int    `json:"skipped"`
	Error     string `json:"error,omitempty"`
}

func viewOf(r pipeline.StageResult) stageResultView {
	v := stageResultView{
		Name:      r.Name,
		Ran:       r.Ran,
		Succeeded: r.Counts.Succeeded,
		Failed:    r.Counts.Failed,
		Retried:   r.Counts.Retried,
		Skipped:   r.Counts.Skipped,
	}
	if r.Err != nil {
		v.Error = r.Err.Error()
	}
	return v
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	results := s.orchestrator.Tick(r.Context())
	views := make([]stageResultView, len(results))
	for i, res := range results {
		views[i] = viewOf(res)
	}
	writeJSON(w, http.StatusOK, map[string]any{"stages": views})
}

func (s *Server) handleStage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/api/stage/")
	if name == "" || strings.Contains(name, "/") {
		http.NotFound(w, r)
		return
	}
	force := r.URL.Query().Get("force") == "true"

	result, err := s.orchestrator.RunStage(r.Context(), name, force)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(result))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

// Serve starts the HTTP server on the given port.
func Serve(st *store.Store, orchestrator *pipeline.Orchestrator, port int) error {
	srv := New(st, orchestrator)
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	log.Printf("Server listening on http://%s", addr)
	return http.ListenAndServe(addr, srv.Handler())
}
