// Package api exposes the watch daemon's local HTTP interface. Editor
// plugins POST file-change events and read the statusline from here instead
// of shelling out to the CLI on every keystroke.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"time"

	"github.com/notesync/notesync/internal/coordinator"
	"github.com/notesync/notesync/internal/journal"
	"github.com/notesync/notesync/internal/models"
	"github.com/notesync/notesync/internal/status"
	"github.com/notesync/notesync/internal/syncer"
)

// Server provides the REST API handlers.
type Server struct {
	coord    *coordinator.Coordinator
	tracker  *status.Tracker
	launcher *syncer.Launcher
	journal  journal.Journal // may be nil
}

// NewServer creates a new API server.
func NewServer(coord *coordinator.Coordinator, tracker *status.Tracker, launcher *syncer.Launcher, jour journal.Journal) *Server {
	return &Server{
		coord:    coord,
		tracker:  tracker,
		launcher: launcher,
		journal:  jour,
	}
}

// Router returns an http.Handler for the API routes.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/status", s.getStatus)
	mux.HandleFunc("POST /api/v1/events", s.postEvent)
	mux.HandleFunc("POST /api/v1/push", s.postPush)
	mux.HandleFunc("POST /api/v1/pull", s.postPull)
	mux.HandleFunc("GET /api/v1/log", s.getLog)
	mux.HandleFunc("GET /healthz", s.healthz)

	return mux
}

func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, statusCode int, msg string) {
	writeJSON(w, statusCode, map[string]string{"error": msg})
}

// statusResponse is the payload editors poll for their status line.
type statusResponse struct {
	Status       models.SyncStatus `json:"status"`
	Statusline   string            `json:"statusline"`
	Head         string            `json:"head,omitempty"`
	SyncedCommit string            `json:"synced_commit,omitempty"`
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	s.tracker.Refresh(r.Context())
	snap := s.tracker.Snapshot()
	writeJSON(w, http.StatusOK, statusResponse{
		Status:       snap.Status,
		Statusline:   snap.Status.Statusline(),
		Head:         snap.Head,
		SyncedCommit: snap.SyncedCommit,
	})
}

// changeEvent is what editor plugins POST when a buffer is written.
type changeEvent struct {
	Path string `json:"path"`
}

func (s *Server) postEvent(w http.ResponseWriter, r *http.Request) {
	var ev changeEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if ev.Path == "" || !filepath.IsAbs(ev.Path) {
		writeError(w, http.StatusBadRequest, "path must be absolute")
		return
	}

	s.coord.OnFileChanged(ev.Path)
	writeJSON(w, http.StatusAccepted, map[string]string{"path": ev.Path})
}

func (s *Server) postPush(w http.ResponseWriter, r *http.Request) {
	s.launchJob(w, s.launcher.Push)
}

func (s *Server) postPull(w http.ResponseWriter, r *http.Request) {
	s.launchJob(w, s.launcher.Pull)
}

func (s *Server) launchJob(w http.ResponseWriter, launch func() (*syncer.Job, error)) {
	job, err := launch()
	if err != nil {
		if errors.Is(err, syncer.ErrJobInFlight) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"id":         job.ID,
		"kind":       job.Kind,
		"started_at": job.StartedAt.Format(time.RFC3339),
	})
}

// logResponse bundles recent journal entries.
type logResponse struct {
	Commits  []*models.CommitRecord `json:"commits"`
	SyncJobs []*models.SyncJob      `json:"sync_jobs"`
}

func (s *Server) getLog(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeJSON(w, http.StatusOK, logResponse{})
		return
	}

	ctx := r.Context()
	commits, err := s.journal.ListCommits(ctx, 20)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	jobs, err := s.journal.ListSyncJobs(ctx, 20)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, logResponse{Commits: commits, SyncJobs: jobs})
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Serve runs the API on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
