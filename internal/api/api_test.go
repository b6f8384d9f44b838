package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notesync/notesync/internal/coordinator"
	"github.com/notesync/notesync/internal/models"
	"github.com/notesync/notesync/internal/runner"
	"github.com/notesync/notesync/internal/status"
	"github.com/notesync/notesync/internal/syncer"
)

// fakeGit answers RevParse with a fixed head; mutating calls succeed silently.
type fakeGit struct {
	head string
}

func (f *fakeGit) RevParse(context.Context, string, string) (string, error) {
	if f.head == "" {
		return "", errors.New("no head")
	}
	return f.head, nil
}

func (f *fakeGit) RepoRoot(context.Context, string) (string, error)       { return "", nil }
func (f *fakeGit) CurrentBranch(context.Context, string) (string, error)  { return "", nil }
func (f *fakeGit) LastCommitHash(context.Context, string) (string, error) { return f.head, nil }
func (f *fakeGit) HasChanges(context.Context, string, string) (bool, error) {
	return false, nil
}
func (f *fakeGit) Add(context.Context, string, string) error    { return nil }
func (f *fakeGit) Commit(context.Context, string, string) error { return nil }

// fakeRunner holds launched jobs open until the test exits them.
type fakeRunner struct {
	mu     sync.Mutex
	onExit []func(*runner.Result)
}

func (f *fakeRunner) Run(context.Context, string, string, ...string) (*runner.Result, error) {
	return &runner.Result{}, nil
}

func (f *fakeRunner) Start(_, _ string, _ []string, onExit func(*runner.Result)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onExit = append(f.onExit, onExit)
	return nil
}

type nopWarner struct{}

func (nopWarner) Warning(string, ...any) {}

func newTestServer(t *testing.T) (*httptest.Server, models.WatchedRepo) {
	t.Helper()

	root := t.TempDir()
	repo := models.NewWatchedRepo(root, "laptop", "")
	require.NoError(t, os.MkdirAll(repo.StateDir, 0o755))

	gc := &fakeGit{head: "abc123"}
	run := &fakeRunner{}
	tracker := status.NewTracker(repo, "master", gc)
	launcher := syncer.NewLauncher(repo, "sync-repo", run, nil)

	coord := coordinator.New(coordinator.Options{
		Repo:       repo,
		Git:        gc,
		Launcher:   launcher,
		Tracker:    tracker,
		UI:         nopWarner{},
		Delay:      time.Hour,
		AutoCommit: true,
	})

	srv := httptest.NewServer(NewServer(coord, tracker, launcher, nil).Router())
	t.Cleanup(srv.Close)
	return srv, repo
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp.StatusCode
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	resp, err := http.Post(url, "application/json", &buf)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestGetStatus_Unknown(t *testing.T) {
	srv, _ := newTestServer(t)

	var got struct {
		Status     string `json:"status"`
		Statusline string `json:"statusline"`
	}
	code := getJSON(t, srv.URL+"/api/v1/status", &got)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "unknown", got.Status)
	assert.Equal(t, "", got.Statusline)
}

func TestGetStatus_Pushed(t *testing.T) {
	srv, repo := newTestServer(t)

	info := filepath.Join(repo.StateDir, status.UploadInfoFile)
	require.NoError(t, os.WriteFile(info, []byte(`{"included_commit_id":"abc123"}`), 0o644))

	var got struct {
		Status       string `json:"status"`
		Statusline   string `json:"statusline"`
		Head         string `json:"head"`
		SyncedCommit string `json:"synced_commit"`
	}
	code := getJSON(t, srv.URL+"/api/v1/status", &got)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "pushed", got.Status)
	assert.Equal(t, "[Notes: pushed]", got.Statusline)
	assert.Equal(t, "abc123", got.Head)
	assert.Equal(t, "abc123", got.SyncedCommit)
}

func TestPostEvent_SchedulesCommit(t *testing.T) {
	srv, repo := newTestServer(t)

	path := filepath.Join(repo.Root, "note.md")
	resp := postJSON(t, srv.URL+"/api/v1/events", map[string]string{"path": path})
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
}

func TestPostEvent_RejectsRelativePath(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/v1/events", map[string]string{"path": "note.md"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPostEvent_RejectsBadJSON(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/v1/events", "application/json", bytes.NewBufferString("{nope"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPostPush_StartsJob(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/v1/push", nil)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	var got struct {
		ID   string `json:"id"`
		Kind string `json:"kind"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, "push", got.Kind)
}

func TestPostPull_ConflictWhileJobInFlight(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/v1/push", nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp = postJSON(t, srv.URL+"/api/v1/pull", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	var got struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Contains(t, got.Error, "in flight")
}

func TestGetLog_NilJournal(t *testing.T) {
	srv, _ := newTestServer(t)

	var got map[string]any
	code := getJSON(t, srv.URL+"/api/v1/log", &got)
	assert.Equal(t, http.StatusOK, code)
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)

	var got map[string]string
	code := getJSON(t, srv.URL+"/healthz", &got)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", got["status"])
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/push")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
