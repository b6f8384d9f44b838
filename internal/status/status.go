// Package status derives the sync status of the watched repo by comparing
// the last uploaded commit id (persisted by the sync script) against the
// current HEAD of the primary branch. Status display is best-effort: every
// failure path degrades to unknown instead of returning an error.
package status

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/notesync/notesync/internal/git"
	"github.com/notesync/notesync/internal/models"
)

const (
	// UploadInfoFile is the JSON status file written by the sync script.
	UploadInfoFile = "latest_upload_info"

	// LegacyUploadFile is the older plain-text variant holding just the
	// commit id. Still honored so existing repos keep a statusline.
	LegacyUploadFile = "latest_uploaded_commit"
)

// uploadInfo mirrors the JSON status file.
type uploadInfo struct {
	IncludedCommitID string `json:"included_commit_id"`
}

// Snapshot is one computed status with the commit ids behind it.
type Snapshot struct {
	Status       models.SyncStatus `json:"status"`
	Head         string            `json:"head,omitempty"`
	SyncedCommit string            `json:"synced_commit,omitempty"`
}

// Tracker computes sync status on demand and remembers the last result for
// cheap statusline queries.
type Tracker struct {
	repo   models.WatchedRepo
	branch string
	git    git.Client

	mu   sync.Mutex
	last Snapshot
}

// NewTracker returns a Tracker for the repo's primary branch.
func NewTracker(repo models.WatchedRepo, branch string, gc git.Client) *Tracker {
	return &Tracker{
		repo:   repo,
		branch: branch,
		git:    gc,
		last:   Snapshot{Status: models.SyncStatusUnknown},
	}
}

// Refresh recomputes the status and returns it. It never fails: a missing
// or malformed status file, or a git error, yields unknown.
func (t *Tracker) Refresh(ctx context.Context) models.SyncStatus {
	snap := Snapshot{Status: models.SyncStatusUnknown}

	synced, ok := t.readSyncedCommit()
	if ok {
		snap.SyncedCommit = synced
		if head, err := t.git.RevParse(ctx, t.repo.Root, t.branch); err == nil {
			snap.Head = head
			if head == synced {
				snap.Status = models.SyncStatusPushed
			} else {
				snap.Status = models.SyncStatusPending
			}
		}
	}

	t.mu.Lock()
	t.last = snap
	t.mu.Unlock()
	return snap.Status
}

// Snapshot returns the last computed snapshot without touching git.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}

// Statusline returns the last computed statusline string.
func (t *Tracker) Statusline() string {
	return t.Snapshot().Status.Statusline()
}

// readSyncedCommit loads the last uploaded commit id from the JSON status
// file, falling back to the legacy plain-text file.
func (t *Tracker) readSyncedCommit() (string, bool) {
	data, err := os.ReadFile(filepath.Join(t.repo.StateDir, UploadInfoFile))
	if err == nil {
		var info uploadInfo
		if err := json.Unmarshal(data, &info); err != nil || info.IncludedCommitID == "" {
			return "", false
		}
		return info.IncludedCommitID, true
	}

	data, err = os.ReadFile(filepath.Join(t.repo.StateDir, LegacyUploadFile))
	if err != nil {
		return "", false
	}
	id := strings.TrimSpace(string(data))
	if id == "" {
		return "", false
	}
	return id, true
}
