package status

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notesync/notesync/internal/models"
)

// fakeGit serves RevParse from a map; everything else is unused here.
type fakeGit struct {
	refs map[string]string
}

func (f *fakeGit) RevParse(_ context.Context, _, ref string) (string, error) {
	if h, ok := f.refs[ref]; ok {
		return h, nil
	}
	return "", errors.New("unknown ref")
}

func (f *fakeGit) RepoRoot(context.Context, string) (string, error)        { return "", nil }
func (f *fakeGit) CurrentBranch(context.Context, string) (string, error)   { return "", nil }
func (f *fakeGit) LastCommitHash(context.Context, string) (string, error)  { return "", nil }
func (f *fakeGit) HasChanges(context.Context, string, string) (bool, error) {
	return false, nil
}
func (f *fakeGit) Add(context.Context, string, string) error    { return nil }
func (f *fakeGit) Commit(context.Context, string, string) error { return nil }

func newTestTracker(t *testing.T, headHash string) (*Tracker, models.WatchedRepo) {
	t.Helper()
	root := t.TempDir()
	repo := models.NewWatchedRepo(root, "laptop", "")
	require.NoError(t, os.MkdirAll(repo.StateDir, 0o755))

	gc := &fakeGit{refs: map[string]string{"master": headHash}}
	return NewTracker(repo, "master", gc), repo
}

func writeUploadInfo(t *testing.T, repo models.WatchedRepo, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(repo.StateDir, UploadInfoFile), []byte(content), 0o644))
}

func TestRefresh_Pushed(t *testing.T) {
	tr, repo := newTestTracker(t, "abc123")
	writeUploadInfo(t, repo, `{"included_commit_id":"abc123"}`)

	st := tr.Refresh(context.Background())
	assert.Equal(t, models.SyncStatusPushed, st)
	assert.Equal(t, "[Notes: pushed]", tr.Statusline())

	snap := tr.Snapshot()
	assert.Equal(t, "abc123", snap.Head)
	assert.Equal(t, "abc123", snap.SyncedCommit)
}

func TestRefresh_Pending(t *testing.T) {
	tr, repo := newTestTracker(t, "def456")
	writeUploadInfo(t, repo, `{"included_commit_id":"abc123"}`)

	st := tr.Refresh(context.Background())
	assert.Equal(t, models.SyncStatusPending, st)
	assert.Equal(t, "[Notes: there are unpushed commits]", tr.Statusline())
}

func TestRefresh_MissingStatusFile(t *testing.T) {
	tr, _ := newTestTracker(t, "abc123")

	st := tr.Refresh(context.Background())
	assert.Equal(t, models.SyncStatusUnknown, st)
	assert.Equal(t, "", tr.Statusline())
}

func TestRefresh_MalformedJSON(t *testing.T) {
	tr, repo := newTestTracker(t, "abc123")
	writeUploadInfo(t, repo, `{not json`)

	assert.Equal(t, models.SyncStatusUnknown, tr.Refresh(context.Background()))
}

func TestRefresh_EmptyCommitID(t *testing.T) {
	tr, repo := newTestTracker(t, "abc123")
	writeUploadInfo(t, repo, `{"included_commit_id":""}`)

	assert.Equal(t, models.SyncStatusUnknown, tr.Refresh(context.Background()))
}

func TestRefresh_LegacyPlainTextFile(t *testing.T) {
	tr, repo := newTestTracker(t, "abc123")
	path := filepath.Join(repo.StateDir, LegacyUploadFile)
	require.NoError(t, os.WriteFile(path, []byte("abc123\n"), 0o644))

	assert.Equal(t, models.SyncStatusPushed, tr.Refresh(context.Background()))
}

func TestRefresh_JSONFileWinsOverLegacy(t *testing.T) {
	tr, repo := newTestTracker(t, "abc123")
	writeUploadInfo(t, repo, `{"included_commit_id":"abc123"}`)
	legacy := filepath.Join(repo.StateDir, LegacyUploadFile)
	require.NoError(t, os.WriteFile(legacy, []byte("stale999"), 0o644))

	assert.Equal(t, models.SyncStatusPushed, tr.Refresh(context.Background()))
}

func TestRefresh_GitFailureIsUnknown(t *testing.T) {
	root := t.TempDir()
	repo := models.NewWatchedRepo(root, "laptop", "")
	require.NoError(t, os.MkdirAll(repo.StateDir, 0o755))
	writeUploadInfo(t, repo, `{"included_commit_id":"abc123"}`)

	// No "missing-branch" entry in the fake, RevParse errors.
	tr := NewTracker(repo, "missing-branch", &fakeGit{refs: map[string]string{}})
	assert.Equal(t, models.SyncStatusUnknown, tr.Refresh(context.Background()))
}

func TestRefresh_Idempotent(t *testing.T) {
	tr, repo := newTestTracker(t, "abc123")
	writeUploadInfo(t, repo, `{"included_commit_id":"abc123"}`)

	ctx := context.Background()
	first := tr.Refresh(ctx)
	second := tr.Refresh(ctx)
	assert.Equal(t, first, second)
	assert.Equal(t, models.SyncStatusPushed, second)
}

func TestRefresh_TransitionsWithNewUpload(t *testing.T) {
	tr, repo := newTestTracker(t, "abc123")
	ctx := context.Background()

	assert.Equal(t, models.SyncStatusUnknown, tr.Refresh(ctx))

	writeUploadInfo(t, repo, `{"included_commit_id":"old111"}`)
	assert.Equal(t, models.SyncStatusPending, tr.Refresh(ctx))

	writeUploadInfo(t, repo, `{"included_commit_id":"abc123"}`)
	assert.Equal(t, models.SyncStatusPushed, tr.Refresh(ctx))
}

func TestSnapshot_InitialStateIsUnknown(t *testing.T) {
	tr, _ := newTestTracker(t, "abc123")
	assert.Equal(t, models.SyncStatusUnknown, tr.Snapshot().Status)
}
