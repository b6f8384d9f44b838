package syncer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notesync/notesync/internal/models"
	"github.com/notesync/notesync/internal/runner"
)

// fakeRunner captures Start calls and lets the test decide when and how the
// process "exits".
type fakeRunner struct {
	mu     sync.Mutex
	starts []startCall
}

type startCall struct {
	dir    string
	name   string
	args   []string
	onExit func(*runner.Result)
}

func (f *fakeRunner) Run(context.Context, string, string, ...string) (*runner.Result, error) {
	return &runner.Result{}, nil
}

func (f *fakeRunner) Start(dir, name string, args []string, onExit func(*runner.Result)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts = append(f.starts, startCall{dir: dir, name: name, args: args, onExit: onExit})
	return nil
}

func (f *fakeRunner) exit(i, code int) {
	f.mu.Lock()
	call := f.starts[i]
	f.mu.Unlock()
	call.onExit(&runner.Result{ExitCode: code})
}

func (f *fakeRunner) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.starts)
}

// memJournal records sync jobs in memory.
type memJournal struct {
	mu   sync.Mutex
	jobs []*models.SyncJob
}

func (m *memJournal) RecordCommit(context.Context, *models.CommitRecord) error { return nil }
func (m *memJournal) ListCommits(context.Context, int) ([]*models.CommitRecord, error) {
	return nil, nil
}

func (m *memJournal) RecordSyncJob(_ context.Context, job *models.SyncJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs = append(m.jobs, job)
	return nil
}

func (m *memJournal) ListSyncJobs(context.Context, int) ([]*models.SyncJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.jobs, nil
}

func (m *memJournal) Migrate(context.Context) error { return nil }
func (m *memJournal) Close() error                  { return nil }

func testRepo() models.WatchedRepo {
	return models.NewWatchedRepo("/notes", "laptop", "")
}

func TestPush_InvokesSyncScript(t *testing.T) {
	run := &fakeRunner{}
	l := NewLauncher(testRepo(), "sync-repo", run, nil)

	job, err := l.Push()
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, models.JobKindPush, job.Kind)

	require.Equal(t, 1, run.count())
	call := run.starts[0]
	assert.Equal(t, "sync-repo", call.name)
	assert.Equal(t, []string{"push", "/notes", "laptop"}, call.args)
	assert.Equal(t, "/notes", call.dir)
}

func TestPull_InvokesSyncScript(t *testing.T) {
	run := &fakeRunner{}
	l := NewLauncher(testRepo(), "sync-repo", run, nil)

	job, err := l.Pull()
	require.NoError(t, err)
	assert.Equal(t, models.JobKindPull, job.Kind)
	assert.Equal(t, []string{"pull", "/notes", "laptop"}, run.starts[0].args)
}

func TestLaunch_SecondJobRejectedWhileInFlight(t *testing.T) {
	run := &fakeRunner{}
	l := NewLauncher(testRepo(), "sync-repo", run, nil)

	_, err := l.Push()
	require.NoError(t, err)

	_, err = l.Push()
	assert.ErrorIs(t, err, ErrJobInFlight)
	_, err = l.Pull()
	assert.ErrorIs(t, err, ErrJobInFlight)

	assert.Equal(t, 1, run.count(), "rejected launches must not spawn processes")
}

func TestLaunch_SlotFreedAfterExit(t *testing.T) {
	run := &fakeRunner{}
	l := NewLauncher(testRepo(), "sync-repo", run, nil)

	job, err := l.Push()
	require.NoError(t, err)

	run.exit(0, 0)
	<-job.Done()

	_, ok := l.InFlight()
	assert.False(t, ok)

	_, err = l.Pull()
	assert.NoError(t, err)
}

func TestWait_ReturnsFinishedRecord(t *testing.T) {
	run := &fakeRunner{}
	l := NewLauncher(testRepo(), "sync-repo", run, nil)

	job, err := l.Push()
	require.NoError(t, err)

	go run.exit(0, 7)
	rec := job.Wait()

	assert.Equal(t, job.ID, rec.ID)
	assert.Equal(t, models.JobKindPush, rec.Kind)
	assert.Equal(t, 7, rec.ExitCode)
	assert.False(t, rec.Succeeded())
	require.NotNil(t, rec.FinishedAt)
	assert.False(t, rec.FinishedAt.Before(rec.StartedAt))
}

func TestFinish_RecordsJournalEntry(t *testing.T) {
	run := &fakeRunner{}
	jour := &memJournal{}
	l := NewLauncher(testRepo(), "sync-repo", run, jour)

	job, err := l.Push()
	require.NoError(t, err)
	run.exit(0, 0)
	<-job.Done()

	jobs, _ := jour.ListSyncJobs(context.Background(), 10)
	require.Len(t, jobs, 1)
	assert.Equal(t, job.ID, jobs[0].ID)
	assert.True(t, jobs[0].Succeeded())
}

func TestSetNotify_CalledOnceAfterExit(t *testing.T) {
	run := &fakeRunner{}
	l := NewLauncher(testRepo(), "sync-repo", run, nil)

	got := make(chan *models.SyncJob, 1)
	l.SetNotify(func(job *models.SyncJob) { got <- job })

	_, err := l.Pull()
	require.NoError(t, err)
	run.exit(0, 1)

	select {
	case rec := <-got:
		assert.Equal(t, models.JobKindPull, rec.Kind)
		assert.Equal(t, 1, rec.ExitCode)
	case <-time.After(2 * time.Second):
		t.Fatal("notify was not called")
	}
}
