// Package syncer launches the external sync script as asynchronous push and
// pull jobs. Jobs hold a single in-flight slot: push and pull both touch the
// working tree, so launching anything while a job is outstanding is rejected
// rather than queued or silently orphaned.
package syncer

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/notesync/notesync/internal/journal"
	"github.com/notesync/notesync/internal/models"
	"github.com/notesync/notesync/internal/runner"
)

// ErrJobInFlight is returned when a job is launched while another is still
// running.
var ErrJobInFlight = errors.New("a sync job is already in flight")

// Job is a handle to one running sync process.
type Job struct {
	ID        string
	Kind      models.JobKind
	StartedAt time.Time

	done   chan struct{}
	result *models.SyncJob
}

// Done is closed when the process has exited and the result is available.
func (j *Job) Done() <-chan struct{} { return j.done }

// Wait blocks until the process exits and returns the finished job record.
func (j *Job) Wait() *models.SyncJob {
	<-j.done
	return j.result
}

// Launcher starts sync script invocations and tracks the in-flight job.
type Launcher struct {
	repo    models.WatchedRepo
	command string
	run     runner.Runner
	journal journal.Journal        // optional
	notify  func(*models.SyncJob) // optional, called after each job exits

	mu      sync.Mutex
	current *Job
}

// NewLauncher returns a Launcher invoking command as
// `command <verb> <repoRoot> <instanceName>`. jour may be nil.
func NewLauncher(repo models.WatchedRepo, command string, run runner.Runner, jour journal.Journal) *Launcher {
	return &Launcher{
		repo:    repo,
		command: command,
		run:     run,
		journal: jour,
	}
}

// SetNotify registers a callback invoked once per finished job, after the
// journal record is written. Must be set before launching.
func (l *Launcher) SetNotify(fn func(*models.SyncJob)) {
	l.notify = fn
}

// Push launches an async push job.
func (l *Launcher) Push() (*Job, error) {
	return l.launch(models.JobKindPush)
}

// Pull launches an async pull job.
func (l *Launcher) Pull() (*Job, error) {
	return l.launch(models.JobKindPull)
}

// InFlight returns the currently running job, if any.
func (l *Launcher) InFlight() (*Job, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current, l.current != nil
}

func (l *Launcher) launch(kind models.JobKind) (*Job, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.current != nil {
		return nil, ErrJobInFlight
	}

	job := &Job{
		ID:        newULID(),
		Kind:      kind,
		StartedAt: time.Now().UTC(),
		done:      make(chan struct{}),
	}

	args := []string{string(kind), l.repo.Root, l.repo.InstanceName}
	err := l.run.Start(l.repo.Root, l.command, args, func(res *runner.Result) {
		l.finish(job, res)
	})
	if err != nil {
		return nil, err
	}

	l.current = job
	return job, nil
}

// finish records the job outcome, releases the slot, and notifies.
func (l *Launcher) finish(job *Job, res *runner.Result) {
	now := time.Now().UTC()
	rec := &models.SyncJob{
		ID:         job.ID,
		Kind:       job.Kind,
		ExitCode:   res.ExitCode,
		StartedAt:  job.StartedAt,
		FinishedAt: &now,
	}

	if l.journal != nil {
		if err := l.journal.RecordSyncJob(context.Background(), rec); err != nil {
			slog.Warn("failed to record sync job", "kind", rec.Kind, "error", err)
		}
	}

	l.mu.Lock()
	if l.current == job {
		l.current = nil
	}
	l.mu.Unlock()

	job.result = rec
	close(job.done)

	if l.notify != nil {
		l.notify(rec)
	}
}

// newULID generates a new ULID string.
func newULID() string {
	entropy := rand.New(rand.NewSource(time.Now().UnixNano()))
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(entropy, 0)).String()
}
