// Package coordinator turns file-change events into debounced git commits.
// All state transitions happen on a single event-loop goroutine; debounce
// timers and process-exit callbacks only post messages onto that loop.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/notesync/notesync/internal/debounce"
	"github.com/notesync/notesync/internal/git"
	"github.com/notesync/notesync/internal/journal"
	"github.com/notesync/notesync/internal/models"
	"github.com/notesync/notesync/internal/status"
	"github.com/notesync/notesync/internal/syncer"
)

// Notifier surfaces user-visible warnings. Satisfied by *output.UI.
type Notifier interface {
	Warning(format string, a ...any)
}

// Options configures a Coordinator.
type Options struct {
	Repo       models.WatchedRepo
	Git        git.Client
	Launcher   *syncer.Launcher
	Tracker    *status.Tracker
	Journal    journal.Journal // optional
	UI         Notifier
	Delay      time.Duration // debounce window
	AutoCommit bool
}

type event any

type fileChanged struct{ path string }
type commitDue struct{ path string }
type jobFinished struct{ job *models.SyncJob }

// Coordinator schedules and performs auto-commits for the watched repo.
type Coordinator struct {
	opts Options
	deb  *debounce.Debouncer

	events chan event
}

// New creates a Coordinator. The launcher's notify hook is claimed so job
// completions are processed on the coordinator's event loop.
func New(opts Options) *Coordinator {
	c := &Coordinator{
		opts:   opts,
		deb:    debounce.New(),
		events: make(chan event, 64),
	}
	if opts.Launcher != nil {
		opts.Launcher.SetNotify(func(job *models.SyncJob) {
			c.post(jobFinished{job: job})
		})
	}
	return c
}

// OnFileChanged reacts to an edit of absPath. Paths outside the repo, under
// the state dir, or under .git are ignored, as is everything when
// auto-commit is disabled. Accepted paths get a debounced commit scheduled;
// a newer event for the same file restarts its delay without touching
// timers for other files.
func (c *Coordinator) OnFileChanged(absPath string) {
	if !c.opts.AutoCommit {
		return
	}
	absPath = filepath.Clean(absPath)
	if !c.opts.Repo.Contains(absPath) || c.opts.Repo.Excluded(absPath) {
		return
	}

	c.deb.Schedule(absPath, c.opts.Delay, func() {
		c.post(commitDue{path: absPath})
	})
}

// Pending reports whether a commit is scheduled for absPath.
func (c *Coordinator) Pending(absPath string) bool {
	return c.deb.Pending(filepath.Clean(absPath))
}

// Run processes events until ctx is cancelled.
func (c *Coordinator) Run(ctx context.Context) {
	defer c.deb.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-c.events:
			switch e := ev.(type) {
			case fileChanged:
				c.OnFileChanged(e.path)
			case commitDue:
				c.commitFile(ctx, e.path)
			case jobFinished:
				c.handleJobExit(ctx, e.job)
			}
		}
	}
}

// post delivers an event without ever blocking a timer or exit callback.
// Events are dropped once the loop has shut down and the buffer is full.
func (c *Coordinator) post(ev event) {
	select {
	case c.events <- ev:
	default:
		slog.Warn("coordinator event dropped", "event", fmt.Sprintf("%T", ev))
	}
}

// CommitNow commits absPath immediately, bypassing the debounce window.
// Used by the `commit` command; the daemon path goes through OnFileChanged.
func (c *Coordinator) CommitNow(ctx context.Context, absPath string) {
	c.commitFile(ctx, filepath.Clean(absPath))
}

// commitFile stages and commits one file if it differs from HEAD, then
// refreshes the sync status and fires an async push. Failures are warnings,
// never fatal: the next edit event re-arms the cycle.
func (c *Coordinator) commitFile(ctx context.Context, absPath string) {
	rel := c.opts.Repo.Rel(absPath)

	changed, err := c.opts.Git.HasChanges(ctx, c.opts.Repo.Root, rel)
	if err != nil {
		c.opts.UI.Warning("Committing to git repo failed: %v", err)
		return
	}
	if !changed {
		return
	}

	if err := c.opts.Git.Add(ctx, c.opts.Repo.Root, rel); err != nil {
		c.opts.UI.Warning("Committing to git repo failed: %v", err)
		return
	}

	message := fmt.Sprintf("%s auto-update: %s", c.opts.Repo.InstanceName, rel)
	if err := c.opts.Git.Commit(ctx, c.opts.Repo.Root, message); err != nil {
		c.opts.UI.Warning("Committing to git repo failed: %v", err)
		return
	}

	c.recordCommit(ctx, rel, message)

	if c.opts.Tracker != nil {
		c.opts.Tracker.Refresh(ctx)
	}

	if c.opts.Launcher != nil {
		if _, err := c.opts.Launcher.Push(); err != nil {
			if err == syncer.ErrJobInFlight {
				slog.Info("push skipped, sync job already in flight", "path", rel)
			} else {
				c.opts.UI.Warning("Starting sync push failed: %v", err)
			}
		}
	}
}

// recordCommit writes the journal entry. Journal problems are cosmetic.
func (c *Coordinator) recordCommit(ctx context.Context, rel, message string) {
	if c.opts.Journal == nil {
		return
	}
	hash, err := c.opts.Git.LastCommitHash(ctx, c.opts.Repo.Root)
	if err != nil {
		hash = ""
	}
	rec := &models.CommitRecord{
		Path:       rel,
		CommitHash: hash,
		Message:    message,
	}
	if err := c.opts.Journal.RecordCommit(ctx, rec); err != nil {
		slog.Warn("failed to record commit", "path", rel, "error", err)
	}
}

// handleJobExit surfaces sync failures and refreshes status regardless of
// the outcome.
func (c *Coordinator) handleJobExit(ctx context.Context, job *models.SyncJob) {
	if job.ExitCode != 0 {
		c.opts.UI.Warning("Notes %s failed (exit %d)", job.Kind, job.ExitCode)
	}
	if c.opts.Tracker != nil {
		c.opts.Tracker.Refresh(ctx)
	}
}
