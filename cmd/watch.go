package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/notesync/notesync/internal/api"
	"github.com/notesync/notesync/internal/coordinator"
	"github.com/notesync/notesync/internal/daemon"
	"github.com/notesync/notesync/internal/git"
	"github.com/notesync/notesync/internal/output"
	"github.com/notesync/notesync/internal/runner"
	"github.com/notesync/notesync/internal/status"
	"github.com/notesync/notesync/internal/syncer"
	"github.com/notesync/notesync/internal/watcher"
)

const (
	pidFileName = "notesync-watch.pid"
	logFileName = "notesync-watch.log"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the file watcher and auto-commit daemon",
	Long: `Watch the configured repo for file changes, auto-commit edited files
after the debounce window, and push commits via the sync script.

'watch start' forks a background daemon; 'watch run' stays in the
foreground. The daemon serves a local HTTP API for editor plugins on
the configured listen_addr.`,
}

var watchRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the watcher in the foreground",
	RunE: func(cmd *cobra.Command, args []string) error {
		return watchRunRun()
	},
}

var watchStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the watcher as a background daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		return watchStartRun()
	},
}

var watchStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the background watcher",
	RunE: func(cmd *cobra.Command, args []string) error {
		return watchStopRun()
	},
}

var watchStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the watcher is running",
	RunE: func(cmd *cobra.Command, args []string) error {
		return watchStatusRun()
	},
}

func init() {
	watchCmd.AddCommand(watchRunCmd)
	watchCmd.AddCommand(watchStartCmd)
	watchCmd.AddCommand(watchStopCmd)
	watchCmd.AddCommand(watchStatusCmd)
	rootCmd.AddCommand(watchCmd)
}

func watchPIDFile(stateDir string) *daemon.PIDFile {
	return daemon.NewPIDFile(filepath.Join(stateDir, pidFileName))
}

// watchRunRun is the daemon main loop: claim the PID file, wire the
// coordinator, watcher, and API server together, and block until a
// shutdown signal arrives.
func watchRunRun() error {
	repo, err := buildRepo()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(repo.StateDir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	pf := watchPIDFile(repo.StateDir)
	if err := pf.Acquire(); err != nil {
		return err
	}
	defer func() { _ = pf.Release() }()

	logClose, err := setupDaemonLog(repo.StateDir)
	if err != nil {
		return err
	}
	defer logClose()

	ctx, stop := signal.NotifyContext(context.Background(), shutdownSignals()...)
	defer stop()

	j, err := getJournal(repo)
	if err != nil {
		slog.Warn("journal unavailable, running without history", "error", err)
		j = nil
	}

	run := runner.New()
	gitClient := git.NewClient(run)
	tracker := status.NewTracker(repo, viper.GetString("primary_branch"), gitClient)
	launcher := syncer.NewLauncher(repo, viper.GetString("sync_command"), run, j)

	coord := coordinator.New(coordinator.Options{
		Repo:       repo,
		Git:        gitClient,
		Launcher:   launcher,
		Tracker:    tracker,
		Journal:    j,
		UI:         slogNotifier{},
		Delay:      debounceDelay(),
		AutoCommit: viper.GetBool("auto_commit"),
	})

	w, err := watcher.New(repo, coord.OnFileChanged)
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	defer func() { _ = w.Close() }()

	tracker.Refresh(ctx)

	go coord.Run(ctx)
	go w.Start(ctx)

	addr := viper.GetString("listen_addr")
	slog.Info("watch daemon started",
		"repo", repo.Root,
		"instance", repo.InstanceName,
		"addr", addr,
		"auto_commit", viper.GetBool("auto_commit"),
		"debounce", debounceDelay().String(),
	)
	ui.Info("Watching %s (API on %s)", output.Cyan(repo.Root), addr)

	srv := api.NewServer(coord, tracker, launcher, j)
	if err := api.Serve(ctx, addr, srv.Router()); err != nil {
		return fmt.Errorf("api server: %w", err)
	}

	slog.Info("watch daemon stopped")
	return nil
}

// setupDaemonLog points slog at <stateDir>/notesync-watch.log. Console
// output stays on the UI; the log file is for post-mortems.
func setupDaemonLog(stateDir string) (func(), error) {
	path := filepath.Join(stateDir, logFileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	handler := slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelInfo})
	slog.SetDefault(slog.New(handler))
	return func() { _ = f.Close() }, nil
}

// slogNotifier routes coordinator warnings into the daemon log.
type slogNotifier struct{}

func (slogNotifier) Warning(format string, a ...any) {
	slog.Warn(fmt.Sprintf(format, a...))
}

func watchStartRun() error {
	repo, err := buildRepo()
	if err != nil {
		return err
	}

	pf := watchPIDFile(repo.StateDir)
	if pid, running := pf.IsRunning(); running {
		return fmt.Errorf("watch daemon already running (pid %d)", pid)
	}

	if dryRun {
		ui.DryRunMsg("Would start watch daemon for %s", repo.Root)
		return nil
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate executable: %w", err)
	}

	child := exec.Command(exe, "watch", "run")
	child.Stdin = nil
	child.Stdout = nil
	child.Stderr = nil
	setDaemonAttrs(child)

	if err := child.Start(); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}
	// The child claims the PID file itself; don't wait on it.
	_ = child.Process.Release()

	// Give the child a moment to come up and confirm via the API.
	for i := 0; i < 20; i++ {
		time.Sleep(100 * time.Millisecond)
		if daemonAlive() {
			pid, _ := pf.Read()
			ui.Success("Watch daemon started (pid %d)", pid)
			return nil
		}
	}

	ui.Warning("Daemon launched but not answering yet, check %s", filepath.Join(repo.StateDir, logFileName))
	return nil
}

func watchStopRun() error {
	repo, err := buildRepo()
	if err != nil {
		return err
	}

	pf := watchPIDFile(repo.StateDir)
	pid, running := pf.IsRunning()
	if !running {
		ui.Info("Watch daemon is not running")
		// Clean up a stale PID file if one is left behind.
		_ = pf.Release()
		return nil
	}

	if dryRun {
		ui.DryRunMsg("Would stop watch daemon (pid %d)", pid)
		return nil
	}

	if err := pf.Signal(sigTERM()); err != nil {
		return fmt.Errorf("signal daemon: %w", err)
	}

	for i := 0; i < 50; i++ {
		time.Sleep(100 * time.Millisecond)
		if _, still := pf.IsRunning(); !still {
			ui.Success("Watch daemon stopped (pid %d)", pid)
			return nil
		}
	}

	ui.Warning("Daemon (pid %d) did not exit, sending KILL", pid)
	if err := pf.Signal(sigKILL()); err != nil {
		return fmt.Errorf("kill daemon: %w", err)
	}
	_ = pf.Release()
	return nil
}

func watchStatusRun() error {
	repo, err := buildRepo()
	if err != nil {
		return err
	}

	pf := watchPIDFile(repo.StateDir)
	pid, running := pf.IsRunning()
	if !running {
		ui.Info("Watch daemon: not running")
		return nil
	}

	ui.Info("Watch daemon: %s (pid %d)", output.Green("running"), pid)
	if daemonAlive() {
		var resp struct {
			Status     string `json:"status"`
			Statusline string `json:"statusline"`
			Head       string `json:"head"`
		}
		if err := daemonGet("/api/v1/status", &resp); err == nil {
			ui.Info("Sync status: %s", resp.Status)
			ui.VerboseLog("HEAD: %s", shortHash(resp.Head))
		}
	} else {
		ui.Warning("Process is alive but the API on %s is not answering", viper.GetString("listen_addr"))
	}
	return nil
}
