package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/notesync/notesync/internal/coordinator"
	"github.com/notesync/notesync/internal/git"
	"github.com/notesync/notesync/internal/runner"
	"github.com/notesync/notesync/internal/status"
	"github.com/notesync/notesync/internal/syncer"
)

var commitNoPush bool

var commitCmd = &cobra.Command{
	Use:   "commit <file>",
	Short: "Commit a file immediately, skipping the debounce window",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return commitRun(args[0])
	},
}

func init() {
	commitCmd.Flags().BoolVar(&commitNoPush, "no-push", false, "Commit without starting a push job")
	rootCmd.AddCommand(commitCmd)
}

func commitRun(path string) error {
	repo, err := buildRepo()
	if err != nil {
		return err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}
	if !repo.Contains(abs) {
		return fmt.Errorf("%s is outside the watched repo %s", abs, repo.Root)
	}
	if repo.Excluded(abs) {
		return fmt.Errorf("%s is under an excluded directory", abs)
	}

	if dryRun {
		ui.DryRunMsg("Would commit %s", repo.Rel(abs))
		return nil
	}

	j, err := getJournal(repo)
	if err != nil {
		ui.Warning("Journal unavailable: %v", err)
		j = nil
	}

	run := runner.New()
	gitClient := git.NewClient(run)
	tracker := status.NewTracker(repo, viper.GetString("primary_branch"), gitClient)

	var launcher *syncer.Launcher
	if !commitNoPush {
		launcher = syncer.NewLauncher(repo, viper.GetString("sync_command"), run, j)
	}

	coord := coordinator.New(coordinator.Options{
		Repo:       repo,
		Git:        gitClient,
		Launcher:   launcher,
		Tracker:    tracker,
		Journal:    j,
		UI:         ui,
		Delay:      debounceDelay(),
		AutoCommit: true,
	})

	coord.CommitNow(context.Background(), abs)

	// CommitNow fires the push asynchronously; wait here so the CLI reports
	// the result instead of exiting mid-job.
	if launcher != nil {
		if job, ok := launcher.InFlight(); ok {
			rec := job.Wait()
			if rec.ExitCode != 0 {
				return fmt.Errorf("push failed with exit code %d", rec.ExitCode)
			}
			ui.Success("Committed and pushed %s", repo.Rel(abs))
			return nil
		}
	}

	ui.Success("Committed %s", repo.Rel(abs))
	st := tracker.Refresh(context.Background())
	if line := st.Statusline(); line != "" {
		ui.Info("%s", line)
	}
	return nil
}
