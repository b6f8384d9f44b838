package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/notesync/notesync/internal/git"
	"github.com/notesync/notesync/internal/models"
	"github.com/notesync/notesync/internal/runner"
	"github.com/notesync/notesync/internal/status"
	"github.com/notesync/notesync/internal/syncer"
)

var syncDetach bool

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Upload local commits via the sync script",
	RunE: func(cmd *cobra.Command, args []string) error {
		return syncRun(models.JobKindPush)
	},
}

var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Fetch other instances' commits via the sync script",
	RunE: func(cmd *cobra.Command, args []string) error {
		return syncRun(models.JobKindPull)
	},
}

func init() {
	for _, c := range []*cobra.Command{pushCmd, pullCmd} {
		c.Flags().BoolVar(&syncDetach, "detach", false, "Start the job and return without waiting")
		rootCmd.AddCommand(c)
	}
}

func syncRun(kind models.JobKind) error {
	repo, err := buildRepo()
	if err != nil {
		return err
	}

	// A running watch daemon owns the single job slot; delegate to it so
	// CLI-triggered jobs can't race daemon-triggered ones.
	if daemonAlive() {
		if err := daemonPost("/api/v1/"+string(kind), nil); err != nil {
			return fmt.Errorf("%s via watch daemon: %w", kind, err)
		}
		ui.Success("%s started via watch daemon", kind)
		return nil
	}

	if dryRun {
		ui.DryRunMsg("Would run %s %s %s %s", viper.GetString("sync_command"), kind, repo.Root, repo.InstanceName)
		return nil
	}

	j, err := getJournal(repo)
	if err != nil {
		ui.Warning("Journal unavailable: %v", err)
		j = nil
	}

	run := runner.New()
	launcher := syncer.NewLauncher(repo, viper.GetString("sync_command"), run, j)

	var job *syncer.Job
	if kind == models.JobKindPush {
		job, err = launcher.Push()
	} else {
		job, err = launcher.Pull()
	}
	if err != nil {
		if runner.IsLaunchFailure(err) {
			ui.Warning("Sync script could not be started: %v", err)
		}
		return err
	}

	ui.VerboseLog("Started %s job %s", kind, shortID(job.ID))
	if syncDetach {
		ui.Info("%s job started (id %s)", kind, shortID(job.ID))
		return nil
	}

	rec := job.Wait()
	if rec.ExitCode != 0 {
		ui.Warning("Notes %s failed (exit %d)", kind, rec.ExitCode)
		return fmt.Errorf("%s failed with exit code %d", kind, rec.ExitCode)
	}
	ui.Success("%s completed", kind)

	tracker := status.NewTracker(repo, viper.GetString("primary_branch"), git.NewClient(run))
	st := tracker.Refresh(context.Background())
	if line := st.Statusline(); line != "" {
		ui.Info("%s", line)
	}
	return nil
}
