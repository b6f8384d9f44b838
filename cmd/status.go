package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/notesync/notesync/internal/git"
	"github.com/notesync/notesync/internal/output"
	"github.com/notesync/notesync/internal/runner"
	"github.com/notesync/notesync/internal/status"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sync status and recent activity",
	RunE: func(cmd *cobra.Command, args []string) error {
		return statusRun()
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func statusRun() error {
	repo, err := buildRepo()
	if err != nil {
		return err
	}

	tracker := status.NewTracker(repo, viper.GetString("primary_branch"), git.NewClient(runner.New()))
	tracker.Refresh(context.Background())
	snap := tracker.Snapshot()

	ui.Info("Repo: %s (instance %s)", output.Cyan(repo.Root), repo.InstanceName)
	ui.Info("Sync status: %s", output.SyncStatusColor(snap.Status))
	if snap.Head != "" {
		ui.VerboseLog("HEAD:   %s", shortHash(snap.Head))
		ui.VerboseLog("Synced: %s", shortHash(snap.SyncedCommit))
	}

	if daemonAlive() {
		ui.Info("Watch daemon: %s", output.Green("running"))
	} else {
		ui.Info("Watch daemon: not running")
	}

	j, err := getJournal(repo)
	if err != nil {
		ui.VerboseLog("Journal unavailable: %v", err)
		return nil
	}

	ctx := context.Background()
	commits, err := j.ListCommits(ctx, 5)
	if err != nil || len(commits) == 0 {
		return nil
	}

	fmt.Fprintln(ui.Out)
	table := ui.Table([]string{"Commit", "File", "When"})
	for _, rec := range commits {
		table.Append([]string{
			output.Cyan(shortHash(rec.CommitHash)),
			rec.Path,
			timeAgo(rec.CreatedAt),
		})
	}
	table.Render()
	return nil
}
