package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/notesync/notesync/internal/output"
)

var logLimit int

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Show recent auto-commits and sync jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		return logRun()
	},
}

func init() {
	logCmd.Flags().IntVar(&logLimit, "limit", 20, "Maximum entries per table")
	rootCmd.AddCommand(logCmd)
}

func logRun() error {
	repo, err := buildRepo()
	if err != nil {
		return err
	}
	j, err := getJournal(repo)
	if err != nil {
		return err
	}

	ctx := context.Background()

	commits, err := j.ListCommits(ctx, logLimit)
	if err != nil {
		return fmt.Errorf("list commits: %w", err)
	}
	jobs, err := j.ListSyncJobs(ctx, logLimit)
	if err != nil {
		return fmt.Errorf("list sync jobs: %w", err)
	}

	if len(commits) == 0 && len(jobs) == 0 {
		ui.Info("No activity recorded yet")
		return nil
	}

	if len(commits) > 0 {
		ui.Info("Auto-commits")
		table := ui.Table([]string{"Commit", "File", "Message", "When"})
		for _, rec := range commits {
			table.Append([]string{
				output.Cyan(shortHash(rec.CommitHash)),
				rec.Path,
				rec.Message,
				timeAgo(rec.CreatedAt),
			})
		}
		table.Render()
	}

	if len(jobs) > 0 {
		if len(commits) > 0 {
			fmt.Fprintln(ui.Out)
		}
		ui.Info("Sync jobs")
		table := ui.Table([]string{"ID", "Kind", "Exit", "Started"})
		for _, job := range jobs {
			table.Append([]string{
				shortID(job.ID),
				string(job.Kind),
				output.ExitCodeColor(job.ExitCode),
				timeAgo(job.StartedAt),
			})
		}
		table.Render()
	}

	return nil
}
