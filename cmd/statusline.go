package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/notesync/notesync/internal/git"
	"github.com/notesync/notesync/internal/runner"
	"github.com/notesync/notesync/internal/status"
)

var statuslineCmd = &cobra.Command{
	Use:   "statusline",
	Short: "Print the bare statusline string for editor embedding",
	Long: `Print the sync statusline for embedding in an editor status line:
"" when unknown, "[Notes: pushed]", or "[Notes: there are unpushed commits]".

Queries the watch daemon when running, otherwise computes locally.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return statuslineRun()
	},
}

func init() {
	rootCmd.AddCommand(statuslineCmd)
}

func statuslineRun() error {
	// Prefer the daemon: it has the status cached and avoids a git fork on
	// every editor redraw.
	var resp struct {
		Statusline string `json:"statusline"`
	}
	if err := daemonGet("/api/v1/status", &resp); err == nil {
		fmt.Fprintln(ui.Out, resp.Statusline)
		return nil
	}

	repo, err := buildRepo()
	if err != nil {
		// Statusline output is cosmetic; never break the editor over it.
		fmt.Fprintln(ui.Out, "")
		return nil
	}

	tracker := status.NewTracker(repo, viper.GetString("primary_branch"), git.NewClient(runner.New()))
	st := tracker.Refresh(context.Background())
	fmt.Fprintln(ui.Out, st.Statusline())
	return nil
}
