package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/notesync/notesync/internal/journal"
	"github.com/notesync/notesync/internal/models"
	"github.com/notesync/notesync/internal/output"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui   *output.UI
	jour journal.Journal

	verbose bool
	dryRun  bool
)

var rootCmd = &cobra.Command{
	Use:   "notesync",
	Short: "Auto-commit and sync a notes git repository",
	Long: `notesync auto-commits edited files in a watched git repository on a
debounce timer and hands the commits to an external sync script for
transport to/from a remote store. Editors integrate through the watch
daemon's filesystem watcher, its local HTTP API, or the statusline command.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return statusRun()
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would happen without making changes")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/notesync/config.yaml)")
}

func initConfig() {
	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		dir, err := configDirFunc()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}
		viper.AddConfigPath(dir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("NOTESYNC")
	viper.AutomaticEnv()

	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "notesync"
	}

	viper.SetDefault("repo_path", "")
	viper.SetDefault("instance_name", hostname)
	viper.SetDefault("primary_branch", "master")
	viper.SetDefault("auto_commit", true)
	viper.SetDefault("debounce_delay_ms", 30000)
	viper.SetDefault("sync_command", "sync-repo")
	viper.SetDefault("state_dir", "")
	viper.SetDefault("listen_addr", "127.0.0.1:7341")

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
	ui.DryRun = dryRun

	// The journal is opened lazily so status/config commands work without
	// touching the database.
}

// buildRepo constructs the WatchedRepo from configuration.
func buildRepo() (models.WatchedRepo, error) {
	root := viper.GetString("repo_path")
	if root == "" {
		return models.WatchedRepo{}, fmt.Errorf("repo_path is not configured (run 'notesync config init' or set NOTESYNC_REPO_PATH)")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return models.WatchedRepo{}, fmt.Errorf("resolve repo_path: %w", err)
	}
	if info, err := os.Stat(abs); err != nil || !info.IsDir() {
		return models.WatchedRepo{}, fmt.Errorf("repo_path is not a directory: %s", abs)
	}

	return models.NewWatchedRepo(abs, viper.GetString("instance_name"), viper.GetString("state_dir")), nil
}

// debounceDelay returns the configured debounce window.
func debounceDelay() time.Duration {
	ms := viper.GetInt("debounce_delay_ms")
	if ms <= 0 {
		ms = 30000
	}
	return time.Duration(ms) * time.Millisecond
}

// getJournal returns the shared journal, opening it on first call.
func getJournal(repo models.WatchedRepo) (journal.Journal, error) {
	if jour != nil {
		return jour, nil
	}

	j, err := journal.NewSQLiteJournal(filepath.Join(repo.StateDir, "journal.db"))
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if err := j.Migrate(context.Background()); err != nil {
		_ = j.Close()
		return nil, fmt.Errorf("migrate journal: %w", err)
	}

	jour = j
	return jour, nil
}

// shortID returns a truncated ULID for display (first 12 chars).
func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// shortHash returns an abbreviated commit hash for display.
func shortHash(hash string) string {
	if len(hash) > 8 {
		return hash[:8]
	}
	return hash
}

// timeAgo returns a human-readable duration from a time.
func timeAgo(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		days := int(d.Hours() / 24)
		if days == 1 {
			return "1d ago"
		}
		return fmt.Sprintf("%dd ago", days)
	}
}
