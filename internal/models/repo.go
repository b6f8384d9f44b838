package models

import (
	"path/filepath"
	"strings"
)

// WatchedRepo describes the git working tree being monitored for auto-commit.
// It is built once from configuration at startup and never mutated.
type WatchedRepo struct {
	// Root is the absolute path of the working tree.
	Root string

	// InstanceName distinguishes this editing instance in commit messages
	// and is passed to the sync script. Never contains '.'.
	InstanceName string

	// StateDir is the repo's internal metadata directory (status file,
	// journal, pidfile). Files under it are never auto-committed.
	StateDir string
}

// NewWatchedRepo builds a WatchedRepo, cleaning paths and sanitizing the
// instance name. The sync script rejects instance names containing '.', so
// dots are replaced with underscores here rather than at launch time.
func NewWatchedRepo(root, instanceName, stateDir string) WatchedRepo {
	root = filepath.Clean(root)
	if stateDir == "" {
		stateDir = filepath.Join(root, ".notesync")
	}
	return WatchedRepo{
		Root:         root,
		InstanceName: SanitizeInstanceName(instanceName),
		StateDir:     filepath.Clean(stateDir),
	}
}

// SanitizeInstanceName replaces '.' with '_' to satisfy the sync script's
// bundle naming scheme (instance names become filename segments).
func SanitizeInstanceName(name string) string {
	return strings.ReplaceAll(name, ".", "_")
}

// Contains reports whether path is inside the working tree.
func (r WatchedRepo) Contains(path string) bool {
	return isUnder(path, r.Root)
}

// Excluded reports whether path is internal bookkeeping that must never be
// auto-committed: anything under the state dir or under .git.
func (r WatchedRepo) Excluded(path string) bool {
	return isUnder(path, r.StateDir) || isUnder(path, filepath.Join(r.Root, ".git"))
}

// Rel returns the repo-relative form of path, or the path unchanged if it
// cannot be made relative.
func (r WatchedRepo) Rel(path string) string {
	rel, err := filepath.Rel(r.Root, filepath.Clean(path))
	if err != nil {
		return path
	}
	return rel
}

func isUnder(path, dir string) bool {
	path = filepath.Clean(path)
	return path == dir || strings.HasPrefix(path, dir+string(filepath.Separator))
}
