package git

import (
	"context"
	"fmt"
	"strings"

	"github.com/notesync/notesync/internal/runner"
)

// Client defines the git operations the coordinator and status tracker need.
// All methods take a repo path since nothing here assumes a process-wide cwd.
type Client interface {
	RepoRoot(ctx context.Context, path string) (string, error)
	CurrentBranch(ctx context.Context, path string) (string, error)
	RevParse(ctx context.Context, path, ref string) (string, error)
	LastCommitHash(ctx context.Context, path string) (string, error)
	HasChanges(ctx context.Context, path, file string) (bool, error)
	Add(ctx context.Context, path, file string) error
	Commit(ctx context.Context, path, message string) error
}

// RealClient implements Client by shelling out to the git CLI through a Runner.
type RealClient struct {
	run runner.Runner
}

// NewClient returns a RealClient using the given runner.
func NewClient(run runner.Runner) *RealClient {
	return &RealClient{run: run}
}

// gitCmd runs git in path and returns trimmed stdout. A nonzero exit becomes
// an error carrying the first line of stderr.
func (c *RealClient) gitCmd(ctx context.Context, path string, args ...string) (string, error) {
	res, err := c.run.Run(ctx, path, "git", args...)
	if err != nil {
		return "", fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}
	if !res.Ok() {
		return "", fmt.Errorf("git %s: %s", strings.Join(args, " "), runner.Line(res.Stderr))
	}
	return strings.TrimSpace(res.Stdout), nil
}

func (c *RealClient) RepoRoot(ctx context.Context, path string) (string, error) {
	return c.gitCmd(ctx, path, "rev-parse", "--show-toplevel")
}

func (c *RealClient) CurrentBranch(ctx context.Context, path string) (string, error) {
	return c.gitCmd(ctx, path, "rev-parse", "--abbrev-ref", "HEAD")
}

func (c *RealClient) RevParse(ctx context.Context, path, ref string) (string, error) {
	return c.gitCmd(ctx, path, "rev-parse", ref)
}

func (c *RealClient) LastCommitHash(ctx context.Context, path string) (string, error) {
	return c.gitCmd(ctx, path, "log", "-1", "--format=%H")
}

// HasChanges reports whether file differs from HEAD. Untracked files count
// as changed: `git diff` is silent about them, so tracked-ness is checked
// first with ls-files.
func (c *RealClient) HasChanges(ctx context.Context, path, file string) (bool, error) {
	tracked, err := c.run.Run(ctx, path, "git", "ls-files", "--error-unmatch", "--", file)
	if err != nil {
		return false, fmt.Errorf("git ls-files: %w", err)
	}
	if !tracked.Ok() {
		return true, nil
	}

	res, err := c.run.Run(ctx, path, "git", "diff", "--quiet", "HEAD", "--", file)
	if err != nil {
		return false, fmt.Errorf("git diff: %w", err)
	}
	// Exit 0 means no changes, 1 means changes, anything else is a failure.
	switch res.ExitCode {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("git diff --quiet HEAD -- %s: %s", file, runner.Line(res.Stderr))
	}
}

func (c *RealClient) Add(ctx context.Context, path, file string) error {
	_, err := c.gitCmd(ctx, path, "add", "--", file)
	return err
}

func (c *RealClient) Commit(ctx context.Context, path, message string) error {
	_, err := c.gitCmd(ctx, path, "commit", "-m", message)
	return err
}
