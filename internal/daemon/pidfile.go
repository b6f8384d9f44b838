// Package daemon tracks the background watch process through a PID file in
// the repo's state directory.
package daemon

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// PIDFile manages the watch daemon's PID file.
type PIDFile struct {
	Path string
}

// NewPIDFile creates a PIDFile manager for the given path.
func NewPIDFile(path string) *PIDFile {
	return &PIDFile{Path: path}
}

// Acquire claims the PID file for the current process. It fails if another
// live process holds it; a stale file left by a dead process is replaced.
func (p *PIDFile) Acquire() error {
	if pid, running := p.IsRunning(); running {
		return fmt.Errorf("watch daemon already running (pid %d)", pid)
	}
	return p.WritePID(os.Getpid())
}

// WritePID writes the given PID to the file.
func (p *PIDFile) WritePID(pid int) error {
	return os.WriteFile(p.Path, []byte(strconv.Itoa(pid)+"\n"), 0o644)
}

// Read returns the PID recorded in the file.
func (p *PIDFile) Read() (int, error) {
	data, err := os.ReadFile(p.Path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID file content: %w", err)
	}
	return pid, nil
}

// Release deletes the PID file. Missing files are fine: release after a
// crashed daemon must not error.
func (p *PIDFile) Release() error {
	err := os.Remove(p.Path)
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}
