//go:build !windows

package daemon

import (
	"fmt"
	"syscall"
)

// IsRunning reports whether the PID file points at a live process.
func (p *PIDFile) IsRunning() (int, bool) {
	pid, err := p.Read()
	if err != nil {
		return 0, false
	}
	// Signal 0 tests for existence without delivering anything.
	err = syscall.Kill(pid, 0)
	return pid, err == nil
}

// Signal sends sig to the process recorded in the PID file.
func (p *PIDFile) Signal(sig syscall.Signal) error {
	pid, err := p.Read()
	if err != nil {
		return fmt.Errorf("read PID file: %w", err)
	}
	return syscall.Kill(pid, sig)
}
