//go:build unix

package launch

import (
	"os"
	"syscall"
)

// detachAttr puts the game in its own session so it outlives the launcher.
func detachAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setsid: true}
}

func terminate(p *os.Process) error {
	return p.Signal(syscall.SIGTERM)
}
