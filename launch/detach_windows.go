//go:build windows

package launch

import (
	"os"
	"syscall"
)

const detachedProcess = 0x00000008

func detachAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP | detachedProcess}
}

func terminate(p *os.Process) error {
	return p.Kill()
}
