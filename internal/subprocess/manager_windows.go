//go:build windows

package subprocess

import (
	"os"
	"os/exec"
	"syscall"
)

func setProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP,
	}
}

// No process groups on Windows; the PID stands in
func getProcessGroup(pid int) (int, error) {
	return pid, nil
}

// Windows has no SIGTERM, Kill is the only way to stop the process
func terminate(p *os.Process, _ int) error {
	return p.Kill()
}

func kill(p *os.Process, _ int) error {
	return p.Kill()
}
