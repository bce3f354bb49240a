//go:build !windows

package subprocess

import (
	"os"
	"os/exec"
	"syscall"
)

func setProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func getProcessGroup(pid int) (int, error) {
	return syscall.Getpgid(pid)
}

// terminate sends SIGTERM to the process group, falling back to the process
func terminate(p *os.Process, pgid int) error {
	if pgid != 0 {
		if err := syscall.Kill(-pgid, syscall.SIGTERM); err == nil {
			return nil
		}
	}
	return p.Signal(syscall.SIGTERM)
}

func kill(p *os.Process, pgid int) error {
	if pgid != 0 {
		if err := syscall.Kill(-pgid, syscall.SIGKILL); err == nil {
			return nil
		}
	}
	return p.Kill()
}
