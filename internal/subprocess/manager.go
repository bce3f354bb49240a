package subprocess

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/wso2/open-auth-bouncer/internal/config"
	logger "github.com/wso2/open-auth-bouncer/internal/logging"
)

// ErrNotConfigured is returned by Start when no upstream command is enabled
var ErrNotConfigured = errors.New("upstream command not configured")

// Manager launches the upstream application and stops it on shutdown
type Manager struct {
	mutex         sync.Mutex
	cmd           *exec.Cmd
	processGroup  int
	done          chan struct{}
	shutdownDelay time.Duration
}

// NewManager creates a new subprocess manager
func NewManager() *Manager {
	return &Manager{
		shutdownDelay: 5 * time.Second,
	}
}

// SetShutdownDelay sets how long to wait after the polite signal before killing
func (m *Manager) SetShutdownDelay(duration time.Duration) {
	m.shutdownDelay = duration
}

// Start launches the configured command. The command runs directly, without a
// shell, with its own process group so the whole tree can be stopped.
func (m *Manager) Start(cfg config.UpstreamCommand) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.cmd != nil {
		return os.ErrExist
	}
	if !cfg.Enabled || cfg.Command == "" {
		return ErrNotConfigured
	}

	path, err := exec.LookPath(cfg.Command)
	if err != nil {
		return fmt.Errorf("upstream command %q: %w", cfg.Command, err)
	}

	cmd := exec.Command(path, cfg.Args...)
	cmd.Dir = cfg.WorkDir
	if len(cfg.Env) > 0 {
		cmd.Env = append(os.Environ(), cfg.Env...)
	}
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	setProcAttr(cmd)

	logger.Info("Starting upstream: %s %v", path, cfg.Args)
	if err := cmd.Start(); err != nil {
		return err
	}

	m.cmd = cmd
	m.done = make(chan struct{})
	if pgid, err := getProcessGroup(cmd.Process.Pid); err == nil {
		m.processGroup = pgid
	} else {
		logger.Warn("Failed to get process group ID: %v", err)
		m.processGroup = 0
	}
	logger.Info("Upstream started with PID: %d", cmd.Process.Pid)

	go m.wait(cmd, m.done)
	return nil
}

func (m *Manager) wait(cmd *exec.Cmd, done chan struct{}) {
	err := cmd.Wait()
	if err != nil {
		logger.Error("Upstream exited with error: %v", err)
	} else {
		logger.Info("Upstream exited")
	}

	m.mutex.Lock()
	if m.cmd == cmd {
		m.cmd = nil
	}
	m.mutex.Unlock()
	close(done)
}

// IsRunning checks if the upstream process is running
func (m *Manager) IsRunning() bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.cmd != nil
}

// Done is closed when the current process exits. It is nil before Start.
func (m *Manager) Done() <-chan struct{} {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.done
}

// Shutdown asks the process to stop, then kills it after the shutdown delay or
// when ctx expires, whichever comes first.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mutex.Lock()
	cmd, pgid, done := m.cmd, m.processGroup, m.done
	m.mutex.Unlock()

	if cmd == nil {
		return nil
	}

	logger.Info("Terminating upstream...")
	if err := terminate(cmd.Process, pgid); err != nil {
		logger.Warn("Failed to signal upstream: %v", err)
	}

	timer := time.NewTimer(m.shutdownDelay)
	defer timer.Stop()

	select {
	case <-done:
		logger.Info("Upstream terminated gracefully")
		return nil
	case <-timer.C:
	case <-ctx.Done():
	}

	logger.Warn("Upstream didn't exit gracefully, forcing termination...")
	if err := kill(cmd.Process, pgid); err != nil {
		return fmt.Errorf("failed to kill upstream: %w", err)
	}

	select {
	case <-done:
		return nil
	case <-time.After(500 * time.Millisecond):
		return errors.New("upstream did not exit after kill")
	}
}
