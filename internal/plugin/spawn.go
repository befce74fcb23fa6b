// Package plugin launches a prism as a subprocess and speaks the native ABI
// to it: a Beam frame stream over a Unix domain socket the subprocess
// listens on. Spawning, socket handshake, and process-group teardown follow
// the same shape internal/executor/local.go uses to run a function
// directly on the host, generalized from a one-shot exec.CommandContext
// call to a long-lived process the registry holds a handle to.
package plugin

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// Spawned is a running prism subprocess and the socket path it is expected
// to be listening on.
type Spawned struct {
	cmd        *exec.Cmd
	SocketPath string
}

// Spawn starts command with args, wiring UV_SOCKET_PATH in its environment
// to a fresh socket path under dir, and waits up to readyTimeout for the
// subprocess to create that socket. The subprocess runs in its own process
// group so Stop can terminate it and any children it forked.
func Spawn(ctx context.Context, command []string, env map[string]string, dir string, readyTimeout time.Duration) (*Spawned, error) {
	if len(command) == 0 {
		return nil, fmt.Errorf("spawn: empty command")
	}

	socketPath := filepath.Join(dir, fmt.Sprintf("uv-prism-%d-%d.sock", os.Getpid(), time.Now().UnixNano()))
	_ = os.Remove(socketPath)

	cmd := exec.CommandContext(ctx, command[0], command[1:]...)
	cmd.Env = append(os.Environ(), "UV_SOCKET_PATH="+socketPath)
	for k, v := range env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("spawn prism process: %w", err)
	}

	if err := waitForSocket(ctx, socketPath, readyTimeout); err != nil {
		_ = killProcessGroup(cmd)
		return nil, err
	}

	return &Spawned{cmd: cmd, SocketPath: socketPath}, nil
}

// Stop terminates the subprocess and its process group, waiting briefly for
// a clean exit before escalating to SIGKILL.
func (s *Spawned) Stop(grace time.Duration) error {
	if s.cmd.Process == nil {
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- s.cmd.Wait() }()

	_ = signalProcessGroup(s.cmd, syscall.SIGTERM)

	select {
	case <-done:
	case <-time.After(grace):
		_ = killProcessGroup(s.cmd)
		<-done
	}

	_ = os.Remove(s.SocketPath)
	return nil
}

func waitForSocket(ctx context.Context, path string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if _, err := os.Stat(path); err == nil {
			conn, dialErr := net.DialTimeout("unix", path, 200*time.Millisecond)
			if dialErr == nil {
				conn.Close()
				return nil
			}
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("prism socket %s not ready after %s", path, timeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(20 * time.Millisecond):
		}
	}
}

func signalProcessGroup(cmd *exec.Cmd, sig syscall.Signal) error {
	pgid, err := unix.Getpgid(cmd.Process.Pid)
	if err != nil {
		return cmd.Process.Signal(sig)
	}
	return unix.Kill(-pgid, sig)
}

func killProcessGroup(cmd *exec.Cmd) error {
	return signalProcessGroup(cmd, syscall.SIGKILL)
}
