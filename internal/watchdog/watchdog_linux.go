//go:build linux

// Package watchdog runs one sandboxed command under wall-clock, memory,
// and output-size limits and produces the structured report the judge
// consumes. It is compiled into a static binary baked into the sandbox
// images at /home/watchdog and invoked by the runner as root; the child
// runs with the uid/gid from the task document, in its own process
// group so descendants can be killed together.
package watchdog

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"dsajudge/internal/judge/sandbox/taskspec"
)

const (
	sampleInterval = 10 * time.Millisecond
	termGrace      = 100 * time.Millisecond
)

// Run executes the task and builds its report. A non-nil error means
// the watchdog itself failed to set up or monitor the child; the caller
// must exit non-zero with the message on stderr so the judge records an
// internal error rather than a verdict.
func Run(task taskspec.Task, limits Limits) (taskspec.Report, error) {
	if strings.TrimSpace(task.Command) == "" {
		return taskspec.Report{}, errors.New("empty command")
	}
	if limits.StdoutMaxBytes <= 0 || limits.StderrMaxBytes <= 0 {
		return taskspec.Report{}, errors.New("output caps must be positive")
	}

	cmd := exec.Command("/bin/sh", "-c", task.Command)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
		Credential: &syscall.Credential{
			Uid: uint32(task.UID),
			Gid: uint32(task.GID),
		},
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return taskspec.Report{}, fmt.Errorf("open stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return taskspec.Report{}, fmt.Errorf("open stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return taskspec.Report{}, fmt.Errorf("open stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return taskspec.Report{}, fmt.Errorf("spawn child: %w", err)
	}
	pid := cmd.Process.Pid
	start := time.Now()

	go func() {
		_, _ = stdin.Write([]byte(task.Stdin))
		_ = stdin.Close()
	}()

	var overflow atomic.Bool
	outBuf := newCappedBuffer(limits.StdoutMaxBytes, &overflow)
	errBuf := newCappedBuffer(limits.StderrMaxBytes, &overflow)

	var readers sync.WaitGroup
	readers.Add(2)
	go func() {
		defer readers.Done()
		outBuf.consume(stdout)
	}()
	go func() {
		defer readers.Done()
		errBuf.consume(stderr)
	}()

	// Wait is only safe after both pipe readers finished.
	waitCh := make(chan error, 1)
	go func() {
		readers.Wait()
		waitCh <- cmd.Wait()
	}()

	timeout := time.Duration(task.TimeoutMS) * time.Millisecond
	memoryLimitKB := task.MemoryLimitMB * 1024

	ticker := time.NewTicker(sampleInterval)
	defer ticker.Stop()

	var tle, mle, killed bool
	var maxMemoryKB int64

	for {
		select {
		case waitErr := <-waitCh:
			exitCode, err := childExitCode(waitErr)
			if err != nil {
				return taskspec.Report{}, err
			}
			return taskspec.Report{
				ExitCode: exitCode,
				Stdout:   outBuf.String(),
				Stderr:   errBuf.String(),
				TimeMS:   time.Since(start).Milliseconds(),
				MemoryKB: maxMemoryKB,
				TLE:      tle,
				MLE:      mle,
				OLE:      overflow.Load(),
			}, nil

		case <-ticker.C:
			if killed {
				continue
			}
			if time.Since(start) >= timeout {
				tle = true
				killProcessGroup(pid)
				killed = true
				continue
			}
			if kb, err := readMemoryKB(pid); err == nil {
				if kb > maxMemoryKB {
					maxMemoryKB = kb
				}
				if kb >= memoryLimitKB {
					mle = true
					killProcessGroup(pid)
					killed = true
					continue
				}
			}
			if overflow.Load() {
				killProcessGroup(pid)
				killed = true
			}
		}
	}
}

// childExitCode maps the Wait outcome to a single integer: the exit
// status for a normal exit, 128+signal for a signaled child.
func childExitCode(waitErr error) (int, error) {
	if waitErr == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if !errors.As(waitErr, &exitErr) {
		return 0, fmt.Errorf("wait for child: %w", waitErr)
	}
	if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		return 128 + int(status.Signal()), nil
	}
	return exitErr.ExitCode(), nil
}

// killProcessGroup terminates the child and all its descendants:
// SIGTERM first, SIGKILL after a short grace period.
func killProcessGroup(pid int) {
	_ = unix.Kill(-pid, unix.SIGTERM)
	time.Sleep(termGrace)
	_ = unix.Kill(-pid, unix.SIGKILL)
}
