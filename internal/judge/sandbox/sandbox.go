// Package sandbox defines the container interface the judge runs
// submissions in. The docker subpackage provides the real engine; the
// pipeline and runner only see these types, so tests substitute fakes.
package sandbox

import (
	"context"
	"time"
)

// Driver creates and drives isolated execution environments. One
// volume carries the submission workspace across the build and run
// containers of a judging session.
type Driver interface {
	CreateVolume(ctx context.Context) (string, error)
	RemoveVolume(ctx context.Context, name string) error

	CreateContainer(ctx context.Context, spec ContainerSpec) (Container, error)
}

// ContainerSpec describes one sandbox container. The volume is mounted
// at the guest workspace and the network is always disabled.
type ContainerSpec struct {
	Image      string
	VolumeName string
	// NamePrefix distinguishes build and run containers in `docker ps`.
	NamePrefix string
	MemoryMB   int64
	PidsLimit  int64
}

// Container is one running sandbox.
type Container interface {
	// Exec runs a command inside the container and waits for it.
	Exec(ctx context.Context, spec ExecSpec) (ExecResult, error)
	// UploadFile places one file into the container.
	UploadFile(ctx context.Context, file FileSpec) error
	// UploadDir copies a host directory tree into destDir, chowning
	// every entry to uid/gid.
	UploadDir(ctx context.Context, hostDir, destDir string, uid, gid int) error
	// DownloadFile copies one file out of the container into hostDir,
	// keeping its base name.
	DownloadFile(ctx context.Context, containerPath, hostDir string) error
	// Restart restarts the container, killing anything left running in
	// it. The workspace volume survives.
	Restart(ctx context.Context) error
	// Remove force-removes the container. Idempotent.
	Remove(ctx context.Context) error
}

// ExecSpec is one command execution inside a container.
type ExecSpec struct {
	Cmd     []string
	User    string
	WorkDir string
	Env     []string
	Stdin   string
	Timeout time.Duration
}

// ExecResult is the outcome of one exec.
type ExecResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Elapsed  time.Duration
	// TimedOut is set when the deadline fired before the command
	// finished. The command may still be running inside the container.
	TimedOut bool
}

// FileSpec is one file to place into a container.
type FileSpec struct {
	// DestPath is the absolute path inside the container.
	DestPath string
	Content  []byte
	Mode     int64
	UID      int
	GID      int
}
