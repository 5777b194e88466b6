// Package docker implements the sandbox driver over the Docker Engine
// API. Containers are kept alive with a long sleep and driven through
// execs so one container serves many test cases.
package docker

import (
	"context"
	"fmt"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/volume"
	"github.com/docker/docker/client"
	"github.com/docker/go-units"
	"github.com/google/uuid"

	"dsajudge/internal/judge/sandbox"
	appErr "dsajudge/pkg/errors"
)

const (
	guestWorkDir = "/home/guest"
	// keepAlive outlives any single judging session; the container is
	// removed explicitly long before this expires.
	keepAliveSeconds = "3600"
)

// Config carries the host-level knobs of the driver.
type Config struct {
	// CgroupParent groups all sandbox containers under one cgroup so
	// operators can cap the judge's total footprint.
	CgroupParent string
	// CPUSet pins sandbox containers, e.g. "0" or "0-1".
	CPUSet string
}

// Driver implements sandbox.Driver over a Docker daemon.
type Driver struct {
	cli *client.Client
	cfg Config
}

var _ sandbox.Driver = (*Driver)(nil)

// NewDriver connects to the daemon using the standard environment
// variables (DOCKER_HOST and friends).
func NewDriver(cfg Config) (*Driver, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.SandboxUnavailable, "connect docker daemon failed")
	}
	return &Driver{cli: cli, cfg: cfg}, nil
}

// Close releases the daemon connection.
func (d *Driver) Close() error {
	return d.cli.Close()
}

// Ping verifies the daemon is reachable.
func (d *Driver) Ping(ctx context.Context) error {
	if _, err := d.cli.Ping(ctx); err != nil {
		return appErr.Wrapf(err, appErr.SandboxUnavailable, "docker daemon unreachable")
	}
	return nil
}

// CreateVolume creates the workspace volume for one judging session.
func (d *Driver) CreateVolume(ctx context.Context) (string, error) {
	name := "volume-" + uuid.NewString()
	_, err := d.cli.VolumeCreate(ctx, volume.CreateOptions{Name: name})
	if err != nil {
		return "", appErr.Wrapf(err, appErr.VolumeCreateFailed, "create volume %s failed", name)
	}
	return name, nil
}

// RemoveVolume force-removes a workspace volume.
func (d *Driver) RemoveVolume(ctx context.Context, name string) error {
	if err := d.cli.VolumeRemove(ctx, name, true); err != nil {
		return appErr.Wrapf(err, appErr.VolumeRemoveFailed, "remove volume %s failed", name)
	}
	return nil
}

// CreateContainer creates and starts one sandbox container with the
// workspace volume mounted at the guest home. Network access is denied
// and memory, pids, and file descriptors are capped.
func (d *Driver) CreateContainer(ctx context.Context, spec sandbox.ContainerSpec) (sandbox.Container, error) {
	name := spec.NamePrefix + "-" + uuid.NewString()
	memoryBytes := spec.MemoryMB * 1024 * 1024
	stopTimeout := 1

	hostConfig := &container.HostConfig{
		Binds:        []string{spec.VolumeName + ":" + guestWorkDir},
		CgroupParent: d.cfg.CgroupParent,
		Resources: container.Resources{
			CpusetCpus: d.cfg.CPUSet,
			Memory:     memoryBytes,
			// Swap equal to memory disables swapping past the cap.
			MemorySwap: memoryBytes,
			PidsLimit:  &spec.PidsLimit,
			Ulimits: []*units.Ulimit{
				{Name: "nofile", Soft: 512, Hard: 512},
				{Name: "nproc", Soft: 256, Hard: 256},
				{Name: "fsize", Soft: 64 * 1024 * 1024, Hard: 64 * 1024 * 1024},
				{Name: "stack", Soft: 64 * 1024 * 1024, Hard: 64 * 1024 * 1024},
			},
		},
	}

	resp, err := d.cli.ContainerCreate(ctx, &container.Config{
		User:            "root",
		Image:           spec.Image,
		Cmd:             []string{"sleep", keepAliveSeconds},
		WorkingDir:      guestWorkDir,
		NetworkDisabled: true,
		StopTimeout:     &stopTimeout,
	}, hostConfig, nil, nil, name)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.ContainerCreateFailed, "create container %s failed", name)
	}

	if err := d.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		removeErr := d.cli.ContainerRemove(context.WithoutCancel(ctx), resp.ID, container.RemoveOptions{Force: true})
		if removeErr != nil {
			err = fmt.Errorf("%w (cleanup also failed: %v)", err, removeErr)
		}
		return nil, appErr.Wrapf(err, appErr.ContainerStartFailed, "start container %s failed", name)
	}

	return &dockerContainer{cli: d.cli, id: resp.ID, name: name}, nil
}
