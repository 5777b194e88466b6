package docker

import (
	"bytes"
	"context"
	"path"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"dsajudge/internal/judge/sandbox"
	appErr "dsajudge/pkg/errors"
)

type dockerContainer struct {
	cli  *client.Client
	id   string
	name string
}

var _ sandbox.Container = (*dockerContainer)(nil)

// Exec runs one command through the exec API and demuxes its output.
// On timeout the attach connection is dropped and the result reports
// TimedOut with whatever output arrived before the deadline.
func (c *dockerContainer) Exec(ctx context.Context, spec sandbox.ExecSpec) (sandbox.ExecResult, error) {
	start := time.Now()

	execResp, err := c.cli.ContainerExecCreate(ctx, c.id, container.ExecOptions{
		User:         spec.User,
		WorkingDir:   spec.WorkDir,
		Env:          spec.Env,
		Cmd:          spec.Cmd,
		AttachStdin:  true,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return sandbox.ExecResult{}, appErr.Wrapf(err, appErr.ExecFailed, "create exec in %s failed", c.name)
	}

	attach, err := c.cli.ContainerExecAttach(ctx, execResp.ID, container.ExecAttachOptions{})
	if err != nil {
		return sandbox.ExecResult{}, appErr.Wrapf(err, appErr.ExecFailed, "attach exec in %s failed", c.name)
	}
	defer attach.Close()

	go func() {
		_, _ = attach.Conn.Write([]byte(spec.Stdin))
		_ = attach.CloseWrite()
	}()

	var stdout, stderr bytes.Buffer
	outputDone := make(chan error, 1)
	go func() {
		_, copyErr := stdcopy.StdCopy(&stdout, &stderr, attach.Reader)
		outputDone <- copyErr
	}()

	execCtx := ctx
	if spec.Timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}

	select {
	case copyErr := <-outputDone:
		if copyErr != nil {
			return sandbox.ExecResult{}, appErr.Wrapf(copyErr, appErr.ExecFailed, "read exec output in %s failed", c.name)
		}
	case <-execCtx.Done():
		return sandbox.ExecResult{
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
			Elapsed:  time.Since(start),
			TimedOut: true,
		}, nil
	}

	inspect, err := c.cli.ContainerExecInspect(ctx, execResp.ID)
	if err != nil {
		return sandbox.ExecResult{}, appErr.Wrapf(err, appErr.ExecFailed, "inspect exec in %s failed", c.name)
	}

	return sandbox.ExecResult{
		ExitCode: inspect.ExitCode,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Elapsed:  time.Since(start),
	}, nil
}

// UploadFile wraps the content in a single-entry archive and copies it
// to the destination directory.
func (c *dockerContainer) UploadFile(ctx context.Context, file sandbox.FileSpec) error {
	archive, err := fileArchive(path.Base(file.DestPath), file.Content, file.Mode, file.UID, file.GID)
	if err != nil {
		return appErr.Wrapf(err, appErr.UploadFailed, "pack %s failed", file.DestPath)
	}
	destDir := path.Dir(file.DestPath)
	if err := c.cli.CopyToContainer(ctx, c.id, destDir, archive, container.CopyToContainerOptions{}); err != nil {
		return appErr.Wrapf(err, appErr.UploadFailed, "upload %s to %s failed", file.DestPath, c.name)
	}
	return nil
}

// UploadDir archives a host tree with guest ownership and unpacks it
// under destDir in the container.
func (c *dockerContainer) UploadDir(ctx context.Context, hostDir, destDir string, uid, gid int) error {
	archive, err := dirArchive(hostDir, uid, gid)
	if err != nil {
		return appErr.Wrapf(err, appErr.UploadFailed, "pack directory %s failed", hostDir)
	}
	if err := c.cli.CopyToContainer(ctx, c.id, destDir, archive, container.CopyToContainerOptions{}); err != nil {
		return appErr.Wrapf(err, appErr.UploadFailed, "upload directory %s to %s failed", hostDir, c.name)
	}
	return nil
}

// DownloadFile copies one file out of the container. The daemon hands
// back a tar stream holding the requested path; its regular-file
// entries land in hostDir under their base names.
func (c *dockerContainer) DownloadFile(ctx context.Context, containerPath, hostDir string) error {
	reader, _, err := c.cli.CopyFromContainer(ctx, c.id, containerPath)
	if err != nil {
		return appErr.Wrapf(err, appErr.DownloadFailed, "download %s from %s failed", containerPath, c.name)
	}
	defer reader.Close()

	if err := unpackFiles(reader, hostDir); err != nil {
		return appErr.Wrapf(err, appErr.DownloadFailed, "unpack %s from %s failed", containerPath, c.name)
	}
	return nil
}

// Restart bounces the container after a runaway exec. The one-second
// stop timeout matches the create-time StopTimeout.
func (c *dockerContainer) Restart(ctx context.Context) error {
	stopTimeout := 1
	err := c.cli.ContainerRestart(ctx, c.id, container.StopOptions{Timeout: &stopTimeout})
	if err != nil {
		return appErr.Wrapf(err, appErr.ContainerStartFailed, "restart container %s failed", c.name)
	}
	return nil
}

// Remove force-removes the container. The workspace volume is removed
// separately so it can outlive the build container.
func (c *dockerContainer) Remove(ctx context.Context) error {
	err := c.cli.ContainerRemove(ctx, c.id, container.RemoveOptions{Force: true})
	if err != nil && !client.IsErrNotFound(err) {
		return appErr.Wrapf(err, appErr.ContainerRemoveFailed, "remove container %s failed", c.name)
	}
	return nil
}
