package runtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
)

// DockerRuntime implements the ContainerRuntime interface using Docker client.
type DockerRuntime struct {
	client *client.Client
}

// NewDockerRuntime creates a new DockerRuntime instance using client.FromEnv.
func NewDockerRuntime() (*DockerRuntime, error) {
	dockerClient, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create Docker client: %w", err)
	}

	// Check if Docker daemon is accessible
	ctx := context.Background()
	_, err = dockerClient.Ping(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Docker daemon: %w", err)
	}

	return &DockerRuntime{
		client: dockerClient,
	}, nil
}

// ImageExists reports whether an image with the given tag is present locally.
// A "not found" answer from the engine is a normal false result.
func (d *DockerRuntime) ImageExists(ctx context.Context, tag string) (bool, error) {
	inspect, _, err := d.client.ImageInspectWithRaw(ctx, tag)
	if err == nil {
		slog.Debug("Found image", "image", tag, "id", inspect.ID)
		return true, nil
	}
	if client.IsErrNotFound(err) {
		slog.Debug("Image not found", "image", tag)
		return false, nil
	}
	return false, fmt.Errorf("failed to inspect image %s: %w", tag, err)
}

// ContainerExists reports whether a container with the given name exists,
// running or stopped.
func (d *DockerRuntime) ContainerExists(ctx context.Context, name string) (bool, error) {
	inspect, err := d.client.ContainerInspect(ctx, name)
	if err == nil {
		slog.Debug("Found container", "container", name, "id", inspect.ID)
		return true, nil
	}
	if client.IsErrNotFound(err) {
		slog.Debug("Container not found", "container", name)
		return false, nil
	}
	return false, fmt.Errorf("failed to inspect container %s: %w", name, err)
}

// PullImage pulls a Docker image. A missing image on the remote registry is
// reported as (false, nil); any other engine failure is an error.
func (d *DockerRuntime) PullImage(ctx context.Context, tag string) (bool, error) {
	slog.Info("Pulling Docker image", "image", tag)

	reader, err := d.client.ImagePull(ctx, tag, image.PullOptions{})
	if err != nil {
		if client.IsErrNotFound(err) {
			slog.Warn("Image not found on registry", "image", tag)
			return false, nil
		}
		return false, fmt.Errorf("failed to pull image %s: %w", tag, err)
	}
	defer reader.Close()

	// The daemon reports registry-side failures in-band on the progress
	// stream, not as an error from ImagePull itself.
	if err := drainPullOutput(reader); err != nil {
		if isImageNotFound(err) {
			slog.Warn("Image not found on registry", "image", tag, "detail", err)
			return false, nil
		}
		return false, fmt.Errorf("failed to pull image %s: %w", tag, err)
	}

	slog.Info("Successfully pulled Docker image", "image", tag)
	return true, nil
}

// drainPullOutput consumes the daemon's JSON pull stream and surfaces any
// reported pull error.
func drainPullOutput(body io.Reader) error {
	decoder := json.NewDecoder(body)
	for decoder.More() {
		var message struct {
			Status      string `json:"status"`
			ErrorDetail struct {
				Message string `json:"message"`
			} `json:"errorDetail"`
		}
		if err := decoder.Decode(&message); err != nil {
			return fmt.Errorf("failed to decode pull output: %w", err)
		}
		if message.ErrorDetail.Message != "" {
			return fmt.Errorf("%s", message.ErrorDetail.Message)
		}
		if message.Status != "" {
			slog.Debug("Pull output", "status", message.Status)
		}
	}
	return nil
}

// isImageNotFound reports whether a pull stream error names a missing remote
// image rather than some other registry failure. Registries phrase this a few
// different ways.
func isImageNotFound(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not found") ||
		strings.Contains(msg, "manifest unknown") ||
		strings.Contains(msg, "repository does not exist")
}

// BuildImage builds an image from the given Dockerfile and tags it. It is a
// no-op when the tag already exists locally. The working directory is moved
// to the Dockerfile's directory for the duration of the build and restored
// on every exit path.
func (d *DockerRuntime) BuildImage(ctx context.Context, dockerfilePath, tag string) error {
	exists, err := d.ImageExists(ctx, tag)
	if err != nil {
		return err
	}
	if exists {
		slog.Info("Image already exists, skipping build", "image", tag)
		return nil
	}

	restore, err := enterDir(filepath.Dir(dockerfilePath))
	if err != nil {
		return err
	}
	defer restore()

	slog.Info("Building Docker image", "image", tag, "dockerfile", dockerfilePath)

	buildContext, err := tarBuildContext(".")
	if err != nil {
		return fmt.Errorf("failed to archive build context: %w", err)
	}

	response, err := d.client.ImageBuild(ctx, buildContext, types.ImageBuildOptions{
		Dockerfile: filepath.Base(dockerfilePath),
		Tags:       []string{tag},
		Remove:     true,
	})
	if err != nil {
		return fmt.Errorf("failed to build image %s: %w", tag, err)
	}
	defer response.Body.Close()

	if err := drainBuildOutput(response.Body); err != nil {
		return fmt.Errorf("build of %s failed: %w", tag, err)
	}

	slog.Info("Successfully built Docker image", "image", tag)
	return nil
}

// drainBuildOutput consumes the daemon's JSON build stream and surfaces any
// reported build error.
func drainBuildOutput(body io.Reader) error {
	decoder := json.NewDecoder(body)
	for decoder.More() {
		var message struct {
			Stream      string `json:"stream"`
			ErrorDetail struct {
				Message string `json:"message"`
			} `json:"errorDetail"`
		}
		if err := decoder.Decode(&message); err != nil {
			return fmt.Errorf("failed to decode build output: %w", err)
		}
		if message.ErrorDetail.Message != "" {
			return fmt.Errorf("%s", message.ErrorDetail.Message)
		}
		if message.Stream != "" {
			slog.Debug("Build output", "line", message.Stream)
		}
	}
	return nil
}

// StartContainer runs a detached container from the image under the given
// name. An existing container of that name is stopped and removed first, so
// at most one container holds the name at a time.
func (d *DockerRuntime) StartContainer(ctx context.Context, tag, name string) error {
	exists, err := d.ContainerExists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		if err := d.StopAndRemoveContainer(ctx, name); err != nil {
			return err
		}
	}

	slog.Info("Starting container", "image", tag, "container", name)

	resp, err := d.client.ContainerCreate(ctx, &container.Config{
		Image: tag,
		Tty:   true,
	}, nil, nil, nil, name)
	if err != nil {
		return fmt.Errorf("failed to create container %s: %w", name, err)
	}

	if err := d.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		// Clean up on start failure
		if removeErr := d.client.ContainerRemove(ctx, resp.ID, container.RemoveOptions{Force: true}); removeErr != nil {
			slog.Error("Failed to remove container after start failure", "containerID", resp.ID, "error", removeErr)
		}
		return fmt.Errorf("failed to start container %s: %w", name, err)
	}

	slog.Info("Container started", "container", name, "id", resp.ID)
	return nil
}

// StopAndRemoveContainer stops and removes the named container. It is a
// no-op when no such container exists.
func (d *DockerRuntime) StopAndRemoveContainer(ctx context.Context, name string) error {
	exists, err := d.ContainerExists(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}

	slog.Info("Stopping container", "container", name)

	if err := d.client.ContainerStop(ctx, name, container.StopOptions{}); err != nil {
		return fmt.Errorf("failed to stop container %s: %w", name, err)
	}

	if err := d.client.ContainerRemove(ctx, name, container.RemoveOptions{}); err != nil {
		return fmt.Errorf("failed to remove container %s: %w", name, err)
	}

	slog.Info("Container removed", "container", name)
	return nil
}

// RemoveImage deletes the image, force-removing it so dependent stopped
// containers don't block deletion. It is a no-op when the image is absent.
func (d *DockerRuntime) RemoveImage(ctx context.Context, tag string) error {
	exists, err := d.ImageExists(ctx, tag)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}

	slog.Info("Removing image", "image", tag)

	if _, err := d.client.ImageRemove(ctx, tag, image.RemoveOptions{
		Force:         true,
		PruneChildren: true,
	}); err != nil {
		return fmt.Errorf("failed to remove image %s: %w", tag, err)
	}

	return nil
}

// SaveImage requests a streamed tar archive export of the image. The caller
// owns the returned reader.
func (d *DockerRuntime) SaveImage(ctx context.Context, tag string) (io.ReadCloser, error) {
	reader, err := d.client.ImageSave(ctx, []string{tag})
	if err != nil {
		return nil, fmt.Errorf("failed to save image %s: %w", tag, err)
	}
	return reader, nil
}

// ExecInContainer runs a command inside the named container and returns its
// captured output. A non-zero exit code is an error carrying the captured
// stderr.
func (d *DockerRuntime) ExecInContainer(ctx context.Context, name string, cmd []string) ([]byte, error) {
	execResp, err := d.client.ContainerExecCreate(ctx, name, container.ExecOptions{
		Cmd:          cmd,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create exec in container %s: %w", name, err)
	}

	attachResp, err := d.client.ContainerExecAttach(ctx, execResp.ID, container.ExecAttachOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to attach to exec in container %s: %w", name, err)
	}
	defer attachResp.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, attachResp.Reader); err != nil {
		return nil, fmt.Errorf("failed to read exec output: %w", err)
	}

	inspectResp, err := d.client.ContainerExecInspect(ctx, execResp.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect exec: %w", err)
	}

	if inspectResp.ExitCode != 0 {
		return nil, fmt.Errorf("command exited with code %d: %s",
			inspectResp.ExitCode, bytes.TrimSpace(stderr.Bytes()))
	}

	return stdout.Bytes(), nil
}

// Close closes the underlying Docker client connection.
func (d *DockerRuntime) Close() error {
	return d.client.Close()
}
