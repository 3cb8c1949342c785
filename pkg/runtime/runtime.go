// Located in pkg/runtime/runtime.go
package runtime

import (
	"context"
	"io"
)

// ContainerRuntime defines the contract for container-engine operations used
// by the staging workflow. "Not found" answers from the engine surface as
// boolean results, never as errors; every other engine failure propagates to
// the caller unmodified.
type ContainerRuntime interface {
	ImageExists(ctx context.Context, tag string) (bool, error)
	ContainerExists(ctx context.Context, name string) (bool, error)

	// PullImage fetches an image from its registry. A missing remote image is
	// reported as (false, nil), not as an error.
	PullImage(ctx context.Context, tag string) (bool, error)

	// BuildImage builds and tags an image from the given Dockerfile. It is a
	// no-op when an image with that tag already exists locally.
	BuildImage(ctx context.Context, dockerfilePath, tag string) error

	// StartContainer runs a detached container from the image under the given
	// name, stopping and removing any existing container of that name first.
	StartContainer(ctx context.Context, tag, name string) error

	// StopAndRemoveContainer is a no-op when no container of that name exists.
	StopAndRemoveContainer(ctx context.Context, name string) error

	// RemoveImage is a no-op when the image is absent; otherwise the image is
	// force-removed together with dependent layers.
	RemoveImage(ctx context.Context, tag string) error

	// SaveImage returns a streamed tar archive export of the image. The
	// caller owns the reader.
	SaveImage(ctx context.Context, tag string) (io.ReadCloser, error)

	// ExecInContainer runs a command inside a running container and returns
	// its captured output. A non-zero exit code is an error.
	ExecInContainer(ctx context.Context, name string, cmd []string) ([]byte, error)
}
