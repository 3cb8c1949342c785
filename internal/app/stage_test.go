package app

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/mock"

	"layerlens/pkg/manifest"
)

// MockContainerRuntime is a mock implementation of the ContainerRuntime
// interface for testing.
type MockContainerRuntime struct {
	mock.Mock
}

func (m *MockContainerRuntime) ImageExists(ctx context.Context, tag string) (bool, error) {
	args := m.Called(ctx, tag)
	return args.Bool(0), args.Error(1)
}

func (m *MockContainerRuntime) ContainerExists(ctx context.Context, name string) (bool, error) {
	args := m.Called(ctx, name)
	return args.Bool(0), args.Error(1)
}

func (m *MockContainerRuntime) PullImage(ctx context.Context, tag string) (bool, error) {
	args := m.Called(ctx, tag)
	return args.Bool(0), args.Error(1)
}

func (m *MockContainerRuntime) BuildImage(ctx context.Context, dockerfilePath, tag string) error {
	args := m.Called(ctx, dockerfilePath, tag)
	return args.Error(0)
}

func (m *MockContainerRuntime) StartContainer(ctx context.Context, tag, name string) error {
	args := m.Called(ctx, tag, name)
	return args.Error(0)
}

func (m *MockContainerRuntime) StopAndRemoveContainer(ctx context.Context, name string) error {
	args := m.Called(ctx, name)
	return args.Error(0)
}

func (m *MockContainerRuntime) RemoveImage(ctx context.Context, tag string) error {
	args := m.Called(ctx, tag)
	return args.Error(0)
}

func (m *MockContainerRuntime) SaveImage(ctx context.Context, tag string) (io.ReadCloser, error) {
	args := m.Called(ctx, tag)
	if rc, ok := args.Get(0).(io.ReadCloser); ok {
		return rc, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockContainerRuntime) ExecInContainer(ctx context.Context, name string, cmd []string) ([]byte, error) {
	args := m.Called(ctx, name, cmd)
	if b, ok := args.Get(0).([]byte); ok {
		return b, args.Error(1)
	}
	return nil, args.Error(1)
}

func testManifest() *manifest.Manifest {
	return &manifest.Manifest{
		APIVersion: "layerlens.io/v1",
		Kind:       "Manifest",
		Metadata:   manifest.Metadata{Name: "test-run"},
		Spec: manifest.Spec{
			Image: manifest.ImageSpec{Tag: "alpine:3.20"},
		},
	}
}

func TestAcquireStage_PullsMissingImage(t *testing.T) {
	m := testManifest()
	rt := new(MockContainerRuntime)
	rt.On("ImageExists", mock.Anything, "alpine:3.20").Return(false, nil)
	rt.On("PullImage", mock.Anything, "alpine:3.20").Return(true, nil)

	stage := NewAcquireStage(m, rt, false)
	err := stage.Execute(context.Background(), newState("layerlens.yaml", "run-1"))
	if err != nil {
		t.Fatalf("Unexpected error: %s", err)
	}

	rt.AssertExpectations(t)
}

func TestAcquireStage_SkipsPullWhenImagePresent(t *testing.T) {
	m := testManifest()
	rt := new(MockContainerRuntime)
	rt.On("ImageExists", mock.Anything, "alpine:3.20").Return(true, nil)

	stage := NewAcquireStage(m, rt, false)
	err := stage.Execute(context.Background(), newState("layerlens.yaml", "run-1"))
	if err != nil {
		t.Fatalf("Unexpected error: %s", err)
	}

	rt.AssertExpectations(t)
	rt.AssertNotCalled(t, "PullImage", mock.Anything, mock.Anything)
}

func TestAcquireStage_ImageMissingOnRegistry(t *testing.T) {
	m := testManifest()
	rt := new(MockContainerRuntime)
	rt.On("ImageExists", mock.Anything, "alpine:3.20").Return(false, nil)
	rt.On("PullImage", mock.Anything, "alpine:3.20").Return(false, nil)

	stage := NewAcquireStage(m, rt, false)
	err := stage.Execute(context.Background(), newState("layerlens.yaml", "run-1"))
	if err == nil {
		t.Fatal("Expected error for image missing on registry, got nil")
	}
	if !strings.Contains(err.Error(), "not found on the remote registry") {
		t.Errorf("Unexpected error message: %s", err)
	}
}

func TestAcquireStage_BuildsWhenManifestHasBuildSection(t *testing.T) {
	m := testManifest()
	m.Spec.Image.Tag = "local/app:dev"
	m.Spec.Build = &manifest.BuildSpec{Dockerfile: "testdata/Dockerfile"}

	rt := new(MockContainerRuntime)
	rt.On("BuildImage", mock.Anything, "testdata/Dockerfile", "local/app:dev").Return(nil)

	stage := NewAcquireStage(m, rt, false)
	err := stage.Execute(context.Background(), newState("layerlens.yaml", "run-1"))
	if err != nil {
		t.Fatalf("Unexpected error: %s", err)
	}

	rt.AssertExpectations(t)
	rt.AssertNotCalled(t, "PullImage", mock.Anything, mock.Anything)
}

func TestAcquireStage_DryRunTouchesNothing(t *testing.T) {
	m := testManifest()

	stage := NewAcquireStage(m, nil, true)
	err := stage.Execute(context.Background(), newState("layerlens.yaml", "run-1"))
	if err != nil {
		t.Fatalf("Unexpected error in dry run: %s", err)
	}
}

func TestRunStage_StartsReservedContainer(t *testing.T) {
	m := testManifest()
	rt := new(MockContainerRuntime)
	rt.On("StartContainer", mock.Anything, "alpine:3.20", manifest.DefaultContainerName).Return(nil)

	stage := NewRunStage(m, rt, false)
	err := stage.Execute(context.Background(), newState("layerlens.yaml", "run-1"))
	if err != nil {
		t.Fatalf("Unexpected error: %s", err)
	}

	rt.AssertExpectations(t)
}

func TestRunStage_UsesConfiguredContainerName(t *testing.T) {
	m := testManifest()
	m.Spec.Container.Name = "custom-analysis"

	rt := new(MockContainerRuntime)
	rt.On("StartContainer", mock.Anything, "alpine:3.20", "custom-analysis").Return(nil)

	stage := NewRunStage(m, rt, false)
	err := stage.Execute(context.Background(), newState("layerlens.yaml", "run-1"))
	if err != nil {
		t.Fatalf("Unexpected error: %s", err)
	}

	rt.AssertExpectations(t)
}

func TestRunStage_DryRunTouchesNothing(t *testing.T) {
	m := testManifest()

	stage := NewRunStage(m, nil, true)
	err := stage.Execute(context.Background(), newState("layerlens.yaml", "run-1"))
	if err != nil {
		t.Fatalf("Unexpected error in dry run: %s", err)
	}
}

func TestStageNames(t *testing.T) {
	m := testManifest()

	if name := NewAcquireStage(m, nil, false).Name(); name != "acquire" {
		t.Errorf("Expected stage name 'acquire', got %q", name)
	}
	if name := NewRunStage(m, nil, false).Name(); name != "run" {
		t.Errorf("Expected stage name 'run', got %q", name)
	}
	if name := NewExtractStage(m, nil, false).Name(); name != "extract" {
		t.Errorf("Expected stage name 'extract', got %q", name)
	}
}
