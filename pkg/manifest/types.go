package manifest

import (
	"os"
	"path/filepath"
)

// DefaultContainerName is the reserved name of the analysis container. At
// most one container with this name exists at a time; starting a new one
// stops and removes the previous instance.
const DefaultContainerName = "layerlens-staging"

// Manifest is the root object that holds the entire configuration for a
// layerlens staging run. It's populated by parsing the user's
// layerlens.yaml file.
type Manifest struct {
	APIVersion string   `yaml:"apiVersion" validate:"required"`
	Kind       string   `yaml:"kind" validate:"required,eq=Manifest"`
	Metadata   Metadata `yaml:"metadata" validate:"required"`
	Spec       Spec     `yaml:"spec" validate:"required"`
}

// Metadata contains run-level metadata.
type Metadata struct {
	Name        string            `yaml:"name" validate:"required"`
	Description string            `yaml:"description"`
	Labels      map[string]string `yaml:"labels,omitempty"`
}

// Spec contains the detailed specification for the staging run.
type Spec struct {
	Image     ImageSpec     `yaml:"image" validate:"required"`
	Build     *BuildSpec    `yaml:"build,omitempty"`
	Container ContainerSpec `yaml:"container"`
	Staging   StagingSpec   `yaml:"staging"`
}

// ImageSpec identifies the image under inspection by its name:tag reference.
type ImageSpec struct {
	Tag string `yaml:"tag" validate:"required"`
}

// BuildSpec configures an optional local build of the image. When Source is
// set it is treated as a git URL cloned into the staging area before the
// build; otherwise Dockerfile is resolved against the local filesystem.
type BuildSpec struct {
	Dockerfile string `yaml:"dockerfile" validate:"required"`
	Source     string `yaml:"source,omitempty" validate:"omitempty,url"`
	Ref        string `yaml:"ref,omitempty"`
}

// ContainerSpec names the reserved analysis container.
type ContainerSpec struct {
	Name string `yaml:"name"`
}

// StagingSpec configures where image archives and unpacked filesystems land.
type StagingSpec struct {
	Dir         string `yaml:"dir"`
	KeepArchive bool   `yaml:"keepArchive"`
}

// ContainerName returns the configured container name or the reserved
// default.
func (s *Spec) ContainerName() string {
	if s.Container.Name != "" {
		return s.Container.Name
	}
	return DefaultContainerName
}

// StagingDir returns the configured staging directory or a default under the
// system temp directory.
func (s *Spec) StagingDir() string {
	if s.Staging.Dir != "" {
		return s.Staging.Dir
	}
	return filepath.Join(os.TempDir(), "layerlens")
}
