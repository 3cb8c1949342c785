package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"layerlens/internal/app"
	apperrors "layerlens/internal/errors"
	"layerlens/internal/exec"
	"layerlens/internal/extract"
	"layerlens/internal/parser"
	"layerlens/internal/runtime"
	"layerlens/pkg/manifest"
)

// version is set at build time via ldflags
var version = "dev"

var rootCmd = &cobra.Command{
	Use:     "layerlens",
	Short:   "layerlens - Container image staging and filesystem extraction tool",
	Version: version,
	Long: `layerlens stages container images for offline inspection: it pulls or
builds an image, runs a reserved analysis container from it, and extracts the
image filesystem via a streamed archive export.`,
}

var stageCmd = &cobra.Command{
	Use:   "stage",
	Short: "Run the complete staging workflow",
	Long: `Stage executes the complete layerlens workflow: acquiring the image,
starting the reserved analysis container, and extracting the image filesystem -
all from a single command.

An interrupted run resumes from the last successful stage.`,
	Run: func(cmd *cobra.Command, args []string) {
		file := mustFileFlag(cmd)
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		retainState, _ := cmd.Flags().GetBool("retain-state")
		keepContainer, _ := cmd.Flags().GetBool("keep-container")

		err := app.Run(file, app.Options{
			IsDryRun:      dryRun,
			RetainState:   retainState,
			KeepContainer: keepContainer,
		})
		exitOnError(err)
	},
}

var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Pull the manifest's image from its registry",
	Run: func(cmd *cobra.Command, args []string) {
		m, rt := mustManifestAndRuntime(cmd)
		defer rt.Close()

		ctx := context.Background()
		tag := m.Spec.Image.Tag

		exists, err := rt.ImageExists(ctx, tag)
		exitOnError(err)
		if exists {
			fmt.Printf("Image already present: %s\n", tag)
			return
		}

		found, err := rt.PullImage(ctx, tag)
		exitOnError(err)
		if !found {
			exitOnError(fmt.Errorf("image %s not found on the remote registry", tag))
		}
		fmt.Printf("Successfully pulled image: %s\n", tag)
	},
}

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the manifest's image from its Dockerfile",
	Run: func(cmd *cobra.Command, args []string) {
		m, rt := mustManifestAndRuntime(cmd)
		defer rt.Close()

		if m.Spec.Build == nil {
			exitOnError(fmt.Errorf("manifest has no build section"))
		}

		err := rt.BuildImage(context.Background(), m.Spec.Build.Dockerfile, m.Spec.Image.Tag)
		exitOnError(err)
		fmt.Printf("Successfully built image: %s\n", m.Spec.Image.Tag)
	},
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the reserved analysis container",
	Long: `Start runs a detached container from the manifest's image under the
reserved container name. Any existing container of that name is stopped and
removed first.`,
	Run: func(cmd *cobra.Command, args []string) {
		m, rt := mustManifestAndRuntime(cmd)
		defer rt.Close()

		err := rt.StartContainer(context.Background(), m.Spec.Image.Tag, m.Spec.ContainerName())
		exitOnError(err)
		fmt.Printf("Container started: %s\n", m.Spec.ContainerName())
	},
}

var teardownCmd = &cobra.Command{
	Use:   "teardown",
	Short: "Stop and remove the reserved analysis container",
	Run: func(cmd *cobra.Command, args []string) {
		file := mustFileFlag(cmd)
		exitOnError(app.Teardown(file))
		fmt.Println("Analysis container removed.")
	},
}

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Export the image and unpack its filesystem",
	Long: `Extract requests a streamed archive export of the manifest's image,
unpacks it under the staging directory, and prints the directory holding the
raw image layer filesystem.`,
	Run: func(cmd *cobra.Command, args []string) {
		m, rt := mustManifestAndRuntime(cmd)
		defer rt.Close()

		keepArchive, _ := cmd.Flags().GetBool("keep-archive")

		extractor := extract.New(rt, m.Spec.StagingDir(), keepArchive || m.Spec.Staging.KeepArchive)
		dir, err := extractor.Extract(context.Background(), m.Spec.Image.Tag)
		exitOnError(err)
		fmt.Printf("Image filesystem unpacked to: %s\n", dir)
	},
}

var execCmd = &cobra.Command{
	Use:   "exec -f manifest.yaml -- command [args...]",
	Short: "Run a command inside the analysis container",
	Long: `Exec runs a command inside the reserved analysis container and prints
its captured output. The container must already be running (see start).`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		m, rt := mustManifestAndRuntime(cmd)
		defer rt.Close()

		output, err := rt.ExecInContainer(context.Background(), m.Spec.ContainerName(), args)
		exitOnError(err)
		os.Stdout.Write(output)
	},
}

var cpCmd = &cobra.Command{
	Use:   "cp -f manifest.yaml <container-path> <destination-path>",
	Short: "Copy a file out of the analysis container",
	Long: `Cp copies a path out of the reserved analysis container through the
engine CLI, elevating with sudo when the current user is not in the docker
group.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		file := mustFileFlag(cmd)
		m, err := parser.Parse(file)
		exitOnError(err)

		ctx := context.Background()
		name := m.Spec.ContainerName()
		runner := exec.NewRunner()

		if _, err := runner.Run(ctx, exec.InspectCommand, name); err != nil {
			exitOnError(fmt.Errorf("analysis container %s is not available: %w", name, err))
		}

		_, err = runner.Run(ctx, exec.CopyCommand, name+":"+args[0], args[1])
		exitOnError(err)
		fmt.Printf("Copied %s:%s to %s\n", name, args[0], args[1])
	},
}

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Remove the manifest's image from the local engine",
	Run: func(cmd *cobra.Command, args []string) {
		m, rt := mustManifestAndRuntime(cmd)
		defer rt.Close()

		err := rt.RemoveImage(context.Background(), m.Spec.Image.Tag)
		exitOnError(err)
		fmt.Printf("Image removed: %s\n", m.Spec.Image.Tag)
	},
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that the container engine is reachable",
	Run: func(cmd *cobra.Command, args []string) {
		exitOnError(app.ValidatePrerequisites())
		fmt.Println("All prerequisites satisfied.")
	},
}

// mustFileFlag reads the required --file flag, exiting when it is missing.
func mustFileFlag(cmd *cobra.Command) string {
	file, _ := cmd.Flags().GetString("file")
	if file == "" {
		fmt.Fprintln(os.Stderr, "Error: --file flag is required")
		os.Exit(1)
	}
	return file
}

// mustManifestAndRuntime parses the manifest and connects to the engine,
// exiting on failure.
func mustManifestAndRuntime(cmd *cobra.Command) (*manifest.Manifest, *runtime.DockerRuntime) {
	file := mustFileFlag(cmd)

	m, err := parser.Parse(file)
	exitOnError(err)

	rt, err := runtime.NewDockerRuntime()
	exitOnError(err)

	return m, rt
}

func exitOnError(err error) {
	if err == nil {
		return
	}
	apperrors.HandleError(err)
	os.Exit(1)
}

func init() {
	stageCmd.Flags().StringP("file", "f", "", "Path to the manifest YAML file (required)")
	stageCmd.Flags().Bool("dry-run", false, "Simulate the workflow without making any changes")
	stageCmd.Flags().Bool("retain-state", false, "Keep the state file after successful completion for auditing purposes")
	stageCmd.Flags().Bool("keep-container", false, "Leave the analysis container running after extraction")
	if err := stageCmd.MarkFlagRequired("file"); err != nil {
		slog.Error("Failed to mark file flag as required for stage command", "error", err)
	}
	rootCmd.AddCommand(stageCmd)

	for _, cmd := range []*cobra.Command{pullCmd, buildCmd, startCmd, teardownCmd, extractCmd, execCmd, cpCmd, purgeCmd} {
		cmd.Flags().StringP("file", "f", "", "Path to the manifest YAML file (required)")
		if err := cmd.MarkFlagRequired("file"); err != nil {
			slog.Error("Failed to mark file flag as required", "command", cmd.Use, "error", err)
		}
		rootCmd.AddCommand(cmd)
	}
	extractCmd.Flags().Bool("keep-archive", false, "Keep the intermediate image archive after unpacking")

	rootCmd.AddCommand(doctorCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
