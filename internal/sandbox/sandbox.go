// Package sandbox wraps the Docker SDK behind the single run-to-completion
// contract the grading stages need: create an isolated container, feed it a
// shell command, enforce a wall-clock timeout, and hand back the demuxed
// stdout/stderr with the exit code.
package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"regexp"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"go.uber.org/zap"

	"github.com/code-grade/worker/internal/logger"
	customErr "github.com/code-grade/worker/pkg/errors"
)

var containerNameRegex = regexp.MustCompile("[^a-zA-Z0-9_.-]")

// Mount maps a host staging directory into the container.
type Mount struct {
	Source   string
	Target   string
	ReadOnly bool
}

// RunSpec describes one container run. Every run is network-less, runs
// under the configured identity, and is killed once Timeout elapses.
type RunSpec struct {
	Image         string
	Script        string
	User          string
	Mounts        []Mount
	MemoryLimitMB int64
	CPULimit      float64
	Timeout       time.Duration
	Name          string
}

type RunResult struct {
	ExitCode int64
	Stdout   string
	Stderr   string
	TimedOut bool
}

type Runner interface {
	EnsureImage(ctx context.Context, imageName string) error
	Run(ctx context.Context, spec RunSpec) (*RunResult, error)
}

type runner struct {
	cli    *client.Client
	logger *zap.SugaredLogger
}

func NewRunner() (Runner, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("%w: %s", customErr.ErrSandboxUnavailable, err)
	}
	return &runner{cli: cli, logger: logger.NewNamedLogger("sandbox")}, nil
}

func (r *runner) EnsureImage(ctx context.Context, imageName string) error {
	_, err := r.cli.ImageInspect(ctx, imageName)
	if err == nil {
		return nil
	}
	if !client.IsErrNotFound(err) {
		return fmt.Errorf("%w: %s", customErr.ErrSandboxUnavailable, err)
	}

	r.logger.Infof("Pulling image %s", imageName)
	reader, err := r.cli.ImagePull(ctx, imageName, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("%w: %s", customErr.ErrSandboxUnavailable, err)
	}
	defer reader.Close()
	_, err = io.Copy(io.Discard, reader)
	return err
}

func (r *runner) Run(ctx context.Context, spec RunSpec) (*RunResult, error) {
	if err := r.EnsureImage(ctx, spec.Image); err != nil {
		return nil, err
	}

	containerCfg := buildContainerConfig(spec)
	hostCfg := buildHostConfig(spec)

	name := SanitizeContainerName(spec.Name)
	resp, err := r.cli.ContainerCreate(ctx, containerCfg, hostCfg, nil, nil, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", customErr.ErrSandboxUnavailable, err)
	}
	containerID := resp.ID

	defer func() {
		cleanupCtx, cleanupCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cleanupCancel()
		if err := r.cli.ContainerRemove(cleanupCtx, containerID, container.RemoveOptions{Force: true}); err != nil {
			r.logger.Errorf("Failed to remove container %s: %s", containerID, err)
		}
	}()

	if err := r.cli.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		return nil, fmt.Errorf("%w: %s", customErr.ErrSandboxUnavailable, err)
	}

	exitCode, timedOut, err := r.waitForContainer(ctx, containerID, spec.Timeout)
	if err != nil {
		return nil, err
	}

	stdout, stderr, err := r.collectLogs(containerID)
	if err != nil {
		return nil, err
	}

	return &RunResult{
		ExitCode: exitCode,
		Stdout:   stdout,
		Stderr:   stderr,
		TimedOut: timedOut,
	}, nil
}

// waitForContainer blocks until the container exits or the wall-clock
// timeout elapses. On timeout the container is killed and the run is
// reported as timed out rather than failed.
func (r *runner) waitForContainer(
	ctx context.Context, containerID string, timeout time.Duration,
) (int64, bool, error) {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	statusCh, errCh := r.cli.ContainerWait(ctx, containerID, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		return -1, false, fmt.Errorf("%w: %s", customErr.ErrSandboxUnavailable, err)
	case status := <-statusCh:
		return status.StatusCode, false, nil
	case <-waitCtx.Done():
		killCtx, killCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer killCancel()
		if err := r.cli.ContainerKill(killCtx, containerID, "SIGKILL"); err != nil {
			r.logger.Errorf("Failed to kill timed out container %s: %s", containerID, err)
		}
		return -1, true, nil
	}
}

func (r *runner) collectLogs(containerID string) (string, string, error) {
	logCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	reader, err := r.cli.ContainerLogs(logCtx, containerID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	})
	if err != nil {
		return "", "", fmt.Errorf("%w: %s", customErr.ErrSandboxUnavailable, err)
	}
	defer reader.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, reader); err != nil {
		return "", "", fmt.Errorf("%w: %s", customErr.ErrSandboxUnavailable, err)
	}
	return stdout.String(), stderr.String(), nil
}

func SanitizeContainerName(raw string) string {
	cleaned := containerNameRegex.ReplaceAllString(raw, "-")
	if cleaned == "" {
		cleaned = "untitled"
	}
	return "grader-" + cleaned
}

func buildContainerConfig(spec RunSpec) *container.Config {
	stopTimeout := int(2)

	return &container.Config{
		Image:       spec.Image,
		Cmd:         []string{"bash", "-c", spec.Script},
		User:        spec.User,
		StopTimeout: &stopTimeout,
		StopSignal:  "SIGKILL",
	}
}

func buildHostConfig(spec RunSpec) *container.HostConfig {
	binds := make([]string, 0, len(spec.Mounts))
	for _, m := range spec.Mounts {
		mode := "rw"
		if m.ReadOnly {
			mode = "ro"
		}
		binds = append(binds, fmt.Sprintf("%s:%s:%s", m.Source, m.Target, mode))
	}

	memoryBytes := spec.MemoryLimitMB * 1024 * 1024

	return &container.HostConfig{
		AutoRemove:  false,
		Binds:       binds,
		NetworkMode: container.NetworkMode("none"),
		Resources: container.Resources{
			Memory:     memoryBytes,
			MemorySwap: memoryBytes,
			NanoCPUs:   int64(spec.CPULimit * 1e9),
		},
		SecurityOpt: []string{"no-new-privileges"},
		IpcMode:     container.IpcMode("private"),
		CapDrop:     []string{"ALL"},
	}
}
