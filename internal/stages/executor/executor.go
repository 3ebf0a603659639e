// Package executor runs a compiled artifact against one test input inside
// the run sandbox: no network, bounded memory and CPU, unprivileged
// identity, read-only mounts for both code and input.
package executor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/code-grade/worker/internal/config"
	"github.com/code-grade/worker/internal/logger"
	"github.com/code-grade/worker/internal/sandbox"
	"github.com/code-grade/worker/internal/stages/compiler"
	"github.com/code-grade/worker/pkg/constants"
	customErr "github.com/code-grade/worker/pkg/errors"
	"github.com/code-grade/worker/pkg/languages"
	"github.com/code-grade/worker/utils"
)

// ExecutionResult carries the captured streams of one sandbox run. Stdout
// is truncated at the configured ceiling with a marker appended; stderr is
// kept separately for diagnostics and never takes part in output
// comparison.
type ExecutionResult struct {
	Stdout     string
	Stderr     string
	TimedOut   bool
	ExitFailed bool
}

type Executor interface {
	// Execute runs the artifact with inputText piped to its stdin. On
	// ErrExecTimeout and ErrRuntimeFailure the returned result is still
	// populated with whatever output was captured.
	Execute(
		ctx context.Context,
		artifact *compiler.Artifact,
		inputText string,
		timeout time.Duration,
	) (*ExecutionResult, error)
}

type executor struct {
	runner sandbox.Runner
	cfg    *config.Config
	logger *zap.SugaredLogger
}

func NewExecutor(runner sandbox.Runner, cfg *config.Config) Executor {
	return &executor{
		runner: runner,
		cfg:    cfg,
		logger: logger.NewNamedLogger("executor"),
	}
}

func (e *executor) Execute(
	ctx context.Context,
	artifact *compiler.Artifact,
	inputText string,
	timeout time.Duration,
) (*ExecutionResult, error) {
	inputDir, inputName, err := e.stageInput(inputText)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = utils.RemoveIO(inputDir, true, true)
	}()

	execDir := artifact.Dir
	artifactName := filepath.Base(artifact.Path)
	if artifact.Language == languages.Java {
		// The Java artifact is the class directory itself.
		artifactName = ""
	}

	script, err := artifact.Language.RunScript(artifactName, inputName)
	if err != nil {
		return nil, err
	}

	e.logger.Infof("Running %s artifact from %s", artifact.Language, execDir)

	result, err := e.runner.Run(ctx, sandbox.RunSpec{
		Image:  e.cfg.LanguageImages[artifact.Language],
		Script: script,
		User:   e.cfg.SandboxUser,
		Mounts: []sandbox.Mount{
			{Source: execDir, Target: "/exec", ReadOnly: true},
			{Source: inputDir, Target: "/input", ReadOnly: true},
		},
		MemoryLimitMB: e.cfg.MemoryLimitMB,
		CPULimit:      e.cfg.CPULimit,
		Timeout:       timeout,
		Name:          "run-" + filepath.Base(inputDir),
	})
	if err != nil {
		return nil, err
	}

	execResult := &ExecutionResult{
		Stdout: utils.TruncateOutput(result.Stdout, e.cfg.MaxOutputBytes, constants.TruncationMarker),
		Stderr: result.Stderr,
	}

	if result.TimedOut {
		execResult.TimedOut = true
		return execResult, fmt.Errorf("%w after %s", customErr.ErrExecTimeout, timeout)
	}
	if result.ExitCode != 0 {
		execResult.ExitFailed = true
		diagnostic := strings.TrimSpace(result.Stderr)
		return execResult, fmt.Errorf("%w: %s", customErr.ErrRuntimeFailure, diagnostic)
	}

	return execResult, nil
}

// stageInput writes the test input into its own unique directory so the
// run can mount it read-only without exposing any sibling request's files.
func (e *executor) stageInput(inputText string) (string, string, error) {
	dir := filepath.Join(e.cfg.StagingDir, "in-"+uuid.NewString())
	if err := os.MkdirAll(dir, constants.StagingDirPerm); err != nil {
		return "", "", err
	}
	if err := os.Chmod(dir, constants.StagingDirPerm); err != nil {
		return "", "", err
	}

	inputName := "input.txt"
	if err := utils.WriteStagedFile(
		filepath.Join(dir, inputName), inputText, constants.StagedFilePerm,
	); err != nil {
		_ = utils.RemoveIO(dir, true, true)
		return "", "", err
	}
	return dir, inputName, nil
}
