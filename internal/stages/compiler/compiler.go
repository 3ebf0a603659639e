// Package compiler turns a submitted source text into a runnable artifact.
//
// Compiled languages build inside the sandbox with the same resource caps as
// execution and a bounded wall-clock timeout; the staging directory is the
// only read-write mount the build gets. Interpreted languages skip the build
// entirely and the staged source file is the artifact.
//
// Java submissions must declare a class named exactly
// languages.SolutionClassName; see that constant for the contract.
package compiler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/code-grade/worker/internal/config"
	"github.com/code-grade/worker/internal/logger"
	"github.com/code-grade/worker/internal/sandbox"
	"github.com/code-grade/worker/pkg/constants"
	customErr "github.com/code-grade/worker/pkg/errors"
	"github.com/code-grade/worker/pkg/languages"
	"github.com/code-grade/worker/utils"
)

// buildMountDir is where the staging directory appears inside the build
// container.
const buildMountDir = "/src"

// Artifact is the runnable output of one compile step. It lives in its own
// staging directory and is valid only for the grading run that produced it;
// the owner releases it with Release once the run completes.
type Artifact struct {
	// Dir is the staging directory holding the artifact and its source.
	Dir string
	// Path is the runnable file: the executable for C/C++, the class
	// directory for Java, the staged source for Python.
	Path     string
	Language languages.LanguageType
}

// Release deletes the artifact's staging directory.
func (a *Artifact) Release() {
	_ = utils.RemoveIO(a.Dir, true, true)
}

type Compiler interface {
	Compile(ctx context.Context, code string, lang languages.LanguageType) (*Artifact, error)
}

type compiler struct {
	runner sandbox.Runner
	cfg    *config.Config
	logger *zap.SugaredLogger
}

func NewCompiler(runner sandbox.Runner, cfg *config.Config) Compiler {
	return &compiler{
		runner: runner,
		cfg:    cfg,
		logger: logger.NewNamedLogger("compiler"),
	}
}

func (c *compiler) Compile(
	ctx context.Context, code string, lang languages.LanguageType,
) (*Artifact, error) {
	switch lang {
	case languages.C, languages.CPP, languages.Java:
		return c.buildInSandbox(ctx, code, lang)
	case languages.Python:
		return c.stageInterpreted(code, lang)
	default:
		return nil, customErr.ErrUnsupportedLanguage
	}
}

// stageDir creates a globally-unique staging directory so concurrent
// grading requests never collide on the filesystem.
func (c *compiler) stageDir() (string, error) {
	dir := filepath.Join(c.cfg.StagingDir, "sub-"+uuid.NewString())
	if err := os.MkdirAll(dir, constants.StagingDirPerm); err != nil {
		return "", err
	}
	// MkdirAll applies the umask; the sandbox user needs to traverse it.
	if err := os.Chmod(dir, constants.StagingDirPerm); err != nil {
		return "", err
	}
	return dir, nil
}

func (c *compiler) stageInterpreted(code string, lang languages.LanguageType) (*Artifact, error) {
	dir, err := c.stageDir()
	if err != nil {
		return nil, err
	}

	sourceName := lang.SourceFileName("solution")
	sourcePath := filepath.Join(dir, sourceName)
	if err := utils.WriteStagedFile(sourcePath, code, constants.StagedFilePerm); err != nil {
		_ = utils.RemoveIO(dir, true, true)
		return nil, err
	}

	return &Artifact{Dir: dir, Path: sourcePath, Language: lang}, nil
}

func (c *compiler) buildInSandbox(
	ctx context.Context, code string, lang languages.LanguageType,
) (*Artifact, error) {
	dir, err := c.stageDir()
	if err != nil {
		return nil, err
	}

	sourceName := lang.SourceFileName("solution")
	sourcePath := filepath.Join(dir, sourceName)
	if err := utils.WriteStagedFile(sourcePath, code, constants.StagedFilePerm); err != nil {
		_ = utils.RemoveIO(dir, true, true)
		return nil, err
	}

	execName := strings.TrimSuffix(sourceName, lang.Extension())
	script, err := lang.BuildScript(buildMountDir, sourceName, execName)
	if err != nil {
		_ = utils.RemoveIO(dir, true, true)
		return nil, err
	}

	c.logger.Infof("Building %s submission in %s", lang, dir)
	result, err := c.runner.Run(ctx, sandbox.RunSpec{
		Image:  c.cfg.LanguageImages[lang],
		Script: script,
		// The build needs to write the artifact into the mount; it runs
		// privileged inside the container but still without network,
		// capabilities or extra memory.
		User:          "root",
		Mounts:        []sandbox.Mount{{Source: dir, Target: buildMountDir}},
		MemoryLimitMB: c.cfg.MemoryLimitMB,
		CPULimit:      c.cfg.CPULimit,
		Timeout:       c.cfg.BuildTimeout,
		Name:          "build-" + filepath.Base(dir),
	})
	if err != nil {
		_ = utils.RemoveIO(dir, true, true)
		return nil, err
	}

	if result.TimedOut {
		_ = utils.RemoveIO(dir, true, true)
		return nil, fmt.Errorf("%w after %s", customErr.ErrBuildTimeout, c.cfg.BuildTimeout)
	}
	if result.ExitCode != 0 {
		diagnostic := strings.TrimSpace(result.Stderr)
		_ = utils.RemoveIO(dir, true, true)
		return nil, fmt.Errorf("%w: %s", customErr.ErrCompilationFailed, diagnostic)
	}

	artifact := &Artifact{Dir: dir, Language: lang}
	if lang == languages.Java {
		// java runs against the class directory, not a single file.
		artifact.Path = dir
		if _, err := os.Stat(filepath.Join(dir, languages.SolutionClassName+".class")); err != nil {
			artifact.Release()
			return nil, customErr.ErrArtifactMissing
		}
		return artifact, nil
	}

	artifact.Path = filepath.Join(dir, execName)
	// The build reported success, but the mount may still be missing the
	// executable (image misconfiguration, script drift). Surface this as
	// its own error rather than a compile failure.
	if _, err := os.Stat(artifact.Path); err != nil {
		artifact.Release()
		return nil, customErr.ErrArtifactMissing
	}
	return artifact, nil
}
