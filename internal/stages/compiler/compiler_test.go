package compiler_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"github.com/code-grade/worker/internal/config"
	"github.com/code-grade/worker/internal/sandbox"
	"github.com/code-grade/worker/internal/stages/compiler"
	customErr "github.com/code-grade/worker/pkg/errors"
	"github.com/code-grade/worker/pkg/languages"
	mocks "github.com/code-grade/worker/tests/mocks"
)

func makeConfig(t *testing.T) *config.Config {
	return &config.Config{
		ExecutionTimeout: 10 * time.Second,
		BuildTimeout:     10 * time.Second,
		MemoryLimitMB:    128,
		CPULimit:         1.0,
		MaxOutputBytes:   1024,
		SandboxUser:      "nobody",
		StagingDir:       t.TempDir(),
		LanguageImages: map[languages.LanguageType]string{
			languages.C:      "gcc:latest",
			languages.CPP:    "gcc:latest",
			languages.Python: "python:3.11-slim",
			languages.Java:   "openjdk:17",
		},
	}
}

func TestCompilePythonStagesSourceWithoutBuild(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRunner := mocks.NewMockRunner(ctrl)
	// Interpreted languages never reach the sandbox.
	mockRunner.EXPECT().Run(gomock.Any(), gomock.Any()).Times(0)

	c := compiler.NewCompiler(mockRunner, makeConfig(t))
	artifact, err := c.Compile(context.Background(), "print(input())", languages.Python)
	if err != nil {
		t.Fatalf("Compile returned error: %v", err)
	}
	defer artifact.Release()

	content, err := os.ReadFile(artifact.Path)
	if err != nil {
		t.Fatalf("failed to read staged source: %v", err)
	}
	if string(content) != "print(input())" {
		t.Fatalf("staged source = %q", content)
	}

	info, err := os.Stat(artifact.Path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o644 {
		t.Fatalf("staged source mode = %v, want world-readable 0644", info.Mode().Perm())
	}
}

func TestCompileCSuccess(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRunner := mocks.NewMockRunner(ctrl)
	mockRunner.EXPECT().Run(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, spec sandbox.RunSpec) (*sandbox.RunResult, error) {
			if spec.Image != "gcc:latest" {
				t.Fatalf("build image = %q", spec.Image)
			}
			if !strings.Contains(spec.Script, "gcc") {
				t.Fatalf("build script = %q", spec.Script)
			}
			if len(spec.Mounts) != 1 || spec.Mounts[0].ReadOnly {
				t.Fatalf("build must get exactly one read-write mount, got %+v", spec.Mounts)
			}
			// The sandbox would write the executable into the mount.
			execPath := filepath.Join(spec.Mounts[0].Source, "solution")
			if err := os.WriteFile(execPath, []byte("ELF"), 0o755); err != nil {
				t.Fatal(err)
			}
			return &sandbox.RunResult{ExitCode: 0}, nil
		}).Times(1)

	c := compiler.NewCompiler(mockRunner, makeConfig(t))
	artifact, err := c.Compile(context.Background(), "int main(){return 0;}", languages.C)
	if err != nil {
		t.Fatalf("Compile returned error: %v", err)
	}
	defer artifact.Release()

	if filepath.Base(artifact.Path) != "solution" {
		t.Fatalf("artifact path = %q", artifact.Path)
	}
	if artifact.Language != languages.C {
		t.Fatalf("artifact language = %v", artifact.Language)
	}
}

func TestCompileJavaUsesSolutionClassContract(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRunner := mocks.NewMockRunner(ctrl)
	mockRunner.EXPECT().Run(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, spec sandbox.RunSpec) (*sandbox.RunResult, error) {
			if !strings.Contains(spec.Script, "javac Solution.java") {
				t.Fatalf("java build script = %q", spec.Script)
			}
			sourcePath := filepath.Join(spec.Mounts[0].Source, "Solution.java")
			if _, err := os.Stat(sourcePath); err != nil {
				t.Fatalf("source not staged as Solution.java: %v", err)
			}
			classPath := filepath.Join(spec.Mounts[0].Source, "Solution.class")
			if err := os.WriteFile(classPath, []byte("CAFEBABE"), 0o644); err != nil {
				t.Fatal(err)
			}
			return &sandbox.RunResult{ExitCode: 0}, nil
		}).Times(1)

	c := compiler.NewCompiler(mockRunner, makeConfig(t))
	artifact, err := c.Compile(context.Background(), "public class Solution {}", languages.Java)
	if err != nil {
		t.Fatalf("Compile returned error: %v", err)
	}
	defer artifact.Release()

	// The Java artifact is the class directory.
	if artifact.Path != artifact.Dir {
		t.Fatalf("java artifact path = %q, want its staging dir %q", artifact.Path, artifact.Dir)
	}
}

func TestCompileFailedCarriesDiagnostics(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRunner := mocks.NewMockRunner(ctrl)
	mockRunner.EXPECT().Run(gomock.Any(), gomock.Any()).Return(
		&sandbox.RunResult{
			ExitCode: 1,
			Stderr:   "solution.cpp:3:1: error: expected ';'\n",
		}, nil).Times(1)

	c := compiler.NewCompiler(mockRunner, makeConfig(t))
	_, err := c.Compile(context.Background(), "int main( {", languages.CPP)
	if !errors.Is(err, customErr.ErrCompilationFailed) {
		t.Fatalf("error = %v, want ErrCompilationFailed", err)
	}
	if !strings.Contains(err.Error(), "expected ';'") {
		t.Fatalf("compiler diagnostics missing from error: %v", err)
	}
}

func TestCompileBuildTimeout(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRunner := mocks.NewMockRunner(ctrl)
	mockRunner.EXPECT().Run(gomock.Any(), gomock.Any()).Return(
		&sandbox.RunResult{TimedOut: true}, nil).Times(1)

	c := compiler.NewCompiler(mockRunner, makeConfig(t))
	_, err := c.Compile(context.Background(), "template metaprogram", languages.CPP)
	if !errors.Is(err, customErr.ErrBuildTimeout) {
		t.Fatalf("error = %v, want ErrBuildTimeout", err)
	}
}

func TestCompileArtifactMissing(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRunner := mocks.NewMockRunner(ctrl)
	// Build claims success but never writes the executable.
	mockRunner.EXPECT().Run(gomock.Any(), gomock.Any()).Return(
		&sandbox.RunResult{ExitCode: 0}, nil).Times(1)

	c := compiler.NewCompiler(mockRunner, makeConfig(t))
	_, err := c.Compile(context.Background(), "int main(){}", languages.C)
	if !errors.Is(err, customErr.ErrArtifactMissing) {
		t.Fatalf("error = %v, want ErrArtifactMissing", err)
	}
}

func TestCompileUnsupportedLanguage(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRunner := mocks.NewMockRunner(ctrl)

	c := compiler.NewCompiler(mockRunner, makeConfig(t))
	_, err := c.Compile(context.Background(), "code", languages.LanguageType(99))
	if !errors.Is(err, customErr.ErrUnsupportedLanguage) {
		t.Fatalf("error = %v, want ErrUnsupportedLanguage", err)
	}
}

func TestCompileCleansStagingOnFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	cfg := makeConfig(t)
	mockRunner := mocks.NewMockRunner(ctrl)
	mockRunner.EXPECT().Run(gomock.Any(), gomock.Any()).Return(
		&sandbox.RunResult{ExitCode: 1, Stderr: "boom"}, nil).Times(1)

	c := compiler.NewCompiler(mockRunner, cfg)
	if _, err := c.Compile(context.Background(), "int main( {", languages.C); err == nil {
		t.Fatal("expected compile failure")
	}

	entries, err := os.ReadDir(cfg.StagingDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("staging dir not cleaned after failed build: %v", entries)
	}
}
