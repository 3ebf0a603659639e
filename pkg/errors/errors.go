package errors

import "errors"

// Error messages.
var (
	ErrUnsupportedLanguage = errors.New("unsupported programming language")
	ErrCompilationFailed   = errors.New("compilation failed")
	ErrBuildTimeout        = errors.New("build timed out")
	ErrArtifactMissing     = errors.New("artifact not found after successful build")
	ErrExecTimeout         = errors.New("execution timed out")
	ErrRuntimeFailure      = errors.New("execution returned non-zero exit code")
	ErrSandboxUnavailable  = errors.New("sandbox runtime unavailable")
	ErrInvalidTestSuite    = errors.New("invalid test suite")
	ErrUnknownMessageType  = errors.New("unknown message type")
)
