package constants

// Queue message types.
const (
	QueueMessageTypeGrade    = "grade"
	QueueMessageTypeGenerate = "generate"
)

// Build status values reported on a grade response.
const (
	BuildStatusSuccess = "success"
	BuildStatusFailed  = "failed"
)

// Build messages.
const (
	BuildMessageSuccess       = "build successful"
	BuildMessageNoBuildNeeded = "no build step required"
)

// TruncationMarker is appended to captured stdout when it exceeds the
// configured output ceiling.
const TruncationMarker = "\n...(output truncated due to size limit)"

// Configuration defaults.
const (
	DefaultRabbitmqHost      = "localhost"
	DefaultRabbitmqUser      = "guest"
	DefaultRabbitmqPassword  = "guest"
	DefaultRabbitmqPort      = "5672"
	DefaultGraderQueueName   = "grader_queue"
	DefaultStagingDir        = "/tmp/code-grade"
	DefaultExecutionTimeoutS = 10
	DefaultBuildTimeoutS     = 10
	DefaultMemoryLimitMB     = 128
	DefaultCPULimit          = 1.0
	DefaultMaxOutputBytes    = 10 * 1024 * 1024
	DefaultSandboxUser       = "nobody"
	DefaultGeminiModel       = "gemini-2.0-flash-lite"
	DefaultTestCount         = 3
	DefaultMaxTestCount      = 30
)

// Staging permissions. Sources and inputs must be world-readable because
// the sandbox mounts the staging directory under an unprivileged identity.
const (
	StagingDirPerm = 0o755
	StagedFilePerm = 0o644
)
