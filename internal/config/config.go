package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/code-grade/worker/internal/logger"
	"github.com/code-grade/worker/pkg/constants"
	"github.com/code-grade/worker/pkg/languages"
)

// Config carries every process-wide setting as an immutable value. It is
// built once at startup and passed into each component's constructor;
// components never read the environment themselves.
type Config struct {
	// Sandbox limits, shared by the build and run steps.
	ExecutionTimeout time.Duration
	BuildTimeout     time.Duration
	MemoryLimitMB    int64
	CPULimit         float64
	MaxOutputBytes   int
	SandboxUser      string
	StagingDir       string
	LanguageImages   map[languages.LanguageType]string

	// Test generation.
	GeminiAPIKey     string
	GeminiModel      string
	DefaultTestCount int
	MaxTestCount     int

	// Queue surface.
	RabbitMQURL string
	GraderQueue string
}

func NewConfig() *Config {
	logger := logger.NewNamedLogger("config")

	_, err := os.Stat(".env")
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Fatalf("failed to stat .env file with error: %v", err)
		}
	} else {
		if err := godotenv.Load(".env"); err != nil {
			logger.Fatalf("failed to load .env file with error: %v", err)
		}
	}

	return &Config{
		ExecutionTimeout: durationEnv("EXECUTION_TIMEOUT_SECONDS", constants.DefaultExecutionTimeoutS),
		BuildTimeout:     durationEnv("BUILD_TIMEOUT_SECONDS", constants.DefaultBuildTimeoutS),
		MemoryLimitMB:    int64(intEnv("MAX_MEMORY_MB", constants.DefaultMemoryLimitMB)),
		CPULimit:         floatEnv("MAX_CPU_LIMIT", constants.DefaultCPULimit),
		MaxOutputBytes:   intEnv("MAX_OUTPUT_SIZE", constants.DefaultMaxOutputBytes),
		SandboxUser:      stringEnv("SANDBOX_USER", constants.DefaultSandboxUser),
		StagingDir:       stringEnv("STAGING_DIR", constants.DefaultStagingDir),
		LanguageImages:   languageImages(),
		GeminiAPIKey:     os.Getenv("GOOGLE_GEMINI_API_KEY"),
		GeminiModel:      stringEnv("GEMINI_MODEL", constants.DefaultGeminiModel),
		DefaultTestCount: intEnv("DEFAULT_TEST_COUNT", constants.DefaultTestCount),
		MaxTestCount:     intEnv("MAX_TEST_COUNT", constants.DefaultMaxTestCount),
		RabbitMQURL:      rabbitmqURL(),
		GraderQueue:      stringEnv("GRADER_QUEUE_NAME", constants.DefaultGraderQueueName),
	}
}

// languageImages builds the per-language sandbox image map, applying any
// IMAGE_<LANG> overrides on top of the defaults.
func languageImages() map[languages.LanguageType]string {
	images := make(map[languages.LanguageType]string)
	for _, name := range languages.GetSupportedLanguages() {
		lt, err := languages.ParseLanguageType(name)
		if err != nil {
			continue
		}
		images[lt] = stringEnv("IMAGE_"+strings.ToUpper(name), lt.DefaultImage())
	}
	return images
}

func rabbitmqURL() string {
	host := stringEnv("RABBITMQ_HOST", constants.DefaultRabbitmqHost)
	port := stringEnv("RABBITMQ_PORT", constants.DefaultRabbitmqPort)
	user := stringEnv("RABBITMQ_USER", constants.DefaultRabbitmqUser)
	password := stringEnv("RABBITMQ_PASSWORD", constants.DefaultRabbitmqPassword)
	return fmt.Sprintf("amqp://%s:%s@%s:%s/", user, password, host, port)
}

func stringEnv(key, fallback string) string {
	logger := logger.NewNamedLogger("config")

	value := os.Getenv(key)
	if value == "" {
		logger.Warnf("%s is not set, using default value %s", key, fallback)
		return fallback
	}
	return value
}

func intEnv(key string, fallback int) int {
	logger := logger.NewNamedLogger("config")

	valueStr := os.Getenv(key)
	if valueStr == "" {
		logger.Warnf("%s is not set, using default value %d", key, fallback)
		return fallback
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		logger.Fatalf("failed to parse %s with error: %v", key, err)
	}
	return value
}

func floatEnv(key string, fallback float64) float64 {
	logger := logger.NewNamedLogger("config")

	valueStr := os.Getenv(key)
	if valueStr == "" {
		logger.Warnf("%s is not set, using default value %g", key, fallback)
		return fallback
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		logger.Fatalf("failed to parse %s with error: %v", key, err)
	}
	return value
}

func durationEnv(key string, fallbackSeconds int) time.Duration {
	return time.Duration(intEnv(key, fallbackSeconds)) * time.Second
}
