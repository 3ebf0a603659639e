package main

import (
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/code-grade/worker/internal/config"
	"github.com/code-grade/worker/internal/genai"
	"github.com/code-grade/worker/internal/grader"
	"github.com/code-grade/worker/internal/logger"
	"github.com/code-grade/worker/internal/queue"
	"github.com/code-grade/worker/internal/sandbox"
	"github.com/code-grade/worker/internal/stages/compiler"
	"github.com/code-grade/worker/internal/stages/executor"
	"github.com/code-grade/worker/internal/synthesizer"
)

func main() {
	logger := logger.NewNamedLogger("main")

	logger.Info("Starting grading worker")

	cfg := config.NewConfig()

	runner, err := sandbox.NewRunner()
	if err != nil {
		logger.Fatalf("Failed to initialize sandbox runtime: %s", err)
	}

	engine := grader.NewEngine(
		compiler.NewCompiler(runner, cfg),
		executor.NewExecutor(runner, cfg),
		cfg.ExecutionTimeout,
	)

	model := genai.NewClient(cfg.GeminiAPIKey, cfg.GeminiModel)
	testSynthesizer := synthesizer.NewSynthesizer(model, cfg.MaxTestCount)

	conn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		logger.Fatalf("Failed to connect to RabbitMQ: %s", err)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			logger.Errorf("Failed to close RabbitMQ connection: %s", err)
		}
	}()

	channel, err := conn.Channel()
	if err != nil {
		logger.Fatalf("Failed to open RabbitMQ channel: %s", err)
	}

	responder := queue.NewResponder(channel)
	consumer := queue.NewConsumer(channel, cfg.GraderQueue, engine, testSynthesizer, responder)

	consumer.Listen()
}
