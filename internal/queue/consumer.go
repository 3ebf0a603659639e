// Package queue is the worker's delivery surface: it consumes grade and
// generate requests from RabbitMQ and publishes the resulting reports and
// suites to the caller's reply queue. Requests are processed one at a
// time; each message is one synchronous grading or generation run.
package queue

import (
	"context"
	"encoding/json"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/code-grade/worker/internal/grader"
	"github.com/code-grade/worker/internal/logger"
	"github.com/code-grade/worker/internal/synthesizer"
	"github.com/code-grade/worker/pkg/constants"
	customErr "github.com/code-grade/worker/pkg/errors"
	"github.com/code-grade/worker/pkg/languages"
	"github.com/code-grade/worker/pkg/messages"
)

type Consumer interface {
	Listen()
}

type consumer struct {
	channel     *amqp.Channel
	queueName   string
	engine      grader.Engine
	synthesizer synthesizer.Synthesizer
	responder   Responder
	logger      *zap.SugaredLogger
}

func NewConsumer(
	channel *amqp.Channel,
	queueName string,
	engine grader.Engine,
	synthesizer synthesizer.Synthesizer,
	responder Responder,
) Consumer {
	return &consumer{
		channel:     channel,
		queueName:   queueName,
		engine:      engine,
		synthesizer: synthesizer,
		responder:   responder,
		logger:      logger.NewNamedLogger("consumer"),
	}
}

func (c *consumer) Listen() {
	c.logger.Infof("Declaring queue %s", c.queueName)

	_, err := c.channel.QueueDeclare(c.queueName, true, false, false, false, nil)
	if err != nil {
		c.logger.Panicf("Failed to declare queue %s: %s", c.queueName, err)
	}

	msgs, err := c.channel.Consume(c.queueName, "", true, false, false, false, nil)
	if err != nil {
		c.logger.Panicf("Failed to consume messages from queue %s: %s", c.queueName, err)
	}

	c.logger.Infof("Listening for messages on queue %s", c.queueName)

	for msg := range msgs {
		var queueMessage messages.QueueMessage
		if err := json.Unmarshal(msg.Body, &queueMessage); err != nil {
			c.logger.Errorf("Failed to unmarshal message: %s", err)
			continue
		}

		switch queueMessage.Type {
		case constants.QueueMessageTypeGrade:
			c.logger.Infof("Received grade message: %s", queueMessage.MessageID)
			c.handleGradeMessage(queueMessage, msg.ReplyTo)
		case constants.QueueMessageTypeGenerate:
			c.logger.Infof("Received generate message: %s", queueMessage.MessageID)
			c.handleGenerateMessage(queueMessage, msg.ReplyTo)
		default:
			c.logger.Errorf("Unknown message type: %s", queueMessage.Type)
			c.responder.PublishErrorToResponseQueue(
				queueMessage.Type,
				queueMessage.MessageID,
				msg.ReplyTo,
				customErr.ErrUnknownMessageType)
		}
	}
}

func (c *consumer) handleGradeMessage(queueMessage messages.QueueMessage, replyTo string) {
	var payload messages.GradeRequestPayload
	if err := json.Unmarshal(queueMessage.Payload, &payload); err != nil {
		c.logger.Errorf("Failed to unmarshal grade payload: %s", err)
		c.responder.PublishErrorToResponseQueue(
			queueMessage.Type, queueMessage.MessageID, replyTo, err)
		return
	}

	lang, err := languages.ParseLanguageType(payload.ProgrammingLanguage)
	if err != nil {
		c.logger.Errorf("Invalid language %q: %s", payload.ProgrammingLanguage, err)
		c.responder.PublishErrorToResponseQueue(
			queueMessage.Type, queueMessage.MessageID, replyTo, err)
		return
	}

	report, err := c.engine.Run(
		context.Background(),
		grader.Submission{Code: payload.SubmissionCode, Language: lang},
		payload.Tests,
		payload.MaxGrade,
	)
	if err != nil {
		c.responder.PublishErrorToResponseQueue(
			queueMessage.Type, queueMessage.MessageID, replyTo, err)
		return
	}

	c.responder.PublishPayloadToResponseQueue(
		queueMessage.Type, queueMessage.MessageID, replyTo, report)
}

func (c *consumer) handleGenerateMessage(queueMessage messages.QueueMessage, replyTo string) {
	var payload messages.GenerateRequestPayload
	if err := json.Unmarshal(queueMessage.Payload, &payload); err != nil {
		c.logger.Errorf("Failed to unmarshal generate payload: %s", err)
		c.responder.PublishErrorToResponseQueue(
			queueMessage.Type, queueMessage.MessageID, replyTo, err)
		return
	}

	lang, err := languages.ParseLanguageType(payload.ProgrammingLanguage)
	if err != nil {
		c.logger.Errorf("Invalid language %q: %s", payload.ProgrammingLanguage, err)
		c.responder.PublishErrorToResponseQueue(
			queueMessage.Type, queueMessage.MessageID, replyTo, err)
		return
	}

	testSuite := c.synthesizer.Generate(
		context.Background(),
		payload.TaskDescription,
		payload.SolutionCode,
		lang,
		payload.TestCount,
	)

	c.responder.PublishPayloadToResponseQueue(
		queueMessage.Type, queueMessage.MessageID, replyTo, testSuite)
}
