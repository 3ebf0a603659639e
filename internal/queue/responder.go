package queue

import (
	"encoding/json"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/code-grade/worker/internal/logger"
	"github.com/code-grade/worker/pkg/messages"
)

// Channel is the slice of the AMQP channel API the responder publishes
// through, kept narrow so tests can mock it.
type Channel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type Responder interface {
	PublishPayloadToResponseQueue(messageType, messageID, responseQueue string, payload any)
	PublishErrorToResponseQueue(messageType, messageID, responseQueue string, err error)
}

type responder struct {
	channel Channel
	logger  *zap.SugaredLogger
}

func NewResponder(channel Channel) Responder {
	return &responder{
		channel: channel,
		logger:  logger.NewNamedLogger("responder"),
	}
}

func (r *responder) PublishPayloadToResponseQueue(
	messageType, messageID, responseQueue string, payload any,
) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		r.logger.Errorf("Failed to marshal response payload: %s", err)
		r.PublishErrorToResponseQueue(messageType, messageID, responseQueue, err)
		return
	}

	r.publish(responseQueue, messages.ResponseQueueMessage{
		Type:      messageType,
		MessageID: messageID,
		Ok:        true,
		Payload:   payloadJSON,
	})
}

func (r *responder) PublishErrorToResponseQueue(
	messageType, messageID, responseQueue string, err error,
) {
	payloadJSON, marshalErr := json.Marshal(map[string]string{"error": err.Error()})
	if marshalErr != nil {
		r.logger.Errorf("Failed to marshal error payload: %s", marshalErr)
		return
	}

	r.publish(responseQueue, messages.ResponseQueueMessage{
		Type:      messageType,
		MessageID: messageID,
		Ok:        false,
		Payload:   payloadJSON,
	})
}

func (r *responder) publish(responseQueue string, response messages.ResponseQueueMessage) {
	if responseQueue == "" {
		r.logger.Warnf("No response queue for message %s, dropping response", response.MessageID)
		return
	}

	body, err := json.Marshal(response)
	if err != nil {
		r.logger.Errorf("Failed to marshal response message: %s", err)
		return
	}

	err = r.channel.Publish("", responseQueue, false, false, amqp.Publishing{
		ContentType:   "application/json",
		CorrelationId: response.MessageID,
		Body:          body,
	})
	if err != nil {
		r.logger.Errorf("Failed to publish response for message %s: %s", response.MessageID, err)
	}
}
