package conversation

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/healthgpt/clinic-assistant/pkg/logging"
)

type queueClient interface {
	Send(ctx context.Context, body string) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]queueMessage, error)
	Delete(ctx context.Context, receiptHandle string) error
}

type queueMessage struct {
	ID            string
	Body          string
	ReceiptHandle string
}

type queuePayload struct {
	ID              string `json:"id"`
	CorrespondentID string `json:"correspondent_id"`
	Text            string `json:"text"`
}

// Publisher enqueues inbound messages for asynchronous dialog processing, so
// webhook acks never wait on the state machine.
type Publisher struct {
	queue  queueClient
	logger *logging.Logger
}

// NewPublisher wraps a queue client.
func NewPublisher(queue queueClient, logger *logging.Logger) *Publisher {
	if queue == nil {
		panic("conversation: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Publisher{queue: queue, logger: logger}
}

// EnqueueMessage queues one inbound message for the worker pool.
func (p *Publisher) EnqueueMessage(ctx context.Context, correspondentID, text string) (string, error) {
	payload := queuePayload{
		ID:              uuid.NewString(),
		CorrespondentID: correspondentID,
		Text:            text,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("conversation: failed to encode payload: %w", err)
	}
	if err := p.queue.Send(ctx, string(body)); err != nil {
		return "", err
	}

	p.logger.Debug("dialog job enqueued", "job_id", payload.ID, "correspondent_id", correspondentID)
	return payload.ID, nil
}
