package messaging

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthgpt/clinic-assistant/pkg/logging"
)

type recordingPublisher struct {
	enqueued []InboundMessage
	err      error
}

func (p *recordingPublisher) EnqueueMessage(_ context.Context, correspondentID, text string) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.enqueued = append(p.enqueued, InboundMessage{CorrespondentID: correspondentID, Text: text})
	return "job-1", nil
}

const sampleEnvelope = `{
  "object": "whatsapp_business_account",
  "entry": [{
    "changes": [{
      "value": {
        "messages": [
          {"from": "5511999990000", "type": "text", "text": {"body": "quero agendar"}},
          {"from": "5511999990000", "type": "image"},
          {"from": "", "type": "text", "text": {"body": "sem remetente"}}
        ]
      }
    }]
  }]
}`

func TestWebhookVerifySucceeds(t *testing.T) {
	h := NewWebhookHandler("secret-token", &recordingPublisher{}, nil, logging.New("error"))

	req := httptest.NewRequest(http.MethodGet,
		"/webhooks/whatsapp/?hub.mode=subscribe&hub.verify_token=secret-token&hub.challenge=12345", nil)
	rec := httptest.NewRecorder()
	h.Verify(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "12345", rec.Body.String())
}

func TestWebhookVerifyRejects(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"wrong token", "hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=1"},
		{"wrong mode", "hub.mode=unsubscribe&hub.verify_token=secret-token&hub.challenge=1"},
		{"missing token", "hub.mode=subscribe&hub.challenge=1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewWebhookHandler("secret-token", &recordingPublisher{}, nil, logging.New("error"))

			req := httptest.NewRequest(http.MethodGet, "/webhooks/whatsapp/?"+tt.query, nil)
			rec := httptest.NewRecorder()
			h.Verify(rec, req)

			assert.Equal(t, http.StatusForbidden, rec.Code)
		})
	}
}

func TestWebhookReceiveEnqueuesTextMessages(t *testing.T) {
	publisher := &recordingPublisher{}
	h := NewWebhookHandler("secret-token", publisher, nil, logging.New("error"))

	req := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp/", strings.NewReader(sampleEnvelope))
	rec := httptest.NewRecorder()
	h.Receive(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, publisher.enqueued, 1, "only non-empty text messages are enqueued")
	assert.Equal(t, "5511999990000", publisher.enqueued[0].CorrespondentID)
	assert.Equal(t, "quero agendar", publisher.enqueued[0].Text)
}

func TestWebhookReceiveMalformedStillAcks(t *testing.T) {
	publisher := &recordingPublisher{}
	h := NewWebhookHandler("secret-token", publisher, nil, logging.New("error"))

	req := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp/", strings.NewReader("{broken"))
	rec := httptest.NewRecorder()
	h.Receive(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, publisher.enqueued)
}

func TestWebhookReceiveEnqueueFailureStillAcks(t *testing.T) {
	publisher := &recordingPublisher{err: errors.New("queue down")}
	h := NewWebhookHandler("secret-token", publisher, nil, logging.New("error"))

	req := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp/", strings.NewReader(sampleEnvelope))
	rec := httptest.NewRecorder()
	h.Receive(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWebhookHealthCheck(t *testing.T) {
	h := NewWebhookHandler("secret-token", &recordingPublisher{}, nil, logging.New("error"))

	rec := httptest.NewRecorder()
	h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestExtractMessagesEmptyEnvelope(t *testing.T) {
	assert.Empty(t, extractMessages(whatsAppEnvelope{}))
}
