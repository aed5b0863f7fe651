package messaging

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/healthgpt/clinic-assistant/internal/observability/metrics"
	"github.com/healthgpt/clinic-assistant/pkg/logging"
)

var webhookTracer = otel.Tracer("healthgpt.internal.messaging.whatsapp")

// InboundMessage is the normalized shape the dialog consumes, extracted from
// the provider envelope.
type InboundMessage struct {
	CorrespondentID string
	Text            string
}

type dialogPublisher interface {
	EnqueueMessage(ctx context.Context, correspondentID, text string) (string, error)
}

// WebhookHandler terminates the WhatsApp Cloud API webhook: the GET
// subscription handshake and inbound POST notifications. Processing is
// enqueued; the webhook always acks immediately.
type WebhookHandler struct {
	verifyToken string
	publisher   dialogPublisher
	metrics     *metrics.DialogMetrics
	logger      *logging.Logger
}

// NewWebhookHandler creates a webhook handler. metrics may be nil.
func NewWebhookHandler(verifyToken string, publisher dialogPublisher, m *metrics.DialogMetrics, logger *logging.Logger) *WebhookHandler {
	if publisher == nil {
		panic("messaging: publisher cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &WebhookHandler{
		verifyToken: verifyToken,
		publisher:   publisher,
		metrics:     m,
		logger:      logger,
	}
}

// Verify handles GET verification: when hub.mode is "subscribe" and the token
// matches, the challenge is echoed back verbatim.
func (h *WebhookHandler) Verify(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	mode := query.Get("hub.mode")
	token := query.Get("hub.verify_token")
	challenge := query.Get("hub.challenge")

	if mode == "subscribe" && token != "" && token == h.verifyToken {
		h.logger.Info("webhook verification succeeded")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(challenge))
		return
	}

	h.logger.Warn("webhook verification failed", "mode", mode)
	http.Error(w, "Forbidden", http.StatusForbidden)
}

// whatsAppEnvelope mirrors the relevant subset of the Cloud API notification.
type whatsAppEnvelope struct {
	Object string `json:"object"`
	Entry  []struct {
		Changes []struct {
			Value struct {
				Messages []struct {
					From string `json:"from"`
					Type string `json:"type"`
					Text struct {
						Body string `json:"body"`
					} `json:"text"`
				} `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// Receive handles POST notifications. Every request is acked 200 regardless of
// content: the provider retries on non-2xx, and retrying a malformed payload
// is pointless.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, span := webhookTracer.Start(r.Context(), "messaging.whatsapp.webhook")
	defer span.End()
	defer func() {
		h.metrics.ObserveWebhookLatency("message", time.Since(start).Seconds())
	}()

	var envelope whatsAppEnvelope
	if err := json.NewDecoder(r.Body).Decode(&envelope); err != nil {
		h.logger.Warn("failed to decode webhook payload", "error", err)
		h.metrics.ObserveInbound("message", "malformed")
		span.RecordError(err)
		w.WriteHeader(http.StatusOK)
		return
	}

	inbound := extractMessages(envelope)
	span.SetAttributes(attribute.Int("messages", len(inbound)))

	for _, msg := range inbound {
		jobID, err := h.publisher.EnqueueMessage(ctx, msg.CorrespondentID, msg.Text)
		if err != nil {
			h.logger.Error("failed to enqueue dialog job",
				"error", err, "correspondent_id", msg.CorrespondentID)
			h.metrics.ObserveInbound("message", "enqueue_failed")
			span.RecordError(err)
			continue
		}
		h.logger.Debug("inbound message enqueued",
			"job_id", jobID, "correspondent_id", msg.CorrespondentID)
		h.metrics.ObserveInbound("message", "accepted")
	}
	if len(inbound) == 0 {
		h.metrics.ObserveInbound("message", "ignored")
	}

	w.WriteHeader(http.StatusOK)
}

// HealthCheck responds 200 for load balancer probes.
func (h *WebhookHandler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func extractMessages(envelope whatsAppEnvelope) []InboundMessage {
	var out []InboundMessage
	for _, entry := range envelope.Entry {
		for _, change := range entry.Changes {
			for _, msg := range change.Value.Messages {
				if msg.Type != "text" {
					continue
				}
				from := strings.TrimSpace(msg.From)
				body := strings.TrimSpace(msg.Text.Body)
				if from == "" || body == "" {
					continue
				}
				out = append(out, InboundMessage{CorrespondentID: from, Text: body})
			}
		}
	}
	return out
}
