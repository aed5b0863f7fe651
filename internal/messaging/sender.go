// Package messaging connects the dialog to the WhatsApp Cloud API: outbound
// text delivery and the inbound webhook.
package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/healthgpt/clinic-assistant/internal/observability/metrics"
	"github.com/healthgpt/clinic-assistant/pkg/logging"
)

// Sender delivers a text message to a correspondent. Retries are the caller's
// concern; implementations report success or failure for one attempt.
type Sender interface {
	SendText(ctx context.Context, to, body string) error
}

const defaultGraphBaseURL = "https://graph.facebook.com/v19.0"

// WhatsAppSender sends messages through the WhatsApp Cloud API.
type WhatsAppSender struct {
	httpClient    *http.Client
	baseURL       string
	token         string
	phoneNumberID string
	metrics       *metrics.DialogMetrics
	logger        *logging.Logger
}

// WhatsAppConfig holds Cloud API settings.
type WhatsAppConfig struct {
	Token         string
	PhoneNumberID string
	BaseURL       string
}

// NewWhatsAppSender creates a Cloud API sender. m may be nil.
func NewWhatsAppSender(cfg WhatsAppConfig, m *metrics.DialogMetrics, logger *logging.Logger) (*WhatsAppSender, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("messaging: whatsapp token is required")
	}
	if strings.TrimSpace(cfg.PhoneNumberID) == "" {
		return nil, errors.New("messaging: whatsapp phone number id is required")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaultGraphBaseURL
	}
	if logger == nil {
		logger = logging.Default()
	}

	return &WhatsAppSender{
		httpClient:    &http.Client{Timeout: 10 * time.Second},
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		token:         cfg.Token,
		phoneNumberID: cfg.PhoneNumberID,
		metrics:       m,
		logger:        logger,
	}, nil
}

type whatsAppTextPayload struct {
	MessagingProduct string `json:"messaging_product"`
	To               string `json:"to"`
	Type             string `json:"type"`
	Text             struct {
		Body string `json:"body"`
	} `json:"text"`
}

// SendText posts one text message to the Cloud API.
func (s *WhatsAppSender) SendText(ctx context.Context, to, body string) error {
	to = strings.TrimSpace(to)
	if to == "" {
		return errors.New("messaging: recipient required")
	}
	if strings.TrimSpace(body) == "" {
		return errors.New("messaging: message body required")
	}

	payload := whatsAppTextPayload{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "text",
	}
	payload.Text.Body = body

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("messaging: encode whatsapp payload: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", s.baseURL, s.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("messaging: build whatsapp request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.metrics.ObserveOutbound("error")
		return fmt.Errorf("messaging: whatsapp send failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		s.logger.Error("whatsapp api returned error status",
			"status", resp.StatusCode, "body", string(respBody), "to", to)
		s.metrics.ObserveOutbound("error")
		return fmt.Errorf("messaging: whatsapp api returned status %d", resp.StatusCode)
	}

	s.metrics.ObserveOutbound("sent")
	s.logger.Info("whatsapp message sent", "to", to)
	return nil
}

// LogSender logs outbound messages instead of sending them, for development
// and tests.
type LogSender struct {
	logger *logging.Logger
}

// NewLogSender creates a sender that only logs.
func NewLogSender(logger *logging.Logger) *LogSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) SendText(ctx context.Context, to, body string) error {
	s.logger.Info("log sender: would send message", "to", to, "body", body)
	return nil
}

var _ Sender = (*WhatsAppSender)(nil)
var _ Sender = (*LogSender)(nil)
