package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/healthgpt/clinic-assistant/pkg/logging"
)

// Signal is the best-effort output of intent extraction. The zero value means
// nothing was recognized, which is a valid result.
type Signal struct {
	MentionedDate string `json:"mentioned_date,omitempty"`
	MentionedTime string `json:"mentioned_time,omitempty"`
	Confirmed     bool   `json:"confirmed,omitempty"`
	InsuranceName string `json:"insurance_name,omitempty"`
	WantsPrivate  bool   `json:"wants_private,omitempty"`
}

// IntentExtractor maps free text to dialog signals.
type IntentExtractor interface {
	ExtractIntent(ctx context.Context, text string, sess *Session) (Signal, error)
}

const intentSystemPrompt = `Você analisa mensagens de pacientes de uma clínica e extrai sinais de intenção.
Responda SOMENTE com um objeto JSON, sem texto adicional, com as chaves:
  "mentioned_date": data mencionada no formato DD/MM ou vazio,
  "mentioned_time": horário mencionado no formato HH:MM ou vazio,
  "confirmed": true se a mensagem confirma ou concorda,
  "insurance_name": nome do convênio mencionado ou vazio,
  "wants_private": true se o paciente quer atendimento particular.
Se nada for reconhecido, responda {}.`

// LLMIntentExtractor extracts signals by prompting an LLM for strict JSON.
// Garbage output degrades to an empty Signal; transport errors propagate so
// the dialog can apply its no-advancement fallback.
type LLMIntentExtractor struct {
	llm     LLMClient
	model   string
	timeout time.Duration
	logger  *logging.Logger
}

// NewLLMIntentExtractor wires an extractor over the given client. The model id
// is passed through to the client; timeout bounds every extraction call.
func NewLLMIntentExtractor(llm LLMClient, model string, timeout time.Duration, logger *logging.Logger) *LLMIntentExtractor {
	if llm == nil {
		panic("conversation: llm client cannot be nil")
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &LLMIntentExtractor{
		llm:     llm,
		model:   model,
		timeout: timeout,
		logger:  logger,
	}
}

func (e *LLMIntentExtractor) ExtractIntent(ctx context.Context, text string, sess *Session) (Signal, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	user := fmt.Sprintf("Estado atual da conversa: %s\nMensagem do paciente: %s", sess.State, text)
	resp, err := e.llm.Complete(ctx, LLMRequest{
		Model:       e.model,
		System:      []string{intentSystemPrompt},
		Messages:    []ChatMessage{{Role: ChatRoleUser, Content: user}},
		MaxTokens:   256,
		Temperature: 0,
	})
	if err != nil {
		return Signal{}, fmt.Errorf("conversation: intent extraction: %w", err)
	}

	sig, ok := parseSignal(resp.Text)
	if !ok {
		e.logger.Warn("intent extraction returned unparseable output", "output", resp.Text)
		return Signal{}, nil
	}
	return sig, nil
}

// parseSignal decodes the model output, tolerating markdown code fences.
func parseSignal(text string) (Signal, bool) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
		text = strings.TrimSpace(text)
	}
	if start := strings.Index(text, "{"); start >= 0 {
		if end := strings.LastIndex(text, "}"); end > start {
			text = text[start : end+1]
		}
	}

	var sig Signal
	if err := json.Unmarshal([]byte(text), &sig); err != nil {
		return Signal{}, false
	}
	return sig, true
}

var _ IntentExtractor = (*LLMIntentExtractor)(nil)
