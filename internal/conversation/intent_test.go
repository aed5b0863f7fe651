package conversation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthgpt/clinic-assistant/pkg/logging"
)

type scriptedLLM struct {
	text    string
	err     error
	lastReq LLMRequest
}

func (s *scriptedLLM) Complete(_ context.Context, req LLMRequest) (LLMResponse, error) {
	s.lastReq = req
	if s.err != nil {
		return LLMResponse{}, s.err
	}
	return LLMResponse{Text: s.text}, nil
}

func TestParseSignal(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Signal
		ok   bool
	}{
		{
			name: "plain json",
			text: `{"mentioned_date":"07/01","wants_private":true}`,
			want: Signal{MentionedDate: "07/01", WantsPrivate: true},
			ok:   true,
		},
		{
			name: "json code fence",
			text: "```json\n{\"insurance_name\":\"Unimed\"}\n```",
			want: Signal{InsuranceName: "Unimed"},
			ok:   true,
		},
		{
			name: "bare code fence",
			text: "```\n{\"confirmed\":true}\n```",
			want: Signal{Confirmed: true},
			ok:   true,
		},
		{
			name: "chatter around the object",
			text: `Claro! Aqui está: {"mentioned_time":"14:00"} Espero ter ajudado.`,
			want: Signal{MentionedTime: "14:00"},
			ok:   true,
		},
		{
			name: "empty object",
			text: "{}",
			want: Signal{},
			ok:   true,
		},
		{
			name: "garbage",
			text: "não entendi a pergunta",
			ok:   false,
		},
		{
			name: "truncated json",
			text: `{"mentioned_date":"07/01"`,
			ok:   false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseSignal(tt.text)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLLMIntentExtractorExtract(t *testing.T) {
	llm := &scriptedLLM{text: `{"insurance_name":"Amil","confirmed":true}`}
	extractor := NewLLMIntentExtractor(llm, "test-model", 0, logging.New("error"))

	sig, err := extractor.ExtractIntent(context.Background(), "tenho Amil sim", NewSession("p1"))
	require.NoError(t, err)
	assert.Equal(t, Signal{InsuranceName: "Amil", Confirmed: true}, sig)

	assert.Equal(t, "test-model", llm.lastReq.Model)
	require.Len(t, llm.lastReq.Messages, 1)
	assert.Contains(t, llm.lastReq.Messages[0].Content, "tenho Amil sim")
	assert.Contains(t, llm.lastReq.Messages[0].Content, string(StateNew))
}

func TestLLMIntentExtractorGarbageDegradesToEmptySignal(t *testing.T) {
	llm := &scriptedLLM{text: "desculpe, não sei responder em JSON"}
	extractor := NewLLMIntentExtractor(llm, "test-model", 0, logging.New("error"))

	sig, err := extractor.ExtractIntent(context.Background(), "oi", NewSession("p1"))
	require.NoError(t, err)
	assert.Equal(t, Signal{}, sig)
}

func TestLLMIntentExtractorPropagatesTransportError(t *testing.T) {
	llm := &scriptedLLM{err: errors.New("throttled")}
	extractor := NewLLMIntentExtractor(llm, "test-model", 0, logging.New("error"))

	_, err := extractor.ExtractIntent(context.Background(), "oi", NewSession("p1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "intent extraction")
}
