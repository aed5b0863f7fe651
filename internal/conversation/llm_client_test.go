package conversation

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthgpt/clinic-assistant/pkg/logging"
)

type stubConverseAPI struct {
	out     *bedrockruntime.ConverseOutput
	err     error
	lastReq *bedrockruntime.ConverseInput
}

func (s *stubConverseAPI) Converse(_ context.Context, params *bedrockruntime.ConverseInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	s.lastReq = params
	return s.out, s.err
}

func converseTextOutput(text string) *bedrockruntime.ConverseOutput {
	return &bedrockruntime.ConverseOutput{
		Output: &brtypes.ConverseOutputMemberMessage{
			Value: brtypes.Message{
				Role: brtypes.ConversationRoleAssistant,
				Content: []brtypes.ContentBlock{
					&brtypes.ContentBlockMemberText{Value: text},
				},
			},
		},
		StopReason: brtypes.StopReasonEndTurn,
		Usage: &brtypes.TokenUsage{
			InputTokens:  aws.Int32(10),
			OutputTokens: aws.Int32(5),
			TotalTokens:  aws.Int32(15),
		},
	}
}

func TestBedrockClientComplete(t *testing.T) {
	api := &stubConverseAPI{out: converseTextOutput(`{"confirmed":true}`)}
	client := NewBedrockLLMClient(api)

	resp, err := client.Complete(context.Background(), LLMRequest{
		Model:       "anthropic.claude-3-haiku",
		System:      []string{"system prompt"},
		Messages:    []ChatMessage{{Role: ChatRoleUser, Content: "oi"}},
		MaxTokens:   256,
		Temperature: 0,
	})
	require.NoError(t, err)

	assert.Equal(t, `{"confirmed":true}`, resp.Text)
	assert.Equal(t, string(brtypes.StopReasonEndTurn), resp.StopReason)
	assert.Equal(t, int32(15), resp.Usage.TotalTokens)

	require.NotNil(t, api.lastReq)
	assert.Equal(t, "anthropic.claude-3-haiku", aws.ToString(api.lastReq.ModelId))
	require.Len(t, api.lastReq.System, 1)
	require.Len(t, api.lastReq.Messages, 1)
	require.NotNil(t, api.lastReq.InferenceConfig)
	assert.Equal(t, int32(256), aws.ToInt32(api.lastReq.InferenceConfig.MaxTokens))
}

func TestBedrockClientRequiresModel(t *testing.T) {
	client := NewBedrockLLMClient(&stubConverseAPI{})
	_, err := client.Complete(context.Background(), LLMRequest{})
	require.Error(t, err)
}

func TestBedrockClientSystemRoleMessagesBecomeSystemBlocks(t *testing.T) {
	api := &stubConverseAPI{out: converseTextOutput("ok")}
	client := NewBedrockLLMClient(api)

	_, err := client.Complete(context.Background(), LLMRequest{
		Model: "m",
		Messages: []ChatMessage{
			{Role: ChatRoleSystem, Content: "rules"},
			{Role: ChatRoleUser, Content: "oi"},
		},
	})
	require.NoError(t, err)
	assert.Len(t, api.lastReq.System, 1)
	assert.Len(t, api.lastReq.Messages, 1)
}

func TestBedrockClientRejectsUnknownRole(t *testing.T) {
	client := NewBedrockLLMClient(&stubConverseAPI{out: converseTextOutput("ok")})
	_, err := client.Complete(context.Background(), LLMRequest{
		Model:    "m",
		Messages: []ChatMessage{{Role: "tool", Content: "x"}},
	})
	require.Error(t, err)
}

func TestBedrockClientEmptyResponse(t *testing.T) {
	client := NewBedrockLLMClient(&stubConverseAPI{out: &bedrockruntime.ConverseOutput{}})
	_, err := client.Complete(context.Background(), LLMRequest{
		Model:    "m",
		Messages: []ChatMessage{{Role: ChatRoleUser, Content: "oi"}},
	})
	require.Error(t, err)
}

func TestFallbackClientPrimarySucceeds(t *testing.T) {
	primary := &scriptedLLM{text: "primary"}
	fallback := &scriptedLLM{text: "fallback"}
	client := NewFallbackLLMClient(primary, fallback, logging.New("error"))

	resp, err := client.Complete(context.Background(), LLMRequest{Model: "m"})
	require.NoError(t, err)
	assert.Equal(t, "primary", resp.Text)
}

func TestFallbackClientFallsBack(t *testing.T) {
	primary := &scriptedLLM{err: errors.New("throttled")}
	fallback := &scriptedLLM{text: "fallback"}
	client := NewFallbackLLMClient(primary, fallback, logging.New("error"))

	resp, err := client.Complete(context.Background(), LLMRequest{Model: "m"})
	require.NoError(t, err)
	assert.Equal(t, "fallback", resp.Text)
}

func TestFallbackClientNoFallbackPropagatesError(t *testing.T) {
	primary := &scriptedLLM{err: errors.New("throttled")}
	client := NewFallbackLLMClient(primary, nil, logging.New("error"))

	_, err := client.Complete(context.Background(), LLMRequest{Model: "m"})
	require.Error(t, err)
}

func TestFallbackClientBothFail(t *testing.T) {
	primary := &scriptedLLM{err: errors.New("throttled")}
	fallback := &scriptedLLM{err: errors.New("quota exceeded")}
	client := NewFallbackLLMClient(primary, fallback, logging.New("error"))

	_, err := client.Complete(context.Background(), LLMRequest{Model: "m"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota")
}
