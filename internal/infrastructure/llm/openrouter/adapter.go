// Package openrouter adapts an OpenAI-compatible endpoint as the decision
// service and the audio transcriber.
package openrouter

import (
	"bytes"
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"browser-operator/internal/application/port/output"
	"browser-operator/internal/domain/entity"
)

var (
	_ output.LLMPort         = (*Adapter)(nil)
	_ output.TranscriberPort = (*Adapter)(nil)
)

type Adapter struct {
	client          *openai.Client
	model           string
	transcribeModel string
	logger          output.LoggerPort
}

type Config struct {
	APIKey          string
	Model           string
	TranscribeModel string
	BaseURL         string
	Logger          output.LoggerPort
}

func DefaultConfig(apiKey, model string) Config {
	return Config{
		APIKey:          apiKey,
		Model:           model,
		TranscribeModel: "whisper-1",
		BaseURL:         "https://openrouter.ai/api/v1",
	}
}

func NewAdapter(cfg Config) *Adapter {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &Adapter{
		client:          openai.NewClientWithConfig(clientCfg),
		model:           cfg.Model,
		transcribeModel: cfg.TranscribeModel,
		logger:          cfg.Logger,
	}
}

// Chat sends the message list and tool schema and returns the reply. The
// caller relies on the service producing at most one tool invocation per
// turn; extra invocations are passed through for the caller to discard.
func (a *Adapter) Chat(ctx context.Context, req output.ChatRequest) (*output.ChatResponse, error) {
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       a.model,
		Messages:    convertMessages(req.Messages),
		Tools:       convertTools(req.Tools),
		ToolChoice:  "auto",
		Temperature: req.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	msg := convertResponseMessage(resp.Choices[0].Message)
	if a.logger != nil {
		a.logger.Debug("decision service replied",
			"toolCalls", len(msg.ToolCalls), "contentLen", len(msg.Content))
	}
	return &output.ChatResponse{Message: msg}, nil
}

// Transcribe turns a recorded clip into a transcript string.
func (a *Adapter) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	if len(audio) == 0 {
		return "", fmt.Errorf("empty audio clip")
	}
	resp, err := a.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    a.transcribeModel,
		FilePath: filename,
		Reader:   bytes.NewReader(audio),
	})
	if err != nil {
		return "", fmt.Errorf("transcription failed: %w", err)
	}
	return resp.Text, nil
}

func convertMessages(messages []entity.Message) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		oaiMsg := openai.ChatCompletionMessage{
			Role:       string(msg.Role),
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
			Name:       msg.Name,
		}
		for _, tc := range msg.ToolCalls {
			oaiMsg.ToolCalls = append(oaiMsg.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		result = append(result, oaiMsg)
	}
	return result
}

func convertTools(tools []entity.ToolDefinition) []openai.Tool {
	result := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		result = append(result, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return result
}

func convertResponseMessage(msg openai.ChatCompletionMessage) entity.Message {
	result := entity.Message{
		Role:    entity.MessageRole(msg.Role),
		Content: msg.Content,
	}
	for _, tc := range msg.ToolCalls {
		result.ToolCalls = append(result.ToolCalls, entity.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return result
}
