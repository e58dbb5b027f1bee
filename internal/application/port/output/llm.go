package output

import (
	"context"

	"browser-operator/internal/domain/entity"
)

type ChatRequest struct {
	Messages    []entity.Message
	Tools       []entity.ToolDefinition
	Temperature float32
}

type ChatResponse struct {
	Message entity.Message
}

// LLMPort is the decision-service boundary: a message list plus a fixed tool
// schema in, free text or exactly one tool invocation out.
type LLMPort interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// TranscriberPort turns a recorded audio clip into a transcript string.
type TranscriberPort interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
}
