package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"browser-operator/internal/domain/entity"
)

func TestSanitizeKeepsAnsweredPairs(t *testing.T) {
	history := []entity.Message{
		{Role: entity.RoleUser, Content: "click the link"},
		{Role: entity.RoleAssistant, ToolCalls: []entity.ToolCall{{ID: "t1", Name: "click", Arguments: "{}"}}},
		{Role: entity.RoleTool, ToolCallID: "t1", Content: "clicked"},
	}

	out := Sanitize(history)

	require.Len(t, out, 3)
	assert.Len(t, out[1].ToolCalls, 1)
	assert.Equal(t, "t1", out[2].ToolCallID)
}

func TestSanitizeRewritesOrphanInvocationToText(t *testing.T) {
	history := []entity.Message{
		{Role: entity.RoleUser, Content: "place my order"},
		{Role: entity.RoleAssistant, ToolCalls: []entity.ToolCall{{ID: "t1", Name: "click", Arguments: "{}"}}},
		{Role: entity.RoleUser, Content: "no, cancel that"},
	}

	out := Sanitize(history)

	require.Len(t, out, 3)
	assert.Empty(t, out[1].ToolCalls, "unanswered invocation must be stripped")
	assert.NotEmpty(t, out[1].Content, "the message itself must survive as plain text")
}

func TestSanitizeKeepsOrphanAssistantContent(t *testing.T) {
	history := []entity.Message{
		{Role: entity.RoleAssistant, Content: "I'll click it now.",
			ToolCalls: []entity.ToolCall{{ID: "t1", Name: "click", Arguments: "{}"}}},
	}

	out := Sanitize(history)

	require.Len(t, out, 1)
	assert.Equal(t, "I'll click it now.", out[0].Content)
	assert.Empty(t, out[0].ToolCalls)
}

func TestSanitizeDropsUnmatchedToolResult(t *testing.T) {
	history := []entity.Message{
		{Role: entity.RoleUser, Content: "hello"},
		{Role: entity.RoleTool, ToolCallID: "ghost", Content: "stale result"},
	}

	out := Sanitize(history)

	require.Len(t, out, 1)
	assert.Equal(t, entity.RoleUser, out[0].Role)
}

func TestSanitizeMixedHistory(t *testing.T) {
	history := []entity.Message{
		{Role: entity.RoleUser, Content: "fill the form"},
		{Role: entity.RoleAssistant, ToolCalls: []entity.ToolCall{{ID: "a", Name: "type_text", Arguments: "{}"}}},
		{Role: entity.RoleTool, ToolCallID: "a", Content: "typed"},
		{Role: entity.RoleAssistant, ToolCalls: []entity.ToolCall{{ID: "b", Name: "click", Arguments: "{}"}}},
		{Role: entity.RoleUser, Content: "stop"},
		{Role: entity.RoleTool, ToolCallID: "c", Content: "result from nowhere"},
	}

	out := Sanitize(history)

	require.Len(t, out, 5)
	assert.Len(t, out[1].ToolCalls, 1, "answered pair survives")
	assert.Empty(t, out[3].ToolCalls, "cancelled call stripped")
	for _, m := range out {
		if m.Role == entity.RoleTool {
			assert.Equal(t, "a", m.ToolCallID)
		}
	}
}

func TestSanitizeIdempotent(t *testing.T) {
	history := []entity.Message{
		{Role: entity.RoleUser, Content: "go"},
		{Role: entity.RoleAssistant, ToolCalls: []entity.ToolCall{{ID: "x", Name: "click", Arguments: "{}"}}},
	}

	once := Sanitize(history)
	twice := Sanitize(once)

	assert.Equal(t, once, twice)
}
