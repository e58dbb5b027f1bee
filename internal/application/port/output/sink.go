package output

import "browser-operator/internal/domain/entity"

// CommandSink carries orchestrator output back to the page side: speech,
// tool executions, highlights and status updates. The transport gateway
// implements it over the tab's persistent connection.
type CommandSink interface {
	Speak(text string, priority entity.SpeakPriority) error
	ExecuteTool(tool entity.ToolName, args string, token string) error
	Highlight(actionID string) error
	Status(status entity.Status, message string) error
	RequestConfirmation(description string) error
}
