// Package transport carries the bidirectional protocol between the page
// side and the session orchestrator: a persistent websocket per tab with
// JSON envelopes, plus a request/response path for audio transcription.
package transport

import "encoding/json"

type MessageType string

const (
	// inbound (page side → orchestrator)
	TypeRegisterTab    MessageType = "register_tab"
	TypePageMapUpdate  MessageType = "page_map_update"
	TypeUserTranscript MessageType = "user_transcript"
	TypeToolResult     MessageType = "tool_result"

	// outbound (orchestrator → page side)
	TypeSpeak               MessageType = "speak"
	TypeExecuteTool         MessageType = "execute_tool"
	TypeHighlightAction     MessageType = "highlight_action"
	TypeStatusUpdate        MessageType = "status_update"
	TypeRequestConfirmation MessageType = "request_confirmation"
)

// Envelope is the wire frame: every message carries its type and the tab it
// belongs to.
type Envelope struct {
	Type  MessageType     `json:"type"`
	TabID string          `json:"tabId"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func NewEnvelope(t MessageType, tabID string, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: t, TabID: tabID, Data: data}, nil
}

type TranscriptPayload struct {
	Transcript string `json:"transcript"`
}

type ToolResultPayload struct {
	Token   string `json:"token"`
	Result  string `json:"result"`
	IsError bool   `json:"isError,omitempty"`
}

type SpeakPayload struct {
	Text     string `json:"text"`
	Priority string `json:"priority"`
}

type ExecuteToolPayload struct {
	Tool  string          `json:"tool"`
	Args  json.RawMessage `json:"args"`
	Token string          `json:"token"`
}

// HighlightPayload clears the highlight when ActionID is null.
type HighlightPayload struct {
	ActionID *string `json:"actionId"`
}

type StatusPayload struct {
	Status      string `json:"status"`
	Plan        string `json:"plan,omitempty"`
	CurrentStep string `json:"currentStep,omitempty"`
	Message     string `json:"message,omitempty"`
}

type ConfirmationPayload struct {
	Description string `json:"description"`
}
