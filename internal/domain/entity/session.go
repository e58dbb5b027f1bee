package entity

// Status is the externally visible state of a tab session. Every turn ends
// back at idle or awaiting_confirmation; error is terminal per turn only.
type Status string

const (
	StatusIdle          Status = "idle"
	StatusListening     Status = "listening"
	StatusTranscribing  Status = "transcribing"
	StatusThinking      Status = "thinking"
	StatusExecuting     Status = "executing"
	StatusAwaitConfirm  Status = "awaiting_confirmation"
	StatusSpeaking      Status = "speaking"
	StatusError         Status = "error"
)

// PendingConfirmation holds a risk-flagged tool call intercepted before
// execution. Only an explicit confirm utterance releases it.
type PendingConfirmation struct {
	Tool        ToolName
	Arguments   string
	Token       string
	Description string
}

type SpeakPriority string

const (
	SpeakNormal SpeakPriority = "normal"
	SpeakHigh   SpeakPriority = "high"
)
