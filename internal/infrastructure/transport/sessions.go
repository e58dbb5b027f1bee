package transport

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"

	"browser-operator/internal/application/port/output"
	"browser-operator/internal/domain/entity"
)

// SessionHandler is the orchestrator surface the gateway drives. One
// handler per tab; calls arrive serialized from the tab's read loop.
type SessionHandler interface {
	HandlePageMap(pm *entity.PageMap)
	HandleTranscript(ctx context.Context, transcript string)
	HandleToolResult(ctx context.Context, token, result string, isError bool)
	Close()
}

// HandlerFactory builds a tab's orchestrator around the sink that writes to
// its connection.
type HandlerFactory func(tabID string, sink output.CommandSink) SessionHandler

// session binds one tab's connection, sink and orchestrator together. Its
// lifetime is exactly the connection's lifetime.
type session struct {
	tabID   string
	conn    *websocket.Conn
	writeMu sync.Mutex
	handler SessionHandler
	cancel  context.CancelFunc
}

var _ output.CommandSink = (*session)(nil)

func (s *session) send(t MessageType, payload any) error {
	env, err := NewEnvelope(t, s.tabID, payload)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(env)
}

func (s *session) Speak(text string, priority entity.SpeakPriority) error {
	return s.send(TypeSpeak, SpeakPayload{Text: text, Priority: string(priority)})
}

func (s *session) ExecuteTool(tool entity.ToolName, args string, token string) error {
	return s.send(TypeExecuteTool, ExecuteToolPayload{
		Tool:  tool.String(),
		Args:  json.RawMessage(args),
		Token: token,
	})
}

func (s *session) Highlight(actionID string) error {
	payload := HighlightPayload{}
	if actionID != "" {
		payload.ActionID = &actionID
	}
	return s.send(TypeHighlightAction, payload)
}

func (s *session) Status(status entity.Status, message string) error {
	return s.send(TypeStatusUpdate, StatusPayload{Status: string(status), Message: message})
}

func (s *session) RequestConfirmation(description string) error {
	return s.send(TypeRequestConfirmation, ConfirmationPayload{Description: description})
}

// sessionMap is the only shared mutable state across tabs.
type sessionMap struct {
	mu       sync.RWMutex
	sessions map[string]*session
}

func newSessionMap() *sessionMap {
	return &sessionMap{sessions: make(map[string]*session)}
}

func (m *sessionMap) get(tabID string) (*session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[tabID]
	return s, ok
}

func (m *sessionMap) put(s *session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.tabID] = s
}

func (m *sessionMap) remove(tabID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, tabID)
}

func (m *sessionMap) count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
