package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"

	"browser-operator/internal/domain/entity"
)

// CommandHandler receives the orchestrator's outbound commands on the page
// side.
type CommandHandler interface {
	OnSpeak(p SpeakPayload)
	OnExecuteTool(p ExecuteToolPayload)
	OnHighlight(actionID string) // empty clears
	OnStatus(p StatusPayload)
	OnConfirmation(description string)
}

// Client is the page side of the protocol: it registers the tab, ships
// page maps and transcripts, and feeds received commands to a handler.
type Client struct {
	tabID   string
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func Dial(ctx context.Context, wsURL, tabID string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial gateway: %w", err)
	}
	c := &Client{tabID: tabID, conn: conn}
	if err := c.send(TypeRegisterTab, struct{}{}); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("register tab: %w", err)
	}
	return c, nil
}

func (c *Client) send(t MessageType, payload any) error {
	env, err := NewEnvelope(t, c.tabID, payload)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(env)
}

func (c *Client) SendPageMap(pm *entity.PageMap) error {
	return c.send(TypePageMapUpdate, pm)
}

func (c *Client) SendTranscript(text string) error {
	return c.send(TypeUserTranscript, TranscriptPayload{Transcript: text})
}

func (c *Client) SendToolResult(token, result string, isError bool) error {
	return c.send(TypeToolResult, ToolResultPayload{Token: token, Result: result, IsError: isError})
}

// Run reads commands until the connection closes or ctx is done.
func (c *Client) Run(ctx context.Context, h CommandHandler) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = c.conn.Close()
		case <-done:
		}
	}()

	for {
		var env Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read command: %w", err)
		}
		c.dispatch(env, h)
	}
}

func (c *Client) dispatch(env Envelope, h CommandHandler) {
	switch env.Type {
	case TypeSpeak:
		var p SpeakPayload
		if json.Unmarshal(env.Data, &p) == nil {
			h.OnSpeak(p)
		}
	case TypeExecuteTool:
		var p ExecuteToolPayload
		if json.Unmarshal(env.Data, &p) == nil {
			h.OnExecuteTool(p)
		}
	case TypeHighlightAction:
		var p HighlightPayload
		if json.Unmarshal(env.Data, &p) == nil {
			id := ""
			if p.ActionID != nil {
				id = *p.ActionID
			}
			h.OnHighlight(id)
		}
	case TypeStatusUpdate:
		var p StatusPayload
		if json.Unmarshal(env.Data, &p) == nil {
			h.OnStatus(p)
		}
	case TypeRequestConfirmation:
		var p ConfirmationPayload
		if json.Unmarshal(env.Data, &p) == nil {
			h.OnConfirmation(p.Description)
		}
	}
}

func (c *Client) Close() error {
	return c.conn.Close()
}
