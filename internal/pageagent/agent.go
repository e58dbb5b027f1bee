// Package pageagent is the page-side counterpart of the orchestrator: it
// pushes page maps upstream, executes tool commands against the live page,
// and reports results under the command's pairing token.
package pageagent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"browser-operator/internal/application/port/output"
	"browser-operator/internal/domain/entity"
	"browser-operator/internal/infrastructure/browser/rodop"
	"browser-operator/internal/infrastructure/transport"
)

// Speaker voices orchestrator output locally. The reference driver logs it;
// a real deployment plugs in TTS.
type Speaker interface {
	Say(text string, highPriority bool)
}

type logSpeaker struct{ log output.LoggerPort }

func (s logSpeaker) Say(text string, highPriority bool) {
	s.log.Info("speak", "text", text, "high", highPriority)
}

type Agent struct {
	browser *rodop.Browser
	client  *transport.Client
	speaker Speaker
	log     output.LoggerPort

	Switch *SwitchScanner
}

func New(browser *rodop.Browser, client *transport.Client, speaker Speaker, log output.LoggerPort) *Agent {
	a := &Agent{browser: browser, client: client, speaker: speaker, log: log}
	if a.speaker == nil {
		a.speaker = logSpeaker{log: log}
	}
	a.Switch = NewSwitchScanner(
		func(ctx context.Context, actionID string) error { return browser.Exec.Click(ctx, actionID) },
		func(text string) { a.speaker.Say(text, false) },
		func(ctx context.Context) ([]entity.Action, error) {
			pm, err := browser.Extract.Extract(ctx)
			if err != nil {
				return nil, err
			}
			return pm.Actions, nil
		},
	)
	return a
}

// Run pushes the initial page map and then serves commands until ctx ends.
func (a *Agent) Run(ctx context.Context) error {
	if err := a.PushPageMap(ctx); err != nil {
		a.log.Warn("initial page map failed", "error", err)
	}
	return a.client.Run(ctx, &commandAdapter{agent: a, ctx: ctx})
}

func (a *Agent) PushPageMap(ctx context.Context) error {
	pm, err := a.browser.Extract.Extract(ctx)
	if err != nil {
		return err
	}
	return a.client.SendPageMap(pm)
}

// commandAdapter binds the transport callbacks to a long-lived context.
type commandAdapter struct {
	agent *Agent
	ctx   context.Context
}

func (c *commandAdapter) OnSpeak(p transport.SpeakPayload) {
	c.agent.speaker.Say(p.Text, p.Priority == string(entity.SpeakHigh))
}

func (c *commandAdapter) OnExecuteTool(p transport.ExecuteToolPayload) {
	c.agent.executeTool(c.ctx, p)
}

func (c *commandAdapter) OnHighlight(actionID string) {
	if err := c.agent.browser.Exec.Highlight(c.ctx, actionID); err != nil {
		c.agent.log.Warn("highlight failed", "actionId", actionID, "error", err)
	}
}

func (c *commandAdapter) OnStatus(p transport.StatusPayload) {
	c.agent.log.Debug("status", "status", p.Status, "message", p.Message)
}

func (c *commandAdapter) OnConfirmation(description string) {
	c.agent.speaker.Say(description, true)
}

// toolArgs covers every tool's argument shape; tools read the fields they use.
type toolArgs struct {
	ActionID   string `json:"actionId"`
	FieldID    string `json:"fieldId"`
	Text       string `json:"text"`
	ClearFirst bool   `json:"clearFirst"`
	Value      string `json:"value"`
	Direction  string `json:"direction"`
	Amount     string `json:"amount"`
	URL        string `json:"url"`
	DurationMs int    `json:"durationMs"`
	QuestionID string `json:"questionId"`
}

func (a *Agent) executeTool(ctx context.Context, p transport.ExecuteToolPayload) {
	var args toolArgs
	if len(p.Args) > 0 {
		if err := json.Unmarshal(p.Args, &args); err != nil {
			a.report(p.Token, fmt.Sprintf("bad arguments: %v", err), true)
			return
		}
	}

	result, err := a.dispatch(ctx, entity.ToolName(p.Tool), args)
	if err != nil {
		a.log.Warn("tool failed", "tool", p.Tool, "error", err)
		a.report(p.Token, err.Error(), true)
		return
	}

	// Any successful action may have changed the page.
	if err := a.PushPageMap(ctx); err != nil {
		a.log.Warn("page map refresh failed", "error", err)
	}
	a.report(p.Token, result, false)
}

func (a *Agent) dispatch(ctx context.Context, tool entity.ToolName, args toolArgs) (string, error) {
	x := a.browser.Exec
	switch tool {
	case entity.ToolClick:
		if err := x.Click(ctx, args.ActionID); err != nil {
			return "", err
		}
		return "clicked " + args.ActionID, nil
	case entity.ToolTypeText:
		if err := x.TypeText(ctx, args.FieldID, args.Text, args.ClearFirst); err != nil {
			return "", err
		}
		return fmt.Sprintf("typed %d characters into %s", len(args.Text), args.FieldID), nil
	case entity.ToolSelectOption:
		if err := x.SelectOption(ctx, args.FieldID, args.Value); err != nil {
			return "", err
		}
		return fmt.Sprintf("selected %q", args.Value), nil
	case entity.ToolScroll:
		if err := x.Scroll(ctx, args.Direction, args.Amount); err != nil {
			return "", err
		}
		return "scrolled " + args.Direction, nil
	case entity.ToolFocus:
		if err := x.Focus(ctx, args.ActionID); err != nil {
			return "", err
		}
		return "focused " + args.ActionID, nil
	case entity.ToolGoBack:
		if err := x.GoBack(ctx); err != nil {
			return "", err
		}
		return "went back to " + a.browser.CurrentURL(), nil
	case entity.ToolNavigate:
		if err := x.NavigateTo(ctx, args.URL); err != nil {
			return "", err
		}
		return "navigated to " + a.browser.CurrentURL(), nil
	case entity.ToolWait:
		if err := x.Wait(ctx, time.Duration(args.DurationMs)*time.Millisecond); err != nil {
			return "", err
		}
		return "waited", nil
	case entity.ToolScanForm:
		scan, err := a.browser.Forms.Scan(ctx)
		if err != nil {
			return "", err
		}
		raw, err := json.Marshal(scan)
		if err != nil {
			return "", fmt.Errorf("encode form scan: %w", err)
		}
		return string(raw), nil
	case entity.ToolAnswerQuestion:
		return a.browser.Forms.AnswerQuestion(ctx, args.QuestionID, args.Value)
	case entity.ToolReadPage:
		return a.readPage(ctx)
	case entity.ToolScreenshot:
		shot, err := a.browser.CaptureScreenshot(ctx)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("captured %dx%d %s screenshot (%d bytes)",
			shot.Width, shot.Height, shot.Format, len(shot.Data)), nil
	default:
		return "", fmt.Errorf("unknown tool %q", tool)
	}
}

// readPage renders the page's structure as speakable text.
func (a *Agent) readPage(ctx context.Context) (string, error) {
	pm, err := a.browser.Extract.Extract(ctx)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	if pm.Title != "" {
		fmt.Fprintf(&b, "Page: %s.\n", pm.Title)
	}
	for _, h := range pm.Headings {
		fmt.Fprintf(&b, "Heading level %d: %s.\n", h.Level, h.Text)
	}
	for _, s := range pm.Sections {
		b.WriteString(s.Text)
		b.WriteString("\n")
	}
	if b.Len() == 0 {
		return "The page has no readable headings or text.", nil
	}
	return b.String(), nil
}

func (a *Agent) report(token, result string, isError bool) {
	if err := a.client.SendToolResult(token, result, isError); err != nil {
		a.log.Error("tool result send failed", "token", token, "error", err)
	}
}
