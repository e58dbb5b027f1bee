// Package orchestrator implements the per-tab state machine that turns
// transcripts into tool calls. One instance per tab; all handlers are
// invoked from that tab's single message loop, so state needs no lock.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"browser-operator/internal/application/port/output"
	"browser-operator/internal/config"
	"browser-operator/internal/domain/entity"
	"browser-operator/internal/pagemap"
)

const apology = "Sorry, something went wrong thinking about that. Please try again."

type Orchestrator struct {
	tabID string
	llm   output.LLMPort
	sink  output.CommandSink
	log   output.LoggerPort
	pol   *config.Policy

	pageMap   *entity.PageMap
	history   []entity.Message
	pending   *entity.PendingConfirmation
	lastTool  entity.ToolName
	batchLeft int
	lastToken string
	lastSpoke string

	closed atomic.Bool

	// sleep is swapped out in tests; the batch fill paces fields with it.
	sleep func(time.Duration)
}

func New(tabID string, llm output.LLMPort, sink output.CommandSink, log output.LoggerPort, pol *config.Policy) *Orchestrator {
	if pol == nil {
		pol = config.Default()
	}
	return &Orchestrator{
		tabID: tabID,
		llm:   llm,
		sink:  sink,
		log:   log.WithField("tab", tabID),
		pol:   pol,
		sleep: time.Sleep,
	}
}

// Close marks the session disconnected; any in-flight decision-service
// response is discarded rather than applied to stale state.
func (o *Orchestrator) Close() {
	o.closed.Store(true)
}

// HandlePageMap replaces the latest snapshot. No reply.
func (o *Orchestrator) HandlePageMap(pm *entity.PageMap) {
	o.pageMap = pm
	o.log.Debug("page map updated",
		"url", pm.URL, "actions", len(pm.Actions), "fields", len(pm.Fields))
}

// HandleTranscript resolves one user utterance to at most one tool call.
func (o *Orchestrator) HandleTranscript(ctx context.Context, transcript string) {
	text := normalize(transcript)
	if text == "" {
		return
	}
	o.log.Info("transcript received", "text", transcript)

	// 1. terminal phrases short-circuit everything, pending included
	if o.handleTerminal(text) {
		return
	}

	// 2. a pending confirmation owns the next utterance
	if o.pending != nil {
		o.handleConfirmation(text)
		return
	}

	// 3. built-in commands resolved without the decision service
	if o.handleBuiltin(text) {
		return
	}

	// 4. everything else goes to the decision service
	o.status(entity.StatusThinking, "")
	o.history = append(o.history, entity.Message{Role: entity.RoleUser, Content: transcript})
	o.resolveWithModel(ctx)
}

// HandleToolResult closes the loop on a previously issued tool call.
func (o *Orchestrator) HandleToolResult(ctx context.Context, token, result string, isError bool) {
	_ = o.sink.Highlight("")

	if o.batchLeft > 0 {
		o.finishBatchField(token, result, isError)
		return
	}

	content := result
	if isError {
		content = "Error: " + result
	}
	o.history = append(o.history, entity.Message{
		Role:       entity.RoleTool,
		ToolCallID: token,
		Content:    content,
	})

	if isError {
		// resolution failures and disabled targets are spoken, never fatal
		o.speak(result, entity.SpeakHigh)
		o.status(entity.StatusIdle, "")
		return
	}

	if o.lastTool.Navigational() {
		// the tab is about to disconnect and reconnect fresh
		o.status(entity.StatusIdle, "")
		return
	}

	// continue the conversation so the model can narrate or chain
	o.status(entity.StatusThinking, "")
	o.resolveWithModel(ctx)
}

// resolveWithModel sends the sanitized history plus the truncated page map
// to the decision service and applies the single resulting action.
func (o *Orchestrator) resolveWithModel(ctx context.Context) {
	req := output.ChatRequest{
		Messages:    o.modelMessages(),
		Tools:       toolSchema(),
		Temperature: 0.0,
	}

	resp, err := o.llm.Chat(ctx, req)
	if o.closed.Load() {
		o.log.Debug("discarding decision-service response for disconnected tab")
		return
	}
	if err != nil {
		o.log.Error("decision service failed", "error", err)
		o.status(entity.StatusError, err.Error())
		o.speak(apology, entity.SpeakHigh)
		o.status(entity.StatusIdle, "")
		return
	}

	msg := resp.Message
	if len(msg.ToolCalls) == 0 {
		o.history = append(o.history, msg)
		if msg.Content != "" {
			o.status(entity.StatusSpeaking, "")
			o.speak(msg.Content, entity.SpeakNormal)
		}
		o.status(entity.StatusIdle, "")
		return
	}

	// the protocol allows exactly one invocation per turn
	call := msg.ToolCalls[0]
	if len(msg.ToolCalls) > 1 {
		o.log.Warn("decision service returned multiple tool calls, keeping first", "count", len(msg.ToolCalls))
	}
	if call.ID == "" {
		call.ID = uuid.NewString()
	}
	msg.ToolCalls = []entity.ToolCall{call}
	o.history = append(o.history, msg)

	if msg.Content != "" {
		o.speak(msg.Content, entity.SpeakNormal)
	}

	o.applyToolCall(call)
}

func (o *Orchestrator) applyToolCall(call entity.ToolCall) {
	tool := entity.ToolName(call.Name)

	// a risk-flagged click is intercepted and converted into a
	// confirmation request; only an explicit confirm releases it
	if tool == entity.ToolClick {
		if action, risky := o.riskyTarget(call.Arguments); risky {
			o.pending = &entity.PendingConfirmation{
				Tool:        tool,
				Arguments:   call.Arguments,
				Token:       call.ID,
				Description: action.Label,
			}
			_ = o.sink.Highlight(action.ID)
			desc := fmt.Sprintf("This will activate %q. Say yes to confirm or no to cancel.", action.Label)
			_ = o.sink.RequestConfirmation(desc)
			o.speak(desc, entity.SpeakHigh)
			o.status(entity.StatusAwaitConfirm, action.Label)
			return
		}
	}

	if tool == entity.ToolFillWithProfile {
		o.runFillBatch(call)
		return
	}

	o.issueTool(tool, call.Arguments, call.ID)
}

func (o *Orchestrator) issueTool(tool entity.ToolName, args, token string) {
	o.lastTool = tool
	o.lastToken = token
	o.status(entity.StatusExecuting, tool.String())
	if tool == entity.ToolClick {
		if id := argString(args, "actionId"); id != "" {
			_ = o.sink.Highlight(id)
		}
	}
	if err := o.sink.ExecuteTool(tool, args, token); err != nil {
		o.log.Error("tool dispatch failed", "tool", tool, "error", err)
		o.speak(apology, entity.SpeakHigh)
		o.status(entity.StatusIdle, "")
	}
}

// runFillBatch executes a profile fill as a server-controlled batch: one
// typed field at a time with a fixed inter-field delay. The per-field
// results are collapsed into a single tool result for the original call,
// and the usual follow-up turn is suppressed until the batch drains.
func (o *Orchestrator) runFillBatch(call entity.ToolCall) {
	var args struct {
		Fields []struct {
			FieldID string `json:"fieldId"`
			Value   string `json:"value"`
		} `json:"fields"`
	}
	if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil || len(args.Fields) == 0 {
		o.history = append(o.history, entity.Message{
			Role: entity.RoleTool, ToolCallID: call.ID,
			Content: "Error: fill_with_profile requires a non-empty fields list",
		})
		o.speak("I couldn't work out which fields to fill.", entity.SpeakHigh)
		o.status(entity.StatusIdle, "")
		return
	}

	o.lastTool = entity.ToolFillWithProfile
	o.lastToken = call.ID
	o.batchLeft = len(args.Fields)
	o.status(entity.StatusExecuting, fmt.Sprintf("filling %d fields", len(args.Fields)))

	for i, f := range args.Fields {
		if i > 0 {
			o.sleep(o.pol.Batch.InterFieldDelay)
		}
		fieldArgs, _ := json.Marshal(map[string]any{
			"fieldId":    f.FieldID,
			"text":       f.Value,
			"clearFirst": true,
		})
		token := fmt.Sprintf("%s#%d", call.ID, i)
		if err := o.sink.ExecuteTool(entity.ToolTypeText, string(fieldArgs), token); err != nil {
			o.log.Error("batch field dispatch failed", "field", f.FieldID, "error", err)
			o.batchLeft--
		}
	}

	if o.batchLeft == 0 {
		o.closeBatch("Error: no fields could be dispatched")
	}
}

func (o *Orchestrator) finishBatchField(token, result string, isError bool) {
	o.log.Debug("batch field result", "token", token, "error", isError)
	o.batchLeft--
	if o.batchLeft > 0 {
		return
	}
	o.closeBatch("Profile fields filled.")
	o.speak("Done filling the form from your profile.", entity.SpeakNormal)
	o.status(entity.StatusIdle, "")
}

// closeBatch records the single collapsed result for the original
// fill_with_profile invocation, keeping the pairing invariant intact.
func (o *Orchestrator) closeBatch(summary string) {
	o.history = append(o.history, entity.Message{
		Role:       entity.RoleTool,
		ToolCallID: o.lastToken,
		Content:    summary,
	})
	o.batchLeft = 0
}

// riskyTarget parses a click's arguments and reports whether its target is
// risk-flagged in the current page map.
func (o *Orchestrator) riskyTarget(args string) (entity.Action, bool) {
	if o.pageMap == nil {
		return entity.Action{}, false
	}
	id := argString(args, "actionId")
	if id == "" {
		return entity.Action{}, false
	}
	action, ok := o.pageMap.ActionByID(id)
	if !ok {
		return entity.Action{}, false
	}
	return action, action.Risky
}

// modelMessages assembles the request: system prompt, page context, then
// sanitized history.
func (o *Orchestrator) modelMessages() []entity.Message {
	o.history = Sanitize(o.history)

	msgs := []entity.Message{{Role: entity.RoleSystem, Content: systemPrompt}}
	if o.pageMap != nil {
		compact := pagemap.TruncateForModel(o.pageMap, o.pol)
		data, err := json.Marshal(compact)
		if err == nil {
			msgs = append(msgs, entity.Message{
				Role:    entity.RoleSystem,
				Content: "Current page snapshot:\n" + string(data),
			})
		}
	}
	return append(msgs, o.history...)
}

func (o *Orchestrator) speak(text string, priority entity.SpeakPriority) {
	o.lastSpoke = text
	if err := o.sink.Speak(text, priority); err != nil {
		o.log.Warn("speak dispatch failed", "error", err)
	}
}

func (o *Orchestrator) status(st entity.Status, message string) {
	if err := o.sink.Status(st, message); err != nil {
		o.log.Warn("status dispatch failed", "error", err)
	}
}

func argString(args, key string) string {
	var m map[string]any
	if err := json.Unmarshal([]byte(args), &m); err != nil {
		return ""
	}
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Trim(s, ".,!? ")
}
