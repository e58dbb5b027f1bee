package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"browser-operator/internal/application/port/output"
	"browser-operator/internal/config"
	"browser-operator/internal/domain/entity"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any) {}
func (nopLogger) Warn(string, ...any) {}
func (nopLogger) Error(string, ...any) {}
func (l nopLogger) WithField(string, any) output.LoggerPort { return l }
func (l nopLogger) WithFields(map[string]any) output.LoggerPort { return l }
func (nopLogger) Close() error { return nil }

type fakeLLM struct {
	responses []output.ChatResponse
	calls     int
}

func (f *fakeLLM) Chat(_ context.Context, _ output.ChatRequest) (*output.ChatResponse, error) {
	if f.calls >= len(f.responses) {
		return nil, errors.New("unexpected decision-service call")
	}
	resp := f.responses[f.calls]
	f.calls++
	return &resp, nil
}

func toolCallResponse(id, name, args string) output.ChatResponse {
	return output.ChatResponse{Message: entity.Message{
		Role:      entity.RoleAssistant,
		ToolCalls: []entity.ToolCall{{ID: id, Name: name, Arguments: args}},
	}}
}

func textResponse(text string) output.ChatResponse {
	return output.ChatResponse{Message: entity.Message{
		Role: entity.RoleAssistant, Content: text,
	}}
}

type execCall struct {
	tool  entity.ToolName
	args  string
	token string
}

type fakeSink struct {
	speaks     []string
	execs      []execCall
	statuses   []entity.Status
	highlights []string
	confirms   []string
}

func (s *fakeSink) Speak(text string, _ entity.SpeakPriority) error {
	s.speaks = append(s.speaks, text)
	return nil
}

func (s *fakeSink) ExecuteTool(tool entity.ToolName, args, token string) error {
	s.execs = append(s.execs, execCall{tool: tool, args: args, token: token})
	return nil
}

func (s *fakeSink) Highlight(actionID string) error {
	s.highlights = append(s.highlights, actionID)
	return nil
}

func (s *fakeSink) Status(status entity.Status, _ string) error {
	s.statuses = append(s.statuses, status)
	return nil
}

func (s *fakeSink) RequestConfirmation(description string) error {
	s.confirms = append(s.confirms, description)
	return nil
}

func (s *fakeSink) lastStatus() entity.Status {
	if len(s.statuses) == 0 {
		return ""
	}
	return s.statuses[len(s.statuses)-1]
}

// fieldRecorder counts the structured fields attached to the logger so the
// tab tag is applied exactly once along the construction path.
type fieldRecorder struct {
	nopLogger
	fields []string
}

func (r *fieldRecorder) WithField(key string, _ any) output.LoggerPort {
	r.fields = append(r.fields, key)
	return r
}

func TestNewTagsLoggerWithTabOnce(t *testing.T) {
	rec := &fieldRecorder{}
	New("tab-1", &fakeLLM{}, &fakeSink{}, rec, nil)
	assert.Equal(t, []string{"tab"}, rec.fields)
}

func newTestOrchestrator(llm *fakeLLM) (*Orchestrator, *fakeSink) {
	sink := &fakeSink{}
	o := New("tab-1", llm, sink, nopLogger{}, config.Default())
	o.sleep = func(time.Duration) {}
	return o, sink
}

func checkoutPageMap() *entity.PageMap {
	return &entity.PageMap{
		URL:   "https://shop.example/checkout",
		Title: "Checkout",
		Actions: []entity.Action{
			{ID: "el-00000001", Role: "link", Label: "Continue shopping"},
			{ID: "el-00000002", Role: "button", Label: "Place order", Risky: true},
		},
		Fields: []entity.FormField{
			{ID: "el-00000003", Label: "Email", Kind: "email"},
		},
	}
}

func TestRiskyClickRequiresConfirmation(t *testing.T) {
	llm := &fakeLLM{responses: []output.ChatResponse{
		toolCallResponse("call-1", "click", `{"actionId":"el-00000002","description":"place the order"}`),
	}}
	o, sink := newTestOrchestrator(llm)
	o.HandlePageMap(checkoutPageMap())

	o.HandleTranscript(context.Background(), "place my order")

	require.Empty(t, sink.execs, "risky click must never execute directly")
	require.Len(t, sink.confirms, 1)
	assert.Contains(t, sink.confirms[0], "Place order")
	assert.Equal(t, entity.StatusAwaitConfirm, sink.lastStatus())
	assert.Contains(t, sink.highlights, "el-00000002")
}

func TestConfirmReleasesPendingWithOriginalToken(t *testing.T) {
	llm := &fakeLLM{responses: []output.ChatResponse{
		toolCallResponse("call-1", "click", `{"actionId":"el-00000002"}`),
	}}
	o, sink := newTestOrchestrator(llm)
	o.HandlePageMap(checkoutPageMap())

	o.HandleTranscript(context.Background(), "place my order")
	o.HandleTranscript(context.Background(), "yes")

	require.Len(t, sink.execs, 1)
	assert.Equal(t, entity.ToolClick, sink.execs[0].tool)
	assert.Equal(t, "call-1", sink.execs[0].token)
}

func TestCancelClearsPending(t *testing.T) {
	llm := &fakeLLM{responses: []output.ChatResponse{
		toolCallResponse("call-1", "click", `{"actionId":"el-00000002"}`),
		textResponse("Okay, what next?"),
	}}
	o, sink := newTestOrchestrator(llm)
	o.HandlePageMap(checkoutPageMap())

	o.HandleTranscript(context.Background(), "place my order")
	o.HandleTranscript(context.Background(), "no")

	assert.Empty(t, sink.execs)
	assert.Contains(t, sink.speaks, "Cancelled.")
	assert.Equal(t, entity.StatusIdle, sink.lastStatus())

	// the next utterance goes to the model as usual, not to confirmation
	o.HandleTranscript(context.Background(), "what is on this page")
	assert.Equal(t, 2, llm.calls)
}

func TestStopWinsOverPendingConfirmation(t *testing.T) {
	llm := &fakeLLM{responses: []output.ChatResponse{
		toolCallResponse("call-1", "click", `{"actionId":"el-00000002"}`),
	}}
	o, sink := newTestOrchestrator(llm)
	o.HandlePageMap(checkoutPageMap())

	o.HandleTranscript(context.Background(), "place my order")
	o.HandleTranscript(context.Background(), "stop")

	assert.Empty(t, sink.execs)
	assert.Contains(t, sink.speaks, "Stopped.")
	assert.Equal(t, entity.StatusIdle, sink.lastStatus())
}

func TestUnrelatedUtteranceReprompts(t *testing.T) {
	llm := &fakeLLM{responses: []output.ChatResponse{
		toolCallResponse("call-1", "click", `{"actionId":"el-00000002"}`),
	}}
	o, sink := newTestOrchestrator(llm)
	o.HandlePageMap(checkoutPageMap())

	o.HandleTranscript(context.Background(), "place my order")
	o.HandleTranscript(context.Background(), "what's the weather like")

	assert.Empty(t, sink.execs)
	assert.Equal(t, 1, llm.calls, "re-prompt must not consult the model")
	assert.Equal(t, entity.StatusAwaitConfirm, sink.lastStatus())
}

func TestPlainClickExecutesDirectly(t *testing.T) {
	llm := &fakeLLM{responses: []output.ChatResponse{
		toolCallResponse("call-1", "click", `{"actionId":"el-00000001"}`),
	}}
	o, sink := newTestOrchestrator(llm)
	o.HandlePageMap(checkoutPageMap())

	o.HandleTranscript(context.Background(), "continue shopping")

	require.Len(t, sink.execs, 1)
	assert.Equal(t, "call-1", sink.execs[0].token)
	assert.Empty(t, sink.confirms)
}

func TestTextAnswerIsSpoken(t *testing.T) {
	llm := &fakeLLM{responses: []output.ChatResponse{
		textResponse("You are on the checkout page."),
	}}
	o, sink := newTestOrchestrator(llm)
	o.HandlePageMap(checkoutPageMap())

	o.HandleTranscript(context.Background(), "describe this page")

	assert.Contains(t, sink.speaks, "You are on the checkout page.")
	assert.Equal(t, entity.StatusIdle, sink.lastStatus())
	assert.Empty(t, sink.execs)
}

func TestGoBackSkipsModelAndFollowUp(t *testing.T) {
	llm := &fakeLLM{}
	o, sink := newTestOrchestrator(llm)
	o.HandlePageMap(checkoutPageMap())

	o.HandleTranscript(context.Background(), "go back")

	require.Len(t, sink.execs, 1)
	assert.Equal(t, entity.ToolGoBack, sink.execs[0].tool)
	assert.Equal(t, 0, llm.calls)

	o.HandleToolResult(context.Background(), sink.execs[0].token, "went back", false)

	assert.Equal(t, 0, llm.calls, "navigational tools take no follow-up turn")
	assert.Equal(t, entity.StatusIdle, sink.lastStatus())
}

func TestToolErrorIsSpokenNotFatal(t *testing.T) {
	llm := &fakeLLM{responses: []output.ChatResponse{
		toolCallResponse("call-1", "click", `{"actionId":"el-00000001"}`),
	}}
	o, sink := newTestOrchestrator(llm)
	o.HandlePageMap(checkoutPageMap())

	o.HandleTranscript(context.Background(), "continue shopping")
	o.HandleToolResult(context.Background(), "call-1", "element not resolved: stale entry", true)

	assert.Contains(t, sink.speaks, "element not resolved: stale entry")
	assert.Equal(t, entity.StatusIdle, sink.lastStatus())
	assert.Equal(t, 1, llm.calls, "errors must not trigger a follow-up turn")
}

func TestSuccessfulClickTakesFollowUpTurn(t *testing.T) {
	llm := &fakeLLM{responses: []output.ChatResponse{
		toolCallResponse("call-1", "click", `{"actionId":"el-00000001"}`),
		textResponse("Done, the cart page is open."),
	}}
	o, sink := newTestOrchestrator(llm)
	o.HandlePageMap(checkoutPageMap())

	o.HandleTranscript(context.Background(), "continue shopping")
	o.HandleToolResult(context.Background(), "call-1", "clicked el-00000001", false)

	assert.Equal(t, 2, llm.calls)
	assert.Contains(t, sink.speaks, "Done, the cart page is open.")
}

func TestFillBatchCollapsesToOneResult(t *testing.T) {
	args := `{"fields":[{"fieldId":"el-a","value":"Ada"},{"fieldId":"el-b","value":"ada@example.com"}]}`
	llm := &fakeLLM{responses: []output.ChatResponse{
		toolCallResponse("call-9", "fill_with_profile", args),
	}}
	o, sink := newTestOrchestrator(llm)
	o.HandlePageMap(checkoutPageMap())

	o.HandleTranscript(context.Background(), "fill this in from my profile")

	require.Len(t, sink.execs, 2)
	assert.Equal(t, entity.ToolTypeText, sink.execs[0].tool)
	assert.Equal(t, "call-9#0", sink.execs[0].token)
	assert.Equal(t, "call-9#1", sink.execs[1].token)

	o.HandleToolResult(context.Background(), "call-9#0", "typed", false)
	assert.Equal(t, 1, llm.calls, "batch must suppress intermediate follow-ups")

	o.HandleToolResult(context.Background(), "call-9#1", "typed", false)

	var results []entity.Message
	for _, m := range o.history {
		if m.Role == entity.RoleTool {
			results = append(results, m)
		}
	}
	require.Len(t, results, 1, "batch produces exactly one collapsed result")
	assert.Equal(t, "call-9", results[0].ToolCallID)
	assert.Equal(t, entity.StatusIdle, sink.lastStatus())
}

func TestRepeatSaysLastUtterance(t *testing.T) {
	llm := &fakeLLM{responses: []output.ChatResponse{
		textResponse("The total is forty euros."),
	}}
	o, sink := newTestOrchestrator(llm)
	o.HandlePageMap(checkoutPageMap())

	o.HandleTranscript(context.Background(), "read the total")
	o.HandleTranscript(context.Background(), "repeat")

	require.GreaterOrEqual(t, len(sink.speaks), 2)
	assert.Equal(t, "The total is forty euros.", sink.speaks[len(sink.speaks)-1])
}

func TestWhereAmISkipsModel(t *testing.T) {
	llm := &fakeLLM{}
	o, sink := newTestOrchestrator(llm)
	o.HandlePageMap(checkoutPageMap())

	o.HandleTranscript(context.Background(), "where am I?")

	assert.Equal(t, 0, llm.calls)
	require.NotEmpty(t, sink.speaks)
	assert.Contains(t, sink.speaks[0], "Checkout")
	assert.Contains(t, sink.speaks[0], "shop.example")
}

func TestListActionsSkipsDisabled(t *testing.T) {
	llm := &fakeLLM{}
	o, sink := newTestOrchestrator(llm)
	pm := checkoutPageMap()
	pm.Actions = append(pm.Actions, entity.Action{
		ID: "el-00000004", Role: "button", Label: "Apply coupon",
		State: entity.ActionState{Disabled: true},
	})
	o.HandlePageMap(pm)

	o.HandleTranscript(context.Background(), "list actions")

	require.NotEmpty(t, sink.speaks)
	assert.Contains(t, sink.speaks[0], "Place order")
	assert.NotContains(t, sink.speaks[0], "Apply coupon")
}

func TestClosedSessionDiscardsModelResponse(t *testing.T) {
	sink := &fakeSink{}
	o := New("tab-1", closingLLM{orch: nil}, sink, nopLogger{}, config.Default())
	llm := &closingLLM{orch: o}
	o.llm = llm
	o.sleep = func(time.Duration) {}
	o.HandlePageMap(checkoutPageMap())

	o.HandleTranscript(context.Background(), "click something")

	for _, st := range sink.statuses {
		assert.NotEqual(t, entity.StatusExecuting, st, "closed session must not act on the response")
	}
	assert.Empty(t, sink.execs)
}

// closingLLM closes the session while the request is in flight.
type closingLLM struct {
	orch *Orchestrator
}

func (c closingLLM) Chat(_ context.Context, _ output.ChatRequest) (*output.ChatResponse, error) {
	if c.orch != nil {
		c.orch.Close()
	}
	resp := toolCallResponse("call-1", "click", `{"actionId":"el-00000001"}`)
	return &resp, nil
}

func TestMultipleToolCallsKeepFirstOnly(t *testing.T) {
	llm := &fakeLLM{responses: []output.ChatResponse{
		{Message: entity.Message{
			Role: entity.RoleAssistant,
			ToolCalls: []entity.ToolCall{
				{ID: "call-1", Name: "click", Arguments: `{"actionId":"el-00000001"}`},
				{ID: "call-2", Name: "scroll", Arguments: `{"direction":"down"}`},
			},
		}},
	}}
	o, sink := newTestOrchestrator(llm)
	o.HandlePageMap(checkoutPageMap())

	o.HandleTranscript(context.Background(), "click the link and scroll")

	require.Len(t, sink.execs, 1)
	assert.Equal(t, "call-1", sink.execs[0].token)
}

func TestEmptyTranscriptIgnored(t *testing.T) {
	llm := &fakeLLM{}
	o, sink := newTestOrchestrator(llm)

	o.HandleTranscript(context.Background(), "   ")

	assert.Equal(t, 0, llm.calls)
	assert.Empty(t, sink.speaks)
	assert.Empty(t, sink.statuses)
}

func TestModelFailureApologizes(t *testing.T) {
	llm := &fakeLLM{} // no queued responses, Chat errors
	o, sink := newTestOrchestrator(llm)
	o.HandlePageMap(checkoutPageMap())

	o.HandleTranscript(context.Background(), "do something clever")

	assert.Contains(t, sink.speaks, apology)
	assert.Equal(t, entity.StatusIdle, sink.lastStatus())
}

func TestBatchTokensDeriveFromCall(t *testing.T) {
	fields := make([]string, 0, 3)
	for i := 0; i < 3; i++ {
		fields = append(fields, fmt.Sprintf(`{"fieldId":"el-%d","value":"v%d"}`, i, i))
	}
	args := `{"fields":[` + fields[0] + `,` + fields[1] + `,` + fields[2] + `]}`
	llm := &fakeLLM{responses: []output.ChatResponse{
		toolCallResponse("call-7", "fill_with_profile", args),
	}}
	o, sink := newTestOrchestrator(llm)
	o.HandlePageMap(checkoutPageMap())

	o.HandleTranscript(context.Background(), "fill the form")

	require.Len(t, sink.execs, 3)
	for i, e := range sink.execs {
		assert.Equal(t, fmt.Sprintf("call-7#%d", i), e.token)
	}
}
