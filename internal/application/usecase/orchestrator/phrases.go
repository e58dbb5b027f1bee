package orchestrator

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"browser-operator/internal/domain/entity"
)

// handleTerminal deals with stop/repeat/slow-down, which win over
// everything else, a pending confirmation included.
func (o *Orchestrator) handleTerminal(text string) bool {
	switch {
	case text == "stop" || text == "stop it" || text == "be quiet" || text == "shut up":
		if o.pending != nil {
			o.clearPending()
		}
		o.speak("Stopped.", entity.SpeakHigh)
		o.status(entity.StatusIdle, "")
		return true
	case text == "repeat" || text == "say that again" || text == "repeat that":
		if o.lastSpoke != "" {
			o.speak(o.lastSpoke, entity.SpeakNormal)
		} else {
			o.speak("I haven't said anything yet.", entity.SpeakNormal)
		}
		o.status(entity.StatusIdle, "")
		return true
	case strings.Contains(text, "slow down") || strings.Contains(text, "slower"):
		o.speak("Okay, I'll slow down.", entity.SpeakNormal)
		o.status(entity.StatusIdle, "")
		return true
	}
	return false
}

// handleConfirmation checks the utterance against the confirm and cancel
// phrase lists; anything else re-prompts and keeps waiting.
func (o *Orchestrator) handleConfirmation(text string) {
	switch {
	case matchesAny(text, o.pol.Phrase.Confirm):
		pending := o.pending
		o.pending = nil
		_ = o.sink.Highlight("")
		o.issueTool(pending.Tool, pending.Arguments, pending.Token)
	case matchesAny(text, o.pol.Phrase.Cancel):
		o.clearPending()
		o.speak("Cancelled.", entity.SpeakNormal)
		o.status(entity.StatusIdle, "")
	default:
		o.speak(fmt.Sprintf("Waiting on %q. Say yes to confirm or no to cancel.", o.pending.Description), entity.SpeakNormal)
		o.status(entity.StatusAwaitConfirm, o.pending.Description)
	}
}

func (o *Orchestrator) clearPending() {
	// the orphan assistant tool call left in history is rewritten to plain
	// text by sanitization before the next decision-service request
	o.pending = nil
	_ = o.sink.Highlight("")
}

// handleBuiltin resolves commands that never need the decision service.
func (o *Orchestrator) handleBuiltin(text string) bool {
	switch {
	case strings.Contains(text, "where am i") || text == "what page is this":
		o.speakLocation()
		return true
	case strings.Contains(text, "list actions") || strings.Contains(text, "what can i do") ||
		strings.Contains(text, "what can i click"):
		o.speakActions()
		return true
	case text == "go back" || text == "back":
		o.history = append(o.history, entity.Message{Role: entity.RoleUser, Content: text})
		token := uuid.NewString()
		o.history = append(o.history, entity.Message{
			Role:      entity.RoleAssistant,
			ToolCalls: []entity.ToolCall{{ID: token, Name: entity.ToolGoBack.String(), Arguments: "{}"}},
		})
		o.issueTool(entity.ToolGoBack, "{}", token)
		return true
	}
	return false
}

func (o *Orchestrator) speakLocation() {
	if o.pageMap == nil {
		o.speak("I don't have a view of the page yet.", entity.SpeakNormal)
		o.status(entity.StatusIdle, "")
		return
	}
	host := o.pageMap.URL
	if u, err := url.Parse(o.pageMap.URL); err == nil && u.Host != "" {
		host = u.Host
	}
	summary := fmt.Sprintf("You are on %q at %s.", o.pageMap.Title, host)
	if len(o.pageMap.Headings) > 0 {
		summary += fmt.Sprintf(" The main heading is %q.", o.pageMap.Headings[0].Text)
	}
	if o.pageMap.Focus != nil {
		summary += fmt.Sprintf(" Focus is on %q.", o.pageMap.Focus.Label)
	}
	o.speak(summary, entity.SpeakNormal)
	o.status(entity.StatusIdle, "")
}

const maxSpokenActions = 8

func (o *Orchestrator) speakActions() {
	if o.pageMap == nil || len(o.pageMap.Actions) == 0 {
		o.speak("I don't see anything to interact with here.", entity.SpeakNormal)
		o.status(entity.StatusIdle, "")
		return
	}
	labels := make([]string, 0, maxSpokenActions)
	for _, a := range o.pageMap.Actions {
		if a.State.Disabled {
			continue
		}
		labels = append(labels, a.Label)
		if len(labels) == maxSpokenActions {
			break
		}
	}
	total := len(o.pageMap.Actions)
	summary := fmt.Sprintf("There are %d actions. The first ones are: %s.", total, strings.Join(labels, ", "))
	o.speak(summary, entity.SpeakNormal)
	o.status(entity.StatusIdle, "")
}

func matchesAny(text string, phrases []string) bool {
	for _, p := range phrases {
		p = strings.ToLower(p)
		if text == p || strings.HasPrefix(text, p+" ") || strings.HasSuffix(text, " "+p) {
			return true
		}
	}
	return false
}
