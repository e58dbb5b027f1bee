package orchestrator

import "browser-operator/internal/domain/entity"

// Sanitize enforces the pairing invariant tool-calling APIs demand: every
// assistant tool invocation must have a tool result bearing the same token
// somewhere in history. An assistant message whose invocation lacks a
// result is rewritten to plain text with the token stripped; it is never
// dropped. Tool results answering no known invocation are removed so the
// remaining history stays internally consistent.
func Sanitize(history []entity.Message) []entity.Message {
	answered := make(map[string]bool)
	for _, m := range history {
		if m.Role == entity.RoleTool && m.ToolCallID != "" {
			answered[m.ToolCallID] = true
		}
	}

	issued := make(map[string]bool)
	out := make([]entity.Message, 0, len(history))
	for _, m := range history {
		switch m.Role {
		case entity.RoleAssistant:
			kept := m.ToolCalls[:0:0]
			for _, tc := range m.ToolCalls {
				if answered[tc.ID] {
					kept = append(kept, tc)
					issued[tc.ID] = true
				}
			}
			m.ToolCalls = kept
			if len(kept) == 0 && m.Content == "" {
				m.Content = "(proposed an action that was not carried out)"
			}
		case entity.RoleTool:
			if !issued[m.ToolCallID] {
				continue
			}
		}
		out = append(out, m)
	}
	return out
}
