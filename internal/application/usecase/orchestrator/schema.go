package orchestrator

import "browser-operator/internal/domain/entity"

const systemPrompt = `You are the decision engine of a voice-driven browser ` +
	`operator for users who cannot see the screen or use a pointing device. ` +
	`You receive a structural snapshot of the current page and the user's ` +
	`spoken request. Resolve each request to at most one tool call, using ` +
	`element identifiers from the snapshot. When no action is needed, answer ` +
	`in one or two short spoken sentences. Never invent identifiers.`

func prop(t, desc string) map[string]interface{} {
	return map[string]interface{}{"type": t, "description": desc}
}

func objectSchema(required []string, props map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

// toolSchema is the fixed tool vocabulary offered to the decision service.
func toolSchema() []entity.ToolDefinition {
	return []entity.ToolDefinition{
		{
			Name:        entity.ToolClick.String(),
			Description: "Click an interactive element from the page snapshot.",
			Parameters: objectSchema([]string{"actionId", "description"}, map[string]interface{}{
				"actionId":    prop("string", "Identifier of the action to click"),
				"description": prop("string", "Short human description of what is being clicked"),
			}),
		},
		{
			Name:        entity.ToolTypeText.String(),
			Description: "Type text into a form field.",
			Parameters: objectSchema([]string{"fieldId", "text"}, map[string]interface{}{
				"fieldId":    prop("string", "Identifier of the target field"),
				"text":       prop("string", "Text to type"),
				"clearFirst": prop("boolean", "Clear the field before typing (default false)"),
			}),
		},
		{
			Name:        entity.ToolSelectOption.String(),
			Description: "Select an option in a dropdown or list control.",
			Parameters: objectSchema([]string{"fieldId", "value"}, map[string]interface{}{
				"fieldId": prop("string", "Identifier of the select control"),
				"value":   prop("string", "Visible label of the option to pick"),
			}),
		},
		{
			Name:        entity.ToolScroll.String(),
			Description: "Scroll the page.",
			Parameters: objectSchema([]string{"direction"}, map[string]interface{}{
				"direction": map[string]interface{}{
					"type": "string", "enum": []string{"up", "down", "top", "bottom"},
					"description": "Scroll direction",
				},
				"amount": map[string]interface{}{
					"type": "string", "enum": []string{"little", "page", "lot"},
					"description": "How far to scroll (default page)",
				},
			}),
		},
		{
			Name:        entity.ToolFocus.String(),
			Description: "Move keyboard focus to an element.",
			Parameters: objectSchema([]string{"actionId"}, map[string]interface{}{
				"actionId": prop("string", "Identifier of the element to focus"),
			}),
		},
		{
			Name:        entity.ToolGoBack.String(),
			Description: "Go back to the previous page.",
			Parameters:  objectSchema(nil, map[string]interface{}{}),
		},
		{
			Name:        entity.ToolNavigate.String(),
			Description: "Navigate to a URL, resolved against the current page.",
			Parameters: objectSchema([]string{"url"}, map[string]interface{}{
				"url": prop("string", "Absolute or relative URL"),
			}),
		},
		{
			Name:        entity.ToolWait.String(),
			Description: "Wait briefly for the page to settle before continuing.",
			Parameters: objectSchema([]string{"durationMs"}, map[string]interface{}{
				"durationMs": prop("integer", "Milliseconds to wait, clamped to 100-5000"),
				"reason":     prop("string", "Why waiting helps"),
			}),
		},
		{
			Name:        entity.ToolScanForm.String(),
			Description: "Scan the current page's form into semantic questions with answers so far.",
			Parameters:  objectSchema(nil, map[string]interface{}{}),
		},
		{
			Name:        entity.ToolAnswerQuestion.String(),
			Description: "Answer one scanned form question by id; value semantics depend on the question type.",
			Parameters: objectSchema([]string{"questionId", "value"}, map[string]interface{}{
				"questionId": prop("string", "Identifier from a previous form scan"),
				"value":      prop("string", "Answer text, or comma-separated labels for multi-choice"),
			}),
		},
		{
			Name:        entity.ToolFillWithProfile.String(),
			Description: "Fill several fields at once from the user's stored profile values.",
			Parameters: objectSchema([]string{"fields"}, map[string]interface{}{
				"fields": map[string]interface{}{
					"type":        "array",
					"description": "Fields to fill, in order",
					"items": objectSchema([]string{"fieldId", "value"}, map[string]interface{}{
						"fieldId": prop("string", "Identifier of the target field"),
						"value":   prop("string", "Value to type"),
					}),
				},
			}),
		},
		{
			Name:        entity.ToolReadPage.String(),
			Description: "Read the page's headings and prose sections aloud.",
			Parameters:  objectSchema(nil, map[string]interface{}{}),
		},
		{
			Name:        entity.ToolScreenshot.String(),
			Description: "Capture a screenshot for a sighted helper.",
			Parameters:  objectSchema(nil, map[string]interface{}{}),
		},
	}
}
