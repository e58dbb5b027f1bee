package pagemap

import (
	"strconv"
	"strings"
	"time"

	"browser-operator/internal/config"
	"browser-operator/internal/domain/entity"
)

// Build assembles a page map from a raw snapshot and reports the element
// registrations the caller must feed to the registry. It is pure: the same
// snapshot and policy always produce the same map.
func Build(snap Snapshot, pol *config.Policy) (*entity.PageMap, []Registration) {
	pm := &entity.PageMap{
		URL:       snap.URL,
		Title:     snap.Title,
		Timestamp: time.Now(),
		Alerts:    snap.Alerts,
	}

	limits := pol.Limits
	var regs []Registration
	used := make(map[string]bool)

	hasPassword := false
	paymentHint := false
	var wording strings.Builder
	wording.WriteString(strings.ToLower(snap.Title))

	for _, n := range snap.Nodes {
		if h := headingLevel(n.Tag); h > 0 {
			if n.Visible && clean(n.Text) != "" {
				pm.Headings = append(pm.Headings, entity.Heading{Level: h, Text: truncate(clean(n.Text), maxLabelLen)})
				wording.WriteByte(' ')
				wording.WriteString(strings.ToLower(n.Text))
			}
			continue
		}
		if !n.Visible {
			continue
		}

		role := roleOf(n)
		if role == "" {
			continue
		}
		label := ResolveLabel(n)
		if label == "" && role != "textbox" {
			continue
		}
		id := ElementID(role, label, n.Type)
		if used[id] {
			continue
		}

		if isFieldRole(role) {
			if len(pm.Fields) >= limits.ExtractFields {
				continue
			}
			used[id] = true
			regs = append(regs, Registration{ID: id, Locator: n.Locator, NodeIndex: n.Index})
			pm.Fields = append(pm.Fields, entity.FormField{
				ID:       id,
				Label:    label,
				Kind:     fieldKind(n),
				Value:    n.Value,
				Required: n.Required,
			})
			if n.Type == "password" {
				hasPassword = true
			}
			if isPaymentField(n) {
				paymentHint = true
			}
		} else {
			if len(pm.Actions) >= limits.ExtractActions {
				continue
			}
			used[id] = true
			regs = append(regs, Registration{ID: id, Locator: n.Locator, NodeIndex: n.Index})
			pm.Actions = append(pm.Actions, entity.Action{
				ID:    id,
				Role:  role,
				Label: label,
				State: entity.ActionState{
					Disabled: n.Disabled,
					Checked:  n.Checked,
					Expanded: n.Expanded == "true",
					Selected: n.Selected,
				},
				Box:   n.Rect,
				Risky: IsRisky(label, pol.Risk.Verbs),
			})
			wording.WriteByte(' ')
			wording.WriteString(strings.ToLower(label))
		}

		if n.Focused && pm.Focus == nil {
			pm.Focus = &entity.Focus{ID: id, Role: role, Label: label}
		}
	}

	pm.Sections = ExtractSections(snap.BodyHTML, limits.ExtractSections, limits.SnippetLen)

	text := wording.String()
	lowerBody := strings.ToLower(snap.BodyHTML)
	pm.Flags = entity.PageFlags{
		Login:    hasPassword && containsAny(text+" "+lowerBody, "sign in", "log in", "login", "signin"),
		Captcha:  strings.Contains(lowerBody, "captcha"),
		Checkout: paymentHint && containsAny(text+" "+lowerBody, "checkout", "payment", "place order", "order summary"),
	}

	return pm, regs
}

func headingLevel(tag string) int {
	if len(tag) == 2 && tag[0] == 'h' {
		if lvl, err := strconv.Atoi(tag[1:]); err == nil && lvl >= 1 && lvl <= 6 {
			return lvl
		}
	}
	return 0
}

// roleOf normalizes a node to a small role vocabulary, or "" for elements
// the map does not carry.
func roleOf(n RawNode) string {
	switch n.Role {
	case "button", "link", "checkbox", "radio", "textbox", "combobox",
		"listbox", "menuitem", "tab", "switch", "searchbox", "slider":
		return n.Role
	}
	switch n.Tag {
	case "a":
		if n.Href != "" {
			return "link"
		}
	case "button":
		return "button"
	case "select":
		return "combobox"
	case "textarea":
		return "textbox"
	case "input":
		switch n.Type {
		case "button", "submit", "image", "reset":
			return "button"
		case "checkbox":
			return "checkbox"
		case "radio":
			return "radio"
		case "hidden":
			return ""
		default:
			return "textbox"
		}
	}
	if n.Editable {
		return "textbox"
	}
	if n.Role != "" {
		return ""
	}
	// clickable div/span without a recognized tag or role
	if n.Tag == "div" || n.Tag == "span" {
		return ""
	}
	return ""
}

func isFieldRole(role string) bool {
	switch role {
	case "textbox", "combobox", "listbox", "searchbox":
		return true
	}
	return false
}

func fieldKind(n RawNode) string {
	if n.Tag == "select" || n.Role == "combobox" && n.Tag != "input" {
		return "select"
	}
	if n.Tag == "textarea" {
		return "textarea"
	}
	switch n.Type {
	case "date", "datetime-local", "month", "week":
		return "date"
	case "file":
		return "file"
	case "email", "password", "number", "tel", "url", "search":
		return n.Type
	}
	return "text"
}

func isPaymentField(n RawNode) bool {
	probe := strings.ToLower(n.Name + " " + n.DomID + " " + n.ClassName + " " + n.AriaLabel)
	return containsAny(probe, "card", "cc-num", "cvv", "cvc", "payment", "iban")
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// TruncateForModel trims a page map to the decision-service limits without
// mutating the original.
func TruncateForModel(pm *entity.PageMap, pol *config.Policy) *entity.PageMap {
	out := *pm
	limits := pol.Limits
	if len(out.Actions) > limits.ModelActions {
		out.Actions = out.Actions[:limits.ModelActions]
	}
	if len(out.Fields) > limits.ModelFields {
		out.Fields = out.Fields[:limits.ModelFields]
	}
	if len(out.Sections) > limits.ModelSections {
		out.Sections = out.Sections[:limits.ModelSections]
	}
	sections := make([]entity.Section, len(out.Sections))
	for i, s := range out.Sections {
		sections[i] = entity.Section{Text: truncate(s.Text, limits.SnippetLen)}
	}
	out.Sections = sections
	return &out
}
