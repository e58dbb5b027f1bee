package pagemap

import (
	"sort"
	"strings"

	"browser-operator/internal/config"
	"browser-operator/internal/domain/entity"
)

// ScanQuestions groups the snapshot's low-level controls into semantic form
// questions. Two strategies, selected by a document-shape probe: the
// block-builder strategy when controls carry machine-readable prompt
// artifacts, the generic strategy otherwise.
func ScanQuestions(snap Snapshot, pol *config.Policy) (*entity.FormScan, []Registration) {
	scan := &entity.FormScan{}
	var regs []Registration

	scan.Title, scan.Description = formHeader(snap, pol)

	blocks := hasPromptArtifacts(snap.Nodes)
	groups := groupControls(snap.Nodes, blocks)

	for _, g := range groups {
		q, qRegs, ok := buildQuestion(g)
		if !ok {
			continue
		}
		scan.Questions = append(scan.Questions, q)
		regs = append(regs, qRegs...)
	}

	if id, reg, ok := findSubmit(snap.Nodes); ok {
		scan.SubmitID = id
		regs = append(regs, reg)
	}

	scan.Total = len(scan.Questions)
	for _, q := range scan.Questions {
		if q.Answered() {
			scan.Answered++
		}
	}
	return scan, regs
}

func formHeader(snap Snapshot, pol *config.Policy) (string, string) {
	title := ""
	for _, n := range snap.Nodes {
		if headingLevel(n.Tag) > 0 && n.Visible && clean(n.Text) != "" {
			title = truncate(clean(n.Text), maxLabelLen)
			break
		}
	}
	desc := ""
	if sections := ExtractSections(snap.BodyHTML, 1, pol.Limits.SnippetLen); len(sections) > 0 {
		desc = sections[0].Text
	}
	return title, desc
}

func hasPromptArtifacts(nodes []RawNode) bool {
	for _, n := range nodes {
		if n.Prompt != "" {
			return true
		}
	}
	return false
}

// controlGroup is the working set for one candidate question.
type controlGroup struct {
	prompt  string
	members []RawNode
	order   int
}

// groupControls buckets form controls into question groups. Block mode keys
// on the container carrying a prompt artifact; generic mode keys on
// fieldset legends, then same-name radio/checkbox groups, then standalone
// labeled inputs.
func groupControls(nodes []RawNode, blocks bool) []controlGroup {
	byKey := make(map[string]*controlGroup)
	var keys []string

	addTo := func(key, prompt string, n RawNode) {
		g, ok := byKey[key]
		if !ok {
			g = &controlGroup{prompt: prompt, order: n.Index}
			byKey[key] = g
			keys = append(keys, key)
		}
		if g.prompt == "" {
			g.prompt = prompt
		}
		g.members = append(g.members, n)
	}

	for _, n := range nodes {
		if !n.Visible || !isFormControl(n) {
			continue
		}
		switch {
		case blocks && n.GroupKey != "" && n.Prompt != "":
			addTo("block:"+n.GroupKey, clean(n.Prompt), n)
		case blocks && n.GroupKey != "":
			addTo("block:"+n.GroupKey, "", n)
		case n.Legend != "" && n.GroupKey != "":
			addTo("legend:"+n.GroupKey, clean(n.Legend), n)
		case n.Name != "" && (n.Type == "radio" || n.Type == "checkbox"):
			addTo("name:"+n.Name, "", n)
		default:
			addTo("solo:"+n.Locator, ResolveLabel(n), n)
		}
	}

	groups := make([]controlGroup, 0, len(keys))
	for _, k := range keys {
		groups = append(groups, *byKey[k])
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].order < groups[j].order })
	return groups
}

func isFormControl(n RawNode) bool {
	switch n.Tag {
	case "input":
		return n.Type != "hidden" && n.Type != "submit" && n.Type != "button" && n.Type != "image" && n.Type != "reset"
	case "textarea", "select":
		return true
	}
	return n.Editable || n.Role == "radio" || n.Role == "checkbox" || n.Role == "textbox" || n.Role == "combobox"
}

// buildQuestion derives one question from a control group. Exactly one of
// Options and FieldID ends up populated, determined by the question type.
func buildQuestion(g controlGroup) (entity.Question, []Registration, bool) {
	if len(g.members) == 0 {
		return entity.Question{}, nil, false
	}

	qType := questionType(g)
	prompt := g.prompt
	if prompt == "" {
		prompt = ResolveLabel(g.members[0])
	}
	if prompt == "" {
		return entity.Question{}, nil, false
	}

	q := entity.Question{
		ID:     ElementID("question", prompt, string(qType)),
		Prompt: prompt,
		Type:   qType,
	}
	var regs []Registration

	if qType.HasOptions() {
		first := g.members[0]
		if first.Tag == "select" {
			// native select: options come from the control itself
			fieldID := ElementID("combobox", prompt, first.Type)
			regs = append(regs, Registration{ID: fieldID, Locator: first.Locator, NodeIndex: first.Index})
			var selected []string
			for _, o := range first.Options {
				opt := entity.Option{
					ID:       fieldID, // options addressed through the select itself
					Label:    clean(o.Label),
					Selected: o.Selected,
				}
				q.Options = append(q.Options, opt)
				if o.Selected {
					selected = append(selected, opt.Label)
				}
			}
			q.Required = first.Required
			q.Answer = strings.Join(selected, ", ")
		} else {
			var selected []string
			for _, m := range g.members {
				label := optionLabel(m)
				optID := ElementID(m.Type, label, m.Name)
				regs = append(regs, Registration{ID: optID, Locator: m.Locator, NodeIndex: m.Index})
				q.Options = append(q.Options, entity.Option{ID: optID, Label: label, Selected: m.Checked})
				if m.Checked {
					selected = append(selected, label)
				}
				if m.Required {
					q.Required = true
				}
			}
			q.Answer = strings.Join(selected, ", ")
		}
	} else {
		m := g.members[0]
		fieldID := ElementID("textbox", prompt, m.Type)
		regs = append(regs, Registration{ID: fieldID, Locator: m.Locator, NodeIndex: m.Index})
		q.FieldID = fieldID
		q.Required = m.Required
		q.Answer = m.Value
	}

	return q, regs, true
}

func questionType(g controlGroup) entity.QuestionType {
	radios, checks := 0, 0
	for _, m := range g.members {
		switch {
		case m.Type == "radio" || m.Role == "radio":
			radios++
		case m.Type == "checkbox" || m.Role == "checkbox":
			checks++
		}
	}
	first := g.members[0]
	switch {
	case radios > 0 && checks == 0:
		return entity.QuestionSingleChoice
	case checks > 0:
		return entity.QuestionMultiChoice
	case first.Tag == "select" || first.Role == "combobox" && first.Tag != "input":
		return entity.QuestionDropdown
	case first.Tag == "textarea" || first.Editable:
		return entity.QuestionLongText
	case first.Type == "date" || first.Type == "datetime-local" || first.Type == "month":
		return entity.QuestionDate
	case first.Type == "file":
		return entity.QuestionFile
	default:
		return entity.QuestionShortText
	}
}

// optionLabel prefers the option control's own label; radio/checkbox inputs
// usually carry an associated <label>.
func optionLabel(n RawNode) string {
	if l := ResolveLabel(n); l != "" {
		return l
	}
	return clean(n.Value)
}

var submitWords = []string{"submit", "send", "apply", "save", "next", "continue"}

func findSubmit(nodes []RawNode) (string, Registration, bool) {
	for _, n := range nodes {
		if !n.Visible {
			continue
		}
		isSubmit := n.Tag == "input" && n.Type == "submit" ||
			n.Tag == "button" && (n.Type == "submit" || n.Type == "")
		if !isSubmit && roleOf(n) == "button" {
			isSubmit = IsRisky(ResolveLabel(n), submitWords)
		}
		if isSubmit {
			label := ResolveLabel(n)
			id := ElementID("button", label, n.Type)
			return id, Registration{ID: id, Locator: n.Locator, NodeIndex: n.Index}, true
		}
	}
	return "", Registration{}, false
}
