// Package pagemap turns raw DOM snapshot records into the structural page
// map the orchestrator reasons over. It is deliberately free of any browser
// dependency: the rod adapter captures Snapshot values, this package does
// everything else.
package pagemap

import "browser-operator/internal/domain/entity"

// RawNode is one element record as captured by the injected snapshot
// script. Field order mirrors the script's describe() output.
type RawNode struct {
	Index       int             `json:"index"`
	Tag         string          `json:"tag"`
	Role        string          `json:"role,omitempty"`
	Type        string          `json:"type,omitempty"`
	Name        string          `json:"name,omitempty"`
	DomID       string          `json:"domId,omitempty"`
	ClassName   string          `json:"className,omitempty"`
	Href        string          `json:"href,omitempty"`
	AriaLabel   string          `json:"ariaLabel,omitempty"`
	LabelledBy  string          `json:"labelledBy,omitempty"`
	LabelText   string          `json:"labelText,omitempty"`
	Title       string          `json:"title,omitempty"`
	Placeholder string          `json:"placeholder,omitempty"`
	Alt         string          `json:"alt,omitempty"`
	Text        string          `json:"text,omitempty"`
	Value       string          `json:"value,omitempty"`
	Options     []RawOption     `json:"options,omitempty"`
	Rect        entity.Rect     `json:"rect"`
	Visible     bool            `json:"visible"`
	Disabled    bool            `json:"disabled,omitempty"`
	ReadOnly    bool            `json:"readOnly,omitempty"`
	Required    bool            `json:"required,omitempty"`
	Checked     bool            `json:"checked,omitempty"`
	Selected    bool            `json:"selected,omitempty"`
	Expanded    string          `json:"expanded,omitempty"` // aria-expanded: "true", "false" or ""
	Focused     bool            `json:"focused,omitempty"`
	Editable    bool            `json:"editable,omitempty"` // contenteditable
	Locator     string          `json:"locator"`
	GroupKey    string          `json:"groupKey,omitempty"` // closest grouping container path
	Legend      string          `json:"legend,omitempty"`   // fieldset legend text, if any
	Prompt      string          `json:"prompt,omitempty"`   // block-builder prompt-text artifact
}

// RawOption is one option of a native select.
type RawOption struct {
	Label    string `json:"label"`
	Value    string `json:"value"`
	Selected bool   `json:"selected"`
}

// Snapshot is the raw material for one page map: everything the injected
// script saw in a single pass over the live document.
type Snapshot struct {
	URL      string    `json:"url"`
	Title    string    `json:"title"`
	Nodes    []RawNode `json:"nodes"`
	Alerts   []string  `json:"alerts,omitempty"`
	BodyHTML string    `json:"bodyHTML,omitempty"`
}

// Registration pairs an assigned element identifier with the structural
// locator and node index the element registry needs.
type Registration struct {
	ID        string
	Locator   string
	NodeIndex int
}
