package entity

import "time"

// PageMap is a structural snapshot of a document's interactive affordances
// and readable content. It is what the orchestrator reasons over; it is not
// a pixel-level representation.
type PageMap struct {
	URL       string      `json:"url"`
	Title     string      `json:"title"`
	Timestamp time.Time   `json:"timestamp"`
	Headings  []Heading   `json:"headings,omitempty"`
	Sections  []Section   `json:"sections,omitempty"`
	Actions   []Action    `json:"actions,omitempty"`
	Fields    []FormField `json:"formFields,omitempty"`
	Focus     *Focus      `json:"currentFocus,omitempty"`
	Alerts    []string    `json:"alerts,omitempty"`
	Flags     PageFlags   `json:"flags"`
}

type Heading struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
}

// Section is a capped snippet of prose content.
type Section struct {
	Text string `json:"text"`
}

// Rect is an element's bounding box in viewport coordinates.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ActionState carries the interaction state of a control.
type ActionState struct {
	Disabled bool `json:"disabled,omitempty"`
	Checked  bool `json:"checked,omitempty"`
	Expanded bool `json:"expanded,omitempty"`
	Selected bool `json:"selected,omitempty"`
}

// Action is one interactive control the user can be told about and asked to
// operate. ID is stable across repeated extraction of the same unchanged
// element but not globally unique across page states.
type Action struct {
	ID    string      `json:"id"`
	Role  string      `json:"role"`
	Label string      `json:"label"`
	State ActionState `json:"state"`
	Box   Rect        `json:"box"`
	Risky bool        `json:"risky,omitempty"`
}

type FormField struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Kind     string `json:"kind"`
	Value    string `json:"value,omitempty"`
	Required bool   `json:"required,omitempty"`
}

type Focus struct {
	ID    string `json:"id"`
	Role  string `json:"role"`
	Label string `json:"label"`
}

// PageFlags are heuristic hints, not guarantees. False negatives are fine.
type PageFlags struct {
	Login    bool `json:"login,omitempty"`
	Captcha  bool `json:"captcha,omitempty"`
	Checkout bool `json:"checkout,omitempty"`
}

// ActionByID returns the action carrying the given identifier.
func (pm *PageMap) ActionByID(id string) (Action, bool) {
	for _, a := range pm.Actions {
		if a.ID == id {
			return a, true
		}
	}
	return Action{}, false
}

// FieldByID returns the form field carrying the given identifier.
func (pm *PageMap) FieldByID(id string) (FormField, bool) {
	for _, f := range pm.Fields {
		if f.ID == id {
			return f, true
		}
	}
	return FormField{}, false
}
