package entity

type QuestionType string

const (
	QuestionShortText    QuestionType = "short_text"
	QuestionLongText     QuestionType = "long_text"
	QuestionSingleChoice QuestionType = "single_choice"
	QuestionMultiChoice  QuestionType = "multi_choice"
	QuestionDropdown     QuestionType = "dropdown"
	QuestionDate         QuestionType = "date"
	QuestionFile         QuestionType = "file"
)

// HasOptions reports whether questions of this type are answered by picking
// among options rather than typing into a field.
func (t QuestionType) HasOptions() bool {
	switch t {
	case QuestionSingleChoice, QuestionMultiChoice, QuestionDropdown:
		return true
	}
	return false
}

type Option struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Selected bool   `json:"selected"`
}

// Question is a semantic form question grouped out of low-level controls.
// Exactly one of Options and FieldID is populated, determined by Type.
type Question struct {
	ID       string       `json:"id"`
	Prompt   string       `json:"prompt"`
	Type     QuestionType `json:"type"`
	Required bool         `json:"required"`
	Options  []Option     `json:"options,omitempty"`
	FieldID  string       `json:"fieldId,omitempty"`
	Answer   string       `json:"currentAnswer,omitempty"`
}

// Answered reports whether the question currently carries an answer.
func (q Question) Answered() bool {
	if q.Type.HasOptions() {
		for _, o := range q.Options {
			if o.Selected {
				return true
			}
		}
		return false
	}
	return q.Answer != ""
}

type FormScan struct {
	Title       string     `json:"title,omitempty"`
	Description string     `json:"description,omitempty"`
	Questions   []Question `json:"questions"`
	SubmitID    string     `json:"submitId,omitempty"`
	Total       int        `json:"totalQuestions"`
	Answered    int        `json:"answeredQuestions"`
}
