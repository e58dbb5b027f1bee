package entity

type ToolName string

const (
	ToolClick           ToolName = "click"
	ToolTypeText        ToolName = "type_text"
	ToolSelectOption    ToolName = "select_option"
	ToolScroll          ToolName = "scroll"
	ToolFocus           ToolName = "focus"
	ToolGoBack          ToolName = "go_back"
	ToolNavigate        ToolName = "navigate"
	ToolWait            ToolName = "wait"
	ToolScanForm        ToolName = "scan_form"
	ToolAnswerQuestion  ToolName = "answer_question"
	ToolFillWithProfile ToolName = "fill_with_profile"
	ToolReadPage        ToolName = "read_page"
	ToolScreenshot      ToolName = "screenshot"
)

func (t ToolName) String() string {
	return string(t)
}

// Navigational reports whether a tool is expected to unload the page. The
// orchestrator skips its follow-up turn after these, since the tab
// disconnects and reconnects with a fresh session.
func (t ToolName) Navigational() bool {
	switch t {
	case ToolGoBack, ToolNavigate:
		return true
	}
	return false
}
