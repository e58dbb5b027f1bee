package pagemap

import (
	"net/url"
	"strings"
)

const maxLabelLen = 80

// labelStrategy is one step of the accessible-name resolution chain. Each
// strategy is pure; the first non-empty result wins.
type labelStrategy struct {
	name string
	fn   func(n RawNode) string
}

var labelStrategies = []labelStrategy{
	{"aria-label", func(n RawNode) string { return n.AriaLabel }},
	{"aria-labelledby", func(n RawNode) string { return n.LabelledBy }},
	{"label", func(n RawNode) string { return n.LabelText }},
	{"title", func(n RawNode) string { return n.Title }},
	{"placeholder", func(n RawNode) string { return n.Placeholder }},
	{"text", func(n RawNode) string { return n.Text }},
	{"img-alt", func(n RawNode) string { return n.Alt }},
	{"href-path", hrefPathLabel},
	{"truncated-text", func(n RawNode) string { return truncate(n.Text, 40) }},
}

// ResolveLabel walks the strategy chain and returns the first usable label,
// trimmed and capped. An unnameable element yields "".
func ResolveLabel(n RawNode) string {
	for _, s := range labelStrategies {
		if label := clean(s.fn(n)); label != "" {
			return truncate(label, maxLabelLen)
		}
	}
	return ""
}

// hrefPathLabel derives a human-readable label from a link's URL path when
// the link has no text of its own (icon links, image links).
func hrefPathLabel(n RawNode) string {
	if n.Tag != "a" || n.Href == "" {
		return ""
	}
	u, err := url.Parse(n.Href)
	if err != nil {
		return ""
	}
	segment := strings.Trim(u.Path, "/")
	if i := strings.LastIndex(segment, "/"); i >= 0 {
		segment = segment[i+1:]
	}
	if i := strings.LastIndex(segment, "."); i > 0 {
		segment = segment[:i]
	}
	segment = strings.NewReplacer("-", " ", "_", " ").Replace(segment)
	segment = clean(segment)
	if segment == "" && u.Host != "" {
		return u.Host
	}
	return segment
}

func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := s[:max]
	if i := strings.LastIndex(cut, " "); i > max/2 {
		cut = cut[:i]
	}
	return cut + "…"
}

// IsRisky matches a label against the commit-verb list, case-insensitively.
func IsRisky(label string, verbs []string) bool {
	lower := strings.ToLower(label)
	for _, v := range verbs {
		if strings.Contains(lower, strings.ToLower(v)) {
			return true
		}
	}
	return false
}
