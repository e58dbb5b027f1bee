package pagemap

import (
	"strings"

	"golang.org/x/net/html"

	"browser-operator/internal/domain/entity"
)

var skipTags = map[string]bool{
	"script": true, "style": true, "noscript": true, "svg": true,
	"iframe": true, "head": true, "template": true, "nav": true,
}

var proseTags = map[string]bool{
	"p": true, "li": true, "blockquote": true, "article": true,
	"dd": true, "figcaption": true, "td": true,
}

const minSectionLen = 40

// ExtractSections pulls readable prose out of body HTML: paragraphs and
// list items long enough to be worth reading aloud, capped in count and
// snippet length.
func ExtractSections(bodyHTML string, maxSections, snippetLen int) []entity.Section {
	if bodyHTML == "" || maxSections <= 0 {
		return nil
	}
	doc, err := html.Parse(strings.NewReader(bodyHTML))
	if err != nil {
		return nil
	}

	var sections []entity.Section
	seen := make(map[string]bool)

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if len(sections) >= maxSections {
			return
		}
		if n.Type == html.ElementNode {
			if skipTags[n.Data] {
				return
			}
			if proseTags[n.Data] {
				text := clean(collectText(n))
				if len(text) >= minSectionLen && !seen[text] {
					seen[text] = true
					sections = append(sections, entity.Section{Text: truncate(text, snippetLen)})
					return // do not descend; children are part of this section
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return sections
}

func collectText(n *html.Node) string {
	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
			return
		}
		if n.Type == html.ElementNode && skipTags[n.Data] {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
