package pagemap

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractSectionsPullsProse(t *testing.T) {
	body := `
		<nav><a href="/">Home</a><a href="/about">About</a></nav>
		<p>The quick brown fox jumps over the lazy dog near the riverbank every morning.</p>
		<ul><li>Delivery usually takes between two and five working days inside the country.</li></ul>
		<script>console.log("this text must never be read aloud to anyone at all")</script>
	`

	sections := ExtractSections(body, 10, 240)

	require.Len(t, sections, 2)
	assert.Contains(t, sections[0].Text, "quick brown fox")
	assert.Contains(t, sections[1].Text, "Delivery usually takes")
}

func TestExtractSectionsSkipsShortFragments(t *testing.T) {
	body := `<p>Too short.</p><p>OK</p>`
	assert.Empty(t, ExtractSections(body, 10, 240))
}

func TestExtractSectionsDeduplicates(t *testing.T) {
	para := `<p>This exact paragraph is rendered twice by the page template for layout reasons.</p>`
	sections := ExtractSections(para+para, 10, 240)
	assert.Len(t, sections, 1)
}

func TestExtractSectionsHonorsCap(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 8; i++ {
		sb.WriteString(`<p>Paragraph number `)
		sb.WriteByte(byte('0' + i))
		sb.WriteString(` carries enough words to clear the minimum prose length bar.</p>`)
	}

	sections := ExtractSections(sb.String(), 3, 240)
	assert.Len(t, sections, 3)
}

func TestExtractSectionsTruncatesSnippets(t *testing.T) {
	body := "<p>" + strings.Repeat("long sentence fragment ", 30) + "</p>"

	sections := ExtractSections(body, 10, 60)
	require.Len(t, sections, 1)
	assert.LessOrEqual(t, len(sections[0].Text), 60+len("…"))
}

func TestExtractSectionsDoesNotDescendIntoMatches(t *testing.T) {
	body := `<article>
		<p>The outer article wraps this long enough paragraph about nothing in particular.</p>
	</article>`

	sections := ExtractSections(body, 10, 240)
	require.Len(t, sections, 1, "article consumed as one section, inner p not repeated")
}

func TestExtractSectionsEmptyInput(t *testing.T) {
	assert.Nil(t, ExtractSections("", 10, 240))
	assert.Nil(t, ExtractSections("<p>whatever text might live here is irrelevant</p>", 0, 240))
}
