package api

import (
	"strings"

	"github.com/qwill/qwill/internal/parser/html"
)

const (
	titleRunes   = 30
	previewRunes = 50
	untitled     = "Untitled"
)

var blockTags = []string{
	"p", "div", "h1", "h2", "h3", "h4", "h5", "h6", "li", "ul", "ol",
	"pre", "blockquote", "table", "tr", "hr", "section", "article",
}

// plainText returns the text of content with one line per block.
func plainText(content string) string {
	var b strings.Builder
	newline := func() {
		if s := b.String(); s != "" && !strings.HasSuffix(s, "\n") {
			b.WriteByte('\n')
		}
	}
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			switch {
			case c.IsText():
				b.WriteString(c.Data)
			case c.IsElement("br"):
				b.WriteByte('\n')
			case c.IsElement(blockTags...):
				newline()
				walk(c)
				newline()
			default:
				walk(c)
			}
		}
	}
	walk(html.ParseFragment(content))
	return strings.Trim(b.String(), "\n")
}

func titleOf(content string) string {
	line, _, _ := strings.Cut(plainText(content), "\n")
	if title := strings.TrimSpace(truncateRunes(line, titleRunes)); title != "" {
		return title
	}
	return untitled
}

func previewOf(content string) string {
	return truncateRunes(strings.Join(strings.Fields(plainText(content)), " "), previewRunes)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
