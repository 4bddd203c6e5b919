package layout

import (
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/qwill/qwill/internal/parser/html"
)

var blockTags = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true, "body": true,
	"center": true, "dd": true, "details": true, "div": true, "dl": true, "dt": true,
	"fieldset": true, "figcaption": true, "figure": true, "footer": true, "form": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"header": true, "hr": true, "li": true, "main": true, "nav": true, "ol": true,
	"p": true, "pre": true, "section": true, "summary": true, "table": true,
	"tbody": true, "thead": true, "tfoot": true, "tr": true, "td": true, "th": true,
	"ul": true,
}

// isBlock reports whether n starts a block box. An explicit display wins
// over the tag.
func (st *state) isBlock(n *html.Node) bool {
	if !n.IsElement() {
		return false
	}
	switch st.style(n).Get("display") {
	case "block", "list-item", "flex", "grid", "table", "table-row", "table-cell":
		return true
	case "inline", "inline-block", "none":
		return false
	}
	return blockTags[n.Data]
}

// flow lays out a list of sibling nodes. Blocks marked as continuations are
// grouped with the preceding block of the same shape and laid out as one box,
// so a block split across pages measures exactly like the unsplit block.
func (st *state) flow(nodes []*html.Node, ctx context, top bool) {
	for i := 0; i < len(nodes); {
		if st.stopped || st.y > st.limit {
			st.stopped = true
			if top && st.fold < 0 {
				st.fold = i
			}
			return
		}

		j := i + 1
		if st.isBlock(nodes[i]) {
			for j < len(nodes) && html.IsContinuation(nodes[j]) && html.SameShape(nodes[i], nodes[j]) {
				j++
			}
			st.block(nodes[i:j], ctx)
		} else {
			for j < len(nodes) && !st.isBlock(nodes[j]) {
				j++
			}
			st.inline(nodes[i:j], ctx)
		}
		i = j
	}
}

func (st *state) block(group []*html.Node, ctx context) {
	n := group[0]
	cs := st.style(n)
	if cs.Get("display") == "none" || !hasContent(group) {
		return
	}

	inner := st.inherit(n, ctx)
	fs := inner.font.Size

	marginTop := math.Max(0, cs.Side("margin-top", fs, ctx.width))
	if html.IsContinuation(n) {
		marginTop = 0
	}
	marginBottom := math.Max(0, cs.Side("margin-bottom", fs, ctx.width))
	marginLeft := cs.Side("margin-left", fs, ctx.width)
	marginRight := cs.Side("margin-right", fs, ctx.width)
	paddingTop := cs.Side("padding-top", fs, ctx.width)
	paddingBottom := cs.Side("padding-bottom", fs, ctx.width)
	paddingLeft := cs.Side("padding-left", fs, ctx.width)
	paddingRight := cs.Side("padding-right", fs, ctx.width)

	st.y += math.Max(st.margin, marginTop)
	st.margin = 0

	if n.IsElement("hr") {
		st.y += 2
		st.margin = marginBottom
		return
	}

	st.y += paddingTop
	inner.x = ctx.x + marginLeft + paddingLeft
	inner.width = ctx.width - marginLeft - marginRight - paddingLeft - paddingRight
	if inner.width < fs {
		inner.width = math.Max(fs, 1)
	}

	if n.IsElement("li") && !html.IsContinuation(n) {
		st.marker = listMarker(n)
	}

	var content []*html.Node
	for _, piece := range group {
		content = append(content, children(piece)...)
	}
	st.flow(content, inner, false)
	st.marker = ""

	if paddingBottom > 0 {
		st.y += st.margin + paddingBottom
		st.margin = 0
	}
	st.margin = math.Max(st.margin, marginBottom)
}

// hasContent reports whether a block group renders anything. Empty blocks
// take no space, margins included.
func hasContent(group []*html.Node) bool {
	found := false
	for _, n := range group {
		html.Walk(n, func(c *html.Node) bool {
			if found {
				return false
			}
			switch {
			case c.IsText():
				found = strings.TrimFunc(c.Data, unicode.IsSpace) != ""
			case c.IsElement("img", "br", "hr"):
				found = true
			}
			return !found
		})
	}
	return found
}

func listMarker(li *html.Node) string {
	list := li.Parent
	if list == nil || !list.IsElement("ol") {
		return "•"
	}
	number := 1
	if start, ok := list.Attribute("start"); ok {
		if v, err := strconv.Atoi(strings.TrimSpace(start)); err == nil {
			number = v
		}
	}
	for s := li.PrevSibling; s != nil; s = s.PrevSibling {
		if s.IsElement("li") && !html.IsContinuation(s) {
			number++
		}
	}
	return strconv.Itoa(number) + "."
}
