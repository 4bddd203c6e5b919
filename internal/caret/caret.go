// Package caret captures a selection as plain-text offsets and maps the
// offsets back onto a possibly rebuilt tree.
package caret

import (
	"github.com/qwill/qwill/internal/parser/html"
)

// Selection is a DOM-style range. Offsets count runes inside text nodes and
// children inside elements.
type Selection struct {
	StartNode   *html.Node
	StartOffset int
	EndNode     *html.Node
	EndOffset   int
}

// Collapsed returns a caret at a single point.
func Collapsed(node *html.Node, offset int) Selection {
	return Selection{StartNode: node, StartOffset: offset, EndNode: node, EndOffset: offset}
}

// IsCollapsed reports whether start and end are the same point.
func (s Selection) IsCollapsed() bool {
	return s.StartNode == s.EndNode && s.StartOffset == s.EndOffset
}

// Within reports whether both ends of the selection are inside root.
func (s Selection) Within(root *html.Node) bool {
	return s.StartNode != nil && s.EndNode != nil && root.Contains(s.StartNode) && root.Contains(s.EndNode)
}

// Snapshot is a selection reduced to plain-text offsets from the start of a
// content root.
type Snapshot struct {
	Start int
	End   int
}

// Capture converts sel into offsets relative to root. ok is false when the
// selection is not inside root.
func Capture(root *html.Node, sel Selection) (Snapshot, bool) {
	if !sel.Within(root) {
		return Snapshot{}, false
	}
	start, ok := pointOffset(root, sel.StartNode, sel.StartOffset)
	if !ok {
		return Snapshot{}, false
	}
	end, ok := pointOffset(root, sel.EndNode, sel.EndOffset)
	if !ok {
		return Snapshot{}, false
	}
	return Snapshot{Start: start, End: end}, true
}

// Restore walks the text nodes of root in document order and places the
// snapshot's offsets. ok is false when an offset lies beyond the text of root.
func Restore(root *html.Node, snap Snapshot) (Selection, bool) {
	if snap.Start < 0 || snap.End < snap.Start {
		return Selection{}, false
	}

	var sel Selection
	foundStart, foundEnd := false, false
	total := 0

	html.Walk(root, func(n *html.Node) bool {
		if foundEnd {
			return false
		}
		if !n.IsText() {
			return true
		}
		next := total + html.RuneLen(n.Data)
		if !foundStart && snap.Start >= total && snap.Start <= next {
			sel.StartNode, sel.StartOffset = n, snap.Start-total
			foundStart = true
		}
		if foundStart && snap.End >= total && snap.End <= next {
			sel.EndNode, sel.EndOffset = n, snap.End-total
			foundEnd = true
		}
		total = next
		return true
	})

	if foundStart && foundEnd {
		return sel, true
	}
	if total == 0 && snap.Start == 0 && snap.End == 0 {
		return Collapsed(root, 0), true
	}
	return Selection{}, false
}

// End returns a caret after the last text of root.
func End(root *html.Node) Selection {
	var last *html.Node
	html.Walk(root, func(n *html.Node) bool {
		if n.IsText() {
			last = n
		}
		return true
	})
	if last == nil {
		return Collapsed(root, root.ChildCount())
	}
	return Collapsed(last, html.RuneLen(last.Data))
}

// TextLength is the number of runes of text below root.
func TextLength(root *html.Node) int {
	return html.RuneLen(html.TextContent(root))
}

// pointOffset counts the text runes that precede the boundary point
// (container, offset).
func pointOffset(root, container *html.Node, offset int) (int, bool) {
	total := 0
	done := false

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.IsText() {
			length := html.RuneLen(n.Data)
			if n == container {
				total += clamp(offset, 0, length)
				done = true
				return
			}
			total += length
			return
		}
		i := 0
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if n == container && i == offset {
				done = true
				return
			}
			walk(c)
			if done {
				return
			}
			i++
		}
		if n == container {
			done = true
		}
	}
	walk(root)

	return total, done
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
