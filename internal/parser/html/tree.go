package html

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// ContinuedAttr marks an element that continues the content of the preceding
// element of the same shape. It appears on the pieces of a block that was
// split across pages.
const ContinuedAttr = "data-continued"

// NewRoot returns an empty container for a fragment.
func NewRoot() *Node {
	return &Node{Type: html.DocumentNode}
}

// NewText returns a detached text node.
func NewText(s string) *Node {
	return &Node{Type: html.TextNode, Data: s}
}

// NewElement returns a detached element without attributes.
func NewElement(tag string) *Node {
	return &Node{Type: html.ElementNode, Data: tag}
}

// IsText reports whether n is a text node.
func (n *Node) IsText() bool {
	return n != nil && n.Type == html.TextNode
}

// IsElement reports whether n is an element. With tags given, it also checks
// that the element is one of them.
func (n *Node) IsElement(tags ...string) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	if len(tags) == 0 {
		return true
	}
	for _, t := range tags {
		if n.Data == t {
			return true
		}
	}
	return false
}

// AppendChild adds c as the last child of n. c is detached first.
func (n *Node) AppendChild(c *Node) {
	n.InsertBefore(c, nil)
}

// PrependChild adds c as the first child of n.
func (n *Node) PrependChild(c *Node) {
	n.InsertBefore(c, n.FirstChild)
}

// InsertBefore inserts c as a child of n immediately before ref. A nil ref
// appends.
func (n *Node) InsertBefore(c, ref *Node) {
	c.Detach()
	c.Parent = n
	if ref == nil {
		c.PrevSibling = n.LastChild
		if n.LastChild != nil {
			n.LastChild.NextSibling = c
		} else {
			n.FirstChild = c
		}
		n.LastChild = c
		return
	}
	c.NextSibling = ref
	c.PrevSibling = ref.PrevSibling
	if ref.PrevSibling != nil {
		ref.PrevSibling.NextSibling = c
	} else {
		n.FirstChild = c
	}
	ref.PrevSibling = c
}

// RemoveChild removes c from n. It does nothing if c is not a child of n.
func (n *Node) RemoveChild(c *Node) {
	if c == nil || c.Parent != n {
		return
	}
	if c.PrevSibling != nil {
		c.PrevSibling.NextSibling = c.NextSibling
	} else {
		n.FirstChild = c.NextSibling
	}
	if c.NextSibling != nil {
		c.NextSibling.PrevSibling = c.PrevSibling
	} else {
		n.LastChild = c.PrevSibling
	}
	c.Parent, c.PrevSibling, c.NextSibling = nil, nil, nil
}

// Detach removes n from its parent, if it has one.
func (n *Node) Detach() {
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

// ChildCount returns the number of direct children.
func (n *Node) ChildCount() int {
	count := 0
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		count++
	}
	return count
}

// Contains reports whether d is n or a descendant of n.
func (n *Node) Contains(d *Node) bool {
	for ; d != nil; d = d.Parent {
		if d == n {
			return true
		}
	}
	return false
}

// ShallowClone copies the node and its attributes but none of its children.
func (n *Node) ShallowClone() *Node {
	return &Node{
		Type: n.Type,
		Data: n.Data,
		Attr: append([]html.Attribute(nil), n.Attr...),
	}
}

// Clone returns a detached deep copy of n.
func (n *Node) Clone() *Node {
	clone := n.ShallowClone()
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		clone.AppendChild(c.Clone())
	}
	return clone
}

// Attribute returns the value of the named attribute.
func (n *Node) Attribute(key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key && a.Namespace == "" {
			return a.Val, true
		}
	}
	return "", false
}

// SetAttribute sets or replaces the named attribute.
func (n *Node) SetAttribute(key, val string) {
	for i, a := range n.Attr {
		if a.Key == key && a.Namespace == "" {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// RemoveAttribute deletes the named attribute.
func (n *Node) RemoveAttribute(key string) {
	out := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Key == key && a.Namespace == "" {
			continue
		}
		out = append(out, a)
	}
	n.Attr = out
}

// IsContinuation reports whether n carries the continuation marker.
func IsContinuation(n *Node) bool {
	if !n.IsElement() {
		return false
	}
	_, ok := n.Attribute(ContinuedAttr)
	return ok
}

// MarkContinuation sets the continuation marker on an element.
func MarkContinuation(n *Node) {
	if n.IsElement() {
		n.SetAttribute(ContinuedAttr, "true")
	}
}

// SameShape reports whether a and b are the same element with the same
// attributes, ignoring the continuation marker.
func SameShape(a, b *Node) bool {
	if !a.IsElement() || !b.IsElement() || a.Data != b.Data {
		return false
	}
	return attrKey(a) == attrKey(b)
}

func attrKey(n *Node) string {
	var b strings.Builder
	for _, a := range n.Attr {
		if a.Key == ContinuedAttr {
			continue
		}
		b.WriteString(a.Namespace)
		b.WriteByte(':')
		b.WriteString(a.Key)
		b.WriteByte('=')
		b.WriteString(a.Val)
		b.WriteByte(0)
	}
	return b.String()
}

// Walk visits n and its descendants in document order. Returning false from
// fn skips the children of the visited node.
func Walk(n *Node, fn func(*Node) bool) {
	if n == nil {
		return
	}
	if !fn(n) {
		return
	}
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		Walk(c, fn)
		c = next
	}
}

// TextContent concatenates all text below n.
func TextContent(n *Node) string {
	var b strings.Builder
	Walk(n, func(c *Node) bool {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
		return true
	})
	return b.String()
}

// RuneLen is the length of s in runes, the unit of all text offsets.
func RuneLen(s string) int {
	return utf8.RuneCountInString(s)
}

// IsBlank reports whether n holds no visible content: no non-space text and
// no images.
func IsBlank(n *Node) bool {
	blank := true
	Walk(n, func(c *Node) bool {
		if !blank {
			return false
		}
		switch {
		case c.Type == html.TextNode:
			if strings.TrimFunc(c.Data, unicode.IsSpace) != "" {
				blank = false
			}
		case c.IsElement("img"):
			blank = false
		}
		return blank
	})
	return blank
}

// FirstLeaf returns the innermost first descendant of n, or nil if n has no
// children.
func FirstLeaf(n *Node) *Node {
	if n == nil || n.FirstChild == nil {
		return nil
	}
	c := n.FirstChild
	for c.FirstChild != nil {
		c = c.FirstChild
	}
	return c
}

// LastLeaf returns the innermost last descendant of n, or nil if n has no
// children.
func LastLeaf(n *Node) *Node {
	if n == nil || n.LastChild == nil {
		return nil
	}
	c := n.LastChild
	for c.LastChild != nil {
		c = c.LastChild
	}
	return c
}

// ReplaceChildren empties dst and moves every child of src into it.
func ReplaceChildren(dst, src *Node) {
	for dst.FirstChild != nil {
		dst.RemoveChild(dst.FirstChild)
	}
	for src.FirstChild != nil {
		dst.AppendChild(src.FirstChild)
	}
}

// Normalize merges split artifacts below n: adjacent text nodes are joined and
// every continuation element is folded into its preceding same-shape sibling.
func Normalize(n *Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		prev := c.PrevSibling
		switch {
		case prev != nil && prev.IsText() && c.IsText():
			prev.Data += c.Data
			n.RemoveChild(c)
		case prev != nil && IsContinuation(c) && SameShape(prev, c):
			for c.FirstChild != nil {
				prev.AppendChild(c.FirstChild)
			}
			n.RemoveChild(c)
		case c.IsText() && c.Data == "":
			n.RemoveChild(c)
		}
		c = next
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		Normalize(c)
	}
}

// StripContinuations removes every continuation marker below n.
func StripContinuations(n *Node) {
	Walk(n, func(c *Node) bool {
		if c.IsElement() {
			c.RemoveAttribute(ContinuedAttr)
		}
		return true
	})
}
