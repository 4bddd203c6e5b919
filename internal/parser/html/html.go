package html

import (
	"bytes"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Node types re-exported so callers do not need x/net/html.
const (
	ErrorNode    = html.ErrorNode
	TextNode     = html.TextNode
	DocumentNode = html.DocumentNode
	ElementNode  = html.ElementNode
	CommentNode  = html.CommentNode
)

// Attribute is a single key/value pair on an element.
type Attribute = html.Attribute

// Parser represents an HTML parser
type Parser struct{}

// Node represents an HTML node in the document tree
type Node struct {
	Type        html.NodeType
	Data        string
	Attr        []html.Attribute
	Parent      *Node
	FirstChild  *Node
	LastChild   *Node
	PrevSibling *Node
	NextSibling *Node
}

// Document represents a parsed HTML document
type Document struct {
	Root *Node
}

// NewParser creates a new HTML parser
func NewParser() *Parser {
	return &Parser{}
}

// ParseString parses a complete HTML document from a string
func (p *Parser) ParseString(content string) (*Document, error) {
	return p.Parse(strings.NewReader(content))
}

// Parse parses a complete HTML document from an io.Reader
func (p *Parser) Parse(r io.Reader) (*Document, error) {
	node, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	root := convertNode(node, nil)
	return &Document{Root: root}, nil
}

// ParseFragment parses markup as the content of a page. The returned root is a
// detached document node whose children are the fragment's top-level nodes.
func (p *Parser) ParseFragment(r io.Reader) (*Node, error) {
	context := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(r, context)
	if err != nil {
		return nil, err
	}

	root := NewRoot()
	for _, n := range nodes {
		if child := convertNode(n, nil); child != nil {
			root.AppendChild(child)
		}
	}
	return root, nil
}

// ParseFragment parses content with a default parser. Reading from a string
// cannot fail, so neither can this.
func ParseFragment(content string) *Node {
	root, err := NewParser().ParseFragment(strings.NewReader(content))
	if err != nil {
		return NewRoot()
	}
	return root
}

// Body returns the body element of a parsed document, or the root if there is none.
func (d *Document) Body() *Node {
	var body *Node
	Walk(d.Root, func(n *Node) bool {
		if body != nil {
			return false
		}
		if n.IsElement("body") {
			body = n
			return false
		}
		return true
	})
	if body == nil {
		return d.Root
	}
	return body
}

// convertNode converts an html.Node to our Node structure. Comments and
// doctypes carry no content and are dropped.
func convertNode(n *html.Node, parent *Node) *Node {
	if n == nil || n.Type == html.CommentNode || n.Type == html.DoctypeNode {
		return nil
	}

	node := &Node{
		Type:   n.Type,
		Data:   n.Data,
		Attr:   append([]html.Attribute(nil), n.Attr...),
		Parent: parent,
	}

	var lastChild *Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		child := convertNode(c, node)
		if child == nil {
			continue
		}
		if node.FirstChild == nil {
			node.FirstChild = child
		}
		if lastChild != nil {
			lastChild.NextSibling = child
			child.PrevSibling = lastChild
		}
		lastChild = child
	}
	node.LastChild = lastChild

	return node
}

// Render renders the document back to HTML
func (d *Document) Render() (string, error) {
	var buf bytes.Buffer
	if err := renderNode(&buf, d.Root); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Render serializes the children of root. The root itself is a container and
// is not written.
func Render(root *Node) string {
	if root == nil {
		return ""
	}
	var buf bytes.Buffer
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		_ = renderNode(&buf, c)
	}
	return buf.String()
}

// Canonical parses content, normalizes it and renders it again. Two fragments
// with the same canonical form lay out identically.
func Canonical(content string) string {
	root := ParseFragment(content)
	Normalize(root)
	return Render(root)
}

// renderNode renders a node and all of its descendants to HTML
func renderNode(w io.Writer, n *Node) error {
	if n == nil {
		return nil
	}
	return html.Render(w, toHTML(n))
}

func toHTML(n *Node) *html.Node {
	node := &html.Node{
		Type:     n.Type,
		Data:     n.Data,
		Attr:     n.Attr,
		DataAtom: atom.Lookup([]byte(n.Data)),
	}
	if n.Type != html.ElementNode {
		node.DataAtom = 0
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		node.AppendChild(toHTML(c))
	}
	return node
}
