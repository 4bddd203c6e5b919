package style

import (
	"strings"

	"github.com/qwill/qwill/internal/parser/css"
	"github.com/qwill/qwill/internal/parser/html"
)

// Specificity represents the specificity of a CSS selector
type Specificity struct {
	ID      int
	Class   int
	Element int
}

// StyleProperty represents a computed style property
type StyleProperty struct {
	Name        string
	Value       string
	Important   bool
	Source      Source
	Specificity Specificity
}

// Source represents the source of a style property
type Source int

const (
	SourceUserAgent Source = iota
	SourceAuthor
	SourceInline
)

// ComputedStyle holds the declared properties of one element. Inherited
// properties are resolved by the layout engine while walking the tree.
type ComputedStyle map[string]StyleProperty

// Get returns the value of a property, or "" when it is not declared.
func (cs ComputedStyle) Get(name string) string {
	return cs[name].Value
}

// StyleEngine handles the CSS cascade and style computation
type StyleEngine struct {
	userAgentStyles *css.Stylesheet
	authorStyles    []*css.Stylesheet
}

// NewStyleEngine creates a new style engine with the editor's user agent sheet
func NewStyleEngine() *StyleEngine {
	return &StyleEngine{
		userAgentStyles: defaultUserAgentStyles(),
	}
}

// AddStylesheet adds an author stylesheet to the style engine
func (e *StyleEngine) AddStylesheet(stylesheet *css.Stylesheet) {
	e.authorStyles = append(e.authorStyles, stylesheet)
}

// ComputeStyles computes styles for every element below root
func (e *StyleEngine) ComputeStyles(root *html.Node) map[*html.Node]ComputedStyle {
	result := make(map[*html.Node]ComputedStyle)
	html.Walk(root, func(n *html.Node) bool {
		if n.IsElement() {
			result[n] = e.Compute(n)
		}
		return true
	})
	return result
}

// Compute computes the style for a single element
func (e *StyleEngine) Compute(node *html.Node) ComputedStyle {
	style := make(ComputedStyle)

	e.applyStylesheet(style, node, e.userAgentStyles, SourceUserAgent)
	for _, stylesheet := range e.authorStyles {
		e.applyStylesheet(style, node, stylesheet, SourceAuthor)
	}
	if inline, ok := node.Attribute("style"); ok {
		e.applyDeclarations(style, css.ParseDeclarations(inline), Specificity{ID: 1}, SourceInline)
	}

	return style
}

func (e *StyleEngine) applyStylesheet(style ComputedStyle, node *html.Node, stylesheet *css.Stylesheet, source Source) {
	if stylesheet == nil {
		return
	}
	for _, rule := range stylesheet.Rules {
		for _, selector := range rule.Selectors {
			if selectorMatches(node, selector) {
				e.applyDeclarations(style, rule.Declarations, calculateSpecificity(selector), source)
			}
		}
	}
}

// applyDeclarations lets a declaration win over an existing one when it is
// more important, comes from a later source, or is more specific.
func (e *StyleEngine) applyDeclarations(style ComputedStyle, declarations []*css.Declaration, specificity Specificity, source Source) {
	for _, decl := range declarations {
		for _, property := range expand(decl) {
			existing, exists := style[property.Name]
			if exists {
				if existing.Important && !decl.Important {
					continue
				}
				if existing.Important == decl.Important && source == existing.Source &&
					compareSpecificity(specificity, existing.Specificity) < 0 {
					continue
				}
				if existing.Important == decl.Important && source < existing.Source {
					continue
				}
			}
			property.Important = decl.Important
			property.Source = source
			property.Specificity = specificity
			style[property.Name] = property
		}
	}
}

// expand splits the box shorthands into longhands so later longhand
// declarations override the matching side only.
func expand(decl *css.Declaration) []StyleProperty {
	switch decl.Property {
	case "margin", "padding":
		t, r, b, l := boxSides(decl.Value)
		return []StyleProperty{
			{Name: decl.Property + "-top", Value: t},
			{Name: decl.Property + "-right", Value: r},
			{Name: decl.Property + "-bottom", Value: b},
			{Name: decl.Property + "-left", Value: l},
		}
	case "font":
		return expandFont(decl.Value)
	}
	return []StyleProperty{{Name: decl.Property, Value: decl.Value}}
}

func boxSides(value string) (string, string, string, string) {
	parts := strings.Fields(value)
	switch len(parts) {
	case 0:
		return "", "", "", ""
	case 1:
		return parts[0], parts[0], parts[0], parts[0]
	case 2:
		return parts[0], parts[1], parts[0], parts[1]
	case 3:
		return parts[0], parts[1], parts[2], parts[1]
	default:
		return parts[0], parts[1], parts[2], parts[3]
	}
}

// expandFont handles the common "[style] [weight] size[/line-height] family" form.
func expandFont(value string) []StyleProperty {
	var out []StyleProperty
	parts := strings.Fields(value)
	for i, p := range parts {
		switch {
		case p == "italic" || p == "oblique":
			out = append(out, StyleProperty{Name: "font-style", Value: "italic"})
		case p == "bold" || p == "bolder" || p == "700" || p == "800" || p == "900":
			out = append(out, StyleProperty{Name: "font-weight", Value: "bold"})
		case len(p) > 0 && (p[0] >= '0' && p[0] <= '9' || p[0] == '.'):
			size, lh, _ := strings.Cut(p, "/")
			out = append(out, StyleProperty{Name: "font-size", Value: size})
			if lh != "" {
				out = append(out, StyleProperty{Name: "line-height", Value: lh})
			}
			if i+1 < len(parts) {
				out = append(out, StyleProperty{Name: "font-family", Value: strings.Join(parts[i+1:], " ")})
			}
			return out
		}
	}
	return out
}

// selectorMatches checks if an element matches a descendant selector chain
func selectorMatches(node *html.Node, selector string) bool {
	parts := strings.Fields(selector)
	if len(parts) == 0 || node == nil {
		return false
	}
	if !matchCompoundSelector(node, parts[len(parts)-1]) {
		return false
	}

	current := node.Parent
	for i := len(parts) - 2; i >= 0; i-- {
		found := false
		for anc := current; anc != nil; anc = anc.Parent {
			if matchCompoundSelector(anc, parts[i]) {
				found = true
				current = anc.Parent
				break
			}
		}
		if !found {
			return false
		}
	}

	return true
}

// matchCompoundSelector matches forms like tag, .class, #id and
// tag#id.class1.class2. Attributes and pseudo-classes never match.
func matchCompoundSelector(node *html.Node, sel string) bool {
	if !node.IsElement() || sel == "" {
		return false
	}

	var wantTag, wantID string
	var wantClasses []string

	i := 0
	if sel[i] != '.' && sel[i] != '#' {
		j := i
		for j < len(sel) && sel[j] != '#' && sel[j] != '.' {
			j++
		}
		wantTag = sel[i:j]
		i = j
	}
	for i < len(sel) {
		j := i + 1
		for j < len(sel) && sel[j] != '.' && sel[j] != '#' {
			j++
		}
		switch sel[i] {
		case '#':
			wantID = sel[i+1 : j]
		case '.':
			wantClasses = append(wantClasses, sel[i+1:j])
		}
		i = j
	}
	if strings.ContainsAny(wantTag, ":[") {
		return false
	}

	if wantTag != "" && wantTag != "*" && !strings.EqualFold(wantTag, node.Data) {
		return false
	}
	if wantID != "" {
		if id, _ := node.Attribute("id"); id != wantID {
			return false
		}
	}
	if len(wantClasses) > 0 {
		classAttr, _ := node.Attribute("class")
		have := make(map[string]struct{})
		for _, c := range strings.Fields(classAttr) {
			have[c] = struct{}{}
		}
		for _, need := range wantClasses {
			if _, ok := have[need]; !ok {
				return false
			}
		}
	}

	return true
}

func calculateSpecificity(selector string) Specificity {
	specificity := Specificity{
		ID:    strings.Count(selector, "#"),
		Class: strings.Count(selector, "."),
	}
	for _, part := range strings.Fields(selector) {
		if part[0] != '.' && part[0] != '#' && part[0] != '*' {
			specificity.Element++
		}
	}
	return specificity
}

func compareSpecificity(a, b Specificity) int {
	if a.ID != b.ID {
		return a.ID - b.ID
	}
	if a.Class != b.Class {
		return a.Class - b.Class
	}
	return a.Element - b.Element
}

// defaultUserAgentStyles is the page content sheet of the editor
func defaultUserAgentStyles() *css.Stylesheet {
	stylesheet, _ := css.NewParser().ParseString(`
		h1 { font-size: 2em; margin: 0.67em 0; font-weight: bold; }
		h2 { font-size: 1.5em; margin: 0.83em 0; font-weight: bold; }
		h3 { font-size: 1.17em; margin: 1em 0; font-weight: bold; }
		h4 { margin: 1.33em 0; font-weight: bold; }
		h5 { font-size: 0.83em; margin: 1.67em 0; font-weight: bold; }
		h6 { font-size: 0.67em; margin: 2.33em 0; font-weight: bold; }
		p { margin: 1em 0; }
		blockquote { margin: 1em 40px; }
		ul, ol { margin: 1em 0; padding-left: 40px; }
		li ul, li ol { margin: 0; }
		pre { white-space: pre; font-family: monospace; margin: 1em 0; }
		code, kbd, samp, tt { font-family: monospace; }
		hr { margin: 0.5em 0; }
		b, strong, th { font-weight: bold; }
		i, em, cite, var { font-style: italic; }
		u, ins { text-decoration: underline; }
		s, strike, del { text-decoration: line-through; }
		a { text-decoration: underline; color: #0000EE; }
		small { font-size: 0.83em; }
		big { font-size: 1.2em; }
	`)
	return stylesheet
}
