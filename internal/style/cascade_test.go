package style

import (
	"math"
	"testing"

	"github.com/qwill/qwill/internal/parser/html"
)

func firstElement(t *testing.T, markup, tag string) *html.Node {
	t.Helper()
	var found *html.Node
	html.Walk(html.ParseFragment(markup), func(n *html.Node) bool {
		if found == nil && n.IsElement(tag) {
			found = n
		}
		return found == nil
	})
	if found == nil {
		t.Fatalf("no <%s> in %q", tag, markup)
	}
	return found
}

func TestComputeUserAgentAndInline(t *testing.T) {
	engine := NewStyleEngine()

	h1 := engine.Compute(firstElement(t, "<h1>Title</h1>", "h1"))
	if h1.Get("font-size") != "2em" || h1.Get("font-weight") != "bold" {
		t.Errorf("h1 style = %v", h1)
	}
	if h1.Get("margin-top") != "0.67em" || h1.Get("margin-left") != "0" {
		t.Errorf("margin shorthand not expanded: %v", h1)
	}

	p := engine.Compute(firstElement(t, `<p style="margin-top: 4px; font-size: 20px">x</p>`, "p"))
	if p.Get("margin-top") != "4px" {
		t.Errorf("inline margin-top = %q, want 4px", p.Get("margin-top"))
	}
	if p.Get("margin-bottom") != "1em" {
		t.Errorf("user agent margin-bottom = %q, want 1em", p.Get("margin-bottom"))
	}
	if p.Get("font-size") != "20px" {
		t.Errorf("inline font-size = %q", p.Get("font-size"))
	}
}

func TestDescendantSelector(t *testing.T) {
	engine := NewStyleEngine()
	nested := engine.Compute(firstElement(t, "<ul><li><ol><li>x</li></ol></li></ul>", "ol"))
	if nested.Get("margin-top") != "0" {
		t.Errorf("nested list margin-top = %q, want 0", nested.Get("margin-top"))
	}
}

func TestLength(t *testing.T) {
	tests := []struct {
		value string
		want  float64
		ok    bool
	}{
		{"12px", 12, true},
		{"1.5em", 24, true},
		{"2rem", 32, true},
		{"72pt", 96, true},
		{"1in", 96, true},
		{"50%", 300, true},
		{"7", 7, true},
		{"auto", 0, false},
		{"", 0, false},
		{"wide", 0, false},
	}
	for _, tt := range tests {
		got, ok := Length(tt.value, 16, 600)
		if ok != tt.ok || math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Length(%q) = %v, %v; want %v, %v", tt.value, got, ok, tt.want, tt.ok)
		}
	}
}

func TestFontSizeAndLineHeight(t *testing.T) {
	cs := ComputedStyle{
		"font-size":   {Name: "font-size", Value: "1.5em"},
		"line-height": {Name: "line-height", Value: "30px"},
	}
	size := cs.FontSize(16)
	if size != 24 {
		t.Fatalf("FontSize = %v, want 24", size)
	}
	if lh := cs.LineHeight(1.5, size); lh != 1.25 {
		t.Errorf("LineHeight = %v, want 1.25", lh)
	}
	if lh := (ComputedStyle{}).LineHeight(1.5, size); lh != 1.5 {
		t.Errorf("inherited LineHeight = %v, want 1.5", lh)
	}
}
