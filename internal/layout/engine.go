package layout

import (
	"math"
	"strings"

	"github.com/qwill/qwill/internal/parser/html"
	"github.com/qwill/qwill/internal/style"
	"github.com/qwill/qwill/internal/text"
)

// Options represents the content box of a page and its base font
type Options struct {
	// Width and Height of the content box in px
	Width  float64
	Height float64
	// Font is the document font every element inherits from
	Font text.Font
}

// ImageSizer reports the intrinsic size of an image source in px.
type ImageSizer interface {
	ImageSize(src string) (width, height float64, ok bool)
}

// Engine lays out page content. It is safe for concurrent use as long as
// its setters are not called concurrently with Layout.
type Engine struct {
	options  Options
	measurer text.Measurer
	styles   *style.StyleEngine
	images   ImageSizer
}

// NewEngine creates a new layout engine
func NewEngine(options Options) *Engine {
	e := &Engine{
		measurer: text.DefaultMetrics(),
		styles:   style.NewStyleEngine(),
	}
	e.SetOptions(options)
	return e
}

// SetOptions sets the options for the layout engine, filling in defaults
func (e *Engine) SetOptions(options Options) {
	if options.Font.Family == "" {
		options.Font.Family = text.FamilySans
	}
	if options.Font.Size <= 0 {
		options.Font.Size = 16
	}
	if options.Font.LineHeight <= 0 {
		options.Font.LineHeight = 1.5
	}
	e.options = options
}

// Options returns the current options
func (e *Engine) Options() Options {
	return e.options
}

// SetMeasurer replaces the glyph measurer
func (e *Engine) SetMeasurer(m text.Measurer) {
	e.measurer = m
}

// SetImageSizer sets the source of intrinsic image sizes
func (e *Engine) SetImageSizer(s ImageSizer) {
	e.images = s
}

// SetStyles replaces the style engine
func (e *Engine) SetStyles(s *style.StyleEngine) {
	e.styles = s
}

// Layout lays out all content of root.
func (e *Engine) Layout(root *html.Node) *Result {
	return e.layout(root, math.Inf(1))
}

// Measure lays out root until the content passes limit. Everything below the
// limit is skipped, so the result only tells whether the content fits.
func (e *Engine) Measure(root *html.Node, limit float64) *Result {
	return e.layout(root, limit)
}

func (e *Engine) layout(root *html.Node, limit float64) *Result {
	st := &state{
		engine: e,
		styles: make(map[*html.Node]style.ComputedStyle),
		limit:  limit,
		fold:   -1,
	}
	ctx := context{font: e.options.Font, width: e.options.Width}
	st.flow(children(root), ctx, true)

	return &Result{
		Height: st.y + st.margin,
		Lines:  st.lines,
		Fold:   st.fold,
	}
}

// state is the mutable part of one layout run
type state struct {
	engine *Engine
	styles map[*html.Node]style.ComputedStyle
	limit  float64

	y      float64
	margin float64
	lines  []Line
	marker string

	stopped bool
	fold    int
}

// context is what a box passes down to its content
type context struct {
	font     text.Font
	deco     Decoration
	x        float64
	width    float64
	preserve bool
	align    string
}

func (st *state) style(n *html.Node) style.ComputedStyle {
	cs, ok := st.styles[n]
	if !ok {
		cs = st.engine.styles.Compute(n)
		st.styles[n] = cs
	}
	return cs
}

// inherit derives the context of an element's content from its parent's.
func (st *state) inherit(n *html.Node, ctx context) context {
	cs := st.style(n)
	inner := ctx
	inner.font = resolveFont(cs, ctx.font)

	if td := cs.Get("text-decoration"); td != "" {
		inner.deco.Underline = strings.Contains(td, "underline")
		inner.deco.Strike = strings.Contains(td, "line-through")
	}
	if c := cs.Get("color"); c != "" {
		inner.deco.Color = c
	}
	switch cs.Get("white-space") {
	case "pre", "pre-wrap", "pre-line", "break-spaces":
		inner.preserve = true
	case "normal", "nowrap":
		inner.preserve = false
	}
	if a := cs.Get("text-align"); a != "" {
		inner.align = a
	}
	return inner
}

func resolveFont(cs style.ComputedStyle, parent text.Font) text.Font {
	f := parent
	f.Size = cs.FontSize(parent.Size)
	f.LineHeight = cs.LineHeight(parent.LineHeight, f.Size)
	if family := cs.Get("font-family"); family != "" {
		f.Family = text.ResolveFamily(family, parent.Family)
	}

	bold, italic := parent.Bold(), parent.Italic()
	switch strings.TrimSpace(cs.Get("font-weight")) {
	case "bold", "bolder", "600", "700", "800", "900":
		bold = true
	case "normal", "lighter", "100", "200", "300", "400", "500":
		bold = false
	}
	switch strings.TrimSpace(cs.Get("font-style")) {
	case "italic", "oblique":
		italic = true
	case "normal":
		italic = false
	}
	return f.WithStyle(bold, italic)
}

func children(n *html.Node) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		out = append(out, c)
	}
	return out
}
