package layout

import (
	"github.com/qwill/qwill/internal/caret"
	"github.com/qwill/qwill/internal/metrics"
	"github.com/qwill/qwill/internal/parser/html"
)

// Epsilon absorbs sub-pixel rounding when comparing extents.
const Epsilon = 1.0

// Surface is a measurable render target with a fixed content box. Root is the
// live content; UsedExtent and AvailableExtent are measured along the flow
// axis in px.
type Surface interface {
	Root() *html.Node
	UsedExtent() float64
	AvailableExtent() float64
}

// Overflowing reports whether the content of s exceeds its box.
func Overflowing(s Surface) bool {
	return s.UsedExtent() > s.AvailableExtent()+Epsilon
}

// WouldFit reports whether appending candidate to the content of s keeps it
// within its box. candidate is detached again before returning.
func WouldFit(s Surface, candidate *html.Node) bool {
	s.Root().AppendChild(candidate)
	fits := !Overflowing(s)
	candidate.Detach()
	return fits
}

// PageSurface is a headless surface: it owns a content root and measures it
// with a layout engine. It also tracks the page's selection.
type PageSurface struct {
	engine *Engine
	root   *html.Node

	selection    caret.Selection
	hasSelection bool
}

// NewPageSurface creates an empty surface laid out by engine
func NewPageSurface(engine *Engine) *PageSurface {
	return &PageSurface{engine: engine, root: html.NewRoot()}
}

func (s *PageSurface) Root() *html.Node { return s.root }

// AvailableExtent is the height of the content box.
func (s *PageSurface) AvailableExtent() float64 {
	return s.engine.Options().Height
}

// UsedExtent measures the content. Measurement stops once the content is
// known to overflow, so an overflowing page reports a lower bound.
func (s *PageSurface) UsedExtent() float64 {
	metrics.IncProbe()
	return s.engine.Measure(s.root, s.limit()).Height
}

// Fold returns the index of the first top-level child that starts below the
// content box, or -1 when every child starts inside it.
func (s *PageSurface) Fold() int {
	metrics.IncProbe()
	return s.engine.Measure(s.root, s.limit()).Fold
}

// Layout lays out the full content for painting.
func (s *PageSurface) Layout() *Result {
	return s.engine.Layout(s.root)
}

func (s *PageSurface) limit() float64 {
	return s.AvailableExtent() + Epsilon
}

// Selection returns the current selection when it still points into the
// content.
func (s *PageSurface) Selection() (caret.Selection, bool) {
	if !s.hasSelection || !s.selection.Within(s.root) {
		return caret.Selection{}, false
	}
	return s.selection, true
}

// Select sets the selection.
func (s *PageSurface) Select(sel caret.Selection) {
	s.selection = sel
	s.hasSelection = true
}

// ClearSelection drops the selection.
func (s *PageSurface) ClearSelection() {
	s.selection = caret.Selection{}
	s.hasSelection = false
}
