package pagination

import (
	"strings"

	"github.com/google/uuid"

	"github.com/qwill/qwill/internal/parser/html"
)

// Page is one fixed-capacity container of the document. Content is a
// serialized fragment holding this page's share of the document.
type Page struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

// NewPage creates a page with a fresh id
func NewPage(content string) Page {
	return Page{ID: uuid.NewString(), Content: content}
}

// Concat joins the content of pages in order and folds the split artifacts
// back together, giving the document as one fragment.
func Concat(pages []Page) string {
	var b strings.Builder
	for _, p := range pages {
		b.WriteString(p.Content)
	}
	root := html.ParseFragment(b.String())
	html.Normalize(root)
	html.StripContinuations(root)
	return html.Render(root)
}

// PageSize represents a paper size in points (1/72 inch)
type PageSize struct {
	Width  float64
	Height float64
	Name   string
}

// Standard page sizes in points
var (
	PageSizeLetter = PageSize{Width: 612.00, Height: 792.00, Name: "Letter"}
	PageSizeLegal  = PageSize{Width: 612.00, Height: 1008.00, Name: "Legal"}
	PageSizeA4     = PageSize{Width: 595.28, Height: 841.89, Name: "A4"}
	PageSizeA5     = PageSize{Width: 419.53, Height: 595.28, Name: "A5"}
)

// LookupPageSize finds a standard size by case-insensitive name
func LookupPageSize(name string) (PageSize, bool) {
	for _, s := range []PageSize{PageSizeLetter, PageSizeLegal, PageSizeA4, PageSizeA5} {
		if strings.EqualFold(s.Name, name) {
			return s, true
		}
	}
	return PageSize{}, false
}

// Margins represents page margins in points
type Margins struct {
	Top    float64
	Right  float64
	Bottom float64
	Left   float64
}

// ContentBox returns the width and height in px of the area inside the
// margins at the given DPI.
func ContentBox(size PageSize, margins Margins, dpi float64) (float64, float64) {
	scale := dpi / 72
	return (size.Width - margins.Left - margins.Right) * scale,
		(size.Height - margins.Top - margins.Bottom) * scale
}

func contentOf(root *html.Node) string {
	clone := root.Clone()
	html.Normalize(clone)
	return html.Render(clone)
}

// unmarkLeading removes continuation markers from the leading edge of the
// first page. Nothing precedes them, so there is nothing to continue.
func unmarkLeading(root *html.Node) {
	for n := root.FirstChild; n != nil && n.IsElement(); n = n.FirstChild {
		n.RemoveAttribute(html.ContinuedAttr)
	}
}
