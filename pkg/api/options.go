package api

import (
	"fmt"

	"github.com/qwill/qwill/internal/config"
	"github.com/qwill/qwill/internal/pagination"
)

// Options represents configuration options for the editor
type Options struct {
	// Page dimensions in points
	PageWidth  float64
	PageHeight float64
	// Page orientation: portrait or landscape
	PageOrientation PageOrientation

	// Page margins in points
	MarginTop    float64
	MarginRight  float64
	MarginBottom float64
	MarginLeft   float64

	// DPI converts points to the px the layout works in
	DPI   float64
	Debug bool

	// Document font. FontFamily is a CSS family list, FontSize is in px and
	// LineHeight a multiple of FontSize.
	FontFamily string
	FontSize   float64
	LineHeight float64

	// Stylesheet is author CSS applied to page content
	Stylesheet string

	// MaxPasses bounds the balancing passes run for one edit
	MaxPasses int

	// Resource paths searched for relative image sources
	ResourcePaths []string
	// InlineResourcesOnly limits images to data URLs
	InlineResourcesOnly bool

	// Document metadata used by exports
	Title    string
	Author   string
	Subject  string
	Keywords string
}

// Option is a function that modifies Options
type Option func(*Options)

// PageOrientation represents page orientation
type PageOrientation string

const (
	// PageOrientationPortrait sets the page to portrait orientation
	PageOrientationPortrait PageOrientation = "portrait"
	// PageOrientationLandscape sets the page to landscape orientation
	PageOrientationLandscape PageOrientation = "landscape"
)

// DefaultOptions returns US Letter pages with 1in margins at 96 DPI, set in
// a 16px serif.
func DefaultOptions() Options {
	return Options{
		PageWidth:       PageSizeLetterWidth,
		PageHeight:      PageSizeLetterHeight,
		PageOrientation: PageOrientationPortrait,

		// 1 inch = 72 points
		MarginTop:    72,
		MarginRight:  72,
		MarginBottom: 72,
		MarginLeft:   72,

		DPI: 96,

		FontFamily: "serif",
		FontSize:   16,
		LineHeight: 1.5,

		MaxPasses: pagination.DefaultMaxPasses,
	}
}

// FromConfig builds options from the environment configuration.
func FromConfig(cfg config.PageConfig) (Options, error) {
	o := DefaultOptions()
	size, ok := pagination.LookupPageSize(cfg.Size)
	if !ok {
		return o, fmt.Errorf("unknown page size %q", cfg.Size)
	}
	WithPageSize(size.Width, size.Height)(&o)
	if cfg.MarginIn >= 0 {
		m := cfg.MarginIn * 72
		WithMargins(m, m, m, m)(&o)
	}
	if cfg.DPI > 0 {
		o.DPI = cfg.DPI
	}
	if cfg.Font != "" {
		o.FontFamily = cfg.Font
	}
	if cfg.FontSize > 0 {
		o.FontSize = cfg.FontSize
	}
	if cfg.LineHeight > 0 {
		o.LineHeight = cfg.LineHeight
	}
	return o, nil
}

// pageSize returns the page size with the orientation applied.
func (o Options) pageSize() pagination.PageSize {
	w, h := o.PageWidth, o.PageHeight
	switch o.PageOrientation {
	case PageOrientationLandscape:
		if w < h {
			w, h = h, w
		}
	default:
		if w > h {
			w, h = h, w
		}
	}
	return pagination.PageSize{Width: w, Height: h}
}

func (o Options) margins() pagination.Margins {
	return pagination.Margins{Top: o.MarginTop, Right: o.MarginRight, Bottom: o.MarginBottom, Left: o.MarginLeft}
}

// ContentBox returns the width and height in px available to page content.
func (o Options) ContentBox() (float64, float64) {
	return pagination.ContentBox(o.pageSize(), o.margins(), o.DPI)
}

// WithPageSize sets the page size
func WithPageSize(width, height float64) Option {
	return func(o *Options) {
		o.PageWidth = width
		o.PageHeight = height
	}
}

// WithMargins sets the page margins
func WithMargins(top, right, bottom, left float64) Option {
	return func(o *Options) {
		o.MarginTop = top
		o.MarginRight = right
		o.MarginBottom = bottom
		o.MarginLeft = left
	}
}

// WithDPI sets the DPI
func WithDPI(dpi float64) Option {
	return func(o *Options) {
		o.DPI = dpi
	}
}

// WithDebug sets the debug mode
func WithDebug(debug bool) Option {
	return func(o *Options) {
		o.Debug = debug
	}
}

// WithFont sets the document font family and size
func WithFont(family string, size float64) Option {
	return func(o *Options) {
		o.FontFamily = family
		if size > 0 {
			o.FontSize = size
		}
	}
}

// WithLineHeight sets the line height as a multiple of the font size
func WithLineHeight(lineHeight float64) Option {
	return func(o *Options) {
		o.LineHeight = lineHeight
	}
}

// WithStylesheet sets the author stylesheet
func WithStylesheet(stylesheet string) Option {
	return func(o *Options) {
		o.Stylesheet = stylesheet
	}
}

// WithMaxPasses bounds the balancing passes per edit
func WithMaxPasses(n int) Option {
	return func(o *Options) {
		o.MaxPasses = n
	}
}

// WithResourcePath adds a path to search for resources
func WithResourcePath(path string) Option {
	return func(o *Options) {
		o.ResourcePaths = append(o.ResourcePaths, path)
	}
}

// WithInlineResourcesOnly refuses image sources other than data URLs
func WithInlineResourcesOnly() Option {
	return func(o *Options) {
		o.InlineResourcesOnly = true
	}
}

// WithTitle sets the document title
func WithTitle(title string) Option {
	return func(o *Options) {
		o.Title = title
	}
}

// WithAuthor sets the document author
func WithAuthor(author string) Option {
	return func(o *Options) {
		o.Author = author
	}
}

// WithSubject sets the document subject
func WithSubject(subject string) Option {
	return func(o *Options) {
		o.Subject = subject
	}
}

// WithKeywords sets the document keywords
func WithKeywords(keywords string) Option {
	return func(o *Options) {
		o.Keywords = keywords
	}
}

// WithPageOrientation sets the page orientation
func WithPageOrientation(orientation PageOrientation) Option {
	return func(o *Options) {
		o.PageOrientation = orientation
	}
}

// Standard page sizes in points (1/72 inch)
const (
	PageSizeA4Width  = 595.28
	PageSizeA4Height = 841.89
	PageSizeA5Width  = 419.53
	PageSizeA5Height = 595.28

	// US Letter and Legal
	PageSizeLetterWidth  = 612
	PageSizeLetterHeight = 792
	PageSizeLegalWidth   = 612
	PageSizeLegalHeight  = 1008
)

// WithPageSizeA4 sets the page size to A4
func WithPageSizeA4() Option {
	return WithPageSize(PageSizeA4Width, PageSizeA4Height)
}

// WithPageSizeLetter sets the page size to US Letter
func WithPageSizeLetter() Option {
	return WithPageSize(PageSizeLetterWidth, PageSizeLetterHeight)
}

// WithPageSizeLegal sets the page size to US Legal
func WithPageSizeLegal() Option {
	return WithPageSize(PageSizeLegalWidth, PageSizeLegalHeight)
}
