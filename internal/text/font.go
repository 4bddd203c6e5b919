package text

import (
	"strings"
	"sync"

	"codeberg.org/go-pdf/fpdf"
)

// Core font families. Measurement and PDF export both use the fpdf core fonts,
// so a page that fits on screen fits on paper.
const (
	FamilySans  = "Helvetica"
	FamilySerif = "Times"
	FamilyMono  = "Courier"
)

// Font represents a resolved font. Size is in px and LineHeight is a multiple
// of Size.
type Font struct {
	Family     string
	Style      string
	Size       float64
	LineHeight float64
}

// Line returns the height of one line set in f.
func (f Font) Line() float64 {
	return f.Size * f.LineHeight
}

// Bold reports whether the style carries the bold flag.
func (f Font) Bold() bool { return strings.Contains(f.Style, "B") }

// Italic reports whether the style carries the italic flag.
func (f Font) Italic() bool { return strings.Contains(f.Style, "I") }

// WithStyle returns f with its bold/italic flags replaced.
func (f Font) WithStyle(bold, italic bool) Font {
	f.Style = ""
	if bold {
		f.Style += "B"
	}
	if italic {
		f.Style += "I"
	}
	return f
}

// ResolveFamily maps a CSS font-family list to a core family. Unknown names
// keep fallback.
func ResolveFamily(cssFamily, fallback string) string {
	for _, name := range strings.Split(cssFamily, ",") {
		name = strings.ToLower(strings.TrimSpace(strings.Trim(strings.TrimSpace(name), `'"`)))
		switch name {
		case "arial", "helvetica", "sans-serif", "sans", "verdana", "inter", "roboto", "calibri", "system-ui":
			return FamilySans
		case "times", "times new roman", "serif", "georgia", "cambria", "garamond":
			return FamilySerif
		case "courier", "courier new", "monospace", "mono", "consolas", "menlo":
			return FamilyMono
		}
	}
	return fallback
}

// Measurer reports the advance width of a rune in px.
type Measurer interface {
	Advance(r rune, f Font) float64
}

// Metrics measures runes with the fpdf core font tables. Widths are cached
// per family, style and rune in font units and scaled by size on use.
type Metrics struct {
	mu    sync.Mutex
	pdf   *fpdf.Fpdf
	tr    func(string) string
	units map[advanceKey]float64
}

type advanceKey struct {
	family string
	style  string
	r      rune
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// DefaultMetrics returns the process-wide core font metrics.
func DefaultMetrics() *Metrics {
	defaultOnce.Do(func() {
		defaultMetrics = NewMetrics()
	})
	return defaultMetrics
}

// NewMetrics creates a measurer backed by its own fpdf instance.
func NewMetrics() *Metrics {
	pdf := fpdf.New("P", "pt", "", "")
	pdf.SetFont(FamilySans, "", 12)
	return &Metrics{
		pdf:   pdf,
		tr:    pdf.UnicodeTranslatorFromDescriptor(""),
		units: make(map[advanceKey]float64),
	}
}

// Advance returns the width of r set in f.
func (m *Metrics) Advance(r rune, f Font) float64 {
	if f.Size <= 0 {
		return 0
	}
	key := advanceKey{family: f.Family, style: f.Style, r: r}

	m.mu.Lock()
	defer m.mu.Unlock()

	units, ok := m.units[key]
	if !ok {
		m.pdf.SetFont(f.Family, f.Style, 1000)
		units = m.pdf.GetStringWidth(m.tr(string(r)))
		m.units[key] = units
	}
	return units * f.Size / 1000
}

// Width returns the width of s set in f.
func Width(m Measurer, s string, f Font) float64 {
	w := 0.0
	for _, r := range s {
		w += m.Advance(r, f)
	}
	return w
}
