package layout

import "github.com/qwill/qwill/internal/text"

// Result is the laid out content of one page.
type Result struct {
	// Height is the used extent along the flow axis, in px. A measurement
	// stopped at a limit reports a height above that limit.
	Height float64
	Lines  []Line
	// Fold is the index of the first top-level child that starts below the
	// limit of a bounded measurement, or -1.
	Fold int
}

// Line is one line box.
type Line struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
	Runs   []Run
	// Marker is the list bullet or number drawn left of the first line of a
	// list item.
	Marker string
	Font   text.Font
}

// Run is a piece of a line set in one font, or one image.
type Run struct {
	X      float64
	Width  float64
	Height float64
	Text   string
	Font   text.Font
	Deco   Decoration
	Image  string
}

// Decoration carries the paint-only properties of inline content.
type Decoration struct {
	Underline bool
	Strike    bool
	Color     string
}
