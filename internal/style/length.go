package style

import (
	"strconv"
	"strings"
)

// RootFontSize is the font size rem units resolve against, in px.
const RootFontSize = 16

// Length resolves a CSS length to px. em resolves against fontSize and
// percentages against base. ok is false for empty, auto or invalid values.
func Length(value string, fontSize, base float64) (float64, bool) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" || value == "auto" || value == "normal" {
		return 0, false
	}

	units := []struct {
		suffix string
		scale  float64
	}{
		{"px", 1},
		{"pt", 96.0 / 72.0},
		{"rem", RootFontSize},
		{"em", fontSize},
		{"in", 96},
		{"cm", 96 / 2.54},
		{"mm", 96 / 25.4},
		{"%", base / 100},
	}
	for _, u := range units {
		if strings.HasSuffix(value, u.suffix) {
			n, err := strconv.ParseFloat(strings.TrimSpace(value[:len(value)-len(u.suffix)]), 64)
			if err != nil {
				return 0, false
			}
			return n * u.scale, true
		}
	}

	n, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Side returns a resolved box side such as margin-top, or zero.
func (cs ComputedStyle) Side(property string, fontSize, base float64) float64 {
	v, _ := Length(cs.Get(property), fontSize, base)
	return v
}

// FontSize resolves font-size against the parent's size.
func (cs ComputedStyle) FontSize(parent float64) float64 {
	value := strings.ToLower(cs.Get("font-size"))
	switch value {
	case "":
		return parent
	case "small":
		return 13
	case "medium":
		return 16
	case "large":
		return 18
	case "x-large":
		return 24
	case "xx-large":
		return 32
	case "smaller":
		return parent / 1.2
	case "larger":
		return parent * 1.2
	}
	if v, ok := Length(value, parent, parent); ok && v > 0 {
		return v
	}
	return parent
}

// LineHeight resolves line-height to a multiple of fontSize. Unitless values
// are multipliers; lengths are converted.
func (cs ComputedStyle) LineHeight(parent, fontSize float64) float64 {
	value := strings.TrimSpace(cs.Get("line-height"))
	if value == "" {
		return parent
	}
	if value == "normal" {
		return 1.2
	}
	if n, err := strconv.ParseFloat(value, 64); err == nil && n > 0 {
		return n
	}
	if v, ok := Length(value, fontSize, fontSize); ok && v > 0 && fontSize > 0 {
		return v / fontSize
	}
	return parent
}
