package layout

import (
	"strconv"
	"strings"

	"github.com/qwill/qwill/internal/parser/html"
	"github.com/qwill/qwill/internal/style"
)

// defaultImageSize is used for images whose size cannot be determined
const defaultImageSize = 40

// imageSize sizes an image from its style, then its attributes, then its
// intrinsic size. The aspect ratio is kept when only one side is given and
// images never exceed the line width.
func (st *state) imageSize(n *html.Node, ctx context) (float64, float64) {
	cs := st.style(n)
	width, hasWidth := dimension(n, cs, "width", ctx)
	height, hasHeight := dimension(n, cs, "height", ctx)

	iw, ih := float64(defaultImageSize), float64(defaultImageSize)
	if src, ok := n.Attribute("src"); ok && st.engine.images != nil {
		if w, h, ok := st.engine.images.ImageSize(src); ok && w > 0 && h > 0 {
			iw, ih = w, h
		}
	}

	switch {
	case hasWidth && hasHeight:
	case hasWidth:
		height = width * ih / iw
	case hasHeight:
		width = height * iw / ih
	default:
		width, height = iw, ih
	}

	if width > ctx.width && width > 0 {
		height = height * ctx.width / width
		width = ctx.width
	}
	return width, height
}

func dimension(n *html.Node, cs style.ComputedStyle, name string, ctx context) (float64, bool) {
	if v, ok := style.Length(cs.Get(name), ctx.font.Size, ctx.width); ok && v > 0 {
		return v, true
	}
	attr, ok := n.Attribute(name)
	if !ok {
		return 0, false
	}
	attr = strings.TrimSpace(attr)
	if strings.HasSuffix(attr, "%") {
		v, ok := style.Length(attr, ctx.font.Size, ctx.width)
		return v, ok && v > 0
	}
	v, err := strconv.ParseFloat(strings.TrimSuffix(attr, "px"), 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}
