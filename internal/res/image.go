package res

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"math"

	"github.com/rs/zerolog/log"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

// svgScale is the oversampling used when rasterizing SVG for embedding
const svgScale = 2

// Image is an image ready to embed in a PDF. Type is the fpdf image type.
// Width and Height are the intrinsic size in px.
type Image struct {
	Data   []byte
	Type   string
	Width  float64
	Height float64
}

type size struct {
	w, h float64
	ok   bool
}

// ImageSize reports the intrinsic size of an image source. It only decodes
// the image header, and the result is cached per source.
func (l *Loader) ImageSize(src string) (float64, float64, bool) {
	l.cacheLock.RLock()
	s, ok := l.sizes[src]
	l.cacheLock.RUnlock()
	if ok {
		return s.w, s.h, s.ok
	}

	s = l.measure(src)

	l.cacheLock.Lock()
	l.sizes[src] = s
	l.cacheLock.Unlock()
	return s.w, s.h, s.ok
}

func (l *Loader) measure(src string) size {
	res, err := l.LoadImage(src)
	if err != nil {
		log.Debug().Err(err).Str("src", truncate(src)).Msg("image size unavailable")
		return size{}
	}
	if res.IsSVG() {
		icon, err := oksvg.ReadIconStream(res.GetReader(), oksvg.IgnoreErrorMode)
		if err != nil || icon.ViewBox.W <= 0 || icon.ViewBox.H <= 0 {
			return size{}
		}
		return size{w: icon.ViewBox.W, h: icon.ViewBox.H, ok: true}
	}
	cfg, _, err := image.DecodeConfig(res.GetReader())
	if err != nil {
		log.Debug().Err(err).Str("src", truncate(src)).Msg("failed to decode image header")
		return size{}
	}
	return size{w: float64(cfg.Width), h: float64(cfg.Height), ok: true}
}

// Image loads src and converts it to a format a PDF can embed. PNG, JPEG and
// GIF pass through; other raster formats are re-encoded as PNG and SVG is
// rasterized.
func (l *Loader) Image(src string) (*Image, error) {
	res, err := l.LoadImage(src)
	if err != nil {
		return nil, err
	}
	if res.IsSVG() {
		return rasterizeSVG(res)
	}

	cfg, format, err := image.DecodeConfig(res.GetReader())
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	img := &Image{Width: float64(cfg.Width), Height: float64(cfg.Height)}

	switch format {
	case "png":
		img.Type, img.Data = "PNG", res.Data
	case "jpeg":
		img.Type, img.Data = "JPG", res.Data
	case "gif":
		img.Type, img.Data = "GIF", res.Data
	default:
		decoded, _, err := image.Decode(res.GetReader())
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s image: %w", format, err)
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, decoded); err != nil {
			return nil, fmt.Errorf("failed to encode image: %w", err)
		}
		img.Type, img.Data = "PNG", buf.Bytes()
	}
	return img, nil
}

func rasterizeSVG(res *Resource) (*Image, error) {
	icon, err := oksvg.ReadIconStream(res.GetReader(), oksvg.IgnoreErrorMode)
	if err != nil {
		return nil, fmt.Errorf("failed to parse svg: %w", err)
	}
	vw, vh := icon.ViewBox.W, icon.ViewBox.H
	if vw <= 0 || vh <= 0 {
		return nil, fmt.Errorf("svg has no size")
	}

	w := int(math.Ceil(vw * svgScale))
	h := int(math.Ceil(vh * svgScale))
	icon.SetTarget(0, 0, float64(w), float64(h))

	rgba := image.NewRGBA(image.Rect(0, 0, w, h))
	scanner := rasterx.NewScannerGV(w, h, rgba, rgba.Bounds())
	icon.Draw(rasterx.NewDasher(w, h, scanner), 1)

	var buf bytes.Buffer
	if err := png.Encode(&buf, rgba); err != nil {
		return nil, fmt.Errorf("failed to encode svg raster: %w", err)
	}
	return &Image{Data: buf.Bytes(), Type: "PNG", Width: vw, Height: vh}, nil
}
