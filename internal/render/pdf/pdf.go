package pdf

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"codeberg.org/go-pdf/fpdf"
	"github.com/rs/zerolog/log"

	"github.com/qwill/qwill/internal/layout"
	"github.com/qwill/qwill/internal/res"
)

// ImageSource supplies embeddable images by source
type ImageSource interface {
	Image(src string) (*res.Image, error)
}

// Renderer handles rendering laid out pages to PDF
type Renderer struct {
	// Images resolves img sources; nil draws placeholders
	Images ImageSource
	// DebugDrawBoxes outlines every line box
	DebugDrawBoxes bool
}

// RenderOptions contains options for rendering. Page geometry is in points;
// layout coordinates are converted from px at DPI.
type RenderOptions struct {
	Title    string
	Author   string
	Subject  string
	Keywords string
	Creator  string
	Producer string

	PageWidth  float64
	PageHeight float64
	MarginTop  float64
	MarginLeft float64
	DPI        float64
}

// NewRenderer creates a new PDF renderer
func NewRenderer(images ImageSource) *Renderer {
	return &Renderer{Images: images}
}

// page is the per-document drawing state
type page struct {
	pdf    *fpdf.Fpdf
	tr     func(string) string
	scale  float64
	left   float64
	top    float64
	images map[string]bool
}

// Render writes one PDF page per layout result to w.
func (r *Renderer) Render(w io.Writer, pages []*layout.Result, options RenderOptions) error {
	if options.DPI <= 0 {
		options.DPI = 96
	}
	if options.PageWidth <= 0 || options.PageHeight <= 0 {
		return fmt.Errorf("invalid page size %.2fx%.2f", options.PageWidth, options.PageHeight)
	}

	orient := "P"
	if options.PageWidth > options.PageHeight {
		orient = "L"
	}
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: orient,
		UnitStr:        "pt",
		Size:           fpdf.SizeType{Wd: options.PageWidth, Ht: options.PageHeight},
	})
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetTitle(options.Title, true)
	pdf.SetAuthor(options.Author, true)
	pdf.SetSubject(options.Subject, true)
	pdf.SetKeywords(options.Keywords, true)
	pdf.SetCreator(options.Creator, true)
	pdf.SetProducer(options.Producer, true)
	pdf.SetFont("Helvetica", "", 12)

	p := &page{
		pdf:    pdf,
		tr:     pdf.UnicodeTranslatorFromDescriptor(""),
		scale:  72 / options.DPI,
		left:   options.MarginLeft,
		top:    options.MarginTop,
		images: make(map[string]bool),
	}

	if len(pages) == 0 {
		pdf.AddPage()
	}
	for _, result := range pages {
		pdf.AddPage()
		for _, line := range result.Lines {
			r.renderLine(p, line)
		}
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("failed to render pdf: %w", err)
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to write pdf: %w", err)
	}
	log.Debug().Int("pages", pdf.PageNo()).Msg("rendered pdf")
	return nil
}

// RenderFile renders pages to a PDF file, creating its directory as needed.
func (r *Renderer) RenderFile(pages []*layout.Result, outputPath string, options RenderOptions) error {
	var buf bytes.Buffer
	if err := r.Render(&buf, pages, options); err != nil {
		return err
	}

	outputDir := filepath.Dir(outputPath)
	if _, err := os.Stat(outputDir); os.IsNotExist(err) {
		if err := os.MkdirAll(outputDir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	return os.WriteFile(outputPath, buf.Bytes(), 0644)
}

func (p *page) x(px float64) float64 { return p.left + px*p.scale }
func (p *page) y(px float64) float64 { return p.top + px*p.scale }

func (r *Renderer) renderLine(p *page, line layout.Line) {
	if line.Marker != "" {
		r.renderListMarker(p, line)
	}

	bottom := line.Y + line.Height
	for _, run := range line.Runs {
		if run.Image != "" {
			r.renderImage(p, run, bottom-run.Height)
			continue
		}
		r.renderText(p, run, bottom)
	}

	if r.DebugDrawBoxes {
		p.pdf.SetDrawColor(255, 0, 0)
		p.pdf.SetLineWidth(0.1)
		p.pdf.Rect(p.x(line.X), p.y(line.Y), line.Width*p.scale, line.Height*p.scale, "D")
	}
}

// renderText draws a run on the baseline of its line. Lines taller than the
// run's own line height, because of images, align text at the bottom.
func (r *Renderer) renderText(p *page, run layout.Run, bottom float64) {
	if strings.TrimSpace(run.Text) == "" {
		return
	}
	f := run.Font
	size := f.Size * p.scale

	style := f.Style
	if run.Deco.Underline {
		style += "U"
	}
	c := parseColor(run.Deco.Color)
	p.pdf.SetTextColor(c[0], c[1], c[2])
	p.pdf.SetFont(f.Family, style, size)

	halfLeading := (f.Line() - f.Size) / 2
	baseline := bottom - f.Line() + halfLeading + 0.8*f.Size
	x, y := p.x(run.X), p.y(baseline)
	p.pdf.Text(x, y, p.tr(run.Text))

	if run.Deco.Strike {
		p.pdf.SetDrawColor(c[0], c[1], c[2])
		p.pdf.SetLineWidth(size / 16)
		mid := y - size*0.3
		p.pdf.Line(x, mid, x+run.Width*p.scale, mid)
	}
}

func (r *Renderer) renderImage(p *page, run layout.Run, top float64) {
	x, y := p.x(run.X), p.y(top)
	w, h := run.Width*p.scale, run.Height*p.scale

	if r.Images != nil {
		if !p.images[run.Image] {
			img, err := r.Images.Image(run.Image)
			if err == nil {
				p.pdf.RegisterImageOptionsReader(run.Image, fpdf.ImageOptions{ImageType: img.Type}, bytes.NewReader(img.Data))
				p.images[run.Image] = p.pdf.Ok()
				if !p.pdf.Ok() {
					log.Warn().Err(p.pdf.Error()).Msg("failed to embed image")
					p.pdf.ClearError()
				}
			} else {
				log.Warn().Err(err).Msg("failed to load image")
			}
		}
		if p.images[run.Image] {
			p.pdf.ImageOptions(run.Image, x, y, w, h, false, fpdf.ImageOptions{}, 0, "")
			return
		}
	}

	p.pdf.SetFillColor(230, 230, 230)
	p.pdf.Rect(x, y, w, h, "F")
}

// renderListMarker draws the bullet or number left of a list item's first
// line.
func (r *Renderer) renderListMarker(p *page, line layout.Line) {
	f := line.Font
	size := f.Size * p.scale
	top := line.Y + line.Height - f.Line()

	if line.Marker == "•" {
		radius := size * 0.18
		if radius < 1.2 {
			radius = 1.2
		}
		cx := p.x(line.X) - size
		cy := p.y(top + f.Line()/2)
		p.pdf.SetFillColor(0, 0, 0)
		p.pdf.Circle(cx, cy, radius, "F")
		return
	}

	p.pdf.SetTextColor(0, 0, 0)
	p.pdf.SetFont(f.Family, f.Style, size)
	markerWidth := p.pdf.GetStringWidth(line.Marker)
	startX := p.x(line.X) - markerWidth - size*0.4
	if startX < 0 {
		startX = 0
	}
	baseline := top + (f.Line()-f.Size)/2 + 0.8*f.Size
	p.pdf.Text(startX, p.y(baseline), line.Marker)
}

// parseColor parses a CSS color value, defaulting to black
func parseColor(value string) [3]int {
	value = strings.ToLower(strings.TrimSpace(value))
	if named, ok := namedColors[value]; ok {
		return named
	}
	if strings.HasPrefix(value, "#") {
		if r, g, b, ok := parseHexColor(value); ok {
			return [3]int{r, g, b}
		}
	}

	var r, g, b int
	if _, err := fmt.Sscanf(value, "rgb(%d,%d,%d)", &r, &g, &b); err == nil {
		return [3]int{r, g, b}
	}
	if _, err := fmt.Sscanf(value, "rgb(%d, %d, %d)", &r, &g, &b); err == nil {
		return [3]int{r, g, b}
	}

	return [3]int{0, 0, 0}
}

var namedColors = map[string][3]int{
	"black": {0, 0, 0},
	"white": {255, 255, 255},
	"red":   {255, 0, 0},
	"green": {0, 128, 0},
	"blue":  {0, 0, 255},
	"gray":  {128, 128, 128},
	"grey":  {128, 128, 128},
}

// parseHexColor parses #RRGGBB or #RGB into r,g,b
func parseHexColor(s string) (int, int, int, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return 0, 0, 0, false
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, 0, 0, false
	}
	return int(v >> 16 & 0xff), int(v >> 8 & 0xff), int(v & 0xff), true
}
