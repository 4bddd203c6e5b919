package docx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/unicode/norm"

	"github.com/qwill/qwill/internal/parser/html"
	"github.com/qwill/qwill/internal/res"
)

// Reader converts the body of a DOCX package to an HTML fragment.
type Reader struct {
	zr        *zip.Reader
	rels      map[string]relationshipXML
	styles    map[string]styleXML
	numFormat map[string]map[string]string
}

// ReadFile converts the DOCX file at path to HTML.
func ReadFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read docx: %w", err)
	}
	return Read(data)
}

// Read converts DOCX data to HTML.
func Read(data []byte) (string, error) {
	r, err := NewReader(data)
	if err != nil {
		return "", err
	}
	return r.HTML()
}

// NewReader opens a DOCX package held in memory.
func NewReader(data []byte) (*Reader, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	r := &Reader{
		zr:        zr,
		rels:      make(map[string]relationshipXML),
		styles:    make(map[string]styleXML),
		numFormat: make(map[string]map[string]string),
	}
	if r.file(partDocument) == nil {
		return nil, fmt.Errorf("%w: missing %s", ErrInvalidDocument, partDocument)
	}

	// Relationships, styles and numbering are optional
	var rels relationshipsXML
	if err := r.unmarshal(partDocumentRels, &rels); err == nil {
		for _, rel := range rels.Relationships {
			r.rels[rel.ID] = rel
		}
	}
	var styles stylesXML
	if err := r.unmarshal(partStyles, &styles); err == nil {
		for _, s := range styles.Styles {
			r.styles[strings.ToLower(s.StyleID)] = s
		}
	}
	var numbering numberingXML
	if err := r.unmarshal(partNumbering, &numbering); err == nil {
		r.indexNumbering(numbering)
	}
	return r, nil
}

func (r *Reader) file(name string) *zip.File {
	for _, f := range r.zr.File {
		if f.Name == name {
			return f
		}
	}
	return nil
}

func (r *Reader) content(name string) ([]byte, error) {
	f := r.file(name)
	if f == nil {
		return nil, fmt.Errorf("file not found: %s", name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func (r *Reader) unmarshal(name string, v any) error {
	data, err := r.content(name)
	if err != nil {
		return err
	}
	return xml.Unmarshal(data, v)
}

func (r *Reader) indexNumbering(n numberingXML) {
	abstract := make(map[string]map[string]string)
	for _, a := range n.AbstractNums {
		levels := make(map[string]string)
		for _, l := range a.Levels {
			levels[l.ILvl] = l.NumFmt.Val
		}
		abstract[a.ID] = levels
	}
	for _, num := range n.Nums {
		if levels, ok := abstract[num.AbstractNumID.Val]; ok {
			r.numFormat[num.ID] = levels
		}
	}
}

// paragraphs returns every paragraph of the body in document order,
// including those inside table cells.
func (r *Reader) paragraphs() ([]paragraphXML, error) {
	f := r.file(partDocument)
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	defer rc.Close()

	var out []paragraphXML
	d := xml.NewDecoder(rc)
	for {
		tok, err := d.Token()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch start.Name.Local {
		case "p":
			var p paragraphXML
			if err := d.DecodeElement(&p, &start); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
			}
			out = append(out, p)
		case "sectPr", "headerReference", "footerReference":
			if err := d.Skip(); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
			}
		}
	}
}

// HTML converts the document body. Headings map to h1..h3, numbered and
// bulleted paragraphs to lists, and empty paragraphs are dropped.
func (r *Reader) HTML() (string, error) {
	paras, err := r.paragraphs()
	if err != nil {
		return "", err
	}

	root := html.NewRoot()
	lists := &listBuilder{root: root}
	for _, p := range paras {
		content := html.NewElement("p")
		r.appendRuns(content, p.Runs)
		if html.IsBlank(content) {
			continue
		}

		if p.Properties.NumPr != nil && p.Properties.NumPr.NumID.Val != "" && p.Properties.NumPr.NumID.Val != "0" {
			num := p.Properties.NumPr
			level, _ := strconv.Atoi(num.ILvl.Val)
			lists.add(content, num.NumID.Val, level, r.ordered(num.NumID.Val, num.ILvl.Val))
			continue
		}
		lists.reset()

		if level := r.headingLevel(p.Properties.Style.Val); level > 0 {
			content.Data = "h" + strconv.Itoa(level)
		}
		root.AppendChild(content)
	}

	log.Debug().Int("paragraphs", len(paras)).Msg("read docx")
	return html.Render(root), nil
}

func (r *Reader) ordered(numID, level string) bool {
	switch r.numFormat[numID][level] {
	case "", "bullet", "none":
		return false
	}
	return true
}

// headingLevel maps a paragraph style to a heading level in 1..3, or 0.
func (r *Reader) headingLevel(styleID string) int {
	if styleID == "" {
		return 0
	}
	id := strings.ToLower(styleID)
	if id == "title" {
		return 1
	}
	level := 0
	if n, ok := strings.CutPrefix(id, "heading"); ok {
		level, _ = strconv.Atoi(n)
	}
	if s, ok := r.styles[id]; ok && level == 0 {
		name := strings.ToLower(s.Name.Val)
		switch {
		case name == "title":
			return 1
		case s.PPr.OutlineLvl != nil:
			if n, err := strconv.Atoi(s.PPr.OutlineLvl.Val); err == nil && n < 9 {
				level = n + 1
			}
		case strings.HasPrefix(name, "heading "):
			level, _ = strconv.Atoi(strings.TrimPrefix(name, "heading "))
		}
	}
	if level > 3 {
		level = 3
	}
	return level
}

type format struct {
	bold, italic, underline, strike bool
}

func (f format) wrap(n *html.Node) *html.Node {
	for _, t := range []struct {
		on  bool
		tag string
	}{{f.strike, "s"}, {f.underline, "u"}, {f.italic, "em"}, {f.bold, "strong"}} {
		if t.on {
			el := html.NewElement(t.tag)
			el.AppendChild(n)
			n = el
		}
	}
	return n
}

// appendRuns appends the content of runs to dst. Consecutive runs with the
// same formatting share one wrapper.
func (r *Reader) appendRuns(dst *html.Node, runs []runXML) {
	var (
		last     format
		inner    *html.Node
		haveLast bool
	)
	for _, run := range runs {
		f := format{
			bold:      run.Properties.Bold.on(),
			italic:    run.Properties.Italic.on(),
			underline: underlined(run.Properties.Underline),
			strike:    run.Properties.Strike.on(),
		}
		if !haveLast || f != last {
			last, haveLast = f, true
			inner = dst
			if f != (format{}) {
				holder := html.NewElement("span")
				dst.AppendChild(f.wrap(holder))
				inner = holder.Parent
				holder.Detach()
			}
		}
		for _, part := range run.Parts {
			if n := r.partNode(part); n != nil {
				inner.AppendChild(n)
			}
		}
	}
	html.Normalize(dst)
}

func (r *Reader) partNode(part runPart) *html.Node {
	switch part.Kind {
	case partText:
		if part.Text == "" {
			return nil
		}
		return html.NewText(norm.NFC.String(part.Text))
	case partTab:
		return html.NewText(" ")
	case partBreak:
		return html.NewElement("br")
	case partImage:
		return r.image(part.Drawing)
	}
	return nil
}

// image inlines the image part referenced by a drawing as a data URL.
func (r *Reader) image(d *drawingXML) *html.Node {
	frame := d.frame()
	if frame == nil || frame.Blip == nil {
		return nil
	}
	rel, ok := r.rels[frame.Blip.Embed]
	if !ok || rel.TargetMode == "External" {
		return nil
	}
	name := path.Clean(path.Join("word", rel.Target))
	if strings.HasPrefix(rel.Target, "/") {
		name = strings.TrimPrefix(rel.Target, "/")
	}
	data, err := r.content(name)
	if err != nil {
		log.Warn().Err(err).Str("part", name).Msg("docx image part missing")
		return nil
	}
	mime := mimetype.Detect(data)
	if !strings.HasPrefix(mime.String(), "image/") {
		return nil
	}

	img := html.NewElement("img")
	img.SetAttribute("src", res.DataURL(mime.String(), data))
	if frame.Extent.CX > 0 && frame.Extent.CY > 0 {
		img.SetAttribute("width", strconv.FormatInt(frame.Extent.CX/emuPerPx, 10))
		img.SetAttribute("height", strconv.FormatInt(frame.Extent.CY/emuPerPx, 10))
	}
	if frame.DocPr.Descr != "" {
		img.SetAttribute("alt", frame.DocPr.Descr)
	}
	return img
}

// listBuilder groups consecutive list paragraphs into nested ul/ol
// elements.
type listBuilder struct {
	root  *html.Node
	numID string
	stack []*html.Node
}

func (b *listBuilder) reset() {
	b.stack = b.stack[:0]
	b.numID = ""
}

func (b *listBuilder) add(content *html.Node, numID string, level int, ordered bool) {
	if numID != b.numID {
		b.reset()
		b.numID = numID
	}
	if level < 0 {
		level = 0
	}
	if level > len(b.stack) {
		level = len(b.stack)
	}
	b.stack = b.stack[:min(len(b.stack), level+1)]

	if len(b.stack) == level {
		tag := "ul"
		if ordered {
			tag = "ol"
		}
		list := html.NewElement(tag)
		if level == 0 {
			b.root.AppendChild(list)
		} else {
			parent := b.stack[level-1].LastChild
			if parent == nil {
				parent = html.NewElement("li")
				b.stack[level-1].AppendChild(parent)
			}
			parent.AppendChild(list)
		}
		b.stack = append(b.stack, list)
	}

	li := html.NewElement("li")
	for c := content.FirstChild; c != nil; c = content.FirstChild {
		c.Detach()
		li.AppendChild(c)
	}
	b.stack[level].AppendChild(li)
}
