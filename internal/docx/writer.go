package docx

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/qwill/qwill/internal/parser/css"
	"github.com/qwill/qwill/internal/parser/html"
	"github.com/qwill/qwill/internal/res"
)

// ImageSource supplies embeddable images by source
type ImageSource interface {
	Image(src string) (*res.Image, error)
}

// Writer converts HTML fragments to DOCX packages. Page geometry is in
// points.
type Writer struct {
	// Images resolves img sources; nil drops images
	Images ImageSource

	Title  string
	Author string

	PageWidth  float64
	PageHeight float64
	Margin     float64
}

// NewWriter creates a writer for US Letter pages with 1in margins.
func NewWriter(images ImageSource) *Writer {
	return &Writer{Images: images, PageWidth: 612, PageHeight: 792, Margin: 72}
}

// Output structures. Element names carry the w: prefix so the package reads
// like one written by Word.

type wDocument struct {
	XMLName xml.Name `xml:"w:document"`
	W       string   `xml:"xmlns:w,attr"`
	R       string   `xml:"xmlns:r,attr"`
	WP      string   `xml:"xmlns:wp,attr"`
	Body    wBody    `xml:"w:body"`
}

type wBody struct {
	Paragraphs []wParagraph
	SectPr     wSectPr `xml:"w:sectPr"`
}

type wSectPr struct {
	PgSz  wPageSize    `xml:"w:pgSz"`
	PgMar wPageMargins `xml:"w:pgMar"`
}

type wPageSize struct {
	W int `xml:"w:w,attr"`
	H int `xml:"w:h,attr"`
}

type wPageMargins struct {
	Top    int `xml:"w:top,attr"`
	Right  int `xml:"w:right,attr"`
	Bottom int `xml:"w:bottom,attr"`
	Left   int `xml:"w:left,attr"`
}

type wParagraph struct {
	XMLName xml.Name    `xml:"w:p"`
	Props   *wParaProps `xml:"w:pPr,omitempty"`
	Runs    []wRun
}

type wParaProps struct {
	Style *wVal   `xml:"w:pStyle,omitempty"`
	NumPr *wNumPr `xml:"w:numPr,omitempty"`
}

type wNumPr struct {
	ILvl  wVal `xml:"w:ilvl"`
	NumID wVal `xml:"w:numId"`
}

type wVal struct {
	Val string `xml:"w:val,attr"`
}

type wRun struct {
	XMLName xml.Name   `xml:"w:r"`
	Props   *wRunProps `xml:"w:rPr,omitempty"`
	Text    *wText     `xml:"w:t,omitempty"`
	Break   *struct{}  `xml:"w:br,omitempty"`
	Drawing *wDrawing  `xml:"w:drawing,omitempty"`
}

type wRunProps struct {
	Bold      *struct{} `xml:"w:b,omitempty"`
	Italic    *struct{} `xml:"w:i,omitempty"`
	Strike    *struct{} `xml:"w:strike,omitempty"`
	Underline *wVal     `xml:"w:u,omitempty"`
}

type wText struct {
	Space string `xml:"xml:space,attr,omitempty"`
	Value string `xml:",chardata"`
}

type wDrawing struct {
	Inner string `xml:",innerxml"`
}

// List numbering ids declared in numbering.xml
const (
	numBullet  = "1"
	numDecimal = "2"
)

var headingStyles = map[string]string{"h1": "Heading1", "h2": "Heading2", "h3": "Heading3"}

var blockTags = map[string]bool{
	"p": true, "div": true, "h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"ul": true, "ol": true, "li": true, "blockquote": true, "pre": true, "section": true,
	"article": true, "header": true, "footer": true, "table": true, "tr": true, "td": true,
	"th": true, "tbody": true, "thead": true, "hr": true,
}

type media struct {
	relID string
	name  string
	data  []byte
}

// conversion is the state of one Write call.
type conversion struct {
	w          *Writer
	paragraphs []wParagraph
	media      []media
	byURL      map[string]int
	drawings   int
}

// Write converts the HTML fragment content to a DOCX package on out. Every
// top-level block becomes a paragraph and bare top-level text gets its own
// paragraph. An empty document yields one empty paragraph.
func (w *Writer) Write(out io.Writer, content string) error {
	root := html.ParseFragment(content)
	html.Normalize(root)
	html.StripContinuations(root)

	c := &conversion{w: w, byURL: make(map[string]int)}
	c.blocks(root, nil)
	if len(c.paragraphs) == 0 {
		c.paragraphs = append(c.paragraphs, wParagraph{})
	}

	zw := zip.NewWriter(out)
	if err := c.writeParts(zw); err != nil {
		zw.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finish docx: %w", err)
	}
	log.Debug().Int("paragraphs", len(c.paragraphs)).Int("images", len(c.media)).Msg("wrote docx")
	return nil
}

// blocks walks the children of n. Runs of inline siblings collect into one
// paragraph; block children recurse.
func (c *conversion) blocks(n *html.Node, props *wParaProps) {
	var pending []*html.Node
	flush := func() {
		if len(pending) == 0 {
			return
		}
		c.paragraph(pending, props)
		pending = nil
	}
	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		if !ch.IsElement() || !blockTags[ch.Data] {
			if ch.IsText() || ch.IsElement() {
				pending = append(pending, ch)
			}
			continue
		}
		flush()
		c.block(ch, props)
	}
	flush()
}

func (c *conversion) block(n *html.Node, props *wParaProps) {
	switch n.Data {
	case "h1", "h2", "h3":
		c.paragraph([]*html.Node{n}, &wParaProps{Style: &wVal{Val: headingStyles[n.Data]}})
	case "ul", "ol":
		level := 0
		if props != nil && props.NumPr != nil {
			level, _ = strconv.Atoi(props.NumPr.ILvl.Val)
			level++
		}
		id := numBullet
		if n.Data == "ol" {
			id = numDecimal
		}
		item := &wParaProps{NumPr: &wNumPr{ILvl: wVal{Val: strconv.Itoa(level)}, NumID: wVal{Val: id}}}
		for li := n.FirstChild; li != nil; li = li.NextSibling {
			if li.IsElement() {
				c.blocks(li, item)
			}
		}
	case "pre":
		c.paragraph([]*html.Node{n}, props)
	case "hr":
	default:
		c.blocks(n, props)
	}
}

// paragraph emits one paragraph for nodes. Paragraphs without visible
// content are dropped.
func (c *conversion) paragraph(nodes []*html.Node, props *wParaProps) {
	holder := html.NewRoot()
	for _, n := range nodes {
		holder.AppendChild(n.Clone())
	}
	if html.IsBlank(holder) {
		return
	}

	p := wParagraph{Props: props}
	preserve := len(nodes) == 1 && nodes[0].IsElement("pre")
	c.runs(&p, holder, runFormat{}, preserve)
	trimRuns(p.Runs)
	c.paragraphs = append(c.paragraphs, p)
}

type runFormat struct {
	bold, italic, underline, strike bool
}

func (f runFormat) props() *wRunProps {
	if f == (runFormat{}) {
		return nil
	}
	p := &wRunProps{}
	if f.bold {
		p.Bold = &struct{}{}
	}
	if f.italic {
		p.Italic = &struct{}{}
	}
	if f.strike {
		p.Strike = &struct{}{}
	}
	if f.underline {
		p.Underline = &wVal{Val: "single"}
	}
	return p
}

// inherit applies the formatting of element n.
func (f runFormat) inherit(n *html.Node) runFormat {
	switch n.Data {
	case "b", "strong":
		f.bold = true
	case "i", "em", "cite":
		f.italic = true
	case "u", "ins":
		f.underline = true
	case "s", "strike", "del":
		f.strike = true
	}
	if style, ok := n.Attribute("style"); ok {
		for _, d := range css.ParseDeclarations(style) {
			v := strings.ToLower(d.Value)
			switch d.Property {
			case "font-weight":
				weight, err := strconv.Atoi(v)
				f.bold = v == "bold" || v == "bolder" || (err == nil && weight >= 600)
			case "font-style":
				f.italic = v == "italic" || v == "oblique"
			case "text-decoration", "text-decoration-line":
				f.underline = f.underline || strings.Contains(v, "underline")
				f.strike = f.strike || strings.Contains(v, "line-through")
			}
		}
	}
	return f
}

func (c *conversion) runs(p *wParagraph, n *html.Node, f runFormat, preserve bool) {
	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		switch {
		case ch.IsText():
			c.text(p, ch.Data, f, preserve)
		case ch.IsElement("br"):
			p.Runs = append(p.Runs, wRun{Props: f.props(), Break: &struct{}{}})
		case ch.IsElement("img"):
			if run, ok := c.image(ch); ok {
				p.Runs = append(p.Runs, run)
			}
		case ch.IsElement():
			c.runs(p, ch, f.inherit(ch), preserve || ch.IsElement("pre"))
		}
	}
}

func (c *conversion) text(p *wParagraph, s string, f runFormat, preserve bool) {
	if !preserve {
		s = collapseSpace(s)
		if s == "" {
			return
		}
		p.Runs = append(p.Runs, textRun(s, f))
		return
	}
	for i, line := range strings.Split(s, "\n") {
		if i > 0 {
			p.Runs = append(p.Runs, wRun{Props: f.props(), Break: &struct{}{}})
		}
		if line != "" {
			p.Runs = append(p.Runs, textRun(strings.ReplaceAll(line, "\t", "    "), f))
		}
	}
}

func textRun(s string, f runFormat) wRun {
	t := &wText{Value: s}
	if strings.TrimSpace(s) != s {
		t.Space = "preserve"
	}
	return wRun{Props: f.props(), Text: t}
}

// collapseSpace folds whitespace runs into single spaces the way HTML
// renders them.
func collapseSpace(s string) string {
	if s == "" {
		return ""
	}
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return " "
	}
	out := strings.Join(fields, " ")
	if isSpace(s[0]) {
		out = " " + out
	}
	if isSpace(s[len(s)-1]) {
		out += " "
	}
	return out
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\n' || b == '\t' || b == '\r' || b == '\f'
}

// trimRuns drops leading space of the first text run and trailing space of
// the last one.
func trimRuns(runs []wRun) {
	for i := range runs {
		if runs[i].Text != nil {
			runs[i].Text.Value = strings.TrimLeft(runs[i].Text.Value, " ")
			break
		}
		if runs[i].Break == nil {
			break
		}
	}
	for i := len(runs) - 1; i >= 0; i-- {
		if runs[i].Text != nil {
			runs[i].Text.Value = strings.TrimRight(runs[i].Text.Value, " ")
			break
		}
		if runs[i].Break == nil {
			break
		}
	}
	for i := range runs {
		if t := runs[i].Text; t != nil && strings.TrimSpace(t.Value) == t.Value {
			t.Space = ""
		}
	}
}

// image embeds an img element. The image part is shared between elements
// with the same source.
func (c *conversion) image(n *html.Node) (wRun, bool) {
	src, _ := n.Attribute("src")
	if src == "" || c.w.Images == nil {
		return wRun{}, false
	}
	img, err := c.w.Images.Image(src)
	if err != nil {
		log.Warn().Err(err).Msg("failed to load image for docx")
		return wRun{}, false
	}

	idx, ok := c.byURL[src]
	if !ok {
		idx = len(c.media)
		ext := map[string]string{"PNG": "png", "JPG": "jpeg", "GIF": "gif"}[img.Type]
		if ext == "" {
			ext = "png"
		}
		c.media = append(c.media, media{
			relID: fmt.Sprintf("rIdImage%d", idx+1),
			name:  fmt.Sprintf("media/image%d.%s", idx+1, ext),
			data:  img.Data,
		})
		c.byURL[src] = idx
	}
	m := c.media[idx]

	width, height := img.Width, img.Height
	if v, ok := pxAttr(n, "width"); ok {
		if _, hok := pxAttr(n, "height"); !hok && width > 0 {
			height = height * v / width
		}
		width = v
	}
	if v, ok := pxAttr(n, "height"); ok {
		height = v
	}
	cx := int64(math.Round(width * emuPerPx))
	cy := int64(math.Round(height * emuPerPx))
	alt, _ := n.Attribute("alt")

	c.drawings++
	id := c.drawings
	var b strings.Builder
	fmt.Fprintf(&b, `<wp:inline distT="0" distB="0" distL="0" distR="0"><wp:extent cx="%d" cy="%d"/>`, cx, cy)
	fmt.Fprintf(&b, `<wp:docPr id="%d" name="Picture %d" descr="%s"/>`, id, id, escapeAttr(alt))
	fmt.Fprintf(&b, `<a:graphic xmlns:a="%s"><a:graphicData uri="%s"><pic:pic xmlns:pic="%s">`, nsA, nsPic, nsPic)
	fmt.Fprintf(&b, `<pic:nvPicPr><pic:cNvPr id="%d" name="%s"/><pic:cNvPicPr/></pic:nvPicPr>`, id, m.name)
	fmt.Fprintf(&b, `<pic:blipFill><a:blip r:embed="%s"/><a:stretch><a:fillRect/></a:stretch></pic:blipFill>`, m.relID)
	fmt.Fprintf(&b, `<pic:spPr><a:xfrm><a:off x="0" y="0"/><a:ext cx="%d" cy="%d"/></a:xfrm>`, cx, cy)
	b.WriteString(`<a:prstGeom prst="rect"><a:avLst/></a:prstGeom></pic:spPr></pic:pic></a:graphicData></a:graphic></wp:inline>`)
	return wRun{Drawing: &wDrawing{Inner: b.String()}}, true
}

func pxAttr(n *html.Node, name string) (float64, bool) {
	v, ok := n.Attribute(name)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(v), "px"), 64)
	if err != nil || f <= 0 {
		return 0, false
	}
	return f, true
}

func escapeAttr(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

func twips(pt float64) int {
	return int(math.Round(pt * 20))
}

func (c *conversion) writeParts(zw *zip.Writer) error {
	w := c.w
	doc := wDocument{
		W:  nsW,
		R:  nsR,
		WP: nsWP,
		Body: wBody{
			Paragraphs: c.paragraphs,
			SectPr: wSectPr{
				PgSz: wPageSize{W: twips(w.PageWidth), H: twips(w.PageHeight)},
				PgMar: wPageMargins{
					Top: twips(w.Margin), Right: twips(w.Margin), Bottom: twips(w.Margin), Left: twips(w.Margin),
				},
			},
		},
	}

	rels := relationshipsXML{Xmlns: nsPR, Relationships: []relationshipXML{
		{ID: "rIdStyles", Type: relStyles, Target: "styles.xml"},
		{ID: "rIdNumbering", Type: relNumbering, Target: "numbering.xml"},
	}}
	for _, m := range c.media {
		rels.Relationships = append(rels.Relationships, relationshipXML{ID: m.relID, Type: relImage, Target: m.name})
	}
	pkgRels := relationshipsXML{Xmlns: nsPR, Relationships: []relationshipXML{
		{ID: "rId1", Type: relDocument, Target: partDocument},
		{ID: "rId2", Type: relCore, Target: partCore},
	}}

	parts := []struct {
		name string
		v    any
		raw  string
	}{
		{name: partContentTypes, raw: contentTypesXML},
		{name: partRels, v: pkgRels},
		{name: partDocument, v: doc},
		{name: partDocumentRels, v: rels},
		{name: partStyles, raw: stylesPartXML},
		{name: partNumbering, raw: numberingPart()},
		{name: partCore, raw: corePart(w.Title, w.Author)},
	}
	for _, p := range parts {
		f, err := zw.Create(p.name)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", p.name, err)
		}
		if _, err := io.WriteString(f, xml.Header); err != nil {
			return err
		}
		if p.v != nil {
			err = xml.NewEncoder(f).Encode(p.v)
		} else {
			_, err = io.WriteString(f, p.raw)
		}
		if err != nil {
			return fmt.Errorf("failed to write %s: %w", p.name, err)
		}
	}
	for _, m := range c.media {
		f, err := zw.Create("word/" + m.name)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", m.name, err)
		}
		if _, err := f.Write(m.data); err != nil {
			return fmt.Errorf("failed to write %s: %w", m.name, err)
		}
	}
	return nil
}

const contentTypesXML = `<Types xmlns="` + nsCT + `">` +
	`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
	`<Default Extension="xml" ContentType="application/xml"/>` +
	`<Default Extension="png" ContentType="image/png"/>` +
	`<Default Extension="jpeg" ContentType="image/jpeg"/>` +
	`<Default Extension="gif" ContentType="image/gif"/>` +
	`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>` +
	`<Override PartName="/word/styles.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"/>` +
	`<Override PartName="/word/numbering.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.numbering+xml"/>` +
	`<Override PartName="/docProps/core.xml" ContentType="application/vnd.openxmlformats-package.core-properties+xml"/>` +
	`</Types>`

const stylesPartXML = `<w:styles xmlns:w="` + nsW + `">` +
	`<w:style w:type="paragraph" w:default="1" w:styleId="Normal"><w:name w:val="Normal"/></w:style>` +
	`<w:style w:type="paragraph" w:styleId="Heading1"><w:name w:val="heading 1"/><w:basedOn w:val="Normal"/><w:next w:val="Normal"/>` +
	`<w:pPr><w:outlineLvl w:val="0"/></w:pPr><w:rPr><w:b/><w:sz w:val="48"/></w:rPr></w:style>` +
	`<w:style w:type="paragraph" w:styleId="Heading2"><w:name w:val="heading 2"/><w:basedOn w:val="Normal"/><w:next w:val="Normal"/>` +
	`<w:pPr><w:outlineLvl w:val="1"/></w:pPr><w:rPr><w:b/><w:sz w:val="36"/></w:rPr></w:style>` +
	`<w:style w:type="paragraph" w:styleId="Heading3"><w:name w:val="heading 3"/><w:basedOn w:val="Normal"/><w:next w:val="Normal"/>` +
	`<w:pPr><w:outlineLvl w:val="2"/></w:pPr><w:rPr><w:b/><w:sz w:val="28"/></w:rPr></w:style>` +
	`</w:styles>`

func numberingPart() string {
	var b strings.Builder
	b.WriteString(`<w:numbering xmlns:w="` + nsW + `">`)
	for i, format := range []string{"bullet", "decimal"} {
		fmt.Fprintf(&b, `<w:abstractNum w:abstractNumId="%d">`, i)
		for lvl := 0; lvl < 9; lvl++ {
			text := "•"
			if format == "decimal" {
				text = fmt.Sprintf("%%%d.", lvl+1)
			}
			fmt.Fprintf(&b, `<w:lvl w:ilvl="%d"><w:start w:val="1"/><w:numFmt w:val="%s"/><w:lvlText w:val="%s"/>`, lvl, format, text)
			fmt.Fprintf(&b, `<w:pPr><w:ind w:left="%d" w:hanging="360"/></w:pPr></w:lvl>`, 720*(lvl+1))
		}
		b.WriteString(`</w:abstractNum>`)
	}
	fmt.Fprintf(&b, `<w:num w:numId="%s"><w:abstractNumId w:val="0"/></w:num>`, numBullet)
	fmt.Fprintf(&b, `<w:num w:numId="%s"><w:abstractNumId w:val="1"/></w:num>`, numDecimal)
	b.WriteString(`</w:numbering>`)
	return b.String()
}

func corePart(title, author string) string {
	return `<cp:coreProperties xmlns:cp="` + nsCP + `" xmlns:dc="` + nsDC + `">` +
		`<dc:title>` + escapeAttr(title) + `</dc:title>` +
		`<dc:creator>` + escapeAttr(author) + `</dc:creator>` +
		`</cp:coreProperties>`
}
