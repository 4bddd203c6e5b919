// Package docx converts between DOCX (Office Open XML) documents and HTML
// fragments.
package docx

import (
	"encoding/xml"
	"errors"
	"strings"
)

// ErrInvalidDocument is returned when data is not a readable DOCX package.
var ErrInvalidDocument = errors.New("invalid docx document")

// XML namespaces used in DOCX files
const (
	nsW   = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	nsR   = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
	nsWP  = "http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing"
	nsA   = "http://schemas.openxmlformats.org/drawingml/2006/main"
	nsPic = "http://schemas.openxmlformats.org/drawingml/2006/picture"
	nsDC  = "http://purl.org/dc/elements/1.1/"
	nsCP  = "http://schemas.openxmlformats.org/package/2006/metadata/core-properties"
	nsPR  = "http://schemas.openxmlformats.org/package/2006/relationships"
	nsCT  = "http://schemas.openxmlformats.org/package/2006/content-types"

	relImage     = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/image"
	relStyles    = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles"
	relNumbering = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/numbering"
	relDocument  = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument"
	relCore      = "http://schemas.openxmlformats.org/package/2006/relationships/metadata/core-properties"
)

// Package parts
const (
	partContentTypes = "[Content_Types].xml"
	partRels         = "_rels/.rels"
	partDocument     = "word/document.xml"
	partDocumentRels = "word/_rels/document.xml.rels"
	partStyles       = "word/styles.xml"
	partNumbering    = "word/numbering.xml"
	partCore         = "docProps/core.xml"
)

// emuPerPx converts px at 96 DPI to English Metric Units.
const emuPerPx = 9525

// paragraphXML is a <w:p>. Runs keep document order; runs nested in
// hyperlinks, insertions and smart tags are flattened into it.
type paragraphXML struct {
	Properties paragraphPropsXML
	Runs       []runXML
}

// paragraphPropsXML represents paragraph properties (<w:pPr>).
type paragraphPropsXML struct {
	Style styleRefXML       `xml:"pStyle"`
	NumPr *numberingPropsXML `xml:"numPr"`
}

type styleRefXML struct {
	Val string `xml:"val,attr"`
}

type numberingPropsXML struct {
	ILvl  styleRefXML `xml:"ilvl"`
	NumID styleRefXML `xml:"numId"`
}

func (p *paragraphXML) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "pPr":
				if err := d.DecodeElement(&p.Properties, &t); err != nil {
					return err
				}
			case "r":
				var r runXML
				if err := d.DecodeElement(&r, &t); err != nil {
					return err
				}
				p.Runs = append(p.Runs, r)
			case "hyperlink", "ins", "smartTag", "customXml", "fldSimple":
				// descend
			default:
				if err := d.Skip(); err != nil {
					return err
				}
			}
		case xml.EndElement:
			if t.Name.Local == start.Name.Local {
				return nil
			}
		}
	}
}

// runXML is a <w:r>. Parts keep the order of text, tabs, breaks and
// drawings.
type runXML struct {
	Properties runPropsXML
	Parts      []runPart
}

type partKind int

const (
	partText partKind = iota
	partTab
	partBreak
	partImage
)

type runPart struct {
	Kind    partKind
	Text    string
	Drawing *drawingXML
}

// runPropsXML represents run properties (<w:rPr>).
type runPropsXML struct {
	Bold      *onOffXML   `xml:"b"`
	Italic    *onOffXML   `xml:"i"`
	Underline *styleRefXML `xml:"u"`
	Strike    *onOffXML   `xml:"strike"`
}

// onOffXML is a toggle property; a missing val means on.
type onOffXML struct {
	Val string `xml:"val,attr"`
}

func (o *onOffXML) on() bool {
	if o == nil {
		return false
	}
	switch strings.ToLower(o.Val) {
	case "false", "0", "off":
		return false
	}
	return true
}

func underlined(u *styleRefXML) bool {
	return u != nil && u.Val != "none"
}

type textXML struct {
	Value string `xml:",chardata"`
}

func (r *runXML) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			var err error
			switch t.Name.Local {
			case "rPr":
				err = d.DecodeElement(&r.Properties, &t)
			case "t":
				var txt textXML
				err = d.DecodeElement(&txt, &t)
				r.Parts = append(r.Parts, runPart{Kind: partText, Text: txt.Value})
			case "tab", "ptab":
				r.Parts = append(r.Parts, runPart{Kind: partTab})
				err = d.Skip()
			case "br", "cr":
				r.Parts = append(r.Parts, runPart{Kind: partBreak})
				err = d.Skip()
			case "noBreakHyphen":
				r.Parts = append(r.Parts, runPart{Kind: partText, Text: "-"})
				err = d.Skip()
			case "drawing":
				var dr drawingXML
				err = d.DecodeElement(&dr, &t)
				r.Parts = append(r.Parts, runPart{Kind: partImage, Drawing: &dr})
			default:
				err = d.Skip()
			}
			if err != nil {
				return err
			}
		case xml.EndElement:
			if t.Name.Local == start.Name.Local {
				return nil
			}
		}
	}
}

// drawingXML represents an embedded drawing/image.
type drawingXML struct {
	Inline *graphicFrameXML `xml:"inline"`
	Anchor *graphicFrameXML `xml:"anchor"`
}

func (d *drawingXML) frame() *graphicFrameXML {
	if d.Inline != nil {
		return d.Inline
	}
	return d.Anchor
}

type graphicFrameXML struct {
	Extent extentXML `xml:"extent"`
	DocPr  docPrXML  `xml:"docPr"`
	Blip   *blipXML  `xml:"graphic>graphicData>pic>blipFill>blip"`
}

// extentXML represents image dimensions in EMUs.
type extentXML struct {
	CX int64 `xml:"cx,attr"`
	CY int64 `xml:"cy,attr"`
}

type docPrXML struct {
	Descr string `xml:"descr,attr"`
}

// blipXML references the image part by relationship id.
type blipXML struct {
	Embed string `xml:"embed,attr"`
}

// relationshipsXML represents _rels/*.rels files
type relationshipsXML struct {
	XMLName       xml.Name          `xml:"Relationships"`
	Xmlns         string            `xml:"xmlns,attr,omitempty"`
	Relationships []relationshipXML `xml:"Relationship"`
}

type relationshipXML struct {
	ID         string `xml:"Id,attr"`
	Type       string `xml:"Type,attr"`
	Target     string `xml:"Target,attr"`
	TargetMode string `xml:"TargetMode,attr,omitempty"`
}

// stylesXML represents word/styles.xml
type stylesXML struct {
	Styles []styleXML `xml:"style"`
}

type styleXML struct {
	StyleID string      `xml:"styleId,attr"`
	Name    styleRefXML `xml:"name"`
	PPr     struct {
		OutlineLvl *styleRefXML `xml:"outlineLvl"`
	} `xml:"pPr"`
}

// numberingXML represents word/numbering.xml
type numberingXML struct {
	AbstractNums []abstractNumXML `xml:"abstractNum"`
	Nums         []numXML         `xml:"num"`
}

type abstractNumXML struct {
	ID     string        `xml:"abstractNumId,attr"`
	Levels []numLevelXML `xml:"lvl"`
}

type numLevelXML struct {
	ILvl   string      `xml:"ilvl,attr"`
	NumFmt styleRefXML `xml:"numFmt"`
}

type numXML struct {
	ID            string      `xml:"numId,attr"`
	AbstractNumID styleRefXML `xml:"abstractNumId"`
}
