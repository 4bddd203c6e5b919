package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	xhtml "golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"

	"github.com/qwill/qwill/internal/docx"
	"github.com/qwill/qwill/internal/filetype"
	"github.com/qwill/qwill/internal/layout"
	"github.com/qwill/qwill/internal/metrics"
	"github.com/qwill/qwill/internal/parser/html"
	"github.com/qwill/qwill/internal/pdfimport"
	"github.com/qwill/qwill/internal/render/pdf"
)

const producer = "Qwill"

// elements that never contribute page content
var strippedTags = []string{"script", "style", "head", "title", "meta", "link", "noscript", "template"}

// Import replaces the document with data. The format is detected from the
// content; name only helps to tell zip containers apart.
func (e *Editor) Import(ctx context.Context, name string, data []byte) error {
	format, err := filetype.Detect(name, data)
	if err != nil {
		metrics.ObserveConversion("import", "unknown", err)
		return fmt.Errorf("failed to import %s: %w", name, err)
	}

	content, err := convertToHTML(ctx, format, data)
	metrics.ObserveConversion("import", string(format), err)
	if err != nil {
		return fmt.Errorf("failed to import %s: %w", name, err)
	}

	e.SetPages(content)
	log.Info().
		Str("file", name).
		Str("format", string(format)).
		Int("pages", len(e.Pages())).
		Msg("imported document")
	return nil
}

// ImportFile replaces the document with the file at path
func (e *Editor) ImportFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	return e.Import(ctx, filepath.Base(path), data)
}

func convertToHTML(ctx context.Context, format filetype.Format, data []byte) (string, error) {
	switch format {
	case filetype.DOCX:
		return docx.Read(data)
	case filetype.PDF:
		return pdfimport.Import(ctx, data)
	case filetype.HTML:
		return fromHTML(norm.NFC.String(string(data))), nil
	case filetype.Text:
		return fromText(norm.NFC.String(string(data))), nil
	}
	return "", filetype.ErrUnsupported
}

// fromHTML keeps the body of full documents and drops everything that is not
// page content.
func fromHTML(src string) string {
	var root *html.Node
	if isDocument(src) {
		if doc, err := html.NewParser().ParseString(src); err == nil {
			root = html.NewRoot()
			html.ReplaceChildren(root, doc.Body())
		}
	}
	if root == nil {
		root = html.ParseFragment(src)
	}

	var drop []*html.Node
	html.Walk(root, func(n *html.Node) bool {
		if n.IsElement(strippedTags...) {
			drop = append(drop, n)
			return false
		}
		return true
	})
	for _, n := range drop {
		n.Detach()
	}
	html.Normalize(root)
	// source indentation between blocks
	for c := root.FirstChild; c != nil; {
		next := c.NextSibling
		if c.IsText() && strings.TrimSpace(c.Data) == "" {
			c.Detach()
		}
		c = next
	}
	return html.Render(root)
}

func isDocument(src string) bool {
	head := strings.ToLower(src[:min(len(src), 1024)])
	return strings.Contains(head, "<!doctype") || strings.Contains(head, "<html") || strings.Contains(head, "<body")
}

// fromText makes one paragraph per non-blank line.
func fromText(src string) string {
	root := html.NewRoot()
	for _, line := range strings.Split(strings.ReplaceAll(src, "\r\n", "\n"), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		p := html.NewElement("p")
		p.AppendChild(html.NewText(line))
		root.AppendChild(p)
	}
	return html.Render(root)
}

// Export writes the document in the given format
func (e *Editor) Export(w io.Writer, format filetype.Format) error {
	var err error
	switch format {
	case filetype.PDF:
		err = e.exportPDF(w)
	case filetype.DOCX:
		err = e.exportDOCX(w)
	case filetype.HTML:
		err = e.exportHTML(w)
	case filetype.Text:
		_, err = io.WriteString(w, plainText(e.FullContent())+"\n")
	default:
		err = filetype.ErrUnsupported
	}
	metrics.ObserveConversion("export", string(format), err)
	if err != nil {
		return fmt.Errorf("failed to export %s: %w", format, err)
	}
	return nil
}

// ExportPDF writes one PDF page per page of the document
func (e *Editor) ExportPDF(w io.Writer) error {
	return e.Export(w, filetype.PDF)
}

// ExportDOCX writes the document as a Word document
func (e *Editor) ExportDOCX(w io.Writer) error {
	return e.Export(w, filetype.DOCX)
}

// ExportHTML writes the document as a standalone HTML page
func (e *Editor) ExportHTML(w io.Writer) error {
	return e.Export(w, filetype.HTML)
}

// ExportFile writes the document to path in the format named by its
// extension
func (e *Editor) ExportFile(path string) error {
	format, err := filetype.FromPath(path)
	if err != nil {
		return fmt.Errorf("failed to export %s: %w", path, err)
	}
	var buf bytes.Buffer
	if err := e.Export(&buf, format); err != nil {
		return err
	}

	outputDir := filepath.Dir(path)
	if _, err := os.Stat(outputDir); os.IsNotExist(err) {
		if err := os.MkdirAll(outputDir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	log.Info().Str("file", path).Int("bytes", buf.Len()).Msg("exported document")
	return nil
}

func (e *Editor) title(options Options) string {
	if options.Title != "" {
		return options.Title
	}
	return e.Title()
}

func (e *Editor) exportPDF(w io.Writer) error {
	engine, options := e.currentEngine()
	pages := e.store.Pages()

	results := make([]*layout.Result, len(pages))
	for i, p := range pages {
		results[i] = engine.Layout(html.ParseFragment(p.Content))
	}

	size := options.pageSize()
	renderer := pdf.NewRenderer(e.loader)
	return renderer.Render(w, results, pdf.RenderOptions{
		Title:      e.title(options),
		Author:     options.Author,
		Subject:    options.Subject,
		Keywords:   options.Keywords,
		Creator:    producer,
		Producer:   producer,
		PageWidth:  size.Width,
		PageHeight: size.Height,
		MarginTop:  options.MarginTop,
		MarginLeft: options.MarginLeft,
		DPI:        options.DPI,
	})
}

func (e *Editor) exportDOCX(w io.Writer) error {
	_, options := e.currentEngine()
	size := options.pageSize()

	writer := docx.NewWriter(e.loader)
	writer.Title = e.title(options)
	writer.Author = options.Author
	writer.PageWidth = size.Width
	writer.PageHeight = size.Height
	writer.Margin = options.MarginTop
	return writer.Write(w, e.FullContent())
}

func (e *Editor) exportHTML(w io.Writer) error {
	_, options := e.currentEngine()
	_, err := fmt.Fprintf(w,
		"<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>%s</title>\n</head>\n<body>\n%s\n</body>\n</html>\n",
		xhtml.EscapeString(e.title(options)), e.FullContent())
	return err
}
