// Package pdfimport turns the text of a PDF into editable content.
package pdfimport

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/unicode/norm"

	"github.com/qwill/qwill/internal/parser/html"
)

// ErrInvalidPDF is returned when data cannot be read as a PDF.
var ErrInvalidPDF = errors.New("invalid pdf")

// Document is the extracted text of a PDF, one entry per page.
type Document struct {
	Pages []string
}

// Extract validates data with pdfcpu and extracts the text of every page
// with MuPDF. Pages that fail to extract are logged and left empty.
func Extract(ctx context.Context, data []byte) (*Document, error) {
	// Both libraries read from files
	f, err := os.CreateTemp("", "qwill-import-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(f.Name())
	if _, err := f.Write(data); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to write temp file: %w", err)
	}

	n, err := api.PageCountFile(f.Name())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPDF, err)
	}

	doc, err := fitz.New(f.Name())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPDF, err)
	}
	defer doc.Close()

	if doc.NumPage() != n {
		log.Warn().Int("pdfcpu", n).Int("mupdf", doc.NumPage()).Msg("pdf page counts disagree")
	}

	out := &Document{Pages: make([]string, doc.NumPage())}
	for i := range out.Pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text, err := doc.Text(i)
		if err != nil {
			log.Warn().Err(err).Int("page", i+1).Msg("failed to extract text from page")
			continue
		}
		out.Pages[i] = norm.NFC.String(text)
	}
	log.Debug().Int("pages", len(out.Pages)).Msg("extracted pdf text")
	return out, nil
}

// HTML renders every non-empty line as its own paragraph.
func (d *Document) HTML() string {
	root := html.NewRoot()
	for _, page := range d.Pages {
		for _, line := range strings.Split(page, "\n") {
			line = strings.Join(strings.Fields(line), " ")
			if line == "" {
				continue
			}
			p := html.NewElement("p")
			p.AppendChild(html.NewText(line))
			root.AppendChild(p)
		}
	}
	return html.Render(root)
}

// Import converts PDF data to HTML.
func Import(ctx context.Context, data []byte) (string, error) {
	doc, err := Extract(ctx, data)
	if err != nil {
		return "", err
	}
	return doc.HTML(), nil
}
