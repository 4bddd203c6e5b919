package pdfimport

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"codeberg.org/go-pdf/fpdf"
)

func samplePDF(t *testing.T, pages ...[]string) []byte {
	t.Helper()
	pdf := fpdf.New("P", "pt", "Letter", "")
	pdf.SetFont("Helvetica", "", 12)
	for _, lines := range pages {
		pdf.AddPage()
		for i, line := range lines {
			pdf.Text(72, 72+float64(i)*24, line)
		}
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestImport(t *testing.T) {
	data := samplePDF(t, []string{"Hello", "a < b"}, []string{"World"})

	doc, err := Extract(context.Background(), data)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(doc.Pages) != 2 {
		t.Fatalf("pages = %d, want 2", len(doc.Pages))
	}

	want := "<p>Hello</p><p>a &lt; b</p><p>World</p>"
	if got := doc.HTML(); got != want {
		t.Errorf("HTML() = %q, want %q", got, want)
	}
}

func TestImportRejectsGarbage(t *testing.T) {
	_, err := Import(context.Background(), []byte("definitely not a pdf"))
	if !errors.Is(err, ErrInvalidPDF) {
		t.Errorf("Import() error = %v, want ErrInvalidPDF", err)
	}
}

func TestDocumentHTMLSkipsBlankLines(t *testing.T) {
	doc := &Document{Pages: []string{"  one  \n\n\t\ntwo   words\n", ""}}
	if got := doc.HTML(); got != "<p>one</p><p>two words</p>" {
		t.Errorf("HTML() = %q", got)
	}
}
