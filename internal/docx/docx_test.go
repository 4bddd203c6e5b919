package docx

import (
	"archive/zip"
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"strings"
	"testing"

	"github.com/qwill/qwill/internal/res"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{B: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// buildDOCX zips the given parts. document.xml gets the usual namespace
// declarations around body.
func buildDOCX(t *testing.T, body string, parts map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	document := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="` + nsW + `" xmlns:r="` + nsR + `" xmlns:wp="` + nsWP + `" xmlns:a="` + nsA + `" xmlns:pic="` + nsPic + `">
  <w:body>` + body + `<w:sectPr/></w:body>
</w:document>`
	all := map[string][]byte{
		partContentTypes: []byte(`<Types xmlns="` + nsCT + `"/>`),
		partDocument:     []byte(document),
	}
	for name, data := range parts {
		all[name] = data
	}
	for name, data := range all {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write(data); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func writeDOCX(t *testing.T, w *Writer, content string) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := w.Write(&buf, content); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	return buf.Bytes()
}

func part(t *testing.T, data []byte, name string) string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatal(err)
		}
		defer rc.Close()
		b, err := io.ReadAll(rc)
		if err != nil {
			t.Fatal(err)
		}
		return string(b)
	}
	t.Fatalf("part %s not found", name)
	return ""
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "headings and formatting",
			in:   `<h1>Title</h1><p>Hello <strong>bold</strong> and <em>it</em> <u>u</u></p>`,
			want: `<h1>Title</h1><p>Hello <strong>bold</strong> and <em>it</em> <u>u</u></p>`,
		},
		{
			name: "nested formatting",
			in:   `<h2>Sub</h2><p><b><i>both</i></b> <s>gone</s></p>`,
			want: `<h2>Sub</h2><p><strong><em>both</em></strong> <s>gone</s></p>`,
		},
		{
			name: "line break",
			in:   `<p>a<br>b</p>`,
			want: `<p>a<br/>b</p>`,
		},
		{
			name: "bare text",
			in:   `Hello<p>World</p>`,
			want: `<p>Hello</p><p>World</p>`,
		},
		{
			name: "lists",
			in:   `<ul><li>one</li><li>two</li></ul><ol><li>a</li></ol>`,
			want: `<ul><li>one</li><li>two</li></ul><ol><li>a</li></ol>`,
		},
		{
			name: "nested list",
			in:   `<ul><li>a<ul><li>b</li></ul></li><li>c</li></ul>`,
			want: `<ul><li>a<ul><li>b</li></ul></li><li>c</li></ul>`,
		},
		{
			name: "continuations merge",
			in:   `<p>Hel</p><p data-continued="true">lo</p>`,
			want: `<p>Hello</p>`,
		},
		{
			name: "whitespace collapses",
			in:   "<p>  one\n   two  </p>",
			want: `<p>one two</p>`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := writeDOCX(t, NewWriter(nil), tt.in)
			got, err := Read(data)
			if err != nil {
				t.Fatalf("Read() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("round trip = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWriteEmptyDocument(t *testing.T) {
	data := writeDOCX(t, NewWriter(nil), "")
	doc := part(t, data, partDocument)
	if n := strings.Count(doc, "<w:p>"); n != 1 {
		t.Errorf("paragraphs = %d, want 1\n%s", n, doc)
	}
	if !strings.Contains(doc, `w:w="12240"`) || !strings.Contains(doc, `w:top="1440"`) {
		t.Errorf("section properties missing letter geometry: %s", doc)
	}
	if !strings.Contains(part(t, data, partStyles), `w:styleId="Heading3"`) {
		t.Error("styles part does not declare Heading3")
	}

	got, err := Read(data)
	if err != nil {
		t.Fatal(err)
	}
	if got != "" {
		t.Errorf("Read() = %q, want empty", got)
	}
}

func TestWriteHeadingStyles(t *testing.T) {
	data := writeDOCX(t, NewWriter(nil), `<h3>Three</h3>`)
	doc := part(t, data, partDocument)
	if !strings.Contains(doc, `<w:pStyle w:val="Heading3">`) {
		t.Errorf("heading style missing: %s", doc)
	}
	if strings.Contains(doc, "<w:b>") {
		t.Errorf("heading text should not carry direct bold: %s", doc)
	}
}

type stubImages struct {
	data []byte
}

func (s stubImages) Image(src string) (*res.Image, error) {
	if src != "logo.png" {
		return nil, errors.New("not found")
	}
	return &res.Image{Data: s.data, Type: "PNG", Width: 30, Height: 20}, nil
}

func TestWriteEmbedsImages(t *testing.T) {
	w := NewWriter(stubImages{data: pngBytes(t, 30, 20)})
	data := writeDOCX(t, w, `<p><img src="logo.png" alt="Logo"><img src="missing.png"></p><p><img src="logo.png" width="60"></p>`)

	if got := part(t, data, "word/media/image1.png"); !strings.HasPrefix(got, "\x89PNG") {
		t.Error("media part is not the png")
	}
	if rels := part(t, data, partDocumentRels); strings.Count(rels, relImage) != 1 {
		t.Errorf("image shared by both elements should be stored once: %s", rels)
	}

	got, err := Read(data)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Count(got, `<img src="data:image/png;base64,`) != 2 {
		t.Fatalf("Read() = %q, want two inline png images", got)
	}
	for _, want := range []string{`width="30" height="20" alt="Logo"`, `width="60" height="40"`} {
		if !strings.Contains(got, want) {
			t.Errorf("Read() = %q, missing %s", got, want)
		}
	}
}

func TestReadHandwrittenDocument(t *testing.T) {
	body := `
<w:p><w:pPr><w:pStyle w:val="Title"/></w:pPr><w:r><w:t>Doc</w:t></w:r></w:p>
<w:p><w:r><w:t>a</w:t><w:tab/><w:t>b</w:t></w:r><w:r><w:rPr><w:b w:val="0"/></w:rPr><w:t xml:space="preserve"> c</w:t></w:r></w:p>
<w:p><w:hyperlink r:id="rId9"><w:r><w:rPr><w:strike/></w:rPr><w:t>link</w:t></w:r></w:hyperlink></w:p>
<w:p></w:p>
<w:p><w:pPr><w:pStyle w:val="Berschrift2"/></w:pPr><w:r><w:t>Localized</w:t></w:r></w:p>
<w:tbl><w:tr><w:tc><w:p><w:r><w:t>cell</w:t></w:r></w:p></w:tc></w:tr></w:tbl>
<w:p><w:r><w:drawing><wp:inline><wp:extent cx="952500" cy="476250"/><wp:docPr id="1" name="p" descr="logo"/>
<a:graphic><a:graphicData><pic:pic><pic:blipFill><a:blip r:embed="rIdImg"/></pic:blipFill></pic:pic></a:graphicData></a:graphic>
</wp:inline></w:drawing></w:r></w:p>`

	rels := `<Relationships xmlns="` + nsPR + `">
<Relationship Id="rIdImg" Type="` + relImage + `" Target="media/logo.png"/>
</Relationships>`
	styles := `<w:styles xmlns:w="` + nsW + `">
<w:style w:type="paragraph" w:styleId="Berschrift2"><w:name w:val="heading 2"/><w:pPr><w:outlineLvl w:val="1"/></w:pPr></w:style>
</w:styles>`

	data := buildDOCX(t, body, map[string][]byte{
		partDocumentRels:      []byte(rels),
		partStyles:            []byte(styles),
		"word/media/logo.png": pngBytes(t, 4, 2),
	})

	got, err := Read(data)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	wantPrefix := `<h1>Doc</h1><p>a b c</p><p><s>link</s></p><h2>Localized</h2><p>cell</p><p><img src="data:image/png;base64,`
	if !strings.HasPrefix(got, wantPrefix) {
		t.Errorf("Read() = %q\nwant prefix %q", got, wantPrefix)
	}
	if !strings.HasSuffix(got, `width="100" height="50" alt="logo"/></p>`) {
		t.Errorf("Read() = %q, image attributes missing", got)
	}
}

func TestReadNormalizesText(t *testing.T) {
	data := buildDOCX(t, "<w:p><w:r><w:t>cafe\u0301</w:t></w:r></w:p>", nil)
	got, err := Read(data)
	if err != nil {
		t.Fatal(err)
	}
	if got != "<p>caf\u00e9</p>" {
		t.Errorf("Read() = %q, want NFC text", got)
	}
}

func TestReadInvalid(t *testing.T) {
	if _, err := Read([]byte("not a zip")); !errors.Is(err, ErrInvalidDocument) {
		t.Errorf("Read(garbage) error = %v, want ErrInvalidDocument", err)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	if _, err := zw.Create("hello.txt"); err != nil {
		t.Fatal(err)
	}
	zw.Close()
	if _, err := Read(buf.Bytes()); !errors.Is(err, ErrInvalidDocument) {
		t.Errorf("Read(zip without document) error = %v, want ErrInvalidDocument", err)
	}
}
