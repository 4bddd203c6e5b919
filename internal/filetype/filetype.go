package filetype

import (
	"archive/zip"
	"bytes"
	"errors"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
)

// ErrUnsupported is returned for content the editor cannot import or export
var ErrUnsupported = errors.New("unsupported file type")

// Format is a document format the editor exchanges
type Format string

const (
	HTML Format = "html"
	Text Format = "txt"
	DOCX Format = "docx"
	PDF  Format = "pdf"
)

// Extension returns the file extension for the format, with the dot
func (f Format) Extension() string {
	return "." + string(f)
}

// ContentType returns the MIME type used when serving the format
func (f Format) ContentType() string {
	switch f {
	case HTML:
		return "text/html; charset=utf-8"
	case Text:
		return "text/plain; charset=utf-8"
	case DOCX:
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case PDF:
		return "application/pdf"
	}
	return "application/octet-stream"
}

// Parse maps a format name or file extension to a Format
func Parse(name string) (Format, error) {
	switch strings.TrimPrefix(strings.ToLower(strings.TrimSpace(name)), ".") {
	case "html", "htm":
		return HTML, nil
	case "txt", "text":
		return Text, nil
	case "docx":
		return DOCX, nil
	case "pdf":
		return PDF, nil
	}
	return "", ErrUnsupported
}

// FromPath picks the export format from a file name's extension
func FromPath(path string) (Format, error) {
	return Parse(filepath.Ext(path))
}

// Detect detects the format of imported data using magic bytes. The name is
// only consulted to tell a DOCX apart from other zip containers.
func Detect(name string, data []byte) (Format, error) {
	mtype := mimetype.Detect(data)
	mimeType := mtype.String()
	log.Debug().Str("mime", mimeType).Str("file", name).Msg("detected file type")

	switch {
	case mtype.Is("application/pdf"):
		return PDF, nil
	case mtype.Is("application/vnd.openxmlformats-officedocument.wordprocessingml.document"):
		return DOCX, nil
	case mtype.Is("application/zip"):
		if strings.EqualFold(filepath.Ext(name), ".docx") || hasDocumentPart(data) {
			return DOCX, nil
		}
		log.Warn().Str("file", name).Msg("zip file is not a word document")
		return "", ErrUnsupported
	case mtype.Is("text/html"):
		return HTML, nil
	case strings.HasPrefix(mimeType, "text/"):
		if ext := strings.ToLower(filepath.Ext(name)); ext == ".html" || ext == ".htm" {
			return HTML, nil
		}
		return Text, nil
	}
	return "", ErrUnsupported
}

func hasDocumentPart(data []byte) bool {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return false
	}
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			return true
		}
	}
	return false
}
