// Package qwill is a paginated rich-text editor engine. Content is kept as a
// sequence of fixed-size pages and rebalanced after every edit so that no
// page overflows and no page leaves room its successor could fill.
package qwill

import (
	"context"

	"github.com/qwill/qwill/internal/autosave"
	"github.com/qwill/qwill/internal/filetype"
	"github.com/qwill/qwill/internal/storage"
	"github.com/qwill/qwill/pkg/api"
)

type Editor = api.Editor
type Options = api.Options
type Option = api.Option
type PageOrientation = api.PageOrientation
type Page = api.Page
type Caret = api.Caret

type Format = filetype.Format
type Backend = storage.Backend
type Meta = storage.Meta
type AutosaveStatus = autosave.Status

func New(opts ...Option) *Editor              { return api.New(opts...) }
func NewWithOptions(options Options) *Editor { return api.NewWithOptions(options) }
func DefaultOptions() Options                { return api.DefaultOptions() }

// OpenStorage opens a document store: a directory path, file://, redis://
// or s3://bucket/prefix.
func OpenStorage(ctx context.Context, url string) (Backend, error) { return storage.Open(ctx, url) }

// Encrypt wraps a store so document content is encrypted at rest.
func Encrypt(b Backend, passphrase string) Backend { return storage.NewEncrypted(b, passphrase) }

var (
	WithPageSize        = api.WithPageSize
	WithMargins         = api.WithMargins
	WithDPI             = api.WithDPI
	WithDebug           = api.WithDebug
	WithFont            = api.WithFont
	WithLineHeight      = api.WithLineHeight
	WithStylesheet      = api.WithStylesheet
	WithMaxPasses       = api.WithMaxPasses
	WithResourcePath    = api.WithResourcePath
	WithTitle           = api.WithTitle
	WithAuthor          = api.WithAuthor
	WithSubject         = api.WithSubject
	WithKeywords        = api.WithKeywords
	WithPageSizeA4      = api.WithPageSizeA4
	WithPageSizeLetter  = api.WithPageSizeLetter
	WithPageSizeLegal   = api.WithPageSizeLegal
	WithPageOrientation = api.WithPageOrientation

	WithInlineResourcesOnly = api.WithInlineResourcesOnly

	ErrNotFound    = storage.ErrNotFound
	ErrUnsupported = filetype.ErrUnsupported
)

const (
	FormatHTML = filetype.HTML
	FormatText = filetype.Text
	FormatDOCX = filetype.DOCX
	FormatPDF  = filetype.PDF

	PageSizeA4Width      = api.PageSizeA4Width
	PageSizeA4Height     = api.PageSizeA4Height
	PageSizeA5Width      = api.PageSizeA5Width
	PageSizeA5Height     = api.PageSizeA5Height
	PageSizeLetterWidth  = api.PageSizeLetterWidth
	PageSizeLetterHeight = api.PageSizeLetterHeight
	PageSizeLegalWidth   = api.PageSizeLegalWidth
	PageSizeLegalHeight  = api.PageSizeLegalHeight

	PageOrientationPortrait  = api.PageOrientationPortrait
	PageOrientationLandscape = api.PageOrientationLandscape
)
