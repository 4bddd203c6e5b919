// Package api is the editor controller: it owns the page sequence, lays pages
// out on fixed-size surfaces and keeps content balanced across them.
package api

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/qwill/qwill/internal/autosave"
	"github.com/qwill/qwill/internal/caret"
	"github.com/qwill/qwill/internal/layout"
	"github.com/qwill/qwill/internal/pagination"
	"github.com/qwill/qwill/internal/parser/css"
	"github.com/qwill/qwill/internal/res"
	"github.com/qwill/qwill/internal/storage"
	"github.com/qwill/qwill/internal/style"
	"github.com/qwill/qwill/internal/text"
)

// Page is one page of the document
type Page = pagination.Page

// Caret is the selection in the focused page, as rune offsets into its text.
type Caret struct {
	PageID string
	Start  int
	End    int
}

// Editor is the main API of the word processor. It is safe for concurrent
// use.
type Editor struct {
	mu      sync.RWMutex
	options Options
	engine  *layout.Engine
	loader  *res.Loader
	saver   *autosave.Saver

	store *pagination.Store
}

// New creates an editor with the default options modified by opts
func New(opts ...Option) *Editor {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	return NewWithOptions(options)
}

// NewWithOptions creates an editor with the specified options
func NewWithOptions(options Options) *Editor {
	if options.DPI <= 0 {
		options.DPI = 96
	}
	if options.Debug {
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	}

	e := &Editor{
		options: options,
		loader:  res.NewLoader(""),
	}
	for _, path := range options.ResourcePaths {
		e.loader.AddSearchPath(path)
	}
	if options.InlineResourcesOnly {
		e.loader.InlineOnly()
	}
	e.engine = e.newEngine(options)

	e.store = pagination.NewStore(
		pagination.WithRenderer(e),
		pagination.WithMaxPasses(options.MaxPasses),
	)
	e.store.Subscribe(e.changed)

	width, height := options.ContentBox()
	log.Debug().
		Float64("width", width).
		Float64("height", height).
		Str("font", options.FontFamily).
		Msg("editor ready")
	return e
}

func (e *Editor) newEngine(options Options) *layout.Engine {
	width, height := options.ContentBox()
	engine := layout.NewEngine(layout.Options{
		Width:  width,
		Height: height,
		Font: text.Font{
			Family:     text.ResolveFamily(options.FontFamily, text.FamilySerif),
			Size:       options.FontSize,
			LineHeight: options.LineHeight,
		},
	})
	engine.SetImageSizer(e.loader)

	if options.Stylesheet != "" {
		sheet, err := css.NewParser().ParseString(options.Stylesheet)
		if err != nil {
			log.Warn().Err(err).Msg("ignoring stylesheet")
		} else {
			styles := style.NewStyleEngine()
			styles.AddStylesheet(sheet)
			engine.SetStyles(styles)
		}
	}
	return engine
}

// Mount creates the surface of a page. The store calls it for every page
// that has none.
func (e *Editor) Mount(pageID string) layout.Surface {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return layout.NewPageSurface(e.engine)
}

func (e *Editor) changed([]Page) {
	e.mu.RLock()
	saver := e.saver
	e.mu.RUnlock()
	if saver != nil {
		saver.Touch()
	}
}

// Options returns the current options
func (e *Editor) Options() Options {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.options
}

// Pages returns the page sequence
func (e *Editor) Pages() []Page {
	return e.store.Pages()
}

// SetPageContent replaces the content of one page and rebalances the
// document.
func (e *Editor) SetPageContent(id, content string) error {
	if err := e.store.ReplacePageContent(id, content); err != nil {
		return fmt.Errorf("failed to set content of page %s: %w", id, err)
	}
	return nil
}

// SetPages replaces the document with one page per content and rebalances.
// Without contents the document becomes a single empty page.
func (e *Editor) SetPages(contents ...string) {
	pages := make([]Page, len(contents))
	for i, c := range contents {
		pages[i] = Page{Content: c}
	}
	e.store.ReplaceAllPages(pages)
}

// Reset clears the document
func (e *Editor) Reset() {
	e.SetPages()
}

// FullContent returns the whole document as one fragment
func (e *Editor) FullContent() string {
	return e.store.FullContent()
}

// Focus moves the caret to the end of a page
func (e *Editor) Focus(id string) error {
	return e.store.Focus(id)
}

// Focused returns the id of the focused page
func (e *Editor) Focused() string {
	return e.store.Focused()
}

// SetCaret focuses a page and selects the text between two rune offsets.
func (e *Editor) SetCaret(id string, start, end int) error {
	if end < start {
		start, end = end, start
	}
	return e.store.Select(id, caret.Snapshot{Start: start, End: end})
}

// Caret returns the current selection. ok is false before anything was
// focused.
func (e *Editor) Caret() (Caret, bool) {
	id, snap, ok := e.store.Caret()
	return Caret{PageID: id, Start: snap.Start, End: snap.End}, ok
}

// SetFont changes the document font. Every page is measured again and the
// document rebalanced.
func (e *Editor) SetFont(family string) {
	e.mu.Lock()
	if family == e.options.FontFamily {
		e.mu.Unlock()
		return
	}
	e.options.FontFamily = family
	e.engine = e.newEngine(e.options)
	e.mu.Unlock()

	log.Info().Str("font", family).Msg("font changed")
	e.store.Remount()
}

// Title is the first line of the first page, or "Untitled".
func (e *Editor) Title() string {
	pages := e.store.Pages()
	return titleOf(pages[0].Content)
}

// Preview is the beginning of the first page's text.
func (e *Editor) Preview() string {
	pages := e.store.Pages()
	return previewOf(pages[0].Content)
}

// Meta describes the document for storage under id
func (e *Editor) Meta(id string) storage.Meta {
	pages := e.store.Pages()
	return storage.Meta{ID: id, Name: titleOf(pages[0].Content), Preview: previewOf(pages[0].Content)}
}

// Open replaces the document with the one stored under id
func (e *Editor) Open(ctx context.Context, backend storage.Backend, id string) (storage.Meta, error) {
	content, meta, err := backend.Load(ctx, id)
	if err != nil {
		return storage.Meta{}, fmt.Errorf("failed to load document %s: %w", id, err)
	}
	e.SetPages(content)
	log.Info().Str("id", id).Int("pages", len(e.Pages())).Msg("opened document")
	return meta, nil
}

// Save stores the document under id
func (e *Editor) Save(ctx context.Context, backend storage.Backend, id string) (storage.Meta, error) {
	meta := e.Meta(id)
	meta.LastModified = time.Now().UTC()
	if err := backend.Save(ctx, meta, e.FullContent()); err != nil {
		return storage.Meta{}, fmt.Errorf("failed to save document %s: %w", id, err)
	}
	return meta, nil
}

// EnableAutosave saves the document under id after every change, once the
// document has been stable for delay. A previous autosave is closed first.
func (e *Editor) EnableAutosave(backend storage.Backend, id string, delay time.Duration) {
	saver := autosave.New(backend, func() (storage.Meta, string) {
		return e.Meta(id), e.FullContent()
	}, delay)

	e.mu.Lock()
	previous := e.saver
	e.saver = saver
	e.mu.Unlock()

	if previous != nil {
		if err := previous.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to save before switching autosave")
		}
	}
}

// AutosaveStatus reports the state of autosave
func (e *Editor) AutosaveStatus() autosave.Status {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.saver == nil {
		return autosave.StatusIdle
	}
	return e.saver.Status()
}

// Flush saves pending changes immediately when autosave is enabled
func (e *Editor) Flush(ctx context.Context) error {
	e.mu.RLock()
	saver := e.saver
	e.mu.RUnlock()
	if saver == nil {
		return nil
	}
	return saver.Flush(ctx)
}

// Close saves pending changes and stops autosave
func (e *Editor) Close() error {
	e.mu.Lock()
	saver := e.saver
	e.saver = nil
	e.mu.Unlock()
	if saver == nil {
		return nil
	}
	return saver.Close()
}

func (e *Editor) currentEngine() (*layout.Engine, Options) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.engine, e.options
}
