package pagination

import (
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/qwill/qwill/internal/caret"
	"github.com/qwill/qwill/internal/layout"
	"github.com/qwill/qwill/internal/metrics"
	"github.com/qwill/qwill/internal/parser/html"
)

// ErrUnknownPage is returned for operations naming a page that is not in the
// sequence.
var ErrUnknownPage = errors.New("unknown page")

// DefaultMaxPasses bounds the balancing passes run for one mutation.
const DefaultMaxPasses = 64

// Renderer binds surfaces to pages. The store calls Mount for every page
// without a surface, including pages it creates while balancing. Mount may
// return nil when no surface can be created yet.
type Renderer interface {
	Mount(pageID string) layout.Surface
}

// Selectable is implemented by surfaces that hold a selection.
type Selectable interface {
	Selection() (caret.Selection, bool)
	Select(caret.Selection)
	ClearSelection()
}

// StoreOption configures a Store
type StoreOption func(*Store)

// WithRenderer sets the renderer used to mount surfaces
func WithRenderer(r Renderer) StoreOption {
	return func(s *Store) {
		s.renderer = r
	}
}

// WithMaxPasses sets the limit of balancing passes per mutation
func WithMaxPasses(n int) StoreOption {
	return func(s *Store) {
		if n > 0 {
			s.maxPasses = n
		}
	}
}

// Store owns the page sequence. Every accepted mutation runs the pipeline
// mutation, rebalance, commit before the call returns.
type Store struct {
	mu sync.Mutex

	pages     []Page
	surfaces  map[string]layout.Surface
	applied   map[string]string
	renderer  Renderer
	balancer  *Balancer
	maxPasses int

	focused  string
	snapshot caret.Snapshot
	hasCaret bool

	subscribers []func([]Page)
}

// NewStore creates a store holding one empty page
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		pages:     []Page{NewPage("")},
		surfaces:  make(map[string]layout.Surface),
		applied:   make(map[string]string),
		balancer:  NewBalancer(),
		maxPasses: DefaultMaxPasses,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.focused = s.pages[0].ID

	s.mu.Lock()
	s.settle()
	s.mu.Unlock()
	return s
}

// Pages returns a copy of the page sequence
func (s *Store) Pages() []Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Page(nil), s.pages...)
}

// Page returns the page with the given id
func (s *Store) Page(id string) (Page, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.index(id); i >= 0 {
		return s.pages[i], true
	}
	return Page{}, false
}

// FullContent returns the whole document: the page contents concatenated in
// order with split artifacts merged.
func (s *Store) FullContent() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Concat(s.pages)
}

// Subscribe registers fn to receive the page sequence after every mutation
// that changed it. fn runs outside the store's lock.
func (s *Store) Subscribe(fn func([]Page)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

// ReplacePageContent records new content for one page and rebalances.
func (s *Store) ReplacePageContent(id, content string) error {
	s.mu.Lock()
	i := s.index(id)
	if i < 0 {
		s.mu.Unlock()
		return ErrUnknownPage
	}
	before := s.pages
	s.pages = append([]Page(nil), s.pages...)
	s.pages[i].Content = html.Canonical(content)
	s.settle()
	s.unlockAndNotify(before)
	return nil
}

// ReplaceAllPages resets the sequence. Pages without an id get a fresh one;
// an empty sequence becomes a single empty page. Focus moves to the first
// page.
func (s *Store) ReplaceAllPages(pages []Page) {
	s.mu.Lock()
	before := s.pages

	next := make([]Page, 0, len(pages))
	seen := make(map[string]bool)
	for _, p := range pages {
		if p.ID == "" || seen[p.ID] {
			p.ID = NewPage("").ID
		}
		seen[p.ID] = true
		p.Content = html.Canonical(p.Content)
		next = append(next, p)
	}
	if len(next) == 0 {
		next = append(next, NewPage(""))
	}

	for id, surface := range s.surfaces {
		if !seen[id] {
			release(surface)
			delete(s.surfaces, id)
		}
	}
	s.applied = make(map[string]string)
	s.pages = next
	s.focused = next[0].ID
	s.snapshot, s.hasCaret = caret.Snapshot{}, false

	s.settle()
	s.unlockAndNotify(before)
}

// RegisterSurface binds a measurement surface to a page and rebalances.
// Registering the bound surface again does nothing; unknown pages are
// ignored.
func (s *Store) RegisterSurface(id string, surface layout.Surface) {
	s.mu.Lock()
	if s.index(id) < 0 || surface == nil || s.surfaces[id] == surface {
		s.mu.Unlock()
		return
	}
	before := s.pages
	s.surfaces[id] = surface
	delete(s.applied, id)
	s.settle()
	s.unlockAndNotify(before)
}

// Invalidate drops the surface bound to a page. The renderer, if any, mounts
// a new one.
func (s *Store) Invalidate(id string) {
	s.mu.Lock()
	before := s.pages
	if surface, ok := s.surfaces[id]; ok {
		release(surface)
		delete(s.surfaces, id)
	}
	delete(s.applied, id)
	s.settle()
	s.unlockAndNotify(before)
}

// Remount drops every surface binding and rebalances once the renderer has
// mounted new ones. Used when the page geometry or the font changes.
func (s *Store) Remount() {
	s.mu.Lock()
	before := s.pages
	for id, surface := range s.surfaces {
		release(surface)
		delete(s.surfaces, id)
	}
	s.applied = make(map[string]string)
	s.settle()
	s.unlockAndNotify(before)
}

// Rebalance runs the balancing pipeline without a mutation, for when the
// surfaces' capacity changed.
func (s *Store) Rebalance() {
	s.mu.Lock()
	before := s.pages
	s.settle()
	s.unlockAndNotify(before)
}

// Focus makes id the focused page with the caret at the end of its text.
func (s *Store) Focus(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(id)
	if i < 0 {
		return ErrUnknownPage
	}
	s.focused = id
	end := caret.TextLength(html.ParseFragment(s.pages[i].Content))
	s.snapshot, s.hasCaret = caret.Snapshot{Start: end, End: end}, true
	s.applyCaret()
	return nil
}

// Focused returns the id of the focused page
func (s *Store) Focused() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.focused
}

// Select focuses id and places the selection at the snapshot's offsets.
func (s *Store) Select(id string, snap caret.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index(id) < 0 {
		return ErrUnknownPage
	}
	s.focused = id
	s.snapshot, s.hasCaret = snap, true
	s.applyCaret()
	return nil
}

// Caret returns the focused page and the selection in it.
func (s *Store) Caret() (string, caret.Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.captureCaret()
	return s.focused, s.snapshot, s.hasCaret
}

func (s *Store) index(id string) int {
	for i, p := range s.pages {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) unlockAndNotify(before []Page) {
	changed := !samePages(before, s.pages)
	pages := append([]Page(nil), s.pages...)
	subscribers := slices.Clone(s.subscribers)
	s.mu.Unlock()

	if !changed {
		return
	}
	for _, fn := range subscribers {
		fn(pages)
	}
}

func samePages(a, b []Page) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// settle runs balancing passes until one makes no change. It must be called
// with the lock held.
func (s *Store) settle() {
	for pass := 0; pass < s.maxPasses; pass++ {
		start := time.Now()

		s.mount()
		if !s.bound() {
			metrics.IncDeferredPass()
			log.Debug().Int("pages", len(s.pages)).Msg("balancing deferred, not every page has a surface")
			return
		}
		s.sync()

		global, hasGlobal := s.globalCaret()
		order := make([]string, len(s.pages))
		for i, p := range s.pages {
			order[i] = p.ID
		}

		slots := make([]*Slot, len(s.pages))
		for i, p := range s.pages {
			slots[i] = &Slot{ID: p.ID, Surface: s.surfaces[p.ID]}
		}
		slots, rep := s.balancer.Balance(slots, s.create)
		s.commit(slots, rep)

		if hasGlobal {
			s.placeCaret(global, order)
		}
		s.applyCaret()

		metrics.ObservePass(rep.Changed(), time.Since(start))
		if !rep.Changed() {
			return
		}
	}
	log.Warn().Int("passes", s.maxPasses).Msg("balancing did not settle")
}

func (s *Store) mount() {
	if s.renderer == nil {
		return
	}
	for _, p := range s.pages {
		if s.surfaces[p.ID] != nil {
			continue
		}
		if surface := s.renderer.Mount(p.ID); surface != nil {
			s.surfaces[p.ID] = surface
			delete(s.applied, p.ID)
		}
	}
}

func (s *Store) bound() bool {
	for _, p := range s.pages {
		if s.surfaces[p.ID] == nil {
			return false
		}
	}
	return true
}

// sync rebuilds every surface whose content is behind its page, keeping the
// selection of selectable surfaces in place.
func (s *Store) sync() {
	for _, p := range s.pages {
		if content, ok := s.applied[p.ID]; ok && content == p.Content {
			continue
		}
		surface := s.surfaces[p.ID]
		root := surface.Root()

		sel, hasSel := selectionOf(surface)
		var snap caret.Snapshot
		if hasSel {
			snap, hasSel = caret.Capture(root, sel)
		}

		html.ReplaceChildren(root, html.ParseFragment(p.Content))
		s.applied[p.ID] = p.Content

		if hasSel {
			restored, ok := caret.Restore(root, snap)
			metrics.IncCaretRestore(ok)
			if ok {
				surface.(Selectable).Select(restored)
			}
		}
	}
}

func (s *Store) create() *Slot {
	p := NewPage("")
	slot := &Slot{ID: p.ID}
	if s.renderer != nil {
		slot.Surface = s.renderer.Mount(p.ID)
	}
	if slot.Surface != nil {
		html.ReplaceChildren(slot.Surface.Root(), html.NewRoot())
		s.surfaces[p.ID] = slot.Surface
	} else {
		slot.Root = html.NewRoot()
	}
	return slot
}

// commit serializes the balanced slots back into the page sequence.
func (s *Store) commit(slots []*Slot, rep Report) {
	pages := make([]Page, len(slots))
	for i, slot := range slots {
		root := slot.root()
		html.Normalize(root)
		content := html.Render(root)
		pages[i] = Page{ID: slot.ID, Content: content}
		if slot.Surface != nil {
			s.applied[slot.ID] = content
		}
	}
	for _, id := range rep.Pruned {
		if surface, ok := s.surfaces[id]; ok {
			release(surface)
			delete(s.surfaces, id)
		}
		delete(s.applied, id)
	}
	s.pages = pages
}

// captureCaret reads the selection of the focused surface into the snapshot.
func (s *Store) captureCaret() {
	surface := s.surfaces[s.focused]
	sel, ok := selectionOf(surface)
	if !ok {
		return
	}
	if snap, ok := caret.Capture(surface.Root(), sel); ok {
		s.snapshot, s.hasCaret = snap, true
	}
}

// globalCaret converts the caret into offsets from the start of the document.
func (s *Store) globalCaret() (caret.Snapshot, bool) {
	s.captureCaret()
	if !s.hasCaret {
		return caret.Snapshot{}, false
	}
	offset := 0
	for _, p := range s.pages {
		if p.ID == s.focused {
			return caret.Snapshot{Start: s.snapshot.Start + offset, End: s.snapshot.End + offset}, true
		}
		offset += caret.TextLength(s.surfaces[p.ID].Root())
	}
	return caret.Snapshot{}, false
}

// placeCaret maps a document offset back onto the pages. An offset on the
// boundary of two pages stays with the focused page when it is one of them.
// When the offset cannot be placed and the focused page is gone, the caret
// moves to the end of the closest page that preceded it in order.
func (s *Store) placeCaret(global caret.Snapshot, order []string) {
	offset := 0
	for i, p := range s.pages {
		length := caret.TextLength(html.ParseFragment(p.Content))
		last := i == len(s.pages)-1
		if global.Start < offset+length || (global.Start == offset+length && (last || p.ID == s.focused)) {
			start := global.Start - offset
			end := min(global.End-offset, length)
			s.focused = p.ID
			s.snapshot = caret.Snapshot{Start: start, End: max(start, end)}
			return
		}
		offset += length
	}

	if s.index(s.focused) >= 0 {
		return
	}
	for k := slices.Index(order, s.focused) - 1; k >= 0; k-- {
		if i := s.index(order[k]); i >= 0 {
			end := caret.TextLength(html.ParseFragment(s.pages[i].Content))
			s.focused = s.pages[i].ID
			s.snapshot = caret.Snapshot{Start: end, End: end}
			return
		}
	}
	s.focused = s.pages[0].ID
	s.snapshot = caret.Snapshot{}
}

// applyCaret sets the selection of the focused surface and clears the others.
func (s *Store) applyCaret() {
	for id, surface := range s.surfaces {
		sel, ok := surface.(Selectable)
		if !ok {
			continue
		}
		if id != s.focused || !s.hasCaret {
			sel.ClearSelection()
			continue
		}
		restored, ok := caret.Restore(surface.Root(), s.snapshot)
		metrics.IncCaretRestore(ok)
		if ok {
			sel.Select(restored)
		}
	}
}

func selectionOf(surface layout.Surface) (caret.Selection, bool) {
	sel, ok := surface.(Selectable)
	if !ok {
		return caret.Selection{}, false
	}
	return sel.Selection()
}

func release(surface layout.Surface) {
	if sel, ok := surface.(Selectable); ok {
		sel.ClearSelection()
	}
}
