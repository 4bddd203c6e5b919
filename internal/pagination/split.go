package pagination

import (
	"github.com/qwill/qwill/internal/layout"
	"github.com/qwill/qwill/internal/parser/html"
)

// Folder is implemented by surfaces that can report the first top-level child
// starting below their content box. The splitter moves such children in one
// step instead of unit by unit.
type Folder interface {
	Fold() int
}

// Splitter moves content across a page boundary. It works on atomic units:
// the innermost last node of a page when pushing and the innermost first node
// of the successor when pulling. Elements move whole; text is split at the
// largest prefix that fits, found by binary search.
type Splitter struct{}

// Push takes content off the tail of an overflowing surface. It returns a
// fragment whose children belong at the head of the next page. A nil fragment
// with oversized set means the page holds a single unit too large to fit
// anywhere; a nil fragment without it means nothing needed to move.
func (sp *Splitter) Push(s layout.Surface) (frag *html.Node, oversized bool) {
	root := s.Root()

	if f, ok := s.(Folder); ok {
		if k := f.Fold(); k > 0 {
			if frag := splitChildren(root, k); frag != nil {
				return frag, false
			}
		}
	}

	unit := html.LastLeaf(root)
	if unit == nil {
		return nil, true
	}
	alone := html.FirstLeaf(root) == unit

	if !unit.IsText() {
		if alone {
			return nil, true
		}
		return carry(root, unit, unit), false
	}

	runes := []rune(unit.Data)
	k := keepPrefix(s, unit, runes)
	switch {
	case k == len(runes):
		return nil, false
	case k > 0:
		unit.Data = string(runes[:k])
		return carry(root, unit, html.NewText(string(runes[k:]))), false
	case alone:
		return nil, true
	}
	return carry(root, unit, unit), false
}

// keepPrefix finds the largest k such that keeping runes[:k] in unit leaves
// the surface within its box. unit is restored before returning.
func keepPrefix(s layout.Surface, unit *html.Node, runes []rune) int {
	original := unit.Data
	defer func() { unit.Data = original }()

	fits := func(k int) bool {
		unit.Data = string(runes[:k])
		return !layout.Overflowing(s)
	}

	if !fits(0) {
		return 0
	}
	return search(len(runes), fits)
}

// search returns the largest k in [1, n] with fits(k), or 0. fits must be
// monotone: true up to some k and false after it.
func search(n int, fits func(int) bool) int {
	best := 0
	lo, hi := 1, n
	for lo <= hi {
		mid := lo + (hi-lo)/2
		if fits(mid) {
			best = mid
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	return best
}

// Pull moves the head unit of next onto the end of s if it fits. A text unit
// that does not fit whole is split at the largest prefix that does. stop
// reports that pulling from next must end: the head did not fully fit or next
// is empty.
func (sp *Splitter) Pull(s layout.Surface, next *html.Node) (moved, stop bool) {
	unit := html.FirstLeaf(next)
	if unit == nil {
		return false, true
	}

	piece := unit.Clone()
	trial := shells(next, unit, piece)
	if layout.WouldFit(s, trial) {
		s.Root().AppendChild(trial)
		parent := unit.Parent
		unit.Detach()
		continueRemainder(next, parent)
		return true, false
	}
	if !unit.IsText() {
		return false, true
	}

	runes := []rune(unit.Data)
	s.Root().AppendChild(trial)
	k := search(len(runes)-1, func(k int) bool {
		piece.Data = string(runes[:k])
		return !layout.Overflowing(s)
	})
	if k == 0 {
		trial.Detach()
		return false, true
	}

	piece.Data = string(runes[:k])
	unit.Data = string(runes[k:])
	continueRemainder(next, unit.Parent)
	return true, true
}

// carry moves piece out of root. piece is either unit itself or a tail split
// off it. It is wrapped in shallow copies of the unit's ancestors: a copy is
// marked as a continuation when its original keeps content on this page,
// otherwise the original is removed and the copy takes its place.
func carry(root, unit, piece *html.Node) *html.Node {
	anc := unit.Parent
	if piece == unit {
		unit.Detach()
	}

	moved := piece
	for anc != nil && anc != root {
		parent := anc.Parent
		shell := anc.ShallowClone()
		if anc.FirstChild != nil {
			html.MarkContinuation(shell)
		} else {
			anc.Detach()
		}
		shell.AppendChild(moved)
		moved = shell
		anc = parent
	}

	frag := html.NewRoot()
	frag.AppendChild(moved)
	return frag
}

// shells wraps piece in shallow copies of unit's ancestors below root. The
// copies keep their originals' markers.
func shells(root, unit, piece *html.Node) *html.Node {
	top := piece
	for anc := unit.Parent; anc != nil && anc != root; anc = anc.Parent {
		shell := anc.ShallowClone()
		shell.AppendChild(top)
		top = shell
	}
	return top
}

// continueRemainder prunes the ancestors emptied by a pull and marks the ones
// left behind: they now continue the copies on the previous page.
func continueRemainder(root, anc *html.Node) {
	for anc != nil && anc != root {
		parent := anc.Parent
		if anc.FirstChild == nil {
			anc.Detach()
		} else {
			html.MarkContinuation(anc)
		}
		anc = parent
	}
}

// splitChildren detaches the children of root from index k on.
func splitChildren(root *html.Node, k int) *html.Node {
	c := root.FirstChild
	for i := 0; i < k && c != nil; i++ {
		c = c.NextSibling
	}
	if c == nil {
		return nil
	}
	frag := html.NewRoot()
	for c != nil {
		next := c.NextSibling
		frag.AppendChild(c)
		c = next
	}
	return frag
}

// prependAll moves the children of frag to the front of dst, in order.
func prependAll(dst, frag *html.Node) {
	for c := frag.LastChild; c != nil; c = frag.LastChild {
		dst.PrependChild(c)
	}
}
