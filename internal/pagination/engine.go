package pagination

import (
	"github.com/rs/zerolog/log"

	"github.com/qwill/qwill/internal/layout"
	"github.com/qwill/qwill/internal/metrics"
	"github.com/qwill/qwill/internal/parser/html"
)

// Slot is a page as seen by the balancer: its id, its live content root and
// the surface measuring that root. A slot without a surface is carried along
// but never balanced.
type Slot struct {
	ID      string
	Root    *html.Node
	Surface layout.Surface
}

func (s *Slot) root() *html.Node {
	if s.Surface != nil {
		return s.Surface.Root()
	}
	if s.Root == nil {
		s.Root = html.NewRoot()
	}
	return s.Root
}

// Report summarizes one balancing pass
type Report struct {
	Pushed    int
	Pulled    int
	Created   int
	Pruned    []string
	Oversized int
}

// Changed reports whether the pass changed the page structure. A pass
// without changes is the fixed point.
func (r Report) Changed() bool {
	return r.Pushed > 0 || r.Pulled > 0 || r.Created > 0 || len(r.Pruned) > 0
}

// Balancer flows content between consecutive pages until no page overflows
// and no page could take more from its successor.
type Balancer struct {
	splitter Splitter
}

// NewBalancer creates a new balancer
func NewBalancer() *Balancer {
	return &Balancer{}
}

// Balance runs one pass over slots. create is called when the last page
// overflows and must return a new, empty slot. The returned sequence has the
// created pages appended and empty pages after the first removed.
func (b *Balancer) Balance(slots []*Slot, create func() *Slot) ([]*Slot, Report) {
	var rep Report

	for i := 0; i < len(slots); i++ {
		s := slots[i].Surface
		if s == nil {
			continue
		}

		for layout.Overflowing(s) {
			frag, oversized := b.splitter.Push(s)
			if frag == nil {
				if oversized {
					rep.Oversized++
					metrics.IncOversized()
					log.Debug().Str("page", slots[i].ID).Msg("unit exceeds page capacity, left in place")
				}
				break
			}
			if i+1 == len(slots) {
				slots = append(slots, create())
				rep.Created++
				metrics.IncPageCreated()
			}
			prependAll(slots[i+1].root(), frag)
			rep.Pushed++
			metrics.IncPushed()
		}

		if i+1 == len(slots) || layout.Overflowing(s) {
			continue
		}
		next := slots[i+1].root()
		for next.FirstChild != nil {
			moved, stop := b.splitter.Pull(s, next)
			if moved {
				rep.Pulled++
				metrics.IncPulled()
			}
			if stop {
				break
			}
		}
	}

	kept := slots[:0]
	for i, slot := range slots {
		if i > 0 && html.IsBlank(slot.root()) {
			rep.Pruned = append(rep.Pruned, slot.ID)
			metrics.IncPagePruned()
			continue
		}
		kept = append(kept, slot)
	}
	if len(kept) > 0 {
		unmarkLeading(kept[0].root())
	}

	if rep.Changed() {
		log.Debug().
			Int("pushed", rep.Pushed).
			Int("pulled", rep.Pulled).
			Int("created", rep.Created).
			Int("pruned", len(rep.Pruned)).
			Int("pages", len(kept)).
			Msg("balanced pages")
	}
	return kept, rep
}
