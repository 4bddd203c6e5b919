package layout

import (
	"math"

	"github.com/qwill/qwill/internal/parser/html"
	"github.com/qwill/qwill/internal/text"
)

type atomKind int

const (
	atomWord atomKind = iota
	atomSpace
	atomBreak
	atomImage
)

// atom is the smallest piece of inline content the line breaker handles.
// Consecutive glued words form one unbreakable word, even across text nodes
// and inline elements.
type atom struct {
	kind   atomKind
	text   string
	font   text.Font
	deco   Decoration
	width  float64
	height float64
	glue   bool
	src    string
}

// inline lays out a run of inline-level siblings as an anonymous block.
func (st *state) inline(nodes []*html.Node, ctx context) {
	var atoms []atom
	for _, n := range nodes {
		st.collect(n, ctx, &atoms)
	}
	if !visible(atoms) {
		return
	}

	st.y += st.margin
	st.margin = 0

	lb := &lineBuilder{st: st, ctx: ctx}
	lb.run(atoms)
}

func visible(atoms []atom) bool {
	for _, a := range atoms {
		if a.kind != atomSpace {
			return true
		}
	}
	return false
}

func (st *state) collect(n *html.Node, ctx context, atoms *[]atom) {
	last := func() *atom {
		if len(*atoms) == 0 {
			return nil
		}
		return &(*atoms)[len(*atoms)-1]
	}

	switch {
	case n.IsText():
		m := st.engine.measurer
		for _, tok := range text.Tokenize(n.Data, ctx.preserve) {
			switch tok.Kind {
			case text.Word:
				prev := last()
				*atoms = append(*atoms, atom{
					kind:   atomWord,
					text:   tok.Text,
					font:   ctx.font,
					deco:   ctx.deco,
					width:  text.Width(m, tok.Text, ctx.font),
					height: ctx.font.Line(),
					glue:   prev != nil && prev.kind == atomWord,
				})
			case text.Space:
				if prev := last(); !ctx.preserve && (prev == nil || prev.kind == atomSpace || prev.kind == atomBreak) {
					continue
				}
				*atoms = append(*atoms, atom{
					kind:   atomSpace,
					font:   ctx.font,
					width:  m.Advance(' ', ctx.font),
					height: ctx.font.Line(),
				})
			case text.Newline:
				*atoms = append(*atoms, atom{kind: atomBreak, font: ctx.font, height: ctx.font.Line()})
			}
		}
	case n.IsElement("br"):
		*atoms = append(*atoms, atom{kind: atomBreak, font: ctx.font, height: ctx.font.Line()})
	case n.IsElement("img"):
		w, h := st.imageSize(n, ctx)
		src, _ := n.Attribute("src")
		*atoms = append(*atoms, atom{kind: atomImage, src: src, width: w, height: h})
	case n.IsElement():
		if st.style(n).Get("display") == "none" {
			return
		}
		inner := st.inherit(n, ctx)
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			st.collect(c, inner, atoms)
		}
	}
}

// lineBuilder fills line boxes greedily.
type lineBuilder struct {
	st  *state
	ctx context

	runs   []Run
	x      float64
	space  float64
	items  int
	height float64
}

func (lb *lineBuilder) run(atoms []atom) {
	for i := 0; i < len(atoms) && !lb.st.stopped; i++ {
		a := atoms[i]
		switch a.kind {
		case atomSpace:
			if lb.items > 0 || lb.ctx.preserve {
				lb.space += a.width
			}
		case atomBreak:
			lb.height = math.Max(lb.height, a.height)
			lb.finish()
		case atomImage:
			if lb.items > 0 && lb.x+lb.space+a.width > lb.ctx.width {
				lb.finish()
			}
			lb.push(Run{Image: a.src, Width: a.width, Height: a.height}, a.height, false)
		case atomWord:
			j, total := i, a.width
			for j+1 < len(atoms) && atoms[j+1].kind == atomWord && atoms[j+1].glue {
				j++
				total += atoms[j].width
			}
			if lb.items > 0 && lb.x+lb.space+total > lb.ctx.width {
				lb.finish()
			}
			if lb.x+lb.space+total > lb.ctx.width {
				lb.breakWord(atoms[i : j+1])
			} else {
				for _, w := range atoms[i : j+1] {
					lb.push(Run{Text: w.text, Width: w.width, Font: w.font, Deco: w.deco}, w.height, true)
				}
			}
			i = j
		}
	}
	if lb.items > 0 && !lb.st.stopped {
		lb.finish()
	}
}

// breakWord places a word wider than the line rune by rune.
func (lb *lineBuilder) breakWord(word []atom) {
	m := lb.st.engine.measurer
	for _, a := range word {
		for _, r := range a.text {
			adv := m.Advance(r, a.font)
			if lb.items > 0 && lb.x+lb.space+adv > lb.ctx.width {
				lb.finish()
				if lb.st.stopped {
					return
				}
			}
			lb.push(Run{Text: string(r), Width: adv, Font: a.font, Deco: a.deco}, a.height, true)
		}
	}
}

func (lb *lineBuilder) push(run Run, height float64, mergeable bool) {
	run.X = lb.ctx.x + lb.x + lb.space
	if mergeable && lb.space == 0 && len(lb.runs) > 0 {
		prev := &lb.runs[len(lb.runs)-1]
		if prev.Image == "" && prev.Font == run.Font && prev.Deco == run.Deco {
			prev.Text += run.Text
			prev.Width += run.Width
			lb.x += run.Width
			lb.items++
			lb.height = math.Max(lb.height, height)
			return
		}
	}
	lb.x += lb.space + run.Width
	lb.space = 0
	lb.items++
	lb.height = math.Max(lb.height, height)
	lb.runs = append(lb.runs, run)
}

// finish closes the current line, even when it is empty.
func (lb *lineBuilder) finish() {
	st := lb.st
	h := math.Max(lb.ctx.font.Line(), lb.height)

	shift := 0.0
	switch lb.ctx.align {
	case "center":
		shift = (lb.ctx.width - lb.x) / 2
	case "right", "end":
		shift = lb.ctx.width - lb.x
	}
	if shift > 0 {
		for i := range lb.runs {
			lb.runs[i].X += shift
		}
	}

	st.lines = append(st.lines, Line{
		X:      lb.ctx.x,
		Y:      st.y,
		Width:  lb.ctx.width,
		Height: h,
		Runs:   lb.runs,
		Marker: st.marker,
		Font:   lb.ctx.font,
	})
	st.marker = ""
	st.y += h
	if st.y > st.limit {
		st.stopped = true
	}

	lb.runs = nil
	lb.x, lb.space, lb.items, lb.height = 0, 0, 0, 0
}
