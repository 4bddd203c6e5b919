package layout

import (
	"strings"
	"testing"

	"github.com/qwill/qwill/internal/parser/html"
	"github.com/qwill/qwill/internal/text"
)

// courier sets text in 12px Courier: every rune is 7.2px wide and lines are
// 18px tall.
func courier(width float64) *Engine {
	return NewEngine(Options{
		Width:  width,
		Height: 864,
		Font:   text.Font{Family: text.FamilyMono, Size: 12, LineHeight: 1.5},
	})
}

type stubSizer struct{ w, h float64 }

func (s stubSizer) ImageSize(string) (float64, float64, bool) { return s.w, s.h, true }

func TestLayoutHeights(t *testing.T) {
	tests := []struct {
		name    string
		width   float64
		content string
		want    float64
	}{
		{"one line", 624, "hello", 18},
		{"wraps at spaces", 50, "aaa bbb", 36},
		{"fits on one line", 60, "aaa bbb", 18},
		{"paragraph margins collapse", 624, "<p>a</p><p>b</p>", 72},
		{"empty blocks take no space", 624, "<p></p><p> </p><div><span></span></div>", 0},
		{"forced break", 624, "a<br>b", 36},
		{"trailing break", 624, "a<br>", 18},
		{"continuation merges with its block", 624, `<p>aaa</p><p data-continued="true">bbb</p>`, 42},
		{"hidden content", 624, `<p style="display:none">a</p>`, 0},
		{"long word breaks per rune", 40, "aaaaaaaaaa", 36},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := courier(tt.width)
			got := e.Layout(html.ParseFragment(tt.content)).Height
			if got != tt.want {
				t.Errorf("Height = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPageCapacity(t *testing.T) {
	e := courier(624)

	full := e.Layout(html.ParseFragment(strings.Repeat("a", 4128)))
	if full.Height != 864 {
		t.Errorf("4128 runes: Height = %v, want 864", full.Height)
	}
	over := e.Layout(html.ParseFragment(strings.Repeat("a", 4129)))
	if over.Height != 882 {
		t.Errorf("4129 runes: Height = %v, want 882", over.Height)
	}
}

func TestSplitTextMeasuresLikeWhole(t *testing.T) {
	e := courier(50)

	whole := html.ParseFragment("<p>aaa bbb ccc</p>")
	split := html.NewRoot()
	p := html.NewElement("p")
	p.AppendChild(html.NewText("aaa b"))
	split.AppendChild(p)
	cont := html.NewElement("p")
	html.MarkContinuation(cont)
	cont.AppendChild(html.NewText("bb ccc"))
	split.AppendChild(cont)

	a, b := e.Layout(whole).Height, e.Layout(split).Height
	if a != b {
		t.Errorf("split height %v, whole height %v", b, a)
	}
}

func TestImageSizing(t *testing.T) {
	tests := []struct {
		name    string
		sizer   stubSizer
		content string
		want    float64
	}{
		{"intrinsic", stubSizer{100, 50}, `<img src="x">`, 50},
		{"clamped to line width", stubSizer{1248, 100}, `<img src="x">`, 50},
		{"width attribute keeps ratio", stubSizer{100, 50}, `<img src="x" width="200">`, 100},
		{"style height", stubSizer{100, 50}, `<img src="x" style="height: 80px">`, 80},
		{"smaller than a line", stubSizer{10, 10}, `<img src="x">`, 18},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := courier(624)
			e.SetImageSizer(tt.sizer)
			got := e.Layout(html.ParseFragment(tt.content)).Height
			if got != tt.want {
				t.Errorf("Height = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMeasureStopsAtLimit(t *testing.T) {
	e := courier(624)
	root := html.ParseFragment(strings.Repeat("<div>a</div>", 60))

	full := e.Layout(root)
	if full.Height != 60*18 || full.Fold != -1 {
		t.Errorf("Layout() = %v, fold %d", full.Height, full.Fold)
	}

	bounded := e.Measure(root, 865)
	if bounded.Height != 49*18 {
		t.Errorf("Measure() height = %v, want %v", bounded.Height, 49*18)
	}
	if bounded.Fold != 49 {
		t.Errorf("Measure() fold = %d, want 49", bounded.Fold)
	}
}

func TestPageSurface(t *testing.T) {
	s := NewPageSurface(courier(624))
	if s.AvailableExtent() != 864 {
		t.Fatalf("AvailableExtent() = %v", s.AvailableExtent())
	}

	html.ReplaceChildren(s.Root(), html.ParseFragment(strings.Repeat("a", 4128)))
	if Overflowing(s) {
		t.Error("full page reported overflowing")
	}
	if WouldFit(s, html.NewText("a")) {
		t.Error("one more rune reported fitting")
	}
	if got := html.RuneLen(html.TextContent(s.Root())); got != 4128 {
		t.Errorf("WouldFit left %d runes", got)
	}

	s.Root().AppendChild(html.NewText("a"))
	if !Overflowing(s) {
		t.Error("overfull page not overflowing")
	}
}

func TestListMarkers(t *testing.T) {
	e := courier(624)
	res := e.Layout(html.ParseFragment(`<ol start="3"><li>a</li><li>b</li></ol><ul><li>c</li></ul>`))

	var markers []string
	for _, l := range res.Lines {
		markers = append(markers, l.Marker)
	}
	want := []string{"3.", "4.", "•"}
	if strings.Join(markers, ",") != strings.Join(want, ",") {
		t.Errorf("markers = %q, want %q", markers, want)
	}
}
