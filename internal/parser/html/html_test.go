package html

import "testing"

func TestParseFragmentRender(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain text", "Hello", "Hello"},
		{"inline formatting", "<p>Hello <b>World</b></p>", "<p>Hello <b>World</b></p>"},
		{"comments dropped", "<p>a<!-- note -->b</p>", "<p>ab</p>"},
		{"void element", "<p>a<br>b</p>", "<p>a<br/>b</p>"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := ParseFragment(tt.input)
			Normalize(root)
			if got := Render(root); got != tt.want {
				t.Errorf("Render() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNormalizeMergesContinuations(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			"split paragraph",
			`<p>AB</p><p data-continued="true">CD</p>`,
			"<p>ABCD</p>",
		},
		{
			"nested split",
			`<ul><li>a</li></ul><ul data-continued="true"><li data-continued="true">b</li></ul>`,
			"<ul><li>ab</li></ul>",
		},
		{
			"different attributes are kept apart",
			`<p class="x">AB</p><p class="y" data-continued="true">CD</p>`,
			`<p class="x">AB</p><p class="y" data-continued="true">CD</p>`,
		},
		{
			"unmarked siblings are kept apart",
			"<p>AB</p><p>CD</p>",
			"<p>AB</p><p>CD</p>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Canonical(tt.input); got != tt.want {
				t.Errorf("Canonical() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsBlank(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"", true},
		{"   \n ", true},
		{"<p><br></p>", true},
		{"<p> </p><div></div>", true},
		{"<p></p><br><hr>", true},
		{"Content", false},
		{`<p><img src="a.png"></p>`, false},
	}

	for _, tt := range tests {
		if got := IsBlank(ParseFragment(tt.input)); got != tt.want {
			t.Errorf("IsBlank(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestLeaves(t *testing.T) {
	root := ParseFragment("<div><p>first</p><p>mid <b>last</b></p></div>")

	if first := FirstLeaf(root); !first.IsText() || first.Data != "first" {
		t.Errorf("FirstLeaf = %+v, want text %q", first, "first")
	}
	if last := LastLeaf(root); !last.IsText() || last.Data != "last" {
		t.Errorf("LastLeaf = %+v, want text %q", last, "last")
	}
	if FirstLeaf(NewRoot()) != nil || LastLeaf(NewRoot()) != nil {
		t.Error("leaves of an empty root should be nil")
	}
}

func TestCloneIsDetachedAndDeep(t *testing.T) {
	root := ParseFragment(`<p class="a">hello <i>there</i></p>`)
	p := root.FirstChild

	clone := p.Clone()
	if clone.Parent != nil {
		t.Fatal("clone should be detached")
	}
	clone.FirstChild.Data = "bye "
	clone.SetAttribute("class", "b")

	if got := Render(root); got != `<p class="a">hello <i>there</i></p>` {
		t.Errorf("original changed through clone: %q", got)
	}
}

func TestTreeMutation(t *testing.T) {
	root := NewRoot()
	a, b, c := NewText("a"), NewText("b"), NewText("c")
	root.AppendChild(b)
	root.PrependChild(a)
	root.AppendChild(c)

	if got := TextContent(root); got != "abc" {
		t.Fatalf("TextContent = %q, want abc", got)
	}

	root.RemoveChild(b)
	if got := TextContent(root); got != "ac" {
		t.Fatalf("after remove TextContent = %q, want ac", got)
	}
	if b.Parent != nil || b.NextSibling != nil || b.PrevSibling != nil {
		t.Error("removed node keeps links")
	}

	other := NewRoot()
	other.AppendChild(c)
	if root.ChildCount() != 1 || other.ChildCount() != 1 {
		t.Errorf("append should move the node: root=%d other=%d", root.ChildCount(), other.ChildCount())
	}
	if !other.Contains(c) || root.Contains(c) {
		t.Error("Contains reports the wrong parent")
	}
}

func TestDocumentBody(t *testing.T) {
	doc, err := NewParser().ParseString("<html><head><title>x</title></head><body><p>hi</p></body></html>")
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	if got := Render(doc.Body()); got != "<p>hi</p>" {
		t.Errorf("body = %q", got)
	}
}
