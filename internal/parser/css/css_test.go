package css

import "testing"

func TestParseString(t *testing.T) {
	sheet, err := NewParser().ParseString(`
		/* headings */
		h1, h2 { font-size: 2em; margin: 0.67em 0; }
		ul li { margin-left: 40px !important; }
	`)
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	if len(sheet.Rules) != 2 {
		t.Fatalf("got %d rules, want 2", len(sheet.Rules))
	}

	first := sheet.Rules[0]
	if len(first.Selectors) != 2 || first.Selectors[0] != "h1" || first.Selectors[1] != "h2" {
		t.Errorf("selectors = %q", first.Selectors)
	}
	if len(first.Declarations) != 2 || first.Declarations[1].Value != "0.67em 0" {
		t.Errorf("declarations = %+v", first.Declarations)
	}

	second := sheet.Rules[1]
	if second.Selectors[0] != "ul li" {
		t.Errorf("descendant selector = %q, want %q", second.Selectors[0], "ul li")
	}
	if d := second.Declarations[0]; !d.Important || d.Value != "40px" {
		t.Errorf("important declaration = %+v", d)
	}
}

func TestParseDeclarations(t *testing.T) {
	decls := ParseDeclarations("Font-Size: 14px; ; font-weight:bold; bogus")
	if len(decls) != 2 {
		t.Fatalf("got %d declarations, want 2", len(decls))
	}
	if decls[0].Property != "font-size" || decls[0].Value != "14px" {
		t.Errorf("first = %+v", decls[0])
	}
	if decls[1].Property != "font-weight" || decls[1].Value != "bold" {
		t.Errorf("second = %+v", decls[1])
	}
}
