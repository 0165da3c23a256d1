package lexlang

import "testing"

func TestCompileBuiltinTable(t *testing.T) {
	langs, err := Compile(BuiltinTable())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	for _, def := range BuiltinTable() {
		cl, ok := langs[def.Tag]
		if !ok {
			t.Errorf("missing compiled entry for tag %q", def.Tag)
			continue
		}
		if cl.Def.Tag != def.Tag {
			t.Errorf("tag mismatch: got %q, want %q", cl.Def.Tag, def.Tag)
		}
		if def.Tag != MarkdownTag && cl.TokenRe == nil {
			t.Errorf("%q: expected a compiled token regexp", def.Tag)
		}
	}
}

func TestDetectByExtension(t *testing.T) {
	langs, err := Compile(BuiltinTable())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	tests := []struct {
		ext     string
		wantTag string
	}{
		{".py", "python"},
		{".rs", "rust"},
		{".c", "c"},
	}
	for _, tt := range tests {
		cl, ok := DetectByExtension(langs, tt.ext)
		if !ok {
			t.Errorf("DetectByExtension(%q): not found", tt.ext)
			continue
		}
		if cl.Def.Tag != tt.wantTag {
			t.Errorf("DetectByExtension(%q) = %q, want %q", tt.ext, cl.Def.Tag, tt.wantTag)
		}
	}

	if _, ok := DetectByExtension(langs, ".doesnotexist"); ok {
		t.Error("expected no match for an unknown extension")
	}
}
