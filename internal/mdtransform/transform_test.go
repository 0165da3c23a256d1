package mdtransform

import (
	"testing"

	"github.com/dshills/editorsrv/internal/lexlang"
	"github.com/dshills/editorsrv/internal/lexsource"
)

func pythonLang(t *testing.T) *lexlang.CompiledLanguage {
	t.Helper()
	langs, err := lexlang.Compile(lexlang.BuiltinTable())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	lang, ok := langs["python"]
	if !ok {
		t.Fatal("builtin table missing python")
	}
	return lang
}

func TestSourceToClientThenFromClientRoundTrip(t *testing.T) {
	lang := pythonLang(t)
	src := "# hello\nprint(1)\n# world\nprint(2)\n"

	client, err := SourceToClient(src, lang)
	if err != nil {
		t.Fatalf("SourceToClient: %v", err)
	}
	if len(client.DocBlocks) != 2 {
		t.Fatalf("got %d doc blocks, want 2: %+v", len(client.DocBlocks), client.DocBlocks)
	}

	blocks := lexsource.Lex(lexsource.NormalizeEOL(src), lang)
	var rawMarkdown []string
	for _, b := range blocks {
		if b.Kind == lexsource.Doc {
			rawMarkdown = append(rawMarkdown, b.Contents)
		}
	}

	got, err := SourceFromClient(client, rawMarkdown, lang)
	if err != nil {
		t.Fatalf("SourceFromClient: %v", err)
	}
	if got != src {
		t.Errorf("round trip = %q, want %q", got, src)
	}
}

func TestSourceToClientMarkdownOnly(t *testing.T) {
	langs, err := lexlang.Compile(lexlang.BuiltinTable())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	md, ok := langs[lexlang.MarkdownTag]
	if !ok {
		t.Skip("builtin table has no markdown passthrough entry")
	}

	client, err := SourceToClient("# Title\n\nSome text.\n", md)
	if err != nil {
		t.Fatalf("SourceToClient: %v", err)
	}
	if len(client.DocBlocks) != 0 {
		t.Errorf("markdown-only document should have no overlay blocks, got %+v", client.DocBlocks)
	}
	if client.Doc == "" {
		t.Error("expected rendered HTML in Doc")
	}
}

func TestDetectLanguageByExtension(t *testing.T) {
	langs, err := lexlang.Compile(lexlang.BuiltinTable())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	lang, err := DetectLanguage(langs, "main.py", "")
	if err != nil {
		t.Fatalf("DetectLanguage: %v", err)
	}
	if lang.Def.Tag != "python" {
		t.Errorf("got tag %q, want python", lang.Def.Tag)
	}
}

func TestDetectLanguageByDirective(t *testing.T) {
	langs, err := lexlang.Compile(lexlang.BuiltinTable())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	contents := "// CodeChat Editor lexer: rust\nfn main() {}\n"
	lang, err := DetectLanguage(langs, "main.txt", contents)
	if err != nil {
		t.Fatalf("DetectLanguage: %v", err)
	}
	if lang.Def.Tag != "rust" {
		t.Errorf("got tag %q, want rust", lang.Def.Tag)
	}
}

func TestDetectLanguageUnknown(t *testing.T) {
	langs, err := lexlang.Compile(lexlang.BuiltinTable())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if _, err := DetectLanguage(langs, "file.unknownext", ""); err == nil {
		t.Error("expected an error for an unrecognized extension")
	}
}
