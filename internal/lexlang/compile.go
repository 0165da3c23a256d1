package lexlang

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// RegexDelimType classifies what a matched opener group means to the source
// lexer.
type RegexDelimType int

const (
	DelimInlineComment RegexDelimType = iota
	DelimBlockComment
	DelimString
	DelimHeredoc
	DelimTemplateLiteral
)

// CompiledGroup is the per-alternative metadata the source lexer consults
// once it knows which capturing group of TokenRe matched.
type CompiledGroup struct {
	Type    RegexDelimType
	Opener  string
	Closing string // BlockComment only: the literal closer text.
	Nested  bool   // BlockComment only: whether opens nest.

	// StandaloneLine requires the closer to appear alone on its line, with
	// only surrounding whitespace, mirroring how the opener itself was
	// anchored. Only meaningful for non-nestable block comments; MATLAB's
	// %{ / %} is the one definition that sets it.
	StandaloneLine bool

	// GroupIndex is this alternative's own capturing-group index within
	// TokenRe's submatch slice, used to tell which alternative matched.
	GroupIndex int

	// String/TemplateLiteral closer-scan parameters.
	Delim   string
	Escape  string
	Newline NewlinePolicy

	DoubledDelim bool

	// Heredoc terminator template; IdentGroup is the index (in TokenRe's
	// submatch slice) of the captured identifier.
	HeredocStopPrefix string
	HeredocStopSuffix string
	IdentGroup        int
}

// CompiledLanguage is a LanguageDefinition turned into a single combined
// "find the next token" regex plus parallel per-group dispatch metadata, per
// the documented construction: openers ordered so longer delimiters that
// share a prefix with a shorter one are tried first, MATLAB's blank-line
// block comment inserted ahead of its inline rule, and any heredoc
// alternative appended last so its extra capturing group never shifts the
// index of an earlier group.
type CompiledLanguage struct {
	Def     LanguageDefinition
	TokenRe *regexp.Regexp
	Groups  []CompiledGroup
}

// Compile builds automata for every definition in defs, keyed by tag.
func Compile(defs []LanguageDefinition) (map[string]*CompiledLanguage, error) {
	out := make(map[string]*CompiledLanguage, len(defs))
	for _, def := range defs {
		if err := def.Validate(); err != nil {
			return nil, err
		}
		cl, err := compileOne(def)
		if err != nil {
			return nil, fmt.Errorf("lexlang: compiling %q: %w", def.Tag, err)
		}
		out[def.Tag] = cl
	}
	return out, nil
}

type alt struct {
	pattern string
	group   CompiledGroup
	// heredocIdentInPattern is true when this alternative's pattern
	// itself contains exactly one extra capturing group for the heredoc
	// identifier, appearing immediately after this alternative's own
	// wrapping group.
	heredocIdentInPattern bool
}

func compileOne(def LanguageDefinition) (*CompiledLanguage, error) {
	if def.Tag == MarkdownTag {
		// Documentation-only languages never lex into blocks.
		return &CompiledLanguage{Def: def, TokenRe: nil, Groups: nil}, nil
	}

	var alts []alt

	if def.Special == SpecialCaseMatlab {
		// The blank-line-anchored %{ / %} rule must be tried before the
		// inline % comment rule, per the documented priority order.
		alts = append(alts, alt{
			pattern: `(?m)^[ \t]*%\{[ \t]*$`,
			group: CompiledGroup{
				Type:           DelimBlockComment,
				Opener:         "%{",
				Closing:        "%}",
				StandaloneLine: true,
			},
		})
	}

	// Inline comments, longest first so e.g. Rust's "///" is tried before
	// "//".
	inline := append([]string(nil), def.InlineComments...)
	sort.Slice(inline, func(i, j int) bool { return len(inline[i]) > len(inline[j]) })
	for _, d := range inline {
		alts = append(alts, alt{
			pattern: regexp.QuoteMeta(d),
			group:   CompiledGroup{Type: DelimInlineComment, Opener: d},
		})
	}

	// Block comments.
	for _, bc := range def.BlockComments {
		alts = append(alts, alt{
			pattern: regexp.QuoteMeta(bc.Opening),
			group: CompiledGroup{
				Type:    DelimBlockComment,
				Opener:  bc.Opening,
				Closing: bc.Closing,
				Nested:  bc.IsNestable,
			},
		})
	}

	// Strings, longest delimiter first (e.g. Python's """ before ").
	strs := append([]StringDelim(nil), def.Strings...)
	sort.Slice(strs, func(i, j int) bool { return len(strs[i].Delimiter) > len(strs[j].Delimiter) })
	for _, s := range strs {
		alts = append(alts, alt{
			pattern: regexp.QuoteMeta(s.Delimiter),
			group: CompiledGroup{
				Type:         DelimString,
				Opener:       s.Delimiter,
				Delim:        s.Delimiter,
				Escape:       s.Escape,
				Newline:      s.Newline,
				DoubledDelim: s.DoubledDelim,
			},
		})
	}

	if def.Special == SpecialCaseCSharpVerbatimStringLiteral {
		alts = append(alts, alt{
			pattern: `@"`,
			group: CompiledGroup{
				Type:         DelimString,
				Opener:       `@"`,
				Delim:        `"`,
				DoubledDelim: true,
			},
		})
	}

	if def.Special == SpecialCaseTemplateLiteral {
		alts = append(alts, alt{
			pattern: "`",
			group: CompiledGroup{
				Type:   DelimTemplateLiteral,
				Opener: "`",
				Delim:  "`",
				Escape: `\`,
			},
		})
	}

	// Heredocs last: the identifier capture group they introduce must not
	// shift the group index of any earlier alternative.
	if h := def.Heredoc; h != nil {
		identPat := h.IdentifierRegex
		pat := regexp.QuoteMeta(h.StartPrefix) + "(" + identPat + ")" + regexp.QuoteMeta(h.StartSuffix)
		alts = append(alts, alt{
			pattern: pat,
			group: CompiledGroup{
				Type:              DelimHeredoc,
				Opener:            h.StartPrefix,
				HeredocStopPrefix: h.StopPrefix,
				HeredocStopSuffix: h.StopSuffix,
			},
			heredocIdentInPattern: true,
		})
	}

	if len(alts) == 0 {
		return &CompiledLanguage{Def: def, TokenRe: nil, Groups: nil}, nil
	}

	var sb strings.Builder
	groups := make([]CompiledGroup, 0, len(alts))
	groupNum := 0
	for i, a := range alts {
		if i > 0 {
			sb.WriteByte('|')
		}
		groupNum++
		g := a.group
		g.GroupIndex = groupNum
		if a.heredocIdentInPattern {
			g.IdentGroup = groupNum + 1
			groupNum++ // the identifier's own capturing group
		}
		groups = append(groups, g)
		sb.WriteByte('(')
		sb.WriteString(a.pattern)
		sb.WriteByte(')')
	}

	re, err := regexp.Compile(sb.String())
	if err != nil {
		return nil, err
	}
	return &CompiledLanguage{Def: def, TokenRe: re, Groups: groups}, nil
}

// DetectByExtension finds a language by a file extension (including the
// leading dot, case-sensitive, matching the literal table).
func DetectByExtension(langs map[string]*CompiledLanguage, ext string) (*CompiledLanguage, bool) {
	for _, cl := range langs {
		for _, e := range cl.Def.Extensions {
			if e == ext {
				return cl, true
			}
		}
	}
	return nil, false
}
