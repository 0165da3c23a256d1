// Package lexlang declares the per-language lexer tables described for the
// source lexer and compiles them into the automata the lexer walks. It is
// grounded on keystorm's DetectLanguageID switch in internal/lsp/protocol.go
// for the notion of "one record per language keyed by extension", expanded
// here into the much richer per-language comment/string/heredoc grammar the
// source lexer needs.
package lexlang

import "fmt"

// NewlinePolicy describes how a string delimiter's closing scan treats a
// raw newline encountered before the closing delimiter.
type NewlinePolicy int

const (
	// NewlineUnescaped means a raw newline never terminates the string;
	// only the delimiter does (e.g. triple-quoted strings).
	NewlineUnescaped NewlinePolicy = iota
	// NewlineEscaped means an escaped newline is permitted inside the
	// string but a raw, unescaped newline terminates it.
	NewlineEscaped
	// NewlineNone means any newline, escaped or not, terminates the
	// string (single-line string literals).
	NewlineNone
)

// SpecialCase flags a language requiring lexing behavior beyond the general
// string/comment/heredoc model.
type SpecialCase int

const (
	SpecialCaseNone SpecialCase = iota
	// SpecialCaseTemplateLiteral marks backtick template strings whose
	// closing scan honors backslash escapes but whose nested ${...}
	// expressions are not re-lexed.
	SpecialCaseTemplateLiteral
	// SpecialCaseCSharpVerbatimStringLiteral marks @"..." strings where a
	// doubled quote is a literal quote rather than an escape sequence.
	SpecialCaseCSharpVerbatimStringLiteral
	// SpecialCaseMatlab marks MATLAB's %{ / %} block comments, which must
	// stand alone on their own line and take priority over the inline %
	// comment rule.
	SpecialCaseMatlab
)

// StringDelim describes one string literal form for a language. Escape is
// empty when the string form has no escape character at all.
type StringDelim struct {
	Delimiter string
	Escape    string
	Newline   NewlinePolicy
	// DoubledDelim marks languages (SQL, Pascal-family) that escape an
	// embedded delimiter by doubling it rather than with a backslash.
	DoubledDelim bool
}

// Validate reports the one documented configuration error: a delimiter with
// no escape character cannot declare NewlineEscaped, since there is nothing
// to escape a newline with.
func (d StringDelim) Validate() error {
	if d.Escape == "" && d.Newline == NewlineEscaped {
		return fmt.Errorf("lexlang: string delimiter %q has no escape char but declares NewlineEscaped", d.Delimiter)
	}
	return nil
}

// BlockCommentDelim describes one block comment form.
type BlockCommentDelim struct {
	Opening    string
	Closing    string
	IsNestable bool
}

// HeredocDelim describes a heredoc form. The identifier is captured from the
// opening line and substituted into the built terminator at match time.
type HeredocDelim struct {
	StartPrefix     string
	IdentifierRegex string
	StartSuffix     string
	StopPrefix      string
	StopSuffix      string
}

// LanguageDefinition is the declarative description of one language's lexer
// rules, built once at program start and compiled into a CompiledLanguage.
type LanguageDefinition struct {
	Tag            string
	Extensions     []string
	InlineComments []string
	BlockComments  []BlockCommentDelim
	Strings        []StringDelim
	Heredoc        *HeredocDelim
	Special        SpecialCase
}

// Validate checks the one documented configuration error across all of a
// language's string forms.
func (l LanguageDefinition) Validate() error {
	for _, s := range l.Strings {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("lexlang: language %q: %w", l.Tag, err)
		}
	}
	return nil
}
