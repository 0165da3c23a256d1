package lexlang

// MarkdownTag is the lexer tag treated as "documentation only": a file
// resolving to this tag is rendered wholesale as Markdown with no code
// blocks at all.
const MarkdownTag = "markdown"

// BuiltinTable returns the default language set. It is a representative
// cross-section of the source system's full catalog (which lists 20+
// languages as literal table rows) rather than a byte-for-byte port: every
// RegexDelimType and every SpecialCase the source lexer must handle has at
// least one language exercising it here, and operators can extend the table
// with further entries (plain LanguageDefinition values) without touching
// the compiler.
func BuiltinTable() []LanguageDefinition {
	return []LanguageDefinition{
		{
			Tag:            "python",
			Extensions:     []string{".py", ".pyw"},
			InlineComments: []string{"#"},
			Strings: []StringDelim{
				{Delimiter: `"""`, Escape: `\`, Newline: NewlineUnescaped},
				{Delimiter: `'''`, Escape: `\`, Newline: NewlineUnescaped},
				{Delimiter: `"`, Escape: `\`, Newline: NewlineEscaped},
				{Delimiter: `'`, Escape: `\`, Newline: NewlineEscaped},
			},
			Heredoc: nil,
		},
		{
			Tag:            "c",
			Extensions:     []string{".c", ".h"},
			InlineComments: []string{"//"},
			BlockComments: []BlockCommentDelim{
				{Opening: "/*", Closing: "*/", IsNestable: false},
			},
			Strings: []StringDelim{
				{Delimiter: `"`, Escape: `\`, Newline: NewlineNone},
				{Delimiter: `'`, Escape: `\`, Newline: NewlineNone},
			},
		},
		{
			Tag:            "rust",
			Extensions:     []string{".rs"},
			InlineComments: []string{"///", "//"},
			BlockComments: []BlockCommentDelim{
				{Opening: "/*", Closing: "*/", IsNestable: true},
			},
			Strings: []StringDelim{
				{Delimiter: `"`, Escape: `\`, Newline: NewlineEscaped},
				{Delimiter: `'`, Escape: `\`, Newline: NewlineNone},
			},
		},
		{
			Tag:            "csharp",
			Extensions:     []string{".cs"},
			InlineComments: []string{"//"},
			BlockComments: []BlockCommentDelim{
				{Opening: "/*", Closing: "*/", IsNestable: false},
			},
			Strings: []StringDelim{
				{Delimiter: `"`, Escape: `\`, Newline: NewlineNone},
			},
			Special: SpecialCaseCSharpVerbatimStringLiteral,
		},
		{
			Tag:            "javascript",
			Extensions:     []string{".js", ".jsx", ".mjs"},
			InlineComments: []string{"//"},
			BlockComments: []BlockCommentDelim{
				{Opening: "/*", Closing: "*/", IsNestable: false},
			},
			Strings: []StringDelim{
				{Delimiter: `"`, Escape: `\`, Newline: NewlineNone},
				{Delimiter: `'`, Escape: `\`, Newline: NewlineNone},
			},
			Special: SpecialCaseTemplateLiteral,
		},
		{
			Tag:            "typescript",
			Extensions:     []string{".ts", ".tsx"},
			InlineComments: []string{"//"},
			BlockComments: []BlockCommentDelim{
				{Opening: "/*", Closing: "*/", IsNestable: false},
			},
			Strings: []StringDelim{
				{Delimiter: `"`, Escape: `\`, Newline: NewlineNone},
				{Delimiter: `'`, Escape: `\`, Newline: NewlineNone},
			},
			Special: SpecialCaseTemplateLiteral,
		},
		{
			Tag:            "shell",
			Extensions:     []string{".sh", ".bash"},
			InlineComments: []string{"#"},
			Strings: []StringDelim{
				{Delimiter: `"`, Escape: `\`, Newline: NewlineUnescaped},
				{Delimiter: `'`, Newline: NewlineUnescaped},
			},
			Heredoc: &HeredocDelim{
				StartPrefix:     "<<",
				IdentifierRegex: `[A-Za-z_][A-Za-z0-9_]*`,
				StartSuffix:     "",
				StopPrefix:      "",
				StopSuffix:      "",
			},
		},
		{
			Tag:            "ruby",
			Extensions:     []string{".rb"},
			InlineComments: []string{"#"},
			BlockComments: []BlockCommentDelim{
				{Opening: "=begin", Closing: "=end", IsNestable: false},
			},
			Strings: []StringDelim{
				{Delimiter: `"`, Escape: `\`, Newline: NewlineUnescaped},
				{Delimiter: `'`, Escape: `\`, Newline: NewlineUnescaped},
			},
			Heredoc: &HeredocDelim{
				StartPrefix:     "<<~",
				IdentifierRegex: `[A-Za-z_][A-Za-z0-9_]*`,
				StartSuffix:     "",
				StopPrefix:      "",
				StopSuffix:      "",
			},
		},
		{
			Tag:            "sql",
			Extensions:     []string{".sql"},
			InlineComments: []string{"--"},
			BlockComments: []BlockCommentDelim{
				{Opening: "/*", Closing: "*/", IsNestable: false},
			},
			Strings: []StringDelim{
				// SQL doubles the delimiter to embed it rather than using
				// a backslash escape (string_delimiter_doubling).
				{Delimiter: `'`, Newline: NewlineUnescaped, DoubledDelim: true},
			},
		},
		{
			Tag:            "matlab",
			Extensions:     []string{".m"},
			InlineComments: []string{"%", "..."},
			Strings: []StringDelim{
				{Delimiter: `'`, Newline: NewlineUnescaped},
				{Delimiter: `"`, Newline: NewlineUnescaped},
			},
			Special: SpecialCaseMatlab,
		},
		{
			Tag:        MarkdownTag,
			Extensions: []string{".md", ".markdown"},
		},
	}
}
