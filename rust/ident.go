package rust

import (
	"strings"
	"unicode"
)

// keywords are the strict and reserved Rust keywords that can be used as raw
// identifiers.
var keywords = map[string]bool{
	"as": true, "async": true, "await": true, "break": true, "const": true,
	"continue": true, "dyn": true, "else": true, "enum": true, "extern": true,
	"false": true, "fn": true, "for": true, "if": true, "impl": true, "in": true,
	"let": true, "loop": true, "match": true, "mod": true, "move": true,
	"mut": true, "pub": true, "ref": true, "return": true, "static": true,
	"struct": true, "trait": true, "true": true, "type": true, "unsafe": true,
	"use": true, "where": true, "while": true, "abstract": true, "become": true,
	"box": true, "do": true, "final": true, "macro": true, "override": true,
	"priv": true, "typeof": true, "unsized": true, "virtual": true,
	"yield": true, "try": true, "gen": true,
}

// nonRawKeywords cannot be written as raw identifiers.
var nonRawKeywords = map[string]bool{
	"self": true, "Self": true, "super": true, "crate": true, "_": true,
}

// IsKeyword returns whether name is a Rust keyword.
func IsKeyword(name string) bool {
	return keywords[name] || nonRawKeywords[name]
}

// SafeIdent returns name in a form that is a legal Rust identifier: keywords
// become raw identifiers (`r#type`), keywords that cannot be raw get an
// underscore suffix and any other illegal character becomes an underscore.
func SafeIdent(name string) string {
	if keywords[name] {
		return "r#" + name
	} else if nonRawKeywords[name] {
		return name + "_"
	}

	if name == "" {
		return "_unnamed"
	}

	var sb strings.Builder
	for i, r := range name {
		if r == '_' || unicode.IsLetter(r) || (i > 0 && unicode.IsDigit(r)) {
			sb.WriteRune(r)
		} else if i == 0 && unicode.IsDigit(r) {
			sb.WriteRune('_')
			sb.WriteRune(r)
		} else {
			sb.WriteRune('_')
		}
	}

	return sb.String()
}

// SnakeCase converts a CamelCase or mixedCase name to snake_case.
func SnakeCase(name string) string {
	var sb strings.Builder
	runes := []rune(name)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1]))) && runes[i-1] != '_' {
				sb.WriteRune('_')
			}
			sb.WriteRune(unicode.ToLower(r))
		} else {
			sb.WriteRune(r)
		}
	}

	return sb.String()
}

// ScreamingCase converts a name to SCREAMING_SNAKE_CASE.
func ScreamingCase(name string) string {
	return strings.ToUpper(SnakeCase(name))
}

// CamelCase converts a snake_case name to CamelCase.
func CamelCase(name string) string {
	var sb strings.Builder
	upper := true
	for _, r := range name {
		if r == '_' {
			upper = true
			continue
		}

		if upper {
			sb.WriteRune(unicode.ToUpper(r))
			upper = false
		} else {
			sb.WriteRune(r)
		}
	}

	return sb.String()
}
