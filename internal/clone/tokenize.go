package clone

import (
	"strings"
	"unicode"
)

// Token is a single normalized token: identifiers canonicalize to
// "$id", numeric/string literals to "$lit", everything else (keywords,
// punctuation, operators) is preserved verbatim. Grounded on the
// teacher's duplicate_detector.go tokenizeCode/normalizeIdentifiers,
// generalized from a line-oriented word split into one that also
// tracks the raw token for Type1/Type2 classification (RawEqual).
type Token struct {
	Canon string
	Raw   string
}

var keywords = map[string]bool{}

func init() {
	for _, kw := range []string{
		"if", "else", "for", "while", "do", "switch", "case", "default",
		"break", "continue", "return", "func", "function", "def", "class",
		"struct", "interface", "trait", "impl", "enum", "try", "catch",
		"except", "finally", "throw", "throws", "raise", "async", "await",
		"public", "private", "protected", "static", "const", "let", "var",
		"import", "package", "namespace", "using", "from", "as", "new",
		"delete", "null", "nil", "none", "true", "false", "void", "fn",
		"match", "loop", "yield", "goto", "defer", "go", "chan", "map",
		"type", "extends", "implements",
	} {
		keywords[kw] = true
	}
}

// Tokenize splits normalized source text into a canonical token stream.
func Tokenize(source string) []Token {
	var tokens []Token
	var cur strings.Builder
	flushIdent := func() {
		if cur.Len() == 0 {
			return
		}
		word := cur.String()
		cur.Reset()
		tokens = append(tokens, classify(word))
	}

	runes := []rune(source)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case unicode.IsLetter(r) || r == '_' || (unicode.IsDigit(r) && cur.Len() > 0):
			cur.WriteRune(r)
		case unicode.IsDigit(r):
			flushIdent()
			j := i
			for j < len(runes) && (unicode.IsDigit(runes[j]) || runes[j] == '.') {
				j++
			}
			tokens = append(tokens, Token{Canon: "$lit", Raw: string(runes[i:j])})
			i = j - 1
		case r == '"' || r == '\'' || r == '`':
			flushIdent()
			quote := r
			j := i + 1
			for j < len(runes) && runes[j] != quote {
				if runes[j] == '\\' {
					j++
				}
				j++
			}
			end := j + 1
			if end > len(runes) {
				end = len(runes)
			}
			tokens = append(tokens, Token{Canon: "$lit", Raw: string(runes[i:end])})
			i = end - 1
		case unicode.IsSpace(r):
			flushIdent()
		default:
			flushIdent()
			tokens = append(tokens, Token{Canon: string(r), Raw: string(r)})
		}
	}
	flushIdent()
	return tokens
}

func classify(word string) Token {
	if keywords[word] {
		return Token{Canon: word, Raw: word}
	}
	return Token{Canon: "$id", Raw: word}
}

// CanonicalEqual reports whether two token streams have the same
// shape: equal length and equal canonical form at every position,
// regardless of the underlying identifier/literal spellings.
func CanonicalEqual(a, b []Token) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Canon != b[i].Canon {
			return false
		}
	}
	return true
}

// RawEqual reports whether two token streams are identical down to
// the raw identifier/literal spelling — a match modulo whitespace,
// which Tokenize discards. Comments are not discarded: their markers
// and words are tokenized like code, so differing comments make two
// streams unequal.
func RawEqual(a, b []Token) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Raw != b[i].Raw {
			return false
		}
	}
	return true
}

// StructuralTokens keeps only keyword/punctuation tokens (dropping
// $id/$lit), giving a shape-only view of an entity used by the
// structural gate.
func StructuralTokens(tokens []Token) []string {
	var out []string
	for _, t := range tokens {
		if t.Canon != "$id" && t.Canon != "$lit" {
			out = append(out, t.Canon)
		}
	}
	return out
}
