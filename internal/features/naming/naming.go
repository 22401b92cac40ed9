// Package naming implements the semantic naming mismatch score (the
// C4.4.1 subcomponent): for each function, a behavior signature is
// extracted from its AST shape and compared against the verbs implied
// by its name. Grounded on lci's internal/semantic package —
// stemmer.go's porter2 wrapper (word normalization so "fetch"/
// "fetching"/"fetched" compare equal) and fuzzy_matcher.go's
// edlib.StringsSimilarity(JaroWinkler) call for name-to-lexicon
// distance — generalized from general-purpose fuzzy symbol matching
// into the fixed five-term mismatch formula.
package naming

import (
	"strings"
	"unicode"

	"github.com/hbollon/go-edlib"
	"github.com/surgebase/porter2"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// Signature is the behavior signature extracted from a function body:
// side effects, whether it mutates its receiver/arguments, whether it
// runs synchronously or asynchronously, and its return shape.
type Signature struct {
	SideEffects       bool
	Mutates           bool
	Async             bool
	ReturnsMultiple   bool
	ReturnsOptional   bool // error / Option / nullable second return
}

var sideEffectCalls = []string{
	"write", "save", "delete", "remove", "insert", "update", "exec", "query",
	"send", "post", "put", "fetch", "open", "close", "connect", "dial",
	"commit", "rollback", "publish", "emit", "log", "print",
}

// DetectSignature walks a function node looking for call expressions
// and return shapes that reveal its behavior.
func DetectSignature(node *tree_sitter.Node, source []byte) Signature {
	var sig Signature
	walkSignature(node, source, &sig)
	return sig
}

func walkSignature(node *tree_sitter.Node, source []byte, sig *Signature) {
	if node == nil {
		return
	}
	switch node.Kind() {
	case "call_expression", "call":
		callee := calleeText(node, source)
		lower := strings.ToLower(callee)
		for _, marker := range sideEffectCalls {
			if strings.Contains(lower, marker) {
				sig.SideEffects = true
				break
			}
		}
	case "assignment_expression":
		if target := node.Child(0); target != nil {
			k := target.Kind()
			if k == "field_expression" || k == "selector_expression" || k == "member_expression" {
				sig.Mutates = true
			}
		}
	case "await_expression", "await":
		sig.Async = true
	case "async":
		sig.Async = true
	case "return_statement", "return":
		count := returnValueCount(node)
		if count > 1 {
			sig.ReturnsMultiple = true
		}
		if returnsError(node, source) {
			sig.ReturnsOptional = true
		}
	}
	n := node.ChildCount()
	for i := uint(0); i < n; i++ {
		walkSignature(node.Child(i), source, sig)
	}
}

func calleeText(node *tree_sitter.Node, source []byte) string {
	fn := node.ChildByFieldName("function")
	if fn == nil && node.ChildCount() > 0 {
		fn = node.Child(0)
	}
	if fn == nil {
		return ""
	}
	start, end := fn.StartByte(), fn.EndByte()
	if start > uint(len(source)) || end > uint(len(source)) || start > end {
		return ""
	}
	return string(source[start:end])
}

func returnValueCount(node *tree_sitter.Node) int {
	count := 0
	n := node.ChildCount()
	for i := uint(0); i < n; i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "expression_list":
			return int(child.ChildCount()+1) / 2 // commas interleave with expressions
		case ",":
			count++
		}
	}
	if count > 0 {
		return count + 1
	}
	return 1
}

func returnsError(node *tree_sitter.Node, source []byte) bool {
	text := nodeText(node, source)
	lower := strings.ToLower(text)
	return strings.Contains(lower, "err") || strings.Contains(lower, "none") ||
		strings.Contains(lower, "null") || strings.Contains(lower, "nil")
}

func nodeText(node *tree_sitter.Node, source []byte) string {
	start, end := node.StartByte(), node.EndByte()
	if start > uint(len(source)) || end > uint(len(source)) || start > end {
		return ""
	}
	return string(source[start:end])
}

// expectedVerbs lists the verb vocabulary a name should draw from,
// given a signature's flags. Multiple categories may apply.
func expectedVerbs(sig Signature) []string {
	var verbs []string
	if sig.SideEffects || sig.Mutates {
		verbs = append(verbs, "save", "write", "delete", "remove", "update", "insert",
			"send", "publish", "persist", "set", "create", "apply", "commit")
	} else {
		verbs = append(verbs, "get", "fetch", "compute", "calculate", "is", "has",
			"to", "parse", "format", "build", "derive", "find")
	}
	if sig.Async {
		verbs = append(verbs, "async")
	}
	return verbs
}

// Tokenize splits an identifier into lowercase words, handling
// camelCase, PascalCase, and snake_case.
func Tokenize(name string) []string {
	var words []string
	var cur strings.Builder
	runes := []rune(name)
	for i, r := range runes {
		if r == '_' || r == '-' {
			if cur.Len() > 0 {
				words = append(words, strings.ToLower(cur.String()))
				cur.Reset()
			}
			continue
		}
		if unicode.IsUpper(r) && cur.Len() > 0 {
			prevLower := unicode.IsLower(runes[i-1])
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if prevLower || nextLower {
				words = append(words, strings.ToLower(cur.String()))
				cur.Reset()
			}
		}
		cur.WriteRune(r)
	}
	if cur.Len() > 0 {
		words = append(words, strings.ToLower(cur.String()))
	}
	return words
}

// MismatchScore computes the [0,1] semantic naming mismatch score
// using the fixed linear combination:
// 0.5*(1-sim) + 0.2*effect_flag + 0.1*cardinality_flag + 0.1*optionality_flag + 0.1*async_flag,
// where sim is the best Jaro-Winkler similarity between the stemmed
// name and a fixed verb list chosen by the signature. No embedding or
// cosine measure is used, and the verb list is not mined from the project.
func MismatchScore(name string, sig Signature) float64 {
	words := Tokenize(name)
	if len(words) == 0 {
		return 0
	}
	stemmedName := stemJoin(words)

	best := 0.0
	for _, v := range expectedVerbs(sig) {
		sim, err := edlib.StringsSimilarity(stemmedName, porter2.Stem(v), edlib.JaroWinkler)
		if err != nil {
			continue
		}
		if float64(sim) > best {
			best = float64(sim)
		}
	}

	effectFlag := 0.0
	if (sig.SideEffects || sig.Mutates) && !containsAny(words, "save", "write", "delete", "remove", "update", "insert", "send", "publish", "set", "create", "apply", "commit", "persist") {
		effectFlag = 1
	}

	cardinalityFlag := 0.0
	pluralHint := strings.HasSuffix(words[len(words)-1], "s") && !strings.HasSuffix(words[len(words)-1], "ss")
	if sig.ReturnsMultiple && !pluralHint {
		cardinalityFlag = 1
	} else if !sig.ReturnsMultiple && pluralHint {
		cardinalityFlag = 1
	}

	optionalityFlag := 0.0
	optionalHint := containsAny(words, "maybe", "try", "opt", "optional", "find")
	if sig.ReturnsOptional && !optionalHint {
		optionalityFlag = 1
	}

	asyncFlag := 0.0
	asyncHint := containsAny(words, "async")
	if sig.Async && !asyncHint {
		asyncFlag = 1
	}

	score := 0.5*(1-best) + 0.2*effectFlag + 0.1*cardinalityFlag + 0.1*optionalityFlag + 0.1*asyncFlag
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score
}

func stemJoin(words []string) string {
	var b strings.Builder
	for _, w := range words {
		b.WriteString(porter2.Stem(w))
	}
	return b.String()
}

func containsAny(words []string, targets ...string) bool {
	for _, w := range words {
		for _, t := range targets {
			if w == t {
				return true
			}
		}
	}
	return false
}
