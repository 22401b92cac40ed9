// Grammar wiring per supported language, grounded on lci's
// internal/parser/parser_language_setup.go (one tree-sitter grammar
// binding per LanguageTag, registered lazily). Entity extraction walks
// nodes directly (internal/entity) rather than via tree-sitter query
// strings, so only parser construction lives here.
package parser

import (
	tree_sitter_zig "github.com/tree-sitter-grammars/tree-sitter-zig/bindings/go"
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_csharp "github.com/tree-sitter/tree-sitter-c-sharp/bindings/go"
	tree_sitter_cpp "github.com/tree-sitter/tree-sitter-cpp/bindings/go"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
	tree_sitter_java "github.com/tree-sitter/tree-sitter-java/bindings/go"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tree_sitter_php "github.com/tree-sitter/tree-sitter-php/bindings/go"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tree_sitter_rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"

	"github.com/standardbeagle/valknut/internal/types"
)

func newParserFor(langPtr func() *tree_sitter.Language) func() (*tree_sitter.Parser, error) {
	return func() (*tree_sitter.Parser, error) {
		p := tree_sitter.NewParser()
		if err := p.SetLanguage(langPtr()); err != nil {
			return nil, err
		}
		return p, nil
	}
}

func rawLang(ptr any) func() *tree_sitter.Language {
	return func() *tree_sitter.Language {
		return tree_sitter.NewLanguage(ptr)
	}
}

var languageFactories = map[types.LanguageTag]func() (*tree_sitter.Parser, error){
	types.LangGo:         newParserFor(rawLang(tree_sitter_go.Language())),
	types.LangPython:     newParserFor(rawLang(tree_sitter_python.Language())),
	types.LangJavaScript: newParserFor(rawLang(tree_sitter_javascript.Language())),
	types.LangTypeScript: newParserFor(rawLang(tree_sitter_typescript.LanguageTypescript())),
	types.LangRust:       newParserFor(rawLang(tree_sitter_rust.Language())),
	types.LangJava:       newParserFor(rawLang(tree_sitter_java.Language())),
	types.LangCSharp:     newParserFor(rawLang(tree_sitter_csharp.Language())),
	types.LangCpp:        newParserFor(rawLang(tree_sitter_cpp.Language())),
	types.LangPHP:        newParserFor(rawLang(tree_sitter_php.LanguagePHP())),
	types.LangZig:        newParserFor(rawLang(tree_sitter_zig.Language())),
}
