// Package entity is the entity extractor (C2): it walks a parsed tree
// and produces the flat, parent-linked []types.CodeEntity list that
// every downstream component keys off. Grounded on lci's
// internal/symbollinker extractors (extractor.go's GetNodeText/
// GetNodeLocation/FindChildByType helpers and each language file's
// node-kind switch), generalized from per-language symbol-table
// builders into one table-driven walker since entities need only
// kind/name/span/source/parent, not import/export/scope bookkeeping.
package entity

import (
	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/standardbeagle/valknut/internal/types"
)

// langSpec declares which node kinds are functions/methods/classes for
// one language, and how to read each node's name.
type langSpec struct {
	functionKinds map[string]bool
	methodKinds   map[string]bool
	classKinds    map[string]bool
	// nameKinds lists the child node kinds that hold an entity's name,
	// tried in order; tree-sitter grammars name the field differently
	// across languages (identifier vs field_identifier vs name field).
	nameKinds []string
}

func set(kinds ...string) map[string]bool {
	m := make(map[string]bool, len(kinds))
	for _, k := range kinds {
		m[k] = true
	}
	return m
}

var langSpecs = map[types.LanguageTag]langSpec{
	types.LangGo: {
		functionKinds: set("function_declaration"),
		methodKinds:   set("method_declaration"),
		classKinds:    set("type_declaration"),
		nameKinds:     []string{"identifier", "field_identifier", "type_identifier"},
	},
	types.LangPython: {
		functionKinds: set("function_definition"),
		classKinds:    set("class_definition"),
		nameKinds:     []string{"identifier"},
	},
	types.LangJavaScript: {
		functionKinds: set("function_declaration", "function_expression", "arrow_function", "generator_function_declaration"),
		methodKinds:   set("method_definition"),
		classKinds:    set("class_declaration"),
		nameKinds:     []string{"identifier", "property_identifier"},
	},
	types.LangTypeScript: {
		functionKinds: set("function_declaration", "function_expression", "arrow_function"),
		methodKinds:   set("method_definition", "method_signature"),
		classKinds:    set("class_declaration", "interface_declaration"),
		nameKinds:     []string{"identifier", "property_identifier", "type_identifier"},
	},
	types.LangRust: {
		functionKinds: set("function_item"),
		classKinds:    set("struct_item", "enum_item", "trait_item", "impl_item"),
		nameKinds:     []string{"identifier", "type_identifier"},
	},
	types.LangJava: {
		methodKinds: set("method_declaration", "constructor_declaration"),
		classKinds:  set("class_declaration", "interface_declaration", "enum_declaration"),
		nameKinds:   []string{"identifier"},
	},
	types.LangCSharp: {
		methodKinds: set("method_declaration", "constructor_declaration"),
		classKinds:  set("class_declaration", "interface_declaration", "struct_declaration"),
		nameKinds:   []string{"identifier"},
	},
	types.LangCpp: {
		functionKinds: set("function_definition"),
		classKinds:    set("class_specifier", "struct_specifier"),
		nameKinds:     []string{"identifier", "field_identifier", "type_identifier"},
	},
	types.LangPHP: {
		functionKinds: set("function_definition"),
		methodKinds:   set("method_declaration"),
		classKinds:    set("class_declaration", "interface_declaration"),
		nameKinds:     []string{"name"},
	},
	types.LangZig: {
		functionKinds: set("FnProto", "function_declaration"),
		nameKinds:     []string{"identifier", "IDENTIFIER"},
	},
}

// Extract walks the tree rooted at root and returns a flat, parent-
// linked entity list. root must come from source; both are caller-
// owned. A file-level entity anchors the list so callers always have
// an entity to attribute file-wide issues to, even when no function or
// class is found.
func Extract(lang types.LanguageTag, path string, source []byte, root *tree_sitter.Node, handle *types.AstHandle) []types.CodeEntity {
	spec, ok := langSpecs[lang]
	fileID := types.NewEntityId(path, types.KindFile, path, 0)
	entities := []types.CodeEntity{{
		ID:         fileID,
		Kind:       types.KindFile,
		Name:       path,
		FilePath:   path,
		LineRange:  spanOf(root),
		SourceText: "",
		Language:   lang,
		AstHandle:  handle,
	}}
	if !ok || root == nil {
		return entities
	}

	w := &walker{
		spec:     spec,
		path:     path,
		source:   source,
		lang:     lang,
		handle:   handle,
		entities: &entities,
	}
	w.walk(root, fileID)
	return entities
}

type walker struct {
	spec     langSpec
	path     string
	source   []byte
	lang     types.LanguageTag
	handle   *types.AstHandle
	entities *[]types.CodeEntity
}

func (w *walker) walk(node *tree_sitter.Node, parent types.EntityId) {
	if node == nil {
		return
	}
	kind := node.Kind()
	nextParent := parent

	switch {
	case w.spec.classKinds[kind]:
		if e, ok := w.emit(node, types.KindClass, parent); ok {
			nextParent = e.ID
		}
	case w.spec.methodKinds[kind]:
		if e, ok := w.emit(node, types.KindMethod, parent); ok {
			nextParent = e.ID
		}
	case w.spec.functionKinds[kind]:
		if e, ok := w.emit(node, types.KindFunction, parent); ok {
			nextParent = e.ID
		}
	}

	count := node.ChildCount()
	for i := uint(0); i < count; i++ {
		w.walk(node.Child(i), nextParent)
	}
}

func (w *walker) emit(node *tree_sitter.Node, kind types.EntityKind, parent types.EntityId) (types.CodeEntity, bool) {
	name := w.findName(node)
	if name == "" {
		name = "anonymous"
	}
	lr := spanOf(node)
	id := types.NewEntityId(w.path, kind, name, int(lr.Start))
	p := parent
	e := types.CodeEntity{
		ID:         id,
		Kind:       kind,
		Name:       name,
		FilePath:   w.path,
		LineRange:  lr,
		SourceText: nodeText(node, w.source),
		Language:   w.lang,
		Parent:     &p,
		AstHandle:  w.handle,
	}
	*w.entities = append(*w.entities, e)
	return e, true
}

// findName looks for the first direct child whose kind matches the
// language's configured name-bearing node kinds. This is a shallow
// search (direct children only), matching how lci's
// FindChildByType locates a declaration's name node.
func (w *walker) findName(node *tree_sitter.Node) string {
	for _, nk := range w.spec.nameKinds {
		count := node.ChildCount()
		for i := uint(0); i < count; i++ {
			child := node.Child(i)
			if child != nil && child.Kind() == nk {
				return nodeText(child, w.source)
			}
		}
	}
	return ""
}

// FindNode re-locates the tree node spanning lr within root. Feature
// extraction (C4) runs after entities are collected and no longer has
// the node pointers the walker held; it re-derives them from the
// LineRange a CodeEntity already carries rather than threading node
// pointers through the pipeline. Returns the first exact-span match in
// a depth-first, pre-order search, or nil if none spans lr exactly.
func FindNode(root *tree_sitter.Node, lr types.LineRange) *tree_sitter.Node {
	if root == nil {
		return nil
	}
	if spanOf(root) == lr {
		return root
	}
	count := root.ChildCount()
	for i := uint(0); i < count; i++ {
		if found := FindNode(root.Child(i), lr); found != nil {
			return found
		}
	}
	return nil
}

func nodeText(node *tree_sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	start, end := node.StartByte(), node.EndByte()
	if start > uint(len(source)) || end > uint(len(source)) || start > end {
		return ""
	}
	return string(source[start:end])
}

func spanOf(node *tree_sitter.Node) types.LineRange {
	if node == nil {
		return types.LineRange{}
	}
	return types.LineRange{
		Start: node.StartPosition().Row + 1,
		End:   node.EndPosition().Row + 1,
	}
}
