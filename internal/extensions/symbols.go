package extensions

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/facetdb/facet/internal/extension"
	"github.com/facetdb/facet/internal/vfs"
)

// SymbolsID is the id of the built-in symbol index.
const SymbolsID extension.ID = "symbols"

// Symbol kinds stored as posting values, "<kind>:<line>".
const (
	KindFunc      = "func"
	KindMethod    = "method"
	KindType      = "type"
	KindClass     = "class"
	KindInterface = "interface"
)

// symbolLanguage binds one grammar to the node types that declare
// symbols in it. Names come from the grammar's "name" field.
type symbolLanguage struct {
	lang  *sitter.Language
	kinds map[string]string
}

var symbolLanguages = map[string]*symbolLanguage{
	".go": {golang.GetLanguage(), map[string]string{
		"function_declaration": KindFunc,
		"method_declaration":   KindMethod,
		"type_spec":            KindType,
	}},
	".py": {python.GetLanguage(), map[string]string{
		"function_definition": KindFunc,
		"class_definition":    KindClass,
	}},
	".js":  {javascript.GetLanguage(), jsKinds},
	".jsx": {javascript.GetLanguage(), jsKinds},
	".ts": {typescript.GetLanguage(), map[string]string{
		"function_declaration":   KindFunc,
		"class_declaration":      KindClass,
		"method_definition":      KindMethod,
		"interface_declaration":  KindInterface,
		"type_alias_declaration": KindType,
	}},
	".tsx": {tsx.GetLanguage(), map[string]string{
		"function_declaration":  KindFunc,
		"class_declaration":     KindClass,
		"method_definition":     KindMethod,
		"interface_declaration": KindInterface,
	}},
}

var jsKinds = map[string]string{
	"function_declaration": KindFunc,
	"class_declaration":    KindClass,
	"method_definition":    KindMethod,
}

// Symbols returns the symbol index definition: declared functions,
// methods, types, and classes of the supported source languages,
// extracted from the tree-sitter AST. The key is the symbol name; the
// value records kind and line. Overlay-aware, so go-to-symbol works on
// unsaved editor text.
func Symbols() extension.Extension {
	return &extension.Def{
		Name: SymbolsID,
		Ver:  1,
		Caps: extension.ContentBased | extension.OverlayAware,
		Filter: func(ref vfs.FileRef) bool {
			_, ok := symbolLanguages[strings.ToLower(filepath.Ext(ref.Path))]
			return ok
		},
		ExtractFunc: extractSymbols,
	}
}

func extractSymbols(ctx context.Context, in extension.Input) (extension.Mapping, error) {
	sl, ok := symbolLanguages[strings.ToLower(filepath.Ext(in.File.Path))]
	if !ok || isBinary(in.Content) {
		return nil, nil
	}

	// Parsers are not safe for concurrent use; one per extraction.
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(sl.lang)

	tree, err := parser.ParseCtx(ctx, nil, in.Content)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	m := extension.Mapping{}
	collectSymbols(tree.RootNode(), in.Content, sl.kinds, m)
	return m, nil
}

// collectSymbols walks the AST depth-first. A broken subtree (syntax
// errors mid-edit) still yields the symbols around it.
func collectSymbols(n *sitter.Node, source []byte, kinds map[string]string, m extension.Mapping) {
	if n == nil {
		return
	}
	if kind, ok := kinds[n.Type()]; ok {
		if name := n.ChildByFieldName("name"); name != nil {
			text := name.Content(source)
			if text != "" {
				if _, dup := m[text]; !dup {
					line := int(name.StartPoint().Row) + 1
					m[text] = []byte(kind + ":" + strconv.Itoa(line))
				}
			}
		}
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		collectSymbols(n.NamedChild(i), source, kinds, m)
	}
}
