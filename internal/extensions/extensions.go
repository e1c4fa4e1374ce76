// Package extensions holds the built-in index definitions shipped with
// the engine: a word index and a trigram index over textual content, a
// contentless file-type index, and a tree-sitter backed symbol index
// for the supported source languages. Each definition is a pure
// extraction function; the engine owns scheduling, storage, and
// staleness.
package extensions

import (
	"bytes"
	"strings"
	"unicode"

	"github.com/facetdb/facet/internal/extension"
)

// maxTokenLen drops pathological tokens (minified bundles, embedded
// blobs) instead of bloating the key space.
const maxTokenLen = 64

// Builtin returns the stock extensions in registration order.
func Builtin() []extension.Extension {
	return []extension.Extension{
		FileType(),
		Words(),
		Trigrams(),
		Symbols(),
	}
}

// isBinary checks for null bytes, the same heuristic the scanner uses
// to keep binaries out of content indexing.
func isBinary(content []byte) bool {
	probe := content
	if len(probe) > 8192 {
		probe = probe[:8192]
	}
	return bytes.IndexByte(probe, 0) >= 0
}

// tokenize splits content into lowercased identifier-shaped tokens,
// splitting camelCase and snake_case boundaries so "getUserById"
// contributes "get", "user", "by", "id" as well as the whole
// identifier.
func tokenize(content []byte) []string {
	var tokens []string
	var current strings.Builder

	flush := func() {
		if current.Len() == 0 {
			return
		}
		token := current.String()
		current.Reset()
		if len(token) > maxTokenLen {
			return
		}
		tokens = append(tokens, strings.ToLower(token))
		for _, part := range splitCamelSnake(token) {
			if part != token && len(part) > 1 {
				tokens = append(tokens, strings.ToLower(part))
			}
		}
	}

	for _, r := range string(content) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			current.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return tokens
}

// splitCamelSnake splits a token on camelCase and snake_case
// boundaries: "search_function" and "searchFunction" both yield
// ["search", "function"].
func splitCamelSnake(token string) []string {
	if strings.Contains(token, "_") {
		var parts []string
		for _, p := range strings.Split(token, "_") {
			if p != "" {
				parts = append(parts, p)
			}
		}
		return parts
	}

	var parts []string
	var current strings.Builder
	for i, r := range token {
		if i > 0 && unicode.IsUpper(r) && current.Len() > 0 {
			parts = append(parts, current.String())
			current.Reset()
		}
		current.WriteRune(r)
	}
	if current.Len() > 0 {
		parts = append(parts, current.String())
	}
	return parts
}
