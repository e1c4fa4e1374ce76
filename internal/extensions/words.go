package extensions

import (
	"context"

	"github.com/facetdb/facet/internal/extension"
)

// WordsID is the id of the built-in word index.
const WordsID extension.ID = "words"

// Words returns the word index definition: every identifier-shaped
// token of a text file, lowercased, with camelCase and snake_case
// sub-words included. Overlay-aware, so unsaved editor text is
// searchable immediately.
func Words() extension.Extension {
	return &extension.Def{
		Name: WordsID,
		Ver:  2,
		Caps: extension.ContentBased | extension.OverlayAware,
		ExtractFunc: func(_ context.Context, in extension.Input) (extension.Mapping, error) {
			if isBinary(in.Content) {
				return nil, nil
			}
			m := extension.Mapping{}
			for _, token := range tokenize(in.Content) {
				m[token] = nil
			}
			return m, nil
		},
	}
}
