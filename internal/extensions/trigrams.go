package extensions

import (
	"context"
	"unicode"

	"github.com/facetdb/facet/internal/extension"
)

// TrigramsID is the id of the built-in trigram index.
const TrigramsID extension.ID = "trigrams"

// Trigrams returns the trigram index definition: every 3-rune window
// of the lowercased content, whitespace runs collapsed to one space.
// The index serves substring and fuzzy lookups that the word index
// cannot.
func Trigrams() extension.Extension {
	return &extension.Def{
		Name: TrigramsID,
		Ver:  1,
		Caps: extension.ContentBased,
		ExtractFunc: func(ctx context.Context, in extension.Input) (extension.Mapping, error) {
			if isBinary(in.Content) {
				return nil, nil
			}
			runes := normalizeRunes(in.Content)
			if len(runes) < 3 {
				return nil, nil
			}
			m := extension.Mapping{}
			for i := 0; i+3 <= len(runes); i++ {
				if i%4096 == 0 {
					if err := ctx.Err(); err != nil {
						return nil, err
					}
				}
				m[string(runes[i:i+3])] = nil
			}
			return m, nil
		},
	}
}

// normalizeRunes lowercases content and collapses whitespace runs, so
// formatting changes do not churn the trigram set.
func normalizeRunes(content []byte) []rune {
	out := make([]rune, 0, len(content))
	space := true
	for _, r := range string(content) {
		if unicode.IsSpace(r) {
			if !space {
				out = append(out, ' ')
				space = true
			}
			continue
		}
		space = false
		out = append(out, unicode.ToLower(r))
	}
	if n := len(out); n > 0 && out[n-1] == ' ' {
		out = out[:n-1]
	}
	return out
}
