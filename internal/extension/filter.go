package extension

import (
	"path/filepath"
	"strings"

	"github.com/facetdb/facet/internal/vfs"
)

// Filter is a predicate over file identity used as an extension's input
// filter.
type Filter func(ref vfs.FileRef) bool

// AllFiles accepts every file.
func AllFiles() Filter {
	return func(vfs.FileRef) bool { return true }
}

// WithExtensions accepts files whose name ends in one of the given
// extensions. Extensions are matched case-insensitively and may be
// given with or without the leading dot.
func WithExtensions(exts ...string) Filter {
	set := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		e = strings.ToLower(e)
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		set[e] = struct{}{}
	}
	return func(ref vfs.FileRef) bool {
		_, ok := set[strings.ToLower(filepath.Ext(ref.Path))]
		return ok
	}
}

// Not inverts a filter.
func Not(f Filter) Filter {
	return func(ref vfs.FileRef) bool { return !f(ref) }
}

// And accepts a file only when every filter does.
func And(filters ...Filter) Filter {
	return func(ref vfs.FileRef) bool {
		for _, f := range filters {
			if !f(ref) {
				return false
			}
		}
		return true
	}
}

// Or accepts a file when any filter does.
func Or(filters ...Filter) Filter {
	return func(ref vfs.FileRef) bool {
		for _, f := range filters {
			if f(ref) {
				return true
			}
		}
		return false
	}
}
