package extensions

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/facetdb/facet/internal/extension"
)

// FileTypeID is the id of the built-in file-type index.
const FileTypeID extension.ID = "filetype"

// Classes a file type can fall into; stored as the posting value so a
// single read can filter code files from docs.
const (
	ClassCode   = "code"
	ClassDoc    = "doc"
	ClassConfig = "config"
	ClassOther  = "other"
)

var typeClasses = map[string]string{
	"go": ClassCode, "py": ClassCode, "js": ClassCode, "jsx": ClassCode,
	"ts": ClassCode, "tsx": ClassCode, "java": ClassCode, "c": ClassCode,
	"h": ClassCode, "cpp": ClassCode, "rs": ClassCode, "rb": ClassCode,
	"sh": ClassCode, "sql": ClassCode,

	"md": ClassDoc, "rst": ClassDoc, "txt": ClassDoc, "adoc": ClassDoc,

	"yaml": ClassConfig, "yml": ClassConfig, "json": ClassConfig,
	"toml": ClassConfig, "ini": ClassConfig, "env": ClassConfig,
}

// FileType returns the file-type index definition. It is contentless:
// the key is the lowercased extension, the value its class. Create and
// delete events update it inline without a queue trip.
func FileType() extension.Extension {
	return &extension.Def{
		Name: FileTypeID,
		Ver:  1,
		Caps: extension.Contentless,
		ExtractFunc: func(_ context.Context, in extension.Input) (extension.Mapping, error) {
			ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(in.File.Path), "."))
			if ext == "" {
				return nil, nil
			}
			class, ok := typeClasses[ext]
			if !ok {
				class = ClassOther
			}
			return extension.Mapping{ext: []byte(class)}, nil
		},
	}
}
