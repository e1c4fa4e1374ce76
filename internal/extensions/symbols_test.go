package extensions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facetdb/facet/internal/vfs"
)

func TestSymbols_ExtractsGoDeclarations(t *testing.T) {
	src := []byte(`package demo

type Store struct{}

func Open(path string) (*Store, error) { return nil, nil }

func (s *Store) Close() error { return nil }
`)

	m := extract(t, Symbols(), "store.go", src)

	require.Contains(t, m, "Open")
	require.Contains(t, m, "Close")
	require.Contains(t, m, "Store")
	assert.Equal(t, "func:5", string(m["Open"]))
	assert.Equal(t, "method:7", string(m["Close"]))
	assert.Equal(t, "type:3", string(m["Store"]))
}

func TestSymbols_ExtractsPythonDefinitions(t *testing.T) {
	src := []byte("class Config:\n    def load(self):\n        pass\n")

	m := extract(t, Symbols(), "config.py", src)

	assert.Equal(t, "class:1", string(m["Config"]))
	assert.Equal(t, "func:2", string(m["load"]))
}

func TestSymbols_ExtractsTypeScriptInterfaces(t *testing.T) {
	src := []byte("interface Reader {}\nclass File implements Reader {\n  read() {}\n}\n")

	m := extract(t, Symbols(), "io.ts", src)

	assert.Equal(t, "interface:1", string(m["Reader"]))
	assert.Equal(t, "class:2", string(m["File"]))
	assert.Equal(t, "method:3", string(m["read"]))
}

func TestSymbols_SurvivesSyntaxErrors(t *testing.T) {
	// Mid-edit source: the broken function must not hide the good one
	src := []byte("package demo\n\nfunc Good() {}\n\nfunc Broken( {\n")

	m := extract(t, Symbols(), "broken.go", src)

	assert.Contains(t, m, "Good")
}

func TestSymbols_AcceptsOnlySupportedLanguages(t *testing.T) {
	ext := Symbols()

	accepts := func(path string) bool {
		return ext.Accepts(vfs.FileRef{ID: 1, Path: path, Valid: true})
	}

	assert.True(t, accepts("a.go"))
	assert.True(t, accepts("a.PY"))
	assert.True(t, accepts("a.tsx"))
	assert.False(t, accepts("a.txt"))
	assert.False(t, accepts("a.rs"))
}

func TestSymbols_UnsupportedFileContributesNothing(t *testing.T) {
	m := extract(t, Symbols(), "notes.txt", []byte("func notCode() {}"))

	assert.Empty(t, m)
}
