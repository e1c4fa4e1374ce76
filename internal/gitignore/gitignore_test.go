package gitignore

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// matcherWith builds a Matcher from root-level patterns.
func matcherWith(patterns ...string) *Matcher {
	m := New()
	for _, p := range patterns {
		m.AddPattern(p)
	}
	return m
}

func TestMatcher_Match_BareNameAppliesAtEveryDepth(t *testing.T) {
	cases := []struct {
		pattern string
		path    string
		ignored bool
	}{
		{"coverage.out", "coverage.out", true},
		{"coverage.out", "internal/engine/coverage.out", true},
		{"coverage.out", "coverage.txt", false},
		{"*.prof", "cpu.prof", true},
		{"*.prof", "internal/index/heap.prof", true},
		{"*.prof", "cpu.profile", false},
		{"scratch*", "scratch.go", true},
		{"scratch*", "scratch_notes.md", true},
		{"scratch*", "update.go", false},
		{"fixture?.json", "fixture1.json", true},
		{"fixture?.json", "fixtureA.json", true},
		{"fixture?.json", "fixture10.json", false},
	}

	for _, tc := range cases {
		t.Run(tc.pattern+" vs "+tc.path, func(t *testing.T) {
			m := matcherWith(tc.pattern)
			assert.Equal(t, tc.ignored, m.Match(tc.path, false))
		})
	}
}

func TestMatcher_Match_DoubleStarForms(t *testing.T) {
	cases := []struct {
		pattern string
		path    string
		isDir   bool
		ignored bool
	}{
		// **/name anchors nothing; any depth matches, contents included
		{"**/testdata", "testdata", true, true},
		{"**/testdata", "internal/scanner/testdata", true, true},
		{"**/testdata", "internal/scanner/testdata/tree.txt", false, true},

		// name/** swallows the whole subtree, but only under that root
		{"bin/**", "bin/facet", false, true},
		{"bin/**", "bin/linux/amd64/facet", false, true},
		{"bin/**", "cmd/bin/facet", false, false},

		// **/*.ext is the recursive extension form
		{"**/*.pb.go", "schema.pb.go", false, true},
		{"**/*.pb.go", "internal/daemon/proto/control.pb.go", false, true},
		{"**/*.pb.go", "internal/daemon/proto/control.go", false, false},

		// infix ** spans zero or more directories
		{"internal/**/testdata", "internal/testdata", false, true},
		{"internal/**/testdata", "internal/gitignore/testdata", false, true},
		{"internal/**/testdata", "internal/engine/fixtures/testdata", false, true},
		{"internal/**/testdata", "cmd/facet/testdata", false, false},
	}

	for _, tc := range cases {
		t.Run(tc.pattern+" vs "+tc.path, func(t *testing.T) {
			m := matcherWith(tc.pattern)
			assert.Equal(t, tc.ignored, m.Match(tc.path, tc.isDir))
		})
	}
}

func TestMatcher_Match_LeadingSlashAnchorsToRoot(t *testing.T) {
	m := matcherWith("/dist", "/facet.yaml")

	assert.True(t, m.Match("dist", true))
	assert.True(t, m.Match("facet.yaml", false))

	// Same names below the root stay visible
	assert.False(t, m.Match("web/dist", true))
	assert.False(t, m.Match("deploy/facet.yaml", false))
}

func TestMatcher_Match_TrailingSlashMeansDirectoryOnly(t *testing.T) {
	m := matcherWith("out/")

	assert.True(t, m.Match("out", true))
	assert.True(t, m.Match("internal/codegen/out", true))
	assert.False(t, m.Match("out", false), "a plain file named out is not covered")

	// Without the slash both forms are covered
	both := matcherWith("out")
	assert.True(t, both.Match("out", true))
	assert.True(t, both.Match("out", false))
}

func TestMatcher_Match_SlashInPatternAnchorsIt(t *testing.T) {
	m := matcherWith("docs/drafts/")

	assert.True(t, m.Match("docs/drafts", true))
	assert.True(t, m.Match("docs/drafts/roadmap.md", false))
	assert.False(t, m.Match("archive/docs/drafts", true), "path patterns bind to the root")
	assert.False(t, m.Match("docs/published/roadmap.md", false))
}

func TestMatcher_Match_NegationRescuesLaterRule(t *testing.T) {
	m := matcherWith("*.log", "!engine.log")

	assert.True(t, m.Match("daemon.log", false))
	assert.False(t, m.Match("engine.log", false))
	assert.False(t, m.Match("logs/engine.log", false))
}

func TestMatcher_Match_LastRuleWins(t *testing.T) {
	// Git evaluates in order; re-ignoring after a rescue sticks
	m := matcherWith("*.bak", "!config.yaml.bak", "config.yaml.bak")

	assert.True(t, m.Match("config.yaml.bak", false))
	assert.True(t, m.Match("state.bak", false))
}

func TestMatcher_Match_NegatedDirectory(t *testing.T) {
	m := matcherWith("testdata/", "!testdata/keep/")

	assert.True(t, m.Match("testdata", true))
	assert.False(t, m.Match("testdata/keep", true))
}

func TestMatcher_Match_BroadIgnoreWithRescues(t *testing.T) {
	m := matcherWith("*", "!*.go", "!*.mod")

	assert.False(t, m.Match("engine.go", false))
	assert.False(t, m.Match("go.mod", false))
	assert.True(t, m.Match("engine.o", false))
}

func TestMatcher_AddPatternWithBase_ScopesToSubtree(t *testing.T) {
	m := New()
	m.AddPatternWithBase("*.gen.go", "internal/daemon")
	m.AddPattern("*.tmp")

	// Scoped rule applies only under its base
	assert.True(t, m.Match("internal/daemon/control.gen.go", false))
	assert.False(t, m.Match("internal/engine/update.gen.go", false))
	assert.False(t, m.Match("control.gen.go", false))

	// Root rules still apply everywhere
	assert.True(t, m.Match("internal/daemon/socket.tmp", false))
}

func TestMatcher_AddPattern_SkipsCommentsAndBlanks(t *testing.T) {
	cases := []struct {
		name  string
		line  string
		rules int
	}{
		{"blank", "", 0},
		{"spaces only", "   ", 0},
		{"comment", "# build artifacts", 0},
		{"pattern", "*.prof", 1},
		{"pattern padded right", "*.prof  ", 1},
		{"pattern padded left", "  *.prof", 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := matcherWith(tc.line)
			assert.Len(t, m.rules, tc.rules)
		})
	}
}

func TestMatcher_Match_BackslashEscapes(t *testing.T) {
	hash := matcherWith(`\#pinned`)
	assert.True(t, hash.Match("#pinned", false))
	assert.False(t, hash.Match("pinned", false))

	bang := matcherWith(`\!urgent`)
	assert.True(t, bang.Match("!urgent", false), "escaped bang is a literal, not a negation")

	space := matcherWith(`notes\ `)
	assert.True(t, space.Match("notes ", false))
	assert.False(t, space.Match("notes", false))
}

func TestMatcher_AddFromFile_ParsesAndApplies(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, ".gitignore")
	require.NoError(t, os.WriteFile(path, []byte(`# local state
*.log
!engine.log

bin/
/dist/
`), 0o644))

	m := New()
	require.NoError(t, m.AddFromFile(path, ""))

	assert.Len(t, m.rules, 4)
	assert.True(t, m.Match("daemon.log", false))
	assert.False(t, m.Match("engine.log", false))
	assert.True(t, m.Match("bin", true))
	assert.True(t, m.Match("dist", true))
	assert.False(t, m.Match("web/dist", true))
}

func TestMatcher_AddFromFile_MissingFileErrors(t *testing.T) {
	m := New()
	err := m.AddFromFile(filepath.Join(t.TempDir(), "no-such", ".gitignore"), "")
	assert.Error(t, err)
}

func TestMatcher_AddFromFile_NestedGitignoreBindsToItsDir(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "internal", "codegen")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	path := filepath.Join(sub, ".gitignore")
	require.NoError(t, os.WriteFile(path, []byte("*.gen.go\nout/\n"), 0o644))

	m := New()
	require.NoError(t, m.AddFromFile(path, "internal/codegen"))

	assert.True(t, m.Match("internal/codegen/parser.gen.go", false))
	assert.True(t, m.Match("internal/codegen/out", true))
	assert.False(t, m.Match("parser.gen.go", false))
	assert.False(t, m.Match("out", true))
}

func TestMatcher_ConcurrentMatchAndAdd(t *testing.T) {
	m := matcherWith("*.log", "bin/")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				_ = m.Match("engine.log", false)
				_ = m.Match("bin", true)
				_ = m.Match("internal/engine/update.go", false)
			}
		}()
	}
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				m.AddPattern("*.swp")
			}
		}()
	}
	wg.Wait()
}

func TestMatcher_Match_GoProjectScan(t *testing.T) {
	// The shape of a .gitignore a scan of a Go repo typically loads
	m := matcherWith(
		"# toolchain output",
		"bin/",
		"dist/",
		"*.test",
		"coverage.out",
		"",
		"# editor and OS noise",
		"*.swp",
		".idea/",
		".DS_Store",
		"",
		"# engine state and logs",
		".facet/",
		"*.log",
		"!engine.log",
		"",
		"# generated",
		"/facet.local.yaml",
		"**/testdata/",
		"**/*.pb.go",
	)

	ignored := []struct {
		path  string
		isDir bool
	}{
		{"bin", true},
		{"bin/facet", false},
		{"dist/facet-linux-amd64", false},
		{"engine.test", false},
		{"coverage.out", false},
		{"update.go.swp", false},
		{".idea", true},
		{".DS_Store", false},
		{".facet", true},
		{".facet/index/words.db", false},
		{"daemon.log", false},
		{"facet.local.yaml", false},
		{"testdata", true},
		{"internal/scanner/testdata", true},
		{"internal/daemon/proto/control.pb.go", false},
	}
	for _, f := range ignored {
		assert.True(t, m.Match(f.path, f.isDir), "%s should be ignored", f.path)
	}

	visible := []struct {
		path  string
		isDir bool
	}{
		{"engine.log", false},
		{"deploy/facet.local.yaml", false},
		{"internal/engine/update.go", false},
		{"cmd/facet/main.go", false},
		{"go.mod", false},
		{"README.md", false},
	}
	for _, f := range visible {
		assert.False(t, m.Match(f.path, f.isDir), "%s should stay visible", f.path)
	}
}

func TestMatcher_Match_GitDocumentedBehavior(t *testing.T) {
	// Spot checks against the behavior git documents for these forms
	cases := []struct {
		name    string
		pattern string
		path    string
		isDir   bool
		ignored bool
	}{
		{"dot-star form", "hello.*", "hello.txt", false, true},
		{"dir-only matches dir", "foo/", "foo", true, true},
		{"dir-only skips file", "foo/", "foo", false, false},
		{"anchored pair matches at root", "doc/frotz/", "doc/frotz", true, true},
		{"anchored pair skips nested copy", "doc/frotz/", "a/doc/frotz", true, false},
		{"bare dir name floats", "frotz/", "a/b/frotz", true, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := matcherWith(tc.pattern)
			assert.Equal(t, tc.ignored, m.Match(tc.path, tc.isDir))
		})
	}
}
