// Package scanner walks a project tree and streams the files worth
// indexing: text files under the size limit that no exclusion rule,
// sensitive-file pattern, or .gitignore hides. The engine feeds the
// result into reconciliation at startup and into the initial scan.
package scanner

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/facetdb/facet/internal/gitignore"
)

// DefaultMaxFileSize bounds content files when Options.MaxFileSize is
// unset.
const DefaultMaxFileSize = 4 << 20

// ignoreCacheSize bounds the per-directory gitignore matcher cache.
const ignoreCacheSize = 1000

// Options configures one scan.
type Options struct {
	// Root is the directory to walk. Required.
	Root string
	// IncludePatterns, when non-empty, whitelist files; everything else
	// is skipped.
	IncludePatterns []string
	// ExcludePatterns are skipped in addition to the built-in rules.
	ExcludePatterns []string
	// MaxFileSize skips files larger than this many bytes.
	MaxFileSize int64
	// RespectGitignore applies .gitignore files found during the walk.
	RespectGitignore bool
	// FollowSymlinks includes symlinked files.
	FollowSymlinks bool
}

// File is one scan hit.
type File struct {
	// Path is relative to the scan root.
	Path string
	// AbsPath is the absolute path.
	AbsPath string
	Size    int64
	ModTime time.Time
}

// Result is one entry on the scan stream.
type Result struct {
	File *File
	Err  error
}

// Scanner discovers indexable files. Safe for concurrent scans; the
// gitignore matcher cache is shared between them.
type Scanner struct {
	mu      sync.RWMutex
	ignores *lru.Cache[string, *gitignore.Matcher]
}

// New returns a scanner with an empty gitignore cache.
func New() (*Scanner, error) {
	cache, err := lru.New[string, *gitignore.Matcher](ignoreCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create gitignore cache: %w", err)
	}
	return &Scanner{ignores: cache}, nil
}

// Scan walks opts.Root and streams indexable files. The channel closes
// when the walk finishes; a walk-level failure arrives as a Result with
// Err set.
func (s *Scanner) Scan(ctx context.Context, opts Options) (<-chan Result, error) {
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve scan root: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat scan root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scan root is not a directory: %s", root)
	}
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}

	results := make(chan Result, 64)
	go func() {
		defer close(results)
		s.walk(ctx, root, opts, results)
	}()
	return results, nil
}

// Paths runs a scan to completion and returns the absolute paths, the
// shape engine reconciliation wants.
func (s *Scanner) Paths(ctx context.Context, opts Options) ([]string, error) {
	stream, err := s.Scan(ctx, opts)
	if err != nil {
		return nil, err
	}
	var paths []string
	for res := range stream {
		if res.Err != nil {
			return nil, res.Err
		}
		paths = append(paths, res.File.AbsPath)
	}
	return paths, ctx.Err()
}

// InvalidateIgnoreCache drops every cached gitignore matcher. The
// watcher calls this when a .gitignore file changes.
func (s *Scanner) InvalidateIgnoreCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ignores.Purge()
}

func (s *Scanner) walk(ctx context.Context, root string, opts Options, results chan<- Result) {
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if err != nil {
			return nil // unreadable entries are skipped, not fatal
		}

		rel, err := filepath.Rel(root, path)
		if err != nil || rel == "." {
			return nil
		}

		if d.IsDir() {
			if s.excludeDir(rel, opts) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 && !opts.FollowSymlinks {
			return nil
		}
		if s.excludeFile(rel, root, opts) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.Size() > opts.MaxFileSize {
			return nil
		}
		if len(opts.IncludePatterns) > 0 && !matchesAny(rel, opts.IncludePatterns) {
			return nil
		}
		if isBinaryFile(path) {
			return nil
		}

		select {
		case results <- Result{File: &File{
			Path:    rel,
			AbsPath: path,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		}}:
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	})

	if err != nil && err != context.Canceled {
		select {
		case results <- Result{Err: err}:
		case <-ctx.Done():
		}
	}
}

func (s *Scanner) excludeDir(rel string, opts Options) bool {
	for _, pattern := range defaultExcludeDirs {
		if matchDirPattern(rel, pattern) {
			return true
		}
	}
	for _, pattern := range opts.ExcludePatterns {
		if matchDirPattern(rel, pattern) {
			return true
		}
	}
	return false
}

func (s *Scanner) excludeFile(rel, root string, opts Options) bool {
	base := filepath.Base(rel)
	for _, pattern := range sensitiveFilePatterns {
		if matchFilePattern(base, rel, pattern) {
			return true
		}
	}
	for _, pattern := range defaultExcludeFiles {
		if matchFilePattern(base, rel, pattern) {
			return true
		}
	}
	for _, pattern := range opts.ExcludePatterns {
		if matchFilePattern(base, rel, pattern) {
			return true
		}
	}
	if opts.RespectGitignore && s.isGitignored(rel, root) {
		return true
	}
	return false
}

// matchDirPattern matches a directory path against an exclusion
// pattern: "**/name/**" hits the component anywhere, "dir/**" hits the
// directory and everything under it.
func matchDirPattern(rel, pattern string) bool {
	if strings.HasPrefix(pattern, "**/") {
		name := strings.TrimSuffix(strings.TrimPrefix(pattern, "**/"), "/**")
		for _, part := range strings.Split(rel, string(filepath.Separator)) {
			if part == name {
				return true
			}
		}
		return false
	}
	if strings.HasSuffix(pattern, "/**") {
		prefix := strings.TrimSuffix(pattern, "/**")
		return rel == prefix || strings.HasPrefix(rel, prefix+string(filepath.Separator))
	}
	return rel == pattern || strings.HasPrefix(rel, pattern+string(filepath.Separator))
}

// matchFilePattern matches a file against an exclusion pattern. The
// supported shapes are the ones the built-in rule lists and configs
// actually use: "dir/**", "**/*.ext", "*mid*", ".env*", "*suffix",
// "prefix*", and exact names.
func matchFilePattern(base, rel, pattern string) bool {
	if strings.HasSuffix(pattern, "/**") && !strings.HasPrefix(pattern, "**/") {
		prefix := strings.TrimSuffix(pattern, "/**")
		return strings.HasPrefix(rel, prefix+string(filepath.Separator))
	}
	if strings.HasPrefix(pattern, "**/") {
		suffix := strings.TrimPrefix(pattern, "**/")
		if strings.HasPrefix(suffix, "*.") {
			return strings.HasSuffix(base, strings.TrimPrefix(suffix, "*"))
		}
		for _, part := range strings.Split(rel, string(filepath.Separator)) {
			if part == suffix {
				return true
			}
		}
		return false
	}
	if strings.HasPrefix(pattern, "*") && strings.HasSuffix(pattern, "*") {
		mid := strings.TrimSuffix(strings.TrimPrefix(pattern, "*"), "*")
		return strings.Contains(strings.ToLower(base), strings.ToLower(mid))
	}
	if strings.HasSuffix(pattern, "*") && strings.HasPrefix(pattern, ".") {
		return strings.HasPrefix(base, strings.TrimSuffix(pattern, "*"))
	}
	if strings.HasPrefix(pattern, "*") {
		return strings.HasSuffix(base, strings.TrimPrefix(pattern, "*"))
	}
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(base, strings.TrimSuffix(pattern, "*"))
	}
	return base == pattern
}

func matchesAny(rel string, patterns []string) bool {
	base := filepath.Base(rel)
	for _, pattern := range patterns {
		if matchFilePattern(base, rel, pattern) {
			return true
		}
	}
	return false
}

// isBinaryFile sniffs the first 512 bytes for null bytes.
func isBinaryFile(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, 512)
	n, err := f.Read(buf)
	if err != nil {
		return false
	}
	return bytes.Contains(buf[:n], []byte{0})
}

// isGitignored consults the root .gitignore plus every nested one on
// the path to rel.
func (s *Scanner) isGitignored(rel, root string) bool {
	if m := s.matcherFor(root, ""); m != nil && m.Match(rel, false) {
		return true
	}

	dir := root
	base := ""
	for _, part := range strings.Split(filepath.Dir(rel), string(filepath.Separator)) {
		if part == "." {
			continue
		}
		dir = filepath.Join(dir, part)
		base = filepath.Join(base, part)
		if m := s.matcherFor(dir, base); m != nil && m.Match(rel, false) {
			return true
		}
	}
	return false
}

func (s *Scanner) matcherFor(dir, base string) *gitignore.Matcher {
	s.mu.RLock()
	matcher, ok := s.ignores.Get(dir)
	s.mu.RUnlock()
	if ok {
		return matcher
	}

	path := filepath.Join(dir, ".gitignore")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	matcher = gitignore.New()
	if err := matcher.AddFromFile(path, base); err != nil {
		return nil
	}

	s.mu.Lock()
	s.ignores.Add(dir, matcher)
	s.mu.Unlock()
	return matcher
}

// Directories never worth walking into.
var defaultExcludeDirs = []string{
	"**/node_modules/**",
	"**/.git/**",
	"**/.facet/**",
	"**/vendor/**",
	"**/__pycache__/**",
	"**/dist/**",
	"**/build/**",
	"**/.ssh/**",
	"**/.aws/**",
}

// Files never worth indexing.
var defaultExcludeFiles = []string{
	"**/*.min.js",
	"**/*.min.css",
	"**/package-lock.json",
	"**/yarn.lock",
	"**/pnpm-lock.yaml",
	"**/go.sum",
}

// Files that must never be indexed no matter what the config says.
var sensitiveFilePatterns = []string{
	".env",
	".env.*",
	"*.pem",
	"*.key",
	"*.p12",
	"*credentials*",
	"*secrets*",
	"*password*",
	".netrc",
	".npmrc",
	"id_rsa",
	"id_dsa",
	"id_ecdsa",
	"id_ed25519",
}
