package vfs

import (
	"fmt"
	"strings"
)

// Scope selects the files a synchronization pass must cover before a
// read is allowed to proceed.
type Scope interface {
	// Contains reports whether ref falls inside the scope. Stub ids
	// compare by their masked value.
	Contains(ref FileRef) bool
	String() string
}

type everythingScope struct{}

func (everythingScope) Contains(FileRef) bool { return true }
func (everythingScope) String() string        { return "everything" }

// Everything returns the scope covering all tracked files.
func Everything() Scope {
	return everythingScope{}
}

type fileScope struct {
	id FileID
}

func (s fileScope) Contains(ref FileRef) bool {
	return Mask(ref.ID) == s.id
}

func (s fileScope) String() string {
	return fmt.Sprintf("file %d", s.id)
}

// SingleFile returns the scope covering exactly one file.
func SingleFile(id FileID) Scope {
	return fileScope{id: Mask(id)}
}

type setScope struct {
	ids map[FileID]struct{}
}

func (s setScope) Contains(ref FileRef) bool {
	_, ok := s.ids[Mask(ref.ID)]
	return ok
}

func (s setScope) String() string {
	return fmt.Sprintf("%d files", len(s.ids))
}

// Files returns the scope covering the given set of files.
func Files(ids ...FileID) Scope {
	set := make(map[FileID]struct{}, len(ids))
	for _, id := range ids {
		set[Mask(id)] = struct{}{}
	}
	return setScope{ids: set}
}

type pathScope struct {
	prefix string
}

func (s pathScope) Contains(ref FileRef) bool {
	if ref.Path == s.prefix {
		return true
	}
	return strings.HasPrefix(ref.Path, s.prefix+"/")
}

func (s pathScope) String() string {
	return "under " + s.prefix
}

// UnderPath returns the scope covering the directory tree rooted at
// prefix. The prefix matches whole path segments, so "src" covers
// "src/main.go" but not "srccache/a.go".
func UnderPath(prefix string) Scope {
	return pathScope{prefix: strings.TrimSuffix(prefix, "/")}
}
