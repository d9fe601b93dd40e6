// Package packaging builds content-addressed zip packages from local
// directories.
//
// A package is identified by the SHA-1 of its filtered file tree: every
// included file's slash-separated relative path followed by its bytes, fed in
// sorted path order. Filtering is always applied. Hidden entries (names with a
// leading dot, which covers .git, .hg and .svn) are skipped, as is anything
// matched by .gitignore or .ignore files found at any level or by the root's
// .git/info/exclude.
package packaging

import (
	"bufio"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"

	"github.com/justapithecus/rayjob/iox"
	"github.com/justapithecus/rayjob/log"
	"github.com/justapithecus/rayjob/types"
)

// ignoreFiles are read from every directory visited, in this order.
var ignoreFiles = []string{".gitignore", ".ignore"}

// Entry is one included filesystem entry.
type Entry struct {
	// Path is slash-separated and relative to the walk root.
	Path string
	// AbsPath is the on-disk location.
	AbsPath string
	// Dir is true for directories.
	Dir bool
}

// Builder walks, hashes and archives package directories.
// The zero value is usable and logs nothing.
type Builder struct {
	logger *log.Logger

	// wrapArchive, when set, wraps the archive file before zip writes.
	wrapArchive func(io.Writer) io.Writer
}

// New creates a Builder. logger may be nil.
func New(logger *log.Logger) *Builder {
	return &Builder{logger: logger.With("component", "packaging")}
}

// Walk enumerates the included entries under root, sorted by path. A
// symlinked root is followed; symlinks below it are skipped.
//
// Errors on individual entries are logged and the entry is skipped. Only a
// root that cannot be opened, or is not a directory, fails the walk.
func (b *Builder) Walk(root string) ([]Entry, error) {
	// WalkDir does not descend into a symlinked root.
	resolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		return nil, types.NewError(types.ErrIO, "walk", root, err)
	}
	root = resolved
	info, err := os.Stat(root)
	if err != nil {
		return nil, types.NewError(types.ErrIO, "walk", root, err)
	}
	if !info.IsDir() {
		return nil, types.NewError(types.ErrIO, "walk", root, errors.New("not a directory"))
	}

	patterns := b.readPatterns(filepath.Join(root, ".git", "info", "exclude"), nil)
	var entries []Entry

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if path == root {
			if walkErr != nil {
				return walkErr
			}
			patterns = append(patterns, b.readIgnoreFiles(root, nil)...)
			return nil
		}

		if walkErr != nil {
			b.logger.Warn("skipping unreadable entry", map[string]any{"path": path, "error": walkErr})
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			b.logger.Warn("skipping entry outside root", map[string]any{"path": path, "error": err})
			return nil
		}
		rel = filepath.ToSlash(rel)
		parts := strings.Split(rel, "/")

		if gitignore.NewMatcher(patterns).Match(parts, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		switch {
		case d.IsDir():
			entries = append(entries, Entry{Path: rel, AbsPath: path, Dir: true})
			patterns = append(patterns, b.readIgnoreFiles(path, parts)...)
		case d.Type().IsRegular():
			entries = append(entries, Entry{Path: rel, AbsPath: path})
		default:
			b.logger.Debug("skipping non-regular entry", map[string]any{"path": rel, "mode": d.Type().String()})
		}
		return nil
	})
	if err != nil {
		return nil, types.NewError(types.ErrIO, "walk", root, err)
	}

	slices.SortFunc(entries, func(a, b Entry) int { return comparePaths(a.Path, b.Path) })
	return entries, nil
}

func (b *Builder) readIgnoreFiles(dir string, domain []string) []gitignore.Pattern {
	var out []gitignore.Pattern
	for _, name := range ignoreFiles {
		out = append(out, b.readPatterns(filepath.Join(dir, name), domain)...)
	}
	return out
}

// readPatterns parses one ignore file. A missing file yields no patterns.
func (b *Builder) readPatterns(path string, domain []string) []gitignore.Pattern {
	f, err := os.Open(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			b.logger.Warn("cannot read ignore file", map[string]any{"path": path, "error": err})
		}
		return nil
	}
	defer iox.DiscardClose(f)

	var out []gitignore.Pattern
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "#") || strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, gitignore.ParsePattern(line, domain))
	}
	if err := scanner.Err(); err != nil {
		b.logger.Warn("cannot read ignore file", map[string]any{"path": path, "error": err})
	}
	return out
}

// comparePaths orders slash paths component by component, so "a/b" sorts
// before "a.txt" and "a/b" before "a/b/c".
func comparePaths(a, b string) int {
	return slices.Compare(strings.Split(a, "/"), strings.Split(b, "/"))
}

// Files returns only the file entries.
func Files(entries []Entry) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if !e.Dir {
			out = append(out, e)
		}
	}
	return out
}
