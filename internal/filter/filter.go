// Package filter decides which directory entries a tree walk skips.
//
// A Filter holds two ordered rule tables: CLI rules, consulted first, and
// baseline rules, which per-directory override files may extend for the
// duration of a subtree via Push and Pop. The first matching rule decides;
// an entry no rule matches is processed.
package filter

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"
)

// ChunkSize is how many bytes of a file content rules look at.
const ChunkSize = 4096

// Filter evaluates CLI and baseline rules.
type Filter struct {
	cli   Rules
	base  Rules
	saved []Rules

	// OnBinary is called when a content rule meets a file that is not text.
	OnBinary func(path string)
}

// New returns a Filter with the given CLI and baseline tables.
func New(cli, base Rules) *Filter {
	return &Filter{cli: cli, base: base}
}

// CLI returns the current CLI table.
func (f *Filter) CLI() Rules { return f.cli }

// Base returns the current baseline table.
func (f *Filter) Base() Rules { return f.base }

// AppendCLI adds rules to the end of the CLI table. When reset is set the
// rules replace the table instead.
func (f *Filter) AppendCLI(rules Rules, reset bool) {
	if reset {
		f.cli = nil
	}
	f.cli = append(f.cli, rules...)
}

// Push prepends rules to the baseline until the matching Pop. When reset is
// set the rules replace the baseline instead.
func (f *Filter) Push(rules Rules, reset bool) {
	f.saved = append(f.saved, f.base)
	next := make(Rules, 0, len(rules)+len(f.base))
	next = append(next, rules...)
	if !reset {
		next = append(next, f.base...)
	}
	f.base = next
}

// Pop restores the baseline saved by the last Push.
func (f *Filter) Pop() {
	if len(f.saved) == 0 {
		return
	}
	f.base = f.saved[len(f.saved)-1]
	f.saved = f.saved[:len(f.saved)-1]
}

// Depth reports how many Push calls are outstanding.
func (f *Filter) Depth() int { return len(f.saved) }

// Skip reports whether the entry at path, whose base name is name, is filtered out.
func (f *Filter) Skip(path, name string, isDir bool) bool {
	if name == "" {
		name = filepath.Base(path)
	}
	if skip, ok := f.decide(f.cli, path, name, isDir); ok {
		return skip
	}
	if skip, ok := f.decide(f.base, path, name, isDir); ok {
		return skip
	}
	return false
}

// decide returns the decision of the first matching rule in rules, and
// whether any rule matched.
func (f *Filter) decide(rules Rules, path, name string, isDir bool) (skip, matched bool) {
	for i := range rules {
		r := &rules[i]
		if r.Scope == DirOnly && !isDir {
			continue
		}
		if r.Scope == FileOnly && isDir {
			continue
		}

		if r.Content != nil {
			chunk, err := readChunk(path)
			if errors.Is(err, errNotText) {
				if f.OnBinary != nil {
					f.OnBinary(path)
				}
				return false, true
			}
			if err != nil || !r.Content.Match(chunk) {
				continue
			}
			return r.Action == Exclude, true
		}

		if matchGlob(r.Pattern, path, name) {
			return r.Action == Exclude, true
		}
	}
	return false, false
}

// matchGlob matches the base name, or the whole path when the pattern
// starts with "/". Both sides lose their leading "/" or "./" first.
func matchGlob(pattern, path, name string) bool {
	if strings.HasPrefix(pattern, "/") {
		candidate := filepath.ToSlash(path)
		candidate = strings.TrimPrefix(candidate, "./")
		candidate = strings.TrimPrefix(candidate, "/")
		ok, _ := doublestar.Match(pattern[1:], candidate)
		return ok
	}
	ok, _ := doublestar.Match(pattern, name)
	return ok
}

var errNotText = errors.New("not text")

// readChunk returns up to ChunkSize bytes of the file, or errNotText when
// they do not decode as UTF-8.
func readChunk(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, ChunkSize)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, err
	}
	buf = buf[:n]
	if !validText(buf, n == ChunkSize) {
		return nil, errNotText
	}
	return buf, nil
}

// validText reports whether b is UTF-8. A truncated chunk may end in the
// middle of a rune, so up to UTFMax-1 trailing bytes are forgiven.
func validText(b []byte, truncated bool) bool {
	if utf8.Valid(b) {
		return true
	}
	if !truncated {
		return false
	}
	for cut := 1; cut < utf8.UTFMax && cut <= len(b); cut++ {
		if utf8.Valid(b[:len(b)-cut]) {
			return true
		}
	}
	return false
}
