// Package resolve maps snippet identifiers to files using an ordered search
// path and a table of named scopes.
package resolve

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
)

// StdScope is the scope name always given to the standard library directory.
const StdScope = "ASHLIB"

// EnvVar names the environment variable holding extra search directories.
const EnvVar = "BINDER_PATH"

// Options lists the sources of a search path, highest precedence first.
type Options struct {
	Dirs   []string // explicit entries, "dir" or "scope=dir"
	Env    string   // colon-separated entries, usually $BINDER_PATH
	StdDir string   // standard library directory
	NoStd  bool     // leave the standard library out
}

// SearchPath is an ordered list of directories plus named scopes.
// It is not modified after New returns.
type SearchPath struct {
	dirs   []string
	scopes map[string]string
}

// New builds a search path from opts.
func New(opts Options) *SearchPath {
	sp := &SearchPath{scopes: make(map[string]string)}
	for _, d := range opts.Dirs {
		sp.add(d)
	}
	if opts.Env != "" {
		for _, d := range strings.Split(opts.Env, ":") {
			sp.add(d)
		}
	}
	if !opts.NoStd && opts.StdDir != "" {
		sp.dirs = append(sp.dirs, opts.StdDir)
		sp.scopes[StdScope] = opts.StdDir
	}
	return sp
}

// add appends one "dir" or "scope=dir" entry. Empty entries and entries
// that are not directories are ignored.
func (sp *SearchPath) add(spec string) {
	if spec == "" {
		return
	}
	var scope string
	if i := strings.IndexByte(spec, '='); i >= 0 {
		scope, spec = spec[:i], spec[i+1:]
	}
	if spec == "" {
		return
	}
	if expanded, err := homedir.Expand(spec); err == nil {
		spec = expanded
	}
	if !isDir(spec) {
		return
	}
	if scope != "" {
		sp.scopes[scope] = spec
	}
	sp.dirs = append(sp.dirs, spec)
}

// Dirs returns the ordered search directories.
func (sp *SearchPath) Dirs() []string {
	return append([]string(nil), sp.dirs...)
}

// Scope returns the directory bound to name.
func (sp *SearchPath) Scope(name string) (string, bool) {
	d, ok := sp.scopes[name]
	return d, ok
}

// Find returns the file for id. A "scope:rest" id whose scope is known is
// tried in that scope's directory first; otherwise, or when that fails, the
// local directories are searched in order, then the search path.
func (sp *SearchPath) Find(id string, local ...string) (string, bool) {
	if i := strings.IndexByte(id, ':'); i >= 0 {
		if dir, ok := sp.scopes[id[:i]]; ok {
			candidate := filepath.Join(dir, id[i+1:])
			if isFile(candidate) {
				return candidate, true
			}
		}
	}

	for _, dirs := range [][]string{local, sp.dirs} {
		for _, dir := range dirs {
			if dir == "" {
				continue
			}
			candidate := filepath.Join(dir, id)
			if isFile(candidate) {
				return candidate, true
			}
		}
	}
	return "", false
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
