// Package lang provides a registry of the "#"-comment languages binder can
// syntax-check, mapping file extensions and interpreters to tree-sitter
// grammars and their embedded comment queries.
package lang

import (
	"bytes"
	"embed"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
)

//go:embed queries/*.scm
var queryFS embed.FS

// Language holds tree-sitter configuration for a supported language.
type Language struct {
	Name         string
	Extensions   []string
	Interpreters []string
	lang         *sitter.Language
	queryOnce    sync.Once
	query        *sitter.Query
	queryErr     error
}

// GetLanguage returns the tree-sitter Language pointer.
func (l *Language) GetLanguage() *sitter.Language {
	return l.lang
}

// NewParser creates a fresh tree-sitter parser for this language.
func (l *Language) NewParser() *sitter.Parser {
	p := sitter.NewParser()
	p.SetLanguage(l.lang)
	return p
}

// GetCommentQuery returns the compiled query capturing comment nodes.
func (l *Language) GetCommentQuery() (*sitter.Query, error) {
	l.queryOnce.Do(func() {
		data, err := queryFS.ReadFile(fmt.Sprintf("queries/%s.scm", l.Name))
		if err != nil {
			l.queryErr = fmt.Errorf("reading query file: %w", err)
			return
		}
		q, err := sitter.NewQuery(data, l.lang)
		if err != nil {
			l.queryErr = fmt.Errorf("compiling query: %w", err)
			return
		}
		l.query = q
	})
	return l.query, l.queryErr
}

// Languages maps language names to their configuration.
// Populated by init() functions in per-language files.
var Languages = map[string]*Language{}

var (
	indexOnce      sync.Once
	extensionMap   map[string]*Language
	interpreterMap map[string]*Language
)

func buildIndex() {
	indexOnce.Do(func() {
		extensionMap = make(map[string]*Language)
		interpreterMap = make(map[string]*Language)
		for _, l := range Languages {
			for _, ext := range l.Extensions {
				extensionMap[ext] = l
			}
			for _, name := range l.Interpreters {
				interpreterMap[name] = l
			}
		}
	})
}

// ForExtension returns the language for a file extension, or nil if unsupported.
func ForExtension(ext string) *Language {
	buildIndex()
	return extensionMap[ext]
}

// ForInterpreter returns the language run by the named interpreter, or nil.
// Version suffixes such as "python3.12" are ignored.
func ForInterpreter(name string) *Language {
	buildIndex()
	if l, ok := interpreterMap[name]; ok {
		return l
	}
	return interpreterMap[strings.TrimRight(name, "0123456789.")]
}

// Detect picks the language of a file from its extension, falling back to
// the interpreter named on its "#!" line. It returns nil when neither is known.
func Detect(path string, src []byte) *Language {
	if l := ForExtension(filepath.Ext(path)); l != nil {
		return l
	}
	return ForInterpreter(interpreter(src))
}

// interpreter returns the program named by a leading "#!" line, looking
// through "/usr/bin/env".
func interpreter(src []byte) string {
	if !bytes.HasPrefix(src, []byte("#!")) {
		return ""
	}
	line, _, _ := bytes.Cut(src[2:], []byte("\n"))
	fields := strings.Fields(string(line))
	if len(fields) == 0 {
		return ""
	}
	prog := filepath.Base(fields[0])
	if prog == "env" {
		for _, f := range fields[1:] {
			if !strings.HasPrefix(f, "-") {
				return filepath.Base(f)
			}
		}
		return ""
	}
	return prog
}
