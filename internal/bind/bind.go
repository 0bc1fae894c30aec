// Package bind expands snippet directives in source text.
//
// An Engine scans its input line by line. Include directives and
// begin/end blocks are replaced with the current content of the snippet
// they name, wrapped in begin/end markers so that a later run can refresh
// them. Require directives inside snippets are expanded in place without
// markers, and a snippet file is bound at most once per top-level input.
package bind

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/log"

	"github.com/TortugaLabs/ashlib/internal/diag"
	"github.com/TortugaLabs/ashlib/internal/directive"
	"github.com/TortugaLabs/ashlib/internal/gitmeta"
	"github.com/TortugaLabs/ashlib/internal/model"
	"github.com/TortugaLabs/ashlib/internal/resolve"
)

// StdinName is the context name used for standard input.
const StdinName = "<stdin>"

// tokenFileRe is what the last path element of a text token must look
// like for the token to be looked up as a file.
var tokenFileRe = regexp.MustCompile(`^[_A-Z][:_A-Z0-9]*$`)

// Options control how snippets are expanded.
type Options struct {
	Unbind      bool              // collapse every bound snippet to its include directive
	Doc         bool              // keep embedded doc comments
	Meta        string            // provenance format; empty disables metadata
	Tokens      map[string]string // text token values used when no file matches
	CheckSyntax bool              // parse bound files and report problems
	Logger      *log.Logger
}

// Engine binds files and streams. It keeps per-run state and is not safe
// for concurrent use.
type Engine struct {
	search *resolve.SearchPath
	git    gitmeta.Provider
	report diag.Reporter
	opts   Options
	log    *log.Logger

	included map[string]model.Inclusion
	stack    []model.Context
}

// New returns an Engine. A nil git provider runs the git binary, a nil
// reporter discards diagnostics.
func New(search *resolve.SearchPath, git gitmeta.Provider, report diag.Reporter, opts Options) *Engine {
	if git == nil {
		git = gitmeta.NewRunner()
	}
	if report == nil {
		report = diag.Discard
	}
	logger := opts.Logger
	if logger == nil {
		logger = diag.QuietLogger()
	}
	return &Engine{search: search, git: git, report: report, opts: opts, log: logger}
}

// Result is the outcome of binding one input.
type Result struct {
	Output   string
	Original string
}

// Changed reports whether binding altered the input.
func (r Result) Changed() bool {
	return r.Output != r.Original
}

// Included returns the snippets bound during the last run, keyed by
// absolute path.
func (e *Engine) Included() map[string]model.Inclusion {
	return e.included
}

// BindStream binds everything read from r. name identifies the input in
// diagnostics; dir is searched first for snippets named by top-level
// directives. Input that is not UTF-8 yields model.ErrBinary.
func (e *Engine) BindStream(r io.Reader, name, dir string) (Result, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Result{}, fmt.Errorf("reading %s: %w", name, err)
	}
	if !utf8.Valid(data) {
		return Result{}, model.ErrBinary
	}

	e.included = make(map[string]model.Inclusion)
	e.stack = []model.Context{{File: name}}

	original := string(data)
	out, err := e.bindText(original, dir)
	if err != nil {
		return Result{}, err
	}
	return Result{Output: out, Original: original}, nil
}

type block struct {
	d    directive.Directive
	from model.Context
	text strings.Builder
}

func (e *Engine) bindText(text, dir string) (string, error) {
	var b strings.Builder
	var pending *block

	for _, line := range splitLines(text) {
		e.top().Line++

		if pending != nil {
			pending.text.WriteString(line)
			if directive.IsEnd(line) {
				out, err := e.expand(pending.d, pending.text.String(), dir, pending.from, false)
				if err != nil {
					return "", err
				}
				b.WriteString(out)
				pending = nil
			}
			continue
		}

		d := directive.Parse(line)
		switch d.Kind {
		case directive.Include:
			out, err := e.expand(d, line, dir, *e.top(), false)
			if err != nil {
				return "", err
			}
			b.WriteString(out)
		case directive.Begin:
			pending = &block{d: d, from: *e.top()}
			pending.text.WriteString(line)
		default:
			b.WriteString(line)
		}
	}

	if pending != nil {
		e.report.Report(diag.Diagnostic{
			File:    pending.from.File,
			Line:    pending.from.Line,
			Kind:    diag.Unterminated,
			Message: fmt.Sprintf("%s: unterminated bound snippet", pending.d.Snippet),
		})
		b.WriteString(pending.text.String())
	}
	return b.String(), nil
}

// expand returns the replacement for directive d, whose original text is
// raw. Nested expansions come from require directives inside a snippet
// and are emitted without begin/end markers.
func (e *Engine) expand(d directive.Directive, raw, dir string, from model.Context, nested bool) (string, error) {
	if e.opts.Unbind {
		return directive.FormatInclude(d.Prefix, d.Snippet, d.Comment), nil
	}

	path, ok := e.search.Find(d.Snippet, dir)
	if !ok {
		e.report.Report(diag.Diagnostic{
			File:    from.File,
			Line:    from.Line,
			Kind:    diag.NotFound,
			Message: fmt.Sprintf("%s: not found", d.Snippet),
		})
		return raw, nil
	}

	key := registryKey(path)
	if prev, seen := e.included[key]; seen {
		if nested {
			return directive.FormatRequiresSatisfied(d.Prefix, d.Snippet, path), nil
		}
		e.log.Debug("already bound", "snippet", d.Snippet, "at", from, "first", prev.From)
		return raw, nil
	}
	e.included[key] = model.Inclusion{Snippet: d.Snippet, Path: path, From: from}
	e.log.Debug("binding", "snippet", d.Snippet, "path", path)

	var b strings.Builder
	if !nested {
		b.WriteString(directive.FormatBegin(d.Prefix, d.Snippet, d.Comment))
	}
	if e.opts.Meta != "" {
		for _, line := range gitmeta.Describe(e.git, d.Snippet, path).Format(e.opts.Meta) {
			b.WriteString(directive.FormatMeta(d.Prefix, line))
		}
	}

	body, err := e.stream(d.Prefix, path)
	if err != nil {
		return "", err
	}
	b.WriteString(body)
	if body != "" && !strings.HasSuffix(body, "\n") {
		b.WriteString("\n")
	}

	if !nested {
		b.WriteString(directive.FormatEnd(d.Prefix, d.Snippet))
	}
	return b.String(), nil
}

// stream returns the body of the snippet file at path with every line
// indented by prefix.
func (e *Engine) stream(prefix, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", e.fail(err)
	}
	if !utf8.Valid(data) {
		return "", e.fail(fmt.Errorf("snippet %s: not a text file", path))
	}

	e.push(model.Context{File: path})
	defer e.pop()

	dir := filepath.Dir(path)
	lookup := func(name string) (string, bool) { return e.token(name, dir) }

	var b strings.Builder
	for i, line := range splitLines(string(data)) {
		e.top().Line++

		if i == 0 && strings.HasPrefix(line, "#!/") {
			continue
		}

		d := directive.Parse(line)
		switch d.Kind {
		case directive.End:
			return b.String(), nil
		case directive.Require:
			if !e.opts.Doc {
				line = directive.StripTrailingDoc(line)
			}
			d.Prefix = prefix + d.Prefix
			out, err := e.expand(d, prefix+line, dir, *e.top(), true)
			if err != nil {
				return "", err
			}
			b.WriteString(out)
			continue
		case directive.Doc:
			if !e.opts.Doc {
				continue
			}
		case directive.DocTrailing:
			if !e.opts.Doc {
				line = directive.StripTrailingDoc(line)
			}
		}

		b.WriteString(prefix)
		b.WriteString(directive.ReplaceTokens(line, lookup))
	}
	return b.String(), nil
}

// token resolves a text token. Dots in name become path separators and the
// first line of the matching file is the value; the override table is
// consulted when no file matches.
func (e *Engine) token(name, dir string) (string, bool) {
	rel := strings.ReplaceAll(name, ".", "/")
	if tokenFileRe.MatchString(filepath.Base(rel)) {
		if path, ok := e.search.Find(rel, dir); ok {
			if data, err := os.ReadFile(path); err == nil {
				first, _, _ := strings.Cut(string(data), "\n")
				return strings.TrimSpace(first), true
			}
		}
	}
	if v, ok := e.opts.Tokens[name]; ok {
		return v, true
	}

	ctx := *e.top()
	e.report.Report(diag.Diagnostic{
		File:    ctx.File,
		Line:    ctx.Line,
		Kind:    diag.Unresolved,
		Message: fmt.Sprintf("text token %s: not found", name),
	})
	return "", false
}

// Where returns the line reached in input name, when name is the input
// being bound or the last one bound.
func (e *Engine) Where(name string) (model.Context, bool) {
	if len(e.stack) == 0 || e.stack[0].File != name {
		return model.Context{}, false
	}
	return *e.top(), true
}

func (e *Engine) top() *model.Context {
	return &e.stack[len(e.stack)-1]
}

func (e *Engine) push(ctx model.Context) {
	e.stack = append(e.stack, ctx)
}

func (e *Engine) pop() {
	e.stack = e.stack[:len(e.stack)-1]
}

// fail attaches the current context and a stack trace to err.
func (e *Engine) fail(err error) error {
	return &model.ContextError{Context: *e.top(), Err: diag.WithStack(err)}
}

func registryKey(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

// splitLines splits s after each newline. A final line without a newline
// is kept; an empty string has no lines.
func splitLines(s string) []string {
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
