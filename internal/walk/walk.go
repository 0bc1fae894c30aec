// Package walk visits the files of directory trees that pass a filter.
package walk

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/hashicorp/go-multierror"
	ignore "github.com/sabhiram/go-gitignore"

	"github.com/TortugaLabs/ashlib/internal/diag"
	"github.com/TortugaLabs/ashlib/internal/filter"
	"github.com/TortugaLabs/ashlib/internal/model"
)

// DefaultDirConfig is the usual name of the per-directory rules file.
const DefaultDirConfig = ".binderrc"

// VisitFunc processes one file.
type VisitFunc func(path string) error

// Options control a Walker.
type Options struct {
	DirConfig      string // per-directory rules file name; empty disables
	FollowSymlinks bool
	PatternTest    bool // print filter decisions instead of visiting
	ReportBinary   bool
	DumpStack      bool
	Gitignore      bool // also skip what the root's .gitignore ignores
	Out            io.Writer
	Logger         *log.Logger

	// Locate returns the position reached inside path, when known. It
	// places failures that carry no context of their own.
	Locate func(path string) (model.Context, bool)
}

// Walker walks directory trees depth first. Directories are visited at
// most once per Walker, even when reached again through a symlink.
type Walker struct {
	filter  *filter.Filter
	report  diag.Reporter
	opts    Options
	log     *log.Logger
	visited map[string]struct{}
	binary  map[string]struct{}
	errs    *multierror.Error
}

// New returns a Walker applying f.
func New(f *filter.Filter, report diag.Reporter, opts Options) *Walker {
	if report == nil {
		report = diag.Discard
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	logger := opts.Logger
	if logger == nil {
		logger = diag.QuietLogger()
	}
	w := &Walker{
		filter:  f,
		report:  report,
		opts:    opts,
		log:     logger,
		visited: make(map[string]struct{}),
		binary:  make(map[string]struct{}),
	}
	if opts.ReportBinary {
		f.OnBinary = w.reportBinary
	}
	return w
}

// Errors returns every failure seen so far, or nil. Its message only
// counts them; each one was reported when it happened.
func (w *Walker) Errors() error {
	return w.errs.ErrorOrNil()
}

// Failures returns the number of failures seen so far.
func (w *Walker) Failures() int {
	if w.errs == nil {
		return 0
	}
	return len(w.errs.Errors)
}

// Walk visits every file under root that passes the filter and returns
// the number of files that failed.
func (w *Walker) Walk(root string, visit VisitFunc) int {
	var gi *ignore.GitIgnore
	if w.opts.Gitignore {
		gi = loadGitignore(root)
	}
	return w.walkDir(root, root, gi, visit)
}

func (w *Walker) walkDir(dir, root string, gi *ignore.GitIgnore, visit VisitFunc) int {
	key := canonical(dir)
	if _, seen := w.visited[key]; seen {
		w.log.Debug("already visited", "dir", dir)
		return 0
	}
	w.visited[key] = struct{}{}

	failures := 0
	if w.opts.DirConfig != "" {
		cfg := filepath.Join(dir, w.opts.DirConfig)
		if info, err := os.Stat(cfg); err == nil && info.Mode().IsRegular() {
			rules, reset, err := filter.LoadRules(cfg)
			if err != nil {
				failures += w.fail(cfg, err)
			} else {
				w.filter.Push(rules, reset)
				defer w.filter.Pop()
			}
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return failures + w.fail(dir, err)
	}

	for _, ent := range entries {
		path := filepath.Join(dir, ent.Name())

		if ent.Type()&os.ModeSymlink != 0 && !w.opts.FollowSymlinks {
			w.log.Debug("skipping symlink", "path", path)
			continue
		}
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		isDir := info.IsDir()
		if !isDir && !info.Mode().IsRegular() {
			continue
		}

		skip := w.filter.Skip(path, ent.Name(), isDir)
		if !skip && gi != nil {
			skip = ignored(gi, root, path, isDir)
		}

		if w.opts.PatternTest {
			w.printDecision(path, isDir, skip)
			if isDir && !skip {
				failures += w.walkDir(path, root, gi, visit)
			}
			continue
		}
		if skip {
			continue
		}

		if isDir {
			failures += w.walkDir(path, root, gi, visit)
		} else {
			failures += w.Visit(path, visit)
		}
	}
	return failures
}

// Visit runs visit on a single file and returns 1 if it failed, 0 otherwise.
// A panic inside visit is a failure. Binary files are not failures.
func (w *Walker) Visit(path string, visit VisitFunc) (failures int) {
	defer diag.Recover(func(cause error) {
		failures = w.fail(path, cause)
	})

	err := visit(path)
	if err == nil {
		return 0
	}
	if errors.Is(err, model.ErrBinary) {
		w.reportBinary(path)
		return 0
	}
	return w.fail(path, err)
}

// reportBinary notes a binary file once, however many times it is seen.
func (w *Walker) reportBinary(path string) {
	if !w.opts.ReportBinary {
		return
	}
	if _, seen := w.binary[path]; seen {
		return
	}
	w.binary[path] = struct{}{}
	w.report.Report(diag.Diagnostic{File: path, Kind: diag.Binary, Message: "unprocessed binary file"})
}

// fail reports err against path, or against the context it carries.
func (w *Walker) fail(path string, err error) int {
	ctx, text := model.Context{File: path}, err.Error()
	var ce *model.ContextError
	if errors.As(err, &ce) {
		ctx, text = ce.Context, ce.Err.Error()
	} else if w.opts.Locate != nil {
		if where, ok := w.opts.Locate(path); ok {
			ctx = where
		}
	}

	cause := err
	for {
		next := errors.Unwrap(cause)
		if next == nil {
			break
		}
		cause = next
	}
	msg := fmt.Sprintf("%s (type: %T)", text, cause)
	if w.opts.DumpStack {
		if stack := diag.Stack(err); stack != "" {
			msg += "\n" + strings.TrimRight(stack, "\n")
		}
	}

	w.report.Report(diag.Diagnostic{File: ctx.File, Line: ctx.Line, Kind: diag.Failure, Message: msg})
	w.errs = multierror.Append(w.errs, fmt.Errorf("%s: %w", path, err))
	w.errs.ErrorFormat = summarize
	return 1
}

func summarize(errs []error) string {
	if len(errs) == 1 {
		return "1 file failed"
	}
	return fmt.Sprintf("%d files failed", len(errs))
}

func (w *Walker) printDecision(path string, isDir, skip bool) {
	slash, verdict := "", "PROCESS"
	if isDir {
		slash = "/"
	}
	if skip {
		verdict = "FILTERED"
	}
	_, _ = fmt.Fprintf(w.opts.Out, "PATTERN:%s%s - %s\n", path, slash, verdict)
}

// canonical returns the absolute, symlink-free form of dir, falling back
// to the cleaned path when it cannot be resolved.
func canonical(dir string) string {
	if real, err := filepath.EvalSymlinks(dir); err == nil {
		dir = real
	}
	if abs, err := filepath.Abs(dir); err == nil {
		return abs
	}
	return filepath.Clean(dir)
}

func loadGitignore(root string) *ignore.GitIgnore {
	path := filepath.Join(root, ".gitignore")
	gi, err := ignore.CompileIgnoreFile(path)
	if err != nil {
		return nil
	}
	return gi
}

func ignored(gi *ignore.GitIgnore, root, path string, isDir bool) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	if isDir {
		rel += "/"
	}
	return gi.MatchesPath(rel)
}
