// Package diag reports user-facing diagnostics and builds the operational logger.
//
// Diagnostics are printed one per line in the form
//
//	<file>,<line>: <message>
//
// and never abort processing on their own; callers decide what counts as a failure.
package diag

import (
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	goerrors "github.com/go-errors/errors"
)

// Kind classifies a diagnostic.
type Kind uint8

const (
	// NotFound is an unresolved snippet reference.
	NotFound Kind = iota + 1
	// Unresolved is an unresolved text token.
	Unresolved
	// Unterminated is a begin marker without a matching end marker.
	Unterminated
	// Binary is a file skipped because it is not text.
	Binary
	// Syntax is a syntax problem found in bound output.
	Syntax
	// Failure is an error that made a file fail.
	Failure
)

var kindNames = map[Kind]string{
	NotFound:     "not-found",
	Unresolved:   "unresolved",
	Unterminated: "unterminated",
	Binary:       "binary",
	Syntax:       "syntax",
	Failure:      "failure",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Diagnostic is one reported problem.
type Diagnostic struct {
	File    string
	Line    int
	Kind    Kind
	Message string
}

func (d Diagnostic) String() string {
	if d.Line <= 0 {
		return fmt.Sprintf("%s: %s", d.File, d.Message)
	}
	return fmt.Sprintf("%s,%d: %s", d.File, d.Line, d.Message)
}

// Reporter receives diagnostics.
type Reporter interface {
	Report(d Diagnostic)
}

// Printer writes diagnostics to a stream.
type Printer struct {
	w io.Writer
}

// NewPrinter returns a Printer writing to w.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// Report prints d on its own line.
func (p *Printer) Report(d Diagnostic) {
	_, _ = fmt.Fprintln(p.w, d.String())
}

// Collector keeps diagnostics in memory.
type Collector struct {
	Diagnostics []Diagnostic
}

// Report appends d.
func (c *Collector) Report(d Diagnostic) {
	c.Diagnostics = append(c.Diagnostics, d)
}

// Kinds returns the kind of every collected diagnostic, in order.
func (c *Collector) Kinds() []Kind {
	kinds := make([]Kind, len(c.Diagnostics))
	for i, d := range c.Diagnostics {
		kinds[i] = d.Kind
	}
	return kinds
}

// Discard drops every diagnostic.
var Discard Reporter = discard{}

type discard struct{}

func (discard) Report(Diagnostic) {}

// NewLogger builds the operational logger. Debug output is enabled by verbose.
func NewLogger(w io.Writer, verbose bool) *log.Logger {
	logger := log.NewWithOptions(w, log.Options{
		Prefix: "binder",
	})
	if verbose {
		logger.SetLevel(log.DebugLevel)
	}
	return logger
}

// QuietLogger returns a logger that drops everything.
func QuietLogger() *log.Logger {
	logger := log.New(io.Discard)
	logger.SetLevel(log.FatalLevel)
	return logger
}

// WithStack wraps err so that it carries the caller's stack.
// Errors that already carry one are returned unchanged.
//
// The skip count below assumes this frame exists.
//
//go:noinline
func WithStack(err error) error {
	if err == nil {
		return nil
	}
	return goerrors.Wrap(err, 1)
}

// Stack returns the stack trace recorded in err, or "" when there is none.
func Stack(err error) string {
	var ge *goerrors.Error
	if errors.As(err, &ge) {
		return string(ge.Stack())
	}
	return ""
}

// Recover turns a panic into an error with a stack trace and passes it to onPanic.
// It must be called from a defer statement.
func Recover(onPanic func(cause error)) {
	if rec := recover(); rec != nil {
		err, ok := rec.(error)
		if !ok {
			err = fmt.Errorf("%v", rec)
		}
		onPanic(goerrors.Wrap(err, 2))
	}
}
