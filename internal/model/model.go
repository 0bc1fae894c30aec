// Package model defines core data structures shared by the binder packages.
package model

import (
	"errors"
	"fmt"
)

// ErrBinary is returned when a file does not decode as UTF-8 text.
var ErrBinary = errors.New("binary file")

// Context locates the line currently being processed, for diagnostics.
type Context struct {
	File string
	Line int
}

func (c Context) String() string {
	if c.Line <= 0 {
		return c.File
	}
	return fmt.Sprintf("%s,%d", c.File, c.Line)
}

// Inclusion records a snippet file bound during one top-level run.
type Inclusion struct {
	Snippet string  // identifier as written in the directive
	Path    string  // resolved file path
	From    Context // where the directive was found
}

// ContextError is an error raised while processing the line at Context.
type ContextError struct {
	Context Context
	Err     error
}

func (e *ContextError) Error() string {
	return fmt.Sprintf("%s: %v", e.Context, e.Err)
}

func (e *ContextError) Unwrap() error {
	return e.Err
}
