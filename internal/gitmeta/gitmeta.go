// Package gitmeta collects provenance information about snippet files from git.
package gitmeta

import (
	"context"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// None is substituted for any value git cannot provide.
const None = "<none>"

// DefaultFormat is the metadata layout used when none is given.
const DefaultFormat = "fdir: {fdir}\ngitrepo: {giturl} ({remote})\ncommit: {describe}\ngitlog:---\n{log}\n===\n"

const timeout = 10 * time.Second

// Provider runs git commands.
type Provider interface {
	// Output runs git with args in dir and returns its trimmed standard
	// output, or fallback when the command fails or prints nothing.
	Output(args []string, dir, fallback string) string
}

type result struct {
	out string
	ok  bool
}

// Runner is a Provider that memoizes results per (arguments, directory) for
// its whole lifetime. It is not safe for concurrent use.
type Runner struct {
	cache map[string]result

	// run executes one git command; replaced in tests.
	run func(ctx context.Context, dir string, args ...string) ([]byte, error)
}

// NewRunner returns a Runner that executes the git binary.
func NewRunner() *Runner {
	return &Runner{cache: make(map[string]result), run: runGit}
}

func runGit(ctx context.Context, dir string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	return cmd.Output()
}

// Output implements Provider.
func (r *Runner) Output(args []string, dir, fallback string) string {
	key := strings.Join(args, "\x00") + "\x00\x00" + dir
	res, ok := r.cache[key]
	if !ok {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		out, err := r.run(ctx, dir, args...)
		cancel()
		res = result{out: strings.TrimSpace(string(out)), ok: err == nil}
		r.cache[key] = res
	}
	if !res.ok || res.out == "" {
		return fallback
	}
	return res.out
}

// Len reports how many distinct commands have been run.
func (r *Runner) Len() int { return len(r.cache) }

// Meta is the provenance of one snippet file.
type Meta struct {
	Snippet  string
	Dir      string
	Remote   string
	URL      string
	Describe string
	Log      string
}

// Describe gathers the metadata of the snippet file at path.
func Describe(p Provider, snippet, path string) Meta {
	dir := filepath.Dir(path)
	m := Meta{Snippet: snippet, Dir: dir, Remote: None, URL: None}

	if remote := p.Output([]string{"remote"}, dir, ""); remote != "" {
		m.Remote, _, _ = strings.Cut(remote, "\n")
		m.URL = p.Output([]string{"remote", "get-url", m.Remote}, dir, None)
	}
	m.Describe = p.Output([]string{"describe"}, dir, None)
	m.Log = p.Output([]string{"log", "--decorate=short", "-n", "1", "--", filepath.Base(path)}, dir, None)
	return m
}

// Format renders m with format, replacing the {snippet}, {fdir}, {remote},
// {giturl}, {describe} and {log} placeholders, and returns the result split
// into lines. A single trailing newline does not produce an empty last line.
func (m Meta) Format(format string) []string {
	r := strings.NewReplacer(
		"{snippet}", m.Snippet,
		"{fdir}", m.Dir,
		"{remote}", m.Remote,
		"{giturl}", m.URL,
		"{describe}", m.Describe,
		"{log}", m.Log,
	)
	text := strings.TrimSuffix(r.Replace(format), "\n")
	return strings.Split(text, "\n")
}
