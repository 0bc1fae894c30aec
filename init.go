package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"

	"github.com/TortugaLabs/ashlib/internal/filter"
	"github.com/TortugaLabs/ashlib/internal/walk"
)

const (
	sentinelStart = "# binder:start"
	sentinelEnd   = "# binder:end"
)

// runInit implements the `binder init` subcommand, which writes (or updates)
// the built-in filter rules into a directory's rules file.
func runInit(args []string, stdout, stderr io.Writer) error {
	fs := pflag.NewFlagSet("binder init", pflag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		dryRun bool
		name   string
	)
	fs.BoolVar(&dryRun, "dry-run", false, "print what would be written without modifying the file")
	fs.StringVar(&name, "pattern-dircfg", walk.DefaultDirConfig, "rules file `name`")

	fs.Usage = func() {
		fmt.Fprintf(stderr, `Usage: binder init [flags] [dir]

Write the built-in filter rules to dir/%s so they can be edited. The rules
are wrapped in sentinel comments so they can be refreshed in place on later
runs without touching the lines around them. Creates the file if it does not
exist.

dir defaults to the current directory.

Flags:
`, walk.DefaultDirConfig)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	section := generateSection()

	dir := "."
	if fs.NArg() > 0 {
		dir = fs.Arg(0)
	}
	path := filepath.Join(dir, name)

	existing, _ := os.ReadFile(path)
	updated := applySection(string(existing), section)

	if dryRun {
		_, _ = fmt.Fprint(stdout, updated)
		return nil
	}

	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	_, _ = fmt.Fprintf(stderr, "wrote binder rules to %s\n", path)
	return nil
}

// generateSection returns the sentinel-wrapped built-in rule table. It
// starts with a reset so the file fully describes the rules in effect.
func generateSection() string {
	lines := []string{
		sentinelStart,
		"# Built-in rules, first match wins. Lines between the sentinels are",
		"# rewritten by `binder init`; add your own rules after the end marker.",
		"# A pattern starting with / is matched against the whole path, where * stops",
		"# at a slash: write F-/**/*.tmp, not F-/*.tmp, to reach subdirectories.",
		filter.ResetSentinel,
	}
	for _, r := range filter.Defaults() {
		lines = append(lines, r.String())
	}
	lines = append(lines, sentinelEnd)
	return strings.Join(lines, "\n")
}

// applySection inserts section into content, replacing an existing sentinel
// block if present or prepending if not. User rules must follow the reset
// line to survive it.
func applySection(content, section string) string {
	start := strings.Index(content, sentinelStart)
	end := strings.Index(content, sentinelEnd)

	if start >= 0 && end > start {
		return content[:start] + section + content[end+len(sentinelEnd):]
	}

	if content == "" {
		return section + "\n"
	}
	return section + "\n\n" + content
}
