package filter

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ErrInvalidRule indicates a malformed rule specification.
var ErrInvalidRule = errors.New("invalid rule")

// ResetSentinel on a line of its own discards every rule before it.
const ResetSentinel = "!RESET!"

// Scope restricts which entry types a rule applies to.
type Scope uint8

const (
	Either Scope = iota
	DirOnly
	FileOnly
)

// Action is the decision taken when a rule matches.
type Action uint8

const (
	Include Action = iota
	Exclude
)

// Rule is one filter table entry. Exactly one of Pattern or Content is set.
type Rule struct {
	Pattern string
	Content *regexp.Regexp
	Scope   Scope
	Action  Action
}

// Rules is an ordered filter table; the first matching rule wins.
type Rules []Rule

// prefixes are tried in order; longer prefixes sharing a first character come first.
var prefixes = []struct {
	text    string
	scope   Scope
	action  Action
	content bool
}{
	{"FC+", FileOnly, Include, true},
	{"FC-", FileOnly, Exclude, true},
	{"D+", DirOnly, Include, false},
	{"D-", DirOnly, Exclude, false},
	{"F+", FileOnly, Include, false},
	{"F-", FileOnly, Exclude, false},
	{"+", Either, Include, false},
	{"-", Either, Exclude, false},
}

// ParseRule parses one rule specification such as "F-*.tmp" or "FC+^#!/bin/sh".
// A specification without a prefix includes matching files and directories.
func ParseRule(spec string) (Rule, error) {
	rule := Rule{Pattern: spec, Scope: Either, Action: Include}
	for _, p := range prefixes {
		if !strings.HasPrefix(spec, p.text) {
			continue
		}
		body := spec[len(p.text):]
		rule = Rule{Scope: p.scope, Action: p.action}
		if p.content {
			re, err := regexp.Compile("(?is)" + body)
			if err != nil {
				return Rule{}, fmt.Errorf("%w %q: %v", ErrInvalidRule, spec, err)
			}
			rule.Content = re
		} else {
			rule.Pattern = body
		}
		break
	}

	if rule.Content == nil {
		if rule.Pattern == "" {
			return Rule{}, fmt.Errorf("%w %q: empty pattern", ErrInvalidRule, spec)
		}
		if !doublestar.ValidatePattern(strings.TrimPrefix(rule.Pattern, "/")) {
			return Rule{}, fmt.Errorf("%w %q: bad glob", ErrInvalidRule, spec)
		}
	}
	return rule, nil
}

// MustParse is like ParseRule but panics on error. It is meant for built-in tables.
func MustParse(specs ...string) Rules {
	rules := make(Rules, 0, len(specs))
	for _, s := range specs {
		r, err := ParseRule(s)
		if err != nil {
			panic(err)
		}
		rules = append(rules, r)
	}
	return rules
}

// String renders r in specification form.
func (r Rule) String() string {
	var prefix string
	switch r.Scope {
	case DirOnly:
		prefix = "D"
	case FileOnly:
		prefix = "F"
	}
	if r.Content != nil {
		prefix = "FC"
	}
	if r.Action == Exclude {
		prefix += "-"
	} else {
		prefix += "+"
	}
	if r.Content != nil {
		return prefix + strings.TrimPrefix(r.Content.String(), "(?is)")
	}
	return prefix + r.Pattern
}

// ParseRules reads a rules file: one rule per line, blank lines and lines
// starting with "#" ignored. A ResetSentinel line drops the rules read so far
// and sets reset, telling the caller to discard inherited rules as well.
func ParseRules(r io.Reader) (rules Rules, reset bool, err error) {
	s := bufio.NewScanner(r)
	lineNo := 0
	for s.Scan() {
		lineNo++
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if line == ResetSentinel {
			rules = rules[:0]
			reset = true
			continue
		}
		rule, err := ParseRule(line)
		if err != nil {
			return nil, false, fmt.Errorf("line %d: %w", lineNo, err)
		}
		rules = append(rules, rule)
	}
	if err := s.Err(); err != nil {
		return nil, false, fmt.Errorf("scan rules: %w", err)
	}
	return rules, reset, nil
}

// LoadRules reads and parses a rules file.
func LoadRules(path string) (Rules, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, false, fmt.Errorf("open rules file: %w", err)
	}
	defer func() { _ = f.Close() }()

	rules, reset, err := ParseRules(f)
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", path, err)
	}
	return rules, reset, nil
}

// Defaults returns the built-in baseline table.
func Defaults() Rules {
	return MustParse(
		"-*~", "D-.git",
		"F-*.zip", "F-*.jar",
		"F-*.gz", "F-*.xz", "F-*.bz2",
		"F-*.tar", "F-*.cpio", "F-*.tgz",
		"F-*.iso",
		"F-*.pyc",
		"F-*.exe", "F-*.EXE",
		"F-*.[jJ][pP][gG]", "F-*.jpeg", "F-*.png",
		"F-*.gif", "F-*.ico",
		"F-*.ttf", "F-*.o",
		"F-*.pdf", "F-*.epub", "F-*.cbz", "F-*.cbr",
		"F-*.mp4", "F-*.mp3", "F-*.mov", "F-*.wav",
	)
}
