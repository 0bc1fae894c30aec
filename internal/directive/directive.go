// Package directive recognizes the line-level binder directives.
//
// Each directive kind is matched independently with an anchored pattern.
// Parse classifies a line using the first kind that matches, in this order:
//
//	include      <prefix>###$_include: <id> [comment]
//	begin        <prefix>###$_begin-include: <id> [comment]
//	end          <prefix>###$_end-include[: anything]
//	require      <prefix>###$_require[s]: <id> [comment]
//	doc line     <prefix>#$ text
//	trailing doc content #$ text
//
// Text tokens (<%scoped.identifier%>) are not a line kind; Tokens and
// ReplaceTokens find them anywhere in a line.
package directive

import (
	"regexp"
	"strings"
)

// Kind identifies the directive found on a line.
type Kind uint8

const (
	None Kind = iota
	Include
	Begin
	End
	Require
	Doc
	DocTrailing
)

var kindNames = [...]string{"none", "include", "begin", "end", "require", "doc", "doc-trailing"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Directive is the result of classifying one line.
type Directive struct {
	Kind    Kind
	Prefix  string // leading whitespace
	Snippet string // snippet identifier (include, begin, require)
	Comment string // text after the identifier, line ending removed
}

// TokenRef is one <%name%> occurrence within a line.
type TokenRef struct {
	Name       string
	Start, End int // byte offsets of the whole token
}

var (
	includeRe  = regexp.MustCompile(`^(\s*)###\$_include:\s*([^#\s]+)(.*)$`)
	beginRe    = regexp.MustCompile(`^(\s*)###\$_begin-include:\s*([^#\s]+)(.*)$`)
	endRe      = regexp.MustCompile(`^(\s*)###\$_end-include:?(\s.*)?$`)
	requireRe  = regexp.MustCompile(`^(\s*)###\$_requires?:\s*([^#\s]+)(.*)$`)
	docLineRe  = regexp.MustCompile(`^\s*#\$`)
	docTrailRe = regexp.MustCompile(`\s+#\$`)
	tokenRe    = regexp.MustCompile(`<%([_A-Za-z][:._A-Za-z0-9]*)%>`)
)

// Parse classifies line. The line ending, if any, is ignored.
func Parse(line string) Directive {
	body := chomp(line)

	if d, ok := matchRef(includeRe, body, Include); ok {
		return d
	}
	if d, ok := matchRef(beginRe, body, Begin); ok {
		return d
	}
	if m := endRe.FindStringSubmatch(body); m != nil {
		return Directive{Kind: End, Prefix: m[1], Comment: m[2]}
	}
	if d, ok := matchRef(requireRe, body, Require); ok {
		return d
	}
	if docLineRe.MatchString(body) {
		return Directive{Kind: Doc, Prefix: leadingSpace(body)}
	}
	if docTrailRe.MatchString(body) {
		return Directive{Kind: DocTrailing, Prefix: leadingSpace(body)}
	}
	return Directive{Kind: None}
}

// IsEnd reports whether line is an end marker.
func IsEnd(line string) bool {
	return endRe.MatchString(chomp(line))
}

// StripTrailingDoc truncates line at a trailing embedded-doc marker.
// Lines without one are returned unchanged.
func StripTrailingDoc(line string) string {
	loc := docTrailRe.FindStringIndex(line)
	if loc == nil {
		return line
	}
	return line[:loc[0]] + "\n"
}

// Tokens returns the text tokens found in line, in order.
func Tokens(line string) []TokenRef {
	idx := tokenRe.FindAllStringSubmatchIndex(line, -1)
	if idx == nil {
		return nil
	}
	toks := make([]TokenRef, 0, len(idx))
	for _, m := range idx {
		toks = append(toks, TokenRef{Name: line[m[2]:m[3]], Start: m[0], End: m[1]})
	}
	return toks
}

// ReplaceTokens rewrites every text token in line with the value returned by
// lookup. Tokens for which lookup reports false are left untouched.
func ReplaceTokens(line string, lookup func(name string) (string, bool)) string {
	toks := Tokens(line)
	if len(toks) == 0 {
		return line
	}
	var b strings.Builder
	last := 0
	for _, t := range toks {
		b.WriteString(line[last:t.Start])
		if v, ok := lookup(t.Name); ok {
			b.WriteString(v)
		} else {
			b.WriteString(line[t.Start:t.End])
		}
		last = t.End
	}
	b.WriteString(line[last:])
	return b.String()
}

func matchRef(re *regexp.Regexp, body string, kind Kind) (Directive, bool) {
	m := re.FindStringSubmatch(body)
	if m == nil {
		return Directive{}, false
	}
	return Directive{Kind: kind, Prefix: m[1], Snippet: m[2], Comment: m[3]}, true
}

func chomp(line string) string {
	return strings.TrimRight(line, "\r\n")
}

func leadingSpace(s string) string {
	return s[:len(s)-len(strings.TrimLeft(s, " \t"))]
}
