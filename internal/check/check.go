// Package check parses bound output with tree-sitter and reports problems
// a bind may have introduced.
package check

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/TortugaLabs/ashlib/internal/directive"
	"github.com/TortugaLabs/ashlib/internal/lang"
)

// Problem kinds.
const (
	SyntaxError    = "syntax error"
	Missing        = "missing"
	StrayDirective = "directive outside comment"
)

const maxSnippetChars = 40

// Problem is one issue found in a source file. Line and Column are 1-based.
type Problem struct {
	Line   int
	Column int
	Kind   string
	Text   string
}

func (p Problem) String() string {
	if p.Text == "" {
		return fmt.Sprintf("%s at column %d", p.Kind, p.Column)
	}
	return fmt.Sprintf("%s at column %d: %s", p.Kind, p.Column, p.Text)
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// Source parses src as language l and returns syntax errors, missing
// tokens, and binder directives that the grammar does not see as comments
// (for example inside a here-document or a string literal).
func Source(l *lang.Language, src []byte) ([]Problem, error) {
	if len(src) == 0 {
		return nil, nil
	}

	parser := l.NewParser()
	tree, err := parser.ParseCtx(context.Background(), nil, src)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", l.Name, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	var problems []Problem
	if root.HasError() {
		problems = collectErrors(root, src, problems)
	}

	stray, err := strayDirectives(l, root, src)
	if err != nil {
		return nil, err
	}
	return append(problems, stray...), nil
}

func collectErrors(node *sitter.Node, src []byte, problems []Problem) []Problem {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch {
		case child.Type() == "ERROR":
			problems = append(problems, newProblem(child, SyntaxError, snippet(child, src)))
		case child.IsMissing():
			problems = append(problems, newProblem(child, Missing, child.Type()))
		case child.HasError():
			problems = collectErrors(child, src, problems)
		}
	}
	return problems
}

// strayDirectives reports directive lines that do not start a comment node.
func strayDirectives(l *lang.Language, root *sitter.Node, src []byte) ([]Problem, error) {
	q, err := l.GetCommentQuery()
	if err != nil {
		return nil, err
	}

	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(q, root)

	comments := make(map[int]struct{})
	for {
		match, ok := qc.NextMatch()
		if !ok {
			break
		}
		for _, c := range match.Captures {
			comments[int(c.Node.StartPoint().Row)] = struct{}{}
		}
	}

	var problems []Problem
	for i, line := range strings.Split(string(src), "\n") {
		d := directive.Parse(line)
		switch d.Kind {
		case directive.Include, directive.Begin, directive.End, directive.Require:
		default:
			continue
		}
		if _, ok := comments[i]; ok {
			continue
		}
		problems = append(problems, Problem{
			Line:   i + 1,
			Column: len(d.Prefix) + 1,
			Kind:   StrayDirective,
			Text:   d.Kind.String(),
		})
	}
	return problems, nil
}

func newProblem(node *sitter.Node, kind, text string) Problem {
	p := node.StartPoint()
	return Problem{Line: int(p.Row) + 1, Column: int(p.Column) + 1, Kind: kind, Text: text}
}

func snippet(node *sitter.Node, src []byte) string {
	text := strings.TrimSpace(whitespaceRe.ReplaceAllString(node.Content(src), " "))
	if len(text) > maxSnippetChars {
		text = text[:maxSnippetChars] + "..."
	}
	return text
}
