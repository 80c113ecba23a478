package source

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// Diagnostic is one lint finding. Line is 0-indexed.
type Diagnostic struct {
	Rule    string
	Message string
	Line    uint32
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("line %d: %s (%s)", d.Line+1, d.Message, d.Rule)
}

// lintRule reports every @match capture for which flag returns true.
type lintRule struct {
	name    string
	query   string
	message string
	flag    func(n *sitter.Node) bool
}

var lintRules = map[string][]lintRule{
	".go": {
		{
			name: "nil-slice",
			query: `(var_declaration
				(var_spec name: (identifier) type: (slice_type)) @match)`,
			message: "nil slice declaration; use make([]T, 0) if it is serialized",
			flag:    func(n *sitter.Node) bool { return !hasField(n, "value") },
		},
		{
			name:    "empty-if",
			query:   `(if_statement consequence: (block) @match)`,
			message: "empty if body",
			flag:    func(n *sitter.Node) bool { return n.NamedChildCount() == 0 },
		},
	},
	".py": {
		{
			name:    "bare-except",
			query:   `(except_clause) @match`,
			message: "bare except catches SystemExit and KeyboardInterrupt",
			flag:    func(n *sitter.Node) bool { return n.NamedChildCount() == 1 },
		},
	},
}

// Lint runs the rules registered for the file's extension. Files without
// rules, or in a language tree-sitter does not know, yield nil.
func Lint(ctx context.Context, content []byte, fileName string) ([]Diagnostic, error) {
	rules := lintRules[strings.ToLower(filepath.Ext(fileName))]
	if len(rules) == 0 {
		return nil, nil
	}
	lang := languageFor(fileName)
	root, err := parse(ctx, content, fileName)
	if err != nil || root == nil {
		return nil, err
	}

	var diags []Diagnostic
	for _, r := range rules {
		q, err := sitter.NewQuery([]byte(r.query), lang)
		if err != nil {
			return nil, fmt.Errorf("compile lint rule %s: %w", r.name, err)
		}
		qc := sitter.NewQueryCursor()
		qc.Exec(q, root)
		for {
			m, ok := qc.NextMatch()
			if !ok {
				break
			}
			for _, c := range m.Captures {
				if r.flag(c.Node) {
					diags = append(diags, Diagnostic{Rule: r.name, Message: r.message, Line: c.Node.StartPoint().Row})
				}
			}
		}
		qc.Close()
		q.Close()
	}
	return diags, nil
}

func hasField(n *sitter.Node, field string) bool {
	for i := 0; i < int(n.ChildCount()); i++ {
		if n.FieldNameForChild(i) == field {
			return true
		}
	}
	return false
}
