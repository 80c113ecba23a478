// Package source runs editor-side checks on file content: tree-sitter
// syntax validation, gofumpt formatting and a small lint pass.
package source

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// ValidationError contains structured information about a syntax error.
type ValidationError struct {
	FileName string
	Line     uint32 // 0-indexed
	Column   uint32 // 0-indexed
	Message  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", e.FileName, e.Line+1, e.Column+1, e.Message)
}

// Validate parses content with tree-sitter and returns a *ValidationError
// at the first syntax error. Files with no known language pass (nil).
func Validate(ctx context.Context, content []byte, fileName string) error {
	root, err := parse(ctx, content, fileName)
	if err != nil || root == nil {
		return err
	}
	if !root.HasError() {
		return nil
	}

	if errNode := findFirstError(root); errNode != nil {
		return &ValidationError{
			FileName: fileName,
			Line:     errNode.StartPoint().Row,
			Column:   errNode.StartPoint().Column,
			Message:  describe(errNode),
		}
	}
	return &ValidationError{FileName: fileName, Message: "syntax tree contains errors"}
}

// SyntaxErrors returns every ERROR/MISSING location, or nil if the content
// parses cleanly or the language is unknown.
func SyntaxErrors(ctx context.Context, content []byte, fileName string) []ValidationError {
	root, err := parse(ctx, content, fileName)
	if err != nil || root == nil || !root.HasError() {
		return nil
	}
	var errs []ValidationError
	collectErrors(root, fileName, &errs)
	return errs
}

// Supported reports whether fileName has a grammar.
func Supported(fileName string) bool {
	return languageFor(fileName) != nil
}

func parse(ctx context.Context, content []byte, fileName string) (*sitter.Node, error) {
	lang := languageFor(fileName)
	if lang == nil {
		return nil, nil
	}

	parser := sitter.NewParser()
	parser.SetLanguage(lang)

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", fileName, err)
	}
	root := tree.RootNode()
	if root == nil {
		return nil, fmt.Errorf("parse %s: empty syntax tree", fileName)
	}
	return root, nil
}

func describe(n *sitter.Node) string {
	if n.IsMissing() {
		return fmt.Sprintf("missing %s", n.Type())
	}
	return "syntax error"
}

func findFirstError(node *sitter.Node) *sitter.Node {
	if node.IsError() || node.IsMissing() {
		return node
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.HasError() || child.IsError() || child.IsMissing() {
			if found := findFirstError(child); found != nil {
				return found
			}
		}
	}
	return nil
}

func collectErrors(node *sitter.Node, fileName string, errs *[]ValidationError) {
	if node.IsError() || node.IsMissing() {
		*errs = append(*errs, ValidationError{
			FileName: fileName,
			Line:     node.StartPoint().Row,
			Column:   node.StartPoint().Column,
			Message:  describe(node),
		})
		return
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.HasError() || child.IsError() || child.IsMissing() {
			collectErrors(child, fileName, errs)
		}
	}
}

// languageFor maps file extensions to tree-sitter grammars. It covers the
// languages the execute service runs plus the editor's usual suspects.
func languageFor(fileName string) *sitter.Language {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".go":
		return golang.GetLanguage()
	case ".py":
		return python.GetLanguage()
	case ".c", ".h":
		return c.GetLanguage()
	case ".cpp", ".cc", ".cxx", ".hpp":
		return cpp.GetLanguage()
	case ".java":
		return java.GetLanguage()
	case ".js":
		return javascript.GetLanguage()
	case ".ts":
		return typescript.GetLanguage()
	default:
		return nil
	}
}
