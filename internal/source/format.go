package source

import (
	"path"
	"strings"

	"github.com/hashicorp/hcl/v2/hclwrite"
	"mvdan.cc/gofumpt/format"
)

// Format formats Go source with gofumpt and HCL/Terraform with hclwrite.
// Other files are returned unchanged. Unparseable Go is an error so
// callers can report it.
func Format(content []byte, fileName string) ([]byte, error) {
	switch strings.ToLower(path.Ext(fileName)) {
	case ".go":
		return format.Source(content, format.Options{})
	case ".hcl", ".tf":
		return hclwrite.Format(content), nil
	default:
		return content, nil
	}
}

// FormatOrKeep is Format with failures swallowed: the original buffer
// comes back untouched. Used where formatting is best-effort (export).
func FormatOrKeep(content []byte, fileName string) []byte {
	out, err := Format(content, fileName)
	if err != nil {
		return content
	}
	return out
}
