package api

// Workspace is the JSON manifest a session can be seeded from.
type Workspace struct {
	// Version of the codepad manifest schema.
	Version string `json:"version"`
	// Root nodes in display order.
	Nodes []Node `json:"nodes,omitempty"`
}

// Node kinds.
const (
	KindFile   = "file"
	KindFolder = "folder"
)

// Node is one file or folder in a manifest.
type Node struct {
	// Name without extension for files. "main.cpp" is split into name and
	// extension when Extension is empty.
	Name string `json:"name"`
	// Type is "file" or "folder". Empty means folder when Children is
	// set, file otherwise.
	Type string `json:"type,omitempty"`
	// Extension of a file, without the dot.
	Extension string `json:"extension,omitempty"`
	// Content of a file. Absent means not loaded; "" is an empty file.
	Content *string `json:"content,omitempty"`
	// Expanded state of a folder. Nested folders default to collapsed.
	Expanded *bool `json:"expanded,omitempty"`
	// Children of a folder in display order.
	Children []Node `json:"children,omitempty"`
}

// IsFolder reports whether the manifest entry describes a folder.
func (n Node) IsFolder() bool {
	if n.Type != "" {
		return n.Type == KindFolder
	}
	return len(n.Children) > 0
}

// ExecuteRequest is the body POSTed to {baseURL}/execute.
type ExecuteRequest struct {
	Code     string `json:"code"`
	Filename string `json:"filename"`
}

// ExecuteResponse is the execute service's verdict.
type ExecuteResponse struct {
	Success  bool   `json:"success"`
	Language string `json:"language,omitempty"`
	Output   string `json:"output"`
	Error    string `json:"error"`
	// ExecutionTime is reported in milliseconds.
	ExecutionTime float64 `json:"execution_time"`
	// Detail carries the service's message on a rejected request (HTTP 4xx/5xx).
	Detail string `json:"-"`
}

// SupportedExtensions maps the file extensions the execute service runs
// to the language it reports.
var SupportedExtensions = map[string]string{
	"py":   "python",
	"c":    "c",
	"cpp":  "cpp",
	"java": "java",
}
