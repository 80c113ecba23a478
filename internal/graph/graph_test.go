package graph

import (
	"errors"
	"io/fs"
	"testing"
)

type seqIDs struct{ n int }

func (s *seqIDs) Generate() string {
	s.n++
	return "id-" + string(rune('a'+s.n-1))
}

func TestNode_FileName(t *testing.T) {
	tests := []struct {
		name string
		node *Node
		want string
	}{
		{"file with extension", NewFile("1", "main", "cpp"), "main.cpp"},
		{"file without extension", NewFile("2", "Makefile", ""), "Makefile"},
		{"folder ignores extension", &Node{ID: "3", Name: "src", Mode: fs.ModeDir, Extension: "x"}, "src"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.node.FileName(); got != tt.want {
				t.Errorf("FileName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNode_ContentStates(t *testing.T) {
	empty := NewFile("1", "a", "txt")
	if !empty.HasContent() {
		t.Error("new file should have (empty) content")
	}
	if empty.ContentSize() != 0 {
		t.Errorf("ContentSize = %d, want 0", empty.ContentSize())
	}

	unloaded := &Node{ID: "2", Name: "b"}
	if unloaded.HasContent() {
		t.Error("file with nil Data should report no content")
	}

	folder := NewFolder("3", "src")
	if folder.HasContent() {
		t.Error("folders never carry content")
	}
	if !folder.Expanded {
		t.Error("new folders start expanded")
	}
}

func TestNode_ExtensionOrDefault(t *testing.T) {
	if got := NewFile("1", "notes", "").ExtensionOrDefault(); got != "txt" {
		t.Errorf("ExtensionOrDefault() = %q, want txt", got)
	}
	if got := NewFile("1", "main", "py").ExtensionOrDefault(); got != "py" {
		t.Errorf("ExtensionOrDefault() = %q, want py", got)
	}
}

func TestContentBytes_NeverNil(t *testing.T) {
	if ContentBytes("") == nil {
		t.Error("ContentBytes(\"\") must be non-nil so empty files stay distinct from unloaded ones")
	}
	if string(ContentBytes("x")) != "x" {
		t.Error("ContentBytes should copy the text")
	}
}

func TestValidateName(t *testing.T) {
	for _, bad := range []string{"", "  ", ".", "..", "a/b", `a\b`} {
		if err := ValidateName(bad); !errors.Is(err, ErrInvalidName) {
			t.Errorf("ValidateName(%q) = %v, want ErrInvalidName", bad, err)
		}
	}
	for _, good := range []string{"main", "my file", ".gitignore", "a.b"} {
		if err := ValidateName(good); err != nil {
			t.Errorf("ValidateName(%q) = %v, want nil", good, err)
		}
	}
}

func TestSplitFileName(t *testing.T) {
	tests := []struct{ in, name, ext string }{
		{"main.cpp", "main", "cpp"},
		{"archive.tar.gz", "archive.tar", "gz"},
		{"Makefile", "Makefile", ""},
		{".gitignore", ".gitignore", ""},
		{"trailing.", "trailing.", ""},
	}
	for _, tt := range tests {
		name, ext := SplitFileName(tt.in)
		if name != tt.name || ext != tt.ext {
			t.Errorf("SplitFileName(%q) = (%q, %q), want (%q, %q)", tt.in, name, ext, tt.name, tt.ext)
		}
	}
}

func TestForest_NilBehavesEmpty(t *testing.T) {
	var f *Forest
	if f.Len() != 0 {
		t.Errorf("Len = %d, want 0", f.Len())
	}
	if _, err := f.Find("x"); err != ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if f.Remove("x") != f {
		t.Error("Remove on an empty forest should be a no-op")
	}

	out, n, err := f.CreateFolder(&seqIDs{}, "", "src")
	if err != nil {
		t.Fatalf("CreateFolder on nil forest: %v", err)
	}
	if out.Len() != 1 || n.Name != "src" {
		t.Errorf("unexpected result: len=%d name=%q", out.Len(), n.Name)
	}
}
