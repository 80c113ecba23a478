package source

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_Clean(t *testing.T) {
	ctx := context.Background()
	cases := map[string]string{
		"main.go":   "package main\n\nfunc main() {}\n",
		"main.py":   "def f():\n    return 1\n",
		"main.c":    "int main(void) { return 0; }\n",
		"main.cpp":  "#include <iostream>\nint main() { std::cout << 1; }\n",
		"Main.java": "public class Main { public static void main(String[] a) {} }\n",
		"app.js":    "const x = () => 1;\n",
		"app.ts":    "const x: number = 1;\n",
	}
	for name, src := range cases {
		assert.NoError(t, Validate(ctx, []byte(src), name), name)
	}
}

func TestValidate_SyntaxError(t *testing.T) {
	err := Validate(context.Background(), []byte("package main\n\nfunc main( {\n"), "main.go")
	require.Error(t, err)

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "main.go", ve.FileName)
	assert.Contains(t, ve.Error(), "main.go:")
}

func TestValidate_UnknownLanguagePasses(t *testing.T) {
	assert.NoError(t, Validate(context.Background(), []byte("{{{"), "notes.txt"))
	assert.False(t, Supported("notes.txt"))
	assert.True(t, Supported("x.CPP"))
}

func TestSyntaxErrors(t *testing.T) {
	assert.Nil(t, SyntaxErrors(context.Background(), []byte("x = 1\n"), "a.py"))
	errs := SyntaxErrors(context.Background(), []byte("def f(:\n  pass\n"), "a.py")
	assert.NotEmpty(t, errs)
}

func TestFormat(t *testing.T) {
	input := []byte("package main\n\nfunc A()  {\nreturn\n}\n")
	got, err := Format(input, "main.go")
	require.NoError(t, err)
	assert.Equal(t, "package main\n\nfunc A() {\n\treturn\n}\n", string(got))

	py := []byte("def foo():\n  pass\n")
	got, err = Format(py, "main.py")
	require.NoError(t, err)
	assert.Equal(t, py, got, "unknown languages pass through")

	got, err = Format([]byte("name=\"x\"\n"), "codepad.hcl")
	require.NoError(t, err)
	assert.Equal(t, "name = \"x\"\n", string(got))

	_, err = Format([]byte("func broken {{{"), "main.go")
	assert.Error(t, err)
	assert.Equal(t, []byte("func broken {{{"), FormatOrKeep([]byte("func broken {{{"), "main.go"))
}

func TestLint(t *testing.T) {
	tests := []struct {
		name  string
		file  string
		src   string
		rules []string
		lines []uint32
	}{
		{"nil slice", "main.go", "package main\n\nvar names []string\n\nvar ok = []int{}\n", []string{"nil-slice"}, []uint32{2}},
		{"empty if", "main.go", "package main\n\nfunc f(err error) {\n\tif err != nil {\n\t}\n}\n", []string{"empty-if"}, []uint32{3}},
		{"clean go", "main.go", "package main\n\nfunc f() int { return 1 }\n", nil, nil},
		{"bare except", "a.py", "try:\n    f()\nexcept:\n    pass\n", []string{"bare-except"}, []uint32{2}},
		{"typed except", "a.py", "try:\n    f()\nexcept ValueError:\n    pass\n", nil, nil},
		{"no rules", "notes.txt", "var x []int", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			diags, err := Lint(context.Background(), []byte(tt.src), tt.file)
			require.NoError(t, err)
			var rules []string
			var lines []uint32
			for _, d := range diags {
				rules = append(rules, d.Rule)
				lines = append(lines, d.Line)
			}
			assert.Equal(t, tt.rules, rules)
			assert.Equal(t, tt.lines, lines)
		})
	}
}

func TestDiagnostic_String(t *testing.T) {
	d := Diagnostic{Rule: "empty-if", Message: "empty if body", Line: 3}
	assert.Equal(t, "line 4: empty if body (empty-if)", d.String())
}
