package generator

import (
	"bytes"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const counterSource = `package demo

import "github.com/pthm/livecmp"

type Counter struct {
	livecmp.Base
	Count   int      ` + "`live:\"count\"`" + `
	NewTodo string
	Secret  string   ` + "`live:\"-\"`" + `
	OnSave  func()
	Tags    []string ` + "`live:\"tags,omitempty\"`" + `
	cache   []int
}

func NewCounter() livecmp.Component {
	c := &Counter{}
	c.Action("increment", livecmp.Bind0(c.increment))
	c.Action("raw", c.raw)
	return c
}

type Manual struct {
	livecmp.Base
	N int
}

func (m *Manual) Fields() []livecmp.Field { return nil }

type Plain struct {
	N int
}
`

func parseSource(t *testing.T, src string) map[string]*ast.File {
	t.Helper()
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "counter.go", src, parser.ParseComments)
	if err != nil {
		t.Fatalf("Failed to parse code: %v", err)
	}
	return map[string]*ast.File{"counter.go": f}
}

func TestFindComponents(t *testing.T) {
	g := New(Options{})
	comps := g.findComponents(parseSource(t, counterSource))

	if len(comps) != 1 {
		t.Fatalf("findComponents() found %d components, want 1", len(comps))
	}
	comp := comps[0]
	if comp.TypeName != "Counter" {
		t.Errorf("TypeName = %q", comp.TypeName)
	}

	tests := []struct {
		goName  string
		name    string
		exclude bool
	}{
		{"Count", "count", false},
		{"NewTodo", "newTodo", false},
		{"Secret", "", true},
		{"OnSave", "onSave", true},
		{"Tags", "tags", false},
	}
	if len(comp.Fields) != len(tests) {
		t.Fatalf("Fields = %+v", comp.Fields)
	}
	for i, tt := range tests {
		f := comp.Fields[i]
		if f.GoName != tt.goName || f.Exclude != tt.exclude || (!tt.exclude && f.Name != tt.name) {
			t.Errorf("field %d = %+v, want %+v", i, f, tt)
		}
	}

	if len(comp.Actions) != 2 {
		t.Fatalf("Actions = %+v", comp.Actions)
	}
	if comp.Actions[0].Name != "increment" || comp.Actions[0].Handler != "increment" {
		t.Errorf("Actions[0] = %+v", comp.Actions[0])
	}
	if comp.Actions[1].Handler != "raw" {
		t.Errorf("Actions[1] = %+v", comp.Actions[1])
	}
}

func TestParseLiveTag(t *testing.T) {
	tests := []struct {
		tag     string
		key     string
		exclude bool
	}{
		{``, "", false},
		{`json:"x"`, "", false},
		{`live:"count"`, "count", false},
		{`json:"x" live:"n,omitempty"`, "n", false},
		{`live:"-"`, "", true},
	}
	for _, tt := range tests {
		key, exclude := parseLiveTag(tt.tag)
		if key != tt.key || exclude != tt.exclude {
			t.Errorf("parseLiveTag(%q) = %q, %v", tt.tag, key, exclude)
		}
	}
}

func TestLowerFirst(t *testing.T) {
	tests := map[string]string{
		"Count":   "count",
		"NewTodo": "newTodo",
		"ID":      "id",
		"URLPath": "urlPath",
		"x":       "x",
	}
	for in, want := range tests {
		if got := lowerFirst(in); got != want {
			t.Errorf("lowerFirst(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestGenerateAndClean(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "counter.go"), []byte(counterSource), 0644); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	g := New(Options{Out: &out})
	if err := g.Generate(dir + "/..."); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	generated := filepath.Join(dir, "counter"+GeneratedSuffix)
	code, err := os.ReadFile(generated)
	if err != nil {
		t.Fatalf("generated file missing: %v", err)
	}
	src := string(code)
	for _, want := range []string{
		"// Code generated by livecmp generate. DO NOT EDIT.",
		"func (c *Counter) Fields() []livecmp.Field {",
		`livecmp.Value("count", &c.Count),`,
		`livecmp.Value("newTodo", &c.NewTodo),`,
		`livecmp.Value("tags", &c.Tags),`,
		"//   - increment (increment)",
	} {
		if !strings.Contains(src, want) {
			t.Errorf("generated code missing %q:\n%s", want, src)
		}
	}
	if strings.Contains(src, "Secret") || strings.Contains(src, "OnSave") || strings.Contains(src, "cache") {
		t.Errorf("excluded fields generated:\n%s", src)
	}
	if _, err := parser.ParseFile(token.NewFileSet(), generated, code, 0); err != nil {
		t.Errorf("generated code does not parse: %v", err)
	}

	// a second run must not pick up its own output
	if err := g.Generate(dir); err != nil {
		t.Fatalf("second Generate() error = %v", err)
	}

	if err := New(Options{Out: &out, DryRun: true}).Clean(dir); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(generated); err != nil {
		t.Error("dry-run clean removed the file")
	}
	if err := g.Clean(dir); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(generated); !os.IsNotExist(err) {
		t.Error("Clean() did not remove the generated file")
	}
	if !strings.Contains(out.String(), "removing ") {
		t.Errorf("progress output = %q", out.String())
	}
}
