// Package generator writes the Fields method of live components from
// struct tags:
//
//	type Counter struct {
//	    livecmp.Base
//	    Count int    `live:"count"`
//	    Label string // auto: "label"
//	    cache []int  // unexported, skipped
//	}
//
// produces counter_live.go with
//
//	func (c *Counter) Fields() []livecmp.Field {
//	    return []livecmp.Field{
//	        livecmp.Value("count", &c.Count),
//	        livecmp.Value("label", &c.Label),
//	    }
//	}
package generator

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"
)

// GeneratedSuffix marks generated files.
const GeneratedSuffix = "_live.go"

// Options configures the generator.
type Options struct {
	DryRun bool

	// Out receives progress lines. Defaults to os.Stdout.
	Out io.Writer
}

// Generator generates livecmp code.
type Generator struct {
	opts Options
	fset *token.FileSet
}

// New creates a new generator.
func New(opts Options) *Generator {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	return &Generator{
		opts: opts,
		fset: token.NewFileSet(),
	}
}

// Generate generates code for the given package patterns.
func (g *Generator) Generate(patterns ...string) error {
	packages, err := g.findPackages(patterns)
	if err != nil {
		return err
	}

	for _, pkg := range packages {
		if err := g.generatePackage(pkg); err != nil {
			return fmt.Errorf("package %s: %w", pkg, err)
		}
	}

	return nil
}

// Clean removes generated files for the given package patterns.
func (g *Generator) Clean(patterns ...string) error {
	packages, err := g.findPackages(patterns)
	if err != nil {
		return err
	}

	for _, pkg := range packages {
		if err := g.cleanPackage(pkg); err != nil {
			return fmt.Errorf("package %s: %w", pkg, err)
		}
	}

	return nil
}

// findPackages resolves package patterns to directory paths.
func (g *Generator) findPackages(patterns []string) ([]string, error) {
	var packages []string

	for _, pattern := range patterns {
		if !strings.HasSuffix(pattern, "/...") {
			packages = append(packages, pattern)
			continue
		}

		root := strings.TrimSuffix(pattern, "/...")
		if root == "" {
			root = "."
		}
		err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() {
				return nil
			}
			base := d.Name()
			if path != root && (strings.HasPrefix(base, ".") || strings.HasPrefix(base, "_") || base == "vendor" || base == "testdata") {
				return filepath.SkipDir
			}

			entries, err := os.ReadDir(path)
			if err != nil {
				return nil
			}
			for _, entry := range entries {
				if !entry.IsDir() && isSource(entry.Name()) {
					packages = append(packages, path)
					break
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	return packages, nil
}

func isSource(name string) bool {
	return strings.HasSuffix(name, ".go") &&
		!strings.HasSuffix(name, "_test.go") &&
		!strings.HasSuffix(name, GeneratedSuffix)
}

// generatePackage generates code for a single package.
func (g *Generator) generatePackage(pkgPath string) error {
	entries, err := os.ReadDir(pkgPath)
	if err != nil {
		return err
	}

	files := map[string]*ast.File{}
	var pkgName string
	for _, entry := range entries {
		if entry.IsDir() || !isSource(entry.Name()) {
			continue
		}
		path := filepath.Join(pkgPath, entry.Name())
		f, err := parser.ParseFile(g.fset, path, nil, parser.ParseComments)
		if err != nil {
			return err
		}
		pkgName = f.Name.Name
		files[path] = f
	}

	components := g.findComponents(files)
	for _, comp := range components {
		if err := g.generateComponent(pkgPath, pkgName, comp); err != nil {
			return err
		}
	}
	return nil
}

// cleanPackage removes generated files from a package.
func (g *Generator) cleanPackage(pkgPath string) error {
	entries, err := os.ReadDir(pkgPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), GeneratedSuffix) {
			continue
		}
		path := filepath.Join(pkgPath, entry.Name())
		fmt.Fprintf(g.opts.Out, "removing %s\n", path)
		if !g.opts.DryRun {
			if err := os.Remove(path); err != nil {
				return err
			}
		}
	}

	return nil
}

// ComponentInfo holds information about a discovered component.
type ComponentInfo struct {
	SourceFile string
	TypeName   string       // e.g., "Counter"
	Fields     []StateField // declared state, in struct order
	Actions    []ActionInfo // registered actions
}

// StateField is an exported struct field that becomes a live field.
type StateField struct {
	GoName  string // "NewTodo"
	Name    string // "newTodo"
	Type    string
	Exclude bool // live:"-"
}

// ActionInfo represents a registered action.
type ActionInfo struct {
	Name    string // Action name (e.g., "add")
	Handler string // Handler method name, when passed as a method value
}

// findComponents finds the structs embedding livecmp.Base that do not
// already declare Fields by hand.
func (g *Generator) findComponents(files map[string]*ast.File) []*ComponentInfo {
	declared := map[string]bool{}
	for _, file := range files {
		for _, decl := range file.Decls {
			fn, ok := decl.(*ast.FuncDecl)
			if !ok || fn.Recv == nil || fn.Name.Name != "Fields" {
				continue
			}
			declared[receiverName(fn.Recv.List[0].Type)] = true
		}
	}

	paths := make([]string, 0, len(files))
	for path := range files {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	var components []*ComponentInfo
	for _, path := range paths {
		file := files[path]
		for _, decl := range file.Decls {
			genDecl, ok := decl.(*ast.GenDecl)
			if !ok || genDecl.Tok != token.TYPE {
				continue
			}

			for _, spec := range genDecl.Specs {
				typeSpec, ok := spec.(*ast.TypeSpec)
				if !ok {
					continue
				}
				structType, ok := typeSpec.Type.(*ast.StructType)
				if !ok || !embedsBase(structType) || declared[typeSpec.Name.Name] {
					continue
				}

				components = append(components, &ComponentInfo{
					SourceFile: path,
					TypeName:   typeSpec.Name.Name,
					Fields:     g.stateFields(structType),
					Actions:    g.findActions(file),
				})
			}
		}
	}

	return components
}

func receiverName(expr ast.Expr) string {
	if star, ok := expr.(*ast.StarExpr); ok {
		expr = star.X
	}
	if ident, ok := expr.(*ast.Ident); ok {
		return ident.Name
	}
	return ""
}

// embedsBase checks if a struct embeds livecmp.Base.
func embedsBase(structType *ast.StructType) bool {
	for _, field := range structType.Fields.List {
		if len(field.Names) != 0 {
			continue
		}
		switch x := field.Type.(type) {
		case *ast.SelectorExpr:
			if ident, ok := x.X.(*ast.Ident); ok && ident.Name == "livecmp" && x.Sel.Name == "Base" {
				return true
			}
		case *ast.Ident:
			if x.Name == "Base" {
				return true
			}
		}
	}
	return false
}

// stateFields lists the live fields of a component struct.
func (g *Generator) stateFields(structType *ast.StructType) []StateField {
	var fields []StateField

	for _, field := range structType.Fields.List {
		if len(field.Names) == 0 {
			continue // embedded
		}

		var tag string
		if field.Tag != nil {
			tag = strings.Trim(field.Tag.Value, "`")
		}
		key, exclude := parseLiveTag(tag)

		for _, name := range field.Names {
			if !name.IsExported() {
				continue
			}
			sf := StateField{
				GoName:  name.Name,
				Name:    key,
				Type:    g.typeToString(field.Type),
				Exclude: exclude,
			}
			if sf.Name == "" {
				sf.Name = lowerFirst(name.Name)
			}
			if !sf.Exclude && !isSerializable(field.Type) {
				sf.Exclude = true
			}
			fields = append(fields, sf)
		}
	}

	return fields
}

// findActions finds c.Action("name", ...) calls in the file.
func (g *Generator) findActions(file *ast.File) []ActionInfo {
	var actions []ActionInfo
	seen := map[string]bool{}

	for _, decl := range file.Decls {
		funcDecl, ok := decl.(*ast.FuncDecl)
		if !ok || funcDecl.Body == nil {
			continue
		}

		ast.Inspect(funcDecl.Body, func(n ast.Node) bool {
			callExpr, ok := n.(*ast.CallExpr)
			if !ok {
				return true
			}
			selExpr, ok := callExpr.Fun.(*ast.SelectorExpr)
			if !ok || selExpr.Sel.Name != "Action" || len(callExpr.Args) < 2 {
				return true
			}
			nameLit, ok := callExpr.Args[0].(*ast.BasicLit)
			if !ok || nameLit.Kind != token.STRING {
				return true
			}

			action := ActionInfo{Name: strings.Trim(nameLit.Value, `"`)}
			if seen[action.Name] {
				return true
			}
			seen[action.Name] = true

			// c.Action("add", livecmp.Bind0(c.add)) or c.Action("add", c.add)
			handler := callExpr.Args[1]
			if call, ok := handler.(*ast.CallExpr); ok && len(call.Args) == 1 {
				handler = call.Args[0]
			}
			if sel, ok := handler.(*ast.SelectorExpr); ok {
				action.Handler = sel.Sel.Name
			}

			actions = append(actions, action)
			return true
		})
	}

	return actions
}

// typeToString converts an AST type to a string representation.
func (g *Generator) typeToString(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.StarExpr:
		return "*" + g.typeToString(t.X)
	case *ast.SelectorExpr:
		return g.typeToString(t.X) + "." + t.Sel.Name
	case *ast.ArrayType:
		if t.Len == nil {
			return "[]" + g.typeToString(t.Elt)
		}
		return "[...]" + g.typeToString(t.Elt)
	case *ast.MapType:
		return "map[" + g.typeToString(t.Key) + "]" + g.typeToString(t.Value)
	case *ast.IndexExpr:
		return g.typeToString(t.X) + "[" + g.typeToString(t.Index) + "]"
	case *ast.InterfaceType:
		return "any"
	case *ast.FuncType:
		return "func"
	case *ast.ChanType:
		return "chan " + g.typeToString(t.Value)
	default:
		return fmt.Sprintf("%T", expr)
	}
}

// parseLiveTag parses a live struct tag.
func parseLiveTag(tagStr string) (key string, exclude bool) {
	for _, part := range strings.Split(tagStr, " ") {
		if !strings.HasPrefix(part, `live:"`) {
			continue
		}
		value := strings.TrimSuffix(strings.TrimPrefix(part, `live:"`), `"`)
		if value == "-" {
			return "", true
		}
		key, _, _ = strings.Cut(value, ",")
		return key, false
	}
	return "", false
}

// isSerializable rejects field types that cannot travel as JSON state.
func isSerializable(expr ast.Expr) bool {
	switch t := expr.(type) {
	case *ast.FuncType, *ast.ChanType:
		return false
	case *ast.StarExpr:
		return isSerializable(t.X)
	case *ast.ArrayType:
		return isSerializable(t.Elt)
	case *ast.MapType:
		return isSerializable(t.Value)
	}
	return true
}

func lowerFirst(s string) string {
	r := []rune(s)
	for i := range r {
		// "ID" -> "id", "URLPath" -> "urlPath"
		if i > 0 && i+1 < len(r) && unicode.IsLower(r[i+1]) {
			break
		}
		if !unicode.IsUpper(r[i]) {
			break
		}
		r[i] = unicode.ToLower(r[i])
	}
	return string(r)
}
