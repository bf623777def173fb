package generator

import (
	"bytes"
	"fmt"
	"go/format"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

// generateComponent generates the *_live.go file for a component.
func (g *Generator) generateComponent(pkgPath, pkgName string, comp *ComponentInfo) error {
	baseName := strings.TrimSuffix(filepath.Base(comp.SourceFile), ".go")
	outputFile := filepath.Join(pkgPath, baseName+"_"+strings.ToLower(comp.TypeName)+GeneratedSuffix)
	if strings.EqualFold(baseName, comp.TypeName) {
		outputFile = filepath.Join(pkgPath, baseName+GeneratedSuffix)
	}

	fmt.Fprintf(g.opts.Out, "generating %s\n", outputFile)

	if g.opts.DryRun {
		return nil
	}

	code, err := g.render(pkgName, comp)
	if err != nil {
		return err
	}
	return os.WriteFile(outputFile, code, 0644)
}

// render produces the formatted source for comp.
func (g *Generator) render(pkgName string, comp *ComponentInfo) ([]byte, error) {
	tmpl, err := template.New("live").Parse(liveTemplate)
	if err != nil {
		return nil, err
	}

	var fields []StateField
	for _, f := range comp.Fields {
		if !f.Exclude {
			fields = append(fields, f)
		}
	}

	data := struct {
		Package   string
		Qualifier string
		Component *ComponentInfo
		Fields    []StateField
	}{
		Package:   pkgName,
		Component: comp,
		Fields:    fields,
	}
	if pkgName != "livecmp" {
		data.Qualifier = "livecmp."
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	formatted, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("format source: %w\n%s", err, buf.Bytes())
	}
	return formatted, nil
}

const liveTemplate = `// Code generated by livecmp generate. DO NOT EDIT.

package {{.Package}}
{{if .Qualifier}}
import "github.com/pthm/livecmp"
{{end}}
{{- if .Component.Actions}}
// {{.Component.TypeName}} actions:
{{- range .Component.Actions}}
//   - {{.Name}}{{if .Handler}} ({{.Handler}}){{end}}
{{- end}}
{{end}}
// Fields declares the live state of {{.Component.TypeName}}.
func (c *{{.Component.TypeName}}) Fields() []{{.Qualifier}}Field {
	return []{{.Qualifier}}Field{
{{- range .Fields}}
		{{$.Qualifier}}Value({{printf "%q" .Name}}, &c.{{.GoName}}),
{{- end}}
	}
}
`
