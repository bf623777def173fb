package livecmp

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/a-h/templ"
)

func TestParseRoot(t *testing.T) {
	tests := []struct {
		name    string
		markup  string
		wantTag string
		wantErr error
	}{
		{"single element", `<div class="a">hi</div>`, "div", nil},
		{"surrounding whitespace", "\n  <section>x</section>\n", "section", nil},
		{"comments around", `<!-- a --><ul><li>1</li></ul><!-- b -->`, "ul", nil},
		{"void element", `<input type="text">`, "input", nil},
		{"table row", `<tr><td>x</td></tr>`, "tr", nil},
		{"table cell", `<td>x</td>`, "td", nil},
		{"table body", `<tbody><tr><td>x</td></tr></tbody>`, "tbody", nil},
		{"list item", `<li>1</li>`, "li", nil},
		{"option", `<option value="a">A</option>`, "option", nil},
		{"two rows", `<tr><td>a</td></tr><tr><td>b</td></tr>`, "", ErrMultipleRoots},
		{"two elements", `<p>a</p><p>b</p>`, "", ErrMultipleRoots},
		{"trailing text", `<p>a</p> tail`, "", ErrMultipleRoots},
		{"empty", ``, "", ErrNoRoot},
		{"comment only", `<!-- nothing -->`, "", ErrNoRoot},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root, err := parseRoot(tt.markup)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("parseRoot() error = %v, want %v", err, tt.wantErr)
				}
				if !IsRenderError(err) {
					t.Errorf("IsRenderError(%v) = false", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseRoot() error = %v", err)
			}
			if root.tag != tt.wantTag {
				t.Errorf("tag = %q, want %q", root.tag, tt.wantTag)
			}
		})
	}
}

func TestRootInjection(t *testing.T) {
	root, err := parseRoot(`<div live:id="forged" class="box"><b>x</b></div>`)
	if err != nil {
		t.Fatal(err)
	}
	got := root.html([]attr{
		{key: "live:id", val: "abc"},
		{key: "live:data", val: `{"label":"<script>&'"}`},
	})

	if strings.Count(got, "live:id=") != 1 || !strings.Contains(got, `live:id="abc"`) {
		t.Errorf("injected id should replace the existing one: %s", got)
	}
	if strings.Contains(got, "<script>") {
		t.Errorf("injected value not escaped: %s", got)
	}
	if !strings.Contains(got, `live:data="{&#34;label&#34;:&#34;&lt;script&gt;&amp;&#39;&#34;}"`) {
		t.Errorf("unexpected escaping: %s", got)
	}
	if !strings.HasPrefix(got, `<div live:id="abc" live:data=`) || !strings.HasSuffix(got, `class="box"><b>x</b></div>`) {
		t.Errorf("injected attributes should come first: %s", got)
	}
}

func TestRootInjection_TableScoped(t *testing.T) {
	tests := []struct {
		markup string
		want   string
	}{
		{`<tr class="row"><td>x</td></tr>`, `<tr live:id="abc" class="row"><td>x</td></tr>`},
		{`<td>x</td>`, `<td live:id="abc">x</td>`},
		{`<option value="a">A</option>`, `<option live:id="abc" value="a">A</option>`},
	}
	for _, tt := range tests {
		t.Run(tt.markup, func(t *testing.T) {
			root, err := parseRoot(tt.markup)
			if err != nil {
				t.Fatalf("parseRoot() error = %v", err)
			}
			if got := root.html([]attr{{key: "live:id", val: "abc"}}); got != tt.want {
				t.Errorf("html() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestNode_El(t *testing.T) {
	child := func(s string) templ.Component {
		return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
			_, err := io.WriteString(w, s)
			return err
		})
	}
	n := El("UL", templ.Attributes{"id": "l", "hidden": true, "disabled": false, "tabindex": 2}, child("<li>a</li>"), child("<li>b</li>"))

	var b strings.Builder
	if err := n.Component().Render(context.Background(), &b); err != nil {
		t.Fatal(err)
	}
	want := `<ul hidden id="l" tabindex="2"><li>a</li><li>b</li></ul>`
	if b.String() != want {
		t.Errorf("El() rendered %s, want %s", b.String(), want)
	}

	var void strings.Builder
	if err := El("br", nil).Component().Render(context.Background(), &void); err != nil {
		t.Fatal(err)
	}
	if void.String() != "<br>" {
		t.Errorf("void element rendered %q", void.String())
	}
}

func TestNode_Templ(t *testing.T) {
	n := Templ(templ.Raw(`<span>one</span><span>two</span>`))
	if _, err := n.prepare(context.Background()); !errors.Is(err, ErrMultipleRoots) {
		t.Errorf("prepare() error = %v, want ErrMultipleRoots", err)
	}

	n = Templ(templ.Raw(`<article data-x="1">body</article>`))
	root, err := n.prepare(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if root.tag != "article" || root.body != "body" {
		t.Errorf("root = %+v", root)
	}
}
