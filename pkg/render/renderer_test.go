package render

import (
	"strings"
	"testing"

	"github.com/vango-dev/ssrdata/pkg/vdom"
)

func TestRenderText(t *testing.T) {
	renderer := NewRenderer(RendererConfig{})

	html, err := renderer.RenderToString(vdom.Text("Hello, World!"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if html != "Hello, World!" {
		t.Errorf("got %q, want %q", html, "Hello, World!")
	}
}

func TestRenderTextEscaping(t *testing.T) {
	renderer := NewRenderer(RendererConfig{})

	html, err := renderer.RenderToString(vdom.Text("<script>alert('xss')</script>"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(html, "<script>") {
		t.Errorf("HTML should be escaped, got %q", html)
	}
	if !strings.Contains(html, "&lt;script&gt;") {
		t.Errorf("should contain escaped script tag, got %q", html)
	}
}

func TestRenderElement(t *testing.T) {
	renderer := NewRenderer(RendererConfig{})

	node := vdom.Div(vdom.Class("container"),
		vdom.H1(vdom.Text("Title")),
		vdom.P(vdom.Text("Content")),
		vdom.Input(vdom.Disabled(), vdom.Value(`a"b`)),
	)
	html, err := renderer.RenderToString(node)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := `<div class="container"><h1>Title</h1><p>Content</p><input disabled value="a&quot;b"></div>`
	if html != want {
		t.Errorf("got  %q\nwant %q", html, want)
	}
}

func TestRenderInteractiveGetsHID(t *testing.T) {
	renderer := NewRenderer(RendererConfig{})

	node := vdom.Div(
		vdom.Button(vdom.OnClick(func() {}), "Save"),
		vdom.Span("static"),
	)
	html, err := renderer.RenderToString(node)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := extractAttrValue(t, html, "data-hid"); got != "h1" {
		t.Errorf("data-hid = %q, want h1", got)
	}
	if strings.Count(html, "data-hid") != 1 {
		t.Errorf("only the button should get a hid: %q", html)
	}
	if !strings.Contains(html, `data-on-click="true"`) {
		t.Errorf("missing event marker: %q", html)
	}

	renderer.Reset()
	html, err = renderer.RenderToString(vdom.Button(vdom.OnClick(func() {})))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := extractAttrValue(t, html, "data-hid"); got != "h1" {
		t.Errorf("after Reset data-hid = %q, want h1", got)
	}
}

type themeProvider struct{ child *vdom.VNode }

func (p themeProvider) Render() *vdom.VNode { return p.child }
func (p themeProvider) Provide(s *vdom.Scope) *vdom.Scope {
	return s.With("theme", "dark")
}

type themed struct{}

func (themed) Render() *vdom.VNode { return vdom.Text("none") }
func (themed) RenderScoped(s *vdom.Scope) *vdom.VNode {
	return vdom.Span(vdom.Textf("%v", s.Value("theme")))
}

func TestRenderComponentScope(t *testing.T) {
	renderer := NewRenderer(RendererConfig{})

	tree := vdom.Comp(themeProvider{child: vdom.Div(themed{}, vdom.Fragment(themed{}))})
	html, err := renderer.RenderToString(tree)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if html != "<div><span>dark</span><span>dark</span></div>" {
		t.Errorf("got %q", html)
	}

	bare, err := renderer.RenderToString(vdom.Comp(themed{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bare != "<span>&lt;nil&gt;</span>" {
		t.Errorf("unscoped render = %q", bare)
	}
}

func TestRenderPretty(t *testing.T) {
	renderer := NewRenderer(RendererConfig{Pretty: true})

	html, err := renderer.RenderToString(vdom.Ul(vdom.Li("a"), vdom.Li("b")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(html, "<ul>\n  <li>") {
		t.Errorf("expected indented children, got %q", html)
	}
}

func TestRenderUnknownKind(t *testing.T) {
	renderer := NewRenderer(RendererConfig{})
	if _, err := renderer.RenderToString(&vdom.VNode{Kind: vdom.VKind(99)}); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestEscapeAttr(t *testing.T) {
	if got := escapeAttr("a\nb&'"); got != "a&#10;b&amp;&#39;" {
		t.Errorf("escapeAttr = %q", got)
	}
}
