package render

import (
	"bytes"
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"

	"github.com/vango-dev/ssrdata/pkg/vdom"
)

// DefaultStateID is the element id of the embedded state payload.
const DefaultStateID = "__SSR_DATA__"

// PageData contains all data needed to render a complete HTML page.
type PageData struct {
	// Body is the root VNode for the page content
	Body *vdom.VNode

	// Title is the page title
	Title string

	// Meta contains meta tags for the page
	Meta []MetaTag

	// Scripts contains script tags to include
	Scripts []ScriptTag

	// StyleSheets contains paths to external stylesheets
	StyleSheets []string

	// State is serialized as JSON into the page so the client can mount
	// from it. Nil writes no payload.
	State any

	// StateID is the id of the payload script element.
	// Defaults to DefaultStateID.
	StateID string

	// Lang is the language attribute for the html element
	// Defaults to "en" if not specified
	Lang string
}

// MetaTag represents a meta element in the document head.
type MetaTag struct {
	Name     string // name attribute
	Content  string // content attribute
	Property string // property attribute (for OpenGraph)
}

// ScriptTag represents a script element.
type ScriptTag struct {
	Src    string // src attribute
	Defer  bool   // defer attribute
	Async  bool   // async attribute
	Module bool   // type="module"
}

var stateJSON = jsoniter.Config{
	EscapeHTML:             true,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
}.Froze()

// EncodeState serializes v for embedding inside a script element. Besides
// the HTML-significant characters, U+2028 and U+2029 are escaped because
// they terminate JavaScript string literals in older engines.
func EncodeState(v any) ([]byte, error) {
	data, err := stateJSON.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode page state: %w", err)
	}
	data = bytes.ReplaceAll(data, []byte("\u2028"), []byte(`\u2028`))
	data = bytes.ReplaceAll(data, []byte("\u2029"), []byte(`\u2029`))
	return data, nil
}

// RenderPage renders a complete HTML document to the given writer.
func (r *Renderer) RenderPage(w io.Writer, page PageData) error {
	if err := r.renderDocumentStart(w, page); err != nil {
		return err
	}
	if err := r.RenderToWriter(w, page.Body); err != nil {
		return err
	}
	return r.renderDocumentEnd(w, page)
}

func (r *Renderer) renderDocumentStart(w io.Writer, page PageData) error {
	lang := page.Lang
	if lang == "" {
		lang = "en"
	}

	if _, err := fmt.Fprintf(w, "<!DOCTYPE html>\n<html lang=\"%s\">\n", escapeAttr(lang)); err != nil {
		return err
	}
	if err := r.renderHead(w, page); err != nil {
		return err
	}
	_, err := io.WriteString(w, "<body>\n")
	return err
}

func (r *Renderer) renderDocumentEnd(w io.Writer, page PageData) error {
	if err := r.renderState(w, page); err != nil {
		return err
	}
	for _, script := range page.Scripts {
		if !script.Defer && !script.Async {
			if err := renderScriptTag(w, script); err != nil {
				return err
			}
		}
	}
	_, err := io.WriteString(w, "</body>\n</html>\n")
	return err
}

// renderHead renders the document head section.
func (r *Renderer) renderHead(w io.Writer, page PageData) error {
	if _, err := io.WriteString(w, "<head>\n"+
		`  <meta charset="utf-8">`+"\n"+
		`  <meta name="viewport" content="width=device-width, initial-scale=1">`+"\n"); err != nil {
		return err
	}

	if page.Title != "" {
		if _, err := fmt.Fprintf(w, "  <title>%s</title>\n", escapeHTML(page.Title)); err != nil {
			return err
		}
	}

	for _, meta := range page.Meta {
		if err := renderMetaTag(w, meta); err != nil {
			return err
		}
	}

	for _, href := range page.StyleSheets {
		if _, err := fmt.Fprintf(w, `  <link rel="stylesheet" href="%s">`+"\n", escapeAttr(href)); err != nil {
			return err
		}
	}

	// Scripts in head (defer/async)
	for _, script := range page.Scripts {
		if script.Defer || script.Async {
			if err := renderScriptTag(w, script); err != nil {
				return err
			}
		}
	}

	_, err := io.WriteString(w, "</head>\n")
	return err
}

// renderState writes the JSON state payload.
func (r *Renderer) renderState(w io.Writer, page PageData) error {
	if page.State == nil {
		return nil
	}
	id := page.StateID
	if id == "" {
		id = DefaultStateID
	}
	data, err := EncodeState(page.State)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, `  <script id="%s" type="application/json">`, escapeAttr(id)); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	_, err = io.WriteString(w, "</script>\n")
	return err
}

// renderMetaTag renders a meta element.
func renderMetaTag(w io.Writer, meta MetaTag) error {
	if _, err := io.WriteString(w, "  <meta"); err != nil {
		return err
	}
	for _, a := range [][2]string{{"name", meta.Name}, {"property", meta.Property}, {"content", meta.Content}} {
		if a[1] == "" {
			continue
		}
		if _, err := fmt.Fprintf(w, ` %s="%s"`, a[0], escapeAttr(a[1])); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, ">\n")
	return err
}

// renderScriptTag renders a script element.
func renderScriptTag(w io.Writer, script ScriptTag) error {
	if _, err := fmt.Fprintf(w, `  <script src="%s"`, escapeAttr(script.Src)); err != nil {
		return err
	}
	if script.Module {
		if _, err := io.WriteString(w, ` type="module"`); err != nil {
			return err
		}
	}
	if script.Defer {
		if _, err := io.WriteString(w, " defer"); err != nil {
			return err
		}
	}
	if script.Async {
		if _, err := io.WriteString(w, " async"); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "></script>\n")
	return err
}
