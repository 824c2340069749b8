package render

import "github.com/vango-dev/ssrdata/pkg/vdom"

// isVoidElement returns true if the tag is a void element.
func isVoidElement(tag string) bool {
	return vdom.IsVoidElement(tag)
}

func tagSet(tags ...string) map[string]bool {
	set := make(map[string]bool, len(tags))
	for _, t := range tags {
		set[t] = true
	}
	return set
}

// inlineElements don't get newlines in pretty-printed output.
var inlineElements = tagSet(
	"a", "abbr", "b", "br", "cite", "code", "em", "i", "kbd", "mark", "q",
	"s", "small", "span", "strong", "sub", "sup", "time", "u", "var", "wbr",
)

// isInlineElement returns true if the tag is an inline element.
func isInlineElement(tag string) bool {
	return inlineElements[tag]
}

// booleanAttrs are rendered as the bare attribute name when true and
// omitted when false.
var booleanAttrs = tagSet(
	"allowfullscreen", "async", "autofocus", "autoplay", "checked",
	"controls", "default", "defer", "disabled", "formnovalidate", "hidden",
	"ismap", "loop", "multiple", "muted", "nomodule", "novalidate", "open",
	"playsinline", "readonly", "required", "reversed", "selected",
)

// isBooleanAttr returns true if the attribute is a boolean attribute.
func isBooleanAttr(name string) bool {
	return booleanAttrs[name]
}
