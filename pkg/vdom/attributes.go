package vdom

import "strings"

// attr creates an attribute with the given key and value.
func attr(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

// Global attributes

func ID(id string) Attr { return attr("id", id) }

// Class joins the given class names into a single class attribute.
func Class(classes ...string) Attr { return attr("class", strings.Join(classes, " ")) }

func StyleAttr(style string) Attr { return attr("style", style) }

// Data creates a data-* attribute.
func Data(key, value string) Attr { return attr("data-"+key, value) }

func Role(role string) Attr { return attr("role", role) }

func Hidden() Attr { return attr("hidden", true) }

func TitleAttr(title string) Attr { return attr("title", title) }

// Links

func Href(url string) Attr { return attr("href", url) }
func Rel(rel string) Attr  { return attr("rel", rel) }
func Src(url string) Attr  { return attr("src", url) }
func Alt(text string) Attr { return attr("alt", text) }

// Forms

func Type(t string) Attr        { return attr("type", t) }
func Name(name string) Attr     { return attr("name", name) }
func Value(value string) Attr   { return attr("value", value) }
func Disabled() Attr            { return attr("disabled", true) }
func Placeholder(s string) Attr { return attr("placeholder", s) }

// OnClick registers a click handler. The renderer marks the element with a
// hydration id so the live session can bind it.
func OnClick(handler any) EventHandler {
	return EventHandler{Event: "onclick", Handler: handler}
}
