// fastview builds live server-side views: a data model is converted once to a view-model,
// the view-model is broadcast to every view, and each view turns it into element updates
// that a websocket client applies to the page.
package fastview

import (
	"html/template"
)

// EleUpdate names a page element and the operations that bring it up to date.
type EleUpdate struct {
	// EleId is the element's html id.
	EleId string
	// Ops set attributes by name. The reserved key 'textContent' sets the element's text instead.
	Ops []Op
}

// Op is an attribute name, or 'textContent', and its new value.
type Op struct {
	Key   string
	Value string
}

// TextContent is the Op key that replaces an element's text.
const TextContent = "textContent"

// SetText returns an update replacing the text of element @id.
func SetText(id, text string) EleUpdate {
	return EleUpdate{EleId: id, Ops: []Op{{Key: TextContent, Value: text}}}
}

// SetAttr returns an update setting attribute @key of element @id.
func SetAttr(id, key, value string) EleUpdate {
	return EleUpdate{EleId: id, Ops: []Op{{Key: key, Value: value}}}
}

// ViewComponent is a server side view: a template for its initial form and a channel of
// element updates keeping it current.
type ViewComponent interface {
	Updates() <-chan []EleUpdate
	// Parse adds the view's template definition to @parent, inheriting its func-map, and
	// returns the name it was defined under.
	Parse(parent *template.Template) (string, error)
}
