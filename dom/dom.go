// Package dom is the narrow view of a web page the fill engine works on.
//
// The engine never touches a concrete DOM. It reads attributes, label text and
// control state through Element, looks nodes up through Document, and writes
// back through SetValue and Dispatch. Two backends implement it: htmldoc over a
// parsed HTML tree and roddoc over a live Chrome page.
package dom

import "strings"

// Option is one entry of a <select> control.
type Option struct {
	// Value is the option's effective value: its value attribute, or its
	// text when the attribute is absent.
	Value string `json:"value"`
	Text  string `json:"text"`
}

// ControlState is the property-level state of a form control, read once per
// element per scan.
type ControlState struct {
	Disabled bool
	ReadOnly bool
	// Type is the lower-case input type ("text" when missing or unknown).
	// Empty for select and textarea.
	Type  string
	Value string
	// MaxLength is the maxlength constraint, -1 when unconstrained.
	MaxLength int
	Options   []Option
}

// Element is a node of the page.
type Element interface {
	// Tag returns the lower-case tag name.
	Tag() string
	// Attr returns the attribute value, "" when absent.
	Attr(name string) string
	// Text returns the node's text content.
	Text() string
	// Closest returns the element itself or its nearest ancestor matching
	// the CSS selector.
	Closest(selector string) (Element, bool)
	// State reads the control properties.
	State() (ControlState, error)
	// SetValue assigns the control value. For a select it selects the
	// option whose value equals v.
	SetValue(v string) error
	// Dispatch fires a bubbling event of the given type on the element.
	Dispatch(eventType string) error
}

// Document is the page the elements belong to.
type Document interface {
	// Hostname returns the page host, lower-case, without port.
	Hostname() string
	// Query returns the first element matching the CSS selector.
	Query(selector string) (Element, bool)
	// QueryAll returns all elements matching the CSS selector in document order.
	QueryAll(selector string) []Element
}

// FormControls is the selector enumerating fillable candidates.
const FormControls = "input, select, textarea"

// AttrEquals builds `tag[attr="val"]` with val quoted for CSS.
func AttrEquals(tag, attr, val string) string {
	return tag + "[" + attr + `="` + quote(val) + `"]`
}

// AttrContains builds `tag[attr*="val"]` with val quoted for CSS.
func AttrContains(tag, attr, val string) string {
	return tag + "[" + attr + `*="` + quote(val) + `"]`
}

func quote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\a `)
	return r.Replace(s)
}

// ByID returns the element carrying the given id attribute.
func ByID(doc Document, id string) (Element, bool) {
	if id == "" {
		return nil, false
	}
	return doc.Query(AttrEquals("", "id", id))
}

// IsBlank reports whether a control value counts as empty.
func IsBlank(v string) bool {
	return strings.TrimSpace(v) == ""
}
