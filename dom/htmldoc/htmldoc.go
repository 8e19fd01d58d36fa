// Package htmldoc implements dom.Document over a parsed HTML tree.
//
// It backs offline classification (payfill -classify) and the engine tests.
// Value assignments mutate the tree, so the filled page can be rendered back
// out; dispatched events are recorded instead of run.
package htmldoc

import (
	"bytes"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/payfill/dom"
)

// Event is a dispatched event, recorded in dispatch order.
type Event struct {
	Type string `json:"type"`
	Tag  string `json:"tag"`
	Name string `json:"name,omitempty"`
	ID   string `json:"id,omitempty"`
}

// Document is a parsed page.
type Document struct {
	doc  *goquery.Document
	host string

	mu     sync.Mutex
	events []Event
}

// Parse reads an HTML page. pageURL supplies the hostname the context guard
// sees; it may be empty.
func Parse(r io.Reader, pageURL string) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("htmldoc: parse: %w", err)
	}
	return FromNode(root, pageURL), nil
}

// ParseString is Parse over a string.
func ParseString(s, pageURL string) (*Document, error) {
	return Parse(strings.NewReader(s), pageURL)
}

// FromNode wraps an already parsed tree.
func FromNode(root *html.Node, pageURL string) *Document {
	return &Document{
		doc:  goquery.NewDocumentFromNode(root),
		host: hostname(pageURL),
	}
}

func hostname(pageURL string) string {
	if pageURL == "" {
		return ""
	}
	u, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// Hostname implements dom.Document.
func (d *Document) Hostname() string { return d.host }

// Query implements dom.Document.
func (d *Document) Query(selector string) (dom.Element, bool) {
	sel := d.doc.Find(selector).First()
	if sel.Length() == 0 {
		return nil, false
	}
	return &element{doc: d, sel: sel}, true
}

// QueryAll implements dom.Document.
func (d *Document) QueryAll(selector string) []dom.Element {
	sel := d.doc.Find(selector)
	out := make([]dom.Element, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		out = append(out, &element{doc: d, sel: s})
	})
	return out
}

// Events returns the events dispatched so far.
func (d *Document) Events() []Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Event(nil), d.events...)
}

// Render writes the current tree, including filled values, as HTML.
func (d *Document) Render(w io.Writer) error {
	for _, n := range d.doc.Nodes {
		if err := html.Render(w, n); err != nil {
			return fmt.Errorf("htmldoc: render: %w", err)
		}
	}
	return nil
}

// String renders the tree to a string.
func (d *Document) String() string {
	var buf bytes.Buffer
	_ = d.Render(&buf)
	return buf.String()
}

func (d *Document) record(ev Event) {
	d.mu.Lock()
	d.events = append(d.events, ev)
	d.mu.Unlock()
}

type element struct {
	doc *Document
	sel *goquery.Selection
}

func (e *element) node() *html.Node { return e.sel.Nodes[0] }

func (e *element) Tag() string { return strings.ToLower(e.node().Data) }

func (e *element) Attr(name string) string {
	v, _ := e.sel.Attr(name)
	return v
}

func (e *element) has(name string) bool {
	_, ok := e.sel.Attr(name)
	return ok
}

func (e *element) Text() string { return e.sel.Text() }

func (e *element) Closest(selector string) (dom.Element, bool) {
	sel := e.sel.Closest(selector)
	if sel.Length() == 0 {
		return nil, false
	}
	return &element{doc: e.doc, sel: sel}, true
}

// inputTypes are the type keywords a browser keeps; anything else reads as "text".
var inputTypes = map[string]bool{
	"button": true, "checkbox": true, "color": true, "date": true,
	"datetime-local": true, "email": true, "file": true, "hidden": true,
	"image": true, "month": true, "number": true, "password": true,
	"radio": true, "range": true, "reset": true, "search": true,
	"submit": true, "tel": true, "text": true, "time": true, "url": true,
	"week": true,
}

func (e *element) State() (dom.ControlState, error) {
	st := dom.ControlState{
		Disabled:  e.has("disabled"),
		MaxLength: -1,
	}
	switch e.node().DataAtom {
	case atom.Input:
		st.ReadOnly = e.has("readonly")
		st.Type = strings.ToLower(strings.TrimSpace(e.Attr("type")))
		if !inputTypes[st.Type] {
			st.Type = "text"
		}
		st.Value = e.Attr("value")
		st.MaxLength = maxLength(e.Attr("maxlength"))
	case atom.Textarea:
		st.ReadOnly = e.has("readonly")
		st.Value = e.sel.Text()
		st.MaxLength = maxLength(e.Attr("maxlength"))
	case atom.Select:
		st.Options, st.Value = e.options()
	}
	return st, nil
}

func maxLength(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		return -1
	}
	return n
}

// options lists the select's options and its current value: the last option
// marked selected, else the first option.
func (e *element) options() ([]dom.Option, string) {
	var (
		opts     []dom.Option
		selected = -1
	)
	e.sel.Find("option").Each(func(i int, s *goquery.Selection) {
		opts = append(opts, optionOf(s))
		if _, ok := s.Attr("selected"); ok {
			selected = i
		}
	})
	if len(opts) == 0 {
		return nil, ""
	}
	if selected < 0 {
		selected = 0
	}
	return opts, opts[selected].Value
}

func optionOf(s *goquery.Selection) dom.Option {
	text := s.Text()
	v, ok := s.Attr("value")
	if !ok {
		v = strings.Join(strings.Fields(text), " ")
	}
	return dom.Option{Value: v, Text: text}
}

func (e *element) SetValue(v string) error {
	switch e.node().DataAtom {
	case atom.Input:
		e.sel.SetAttr("value", v)
	case atom.Textarea:
		e.sel.SetText(v)
	case atom.Select:
		matched := false
		e.sel.Find("option").Each(func(_ int, s *goquery.Selection) {
			s.RemoveAttr("selected")
			if !matched && optionOf(s).Value == v {
				s.SetAttr("selected", "")
				matched = true
			}
		})
	default:
		return fmt.Errorf("htmldoc: set value on <%s>", e.Tag())
	}
	return nil
}

func (e *element) Dispatch(eventType string) error {
	e.doc.record(Event{
		Type: eventType,
		Tag:  e.Tag(),
		Name: e.Attr("name"),
		ID:   e.Attr("id"),
	})
	return nil
}
