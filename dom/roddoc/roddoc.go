// Package roddoc implements dom.Document over a live Chrome page driven by Rod.
//
// Every call is a CDP round trip. Read failures degrade to empty values and
// are logged at debug level: a page that navigates away mid-scan must not
// interrupt anything.
package roddoc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-rod/rod"

	"github.com/hazyhaar/payfill/dom"
)

// Document is a live page bound to a context for the duration of one scan.
type Document struct {
	page   *rod.Page
	logger *slog.Logger
	host   string
}

// New binds page to ctx. Build a fresh Document per scan.
func New(ctx context.Context, page *rod.Page, logger *slog.Logger) *Document {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Document{page: page.Context(ctx), logger: logger}
	res, err := d.page.Eval(`() => location.hostname`)
	if err != nil {
		logger.Debug("roddoc: read hostname", "error", err)
	} else {
		d.host = strings.ToLower(res.Value.Str())
	}
	return d
}

// Hostname implements dom.Document.
func (d *Document) Hostname() string { return d.host }

// Query implements dom.Document.
func (d *Document) Query(selector string) (dom.Element, bool) {
	els, err := d.page.Elements(selector)
	if err != nil {
		d.logger.Debug("roddoc: query", "selector", selector, "error", err)
		return nil, false
	}
	if len(els) == 0 {
		return nil, false
	}
	return d.wrap(els[0]), true
}

// QueryAll implements dom.Document.
func (d *Document) QueryAll(selector string) []dom.Element {
	els, err := d.page.Elements(selector)
	if err != nil {
		d.logger.Debug("roddoc: query all", "selector", selector, "error", err)
		return nil
	}
	out := make([]dom.Element, 0, len(els))
	for _, el := range els {
		out = append(out, d.wrap(el))
	}
	return out
}

func (d *Document) wrap(el *rod.Element) *element {
	return &element{el: el, logger: d.logger}
}

type element struct {
	el     *rod.Element
	logger *slog.Logger
	tag    string
}

func (e *element) Tag() string {
	if e.tag != "" {
		return e.tag
	}
	res, err := e.el.Eval(`() => this.tagName.toLowerCase()`)
	if err != nil {
		e.logger.Debug("roddoc: tag", "error", err)
		return ""
	}
	e.tag = res.Value.Str()
	return e.tag
}

func (e *element) Attr(name string) string {
	v, err := e.el.Attribute(name)
	if err != nil {
		e.logger.Debug("roddoc: attribute", "name", name, "error", err)
		return ""
	}
	if v == nil {
		return ""
	}
	return *v
}

func (e *element) Text() string {
	res, err := e.el.Eval(`() => this.textContent || ""`)
	if err != nil {
		e.logger.Debug("roddoc: text", "error", err)
		return ""
	}
	return res.Value.Str()
}

func (e *element) Closest(selector string) (dom.Element, bool) {
	if ok, err := e.el.Matches(selector); err == nil && ok {
		return e, true
	}
	parents, err := e.el.Parents(selector)
	if err != nil {
		e.logger.Debug("roddoc: closest", "selector", selector, "error", err)
		return nil, false
	}
	if len(parents) == 0 {
		return nil, false
	}
	return &element{el: parents[0], logger: e.logger}, true
}

// stateJS reads every control property in one round trip.
const stateJS = `() => {
	const tag = this.tagName.toLowerCase();
	const s = {
		disabled: !!this.disabled,
		readOnly: !!this.readOnly,
		type: tag === "input" ? (this.type || "text").toLowerCase() : "",
		value: this.value == null ? "" : String(this.value),
		maxLength: typeof this.maxLength === "number" ? this.maxLength : -1,
		options: [],
	};
	if (tag === "select") {
		for (const o of Array.from(this.options || [])) {
			s.options.push({value: o.value || "", text: o.textContent || ""});
		}
	}
	return JSON.stringify(s);
}`

type wireState struct {
	Disabled  bool         `json:"disabled"`
	ReadOnly  bool         `json:"readOnly"`
	Type      string       `json:"type"`
	Value     string       `json:"value"`
	MaxLength int          `json:"maxLength"`
	Options   []dom.Option `json:"options"`
}

func (e *element) State() (dom.ControlState, error) {
	res, err := e.el.Eval(stateJS)
	if err != nil {
		return dom.ControlState{}, fmt.Errorf("roddoc: read state: %w", err)
	}
	var w wireState
	if err := json.Unmarshal([]byte(res.Value.Str()), &w); err != nil {
		return dom.ControlState{}, fmt.Errorf("roddoc: decode state: %w", err)
	}
	if w.MaxLength < 0 {
		w.MaxLength = -1
	}
	return dom.ControlState{
		Disabled:  w.Disabled,
		ReadOnly:  w.ReadOnly,
		Type:      w.Type,
		Value:     w.Value,
		MaxLength: w.MaxLength,
		Options:   w.Options,
	}, nil
}

// setValueJS goes through the prototype setter so framework-controlled inputs
// (React and friends track the own-property setter) see the change.
const setValueJS = `(v) => {
	const proto = Object.getPrototypeOf(this);
	const desc = Object.getOwnPropertyDescriptor(proto, "value");
	if (desc && desc.set) {
		desc.set.call(this, v);
	} else {
		this.value = v;
	}
}`

func (e *element) SetValue(v string) error {
	if _, err := e.el.Eval(setValueJS, v); err != nil {
		return fmt.Errorf("roddoc: set value: %w", err)
	}
	return nil
}

func (e *element) Dispatch(eventType string) error {
	_, err := e.el.Eval(`(t) => { this.dispatchEvent(new Event(t, {bubbles: true})); }`, eventType)
	if err != nil {
		return fmt.Errorf("roddoc: dispatch %s: %w", eventType, err)
	}
	return nil
}
