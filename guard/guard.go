// Package guard decides whether a page belongs to a payment processor's
// checkout flow. Fill work only runs on pages that pass.
package guard

import (
	"strings"

	"github.com/hazyhaar/payfill/dom"
)

// Processor describes how to recognise one payment processor's pages.
// Every list holds lower-case fragments; any single hit is enough.
type Processor struct {
	Name string `yaml:"name" json:"name"`
	// Hosts are fragments of the page hostname.
	Hosts []string `yaml:"hosts" json:"hosts"`
	// FrameSources are fragments of an <iframe src>.
	FrameSources []string `yaml:"frame_sources" json:"frame_sources"`
	// DataAttributes are attribute names carried by processor widgets.
	DataAttributes []string `yaml:"data_attributes" json:"data_attributes"`
	// FormActions are fragments of a <form action>.
	FormActions []string `yaml:"form_actions" json:"form_actions"`
}

// Stripe is the built-in profile.
var Stripe = Processor{
	Name:           "stripe",
	Hosts:          []string{"stripe.com"},
	FrameSources:   []string{"stripe.com"},
	DataAttributes: []string{"data-stripe"},
	FormActions:    []string{"stripe"},
}

// Guard checks pages against a set of processor profiles.
type Guard struct {
	processors []Processor
}

// New returns a Guard over the given profiles, or over Stripe alone when
// none are given.
func New(processors ...Processor) *Guard {
	if len(processors) == 0 {
		processors = []Processor{Stripe}
	}
	return &Guard{processors: processors}
}

// Processors returns the configured profiles.
func (g *Guard) Processors() []Processor {
	return append([]Processor(nil), g.processors...)
}

// Eligible reports whether doc is a processor context and which profile
// matched first.
func (g *Guard) Eligible(doc dom.Document) (string, bool) {
	host := strings.ToLower(doc.Hostname())
	for _, p := range g.processors {
		if p.matches(doc, host) {
			return p.Name, true
		}
	}
	return "", false
}

func (p Processor) matches(doc dom.Document, host string) bool {
	for _, h := range p.Hosts {
		if h != "" && strings.Contains(host, h) {
			return true
		}
	}
	for _, src := range p.FrameSources {
		if src != "" && present(doc, dom.AttrContains("iframe", "src", src)) {
			return true
		}
	}
	for _, attr := range p.DataAttributes {
		if attr != "" && present(doc, "["+attr+"]") {
			return true
		}
	}
	for _, action := range p.FormActions {
		if action != "" && present(doc, dom.AttrContains("form", "action", action)) {
			return true
		}
	}
	return false
}

func present(doc dom.Document, selector string) bool {
	_, ok := doc.Query(selector)
	return ok
}
