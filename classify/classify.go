// Package classify maps form controls to payment and identity field types.
//
// Classification is a pure function of the element's attributes and label
// text at call time: a signature is built (see Signature) and evaluated
// against an ordered rule table, first match wins. Nothing is cached between
// calls.
package classify

import "github.com/hazyhaar/payfill/dom"

// Classifier evaluates a rule table.
type Classifier struct {
	rules []Rule
}

// New returns a Classifier over rules. An empty table means the default one.
func New(rules []Rule) *Classifier {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Classifier{rules: rules}
}

// Default returns a Classifier over the built-in table.
func Default() *Classifier { return New(nil) }

// Rules returns the table in evaluation order.
func (c *Classifier) Rules() []Rule { return append([]Rule(nil), c.rules...) }

// Classify returns the field type of el, or None.
func (c *Classifier) Classify(doc dom.Document, el dom.Element) FieldType {
	return c.Match(el.Attr("autocomplete"), Signature(doc, el))
}

// Match runs the table over an autocomplete value and a signature.
func (c *Classifier) Match(autocomplete, signature string) FieldType {
	for _, r := range c.rules {
		if r.Match(autocomplete, signature) {
			return r.Type
		}
	}
	return None
}
