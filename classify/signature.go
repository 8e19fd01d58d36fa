package classify

import (
	"strings"

	"github.com/hazyhaar/payfill/dom"
)

// Signature builds the lower-case text fingerprint of an element: its
// autocomplete, name, id, placeholder and aria-label attributes, the text of
// the aria-labelledby targets, and the associated label text, joined by
// spaces with empty parts skipped. The order is fixed; matching is done over
// the whole string.
func Signature(doc dom.Document, el dom.Element) string {
	parts := []string{
		el.Attr("autocomplete"),
		el.Attr("name"),
		el.Attr("id"),
		el.Attr("placeholder"),
		el.Attr("aria-label"),
		labelledByText(doc, el),
		LabelText(doc, el),
	}
	kept := parts[:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.ToLower(strings.Join(kept, " "))
}

// LabelText resolves the element's <label>: a label[for] pointing at its id
// wins, even when empty, else the nearest wrapping label.
func LabelText(doc dom.Document, el dom.Element) string {
	if id := el.Attr("id"); id != "" {
		if label, ok := doc.Query(dom.AttrEquals("label", "for", id)); ok {
			return label.Text()
		}
	}
	if label, ok := el.Closest("label"); ok {
		return label.Text()
	}
	return ""
}

func labelledByText(doc dom.Document, el dom.Element) string {
	ids := strings.Fields(el.Attr("aria-labelledby"))
	if len(ids) == 0 {
		return ""
	}
	texts := make([]string, len(ids))
	for i, id := range ids {
		if target, ok := dom.ByID(doc, id); ok {
			texts[i] = target.Text()
		}
	}
	return strings.Join(texts, " ")
}
