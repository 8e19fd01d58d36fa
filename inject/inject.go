// Package inject writes synthesized values into form controls.
//
// Every path ends in one of the Outcome values; none of them is an error in
// the user-facing sense. Errors are only returned when the backend itself
// failed (a CDP call on a page that went away).
package inject

import (
	"fmt"
	"strings"

	"github.com/hazyhaar/payfill/classify"
	"github.com/hazyhaar/payfill/dom"
	"github.com/hazyhaar/payfill/synth"
)

// Outcome is what happened to one classified control.
type Outcome string

const (
	Filled          Outcome = "filled"
	SkippedEmpty    Outcome = "skipped_empty"
	SkippedOccupied Outcome = "skipped_occupied"
	SkippedNoOption Outcome = "skipped_no_option"
	SkippedInvalid  Outcome = "skipped_invalid"
	Failed          Outcome = "failed"
)

// blockedInputTypes are never filled.
var blockedInputTypes = map[string]bool{
	"hidden":   true,
	"submit":   true,
	"button":   true,
	"checkbox": true,
	"radio":    true,
	"file":     true,
	"image":    true,
	"range":    true,
	"color":    true,
	"password": true,
}

// Eligible reports whether a control may be filled at all.
func Eligible(tag string, st dom.ControlState) bool {
	if st.Disabled || st.ReadOnly {
		return false
	}
	switch tag {
	case "input":
		return !blockedInputTypes[st.Type]
	case "select", "textarea":
		return true
	default:
		return false
	}
}

// ShouldFill applies the overwrite policy: a forced pass always writes, an
// incremental one only writes into blank controls.
func ShouldFill(st dom.ControlState, force bool) bool {
	return force || dom.IsBlank(st.Value)
}

// Apply injects value into el. st is the state read for this scan.
func Apply(el dom.Element, st dom.ControlState, ft classify.FieldType, value string, force bool) (Outcome, error) {
	if value == "" {
		return SkippedEmpty, nil
	}
	if !ShouldFill(st, force) {
		return SkippedOccupied, nil
	}

	if el.Tag() == "select" {
		candidates := synth.SelectCandidates(ft, value)
		if len(candidates) == 0 {
			return SkippedInvalid, nil
		}
		opt, ok := ResolveOption(st.Options, candidates)
		if !ok {
			return SkippedNoOption, nil
		}
		return write(el, opt.Value)
	}

	v, ok := synth.ForControl(ft, value, st.MaxLength)
	if !ok {
		return SkippedInvalid, nil
	}
	return write(el, v)
}

func write(el dom.Element, v string) (Outcome, error) {
	if err := el.SetValue(v); err != nil {
		return Failed, err
	}
	if err := Notify(el); err != nil {
		return Failed, err
	}
	return Filled, nil
}

// Notify fires the bubbling input and change events page scripts listen to.
func Notify(el dom.Element) error {
	for _, ev := range []string{"input", "change"} {
		if err := el.Dispatch(ev); err != nil {
			return fmt.Errorf("inject: %w", err)
		}
	}
	return nil
}

// ResolveOption picks the option for a set of candidate strings. Tiers, in
// order, each over all options: the option value equals a candidate, the
// option text equals a candidate, the option text contains a candidate.
// Comparisons are trimmed and case-insensitive. The substring tier can hit
// on short candidates ("may" inside "Mayotte"); the tier order is kept as is.
func ResolveOption(options []dom.Option, candidates []string) (dom.Option, bool) {
	norm := make([]string, 0, len(candidates))
	for _, c := range candidates {
		norm = append(norm, normalize(c))
	}
	has := func(s string) bool {
		for _, c := range norm {
			if c == s {
				return true
			}
		}
		return false
	}

	for _, o := range options {
		if has(normalize(o.Value)) {
			return o, true
		}
	}
	for _, o := range options {
		if has(normalize(o.Text)) {
			return o, true
		}
	}
	for _, o := range options {
		text := normalize(o.Text)
		for _, c := range norm {
			if c != "" && strings.Contains(text, c) {
				return o, true
			}
		}
	}
	return dom.Option{}, false
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
