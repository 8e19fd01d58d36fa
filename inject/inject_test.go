package inject

import (
	"errors"
	"reflect"
	"testing"

	"github.com/hazyhaar/payfill/classify"
	"github.com/hazyhaar/payfill/dom"
)

// fakeElement records writes and events.
type fakeElement struct {
	tag      string
	value    string
	events   []string
	setErr   error
	fireErr  error
	setCalls int
}

func (f *fakeElement) Tag() string                        { return f.tag }
func (f *fakeElement) Attr(string) string                 { return "" }
func (f *fakeElement) Text() string                       { return "" }
func (f *fakeElement) Closest(string) (dom.Element, bool) { return nil, false }
func (f *fakeElement) State() (dom.ControlState, error)   { return dom.ControlState{}, nil }

func (f *fakeElement) SetValue(v string) error {
	f.setCalls++
	if f.setErr != nil {
		return f.setErr
	}
	f.value = v
	return nil
}

func (f *fakeElement) Dispatch(ev string) error {
	if f.fireErr != nil {
		return f.fireErr
	}
	f.events = append(f.events, ev)
	return nil
}

var months = []dom.Option{
	{Value: "", Text: "Month"},
	{Value: "1", Text: "January"},
	{Value: "2", Text: "February"},
	{Value: "3", Text: "March"},
}

func TestEligible(t *testing.T) {
	tests := []struct {
		name string
		tag  string
		st   dom.ControlState
		want bool
	}{
		{"text", "input", dom.ControlState{Type: "text"}, true},
		{"tel", "input", dom.ControlState{Type: "tel"}, true},
		{"hidden", "input", dom.ControlState{Type: "hidden"}, false},
		{"password", "input", dom.ControlState{Type: "password"}, false},
		{"checkbox", "input", dom.ControlState{Type: "checkbox"}, false},
		{"disabled", "input", dom.ControlState{Type: "text", Disabled: true}, false},
		{"readonly", "textarea", dom.ControlState{ReadOnly: true}, false},
		{"select", "select", dom.ControlState{}, true},
		{"textarea", "textarea", dom.ControlState{}, true},
		{"button tag", "button", dom.ControlState{}, false},
	}
	for _, tt := range tests {
		if got := Eligible(tt.tag, tt.st); got != tt.want {
			t.Errorf("%s: Eligible = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestApply_Input(t *testing.T) {
	el := &fakeElement{tag: "input"}
	out, err := Apply(el, dom.ControlState{MaxLength: -1}, classify.CardNumber, "4242424242424242", false)
	if err != nil || out != Filled {
		t.Fatalf("Apply = %s, %v", out, err)
	}
	if el.value != "4242424242424242" {
		t.Errorf("value = %q", el.value)
	}
	if !reflect.DeepEqual(el.events, []string{"input", "change"}) {
		t.Errorf("events = %v", el.events)
	}
}

func TestApply_Policy(t *testing.T) {
	occupied := dom.ControlState{Value: "typed", MaxLength: -1}

	el := &fakeElement{tag: "input"}
	if out, _ := Apply(el, occupied, classify.Email, "a@b.c", false); out != SkippedOccupied {
		t.Errorf("incremental over user input = %s", out)
	}
	if el.setCalls != 0 {
		t.Error("occupied control was written")
	}

	if out, _ := Apply(el, occupied, classify.Email, "a@b.c", true); out != Filled {
		t.Errorf("forced = %s", out)
	}

	blank := dom.ControlState{Value: "   ", MaxLength: -1}
	if out, _ := Apply(&fakeElement{tag: "input"}, blank, classify.Email, "a@b.c", false); out != Filled {
		t.Errorf("whitespace value should count as blank, got %s", out)
	}

	if out, _ := Apply(&fakeElement{tag: "input"}, blank, classify.Email, "", true); out != SkippedEmpty {
		t.Errorf("empty value = %s", out)
	}
}

func TestApply_MonthTextBox(t *testing.T) {
	el := &fakeElement{tag: "input"}
	if out, _ := Apply(el, dom.ControlState{MaxLength: 1}, classify.ExpMonth, "03", false); out != Filled {
		t.Fatalf("out = %s", out)
	}
	if el.value != "3" {
		t.Errorf("narrow month box = %q, want 3", el.value)
	}

	if out, _ := Apply(&fakeElement{tag: "input"}, dom.ControlState{MaxLength: -1}, classify.ExpMonth, "13", false); out != SkippedInvalid {
		t.Errorf("month 13 = %s", out)
	}
}

func TestApply_Select(t *testing.T) {
	el := &fakeElement{tag: "select"}
	st := dom.ControlState{Options: months}
	if out, _ := Apply(el, st, classify.ExpMonth, "03", false); out != Filled {
		t.Fatalf("out = %s", out)
	}
	if el.value != "3" {
		t.Errorf("selected %q, want 3", el.value)
	}

	el = &fakeElement{tag: "select"}
	padded := dom.ControlState{Options: []dom.Option{{Value: "01", Text: "January"}}}
	if out, _ := Apply(el, padded, classify.ExpMonth, "1", false); out != Filled || el.value != "01" {
		t.Errorf("padded month option = %s, %q", out, el.value)
	}

	el = &fakeElement{tag: "select"}
	countries := dom.ControlState{Options: []dom.Option{{Value: "DE", Text: "Germany"}}}
	if out, _ := Apply(el, countries, classify.Country, "FR", false); out != SkippedNoOption {
		t.Errorf("missing option = %s", out)
	}

	if out, _ := Apply(&fakeElement{tag: "select"}, st, classify.ExpMonth, "abc", false); out != SkippedInvalid {
		t.Errorf("non-month = %s", out)
	}
}

func TestApply_BackendErrors(t *testing.T) {
	boom := errors.New("target closed")

	out, err := Apply(&fakeElement{tag: "input", setErr: boom}, dom.ControlState{MaxLength: -1}, classify.City, "Paris", false)
	if out != Failed || !errors.Is(err, boom) {
		t.Errorf("set failure = %s, %v", out, err)
	}
	out, err = Apply(&fakeElement{tag: "input", fireErr: boom}, dom.ControlState{MaxLength: -1}, classify.City, "Paris", false)
	if out != Failed || !errors.Is(err, boom) {
		t.Errorf("dispatch failure = %s, %v", out, err)
	}
}

func TestResolveOption_Tiers(t *testing.T) {
	opts := []dom.Option{
		{Value: "x1", Text: "Mayotte"},
		{Value: "x2", Text: "may"},
		{Value: "MAY", Text: "Fifth"},
	}
	got, ok := ResolveOption(opts, []string{"may"})
	if !ok || got.Value != "MAY" {
		t.Errorf("value tier should win, got %+v", got)
	}

	got, ok = ResolveOption(opts[:2], []string{"may"})
	if !ok || got.Value != "x2" {
		t.Errorf("text tier should beat substring, got %+v", got)
	}

	got, ok = ResolveOption(opts[:1], []string{" MAY "})
	if !ok || got.Value != "x1" {
		t.Errorf("substring tier = %+v, %v", got, ok)
	}

	if _, ok := ResolveOption(opts, []string{""}); ok {
		t.Error("empty candidate should not match by substring")
	}
}
