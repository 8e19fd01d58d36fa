package htmldoc

import (
	"strings"
	"testing"

	"github.com/hazyhaar/payfill/dom"
)

const page = `<!DOCTYPE html>
<html><body>
<form id="pay">
  <label for="email">Email</label>
  <input id="email" name="email" type="EMAIL" value="a@b.c">
  <input id="card" name="cardnumber" maxlength="19" readonly>
  <input id="odd" type="bogus">
  <input id="off" disabled>
  <textarea id="note" maxlength="x">hello</textarea>
  <select id="country" name="country">
    <option value="">Choose</option>
    <option value="FR" selected>France</option>
    <option>United   States</option>
  </select>
  <select id="empty"></select>
</form>
</body></html>`

func parse(t *testing.T) *Document {
	t.Helper()
	doc, err := ParseString(page, "https://Checkout.Stripe.com:443/pay/cs_test")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func mustQuery(t *testing.T, doc *Document, id string) dom.Element {
	t.Helper()
	el, ok := dom.ByID(doc, id)
	if !ok {
		t.Fatalf("#%s not found", id)
	}
	return el
}

func TestHostname(t *testing.T) {
	doc := parse(t)
	if got := doc.Hostname(); got != "checkout.stripe.com" {
		t.Errorf("Hostname = %q", got)
	}
	bare, err := ParseString("<p>x</p>", "")
	if err != nil {
		t.Fatal(err)
	}
	if bare.Hostname() != "" {
		t.Errorf("empty page URL: Hostname = %q", bare.Hostname())
	}
}

func TestQueryAll_DocumentOrder(t *testing.T) {
	doc := parse(t)
	els := doc.QueryAll(dom.FormControls)
	var ids []string
	for _, el := range els {
		ids = append(ids, el.Attr("id"))
	}
	want := "email,card,odd,off,note,country,empty"
	if got := strings.Join(ids, ","); got != want {
		t.Errorf("order = %s, want %s", got, want)
	}
	if _, ok := doc.Query("input[name=missing]"); ok {
		t.Error("Query found a missing element")
	}
}

func TestState_Input(t *testing.T) {
	doc := parse(t)

	st, err := mustQuery(t, doc, "email").State()
	if err != nil {
		t.Fatal(err)
	}
	if st.Type != "email" || st.Value != "a@b.c" || st.MaxLength != -1 {
		t.Errorf("email state = %+v", st)
	}

	st, _ = mustQuery(t, doc, "card").State()
	if !st.ReadOnly || st.MaxLength != 19 || st.Type != "text" {
		t.Errorf("card state = %+v", st)
	}

	st, _ = mustQuery(t, doc, "odd").State()
	if st.Type != "text" {
		t.Errorf("unknown type should read as text, got %q", st.Type)
	}

	st, _ = mustQuery(t, doc, "off").State()
	if !st.Disabled {
		t.Error("disabled attribute not reported")
	}
}

func TestState_TextareaAndSelect(t *testing.T) {
	doc := parse(t)

	st, _ := mustQuery(t, doc, "note").State()
	if st.Value != "hello" || st.MaxLength != -1 || st.Type != "" {
		t.Errorf("textarea state = %+v", st)
	}

	st, _ = mustQuery(t, doc, "country").State()
	if st.Value != "FR" {
		t.Errorf("select value = %q, want FR", st.Value)
	}
	if len(st.Options) != 3 {
		t.Fatalf("options = %d, want 3", len(st.Options))
	}
	if st.Options[2].Value != "United States" {
		t.Errorf("valueless option = %q", st.Options[2].Value)
	}

	st, _ = mustQuery(t, doc, "empty").State()
	if st.Value != "" || st.Options != nil {
		t.Errorf("empty select state = %+v", st)
	}
}

func TestSetValue_RendersBack(t *testing.T) {
	doc := parse(t)

	card := mustQuery(t, doc, "card")
	if err := card.SetValue("4242424242424242"); err != nil {
		t.Fatal(err)
	}
	country := mustQuery(t, doc, "country")
	if err := country.SetValue("United States"); err != nil {
		t.Fatal(err)
	}
	note := mustQuery(t, doc, "note")
	if err := note.SetValue("bye"); err != nil {
		t.Fatal(err)
	}

	st, _ := country.State()
	if st.Value != "United States" {
		t.Errorf("select after SetValue = %q", st.Value)
	}
	st, _ = note.State()
	if st.Value != "bye" {
		t.Errorf("textarea after SetValue = %q", st.Value)
	}

	out := doc.String()
	if !strings.Contains(out, `value="4242424242424242"`) {
		t.Error("rendered page lacks the card value")
	}
	if strings.Count(out, "selected") != 1 {
		t.Errorf("expected exactly one selected option in %s", out)
	}
}

func TestSetValue_NonControl(t *testing.T) {
	doc := parse(t)
	form, ok := doc.Query("form")
	if !ok {
		t.Fatal("form not found")
	}
	if err := form.SetValue("x"); err == nil {
		t.Error("SetValue on <form> should fail")
	}
}

func TestClosestAndDispatch(t *testing.T) {
	doc := parse(t)
	email := mustQuery(t, doc, "email")

	form, ok := email.Closest("form")
	if !ok || form.Attr("id") != "pay" {
		t.Errorf("Closest(form) = %v, %v", form, ok)
	}
	if _, ok := email.Closest("table"); ok {
		t.Error("Closest(table) should miss")
	}

	_ = email.Dispatch("input")
	_ = email.Dispatch("change")
	evs := doc.Events()
	if len(evs) != 2 || evs[0].Type != "input" || evs[1].Type != "change" {
		t.Fatalf("events = %+v", evs)
	}
	if evs[0].ID != "email" || evs[0].Name != "email" || evs[0].Tag != "input" {
		t.Errorf("event = %+v", evs[0])
	}
}
