package classify

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hazyhaar/payfill/dom"
	"github.com/hazyhaar/payfill/dom/htmldoc"
)

func parse(t *testing.T, body string) *htmldoc.Document {
	t.Helper()
	doc, err := htmldoc.ParseString("<html><body>"+body+"</body></html>", "https://checkout.stripe.com/")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func classifyFirst(t *testing.T, body string) FieldType {
	t.Helper()
	doc := parse(t, body)
	el, ok := doc.Query(dom.FormControls)
	if !ok {
		t.Fatalf("no control in %s", body)
	}
	return Default().Classify(doc, el)
}

func TestClassify_DefaultTable(t *testing.T) {
	tests := []struct {
		name string
		body string
		want FieldType
	}{
		{"autocomplete", `<input autocomplete="cc-number">`, CardNumber},
		{"autocomplete case", `<input autocomplete="CC-CSC">`, CVC},
		{"card name attr", `<input name="cardnumber">`, CardNumber},
		{"expiry label", `<label for="x1">Expiration date</label><input id="x1" name="ccexp">`, Exp},
		{"mm/yy placeholder", `<input placeholder="MM / YY">`, Exp},
		{"exp month select", `<select name="exp-month"><option>1</option></select>`, ExpMonth},
		{"exp year", `<input name="exp_year">`, ExpYear},
		{"cvc", `<input name="cvc">`, CVC},
		{"name on card", `<input aria-label="Name on card">`, FullName},
		{"email", `<input type="email" name="email">`, Email},
		{"phone", `<input name="phone">`, Phone},
		{"address1", `<input name="address1">`, AddressLine1},
		{"address2", `<input name="address2">`, AddressLine2},
		{"city wrapped label", `<label>City <input></label>`, City},
		{"province", `<input name="province">`, State},
		{"postal", `<input name="postal">`, Zip},
		{"country", `<select name="country"><option>FR</option></select>`, Country},
		{"plain name", `<input name="name">`, FullName},
		{"user name excluded", `<input aria-label="User name">`, None},
		{"unrelated", `<input name="coupon">`, None},
		{"labelledby", `<span id="lbl">Security code</span><input aria-labelledby="lbl">`, CVC},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyFirst(t, tt.body); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestClassify_Idempotent(t *testing.T) {
	doc := parse(t, `
		<label for="cc">Card number</label><input id="cc" name="number">
		<input name="exp_year">
		<input name="coupon">`)
	c := Default()
	for _, el := range doc.QueryAll(dom.FormControls) {
		first := c.Classify(doc, el)
		if err := el.SetValue("4242"); err != nil {
			t.Fatal(err)
		}
		if again := c.Classify(doc, el); again != first {
			t.Errorf("%s: %s then %s", el.Attr("name"), first, again)
		}
	}
}

func TestClassify_EmptyLabelForWins(t *testing.T) {
	// The empty label[for] shadows the wrapping "Email" label.
	got := classifyFirst(t, `<label for="q"></label><label>Email <input id="q"></label>`)
	if got != None {
		t.Errorf("got %s, want none", got)
	}
}

func TestNameFallbackExclusions(t *testing.T) {
	rules := DefaultRules()
	fallback := rules[len(rules)-1]
	if fallback.Type != FullName || fallback.Autocomplete != "" {
		t.Fatalf("last rule = %+v, want the name fallback", fallback)
	}
	for _, sig := range []string{"company name", "username", "user name", "organization name", "account name"} {
		if fallback.Match("", sig) {
			t.Errorf("fallback matched %q", sig)
		}
	}
	for _, sig := range []string{"name", "billing name", "full name"} {
		if !fallback.Match("", sig) {
			t.Errorf("fallback missed %q", sig)
		}
	}
}

func TestSignature(t *testing.T) {
	doc := parse(t, `
		<span id="a">First</span><span id="b">Second</span>
		<label for="f">Label</label>
		<input id="f" autocomplete="Email" name="Mail" placeholder="You@Example" aria-label="Aria" aria-labelledby="a missing b">`)
	el, _ := doc.Query("input")
	got := Signature(doc, el)
	want := "email mail f you@example aria first  second label"
	if got != want {
		t.Errorf("Signature = %q, want %q", got, want)
	}

	bare := parse(t, `<input>`)
	el, _ = bare.Query("input")
	if got := Signature(bare, el); got != "" {
		t.Errorf("bare Signature = %q", got)
	}
}

func TestClassifier_CustomRules(t *testing.T) {
	rules, err := CompileAll([]RuleSpec{
		{Type: "zip", Pattern: `plz`},
		{Type: "city", Pattern: `ort`},
	})
	if err != nil {
		t.Fatal(err)
	}
	c := New(rules)
	if got := c.Match("", "plz ort"); got != Zip {
		t.Errorf("first match should win, got %s", got)
	}
	if got := c.Match("postal-code", "x"); got != None {
		t.Errorf("custom table should not carry defaults, got %s", got)
	}
	if len(New(nil).Rules()) != len(DefaultSpecs()) {
		t.Error("empty table should fall back to the defaults")
	}
}

func TestRuleSpec_Compile(t *testing.T) {
	tests := []struct {
		name string
		spec RuleSpec
		err  string
	}{
		{"unknown type", RuleSpec{Type: "iban", Pattern: "x"}, "unknown field type"},
		{"empty", RuleSpec{Type: "zip"}, "needs autocomplete or pattern"},
		{"bad pattern", RuleSpec{Type: "zip", Pattern: "("}, "pattern"},
		{"bad exclude", RuleSpec{Type: "zip", Pattern: "zip", Exclude: "["}, "exclude"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.spec.Compile()
			if err == nil || !strings.Contains(err.Error(), tt.err) {
				t.Errorf("err = %v, want containing %q", err, tt.err)
			}
		})
	}
}

func TestLoadRulesFile(t *testing.T) {
	data, err := MarshalRules([]RuleSpec{
		{Type: "cardNumber", Autocomplete: "cc-number", Pattern: "card"},
	})
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	rules, err := LoadRulesFile(path)
	if err != nil {
		t.Fatalf("LoadRulesFile: %v", err)
	}
	if len(rules) != 1 || rules[0].Type != CardNumber || rules[0].Autocomplete != "cc-number" {
		t.Errorf("rules = %+v", rules)
	}

	if _, err := ParseRules([]byte("rules: []\n")); err == nil {
		t.Error("empty table should fail")
	}
	if _, err := LoadRulesFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file should fail")
	}
}

func TestParseFieldType(t *testing.T) {
	for _, ft := range FieldTypes {
		got, err := ParseFieldType(string(ft))
		if err != nil || got != ft {
			t.Errorf("ParseFieldType(%s) = %s, %v", ft, got, err)
		}
	}
	if None.String() != "none" {
		t.Errorf("None.String() = %q", None.String())
	}
}
