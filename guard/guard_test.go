package guard

import (
	"testing"

	"github.com/hazyhaar/payfill/dom/htmldoc"
)

func page(t *testing.T, body, url string) *htmldoc.Document {
	t.Helper()
	doc, err := htmldoc.ParseString("<html><body>"+body+"</body></html>", url)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func TestEligible_Stripe(t *testing.T) {
	tests := []struct {
		name string
		body string
		url  string
		want bool
	}{
		{"host", `<form></form>`, "https://checkout.stripe.com/pay/cs_1", true},
		{"frame", `<iframe src="https://js.stripe.com/v3/elements-inner"></iframe>`, "https://shop.example/checkout", true},
		{"data attribute", `<div data-stripe="number"></div>`, "https://shop.example/checkout", true},
		{"form action", `<form action="/charge/stripe"></form>`, "https://shop.example/checkout", true},
		{"plain shop", `<form action="/pay"><input name="cardnumber"></form>`, "https://shop.example/checkout", false},
		{"no url", `<p>hi</p>`, "", false},
	}
	g := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, ok := g.Eligible(page(t, tt.body, tt.url))
			if ok != tt.want {
				t.Fatalf("Eligible = %v, want %v", ok, tt.want)
			}
			if ok && name != "stripe" {
				t.Errorf("processor = %q", name)
			}
		})
	}
}

func TestEligible_ExtraProcessor(t *testing.T) {
	adyen := Processor{
		Name:         "adyen",
		Hosts:        []string{"adyen.com"},
		FrameSources: []string{"adyen"},
	}
	g := New(Stripe, adyen)

	name, ok := g.Eligible(page(t, `<iframe src="https://checkoutshopper-live.adyen.com/x"></iframe>`, "https://shop.example/"))
	if !ok || name != "adyen" {
		t.Errorf("Eligible = %q, %v", name, ok)
	}

	both := page(t, `<iframe src="https://checkoutshopper.adyen.com/"></iframe>`, "https://checkout.stripe.com/")
	if name, _ := g.Eligible(both); name != "stripe" {
		t.Errorf("first profile should win, got %q", name)
	}
}

func TestEligible_EmptyFragmentsIgnored(t *testing.T) {
	g := New(Processor{Name: "blank", Hosts: []string{""}, FormActions: []string{""}})
	if _, ok := g.Eligible(page(t, `<form action="/x"></form>`, "https://shop.example/")); ok {
		t.Error("empty fragments should never match")
	}
	if len(g.Processors()) != 1 {
		t.Errorf("Processors = %v", g.Processors())
	}
	if len(New().Processors()) != 1 || New().Processors()[0].Name != "stripe" {
		t.Error("default guard should carry Stripe alone")
	}
}
