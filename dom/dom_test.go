package dom

import "testing"

func TestAttrSelectors(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{AttrEquals("input", "name", "card"), `input[name="card"]`},
		{AttrEquals("", "id", `a"b`), `[id="a\"b"]`},
		{AttrContains("input", "id", `x\y`), `input[id*="x\\y"]`},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %s, want %s", tt.got, tt.want)
		}
	}
}

func TestIsBlank(t *testing.T) {
	if !IsBlank("  \t") || !IsBlank("") {
		t.Error("whitespace should be blank")
	}
	if IsBlank(" x ") {
		t.Error("x is not blank")
	}
}
