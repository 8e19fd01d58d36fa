package idgen

import (
	"strings"
	"testing"
)

func TestUUIDv7_Format(t *testing.T) {
	id := UUIDv7()()
	// UUID format: 8-4-4-4-12
	parts := strings.Split(id, "-")
	if len(parts) != 5 {
		t.Fatalf("UUIDv7: expected 5 parts, got %d in %q", len(parts), id)
	}
	if len(id) != 36 {
		t.Fatalf("UUIDv7: expected length 36, got %d", len(id))
	}
	if id[14] != '7' {
		t.Fatalf("UUIDv7: version nibble = %c, want 7 in %q", id[14], id)
	}
}

func TestUUIDv7_Sortable(t *testing.T) {
	gen := UUIDv7()
	prev := gen()
	for i := 0; i < 100; i++ {
		id := gen()
		if id <= prev {
			t.Fatalf("UUIDv7: %q not after %q", id, prev)
		}
		prev = id
	}
}

func TestPrefixed(t *testing.T) {
	id := Prefixed("scn_", UUIDv7())()
	if !strings.HasPrefix(id, "scn_") {
		t.Fatalf("Prefixed: %q lacks prefix", id)
	}
	if len(id) != len("scn_")+36 {
		t.Fatalf("Prefixed: length %d", len(id))
	}
}

func TestSequence(t *testing.T) {
	gen := Sequence("s")
	for _, want := range []string{"s1", "s2", "s3"} {
		if got := gen(); got != want {
			t.Fatalf("Sequence: got %q, want %q", got, want)
		}
	}
}

func TestScanPrefix(t *testing.T) {
	if id := Scan(); !strings.HasPrefix(id, "scn_") {
		t.Fatalf("Scan: %q lacks scn_ prefix", id)
	}
}
