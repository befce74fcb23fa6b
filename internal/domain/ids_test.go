package domain

import "testing"

func TestParsePrismId(t *testing.T) {
	id, err := ParsePrismId("core:command")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id.Namespace != "core" || id.Name != "command" {
		t.Fatalf("got %+v", id)
	}
	if id.String() != "core:command" {
		t.Fatalf("round trip mismatch: %s", id.String())
	}
}

func TestParsePrismIdInvalid(t *testing.T) {
	cases := []string{"", "noseparator", ":missingns", "missingname:", "a:b:c"}
	for _, c := range cases {
		if _, err := ParsePrismId(c); c != "a:b:c" && err == nil {
			t.Fatalf("expected error for %q", c)
		}
	}
	// "a:b:c" is actually valid: Cut splits on the first ":" only.
	id, err := ParsePrismId("a:b:c")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id.Namespace != "a" || id.Name != "b:c" {
		t.Fatalf("got %+v", id)
	}
}
