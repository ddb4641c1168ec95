package util

import "testing"

func TestOwnerKeyIsStableHexNamespace(t *testing.T) {
	got := OwnerKey("guest:abc")
	if got != OwnerKey("guest:abc") {
		t.Fatalf("expected stable key, got %s", got)
	}
	if got == OwnerKey("guest:abd") {
		t.Fatalf("different owners must not share a namespace")
	}
	if len(got) != 32 {
		t.Fatalf("expected 32 hex characters, got %d", len(got))
	}
	for _, ch := range got {
		if !((ch >= 'a' && ch <= 'f') || (ch >= '0' && ch <= '9')) {
			t.Fatalf("key contains non-hex character: %c", ch)
		}
	}
}
