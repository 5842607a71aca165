package auth

import "testing"

func TestHashIsStableAndOpaque(t *testing.T) {
	a := Hash("secret-key")
	b := Hash("secret-key")
	if a != b {
		t.Fatalf("hash not deterministic: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("hash length = %d, want 64 hex chars", len(a))
	}
	if a == "secret-key" {
		t.Fatal("hash must not equal the plaintext")
	}
	if Hash("other-key") == a {
		t.Fatal("distinct keys must hash differently")
	}
}

func TestHashPrefixForLogs(t *testing.T) {
	p := HashPrefix("secret-key")
	if len(p) != 8 {
		t.Fatalf("prefix length = %d, want 8", len(p))
	}
	if Hash("secret-key")[:8] != p {
		t.Fatal("prefix must come from the full hash")
	}
}
