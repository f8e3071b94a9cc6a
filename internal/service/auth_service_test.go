package service

import (
	"strings"
	"testing"
)

func TestNewTokenCode_Format(t *testing.T) {
	seen := make(map[string]bool)

	for i := 0; i < 100; i++ {
		code, err := NewTokenCode()
		if err != nil {
			t.Fatalf("NewTokenCode: %v", err)
		}
		if !strings.HasPrefix(code, "UTBK-") {
			t.Fatalf("missing prefix: %q", code)
		}
		suffix := strings.TrimPrefix(code, "UTBK-")
		if len(suffix) != 6 {
			t.Fatalf("expected 6-char suffix, got %q", code)
		}
		for _, r := range suffix {
			if !strings.ContainsRune(tokenCodeAlphabet, r) {
				t.Fatalf("character %q outside alphabet in %q", r, code)
			}
		}
		seen[code] = true
	}

	// 100 draws from a 32^6 space colliding would mean the generator is broken.
	if len(seen) < 100 {
		t.Fatalf("expected 100 distinct codes, got %d", len(seen))
	}
}
