package id

import (
	"encoding/base32"
	"strings"
	"testing"
)

func decodeID(t *testing.T, id string) []byte {
	t.Helper()
	raw, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(strings.ToUpper(id))
	if err != nil {
		t.Fatalf("decode id %q: %v", id, err)
	}
	return raw
}

func TestNewIDShape(t *testing.T) {
	id, err := NewID()
	if err != nil {
		t.Fatalf("new id: %v", err)
	}

	if len(id) != 26 {
		t.Fatalf("expected 26 characters, got %d (%q)", len(id), id)
	}
	if id != strings.ToLower(id) {
		t.Fatalf("expected lowercase id, got %q", id)
	}
	if strings.ContainsAny(id, "=0189") {
		t.Fatalf("expected unpadded base32 alphabet, got %q", id)
	}
	if raw := decodeID(t, id); len(raw) != 16 {
		t.Fatalf("expected 16 decoded bytes, got %d", len(raw))
	}
}

func TestNewIDCarriesUUIDBits(t *testing.T) {
	id, err := NewID()
	if err != nil {
		t.Fatalf("new id: %v", err)
	}
	raw := decodeID(t, id)

	if got := raw[6] >> 4; got != 4 {
		t.Fatalf("expected version nibble 4, got %d", got)
	}
	if got := raw[8] & 0xC0; got != 0x80 {
		t.Fatalf("expected RFC 4122 variant bits, got 0x%X", got)
	}
}

func TestNewIDIsUnique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 256; i++ {
		id, err := NewID()
		if err != nil {
			t.Fatalf("new id: %v", err)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %q after %d generations", id, i)
		}
		seen[id] = struct{}{}
	}
}
