package credential

import (
	"errors"
	"strings"
	"testing"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "YubiKey 5C", "YubiKey 5C"},
		{"surrounding whitespace", "  Work laptop  ", "Work laptop"},
		{"internal runs collapse", "Work \t  laptop", "Work laptop"},
		{"exactly max length", strings.Repeat("a", MaxNameLength), strings.Repeat("a", MaxNameLength)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NormalizeName(tc.input)
			if err != nil {
				t.Fatalf("normalize name: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestNormalizeNameRejections(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  error
	}{
		{"empty", "", ErrEmptyName},
		{"whitespace only", " \t\n ", ErrEmptyName},
		{"over max length", strings.Repeat("a", MaxNameLength+1), ErrNameTooLong},
		{"control character", "key\x00name", ErrNameControlCharacters},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NormalizeName(tc.input)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestParseCategory(t *testing.T) {
	if got := ParseCategory("platform"); got != CategoryPlatform {
		t.Fatalf("expected platform, got %s", got)
	}
	if got := ParseCategory(" Platform "); got != CategoryPlatform {
		t.Fatalf("expected normalized platform, got %s", got)
	}
	if got := ParseCategory("cross-platform"); got != CategoryCrossPlatform {
		t.Fatalf("expected cross-platform, got %s", got)
	}
	if got := ParseCategory("usb"); got != CategoryCrossPlatform {
		t.Fatalf("expected cross-platform fallback, got %s", got)
	}
}

func TestEncodeDecodeID(t *testing.T) {
	raw := []byte{0x01, 0x02, 0xFE, 0xFF}
	encoded := EncodeID(raw)
	if strings.ContainsAny(encoded, "+/=") {
		t.Fatalf("expected url-safe unpadded encoding, got %q", encoded)
	}
	decoded, err := DecodeID(encoded)
	if err != nil {
		t.Fatalf("decode id: %v", err)
	}
	if string(decoded) != string(raw) {
		t.Fatalf("roundtrip mismatch: %v != %v", decoded, raw)
	}
}
