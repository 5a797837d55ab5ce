package decl

import "testing"

func TestIdentNormalizesToNFC(t *testing.T) {
	composed := "caf\u00e9"
	decomposed := "cafe\u0301"
	if composed == decomposed {
		t.Fatal("test strings should differ before normalization")
	}
	if !SameIdent(composed, decomposed) {
		t.Errorf("SameIdent(%q, %q) = false, want true", composed, decomposed)
	}
	if got := Ident("  side "); got != "side" {
		t.Errorf("Ident trims whitespace: got %q", got)
	}
}

func TestCapitalize(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"side", "Side"},
		{"happy", "Happy"},
		{"Already", "Already"},
		{"été", "Été"},
		{"x", "X"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := Capitalize(tt.input); got != tt.expected {
				t.Errorf("Capitalize(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestParseType(t *testing.T) {
	tests := []struct {
		input    string
		expected TypeRef
	}{
		{"Int", TypeRef{Name: "Int"}},
		{"String?", TypeRef{Name: "String", Nullable: true}},
		{" Boolean ", TypeRef{Name: "Boolean"}},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ParseType(tt.input)
			if got != tt.expected {
				t.Errorf("ParseType(%q) = %+v, want %+v", tt.input, got, tt.expected)
			}
			if got.String() != tt.expected.String() {
				t.Errorf("String() = %q, want %q", got.String(), tt.expected.String())
			}
		})
	}
}
