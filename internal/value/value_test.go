package value

import "testing"

func TestTruthiness(t *testing.T) {
	tests := []struct {
		name    string
		v       Value
		falsey  bool
	}{
		{"nil", Nil, true},
		{"false", NewBool(false), true},
		{"true", NewBool(true), false},
		{"zero", NewNumber(0), false},
		{"zero float", NewNumber(0.0), false},
		{"empty string", NewString(&Str{Text: ""}), false},
	}

	for _, tt := range tests {
		if got := IsFalsey(tt.v); got != tt.falsey {
			t.Errorf("%s: IsFalsey = %v, want %v", tt.name, got, tt.falsey)
		}
	}
}

func TestEqualAcrossVariants(t *testing.T) {
	if !Equal(Nil, Nil) {
		t.Error("Nil should equal Nil")
	}
	if Equal(NewBool(true), NewNumber(1)) {
		t.Error("bool and number should never be equal")
	}
	if !Equal(NewNumber(3), NewNumber(3)) {
		t.Error("equal numbers should be equal")
	}
	if Equal(NewNumber(3), NewNumber(4)) {
		t.Error("different numbers should not be equal")
	}
}

func TestStringEqualityIsIdentity(t *testing.T) {
	a := &Str{Text: "hi"}
	b := &Str{Text: "hi"}
	if Equal(NewString(a), NewString(b)) {
		t.Error("distinct Str records with equal text should not compare equal without interning")
	}
	if !Equal(NewString(a), NewString(a)) {
		t.Error("same Str record should compare equal to itself")
	}
}

func TestNumberFormatting(t *testing.T) {
	tests := []struct {
		n    float64
		want string
	}{
		{13, "13"},
		{620, "620"},
		{0, "0"},
		{1.5, "1.5"},
		{-4, "-4"},
	}
	for _, tt := range tests {
		if got := NewNumber(tt.n).String(); got != tt.want {
			t.Errorf("NewNumber(%v).String() = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestBoolAndNilFormatting(t *testing.T) {
	if Nil.String() != "nil" {
		t.Errorf("Nil.String() = %q, want nil", Nil.String())
	}
	if NewBool(true).String() != "true" {
		t.Errorf("true formatting wrong")
	}
	if NewBool(false).String() != "false" {
		t.Errorf("false formatting wrong")
	}
}
