package addr

import "testing"

func TestParseRoundTrip(t *testing.T) {
	const s = "11111111111111111111111111111111"
	a, err := Parse(s)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if a.String() != s {
		t.Fatalf("round trip mismatch: got %s want %s", a.String(), s)
	}
}

func TestParseInvalidLength(t *testing.T) {
	// "11111111" is valid base58 but decodes to 8 zero bytes, not 32.
	if _, err := Parse("11111111"); err == nil {
		t.Fatal("expected an error for an 8-byte address")
	}
}

func TestEqualAndZero(t *testing.T) {
	var a, b Address
	if !a.Equal(b) {
		t.Fatal("zero addresses should be equal")
	}
	if !a.IsZero() {
		t.Fatal("expected zero address")
	}
	b[0] = 1
	if a.Equal(b) {
		t.Fatal("addresses should differ")
	}
}
