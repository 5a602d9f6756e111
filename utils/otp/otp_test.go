package otp

import (
	"strconv"
	"testing"
)

func TestGenerateLength(t *testing.T) {
	// Generate 50 codes for each possible length between 1 and 9
	for i := 1; i < 10; i++ {
		gen := Generator{Digits: i}
		for j := 0; j < 50; j++ {
			code := gen.Generate()
			if len(code) != i {
				t.Fatalf("Failed while expecting length to be %d but was %d (%s)", i, len(code), code)
			}
		}
	}
}

func TestGenerateRange(t *testing.T) {
	gen := Generator{Digits: SignupDigits}
	for j := 0; j < 500; j++ {
		code, err := strconv.Atoi(gen.Generate())
		if err != nil {
			t.Fatalf("Code should be numeric: %s", err)
		}
		if code < 1000 || code > 9999 {
			t.Fatalf("Code %d is outside of [1000, 9999]", code)
		}
	}
}

func TestPairingRange(t *testing.T) {
	for j := 0; j < 500; j++ {
		code, err := strconv.Atoi(Pairing())
		if err != nil {
			t.Fatalf("Code should be numeric: %s", err)
		}
		if code < 100000 || code > 999999 {
			t.Fatalf("Code %d is outside of [100000, 999999]", code)
		}
	}
}

func TestGenerateVaries(t *testing.T) {
	seen := make(map[string]bool)
	for j := 0; j < 100; j++ {
		seen[Signup()] = true
	}
	if len(seen) < 2 {
		t.Fatalf("Codes should vary, got %v", seen)
	}
}

func TestGenerateInvalidDigits(t *testing.T) {
	code := Generator{}.Generate()
	if len(code) != 1 {
		t.Fatalf("A generator without digits should fall back to one digit, got %s", code)
	}
}
