package otp

import (
	"math"
	"math/rand"
	"strconv"
)

const (
	// SignupDigits is the length of the codes mailed at signup and on request.
	SignupDigits = 4
	// PairingDigits is the length of the nonce appended to chat channel names.
	PairingDigits = 6
)

// Generator for short numeric codes
type Generator struct {
	Digits int // number of digits of every generated code, at least 1
}

// Generate returns a code of exactly Digits digits, never with a leading zero
func (g Generator) Generate() string {
	low, high := g.bounds()
	return strconv.FormatInt(low+rand.Int63n(high-low+1), 10)
}

// bounds returns the smallest and the largest number of Digits digits
func (g Generator) bounds() (int64, int64) {
	digits := g.Digits
	if digits < 1 {
		digits = 1
	}
	low := int64(math.Pow10(digits - 1))
	high := int64(math.Pow10(digits)) - 1
	if digits == 1 {
		low = 0
	}
	return low, high
}

// Signup generates a code as mailed to users verifying their email
func Signup() string {
	return Generator{Digits: SignupDigits}.Generate()
}

// Pairing generates the nonce of a chat channel name
func Pairing() string {
	return Generator{Digits: PairingDigits}.Generate()
}
