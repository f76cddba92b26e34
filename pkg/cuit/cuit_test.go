package cuit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEsValidoCUIL(t *testing.T) {
	tests := []struct {
		name  string
		n     uint64
		valid bool
	}{
		{"valid prefix 20", 20123456786, true},
		{"valid prefix 24", 24123456781, true},
		{"valid prefix 27 remainder zero", 27123456780, true},
		{"valid prefix 23 computed digit", 23123456785, true},
		{"prefix 23 reissue digit 3", 23123456783, true},
		{"prefix 23 reissue digit 4", 23123456784, true},
		{"prefix 23 reissue digit 9", 23123456789, true},
		{"wrong check digit", 20123456785, false},
		{"organization prefix rejected", 30123456781, false},
		{"unknown prefix", 21123456786, false},
		{"ten digits", 2012345678, false},
		{"twelve digits", 201234567861, false},
		{"zero", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, EsValidoCUIL(tt.n))
		})
	}
}

func TestEsValidoCUIT(t *testing.T) {
	tests := []struct {
		name  string
		n     uint64
		valid bool
	}{
		{"valid prefix 30", 30123456781, true},
		{"valid prefix 34", 34123456787, true},
		{"individual prefix rejected", 20123456786, false},
		{"wrong check digit", 30123456785, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, EsValidoCUIT(tt.n))
		})
	}
}

// Flipping only the check digit of a valid number must always invalidate it
// for the plain categories (no reissue exceptions).
func TestCheckDigitMutation(t *testing.T) {
	const base = 20123456780 // 2012345678 + check digit slot
	const valid = 20123456786

	for digit := uint64(0); digit <= 9; digit++ {
		n := base + digit
		if n == valid {
			assert.True(t, EsValidoCUIL(n), "original check digit must validate")
			continue
		}
		assert.False(t, EsValidoCUIL(n), "mutated check digit %d must not validate", digit)
	}
}

// Remainder 1 is never issued: no check digit can make such a number valid.
func TestRemainderOneAlwaysInvalid(t *testing.T) {
	const base = 20124456780 // weighted sum ≡ 1 (mod 11)

	for digit := uint64(0); digit <= 9; digit++ {
		assert.False(t, EsValidoCUIL(base+digit))
	}
}
