package isa

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		oc   OpCode
		mod  Mode
		a, b, c byte
		d    int32
	}{
		{"halt", OpHalt, 0, 0, 0, 0, 0},
		{"ld immediate", OpLoad, ModLdGprGpr, 1, 0, 0, 0x7FF},
		{"negative displacement", OpJump, ModJmp, 15, 0, 0, -1},
		{"store indirect", OpStore, ModStInd, 15, 0, 3, -2048},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := Encode(tt.oc, tt.mod, tt.a, tt.b, tt.c, tt.d)
			oc, mod, a, b, c, d := Decode(w)
			assert.Equal(t, tt.oc, oc)
			assert.Equal(t, tt.mod, mod)
			assert.Equal(t, tt.a, a)
			assert.Equal(t, tt.b, b)
			assert.Equal(t, tt.c, c)
			assert.Equal(t, tt.d, d)
		})
	}
}

// TestSignExtendD checks that D=0xFFF decodes to -1, not 4095.
func TestSignExtendD(t *testing.T) {
	w := Encode(OpJump, ModJmp, RegPC, 0, 0, -1)
	_, _, _, _, _, d := Decode(w)
	require.Equal(t, int32(-1), d)
}

func TestFitsSigned12(t *testing.T) {
	assert.True(t, FitsSigned12(0, false))
	assert.True(t, FitsSigned12(2047, false))
	assert.True(t, FitsSigned12(-2048, false))
	assert.False(t, FitsSigned12(2048, false))
	assert.False(t, FitsSigned12(-2049, false))

	// The legacy predicate is unsatisfiable: every literal is "too big".
	assert.False(t, FitsSigned12(0, true))
	assert.False(t, FitsSigned12(2047, true))
	assert.False(t, FitsSigned12(-2048, true))
}

func TestParseMnemonic(t *testing.T) {
	m, ok := ParseMnemonic("ld")
	require.True(t, ok)
	assert.Equal(t, MnLd, m)

	_, ok = ParseMnemonic("nope")
	assert.False(t, ok)
}
