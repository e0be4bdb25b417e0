package asmcore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbranko/raluvm/pkg/isa"
	"github.com/mbranko/raluvm/pkg/objfile"
)

// driveTwoPasses runs body (a closure issuing Builder calls) once per pass,
// returning the finished module. This mirrors how cmd/asm re-runs the
// textual front end over the same source twice.
func driveTwoPasses(t *testing.T, as *Assembler, body func()) *objfile.Module {
	body()
	mod, err := as.End()
	require.NoError(t, err)
	require.Nil(t, mod, "End should signal pass one completion with a nil module")

	body()
	mod, err = as.End()
	require.NoError(t, err)
	require.NotNil(t, mod)
	return mod
}

func TestAssemblerHaltRoundTrip(t *testing.T) {
	as := NewAssembler(Options{})
	mod := driveTwoPasses(t, as, func() {
		require.NoError(t, as.Section(".text"))
		require.NoError(t, as.Halt())
	})

	require.Len(t, mod.Sections, 1)
	assert.Equal(t, ".text", mod.Sections[0].Name)
	assert.Equal(t, []byte{0x00, 0x00, 0x00, 0x00}, mod.Sections[0].Content)
}

func TestAssemblerLabelAndGlobalCall(t *testing.T) {
	as := NewAssembler(Options{})
	mod := driveTwoPasses(t, as, func() {
		require.NoError(t, as.Section(".text"))
		require.NoError(t, as.Global("main"))
		require.NoError(t, as.Label("main"))
		require.NoError(t, as.Call(OperandSymbolDirect("main")))
		require.NoError(t, as.Halt())
	})

	require.Len(t, mod.Sections, 1)
	text := mod.Sections[0]
	// Content: 4 bytes CALL (pool-indirect) + 4 bytes HALT + 4 bytes pool slot.
	require.Len(t, text.Content, 12)
	assert.Equal(t, []byte{0x00, 0x00, 0x00, 0x00}, text.Content[4:8])

	oc, mod_, a, _, _, d := isa.Decode(isa.Word(text.Content[0:4]))
	assert.Equal(t, isa.OpCall, oc)
	assert.Equal(t, isa.ModCallInd, mod_)
	assert.Equal(t, byte(isa.RegPC), a)
	assert.Equal(t, int32(4), d, "pool slot sits 4 bytes after the CALL, pc-relative from the next instruction")

	require.Len(t, mod.Symbols, 1)
	assert.Equal(t, "main", mod.Symbols[0].Name)
	assert.True(t, mod.Symbols[0].Defined)
	assert.Equal(t, uint32(0), mod.Symbols[0].Value)
}

func TestAssemblerWordSymbolProducesRelocation(t *testing.T) {
	as := NewAssembler(Options{})
	mod := driveTwoPasses(t, as, func() {
		require.NoError(t, as.Section(".data"))
		require.NoError(t, as.Extern("counter"))
		require.NoError(t, as.WordSymbol("counter"))
	})

	data := mod.Sections[0]
	require.Len(t, data.Relocations, 1)
	assert.Equal(t, uint32(0), data.Relocations[0].Offset)
	assert.Equal(t, "counter", data.Relocations[0].Name)

	require.Len(t, mod.Symbols, 1)
	assert.True(t, mod.Symbols[0].Extern)
	assert.False(t, mod.Symbols[0].Defined)
}

func TestAssemblerLdImmediateUsesPoolWhenOversize(t *testing.T) {
	as := NewAssembler(Options{})
	const big int32 = 0x12345
	mod := driveTwoPasses(t, as, func() {
		require.NoError(t, as.Section(".text"))
		require.NoError(t, as.Ld(1, OperandImmediate(big)))
		require.NoError(t, as.Halt())
	})

	text := mod.Sections[0]
	// LD (4 bytes) + HALT (4 bytes) + one pool word (4 bytes).
	require.Len(t, text.Content, 12)

	oc, m, _, b, _, _ := isa.Decode(isa.Word(text.Content[0:4]))
	assert.Equal(t, isa.OpLoad, oc)
	assert.Equal(t, isa.ModLdGprMem, m)
	assert.Equal(t, byte(isa.RegPC), b)
}

func TestAssemblerLdImmediatePoolDisplacementOverflowFails(t *testing.T) {
	as := NewAssembler(Options{})
	const big int32 = 0x12345
	body := func() {
		require.NoError(t, as.Section(".text"))
		require.NoError(t, as.Ld(1, OperandImmediate(big)))
		require.NoError(t, as.Skip(3000))
		require.NoError(t, as.Halt())
	}

	body()
	_, err := as.End()
	require.NoError(t, err, "pass one never range-checks, only pass two computes a real displacement")

	require.NoError(t, as.Section(".text"))
	err = as.Ld(1, OperandImmediate(big))
	require.Error(t, err, "the pool sits 3008 bytes past the LD, well outside the signed 12-bit range")
	assert.Contains(t, err.Error(), "12 bits")
}

func TestAssemblerLdImmediateFitsDirect(t *testing.T) {
	as := NewAssembler(Options{})
	mod := driveTwoPasses(t, as, func() {
		require.NoError(t, as.Section(".text"))
		require.NoError(t, as.Ld(2, OperandImmediate(7)))
	})

	text := mod.Sections[0]
	require.Len(t, text.Content, 4)
	oc, m, a, b, _, d := isa.Decode(isa.Word(text.Content))
	assert.Equal(t, isa.OpLoad, oc)
	assert.Equal(t, isa.ModLdGprGpr, m)
	assert.Equal(t, byte(2), a)
	assert.Equal(t, byte(0), b)
	assert.Equal(t, int32(7), d)
}

func TestAssemblerDuplicateLabelFails(t *testing.T) {
	as := NewAssembler(Options{})
	require.NoError(t, as.Section(".text"))
	require.NoError(t, as.Label("dup"))
	err := as.Label("dup")
	assert.Error(t, err)
}

func TestAssemblerUndefinedGlobalFailsOnSecondPass(t *testing.T) {
	as := NewAssembler(Options{})
	require.NoError(t, as.Section(".text"))
	require.NoError(t, as.Global("ghost"))
	mod, err := as.End()
	require.NoError(t, err)
	require.Nil(t, mod)

	require.NoError(t, as.Section(".text"))
	err = as.Global("ghost")
	assert.Error(t, err)
}

func TestAssemblerStoreToLiteralIsRejected(t *testing.T) {
	as := NewAssembler(Options{})
	require.NoError(t, as.Section(".text"))
	err := as.St(1, OperandImmediate(3))
	assert.Error(t, err)
}

func TestAssemblerXchgUsesBothRegisters(t *testing.T) {
	as := NewAssembler(Options{})
	mod := driveTwoPasses(t, as, func() {
		require.NoError(t, as.Section(".text"))
		require.NoError(t, as.Xchg(3, 9))
	})

	_, _, _, b, c, _ := isa.Decode(isa.Word(mod.Sections[0].Content))
	assert.Equal(t, byte(3), b)
	assert.Equal(t, byte(9), c)
}
