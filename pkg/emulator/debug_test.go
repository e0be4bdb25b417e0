package emulator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbranko/raluvm/pkg/isa"
)

func loadProgram(c *CPU, instrs ...isa.Word) {
	loadWords(c, entryPoint, instrs...)
}

func TestDebuggerStepChecksBreakpointBeforeExecuting(t *testing.T) {
	c := NewCPU()
	loadProgram(c,
		isa.Encode(isa.OpArit, isa.ModAdd, 1, 1, 0, 1),
		isa.Encode(isa.OpArit, isa.ModAdd, 1, 1, 0, 1),
		isa.Encode(isa.OpHalt, 0, 0, 0, 0, 0),
	)
	dbg := NewDebugger(c)
	dbg.AddBreakpoint(entryPoint + 4)

	result := dbg.Step(5)
	assert.Equal(t, StopBreakpoint, result.Reason)
	assert.Equal(t, uint32(entryPoint+4), dbg.PC(), "stops before executing the breakpointed instruction")
}

func TestDebuggerContinueRunsToHalt(t *testing.T) {
	c := NewCPU()
	loadProgram(c,
		isa.Encode(isa.OpArit, isa.ModAdd, 1, 1, 0, 1),
		isa.Encode(isa.OpHalt, 0, 0, 0, 0, 0),
	)
	dbg := NewDebugger(c)

	result := dbg.Continue()
	assert.Equal(t, StopHalted, result.Reason)
}

func TestDebuggerContinueStopsAtBreakpoint(t *testing.T) {
	c := NewCPU()
	loadProgram(c,
		isa.Encode(isa.OpArit, isa.ModAdd, 1, 1, 0, 1),
		isa.Encode(isa.OpArit, isa.ModAdd, 1, 1, 0, 1),
		isa.Encode(isa.OpHalt, 0, 0, 0, 0, 0),
	)
	dbg := NewDebugger(c)
	dbg.AddBreakpoint(entryPoint + 8)

	result := dbg.Continue()
	assert.Equal(t, StopBreakpoint, result.Reason)
	assert.Equal(t, uint32(entryPoint+8), dbg.PC())
}

func TestDebuggerDeleteBreakpointReportsWhetherOneExisted(t *testing.T) {
	dbg := NewDebugger(NewCPU())
	assert.False(t, dbg.DeleteBreakpoint(0x1000))

	dbg.AddBreakpoint(0x1000)
	assert.True(t, dbg.DeleteBreakpoint(0x1000))
	assert.False(t, dbg.DeleteBreakpoint(0x1000))
}

func TestDebuggerBreakpointsSortedAscending(t *testing.T) {
	dbg := NewDebugger(NewCPU())
	dbg.AddBreakpoint(0x300)
	dbg.AddBreakpoint(0x100)
	dbg.AddBreakpoint(0x200)

	require.Equal(t, []uint32{0x100, 0x200, 0x300}, dbg.Breakpoints())
}

func TestDebuggerDecodeAtDoesNotAdvancePC(t *testing.T) {
	c := NewCPU()
	loadProgram(c, isa.Encode(isa.OpHalt, 0, 0, 0, 0, 0))
	dbg := NewDebugger(c)

	before := dbg.PC()
	_ = dbg.DecodeAt(before)
	assert.Equal(t, before, dbg.PC())
}
