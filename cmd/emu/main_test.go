package main

import (
	"testing"

	"github.com/rivo/tview"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbranko/raluvm/pkg/emulator"
	"github.com/mbranko/raluvm/pkg/isa"
)

func newTestUI() *debuggerUI {
	c := emulator.NewCPU()
	return &debuggerUI{
		dbg:    emulator.NewDebugger(c),
		regs:   tview.NewTextView(),
		disasm: tview.NewTextView(),
		status: tview.NewTextView(),
	}
}

func TestParseHexAddrAcceptsOptionalPrefix(t *testing.T) {
	addr, err := parseHexAddr("0x1000")
	require.NoError(t, err)
	assert.Equal(t, uint32(0x1000), addr)

	addr, err = parseHexAddr("1000")
	require.NoError(t, err)
	assert.Equal(t, uint32(0x1000), addr)
}

func TestExecuteBreakAndDelete(t *testing.T) {
	ui := newTestUI()

	assert.True(t, ui.execute("break 0x40000004"))
	assert.Equal(t, []uint32{0x40000004}, ui.dbg.Breakpoints())

	assert.True(t, ui.execute("delete 0x40000004"))
	assert.Empty(t, ui.dbg.Breakpoints())
}

func TestExecuteQuitStopsTheLoop(t *testing.T) {
	ui := newTestUI()
	assert.False(t, ui.execute("quit"))
}

func TestExecuteHaltStopsTheLoop(t *testing.T) {
	ui := newTestUI()
	ui.dbg.CPU.Mem.Load(ui.dbg.PC(), []byte{byte(isa.OpHalt) << 4, 0, 0, 0})

	assert.False(t, ui.execute("step"))
	assert.True(t, ui.halted)
}

func TestExecuteUnknownCommandKeepsRunning(t *testing.T) {
	ui := newTestUI()
	assert.True(t, ui.execute("bogus"))
}
