package emulator

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/mbranko/raluvm/pkg/isa"
	"github.com/mbranko/raluvm/pkg/utils"
)

// CPU is the emulated processor: 16 general-purpose registers (with PC and
// SP aliased onto gpr[15] and gpr[14]), 3 control/status registers, and
// the memory it executes against.
type CPU struct {
	GPR [isa.NumGPR]uint32
	CSR [isa.NumCSR]uint32
	Mem *Memory

	Halted bool
}

// NewCPU returns a CPU with zeroed registers, PC at the program's fixed
// entry address, and a fresh memory space.
func NewCPU() *CPU {
	c := &CPU{Mem: NewMemory()}
	c.Reset()
	return c
}

// entryPoint is the fixed address execution begins at, the same address
// the original assigns pc in Emulator::run().
const entryPoint = 0x40000000

// Reset zeroes every register and sets PC to entryPoint, leaving loaded
// memory content untouched.
func (c *CPU) Reset() {
	c.GPR = [isa.NumGPR]uint32{}
	c.CSR = [isa.NumCSR]uint32{}
	c.GPR[isa.RegPC] = entryPoint
	c.Halted = false
}

func (c *CPU) pc() uint32      { return c.GPR[isa.RegPC] }
func (c *CPU) setPC(v uint32)  { c.GPR[isa.RegPC] = v }
func (c *CPU) advancePC(n int) { c.GPR[isa.RegPC] += uint32(n) }

// setGPR writes a general-purpose register, silently discarding writes to
// r0, the "r0 always reads zero" rule this ISA implements as a
// write-side discard rather than a read-side override.
func (c *CPU) setGPR(index byte, value uint32) {
	if index != 0 {
		c.GPR[index] = value
	}
}

// push writes value onto the stack, predecrementing sp by 4, matching the
// original's byte-at-a-time push (high byte first, into descending
// addresses) byte for byte.
func (c *CPU) push(value uint32) {
	c.GPR[isa.RegSP] -= 4
	c.Mem.WriteWord(c.GPR[isa.RegSP], value)
}

// pop reads the word at sp and postincrements sp by 4.
func (c *CPU) pop() uint32 {
	value := c.Mem.ReadWord(c.GPR[isa.RegSP])
	c.GPR[isa.RegSP] += 4
	return value
}

// PrintState writes the 4-registers-per-line hex register dump the
// original prints on HALT, colorized the same way the rest of this
// toolchain's CLI output is.
func (c *CPU) PrintState(w io.Writer) {
	bold := color.New(color.Bold)
	bold.Fprintln(w, "-----------------------------------------------------------------")
	fmt.Fprint(w, "Emulated processor state:")
	for i := 0; i < isa.NumGPR; i++ {
		if i%4 == 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "r%-2d=%s\t", i, utils.FormatUintHex(uint64(c.GPR[i]), 8))
	}
	fmt.Fprintln(w)
}
