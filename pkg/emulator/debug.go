package emulator

import (
	"sort"

	"github.com/mbranko/raluvm/pkg/isa"
)

// StopReason explains why Debugger.Continue or Debugger.Step stopped.
type StopReason int

const (
	StopStep StopReason = iota
	StopBreakpoint
	StopHalted
	StopError
)

// StepResult reports the outcome of running one or more instructions.
type StepResult struct {
	Reason        StopReason
	StepsExecuted int
	Err           error
}

// Debugger wraps a CPU with breakpoints and single-step/continue control,
// the same split the interactive front end drives against regardless of
// whether that front end is a REPL or something richer.
type Debugger struct {
	CPU         *CPU
	breakpoints map[uint32]bool
}

// NewDebugger returns a debugger driving cpu, with no breakpoints set.
func NewDebugger(cpu *CPU) *Debugger {
	return &Debugger{CPU: cpu, breakpoints: map[uint32]bool{}}
}

// AddBreakpoint arms a breakpoint at addr.
func (d *Debugger) AddBreakpoint(addr uint32) {
	d.breakpoints[addr] = true
}

// DeleteBreakpoint disarms the breakpoint at addr, reporting whether one
// was set there at all.
func (d *Debugger) DeleteBreakpoint(addr uint32) bool {
	_, ok := d.breakpoints[addr]
	delete(d.breakpoints, addr)
	return ok
}

// Breakpoints returns every armed breakpoint address, sorted ascending.
func (d *Debugger) Breakpoints() []uint32 {
	addrs := make([]uint32, 0, len(d.breakpoints))
	for a := range d.breakpoints {
		addrs = append(addrs, a)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })
	return addrs
}

// Step executes up to n instructions, or fewer if the CPU halts or errors
// first. Before each instruction after the first it checks for an armed
// breakpoint at pc (so a breakpoint stops the debugger right at the marked
// address, without running the instruction there); the first instruction
// always runs, even when a breakpoint sits at the starting pc.
func (d *Debugger) Step(n int) StepResult {
	for i := 0; i < n; i++ {
		if i > 0 && d.breakpoints[d.CPU.pc()] {
			return StepResult{Reason: StopBreakpoint, StepsExecuted: i}
		}
		if err := d.CPU.Step(); err != nil {
			if err == ErrHalted {
				return StepResult{Reason: StopHalted, StepsExecuted: i + 1}
			}
			return StepResult{Reason: StopError, StepsExecuted: i + 1, Err: err}
		}
	}
	return StepResult{Reason: StopStep, StepsExecuted: n}
}

// Continue runs until a breakpoint, a halt, or an error stops it. A
// breakpoint already sitting at pc when Continue is called does not fire
// immediately, since the caller just placed it there by stepping to this
// address; execution stops the next time pc returns to an armed address.
func (d *Debugger) Continue() StepResult {
	steps := 0
	for {
		if err := d.CPU.Step(); err != nil {
			steps++
			if err == ErrHalted {
				return StepResult{Reason: StopHalted, StepsExecuted: steps}
			}
			return StepResult{Reason: StopError, StepsExecuted: steps, Err: err}
		}
		steps++
		if d.breakpoints[d.CPU.pc()] {
			return StepResult{Reason: StopBreakpoint, StepsExecuted: steps}
		}
	}
}

// PC returns the CPU's current program counter.
func (d *Debugger) PC() uint32 { return d.CPU.pc() }

// DecodeAt decodes the instruction word at addr without executing it, for
// disassembly-pane display.
func (d *Debugger) DecodeAt(addr uint32) isa.Word {
	var w isa.Word
	for i := range w {
		w[i] = d.CPU.Mem.ReadByte(addr + uint32(i))
	}
	return w
}
