package emulator

import "github.com/mbranko/raluvm/pkg/isa"

// Trap causes, matching the original's cause values: 1 for any invalid
// instruction or addressing mode, 4 for the INT software interrupt.
const (
	CauseInvalidInstruction uint32 = 1
	CauseSoftwareInterrupt  uint32 = 4
)

// Run steps the CPU until it halts or a non-halt error occurs. ErrHalted
// is returned on the normal HALT path, exactly as Step returns it.
func (c *CPU) Run() error {
	for {
		if err := c.Step(); err != nil {
			return err
		}
	}
}

// Step fetches and executes a single instruction. It returns ErrHalted
// after executing HALT (the program's only intended termination), or any
// other error for a condition the emulator itself cannot recover from
// (currently only ErrDivideByZero; everything else the original would
// treat as undefined behavior is instead routed through the CPU's own
// software trap mechanism).
func (c *CPU) Step() error {
	var w isa.Word
	for i := range w {
		w[i] = c.Mem.ReadByte(c.pc())
		c.advancePC(1)
	}
	oc, mod, a, b, cc, d := isa.Decode(w)

	switch oc {
	case isa.OpHalt:
		c.Halted = true
		return ErrHalted
	case isa.OpInt:
		return c.trap(CauseSoftwareInterrupt)
	case isa.OpCall:
		return c.execCall(mod, a, b, d)
	case isa.OpJump:
		return c.execJump(mod, a, b, cc, d)
	case isa.OpXchg:
		c.execXchg(b, cc)
		return nil
	case isa.OpArit:
		return c.execArit(mod, a, b, cc)
	case isa.OpLog:
		return c.execLog(mod, a, b, cc)
	case isa.OpShift:
		return c.execShift(mod, a, b, cc)
	case isa.OpStore:
		return c.execStore(mod, a, b, cc, d)
	case isa.OpLoad:
		return c.execLoad(mod, a, b, cc, d)
	default:
		return c.trap(CauseInvalidInstruction)
	}
}

// trap implements the software-interrupt entry sequence: push pc then
// status, record cause, clear the interrupt-enable bit, and jump to the
// handler. Both INT and an invalid instruction/mode enter through here.
func (c *CPU) trap(cause uint32) error {
	c.push(c.pc())
	c.push(c.CSR[isa.CSRStatus])
	c.CSR[isa.CSRCause] = cause
	c.CSR[isa.CSRStatus] &^= 0x1
	c.setPC(c.CSR[isa.CSRHandler])
	return nil
}

func (c *CPU) execCall(mod isa.Mode, a, b byte, d int32) error {
	target := c.GPR[a] + c.GPR[b] + uint32(d)
	c.push(c.pc())
	switch mod {
	case isa.ModCallDir:
		c.setPC(target)
	case isa.ModCallInd:
		c.setPC(c.Mem.ReadWord(target))
	default:
		return c.trap(CauseInvalidInstruction)
	}
	return nil
}

func (c *CPU) execJump(mod isa.Mode, a, b, cc byte, d int32) error {
	direct := c.GPR[a] + uint32(d)
	switch mod {
	case isa.ModJmp:
		c.setPC(direct)
	case isa.ModJeq:
		if c.GPR[b] == c.GPR[cc] {
			c.setPC(direct)
		}
	case isa.ModJne:
		if c.GPR[b] != c.GPR[cc] {
			c.setPC(direct)
		}
	case isa.ModJgt:
		if int32(c.GPR[b]) > int32(c.GPR[cc]) {
			c.setPC(direct)
		}
	case isa.ModBr:
		c.setPC(c.Mem.ReadWord(direct))
	case isa.ModBeq:
		if c.GPR[b] == c.GPR[cc] {
			c.setPC(c.Mem.ReadWord(direct))
		}
	case isa.ModBne:
		if c.GPR[b] != c.GPR[cc] {
			c.setPC(c.Mem.ReadWord(direct))
		}
	case isa.ModBgt:
		if int32(c.GPR[b]) > int32(c.GPR[cc]) {
			c.setPC(c.Mem.ReadWord(direct))
		}
	default:
		return c.trap(CauseInvalidInstruction)
	}
	return nil
}

// execXchg swaps two distinct registers.
//
// The original assembler's xchg_instruction only ever encodes b == c
// (it never fills in the destination register field at all), so every
// XCHG the original toolchain can produce swaps a register with itself.
// The emulator's own dispatch here already reads b and c as independent
// fields; it is the encoder that was broken, so this side needs no
// fix; it is exactly the original.
func (c *CPU) execXchg(b, cc byte) {
	tmp := c.GPR[b]
	c.setGPR(b, c.GPR[cc])
	c.setGPR(cc, tmp)
}

func (c *CPU) execArit(mod isa.Mode, a, b, cc byte) error {
	switch mod {
	case isa.ModAdd:
		c.setGPR(a, c.GPR[b]+c.GPR[cc])
	case isa.ModSub:
		c.setGPR(a, c.GPR[b]-c.GPR[cc])
	case isa.ModMul:
		c.setGPR(a, c.GPR[b]*c.GPR[cc])
	case isa.ModDiv:
		if c.GPR[cc] == 0 {
			return ErrDivideByZero
		}
		c.setGPR(a, c.GPR[b]/c.GPR[cc])
	default:
		return c.trap(CauseInvalidInstruction)
	}
	return nil
}

func (c *CPU) execLog(mod isa.Mode, a, b, cc byte) error {
	switch mod {
	case isa.ModNot:
		c.setGPR(a, ^c.GPR[b])
	case isa.ModAnd:
		c.setGPR(a, c.GPR[b]&c.GPR[cc])
	case isa.ModOr:
		c.setGPR(a, c.GPR[b]|c.GPR[cc])
	case isa.ModXor:
		c.setGPR(a, c.GPR[b]^c.GPR[cc])
	default:
		return c.trap(CauseInvalidInstruction)
	}
	return nil
}

func (c *CPU) execShift(mod isa.Mode, a, b, cc byte) error {
	switch mod {
	case isa.ModShl:
		c.setGPR(a, c.GPR[b]<<(c.GPR[cc]&0x1F))
	case isa.ModShr:
		c.setGPR(a, c.GPR[b]>>(c.GPR[cc]&0x1F))
	default:
		return c.trap(CauseInvalidInstruction)
	}
	return nil
}

func (c *CPU) execStore(mod isa.Mode, a, b, cc byte, d int32) error {
	switch mod {
	case isa.ModStDir:
		c.Mem.WriteWord(c.GPR[a]+c.GPR[b]+uint32(d), c.GPR[cc])
	case isa.ModStInd:
		c.Mem.WriteWord(c.Mem.ReadWord(c.GPR[a]+c.GPR[b]+uint32(d)), c.GPR[cc])
	case isa.ModStPush:
		c.setGPR(a, c.GPR[a]+uint32(d))
		c.Mem.WriteWord(c.GPR[a], c.GPR[cc])
	default:
		return c.trap(CauseInvalidInstruction)
	}
	return nil
}

func (c *CPU) execLoad(mod isa.Mode, a, b, cc byte, d int32) error {
	switch mod {
	case isa.ModLdGprCsr:
		c.setGPR(a, c.CSR[b])
	case isa.ModLdGprGpr:
		c.setGPR(a, c.GPR[b]+uint32(d))
	case isa.ModLdGprMem:
		c.setGPR(a, c.Mem.ReadWord(c.GPR[b]+c.GPR[cc]+uint32(d)))
	case isa.ModLdGprPop:
		c.setGPR(a, c.Mem.ReadWord(c.GPR[b]))
		c.setGPR(b, c.GPR[b]+uint32(d))
	case isa.ModLdCsrGpr:
		c.CSR[a] = c.GPR[b]
	case isa.ModLdCsrCsr:
		c.CSR[a] = c.CSR[b] + uint32(d)
	case isa.ModLdCsrMem:
		c.CSR[a] = c.Mem.ReadWord(c.GPR[b] + c.GPR[cc] + uint32(d))
	case isa.ModLdCsrPop:
		c.CSR[a] = c.Mem.ReadWord(c.GPR[b])
		c.setGPR(b, c.GPR[b]+uint32(d))
	default:
		return c.trap(CauseInvalidInstruction)
	}
	return nil
}
