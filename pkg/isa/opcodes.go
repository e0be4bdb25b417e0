// Package isa defines the 32-bit load/store instruction encoding shared by
// the assembler, linker and emulator: the nibble layout, the opcode/mode
// numbering, and the sign-extension rule for the 12-bit displacement field.
package isa

// OpCode is the high nibble (OC) of an encoded instruction word.
type OpCode byte

const (
	OpHalt  OpCode = 0x0
	OpInt   OpCode = 0x1
	OpCall  OpCode = 0x2
	OpJump  OpCode = 0x3
	OpXchg  OpCode = 0x4
	OpArit  OpCode = 0x5
	OpLog   OpCode = 0x6
	OpShift OpCode = 0x7
	OpStore OpCode = 0x8
	OpLoad  OpCode = 0x9
)

// Mode is the second nibble (MOD) of an encoded instruction word; its
// meaning depends on OpCode, per the family tables below.
type Mode byte

// CALL modes.
const (
	ModCallDir Mode = 0x0 // pc = A + B + D
	ModCallInd Mode = 0x1 // pc = mem[A + B + D]
)

// JUMP/BRANCH modes.
const (
	ModJmp  Mode = 0x0
	ModJeq  Mode = 0x1
	ModJne  Mode = 0x2
	ModJgt  Mode = 0x3
	ModBr   Mode = 0x8 // indirect jmp: pc = mem[A+D]
	ModBeq  Mode = 0x9
	ModBne  Mode = 0xA
	ModBgt  Mode = 0xB
)

// ARIT modes.
const (
	ModAdd Mode = 0x0
	ModSub Mode = 0x1
	ModMul Mode = 0x2
	ModDiv Mode = 0x3
)

// LOG modes.
const (
	ModNot Mode = 0x0
	ModAnd Mode = 0x1
	ModOr  Mode = 0x2
	ModXor Mode = 0x3
)

// SHIFT modes.
const (
	ModShl Mode = 0x0
	ModShr Mode = 0x1
)

// STORE modes.
const (
	ModStDir  Mode = 0x0 // mem[A+B+D] = C
	ModStPush Mode = 0x1 // A += D; mem[A] = C
	ModStInd  Mode = 0x2 // mem[mem[A+B+D]] = C
)

// LOAD/CSR modes.
const (
	ModLdGprCsr Mode = 0x0 // gpr[A] = csr[B]
	ModLdGprGpr Mode = 0x1 // gpr[A] = gpr[B] + D
	ModLdGprMem Mode = 0x2 // gpr[A] = mem[B+C+D]
	ModLdGprPop Mode = 0x3 // gpr[A] = mem[B]; gpr[B] += D
	ModLdCsrGpr Mode = 0x4 // csr[A] = gpr[B]
	ModLdCsrCsr Mode = 0x5 // csr[A] = csr[B] + D
	ModLdCsrMem Mode = 0x6 // csr[A] = mem[B+C+D]
	ModLdCsrPop Mode = 0x7 // csr[A] = mem[B]; gpr[B] += D
)

const (
	// PC and SP are general-purpose register aliases, not separate storage.
	RegPC = 15
	RegSP = 14

	// Control/status register indices.
	CSRStatus  = 0
	CSRHandler = 1
	CSRCause   = 2

	NumGPR = 16
	NumCSR = 3
)

// CSRName returns the mnemonic name of a control/status register index, or
// "" if out of range.
func CSRName(csr int) string {
	switch csr {
	case CSRStatus:
		return "status"
	case CSRHandler:
		return "handler"
	case CSRCause:
		return "cause"
	default:
		return ""
	}
}
