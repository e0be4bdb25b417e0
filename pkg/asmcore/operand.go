package asmcore

// OperandKind classifies an instruction operand's addressing mode. The
// eight forms mirror the concrete syntax in internal/asmsyntax: a leading
// `$` selects an immediate/value form, a bare memory-style expression
// selects its direct counterpart, and `%r<n>`/`[%r<n> ...]` select the
// register forms.
type OperandKind int

const (
	// Immediate is `$<literal>`: the literal value itself.
	Immediate OperandKind = iota
	// SymbolValue is `$<symbol>`: the symbol's value itself (not the
	// contents of the memory location it names).
	SymbolValue
	// LiteralDirect is `<literal>`: the 32-bit word at that memory address.
	LiteralDirect
	// SymbolDirect is `<symbol>`: the 32-bit word at the symbol's address.
	SymbolDirect
	// RegisterDirect is `%r<n>`: the register's value.
	RegisterDirect
	// RegisterIndirect is `[%r<n>]`: the word at the address held in the
	// register.
	RegisterIndirect
	// RegisterLiteral is `[%r<n> + <literal>]`: the word at register+literal.
	RegisterLiteral
	// RegisterSymbol is `[%r<n> + <symbol>]`: the word at register+symbol.
	// Both ld and st reject it with a "symbol value unknown" diagnostic,
	// and branches accept only literal or symbol addresses.
	RegisterSymbol
)

// Operand is one decoded instruction operand, already classified by the
// textual front end into one of the eight addressing forms.
type Operand struct {
	Kind    OperandKind
	Literal int32
	Symbol  string
	Reg     byte
}

func OperandImmediate(v int32) Operand       { return Operand{Kind: Immediate, Literal: v} }
func OperandSymbolValue(name string) Operand { return Operand{Kind: SymbolValue, Symbol: name} }
func OperandLiteralDirect(v int32) Operand   { return Operand{Kind: LiteralDirect, Literal: v} }
func OperandSymbolDirect(name string) Operand {
	return Operand{Kind: SymbolDirect, Symbol: name}
}
func OperandRegisterDirect(r byte) Operand   { return Operand{Kind: RegisterDirect, Reg: r} }
func OperandRegisterIndirect(r byte) Operand { return Operand{Kind: RegisterIndirect, Reg: r} }
func OperandRegisterLiteral(r byte, v int32) Operand {
	return Operand{Kind: RegisterLiteral, Reg: r, Literal: v}
}
func OperandRegisterSymbol(r byte, name string) Operand {
	return Operand{Kind: RegisterSymbol, Reg: r, Symbol: name}
}
