package asmcore

import (
	"golang.org/x/exp/slices"

	"github.com/mbranko/raluvm/pkg/isa"
	"github.com/mbranko/raluvm/pkg/objfile"
)

// Builder is the contract the textual front end (internal/asmsyntax) drives:
// one call per directive or decoded instruction, in source order, run
// twice over the same input (once per pass). Every method returns an
// error instead of the original tool's exit(-1); the caller is expected
// to stop driving the builder on the first non-nil error, since assembler
// state past that point is not guaranteed consistent.
type Builder interface {
	Label(name string) error
	Global(names ...string) error
	Extern(names ...string) error
	Section(name string) error
	Word(literal int32) error
	WordSymbol(name string) error
	Skip(n uint32) error
	End() (*objfile.Module, error)

	Halt() error
	Int() error
	Ret() error
	Iret() error
	Call(op Operand) error
	Jmp(op Operand) error
	Beq(gpr1, gpr2 byte, op Operand) error
	Bne(gpr1, gpr2 byte, op Operand) error
	Bgt(gpr1, gpr2 byte, op Operand) error
	Push(reg byte) error
	Pop(reg byte) error
	Xchg(r1, r2 byte) error
	Add(src, dst byte) error
	Sub(src, dst byte) error
	Mul(src, dst byte) error
	Div(src, dst byte) error
	Not(reg byte) error
	And(src, dst byte) error
	Or(src, dst byte) error
	Xor(src, dst byte) error
	Shl(src, dst byte) error
	Shr(src, dst byte) error
	Ld(dst byte, op Operand) error
	St(src byte, op Operand) error
	Csrrd(csr int, gpr byte) error
	Csrwr(gpr byte, csr int) error
}

// Options tunes assembler behavior for compatibility with pre-fix object
// streams. See FitsSigned12 in pkg/isa for the bug this guards.
type Options struct {
	// LegacyPoolAlways reproduces the original tool's unsatisfiable
	// literal-fit predicate, routing every literal through the pool
	// regardless of size.
	LegacyPoolAlways bool
}

type localSymbol struct {
	value   uint32
	global  bool
	defined bool
	section string
	extern  bool
}

// Assembler is the concrete, stateful two-pass Builder. One Assembler
// assembles one module: construct it, drive it with a Builder-aware
// front end once per pass (End returns nil, nil after pass one to signal
// "run me again"), and take the *objfile.Module End returns after pass
// two.
type Assembler struct {
	opts Options

	secondPass bool
	symbols    map[string]*localSymbol

	sectionOrder []string
	sections     map[string]*workingSection
	current      *workingSection
	lc           uint32

	out *objfile.Module
}

var _ Builder = (*Assembler)(nil)

// NewAssembler returns a fresh two-pass assembler.
func NewAssembler(opts Options) *Assembler {
	return &Assembler{
		opts:     opts,
		symbols:  make(map[string]*localSymbol),
		sections: make(map[string]*workingSection),
	}
}

// Pass reports which pass the assembler is currently on: 1 or 2.
func (as *Assembler) Pass() int {
	if as.secondPass {
		return 2
	}
	return 1
}

func (as *Assembler) symbol(name string) *localSymbol {
	sym, ok := as.symbols[name]
	if !ok {
		sym = &localSymbol{}
		as.symbols[name] = sym
	}
	return sym
}

func (as *Assembler) symbolUsed(name string) {
	as.symbol(name)
	as.current.symbols.Register(name)
}

func (as *Assembler) emitRelocation(sec *workingSection, name string, location uint32) {
	sym := as.symbol(name)
	if sym.global || !sym.defined {
		sec.relocations = append(sec.relocations, objfile.Relocation{Offset: location, Addend: 0, Name: name})
	} else {
		sec.relocations = append(sec.relocations, objfile.Relocation{Offset: location, Addend: int32(sym.value), Name: sym.section})
	}
}

func (as *Assembler) makeRelocations(sec *workingSection) {
	for _, name := range sec.symbols.Entries() {
		off, _ := sec.symbols.Offset(name)
		as.emitRelocation(sec, name, off)
	}
}

func (as *Assembler) emit(oc isa.OpCode, mod isa.Mode, a, b, c byte, d int32) {
	if as.secondPass && as.current != nil {
		w := isa.Encode(oc, mod, a, b, c, d)
		as.current.addBytes(w[:]...)
	}
}

// Label implements Builder.
func (as *Assembler) Label(name string) error {
	if as.secondPass {
		return nil
	}
	sym := as.symbol(name)
	if sym.defined {
		return errf("label", "symbol %q defined twice", name)
	}
	sym.defined = true
	sym.section = as.current.name
	sym.value = as.lc
	return nil
}

// Global implements Builder.
func (as *Assembler) Global(names ...string) error {
	if as.secondPass {
		for _, name := range names {
			if sym, ok := as.symbols[name]; !ok || !sym.defined {
				return errf("global", "symbol %q not defined", name)
			}
		}
		return nil
	}
	for _, name := range names {
		as.symbol(name).global = true
	}
	return nil
}

// Extern implements Builder. Unlike the original tool (where `.extern` was
// a complete no-op and relied on some other directive making the symbol
// global), this records the symbol as an extern global outright, closing
// that silently-identical-to-undefined-global gap.
func (as *Assembler) Extern(names ...string) error {
	if as.secondPass {
		return nil
	}
	for _, name := range names {
		sym := as.symbol(name)
		sym.global = true
		sym.extern = true
	}
	return nil
}

// Section implements Builder.
func (as *Assembler) Section(name string) error {
	if as.secondPass {
		if as.current != nil {
			as.current.flush()
			as.makeRelocations(as.current)
			as.out.Sections = append(as.out.Sections, as.current.toObjfile())
		}
		sec, ok := as.sections[name]
		if !ok {
			return errf("section", "section %q was not seen in pass one", name)
		}
		as.current = sec
	} else {
		if as.current != nil {
			as.current.allocatePools(as.lc)
			as.sections[as.current.name] = as.current
			as.sectionOrder = append(as.sectionOrder, as.current.name)
		}
		as.current = newWorkingSection(name)
	}
	as.lc = 0
	return nil
}

// Word implements Builder: a literal data word, not a pool entry.
func (as *Assembler) Word(literal int32) error {
	if as.secondPass && as.current != nil {
		as.current.writeInt32At(literal, as.lc)
	}
	as.lc += 4
	return nil
}

// WordSymbol implements Builder: a data word holding a symbol's resolved
// address, patched by the linker via a relocation.
func (as *Assembler) WordSymbol(name string) error {
	if as.secondPass {
		if as.current != nil {
			as.emitRelocation(as.current, name, as.lc)
			as.current.growTo(as.lc + 4)
		}
	} else {
		as.symbol(name)
	}
	as.lc += 4
	return nil
}

// Skip implements Builder.
func (as *Assembler) Skip(n uint32) error {
	if as.secondPass && as.current != nil {
		as.current.growTo(as.lc + n)
	}
	as.lc += n
	return nil
}

// End implements Builder. Called once per pass. On the first call it
// closes out pass one and returns (nil, nil): the caller must re-drive
// the same directive/instruction sequence for pass two. On the second
// call it returns the finished module. Any further call is an error.
func (as *Assembler) End() (*objfile.Module, error) {
	if !as.secondPass {
		if as.current != nil {
			as.current.allocatePools(as.lc)
			as.sections[as.current.name] = as.current
			as.sectionOrder = append(as.sectionOrder, as.current.name)
		}
		as.current = nil
		as.lc = 0
		as.secondPass = true
		as.out = &objfile.Module{}
		return nil, nil
	}
	if as.out == nil {
		return nil, errf("end", "module already finalized: End called more than twice")
	}

	if as.current != nil {
		as.current.flush()
		as.makeRelocations(as.current)
		as.out.Sections = append(as.out.Sections, as.current.toObjfile())
		as.current = nil
	}

	names := make([]string, 0, len(as.symbols))
	for name := range as.symbols {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		sym := as.symbols[name]
		if !sym.global {
			continue
		}
		as.out.Symbols = append(as.out.Symbols, objfile.Symbol{
			Name:    name,
			Value:   sym.value,
			Defined: sym.defined,
			Section: sym.section,
			Extern:  sym.extern,
		})
	}

	mod := as.out
	as.out = nil
	return mod, nil
}

// Halt implements Builder.
func (as *Assembler) Halt() error {
	as.emit(isa.OpHalt, 0, 0, 0, 0, 0)
	as.lc += 4
	return nil
}

// Int implements Builder.
func (as *Assembler) Int() error {
	as.emit(isa.OpInt, 0, 0, 0, 0, 0)
	as.lc += 4
	return nil
}

// Ret implements Builder: pop pc.
func (as *Assembler) Ret() error {
	return as.Pop(isa.RegPC)
}

// Iret implements Builder: restore status, then pop pc.
func (as *Assembler) Iret() error {
	as.emit(isa.OpLoad, isa.ModLdCsrPop, isa.CSRStatus, isa.RegSP, 0, 4)
	as.lc += 4
	return as.Pop(isa.RegPC)
}

// Push implements Builder.
func (as *Assembler) Push(reg byte) error {
	as.emit(isa.OpStore, isa.ModStPush, isa.RegSP, 0, reg, -4)
	as.lc += 4
	return nil
}

// Pop implements Builder.
func (as *Assembler) Pop(reg byte) error {
	as.emit(isa.OpLoad, isa.ModLdGprPop, reg, isa.RegSP, 0, 4)
	as.lc += 4
	return nil
}

// Xchg implements Builder, swapping the two named registers. The original
// tool's xchg_instruction encoded both operand slots from the same source
// register, ignoring the destination entirely, a no-op exchange. This
// encodes both registers, which is also what the emulator's own
// xchg_instruction already expects (it reads distinct B and C fields).
func (as *Assembler) Xchg(r1, r2 byte) error {
	as.emit(isa.OpXchg, 0, 0, r1, r2, 0)
	as.lc += 4
	return nil
}

func (as *Assembler) arit(mod isa.Mode, src, dst byte) error {
	as.emit(isa.OpArit, mod, dst, dst, src, 0)
	as.lc += 4
	return nil
}

func (as *Assembler) Add(src, dst byte) error { return as.arit(isa.ModAdd, src, dst) }
func (as *Assembler) Sub(src, dst byte) error { return as.arit(isa.ModSub, src, dst) }
func (as *Assembler) Mul(src, dst byte) error { return as.arit(isa.ModMul, src, dst) }
func (as *Assembler) Div(src, dst byte) error { return as.arit(isa.ModDiv, src, dst) }

// Not implements Builder. The original tool's not_instruction emitted OC
// 0x5 (ARIT) instead of 0x6 (LOG). Under that opcode, with the emulator's
// own ARIT/ADD dispatch, a NOT instruction would silently execute as
// `gpr[reg] = gpr[reg] + gpr[0]`, i.e. leave the register unchanged. That
// is never what a NOT mnemonic can mean, so this emits the LOG opcode the
// ISA table actually defines for it.
func (as *Assembler) Not(reg byte) error {
	as.emit(isa.OpLog, isa.ModNot, reg, reg, 0, 0)
	as.lc += 4
	return nil
}

func (as *Assembler) log(mod isa.Mode, src, dst byte) error {
	as.emit(isa.OpLog, mod, dst, dst, src, 0)
	as.lc += 4
	return nil
}

func (as *Assembler) And(src, dst byte) error { return as.log(isa.ModAnd, src, dst) }
func (as *Assembler) Or(src, dst byte) error  { return as.log(isa.ModOr, src, dst) }
func (as *Assembler) Xor(src, dst byte) error { return as.log(isa.ModXor, src, dst) }

func (as *Assembler) shift(mod isa.Mode, src, dst byte) error {
	as.emit(isa.OpShift, mod, dst, dst, src, 0)
	as.lc += 4
	return nil
}

func (as *Assembler) Shl(src, dst byte) error { return as.shift(isa.ModShl, src, dst) }
func (as *Assembler) Shr(src, dst byte) error { return as.shift(isa.ModShr, src, dst) }

// Csrrd implements Builder: gpr = csr.
func (as *Assembler) Csrrd(csr int, gpr byte) error {
	as.emit(isa.OpLoad, isa.ModLdGprCsr, gpr, byte(csr), 0, 0)
	as.lc += 4
	return nil
}

// Csrwr implements Builder: csr = gpr.
func (as *Assembler) Csrwr(gpr byte, csr int) error {
	as.emit(isa.OpLoad, isa.ModLdCsrGpr, byte(csr), gpr, 0, 0)
	as.lc += 4
	return nil
}

func (as *Assembler) branchPassOne(op Operand) error {
	switch op.Kind {
	case LiteralDirect:
		if !isa.FitsSigned12(op.Literal, as.opts.LegacyPoolAlways) {
			as.current.literals.Register(op.Literal)
		}
	case SymbolDirect:
		as.symbolUsed(op.Symbol)
	default:
		return errf("branch", "operand must be a literal or symbol address")
	}
	as.lc += 4
	return nil
}

func (as *Assembler) branchPassTwo(oc isa.OpCode, directMode, poolMode isa.Mode, gpr1, gpr2 byte, op Operand) error {
	switch op.Kind {
	case LiteralDirect:
		if isa.FitsSigned12(op.Literal, as.opts.LegacyPoolAlways) {
			as.emit(oc, directMode, 0, gpr1, gpr2, op.Literal)
		} else {
			off, _ := as.current.literals.Offset(op.Literal)
			disp := int32(off) - int32(as.lc) - 4
			if !isa.FitsSigned12(disp, false) {
				return errf("branch", "pool displacement %d does not fit in 12 bits", disp)
			}
			as.emit(oc, poolMode, isa.RegPC, gpr1, gpr2, disp)
		}
	case SymbolDirect:
		off, _ := as.current.symbols.Offset(op.Symbol)
		disp := int32(off) - int32(as.lc) - 4
		if !isa.FitsSigned12(disp, false) {
			return errf("branch", "pool displacement %d does not fit in 12 bits", disp)
		}
		as.emit(oc, poolMode, isa.RegPC, gpr1, gpr2, disp)
	default:
		return errf("branch", "operand must be a literal or symbol address")
	}
	as.lc += 4
	return nil
}

// Call implements Builder.
func (as *Assembler) Call(op Operand) error {
	if as.secondPass {
		return as.branchPassTwo(isa.OpCall, isa.ModCallDir, isa.ModCallInd, 0, 0, op)
	}
	return as.branchPassOne(op)
}

// Jmp implements Builder.
func (as *Assembler) Jmp(op Operand) error {
	if as.secondPass {
		return as.branchPassTwo(isa.OpJump, isa.ModJmp, isa.ModBr, 0, 0, op)
	}
	return as.branchPassOne(op)
}

// Beq implements Builder.
func (as *Assembler) Beq(gpr1, gpr2 byte, op Operand) error {
	if as.secondPass {
		return as.branchPassTwo(isa.OpJump, isa.ModJeq, isa.ModBeq, gpr1, gpr2, op)
	}
	return as.branchPassOne(op)
}

// Bne implements Builder.
func (as *Assembler) Bne(gpr1, gpr2 byte, op Operand) error {
	if as.secondPass {
		return as.branchPassTwo(isa.OpJump, isa.ModJne, isa.ModBne, gpr1, gpr2, op)
	}
	return as.branchPassOne(op)
}

// Bgt implements Builder.
func (as *Assembler) Bgt(gpr1, gpr2 byte, op Operand) error {
	if as.secondPass {
		return as.branchPassTwo(isa.OpJump, isa.ModJgt, isa.ModBgt, gpr1, gpr2, op)
	}
	return as.branchPassOne(op)
}

func (as *Assembler) emitLoadMem(dst, base, index byte, d int32) {
	as.emit(isa.OpLoad, isa.ModLdGprMem, dst, base, index, d)
}

func (as *Assembler) emitLoadGpr(dst, src byte, d int32) {
	as.emit(isa.OpLoad, isa.ModLdGprGpr, dst, src, 0, d)
}

// Ld implements Builder.
func (as *Assembler) Ld(dst byte, op Operand) error {
	if as.secondPass {
		switch op.Kind {
		case Immediate:
			if isa.FitsSigned12(op.Literal, as.opts.LegacyPoolAlways) {
				as.emitLoadGpr(dst, 0, op.Literal)
			} else {
				off, _ := as.current.literals.Offset(op.Literal)
				disp := int32(off) - int32(as.lc) - 4
				if !isa.FitsSigned12(disp, false) {
					return errf("ld", "pool displacement %d does not fit in 12 bits", disp)
				}
				as.emitLoadMem(dst, isa.RegPC, 0, disp)
			}
			as.lc += 4
		case SymbolValue:
			off, _ := as.current.symbols.Offset(op.Symbol)
			disp := int32(off) - int32(as.lc) - 4
			if !isa.FitsSigned12(disp, false) {
				return errf("ld", "pool displacement %d does not fit in 12 bits", disp)
			}
			as.emitLoadMem(dst, isa.RegPC, 0, disp)
			as.lc += 4
		case LiteralDirect:
			if isa.FitsSigned12(op.Literal, as.opts.LegacyPoolAlways) {
				as.emitLoadMem(dst, 0, 0, op.Literal)
				as.lc += 4
			} else {
				off, _ := as.current.literals.Offset(op.Literal)
				disp := int32(off) - int32(as.lc) - 4
				if !isa.FitsSigned12(disp, false) {
					return errf("ld", "pool displacement %d does not fit in 12 bits", disp)
				}
				as.emitLoadMem(dst, isa.RegPC, 0, disp)
				as.emitLoadMem(dst, dst, 0, 0)
				as.lc += 8
			}
		case SymbolDirect:
			off, _ := as.current.symbols.Offset(op.Symbol)
			disp := int32(off) - int32(as.lc) - 4
			if !isa.FitsSigned12(disp, false) {
				return errf("ld", "pool displacement %d does not fit in 12 bits", disp)
			}
			as.emitLoadMem(dst, isa.RegPC, 0, disp)
			as.emitLoadMem(dst, dst, 0, 0)
			as.lc += 8
		case RegisterDirect:
			as.emit(isa.OpLoad, isa.ModLdGprGpr, dst, op.Reg, 0, 0)
			as.lc += 4
		case RegisterIndirect:
			as.emitLoadMem(dst, op.Reg, 0, 0)
			as.lc += 4
		case RegisterLiteral:
			as.emitLoadMem(dst, op.Reg, 0, op.Literal)
			as.lc += 4
		case RegisterSymbol:
			return errf("ld", "symbol value unknown in register+symbol addressing")
		}
		return nil
	}

	switch op.Kind {
	case Immediate:
		if !isa.FitsSigned12(op.Literal, as.opts.LegacyPoolAlways) {
			as.current.literals.Register(op.Literal)
		}
		as.lc += 4
	case SymbolValue:
		as.symbolUsed(op.Symbol)
		as.lc += 4
	case LiteralDirect:
		if !isa.FitsSigned12(op.Literal, as.opts.LegacyPoolAlways) {
			as.current.literals.Register(op.Literal)
			as.lc += 4
		}
		as.lc += 4
	case SymbolDirect:
		as.symbolUsed(op.Symbol)
		as.lc += 8
	case RegisterDirect, RegisterIndirect, RegisterLiteral:
		as.lc += 4
	case RegisterSymbol:
		return errf("ld", "symbol value unknown in register+symbol addressing")
	}
	return nil
}

// St implements Builder.
func (as *Assembler) St(src byte, op Operand) error {
	if as.secondPass {
		switch op.Kind {
		case Immediate:
			return errf("st", "cannot store to a literal")
		case SymbolValue:
			return errf("st", "cannot store to a symbol value")
		case LiteralDirect:
			if isa.FitsSigned12(op.Literal, as.opts.LegacyPoolAlways) {
				as.emit(isa.OpStore, isa.ModStDir, 0, 0, src, op.Literal)
			} else {
				off, _ := as.current.literals.Offset(op.Literal)
				disp := int32(off) - int32(as.lc) - 4
				if !isa.FitsSigned12(disp, false) {
					return errf("st", "pool displacement %d does not fit in 12 bits", disp)
				}
				as.emit(isa.OpStore, isa.ModStInd, isa.RegPC, 0, src, disp)
			}
			as.lc += 4
		case SymbolDirect:
			off, _ := as.current.symbols.Offset(op.Symbol)
			disp := int32(off) - int32(as.lc) - 4
			if !isa.FitsSigned12(disp, false) {
				return errf("st", "pool displacement %d does not fit in 12 bits", disp)
			}
			as.emit(isa.OpStore, isa.ModStInd, isa.RegPC, 0, src, disp)
			as.lc += 4
		case RegisterDirect:
			return errf("st", "cannot store to a register value")
		case RegisterIndirect:
			as.emit(isa.OpStore, isa.ModStDir, op.Reg, 0, src, 0)
			as.lc += 4
		case RegisterLiteral:
			if !isa.FitsSigned12(op.Literal, as.opts.LegacyPoolAlways) {
				return errf("st", "displacement %d does not fit in 12 bits", op.Literal)
			}
			as.emit(isa.OpStore, isa.ModStDir, op.Reg, 0, src, op.Literal)
			as.lc += 4
		case RegisterSymbol:
			return errf("st", "symbol value unknown in register+symbol addressing")
		}
		return nil
	}

	switch op.Kind {
	case Immediate:
		return errf("st", "cannot store to a literal")
	case SymbolValue:
		return errf("st", "cannot store to a symbol value")
	case LiteralDirect:
		if !isa.FitsSigned12(op.Literal, as.opts.LegacyPoolAlways) {
			as.current.literals.Register(op.Literal)
		}
		as.lc += 4
	case SymbolDirect:
		as.symbolUsed(op.Symbol)
		as.lc += 4
	case RegisterDirect:
		return errf("st", "cannot store to a register value")
	case RegisterIndirect, RegisterLiteral:
		as.lc += 4
	case RegisterSymbol:
		return errf("st", "symbol value unknown in register+symbol addressing")
	}
	return nil
}
