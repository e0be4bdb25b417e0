package asmsyntax

import (
	"fmt"
	"strings"

	"github.com/mbranko/raluvm/pkg/asmcore"
	"github.com/mbranko/raluvm/pkg/isa"
)

// Parser drives a pkg/asmcore Builder from a token stream. One Parser
// handles one pass; cmd/asm calls Parse on the same source text again for
// pass two, which lexes it afresh into a new Parser, exactly as the
// original's yacc-driven front end re-reads the source once per pass.
type Parser struct {
	toks []Token
	pos  int
	b    asmcore.Builder
}

// Parse lexes src and drives every directive and instruction it describes
// against b, stopping at a `.end` directive or end of input.
func Parse(src string, b asmcore.Builder) error {
	lex := NewLexer(src)
	toks, err := lex.Tokens()
	if err != nil {
		return err
	}
	p := &Parser{toks: toks, b: b}
	return p.run()
}

func (p *Parser) cur() Token { return p.toks[p.pos] }
func (p *Parser) advance()   { p.pos++ }
func (p *Parser) line() int  { return p.cur().Line }

func (p *Parser) errf(format string, args ...any) error {
	return fmt.Errorf("line %d: %s", p.line(), fmt.Sprintf(format, args...))
}

func (p *Parser) run() error {
	for {
		for p.cur().Kind == TokNewline {
			p.advance()
		}
		if p.cur().Kind == TokEOF {
			return nil
		}
		stop, err := p.statement()
		if err != nil {
			return err
		}
		if stop {
			return nil
		}
		if err := p.expectEOL(); err != nil {
			return err
		}
	}
}

func (p *Parser) expectEOL() error {
	switch p.cur().Kind {
	case TokNewline:
		p.advance()
		return nil
	case TokEOF:
		return nil
	default:
		return p.errf("unexpected token %q at end of line", p.cur().Text)
	}
}

// statement parses one line's worth of source: an optional label, followed
// by an optional directive or instruction. It returns stop=true when it
// consumed `.end`.
func (p *Parser) statement() (bool, error) {
	if p.cur().Kind == TokIdent && !strings.HasPrefix(p.cur().Text, ".") && p.toks[p.pos+1].Kind == TokColon {
		name := p.cur().Text
		p.advance()
		p.advance()
		if err := p.b.Label(name); err != nil {
			return false, p.errf("%v", err)
		}
		if p.cur().Kind == TokNewline || p.cur().Kind == TokEOF {
			return false, nil
		}
	}

	if p.cur().Kind != TokIdent {
		return false, p.errf("expected a directive, instruction, or label, got %q", p.cur().Text)
	}

	name := p.cur().Text
	if strings.HasPrefix(name, ".") {
		p.advance()
		return p.directive(name)
	}

	mn, ok := isa.ParseMnemonic(name)
	if !ok {
		return false, p.errf("unknown mnemonic %q", name)
	}
	p.advance()
	return false, p.instruction(mn)
}

func (p *Parser) directive(name string) (bool, error) {
	switch strings.ToLower(name) {
	case ".section":
		n, err := p.expectIdent()
		if err != nil {
			return false, err
		}
		return false, p.b.Section(n)
	case ".global":
		names, err := p.identList()
		if err != nil {
			return false, err
		}
		return false, p.b.Global(names...)
	case ".extern":
		names, err := p.identList()
		if err != nil {
			return false, err
		}
		return false, p.b.Extern(names...)
	case ".word":
		for {
			if p.cur().Kind == TokNumber {
				n := p.cur().Int
				p.advance()
				if err := p.b.Word(int32(n)); err != nil {
					return false, p.errf("%v", err)
				}
			} else if p.cur().Kind == TokIdent {
				sym := p.cur().Text
				p.advance()
				if err := p.b.WordSymbol(sym); err != nil {
					return false, p.errf("%v", err)
				}
			} else {
				return false, p.errf(".word expects an integer or symbol, got %q", p.cur().Text)
			}
			if p.cur().Kind != TokComma {
				break
			}
			p.advance()
		}
		return false, nil
	case ".skip":
		if p.cur().Kind != TokNumber {
			return false, p.errf(".skip expects an integer, got %q", p.cur().Text)
		}
		n := p.cur().Int
		p.advance()
		return false, p.b.Skip(uint32(n))
	case ".end":
		return true, nil
	default:
		return false, p.errf("unknown directive %q", name)
	}
}

func (p *Parser) expectIdent() (string, error) {
	if p.cur().Kind != TokIdent {
		return "", p.errf("expected a name, got %q", p.cur().Text)
	}
	name := p.cur().Text
	p.advance()
	return name, nil
}

func (p *Parser) identList() ([]string, error) {
	var names []string
	for {
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		names = append(names, name)
		if p.cur().Kind != TokComma {
			return names, nil
		}
		p.advance()
	}
}

func (p *Parser) expectComma() error {
	if p.cur().Kind != TokComma {
		return p.errf("expected ',', got %q", p.cur().Text)
	}
	p.advance()
	return nil
}

func (p *Parser) expectRegister() (byte, error) {
	if p.cur().Kind != TokRegister {
		return 0, p.errf("expected a register, got %q", p.cur().Text)
	}
	r := byte(p.cur().Int)
	p.advance()
	return r, nil
}

func (p *Parser) expectCSR() (int, error) {
	if p.cur().Kind != TokCSR {
		return 0, p.errf("expected a CSR (%%status/%%handler/%%cause), got %q", p.cur().Text)
	}
	var csr int
	switch p.cur().Text {
	case "status":
		csr = isa.CSRStatus
	case "handler":
		csr = isa.CSRHandler
	case "cause":
		csr = isa.CSRCause
	}
	p.advance()
	return csr, nil
}

// operand parses one of the eight operand forms: $<int>,
// $<symbol>, <int>, <symbol>, %r<n>, [%r<n>], [%r<n> + <int>],
// [%r<n> + <symbol>].
func (p *Parser) operand() (asmcore.Operand, error) {
	switch p.cur().Kind {
	case TokDollar:
		p.advance()
		switch p.cur().Kind {
		case TokNumber:
			n := p.cur().Int
			p.advance()
			return asmcore.OperandImmediate(int32(n)), nil
		case TokIdent:
			sym := p.cur().Text
			p.advance()
			return asmcore.OperandSymbolValue(sym), nil
		default:
			return asmcore.Operand{}, p.errf("expected an integer or symbol after '$', got %q", p.cur().Text)
		}
	case TokNumber:
		n := p.cur().Int
		p.advance()
		return asmcore.OperandLiteralDirect(int32(n)), nil
	case TokIdent:
		sym := p.cur().Text
		p.advance()
		return asmcore.OperandSymbolDirect(sym), nil
	case TokRegister:
		r := byte(p.cur().Int)
		p.advance()
		return asmcore.OperandRegisterDirect(r), nil
	case TokLBracket:
		return p.bracketOperand()
	default:
		return asmcore.Operand{}, p.errf("expected an operand, got %q", p.cur().Text)
	}
}

func (p *Parser) bracketOperand() (asmcore.Operand, error) {
	p.advance() // consume '['
	reg, err := p.expectRegister()
	if err != nil {
		return asmcore.Operand{}, err
	}
	if p.cur().Kind == TokRBracket {
		p.advance()
		return asmcore.OperandRegisterIndirect(reg), nil
	}
	if p.cur().Kind != TokPlus {
		return asmcore.Operand{}, p.errf("expected '+' or ']', got %q", p.cur().Text)
	}
	p.advance()
	switch p.cur().Kind {
	case TokNumber:
		n := p.cur().Int
		p.advance()
		if err := p.expectRBracket(); err != nil {
			return asmcore.Operand{}, err
		}
		return asmcore.OperandRegisterLiteral(reg, int32(n)), nil
	case TokIdent:
		sym := p.cur().Text
		p.advance()
		if err := p.expectRBracket(); err != nil {
			return asmcore.Operand{}, err
		}
		return asmcore.OperandRegisterSymbol(reg, sym), nil
	default:
		return asmcore.Operand{}, p.errf("expected an integer or symbol after '+', got %q", p.cur().Text)
	}
}

func (p *Parser) expectRBracket() error {
	if p.cur().Kind != TokRBracket {
		return p.errf("expected ']', got %q", p.cur().Text)
	}
	p.advance()
	return nil
}

// instruction parses the operand list for mn and issues the matching
// Builder call(s). Two-register forms (add/sub/.../shr) and the
// CSR moves read "source, destination" left to right (`add %r2, %r1`
// accumulates into %r1); ld and st both put their true destination last,
// mirroring each other.
func (p *Parser) instruction(mn isa.Mnemonic) error {
	switch mn {
	case isa.MnHalt:
		return p.b.Halt()
	case isa.MnInt:
		return p.b.Int()
	case isa.MnRet:
		return p.b.Ret()
	case isa.MnIret:
		return p.b.Iret()
	case isa.MnPush:
		r, err := p.expectRegister()
		if err != nil {
			return err
		}
		return p.b.Push(r)
	case isa.MnPop:
		r, err := p.expectRegister()
		if err != nil {
			return err
		}
		return p.b.Pop(r)
	case isa.MnXchg:
		r1, r2, err := p.twoRegisters()
		if err != nil {
			return err
		}
		return p.b.Xchg(r1, r2)
	case isa.MnAdd, isa.MnSub, isa.MnMul, isa.MnDiv, isa.MnAnd, isa.MnOr, isa.MnXor, isa.MnShl, isa.MnShr:
		src, dst, err := p.twoRegisters()
		if err != nil {
			return err
		}
		return p.dispatchTwoRegister(mn, src, dst)
	case isa.MnNot:
		r, err := p.expectRegister()
		if err != nil {
			return err
		}
		return p.b.Not(r)
	case isa.MnCall:
		op, err := p.operand()
		if err != nil {
			return err
		}
		return p.b.Call(op)
	case isa.MnJmp:
		op, err := p.operand()
		if err != nil {
			return err
		}
		return p.b.Jmp(op)
	case isa.MnBeq, isa.MnBne, isa.MnBgt:
		r1, err := p.expectRegister()
		if err != nil {
			return err
		}
		if err := p.expectComma(); err != nil {
			return err
		}
		r2, err := p.expectRegister()
		if err != nil {
			return err
		}
		if err := p.expectComma(); err != nil {
			return err
		}
		op, err := p.operand()
		if err != nil {
			return err
		}
		return p.dispatchBranch(mn, r1, r2, op)
	case isa.MnLd:
		op, err := p.operand()
		if err != nil {
			return err
		}
		if err := p.expectComma(); err != nil {
			return err
		}
		dst, err := p.expectRegister()
		if err != nil {
			return err
		}
		return p.b.Ld(dst, op)
	case isa.MnSt:
		src, err := p.expectRegister()
		if err != nil {
			return err
		}
		if err := p.expectComma(); err != nil {
			return err
		}
		op, err := p.operand()
		if err != nil {
			return err
		}
		return p.b.St(src, op)
	case isa.MnCsrrd:
		csr, err := p.expectCSR()
		if err != nil {
			return err
		}
		if err := p.expectComma(); err != nil {
			return err
		}
		gpr, err := p.expectRegister()
		if err != nil {
			return err
		}
		return p.b.Csrrd(csr, gpr)
	case isa.MnCsrwr:
		gpr, err := p.expectRegister()
		if err != nil {
			return err
		}
		if err := p.expectComma(); err != nil {
			return err
		}
		csr, err := p.expectCSR()
		if err != nil {
			return err
		}
		return p.b.Csrwr(gpr, csr)
	default:
		return p.errf("mnemonic %q is not handled by the parser", mn)
	}
}

func (p *Parser) twoRegisters() (byte, byte, error) {
	a, err := p.expectRegister()
	if err != nil {
		return 0, 0, err
	}
	if err := p.expectComma(); err != nil {
		return 0, 0, err
	}
	b, err := p.expectRegister()
	if err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

func (p *Parser) dispatchTwoRegister(mn isa.Mnemonic, src, dst byte) error {
	switch mn {
	case isa.MnAdd:
		return p.b.Add(src, dst)
	case isa.MnSub:
		return p.b.Sub(src, dst)
	case isa.MnMul:
		return p.b.Mul(src, dst)
	case isa.MnDiv:
		return p.b.Div(src, dst)
	case isa.MnAnd:
		return p.b.And(src, dst)
	case isa.MnOr:
		return p.b.Or(src, dst)
	case isa.MnXor:
		return p.b.Xor(src, dst)
	case isa.MnShl:
		return p.b.Shl(src, dst)
	case isa.MnShr:
		return p.b.Shr(src, dst)
	default:
		return p.errf("internal error: %q is not a two-register mnemonic", mn)
	}
}

func (p *Parser) dispatchBranch(mn isa.Mnemonic, r1, r2 byte, op asmcore.Operand) error {
	switch mn {
	case isa.MnBeq:
		return p.b.Beq(r1, r2, op)
	case isa.MnBne:
		return p.b.Bne(r1, r2, op)
	case isa.MnBgt:
		return p.b.Bgt(r1, r2, op)
	default:
		return p.errf("internal error: %q is not a branch mnemonic", mn)
	}
}
