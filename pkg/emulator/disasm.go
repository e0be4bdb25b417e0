package emulator

import (
	"fmt"

	"github.com/mbranko/raluvm/pkg/isa"
)

// Disassemble renders the instruction word at w as one line of text for the
// debugger's disassembly pane. It is a display aid only: it does not drive
// execution, and invalid encodings render as "???" rather than failing.
func Disassemble(w isa.Word) string {
	oc, mod, a, b, c, d := isa.Decode(w)
	r := func(n byte) string { return fmt.Sprintf("r%d", n) }

	switch oc {
	case isa.OpHalt:
		return "halt"
	case isa.OpInt:
		return "int"
	case isa.OpCall:
		switch mod {
		case isa.ModCallDir:
			return fmt.Sprintf("call %s+%s+%d", r(a), r(b), d)
		case isa.ModCallInd:
			return fmt.Sprintf("call [%s+%s+%d]", r(a), r(b), d)
		}
	case isa.OpJump:
		switch mod {
		case isa.ModJmp:
			return fmt.Sprintf("jmp %s+%d", r(a), d)
		case isa.ModJeq:
			return fmt.Sprintf("jeq %s, %s, %s+%d", r(b), r(c), r(a), d)
		case isa.ModJne:
			return fmt.Sprintf("jne %s, %s, %s+%d", r(b), r(c), r(a), d)
		case isa.ModJgt:
			return fmt.Sprintf("jgt %s, %s, %s+%d", r(b), r(c), r(a), d)
		case isa.ModBr:
			return fmt.Sprintf("br [%s+%d]", r(a), d)
		case isa.ModBeq:
			return fmt.Sprintf("beq %s, %s, [%s+%d]", r(b), r(c), r(a), d)
		case isa.ModBne:
			return fmt.Sprintf("bne %s, %s, [%s+%d]", r(b), r(c), r(a), d)
		case isa.ModBgt:
			return fmt.Sprintf("bgt %s, %s, [%s+%d]", r(b), r(c), r(a), d)
		}
	case isa.OpXchg:
		return fmt.Sprintf("xchg %s, %s", r(b), r(c))
	case isa.OpArit:
		names := map[isa.Mode]string{isa.ModAdd: "add", isa.ModSub: "sub", isa.ModMul: "mul", isa.ModDiv: "div"}
		return fmt.Sprintf("%s %s, %s", names[mod], r(c), r(a))
	case isa.OpLog:
		if mod == isa.ModNot {
			return fmt.Sprintf("not %s", r(a))
		}
		names := map[isa.Mode]string{isa.ModAnd: "and", isa.ModOr: "or", isa.ModXor: "xor"}
		return fmt.Sprintf("%s %s, %s", names[mod], r(c), r(a))
	case isa.OpShift:
		names := map[isa.Mode]string{isa.ModShl: "shl", isa.ModShr: "shr"}
		return fmt.Sprintf("%s %s, %s", names[mod], r(c), r(a))
	case isa.OpStore:
		switch mod {
		case isa.ModStDir:
			return fmt.Sprintf("st %s, [%s+%s+%d]", r(c), r(a), r(b), d)
		case isa.ModStPush:
			return fmt.Sprintf("st %s, [%s+%d]", r(c), r(a), d)
		case isa.ModStInd:
			return fmt.Sprintf("st %s, [[%s+%s+%d]]", r(c), r(a), r(b), d)
		}
	case isa.OpLoad:
		switch mod {
		case isa.ModLdGprCsr:
			return fmt.Sprintf("csrrd %s, %s", isa.CSRName(int(b)), r(a))
		case isa.ModLdGprGpr:
			return fmt.Sprintf("ld %s+%d, %s", r(b), d, r(a))
		case isa.ModLdGprMem:
			return fmt.Sprintf("ld [%s+%s+%d], %s", r(b), r(c), d, r(a))
		case isa.ModLdGprPop:
			return fmt.Sprintf("ld [%s], %s; %s+=%d", r(b), r(a), r(b), d)
		case isa.ModLdCsrGpr:
			return fmt.Sprintf("csrwr %s, %s", r(b), isa.CSRName(int(a)))
		case isa.ModLdCsrCsr:
			return fmt.Sprintf("csrwr %s+%d, %s", isa.CSRName(int(b)), d, isa.CSRName(int(a)))
		case isa.ModLdCsrMem:
			return fmt.Sprintf("csrwr [%s+%s+%d], %s", r(b), r(c), d, isa.CSRName(int(a)))
		case isa.ModLdCsrPop:
			return fmt.Sprintf("csrwr [%s], %s; %s+=%d", r(b), isa.CSRName(int(a)), r(b), d)
		}
	}
	return "???"
}
