package asmcore

import "fmt"

// AssemblyError reports a fatal assembly-time condition: a redefined
// symbol, an undefined global, or an operand shape an instruction cannot
// take. The original tool calls exit(-1) on each of these; the Go builder
// returns an error instead so the caller (cmd/asm) controls the exit path
// and can attach source position information from the surrounding parser.
type AssemblyError struct {
	Op  string
	Msg string
}

func (e *AssemblyError) Error() string {
	if e.Op == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Msg)
}

func errf(op, format string, args ...any) error {
	return &AssemblyError{Op: op, Msg: fmt.Sprintf(format, args...)}
}
