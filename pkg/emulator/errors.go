package emulator

import (
	"errors"
	"fmt"
)

// ErrHalted is returned by Step/Run when the CPU executes HALT. It is not a
// failure: callers should treat it as the normal end of a program and
// inspect CPU state afterward.
var ErrHalted = errors.New("emulator: halted")

// ErrDivideByZero is returned when a DIV instruction's divisor register is
// zero. The original emulator performs this as an ordinary C++ integer
// divide, which is undefined behavior; there is no idiomatic way to carry
// that forward; returning an error instead of letting a Go runtime panic
// escape keeps a single misbehaving program from taking an embedding
// debugger or test process down with it.
var ErrDivideByZero = errors.New("emulator: division by zero")

func errf(format string, args ...any) error {
	return fmt.Errorf("emulator: "+format, args...)
}
