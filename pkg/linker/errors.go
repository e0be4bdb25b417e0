package linker

import "fmt"

// LinkError reports a fatal linking condition: multiple definition, an
// undefined symbol, a placement overlap, or an unresolved relocation
// target. The original tool calls exit(-1) for each of these; here they
// come back as errors so cmd/linker controls the exit path.
type LinkError struct {
	Msg string
}

func (e *LinkError) Error() string { return e.Msg }

func errf(format string, args ...any) error {
	return &LinkError{Msg: fmt.Sprintf(format, args...)}
}
