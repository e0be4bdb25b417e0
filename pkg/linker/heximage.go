package linker

import (
	"fmt"
	"io"

	"golang.org/x/exp/slices"
)

// WriteHexImage renders every placed output section as a hex memory image:
// each line starts with the lowercase hex address of its first byte
// (zero-padded to at least 4 digits) followed by a colon, then up to 8 space-separated two-digit hex
// bytes. A new line starts whenever a line fills up or the next byte isn't
// contiguous with the last one written, i.e. at the start of every
// output section, since sections are rarely adjacent.
//
// This mirrors the original linker's output() line-wrapping exactly, and
// is the format pkg/emulator's loader expects back.
func (l *Linker) WriteHexImage(w io.Writer) error {
	type run struct {
		location uint32
		content  []byte
	}
	runs := make([]run, 0, len(l.outSections))
	for _, out := range l.outSections {
		if len(out.content) == 0 {
			continue
		}
		runs = append(runs, run{location: out.location, content: out.content})
	}
	slices.SortFunc(runs, func(a, b run) int {
		if a.location < b.location {
			return -1
		}
		if a.location > b.location {
			return 1
		}
		return 0
	})

	const bytesPerLine = 8
	for _, r := range runs {
		for i := 0; i < len(r.content); i++ {
			if i%bytesPerLine == 0 {
				if i > 0 {
					if _, err := io.WriteString(w, "\n"); err != nil {
						return err
					}
				}
				if _, err := fmt.Fprintf(w, "%04x:", r.location+uint32(i)); err != nil {
					return err
				}
			}
			if _, err := fmt.Fprintf(w, " %02x", r.content[i]); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, "\n"); err != nil {
			return err
		}
	}
	return nil
}
