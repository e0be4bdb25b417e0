package objfile

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Write serializes a Module to the text object-file format: one block per
// section (bare name line, bare decimal length line, the section's entire
// hex content on a single line, then one "offset addend name" line per
// relocation, terminated by "---"), followed by a bare "Symbol table:"
// sentinel and one "name value defined section" line per global symbol.
func Write(w io.Writer, mod *Module) error {
	bw := bufio.NewWriter(w)

	for _, s := range mod.Sections {
		if _, err := fmt.Fprintf(bw, "%s\n%d\n", s.Name, s.Length()); err != nil {
			return err
		}
		if err := writeHexLine(bw, s.Content); err != nil {
			return err
		}
		for _, r := range s.Relocations {
			if _, err := fmt.Fprintf(bw, "%d %d %s\n", r.Offset, r.Addend, r.Name); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(bw, "---"); err != nil {
			return err
		}
	}

	if _, err := fmt.Fprintln(bw, "Symbol table:"); err != nil {
		return err
	}
	for _, sym := range mod.Symbols {
		section := sym.Section
		if section == "" {
			section = "UND"
		}
		if _, err := fmt.Fprintf(bw, "%s %d %d %s\n", sym.Name, sym.Value, boolToInt(sym.Defined), section); err != nil {
			return err
		}
	}

	return bw.Flush()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// writeHexLine writes a section's entire content as one line of
// space-separated two-digit lowercase hex bytes, exactly as the original
// assembler's print_section does in a single byte loop with one trailing
// newline; an empty section still gets the (blank) line.
func writeHexLine(bw *bufio.Writer, content []byte) error {
	parts := make([]string, len(content))
	for i, b := range content {
		parts[i] = fmt.Sprintf("%02x", b)
	}
	_, err := fmt.Fprintln(bw, strings.Join(parts, " "))
	return err
}

// Parse reads a Module previously serialized by Write.
func Parse(r io.Reader) (*Module, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	mod := &Module{}

	for sc.Scan() {
		line := sc.Text()
		if line == "Symbol table:" {
			for sc.Scan() {
				sym, err := parseSymbolLine(sc.Text())
				if err != nil {
					return nil, err
				}
				mod.Symbols = append(mod.Symbols, sym)
			}
			break
		}

		s, err := parseSection(sc, line)
		if err != nil {
			return nil, err
		}
		mod.Sections = append(mod.Sections, s)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return mod, nil
}

// parseSection reads one section block starting at its already-scanned
// name line: the decimal length line, the single hex content line, zero or
// more relocation lines, and the "---" terminator.
func parseSection(sc *bufio.Scanner, name string) (*Section, error) {
	if !sc.Scan() {
		return nil, fmt.Errorf("objfile: section %s missing length line", name)
	}
	length, err := strconv.Atoi(strings.TrimSpace(sc.Text()))
	if err != nil {
		return nil, fmt.Errorf("objfile: malformed length for section %s: %w", name, err)
	}

	if !sc.Scan() {
		return nil, fmt.Errorf("objfile: section %s missing content line", name)
	}
	content := make([]byte, 0, length)
	if line := strings.TrimSpace(sc.Text()); line != "" {
		for _, tok := range strings.Fields(line) {
			b, err := strconv.ParseUint(tok, 16, 8)
			if err != nil {
				return nil, fmt.Errorf("objfile: section %s: bad hex byte %q: %w", name, tok, err)
			}
			content = append(content, byte(b))
		}
	}
	if len(content) != length {
		return nil, fmt.Errorf("objfile: section %s: declared length %d, got %d bytes", name, length, len(content))
	}

	s := &Section{Name: name, Content: content}

	for sc.Scan() {
		line := sc.Text()
		if line == "---" {
			return s, nil
		}
		reloc, err := parseRelocationLine(line)
		if err != nil {
			return nil, err
		}
		s.Relocations = append(s.Relocations, reloc)
	}
	return nil, fmt.Errorf("objfile: section %s missing --- terminator", name)
}

func parseRelocationLine(line string) (Relocation, error) {
	fields := strings.Fields(line)
	if len(fields) != 3 {
		return Relocation{}, fmt.Errorf("objfile: malformed relocation line %q", line)
	}
	offset, err := strconv.ParseUint(fields[0], 10, 32)
	if err != nil {
		return Relocation{}, fmt.Errorf("objfile: bad relocation offset %q: %w", fields[0], err)
	}
	addend, err := strconv.ParseInt(fields[1], 10, 32)
	if err != nil {
		return Relocation{}, fmt.Errorf("objfile: bad relocation addend %q: %w", fields[1], err)
	}
	return Relocation{Offset: uint32(offset), Addend: int32(addend), Name: fields[2]}, nil
}

func parseSymbolLine(line string) (Symbol, error) {
	fields := strings.Fields(line)
	if len(fields) != 4 {
		return Symbol{}, fmt.Errorf("objfile: malformed symbol line %q", line)
	}
	value, err := strconv.ParseUint(fields[1], 10, 32)
	if err != nil {
		return Symbol{}, fmt.Errorf("objfile: bad symbol value %q: %w", fields[1], err)
	}
	defined := fields[2] == "1"
	section := fields[3]
	if section == "UND" {
		section = ""
	}
	return Symbol{Name: fields[0], Value: uint32(value), Defined: defined, Section: section}, nil
}
