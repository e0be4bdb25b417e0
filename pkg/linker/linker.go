// Package linker merges assembled object modules into a single memory
// image: it resolves every global symbol across files, places sections at
// their final addresses (explicit placements first, then the rest packed
// back to back), and patches every relocation against those final
// addresses.
//
// This is the Go rendering of the original four-phase linker
// (read_files / place_sections / update_symbols / relocate / output),
// with the original's relocation-resolution bug and symbol-merge bug
// fixed rather than ported.
package linker

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/exp/slices"

	"github.com/mbranko/raluvm/pkg/objfile"
	"github.com/mbranko/raluvm/pkg/utils"
)

// symbolEntry is the linker's merged view of one global symbol across every
// module it has read. section points at the specific *objfile.Section
// instance (belonging to one particular module) that defines it, so that
// once that instance's Location is assigned during placement, UpdateSymbols
// can read it straight off the pointer.
type symbolEntry struct {
	value    uint32
	defined  bool
	section  *objfile.Section
	fileName string
}

// outputSection is one merged, placed output section: the concatenation of
// every same-named section, across every module, in the order they were
// appended during placement. location is the address of its first byte.
type outputSection struct {
	location uint32
	content  []byte
}

// Placement pins one section to an absolute address, mirroring the
// command line's -place=<section>@<address> option (or one entry of a
// placement script; see LoadPlacementScript).
type Placement struct {
	Section string
	Address uint32
}

// Linker accumulates modules via AddModule, then runs its four phases in
// order: Place, UpdateSymbols, Relocate, WriteHexImage.
type Linker struct {
	modules []*objfile.Module
	symbols map[string]*symbolEntry

	outSections []*outputSection
	outIndex    map[string]int
	placed      map[*objfile.Section]bool
}

// New returns an empty Linker ready to accept modules.
func New() *Linker {
	return &Linker{
		symbols:  make(map[string]*symbolEntry),
		outIndex: make(map[string]int),
		placed:   make(map[*objfile.Section]bool),
	}
}

// AddModule registers a parsed object module and merges its global symbol
// table into the linker's. mod.FileName names the module for diagnostics
// (the path it was read from); an empty name is replaced by "<module>".
func (l *Linker) AddModule(mod *objfile.Module) error {
	mod.FileName = firstNonEmpty(mod.FileName, "<module>")
	l.modules = append(l.modules, mod)
	for _, sym := range mod.Symbols {
		if err := l.mergeSymbol(mod, sym); err != nil {
			return err
		}
	}
	return nil
}

func firstNonEmpty(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

// mergeSymbol folds one module's global symbol table entry into the
// linker-wide table.
//
// The original linker's add_symbol errors out whenever the symbol is
// already present AND already marked defined, without checking whether
// the INCOMING entry is itself a definition. That makes every file that
// merely references an already-defined global (the ordinary case: main.s
// calling a routine defined in lib.s) look like a duplicate definition,
// and it then unconditionally overwrites the table entry with the
// incoming one, discarding the real definition's section/value even when
// the duplicate-definition check didn't fire. Both defects are fixed
// here: a conflict is only real when both the existing and the incoming
// entry are definitions, and a plain reference never overwrites a
// definition already on file.
func (l *Linker) mergeSymbol(mod *objfile.Module, sym objfile.Symbol) error {
	existing, ok := l.symbols[sym.Name]
	if !ok {
		var sec *objfile.Section
		if sym.Defined {
			sec = mod.Section(sym.Section)
		}
		l.symbols[sym.Name] = &symbolEntry{
			value:    sym.Value,
			defined:  sym.Defined,
			section:  sec,
			fileName: mod.FileName,
		}
		return nil
	}

	if existing.defined && sym.Defined {
		return errf("symbol %q is defined in both %s and %s", sym.Name, existing.fileName, mod.FileName)
	}
	if sym.Defined {
		existing.value = sym.Value
		existing.defined = true
		existing.section = mod.Section(sym.Section)
		existing.fileName = mod.FileName
	}
	return nil
}

// CheckUndefined fails if any symbol referenced across all added modules
// was never defined anywhere. Every undefined name is reported in one
// error instead of stopping at the first, so a multi-file link with
// several missing definitions doesn't need relinking once per name.
func (l *Linker) CheckUndefined() error {
	names := make([]string, 0, len(l.symbols))
	for name := range l.symbols {
		names = append(names, name)
	}
	slices.Sort(names)

	var undefined []string
	for _, name := range names {
		if !l.symbols[name].defined {
			undefined = append(undefined, name)
		}
	}
	if len(undefined) > 0 {
		return errf("undefined symbol(s): %s", utils.FormatSlice(undefined, ", "))
	}
	return nil
}

// Place runs the placement phase: explicit placements first, in ascending
// address order, each one gathering every module's same-named section at
// that address; then every section nobody explicitly placed, taken in
// order of first appearance (file order and, within a file, section
// order), each one again gathering every module's same-named section back
// to back.
func (l *Linker) Place(placements []Placement) error {
	sorted := append([]Placement(nil), placements...)
	slices.SortFunc(sorted, func(a, b Placement) int {
		if a.Address < b.Address {
			return -1
		}
		if a.Address > b.Address {
			return 1
		}
		return 0
	})

	var lc uint32
	for _, p := range sorted {
		if p.Address < lc {
			return errf("cannot place section %q at 0x%08x: overlaps content already placed up to 0x%08x", p.Section, p.Address, lc)
		}
		lc = p.Address
		for _, mod := range l.modules {
			sec := mod.Section(p.Section)
			if sec == nil || l.placed[sec] {
				continue
			}
			if err := l.appendSection(p.Section, lc, sec); err != nil {
				return err
			}
			lc += sec.Length()
		}
	}

	for _, mod := range l.modules {
		for _, sec := range mod.Sections {
			if l.placed[sec] {
				continue
			}
			for _, other := range l.modules {
				same := other.Section(sec.Name)
				if same == nil || l.placed[same] {
					continue
				}
				if err := l.appendSection(sec.Name, lc, same); err != nil {
					return err
				}
				lc += same.Length()
			}
		}
	}
	return nil
}

func (l *Linker) appendSection(name string, at uint32, sec *objfile.Section) error {
	if uint64(at)+uint64(sec.Length()) > 1<<32 {
		return errf("section %q overflows the 32-bit address space at 0x%08x", name, at)
	}
	sec.Location = at
	l.placed[sec] = true

	idx, ok := l.outIndex[name]
	if !ok {
		idx = len(l.outSections)
		l.outIndex[name] = idx
		l.outSections = append(l.outSections, &outputSection{location: at})
	}
	out := l.outSections[idx]
	out.content = append(out.content, sec.Content...)
	return nil
}

// UpdateSymbols turns every defined symbol's value from an offset within
// its defining section into an absolute address, now that placement has
// assigned that section a final location.
func (l *Linker) UpdateSymbols() error {
	for name, e := range l.symbols {
		if !e.defined {
			continue
		}
		if e.section == nil {
			return errf("symbol %q has no defining section on record", name)
		}
		e.value += e.section.Location
	}
	return nil
}

// Relocate patches every relocation recorded by every module's sections
// into the corresponding merged output section's content.
//
// Resolution tries the global symbol table first; on a miss, reloc.Name
// is itself a section name and the relocation resolves against that
// section's own placed location plus its addend. The original's relocate()
// gets this fallback wrong: it reuses the location of whichever section
// OWNS the relocation, not the section the relocation actually names,
// which only happens to produce the right answer when those are the same
// section. This resolves against the named section, as the format doc
// (objfile.Relocation) requires.
func (l *Linker) Relocate() error {
	for _, mod := range l.modules {
		for _, sec := range mod.Sections {
			for _, reloc := range sec.Relocations {
				value, err := l.resolve(mod, reloc)
				if err != nil {
					return fmt.Errorf("in section %q of %s: %w", sec.Name, mod.FileName, err)
				}
				if err := l.writeWord(sec.Name, reloc.Offset+sec.Location, value); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (l *Linker) resolve(mod *objfile.Module, reloc objfile.Relocation) (uint32, error) {
	if sym, ok := l.symbols[reloc.Name]; ok {
		if !sym.defined {
			return 0, errf("relocation references undefined symbol %q", reloc.Name)
		}
		return uint32(int64(sym.value) + int64(reloc.Addend)), nil
	}
	if target := mod.Section(reloc.Name); target != nil && l.placed[target] {
		return uint32(int64(target.Location) + int64(reloc.Addend)), nil
	}
	return 0, errf("relocation target %q is neither a known symbol nor a placed section", reloc.Name)
}

func (l *Linker) writeWord(sectionName string, absoluteLocation uint32, value uint32) error {
	idx, ok := l.outIndex[sectionName]
	if !ok {
		return errf("internal error: section %q was never placed", sectionName)
	}
	out := l.outSections[idx]
	off := absoluteLocation - out.location
	if uint64(off)+4 > uint64(len(out.content)) {
		return errf("relocation in section %q at offset %d falls outside its content (length %d)", sectionName, off, len(out.content))
	}
	binary.LittleEndian.PutUint32(out.content[off:off+4], value)
	return nil
}

// Link runs Place, UpdateSymbols and Relocate in sequence, after verifying
// every referenced symbol was eventually defined. It is the convenience
// entry point cmd/linker drives; callers needing finer control (to inspect
// placement before relocating, say) can call the phases individually.
func (l *Linker) Link(placements []Placement) error {
	if err := l.CheckUndefined(); err != nil {
		return err
	}
	if err := l.Place(placements); err != nil {
		return err
	}
	if err := l.UpdateSymbols(); err != nil {
		return err
	}
	return l.Relocate()
}
