// Package objfile implements the text object-file format shared by the
// assembler (producer) and the linker (consumer): section records, their
// relocations, and the module's global symbol table.
package objfile

// Relocation says that the 4 bytes at Offset within its owning section must
// be patched, at link time, with a resolved address.
//
// Name is resolved two ways, exactly as the original format intends:
//   - if Name is a symbol in the linked program's global symbol table
//     (global or extern), the relocation resolves to that symbol's final
//     address and Addend is 0;
//   - otherwise Name is itself the name of a section (the section that
//     locally defines the referenced symbol), and the relocation resolves
//     to that section's final location plus Addend (the local symbol's
//     offset within it).
//
// The second form is how a local (non-global) symbol reference survives
// being assembled one module at a time: the assembler has no way to know
// a local symbol's eventual absolute address, only its offset within its
// defining section, so it hands the linker "section X, offset N" instead.
type Relocation struct {
	Offset uint32
	Addend int32
	Name   string
}

// Section is one named block of a module: its final byte content
// (including any literal/symbol pool bytes appended at the end by the
// assembler) and the relocations needed to patch symbol references within
// it.
type Section struct {
	Name        string
	Content     []byte
	Relocations []Relocation

	// Location is the section's start address in the final image. It is
	// zero-valued until the linker's placement phase assigns it.
	Location uint32
}

// Length returns the section's content size in bytes; always equal to
// len(Content).
func (s *Section) Length() uint32 {
	return uint32(len(s.Content))
}

// Symbol is a module-level global symbol table entry. Only global (or
// extern, which is undefined-global until resolved) symbols are recorded
// here; purely local labels never leave the section they're defined in
// except indirectly, as the target name of a Relocation (see Relocation).
type Symbol struct {
	Name    string
	Value   uint32
	Defined bool
	// Section is the name of the defining section, or "" (serialized as
	// "UND") if the symbol is not yet defined in this module.
	Section string
	// Extern records whether this symbol entered the symbol table via an
	// `.extern` directive rather than first use or `.global`. Linker-visible
	// behavior is identical to any other undefined global; this field exists
	// purely so diagnostics can tell the two apart within a single assembler
	// run. The wire format has no field for it, so it does not round-trip
	// through Write/Parse.
	Extern bool
}

// Module is one assembled object: its sections in emission order, plus the
// module's exported (global) symbol table.
type Module struct {
	// FileName is not part of the serialized format; the linker fills it in
	// after reading a module so diagnostics can name the offending file.
	FileName string
	Sections []*Section
	Symbols  []Symbol
}

// Section looks up a section by name, or returns nil.
func (m *Module) Section(name string) *Section {
	for _, s := range m.Sections {
		if s.Name == name {
			return s
		}
	}
	return nil
}
