package asmcore

import (
	"encoding/binary"

	"github.com/mbranko/raluvm/pkg/objfile"
)

// workingSection is the assembler's in-progress view of a section: the
// byte content built up instruction by instruction, its literal/symbol
// pools, and the relocations accumulated for it. Only on section close
// (the next .section directive, or .end) does it turn into the
// objfile.Section the rest of the toolchain consumes.
type workingSection struct {
	name    string
	content []byte
	length  uint32 // set at the end of pass one: len(pre-pool content) + pool bytes

	literals *orderedPool[int32]
	symbols  *orderedPool[string]

	relocations []objfile.Relocation
}

func newWorkingSection(name string) *workingSection {
	return &workingSection{
		name:     name,
		literals: newOrderedPool[int32](),
		symbols:  newOrderedPool[string](),
	}
}

func (s *workingSection) addBytes(b ...byte) {
	s.content = append(s.content, b...)
}

// growTo zero-extends content up to n bytes, used by .skip and by the
// final pool-allocation resize at section close.
func (s *workingSection) growTo(n uint32) {
	if uint32(len(s.content)) >= n {
		return
	}
	s.content = append(s.content, make([]byte, n-uint32(len(s.content)))...)
}

// writeInt32At little-endian-encodes v at the given byte offset, resizing
// first if needed. This is the path for .word <literal> and for the final
// literal-pool flush, mirroring the original tool's write_int.
func (s *workingSection) writeInt32At(v int32, at uint32) {
	s.growTo(at + 4)
	binary.LittleEndian.PutUint32(s.content[at:at+4], uint32(v))
}

// allocatePools fixes pool offsets once pass one knows the section's
// pre-pool length (lc at the point the section closed). Literals are
// placed first, then symbols, matching the original layout.
func (s *workingSection) allocatePools(preLength uint32) {
	afterLiterals := s.literals.Allocate(preLength)
	s.length = s.symbols.Allocate(afterLiterals)
}

// flush finalizes the section's content for output: grows it to the full
// pooled length and writes each literal's value into its assigned slot.
// Symbol-pool slots are left zero; the linker patches them via
// relocations created from the same pool.
func (s *workingSection) flush() {
	s.growTo(s.length)
	for _, lit := range s.literals.Entries() {
		off, _ := s.literals.Offset(lit)
		s.writeInt32At(lit, off)
	}
}

func (s *workingSection) toObjfile() *objfile.Section {
	return &objfile.Section{
		Name:        s.name,
		Content:     s.content,
		Relocations: s.relocations,
	}
}
