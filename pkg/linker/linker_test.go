package linker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbranko/raluvm/pkg/objfile"
)

func mkModule(fileName string, sections ...*objfile.Section) *objfile.Module {
	mod := &objfile.Module{FileName: fileName, Sections: sections}
	return mod
}

func TestLinkerPlacesExplicitSectionAtRequestedAddress(t *testing.T) {
	l := New()
	text := &objfile.Section{Name: ".text", Content: []byte{0x01, 0x02, 0x03, 0x04}}
	require.NoError(t, l.AddModule(mkModule("a.o", text)))

	require.NoError(t, l.Place([]Placement{{Section: ".text", Address: 0x1000}}))
	assert.Equal(t, uint32(0x1000), text.Location)
}

func TestLinkerConcatenatesSameNamedSectionsAcrossFiles(t *testing.T) {
	l := New()
	aText := &objfile.Section{Name: ".text", Content: []byte{0xAA, 0xAA}}
	bText := &objfile.Section{Name: ".text", Content: []byte{0xBB, 0xBB}}
	require.NoError(t, l.AddModule(mkModule("a.o", aText)))
	require.NoError(t, l.AddModule(mkModule("b.o", bText)))

	require.NoError(t, l.Place([]Placement{{Section: ".text", Address: 0x0}}))
	assert.Equal(t, uint32(0), aText.Location)
	assert.Equal(t, uint32(2), bText.Location)

	var buf strings.Builder
	require.NoError(t, l.WriteHexImage(&buf))
	assert.Equal(t, "0000: aa aa bb bb\n", buf.String())
}

func TestLinkerPlacesUnplacedSectionsAfterExplicitOnes(t *testing.T) {
	l := New()
	text := &objfile.Section{Name: ".text", Content: []byte{0x00, 0x00, 0x00, 0x00}}
	data := &objfile.Section{Name: ".data", Content: []byte{0x11, 0x11}}
	require.NoError(t, l.AddModule(mkModule("a.o", text, data)))

	require.NoError(t, l.Place([]Placement{{Section: ".text", Address: 0x100}}))
	assert.Equal(t, uint32(0x100), text.Location)
	assert.Equal(t, uint32(0x104), data.Location, "unplaced sections pack immediately after explicitly placed ones")
}

func TestLinkerRejectsOverlappingPlacements(t *testing.T) {
	l := New()
	text := &objfile.Section{Name: ".text", Content: make([]byte, 16)}
	data := &objfile.Section{Name: ".data", Content: make([]byte, 4)}
	require.NoError(t, l.AddModule(mkModule("a.o", text, data)))

	err := l.Place([]Placement{
		{Section: ".text", Address: 0x10},
		{Section: ".data", Address: 0x18},
	})
	assert.Error(t, err)
}

func TestLinkerMultipleDefinitionIsRejected(t *testing.T) {
	l := New()
	secA := &objfile.Section{Name: ".text"}
	secB := &objfile.Section{Name: ".text"}
	modA := mkModule("a.o", secA)
	modA.Symbols = []objfile.Symbol{{Name: "foo", Value: 0, Defined: true, Section: ".text"}}
	modB := mkModule("b.o", secB)
	modB.Symbols = []objfile.Symbol{{Name: "foo", Value: 4, Defined: true, Section: ".text"}}

	require.NoError(t, l.AddModule(modA))
	err := l.AddModule(modB)
	assert.Error(t, err)
}

func TestLinkerSymbolReferenceDoesNotFalselyConflictWithDefinition(t *testing.T) {
	// b.o merely references "foo" (Defined: false) after a.o defines it.
	// The original linker's add_symbol flags this as a duplicate
	// definition and clobbers the real one; this must link cleanly.
	l := New()
	secA := &objfile.Section{Name: ".text", Content: []byte{0, 0, 0, 0}}
	modA := mkModule("a.o", secA)
	modA.Symbols = []objfile.Symbol{{Name: "foo", Value: 0, Defined: true, Section: ".text"}}

	secB := &objfile.Section{Name: ".text", Content: []byte{0, 0, 0, 0}}
	modB := mkModule("b.o", secB)
	modB.Symbols = []objfile.Symbol{{Name: "foo", Defined: false}}

	require.NoError(t, l.AddModule(modA))
	require.NoError(t, l.AddModule(modB))
	require.NoError(t, l.CheckUndefined())
	assert.True(t, l.symbols["foo"].defined)
}

func TestLinkerCheckUndefinedCatchesMissingDefinition(t *testing.T) {
	l := New()
	mod := mkModule("a.o")
	mod.Symbols = []objfile.Symbol{{Name: "ghost", Defined: false}}
	require.NoError(t, l.AddModule(mod))

	err := l.CheckUndefined()
	assert.Error(t, err)
}

func TestLinkerRelocatesGlobalSymbolReference(t *testing.T) {
	l := New()
	text := &objfile.Section{
		Name:        ".text",
		Content:     []byte{0, 0, 0, 0},
		Relocations: []objfile.Relocation{{Offset: 0, Name: "target"}},
	}
	data := &objfile.Section{Name: ".data", Content: []byte{0, 0, 0, 0}}
	mod := mkModule("a.o", text, data)
	mod.Symbols = []objfile.Symbol{{Name: "target", Value: 0, Defined: true, Section: ".data"}}
	require.NoError(t, l.AddModule(mod))

	require.NoError(t, l.Link([]Placement{
		{Section: ".text", Address: 0x0},
		{Section: ".data", Address: 0x100},
	}))

	assert.Equal(t, []byte{0x00, 0x01, 0x00, 0x00}, l.outSections[l.outIndex[".text"]].content)
}

func TestLinkerRelocatesLocalSectionReferenceAgainstNamedSectionNotOwner(t *testing.T) {
	// The relocation lives in .text but names .rodata as its target: a
	// fixed build must resolve against .rodata's own location, not
	// .text's. This is the exact asymmetry the original gets wrong.
	l := New()
	text := &objfile.Section{
		Name:        ".text",
		Content:     []byte{0, 0, 0, 0},
		Relocations: []objfile.Relocation{{Offset: 0, Name: ".rodata", Addend: 8}},
	}
	rodata := &objfile.Section{Name: ".rodata", Content: []byte{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}}
	mod := mkModule("a.o", text, rodata)
	require.NoError(t, l.AddModule(mod))

	require.NoError(t, l.Link([]Placement{
		{Section: ".text", Address: 0x0},
		{Section: ".rodata", Address: 0x200},
	}))

	// .rodata placed at 0x200, + addend 8 = 0x208, NOT .text's own 0x0+8.
	assert.Equal(t, []byte{0x08, 0x02, 0x00, 0x00}, l.outSections[l.outIndex[".text"]].content)
}

func TestLinkerWriteHexImageWrapsAtEightBytes(t *testing.T) {
	l := New()
	text := &objfile.Section{Name: ".text", Content: []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}}
	require.NoError(t, l.AddModule(mkModule("a.o", text)))
	require.NoError(t, l.Place([]Placement{{Section: ".text", Address: 0}}))

	var buf strings.Builder
	require.NoError(t, l.WriteHexImage(&buf))
	want := "0000: 01 02 03 04 05 06 07 08\n0008: 09 0a\n"
	assert.Equal(t, want, buf.String())
}

func TestParsePlacementArg(t *testing.T) {
	p, err := ParsePlacementArg(".text@0x40000000")
	require.NoError(t, err)
	assert.Equal(t, ".text", p.Section)
	assert.Equal(t, uint32(0x40000000), p.Address)

	_, err = ParsePlacementArg("bad")
	assert.Error(t, err)
}

func TestLoadPlacementScript(t *testing.T) {
	script := strings.NewReader("place:\n  text: 0x1000\n  data: \"0x2000\"\n")
	placements, err := LoadPlacementScript(script)
	require.NoError(t, err)
	require.Len(t, placements, 2)

	byName := map[string]uint32{}
	for _, p := range placements {
		byName[p.Section] = p.Address
	}
	assert.Equal(t, uint32(0x1000), byName["text"])
	assert.Equal(t, uint32(0x2000), byName["data"])
}
