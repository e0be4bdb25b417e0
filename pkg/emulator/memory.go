package emulator

import "encoding/binary"

// pageSize is the unit the paged memory model allocates lazily. A flat
// byte-per-map-entry table (as the original's
// unordered_map<unsigned int, unsigned char> is) wastes an
// entry's worth of hashing and bookkeeping for every single byte touched;
// grouping bytes into fixed pages keeps the same "unwritten address reads
// as zero" behavior at a fraction of the overhead for anything but
// pathologically scattered addresses.
const pageSize = 4096

// Memory is the emulator's 32-bit address space: a sparse collection of
// pages, allocated on first touch (by either a read or a write, matching
// the original's map-insertion-on-read quirk), with every byte of a newly
// allocated page starting at zero.
type Memory struct {
	pages map[uint32]*[pageSize]byte
}

// NewMemory returns an empty address space.
func NewMemory() *Memory {
	return &Memory{pages: make(map[uint32]*[pageSize]byte)}
}

func (m *Memory) page(addr uint32) *[pageSize]byte {
	key := addr / pageSize
	p, ok := m.pages[key]
	if !ok {
		p = &[pageSize]byte{}
		m.pages[key] = p
	}
	return p
}

// ReadByte returns the byte at addr, zero if never written.
func (m *Memory) ReadByte(addr uint32) byte {
	return m.page(addr)[addr%pageSize]
}

// WriteByte stores value at addr.
func (m *Memory) WriteByte(addr uint32, value byte) {
	m.page(addr)[addr%pageSize] = value
}

// ReadWord reads 4 bytes starting at addr as a little-endian uint32,
// matching the original's byte-at-a-time read_word.
func (m *Memory) ReadWord(addr uint32) uint32 {
	var buf [4]byte
	for i := range buf {
		buf[i] = m.ReadByte(addr + uint32(i))
	}
	return binary.LittleEndian.Uint32(buf[:])
}

// WriteWord stores value as 4 little-endian bytes starting at addr.
func (m *Memory) WriteWord(addr uint32, value uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], value)
	for i, b := range buf {
		m.WriteByte(addr+uint32(i), b)
	}
}

// Load copies content into memory starting at addr, the same operation
// hexload.go performs once per hex-image line.
func (m *Memory) Load(addr uint32, content []byte) {
	for i, b := range content {
		m.WriteByte(addr+uint32(i), b)
	}
}
