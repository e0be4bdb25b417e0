package emulator

import (
	"bufio"
	"io"
	"strconv"
	"strings"
)

// LoadImage reads a hex memory image (as pkg/linker.WriteHexImage produces)
// line by line and writes its bytes into memory at the addresses the image
// names, exactly as the original's load_memory does: each line starts with
// an address token ending in ':', followed by whitespace-separated hex
// byte values starting at that address and incrementing by one per byte.
func (c *CPU) LoadImage(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		addrToken := strings.TrimSuffix(fields[0], ":")
		addr, err := strconv.ParseUint(addrToken, 16, 32)
		if err != nil {
			return errf("malformed address %q in hex image: %v", fields[0], err)
		}
		a := uint32(addr)
		for _, tok := range fields[1:] {
			b, err := strconv.ParseUint(tok, 16, 8)
			if err != nil {
				return errf("malformed byte %q in hex image: %v", tok, err)
			}
			c.Mem.WriteByte(a, byte(b))
			a++
		}
	}
	return scanner.Err()
}
