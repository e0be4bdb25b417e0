package linker

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParsePlacementArg parses one -place=<section>@<hex-address> command line
// option into a Placement.
func ParsePlacementArg(arg string) (Placement, error) {
	section, addrStr, ok := strings.Cut(arg, "@")
	if !ok || section == "" || addrStr == "" {
		return Placement{}, errf("malformed placement %q, want <section>@<hex-address>", arg)
	}
	addr, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(addrStr), "0x"), 16, 32)
	if err != nil {
		return Placement{}, errf("malformed placement address in %q: %v", arg, err)
	}
	return Placement{Section: section, Address: uint32(addr)}, nil
}

// placementFile is the on-disk shape of a -place-file=<path> script: a
// "place" map from section name to hex (or decimal) address, e.g.
//
//	place:
//	  text: 0x40000000
//	  data: 0x40001000
type placementFile struct {
	Place map[string]string `yaml:"place"`
}

// LoadPlacementScript reads a YAML placement script and returns the
// Placement list it describes, in the order map iteration happens to
// produce; Place sorts by address itself, so caller order never matters.
func LoadPlacementScript(r io.Reader) ([]Placement, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var pf placementFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("parsing placement script: %w", err)
	}

	placements := make([]Placement, 0, len(pf.Place))
	for section, addrStr := range pf.Place {
		s := strings.TrimSpace(addrStr)
		base := 10
		if strings.HasPrefix(strings.ToLower(s), "0x") {
			s = s[2:]
			base = 16
		}
		addr, err := strconv.ParseUint(s, base, 32)
		if err != nil {
			return nil, errf("placement script: section %q has invalid address %q: %v", section, addrStr, err)
		}
		placements = append(placements, Placement{Section: section, Address: uint32(addr)})
	}
	return placements, nil
}
