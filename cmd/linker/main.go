// Command linker links one or more assembled object files into a single
// hex memory image. Its flag syntax is inherited verbatim from the
// original tool:
//
//	linker -hex -o <image.hex> [-place=<section>@<hex-addr> ...] file.o ...
//
// -hex and -o are mandatory, single-dash, non-GNU flags, and -place can
// repeat, none of which pflag's shorthand-combining parser can express,
// so argument parsing is hand-rolled here behind a cobra
// command kept only for identity and help text. -place-file is an added
// convenience: a YAML placement script merged with any -place flags,
// which take priority for sections named in both.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mbranko/raluvm/internal/cliconfig"
	"github.com/mbranko/raluvm/pkg/linker"
	"github.com/mbranko/raluvm/pkg/objfile"
)

func main() {
	cmd := &cobra.Command{
		Use:                "linker -hex -o <image.hex> [-place=<section>@<addr>] file.o ...",
		Short:              "Link object files into a hex memory image",
		DisableFlagParsing: true,
		SilenceUsage:       true,
		RunE:               runLinker,
	}
	if err := cmd.Execute(); err != nil {
		fail(err)
	}
}

func fail(err error) {
	msg := err.Error()
	if color.NoColor {
		fmt.Fprintln(os.Stderr, msg)
	} else {
		fmt.Fprintln(os.Stderr, color.RedString(msg))
	}
	os.Exit(1)
}

type parsedArgs struct {
	hex        bool
	output     string
	placeFlags []string
	placeFile  string
	inputs     []string
}

func parseArgs(args []string) (parsedArgs, error) {
	var pa parsedArgs
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "-hex":
			pa.hex = true
		case arg == "-o":
			if i+1 >= len(args) {
				return pa, fmt.Errorf("-o requires an output file name")
			}
			pa.output = args[i+1]
			i++
		case strings.HasPrefix(arg, "-place-file="):
			pa.placeFile = strings.TrimPrefix(arg, "-place-file=")
		case strings.HasPrefix(arg, "-place="):
			pa.placeFlags = append(pa.placeFlags, strings.TrimPrefix(arg, "-place="))
		default:
			pa.inputs = append(pa.inputs, arg)
		}
	}
	if !pa.hex {
		return pa, fmt.Errorf("-hex is mandatory: only hex memory images are produced")
	}
	if pa.output == "" {
		return pa, fmt.Errorf("-o <output> is mandatory")
	}
	if len(pa.inputs) == 0 {
		return pa, fmt.Errorf("expected at least one input object file")
	}
	return pa, nil
}

func runLinker(cmd *cobra.Command, args []string) error {
	pa, err := parseArgs(args)
	if err != nil {
		return err
	}

	cfg, err := cliconfig.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if pa.placeFile == "" {
		pa.placeFile = cfg.DefaultPlaceFile
	}

	placements, err := resolvePlacements(pa)
	if err != nil {
		return err
	}

	l := linker.New()
	for _, name := range pa.inputs {
		f, err := os.Open(name)
		if err != nil {
			return fmt.Errorf("opening %s: %w", name, err)
		}
		mod, err := objfile.Parse(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("parsing %s: %w", name, err)
		}
		mod.FileName = name
		if err := l.AddModule(mod); err != nil {
			return err
		}
	}

	if err := l.Link(placements); err != nil {
		return err
	}

	out, err := os.Create(pa.output)
	if err != nil {
		return fmt.Errorf("creating %s: %w", pa.output, err)
	}
	defer out.Close()

	if err := l.WriteHexImage(out); err != nil {
		return fmt.Errorf("writing %s: %w", pa.output, err)
	}
	return nil
}

// resolvePlacements merges a -place-file script with -place flags. Flags
// parsed after the file override whatever the file set for the same
// section, matching the order they appear on the command line.
func resolvePlacements(pa parsedArgs) ([]linker.Placement, error) {
	byName := map[string]linker.Placement{}

	if pa.placeFile != "" {
		f, err := os.Open(pa.placeFile)
		if err != nil {
			return nil, fmt.Errorf("opening placement script %s: %w", pa.placeFile, err)
		}
		fromFile, err := linker.LoadPlacementScript(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", pa.placeFile, err)
		}
		for _, p := range fromFile {
			byName[p.Section] = p
		}
	}

	for _, raw := range pa.placeFlags {
		p, err := linker.ParsePlacementArg(raw)
		if err != nil {
			return nil, err
		}
		byName[p.Section] = p
	}

	placements := make([]linker.Placement, 0, len(byName))
	for _, p := range byName {
		placements = append(placements, p)
	}
	return placements, nil
}
