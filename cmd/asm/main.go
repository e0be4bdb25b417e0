// Command asm assembles one `.s` source file into the text object-file
// format pkg/linker consumes. Its contract is exactly the original tool's:
//
//	asm -o <output.o> <input.s>
//
// -o is a literal, mandatory, two-token flag rather than a GNU-style long
// option, so argument parsing is hand-rolled here instead of going through
// pflag's flag registration (which cannot express a bare single-dash
// multi-letter flag without colliding with shorthand-combining rules).
// cobra still supplies the command's identity, usage text
// and error presentation; DisableFlagParsing hands the raw argument list
// to runAsm unchanged.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mbranko/raluvm/internal/asmsyntax"
	"github.com/mbranko/raluvm/pkg/asmcore"
	"github.com/mbranko/raluvm/pkg/objfile"
)

func main() {
	cmd := &cobra.Command{
		Use:                "asm -o <output.o> <input.s>",
		Short:              "Assemble a source file into a text object file",
		DisableFlagParsing: true,
		SilenceUsage:       true,
		RunE:               runAsm,
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

func runAsm(cmd *cobra.Command, args []string) error {
	outputName, inputName, err := parseArgs(args)
	if err != nil {
		return err
	}

	source, err := os.ReadFile(inputName)
	if err != nil {
		return fmt.Errorf("reading %s: %w", inputName, err)
	}

	as := asmcore.NewAssembler(asmcore.Options{})
	if err := asmsyntax.Parse(string(source), as); err != nil {
		return fmt.Errorf("%s: %w", inputName, err)
	}
	if _, err := as.End(); err != nil {
		return fmt.Errorf("%s: %w", inputName, err)
	}

	if err := asmsyntax.Parse(string(source), as); err != nil {
		return fmt.Errorf("%s: %w", inputName, err)
	}
	mod, err := as.End()
	if err != nil {
		return fmt.Errorf("%s: %w", inputName, err)
	}

	out, err := os.Create(outputName)
	if err != nil {
		return fmt.Errorf("creating %s: %w", outputName, err)
	}
	defer out.Close()

	if err := objfile.Write(out, mod); err != nil {
		return fmt.Errorf("writing %s: %w", outputName, err)
	}
	return nil
}

func parseArgs(args []string) (output, input string, err error) {
	var files []string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-o":
			if i+1 >= len(args) {
				return "", "", fmt.Errorf("-o requires an output file name")
			}
			output = args[i+1]
			i++
		default:
			files = append(files, args[i])
		}
	}
	if output == "" {
		return "", "", fmt.Errorf("-o <output> is mandatory")
	}
	if len(files) != 1 {
		return "", "", fmt.Errorf("expected exactly one input file, got %d", len(files))
	}
	return output, files[0], nil
}
