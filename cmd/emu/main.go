// Command emu runs a linked hex memory image on the emulated CPU. Its
// normal mode loads the image, runs it to HALT, and dumps the final
// register state; -debug drops into an interactive TUI debugger instead,
// with a register pane, a disassembly pane, and a command line, rendered
// with tview/tcell.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/spf13/cobra"

	"github.com/mbranko/raluvm/internal/cliconfig"
	"github.com/mbranko/raluvm/pkg/emulator"
	"github.com/mbranko/raluvm/pkg/isa"
	"github.com/mbranko/raluvm/pkg/utils"
)

func main() {
	cmd := &cobra.Command{
		Use:                "emu [-debug] <image.hex>",
		Short:              "Run a hex memory image on the emulated CPU",
		DisableFlagParsing: true,
		SilenceUsage:       true,
		RunE:               runEmu,
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

func runEmu(cmd *cobra.Command, args []string) error {
	var debug bool
	var image string
	for _, a := range args {
		if a == "-debug" {
			debug = true
			continue
		}
		image = a
	}
	if image == "" {
		return fmt.Errorf("expected a hex image path")
	}

	cfg, err := cliconfig.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	f, err := os.Open(image)
	if err != nil {
		return fmt.Errorf("opening %s: %w", image, err)
	}
	cpu := emulator.NewCPU()
	loadErr := cpu.LoadImage(f)
	f.Close()
	if loadErr != nil {
		return fmt.Errorf("loading %s: %w", image, loadErr)
	}

	if debug {
		return runDebugger(cpu, cfg)
	}

	if err := cpu.Run(); err != nil && err != emulator.ErrHalted {
		return fmt.Errorf("running %s: %w", image, err)
	}
	cpu.PrintState(os.Stdout)
	return nil
}

// debuggerUI is the TUI front end for pkg/emulator's Debugger: a register
// pane and a disassembly pane stacked over a command line. Commands
// (step, continue, break, delete, quit) are evaluated independently of
// presentation, so a non-interactive front end could reuse emulator.Debugger
// the same way this one does.
type debuggerUI struct {
	app     *tview.Application
	dbg     *emulator.Debugger
	regs    *tview.TextView
	disasm  *tview.TextView
	status  *tview.TextView
	input   *tview.InputField
	colored bool
	halted  bool
}

func runDebugger(cpu *emulator.CPU, cfg cliconfig.Config) error {
	ui := &debuggerUI{
		app:     tview.NewApplication(),
		dbg:     emulator.NewDebugger(cpu),
		regs:    tview.NewTextView().SetDynamicColors(true),
		disasm:  tview.NewTextView().SetDynamicColors(true),
		status:  tview.NewTextView().SetDynamicColors(true),
		colored: cfg.DebuggerColor,
	}
	ui.regs.SetBorder(true).SetTitle(" registers ")
	ui.disasm.SetBorder(true).SetTitle(" disassembly ")
	ui.status.SetBorder(true).SetTitle(" status ")

	ui.input = tview.NewInputField().SetLabel("(raluvm) ")
	ui.input.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter {
			return
		}
		line := strings.TrimSpace(ui.input.GetText())
		ui.input.SetText("")
		if line == "" {
			return
		}
		if !ui.execute(line) {
			ui.app.Stop()
			return
		}
		ui.refresh()
	})

	panes := tview.NewFlex().
		AddItem(ui.regs, 0, 1, false).
		AddItem(ui.disasm, 0, 2, false)
	root := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(panes, 0, 1, false).
		AddItem(ui.status, 3, 0, false).
		AddItem(ui.input, 1, 0, true)

	ui.refresh()
	if err := ui.app.SetRoot(root, true).SetFocus(ui.input).Run(); err != nil {
		return err
	}
	if ui.halted {
		// HALT inside the debugger exits the same way the non-debug path
		// does: same register dump, exit 0.
		cpu.PrintState(os.Stdout)
		os.Exit(0)
	}
	return nil
}

// execute runs one debugger command line, returning false to stop the
// REPL loop (quit, or a HALT that ends the program).
func (ui *debuggerUI) execute(line string) bool {
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "step", "s":
		n := 1
		if len(args) > 0 {
			if v, err := strconv.Atoi(args[0]); err == nil && v > 0 {
				n = v
			}
		}
		ui.report(ui.dbg.Step(n))
		return !ui.halted
	case "continue", "c":
		ui.report(ui.dbg.Continue())
		return !ui.halted
	case "break", "b":
		if len(args) == 0 {
			ui.setStatus("usage: break <hex-address>")
			return true
		}
		addr, err := parseHexAddr(args[0])
		if err != nil {
			ui.setStatus(fmt.Sprintf("invalid address: %s", args[0]))
			return true
		}
		ui.dbg.AddBreakpoint(addr)
		ui.setStatus(fmt.Sprintf("breakpoint set at 0x%08x", addr))
	case "delete", "d":
		if len(args) == 0 {
			ui.setStatus("usage: delete <hex-address>")
			return true
		}
		addr, err := parseHexAddr(args[0])
		if err != nil {
			ui.setStatus(fmt.Sprintf("invalid address: %s", args[0]))
			return true
		}
		if ui.dbg.DeleteBreakpoint(addr) {
			ui.setStatus(fmt.Sprintf("breakpoint at 0x%08x removed", addr))
		} else {
			ui.setStatus(fmt.Sprintf("no breakpoint at 0x%08x", addr))
		}
	case "quit", "q", "exit":
		return false
	case "help", "h", "?":
		ui.setStatus("step [n] | continue | break <hex> | delete <hex> | quit")
	default:
		ui.setStatus(fmt.Sprintf("unknown command %q (try 'help')", cmd))
	}
	return true
}

func (ui *debuggerUI) report(result emulator.StepResult) {
	switch result.Reason {
	case emulator.StopBreakpoint:
		ui.setStatus(fmt.Sprintf("breakpoint hit at 0x%08x", ui.dbg.PC()))
	case emulator.StopHalted:
		ui.halted = true
		ui.setStatus("cpu halted")
	case emulator.StopError:
		ui.setStatus(fmt.Sprintf("error: %v", result.Err))
	default:
		ui.setStatus(fmt.Sprintf("stepped %d instruction(s)", result.StepsExecuted))
	}
}

func (ui *debuggerUI) setStatus(msg string) {
	ui.status.SetText(msg)
}

// refresh redraws the register and disassembly panes from current CPU
// state. Color tags are only written when DebuggerColor is enabled.
func (ui *debuggerUI) refresh() {
	var b strings.Builder
	for i := 0; i < 16; i++ {
		if i%2 == 0 && i > 0 {
			b.WriteString("\n")
		}
		name := fmt.Sprintf("r%-2d", i)
		if ui.colored {
			fmt.Fprintf(&b, "[green]%s[white]=0x%08x  ", name, ui.dbg.CPU.GPR[i])
		} else {
			fmt.Fprintf(&b, "%s=0x%08x  ", name, ui.dbg.CPU.GPR[i])
		}
	}
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "status=%s handler=0x%08x cause=0x%08x",
		utils.FormatUintBinary(uint64(ui.dbg.CPU.CSR[isa.CSRStatus]), 8),
		ui.dbg.CPU.CSR[isa.CSRHandler], ui.dbg.CPU.CSR[isa.CSRCause])
	ui.regs.SetText(b.String())

	b.Reset()
	pc := ui.dbg.PC()
	for i := int32(-2); i <= 6; i++ {
		addr := uint32(int64(pc) + int64(i)*4)
		line := emulator.Disassemble(ui.dbg.DecodeAt(addr))
		marker := "  "
		if addr == pc {
			marker = "->"
		}
		if ui.colored && addr == pc {
			fmt.Fprintf(&b, "[yellow]%s 0x%08x  %s[white]\n", marker, addr, line)
		} else {
			fmt.Fprintf(&b, "%s 0x%08x  %s\n", marker, addr, line)
		}
	}
	ui.disasm.SetText(b.String())
}

func parseHexAddr(s string) (uint32, error) {
	s = strings.TrimPrefix(strings.ToLower(s), "0x")
	v, err := strconv.ParseUint(s, 16, 32)
	return uint32(v), err
}
