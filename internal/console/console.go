package console

import (
	"bufio"
	"fmt"
	"io"

	"github.com/mattn/go-isatty"
	"github.com/pterm/pterm"
	"github.com/pterm/pterm/putils"
)

// Console writes status output for the user.
type Console struct {
	// out receives everything the console prints.
	out io.Writer
	// interactive is true when out is a terminal.
	interactive bool
}

// New returns a Console writing to out. Colors are disabled when noColor is
// set or out is not a terminal.
func New(out io.Writer, noColor bool) *Console {
	c := &Console{
		out:         out,
		interactive: isTerminal(out),
	}

	if noColor || !c.interactive {
		pterm.DisableStyling()
	}

	return c
}

// Interactive reports whether the console writes to a terminal.
func (c *Console) Interactive() bool {
	return c.interactive
}

// Banner prints the program name and version.
func (c *Console) Banner(version string) {
	if !c.interactive {
		_, _ = fmt.Fprintf(c.out, "modsync %s\n", version)
		return
	}

	logo, err := pterm.DefaultBigText.WithLetters(
		putils.LettersFromStringWithStyle("mod", pterm.NewStyle(pterm.FgLightMagenta)),
		putils.LettersFromStringWithStyle("sync", pterm.NewStyle(pterm.FgCyan)),
	).Srender()
	if err == nil {
		_, _ = fmt.Fprintln(c.out, logo)
	}

	_, _ = fmt.Fprintln(c.out, pterm.Bold.Sprintf("modsync %s", version))
}

// Info prints a neutral status line.
func (c *Console) Info(format string, args ...any) {
	pterm.Info.WithWriter(c.out).Printfln(format, args...)
}

// Success prints a line announcing a completed step.
func (c *Console) Success(format string, args ...any) {
	pterm.Success.WithWriter(c.out).Printfln(format, args...)
}

// Warning prints a line about something that needs attention.
func (c *Console) Warning(format string, args ...any) {
	pterm.Warning.WithWriter(c.out).Printfln(format, args...)
}

// Error prints err as the final failure line.
func (c *Console) Error(err error) {
	pterm.Error.WithWriter(c.out).Println(err.Error())
}

// ShouldPause reports whether the window has to be held open before exit.
// A console started by double-clicking on Windows closes as soon as the
// process ends, taking the last message with it.
func (c *Console) ShouldPause(goos string) bool {
	return goos == "windows" && c.interactive
}

// Pause asks the user to press Enter and waits for a line on in.
func (c *Console) Pause(in io.Reader) {
	_, _ = fmt.Fprint(c.out, "Press Enter to exit...")
	_, _ = bufio.NewReader(in).ReadString('\n')
}

// isTerminal reports whether w is a terminal device.
func isTerminal(w io.Writer) bool {
	file, ok := w.(interface{ Fd() uintptr })
	if !ok {
		return false
	}

	fd := file.Fd()

	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
