package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

// printer writes status lines, colored unless disabled or NO_COLOR is set.
type printer struct {
	out       io.Writer
	useColors bool
}

func newPrinter(out io.Writer) *printer {
	_, envNoColor := os.LookupEnv("NO_COLOR")
	return &printer{out: out, useColors: !noColor && !envNoColor}
}

func (p *printer) colorize(c *color.Color, s string) string {
	if !p.useColors {
		return s
	}
	c.EnableColor()
	return c.Sprint(s)
}

func (p *printer) Success(format string, args ...any) {
	fmt.Fprintln(p.out, p.colorize(color.New(color.FgGreen), "✓ "+fmt.Sprintf(format, args...)))
}

func (p *printer) Info(format string, args ...any) {
	fmt.Fprintln(p.out, p.colorize(color.New(color.FgCyan), fmt.Sprintf(format, args...)))
}

func (p *printer) Warning(format string, args ...any) {
	fmt.Fprintln(p.out, p.colorize(color.New(color.FgYellow), "! "+fmt.Sprintf(format, args...)))
}

func (p *printer) Error(format string, args ...any) {
	fmt.Fprintln(p.out, p.colorize(color.New(color.FgRed), "✗ "+fmt.Sprintf(format, args...)))
}
