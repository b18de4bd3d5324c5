// Package presenter provides consistent CLI output for user-facing messages,
// with color support and a quiet mode for scripted use.
package presenter

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
)

// Presenter writes user-facing messages to the terminal.
type Presenter struct {
	output      io.Writer
	errorOutput io.Writer
	quiet       bool
}

var defaultPresenter = New()

// New creates a Presenter writing to stdout/stderr.
func New() *Presenter {
	return NewWithWriters(os.Stdout, os.Stderr)
}

// NewWithWriters creates a Presenter with custom writers, useful in tests.
func NewWithWriters(output, errorOutput io.Writer) *Presenter {
	if os.Getenv("NO_COLOR") != "" {
		color.NoColor = true
	}
	return &Presenter{output: output, errorOutput: errorOutput}
}

// SetQuiet suppresses informational output.
func (p *Presenter) SetQuiet(quiet bool) { p.quiet = quiet }

// Error displays an error message to stderr.
func (p *Presenter) Error(err error, context string) {
	if err == nil {
		return
	}
	c := color.New(color.FgRed, color.Bold)
	if context != "" {
		c.Fprintf(p.errorOutput, "[ERROR] %s: %v\n", context, err)
	} else {
		c.Fprintf(p.errorOutput, "[ERROR] %v\n", err)
	}
}

// Success displays a success message.
func (p *Presenter) Success(message string) {
	if p.quiet {
		return
	}
	color.New(color.FgGreen).Fprintf(p.output, "%s\n", message)
}

// Warning displays a warning message.
func (p *Presenter) Warning(message string) {
	if p.quiet {
		return
	}
	color.New(color.FgYellow).Fprintf(p.output, "[WARNING] %s\n", message)
}

// Info displays an informational message.
func (p *Presenter) Info(message string) {
	if p.quiet {
		return
	}
	fmt.Fprintf(p.output, "%s\n", message)
}

// Section displays a section header.
func (p *Presenter) Section(title string) {
	if p.quiet {
		return
	}
	c := color.New(color.FgCyan, color.Bold)
	c.Fprintf(p.output, "\n%s\n", title)
	fmt.Fprintln(p.output, strings.Repeat("-", len(title)))
}

// Package-level helpers using the default presenter.

// Error displays an error via the default presenter.
func Error(err error, context string) { defaultPresenter.Error(err, context) }

// Success displays a success message via the default presenter.
func Success(message string) { defaultPresenter.Success(message) }

// Warning displays a warning via the default presenter.
func Warning(message string) { defaultPresenter.Warning(message) }

// Info displays a message via the default presenter.
func Info(message string) { defaultPresenter.Info(message) }

// Section displays a section header via the default presenter.
func Section(title string) { defaultPresenter.Section(title) }

// SetQuiet toggles quiet mode on the default presenter.
func SetQuiet(quiet bool) { defaultPresenter.SetQuiet(quiet) }
