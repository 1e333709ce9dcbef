// Package report owns the user-visible output of a studymanager run: the
// console stream, the persistent plain-text run report, and the two
// generated documents (summary table and detailed comparison report).
package report

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
)

var (
	okColor   = color.New(color.FgGreen)
	koColor   = color.New(color.FgRed)
	warnColor = color.New(color.FgYellow)
)

// Sink fans run messages out to the console stream and the persistent
// report file. It is safe for concurrent use by the case worker pool.
type Sink struct {
	mu      sync.Mutex
	console io.Writer
	file    io.Writer
	quiet   bool
}

// NewSink builds a sink. file may be nil when no report is kept (e.g. the
// update-only invocations); console output is suppressed in quiet mode.
func NewSink(console, file io.Writer, quiet bool) *Sink {
	return &Sink{console: console, file: file, quiet: quiet}
}

func (s *Sink) write(colorized *color.Color, toConsole, toFile bool, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if toConsole && !s.quiet && s.console != nil {
		if colorized != nil {
			colorized.Fprintln(s.console, msg)
		} else {
			fmt.Fprintln(s.console, msg)
		}
	}
	if toFile && s.file != nil {
		fmt.Fprintln(s.file, msg)
	}
}

// Reportf writes to both the console and the report file.
func (s *Sink) Reportf(format string, a ...any) {
	s.write(nil, true, true, fmt.Sprintf(format, a...))
}

// Successf is Reportf with a green console line.
func (s *Sink) Successf(format string, a ...any) {
	msg := fmt.Sprintf(format, a...)
	s.write(okColor, true, false, msg)
	s.write(nil, false, true, msg)
}

// Failuref is Reportf with a red console line.
func (s *Sink) Failuref(format string, a ...any) {
	msg := fmt.Sprintf(format, a...)
	s.write(koColor, true, false, msg)
	s.write(nil, false, true, msg)
}

// Warnf is Reportf with a yellow console line.
func (s *Sink) Warnf(format string, a ...any) {
	msg := fmt.Sprintf(format, a...)
	s.write(warnColor, true, false, msg)
	s.write(nil, false, true, msg)
}

// Blank writes an empty separator line to both outputs.
func (s *Sink) Blank() {
	s.write(nil, true, true, "")
}

// ActionLocation writes a section header specifying whether the action runs
// in the destination or the repository.
func (s *Sink) ActionLocation(header string, destination bool) {
	if destination {
		s.Reportf("%s (in destination)", header)
	} else {
		s.Reportf("%s (in repository)", header)
	}
}
