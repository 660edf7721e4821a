// Package diag collects and renders diagnostics (warnings, errors, syntax
// errors) the way the front end's original ANSI-colored reporter did,
// separated from parsing itself: phases append to a Collector, and it is
// rendered once at a phase boundary (design note, spec.md §9).
package diag

import (
	"fmt"
	"io"
	"strings"
)

// Kind classifies a diagnostic per spec.md §7.
type Kind int

const (
	// Warning never blocks the pipeline.
	Warning Kind = iota
	// Error sets a per-phase flag; the pipeline continues within the phase
	// so multiple errors can surface in one run, but later phases are
	// skipped for that translation unit.
	Error
	// Syntax errors are fatal: rendered, then the process halts.
	Syntax
	// Internal marks a compiler-bug assertion; also fatal.
	Internal
)

func (k Kind) String() string {
	switch k {
	case Warning:
		return "warning"
	case Error:
		return "error"
	case Syntax:
		return "syntax error"
	case Internal:
		return "internal error"
	default:
		return "diagnostic"
	}
}

// Position locates a diagnostic in a source file.
type Position struct {
	File                 string
	StartLine, StartCol  int // 0-based
	EndLine, EndCol       int // 0-based, half-open
}

// Diagnostic is one reported finding.
type Diagnostic struct {
	Kind    Kind
	Pos     Position
	Message string
	// Line is the full text of Pos.StartLine, used to render the caret
	// underline. Empty if unavailable (e.g. synthesized diagnostics).
	Line string
}

// Collector accumulates diagnostics for a translation unit across phases.
type Collector struct {
	items    []Diagnostic
	errored  bool
	fatalErr *FatalError
}

// Add records a non-fatal diagnostic (Warning or Error).
func (c *Collector) Add(d Diagnostic) {
	c.items = append(c.items, d)
	if d.Kind == Error {
		c.errored = true
	}
}

// Warn is shorthand for Add with Kind: Warning.
func (c *Collector) Warn(pos Position, line, format string, args ...any) {
	c.Add(Diagnostic{Kind: Warning, Pos: pos, Line: line, Message: fmt.Sprintf(format, args...)})
}

// Err is shorthand for Add with Kind: Error.
func (c *Collector) Err(pos Position, line, format string, args ...any) {
	c.Add(Diagnostic{Kind: Error, Pos: pos, Line: line, Message: fmt.Sprintf(format, args...)})
}

// HasError reports whether any Error-kind diagnostic was recorded. Per
// spec.md §7, a phase boundary checks this and skips subsequent phases for
// the unit if true.
func (c *Collector) HasError() bool { return c.errored }

// Diagnostics returns every diagnostic recorded so far, in report order.
func (c *Collector) Diagnostics() []Diagnostic { return c.items }

// FatalError is the error returned (after being recovered from the internal
// panic that unwinds a fatal diagnostic) by ParseFile/Tokenize-style entry
// points when a Syntax or Internal diagnostic is raised. Using panic/recover
// only within the owning package to implement "stop immediately" keeps the
// public surface an ordinary Go error return.
type FatalError struct {
	Diagnostic Diagnostic
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s: %s", e.Diagnostic.Pos.File,
		e.Diagnostic.Pos.StartLine+1, e.Diagnostic.Pos.StartCol+1,
		e.Diagnostic.Kind, e.Diagnostic.Message)
}

// Fatal records d and panics with it wrapped in *FatalError. Callers at a
// package's public entry point must recover and convert back to a returned
// error with Recover.
func Fatal(d Diagnostic) {
	panic(&FatalError{Diagnostic: d})
}

// Recover must be deferred at the top of every exported parse/tokenize entry
// point. If the recovered value is a *FatalError it is assigned to *errOut;
// any other panic value is re-panicked.
func Recover(errOut *error) {
	if r := recover(); r != nil {
		if fe, ok := r.(*FatalError); ok {
			*errOut = fe
			return
		}
		panic(r)
	}
}

const (
	ansiBold  = "\033[01m"
	ansiReset = "\033[0m"
	ansiRed   = "\033[31m"
	ansiYel   = "\033[33m"
)

// Render writes every collected diagnostic to w in the
// "file:line:col: kind: message" form from spec.md §6, followed by the
// offending source line and a caret/tilde underline. A fatal diagnostic is
// not part of the collection; RenderFatal writes it. ANSI color escapes are
// included only when color is true.
func (c *Collector) Render(w io.Writer, color bool) {
	for _, d := range c.items {
		renderOne(w, d, color)
	}
}

// RenderFatal renders a single fatal diagnostic, e.g. the one carried by a
// *FatalError recovered at a phase boundary.
func RenderFatal(w io.Writer, err *FatalError, color bool) {
	renderOne(w, err.Diagnostic, color)
}

func renderOne(w io.Writer, d Diagnostic, color bool) {
	bold, reset, red, yel := "", "", "", ""
	if color {
		bold, reset, red, yel = ansiBold, ansiReset, ansiRed, ansiYel
	}
	kindColor := red
	if d.Kind == Warning {
		kindColor = yel
	}

	fmt.Fprintf(w, "%s%s:%d:%d:%s %s%s%s: %s\n", bold, d.Pos.File,
		d.Pos.StartLine+1, d.Pos.StartCol+1, reset, kindColor, bold, d.Kind, reset)
	fmt.Fprintln(w, d.Message)

	if d.Line != "" {
		fmt.Fprintln(w, strReplaceHighlight(d.Line, d.Pos, bold, reset))
		indent := make([]byte, 0, d.Pos.StartCol)
		for i := 0; i < d.Pos.StartCol && i < len(d.Line); i++ {
			if d.Line[i] == '\t' {
				indent = append(indent, '\t')
			} else {
				indent = append(indent, ' ')
			}
		}
		width := d.Pos.EndCol - d.Pos.StartCol
		if width < 1 {
			width = 1
		}
		fmt.Fprintf(w, "%s%s%s^%s%s\n\n", indent, kindColor, bold, strings.Repeat("~", width-1), reset)
	}
}

func strReplaceHighlight(line string, pos Position, bold, reset string) string {
	if line == "" {
		return ""
	}
	start, end := pos.StartCol, pos.EndCol
	if start < 0 {
		start = 0
	}
	if end > len(line) {
		end = len(line)
	}
	if start > len(line) {
		start = len(line)
	}
	if end < start {
		end = start
	}
	return line[:start] + bold + line[start:end] + reset + line[end:]
}
