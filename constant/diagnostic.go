package constant

import (
	"fmt"
	"strings"
)

// maxDiagnostics bounds how many errors a single Diagnostics accumulates
// before its owner should abort, mirroring the teacher's asm.maxErrors cap
// on asm.ErrAsm.
const maxDiagnostics = 10

// Diagnostic is one positioned compile-time error (spec.md §7).
type Diagnostic struct {
	Pos Position
	Msg string
}

func (d Diagnostic) String() string { return fmt.Sprintf("%s: %s", d.Pos, d.Msg) }

// Diagnostics is an accumulated, bounded list of Diagnostic, modeled on the
// teacher's asm.ErrAsm: a slice that implements error and renders one line
// per entry.
type Diagnostics []Diagnostic

func (d Diagnostics) Error() string {
	lines := make([]string, len(d))
	for i, diag := range d {
		lines[i] = diag.String()
	}
	return strings.Join(lines, "\n")
}

// Add appends a diagnostic unless the bound has already been reached; it
// reports whether the caller should keep going.
func (d *Diagnostics) Add(pos Position, format string, args ...interface{}) bool {
	if len(*d) >= maxDiagnostics {
		return false
	}
	*d = append(*d, Diagnostic{Pos: pos, Msg: fmt.Sprintf(format, args...)})
	return len(*d) < maxDiagnostics
}

// HasErrors reports whether any diagnostic was recorded.
func (d Diagnostics) HasErrors() bool { return len(d) > 0 }

// AsError returns d as an error, or nil if it is empty.
func (d Diagnostics) AsError() error {
	if len(d) == 0 {
		return nil
	}
	return d
}
