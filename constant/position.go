package constant

import "fmt"

// Position is a source location, shaped like text/scanner.Position (the
// type the teacher's asm/parser.go already depends on) so the rest of the
// pipeline can carry positions without importing text/scanner itself.
type Position struct {
	Filename string
	Line     int
	Column   int
}

func (p Position) String() string {
	if p.Filename == "" {
		return fmt.Sprintf("%d:%d", p.Line, p.Column)
	}
	return fmt.Sprintf("%s:%d:%d", p.Filename, p.Line, p.Column)
}
