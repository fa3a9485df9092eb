package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/oak-lang/oakc/ir"
	"github.com/oak-lang/oakc/oakvm"
)

// builtins are the I/O foreign-function hooks spec.md §1 calls out as
// "specified only as foreign-function hooks"; oakc registers putnum, putch
// and getch, and no clock accessors: the standard library source that would declare and wire
// these as ExternFunctionDecls is itself out of scope, so oakc supplies
// Go implementations directly under their well-known foreign names,
// exactly as the teacher's vm.Option wait handlers (port1Handler,
// port2Handler in cmd/retro/main.go) supply concrete I/O behavior for a
// VM whose own instruction set has no opinion on it.
func builtins() map[string]oakvm.ForeignFunc {
	stdin := bufio.NewReader(os.Stdin)
	stdout := bufio.NewWriter(os.Stdout)
	return map[string]oakvm.ForeignFunc{
		"putnum": func(i *oakvm.Instance) error {
			n := i.Pop()
			_, err := fmt.Fprintf(stdout, "%v", n)
			if err == nil {
				err = stdout.Flush()
			}
			return err
		},
		"putch": func(i *oakvm.Instance) error {
			c := i.Pop()
			_, err := stdout.WriteRune(rune(int64(c)))
			if err == nil {
				err = stdout.Flush()
			}
			return err
		},
		"getch": func(i *oakvm.Instance) error {
			r, _, err := stdin.ReadRune()
			if err != nil {
				return err
			}
			i.Push(ir.Cell(r))
			return nil
		},
	}
}
