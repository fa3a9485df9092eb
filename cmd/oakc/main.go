package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/pkg/errors"

	"github.com/oak-lang/oakc/decl"
	"github.com/oak-lang/oakc/hir"
	"github.com/oak-lang/oakc/ir"
	"github.com/oak-lang/oakc/oakvm"
)

var (
	backend   string
	run       bool
	memCells  int
	debug     bool
	searchDir includeDirs
)

// atExit reports err (if any) and exits non-zero, mirroring
// cmd/retro/main.go's atExit: a bare message normally, a full %+v cause
// chain under -debug. A *oakvm.Panic's spec.md §7 code is propagated as
// the process exit code; everything else (compile-time diagnostics, I/O
// failures) exits 1.
func atExit(err error) {
	if err == nil {
		return
	}
	if debug {
		fmt.Fprintf(os.Stderr, "%+v\n", err)
	} else {
		fmt.Fprintf(os.Stderr, "%v\n", err)
	}
	if p, ok := errors.Cause(err).(*oakvm.Panic); ok {
		os.Exit(p.Code)
	}
	os.Exit(1)
}

func main() {
	var err error
	defer func() { atExit(err) }()

	flag.StringVar(&backend, "backend", "oakvm", "target backend name: oakvm, c, go, or ts")
	flag.BoolVar(&run, "run", false, "execute main on oakvm instead of dumping a disassembly")
	flag.Var(&searchDir, "I", "add directory to the include/import search path (repeatable)")
	flag.IntVar(&memCells, "memcells", 512, "heap capacity in cells for the compiled program")
	flag.BoolVar(&debug, "debug", false, "print a full error cause chain on failure")
	flag.Parse()

	if flag.NArg() != 1 {
		err = errors.New("usage: oakc <source> [flags]")
		return
	}

	var d *decl.Driver
	d, err = compileTo(flag.Arg(0))
	if err != nil {
		return
	}

	var lowered *hir.Program
	lowered, err = hir.Lower(d.Syms)
	if err != nil {
		err = errors.Wrap(err, "lowering to HIR")
		return
	}

	var prog *ir.Program
	prog, err = hir.Compile(lowered, d.MemoryCells)
	if err != nil {
		err = errors.Wrap(err, "compiling to IR")
		return
	}

	if run {
		err = runProgram(prog)
		return
	}
	err = dumpDisassembly(prog, d.ExternPaths)
}

// compileTo loads source and runs the declaration pass, returning the
// driver (its Syms and ExternPaths are both needed downstream).
func compileTo(source string) (*decl.Driver, error) {
	tf, err := loadFile(source)
	if err != nil {
		return nil, err
	}
	d := decl.NewDriver(searchDir.loader())
	d.MemoryCells = memCells
	if err := d.Run(tf); err != nil {
		return nil, errors.Wrap(err, "declaration pass")
	}
	return d, nil
}

// runProgram executes prog's main function on oakvm, replicating
// spec.md §4.4's program preamble: push StaticCells zeros before invoking
// main, so string-literal static addresses never alias live stack data.
func runProgram(prog *ir.Program) error {
	fn := findFunction(prog, "main")
	if fn == nil {
		return errors.New("program has no function named \"main\"")
	}
	inst := oakvm.New(prog, builtins())
	for k := 0; k < prog.StaticCells; k++ {
		inst.Push(0)
	}
	result, err := inst.RunFunction(fn)
	if err != nil {
		return err
	}
	for _, c := range result {
		fmt.Println(c)
	}
	return nil
}

func findFunction(prog *ir.Program, name string) *ir.Function {
	for _, fn := range prog.Functions {
		if fn.Name == name {
			return fn
		}
	}
	return nil
}

// dumpDisassembly assembles prog through disasmTarget and writes the
// result to stdout — the stand-in for a real per-target emitter (spec.md
// §1 scopes those out of the core).
func dumpDisassembly(prog *ir.Program, externPaths []string) error {
	asm := ir.NewAssembler(disasmTarget{backend: backend})
	return asm.Emit(os.Stdout, prog, externPaths)
}
