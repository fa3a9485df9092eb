// The oakc command line tool drives the compiler pipeline end to end: it
// loads a declaration-driver-ready *tir.File, runs the declaration pass,
// lowers to HIR, compiles to IR, and either assembles a disassembly-style
// dump or (with -run) executes the result on oakvm, the reference
// interpreter (spec.md §6.4).
//
// Concrete syntax parsing is out of scope (spec.md §1: "assume a parser
// produces a TIR tree"), so oakc's "source" is a gob-encoded *tir.File
// rather than Oak source text — the seam a real front end would plug into.
// See gobfile.go.
//
// Usage:
//
//	oakc <source> [flags]
//
//	-backend string
//		  target backend name: oakvm, c, go, or ts (default "oakvm")
//	-run
//		  execute main on oakvm instead of dumping a disassembly
//	-I value
//		  add directory to the include/import search path (repeatable)
//	-memcells int
//		  heap capacity in cells for the compiled program (default 512)
//	-debug
//		  print a full error cause chain on failure
//
// -backend: only "oakvm" is backed by a real executor; the other names are
// accepted for forward compatibility with a future per-target emitter
// (spec.md §1 explicitly scopes concrete emitters out) and fall back to the
// same disassembly dump, whose header line names the selected backend.
//
// -run: runs the compiled program's main function against oakvm, pushing
// the static-data preamble (spec.md §4.4's "Static allocation") before the
// call. putnum/getch/putch are registered as builtin foreign functions
// (see builtins.go); any other extern name fails at call time.
package main
