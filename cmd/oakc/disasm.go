package main

import (
	"fmt"

	"github.com/oak-lang/oakc/ir"
)

// disasmTarget is the placeholder Target for every backend name besides
// "oakvm" (spec.md §1 scopes concrete per-target emitters out; only the
// interface is specified). It renders one mnemonic line per instruction,
// the same role the teacher's asm.Disassemble output plays for Ngaro
// bytecode — a human-readable trace of what a real emitter would consume,
// not executable output.
type disasmTarget struct{ backend string }

func (t disasmTarget) BeginProgram(varCount, capacity int) string {
	return fmt.Sprintf("; backend=%s static_cells=%d heap_cells=%d\nbegin_program\n", t.backend, varCount, capacity)
}
func (disasmTarget) EndProgram() string { return "end_program\n" }
func (disasmTarget) ForeignPrelude(paths []string) string {
	if len(paths) == 0 {
		return ""
	}
	return fmt.Sprintf("; extern %v\n", paths)
}
func (disasmTarget) BeginFunction(id int, name string) string {
	return fmt.Sprintf("fn %s (id=%d):\n", name, id)
}
func (disasmTarget) EndFunction(id int, name string) string { return "\n" }

func (disasmTarget) Push(n ir.Cell) string               { return fmt.Sprintf("    push %v\n", n) }
func (disasmTarget) Add() string                         { return "    add\n" }
func (disasmTarget) Subtract() string                    { return "    subtract\n" }
func (disasmTarget) Multiply() string                    { return "    multiply\n" }
func (disasmTarget) Divide() string                      { return "    divide\n" }
func (disasmTarget) Sign() string                        { return "    sign\n" }
func (disasmTarget) Allocate() string                    { return "    allocate\n" }
func (disasmTarget) Free() string                        { return "    free\n" }
func (disasmTarget) Store(size int) string               { return fmt.Sprintf("    store %d\n", size) }
func (disasmTarget) Load(size int) string                { return fmt.Sprintf("    load %d\n", size) }
func (disasmTarget) Call(id int) string                  { return fmt.Sprintf("    call %d\n", id) }
func (disasmTarget) CallForeign(name string) string {
	return fmt.Sprintf("    call_foreign_fn %s\n", name)
}
func (disasmTarget) BeginWhile() string    { return "    begin_while\n" }
func (disasmTarget) EndWhile() string      { return "    end_while\n" }
func (disasmTarget) LoadBasePtr() string   { return "    load_base_ptr\n" }
func (disasmTarget) EstablishStackFrame(argSize, localScopeSize int) string {
	return fmt.Sprintf("    establish_stack_frame %d, %d\n", argSize, localScopeSize)
}
func (disasmTarget) EndStackFrame(returnSize, localsPlusArgs int) string {
	return fmt.Sprintf("    end_stack_frame %d, %d\n", returnSize, localsPlusArgs)
}

var _ ir.Target = disasmTarget{}
