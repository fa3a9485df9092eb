package ir

// Target is the retargeting interface (spec.md §4.5/§6.3): a polymorphic
// collaborator with one method per IR instruction plus program framing
// hooks. For every instruction the Assembler visits, the Target returns a
// host-language source fragment; the Assembler concatenates fragments in
// program order and writes the result. No IR-level optimization happens
// in between — a conforming Target need only be faithful to the semantics
// in spec.md §6.1, not efficient.
//
// A Target implementation owns no shared state beyond what it needs to
// number local labels/variables; the Assembler threads it explicitly
// (never a package-level global), matching how the teacher's vm.Instance
// and asm.parser are both plain structs threaded by the caller rather than
// singletons.
type Target interface {
	// BeginProgram is emitted once, before any function. varCount is the
	// number of static-storage cells the preamble reserves (string
	// literals, constant tables); capacity is the heap-cell count from the
	// Memory directive (or DefaultMemoryCells).
	BeginProgram(varCount, capacity int) string
	// EndProgram is emitted once, after every function.
	EndProgram() string
	// ForeignPrelude is emitted once, before the first function, and
	// receives the concatenated paths registered via Extern declarations
	// so the backend can splice or #include/import them.
	ForeignPrelude(paths []string) string

	// BeginFunction/EndFunction bracket one function's instruction stream;
	// they are not IR instructions themselves but let a Target emit a
	// named function wrapper around establish_stack_frame/end_stack_frame.
	BeginFunction(id int, name string) string
	EndFunction(id int, name string) string

	Push(n Cell) string
	Add() string
	Subtract() string
	Multiply() string
	Divide() string
	Sign() string
	Allocate() string
	Free() string
	Store(size int) string
	Load(size int) string
	Call(id int) string
	CallForeign(name string) string
	BeginWhile() string
	EndWhile() string
	LoadBasePtr() string
	EstablishStackFrame(argSize, localScopeSize int) string
	EndStackFrame(returnSize, localsPlusArgs int) string
}
