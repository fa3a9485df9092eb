// Package decl implements the declaration driver (spec.md §4.2): it walks
// a tir.File's top-level declarations in source order, expanding
// directives, and produces a flat symbol table of functions and
// structures, the final constant environment, and the heap-cell capacity.
package decl

import (
	"github.com/oak-lang/oakc/constant"
	"github.com/oak-lang/oakc/tir"
)

// FunctionInfo is one registered function: its signature, body (nil for an
// extern function), and the dense id the driver assigns once every
// declaration has been collected (spec.md §4.2's "assigns each function a
// dense integer id after all declarations are collected").
type FunctionInfo struct {
	ID      int
	Name    string
	Params  []tir.Param
	Return  tir.Type
	Body    *tir.BlockStmt // nil iff Foreign != ""
	Foreign string         // non-empty iff registered via ExternFunctionDecl
	Pos     constant.Position
}

// SignatureEqual reports whether two functions share the same parameter
// types (in order) and return type — the test spec.md §4.2 uses to decide
// whether a Function redeclaration is an overwrite or an error.
func (f *FunctionInfo) SignatureEqual(o *FunctionInfo) bool {
	if len(f.Params) != len(o.Params) {
		return false
	}
	for i := range f.Params {
		if !f.Params[i].Type.Equal(o.Params[i].Type) {
			return false
		}
	}
	return f.Return.Equal(o.Return)
}

// StructureInfo is one registered structure: its dense id and its
// declaration. Member offsets (cumulative sum of member sizes, spec.md §9's
// resolved "members may be structures" question) are not stored here; hir,
// which owns type sizing, computes them. decl only preserves declaration
// order.
type StructureInfo struct {
	ID   int
	Decl *tir.StructureDecl
}

// SymbolTable is the flat, read-only-after-construction table the driver
// produces (spec.md §4.2's "flat symbol table of functions and
// structures"). It mirrors the teacher's asm.parser map fields (labels,
// consts) in spirit: plain maps, no inheritance.
type SymbolTable struct {
	Functions  map[string]*FunctionInfo
	Structures map[string]*StructureInfo

	// order preserves declaration order so dense ids can be assigned after
	// the full pass (spec.md §4.2), independent of map iteration order.
	functionOrder  []string
	structureOrder []string
}

// NewSymbolTable returns an empty table.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{
		Functions:  make(map[string]*FunctionInfo),
		Structures: make(map[string]*StructureInfo),
	}
}

// registerFunction records decl under name, preserving first-seen order.
// Re-registration (a matching-signature redeclaration) overwrites in
// place without disturbing the assigned order, per spec.md §4.2's
// "Function(...) register (possibly overwriting if signature matches)".
func (t *SymbolTable) registerFunction(name string, info *FunctionInfo) {
	if _, exists := t.Functions[name]; !exists {
		t.functionOrder = append(t.functionOrder, name)
	}
	t.Functions[name] = info
}

func (t *SymbolTable) registerStructure(name string, info *StructureInfo) {
	if _, exists := t.Structures[name]; !exists {
		t.structureOrder = append(t.structureOrder, name)
	}
	t.Structures[name] = info
}

// AssignFunctionIDs assigns dense ids to every registered function in
// first-seen declaration order. hir.Lower orders the functions it lowers
// by these ids; the ids in the compiled ir.Program are assigned afresh by
// hir.Compile.
func (t *SymbolTable) AssignFunctionIDs() {
	for i, name := range t.functionOrder {
		t.Functions[name].ID = i
	}
	for i, name := range t.structureOrder {
		t.Structures[name].ID = i
	}
}

// Function looks up a registered function or extern-function by name.
func (t *SymbolTable) Function(name string) (*FunctionInfo, bool) {
	f, ok := t.Functions[name]
	return f, ok
}

// Structure looks up a registered structure by name.
func (t *SymbolTable) Structure(name string) (*StructureInfo, bool) {
	s, ok := t.Structures[name]
	return s, ok
}
