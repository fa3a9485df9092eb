// Package hir is the sized, method-flattened tree (spec.md §2 item 3,
// §4.3): every type has collapsed to a cell size plus a movability flag,
// method calls have been rewritten to free-function calls over a ref
// adapter, and member access resolves to an address computation over a
// structure's cumulative member offsets. hir.Lower builds this tree from
// a tir.File plus the decl.SymbolTable the declaration driver produced;
// hir/compile.go turns it into ir.Program.
package hir

import (
	"github.com/pkg/errors"

	"github.com/oak-lang/oakc/decl"
	"github.com/oak-lang/oakc/tir"
)

// Kind is the HIR-level type tag. Unlike tir.TypeKind it carries no named
// indirection once resolved — Size is always known.
type Kind int

const (
	KindVoid Kind = iota
	KindNumber
	KindBoolean
	KindCharacter
	KindPointer
	KindStructure
)

// Type is a fully sized HIR type (spec.md §3's "every type has collapsed
// to a single integer size, plus a kind flag for movability").
type Type struct {
	Kind       Kind
	Size       int
	Pointee    *Type
	StructName string // meaningful iff Kind == KindStructure
}

func Void() Type      { return Type{Kind: KindVoid} }
func Number() Type    { return Type{Kind: KindNumber, Size: 1} }
func Boolean() Type   { return Type{Kind: KindBoolean, Size: 1} }
func Character() Type { return Type{Kind: KindCharacter, Size: 1} }

func Pointer(pointee Type) Type { return Type{Kind: KindPointer, Size: 1, Pointee: &pointee} }

func (t Type) String() string {
	switch t.Kind {
	case KindVoid:
		return "void"
	case KindNumber:
		return "num"
	case KindBoolean:
		return "bool"
	case KindCharacter:
		return "char"
	case KindPointer:
		return "&" + t.Pointee.String()
	case KindStructure:
		return t.StructName
	default:
		return "<invalid hir type>"
	}
}

// Field is one structure member, with its offset in cells from the
// structure's base address.
type Field struct {
	Name   string
	Type   Type
	Offset int
}

// StructLayout is a structure's resolved member list, total size, and
// movability (spec.md §3's "non-movable iff the structure, directly or
// transitively, defines a user copy or drop method").
type StructLayout struct {
	Name    string
	Fields  []Field
	Size    int
	Movable bool
}

// Field looks up a member by name.
func (l *StructLayout) Field(name string) (Field, bool) {
	for _, f := range l.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// TypeTable resolves tir.Type to hir.Type, computing and memoizing
// structure layouts on demand. Grounded on the teacher's `asm.parser`
// deferred-resolution pattern for forward-referenced labels: a structure
// may be registered before the structures its members reference are, so
// resolution happens lazily with cycle detection rather than up front.
type TypeTable struct {
	syms      *decl.SymbolTable
	structs   map[string]*StructLayout
	resolving map[string]bool
}

// NewTypeTable returns a TypeTable backed by syms's registered structures.
func NewTypeTable(syms *decl.SymbolTable) *TypeTable {
	return &TypeTable{
		syms:      syms,
		structs:   make(map[string]*StructLayout),
		resolving: make(map[string]bool),
	}
}

// Resolve converts a tir.Type into a sized hir.Type.
func (tt *TypeTable) Resolve(t tir.Type) (Type, error) {
	switch t.Kind {
	case tir.KindVoid:
		return Void(), nil
	case tir.KindNumber:
		return Number(), nil
	case tir.KindBoolean:
		return Boolean(), nil
	case tir.KindCharacter:
		return Character(), nil
	case tir.KindPointer:
		pointee, err := tt.Resolve(*t.Pointee)
		if err != nil {
			return Type{}, err
		}
		return Pointer(pointee), nil
	case tir.KindStructure:
		layout, err := tt.StructLayout(t.StructName)
		if err != nil {
			return Type{}, err
		}
		return Type{Kind: KindStructure, Size: layout.Size, StructName: t.StructName}, nil
	default:
		return Type{}, errors.Errorf("unrecognized tir type kind %d", t.Kind)
	}
}

// StructLayout resolves (and memoizes) the named structure's member
// offsets, size, and movability. A structure that is still being resolved
// when re-entered is a cycle without pointer indirection (spec.md §7's
// "recursive structure without pointer indirection" name-resolution error).
func (tt *TypeTable) StructLayout(name string) (*StructLayout, error) {
	if l, ok := tt.structs[name]; ok {
		return l, nil
	}
	if tt.resolving[name] {
		return nil, errors.Errorf("structure %q is recursive without pointer indirection", name)
	}
	info, ok := tt.syms.Structure(name)
	if !ok {
		return nil, errors.Errorf("unknown structure %q", name)
	}

	tt.resolving[name] = true
	defer delete(tt.resolving, name)

	fields := make([]Field, 0, len(info.Decl.Members))
	offset := 0
	movable := true
	for _, m := range info.Decl.Members {
		ft, err := tt.Resolve(m.Type)
		if err != nil {
			return nil, errors.Wrapf(err, "member %q of structure %q", m.Name, name)
		}
		fields = append(fields, Field{Name: m.Name, Type: ft, Offset: offset})
		offset += ft.Size
		if ft.Kind == KindStructure {
			if sub, ok := tt.structs[ft.StructName]; ok && !sub.Movable {
				movable = false
			}
		}
	}
	for _, m := range info.Decl.Methods {
		if m.Name == "copy" || m.Name == "drop" {
			movable = false
		}
	}

	layout := &StructLayout{Name: name, Fields: fields, Size: offset, Movable: movable}
	tt.structs[name] = layout
	return layout, nil
}
