// Package tir is the source-faithful typed tree (spec.md §2 item 4, §3,
// §6.2): the shape a parser collaborator is assumed to produce. It
// preserves named types, method calls with dot/arrow syntax, implicit
// references, constants, and compile-time directives exactly as written;
// nothing here is sized or method-flattened yet — that happens in hir.
package tir

// TypeKind distinguishes the TIR-level type variants (spec.md §3).
type TypeKind int

const (
	KindVoid TypeKind = iota
	KindNumber
	KindBoolean
	KindCharacter
	KindPointer
	KindStructure
)

// Type is a TIR-level type: Void/Number/Boolean/Character have no further
// fields, Pointer carries its pointee, Structure carries the name to be
// resolved against the declaration driver's structure table.
type Type struct {
	Kind       TypeKind
	Pointee    *Type  // meaningful iff Kind == KindPointer
	StructName string // meaningful iff Kind == KindStructure
}

func Void() Type      { return Type{Kind: KindVoid} }
func Number() Type    { return Type{Kind: KindNumber} }
func Boolean() Type   { return Type{Kind: KindBoolean} }
func Character() Type { return Type{Kind: KindCharacter} }

// Pointer returns a pointer-to-elem type.
func Pointer(elem Type) Type { return Type{Kind: KindPointer, Pointee: &elem} }

// Structure returns a named structure type, resolved later by the
// declaration driver's symbol table.
func Structure(name string) Type { return Type{Kind: KindStructure, StructName: name} }

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
		return "<invalid type>"
	}
}

// Equal reports structural equality, following named-pointer chains
// without resolving Structure names (that requires the symbol table).
func (t Type) Equal(o Type) bool {
	if t.Kind != o.Kind {
		return false
	}
	switch t.Kind {
	case KindPointer:
		return t.Pointee.Equal(*o.Pointee)
	case KindStructure:
		return t.StructName == o.StructName
	default:
		return true
	}
}
