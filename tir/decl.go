package tir

import "github.com/oak-lang/oakc/constant"

// Decl is a top-level TIR declaration (spec.md §4.2's directive table).
type Decl interface {
	Position() constant.Position
}

// Param is one function parameter.
type Param struct {
	Name string
	Type Type
}

// FunctionDecl is `Function(...)`.
type FunctionDecl struct {
	Pos    constant.Position
	Doc    string
	Name   string
	Params []Param
	Return Type
	Body   *BlockStmt
}

// ExternFunctionDecl is `ExternFunction(foreign, local, params, ret)`: a
// foreign callable registered under a local name but emitted as
// call_foreign_fn(foreign).
type ExternFunctionDecl struct {
	Pos     constant.Position
	Foreign string
	Local   string
	Params  []Param
	Return  Type
}

// Member is one structure field.
type Member struct {
	Name string
	Type Type
}

// StructureDecl is `Structure(...)`: name, ordered members, and methods in
// declaration order (spec.md §4.2's ordering rule).
type StructureDecl struct {
	Pos     constant.Position
	Doc     string
	Name    string
	Members []Member
	Methods []*FunctionDecl
}

// ConstantDecl is `Constant(doc?, name, c)`; redefinition is an error
// (spec.md §9's resolved open question).
type ConstantDecl struct {
	Pos  constant.Position
	Doc  string
	Name string
	Expr constant.Expr
}

type DocumentHeaderDecl struct {
	Pos  constant.Position
	Text string
}

type RequireStdDecl struct{ Pos constant.Position }
type NoStdDecl struct{ Pos constant.Position }

type AssertDecl struct {
	Pos  constant.Position
	Cond constant.Expr
}

type ExternDecl struct {
	Pos  constant.Position
	Path string
}

type IncludeDecl struct {
	Pos  constant.Position
	Path string
}

// ImportDecl is `Import(path)`: equivalent to "if not is_defined(path),
// define it then include" (spec.md §4.2) — the is_defined guard the driver
// uses to reject include cycles.
type ImportDecl struct {
	Pos  constant.Position
	Path string
}

type MemoryDecl struct {
	Pos constant.Position
	N   constant.Expr
}

type ErrorDecl struct {
	Pos constant.Position
	Msg string
}

// IfDecl / IfElseDecl are conditional-compilation directives; Then/Else
// hold the nested declaration lists to process when the branch is taken.
type IfDecl struct {
	Pos  constant.Position
	Cond constant.Expr
	Then []Decl
}

type IfElseDecl struct {
	Pos  constant.Position
	Cond constant.Expr
	Then []Decl
	Else []Decl
}

func (d *FunctionDecl) Position() constant.Position       { return d.Pos }
func (d *ExternFunctionDecl) Position() constant.Position { return d.Pos }
func (d *StructureDecl) Position() constant.Position      { return d.Pos }
func (d ConstantDecl) Position() constant.Position        { return d.Pos }
func (d DocumentHeaderDecl) Position() constant.Position  { return d.Pos }
func (d RequireStdDecl) Position() constant.Position      { return d.Pos }
func (d NoStdDecl) Position() constant.Position           { return d.Pos }
func (d AssertDecl) Position() constant.Position          { return d.Pos }
func (d ExternDecl) Position() constant.Position          { return d.Pos }
func (d IncludeDecl) Position() constant.Position         { return d.Pos }
func (d ImportDecl) Position() constant.Position          { return d.Pos }
func (d MemoryDecl) Position() constant.Position          { return d.Pos }
func (d ErrorDecl) Position() constant.Position           { return d.Pos }
func (d IfDecl) Position() constant.Position              { return d.Pos }
func (d IfElseDecl) Position() constant.Position          { return d.Pos }

// File is the whole parsed unit: a flat, source-ordered declaration list
// (spec.md §4.2's "declarations are processed in source order").
type File struct {
	Decls []Decl
}
