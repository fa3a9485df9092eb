package main

import (
	"encoding/gob"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/oak-lang/oakc/constant"
	"github.com/oak-lang/oakc/decl"
	"github.com/oak-lang/oakc/tir"
)

// init registers every concrete tir.Stmt/tir.Expr/tir.Decl and
// constant.Expr variant so encoding/gob can round-trip the interface
// fields that make up a *tir.File. gob (unlike encoding/json) resolves an
// interface value's concrete type by name at decode time once it has been
// registered, so no hand-written tagged-union schema is needed here — the
// teacher never faced this problem (vm/image.go's encoding/binary use is a
// flat cell array, no interfaces), but gob is the standard-library tool
// built for exactly this shape.
func init() {
	gob.Register(tir.NumberLit{})
	gob.Register(tir.CharacterLit{})
	gob.Register(tir.StringLit{})
	gob.Register(tir.BooleanLit{})
	gob.Register(tir.VarExpr{})
	gob.Register(tir.CallExpr{})
	gob.Register(tir.MethodCallExpr{})
	gob.Register(tir.MemberExpr{})
	gob.Register(tir.UnaryExpr{})
	gob.Register(tir.BinaryExpr{})
	gob.Register(tir.CastExpr{})
	gob.Register(tir.SizeOfExpr{})
	gob.Register(tir.AllocExpr{})
	gob.Register(tir.IndexExpr{})
	gob.Register(tir.TernaryExpr{})
	gob.Register(tir.MoveExpr{})
	gob.Register(tir.IsMovableExpr{})
	gob.Register(tir.IsDefinedExpr{})
	gob.Register(tir.CurrentLineExpr{})
	gob.Register(tir.CurrentFileExpr{})

	gob.Register(&tir.BlockStmt{})
	gob.Register(tir.LetStmt{})
	gob.Register(tir.AssignStmt{})
	gob.Register(tir.ReturnStmt{})
	gob.Register(&tir.IfStmt{})
	gob.Register(&tir.WhileStmt{})
	gob.Register(&tir.ForStmt{})
	gob.Register(&tir.RangeForStmt{})
	gob.Register(tir.FreeStmt{})
	gob.Register(tir.ExprStmt{})

	gob.Register(&tir.FunctionDecl{})
	gob.Register(&tir.ExternFunctionDecl{})
	gob.Register(&tir.StructureDecl{})
	gob.Register(tir.ConstantDecl{})
	gob.Register(tir.DocumentHeaderDecl{})
	gob.Register(tir.RequireStdDecl{})
	gob.Register(tir.NoStdDecl{})
	gob.Register(tir.AssertDecl{})
	gob.Register(tir.ExternDecl{})
	gob.Register(tir.IncludeDecl{})
	gob.Register(tir.ImportDecl{})
	gob.Register(tir.MemoryDecl{})
	gob.Register(tir.ErrorDecl{})
	gob.Register(tir.IfDecl{})
	gob.Register(tir.IfElseDecl{})

	gob.Register(constant.NumberLit{})
	gob.Register(constant.CharacterLit{})
	gob.Register(constant.BooleanLit{})
	gob.Register(constant.StringLit{})
	gob.Register(constant.Ident{})
	gob.Register(constant.Unary{})
	gob.Register(constant.Binary{})
	gob.Register(constant.Ternary{})
	gob.Register(constant.SizeOf{})
	gob.Register(constant.IsDefined{})
	gob.Register(constant.CurrentLine{})
	gob.Register(constant.CurrentFile{})
}

// loadFile gob-decodes a *tir.File from path.
func loadFile(path string) (*tir.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %q", path)
	}
	defer f.Close()
	var file tir.File
	if err := gob.NewDecoder(f).Decode(&file); err != nil {
		return nil, errors.Wrapf(err, "decoding %q", path)
	}
	return &file, nil
}

// includeDirs is a repeatable -I flag.Value, modeled on cmd/retro/main.go's
// fileList (a []string accumulated across repeated flag occurrences).
type includeDirs []string

func (d *includeDirs) String() string     { return "" }
func (d *includeDirs) Set(s string) error { *d = append(*d, s); return nil }
func (d *includeDirs) Get() interface{}   { return *d }

// loader returns a decl.Loader that resolves an Include/Import path
// against each directory in dirs, in order, falling back to the path
// itself (so a caller can pass an already-qualified path with no -I).
func (d includeDirs) loader() decl.Loader {
	return func(path string) (*tir.File, error) {
		for _, dir := range d {
			candidate := filepath.Join(dir, path)
			if _, err := os.Stat(candidate); err == nil {
				return loadFile(candidate)
			}
		}
		return loadFile(path)
	}
}
