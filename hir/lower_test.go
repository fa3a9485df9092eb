package hir_test

import (
	"testing"

	"github.com/oak-lang/oakc/decl"
	"github.com/oak-lang/oakc/hir"
	"github.com/oak-lang/oakc/tir"
)

// dateStructureDecl returns a Date{m,d,y: Number} structure with a single
// `tomorrow` method, the spec.md §8 fixture every method-flattening case
// below is built around.
func dateStructureDecl() *tir.StructureDecl {
	return &tir.StructureDecl{
		Name: "Date",
		Members: []tir.Member{
			{Name: "m", Type: tir.Number()},
			{Name: "d", Type: tir.Number()},
			{Name: "y", Type: tir.Number()},
		},
		Methods: []*tir.FunctionDecl{
			{
				Name:   "tomorrow",
				Params: []tir.Param{{Name: "self", Type: tir.Pointer(tir.Structure("Date"))}},
				Return: tir.Void(),
				Body: &tir.BlockStmt{Stmts: []tir.Stmt{
					tir.AssignStmt{
						Op:     tir.AssignAdd,
						Target: tir.MemberExpr{Receiver: tir.VarExpr{Name: "self"}, Field: "d", Arrow: true},
						Value:  tir.NumberLit{Val: 1},
					},
				}},
			},
		},
	}
}

func lowerFile(t *testing.T, decls ...tir.Decl) *hir.Program {
	t.Helper()
	d := decl.NewDriver(nil)
	if err := d.Run(&tir.File{Decls: decls}); err != nil {
		t.Fatalf("declaration pass failed: %+v", err)
	}
	prog, err := hir.Lower(d.Syms)
	if err != nil {
		t.Fatalf("Lower failed: %+v", err)
	}
	return prog
}

func findFunction(t *testing.T, prog *hir.Program, name string) *hir.FunctionDecl {
	t.Helper()
	for _, fn := range prog.Functions {
		if fn.Name == name {
			return fn
		}
	}
	t.Fatalf("function %q not found in lowered program", name)
	return nil
}

// TestLowerMethodCallPointerReceiver covers the first ref-adapter case
// (spec.md §4.3): a receiver that is already a pointer is passed through
// untouched.
func TestLowerMethodCallPointerReceiver(t *testing.T) {
	useCase := &tir.FunctionDecl{
		Name:   "use_ptr",
		Params: []tir.Param{{Name: "p", Type: tir.Pointer(tir.Structure("Date"))}},
		Return: tir.Void(),
		Body: &tir.BlockStmt{Stmts: []tir.Stmt{
			tir.ExprStmt{X: tir.MethodCallExpr{Receiver: tir.VarExpr{Name: "p"}, Method: "tomorrow", Arrow: true}},
		}},
	}
	prog := lowerFile(t, dateStructureDecl(), useCase)
	fn := findFunction(t, prog, "use_ptr")
	if len(fn.Body.Stmts) != 1 {
		t.Fatalf("use_ptr body = %d stmts, want 1 (no hidden local hoisted)", len(fn.Body.Stmts))
	}
	es, ok := fn.Body.Stmts[0].(hir.ExprStmt)
	if !ok {
		t.Fatalf("stmt 0 is %T, want hir.ExprStmt", fn.Body.Stmts[0])
	}
	call, ok := es.X.(hir.Call)
	if !ok {
		t.Fatalf("ExprStmt.X is %T, want hir.Call", es.X)
	}
	if call.FuncName != "Date::tomorrow" {
		t.Fatalf("FuncName = %q, want Date::tomorrow", call.FuncName)
	}
	if len(call.Args) != 1 {
		t.Fatalf("Args = %d, want 1 (self)", len(call.Args))
	}
	ref, ok := call.Args[0].(hir.LocalRef)
	if !ok || ref.Name != "p" {
		t.Fatalf("Args[0] = %#v, want a bare LocalRef to p (pointer receiver passed through)", call.Args[0])
	}
}

// TestLowerMethodCallNamedVariableReceiver covers the second ref-adapter
// case: a bare named variable of structure type is addressed.
func TestLowerMethodCallNamedVariableReceiver(t *testing.T) {
	useCase := &tir.FunctionDecl{
		Name:   "use_val",
		Params: []tir.Param{{Name: "x", Type: tir.Structure("Date")}},
		Return: tir.Void(),
		Body: &tir.BlockStmt{Stmts: []tir.Stmt{
			tir.ExprStmt{X: tir.MethodCallExpr{Receiver: tir.VarExpr{Name: "x"}, Method: "tomorrow"}},
		}},
	}
	prog := lowerFile(t, dateStructureDecl(), useCase)
	fn := findFunction(t, prog, "use_val")
	if len(fn.Body.Stmts) != 1 {
		t.Fatalf("use_val body = %d stmts, want 1", len(fn.Body.Stmts))
	}
	call := fn.Body.Stmts[0].(hir.ExprStmt).X.(hir.Call)
	addr, ok := call.Args[0].(hir.Unary)
	if !ok || addr.Op != hir.UnaryAddr {
		t.Fatalf("Args[0] = %#v, want &x (UnaryAddr)", call.Args[0])
	}
	ref, ok := addr.X.(hir.LocalRef)
	if !ok || ref.Name != "x" {
		t.Fatalf("address-of operand = %#v, want LocalRef to x", addr.X)
	}
}

// TestLowerMethodCallHoistsHiddenLocalForTemporaryReceiver covers the third
// ref-adapter case: a receiver that is neither a pointer nor a bare named
// variable (here, a function call result) is materialized into a fresh
// hidden local hoisted ahead of the statement, then addressed.
func TestLowerMethodCallHoistsHiddenLocalForTemporaryReceiver(t *testing.T) {
	getDate := &tir.ExternFunctionDecl{Foreign: "get_date_ffi", Local: "get_date", Return: tir.Structure("Date")}
	useCase := &tir.FunctionDecl{
		Name:   "temp_test",
		Return: tir.Void(),
		Body: &tir.BlockStmt{Stmts: []tir.Stmt{
			tir.ExprStmt{X: tir.MethodCallExpr{Receiver: tir.CallExpr{Name: "get_date"}, Method: "tomorrow"}},
		}},
	}
	prog := lowerFile(t, dateStructureDecl(), getDate, useCase)
	fn := findFunction(t, prog, "temp_test")
	if len(fn.Body.Stmts) != 2 {
		t.Fatalf("temp_test body = %d stmts, want 2 (hoisted Let + ExprStmt)", len(fn.Body.Stmts))
	}
	hidden, ok := fn.Body.Stmts[0].(hir.Let)
	if !ok {
		t.Fatalf("stmt 0 is %T, want hir.Let (the hoisted hidden local)", fn.Body.Stmts[0])
	}
	if hidden.Type.Kind != hir.KindStructure || hidden.Type.StructName != "Date" {
		t.Fatalf("hidden local type = %+v, want structure Date", hidden.Type)
	}
	if _, ok := hidden.Init.(hir.Call); !ok {
		t.Fatalf("hidden local init = %T, want the get_date call", hidden.Init)
	}

	call := fn.Body.Stmts[1].(hir.ExprStmt).X.(hir.Call)
	if call.FuncName != "Date::tomorrow" {
		t.Fatalf("FuncName = %q, want Date::tomorrow", call.FuncName)
	}
	addr, ok := call.Args[0].(hir.Unary)
	if !ok || addr.Op != hir.UnaryAddr {
		t.Fatalf("Args[0] = %#v, want &<hidden local>", call.Args[0])
	}
	ref, ok := addr.X.(hir.LocalRef)
	if !ok || ref.Name != hidden.Name {
		t.Fatalf("address-of operand = %#v, want LocalRef to %q", addr.X, hidden.Name)
	}
}

// TestLowerRangeForDesugarsToLetAndWhile checks spec.md §4.3's verbatim
// rewrite: `for i in lo..hi body` becomes `let i = lo; while i < hi { body;
// i += 1 }`.
func TestLowerRangeForDesugarsToLetAndWhile(t *testing.T) {
	fn := &tir.FunctionDecl{
		Name:   "sum_range",
		Params: []tir.Param{{Name: "lo", Type: tir.Number()}, {Name: "hi", Type: tir.Number()}},
		Return: tir.Number(),
		Body: &tir.BlockStmt{Stmts: []tir.Stmt{
			&tir.RangeForStmt{
				VarName: "i",
				Lo:      tir.VarExpr{Name: "lo"},
				Hi:      tir.VarExpr{Name: "hi"},
				Body: &tir.BlockStmt{Stmts: []tir.Stmt{
					tir.ExprStmt{X: tir.VarExpr{Name: "i"}},
				}},
			},
			tir.ReturnStmt{Value: tir.NumberLit{Val: 0}},
		}},
	}
	prog := lowerFile(t, fn)
	lowered := findFunction(t, prog, "sum_range")
	if len(lowered.Body.Stmts) != 3 {
		t.Fatalf("sum_range body = %d stmts, want 3 (Let, While, Return)", len(lowered.Body.Stmts))
	}
	let, ok := lowered.Body.Stmts[0].(hir.Let)
	if !ok || let.Name != "i" {
		t.Fatalf("stmt 0 = %#v, want Let i = lo", lowered.Body.Stmts[0])
	}
	loop, ok := lowered.Body.Stmts[1].(*hir.While)
	if !ok {
		t.Fatalf("stmt 1 is %T, want *hir.While", lowered.Body.Stmts[1])
	}
	cond, ok := loop.Cond.(hir.Binary)
	if !ok || cond.Op != hir.BinLt {
		t.Fatalf("loop condition = %#v, want i < hi", loop.Cond)
	}
	if x, ok := cond.X.(hir.LocalRef); !ok || x.Name != "i" {
		t.Fatalf("loop condition LHS = %#v, want LocalRef i", cond.X)
	}
	if y, ok := cond.Y.(hir.LocalRef); !ok || y.Name != "hi" {
		t.Fatalf("loop condition RHS = %#v, want LocalRef hi", cond.Y)
	}
	last := loop.Body.Stmts[len(loop.Body.Stmts)-1]
	step, ok := last.(hir.Assign)
	if !ok || step.Op != hir.AssignAdd {
		t.Fatalf("loop body's last stmt = %#v, want i += 1", last)
	}
	if target, ok := step.Target.(hir.LocalRef); !ok || target.Name != "i" {
		t.Fatalf("step target = %#v, want LocalRef i", step.Target)
	}
}

// TestLowerRelationalOperatorProducesBooleanType checks that a comparison,
// unlike arithmetic, is annotated Boolean at the HIR level regardless of its
// operands' type (hir/compile.go relies on this to know when to run the
// sign-based relational lowering rather than plain arithmetic).
func TestLowerRelationalOperatorProducesBooleanType(t *testing.T) {
	fn := &tir.FunctionDecl{
		Name:   "cmp",
		Params: []tir.Param{{Name: "a", Type: tir.Number()}, {Name: "b", Type: tir.Number()}},
		Return: tir.Boolean(),
		Body: &tir.BlockStmt{Stmts: []tir.Stmt{
			tir.ReturnStmt{Value: tir.BinaryExpr{Op: tir.BinLt, X: tir.VarExpr{Name: "a"}, Y: tir.VarExpr{Name: "b"}}},
		}},
	}
	prog := lowerFile(t, fn)
	lowered := findFunction(t, prog, "cmp")
	ret := lowered.Body.Stmts[0].(hir.Return)
	bin, ok := ret.Value.(hir.Binary)
	if !ok {
		t.Fatalf("return value = %T, want hir.Binary", ret.Value)
	}
	if bin.Type.Kind != hir.KindBoolean {
		t.Fatalf("a < b type = %+v, want Boolean", bin.Type)
	}
}

// boxStructureDecl returns a non-movable Box{v: Number} structure with both
// a copy and a drop method, the fixture the copy/drop insertion tests below
// share.
func boxStructureDecl() *tir.StructureDecl {
	return &tir.StructureDecl{
		Name:    "Box",
		Members: []tir.Member{{Name: "v", Type: tir.Number()}},
		Methods: []*tir.FunctionDecl{
			{
				Name:   "copy",
				Params: []tir.Param{{Name: "self", Type: tir.Pointer(tir.Structure("Box"))}},
				Return: tir.Structure("Box"),
				Body: &tir.BlockStmt{Stmts: []tir.Stmt{
					tir.ReturnStmt{Value: tir.UnaryExpr{Op: tir.UnaryDeref, X: tir.VarExpr{Name: "self"}}},
				}},
			},
			{
				Name:   "drop",
				Params: []tir.Param{{Name: "self", Type: tir.Pointer(tir.Structure("Box"))}},
				Return: tir.Void(),
				Body:   &tir.BlockStmt{},
			},
		},
	}
}

// TestLowerInsertsCopyOnLetBind checks spec.md §4.3's first producer site: a
// Let binding a non-movable value runs it through T::copy instead of a raw
// cell copy.
func TestLowerInsertsCopyOnLetBind(t *testing.T) {
	useCase := &tir.FunctionDecl{
		Name:   "rebind",
		Params: []tir.Param{{Name: "b", Type: tir.Structure("Box")}},
		Return: tir.Void(),
		Body: &tir.BlockStmt{Stmts: []tir.Stmt{
			tir.LetStmt{Name: "c", Init: tir.VarExpr{Name: "b"}},
		}},
	}
	prog := lowerFile(t, boxStructureDecl(), useCase)
	fn := findFunction(t, prog, "rebind")
	let, ok := fn.Body.Stmts[0].(hir.Let)
	if !ok {
		t.Fatalf("stmt 0 is %T, want hir.Let", fn.Body.Stmts[0])
	}
	call, ok := let.Init.(hir.Call)
	if !ok || call.FuncName != "Box::copy" {
		t.Fatalf("hir.Let c init = %#v, want a Box::copy call", let.Init)
	}
}

// TestLowerMoveSuppressesCopyOnLetBind checks move(e) skips the copy
// insertion that TestLowerInsertsCopyOnLetBind otherwise exercises.
func TestLowerMoveSuppressesCopyOnLetBind(t *testing.T) {
	useCase := &tir.FunctionDecl{
		Name:   "rebind_moved",
		Params: []tir.Param{{Name: "b", Type: tir.Structure("Box")}},
		Return: tir.Void(),
		Body: &tir.BlockStmt{Stmts: []tir.Stmt{
			tir.LetStmt{Name: "c", Init: tir.MoveExpr{X: tir.VarExpr{Name: "b"}}},
		}},
	}
	prog := lowerFile(t, boxStructureDecl(), useCase)
	fn := findFunction(t, prog, "rebind_moved")
	let, ok := fn.Body.Stmts[0].(hir.Let)
	if !ok {
		t.Fatalf("stmt 0 is %T, want hir.Let", fn.Body.Stmts[0])
	}
	if _, ok := let.Init.(hir.Call); ok {
		t.Fatalf("hir.Let c init = %#v, want the bare moved value (no Box::copy call)", let.Init)
	}
	if ref, ok := let.Init.(hir.LocalRef); !ok || ref.Name != "b" {
		t.Fatalf("hir.Let c init = %#v, want hir.LocalRef to b", let.Init)
	}
}

// TestLowerInsertsCopyOnReturn checks the second producer site: returning a
// non-movable local copies it rather than handing back the local's own cells.
func TestLowerInsertsCopyOnReturn(t *testing.T) {
	useCase := &tir.FunctionDecl{
		Name:   "make_box",
		Params: []tir.Param{{Name: "b", Type: tir.Structure("Box")}},
		Return: tir.Structure("Box"),
		Body: &tir.BlockStmt{Stmts: []tir.Stmt{
			tir.ReturnStmt{Value: tir.VarExpr{Name: "b"}},
		}},
	}
	prog := lowerFile(t, boxStructureDecl(), useCase)
	fn := findFunction(t, prog, "make_box")
	ret, ok := fn.Body.Stmts[0].(hir.Return)
	if !ok {
		t.Fatalf("stmt 0 is %T, want hir.Return", fn.Body.Stmts[0])
	}
	call, ok := ret.Value.(hir.Call)
	if !ok || call.FuncName != "Box::copy" {
		t.Fatalf("hir.Return value = %#v, want a Box::copy call", ret.Value)
	}
}

// TestLowerInsertsCopyOnByValueArgument checks the third producer site: a
// non-movable value passed by value to a plain function call is copied.
func TestLowerInsertsCopyOnByValueArgument(t *testing.T) {
	takeBox := &tir.FunctionDecl{
		Name:   "take_box",
		Params: []tir.Param{{Name: "b", Type: tir.Structure("Box")}},
		Return: tir.Void(),
		Body:   &tir.BlockStmt{},
	}
	useCase := &tir.FunctionDecl{
		Name:   "call_take_box",
		Params: []tir.Param{{Name: "b", Type: tir.Structure("Box")}},
		Return: tir.Void(),
		Body: &tir.BlockStmt{Stmts: []tir.Stmt{
			tir.ExprStmt{X: tir.CallExpr{Name: "take_box", Args: []tir.Expr{tir.VarExpr{Name: "b"}}}},
		}},
	}
	prog := lowerFile(t, boxStructureDecl(), takeBox, useCase)
	fn := findFunction(t, prog, "call_take_box")
	es, ok := fn.Body.Stmts[0].(hir.ExprStmt)
	if !ok {
		t.Fatalf("stmt 0 is %T, want hir.ExprStmt", fn.Body.Stmts[0])
	}
	outer, ok := es.X.(hir.Call)
	if !ok || outer.FuncName != "take_box" {
		t.Fatalf("hir.ExprStmt.X = %#v, want a take_box call", es.X)
	}
	arg, ok := outer.Args[0].(hir.Call)
	if !ok || arg.FuncName != "Box::copy" {
		t.Fatalf("take_box arg 0 = %#v, want a Box::copy call", outer.Args[0])
	}
}

// TestLowerDropsNonMovableLocalAtBlockEnd checks spec.md §4.3's scope-exit
// side: a block-scoped non-movable local gets a trailing T::drop call.
func TestLowerDropsNonMovableLocalAtBlockEnd(t *testing.T) {
	useCase := &tir.FunctionDecl{
		Name:   "use_local_box",
		Params: []tir.Param{{Name: "b", Type: tir.Structure("Box")}},
		Return: tir.Void(),
		Body: &tir.BlockStmt{Stmts: []tir.Stmt{
			tir.LetStmt{Name: "c", Init: tir.MoveExpr{X: tir.VarExpr{Name: "b"}}},
		}},
	}
	prog := lowerFile(t, boxStructureDecl(), useCase)
	fn := findFunction(t, prog, "use_local_box")
	last := fn.Body.Stmts[len(fn.Body.Stmts)-1]
	es, ok := last.(hir.ExprStmt)
	if !ok {
		t.Fatalf("last stmt is %T, want hir.ExprStmt (the drop call)", last)
	}
	call, ok := es.X.(hir.Call)
	if !ok || call.FuncName != "Box::drop" {
		t.Fatalf("last stmt = %#v, want a Box::drop call", es.X)
	}
	addr, ok := call.Args[0].(hir.Unary)
	if !ok || addr.Op != hir.UnaryAddr {
		t.Fatalf("Box::drop arg 0 = %#v, want &c", call.Args[0])
	}
	if ref, ok := addr.X.(hir.LocalRef); !ok || ref.Name != "c" {
		t.Fatalf("Box::drop address-of operand = %#v, want hir.LocalRef to c", addr.X)
	}
}

// TestLowerEpilogDropsNonMovableParameter checks that a by-value non-movable
// parameter is dropped from fn.Epilog, not fn.Body — the unconditional
// frame-epilog point hir/compile.go's compileFunction runs once regardless
// of which return path inside the body fired.
func TestLowerEpilogDropsNonMovableParameter(t *testing.T) {
	useCase := &tir.FunctionDecl{
		Name:   "consume_box",
		Params: []tir.Param{{Name: "b", Type: tir.Structure("Box")}},
		Return: tir.Void(),
		Body:   &tir.BlockStmt{},
	}
	prog := lowerFile(t, boxStructureDecl(), useCase)
	fn := findFunction(t, prog, "consume_box")
	if len(fn.Epilog) != 1 {
		t.Fatalf("Epilog = %d stmts, want 1 (drop of parameter b)", len(fn.Epilog))
	}
	es, ok := fn.Epilog[0].(hir.ExprStmt)
	if !ok {
		t.Fatalf("Epilog[0] is %T, want hir.ExprStmt", fn.Epilog[0])
	}
	call, ok := es.X.(hir.Call)
	if !ok || call.FuncName != "Box::drop" {
		t.Fatalf("Epilog[0] = %#v, want a Box::drop call", es.X)
	}
	addr, ok := call.Args[0].(hir.Unary)
	if !ok || addr.Op != hir.UnaryAddr {
		t.Fatalf("Box::drop arg 0 = %#v, want &b", call.Args[0])
	}
	if ref, ok := addr.X.(hir.LocalRef); !ok || ref.Name != "b" {
		t.Fatalf("Box::drop address-of operand = %#v, want hir.LocalRef to b", addr.X)
	}
	for _, s := range fn.Body.Stmts {
		if es, ok := s.(hir.ExprStmt); ok {
			if c, ok := es.X.(hir.Call); ok && c.FuncName == "Box::drop" {
				t.Fatal("Box::drop for parameter b should only appear in Epilog, not Body")
			}
		}
	}
}

// TestLowerMissingReturnErrors checks spec.md §7's structural error: a
// non-void function with a path that falls off the end without a return.
func TestLowerMissingReturnErrors(t *testing.T) {
	useCase := &tir.FunctionDecl{
		Name:   "maybe_return",
		Params: []tir.Param{{Name: "n", Type: tir.Number()}},
		Return: tir.Number(),
		Body: &tir.BlockStmt{Stmts: []tir.Stmt{
			&tir.IfStmt{
				Cond: tir.BinaryExpr{Op: tir.BinGt, X: tir.VarExpr{Name: "n"}, Y: tir.NumberLit{Val: 0}},
				Then: &tir.BlockStmt{Stmts: []tir.Stmt{tir.ReturnStmt{Value: tir.NumberLit{Val: 1}}}},
			},
		}},
	}
	d := decl.NewDriver(nil)
	if err := d.Run(&tir.File{Decls: []tir.Decl{useCase}}); err != nil {
		t.Fatalf("declaration pass failed: %+v", err)
	}
	if _, err := hir.Lower(d.Syms); err == nil {
		t.Fatal("expected a missing-return error")
	}
}

// TestLowerCallArityMismatchErrors checks spec.md §7's structural error: a
// call site passing the wrong number of arguments.
func TestLowerCallArityMismatchErrors(t *testing.T) {
	callee := &tir.FunctionDecl{
		Name:   "add",
		Params: []tir.Param{{Name: "a", Type: tir.Number()}, {Name: "b", Type: tir.Number()}},
		Return: tir.Number(),
		Body:   &tir.BlockStmt{Stmts: []tir.Stmt{tir.ReturnStmt{Value: tir.VarExpr{Name: "a"}}}},
	}
	caller := &tir.FunctionDecl{
		Name:   "call_add",
		Return: tir.Number(),
		Body: &tir.BlockStmt{Stmts: []tir.Stmt{
			tir.ReturnStmt{Value: tir.CallExpr{Name: "add", Args: []tir.Expr{tir.NumberLit{Val: 1}}}},
		}},
	}
	d := decl.NewDriver(nil)
	if err := d.Run(&tir.File{Decls: []tir.Decl{callee, caller}}); err != nil {
		t.Fatalf("declaration pass failed: %+v", err)
	}
	if _, err := hir.Lower(d.Syms); err == nil {
		t.Fatal("expected a call-arity-mismatch error")
	}
}

// TestLowerMethodCallArityMismatchErrors mirrors the plain-call arity check
// for a method call, accounting for the leading self parameter.
func TestLowerMethodCallArityMismatchErrors(t *testing.T) {
	useCase := &tir.FunctionDecl{
		Name:   "use_ptr",
		Params: []tir.Param{{Name: "p", Type: tir.Pointer(tir.Structure("Date"))}},
		Return: tir.Void(),
		Body: &tir.BlockStmt{Stmts: []tir.Stmt{
			tir.ExprStmt{X: tir.MethodCallExpr{
				Receiver: tir.VarExpr{Name: "p"}, Method: "tomorrow", Arrow: true,
				Args: []tir.Expr{tir.NumberLit{Val: 1}},
			}},
		}},
	}
	d := decl.NewDriver(nil)
	if err := d.Run(&tir.File{Decls: []tir.Decl{dateStructureDecl(), useCase}}); err != nil {
		t.Fatalf("declaration pass failed: %+v", err)
	}
	if _, err := hir.Lower(d.Syms); err == nil {
		t.Fatal("expected a method-call-arity-mismatch error")
	}
}

// TestAccessorsForStructure checks spec.md §4.2's synthesized
// `T::member(&self) -> &MemberType` accessors: one per field, in
// declaration order, at the field's cumulative cell offset.
func TestAccessorsForStructure(t *testing.T) {
	prog := lowerFile(t, dateStructureDecl())
	wantOffsets := map[string]int{"Date::m": 0, "Date::d": 1, "Date::y": 2}
	for name, offset := range wantOffsets {
		fn := findFunction(t, prog, name)
		if len(fn.Params) != 1 || fn.Params[0].Name != "self" {
			t.Fatalf("%s params = %+v, want a single self param", name, fn.Params)
		}
		if fn.Return.Kind != hir.KindPointer || fn.Return.Pointee.Kind != hir.KindNumber {
			t.Fatalf("%s return type = %+v, want &num", name, fn.Return)
		}
		ret := fn.Body.Stmts[0].(hir.Return)
		addr, ok := ret.Value.(hir.FieldAddr)
		if !ok {
			t.Fatalf("%s body returns %T, want hir.FieldAddr", name, ret.Value)
		}
		if addr.Offset != offset {
			t.Fatalf("%s offset = %d, want %d", name, addr.Offset, offset)
		}
	}
}
