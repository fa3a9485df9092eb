package hir

import (
	"strconv"

	"github.com/pkg/errors"

	"github.com/oak-lang/oakc/constant"
	"github.com/oak-lang/oakc/decl"
	"github.com/oak-lang/oakc/tir"
)

// Expr is a sized HIR expression: every node knows the exact cell size of
// the value it leaves on the stack once compiled (spec.md §4.3's "every
// intermediate expression is annotated with its cell size").
type Expr interface {
	Position() constant.Position
	ExprType() Type
}

type NumberLit struct {
	Pos constant.Position
	Val float64
}

type CharacterLit struct {
	Pos constant.Position
	Val rune
}

type BooleanLit struct {
	Pos constant.Position
	Val bool
}

// StringLit references a static string table entry; hir/compile.go assigns
// the address once the static data layout is known.
type StringLit struct {
	Pos constant.Position
	Val string
}

// LocalRef is a reference to a named parameter or local; hir/compile.go
// resolves Name to a frame slot. It is the HIR analogue of tir.VarExpr
// once flattening has rewritten every other way of reaching storage.
type LocalRef struct {
	Pos  constant.Position
	Name string
	Type Type
}

// Call is a free-function call, possibly synthesized from a tir method
// call via method flattening (spec.md §4.3).
type Call struct {
	Pos      constant.Position
	FuncName string
	Args     []Expr
	Type     Type
}

type UnaryOp int

const (
	UnaryNeg UnaryOp = iota
	UnaryNot
	UnaryAddr
	UnaryDeref
)

type Unary struct {
	Pos  constant.Position
	Op   UnaryOp
	X    Expr
	Type Type
}

type BinaryOp int

const (
	BinAdd BinaryOp = iota
	BinSub
	BinMul
	BinDiv
	BinEq
	BinNe
	BinLt
	BinLe
	BinGt
	BinGe
	BinAnd
	BinOr
)

type Binary struct {
	Pos  constant.Position
	Op   BinaryOp
	X, Y Expr
	Type Type
}

type Ternary struct {
	Pos              constant.Position
	Cond, Then, Else Expr
	Type             Type
}

// Cast re-annotates X's type without emitting any instruction (spec.md
// §4.3: source and destination sizes must already match).
type Cast struct {
	Pos  constant.Position
	X    Expr
	Type Type
}

type Alloc struct {
	Pos  constant.Position
	N    Expr
	Type Type
}

// FieldAddr computes the address of a structure member: Base + Offset.
// Reading the member wraps this in a Unary{Op: UnaryDeref}; writing
// through it (an assignment target) uses the address directly.
type FieldAddr struct {
	Pos    constant.Position
	Base   Expr
	Offset int
	Type   Type // always a Pointer to the field's type
}

// Index lowers p[i] to *(p + i*sizeof(elem)); kept as its own node (rather
// than immediately expanding to the arithmetic) so hir/compile.go can emit
// the canonical address-then-load sequence once.
type Index struct {
	Pos  constant.Position
	Ptr  Expr
	Idx  Expr
	Type Type // element type
}

func (e NumberLit) Position() constant.Position  { return e.Pos }
func (e NumberLit) ExprType() Type               { return Number() }
func (e CharacterLit) Position() constant.Position { return e.Pos }
func (e CharacterLit) ExprType() Type            { return Character() }
func (e BooleanLit) Position() constant.Position { return e.Pos }
func (e BooleanLit) ExprType() Type              { return Boolean() }
func (e StringLit) Position() constant.Position  { return e.Pos }
func (e StringLit) ExprType() Type               { return Pointer(Character()) }
func (e LocalRef) Position() constant.Position   { return e.Pos }
func (e LocalRef) ExprType() Type                { return e.Type }
func (e Call) Position() constant.Position       { return e.Pos }
func (e Call) ExprType() Type                    { return e.Type }
func (e Unary) Position() constant.Position      { return e.Pos }
func (e Unary) ExprType() Type                   { return e.Type }
func (e Binary) Position() constant.Position     { return e.Pos }
func (e Binary) ExprType() Type                  { return e.Type }
func (e Ternary) Position() constant.Position    { return e.Pos }
func (e Ternary) ExprType() Type                 { return e.Type }
func (e Cast) Position() constant.Position       { return e.Pos }
func (e Cast) ExprType() Type                    { return e.Type }
func (e Alloc) Position() constant.Position      { return e.Pos }
func (e Alloc) ExprType() Type                   { return e.Type }
func (e FieldAddr) Position() constant.Position  { return e.Pos }
func (e FieldAddr) ExprType() Type               { return e.Type }
func (e Index) Position() constant.Position      { return e.Pos }
func (e Index) ExprType() Type                   { return e.Type }

// Stmt is a sized HIR statement.
type Stmt interface {
	Position() constant.Position
}

type Block struct {
	Pos   constant.Position
	Stmts []Stmt
}

type Let struct {
	Pos  constant.Position
	Name string
	Type Type
	Init Expr
}

type AssignOp int

const (
	AssignSet AssignOp = iota
	AssignAdd
	AssignSub
	AssignMul
	AssignDiv
)

type Assign struct {
	Pos    constant.Position
	Op     AssignOp
	Target Expr
	Value  Expr
}

type Return struct {
	Pos   constant.Position
	Value Expr // nil for void
}

// If/IfElse compile to single-iteration begin_while/end_while emulation
// (spec.md §4.4: "the IR has no branch instruction"). thenFlag (and
// elseFlag, for IfElse) name the synthetic frame-local booleans that
// drive the emulation; hir/compile.go's frame-layout pre-pass assigns
// them once per node before the emission pass reads them.
type If struct {
	Pos      constant.Position
	Cond     Expr
	Then     *Block
	thenFlag string
}

type IfElse struct {
	Pos      constant.Position
	Cond     Expr
	Then     *Block
	Else     *Block
	thenFlag string
	elseFlag string
}

type While struct {
	Pos  constant.Position
	Cond Expr
	Body *Block
}

type Free struct {
	Pos  constant.Position
	Addr Expr
	Size Expr
}

type ExprStmt struct {
	Pos constant.Position
	X   Expr
}

func (s *Block) Position() constant.Position { return s.Pos }
func (s Let) Position() constant.Position    { return s.Pos }
func (s Assign) Position() constant.Position { return s.Pos }
func (s Return) Position() constant.Position { return s.Pos }
func (s *If) Position() constant.Position    { return s.Pos }
func (s *IfElse) Position() constant.Position { return s.Pos }
func (s *While) Position() constant.Position { return s.Pos }
func (s Free) Position() constant.Position   { return s.Pos }
func (s ExprStmt) Position() constant.Position { return s.Pos }

// Param is one sized function parameter.
type Param struct {
	Name string
	Type Type
}

// FunctionDecl is one HIR function: sized params/return, and a body (nil
// for a foreign-declared function).
type FunctionDecl struct {
	ID     int
	Name   string
	Params []Param
	Return Type
	Body   *Block

	// Epilog holds drop calls for non-movable by-value parameters
	// (spec.md §4.3: "before the frame epilog"). Unlike a block-scoped
	// local's drop — appended to the Stmts list it was declared in, so it
	// inherits compile.go's guardNotReturned skip-on-early-return — a
	// parameter is live for the whole call, so hir/compile.go's
	// compileFunction compiles Epilog unconditionally, once, right after
	// the (possibly early-returning) body and before the return-value
	// load, matching the real frame epilog regardless of which return
	// statement fired.
	Epilog  []Stmt
	Foreign string // non-empty iff this is an extern function
}

// Program is the whole lowered unit: every function (user-defined plus
// synthesized member accessors, spec.md §4.2's "synthesize accessor
// functions for each member") and the Types table compile.go needs for
// sizes and layouts.
type Program struct {
	Functions []*FunctionDecl
	Types     *TypeTable
}

// scope is a lowering-time name->Type environment, nested per block, used
// to resolve method-call receiver types and member-access base types
// (spec.md §4.3's method flattening needs to know "the resolved type of
// instance").
type scope struct {
	vars   map[string]Type
	parent *scope
}

func newScope(parent *scope) *scope { return &scope{vars: make(map[string]Type), parent: parent} }

func (s *scope) define(name string, t Type) { s.vars[name] = t }

func (s *scope) lookup(name string) (Type, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if t, ok := cur.vars[name]; ok {
			return t, true
		}
	}
	return Type{}, false
}

// lowerer threads the symbol table, type table, and a synthetic-name
// counter (for method-flattening's hidden locals) through one file's
// lowering pass. pending accumulates hidden-local Let statements that an
// expression lowering needs hoisted ahead of the statement it sits in
// (the third ref-adapter case in spec.md §4.3); lowerStmt drains it after
// lowering each top-level tir.Stmt.
type lowerer struct {
	syms    *decl.SymbolTable
	types   *TypeTable
	nameSeq int
	pending []Stmt

	// currentReturn is the enclosing function's resolved return type,
	// needed by the tir.ReturnStmt case to decide whether the returned
	// value needs a copy-insertion pass (spec.md §4.3).
	currentReturn Type
}

// Lower builds the sized, method-flattened Program from syms, the
// declaration driver's output (spec.md §4.3).
func Lower(syms *decl.SymbolTable) (*Program, error) {
	l := &lowerer{syms: syms, types: NewTypeTable(syms)}
	prog := &Program{Types: l.types}

	for _, name := range structureOrder(syms) {
		info, _ := syms.Structure(name)
		if _, err := l.types.StructLayout(name); err != nil {
			return nil, errors.Wrapf(err, "structure %q", info.Decl.Name)
		}
		accessors, err := l.accessorsFor(name)
		if err != nil {
			return nil, err
		}
		prog.Functions = append(prog.Functions, accessors...)
	}

	for _, name := range functionOrder(syms) {
		info, _ := syms.Function(name)
		fn, err := l.lowerFunction(info)
		if err != nil {
			return nil, errors.Wrapf(err, "function %q", info.Name)
		}
		prog.Functions = append(prog.Functions, fn)
	}
	return prog, nil
}

// structureOrder and functionOrder expose the decl package's registration
// order, which decl.SymbolTable keeps private; both packages are ours, so
// we re-derive the order here from the ID field AssignFunctionIDs already
// stamped (stable, dense, declaration-order per spec.md §4.2).
func functionOrder(syms *decl.SymbolTable) []string {
	names := make([]string, 0, len(syms.Functions))
	for name := range syms.Functions {
		names = append(names, name)
	}
	sortByID(names, func(n string) int { f, _ := syms.Function(n); return f.ID })
	return names
}

func structureOrder(syms *decl.SymbolTable) []string {
	names := make([]string, 0, len(syms.Structures))
	for name := range syms.Structures {
		names = append(names, name)
	}
	sortByID(names, func(n string) int { s, _ := syms.Structure(n); return s.ID })
	return names
}

func sortByID(names []string, id func(string) int) {
	for i := 1; i < len(names); i++ {
		for j := i; j > 0 && id(names[j-1]) > id(names[j]); j-- {
			names[j-1], names[j] = names[j], names[j-1]
		}
	}
}

// accessorsFor synthesizes one function per member, `Type::member(&self)
// -> &MemberType`, matching spec.md §4.2's "synthesize accessor functions
// for each member" and the testable invariant "S::memberᵢ(&x) == &x +
// offsetᵢ" (spec.md §8). These are real callable HIR functions; the
// `.field`/`->field` sugar in ordinary expressions still lowers directly
// to the equivalent FieldAddr (spec.md §4.3) rather than paying a call's
// overhead, which is observably identical per that same invariant.
func (l *lowerer) accessorsFor(structName string) ([]*FunctionDecl, error) {
	layout, err := l.types.StructLayout(structName)
	if err != nil {
		return nil, err
	}
	selfType := Pointer(Type{Kind: KindStructure, Size: layout.Size, StructName: structName})
	var fns []*FunctionDecl
	for _, f := range layout.Fields {
		field := f
		fns = append(fns, &FunctionDecl{
			Name:   structName + "::" + field.Name,
			Params: []Param{{Name: "self", Type: selfType}},
			Return: Pointer(field.Type),
			Body: &Block{Stmts: []Stmt{
				Return{Value: FieldAddr{
					Base:   LocalRef{Name: "self", Type: selfType},
					Offset: field.Offset,
					Type:   Pointer(field.Type),
				}},
			}},
		})
	}
	return fns, nil
}

func (l *lowerer) lowerFunction(info *decl.FunctionInfo) (*FunctionDecl, error) {
	params := make([]Param, len(info.Params))
	sc := newScope(nil)
	for i, p := range info.Params {
		t, err := l.types.Resolve(p.Type)
		if err != nil {
			return nil, err
		}
		params[i] = Param{Name: p.Name, Type: t}
		sc.define(p.Name, t)
	}
	ret, err := l.types.Resolve(info.Return)
	if err != nil {
		return nil, err
	}
	fn := &FunctionDecl{ID: info.ID, Name: info.Name, Params: params, Return: ret, Foreign: info.Foreign}
	if info.Foreign != "" {
		return fn, nil
	}
	l.currentReturn = ret
	body, err := l.lowerBlock(info.Body, sc)
	if err != nil {
		return nil, err
	}
	if ret.Kind != KindVoid && !allPathsReturn(body) {
		return nil, errors.Errorf("function %q: missing return on some path", info.Name)
	}
	fn.Body = body

	paramLocals := make([]Let, len(params))
	for i, p := range params {
		paramLocals[i] = Let{Name: p.Name, Type: p.Type}
	}
	fn.Epilog = l.dropLocals(info.Body.Pos, paramLocals)
	return fn, nil
}

// allPathsReturn reports whether every control-flow path through b ends in
// a Return statement (spec.md §7's missing-return structural error for a
// non-void function). A While body can't guarantee it runs at all, so only
// a Return anywhere in b's own statement list, or an IfElse whose Then and
// Else both return, count.
func allPathsReturn(b *Block) bool {
	for _, s := range b.Stmts {
		switch st := s.(type) {
		case Return:
			return true
		case *IfElse:
			if allPathsReturn(st.Then) && allPathsReturn(st.Else) {
				return true
			}
		}
	}
	return false
}

func (l *lowerer) lowerBlock(b *tir.BlockStmt, parent *scope) (*Block, error) {
	sc := newScope(parent)
	out := &Block{Pos: b.Pos}
	var locals []Let
	for _, s := range b.Stmts {
		lowered, err := l.lowerStmt(s, sc)
		if err != nil {
			return nil, err
		}
		out.Stmts = append(out.Stmts, lowered...)
		for _, st := range lowered {
			if let, ok := st.(Let); ok {
				locals = append(locals, let)
			}
		}
	}
	out.Stmts = append(out.Stmts, l.dropLocals(b.Pos, locals)...)
	return out, nil
}

// dropLocals appends T::drop calls, innermost-declared first, for this
// block's own non-movable locals (spec.md §4.3: "before the frame
// epilog"). A local whose non-movability comes only from a struct member
// with no drop method of its own has nothing to call and is skipped —
// matching copyIfNeeded's same rule for copy.
//
// These calls are appended at the end of the Stmts list the local was
// declared in, so hir/compile.go's existing guardNotReturned wrapping
// (every statement following one that might set $returned is itself
// conditioned on !$returned) also guards them: a return that happens
// before control reaches the end of this same block skips the drop. That
// covers the common case — a local dropped at the close of the scope it
// was declared in, with no early return out of that scope — but not an
// early return from inside the local's own block.
func (l *lowerer) dropLocals(pos constant.Position, locals []Let) []Stmt {
	var out []Stmt
	for i := len(locals) - 1; i >= 0; i-- {
		loc := locals[i]
		if loc.Type.Kind != KindStructure {
			continue
		}
		layout, err := l.types.StructLayout(loc.Type.StructName)
		if err != nil || layout.Movable {
			continue
		}
		mangled := loc.Type.StructName + "::drop"
		if _, ok := l.syms.Function(mangled); !ok {
			continue
		}
		ref := Unary{Pos: pos, Op: UnaryAddr, X: LocalRef{Pos: pos, Name: loc.Name, Type: loc.Type}, Type: Pointer(loc.Type)}
		out = append(out, ExprStmt{Pos: pos, X: Call{Pos: pos, FuncName: mangled, Args: []Expr{ref}, Type: Void()}})
	}
	return out
}

// lowerStmt returns a slice because RangeForStmt/ForStmt desugar into more
// than one HIR statement (spec.md §4.3's `for i in a..b` rewrite) and
// because a method call on a temporary receiver hoists a hidden Let ahead
// of the statement that uses it.
func (l *lowerer) lowerStmt(s tir.Stmt, sc *scope) ([]Stmt, error) {
	out, err := l.lowerStmtInner(s, sc)
	if err != nil {
		return nil, err
	}
	if len(l.pending) == 0 {
		return out, nil
	}
	hoisted := append(l.pending, out...)
	l.pending = nil
	return hoisted, nil
}

func (l *lowerer) lowerStmtInner(s tir.Stmt, sc *scope) ([]Stmt, error) {
	switch st := s.(type) {
	case tir.LetStmt:
		init, err := l.lowerExpr(st.Init, sc)
		if err != nil {
			return nil, err
		}
		t := init.ExprType()
		if st.Type.Kind != tir.KindVoid || st.Type.StructName != "" || st.Type.Pointee != nil {
			resolved, err := l.types.Resolve(st.Type)
			if err != nil {
				return nil, err
			}
			t = resolved
		}
		init, err = l.copyIfNeeded(st.Pos, t, init, isMoveExpr(st.Init), sc)
		if err != nil {
			return nil, err
		}
		sc.define(st.Name, t)
		return []Stmt{Let{Pos: st.Pos, Name: st.Name, Type: t, Init: init}}, nil

	case tir.AssignStmt:
		target, err := l.lowerLvalue(st.Target, sc)
		if err != nil {
			return nil, err
		}
		value, err := l.lowerExpr(st.Value, sc)
		if err != nil {
			return nil, err
		}
		return []Stmt{Assign{Pos: st.Pos, Op: AssignOp(st.Op), Target: target, Value: value}}, nil

	case tir.ReturnStmt:
		if st.Value == nil {
			return []Stmt{Return{Pos: st.Pos}}, nil
		}
		v, err := l.lowerExpr(st.Value, sc)
		if err != nil {
			return nil, err
		}
		v, err = l.copyIfNeeded(st.Pos, l.currentReturn, v, isMoveExpr(st.Value), sc)
		if err != nil {
			return nil, err
		}
		return []Stmt{Return{Pos: st.Pos, Value: v}}, nil

	case *tir.IfStmt:
		return l.lowerIf(st, sc)

	case *tir.WhileStmt:
		cond, err := l.lowerExpr(st.Cond, sc)
		if err != nil {
			return nil, err
		}
		body, err := l.lowerBlock(st.Body, sc)
		if err != nil {
			return nil, err
		}
		return []Stmt{&While{Pos: st.Pos, Cond: cond, Body: body}}, nil

	case *tir.ForStmt:
		return l.lowerFor(st, sc)

	case *tir.RangeForStmt:
		return l.lowerRangeFor(st, sc)

	case tir.FreeStmt:
		addr, err := l.lowerExpr(st.Addr, sc)
		if err != nil {
			return nil, err
		}
		size, err := l.lowerExpr(st.Size, sc)
		if err != nil {
			return nil, err
		}
		return []Stmt{Free{Pos: st.Pos, Addr: addr, Size: size}}, nil

	case tir.ExprStmt:
		x, err := l.lowerExpr(st.X, sc)
		if err != nil {
			return nil, err
		}
		return []Stmt{ExprStmt{Pos: st.Pos, X: x}}, nil

	default:
		return nil, errors.Errorf("unrecognized tir statement %T", s)
	}
}

func (l *lowerer) lowerIf(st *tir.IfStmt, sc *scope) ([]Stmt, error) {
	cond, err := l.lowerExpr(st.Cond, sc)
	if err != nil {
		return nil, err
	}
	then, err := l.lowerBlock(st.Then, sc)
	if err != nil {
		return nil, err
	}

	// Build the else chain from the innermost elif outward so an
	// elif-chain becomes nested IfElse/If nodes, matching how spec.md
	// §6.2 describes if-elif-else as the general shape.
	var elseBlock *Block
	if st.Else != nil {
		elseBlock, err = l.lowerBlock(st.Else, sc)
		if err != nil {
			return nil, err
		}
	}
	for i := len(st.Elifs) - 1; i >= 0; i-- {
		elif := st.Elifs[i]
		elifCond, err := l.lowerExpr(elif.Cond, sc)
		if err != nil {
			return nil, err
		}
		elifThen, err := l.lowerBlock(elif.Then, sc)
		if err != nil {
			return nil, err
		}
		if elseBlock == nil {
			elseBlock = &Block{Stmts: []Stmt{&If{Pos: elif.Then.Pos, Cond: elifCond, Then: elifThen}}}
		} else {
			elseBlock = &Block{Stmts: []Stmt{&IfElse{Pos: elif.Then.Pos, Cond: elifCond, Then: elifThen, Else: elseBlock}}}
		}
	}

	if elseBlock == nil {
		return []Stmt{&If{Pos: st.Pos, Cond: cond, Then: then}}, nil
	}
	return []Stmt{&IfElse{Pos: st.Pos, Cond: cond, Then: then, Else: elseBlock}}, nil
}

// lowerFor expands the counted for (spec.md §4.4: `init; while cond {
// body; step }`).
func (l *lowerer) lowerFor(st *tir.ForStmt, sc *scope) ([]Stmt, error) {
	inner := newScope(sc)
	var init []Stmt
	if st.Init != nil {
		s, err := l.lowerStmt(st.Init, inner)
		if err != nil {
			return nil, err
		}
		init = s
	}
	cond, err := l.lowerExpr(st.Cond, inner)
	if err != nil {
		return nil, err
	}
	body, err := l.lowerBlock(st.Body, inner)
	if err != nil {
		return nil, err
	}
	if st.Step != nil {
		step, err := l.lowerStmt(st.Step, inner)
		if err != nil {
			return nil, err
		}
		body.Stmts = append(body.Stmts, step...)
	}
	return append(init, &While{Pos: st.Pos, Cond: cond, Body: body}), nil
}

// lowerRangeFor expands `for i in a..b body` to `{ let i = a; while i < b
// { body; i += 1 } }` (spec.md §4.3, verbatim).
func (l *lowerer) lowerRangeFor(st *tir.RangeForStmt, sc *scope) ([]Stmt, error) {
	inner := newScope(sc)
	lo, err := l.lowerExpr(st.Lo, inner)
	if err != nil {
		return nil, err
	}
	inner.define(st.VarName, lo.ExprType())
	letStmt := Let{Pos: st.Pos, Name: st.VarName, Type: lo.ExprType(), Init: lo}

	hi, err := l.lowerExpr(st.Hi, inner)
	if err != nil {
		return nil, err
	}
	cond := Binary{Pos: st.Pos, Op: BinLt, X: LocalRef{Name: st.VarName, Type: lo.ExprType()}, Y: hi, Type: Boolean()}

	body, err := l.lowerBlock(st.Body, inner)
	if err != nil {
		return nil, err
	}
	body.Stmts = append(body.Stmts, Assign{
		Pos:    st.Pos,
		Op:     AssignAdd,
		Target: LocalRef{Name: st.VarName, Type: lo.ExprType()},
		Value:  NumberLit{Pos: st.Pos, Val: 1},
	})
	return []Stmt{letStmt, &While{Pos: st.Pos, Cond: cond, Body: body}}, nil
}

// lowerLvalue lowers an assignment target, keeping a FieldAddr/Unary-deref
// as an address rather than auto-dereferencing it the way a read would.
func (l *lowerer) lowerLvalue(e tir.Expr, sc *scope) (Expr, error) {
	switch ex := e.(type) {
	case tir.VarExpr:
		t, ok := sc.lookup(ex.Name)
		if !ok {
			return nil, errors.Errorf("undefined variable %q", ex.Name)
		}
		return LocalRef{Pos: ex.Pos, Name: ex.Name, Type: t}, nil
	case tir.MemberExpr:
		return l.lowerMemberAddr(ex, sc)
	case tir.UnaryExpr:
		if ex.Op == tir.UnaryDeref {
			// The target of `*p = v` is "the cell p points at", not p's own
			// slot: keep the UnaryDeref wrapper so compile.go's compileAddr
			// reads p's value and uses that as the destination address,
			// rather than writing through p's own storage.
			return l.lowerUnary(ex, sc)
		}
	}
	return nil, errors.Errorf("expression is not assignable")
}

func (l *lowerer) lowerMemberAddr(ex tir.MemberExpr, sc *scope) (Expr, error) {
	recv, err := l.lowerExpr(ex.Receiver, sc)
	if err != nil {
		return nil, err
	}
	var base Expr
	structName := ""
	if ex.Arrow {
		base = recv
		if recv.ExprType().Kind == KindPointer {
			structName = recv.ExprType().Pointee.StructName
		}
	} else {
		base = Unary{Pos: ex.Pos, Op: UnaryAddr, X: recv, Type: Pointer(recv.ExprType())}
		structName = recv.ExprType().StructName
	}
	layout, err := l.types.StructLayout(structName)
	if err != nil {
		return nil, err
	}
	field, ok := layout.Field(ex.Field)
	if !ok {
		return nil, errors.Errorf("structure %q has no member %q", structName, ex.Field)
	}
	return FieldAddr{Pos: ex.Pos, Base: base, Offset: field.Offset, Type: Pointer(field.Type)}, nil
}

func (l *lowerer) lowerExpr(e tir.Expr, sc *scope) (Expr, error) {
	switch ex := e.(type) {
	case tir.NumberLit:
		return NumberLit{Pos: ex.Pos, Val: ex.Val}, nil
	case tir.CharacterLit:
		return CharacterLit{Pos: ex.Pos, Val: ex.Val}, nil
	case tir.BooleanLit:
		return BooleanLit{Pos: ex.Pos, Val: ex.Val}, nil
	case tir.StringLit:
		return StringLit{Pos: ex.Pos, Val: ex.Val}, nil

	case tir.VarExpr:
		t, ok := sc.lookup(ex.Name)
		if !ok {
			return nil, errors.Errorf("undefined variable %q at %s", ex.Name, ex.Pos)
		}
		return LocalRef{Pos: ex.Pos, Name: ex.Name, Type: t}, nil

	case tir.CallExpr:
		info, ok := l.syms.Function(ex.Name)
		if !ok {
			return nil, errors.Errorf("call to undeclared function %q", ex.Name)
		}
		if len(ex.Args) != len(info.Params) {
			return nil, errors.Errorf("call to %q at %s passes %d argument(s), want %d",
				ex.Name, ex.Pos, len(ex.Args), len(info.Params))
		}
		ret, err := l.types.Resolve(info.Return)
		if err != nil {
			return nil, err
		}
		args, err := l.lowerArgsWithCopy(ex.Args, info.Params, sc)
		if err != nil {
			return nil, err
		}
		return Call{Pos: ex.Pos, FuncName: ex.Name, Args: args, Type: ret}, nil

	case tir.MethodCallExpr:
		return l.lowerMethodCall(ex, sc)

	case tir.MemberExpr:
		addr, err := l.lowerMemberAddr(ex, sc)
		if err != nil {
			return nil, err
		}
		return Unary{Pos: ex.Pos, Op: UnaryDeref, X: addr, Type: *addr.ExprType().Pointee}, nil

	case tir.UnaryExpr:
		return l.lowerUnary(ex, sc)

	case tir.BinaryExpr:
		return l.lowerBinary(ex, sc)

	case tir.CastExpr:
		x, err := l.lowerExpr(ex.X, sc)
		if err != nil {
			return nil, err
		}
		t, err := l.types.Resolve(ex.Type)
		if err != nil {
			return nil, err
		}
		if t.Size != x.ExprType().Size {
			return nil, errors.Errorf("cast at %s changes size (%d -> %d)", ex.Pos, x.ExprType().Size, t.Size)
		}
		return Cast{Pos: ex.Pos, X: x, Type: t}, nil

	case tir.SizeOfExpr:
		t, err := l.types.Resolve(ex.Type)
		if err != nil {
			return nil, err
		}
		return NumberLit{Pos: ex.Pos, Val: float64(t.Size)}, nil

	case tir.AllocExpr:
		n, err := l.lowerExpr(ex.N, sc)
		if err != nil {
			return nil, err
		}
		return Alloc{Pos: ex.Pos, N: n, Type: Pointer(Number())}, nil

	case tir.IndexExpr:
		ptr, err := l.lowerExpr(ex.Ptr, sc)
		if err != nil {
			return nil, err
		}
		idx, err := l.lowerExpr(ex.Index, sc)
		if err != nil {
			return nil, err
		}
		if ptr.ExprType().Kind != KindPointer {
			return nil, errors.Errorf("index target at %s is not a pointer", ex.Pos)
		}
		return Index{Pos: ex.Pos, Ptr: ptr, Idx: idx, Type: *ptr.ExprType().Pointee}, nil

	case tir.TernaryExpr:
		cond, err := l.lowerExpr(ex.Cond, sc)
		if err != nil {
			return nil, err
		}
		then, err := l.lowerExpr(ex.Then, sc)
		if err != nil {
			return nil, err
		}
		els, err := l.lowerExpr(ex.Else, sc)
		if err != nil {
			return nil, err
		}
		return Ternary{Pos: ex.Pos, Cond: cond, Then: then, Else: els, Type: then.ExprType()}, nil

	case tir.MoveExpr:
		// The actual copy suppression happens in the three producer-site
		// callers (LetStmt, ReturnStmt, lowerArgsWithCopy), which check
		// isMoveExpr against the original tir.Expr before calling
		// lowerExpr — by the time control reaches this case, that
		// decision has already been made, so move(e) lowers exactly like
		// e itself.
		return l.lowerExpr(ex.X, sc)

	case tir.IsMovableExpr:
		layout, err := l.types.StructLayout(ex.Type.StructName)
		if err != nil {
			// Non-structure types are always movable.
			return BooleanLit{Pos: ex.Pos, Val: true}, nil
		}
		return BooleanLit{Pos: ex.Pos, Val: layout.Movable}, nil

	case tir.IsDefinedExpr:
		_, ok := l.syms.Function(ex.Name)
		if !ok {
			_, ok = l.syms.Structure(ex.Name)
		}
		return BooleanLit{Pos: ex.Pos, Val: ok}, nil

	case tir.CurrentLineExpr:
		return NumberLit{Pos: ex.Pos, Val: float64(ex.Pos.Line)}, nil

	case tir.CurrentFileExpr:
		return StringLit{Pos: ex.Pos, Val: ex.Pos.Filename}, nil

	default:
		return nil, errors.Errorf("unrecognized tir expression %T", e)
	}
}

func (l *lowerer) lowerExprs(exprs []tir.Expr, sc *scope) ([]Expr, error) {
	out := make([]Expr, len(exprs))
	for i, e := range exprs {
		v, err := l.lowerExpr(e, sc)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func isMoveExpr(e tir.Expr) bool {
	_, ok := e.(tir.MoveExpr)
	return ok
}

// lowerArgsWithCopy lowers a by-value argument list and runs each argument
// through copyIfNeeded against the matching declared parameter type (the
// third producer site spec.md §4.3 names: "passed by value"). params and
// args are assumed equal length; callers check arity first.
func (l *lowerer) lowerArgsWithCopy(args []tir.Expr, params []tir.Param, sc *scope) ([]Expr, error) {
	out := make([]Expr, len(args))
	for i, a := range args {
		v, err := l.lowerExpr(a, sc)
		if err != nil {
			return nil, err
		}
		want := v.ExprType()
		if i < len(params) {
			want, err = l.types.Resolve(params[i].Type)
			if err != nil {
				return nil, err
			}
		}
		v, err = l.copyIfNeeded(a.Position(), want, v, isMoveExpr(a), sc)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// copyIfNeeded inserts a call to T::copy at a producer site (spec.md §4.3:
// a non-movable value bound, returned, or passed by value) unless the
// source expression was move()'d. A non-movable type whose non-movability
// comes only from a member — no copy method of its own — has nothing to
// call here and the value is left as a raw cell copy.
func (l *lowerer) copyIfNeeded(pos constant.Position, t Type, v Expr, moved bool, sc *scope) (Expr, error) {
	if moved || t.Kind != KindStructure {
		return v, nil
	}
	layout, err := l.types.StructLayout(t.StructName)
	if err != nil {
		return nil, err
	}
	if layout.Movable {
		return v, nil
	}
	mangled := t.StructName + "::copy"
	if _, ok := l.syms.Function(mangled); !ok {
		return v, nil
	}
	ref := l.addressableRef(pos, v, sc)
	return Call{Pos: pos, FuncName: mangled, Args: []Expr{ref}, Type: t}, nil
}

// addressableRef takes the address of an already-lowered value expression,
// hoisting it into a hidden local first (the same ref-adapter hoisting
// lowerMethodCall's third case uses) when it isn't already a bare local.
func (l *lowerer) addressableRef(pos constant.Position, v Expr, sc *scope) Expr {
	if _, ok := v.(LocalRef); ok {
		return Unary{Pos: pos, Op: UnaryAddr, X: v, Type: Pointer(v.ExprType())}
	}
	hidden := l.freshName("tmp")
	sc.define(hidden, v.ExprType())
	l.pending = append(l.pending, Let{Pos: pos, Name: hidden, Type: v.ExprType(), Init: v})
	return Unary{
		Pos:  pos,
		Op:   UnaryAddr,
		X:    LocalRef{Pos: pos, Name: hidden, Type: v.ExprType()},
		Type: Pointer(v.ExprType()),
	}
}

// lowerMethodCall implements spec.md §4.3's method flattening: `instance
// . method(args)` becomes `T::method(ref(instance), args)`. The ref
// adapter is: the instance directly, if already a pointer; its address,
// if a bare named variable; otherwise a fresh hidden local holding the
// instance, addressed. `->` additionally means the receiver is already a
// pointer (so no address-of is needed, matching tir's own Arrow meaning
// for MemberExpr).
func (l *lowerer) lowerMethodCall(ex tir.MethodCallExpr, sc *scope) (Expr, error) {
	recv, err := l.lowerExpr(ex.Receiver, sc)
	if err != nil {
		return nil, err
	}

	var ref Expr
	var structName string
	switch {
	case ex.Arrow || recv.ExprType().Kind == KindPointer:
		ref = recv
		if recv.ExprType().Kind == KindPointer {
			structName = recv.ExprType().Pointee.StructName
		}
	case isNamedVar(ex.Receiver):
		ref = Unary{Pos: ex.Pos, Op: UnaryAddr, X: recv, Type: Pointer(recv.ExprType())}
		structName = recv.ExprType().StructName
	default:
		// Neither already a pointer nor a bare named variable (e.g. a
		// call result used directly as a method receiver): materialize
		// it into a hidden local, hoisted as a Let ahead of the
		// enclosing statement, then take that local's address.
		hidden := l.freshName("recv")
		sc.define(hidden, recv.ExprType())
		l.pending = append(l.pending, Let{Pos: ex.Pos, Name: hidden, Type: recv.ExprType(), Init: recv})
		ref = Unary{
			Pos:  ex.Pos,
			Op:   UnaryAddr,
			X:    LocalRef{Pos: ex.Pos, Name: hidden, Type: recv.ExprType()},
			Type: Pointer(recv.ExprType()),
		}
		structName = recv.ExprType().StructName
	}

	mangled := structName + "::" + ex.Method
	info, ok := l.syms.Function(mangled)
	if !ok {
		return nil, errors.Errorf("unknown method %q on %q", ex.Method, structName)
	}
	// info.Params includes the leading self parameter (tir supplies it
	// explicitly, matching the ref ex.Args does not); only the rest line
	// up against ex.Args for the arity and by-value-copy checks.
	calleeParams := info.Params
	if len(calleeParams) > 0 {
		calleeParams = calleeParams[1:]
	}
	if len(ex.Args) != len(calleeParams) {
		return nil, errors.Errorf("call to %q.%s at %s passes %d argument(s), want %d",
			structName, ex.Method, ex.Pos, len(ex.Args), len(calleeParams))
	}
	ret, err := l.types.Resolve(info.Return)
	if err != nil {
		return nil, err
	}
	args, err := l.lowerArgsWithCopy(ex.Args, calleeParams, sc)
	if err != nil {
		return nil, err
	}
	return Call{Pos: ex.Pos, FuncName: mangled, Args: append([]Expr{ref}, args...), Type: ret}, nil
}

func isNamedVar(e tir.Expr) bool {
	_, ok := e.(tir.VarExpr)
	return ok
}

func (l *lowerer) freshName(prefix string) string {
	l.nameSeq++
	return "$" + prefix + "_" + strconv.Itoa(l.nameSeq)
}

var unaryOps = map[tir.UnaryOp]UnaryOp{
	tir.UnaryNeg:   UnaryNeg,
	tir.UnaryNot:   UnaryNot,
	tir.UnaryAddr:  UnaryAddr,
	tir.UnaryDeref: UnaryDeref,
}

func (l *lowerer) lowerUnary(ex tir.UnaryExpr, sc *scope) (Expr, error) {
	x, err := l.lowerExpr(ex.X, sc)
	if err != nil {
		return nil, err
	}
	op, ok := unaryOps[ex.Op]
	if !ok {
		return nil, errors.Errorf("unrecognized unary operator %d at %s", ex.Op, ex.Pos)
	}
	switch ex.Op {
	case tir.UnaryAddr:
		return Unary{Pos: ex.Pos, Op: op, X: x, Type: Pointer(x.ExprType())}, nil
	case tir.UnaryDeref:
		if x.ExprType().Kind != KindPointer {
			return nil, errors.Errorf("dereference of non-pointer at %s", ex.Pos)
		}
		return Unary{Pos: ex.Pos, Op: op, X: x, Type: *x.ExprType().Pointee}, nil
	default:
		return Unary{Pos: ex.Pos, Op: op, X: x, Type: x.ExprType()}, nil
	}
}

var binaryOps = map[tir.BinaryOp]BinaryOp{
	tir.BinAdd: BinAdd, tir.BinSub: BinSub, tir.BinMul: BinMul, tir.BinDiv: BinDiv,
	tir.BinEq: BinEq, tir.BinNe: BinNe, tir.BinLt: BinLt, tir.BinLe: BinLe,
	tir.BinGt: BinGt, tir.BinGe: BinGe, tir.BinAnd: BinAnd, tir.BinOr: BinOr,
}

var relationalOps = map[BinaryOp]bool{
	BinEq: true, BinNe: true, BinLt: true, BinLe: true, BinGt: true, BinGe: true,
	BinAnd: true, BinOr: true,
}

func (l *lowerer) lowerBinary(ex tir.BinaryExpr, sc *scope) (Expr, error) {
	x, err := l.lowerExpr(ex.X, sc)
	if err != nil {
		return nil, err
	}
	y, err := l.lowerExpr(ex.Y, sc)
	if err != nil {
		return nil, err
	}
	op, ok := binaryOps[ex.Op]
	if !ok {
		return nil, errors.Errorf("unrecognized binary operator %d at %s", ex.Op, ex.Pos)
	}
	t := x.ExprType()
	if relationalOps[op] {
		t = Boolean()
	}
	return Binary{Pos: ex.Pos, Op: op, X: x, Y: y, Type: t}, nil
}
