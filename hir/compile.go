package hir

import (
	"strconv"

	"github.com/pkg/errors"

	"github.com/oak-lang/oakc/ir"
)

// Compile turns a lowered Program into a flat ir.Program (spec.md §4.4):
// every function body becomes an instruction stream driven by the
// establish_stack_frame/end_stack_frame protocol oakvm/mem.go implements,
// string literals collapse to deduplicated static-table addresses, and a
// pair of synthetic per-function locals ($retval, $returned) emulate early
// return around the IR's lack of any branch instruction besides
// begin_while/end_while.
func Compile(prog *Program, memoryCells int) (*ir.Program, error) {
	c := &compiler{
		static:      map[string]int{},
		nameToID:    map[string]int{},
		funcsByName: map[string]*FunctionDecl{},
	}

	for _, fn := range prog.Functions {
		c.funcsByName[fn.Name] = fn
	}
	id := 0
	for _, fn := range prog.Functions {
		if fn.Foreign != "" {
			continue
		}
		c.nameToID[fn.Name] = id
		id++
	}

	// String literals share one static-table address per distinct value
	// (spec.md §4.4); every function body is scanned before any function
	// is compiled so every use site agrees on the address.
	for _, fn := range prog.Functions {
		walkBlockExprs(fn.Body, func(e Expr) {
			if s, ok := e.(StringLit); ok {
				c.internString(s.Val)
			}
		})
	}

	out := &ir.Program{EntryPoint: "main", StaticCells: c.staticNext, MemoryCells: memoryCells}
	for _, fn := range prog.Functions {
		if fn.Foreign != "" {
			continue
		}
		irfn, err := c.compileFunction(fn)
		if err != nil {
			return nil, errors.Wrapf(err, "compiling function %q", fn.Name)
		}
		out.Functions = append(out.Functions, irfn)
	}
	return out, nil
}

// compiler threads the static-string table and the function name/id/body
// lookups needed for call emission through one Program's compilation.
type compiler struct {
	static     map[string]int
	staticNext int

	nameToID    map[string]int
	funcsByName map[string]*FunctionDecl
}

func (c *compiler) internString(val string) int {
	if a, ok := c.static[val]; ok {
		return a
	}
	a := c.staticNext
	c.static[val] = a
	c.staticNext += len(val) + 1
	return a
}

// frame records every named slot's offset from base_ptr in one function's
// stack frame: locals (including the synthetic ones below) first, then
// arguments, matching oakvm/mem.go's establishStackFrame layout exactly.
type frame struct {
	slots     map[string]frameSlot
	localSize int
	argSize   int
}

type frameSlot struct {
	offset int
	size   int
}

// addr returns the instructions that leave name's address on the stack:
// push k; load_base_ptr; add (spec.md §4.4, mirroring oakvm/mem.go's
// LocalAddress helper).
func (fr *frame) addr(name string) []ir.Instruction {
	s, ok := fr.slots[name]
	if !ok {
		panic("hir: unknown frame slot " + name)
	}
	return []ir.Instruction{ir.Push(ir.Cell(s.offset)), ir.LoadBasePtr(), ir.Add()}
}

// frameBuilder accumulates slot reservations while scanning a function
// body, before any offset past the synthetic locals is known to be final.
type frameBuilder struct {
	slots   map[string]frameSlot
	offset  int
	flagSeq int
	maxDead int
	maxTern int
}

func (fb *frameBuilder) reserve(name string, size int) {
	fb.slots[name] = frameSlot{offset: fb.offset, size: size}
	fb.offset += size
}

func (fb *frameBuilder) freshFlag() string {
	fb.flagSeq++
	return "$ifflag_" + strconv.Itoa(fb.flagSeq)
}

// buildFrame runs the frame-layout pre-pass spec.md §4.4 requires:
// establish_stack_frame's operands must be known before any instruction is
// emitted, so every Let and every If/IfElse's synthetic flag is sized and
// offset first, then arguments are laid out immediately after the locals
// region (locals-then-args, the same layout oakvm/mem.go implements).
//
// Three pairs of scratch locals are reserved unconditionally or on demand
// for values that have no Stmt/Expr field to stash an assigned name on:
// $retval/$returned (the return-emulation flag, every function),
// $relx/$rely (operands of a relational comparison, evaluated once and
// reloaded rather than recomputed — see compileRelational), and
// $dead/$ternres+$tflag/$eflag (discarded expression-statement results and
// ternary results, reserved only when the body actually needs them).
func buildFrame(fn *FunctionDecl) *frame {
	fb := &frameBuilder{slots: map[string]frameSlot{}}
	fb.reserve("$retval", fn.Return.Size)
	fb.reserve("$returned", 1)
	fb.reserve("$relx", 1)
	fb.reserve("$rely", 1)

	if fn.Body != nil {
		scanBlockLocals(fn.Body, fb)
		walkBlockExprs(fn.Body, func(e Expr) {
			if t, ok := e.(Ternary); ok && t.Type.Size > fb.maxTern {
				fb.maxTern = t.Type.Size
			}
		})
	}
	if fb.maxDead > 0 {
		fb.reserve("$dead", fb.maxDead)
	}
	if fb.maxTern > 0 {
		fb.reserve("$ternres", fb.maxTern)
		fb.reserve("$tflag", 1)
		fb.reserve("$eflag", 1)
	}

	fr := &frame{slots: fb.slots, localSize: fb.offset}
	offset := fr.localSize
	for _, p := range fn.Params {
		fr.slots[p.Name] = frameSlot{offset: offset, size: p.Type.Size}
		offset += p.Type.Size
	}
	fr.argSize = offset - fr.localSize
	return fr
}

// scanBlockLocals walks a function body assigning a frame slot to every
// Let and, for If/IfElse, a synthetic 1-cell flag whose name is stashed
// directly on the node (thenFlag/elseFlag) for the emission pass to read.
func scanBlockLocals(b *Block, fb *frameBuilder) {
	for _, s := range b.Stmts {
		scanStmtLocals(s, fb)
	}
}

func scanStmtLocals(s Stmt, fb *frameBuilder) {
	switch st := s.(type) {
	case Let:
		fb.reserve(st.Name, st.Type.Size)
	case *If:
		st.thenFlag = fb.freshFlag()
		fb.reserve(st.thenFlag, 1)
		scanBlockLocals(st.Then, fb)
	case *IfElse:
		st.thenFlag = fb.freshFlag()
		st.elseFlag = fb.freshFlag()
		fb.reserve(st.thenFlag, 1)
		fb.reserve(st.elseFlag, 1)
		scanBlockLocals(st.Then, fb)
		scanBlockLocals(st.Else, fb)
	case *While:
		scanBlockLocals(st.Body, fb)
	case ExprStmt:
		if sz := st.X.ExprType().Size; sz > fb.maxDead {
			fb.maxDead = sz
		}
	}
}

// walkBlockExprs visits every expression reachable from b, including
// through nested If/IfElse/While bodies, in a fixed left-to-right order.
func walkBlockExprs(b *Block, visit func(Expr)) {
	if b == nil {
		return
	}
	for _, s := range b.Stmts {
		walkStmtExprs(s, visit)
		switch st := s.(type) {
		case *If:
			walkBlockExprs(st.Then, visit)
		case *IfElse:
			walkBlockExprs(st.Then, visit)
			walkBlockExprs(st.Else, visit)
		case *While:
			walkBlockExprs(st.Body, visit)
		}
	}
}

func walkStmtExprs(s Stmt, visit func(Expr)) {
	switch st := s.(type) {
	case Let:
		walkExpr(st.Init, visit)
	case Assign:
		walkExpr(st.Target, visit)
		walkExpr(st.Value, visit)
	case Return:
		if st.Value != nil {
			walkExpr(st.Value, visit)
		}
	case *If:
		walkExpr(st.Cond, visit)
	case *IfElse:
		walkExpr(st.Cond, visit)
	case *While:
		walkExpr(st.Cond, visit)
	case Free:
		walkExpr(st.Addr, visit)
		walkExpr(st.Size, visit)
	case ExprStmt:
		walkExpr(st.X, visit)
	}
}

func walkExpr(e Expr, visit func(Expr)) {
	if e == nil {
		return
	}
	visit(e)
	switch ex := e.(type) {
	case Call:
		for _, a := range ex.Args {
			walkExpr(a, visit)
		}
	case Unary:
		walkExpr(ex.X, visit)
	case Binary:
		walkExpr(ex.X, visit)
		walkExpr(ex.Y, visit)
	case Ternary:
		walkExpr(ex.Cond, visit)
		walkExpr(ex.Then, visit)
		walkExpr(ex.Else, visit)
	case Cast:
		walkExpr(ex.X, visit)
	case Alloc:
		walkExpr(ex.N, visit)
	case FieldAddr:
		walkExpr(ex.Base, visit)
	case Index:
		walkExpr(ex.Ptr, visit)
		walkExpr(ex.Idx, visit)
	}
}

// compileFunction emits one function's prolog, body, return-value load,
// and epilog.
func (c *compiler) compileFunction(fn *FunctionDecl) (*ir.Function, error) {
	fr := buildFrame(fn)

	var body []ir.Instruction
	body = append(body, ir.EstablishStackFrame(fr.argSize, fr.localSize))

	if fn.Body != nil {
		stmts, err := c.compileStmts(fn.Body.Stmts, fr)
		if err != nil {
			return nil, err
		}
		body = append(body, stmts...)
	}

	// fn.Epilog (non-movable parameter drops, spec.md §4.3) runs
	// unconditionally once the body — whichever path inside it returned —
	// has finished, not wrapped in compileStmts' guardNotReturned skip.
	if len(fn.Epilog) > 0 {
		epilog, err := c.compileStmts(fn.Epilog, fr)
		if err != nil {
			return nil, err
		}
		body = append(body, epilog...)
	}

	if fn.Return.Size > 0 {
		body = append(body, fr.addr("$retval")...)
		body = append(body, ir.Load(fn.Return.Size))
	}
	body = append(body, ir.EndStackFrame(fn.Return.Size, fr.localSize+fr.argSize))

	return &ir.Function{
		ID:         c.nameToID[fn.Name],
		Name:       fn.Name,
		ArgSize:    fr.argSize,
		ReturnSize: fn.Return.Size,
		Body:       body,
	}, nil
}

// compileStmts compiles a statement list so that everything after a
// return — at any nesting depth, across if/while boundaries — is skipped.
// The first statement always runs; everything after it is wrapped in a
// synthetic single-iteration `if !$returned { rest }`, recursively, since
// the IR has no branch instruction other than begin_while/end_while
// looping (spec.md §4.4).
func (c *compiler) compileStmts(stmts []Stmt, fr *frame) ([]ir.Instruction, error) {
	if len(stmts) == 0 {
		return nil, nil
	}
	first, err := c.compileStmt(stmts[0], fr)
	if err != nil {
		return nil, err
	}
	rest := stmts[1:]
	if len(rest) == 0 {
		return first, nil
	}
	restInstrs, err := c.compileStmts(rest, fr)
	if err != nil {
		return nil, err
	}
	return append(first, c.guardNotReturned(restInstrs, fr)...), nil
}

// guardNotReturned wraps instrs in a single-iteration begin_while/end_while
// guarded on !$returned. The guard condition is a pure local read, so it is
// safely recomputed for both the entry test and the re-test rather than
// cached in its own flag the way a user-visible If does.
func (c *compiler) guardNotReturned(instrs []ir.Instruction, fr *frame) []ir.Instruction {
	if len(instrs) == 0 {
		return nil
	}
	var out []ir.Instruction
	out = append(out, c.notReturned(fr)...)
	out = append(out, ir.BeginWhile())
	out = append(out, instrs...)
	out = append(out, ir.Push(0))
	out = append(out, ir.EndWhile())
	return out
}

// notReturned computes 1-$returned: 1 while the function has not yet hit a
// return statement, 0 once it has.
func (c *compiler) notReturned(fr *frame) []ir.Instruction {
	var out []ir.Instruction
	out = append(out, ir.Push(1))
	out = append(out, fr.addr("$returned")...)
	out = append(out, ir.Load(1))
	out = append(out, ir.Subtract())
	return out
}

func (c *compiler) compileStmt(s Stmt, fr *frame) ([]ir.Instruction, error) {
	switch st := s.(type) {
	case Let:
		return c.compileLet(st, fr)
	case Assign:
		return c.compileAssign(st, fr)
	case Return:
		return c.compileReturn(st, fr)
	case *If:
		return c.compileIf(st, fr)
	case *IfElse:
		return c.compileIfElse(st, fr)
	case *While:
		return c.compileWhile(st, fr)
	case Free:
		return c.compileFree(st, fr)
	case ExprStmt:
		return c.compileExprStmt(st, fr)
	default:
		return nil, errors.Errorf("unrecognized hir statement %T", s)
	}
}

func (c *compiler) compileLet(st Let, fr *frame) ([]ir.Instruction, error) {
	val, err := c.compileExpr(st.Init, fr)
	if err != nil {
		return nil, err
	}
	var out []ir.Instruction
	out = append(out, val...)
	out = append(out, fr.addr(st.Name)...)
	out = append(out, ir.Store(st.Type.Size))
	return out, nil
}

func (c *compiler) compileReturn(st Return, fr *frame) ([]ir.Instruction, error) {
	var out []ir.Instruction
	if st.Value != nil {
		val, err := c.compileExpr(st.Value, fr)
		if err != nil {
			return nil, err
		}
		out = append(out, val...)
		out = append(out, fr.addr("$retval")...)
		out = append(out, ir.Store(st.Value.ExprType().Size))
	}
	out = append(out, ir.Push(1))
	out = append(out, fr.addr("$returned")...)
	out = append(out, ir.Store(1))
	return out, nil
}

// compileAddr computes the address and cell size of an assignment target
// or address-of operand. The returned instructions are assumed
// side-effect-free (true of every lvalue kind Oak's grammar allows:
// locals, field access, dereference, and indexing over pure bases), since
// compileAssign's compound-operator path embeds them twice.
func (c *compiler) compileAddr(e Expr, fr *frame) ([]ir.Instruction, int, error) {
	switch ex := e.(type) {
	case LocalRef:
		return fr.addr(ex.Name), ex.Type.Size, nil
	case FieldAddr:
		base, err := c.compileExpr(ex.Base, fr)
		if err != nil {
			return nil, 0, err
		}
		var out []ir.Instruction
		out = append(out, base...)
		out = append(out, ir.Push(ir.Cell(ex.Offset)))
		out = append(out, ir.Add())
		return out, ex.Type.Pointee.Size, nil
	case Unary:
		if ex.Op == UnaryDeref {
			addr, err := c.compileExpr(ex.X, fr)
			if err != nil {
				return nil, 0, err
			}
			return addr, ex.Type.Size, nil
		}
	case Index:
		addr, err := c.compileIndexAddr(ex, fr)
		if err != nil {
			return nil, 0, err
		}
		return addr, ex.Type.Size, nil
	}
	return nil, 0, errors.Errorf("expression of type %T is not a valid assignment target", e)
}

func (c *compiler) compileIndexAddr(ex Index, fr *frame) ([]ir.Instruction, error) {
	ptr, err := c.compileExpr(ex.Ptr, fr)
	if err != nil {
		return nil, err
	}
	idx, err := c.compileExpr(ex.Idx, fr)
	if err != nil {
		return nil, err
	}
	var out []ir.Instruction
	out = append(out, ptr...)
	out = append(out, idx...)
	out = append(out, ir.Push(ir.Cell(ex.Type.Size)))
	out = append(out, ir.Multiply())
	out = append(out, ir.Add())
	return out, nil
}

func (c *compiler) compileAssign(st Assign, fr *frame) ([]ir.Instruction, error) {
	addr, size, err := c.compileAddr(st.Target, fr)
	if err != nil {
		return nil, err
	}
	val, err := c.compileExpr(st.Value, fr)
	if err != nil {
		return nil, err
	}

	var out []ir.Instruction
	if st.Op == AssignSet {
		out = append(out, val...)
		out = append(out, addr...)
		out = append(out, ir.Store(size))
		return out, nil
	}

	out = append(out, addr...)
	out = append(out, ir.Load(size))
	out = append(out, val...)
	switch st.Op {
	case AssignAdd:
		out = append(out, ir.Add())
	case AssignSub:
		out = append(out, ir.Subtract())
	case AssignMul:
		out = append(out, ir.Multiply())
	case AssignDiv:
		out = append(out, ir.Divide())
	default:
		return nil, errors.Errorf("unrecognized assignment operator %d", st.Op)
	}
	out = append(out, addr...)
	out = append(out, ir.Store(size))
	return out, nil
}

func (c *compiler) compileFree(st Free, fr *frame) ([]ir.Instruction, error) {
	addr, err := c.compileExpr(st.Addr, fr)
	if err != nil {
		return nil, err
	}
	size, err := c.compileExpr(st.Size, fr)
	if err != nil {
		return nil, err
	}
	var out []ir.Instruction
	out = append(out, size...)
	out = append(out, addr...)
	out = append(out, ir.Free())
	return out, nil
}

// compileExprStmt discards a non-void expression's result. The IR has no
// drop instruction, so the value is stored into a shared scratch slot
// ($dead, sized to the largest discarded result in the function) instead.
func (c *compiler) compileExprStmt(st ExprStmt, fr *frame) ([]ir.Instruction, error) {
	val, err := c.compileExpr(st.X, fr)
	if err != nil {
		return nil, err
	}
	sz := st.X.ExprType().Size
	if sz == 0 {
		return val, nil
	}
	var out []ir.Instruction
	out = append(out, val...)
	out = append(out, fr.addr("$dead")...)
	out = append(out, ir.Store(sz))
	return out, nil
}

// compileIf emits the single-iteration while emulation spec.md §4.4
// describes for a plain if: t := cond; begin_while; then-body; zero t;
// re-test t; end_while.
func (c *compiler) compileIf(st *If, fr *frame) ([]ir.Instruction, error) {
	cond, err := c.compileExpr(st.Cond, fr)
	if err != nil {
		return nil, err
	}
	then, err := c.compileStmts(st.Then.Stmts, fr)
	if err != nil {
		return nil, err
	}
	tAddr := fr.addr(st.thenFlag)

	var out []ir.Instruction
	out = append(out, cond...)
	out = append(out, tAddr...)
	out = append(out, ir.Store(1))
	out = append(out, tAddr...)
	out = append(out, ir.Load(1))
	out = append(out, ir.BeginWhile())
	out = append(out, then...)
	out = append(out, ir.Push(0))
	out = append(out, tAddr...)
	out = append(out, ir.Store(1))
	out = append(out, tAddr...)
	out = append(out, ir.Load(1))
	out = append(out, ir.EndWhile())
	return out, nil
}

// compileIfElse emits the two-flag emulation: e starts true, t holds cond;
// the then-while runs iff t, zeroing both flags at its end so the
// else-while (guarded on e) only runs when the then-branch didn't.
func (c *compiler) compileIfElse(st *IfElse, fr *frame) ([]ir.Instruction, error) {
	cond, err := c.compileExpr(st.Cond, fr)
	if err != nil {
		return nil, err
	}
	then, err := c.compileStmts(st.Then.Stmts, fr)
	if err != nil {
		return nil, err
	}
	els, err := c.compileStmts(st.Else.Stmts, fr)
	if err != nil {
		return nil, err
	}
	tAddr := fr.addr(st.thenFlag)
	eAddr := fr.addr(st.elseFlag)

	var out []ir.Instruction
	out = append(out, cond...)
	out = append(out, tAddr...)
	out = append(out, ir.Store(1))
	out = append(out, ir.Push(1))
	out = append(out, eAddr...)
	out = append(out, ir.Store(1))

	out = append(out, tAddr...)
	out = append(out, ir.Load(1))
	out = append(out, ir.BeginWhile())
	out = append(out, then...)
	out = append(out, ir.Push(0))
	out = append(out, tAddr...)
	out = append(out, ir.Store(1))
	out = append(out, ir.Push(0))
	out = append(out, eAddr...)
	out = append(out, ir.Store(1))
	out = append(out, tAddr...)
	out = append(out, ir.Load(1))
	out = append(out, ir.EndWhile())

	out = append(out, eAddr...)
	out = append(out, ir.Load(1))
	out = append(out, ir.BeginWhile())
	out = append(out, els...)
	out = append(out, ir.Push(0))
	out = append(out, eAddr...)
	out = append(out, ir.Store(1))
	out = append(out, eAddr...)
	out = append(out, ir.Load(1))
	out = append(out, ir.EndWhile())
	return out, nil
}

// compileWhile ANDs the loop's own condition with !$returned at both the
// initial entry test and the loop-bottom re-test, so a return inside the
// body also terminates the loop rather than only skipping the rest of one
// iteration.
func (c *compiler) compileWhile(st *While, fr *frame) ([]ir.Instruction, error) {
	body, err := c.compileStmts(st.Body.Stmts, fr)
	if err != nil {
		return nil, err
	}
	entry, err := c.effectiveWhileCond(st.Cond, fr)
	if err != nil {
		return nil, err
	}
	retest, err := c.effectiveWhileCond(st.Cond, fr)
	if err != nil {
		return nil, err
	}

	var out []ir.Instruction
	out = append(out, entry...)
	out = append(out, ir.BeginWhile())
	out = append(out, body...)
	out = append(out, retest...)
	out = append(out, ir.EndWhile())
	return out, nil
}

func (c *compiler) effectiveWhileCond(cond Expr, fr *frame) ([]ir.Instruction, error) {
	condInstrs, err := c.compileExpr(cond, fr)
	if err != nil {
		return nil, err
	}
	var out []ir.Instruction
	out = append(out, condInstrs...)
	out = append(out, c.notReturned(fr)...)
	out = append(out, ir.Multiply())
	return out, nil
}

func (c *compiler) compileExpr(e Expr, fr *frame) ([]ir.Instruction, error) {
	switch ex := e.(type) {
	case NumberLit:
		return []ir.Instruction{ir.Push(ex.Val)}, nil
	case CharacterLit:
		return []ir.Instruction{ir.Push(ir.Cell(ex.Val))}, nil
	case BooleanLit:
		if ex.Val {
			return []ir.Instruction{ir.Push(1)}, nil
		}
		return []ir.Instruction{ir.Push(0)}, nil
	case StringLit:
		return c.compileStringLit(ex), nil
	case LocalRef:
		var out []ir.Instruction
		out = append(out, fr.addr(ex.Name)...)
		out = append(out, ir.Load(ex.Type.Size))
		return out, nil
	case Call:
		return c.compileCall(ex, fr)
	case Unary:
		return c.compileUnary(ex, fr)
	case Binary:
		return c.compileBinary(ex, fr)
	case Ternary:
		return c.compileTernary(ex, fr)
	case Cast:
		return c.compileExpr(ex.X, fr)
	case Alloc:
		n, err := c.compileExpr(ex.N, fr)
		if err != nil {
			return nil, err
		}
		var out []ir.Instruction
		out = append(out, n...)
		out = append(out, ir.Allocate())
		return out, nil
	case FieldAddr:
		base, err := c.compileExpr(ex.Base, fr)
		if err != nil {
			return nil, err
		}
		var out []ir.Instruction
		out = append(out, base...)
		out = append(out, ir.Push(ir.Cell(ex.Offset)))
		out = append(out, ir.Add())
		return out, nil
	case Index:
		addr, err := c.compileIndexAddr(ex, fr)
		if err != nil {
			return nil, err
		}
		var out []ir.Instruction
		out = append(out, addr...)
		out = append(out, ir.Load(ex.Type.Size))
		return out, nil
	default:
		return nil, errors.Errorf("unrecognized hir expression %T", e)
	}
}

// compileStringLit materializes the literal's bytes (plus a null
// terminator) into its static-table slot and leaves the slot's address on
// the stack as the expression's value (spec.md §4.4: "the address is the
// value of the expression"). Re-evaluating the same literal twice rewrites
// the identical bytes, which is harmless.
func (c *compiler) compileStringLit(ex StringLit) []ir.Instruction {
	addr := c.static[ex.Val]
	size := len(ex.Val) + 1
	var out []ir.Instruction
	for i := 0; i < len(ex.Val); i++ {
		out = append(out, ir.Push(ir.Cell(ex.Val[i])))
	}
	out = append(out, ir.Push(0))
	out = append(out, ir.Push(ir.Cell(addr)))
	out = append(out, ir.Store(size))
	out = append(out, ir.Push(ir.Cell(addr)))
	return out
}

func (c *compiler) compileCall(ex Call, fr *frame) ([]ir.Instruction, error) {
	var out []ir.Instruction
	for _, a := range ex.Args {
		v, err := c.compileExpr(a, fr)
		if err != nil {
			return nil, err
		}
		out = append(out, v...)
	}
	target, ok := c.funcsByName[ex.FuncName]
	if !ok {
		return nil, errors.Errorf("call to unknown function %q", ex.FuncName)
	}
	if target.Foreign != "" {
		out = append(out, ir.CallForeign(target.Foreign))
	} else {
		out = append(out, ir.Call(c.nameToID[ex.FuncName]))
	}
	return out, nil
}

func (c *compiler) compileUnary(ex Unary, fr *frame) ([]ir.Instruction, error) {
	switch ex.Op {
	case UnaryAddr:
		addr, _, err := c.compileAddr(ex.X, fr)
		return addr, err
	case UnaryDeref:
		addr, err := c.compileExpr(ex.X, fr)
		if err != nil {
			return nil, err
		}
		var out []ir.Instruction
		out = append(out, addr...)
		out = append(out, ir.Load(ex.Type.Size))
		return out, nil
	case UnaryNeg:
		x, err := c.compileExpr(ex.X, fr)
		if err != nil {
			return nil, err
		}
		var out []ir.Instruction
		out = append(out, ir.Push(0))
		out = append(out, x...)
		out = append(out, ir.Subtract())
		return out, nil
	case UnaryNot:
		x, err := c.compileExpr(ex.X, fr)
		if err != nil {
			return nil, err
		}
		var out []ir.Instruction
		out = append(out, ir.Push(1))
		out = append(out, x...)
		out = append(out, ir.Subtract())
		return out, nil
	default:
		return nil, errors.Errorf("unrecognized unary operator %d", ex.Op)
	}
}

func (c *compiler) compileBinary(ex Binary, fr *frame) ([]ir.Instruction, error) {
	switch ex.Op {
	case BinEq, BinNe, BinLt, BinLe, BinGt, BinGe:
		return c.compileRelational(ex, fr)
	}

	x, err := c.compileExpr(ex.X, fr)
	if err != nil {
		return nil, err
	}
	y, err := c.compileExpr(ex.Y, fr)
	if err != nil {
		return nil, err
	}
	switch ex.Op {
	case BinAdd:
		return arith(x, y, ir.Add()), nil
	case BinSub:
		return arith(x, y, ir.Subtract()), nil
	case BinMul:
		return arith(x, y, ir.Multiply()), nil
	case BinDiv:
		return arith(x, y, ir.Divide()), nil
	case BinAnd:
		// Both operands are already 0/1-encoded; AND is multiplication.
		return arith(x, y, ir.Multiply()), nil
	case BinOr:
		// a OR b = 1 - (1-a)(1-b), the arithmetic De Morgan dual of AND.
		var prod []ir.Instruction
		prod = append(prod, ir.Push(1))
		prod = append(prod, x...)
		prod = append(prod, ir.Subtract())
		prod = append(prod, ir.Push(1))
		prod = append(prod, y...)
		prod = append(prod, ir.Subtract())
		prod = append(prod, ir.Multiply())
		return oneMinus(prod), nil
	default:
		return nil, errors.Errorf("unrecognized binary operator %d", ex.Op)
	}
}

func arith(x, y []ir.Instruction, op ir.Instruction) []ir.Instruction {
	var out []ir.Instruction
	out = append(out, x...)
	out = append(out, y...)
	out = append(out, op)
	return out
}

// compileRelational implements a<b, a<=b, a>b, a>=b, a==b, a!=b purely
// from the 17-op instruction set.
//
// The VM's sign(x) (spec.md §4.6) returns 1 for x>=0 and -1 otherwise — it
// never returns 0 — so a single sign(a-b) test cannot distinguish a==b
// from a<b or a>b the way a three-valued sign would. Combining sign(a-b)
// and sign(b-a) resolves this:
//
//	e1 = (sign(a-b)+1)/2   -- 1 iff a>=b, 0 iff a<b
//	e2 = (sign(b-a)+1)/2   -- 1 iff b>=a, 0 iff b<a
//	a<b  = 1-e1    a>=b = e1
//	a<=b = e2      a>b  = 1-e2
//	a==b = e1*e2   a!=b = 1-e1*e2
//
// x and y are evaluated exactly once each, into the $relx/$rely scratch
// locals every frame reserves, since the formula needs each operand's
// value twice (once per sign test) and the operands may not be
// side-effect-free (e.g. a call).
func (c *compiler) compileRelational(ex Binary, fr *frame) ([]ir.Instruction, error) {
	x, err := c.compileExpr(ex.X, fr)
	if err != nil {
		return nil, err
	}
	y, err := c.compileExpr(ex.Y, fr)
	if err != nil {
		return nil, err
	}

	var out []ir.Instruction
	out = append(out, x...)
	out = append(out, y...)
	out = append(out, fr.addr("$rely")...)
	out = append(out, ir.Store(1))
	out = append(out, fr.addr("$relx")...)
	out = append(out, ir.Store(1))

	loadX := append(fr.addr("$relx"), ir.Load(1))
	loadY := append(fr.addr("$rely"), ir.Load(1))

	var val []ir.Instruction
	switch ex.Op {
	case BinGe:
		val = signHalf(loadX, loadY)
	case BinLt:
		val = oneMinus(signHalf(loadX, loadY))
	case BinLe:
		val = signHalf(loadY, loadX)
	case BinGt:
		val = oneMinus(signHalf(loadY, loadX))
	case BinEq:
		val = append(signHalf(loadX, loadY), append(signHalf(loadY, loadX), ir.Multiply())...)
	case BinNe:
		prod := append(signHalf(loadX, loadY), append(signHalf(loadY, loadX), ir.Multiply())...)
		val = oneMinus(prod)
	default:
		return nil, errors.Errorf("unrecognized relational operator %d", ex.Op)
	}
	out = append(out, val...)
	return out, nil
}

// signHalf returns (sign(a-b)+1)/2 given already-evaluated, side-effect
// free operand-loading instructions a and b.
func signHalf(a, b []ir.Instruction) []ir.Instruction {
	var out []ir.Instruction
	out = append(out, a...)
	out = append(out, b...)
	out = append(out, ir.Subtract())
	out = append(out, ir.Sign())
	out = append(out, ir.Push(1))
	out = append(out, ir.Add())
	out = append(out, ir.Push(2))
	out = append(out, ir.Divide())
	return out
}

func oneMinus(v []ir.Instruction) []ir.Instruction {
	var out []ir.Instruction
	out = append(out, ir.Push(1))
	out = append(out, v...)
	out = append(out, ir.Subtract())
	return out
}

// compileTernary mirrors compileIfElse's two-flag emulation but as an
// expression: the chosen branch's value is stored into the shared
// $ternres scratch slot (sized to the largest ternary result in the
// function) and reloaded once both whiles have run. $tflag/$eflag are
// likewise shared across every ternary in the function rather than
// assigned per node (ternary is a value embedded inline in expression
// trees with no field to stash a name on, unlike If/IfElse); this is safe
// because evaluation is strictly sequential — an inner ternary's while
// pair always completes before the outer one's resumes, so no two uses
// are ever live at once.
func (c *compiler) compileTernary(ex Ternary, fr *frame) ([]ir.Instruction, error) {
	cond, err := c.compileExpr(ex.Cond, fr)
	if err != nil {
		return nil, err
	}
	then, err := c.compileExpr(ex.Then, fr)
	if err != nil {
		return nil, err
	}
	els, err := c.compileExpr(ex.Else, fr)
	if err != nil {
		return nil, err
	}

	size := ex.Type.Size
	resAddr := fr.addr("$ternres")
	tAddr := fr.addr("$tflag")
	eAddr := fr.addr("$eflag")

	var out []ir.Instruction
	out = append(out, cond...)
	out = append(out, tAddr...)
	out = append(out, ir.Store(1))
	out = append(out, ir.Push(1))
	out = append(out, eAddr...)
	out = append(out, ir.Store(1))

	out = append(out, tAddr...)
	out = append(out, ir.Load(1))
	out = append(out, ir.BeginWhile())
	out = append(out, then...)
	out = append(out, resAddr...)
	out = append(out, ir.Store(size))
	out = append(out, ir.Push(0))
	out = append(out, tAddr...)
	out = append(out, ir.Store(1))
	out = append(out, ir.Push(0))
	out = append(out, eAddr...)
	out = append(out, ir.Store(1))
	out = append(out, tAddr...)
	out = append(out, ir.Load(1))
	out = append(out, ir.EndWhile())

	out = append(out, eAddr...)
	out = append(out, ir.Load(1))
	out = append(out, ir.BeginWhile())
	out = append(out, els...)
	out = append(out, resAddr...)
	out = append(out, ir.Store(size))
	out = append(out, ir.Push(0))
	out = append(out, eAddr...)
	out = append(out, ir.Store(1))
	out = append(out, eAddr...)
	out = append(out, ir.Load(1))
	out = append(out, ir.EndWhile())

	out = append(out, resAddr...)
	out = append(out, ir.Load(size))
	return out, nil
}
