package decl

import (
	"github.com/pkg/errors"

	"github.com/oak-lang/oakc/constant"
	"github.com/oak-lang/oakc/tir"
)

// maxIncludeDepth bounds include/import recursion (spec.md §4.2's
// "recursion depth is finite"), mirroring the teacher's maxErrors-style
// hard cap on an otherwise-unbounded accumulation.
const maxIncludeDepth = 32

// Loader resolves an Include/Import path to a parsed file. The parser
// itself is out of scope (spec.md §1); the driver only needs this seam to
// exercise the splice-at-this-point semantics.
type Loader func(path string) (*tir.File, error)

// Driver runs the declaration pass (spec.md §4.2) over a tir.File.
type Driver struct {
	Syms *SymbolTable
	Env  *constant.Env
	Load Loader

	MemoryCells int
	Doc         string
	ExternPaths []string
	requireStd  bool
	noStd       bool

	diags constant.Diagnostics
}

// NewDriver returns a Driver with an empty symbol table and constant
// environment, and the default heap capacity.
func NewDriver(load Loader) *Driver {
	return &Driver{
		Syms:        NewSymbolTable(),
		Env:         constant.NewEnv(),
		Load:        load,
		MemoryCells: 512,
	}
}

// Run processes file's declarations in source order and, on success,
// assigns dense function ids. It returns the accumulated Diagnostics as an
// error (nil if none were recorded).
func (d *Driver) Run(file *tir.File) error {
	if err := d.processAll(file.Decls, 0, map[string]bool{}); err != nil {
		return err
	}
	if d.diags.HasErrors() {
		return d.diags
	}
	d.Syms.AssignFunctionIDs()
	return nil
}

func (d *Driver) processAll(decls []tir.Decl, depth int, includeStack map[string]bool) error {
	for _, top := range decls {
		if err := d.process(top, depth, includeStack); err != nil {
			return err
		}
		if !d.diags.HasErrors() {
			continue
		}
		if len(d.diags) >= 10 {
			return errors.Wrap(d.diags, "too many declaration errors, aborting")
		}
	}
	return nil
}

func (d *Driver) process(top tir.Decl, depth int, includeStack map[string]bool) error {
	switch dd := top.(type) {
	case *tir.FunctionDecl:
		d.registerFunctionDecl(dd)
	case *tir.ExternFunctionDecl:
		d.registerExternFunctionDecl(dd)
	case *tir.StructureDecl:
		d.registerStructureDecl(dd)
	case tir.ConstantDecl:
		d.evalConstantDecl(dd)
	case tir.DocumentHeaderDecl:
		d.Doc += dd.Text
	case tir.RequireStdDecl:
		d.requireStd = true
		d.checkStdFlags(dd.Pos)
	case tir.NoStdDecl:
		d.noStd = true
		d.checkStdFlags(dd.Pos)
	case tir.AssertDecl:
		d.evalAssertDecl(dd)
	case tir.ExternDecl:
		d.ExternPaths = append(d.ExternPaths, dd.Path)
	case tir.IncludeDecl:
		return d.include(dd.Pos, dd.Path, depth, includeStack)
	case tir.ImportDecl:
		return d.importPath(dd.Pos, dd.Path, depth, includeStack)
	case tir.MemoryDecl:
		d.evalMemoryDecl(dd)
	case tir.ErrorDecl:
		d.diags.Add(dd.Pos, "%s", dd.Msg)
	case tir.IfDecl:
		return d.evalIfDecl(dd, depth, includeStack)
	case tir.IfElseDecl:
		return d.evalIfElseDecl(dd, depth, includeStack)
	default:
		d.diags.Add(top.Position(), "unrecognized declaration %T", top)
	}
	return nil
}

func (d *Driver) checkStdFlags(pos constant.Position) {
	if d.requireStd && d.noStd {
		d.diags.Add(pos, "require_std and no_std are mutually exclusive")
	}
}

func (d *Driver) evalAssertDecl(a tir.AssertDecl) {
	v, err := constant.Eval(a.Cond, d.Env)
	if err != nil {
		d.diags.Add(a.Pos, "%s", err)
		return
	}
	if !v.Truthy() {
		d.diags.Add(a.Pos, "assertion failed")
	}
}

func (d *Driver) evalMemoryDecl(m tir.MemoryDecl) {
	v, err := constant.Eval(m.N, d.Env)
	if err != nil {
		d.diags.Add(m.Pos, "%s", err)
		return
	}
	if v.Kind != constant.KindNumber {
		d.diags.Add(m.Pos, "#[memory(n)] requires a numeric argument")
		return
	}
	d.MemoryCells = int(v.Num)
}

func (d *Driver) evalConstantDecl(c tir.ConstantDecl) {
	if _, exists := d.Env.Lookup(c.Name); exists {
		d.diags.Add(c.Pos, "constant %q redefined", c.Name)
		return
	}
	v, err := constant.Eval(c.Expr, d.Env)
	if err != nil {
		d.diags.Add(c.Pos, "%s", err)
		return
	}
	d.Env.Define(c.Name, v)
}

func (d *Driver) evalIfDecl(i tir.IfDecl, depth int, includeStack map[string]bool) error {
	v, err := constant.Eval(i.Cond, d.Env)
	if err != nil {
		d.diags.Add(i.Pos, "%s", err)
		return nil
	}
	if v.Truthy() {
		return d.processAll(i.Then, depth, includeStack)
	}
	return nil
}

func (d *Driver) evalIfElseDecl(i tir.IfElseDecl, depth int, includeStack map[string]bool) error {
	v, err := constant.Eval(i.Cond, d.Env)
	if err != nil {
		d.diags.Add(i.Pos, "%s", err)
		return nil
	}
	if v.Truthy() {
		return d.processAll(i.Then, depth, includeStack)
	}
	return d.processAll(i.Else, depth, includeStack)
}

// checkDuplicateParams records spec.md §7's "duplicate parameter" structural
// error: two parameters of the same function sharing a name would collide
// at the same frame slot.
func (d *Driver) checkDuplicateParams(pos constant.Position, funcName string, params []tir.Param) {
	seen := make(map[string]bool, len(params))
	for _, p := range params {
		if seen[p.Name] {
			d.diags.Add(pos, "function %q: duplicate parameter %q", funcName, p.Name)
			return
		}
		seen[p.Name] = true
	}
}

func (d *Driver) registerFunctionDecl(f *tir.FunctionDecl) {
	d.checkDuplicateParams(f.Pos, f.Name, f.Params)
	info := &FunctionInfo{Name: f.Name, Params: f.Params, Return: f.Return, Body: f.Body, Pos: f.Pos}
	if existing, ok := d.Syms.Function(f.Name); ok {
		if !existing.SignatureEqual(info) {
			d.diags.Add(f.Pos, "function %q redeclared with a different signature", f.Name)
			return
		}
	}
	d.Syms.registerFunction(f.Name, info)
}

func (d *Driver) registerExternFunctionDecl(f *tir.ExternFunctionDecl) {
	d.checkDuplicateParams(f.Pos, f.Local, f.Params)
	info := &FunctionInfo{Name: f.Local, Params: f.Params, Return: f.Return, Foreign: f.Foreign, Pos: f.Pos}
	if existing, ok := d.Syms.Function(f.Local); ok {
		if !existing.SignatureEqual(info) {
			d.diags.Add(f.Pos, "function %q redeclared with a different signature", f.Local)
			return
		}
	}
	d.Syms.registerFunction(f.Local, info)
}

// checkDuplicateMembers records spec.md §7's "duplicate member" structural
// error: two members of the same structure sharing a name would otherwise
// produce colliding accessor names and offsets (hir's accessorsFor
// synthesizes one function per member, keyed by name).
func (d *Driver) checkDuplicateMembers(s *tir.StructureDecl) {
	seen := make(map[string]bool, len(s.Members))
	for _, m := range s.Members {
		if seen[m.Name] {
			d.diags.Add(s.Pos, "structure %q: duplicate member %q", s.Name, m.Name)
			return
		}
		seen[m.Name] = true
	}
}

func (d *Driver) registerStructureDecl(s *tir.StructureDecl) {
	d.checkDuplicateMembers(s)
	info := &StructureInfo{Decl: s}
	d.Syms.registerStructure(s.Name, info)
	for _, m := range s.Methods {
		mangled := s.Name + "::" + m.Name
		d.registerFunctionDecl(&tir.FunctionDecl{
			Pos: m.Pos, Doc: m.Doc, Name: mangled, Params: m.Params, Return: m.Return, Body: m.Body,
		})
	}
}

func (d *Driver) include(pos constant.Position, path string, depth int, includeStack map[string]bool) error {
	if depth >= maxIncludeDepth {
		d.diags.Add(pos, "include depth exceeded at %q (cycle without an is_defined guard?)", path)
		return nil
	}
	if includeStack[path] {
		d.diags.Add(pos, "include cycle detected at %q", path)
		return nil
	}
	if d.Load == nil {
		d.diags.Add(pos, "include %q: no loader configured", path)
		return nil
	}
	included, err := d.Load(path)
	if err != nil {
		return errors.Wrapf(err, "including %q", path)
	}
	includeStack[path] = true
	err = d.processAll(included.Decls, depth+1, includeStack)
	delete(includeStack, path)
	return err
}

func (d *Driver) importPath(pos constant.Position, path string, depth int, includeStack map[string]bool) error {
	if _, defined := d.Env.Lookup(path); defined {
		return nil
	}
	d.Env.Define(path, constant.Boolean(true))
	return d.include(pos, path, depth, includeStack)
}
