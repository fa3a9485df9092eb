package ir

import (
	"io"
	"strings"

	"github.com/pkg/errors"
)

// Assembler drives a Target over an assembled Program. It is a thin
// walker — it performs no optimization and no IR-level transformation —
// matching the teacher's asm.Assemble/Disassemble split between parsing
// (here: already done, by hir.Compile) and code generation.
type Assembler struct {
	Target Target
}

// NewAssembler returns an Assembler that emits through t.
func NewAssembler(t Target) *Assembler {
	return &Assembler{Target: t}
}

// Emit walks prog in function order, writing the Target's fragments to w.
// ExternPaths are the foreign-source paths registered by Extern
// declarations (spec.md §4.2), passed through to ForeignPrelude verbatim.
func (a *Assembler) Emit(w io.Writer, prog *Program, externPaths []string) error {
	var b strings.Builder
	b.WriteString(a.Target.BeginProgram(prog.StaticCells, prog.MemoryCells))
	b.WriteString(a.Target.ForeignPrelude(externPaths))
	for _, fn := range prog.Functions {
		if err := a.emitFunction(&b, fn); err != nil {
			return errors.Wrapf(err, "assembling function %q", fn.Name)
		}
	}
	b.WriteString(a.Target.EndProgram())
	_, err := io.WriteString(w, b.String())
	return errors.Wrap(err, "writing assembled output")
}

func (a *Assembler) emitFunction(b *strings.Builder, fn *Function) error {
	if _, err := MatchWhile(fn.Body); err != nil {
		return err
	}
	b.WriteString(a.Target.BeginFunction(fn.ID, fn.Name))
	for _, ins := range fn.Body {
		frag, err := a.emitInstruction(ins)
		if err != nil {
			return err
		}
		b.WriteString(frag)
	}
	b.WriteString(a.Target.EndFunction(fn.ID, fn.Name))
	return nil
}

func (a *Assembler) emitInstruction(ins Instruction) (string, error) {
	t := a.Target
	switch ins.Op {
	case OpPush:
		return t.Push(ins.Num), nil
	case OpAdd:
		return t.Add(), nil
	case OpSubtract:
		return t.Subtract(), nil
	case OpMultiply:
		return t.Multiply(), nil
	case OpDivide:
		return t.Divide(), nil
	case OpSign:
		return t.Sign(), nil
	case OpAllocate:
		return t.Allocate(), nil
	case OpFree:
		return t.Free(), nil
	case OpStore:
		return t.Store(ins.A), nil
	case OpLoad:
		return t.Load(ins.A), nil
	case OpCall:
		return t.Call(ins.A), nil
	case OpCallForeign:
		return t.CallForeign(ins.Str), nil
	case OpBeginWhile:
		return t.BeginWhile(), nil
	case OpEndWhile:
		return t.EndWhile(), nil
	case OpLoadBasePtr:
		return t.LoadBasePtr(), nil
	case OpEstablishStackFrame:
		return t.EstablishStackFrame(ins.A, ins.B), nil
	case OpEndStackFrame:
		return t.EndStackFrame(ins.A, ins.B), nil
	default:
		return "", errors.Errorf("unknown op %v", ins.Op)
	}
}
