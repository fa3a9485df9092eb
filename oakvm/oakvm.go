// Package oakvm is the reference Target-shaped interpreter for Oak's IR
// (spec.md §4.6/§6.1): a concrete VM that executes an *ir.Program directly
// against a simulated cell tape, rather than emitting host-language source.
// It exists because a retargetable ABI still needs one concrete
// implementation to prove the stack-frame protocol and the end-to-end
// scenarios in spec.md §8 actually hold; per-target source emitters
// themselves are out of scope (spec.md §1).
//
// oakvm is grounded line-for-line on the teacher's vm/core.go: the same
// giant switch over a flat instruction stream, the same Push/Pop stack
// helpers, and the same defer/recover wrapping of runtime panics into a
// returned error.
package oakvm

import (
	"fmt"

	"github.com/oak-lang/oakc/ir"
	"github.com/pkg/errors"
)

// Panic codes (spec.md §7), returned wrapped in a *Panic.
const (
	StackHeapCollision = 1
	NoFreeMemory       = 2
	StackUnderflow     = 3
)

// Panic is a fatal VM error carrying the taxonomy code from spec.md §7.
type Panic struct {
	Code    int
	Message string
}

func (p *Panic) Error() string { return fmt.Sprintf("%s (code %d)", p.Message, p.Code) }

func panicf(code int, format string, args ...interface{}) {
	panic(&Panic{Code: code, Message: fmt.Sprintf(format, args...)})
}

// ForeignFunc is a foreign-function hook (spec.md §1's "runtime I/O
// primitives... specified only as foreign-function hooks"). It receives
// the running Instance so it can Pop arguments and Push results; to the IR
// the call is a synchronous black box (spec.md §5).
type ForeignFunc func(i *Instance) error

// Instance is one VM run: the cell tape, the heap-allocation bitmap, and
// the stack/base pointers (spec.md §3's VM state).
type Instance struct {
	Memory    []ir.Cell
	allocated []bool
	stackPtr  int
	basePtr   int

	prog    *ir.Program
	foreign map[string]ForeignFunc

	insCount int64
}

// New creates an Instance with a tape of prog.MemoryCells+prog.StaticCells
// capacity (static preamble cells plus the declared heap), the stack
// growing up from 0 and the heap growing down from the top.
func New(prog *ir.Program, foreign map[string]ForeignFunc) *Instance {
	capacity := prog.StaticCells + prog.MemoryCells
	if capacity == 0 {
		capacity = ir.DefaultMemoryCells
	}
	return &Instance{
		Memory:    make([]ir.Cell, capacity),
		allocated: make([]bool, capacity),
		stackPtr:  0,
		basePtr:   0,
		prog:      prog,
		foreign:   foreign,
	}
}

// StackPointer and BasePointer expose the VM's current pointers for tests
// and diagnostics.
func (i *Instance) StackPointer() int { return i.stackPtr }
func (i *Instance) BasePointer() int  { return i.basePtr }

// InstructionCount returns the number of instructions executed so far.
func (i *Instance) InstructionCount() int64 { return i.insCount }

// Push pushes v onto the data stack, panicking with StackHeapCollision if
// the target cell is heap-allocated (spec.md §3's invariant).
func (i *Instance) Push(v ir.Cell) {
	if i.stackPtr >= len(i.Memory) {
		panic(errors.Errorf("stack exhausted at %d", i.stackPtr))
	}
	if i.allocated[i.stackPtr] {
		panicf(StackHeapCollision, "push onto allocated cell %d", i.stackPtr)
	}
	i.Memory[i.stackPtr] = v
	i.stackPtr++
}

// Pop pops and returns the top of the data stack, panicking with
// StackUnderflow if the stack is empty.
func (i *Instance) Pop() ir.Cell {
	if i.stackPtr == 0 {
		panicf(StackUnderflow, "pop with empty stack")
	}
	i.stackPtr--
	return i.Memory[i.stackPtr]
}

// RunFunction executes fn to completion with fn's arguments already pushed
// on top of the stack by the caller (cells below them are left alone), and
// returns the fn.ReturnSize cells it leaves on the stack in their place.
//
// RunFunction recovers VM panics (*Panic) and panicked error values,
// wrapping both into the returned error, the way the teacher's
// vm.Instance.Run recovers and wraps arbitrary recovered errors; any other
// panic value (programmer bugs) is re-panicked.
func (i *Instance) RunFunction(fn *ir.Function) (result []ir.Cell, err error) {
	defer func() {
		if e := recover(); e != nil {
			switch e := e.(type) {
			case *Panic:
				err = errors.Wrapf(e, "oakvm panic in %q at sp=%d bp=%d", fn.Name, i.stackPtr, i.basePtr)
			case error:
				err = errors.Wrapf(e, "oakvm error in %q", fn.Name)
			default:
				panic(e)
			}
		}
	}()
	blocks, err := newWhileBlocks(fn.Body)
	if err != nil {
		return nil, err
	}
	entrySP := i.stackPtr - fn.ArgSize
	i.exec(fn.Body, blocks)
	if i.stackPtr != entrySP+fn.ReturnSize {
		return nil, errors.Errorf("%q: net stack effect %d != return_size-arg_size %d",
			fn.Name, i.stackPtr-entrySP-fn.ArgSize, fn.ReturnSize-fn.ArgSize)
	}
	result = append(result, i.Memory[entrySP:i.stackPtr]...)
	return result, nil
}

// whileBlocks precomputes both directions of the begin_while/end_while
// matching (ir.MatchWhile only gives begin->end) so exec can jump either
// way in O(1) instead of reverse-searching the map on every end_while.
type whileBlocks struct {
	beginToEnd map[int]int
	endToBegin map[int]int
}

func newWhileBlocks(body []ir.Instruction) (*whileBlocks, error) {
	pairs, err := ir.MatchWhile(body)
	if err != nil {
		return nil, err
	}
	inv := make(map[int]int, len(pairs))
	for start, end := range pairs {
		inv[end] = start
	}
	return &whileBlocks{beginToEnd: pairs, endToBegin: inv}, nil
}

func (i *Instance) exec(body []ir.Instruction, blocks *whileBlocks) {
	pc := 0
	for pc < len(body) {
		ins := body[pc]
		switch ins.Op {
		case ir.OpPush:
			i.Push(ins.Num)
			pc++
		case ir.OpAdd:
			rhs, lhs := i.Pop(), i.Pop()
			i.Push(lhs + rhs)
			pc++
		case ir.OpSubtract:
			rhs, lhs := i.Pop(), i.Pop()
			i.Push(lhs - rhs)
			pc++
		case ir.OpMultiply:
			rhs, lhs := i.Pop(), i.Pop()
			i.Push(lhs * rhs)
			pc++
		case ir.OpDivide:
			rhs, lhs := i.Pop(), i.Pop()
			if rhs == 0 {
				// Not a *Panic: spec.md §7's taxonomy reserves numbered
				// codes for StackHeapCollision/NoFreeMemory/StackUnderflow
				// and defines no runtime divide-by-zero code.
				panic(errors.New("division by zero"))
			}
			i.Push(lhs / rhs)
			pc++
		case ir.OpSign:
			x := i.Pop()
			if x >= 0 {
				i.Push(1)
			} else {
				i.Push(-1)
			}
			pc++
		case ir.OpAllocate:
			size := int(i.Pop())
			i.Push(ir.Cell(i.allocate(size)))
			pc++
		case ir.OpFree:
			addr := int(i.Pop())
			size := int(i.Pop())
			i.free(addr, size)
			pc++
		case ir.OpStore:
			i.store(ins.A)
			pc++
		case ir.OpLoad:
			i.load(ins.A)
			pc++
		case ir.OpCall:
			callee := i.prog.FunctionByID(ins.A)
			if callee == nil {
				panic(errors.Errorf("call to unknown function id %d", ins.A))
			}
			i.callUser(callee)
			pc++
		case ir.OpCallForeign:
			fn, ok := i.foreign[ins.Str]
			if !ok {
				panic(errors.Errorf("call to unregistered foreign function %q", ins.Str))
			}
			if err := fn(i); err != nil {
				panic(err)
			}
			pc++
		case ir.OpBeginWhile:
			cond := i.Pop()
			if cond == 0 {
				pc = blocks.beginToEnd[pc] + 1
			} else {
				pc++
			}
		case ir.OpEndWhile:
			start := blocks.endToBegin[pc]
			cond := i.Pop()
			if cond != 0 {
				pc = start + 1
			} else {
				pc++
			}
		case ir.OpLoadBasePtr:
			i.Push(ir.Cell(i.basePtr))
			pc++
		case ir.OpEstablishStackFrame:
			i.establishStackFrame(ins.A, ins.B)
			pc++
		case ir.OpEndStackFrame:
			i.endStackFrame(ins.A, ins.B)
			pc++
		default:
			panic(errors.Errorf("unknown opcode %v", ins.Op))
		}
	}
}

func (i *Instance) callUser(fn *ir.Function) {
	blocks, err := newWhileBlocks(fn.Body)
	if err != nil {
		panic(err)
	}
	i.exec(fn.Body, blocks)
}
