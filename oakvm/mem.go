package oakvm

import "github.com/oak-lang/oakc/ir"

// allocate scans from the top of the tape downward for a run of size free
// cells, per spec.md §4.6's algorithm: the first sufficient run encountered
// from the high end wins. It panics with NoFreeMemory if the run would
// cross the stack pointer.
func (i *Instance) allocate(size int) int {
	if size <= 0 {
		return len(i.Memory)
	}
	run := 0
	for addr := len(i.Memory) - 1; addr >= i.stackPtr; addr-- {
		if i.allocated[addr] {
			run = 0
			continue
		}
		run++
		if run == size {
			for a := addr; a < addr+size; a++ {
				i.allocated[a] = true
			}
			return addr
		}
	}
	panicf(NoFreeMemory, "allocate(%d): no free run above stack pointer %d", size, i.stackPtr)
	return -1
}

// free clears the allocation bitmap and zeroes the cells in [addr, addr+size).
func (i *Instance) free(addr, size int) {
	for a := addr; a < addr+size && a < len(i.Memory); a++ {
		i.allocated[a] = false
		i.Memory[a] = 0
	}
}

// store pops an address, then size cells, writing the first popped cell to
// addr+size-1 (spec.md §6.1: "writes v_i to addr+s-i", reverse order).
func (i *Instance) store(size int) {
	addr := int(i.Pop())
	for k := 0; k < size; k++ {
		v := i.Pop()
		i.Memory[addr+size-1-k] = v
	}
}

// load pops an address and pushes the size cells at [addr, addr+size) in
// order.
func (i *Instance) load(size int) {
	addr := int(i.Pop())
	for k := 0; k < size; k++ {
		i.Push(i.Memory[addr+k])
	}
}

// establishStackFrame implements the function prolog (spec.md §4.4),
// resolved per DESIGN.md's "Stack frame protocol" entry: pop the
// already-pushed arguments, push the saved base pointer, set base_ptr to
// the resulting stack pointer, reserve zeroed local storage, then push the
// arguments back. This never leaves a duplicate/dead copy of the arguments
// on the tape, which is what makes the net-stack-effect invariant
// (return_size - arg_size) hold across recursive calls.
//
// Worked example (argSize=2, localScopeSize=3), entry stack pointer after
// the caller pushed 2 args = 2:
//
//	pop 2 args into scratch            -> sp=0
//	push saved base pointer            -> sp=1, cell[0]=old base_ptr
//	base_ptr := sp (=1)
//	push 3 zeroed locals               -> sp=4, cell[1..3]=0
//	push scratch args back             -> sp=6, cell[4..5]=args
//
// Locals then live at base_ptr+[0,3) = cell[1..3]; arguments at
// base_ptr+[3,5) = cell[4..5] — matching spec.md's "parameters occupy
// slots [local_scope_size, local_scope_size+arg_size)" with no overlap.
func (i *Instance) establishStackFrame(argSize, localScopeSize int) {
	args := make([]ir.Cell, argSize)
	for k := argSize - 1; k >= 0; k-- {
		args[k] = i.Pop()
	}
	i.Push(ir.Cell(i.basePtr))
	i.basePtr = i.stackPtr
	for k := 0; k < localScopeSize; k++ {
		i.Push(0)
	}
	for k := 0; k < argSize; k++ {
		i.Push(args[k])
	}
}

// endStackFrame implements the function epilog (spec.md §4.4): pop the
// return cells, discard the locals+args region, restore the caller's base
// pointer, then push the return cells back. See establishStackFrame's
// doc comment for the matching worked example.
func (i *Instance) endStackFrame(returnSize, localsPlusArgs int) {
	ret := make([]ir.Cell, returnSize)
	for k := returnSize - 1; k >= 0; k-- {
		ret[k] = i.Pop()
	}
	i.stackPtr -= localsPlusArgs
	if i.stackPtr < 0 {
		panicf(StackUnderflow, "end_stack_frame: discard underflowed the stack")
	}
	savedBasePtr := i.Pop()
	i.basePtr = int(savedBasePtr)
	for k := 0; k < returnSize; k++ {
		i.Push(ret[k])
	}
}

// LocalAddress computes the address of local/argument slot k in the frame
// currently based at basePtr, i.e. the effect of "push k; load_base_ptr;
// add" (spec.md §4.4's local-addressing discipline), exposed for hir to
// test frame arithmetic without re-deriving it.
func LocalAddress(basePtr, k int) int { return basePtr + k }
