package ir

import "github.com/pkg/errors"

// MatchWhile walks body once and pairs every OpBeginWhile with its
// OpEndWhile, the way the teacher's asm/parser.go pairs label definitions
// with their uses — except markers need no forward patching here, only a
// balance check (spec.md §8: "begin_while/end_while are strictly balanced
// within every function").
//
// The returned map has one entry per OpBeginWhile index, giving the index
// of its matching OpEndWhile; a reference Target (oakvm) uses it to jump
// over a not-taken loop body, or back to repeat one.
func MatchWhile(body []Instruction) (map[int]int, error) {
	pairs := make(map[int]int)
	var stack []int
	for i, ins := range body {
		switch ins.Op {
		case OpBeginWhile:
			stack = append(stack, i)
		case OpEndWhile:
			if len(stack) == 0 {
				return nil, errors.Errorf("end_while at instruction %d has no matching begin_while", i)
			}
			start := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			pairs[start] = i
		}
	}
	if len(stack) != 0 {
		return nil, errors.Errorf("begin_while at instruction %d has no matching end_while", stack[len(stack)-1])
	}
	return pairs, nil
}
