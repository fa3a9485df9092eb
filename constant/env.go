package constant

import (
	"runtime"
	"time"
)

// Env is the constant environment threaded through Eval: the declaration
// driver's accumulated name->Value bindings plus the handful of
// compile-host facts the intrinsics table in spec.md §4.1 exposes. It is
// mutated only by the declaration driver (spec.md §9) and read-only
// thereafter, the same single-writer discipline the teacher applies to its
// own parser.consts map.
type Env struct {
	Constants map[string]Value

	// Target is the single character identifying the selected backend
	// (spec.md §4.1's TARGET intrinsic), e.g. "c", "g", "t".
	Target string

	// IsStandard reports whether the selected backend implements the full
	// standard library (the IS_STANDARD intrinsic).
	IsStandard bool

	// SizeOf resolves sizeof(T) in cells; supplied by the declaration
	// driver/HIR layer, which own type registration. A nil SizeOf makes
	// every sizeof() call an error.
	SizeOf func(typeName string) (int, bool)

	// Clock is injected so tests can pin DATE_DAY/DATE_MONTH/DATE_YEAR;
	// defaults to time.Now via NewEnv.
	Clock func() time.Time

	// GOOS overrides runtime.GOOS for the ON_WINDOWS/ON_MACOS/ON_LINUX/
	// ON_NIX/ON_NON_NIX predicates; defaults to runtime.GOOS via NewEnv.
	GOOS string
}

// NewEnv returns an Env with Clock and GOOS defaulted to the real host.
func NewEnv() *Env {
	return &Env{
		Constants: make(map[string]Value),
		Clock:     time.Now,
		GOOS:      runtime.GOOS,
	}
}

// Lookup resolves a user-defined constant.
func (e *Env) Lookup(name string) (Value, bool) {
	v, ok := e.Constants[name]
	return v, ok
}

// Define binds name to v, overwriting any previous binding. Callers that
// must reject redefinition (the Constant directive, per spec.md §9's
// resolved "const duplicates are errors") check Lookup first.
func (e *Env) Define(name string, v Value) {
	e.Constants[name] = v
}
