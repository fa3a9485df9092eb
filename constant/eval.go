// Package constant implements the compile-time constant evaluator
// (spec.md §4.1): a pure interpreter over a restricted expression language
// used by directives, array sizes, and conditional-compilation guards.
package constant

import (
	"time"

	"github.com/pkg/errors"
)

// nixGOOS is the set of GOOS values the ON_NIX intrinsic is true for;
// ON_NON_NIX is its negation.
var nixGOOS = map[string]bool{
	"linux": true, "darwin": true, "freebsd": true, "openbsd": true, "netbsd": true, "solaris": true,
}

// Eval evaluates expr against env, returning its value or a positioned
// error (division by zero, undefined identifier, or a malformed operand
// kind — all fatal per spec.md §7).
func Eval(expr Expr, env *Env) (Value, error) {
	switch e := expr.(type) {
	case NumberLit:
		return Number(e.Val), nil
	case CharacterLit:
		return Number(float64(e.Val)), nil
	case BooleanLit:
		return Boolean(e.Val), nil
	case StringLit:
		return String(e.Val), nil
	case Ident:
		return evalIdent(e, env)
	case Unary:
		return evalUnary(e, env)
	case Binary:
		return evalBinary(e, env)
	case Ternary:
		return evalTernary(e, env)
	case SizeOf:
		return evalSizeOf(e, env)
	case IsDefined:
		_, ok := env.Lookup(e.Name)
		return Boolean(ok), nil
	case CurrentLine:
		return Number(float64(e.Pos.Line)), nil
	case CurrentFile:
		return String(e.Pos.Filename), nil
	default:
		return Value{}, errors.Errorf("%s: unrecognized constant expression %T", expr.Position(), expr)
	}
}

func evalIdent(e Ident, env *Env) (Value, error) {
	if v, ok := env.Lookup(e.Name); ok {
		return v, nil
	}
	if v, ok := evalPredicate(e.Name, env); ok {
		return v, nil
	}
	return Value{}, errors.Errorf("%s: undefined identifier %q", e.Pos, e.Name)
}

// evalPredicate resolves the fixed set of platform/date/target intrinsics
// that read as bare identifiers (spec.md §4.1's table).
func evalPredicate(name string, env *Env) (Value, bool) {
	switch name {
	case "TARGET":
		return String(env.Target), true
	case "IS_STANDARD":
		return Boolean(env.IsStandard), true
	case "ON_WINDOWS":
		return Boolean(env.GOOS == "windows"), true
	case "ON_MACOS":
		return Boolean(env.GOOS == "darwin"), true
	case "ON_LINUX":
		return Boolean(env.GOOS == "linux"), true
	case "ON_NIX":
		return Boolean(nixGOOS[env.GOOS]), true
	case "ON_NON_NIX":
		return Boolean(!nixGOOS[env.GOOS]), true
	case "DATE_DAY":
		t := clockOf(env)
		return Number(float64(t.Day())), true
	case "DATE_MONTH":
		t := clockOf(env)
		return Number(float64(t.Month())), true
	case "DATE_YEAR":
		t := clockOf(env)
		return Number(float64(t.Year())), true
	default:
		return Value{}, false
	}
}

// clockOf returns env.Clock(), falling back to the real wall clock if Env
// was built without NewEnv.
func clockOf(env *Env) time.Time {
	if env.Clock != nil {
		return env.Clock()
	}
	return time.Now()
}

func evalUnary(e Unary, env *Env) (Value, error) {
	x, err := Eval(e.X, env)
	if err != nil {
		return Value{}, err
	}
	switch e.Op {
	case UnaryNeg:
		if x.Kind != KindNumber {
			return Value{}, errors.Errorf("%s: unary - requires a number", e.Pos)
		}
		return Number(-x.Num), nil
	case UnaryNot:
		return Boolean(!x.truthy()), nil
	default:
		return Value{}, errors.Errorf("%s: unknown unary operator", e.Pos)
	}
}

func evalBinary(e Binary, env *Env) (Value, error) {
	// And/Or short-circuit on constants (spec.md §4.1's edge case).
	if e.Op == BinAnd || e.Op == BinOr {
		x, err := Eval(e.X, env)
		if err != nil {
			return Value{}, err
		}
		if e.Op == BinAnd && !x.truthy() {
			return Boolean(false), nil
		}
		if e.Op == BinOr && x.truthy() {
			return Boolean(true), nil
		}
		y, err := Eval(e.Y, env)
		if err != nil {
			return Value{}, err
		}
		return Boolean(y.truthy()), nil
	}

	x, err := Eval(e.X, env)
	if err != nil {
		return Value{}, err
	}
	y, err := Eval(e.Y, env)
	if err != nil {
		return Value{}, err
	}

	switch e.Op {
	case BinAdd, BinSub, BinMul, BinDiv:
		if x.Kind != KindNumber || y.Kind != KindNumber {
			return Value{}, errors.Errorf("%s: arithmetic operator requires two numbers", e.Pos)
		}
		switch e.Op {
		case BinAdd:
			return Number(x.Num + y.Num), nil
		case BinSub:
			return Number(x.Num - y.Num), nil
		case BinMul:
			return Number(x.Num * y.Num), nil
		case BinDiv:
			if y.Num == 0 {
				return Value{}, errors.Errorf("%s: division by zero in constant expression", e.Pos)
			}
			return Number(x.Num / y.Num), nil
		}
	case BinEq, BinNe, BinLt, BinLe, BinGt, BinGe:
		return evalRelational(e, x, y)
	}
	return Value{}, errors.Errorf("%s: unknown binary operator", e.Pos)
}

func evalRelational(e Binary, x, y Value) (Value, error) {
	if x.Kind == KindNumber && y.Kind == KindNumber {
		switch e.Op {
		case BinEq:
			return Boolean(x.Num == y.Num), nil
		case BinNe:
			return Boolean(x.Num != y.Num), nil
		case BinLt:
			return Boolean(x.Num < y.Num), nil
		case BinLe:
			return Boolean(x.Num <= y.Num), nil
		case BinGt:
			return Boolean(x.Num > y.Num), nil
		case BinGe:
			return Boolean(x.Num >= y.Num), nil
		}
	}
	if x.Kind == KindString && y.Kind == KindString {
		switch e.Op {
		case BinEq:
			return Boolean(x.Str == y.Str), nil
		case BinNe:
			return Boolean(x.Str != y.Str), nil
		}
		return Value{}, errors.Errorf("%s: ordering operators require numbers", e.Pos)
	}
	if x.Kind == KindBoolean && y.Kind == KindBoolean {
		switch e.Op {
		case BinEq:
			return Boolean(x.Bool == y.Bool), nil
		case BinNe:
			return Boolean(x.Bool != y.Bool), nil
		}
		return Value{}, errors.Errorf("%s: ordering operators require numbers", e.Pos)
	}
	return Value{}, errors.Errorf("%s: relational operator requires matching operand kinds", e.Pos)
}

func evalTernary(e Ternary, env *Env) (Value, error) {
	cond, err := Eval(e.Cond, env)
	if err != nil {
		return Value{}, err
	}
	if cond.truthy() {
		return Eval(e.Then, env)
	}
	return Eval(e.Else, env)
}

func evalSizeOf(e SizeOf, env *Env) (Value, error) {
	if env.SizeOf == nil {
		return Value{}, errors.Errorf("%s: sizeof(%s): no type resolver configured", e.Pos, e.Type)
	}
	size, ok := env.SizeOf(e.Type)
	if !ok {
		return Value{}, errors.Errorf("%s: sizeof(%s): unknown type", e.Pos, e.Type)
	}
	return Number(float64(size)), nil
}
