package constant_test

import (
	"testing"
	"time"

	"github.com/oak-lang/oakc/constant"
)

func mustEval(t *testing.T, e constant.Expr, env *constant.Env) constant.Value {
	t.Helper()
	v, err := constant.Eval(e, env)
	if err != nil {
		t.Fatalf("unexpected error: %+v", err)
	}
	return v
}

func TestEvalLiterals(t *testing.T) {
	env := constant.NewEnv()
	tests := []struct {
		name string
		expr constant.Expr
		want constant.Value
	}{
		{"number", constant.NumberLit{Val: 3.5}, constant.Number(3.5)},
		{"character", constant.CharacterLit{Val: 'A'}, constant.Number(65)},
		{"boolean", constant.BooleanLit{Val: true}, constant.Boolean(true)},
		{"string", constant.StringLit{Val: "hi"}, constant.String("hi")},
	}
	for _, tc := range tests {
		got := mustEval(t, tc.expr, env)
		if got != tc.want {
			t.Errorf("%s: got %+v, want %+v", tc.name, got, tc.want)
		}
	}
}

func TestEvalArithmetic(t *testing.T) {
	env := constant.NewEnv()
	expr := constant.Binary{
		Op: constant.BinAdd,
		X:  constant.NumberLit{Val: 2},
		Y: constant.Binary{
			Op: constant.BinMul,
			X:  constant.NumberLit{Val: 3},
			Y:  constant.NumberLit{Val: 4},
		},
	}
	got := mustEval(t, expr, env)
	if got != constant.Number(14) {
		t.Fatalf("2+3*4 = %v, want 14", got)
	}
}

func TestEvalDivisionByZero(t *testing.T) {
	env := constant.NewEnv()
	expr := constant.Binary{Op: constant.BinDiv, X: constant.NumberLit{Val: 1}, Y: constant.NumberLit{Val: 0}}
	if _, err := constant.Eval(expr, env); err == nil {
		t.Fatal("expected division-by-zero error")
	}
}

func TestEvalUndefinedIdentifier(t *testing.T) {
	env := constant.NewEnv()
	if _, err := constant.Eval(constant.Ident{Name: "nope"}, env); err == nil {
		t.Fatal("expected undefined-identifier error")
	}
}

func TestEvalIdentifierLookup(t *testing.T) {
	env := constant.NewEnv()
	env.Define("WIDTH", constant.Number(80))
	got := mustEval(t, constant.Ident{Name: "WIDTH"}, env)
	if got != constant.Number(80) {
		t.Fatalf("WIDTH = %v, want 80", got)
	}
}

func TestEvalRelational(t *testing.T) {
	env := constant.NewEnv()
	tests := []struct {
		op   constant.BinaryOp
		a, b float64
		want bool
	}{
		{constant.BinEq, 2, 2, true},
		{constant.BinNe, 2, 3, true},
		{constant.BinLt, 2, 3, true},
		{constant.BinLe, 3, 3, true},
		{constant.BinGt, 4, 3, true},
		{constant.BinGe, 3, 3, true},
		{constant.BinLt, 3, 2, false},
	}
	for _, tc := range tests {
		expr := constant.Binary{Op: tc.op, X: constant.NumberLit{Val: tc.a}, Y: constant.NumberLit{Val: tc.b}}
		got := mustEval(t, expr, env)
		if got.Bool != tc.want {
			t.Errorf("%v %v %v: got %v, want %v", tc.a, tc.op, tc.b, got.Bool, tc.want)
		}
	}
}

func TestEvalLogicalShortCircuit(t *testing.T) {
	env := constant.NewEnv()
	// false && <undefined> must not evaluate the right operand.
	expr := constant.Binary{
		Op: constant.BinAnd,
		X:  constant.BooleanLit{Val: false},
		Y:  constant.Ident{Name: "undefined_name"},
	}
	got := mustEval(t, expr, env)
	if got.Bool != false {
		t.Fatalf("false && x = %v, want false", got.Bool)
	}

	// true || <undefined> must not evaluate the right operand either.
	expr2 := constant.Binary{
		Op: constant.BinOr,
		X:  constant.BooleanLit{Val: true},
		Y:  constant.Ident{Name: "undefined_name"},
	}
	got2 := mustEval(t, expr2, env)
	if got2.Bool != true {
		t.Fatalf("true || x = %v, want true", got2.Bool)
	}
}

func TestEvalTernary(t *testing.T) {
	env := constant.NewEnv()
	expr := constant.Ternary{
		Cond: constant.BooleanLit{Val: true},
		Then: constant.NumberLit{Val: 1},
		Else: constant.NumberLit{Val: 2},
	}
	if got := mustEval(t, expr, env); got != constant.Number(1) {
		t.Fatalf("ternary(true) = %v, want 1", got)
	}
	expr.Cond = constant.BooleanLit{Val: false}
	if got := mustEval(t, expr, env); got != constant.Number(2) {
		t.Fatalf("ternary(false) = %v, want 2", got)
	}
}

func TestEvalSizeOf(t *testing.T) {
	env := constant.NewEnv()
	env.SizeOf = func(name string) (int, bool) {
		if name == "Date" {
			return 3, true
		}
		return 0, false
	}
	got := mustEval(t, constant.SizeOf{Type: "Date"}, env)
	if got != constant.Number(3) {
		t.Fatalf("sizeof(Date) = %v, want 3", got)
	}
	if _, err := constant.Eval(constant.SizeOf{Type: "Unknown"}, env); err == nil {
		t.Fatal("expected error for unknown type")
	}
}

func TestEvalSizeOfNoResolver(t *testing.T) {
	env := constant.NewEnv()
	if _, err := constant.Eval(constant.SizeOf{Type: "Date"}, env); err == nil {
		t.Fatal("expected error when no SizeOf resolver is configured")
	}
}

func TestEvalIsDefined(t *testing.T) {
	env := constant.NewEnv()
	env.Define("FOO", constant.Number(1))
	if got := mustEval(t, constant.IsDefined{Name: "FOO"}, env); got.Bool != true {
		t.Fatalf("is_defined(FOO) = %v, want true", got.Bool)
	}
	if got := mustEval(t, constant.IsDefined{Name: "BAR"}, env); got.Bool != false {
		t.Fatalf("is_defined(BAR) = %v, want false", got.Bool)
	}
}

func TestEvalCurrentLineAndFile(t *testing.T) {
	env := constant.NewEnv()
	pos := constant.Position{Filename: "main.oak", Line: 42, Column: 3}
	if got := mustEval(t, constant.CurrentLine{Pos: pos}, env); got != constant.Number(42) {
		t.Fatalf("current_line() = %v, want 42", got)
	}
	if got := mustEval(t, constant.CurrentFile{Pos: pos}, env); got != constant.String("main.oak") {
		t.Fatalf("current_file() = %v, want main.oak", got)
	}
}

func TestEvalPlatformPredicates(t *testing.T) {
	env := constant.NewEnv()
	env.GOOS = "linux"
	env.Target = "c"
	env.IsStandard = true

	tests := []struct {
		name string
		want constant.Value
	}{
		{"TARGET", constant.String("c")},
		{"IS_STANDARD", constant.Boolean(true)},
		{"ON_LINUX", constant.Boolean(true)},
		{"ON_WINDOWS", constant.Boolean(false)},
		{"ON_MACOS", constant.Boolean(false)},
		{"ON_NIX", constant.Boolean(true)},
		{"ON_NON_NIX", constant.Boolean(false)},
	}
	for _, tc := range tests {
		got := mustEval(t, constant.Ident{Name: tc.name}, env)
		if got != tc.want {
			t.Errorf("%s = %+v, want %+v", tc.name, got, tc.want)
		}
	}
}

func TestEvalDateIntrinsicsUseInjectedClock(t *testing.T) {
	env := constant.NewEnv()
	env.Clock = func() time.Time { return time.Date(2002, time.May, 14, 0, 0, 0, 0, time.UTC) }

	if got := mustEval(t, constant.Ident{Name: "DATE_YEAR"}, env); got != constant.Number(2002) {
		t.Fatalf("DATE_YEAR = %v, want 2002", got)
	}
	if got := mustEval(t, constant.Ident{Name: "DATE_MONTH"}, env); got != constant.Number(5) {
		t.Fatalf("DATE_MONTH = %v, want 5", got)
	}
	if got := mustEval(t, constant.Ident{Name: "DATE_DAY"}, env); got != constant.Number(14) {
		t.Fatalf("DATE_DAY = %v, want 14", got)
	}
}

func TestEvalUnary(t *testing.T) {
	env := constant.NewEnv()
	if got := mustEval(t, constant.Unary{Op: constant.UnaryNeg, X: constant.NumberLit{Val: 5}}, env); got != constant.Number(-5) {
		t.Fatalf("-5 = %v, want -5", got)
	}
	if got := mustEval(t, constant.Unary{Op: constant.UnaryNot, X: constant.BooleanLit{Val: false}}, env); got.Bool != true {
		t.Fatalf("!false = %v, want true", got.Bool)
	}
}

func TestDiagnosticsAccumulateAndBound(t *testing.T) {
	var diags constant.Diagnostics
	pos := constant.Position{Line: 1}
	for i := 0; i < 20; i++ {
		diags.Add(pos, "error #%d", i)
	}
	if len(diags) != 10 {
		t.Fatalf("Diagnostics grew to %d entries, want capped at 10", len(diags))
	}
	if !diags.HasErrors() {
		t.Fatal("HasErrors() = false, want true")
	}
	if diags.AsError() == nil {
		t.Fatal("AsError() = nil, want non-nil")
	}
}
