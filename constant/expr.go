package constant

// Expr is a node in the restricted constant sub-language (spec.md §4.1):
// literals, identifier lookup, unary/binary/ternary operators, and a fixed
// set of intrinsics. Every concrete type below carries its own Position so
// current_line()/current_file() and diagnostics can report a location.
type Expr interface {
	Position() Position
}

// NumberLit is a numeric literal.
type NumberLit struct {
	Pos Position
	Val float64
}

// CharacterLit is a character literal; it evaluates to the character's
// numeric code point, per the Cell data model (spec.md §3).
type CharacterLit struct {
	Pos Position
	Val rune
}

// BooleanLit is a boolean literal.
type BooleanLit struct {
	Pos Position
	Val bool
}

// StringLit is a string literal.
type StringLit struct {
	Pos Position
	Val string
}

// Ident looks up a name in the constant environment, or resolves one of the
// built-in predicate names (TARGET, ON_WINDOWS, ON_MACOS, ON_LINUX, ON_NIX,
// ON_NON_NIX, DATE_DAY, DATE_MONTH, DATE_YEAR, IS_STANDARD) if the name is
// not user-defined.
type Ident struct {
	Pos  Position
	Name string
}

// UnaryOp is the operator of a Unary expression.
type UnaryOp int

const (
	UnaryNeg UnaryOp = iota // -x
	UnaryNot                // !x
)

// Unary is a unary-operator expression.
type Unary struct {
	Pos Position
	Op  UnaryOp
	X   Expr
}

// BinaryOp is the operator of a Binary expression.
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

// Binary is a binary-operator expression. And/Or short-circuit: the right
// operand is not evaluated when the result is already determined.
type Binary struct {
	Pos   Position
	Op    BinaryOp
	X, Y  Expr
}

// Ternary is `cond ? then : else`.
type Ternary struct {
	Pos              Position
	Cond, Then, Else Expr
}

// SizeOf is `sizeof(T)`; T is a type name resolved through the Env.
type SizeOf struct {
	Pos  Position
	Type string
}

// IsDefined is `is_defined(name)`.
type IsDefined struct {
	Pos  Position
	Name string
}

// CurrentLine is `current_line()`; it evaluates to its own Position's line.
type CurrentLine struct {
	Pos Position
}

// CurrentFile is `current_file()`; it evaluates to its own Position's
// filename.
type CurrentFile struct {
	Pos Position
}

func (e NumberLit) Position() Position   { return e.Pos }
func (e CharacterLit) Position() Position { return e.Pos }
func (e BooleanLit) Position() Position  { return e.Pos }
func (e StringLit) Position() Position   { return e.Pos }
func (e Ident) Position() Position       { return e.Pos }
func (e Unary) Position() Position       { return e.Pos }
func (e Binary) Position() Position      { return e.Pos }
func (e Ternary) Position() Position     { return e.Pos }
func (e SizeOf) Position() Position      { return e.Pos }
func (e IsDefined) Position() Position   { return e.Pos }
func (e CurrentLine) Position() Position { return e.Pos }
func (e CurrentFile) Position() Position { return e.Pos }
