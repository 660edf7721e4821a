// Package ast implements the normalized, typed expression-tree AST that the
// parser/elaborator produces (spec.md §3) and the recursive-descent parser
// itself (spec.md §4.2). The node kinds below are a closed set — every
// source-level control construct is desugared into them before the tree
// ever leaves this package.
package ast

import (
	"github.com/gocompilers/dcc16/internal/token"
	"github.com/gocompilers/dcc16/internal/types"
)

// Position is re-exported from token so callers need not import both
// packages for diagnostics.
type Position = token.Position

// BinOp is one of the binary operators the normalized AST supports.
type BinOp int

const (
	Add BinOp = iota
	Sub
	Mul
	Div
	Mod
	And
	Or
	Xor
	Shl
	Shr
	Eq
	Ne
	Lt
	Gt
	Le
	Ge
	LAnd
	LOr
)

var binOpNames = map[BinOp]string{
	Add: "+", Sub: "-", Mul: "*", Div: "/", Mod: "%",
	And: "&", Or: "|", Xor: "^", Shl: "<<", Shr: ">>",
	Eq: "==", Ne: "!=", Lt: "<", Gt: ">", Le: "<=", Ge: ">=",
	LAnd: "&&", LOr: "||",
}

func (op BinOp) String() string { return binOpNames[op] }

// Expr is implemented by every normalized AST node kind (spec.md §3). Every
// node carries a source position; every node's type is resolvable via
// ResolveType.
type Expr interface {
	Pos() Position
	exprNode()
}

type base struct{ P Position }

func (b base) Pos() Position { return b.P }
func (base) exprNode()       {}

// Nop is the empty statement.
type Nop struct{ base }

// Number is an integer literal.
type Number struct {
	base
	Value int64
}

// String is a string literal.
type String struct {
	base
	Value string
}

// Ident refers to a previously declared identifier.
type Ident struct {
	base
	Id Identifier
}

// Binary combines two operands with one of the supported operators.
type Binary struct {
	base
	Op          BinOp
	Left, Right Expr
}

// AddrOf yields the address of an lvalue.
type AddrOf struct {
	base
	Inner Expr
}

// Deref dereferences a pointer-valued expression; it is itself an lvalue.
type Deref struct {
	base
	Inner Expr
}

// Call invokes Callee (a function-typed value) with Args.
type Call struct {
	base
	Callee Expr
	Args   []Expr
}

// Copy evaluates Source, stores it into the lvalue Destination, and yields
// Destination's new value.
type Copy struct {
	base
	Source, Destination Expr
}

// Comma evaluates every Sub expression in order and yields the last one.
// Nested Comma nodes are always flattened by Add, never nested.
type Comma struct {
	base
	Subs []Expr
}

// Add appends e to c, flattening e into c's Subs if e is itself a Comma,
// and extending c's position to cover e (spec.md §3: "associative — nested
// Commas flatten").
func (c *Comma) Add(e Expr) *Comma {
	if nested, ok := e.(*Comma); ok {
		c.Subs = append(c.Subs, nested.Subs...)
	} else {
		c.Subs = append(c.Subs, e)
	}
	if e != nil {
		c.P.EndLine, c.P.EndCol = e.Pos().EndLine, e.Pos().EndCol
	}
	return c
}

// Loop evaluates Cond; if zero, exits; otherwise runs Body (whose value is
// discarded) and repeats.
type Loop struct {
	base
	Cond, Body Expr
}

// Return unwinds the current function with Inner's value.
type Return struct {
	base
	Inner Expr
}

// Transparent is implemented by node kinds that exist only inside this
// package's parser (not part of the normalized kernel enumerated above) and
// that every downstream consumer should see straight through. The cast
// wrapper is the only current implementor: on this ISA every scalar is one
// 16-bit word, so a cast changes only the static type, never the bit
// pattern, and carries no runtime instruction of its own.
type Transparent interface {
	Expr
	Unwrap() Expr
}

// IsLvalue reports whether e denotes a storage location: exactly Ident and
// Deref qualify (spec.md GLOSSARY).
func IsLvalue(e Expr) bool {
	switch e.(type) {
	case *Ident, *Deref:
		return true
	default:
		return false
	}
}

// Role tags what an Identifier refers to.
type Role int

const (
	RoleFunction Role = iota
	RoleParameter
	RoleVariable
	RoleGlobal
)

func (r Role) String() string {
	switch r {
	case RoleFunction:
		return "function"
	case RoleParameter:
		return "parameter"
	case RoleVariable:
		return "variable"
	case RoleGlobal:
		return "global variable"
	default:
		return "identifier"
	}
}

// Identifier is a user-visible name tagged with a role and a role-local
// dense index (spec.md §3). Indices into per-function parameter/variable
// arrays are assigned in declaration order and never reused.
type Identifier struct {
	Role  Role
	Name  string
	Index int
}

// Function carries everything the rest of the pipeline needs about one
// defined (or, for the supplemented `.extern` feature, declared-only)
// function.
type Function struct {
	Name   string
	Type   types.Func
	Params []string // parameter names, Params[i] has type Type.Params[i]
	// Vars holds every local variable's type, including parser-introduced
	// temporaries, in declaration order; VariableIdentifier.Index indexes
	// into this slice.
	Vars []types.Type
	// VarNames mirrors Vars for diagnostics/debugging; temporaries get a
	// synthesized name ("_t0", "_t1", ...).
	VarNames []string
	Body     Expr

	// PureKnown/Pure are maintained by the AST optimizer's purity fixed
	// point (spec.md §4.3); both start false.
	PureKnown bool
	Pure      bool

	// Extern marks a prototype-only declaration (supplemented feature,
	// SPEC_FULL.md §3): Body is nil and lowering/optimization skip it.
	Extern bool
}

// GlobalVar is a supplemented feature (SPEC_FULL.md §3): a file-scope
// variable resolved to a fixed symbol rather than a stack slot.
type GlobalVar struct {
	Name string
	Type types.Type
}

// Unit is everything the parser produced for one translation unit.
type Unit struct {
	Funcs   []*Function
	Globals []*GlobalVar
}

// FuncByName finds a function declaration by name, or nil.
func (u *Unit) FuncByName(name string) *Function {
	for _, f := range u.Funcs {
		if f.Name == name {
			return f
		}
	}
	return nil
}
