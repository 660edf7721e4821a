package ast

import "github.com/gocompilers/dcc16/internal/types"

// ResolveType computes the static type of e within fn (the enclosing
// function, for Ident/parameter/variable lookups) and unit (for resolving
// called/addressed functions and globals). Grounded on the original
// Expr.resolve_type methods (compiler/ast.py), collapsed from a virtual
// method per node class into a single type switch (design note, spec.md
// §9: tagged sums dispatch via pattern matching rather than a class
// hierarchy).
func ResolveType(e Expr, fn *Function, unit *Unit) types.Type {
	switch n := e.(type) {
	case *Nop:
		return types.Void{}

	case *Number:
		return types.U16

	case *String:
		return types.Ptr{Elem: types.U16}

	case *Ident:
		switch n.Id.Role {
		case RoleVariable:
			return fn.Vars[n.Id.Index]
		case RoleParameter:
			return fn.Type.Params[n.Id.Index]
		case RoleFunction:
			return types.Ptr{Elem: unit.Funcs[n.Id.Index].Type}
		case RoleGlobal:
			return unit.Globals[n.Id.Index].Type
		default:
			panic("ast: identifier with unknown role")
		}

	case *Binary:
		switch n.Op {
		case Eq, Ne, Lt, Gt, Le, Ge, LAnd, LOr:
			return types.U16
		default:
			// Arithmetic/bitwise ops: result takes the left operand's type
			// (pointer arithmetic yields a pointer, per compiler/ast.py
			// ExprBinary.resolve_type).
			return ResolveType(n.Left, fn, unit)
		}

	case *AddrOf:
		inner := ResolveType(n.Inner, fn, unit)
		// &array decays to a pointer to the array's element type: an array's
		// address and its first element's address coincide, so this kernel
		// never needs a distinct "pointer to array" type.
		if arr, ok := inner.(types.Array); ok {
			return types.Ptr{Elem: arr.Elem}
		}
		return types.Ptr{Elem: inner}

	case *Deref:
		t := ResolveType(n.Inner, fn, unit)
		if p, ok := t.(types.Ptr); ok {
			return p.Elem
		}
		panic("ast: deref of non-pointer type " + t.String())

	case *Call:
		t := ResolveType(n.Callee, fn, unit)
		p, ok := t.(types.Ptr)
		if !ok {
			panic("ast: call of non-function-pointer type " + t.String())
		}
		f, ok := p.Elem.(types.Func)
		if !ok {
			panic("ast: call through pointer to non-function type " + p.Elem.String())
		}
		return f.Ret

	case *Copy:
		return ResolveType(n.Destination, fn, unit)

	case *Comma:
		if len(n.Subs) == 0 {
			return types.Void{}
		}
		return ResolveType(n.Subs[len(n.Subs)-1], fn, unit)

	case *Loop:
		return types.Void{}

	case *Return:
		return types.Void{}

	case *castWrap:
		return n.to

	default:
		panic("ast: unhandled expression kind in ResolveType")
	}
}

// operandKind is the type category of a binary operand. ptrAndIntMatrix and
// intOnlyMatrix below list the accepted (left-kind, right-kind) pairs for
// the operators CheckBinaryOperands routes to them (spec.md §4.2,
// grounded on Parser._check_binary_op's PTR_AND_INT_MATRIX / INT_MATRIX).
type operandKind int

const (
	kindInt operandKind = iota
	kindPtr
)

func classify(t types.Type) (operandKind, bool) {
	switch t.(type) {
	case types.Int:
		return kindInt, true
	case types.Ptr, types.Array: // an array operand decays to a pointer
		return kindPtr, true
	default:
		return 0, false
	}
}

var ptrAndIntMatrix = map[[2]operandKind]bool{
	{kindInt, kindInt}: true,
	{kindPtr, kindInt}: true,
	{kindInt, kindPtr}: true,
	{kindPtr, kindPtr}: true, // pointer difference; scaled by the caller
}

var intOnlyMatrix = map[[2]operandKind]bool{
	{kindInt, kindInt}: true,
}

// CheckBinaryOperands reports whether op may be applied to operands of
// types t1/t2, per spec.md §4.2's operand-type matrix.
func CheckBinaryOperands(op BinOp, t1, t2 types.Type) bool {
	k1, ok1 := classify(t1)
	k2, ok2 := classify(t2)
	if !ok1 || !ok2 {
		return false
	}
	switch op {
	case Add, Sub:
		return ptrAndIntMatrix[[2]operandKind{k1, k2}]
	case Mul, Div, Mod, And, Or, Xor, Shl, Shr:
		return intOnlyMatrix[[2]operandKind{k1, k2}]
	case Eq, Ne, Lt, Gt, Le, Ge, LAnd, LOr:
		return true // both operand kinds accepted; comparison is by value
	default:
		return false
	}
}
