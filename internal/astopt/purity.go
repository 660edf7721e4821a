// Package astopt implements the AST-level optimizer: purity inference over
// the (possibly mutually recursive) call graph, and constant/algebraic
// folding over each function body (spec.md §4.3). Grounded on the original
// Expr.is_pure virtual dispatch (compiler/ast.py) and Function.pure_known/
// pure bookkeeping, collapsed into a type switch per the tagged-sum design
// note (spec.md §9) and driven to a fixed point with github.com/samber/lo
// set helpers, the way sentra-language's optimizer passes track
// worklist/seen sets.
package astopt

import (
	"github.com/samber/lo"

	"github.com/gocompilers/dcc16/internal/ast"
)

// InferPurity runs the monotone purity fixed point over every function in
// unit, mutating each Function's PureKnown/Pure fields in place. Calls to
// functions not yet decided are conservatively treated as unknown; any
// function still undecided when the fixed point is reached is left
// PureKnown=false (callers treat it as impure, spec.md §4.3).
func InferPurity(unit *ast.Unit) {
	order := purityOrder(unit)
	for {
		changed := false
		for _, i := range order {
			fn := unit.Funcs[i]
			if fn.PureKnown || fn.Extern {
				continue
			}
			if pure, decided := isPure(fn.Body, unit); decided {
				fn.PureKnown = true
				fn.Pure = pure
				changed = true
			}
		}
		if !changed {
			return
		}
	}
}

// purityOrder visits CallGraph(unit) depth-first and returns function
// indices in postorder (callees before their callers). Feeding this order
// to InferPurity's fixed point means an acyclic call chain settles in a
// single round instead of one round per level of call depth. Functions on
// a call cycle whose calls defer on one another are never decided and end
// the fixed point with PureKnown=false.
func purityOrder(unit *ast.Unit) []int {
	graph := CallGraph(unit)
	visited := make([]bool, len(unit.Funcs))
	order := make([]int, 0, len(unit.Funcs))
	var visit func(i int)
	visit = func(i int) {
		if visited[i] {
			return
		}
		visited[i] = true
		for _, callee := range graph[i] {
			visit(callee)
		}
		order = append(order, i)
	}
	for i := range unit.Funcs {
		visit(i)
	}
	return order
}

// isPure reports whether e has any observable side effect, and whether
// that determination is final (false if it depends on a not-yet-decided
// function). An extern function is always conservatively impure-decided
// since it may do anything.
func isPure(e ast.Expr, unit *ast.Unit) (pure bool, decided bool) {
	switch n := e.(type) {
	case *ast.Nop, *ast.Number, *ast.String, *ast.Ident:
		return true, true

	case *ast.Binary:
		return allPure(unit, n.Left, n.Right)

	case *ast.AddrOf:
		return isPure(n.Inner, unit)

	case *ast.Deref:
		// A read through a pointer is pure; only a Copy targeting a Deref
		// (handled below) is the write side effect (spec.md §4.3).
		return isPure(n.Inner, unit)

	case *ast.Call:
		fid, ok := n.Callee.(*ast.Ident)
		if !ok || fid.Id.Role != ast.RoleFunction {
			// Indirect call through a computed function pointer: unknown
			// callee, conservatively impure (spec.md §4.3).
			return false, true
		}
		callee := unit.Funcs[fid.Id.Index]
		argsPure, argsDecided := allPure(unit, n.Args...)
		if !argsPure {
			return false, argsDecided
		}
		if callee.Extern {
			return false, true
		}
		if !callee.PureKnown {
			return false, false // deferred: callee's status is still unknown
		}
		return callee.Pure, true

	case *ast.Copy:
		if _, destIsDeref := n.Destination.(*ast.Deref); destIsDeref {
			return false, true
		}
		if id, ok := n.Destination.(*ast.Ident); ok && id.Id.Role == ast.RoleGlobal {
			return false, true // a store to a global is visible outside the function
		}
		return allPure(unit, n.Source, n.Destination)

	case *ast.Comma:
		return allPure(unit, n.Subs...)

	case *ast.Loop:
		return allPure(unit, n.Cond, n.Body)

	case *ast.Return:
		return isPure(n.Inner, unit)

	default:
		// Unknown node kind (e.g. a cast wrapper): defer to its sole
		// sub-expression if it has one; otherwise conservatively impure.
		if inner, ok := unwrapTransparent(e); ok {
			return isPure(inner, unit)
		}
		return false, true
	}
}

func unwrapTransparent(e ast.Expr) (ast.Expr, bool) {
	if t, ok := e.(ast.Transparent); ok {
		return t.Unwrap(), true
	}
	return nil, false
}

func allPure(unit *ast.Unit, exprs ...ast.Expr) (pure bool, decided bool) {
	decided = true
	for _, e := range exprs {
		p, d := isPure(e, unit)
		if !d {
			decided = false
		}
		if !p {
			return false, decided
		}
	}
	return true, decided
}

// CallGraph returns, for each function index, the set of function indices
// it calls directly (by name, not through a computed pointer) — exposed
// for diagnostics/testing of the fixed point's convergence order.
func CallGraph(unit *ast.Unit) map[int][]int {
	graph := map[int][]int{}
	for i, fn := range unit.Funcs {
		if fn.Extern {
			continue
		}
		callees := map[int]struct{}{}
		collectCalls(fn.Body, unit, callees)
		graph[i] = lo.Keys(callees)
	}
	return graph
}

func collectCalls(e ast.Expr, unit *ast.Unit, out map[int]struct{}) {
	switch n := e.(type) {
	case *ast.Call:
		if fid, ok := n.Callee.(*ast.Ident); ok && fid.Id.Role == ast.RoleFunction {
			out[fid.Id.Index] = struct{}{}
		}
		for _, a := range n.Args {
			collectCalls(a, unit, out)
		}
	case *ast.Binary:
		collectCalls(n.Left, unit, out)
		collectCalls(n.Right, unit, out)
	case *ast.AddrOf:
		collectCalls(n.Inner, unit, out)
	case *ast.Deref:
		collectCalls(n.Inner, unit, out)
	case *ast.Copy:
		collectCalls(n.Source, unit, out)
		collectCalls(n.Destination, unit, out)
	case *ast.Comma:
		for _, s := range n.Subs {
			collectCalls(s, unit, out)
		}
	case *ast.Loop:
		collectCalls(n.Cond, unit, out)
		collectCalls(n.Body, unit, out)
	case *ast.Return:
		collectCalls(n.Inner, unit, out)
	default:
		if inner, ok := unwrapTransparent(e); ok {
			collectCalls(inner, unit, out)
		}
	}
}
