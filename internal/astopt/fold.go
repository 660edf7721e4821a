package astopt

import "github.com/gocompilers/dcc16/internal/ast"

// Fold performs one pass of constant and algebraic folding over e and
// returns the (possibly rewritten) tree (spec.md §4.3). The caller is
// expected to repeat Fold/InferPurity until the tree stops changing
// (Optimize does this).
func Fold(e ast.Expr, unit *ast.Unit) ast.Expr {
	switch n := e.(type) {
	case *ast.Binary:
		n.Left = Fold(n.Left, unit)
		n.Right = Fold(n.Right, unit)
		return foldBinary(n, unit)

	case *ast.AddrOf:
		n.Inner = Fold(n.Inner, unit)
		if d, ok := n.Inner.(*ast.Deref); ok {
			return d.Inner // AddrOf(Deref(x)) -> x
		}
		return n

	case *ast.Deref:
		n.Inner = Fold(n.Inner, unit)
		if a, ok := n.Inner.(*ast.AddrOf); ok {
			return a.Inner // Deref(AddrOf(x)) -> x
		}
		return n

	case *ast.Call:
		n.Callee = Fold(n.Callee, unit)
		for i := range n.Args {
			n.Args[i] = Fold(n.Args[i], unit)
		}
		return n

	case *ast.Copy:
		n.Source = Fold(n.Source, unit)
		n.Destination = Fold(n.Destination, unit)
		if exprEqual(n.Source, n.Destination) {
			if pure, decided := isPure(n.Source, unit); decided && pure {
				return n.Source // Copy(e, e) with pure e -> e
			}
		}
		return n

	case *ast.Comma:
		return foldComma(n, unit)

	case *ast.Loop:
		n.Cond = Fold(n.Cond, unit)
		n.Body = Fold(n.Body, unit)
		if num, ok := n.Cond.(*ast.Number); ok && num.Value == 0 {
			return &ast.Nop{} // Loop(0, body) -> Nop
		}
		return n

	case *ast.Return:
		n.Inner = Fold(n.Inner, unit)
		return n

	default:
		return e
	}
}

func foldBinary(n *ast.Binary, unit *ast.Unit) ast.Expr {
	l, lok := n.Left.(*ast.Number)
	r, rok := n.Right.(*ast.Number)

	switch n.Op {
	case ast.LAnd:
		if lok {
			if l.Value == 0 {
				return &ast.Number{Value: 0}
			}
			return n.Right
		}
		if rok {
			if r.Value == 0 {
				if pure, decided := isPure(n.Left, unit); decided && pure {
					return (&ast.Comma{}).Add(n.Left).Add(&ast.Number{Value: 0})
				}
			}
		}
		return n

	case ast.LOr:
		if lok {
			if l.Value != 0 {
				return &ast.Number{Value: 1}
			}
			return n.Right
		}
		if rok {
			if r.Value != 0 {
				if pure, decided := isPure(n.Left, unit); decided && pure {
					return (&ast.Comma{}).Add(n.Left).Add(&ast.Number{Value: 1})
				}
			}
		}
		return n
	}

	if lok && rok {
		if v, ok := evalBinary(n.Op, l.Value, r.Value); ok {
			return &ast.Number{Value: v}
		}
	}
	return n
}

// evalBinary evaluates a purely numeric binary op with unsigned 16-bit
// modular arithmetic (spec.md §4.3). Division/modulo by zero are not
// folded — they stay as runtime operations so the backend's trap behavior
// (if any) is preserved.
func evalBinary(op ast.BinOp, l, r int64) (int64, bool) {
	const mask = 0xFFFF
	lu, ru := l&mask, r&mask
	switch op {
	case ast.Add:
		return (lu + ru) & mask, true
	case ast.Sub:
		return (lu - ru) & mask, true
	case ast.Mul:
		return (lu * ru) & mask, true
	case ast.Div:
		if ru == 0 {
			return 0, false
		}
		return (lu / ru) & mask, true
	case ast.Mod:
		if ru == 0 {
			return 0, false
		}
		return (lu % ru) & mask, true
	case ast.And:
		return lu & ru, true
	case ast.Or:
		return lu | ru, true
	case ast.Xor:
		return lu ^ ru, true
	case ast.Shl:
		return (lu << uint(ru&15)) & mask, true
	case ast.Shr:
		return (lu >> uint(ru&15)) & mask, true
	case ast.Eq:
		return boolToInt(lu == ru), true
	case ast.Ne:
		return boolToInt(lu != ru), true
	case ast.Lt:
		return boolToInt(lu < ru), true
	case ast.Gt:
		return boolToInt(lu > ru), true
	case ast.Le:
		return boolToInt(lu <= ru), true
	case ast.Ge:
		return boolToInt(lu >= ru), true
	default:
		return 0, false
	}
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// foldComma drops Nops, non-final sub-expressions that are bare values
// (numbers, strings, identifiers), and anything past a Return, then
// collapses a singleton. Other non-final sub-expressions are kept even when
// isPure accepts them, because isPure does not count a store to a local
// variable (or a Return) as a side effect.
func foldComma(n *ast.Comma, unit *ast.Unit) ast.Expr {
	folded := make([]ast.Expr, 0, len(n.Subs))
	for _, s := range n.Subs {
		folded = append(folded, Fold(s, unit))
	}

	kept := make([]ast.Expr, 0, len(folded))
	terminated := false
	for i, s := range folded {
		if terminated {
			break
		}
		isLast := i == len(folded)-1
		if _, isNop := s.(*ast.Nop); isNop {
			continue
		}
		if !isLast {
			switch s.(type) {
			case *ast.Number, *ast.String, *ast.Ident:
				continue
			}
		}
		kept = append(kept, s)
		if _, isReturn := s.(*ast.Return); isReturn {
			terminated = true
		}
	}

	if len(kept) == 0 {
		return &ast.Nop{}
	}
	if len(kept) == 1 {
		return kept[0]
	}
	out := &ast.Comma{}
	for _, s := range kept {
		out.Add(s)
	}
	return out
}

// exprEqual is a shallow structural-equality check used by the Copy(e,e)
// rule; it only recognizes the common shapes the parser itself produces
// for a "same lvalue referenced twice" pattern (a bare Ident).
func exprEqual(a, b ast.Expr) bool {
	ai, aok := a.(*ast.Ident)
	bi, bok := b.(*ast.Ident)
	if aok && bok {
		return ai.Id == bi.Id
	}
	return false
}
