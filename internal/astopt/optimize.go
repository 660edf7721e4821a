package astopt

import (
	"fmt"
	"strings"

	"github.com/gocompilers/dcc16/internal/ast"
)

// Optimize repeats purity inference then folding over every function in
// unit until no function's textual form changes (spec.md §4.3: "repeat the
// entire pass ... until the textual form of all functions stops
// changing"). Termination is guaranteed: folding can only shrink a tree or
// leave it unchanged, and purity can only grow monotonically (spec.md §8
// invariant).
func Optimize(unit *ast.Unit) {
	InferPurity(unit)
	for {
		before := dumpAll(unit)
		for _, fn := range unit.Funcs {
			if fn.Extern {
				continue
			}
			fn.Body = Fold(fn.Body, unit)
		}
		InferPurity(unit)
		if dumpAll(unit) == before {
			return
		}
	}
}

func dumpAll(unit *ast.Unit) string {
	var sb strings.Builder
	for _, fn := range unit.Funcs {
		if fn.Extern {
			continue
		}
		fmt.Fprintf(&sb, "%s:%t:%t:", fn.Name, fn.PureKnown, fn.Pure)
		dump(&sb, fn.Body)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// dump writes a compact s-expression form of e, used only to detect
// fixed-point convergence — not a stable or user-facing format.
func dump(sb *strings.Builder, e ast.Expr) {
	switch n := e.(type) {
	case *ast.Nop:
		sb.WriteString("()")
	case *ast.Number:
		fmt.Fprintf(sb, "%d", n.Value)
	case *ast.String:
		fmt.Fprintf(sb, "%q", n.Value)
	case *ast.Ident:
		fmt.Fprintf(sb, "#%d.%d", n.Id.Role, n.Id.Index)
	case *ast.Binary:
		sb.WriteByte('(')
		dump(sb, n.Left)
		fmt.Fprintf(sb, " %s ", n.Op)
		dump(sb, n.Right)
		sb.WriteByte(')')
	case *ast.AddrOf:
		sb.WriteString("(& ")
		dump(sb, n.Inner)
		sb.WriteByte(')')
	case *ast.Deref:
		sb.WriteString("(* ")
		dump(sb, n.Inner)
		sb.WriteByte(')')
	case *ast.Call:
		sb.WriteString("(call ")
		dump(sb, n.Callee)
		for _, a := range n.Args {
			sb.WriteByte(' ')
			dump(sb, a)
		}
		sb.WriteByte(')')
	case *ast.Copy:
		sb.WriteString("(= ")
		dump(sb, n.Destination)
		sb.WriteByte(' ')
		dump(sb, n.Source)
		sb.WriteByte(')')
	case *ast.Comma:
		sb.WriteString("(,")
		for _, s := range n.Subs {
			sb.WriteByte(' ')
			dump(sb, s)
		}
		sb.WriteByte(')')
	case *ast.Loop:
		sb.WriteString("(loop ")
		dump(sb, n.Cond)
		sb.WriteByte(' ')
		dump(sb, n.Body)
		sb.WriteByte(')')
	case *ast.Return:
		sb.WriteString("(return ")
		dump(sb, n.Inner)
		sb.WriteByte(')')
	default:
		if inner, ok := unwrapTransparent(e); ok {
			sb.WriteString("(cast ")
			dump(sb, inner)
			sb.WriteByte(')')
			return
		}
		sb.WriteString("?")
	}
}
