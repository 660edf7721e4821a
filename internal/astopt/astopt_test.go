package astopt

import (
	"testing"

	"github.com/gocompilers/dcc16/internal/ast"
)

func parseOrFail(t *testing.T, src string) *ast.Unit {
	t.Helper()
	u, _, err := ast.Parse(src, "<test>")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	return u
}

func TestInferPurity_SimplePureFunction(t *testing.T) {
	u := parseOrFail(t, `int add(int a, int b) { return a + b; }`)
	InferPurity(u)
	fn := u.FuncByName("add")
	if !fn.PureKnown || !fn.Pure {
		t.Fatalf("want add pure, got known=%v pure=%v", fn.PureKnown, fn.Pure)
	}
}

func TestInferPurity_WriteThroughDerefIsImpure(t *testing.T) {
	u := parseOrFail(t, `int set(int *p, int v) { *p = v; return 0; }`)
	InferPurity(u)
	fn := u.FuncByName("set")
	if !fn.PureKnown || fn.Pure {
		t.Fatalf("want set impure, got known=%v pure=%v", fn.PureKnown, fn.Pure)
	}
}

func TestInferPurity_MutualRecursionConverges(t *testing.T) {
	// Each function's only call is to the other, which is still undecided
	// whenever it is examined, so both calls defer and the fixed point ends
	// with both functions undecided (which callers treat as impure).
	u := parseOrFail(t, `
		int is_odd(int n);
		int is_even(int n) { return n == 0 ? 1 : is_odd(n - 1); }
		int is_odd(int n) { return n == 0 ? 0 : is_even(n - 1); }
	`)
	InferPurity(u)
	for _, fn := range u.Funcs {
		if fn.PureKnown {
			t.Fatalf("function %s should stay undecided: its only call defers on the other function", fn.Name)
		}
		if fn.Pure {
			t.Fatalf("function %s should not be marked pure while undecided", fn.Name)
		}
	}
}

// TestInferPurity_Monotonicity is spec.md §8's property #4: re-running the
// purity pass on the fixed point changes nothing.
func TestInferPurity_Monotonicity(t *testing.T) {
	u := parseOrFail(t, `
		int helper(int *p) { *p = 1; return 0; }
		int caller(int *p) { return helper(p); }
	`)
	InferPurity(u)
	snapshot := make(map[string][2]bool, len(u.Funcs))
	for _, fn := range u.Funcs {
		snapshot[fn.Name] = [2]bool{fn.PureKnown, fn.Pure}
	}
	InferPurity(u)
	for _, fn := range u.Funcs {
		if snapshot[fn.Name] != [2]bool{fn.PureKnown, fn.Pure} {
			t.Fatalf("purity of %s changed on a second pass", fn.Name)
		}
	}
}

func TestFold_ConstantArithmetic(t *testing.T) {
	u := parseOrFail(t, `int f() { return 2 + 3 * 4; }`)
	Optimize(u)
	ret := u.FuncByName("f").Body.(*ast.Return)
	num, ok := ret.Inner.(*ast.Number)
	if !ok || num.Value != 14 {
		t.Fatalf("want folded Number(14), got %#v", ret.Inner)
	}
}

func TestFold_ShortCircuitAnd(t *testing.T) {
	u := parseOrFail(t, `int f(int x) { return 0 && x; }`)
	Optimize(u)
	ret := u.FuncByName("f").Body.(*ast.Return)
	num, ok := ret.Inner.(*ast.Number)
	if !ok || num.Value != 0 {
		t.Fatalf("want folded Number(0), got %#v", ret.Inner)
	}
}

func TestFold_DerefAddrOfCancel(t *testing.T) {
	u := parseOrFail(t, `int f(int x) { return *(&x); }`)
	Optimize(u)
	ret := u.FuncByName("f").Body.(*ast.Return)
	if _, ok := ret.Inner.(*ast.Ident); !ok {
		t.Fatalf("want Deref(AddrOf(x)) folded to x, got %#v", ret.Inner)
	}
}

func TestFold_DeadLoopBecomesNop(t *testing.T) {
	u := parseOrFail(t, `int f() { while (0) { } return 1; }`)
	Optimize(u)
	body := u.FuncByName("f").Body
	if countLoopsIn(body) != 0 {
		t.Fatalf("want no surviving Loop nodes, got body %#v", body)
	}
}

func countLoopsIn(e ast.Expr) int {
	switch n := e.(type) {
	case *ast.Loop:
		return 1 + countLoopsIn(n.Body)
	case *ast.Comma:
		total := 0
		for _, s := range n.Subs {
			total += countLoopsIn(s)
		}
		return total
	case *ast.Binary:
		return countLoopsIn(n.Left) + countLoopsIn(n.Right)
	default:
		return 0
	}
}

// TestFold_Idempotence is spec.md §8's property #5: folding a
// fixed-point tree again leaves it unchanged.
func TestFold_Idempotence(t *testing.T) {
	u := parseOrFail(t, `int f(int a) { return (1 + 2) * a + (3 && a); }`)
	Optimize(u)
	before := dumpAll(u)
	for _, fn := range u.Funcs {
		fn.Body = Fold(fn.Body, u)
	}
	if dumpAll(u) != before {
		t.Fatal("folding a fixed-point tree again changed it")
	}
}
