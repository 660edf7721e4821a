package ir

import (
	"testing"

	"github.com/gocompilers/dcc16/internal/ast"
	"github.com/gocompilers/dcc16/internal/astopt"
)

func lowerSrc(t *testing.T, src string) *Program {
	t.Helper()
	u, _, err := ast.Parse(src, "<test>")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	astopt.Optimize(u)
	p, err := Lower(u)
	if err != nil {
		t.Fatalf("lower error: %v", err)
	}
	return p
}

// walk enumerates every instruction reachable from f.Entry via Next/Branch,
// the way the backend and iropt traverse the graph.
func walk(f *Func) map[int]bool {
	seen := map[int]bool{}
	var visit func(idx int)
	visit = func(idx int) {
		if idx == NoInst || seen[idx] {
			return
		}
		seen[idx] = true
		i := f.Insts[idx]
		visit(i.Next)
		if i.Kind == Ifnz {
			visit(i.Branch)
		}
	}
	visit(f.Entry)
	return seen
}

func TestLower_SimpleAddReachesRet(t *testing.T) {
	p := lowerSrc(t, `int add(int a, int b) { return a + b; }`)
	f := p.FuncByName("add")
	if f == nil {
		t.Fatal("add not lowered")
	}
	if f.NumParams != 2 {
		t.Fatalf("want 2 params, got %d", f.NumParams)
	}
	seen := walk(f)
	var foundMath, foundRet bool
	for idx := range seen {
		switch f.Insts[idx].Kind {
		case Math:
			foundMath = true
		case Ret:
			foundRet = true
		}
	}
	if !foundMath || !foundRet {
		t.Fatalf("want Math and Ret reachable from entry, foundMath=%v foundRet=%v", foundMath, foundRet)
	}
}

func TestLower_ShortCircuitDiamond(t *testing.T) {
	p := lowerSrc(t, `int f(int a, int b) { return a && b; }`)
	f := p.FuncByName("f")
	seen := walk(f)
	var ifnz *Inst
	for idx := range seen {
		if f.Insts[idx].Kind == Ifnz {
			ifnz = f.Insts[idx]
		}
	}
	if ifnz == nil {
		t.Fatal("want an Ifnz instruction for &&")
	}
	if ifnz.Branch == NoInst || ifnz.Next == NoInst || ifnz.Branch == ifnz.Next {
		t.Fatalf("want distinct then/else successors, got Branch=%d Next=%d", ifnz.Branch, ifnz.Next)
	}
}

func TestLower_LoopSplicesBackToCondition(t *testing.T) {
	p := lowerSrc(t, `int f(int n) { while (n) { n = n - 1; } return n; }`)
	f := p.FuncByName("f")
	seen := walk(f)
	var ifnzs []int
	for idx := range seen {
		if f.Insts[idx].Kind == Ifnz {
			ifnzs = append(ifnzs, idx)
		}
	}
	if len(ifnzs) == 0 {
		t.Fatal("want an Ifnz for the loop condition")
	}
	// The parser's break/continue flags lower to Ifnz instructions of their
	// own (the `brk &&` gate on the condition, the `live &&` gate on the
	// body statement). The loop's own check is the Ifnz whose Branch (body)
	// chain, followed through Next edges, reaches it again, proving the
	// splice.
	reached := false
	for _, loopIfnz := range ifnzs {
		cur := f.Insts[loopIfnz].Branch
		for steps := 0; cur != NoInst && steps < 1000; steps++ {
			if cur == loopIfnz {
				reached = true
				break
			}
			cur = f.Insts[cur].Next
		}
	}
	if !reached {
		t.Fatal("loop body does not splice back to the condition check")
	}
}

func TestLower_ArrayLocalGetsAlloca(t *testing.T) {
	p := lowerSrc(t, `int f() { int a[4]; a[0] = 1; return a[0]; }`)
	f := p.FuncByName("f")
	seen := walk(f)
	found := false
	for idx := range seen {
		if f.Insts[idx].Kind == Alloca && f.Insts[idx].Size == 4 {
			found = true
		}
	}
	if !found {
		t.Fatal("want an Alloca(size=4) for the array local")
	}
}

func TestLower_CallArgumentsLowerInOrder(t *testing.T) {
	p := lowerSrc(t, `
		int g(int x, int y) { return x + y; }
		int f() { return g(1, 2); }
	`)
	f := p.FuncByName("f")
	seen := walk(f)
	var call *Inst
	for idx := range seen {
		if f.Insts[idx].Kind == FCall {
			call = f.Insts[idx]
		}
	}
	if call == nil {
		t.Fatal("want a call instruction")
	}
	if call.Symbol != "g" || len(call.Args) != 2 {
		t.Fatalf("want direct call to g with 2 args, got %+v", call)
	}
	if call.Dst == NoReg {
		t.Fatal("want a destination register for g's non-void result")
	}
}
