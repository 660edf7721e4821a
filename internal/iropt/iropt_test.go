package iropt

import (
	"testing"

	"github.com/gocompilers/dcc16/internal/ast"
	"github.com/gocompilers/dcc16/internal/astopt"
	"github.com/gocompilers/dcc16/internal/ir"
)

func lowerOptimized(t *testing.T, src, fnName string) *ir.Func {
	t.Helper()
	u, _, err := ast.Parse(src, "<test>")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	astopt.Optimize(u)
	prog, err := ir.Lower(u)
	if err != nil {
		t.Fatalf("lower error: %v", err)
	}
	f := prog.FuncByName(fnName)
	if f == nil {
		t.Fatalf("function %s not lowered", fnName)
	}
	Optimize(f)
	return f
}

func countKind(f *ir.Func, k ir.Kind) int {
	n := 0
	for _, inst := range f.Insts {
		if inst.Kind == k {
			n++
		}
	}
	return n
}

func TestOptimize_DeadInitIsRemoved(t *testing.T) {
	f := lowerOptimized(t, `int f(int a) { int unused; unused = 5; return a; }`, "f")
	for _, inst := range f.Insts {
		if inst.Kind == ir.Init && inst.Dst != ir.NoReg {
			t.Fatalf("want the dead Init(unused, 5) eliminated, found %+v", inst)
		}
	}
}

func TestOptimize_CopyThenRetThreads(t *testing.T) {
	// "return a;" lowers to Copy-free direct Ret in the simple case, so
	// force a Copy-then-Ret shape with an intermediate pure expression.
	f := lowerOptimized(t, `int f(int a) { int b; b = a; return b; }`, "f")
	for _, inst := range f.Insts {
		if inst.Kind == ir.Ret && inst.Src1 != 0 {
			t.Fatalf("want Ret threaded straight to parameter register 0, got Src1=%d", inst.Src1)
		}
	}
}

func TestOptimize_NoDanglingNopTargets(t *testing.T) {
	f := lowerOptimized(t, `int f(int a, int b) { return a && b; }`, "f")
	for _, inst := range f.Insts {
		if inst.Next != ir.NoInst && f.Insts[inst.Next].Kind == ir.Nop && f.Insts[inst.Next].Next != ir.NoInst {
			t.Fatalf("want Nop chains collapsed, instruction still points at a forwarding Nop: %+v", inst)
		}
	}
}

func TestOptimize_ReachableGraphHasNoOrphans(t *testing.T) {
	f := lowerOptimized(t, `int f(int n) { int acc; acc = 0; while (n) { acc = acc + n; n = n - 1; } return acc; }`, "f")
	seen := make([]bool, len(f.Insts))
	var visit func(idx int)
	visit = func(idx int) {
		if idx == ir.NoInst || seen[idx] {
			return
		}
		seen[idx] = true
		inst := f.Insts[idx]
		if inst.Kind == ir.Ifnz {
			visit(inst.Branch)
		}
		visit(inst.Next)
	}
	visit(f.Entry)
	for i := range f.Insts {
		if !seen[i] {
			t.Fatalf("instruction %d unreachable after compaction, should have been dropped", i)
		}
	}
}
