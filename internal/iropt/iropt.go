// Package iropt implements the IR-level optimizer (spec.md §4.5): repeated
// passes over a lowered ir.Func's instruction graph until nothing changes
// anymore. Grounded on the same worklist-fixpoint shape astopt's purity
// inference uses (spec.md §9's tagged-sum + fixpoint design note), adapted
// from per-expression recursion to a graph walk over ir.Inst's Next/Branch
// edges.
//
// The full reaching-sources AccessInfo dataflow spec.md §4.5 describes is
// approximated here by a cheaper single-predecessor check (DESIGN.md):
// jump-threading and the Copy-then-Ret rewrite only fire when an
// instruction has exactly one incoming Next edge, which covers the
// straight-line code the front end actually produces (loop conditions,
// if/else diamonds, initializer sequences) without needing full
// must-reach-from-every-path reasoning.
package iropt

import "github.com/gocompilers/dcc16/internal/ir"

// Optimize rewrites f in place, repeating nop elimination and jump
// threading until neither changes the instruction count or graph shape.
func Optimize(f *ir.Func) {
	for {
		changed := false
		changed = foldConstantBranches(f) || changed
		changed = threadCopyReturn(f) || changed
		changed = skipNops(f) || changed
		changed = collapseEqualBranches(f) || changed
		changed = eliminateDeadResults(f) || changed
		if !changed {
			break
		}
	}
	compact(f)
}

// uniquePred returns the sole instruction whose ordinary (Next) successor
// is idx, or ok=false if zero or more than one instruction reaches idx that
// way. Branch edges are deliberately excluded: an Ifnz's taken edge always
// has exactly one source engineered by the lowering pass, but treating it
// the same as a Next edge would let a loop's back-edge masquerade as a
// "unique predecessor" of the condition check, which is not safe to fold
// through.
func uniquePred(f *ir.Func, idx int) (pred *ir.Inst, predIdx int, ok bool) {
	predIdx = ir.NoInst
	count := 0
	for i, inst := range f.Insts {
		if inst.Next == idx {
			count++
			pred, predIdx = inst, i
		}
	}
	if count != 1 {
		return nil, ir.NoInst, false
	}
	return pred, predIdx, true
}

// foldConstantBranches specializes Ifnz(r, ...) into an unconditional jump
// when r's unique predecessor is an Init with a literal (non-symbol)
// immediate (spec.md §4.5: "specialize Init(r, '', k); Ifnz(r, X) by
// constant-folding the branch").
func foldConstantBranches(f *ir.Func) bool {
	changed := false
	for idx, inst := range f.Insts {
		if inst.Kind != ir.Ifnz {
			continue
		}
		pred, _, ok := uniquePred(f, idx)
		if !ok || pred.Kind != ir.Init || pred.Symbol != "" || pred.Dst != inst.Src1 {
			continue
		}
		target := inst.Next
		if pred.Imm != 0 {
			target = inst.Branch
		}
		inst.Kind = ir.Nop
		inst.Next = target
		inst.Branch = ir.NoInst
		changed = true
	}
	return changed
}

// threadCopyReturn replaces Ret(r) with Ret(s) when r's unique predecessor
// is Copy(r, s) (spec.md §4.5: "replace Copy(r,s); Ret(r) with Ret(s)").
// The now possibly-unreferenced Copy is cleaned up by eliminateDeadResults.
func threadCopyReturn(f *ir.Func) bool {
	changed := false
	for idx, inst := range f.Insts {
		if inst.Kind != ir.Ret || inst.Src1 == ir.NoReg {
			continue
		}
		pred, _, ok := uniquePred(f, idx)
		if !ok || pred.Kind != ir.Copy || pred.Dst != inst.Src1 {
			continue
		}
		inst.Src1 = pred.Src1
		changed = true
	}
	return changed
}

// skipNops retargets every Next/Branch edge that points at a Nop to the
// first non-Nop instruction reachable by following that Nop's own Next
// chain (spec.md §4.5's "chase next/branch, skip Nop targets").
func skipNops(f *ir.Func) bool {
	changed := false
	resolve := func(idx int) int {
		slow, fast := idx, idx
		advance := true
		for fast != ir.NoInst && f.Insts[fast].Kind == ir.Nop && f.Insts[fast].Next != ir.NoInst {
			fast = f.Insts[fast].Next
			if advance {
				slow = f.Insts[slow].Next
			}
			advance = !advance
			if fast == slow {
				break // cyclic Nop chain; stop instead of spinning forever
			}
		}
		return fast
	}

	if r := resolve(f.Entry); r != f.Entry {
		f.Entry = r
		changed = true
	}
	for _, inst := range f.Insts {
		if inst.Next != ir.NoInst {
			if r := resolve(inst.Next); r != inst.Next {
				inst.Next = r
				changed = true
			}
		}
		if inst.Kind == ir.Ifnz && inst.Branch != ir.NoInst {
			if r := resolve(inst.Branch); r != inst.Branch {
				inst.Branch = r
				changed = true
			}
		}
	}
	return changed
}

// collapseEqualBranches turns an Ifnz whose Branch and Next already agree
// into a plain Nop: the condition no longer affects control flow (spec.md
// §4.5: "Ifnz-with-equal-successors").
func collapseEqualBranches(f *ir.Func) bool {
	changed := false
	for _, inst := range f.Insts {
		if inst.Kind == ir.Ifnz && inst.Branch == inst.Next {
			inst.Kind = ir.Nop
			inst.Branch = ir.NoInst
			changed = true
		}
	}
	return changed
}

// eliminateDeadResults turns Init/Math/Copy/Read instructions whose
// destination register is never read anywhere in the function into Nops
// (spec.md §4.5: "dead write-only instructions"). Write, FCall, Ret, Ifnz
// and Alloca are never removed this way: a Write and a call may have
// effects beyond their destination register, Ifnz/Ret have none, and an
// Alloca's address may still be needed for frame-size accounting even if
// unread on some path.
func eliminateDeadResults(f *ir.Func) bool {
	used := make(map[int]bool)
	mark := func(r int) {
		if r != ir.NoReg {
			used[r] = true
		}
	}
	for _, inst := range f.Insts {
		if inst.Kind == ir.Nop {
			continue // an eliminated instruction keeps its old sources but reads nothing
		}
		mark(inst.Src1)
		mark(inst.Src2)
		for _, a := range inst.Args {
			mark(a)
		}
	}

	changed := false
	for _, inst := range f.Insts {
		switch inst.Kind {
		case ir.Init, ir.Math, ir.Copy, ir.Read:
			if inst.Dst != ir.NoReg && !used[inst.Dst] {
				inst.Kind = ir.Nop
				inst.Dst = ir.NoReg
				changed = true
			}
		}
	}
	return changed
}

// compact renumbers f.Insts to only the instructions reachable from
// f.Entry, dropping anything skipNops/eliminateDeadResults orphaned.
func compact(f *ir.Func) {
	order := reachable(f)
	remap := make(map[int]int, len(order))
	out := make([]*ir.Inst, 0, len(order))
	for _, idx := range order {
		remap[idx] = len(out)
		out = append(out, f.Insts[idx])
	}
	fix := func(idx int) int {
		if idx == ir.NoInst {
			return ir.NoInst
		}
		if r, ok := remap[idx]; ok {
			return r
		}
		return ir.NoInst
	}
	for _, inst := range out {
		inst.Next = fix(inst.Next)
		if inst.Kind == ir.Ifnz {
			inst.Branch = fix(inst.Branch)
		}
	}
	f.Entry = fix(f.Entry)
	f.Insts = out
}

// reachable returns every instruction index reachable from f.Entry via
// Next/Branch, in a stable depth-first order.
func reachable(f *ir.Func) []int {
	seen := make([]bool, len(f.Insts))
	var order []int
	var visit func(idx int)
	visit = func(idx int) {
		if idx == ir.NoInst || idx < 0 || idx >= len(seen) || seen[idx] {
			return
		}
		seen[idx] = true
		order = append(order, idx)
		inst := f.Insts[idx]
		if inst.Kind == ir.Ifnz {
			visit(inst.Branch)
		}
		visit(inst.Next)
	}
	visit(f.Entry)
	return order
}
