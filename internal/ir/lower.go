package ir

import (
	"fmt"

	"github.com/gocompilers/dcc16/internal/ast"
	"github.com/gocompilers/dcc16/internal/diag"
	"github.com/gocompilers/dcc16/internal/types"
)

// ctx is the per-function IRContext spec.md §4.4 describes: a
// monotonically increasing register counter seeded to the parameter count
// (so Identifier{Parameter, i} maps to register i directly), a mapping from
// local-variable index to its register, and the current tail instruction
// that the next emitted instruction links onto.
type ctx struct {
	fn       *ast.Function
	unit     *ast.Unit
	prog     *Program
	insts    []*Inst
	nextReg  int
	varReg   map[int]int
	tail     int
	strings  map[string]int
}

func newCtx(fn *ast.Function, unit *ast.Unit, prog *Program) *ctx {
	return &ctx{
		fn:      fn,
		unit:    unit,
		prog:    prog,
		nextReg: len(fn.Params),
		varReg:  make(map[int]int),
		tail:    NoInst,
	}
}

func (c *ctx) newReg() int {
	r := c.nextReg
	c.nextReg++
	return r
}

func (c *ctx) appendRaw(i *Inst) int {
	i.Next = NoInst
	idx := len(c.insts)
	c.insts = append(c.insts, i)
	return idx
}

func (c *ctx) linkNext(from, to int) {
	if from != NoInst {
		c.insts[from].Next = to
	}
}

// emit appends i as the next instruction in the current linear chain.
func (c *ctx) emit(i *Inst) int {
	idx := c.appendRaw(i)
	if c.tail != NoInst {
		c.linkNext(c.tail, idx)
	}
	c.tail = idx
	return idx
}

// block runs fn in a fresh chain seeded by a leading Nop (so its entry
// index is known before fn emits anything) and returns that entry plus the
// chain's final tail, restoring the caller's tail afterward.
func (c *ctx) block(fn func()) (entry, exit int) {
	entry = c.appendRaw(&Inst{Kind: Nop})
	saved := c.tail
	c.tail = entry
	fn()
	exit = c.tail
	c.tail = saved
	return entry, exit
}

// regForVar returns the register a scalar local variable lives in,
// allocating one on first reference. Array-typed locals are pre-seeded by
// Lower before the body is walked (their register holds an Alloca base
// address, never a direct value).
func (c *ctx) regForVar(idx int) int {
	if r, ok := c.varReg[idx]; ok {
		return r
	}
	r := c.newReg()
	c.varReg[idx] = r
	return r
}

func (c *ctx) stringSymbol(s string) string {
	if c.strings == nil {
		c.strings = make(map[string]int)
	}
	if i, ok := c.strings[s]; ok {
		return StringSymbol(i)
	}
	i := len(c.prog.Strings)
	c.prog.Strings = append(c.prog.Strings, s)
	c.strings[s] = i
	return StringSymbol(i)
}

// Lower translates every defined function in unit into the IR (spec.md
// §4.4). Extern (prototype-only) functions contribute no Func.
func Lower(unit *ast.Unit) (*Program, error) {
	prog := &Program{Globals: unit.Globals}
	for _, fn := range unit.Funcs {
		if fn.Extern {
			prog.Externs = append(prog.Externs, fn.Name)
			continue
		}
		f, err := lowerFunc(fn, unit, prog)
		if err != nil {
			return nil, err
		}
		prog.Funcs = append(prog.Funcs, f)
	}
	return prog, nil
}

func lowerFunc(fn *ast.Function, unit *ast.Unit, prog *Program) (f *Func, err error) {
	defer diag.Recover(&err)

	c := newCtx(fn, unit, prog)
	entry := c.appendRaw(&Inst{Kind: Nop})
	c.tail = entry

	// Array-typed locals get their Alloca up front so every reference
	// inside the body sees a register already bound to a base address
	// (spec.md §4.4: "Array-typed local variables get an Alloca(r,
	// n_words) at function entry").
	for idx, t := range fn.Vars {
		if arr, ok := t.(types.Array); ok && arr.Len >= 0 {
			r := c.newReg()
			c.varReg[idx] = r
			c.emit(&Inst{Kind: Alloca, Dst: r, Size: arr.Sizeof()})
		}
	}

	lowerExpr(c, fn.Body)

	return &Func{
		Name:      fn.Name,
		NumParams: len(fn.Params),
		NumRegs:   c.nextReg,
		CallConv:  fn.Type.CallConv,
		Insts:     c.insts,
		Entry:     entry,
	}, nil
}

// lowerExpr lowers e and returns the register holding its value, or NoReg
// for nodes with no value (Nop, Loop, a void Return).
func lowerExpr(c *ctx, e ast.Expr) int {
	switch n := e.(type) {
	case *ast.Nop:
		return NoReg

	case *ast.Number:
		r := c.newReg()
		c.emit(&Inst{Kind: Init, Dst: r, Imm: n.Value})
		return r

	case *ast.String:
		r := c.newReg()
		c.emit(&Inst{Kind: Init, Dst: r, Symbol: c.stringSymbol(n.Value)})
		return r

	case *ast.Ident:
		return lowerIdentRead(c, n)

	case *ast.AddrOf:
		return lowerAddr(c, n.Inner)

	case *ast.Deref:
		addr := lowerExpr(c, n.Inner)
		r := c.newReg()
		c.emit(&Inst{Kind: Read, Dst: r, Src1: addr})
		return r

	case *ast.Call:
		return lowerCall(c, n)

	case *ast.Copy:
		return lowerCopy(c, n)

	case *ast.Comma:
		last := NoReg
		for _, s := range n.Subs {
			last = lowerExpr(c, s)
		}
		return last

	case *ast.Binary:
		return lowerBinary(c, n)

	case *ast.Loop:
		return lowerLoop(c, n)

	case *ast.Return:
		r := lowerExpr(c, n.Inner)
		c.emit(&Inst{Kind: Ret, Src1: r})
		return r

	default:
		if t, ok := e.(ast.Transparent); ok {
			// Casts carry no IR of their own: every scalar is one
			// 16-bit word on this ISA, so a cast is purely a
			// type-checker fiction (ast.go's castWrap doc comment).
			return lowerExpr(c, t.Unwrap())
		}
		diag.Fatal(diag.Diagnostic{
			Kind:    diag.Internal,
			Pos:     diag.Position{StartLine: -1},
			Message: fmt.Sprintf("ir: unhandled expression kind %T", e),
		})
		return NoReg
	}
}

func lowerIdentRead(c *ctx, n *ast.Ident) int {
	switch n.Id.Role {
	case ast.RoleParameter:
		return n.Id.Index
	case ast.RoleVariable:
		return c.regForVar(n.Id.Index)
	case ast.RoleGlobal:
		addr := lowerAddr(c, n)
		r := c.newReg()
		c.emit(&Inst{Kind: Read, Dst: r, Src1: addr})
		return r
	case ast.RoleFunction:
		r := c.newReg()
		c.emit(&Inst{Kind: Init, Dst: r, Symbol: n.Id.Name})
		return r
	default:
		diag.Fatal(diag.Diagnostic{Kind: diag.Internal, Message: "ir: identifier with unknown role"})
		return NoReg
	}
}

// lowerAddr lowers an lvalue to the register holding its address: a
// global's address is its symbol; an array local's "address" is simply the
// register its Alloca already bound; and the address of *p is just p's
// value. A parameter or scalar local lives only in a virtual register and
// has no address: taking one is reported as an internal error.
func lowerAddr(c *ctx, e ast.Expr) int {
	switch n := e.(type) {
	case *ast.Deref:
		return lowerExpr(c, n.Inner)
	case *ast.Ident:
		switch n.Id.Role {
		case ast.RoleGlobal:
			r := c.newReg()
			c.emit(&Inst{Kind: Init, Dst: r, Symbol: n.Id.Name})
			return r
		case ast.RoleVariable:
			if _, isArray := c.fn.Vars[n.Id.Index].(types.Array); isArray {
				return c.regForVar(n.Id.Index)
			}
		}
	}
	diag.Fatal(diag.Diagnostic{Kind: diag.Internal, Message: fmt.Sprintf("ir: %T is not an addressable lvalue", e)})
	return NoReg
}

func lowerCopy(c *ctx, n *ast.Copy) int {
	if deref, ok := n.Destination.(*ast.Deref); ok {
		addr := lowerExpr(c, deref.Inner)
		val := lowerExpr(c, n.Source)
		c.emit(&Inst{Kind: Write, Src1: addr, Src2: val})
		return val
	}

	val := lowerExpr(c, n.Source)
	id, ok := n.Destination.(*ast.Ident)
	if !ok {
		diag.Fatal(diag.Diagnostic{Kind: diag.Internal, Message: fmt.Sprintf("ir: Copy destination %T is not an lvalue", n.Destination)})
	}
	switch id.Id.Role {
	case ast.RoleParameter:
		c.emit(&Inst{Kind: Copy, Dst: id.Id.Index, Src1: val})
	case ast.RoleVariable:
		c.emit(&Inst{Kind: Copy, Dst: c.regForVar(id.Id.Index), Src1: val})
	case ast.RoleGlobal:
		addr := lowerAddr(c, id)
		c.emit(&Inst{Kind: Write, Src1: addr, Src2: val})
	default:
		diag.Fatal(diag.Diagnostic{Kind: diag.Internal, Message: "ir: Copy destination has unexpected role"})
	}
	return val
}

func lowerCall(c *ctx, n *ast.Call) int {
	args := make([]int, len(n.Args))
	for i, a := range n.Args {
		args[i] = lowerExpr(c, a)
	}

	inst := &Inst{Kind: FCall, Dst: NoReg, Args: args}
	if fid, ok := n.Callee.(*ast.Ident); ok && fid.Id.Role == ast.RoleFunction {
		inst.Symbol = fid.Id.Name
	} else {
		inst.Src1 = lowerExpr(c, n.Callee)
	}

	if _, void := ast.ResolveType(n, c.fn, c.unit).(types.Void); !void {
		inst.Dst = c.newReg()
	}

	idx := c.emit(inst)
	return c.insts[idx].Dst
}

func lowerBinary(c *ctx, n *ast.Binary) int {
	if n.Op == ast.LAnd || n.Op == ast.LOr {
		return lowerShortCircuit(c, n)
	}
	lhs := lowerExpr(c, n.Left)
	rhs := lowerExpr(c, n.Right)
	r := c.newReg()
	c.emit(&Inst{Kind: Math, Op: n.Op, Dst: r, Src1: lhs, Src2: rhs})
	return r
}

// lowerShortCircuit builds the diamond b_then/b_else/end shape spec.md
// §4.4 describes. The folding rules in astopt/fold.go pin down the exact
// runtime value each branch produces: "x && y" is 0 when x is zero,
// otherwise y's raw value; "x || y" is 1 when x is nonzero, otherwise y's
// raw value (the right operand's value is passed through as is, never
// normalized to 0/1).
func lowerShortCircuit(c *ctx, n *ast.Binary) int {
	lhs := lowerExpr(c, n.Left)
	r := c.newReg()

	var thenEntry, thenExit, elseEntry, elseExit int
	if n.Op == ast.LAnd {
		thenEntry, thenExit = c.block(func() {
			rhs := lowerExpr(c, n.Right)
			c.emit(&Inst{Kind: Copy, Dst: r, Src1: rhs})
		})
		elseEntry, elseExit = c.block(func() {
			c.emit(&Inst{Kind: Init, Dst: r, Imm: 0})
		})
	} else {
		thenEntry, thenExit = c.block(func() {
			c.emit(&Inst{Kind: Init, Dst: r, Imm: 1})
		})
		elseEntry, elseExit = c.block(func() {
			rhs := lowerExpr(c, n.Right)
			c.emit(&Inst{Kind: Copy, Dst: r, Src1: rhs})
		})
	}

	ifnz := c.appendRaw(&Inst{Kind: Ifnz, Src1: lhs, Branch: thenEntry})
	c.insts[ifnz].Next = elseEntry
	c.linkNext(c.tail, ifnz)

	end := c.appendRaw(&Inst{Kind: Nop})
	c.linkNext(thenExit, end)
	c.linkNext(elseExit, end)
	c.tail = end
	return r
}

// lowerLoop builds the start/Ifnz/splice shape spec.md §4.4 describes:
// re-evaluate the condition on every iteration, branch into the body when
// nonzero, fall through to the join point otherwise, and splice the body's
// exit back to the condition re-check.
func lowerLoop(c *ctx, n *ast.Loop) int {
	priorTail := c.tail

	condEntry, ifnzIdx := c.block(func() {
		cond := lowerExpr(c, n.Cond)
		c.emit(&Inst{Kind: Ifnz, Src1: cond})
	})
	c.linkNext(priorTail, condEntry)

	bodyEntry, bodyExit := c.block(func() {
		lowerExpr(c, n.Body)
	})
	c.insts[ifnzIdx].Branch = bodyEntry
	c.linkNext(bodyExit, condEntry)

	end := c.appendRaw(&Inst{Kind: Nop})
	c.insts[ifnzIdx].Next = end

	c.tail = end
	return NoReg
}
