// Package ir implements the intermediate representation the front end
// lowers the normalized AST into (spec.md §4.4): a graph of instructions
// linked by explicit Next/Branch indices rather than a flat linear listing,
// so that control constructs (the && / || diamond, Loop) are just ordinary
// graph wiring instead of a separate "basic block" abstraction. Grounded on
// the teacher's own preference for small tagged-sum instruction types
// dispatched by a type switch (spec.md §9) rather than a class hierarchy.
package ir

import (
	"github.com/gocompilers/dcc16/internal/ast"
	"github.com/gocompilers/dcc16/internal/types"
)

// Kind is one of the IR operations (spec.md §4.4).
type Kind int

const (
	Nop Kind = iota
	// Init loads an immediate (Imm) or the address of a named symbol
	// (Symbol, for functions, globals and string-literal data) into Dst.
	Init
	// Math computes Dst = Src1 Op Src2.
	Math
	// Copy moves a register into another (Dst = Src1).
	Copy
	// Read loads the word at the address held in Src1 into Dst.
	Read
	// Write stores the value in Src2 at the address held in Src1.
	Write
	// Ifnz branches to Branch when Src1 is nonzero, falls through to Next
	// (its ordinary linear successor) otherwise.
	Ifnz
	// FCall invokes Symbol (a direct call) or the function value in Src1
	// (an indirect call, Symbol == "") with Args, leaving the result in
	// Dst (Dst == -1 for a void callee).
	FCall
	// Ret returns Src1 (-1 for a void function) to the caller.
	Ret
	// Alloca reserves Size words of stack storage for an array-typed
	// local and leaves its base address in Dst.
	Alloca
)

func (k Kind) String() string {
	switch k {
	case Nop:
		return "nop"
	case Init:
		return "init"
	case Math:
		return "math"
	case Copy:
		return "copy"
	case Read:
		return "read"
	case Write:
		return "write"
	case Ifnz:
		return "ifnz"
	case FCall:
		return "fcall"
	case Ret:
		return "ret"
	case Alloca:
		return "alloca"
	default:
		return "?"
	}
}

// NoReg marks an unused register operand or destination.
const NoReg = -1

// NoInst marks the absence of a successor instruction.
const NoInst = -1

// Inst is one IR instruction. Not every field is meaningful for every Kind;
// see the Kind doc comments above.
type Inst struct {
	Kind Kind

	Dst        int
	Src1, Src2 int
	Op         ast.BinOp

	Imm    int64
	Symbol string
	Args   []int
	Size   int

	// Next is this instruction's ordinary linear successor, NoInst if
	// this is a terminal instruction (Ret) or hasn't been linked yet.
	Next int
	// Branch is only meaningful for Ifnz: the successor taken when Src1
	// is nonzero.
	Branch int
}

// Func is one lowered function: its instruction arena plus the index of
// its entry instruction (always a Nop, spec.md §4.4).
type Func struct {
	Name      string
	NumParams int
	NumRegs   int
	CallConv  types.CallConv
	Insts     []*Inst
	Entry     int
}

// Program is every function lowered from one translation unit, plus the
// pooled string-literal data the backend must emit as `.ascii` directives.
type Program struct {
	Funcs   []*Func
	Globals []*ast.GlobalVar
	Strings []string // index i's symbol name is StringSymbol(i)
	// Externs lists the names of prototype-only (`.extern`) functions
	// referenced by this translation unit but defined elsewhere.
	Externs []string

	byName map[string]*Func
}

// FuncByName looks up a lowered function by name.
func (p *Program) FuncByName(name string) *Func {
	if p.byName == nil {
		p.byName = make(map[string]*Func, len(p.Funcs))
		for _, f := range p.Funcs {
			p.byName[f.Name] = f
		}
	}
	return p.byName[name]
}

// StringSymbol names the data symbol holding pooled string literal i.
func StringSymbol(i int) string {
	const prefix = ".LC"
	return prefix + itoa(i)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [8]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
