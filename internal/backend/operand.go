package backend

import "strconv"

// Operand is one operand of an assembly instruction line (spec.md §4.7:
// "instruction lines `MNEM b, a`"). Exactly one of Symbol/Imm/Reg
// identifies the operand's value; Indirect wraps it in `[...]` and Delta
// adds a constant offset inside the brackets (`[J-3]`, `[J+2]`).
type Operand struct {
	Reg      string // "A".."J", "SP", "PC", "EX", "PUSH", "POP"
	Symbol   string
	Imm      int64
	HasImm   bool
	Indirect bool
	Delta    int
}

func Reg(name string) Operand { return Operand{Reg: name} }

func Lit(n int64) Operand { return Operand{Imm: n, HasImm: true} }

func Sym(name string) Operand { return Operand{Symbol: name} }

// FrameSlot addresses the stack word [J+delta]: a negative delta is a slot
// below the frame pointer (a virtual register's home), a positive one an
// incoming stack argument above the saved J and return address. See
// frame.go.
func FrameSlot(delta int) Operand {
	return Operand{Reg: "J", Indirect: true, Delta: delta}
}

// Push/Pop are the DCPU-16 stack pseudo-registers.
func Push() Operand { return Operand{Reg: "PUSH"} }
func Pop() Operand  { return Operand{Reg: "POP"} }

func (o Operand) String() string {
	var inner string
	switch {
	case o.Symbol != "":
		inner = o.Symbol
		if o.Delta > 0 {
			inner += "+" + strconv.Itoa(o.Delta)
		} else if o.Delta < 0 {
			inner += strconv.Itoa(o.Delta)
		}
	case o.HasImm:
		inner = strconv.FormatInt(o.Imm, 10)
	default:
		inner = o.Reg
		if o.Delta > 0 {
			inner += "+" + strconv.Itoa(o.Delta)
		} else if o.Delta < 0 {
			inner += strconv.Itoa(o.Delta)
		}
	}
	if o.Indirect {
		return "[" + inner + "]"
	}
	return inner
}
