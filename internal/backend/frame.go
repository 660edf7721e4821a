package backend

import "github.com/gocompilers/dcc16/internal/ir"

// frame is the per-function stack layout: every IR virtual register gets a
// fixed J-relative slot, and every array local's Alloca gets extra words
// appended after the scalar slots (spec.md §4.6: "frame layout with J as
// frame pointer, PUSH/SUB SP for locals+spills").
//
// This is a simplified register allocator (DESIGN.md): rather than the
// linear-scan caller/callee-saved split spec.md §4.6 describes, every
// virtual register is always memory-resident in its slot, and A/B are used
// as transient scratch registers only where the ISA's addressing modes
// force it (a true double indirection, or marshaling call arguments).
// Correct, simpler, and easy to verify by inspection; a later pass could
// promote hot registers to stay resident across an instruction run.
type frame struct {
	numRegs     int
	arrayBase   map[int]int // Alloca instruction index -> words from the top of the array area down to the block's lowest word
	arrayWords  int
}

func buildFrame(f *ir.Func) *frame {
	fr := &frame{numRegs: f.NumRegs, arrayBase: map[int]int{}}
	for idx, inst := range f.Insts {
		if inst.Kind == ir.Alloca {
			fr.arrayWords += inst.Size
			fr.arrayBase[idx] = fr.arrayWords
		}
	}
	return fr
}

// size is the total word count SP must be decremented by in the prologue.
func (fr *frame) size() int { return fr.numRegs + fr.arrayWords }

// slot returns the operand addressing virtual register r's home location.
func (fr *frame) slot(r int) Operand {
	return FrameSlot(-(r + 1))
}

// arrayOffsetFromJ returns how far below J (as a positive word count)
// Alloca instruction idx's reserved block starts: its lowest word, which is
// the array's base address, with the block's other Size-1 words above it.
func (fr *frame) arrayOffsetFromJ(idx int) int {
	return fr.numRegs + fr.arrayBase[idx]
}

// incomingParamSlot returns the operand the caller left parameter i's value
// in (a register for the first three under reg-call, otherwise a
// J-relative stack slot above the saved frame pointer and return address;
// spec.md §4.6's two calling conventions).
func incomingParamSlot(regCall bool, i int) (Operand, bool) {
	if regCall && i < 3 {
		return Reg(regArgNames[i]), true
	}
	stackIdx := i
	if regCall {
		stackIdx -= 3
	}
	return FrameSlot(2 + stackIdx), false
}

var regArgNames = []string{"A", "B", "C"}
