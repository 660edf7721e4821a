package obj

import (
	"fmt"

	"github.com/gocompilers/dcc16/internal/backend"
)

// Word format (spec.md §4.6's mnemonic list, reference DCPU-16 encoding):
// bits 0-4 opcode, bits 5-9 operand b, bits 10-15 operand a. A 0x00 opcode
// marks a special (single-operand) instruction, whose "opcode" lives in
// the b field instead.
const (
	opShift = 5
	bShift  = 5
	aShift  = 10
)

var basicOpcodes = map[string]uint16{
	"SET": 0x01, "ADD": 0x02, "SUB": 0x03, "MUL": 0x04, "MLI": 0x05,
	"DIV": 0x06, "DVI": 0x07, "MOD": 0x08, "MDI": 0x09, "AND": 0x0a,
	"BOR": 0x0b, "XOR": 0x0c, "SHR": 0x0d, "ASR": 0x0e, "SHL": 0x0f,
	"IFB": 0x10, "IFC": 0x11, "IFE": 0x12, "IFN": 0x13, "IFG": 0x14,
	"IFA": 0x15, "IFL": 0x16, "IFU": 0x17, "ADX": 0x1a, "SBX": 0x1b,
	"STI": 0x1e, "STD": 0x1f,
}

var specialOpcodes = map[string]uint16{
	"JSR": 0x01, "INT": 0x08, "IAG": 0x09, "IAS": 0x0a, "RFI": 0x0b,
	"IAQ": 0x0c, "HWN": 0x10, "HWQ": 0x11, "HWI": 0x12,
}

var regCodes = map[string]uint16{
	"A": 0, "B": 1, "C": 2, "X": 3, "Y": 4, "Z": 5, "I": 6, "J": 7,
}

func (a *assembler) encodeInstr(in backend.Instr) error {
	if op, ok := specialOpcodes[in.Mnem]; ok {
		aField, extra, sym := a.encodeOperand(in.A, false)
		word := (aField << aShift) | (op << bShift)
		idx := a.emit(word)
		a.patchExtra(idx, extra, sym)
		return nil
	}

	op, ok := basicOpcodes[in.Mnem]
	if !ok {
		return fmt.Errorf("obj: unknown mnemonic %q", in.Mnem)
	}
	bField, bExtra, bSym := a.encodeOperand(in.B, true)
	aField, aExtra, aSym := a.encodeOperand(in.A, false)
	word := op | (bField << bShift) | (aField << aShift)
	idx := a.emit(word)
	a.patchExtra(idx, bExtra, bSym)
	a.patchExtra(idx, aExtra, aSym)
	return nil
}

// patchExtra appends the operand's extra word (a literal or a symbol use)
// right after the instruction word at idx, if the operand needed one.
func (a *assembler) patchExtra(idx int, extra *uint16, sym string) {
	if sym != "" {
		a.useSymbol(sym)
		return
	}
	if extra != nil {
		a.emit(*extra)
	}
}

// encodeOperand returns the 6-bit field value for o, plus an extra word to
// append (either a literal word or, if sym != "", a symbol use to be
// resolved by Assemble/the linker). isB selects the PUSH/POP pseudo-
// register's direction (PUSH only ever appears as a destination, POP only
// ever as a source, per the ISA).
func (a *assembler) encodeOperand(o backend.Operand, isB bool) (field uint16, extra *uint16, sym string) {
	switch {
	case o.Reg == "PUSH", o.Reg == "POP":
		return 0x18, nil, ""
	case o.Reg == "SP" && o.Indirect:
		return 0x19, nil, "" // PEEK
	case o.Reg == "SP":
		return 0x1b, nil, ""
	case o.Reg == "PC":
		return 0x1c, nil, ""
	case o.Reg == "EX":
		return 0x1d, nil, ""
	case o.Symbol != "":
		return 0x1f, nil, o.Symbol
	case o.HasImm:
		if !o.Indirect && o.Imm >= -1 && o.Imm <= 30 {
			return uint16(0x21 + o.Imm), nil, ""
		}
		w := uint16(o.Imm)
		if o.Indirect {
			return 0x1e, &w, ""
		}
		return 0x1f, &w, ""
	default:
		rc, ok := regCodes[o.Reg]
		if !ok {
			return 0x1f, nil, "" // unreachable for well-formed operands
		}
		if !o.Indirect {
			return rc, nil, ""
		}
		if o.Delta == 0 {
			return 0x08 + rc, nil, ""
		}
		w := uint16(int16(o.Delta))
		return 0x10 + rc, &w, ""
	}
}
