// Package obj implements the assembler half of spec.md §4.7's
// Assembler/Linker Interface: it turns a backend.Listing into an Object —
// a word array plus the relocation/symbol bookkeeping the linker needs to
// concatenate several objects into one program. Grounded on the DCPU-16
// reference word format (5-bit opcode, two operand fields) the original
// implementation's encoder targets, adapted to Go's typed-switch dispatch
// style (spec.md §9).
package obj

import (
	"fmt"

	"github.com/gocompilers/dcc16/internal/backend"
)

// Object is the assembler's output for one translation unit (spec.md
// §4.7): the encoded word array, every word index that addresses a symbol
// defined in this same object (needs shifting when concatenated after
// another object), every word index that addresses a symbol the linker
// must still resolve, and the table of symbols this object defines.
type Object struct {
	Words         []uint16
	LocalRelocs   []int
	GlobalRelocs  []GlobalReloc
	Symbols       map[string]int
}

// GlobalReloc records that Words[WordIndex] must be patched with the final
// address of Name once every object's symbol table has been merged.
type GlobalReloc struct {
	Name      string
	WordIndex int
}

type symbolUse struct {
	name      string
	wordIndex int
}

// Assemble encodes l into an Object. Every `.global`-declared name must
// have a matching label; every referenced-but-undeclared name becomes a
// global relocation for the linker to resolve.
func Assemble(l *backend.Listing) (*Object, error) {
	a := &assembler{symbols: map[string]int{}}
	for _, it := range l.Items {
		if err := a.place(it); err != nil {
			return nil, err
		}
	}
	for _, use := range a.uses {
		if addr, ok := a.symbols[use.name]; ok {
			a.words[use.wordIndex] = uint16(addr)
			a.localRelocs = append(a.localRelocs, use.wordIndex)
		} else {
			a.globalRelocs = append(a.globalRelocs, GlobalReloc{Name: use.name, WordIndex: use.wordIndex})
		}
	}
	return &Object{
		Words:        a.words,
		LocalRelocs:  a.localRelocs,
		GlobalRelocs: a.globalRelocs,
		Symbols:      a.symbols,
	}, nil
}

type assembler struct {
	words        []uint16
	symbols      map[string]int
	uses         []symbolUse
	localRelocs  []int
	globalRelocs []GlobalReloc
}

func (a *assembler) emit(w uint16) int {
	idx := len(a.words)
	a.words = append(a.words, w)
	return idx
}

func (a *assembler) useSymbol(name string) {
	idx := a.emit(0)
	a.uses = append(a.uses, symbolUse{name: name, wordIndex: idx})
}

func (a *assembler) place(it backend.Item) error {
	switch v := it.(type) {
	case backend.Global, backend.Extern:
		return nil // bookkeeping only; every symbol use is resolved by name
	case backend.LabelDef:
		a.symbols[v.Name] = len(a.words)
		return nil
	case backend.Data:
		for _, w := range v.Words {
			a.emit(w)
		}
		return nil
	case backend.Ascii:
		for i := 0; i < len(v.Value); i++ {
			a.emit(uint16(v.Value[i]))
		}
		a.emit(0)
		return nil
	case backend.Instr:
		return a.encodeInstr(v)
	default:
		return fmt.Errorf("obj: unhandled listing item %T", it)
	}
}
